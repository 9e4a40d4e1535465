// Package record defines the patient, case, and encounter entities served
// by the records tools.
package record

import (
	"errors"
	"time"
)

// Patient is a registered patient.
type Patient struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DateOfBirth string    `json:"date_of_birth"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Case is an open or resolved care case attached to a patient.
type Case struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	Complaint string    `json:"complaint"`
	Urgency   string    `json:"urgency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Encounter is one logged interaction with a patient.
type Encounter struct {
	ID        int64     `json:"id"`
	PatientID int64     `json:"patient_id"`
	Channel   string    `json:"channel"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
}

// UpdateRequest holds the patchable patient fields. Empty fields are left
// untouched; a request with no recognized fields is a no-op.
type UpdateRequest struct {
	Name        string `json:"name,omitempty"`
	DateOfBirth string `json:"date_of_birth,omitempty"`
	Status      string `json:"status,omitempty"`
}

// IsEmpty reports whether the request patches nothing.
func (r UpdateRequest) IsEmpty() bool {
	return r.Name == "" && r.DateOfBirth == "" && r.Status == ""
}

// CreatePatientRequest holds the fields needed to register a patient.
type CreatePatientRequest struct {
	Name        string `json:"name"`
	DateOfBirth string `json:"date_of_birth"`
	Status      string `json:"status"`
}

// Validate checks that a CreatePatientRequest has all required fields.
func (r CreatePatientRequest) Validate() error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.DateOfBirth == "" {
		return errors.New("date_of_birth is required")
	}
	if r.Status == "" {
		return errors.New("status is required")
	}
	return nil
}

// CreateEncounterRequest holds the fields needed to log an encounter.
type CreateEncounterRequest struct {
	PatientID int64  `json:"patient_id"`
	Channel   string `json:"channel"`
	Notes     string `json:"notes"`
}

// Validate checks that a CreateEncounterRequest has all required fields.
func (r CreateEncounterRequest) Validate() error {
	if r.PatientID <= 0 {
		return errors.New("patient_id is required")
	}
	if r.Channel == "" {
		return errors.New("channel is required")
	}
	if r.Notes == "" {
		return errors.New("notes is required")
	}
	return nil
}

// CreateCaseRequest holds the fields needed to open a new case.
type CreateCaseRequest struct {
	PatientID int64  `json:"patient_id"`
	Complaint string `json:"complaint"`
	Urgency   string `json:"urgency"`
}

// Validate checks that a CreateCaseRequest has all required fields.
func (r CreateCaseRequest) Validate() error {
	if r.PatientID <= 0 {
		return errors.New("patient_id is required")
	}
	if r.Complaint == "" {
		return errors.New("complaint is required")
	}
	if r.Urgency == "" {
		return errors.New("urgency is required")
	}
	return nil
}

// DefaultUrgency is applied when a new case does not specify one.
const DefaultUrgency = "routine"

// History pairs a patient with their encounter trail, newest first.
type History struct {
	Patient    Patient     `json:"patient"`
	Encounters []Encounter `json:"encounters"`
}

// AuditEvent is the durable audit-trail record written once per tool-level
// operation. PatientID is zero for operations that touch no single patient.
type AuditEvent struct {
	Event      string    `json:"event"`
	Tool       string    `json:"tool"`
	PatientID  int64     `json:"patient_id,omitempty"`
	Status     string    `json:"status"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}
