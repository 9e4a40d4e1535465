// Package recordstore defines the port over the persistent patient record
// store.
package recordstore

import (
	"context"

	"github.com/Strob0t/CareMesh/internal/domain/record"
)

// Store is the port interface over patients, cases, and encounters. Lookups
// of unknown ids return domain.ErrNotFound. The store persists encounter
// notes verbatim; encryption at rest is the record service's concern.
type Store interface {
	CreatePatient(ctx context.Context, req record.CreatePatientRequest) (record.Patient, error)
	GetPatient(ctx context.Context, id int64) (record.Patient, error)
	ListPatients(ctx context.Context, status string, limit int) ([]record.Patient, error)
	UpdatePatient(ctx context.Context, id int64, req record.UpdateRequest) (record.Patient, error)
	CreateCase(ctx context.Context, req record.CreateCaseRequest) (record.Case, error)
	CreateEncounter(ctx context.Context, req record.CreateEncounterRequest) (record.Encounter, error)
	PatientHistory(ctx context.Context, patientID int64) ([]record.Encounter, error)
}
