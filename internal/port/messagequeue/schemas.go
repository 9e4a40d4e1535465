package messagequeue

// ToolCalledPayload is the schema for audit.tool_called messages. It mirrors
// record.AuditEvent so consumers can decode without importing the domain.
type ToolCalledPayload struct {
	Event      string `json:"event"`
	Tool       string `json:"tool"`
	PatientID  int64  `json:"patient_id,omitempty"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms"`
	At         string `json:"at"`
}

// CaseOpenedPayload is the schema for audit.case_opened messages.
type CaseOpenedPayload struct {
	CaseID    int64  `json:"case_id"`
	PatientID int64  `json:"patient_id"`
	Urgency   string `json:"urgency"`
	At        string `json:"at"`
}
