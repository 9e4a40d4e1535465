package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	cmotel "github.com/Strob0t/CareMesh/internal/adapter/otel"
	"github.com/Strob0t/CareMesh/internal/adapter/ws"
	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/record"
	"github.com/Strob0t/CareMesh/internal/port/broadcast"
	"github.com/Strob0t/CareMesh/internal/port/cache"
	"github.com/Strob0t/CareMesh/internal/port/messagequeue"
	"github.com/Strob0t/CareMesh/internal/port/recordstore"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100

	defaultCacheTTL = 5 * time.Minute
)

// RecordService is the business layer behind the record tools: patient
// lookups with a read-through cache, record patches, case intake, and the
// encounter history with notes encrypted at rest. Every tool-level operation
// leaves an audit trail on the WS hub and the message queue; both are best
// effort and never fail the operation itself.
type RecordService struct {
	store    recordstore.Store
	cache    cache.Cache
	queue    messagequeue.Queue
	hub      broadcast.Broadcaster
	metrics  *cmotel.Metrics
	key      []byte
	cacheTTL time.Duration
	now      func() time.Time
}

// RecordOption configures a RecordService.
type RecordOption func(*RecordService)

// WithRecordCache attaches a read-through cache for patient lookups. A ttl
// of zero keeps the default.
func WithRecordCache(c cache.Cache, ttl time.Duration) RecordOption {
	return func(s *RecordService) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithRecordQueue attaches the durable audit trail.
func WithRecordQueue(q messagequeue.Queue) RecordOption {
	return func(s *RecordService) { s.queue = q }
}

// WithRecordHub attaches the live audit feed.
func WithRecordHub(h broadcast.Broadcaster) RecordOption {
	return func(s *RecordService) { s.hub = h }
}

// WithRecordMetrics attaches the tool call counter.
func WithRecordMetrics(m *cmotel.Metrics) RecordOption {
	return func(s *RecordService) { s.metrics = m }
}

// WithRecordCipher enables encryption at rest for encounter notes, deriving
// the AES key from secret. An empty secret leaves notes in plaintext.
func WithRecordCipher(secret string) RecordOption {
	return func(s *RecordService) {
		if secret != "" {
			s.key = record.DeriveKey(secret)
		}
	}
}

// WithRecordClock overrides the time source used for audit timestamps.
func WithRecordClock(now func() time.Time) RecordOption {
	return func(s *RecordService) { s.now = now }
}

// NewRecordService creates a new RecordService.
func NewRecordService(store recordstore.Store, opts ...RecordOption) *RecordService {
	s := &RecordService{store: store, cacheTTL: defaultCacheTTL, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetPatient returns one patient, serving repeat lookups from the cache.
func (s *RecordService) GetPatient(ctx context.Context, id int64) (record.Patient, error) {
	start := s.now()

	p, err := s.lookupPatient(ctx, id)
	s.publishAudit(ctx, "get_patient", id, start, err)
	if err != nil {
		return record.Patient{}, fmt.Errorf("get patient: %w", err)
	}

	s.broadcast(ctx, ws.EventAudit, ws.AuditEvent{Tool: "get_patient", PatientID: id})
	return p, nil
}

// ListPatients returns up to limit patients, optionally filtered by status.
// A zero limit means the default page size; oversized limits are clamped.
func (s *RecordService) ListPatients(ctx context.Context, status string, limit int) ([]record.Patient, error) {
	start := s.now()

	if limit <= 0 {
		limit = defaultListLimit
	} else if limit > maxListLimit {
		limit = maxListLimit
	}

	patients, err := s.store.ListPatients(ctx, status, limit)
	s.publishAudit(ctx, "list_patients", 0, start, err)
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}

	s.broadcast(ctx, ws.EventAudit, ws.AuditEvent{Tool: "list_patients", Count: len(patients)})
	return patients, nil
}

// UpdatePatient applies a partial patch to a patient. Only name, date of
// birth, and status are patchable; an empty patch returns the current record
// unchanged. Any applied change invalidates the cached entry.
func (s *RecordService) UpdatePatient(ctx context.Context, id int64, req record.UpdateRequest) (record.Patient, error) {
	start := s.now()

	var (
		p   record.Patient
		err error
	)
	if req.IsEmpty() {
		p, err = s.store.GetPatient(ctx, id)
	} else {
		p, err = s.store.UpdatePatient(ctx, id, req)
		if err == nil {
			s.cacheDelete(ctx, id)
		}
	}
	s.publishAudit(ctx, "update_patient", id, start, err)
	if err != nil {
		return record.Patient{}, fmt.Errorf("update patient: %w", err)
	}

	s.broadcast(ctx, ws.EventUpdate, ws.AuditEvent{Tool: "update_patient", PatientID: id})
	return p, nil
}

// CreateCase opens a care case for a patient. Complaint is required; urgency
// defaults to routine. The stored case starts in status open.
func (s *RecordService) CreateCase(ctx context.Context, req record.CreateCaseRequest) (record.Case, error) {
	start := s.now()

	if req.Urgency == "" {
		req.Urgency = record.DefaultUrgency
	}
	if err := req.Validate(); err != nil {
		return record.Case{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, err)
	}

	c, err := s.store.CreateCase(ctx, req)
	s.publishAudit(ctx, "create_case", req.PatientID, start, err)
	if err != nil {
		return record.Case{}, fmt.Errorf("create case: %w", err)
	}

	s.broadcast(ctx, ws.EventCase, ws.AuditEvent{Tool: "create_case", CaseID: c.ID})
	s.publishCaseOpened(ctx, c)
	return c, nil
}

// PatientHistory returns a patient together with their encounters, newest
// first. The patient must exist; notes are decrypted on the way out.
func (s *RecordService) PatientHistory(ctx context.Context, patientID int64) (record.History, error) {
	start := s.now()

	h, err := s.patientHistory(ctx, patientID)
	s.publishAudit(ctx, "get_patient_history", patientID, start, err)
	if err != nil {
		return record.History{}, err
	}

	s.broadcast(ctx, ws.EventHistory, ws.AuditEvent{Tool: "get_patient_history", Count: len(h.Encounters)})
	return h, nil
}

func (s *RecordService) patientHistory(ctx context.Context, patientID int64) (record.History, error) {
	p, err := s.lookupPatient(ctx, patientID)
	if err != nil {
		return record.History{}, fmt.Errorf("get patient: %w", err)
	}

	encounters, err := s.store.PatientHistory(ctx, patientID)
	if err != nil {
		return record.History{}, fmt.Errorf("patient history: %w", err)
	}
	for i := range encounters {
		encounters[i].Notes = s.decryptNotes(encounters[i].Notes)
	}
	return record.History{Patient: p, Encounters: encounters}, nil
}

// AddEncounter logs an encounter against a patient, sealing the notes before
// they reach the store when a cipher key is configured.
func (s *RecordService) AddEncounter(ctx context.Context, req record.CreateEncounterRequest) (record.Encounter, error) {
	start := s.now()

	if err := req.Validate(); err != nil {
		return record.Encounter{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, err)
	}

	plain := req.Notes
	if s.key != nil {
		sealed, err := record.EncryptNotes(plain, s.key)
		if err != nil {
			return record.Encounter{}, fmt.Errorf("encrypt notes: %w", err)
		}
		req.Notes = sealed
	}

	e, err := s.store.CreateEncounter(ctx, req)
	s.publishAudit(ctx, "add_encounter", req.PatientID, start, err)
	if err != nil {
		return record.Encounter{}, fmt.Errorf("create encounter: %w", err)
	}
	e.Notes = plain

	s.broadcast(ctx, ws.EventUpdate, ws.AuditEvent{Tool: "add_encounter", PatientID: req.PatientID})
	return e, nil
}

// CreatePatient registers a patient. Registration is an admin operation,
// not a tool, so it leaves no audit trail.
func (s *RecordService) CreatePatient(ctx context.Context, req record.CreatePatientRequest) (record.Patient, error) {
	if err := req.Validate(); err != nil {
		return record.Patient{}, fmt.Errorf("%w: %s", domain.ErrInvalidArgument, err)
	}
	p, err := s.store.CreatePatient(ctx, req)
	if err != nil {
		return record.Patient{}, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

// lookupPatient is the cache-aware read path shared by GetPatient and
// PatientHistory. It never audits; callers do.
func (s *RecordService) lookupPatient(ctx context.Context, id int64) (record.Patient, error) {
	key := patientCacheKey(id)

	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var p record.Patient
			if err := json.Unmarshal(data, &p); err == nil {
				return p, nil
			}
			// Unreadable entry: drop it and fall through to the store.
			s.cacheDelete(ctx, id)
		}
	}

	p, err := s.store.GetPatient(ctx, id)
	if err != nil {
		return record.Patient{}, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(p); err == nil {
			if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
				slog.Debug("cache set failed", "key", key, "error", err)
			}
		}
	}
	return p, nil
}

func (s *RecordService) cacheDelete(ctx context.Context, id int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, patientCacheKey(id)); err != nil {
		slog.Debug("cache delete failed", "patient_id", id, "error", err)
	}
}

func patientCacheKey(id int64) string {
	return "patient:" + strconv.FormatInt(id, 10)
}

// decryptNotes opens sealed notes. Rows written before encryption was
// enabled stay as stored.
func (s *RecordService) decryptNotes(stored string) string {
	if s.key == nil {
		return stored
	}
	plain, err := record.DecryptNotes(stored, s.key)
	if err != nil {
		slog.Debug("notes not sealed, returning as stored", "error", err)
		return stored
	}
	return plain
}

// broadcast pushes a live event to connected watchers. Only successful
// operations reach the feed.
func (s *RecordService) broadcast(ctx context.Context, eventType string, payload ws.AuditEvent) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastEvent(ctx, eventType, payload)
}

// publishAudit counts the invocation and appends one entry to the durable
// audit trail, recording both successful and failed invocations. Publish
// failures are logged, never surfaced.
func (s *RecordService) publishAudit(ctx context.Context, tool string, patientID int64, start time.Time, opErr error) {
	status := "ok"
	if opErr != nil {
		status = "error"
	}

	if s.metrics != nil {
		s.metrics.ToolCalls.Add(ctx, 1, metric.WithAttributes(
			attribute.String("tool", tool),
			attribute.String("status", status),
		))
	}

	if s.queue == nil {
		return
	}

	ev := record.AuditEvent{
		Event:      "tool_called",
		Tool:       tool,
		PatientID:  patientID,
		Status:     status,
		DurationMS: s.now().Sub(start).Milliseconds(),
		At:         s.now().UTC(),
	}

	data, err := json.Marshal(ev)
	if err != nil {
		slog.Error("marshal audit event", "tool", tool, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectToolCalled, data); err != nil {
		slog.Warn("publish audit event", "tool", tool, "error", err)
	}
}

func (s *RecordService) publishCaseOpened(ctx context.Context, c record.Case) {
	if s.queue == nil {
		return
	}

	payload := messagequeue.CaseOpenedPayload{
		CaseID:    c.ID,
		PatientID: c.PatientID,
		Urgency:   c.Urgency,
		At:        s.now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal case opened event", "case_id", c.ID, "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectCaseOpened, data); err != nil {
		slog.Warn("publish case opened event", "case_id", c.ID, "error", err)
	}
}
