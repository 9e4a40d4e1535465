package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/record"
	"github.com/Strob0t/CareMesh/internal/port/messagequeue"
)

// memStore is an in-memory recordstore.Store for service tests.
type memStore struct {
	patients   map[int64]record.Patient
	encounters map[int64][]record.Encounter
	nextCase   int64
	nextEnc    int64

	getCalls   int
	lastLimit  int
	lastStatus string
}

func newMemStore(patients ...record.Patient) *memStore {
	s := &memStore{
		patients:   make(map[int64]record.Patient),
		encounters: make(map[int64][]record.Encounter),
	}
	for _, p := range patients {
		s.patients[p.ID] = p
	}
	return s
}

func (s *memStore) CreatePatient(_ context.Context, req record.CreatePatientRequest) (record.Patient, error) {
	p := record.Patient{ID: int64(len(s.patients) + 1), Name: req.Name, DateOfBirth: req.DateOfBirth, Status: req.Status}
	s.patients[p.ID] = p
	return p, nil
}

func (s *memStore) GetPatient(_ context.Context, id int64) (record.Patient, error) {
	s.getCalls++
	p, ok := s.patients[id]
	if !ok {
		return record.Patient{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *memStore) ListPatients(_ context.Context, status string, limit int) ([]record.Patient, error) {
	s.lastStatus = status
	s.lastLimit = limit

	var out []record.Patient
	for _, p := range s.patients {
		if status != "" && p.Status != status {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *memStore) UpdatePatient(_ context.Context, id int64, req record.UpdateRequest) (record.Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return record.Patient{}, domain.ErrNotFound
	}
	if req.Name != "" {
		p.Name = req.Name
	}
	if req.DateOfBirth != "" {
		p.DateOfBirth = req.DateOfBirth
	}
	if req.Status != "" {
		p.Status = req.Status
	}
	s.patients[id] = p
	return p, nil
}

func (s *memStore) CreateCase(_ context.Context, req record.CreateCaseRequest) (record.Case, error) {
	if _, ok := s.patients[req.PatientID]; !ok {
		return record.Case{}, domain.ErrNotFound
	}
	s.nextCase++
	return record.Case{ID: s.nextCase, PatientID: req.PatientID, Complaint: req.Complaint, Urgency: req.Urgency, Status: "open"}, nil
}

func (s *memStore) CreateEncounter(_ context.Context, req record.CreateEncounterRequest) (record.Encounter, error) {
	if _, ok := s.patients[req.PatientID]; !ok {
		return record.Encounter{}, domain.ErrNotFound
	}
	s.nextEnc++
	e := record.Encounter{ID: s.nextEnc, PatientID: req.PatientID, Channel: req.Channel, Notes: req.Notes}
	s.encounters[req.PatientID] = append([]record.Encounter{e}, s.encounters[req.PatientID]...)
	return e, nil
}

func (s *memStore) PatientHistory(_ context.Context, patientID int64) ([]record.Encounter, error) {
	return s.encounters[patientID], nil
}

// memCache is a map-backed cache that records invalidations.
type memCache struct {
	entries map[string][]byte
	deletes []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.entries[key] = value
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.deletes = append(c.deletes, key)
	delete(c.entries, key)
	return nil
}

// captureQueue records every publish and never fails.
type captureQueue struct {
	published []publishedMsg
}

type publishedMsg struct {
	subject string
	data    []byte
}

func (q *captureQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.published = append(q.published, publishedMsg{subject: subject, data: data})
	return nil
}

func (q *captureQueue) Subscribe(context.Context, string, messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *captureQueue) Drain() error      { return nil }
func (q *captureQueue) Close() error      { return nil }
func (q *captureQueue) IsConnected() bool { return true }

func (q *captureQueue) bySubject(subject string) []publishedMsg {
	var out []publishedMsg
	for _, m := range q.published {
		if m.subject == subject {
			out = append(out, m)
		}
	}
	return out
}

// captureHub records broadcast events.
type captureHub struct {
	events []hubEvent
}

type hubEvent struct {
	eventType string
	payload   any
}

func (h *captureHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	h.events = append(h.events, hubEvent{eventType: eventType, payload: payload})
}

func anaRivera() record.Patient {
	return record.Patient{ID: 1, Name: "Ana Rivera", DateOfBirth: "1987-05-14", Status: "stable"}
}

func TestGetPatientReadThroughCache(t *testing.T) {
	store := newMemStore(anaRivera())
	c := newMemCache()
	svc := NewRecordService(store, WithRecordCache(c, time.Minute))

	for i := 0; i < 3; i++ {
		p, err := svc.GetPatient(context.Background(), 1)
		if err != nil {
			t.Fatalf("GetPatient: %v", err)
		}
		if p.Name != "Ana Rivera" {
			t.Fatalf("unexpected patient: %+v", p)
		}
	}

	// Only the first lookup reaches the store.
	if store.getCalls != 1 {
		t.Fatalf("expected 1 store lookup, got %d", store.getCalls)
	}
}

func TestGetPatientNotFound(t *testing.T) {
	svc := NewRecordService(newMemStore())

	_, err := svc.GetPatient(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPatientsLimitClamp(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"zero means default", 0, 20},
		{"negative means default", -3, 20},
		{"in range passes through", 7, 7},
		{"oversized clamps", 500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore(anaRivera())
			svc := NewRecordService(store)

			if _, err := svc.ListPatients(context.Background(), "", tt.limit); err != nil {
				t.Fatalf("ListPatients: %v", err)
			}
			if store.lastLimit != tt.want {
				t.Fatalf("store saw limit %d, want %d", store.lastLimit, tt.want)
			}
		})
	}
}

func TestListPatientsStatusFilter(t *testing.T) {
	store := newMemStore(
		anaRivera(),
		record.Patient{ID: 3, Name: "Cara Singh", Status: "urgent"},
	)
	svc := NewRecordService(store)

	patients, err := svc.ListPatients(context.Background(), "urgent", 0)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if len(patients) != 1 || patients[0].Name != "Cara Singh" {
		t.Fatalf("expected only the urgent patient, got %+v", patients)
	}
	if store.lastStatus != "urgent" {
		t.Fatalf("store saw status %q", store.lastStatus)
	}
}

func TestUpdatePatientEmptyPatch(t *testing.T) {
	store := newMemStore(anaRivera())
	c := newMemCache()
	svc := NewRecordService(store, WithRecordCache(c, time.Minute))

	p, err := svc.UpdatePatient(context.Background(), 1, record.UpdateRequest{})
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if p.Status != "stable" {
		t.Fatalf("expected the record unchanged, got %+v", p)
	}
	// Nothing was applied, so nothing to invalidate.
	if len(c.deletes) != 0 {
		t.Fatalf("unexpected cache invalidations: %v", c.deletes)
	}
}

func TestUpdatePatientInvalidatesCache(t *testing.T) {
	store := newMemStore(anaRivera())
	c := newMemCache()
	svc := NewRecordService(store, WithRecordCache(c, time.Minute))

	// Warm the cache, then patch.
	if _, err := svc.GetPatient(context.Background(), 1); err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	p, err := svc.UpdatePatient(context.Background(), 1, record.UpdateRequest{Status: "monitoring"})
	if err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if p.Status != "monitoring" {
		t.Fatalf("patch not applied: %+v", p)
	}
	if len(c.deletes) != 1 || c.deletes[0] != "patient:1" {
		t.Fatalf("expected patient:1 invalidated, got %v", c.deletes)
	}

	// The next lookup sees the new status, not the stale entry.
	p, err = svc.GetPatient(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if p.Status != "monitoring" {
		t.Fatalf("stale read after update: %+v", p)
	}
}

func TestCreateCaseDefaultsUrgency(t *testing.T) {
	svc := NewRecordService(newMemStore(anaRivera()))

	c, err := svc.CreateCase(context.Background(), record.CreateCaseRequest{PatientID: 1, Complaint: "chest tightness"})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if c.Urgency != "routine" {
		t.Fatalf("expected routine urgency, got %q", c.Urgency)
	}
	if c.Status != "open" {
		t.Fatalf("expected open status, got %q", c.Status)
	}
}

func TestCreateCaseRequiresComplaint(t *testing.T) {
	svc := NewRecordService(newMemStore(anaRivera()))

	_, err := svc.CreateCase(context.Background(), record.CreateCaseRequest{PatientID: 1})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestCreateCasePublishesAuditTrail(t *testing.T) {
	q := &captureQueue{}
	hub := &captureHub{}
	svc := NewRecordService(newMemStore(anaRivera()), WithRecordQueue(q), WithRecordHub(hub))

	c, err := svc.CreateCase(context.Background(), record.CreateCaseRequest{PatientID: 1, Complaint: "fever", Urgency: "urgent"})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}

	called := q.bySubject(messagequeue.SubjectToolCalled)
	if len(called) != 1 {
		t.Fatalf("expected 1 tool_called message, got %d", len(called))
	}
	var ev record.AuditEvent
	if err := json.Unmarshal(called[0].data, &ev); err != nil {
		t.Fatalf("decode audit event: %v", err)
	}
	if ev.Tool != "create_case" || ev.Status != "ok" || ev.PatientID != 1 {
		t.Fatalf("unexpected audit event: %+v", ev)
	}

	opened := q.bySubject(messagequeue.SubjectCaseOpened)
	if len(opened) != 1 {
		t.Fatalf("expected 1 case_opened message, got %d", len(opened))
	}
	var payload messagequeue.CaseOpenedPayload
	if err := json.Unmarshal(opened[0].data, &payload); err != nil {
		t.Fatalf("decode case payload: %v", err)
	}
	if payload.CaseID != c.ID || payload.Urgency != "urgent" {
		t.Fatalf("unexpected case payload: %+v", payload)
	}

	if len(hub.events) != 1 || hub.events[0].eventType != "case" {
		t.Fatalf("expected one case hub event, got %+v", hub.events)
	}
}

func TestAuditTrailRecordsFailures(t *testing.T) {
	q := &captureQueue{}
	hub := &captureHub{}
	svc := NewRecordService(newMemStore(), WithRecordQueue(q), WithRecordHub(hub))

	if _, err := svc.GetPatient(context.Background(), 9); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	called := q.bySubject(messagequeue.SubjectToolCalled)
	if len(called) != 1 {
		t.Fatalf("expected 1 tool_called message, got %d", len(called))
	}
	var ev record.AuditEvent
	if err := json.Unmarshal(called[0].data, &ev); err != nil {
		t.Fatalf("decode audit event: %v", err)
	}
	if ev.Status != "error" || ev.Tool != "get_patient" {
		t.Fatalf("unexpected audit event: %+v", ev)
	}

	// Failed operations never reach the live feed.
	if len(hub.events) != 0 {
		t.Fatalf("unexpected hub events: %+v", hub.events)
	}
}

func TestPatientHistoryUnknownPatient(t *testing.T) {
	svc := NewRecordService(newMemStore())

	_, err := svc.PatientHistory(context.Background(), 5)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPatientHistoryNewestFirst(t *testing.T) {
	store := newMemStore(anaRivera())
	svc := NewRecordService(store)

	for _, notes := range []string{"first visit", "second visit"} {
		if _, err := svc.AddEncounter(context.Background(), record.CreateEncounterRequest{
			PatientID: 1, Channel: "clinic", Notes: notes,
		}); err != nil {
			t.Fatalf("AddEncounter: %v", err)
		}
	}

	h, err := svc.PatientHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}
	if h.Patient.ID != 1 {
		t.Fatalf("unexpected patient: %+v", h.Patient)
	}
	if len(h.Encounters) != 2 || h.Encounters[0].Notes != "second visit" {
		t.Fatalf("expected newest first, got %+v", h.Encounters)
	}
}

func TestEncounterNotesSealedAtRest(t *testing.T) {
	store := newMemStore(anaRivera())
	svc := NewRecordService(store, WithRecordCipher("records-secret"))

	e, err := svc.AddEncounter(context.Background(), record.CreateEncounterRequest{
		PatientID: 1, Channel: "phone", Notes: "persistent cough, advised rest",
	})
	if err != nil {
		t.Fatalf("AddEncounter: %v", err)
	}
	// The caller sees plaintext.
	if e.Notes != "persistent cough, advised rest" {
		t.Fatalf("unexpected returned notes: %q", e.Notes)
	}

	stored := store.encounters[1][0].Notes
	if stored == "persistent cough, advised rest" {
		t.Fatal("notes reached the store in plaintext")
	}
	plain, err := record.DecryptNotes(stored, record.DeriveKey("records-secret"))
	if err != nil {
		t.Fatalf("DecryptNotes: %v", err)
	}
	if plain != "persistent cough, advised rest" {
		t.Fatalf("round trip mismatch: %q", plain)
	}

	// History decrypts on the way out.
	h, err := svc.PatientHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}
	if h.Encounters[0].Notes != "persistent cough, advised rest" {
		t.Fatalf("history returned sealed notes: %q", h.Encounters[0].Notes)
	}
}

func TestHistoryKeepsLegacyPlaintextNotes(t *testing.T) {
	store := newMemStore(anaRivera())
	store.encounters[1] = []record.Encounter{{ID: 1, PatientID: 1, Channel: "clinic", Notes: "seeded before encryption"}}
	svc := NewRecordService(store, WithRecordCipher("records-secret"))

	h, err := svc.PatientHistory(context.Background(), 1)
	if err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}
	if h.Encounters[0].Notes != "seeded before encryption" {
		t.Fatalf("legacy notes mangled: %q", h.Encounters[0].Notes)
	}
}

func TestAddEncounterValidation(t *testing.T) {
	svc := NewRecordService(newMemStore(anaRivera()))

	_, err := svc.AddEncounter(context.Background(), record.CreateEncounterRequest{PatientID: 1, Channel: "clinic"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing notes, got %v", err)
	}
}

func TestCreatePatient(t *testing.T) {
	store := newMemStore()
	svc := NewRecordService(store)

	p, err := svc.CreatePatient(context.Background(), record.CreatePatientRequest{
		Name: "Dana Cole", DateOfBirth: "1990-01-20", Status: "stable",
	})
	if err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	if p.ID == 0 || p.Name != "Dana Cole" {
		t.Fatalf("unexpected patient: %+v", p)
	}
	if _, err := svc.GetPatient(context.Background(), p.ID); err != nil {
		t.Fatalf("GetPatient after create: %v", err)
	}
}

func TestCreatePatientValidation(t *testing.T) {
	svc := NewRecordService(newMemStore())

	_, err := svc.CreatePatient(context.Background(), record.CreatePatientRequest{Name: "Dana Cole"})
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for missing date of birth, got %v", err)
	}
}

func TestHubEventTypesPerTool(t *testing.T) {
	hub := &captureHub{}
	store := newMemStore(anaRivera())
	svc := NewRecordService(store, WithRecordHub(hub))
	ctx := context.Background()

	if _, err := svc.GetPatient(ctx, 1); err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if _, err := svc.ListPatients(ctx, "", 0); err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if _, err := svc.UpdatePatient(ctx, 1, record.UpdateRequest{Name: "Ana R."}); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	if _, err := svc.PatientHistory(ctx, 1); err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}

	want := []string{"audit", "audit", "update", "history"}
	if len(hub.events) != len(want) {
		t.Fatalf("expected %d hub events, got %d", len(want), len(hub.events))
	}
	for i, w := range want {
		if hub.events[i].eventType != w {
			t.Fatalf("event %d: got type %q, want %q", i, hub.events[i].eventType, w)
		}
	}
}
