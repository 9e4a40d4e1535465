package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/record"
	"github.com/Strob0t/CareMesh/internal/port/recordstore"
)

// Store implements recordstore.Store using PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

var _ recordstore.Store = (*Store)(nil)

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// --- Patients ---

func (s *Store) CreatePatient(ctx context.Context, req record.CreatePatientRequest) (record.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO patients (name, date_of_birth, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, name, date_of_birth, status, created_at`,
		req.Name, req.DateOfBirth, req.Status)

	p, err := scanPatient(row)
	if err != nil {
		return record.Patient{}, fmt.Errorf("create patient: %w", err)
	}
	return p, nil
}

func (s *Store) GetPatient(ctx context.Context, id int64) (record.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, date_of_birth, status, created_at
		 FROM patients WHERE id = $1`, id)

	p, err := scanPatient(row)
	if err != nil {
		return record.Patient{}, notFoundWrap(err, "get patient %d", id)
	}
	return p, nil
}

func (s *Store) ListPatients(ctx context.Context, status string, limit int) ([]record.Patient, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, date_of_birth, status, created_at
			 FROM patients WHERE status = $1 ORDER BY id LIMIT $2`, status, limit)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT id, name, date_of_birth, status, created_at
			 FROM patients ORDER BY id LIMIT $1`, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var patients []record.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (s *Store) UpdatePatient(ctx context.Context, id int64, req record.UpdateRequest) (record.Patient, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE patients SET
		   name          = COALESCE(NULLIF($2, ''), name),
		   date_of_birth = COALESCE(NULLIF($3, ''), date_of_birth),
		   status        = COALESCE(NULLIF($4, ''), status)
		 WHERE id = $1
		 RETURNING id, name, date_of_birth, status, created_at`,
		id, req.Name, req.DateOfBirth, req.Status)

	p, err := scanPatient(row)
	if err != nil {
		return record.Patient{}, notFoundWrap(err, "update patient %d", id)
	}
	return p, nil
}

// --- Cases ---

func (s *Store) CreateCase(ctx context.Context, req record.CreateCaseRequest) (record.Case, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO cases (patient_id, complaint, urgency)
		 VALUES ($1, $2, $3)
		 RETURNING id, patient_id, complaint, urgency, status, created_at`,
		req.PatientID, req.Complaint, req.Urgency)

	var c record.Case
	err := row.Scan(&c.ID, &c.PatientID, &c.Complaint, &c.Urgency, &c.Status, &c.CreatedAt)
	if err != nil {
		if fkViolation(err) {
			return record.Case{}, fmt.Errorf("create case: patient %d: %w", req.PatientID, domain.ErrNotFound)
		}
		return record.Case{}, fmt.Errorf("create case: %w", err)
	}
	return c, nil
}

// --- Encounters ---

func (s *Store) CreateEncounter(ctx context.Context, req record.CreateEncounterRequest) (record.Encounter, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO encounters (patient_id, channel, notes)
		 VALUES ($1, $2, $3)
		 RETURNING id, patient_id, channel, notes, created_at`,
		req.PatientID, req.Channel, req.Notes)

	e, err := scanEncounter(row)
	if err != nil {
		if fkViolation(err) {
			return record.Encounter{}, fmt.Errorf("create encounter: patient %d: %w", req.PatientID, domain.ErrNotFound)
		}
		return record.Encounter{}, fmt.Errorf("create encounter: %w", err)
	}
	return e, nil
}

func (s *Store) PatientHistory(ctx context.Context, patientID int64) ([]record.Encounter, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, patient_id, channel, notes, created_at
		 FROM encounters WHERE patient_id = $1
		 ORDER BY created_at DESC, id DESC`, patientID)
	if err != nil {
		return nil, fmt.Errorf("patient history: %w", err)
	}
	defer rows.Close()

	var encounters []record.Encounter
	for rows.Next() {
		e, err := scanEncounter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan encounter: %w", err)
		}
		encounters = append(encounters, e)
	}
	return encounters, rows.Err()
}

// --- Demo seed ---

type seedPatient struct {
	name, dob, status string
}

type seedEncounter struct {
	patientName, channel, notes string
}

var demoPatients = []seedPatient{
	{"Ana Rivera", "1987-05-14", "stable"},
	{"Brian Lee", "1974-11-02", "monitoring"},
	{"Cara Singh", "1992-08-30", "urgent"},
}

var demoEncounters = []seedEncounter{
	{"Ana Rivera", "phone", "Reported dizziness and mild headache"},
	{"Ana Rivera", "chat", "Shared blood pressure readings"},
	{"Brian Lee", "phone", "Medication refill request"},
	{"Cara Singh", "email", "Reported chest tightness after exercise"},
}

// SeedDemo upserts the demo patients and their encounters. Patients are
// keyed by (name, date_of_birth); re-running restores the canonical status.
// Encounters are inserted only when the identical row is absent.
func (s *Store) SeedDemo(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	for _, p := range demoPatients {
		if _, err := tx.Exec(ctx,
			`INSERT INTO patients (name, date_of_birth, status) VALUES ($1, $2, $3)
			 ON CONFLICT (name, date_of_birth) DO UPDATE SET status = EXCLUDED.status`,
			p.name, p.dob, p.status); err != nil {
			return fmt.Errorf("seed patient %s: %w", p.name, err)
		}
	}

	for _, e := range demoEncounters {
		if _, err := tx.Exec(ctx,
			`INSERT INTO encounters (patient_id, channel, notes)
			 SELECT p.id, $2, $3 FROM patients p
			 WHERE p.name = $1
			   AND NOT EXISTS (
			     SELECT 1 FROM encounters x
			     WHERE x.patient_id = p.id AND x.channel = $2 AND x.notes = $3
			   )`,
			e.patientName, e.channel, e.notes); err != nil {
			return fmt.Errorf("seed encounter for %s: %w", e.patientName, err)
		}
	}

	return tx.Commit(ctx)
}

// SeedDemoIfEmpty seeds the demo rows only when no patients exist yet, so a
// fresh database is demo-ready without clobbering live data on restart.
func (s *Store) SeedDemoIfEmpty(ctx context.Context) error {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&count); err != nil {
		return fmt.Errorf("count patients: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.SeedDemo(ctx)
}

// --- Scanners ---

func scanPatient(row scannable) (record.Patient, error) {
	var p record.Patient
	err := row.Scan(&p.ID, &p.Name, &p.DateOfBirth, &p.Status, &p.CreatedAt)
	return p, err
}

func scanEncounter(row scannable) (record.Encounter, error) {
	var e record.Encounter
	err := row.Scan(&e.ID, &e.PatientID, &e.Channel, &e.Notes, &e.CreatedAt)
	return e, err
}
