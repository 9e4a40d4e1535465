package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/CareMesh/internal/adapter/postgres"
	"github.com/Strob0t/CareMesh/internal/domain"
	"github.com/Strob0t/CareMesh/internal/domain/record"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()

	// Run goose migrations first (uses embedded SQL files).
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

// createTestPatient inserts a patient with a randomized name so repeated test
// runs never collide on the (name, date_of_birth) unique constraint.
func createTestPatient(t *testing.T, store *postgres.Store, status string) record.Patient {
	t.Helper()
	p, err := store.CreatePatient(context.Background(), record.CreatePatientRequest{
		Name:        "Test Patient " + uuid.New().String()[:8],
		DateOfBirth: "1990-01-01",
		Status:      status,
	})
	if err != nil {
		t.Fatalf("create test patient: %v", err)
	}
	return p
}

// --------------------------------------------------------------------------
// TestStore_PatientCRUD
// --------------------------------------------------------------------------

func TestStore_PatientCRUD(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created := createTestPatient(t, store, "stable")
	if created.ID == 0 {
		t.Fatal("CreatePatient returned zero ID")
	}
	if created.Status != "stable" {
		t.Fatalf("expected status 'stable', got %q", created.Status)
	}
	if created.CreatedAt.IsZero() {
		t.Fatal("CreatePatient returned zero CreatedAt")
	}

	t.Run("Get", func(t *testing.T) {
		got, err := store.GetPatient(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetPatient: %v", err)
		}
		if got.Name != created.Name {
			t.Fatalf("expected name %q, got %q", created.Name, got.Name)
		}
		if got.DateOfBirth != "1990-01-01" {
			t.Fatalf("expected date of birth 1990-01-01, got %q", got.DateOfBirth)
		}
	})

	t.Run("UpdateStatusOnly", func(t *testing.T) {
		updated, err := store.UpdatePatient(ctx, created.ID, record.UpdateRequest{Status: "recovering"})
		if err != nil {
			t.Fatalf("UpdatePatient: %v", err)
		}
		if updated.Status != "recovering" {
			t.Fatalf("expected status 'recovering', got %q", updated.Status)
		}
		// Fields absent from the patch must survive.
		if updated.Name != created.Name {
			t.Fatalf("name changed on partial update: %q -> %q", created.Name, updated.Name)
		}
		if updated.DateOfBirth != created.DateOfBirth {
			t.Fatalf("date of birth changed on partial update: %q -> %q", created.DateOfBirth, updated.DateOfBirth)
		}
	})

	t.Run("ListByStatus", func(t *testing.T) {
		marked := createTestPatient(t, store, "list-probe-"+uuid.New().String()[:8])
		patients, err := store.ListPatients(ctx, marked.Status, 10)
		if err != nil {
			t.Fatalf("ListPatients: %v", err)
		}
		if len(patients) != 1 {
			t.Fatalf("expected 1 patient with status %q, got %d", marked.Status, len(patients))
		}
		if patients[0].ID != marked.ID {
			t.Fatalf("expected patient %d, got %d", marked.ID, patients[0].ID)
		}
	})
}

func TestStore_GetPatientNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetPatient(context.Background(), 999999999)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = store.UpdatePatient(context.Background(), 999999999, record.UpdateRequest{Status: "stable"})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on update, got %v", err)
	}
}

// --------------------------------------------------------------------------
// TestStore_Cases
// --------------------------------------------------------------------------

func TestStore_Cases(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	patient := createTestPatient(t, store, "monitoring")

	created, err := store.CreateCase(ctx, record.CreateCaseRequest{
		PatientID: patient.ID,
		Complaint: "persistent cough",
		Urgency:   "urgent",
	})
	if err != nil {
		t.Fatalf("CreateCase: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateCase returned zero ID")
	}
	if created.Status != "open" {
		t.Fatalf("expected new case status 'open', got %q", created.Status)
	}
	if created.Urgency != "urgent" {
		t.Fatalf("expected urgency 'urgent', got %q", created.Urgency)
	}
}

func TestStore_CaseForUnknownPatient(t *testing.T) {
	store := setupStore(t)

	_, err := store.CreateCase(context.Background(), record.CreateCaseRequest{
		PatientID: 999999999,
		Complaint: "phantom complaint",
		Urgency:   "routine",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown patient, got %v", err)
	}
}

// --------------------------------------------------------------------------
// TestStore_Encounters
// --------------------------------------------------------------------------

func TestStore_Encounters(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	patient := createTestPatient(t, store, "stable")

	notes := []string{"first call", "second call", "third call"}
	for _, n := range notes {
		if _, err := store.CreateEncounter(ctx, record.CreateEncounterRequest{
			PatientID: patient.ID,
			Channel:   "phone",
			Notes:     n,
		}); err != nil {
			t.Fatalf("CreateEncounter(%q): %v", n, err)
		}
	}

	history, err := store.PatientHistory(ctx, patient.ID)
	if err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected 3 encounters, got %d", len(history))
	}
	// Newest first.
	if history[0].Notes != "third call" || history[2].Notes != "first call" {
		t.Fatalf("expected newest-first ordering, got %q .. %q", history[0].Notes, history[2].Notes)
	}
}

func TestStore_EncounterForUnknownPatient(t *testing.T) {
	store := setupStore(t)

	_, err := store.CreateEncounter(context.Background(), record.CreateEncounterRequest{
		PatientID: 999999999,
		Channel:   "phone",
		Notes:     "nobody home",
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown patient, got %v", err)
	}
}

// --------------------------------------------------------------------------
// TestStore_SeedDemo
// --------------------------------------------------------------------------

func TestStore_SeedDemoIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := store.SeedDemo(ctx); err != nil {
			t.Fatalf("SeedDemo run %d: %v", i+1, err)
		}
	}

	patients, err := store.ListPatients(ctx, "", 500)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	var ana record.Patient
	for _, p := range patients {
		if p.Name == "Ana Rivera" && p.DateOfBirth == "1987-05-14" {
			ana = p
			break
		}
	}
	if ana.ID == 0 {
		t.Fatal("seed did not create Ana Rivera")
	}

	// Seeding twice must not duplicate her encounters.
	history, err := store.PatientHistory(ctx, ana.ID)
	if err != nil {
		t.Fatalf("PatientHistory: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 seeded encounters for Ana Rivera, got %d", len(history))
	}
}
