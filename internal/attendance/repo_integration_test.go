//go:build integration

package attendance

import (
	"context"
	"math/rand/v2"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"schooladmin/internal/store"
)

// openTestDB connects to TEST_DATABASE_URL and applies the schema.
func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	db, err := store.NewDB(ctx, url)
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func TestRepositoryUpsertAndEnrich(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.Client)
	ctx := context.Background()

	// A course id unique to this run keeps the session isolated from other data.
	course := "IT-" + uuid.NewString()[:8]
	var linked int64
	err := db.Client.QueryRowContext(ctx,
		`INSERT INTO students (name, student_id) VALUES ($1, $2) RETURNING id`,
		"Ada Lovelace", "S-"+course,
	).Scan(&linked)
	if err != nil {
		t.Fatalf("insert student: %v", err)
	}
	unlinked := linked + 1_000_000 + rand.Int64N(1_000_000)

	rec := func(entityID int64, status Status) Record {
		return Record{
			ID: uuid.NewString(), EntityID: entityID, EntityType: EntityStudent,
			Date: "2024-03-01", Status: status, CourseID: course, TimeSlot: 1,
			SessionType: SessionLecture, LastUpdated: time.Now().UTC(),
		}
	}

	if err := repo.UpsertBatch(ctx, []Record{rec(linked, StatusPresent), rec(unlinked, StatusAbsent)}); err != nil {
		t.Fatalf("UpsertBatch: %v", err)
	}
	if err := repo.UpsertBatch(ctx, []Record{rec(linked, StatusLate)}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	f := Filter{Date: "2024-03-01", CourseID: course, TimeSlot: 1, SessionType: SessionLecture}
	rows, err := repo.FindBySession(ctx, f)
	if err != nil {
		t.Fatalf("FindBySession: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0].EntityID != linked || rows[0].Status != StatusLate || rows[0].Date != "2024-03-01" {
		t.Errorf("linked row = %+v", rows[0].Record)
	}
	if rows[0].StudentName == nil || *rows[0].StudentName != "Ada Lovelace" {
		t.Errorf("linked student name = %v", rows[0].StudentName)
	}
	if rows[1].StudentName != nil || rows[1].StudentRef != nil {
		t.Errorf("unlinked row joined a student: %+v", rows[1])
	}
}

func TestRepositoryUpsertBatchRollsBack(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.Client)
	ctx := context.Background()

	course := "RB-" + uuid.NewString()[:8]
	good := Record{
		ID: uuid.NewString(), EntityID: 1, EntityType: EntityStudent, Date: "2024-03-01",
		Status: StatusPresent, CourseID: course, TimeSlot: 1, SessionType: SessionLecture,
		LastUpdated: time.Now().UTC(),
	}
	bad := good
	bad.ID = uuid.NewString()
	bad.EntityID = 2
	bad.Status = "excused" // violates the status CHECK constraint

	if err := repo.UpsertBatch(ctx, []Record{good, bad}); err == nil {
		t.Fatal("batch with an invalid status committed")
	}
	rows, err := repo.FindBySession(ctx, Filter{Date: "2024-03-01", CourseID: course, TimeSlot: 1, SessionType: SessionLecture})
	if err != nil {
		t.Fatalf("FindBySession: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("rows = %d after failed batch, want 0", len(rows))
	}
}

func TestRepositoryHistory(t *testing.T) {
	db := openTestDB(t)
	repo := NewRepository(db.Client)
	ctx := context.Background()

	entity := 2_000_000_000 + rand.Int64N(1_000_000)
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	entries := []HistoryEntry{
		{EntityID: entity, EntityType: EntityStudent, Date: "2024-03-01", CourseID: "CS101", TimeSlot: 1, SessionType: SessionLecture, Status: StatusPresent, RecordedAt: base},
		{EntityID: entity, EntityType: EntityStudent, Date: "2024-03-01", CourseID: "CS101", TimeSlot: 1, SessionType: SessionLecture, Status: StatusLate, RecordedAt: base.Add(time.Minute)},
	}
	if err := repo.AppendHistory(ctx, entries); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	got, err := repo.ListHistory(ctx, entity, 10)
	if err != nil {
		t.Fatalf("ListHistory: %v", err)
	}
	if len(got) != 2 || got[0].Status != StatusLate || got[1].Status != StatusPresent {
		t.Errorf("history = %+v, want late then present", got)
	}
}
