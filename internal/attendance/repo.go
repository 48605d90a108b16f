package attendance

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Repository persists attendance data in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const upsertRecord = `
	INSERT INTO attendance (id, entity_id, entity_type, date, status, course_id, time_slot, session_type, last_updated)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT ON CONSTRAINT attendance_unique_slot DO UPDATE SET
		status = EXCLUDED.status,
		last_updated = EXCLUDED.last_updated
`

// UpsertBatch writes all records in one transaction keyed by
// (entity_id, date, course_id, time_slot, session_type).
func (r *Repository) UpsertBatch(ctx context.Context, records []Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		day, err := time.Parse(DateLayout, rec.Date)
		if err != nil {
			return fmt.Errorf("record %s: %w", rec.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ID, rec.EntityID, string(rec.EntityType), day, string(rec.Status),
			rec.CourseID, rec.TimeSlot, string(rec.SessionType), rec.LastUpdated,
		); err != nil {
			return fmt.Errorf("upsert entity %d: %w", rec.EntityID, err)
		}
	}
	return tx.Commit()
}

// FindBySession returns the session's rows with the linked student, if any.
func (r *Repository) FindBySession(ctx context.Context, f Filter) ([]Row, error) {
	day, err := time.Parse(DateLayout, f.Date)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.entity_id, a.entity_type, a.date::text, a.status, a.course_id,
		       a.time_slot, a.session_type, a.last_updated, s.name, s.student_id
		FROM attendance a
		LEFT JOIN students s ON s.id = a.entity_id AND a.entity_type = 'student'
		WHERE a.date = $1 AND a.course_id = $2 AND a.time_slot = $3 AND a.session_type = $4
		ORDER BY a.entity_id
	`, day, f.CourseID, f.TimeSlot, string(f.SessionType))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Row
	for rows.Next() {
		var row Row
		var name, ref sql.NullString
		if err := rows.Scan(
			&row.ID, &row.EntityID, &row.EntityType, &row.Date, &row.Status, &row.CourseID,
			&row.TimeSlot, &row.SessionType, &row.LastUpdated, &name, &ref,
		); err != nil {
			return nil, err
		}
		if name.Valid {
			row.StudentName = &name.String
		}
		if ref.Valid {
			row.StudentRef = &ref.String
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// AppendHistory inserts history entries in one transaction.
func (r *Repository) AppendHistory(ctx context.Context, entries []HistoryEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_history (entity_id, entity_type, date, course_id, time_slot, session_type, status, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		day, err := time.Parse(DateLayout, e.Date)
		if err != nil {
			return fmt.Errorf("history entity %d: %w", e.EntityID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			e.EntityID, string(e.EntityType), day, e.CourseID, e.TimeSlot,
			string(e.SessionType), string(e.Status), e.RecordedAt,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListHistory returns an entity's history newest first.
func (r *Repository) ListHistory(ctx context.Context, entityID int64, limit int) ([]HistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT entity_id, entity_type, date::text, course_id, time_slot, session_type, status, recorded_at
		FROM attendance_history
		WHERE entity_id = $1
		ORDER BY recorded_at DESC, id DESC
		LIMIT $2
	`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.EntityID, &e.EntityType, &e.Date, &e.CourseID, &e.TimeSlot, &e.SessionType, &e.Status, &e.RecordedAt); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
