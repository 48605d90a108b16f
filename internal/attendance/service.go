package attendance

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"schooladmin/internal/apperr"
	"schooladmin/internal/metrics"
	"schooladmin/internal/queue"
)

// MessageSaved is the queue message type published after a batch commits.
const MessageSaved = "attendance.saved"

// UnknownName is shown for rows with no linked student.
const UnknownName = "Unknown"

const (
	defaultPublishTimeout = 500 * time.Millisecond
	inlineProjectTimeout  = 5 * time.Second
)

// Store is the data access the attendance service depends on.
type Store interface {
	// UpsertBatch applies every record or none of them.
	UpsertBatch(ctx context.Context, records []Record) error
	FindBySession(ctx context.Context, f Filter) ([]Row, error)
	AppendHistory(ctx context.Context, entries []HistoryEntry) error
	ListHistory(ctx context.Context, entityID int64, limit int) ([]HistoryEntry, error)
}

// SavedEvent is the body of a MessageSaved message.
type SavedEvent struct {
	Records []Record  `json:"records"`
	SavedAt time.Time `json:"savedAt"`
}

// Service coordinates attendance writes and session queries.
type Service struct {
	store          Store
	events         queue.Queue
	now            func() time.Time
	logger         *slog.Logger
	publishTimeout time.Duration
	retryBackoff   time.Duration
}

// NewService creates a service backed by a store. events may be nil, in which
// case no history messages are published.
func NewService(store Store, events queue.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:          store,
		events:         events,
		now:            func() time.Time { return time.Now().UTC() },
		logger:         logger.With("component", "attendance"),
		publishTimeout: defaultPublishTimeout,
		retryBackoff:   500 * time.Millisecond,
	}
}

// SaveAttendance inserts or overwrites each record by its composite key. The
// batch is atomic: on failure no record is applied.
func (s *Service) SaveAttendance(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for i, r := range records {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("%w: records[%d]: %v", apperr.ErrInvalidArgument, i, err)
		}
	}

	batch := s.prepare(records)
	if err := s.store.UpsertBatch(ctx, batch); err != nil {
		metrics.AttendanceSaveFailures.Inc()
		s.logger.ErrorContext(ctx, "attendance batch failed", "records", len(batch), "error", err)
		return fmt.Errorf("%w: failed to save attendance", apperr.ErrStorage)
	}
	metrics.AttendanceRecordsSaved.Add(float64(len(batch)))
	s.logger.InfoContext(ctx, "attendance saved", "records", len(batch))

	s.publish(ctx, batch)
	return nil
}

// GetAttendanceRecords returns the records of one class session enriched with
// student display fields. All filter fields are required.
func (s *Service) GetAttendanceRecords(ctx context.Context, f Filter) ([]EnrichedRecord, error) {
	f.Date = strings.TrimSpace(f.Date)
	f.CourseID = strings.TrimSpace(f.CourseID)
	if f.Date == "" || f.CourseID == "" || f.TimeSlot <= 0 || f.SessionType == "" {
		return nil, fmt.Errorf("%w: date, courseId, timeSlot and sessionType are required", apperr.ErrInvalidArgument)
	}
	if !f.SessionType.Valid() {
		return nil, fmt.Errorf("%w: sessionType must be Lecture or Practical", apperr.ErrInvalidArgument)
	}
	if _, err := time.Parse(DateLayout, f.Date); err != nil {
		return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", apperr.ErrInvalidArgument)
	}

	rows, err := s.store.FindBySession(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "attendance query failed", "error", err)
		return nil, fmt.Errorf("%w: failed to fetch attendance", apperr.ErrStorage)
	}

	out := make([]EnrichedRecord, 0, len(rows))
	for _, row := range rows {
		rec := EnrichedRecord{Record: row.Record, Name: UnknownName}
		if row.StudentName != nil {
			rec.Name = *row.StudentName
			if row.StudentRef != nil {
				rec.StudentID = *row.StudentRef
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// ListHistory returns the most recent writes for an entity, newest first.
func (s *Service) ListHistory(ctx context.Context, entityID int64, limit int) ([]HistoryEntry, error) {
	if entityID <= 0 {
		return nil, fmt.Errorf("%w: entityId is required", apperr.ErrInvalidArgument)
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	entries, err := s.store.ListHistory(ctx, entityID, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "history query failed", "entity_id", entityID, "error", err)
		return nil, fmt.Errorf("%w: failed to fetch history", apperr.ErrStorage)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	return entries, nil
}

// prepare stamps ids and timestamps and collapses duplicate keys, keeping the
// last occurrence in its original position.
func (s *Service) prepare(records []Record) []Record {
	now := s.now()
	normalized := make([]Record, len(records))
	last := make(map[Key]int, len(records))
	for i, r := range records {
		r.CourseID = strings.TrimSpace(r.CourseID)
		normalized[i] = r
		last[r.Key()] = i
	}
	out := make([]Record, 0, len(last))
	for i, r := range normalized {
		if last[r.Key()] != i {
			continue
		}
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.LastUpdated = now
		out = append(out, r)
	}
	return out
}

// publish hands the committed batch to the queue without holding the request
// past publishTimeout. When the queue does not take it, the history entries are
// appended inline so the committed write still reaches the log.
func (s *Service) publish(ctx context.Context, batch []Record) {
	if s.events == nil {
		return
	}
	body, err := json.Marshal(SavedEvent{Records: batch, SavedAt: s.now()})
	if err != nil {
		s.logger.ErrorContext(ctx, "encode saved event failed", "error", err)
		return
	}
	msg := queue.Message{Type: MessageSaved, Body: body}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
	err = s.events.Publish(pubCtx, msg)
	cancel()
	if err == nil {
		return
	}
	s.logger.WarnContext(ctx, "queue publish failed, projecting inline", "records", len(batch), "error", err)

	projCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), inlineProjectTimeout)
	defer cancel()
	if err := s.Project(projCtx, msg); err != nil {
		s.logger.ErrorContext(ctx, "inline history projection failed", "records", len(batch), "error", err)
	}
}

func validateRecord(r Record) error {
	switch {
	case r.EntityID <= 0:
		return fmt.Errorf("entityId must be positive")
	case !r.EntityType.Valid():
		return fmt.Errorf("entityType %q is not student or faculty", r.EntityType)
	case !r.Status.Valid():
		return fmt.Errorf("status %q is not present, absent or late", r.Status)
	case !r.SessionType.Valid():
		return fmt.Errorf("sessionType %q is not Lecture or Practical", r.SessionType)
	case strings.TrimSpace(r.CourseID) == "":
		return fmt.Errorf("courseId is required")
	case r.TimeSlot <= 0:
		return fmt.Errorf("timeSlot must be positive")
	}
	if _, err := time.Parse(DateLayout, r.Date); err != nil {
		return fmt.Errorf("date must be YYYY-MM-DD")
	}
	return nil
}
