package attendance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"schooladmin/internal/metrics"
	"schooladmin/internal/queue"
)

// maxProjectAttempts bounds how often a message is re-queued after a store error.
const maxProjectAttempts = 5

var errBadEvent = errors.New("undecodable saved event")

// Project appends one history entry per record of a saved batch. Messages of
// other types are ignored.
func (s *Service) Project(ctx context.Context, msg queue.Message) error {
	if msg.Type != MessageSaved {
		return nil
	}
	var evt SavedEvent
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return fmt.Errorf("%w: %v", errBadEvent, err)
	}
	if len(evt.Records) == 0 {
		return nil
	}
	entries := make([]HistoryEntry, 0, len(evt.Records))
	for _, r := range evt.Records {
		recordedAt := r.LastUpdated
		if recordedAt.IsZero() {
			recordedAt = evt.SavedAt
		}
		entries = append(entries, HistoryEntry{
			EntityID:    r.EntityID,
			EntityType:  r.EntityType,
			Date:        r.Date,
			CourseID:    r.CourseID,
			TimeSlot:    r.TimeSlot,
			SessionType: r.SessionType,
			Status:      r.Status,
			RecordedAt:  recordedAt,
		})
	}
	if err := s.store.AppendHistory(ctx, entries); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	metrics.HistoryEntriesProjected.Add(float64(len(entries)))
	return nil
}

// RunProjector consumes saved-batch messages until ctx is cancelled. Messages
// that fail on a store error are re-queued with backoff up to
// maxProjectAttempts; undecodable ones are dropped.
func (s *Service) RunProjector(ctx context.Context, q queue.Queue) error {
	messages, err := q.Consume(ctx)
	if err != nil {
		return fmt.Errorf("queue consume init failed: %w", err)
	}
	s.logger.InfoContext(ctx, "history projector started")
	for msg := range messages {
		err := s.Project(ctx, msg)
		if err == nil {
			continue
		}
		if errors.Is(err, errBadEvent) || msg.Attempts+1 >= maxProjectAttempts {
			s.logger.ErrorContext(ctx, "dropping history message", "type", msg.Type, "attempts", msg.Attempts+1, "error", err)
			continue
		}
		msg.Attempts++
		s.logger.WarnContext(ctx, "history projection failed, re-queueing", "attempts", msg.Attempts, "error", err)
		select {
		case <-time.After(time.Duration(msg.Attempts) * s.retryBackoff):
		case <-ctx.Done():
		}
		// Re-queued even during shutdown so the message outlives this process.
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		if err := q.Publish(pubCtx, msg); err != nil {
			s.logger.ErrorContext(ctx, "re-queue failed", "type", msg.Type, "error", err)
		}
		cancel()
	}
	s.logger.InfoContext(ctx, "history projector stopped")
	return nil
}
