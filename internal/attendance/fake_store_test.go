package attendance

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// memStore enforces the composite key and applies batches all-or-nothing.
type memStore struct {
	mu       sync.Mutex
	rows     map[Key]Record
	students map[int64][2]string
	history  []HistoryEntry

	failAt      int // 1-based index of the record that fails; 0 disables
	findErr     error
	finds       int
	upserts     int
	appendFails int // number of AppendHistory calls that fail before succeeding
	appends     int
}

func newMemStore() *memStore {
	return &memStore{rows: map[Key]Record{}, students: map[int64][2]string{}}
}

var errWrite = errors.New("write failed")

func (m *memStore) UpsertBatch(ctx context.Context, records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	staged := make(map[Key]Record, len(m.rows))
	for k, v := range m.rows {
		staged[k] = v
	}
	for i, r := range records {
		if m.failAt == i+1 {
			return errWrite
		}
		if existing, ok := staged[r.Key()]; ok {
			existing.Status = r.Status
			existing.LastUpdated = r.LastUpdated
			staged[r.Key()] = existing
			continue
		}
		staged[r.Key()] = r
	}
	m.rows = staged
	return nil
}

func (m *memStore) FindBySession(ctx context.Context, f Filter) ([]Row, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finds++
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []Row
	for _, r := range m.rows {
		if r.Date != f.Date || r.CourseID != f.CourseID || r.TimeSlot != f.TimeSlot || r.SessionType != f.SessionType {
			continue
		}
		row := Row{Record: r}
		if s, ok := m.students[r.EntityID]; ok && r.EntityType == EntityStudent {
			name, ref := s[0], s[1]
			row.StudentName, row.StudentRef = &name, &ref
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (m *memStore) AppendHistory(ctx context.Context, entries []HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.appendFails > 0 {
		m.appendFails--
		return errWrite
	}
	m.history = append(m.history, entries...)
	return nil
}

func (m *memStore) ListHistory(ctx context.Context, entityID int64, limit int) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HistoryEntry
	for i := len(m.history) - 1; i >= 0 && len(out) < limit; i-- {
		if m.history[i].EntityID == entityID {
			out = append(out, m.history[i])
		}
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) get(k Key) (Record, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[k]
	return r, ok
}

func (m *memStore) historyLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

func (m *memStore) appendCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appends
}
