package attendance

import "time"

// EntityType distinguishes who an attendance row belongs to.
type EntityType string

const (
	EntityStudent EntityType = "student"
	EntityFaculty EntityType = "faculty"
)

// Status is the attendance mark for one slot.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// SessionType is the kind of class session.
type SessionType string

const (
	SessionLecture   SessionType = "Lecture"
	SessionPractical SessionType = "Practical"
)

// DateLayout is the calendar date format used on the wire and in queries.
const DateLayout = "2006-01-02"

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool { return t == EntityStudent || t == EntityFaculty }

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return s == StatusPresent || s == StatusAbsent || s == StatusLate }

// Valid reports whether s is a known session type.
func (s SessionType) Valid() bool { return s == SessionLecture || s == SessionPractical }

// Record is one attendance mark.
type Record struct {
	ID          string      `json:"id"`
	EntityID    int64       `json:"entityId"`
	EntityType  EntityType  `json:"entityType"`
	Date        string      `json:"date"`
	Status      Status      `json:"status"`
	CourseID    string      `json:"courseId"`
	TimeSlot    int         `json:"timeSlot"`
	SessionType SessionType `json:"sessionType"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// Key is the composite identity of a record; at most one row exists per key.
type Key struct {
	EntityID    int64
	Date        string
	CourseID    string
	TimeSlot    int
	SessionType SessionType
}

// Key returns the record's composite key.
func (r Record) Key() Key {
	return Key{EntityID: r.EntityID, Date: r.Date, CourseID: r.CourseID, TimeSlot: r.TimeSlot, SessionType: r.SessionType}
}

// Filter selects a single class session.
type Filter struct {
	Date        string
	CourseID    string
	TimeSlot    int
	SessionType SessionType
}

// Row is a stored record joined with its linked student, if any.
type Row struct {
	Record
	StudentName *string
	StudentRef  *string
}

// EnrichedRecord is a record with student display fields.
type EnrichedRecord struct {
	Record
	Name      string `json:"name"`
	StudentID string `json:"studentId"`
}

// HistoryEntry is one applied write, kept so overwritten marks stay recoverable.
type HistoryEntry struct {
	EntityID    int64       `json:"entityId"`
	EntityType  EntityType  `json:"entityType"`
	Date        string      `json:"date"`
	CourseID    string      `json:"courseId"`
	TimeSlot    int         `json:"timeSlot"`
	SessionType SessionType `json:"sessionType"`
	Status      Status      `json:"status"`
	RecordedAt  time.Time   `json:"recordedAt"`
}
