package models

import "time"

// SubjectStatus enumerates the learner's standing on a subject.
type SubjectStatus string

const (
	SubjectStatusCompleted  SubjectStatus = "completed"
	SubjectStatusInProgress SubjectStatus = "in_progress"
	SubjectStatusNotStarted SubjectStatus = "not_started"
)

// Valid reports whether the status is one of the known values.
func (s SubjectStatus) Valid() bool {
	switch s {
	case SubjectStatusCompleted, SubjectStatusInProgress, SubjectStatusNotStarted:
		return true
	}
	return false
}

// SubjectProgress is the caller-supplied standing on a single subject.
// The engine never persists it, only compares it against stored snapshots.
type SubjectProgress struct {
	Subject           string        `json:"subject" validate:"required"`
	Status            SubjectStatus `json:"status" validate:"required,oneof=completed in_progress not_started"`
	Progress          float64       `json:"progress" validate:"min=0,max=100"`
	ChaptersCompleted int           `json:"chapters_completed" validate:"min=0"`
	TotalChapters     int           `json:"total_chapters" validate:"min=0"`
}

// ProgressSnapshot is the persisted, authoritative progress record.
type ProgressSnapshot struct {
	Subject   string        `db:"subject" json:"subject"`
	Status    SubjectStatus `db:"status" json:"status"`
	Progress  float64       `db:"progress" json:"progress"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}
