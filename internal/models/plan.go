package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// ScheduleSettings defines the learner's weekly time budget.
type ScheduleSettings struct {
	DailyHours     float64  `json:"daily_hours" validate:"required,gt=0"`
	WeeklyDays     int      `json:"weekly_days" validate:"required,gt=0,max=7"`
	RestDays       int      `json:"rest_days" validate:"min=0,max=6"`
	PreferredTimes []string `json:"preferred_times,omitempty"`
	BreakFrequency string   `json:"break_frequency,omitempty"`
}

// PlanDraft is the proposed plan flowing through conflict detection and
// resolution. The resolver operates on a deep copy, never in place.
type PlanDraft struct {
	Subjects        []SubjectProgress `json:"subjects"`
	OrderedSubjects []string          `json:"ordered_subjects"`
	Schedule        ScheduleSettings  `json:"schedule"`
	ExamDate        time.Time         `json:"exam_date"`
}

// Clone returns a deep copy of the draft.
func (p PlanDraft) Clone() PlanDraft {
	out := p
	out.Subjects = make([]SubjectProgress, len(p.Subjects))
	copy(out.Subjects, p.Subjects)
	out.OrderedSubjects = make([]string, len(p.OrderedSubjects))
	copy(out.OrderedSubjects, p.OrderedSubjects)
	out.Schedule.PreferredTimes = make([]string, len(p.Schedule.PreferredTimes))
	copy(out.Schedule.PreferredTimes, p.Schedule.PreferredTimes)
	return out
}

// PlanMetadata summarises the numeric shape of a generated plan.
type PlanMetadata struct {
	GeneratedAt            time.Time `json:"generated_at"`
	TotalHours             float64   `json:"total_hours"`
	EstimatedDurationWeeks int       `json:"estimated_duration_weeks"`
	KeyMilestones          []string  `json:"key_milestones"`
}

// GeneratedPlan is the three-tier plan returned to the caller.
type GeneratedPlan struct {
	OverallStrategy string       `json:"overall_strategy"`
	WeeklyPlan      string       `json:"weekly_plan"`
	DailyPlan       string       `json:"daily_plan"`
	Metadata        PlanMetadata `json:"metadata"`
}

// PlanStatus tracks the lifecycle of a stored plan record.
type PlanStatus string

const (
	PlanStatusPending  PlanStatus = "pending"
	PlanStatusReady    PlanStatus = "ready"
	PlanStatusFailed   PlanStatus = "failed"
	PlanStatusArchived PlanStatus = "archived"
)

// StudyPlan is the persisted plan record. Subjects, Schedule and Content
// are stored as JSON documents alongside the queryable scalar columns.
type StudyPlan struct {
	ID         string         `db:"id" json:"id"`
	LearnerID  string         `db:"learner_id" json:"learner_id"`
	Status     PlanStatus     `db:"status" json:"status"`
	Subjects   types.JSONText `db:"subjects" json:"subjects"`
	Schedule   types.JSONText `db:"schedule" json:"schedule"`
	Content    types.JSONText `db:"content" json:"content,omitempty"`
	DailyHours float64        `db:"daily_hours" json:"daily_hours"`
	WeeklyDays int            `db:"weekly_days" json:"weekly_days"`
	StartDate  time.Time      `db:"start_date" json:"start_date"`
	ExamDate   time.Time      `db:"exam_date" json:"exam_date"`
	FailReason string         `db:"fail_reason" json:"fail_reason,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ActivePlan is the slim read-only projection used by conflict checks.
type ActivePlan struct {
	ID         string    `json:"id"`
	Subjects   []string  `json:"subjects"`
	DailyHours float64   `json:"daily_hours"`
	WeeklyDays int       `json:"weekly_days"`
	StartDate  time.Time `json:"start_date"`
}

// PlanConsistencyReport is the non-fatal outcome of post-generation
// structural validation.
type PlanConsistencyReport struct {
	IsConsistent bool     `json:"is_consistent"`
	Issues       []string `json:"issues"`
}

// Pagination echoes list paging metadata.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
