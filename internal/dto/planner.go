package dto

import (
	"time"

	"github.com/mindpath/study-plan-api/internal/models"
)

// PriorityRequest asks for a weighted ranking of the given subjects.
type PriorityRequest struct {
	Subjects       []models.SubjectProgress `json:"subjects_progress" validate:"required,min=1,dive"`
	Profile        models.PreferenceProfile `json:"preference_profile" validate:"omitempty,oneof=progress_led importance_led difficulty_led balanced"`
	RecentSubjects []string                 `json:"recent_subjects"`
}

// PriorityResponse returns the ranked weights with rationale and
// order-sanity warnings.
type PriorityResponse struct {
	Profile         models.PreferenceProfile `json:"preference_profile"`
	Weights         []models.SubjectWeight   `json:"weights"`
	OrderedSubjects []string                 `json:"ordered_subjects"`
	Rationale       string                   `json:"rationale"`
	Warnings        []string                 `json:"warnings"`
}

// PlanHints are optional free-text preferences appended verbatim to the
// generation prompts.
type PlanHints struct {
	LearningStyle        string `json:"learning_style,omitempty"`
	DifficultyPreference string `json:"difficulty_preference,omitempty"`
	ReviewFrequency      string `json:"review_frequency,omitempty"`
}

// GeneratePlanRequest drives the full plan-generation pipeline.
type GeneratePlanRequest struct {
	Subjects        []models.SubjectProgress `json:"subjects_progress" validate:"required,min=1,dive"`
	OrderedSubjects []string                 `json:"ordered_subjects"`
	Schedule        models.ScheduleSettings  `json:"schedule" validate:"required"`
	Profile         models.PreferenceProfile `json:"preference_profile" validate:"omitempty,oneof=progress_led importance_led difficulty_led balanced"`
	ExamDate        time.Time                `json:"exam_date" validate:"required"`
	RecentSubjects  []string                 `json:"recent_subjects"`
	Hints           PlanHints                `json:"hints"`
	CheckConflicts  bool                     `json:"check_conflicts"`
	AutoResolve     bool                     `json:"auto_resolve"`
	Mode            string                   `json:"mode" validate:"omitempty,oneof=sync async"`
}

// GeneratePlanResponse carries the generated plan together with the
// optional conflict and resolution reports.
type GeneratePlanResponse struct {
	PlanID        string                         `json:"plan_id"`
	Status        models.PlanStatus              `json:"status"`
	Plan          *models.GeneratedPlan          `json:"plan,omitempty"`
	Consistency   *models.PlanConsistencyReport  `json:"consistency,omitempty"`
	ConflictCheck *models.ConflictCheckResult    `json:"conflict_check,omitempty"`
	Resolution    *models.ResolutionResult       `json:"resolution,omitempty"`
	Priority      *PriorityResponse              `json:"priority,omitempty"`
}

// ConflictCheckRequest submits a proposed plan for conflict detection.
type ConflictCheckRequest struct {
	Subjects        []models.SubjectProgress `json:"subjects_progress" validate:"required,min=1,dive"`
	OrderedSubjects []string                 `json:"ordered_subjects"`
	Schedule        models.ScheduleSettings  `json:"schedule" validate:"required"`
	ExamDate        time.Time                `json:"exam_date"`
}

// Draft converts the request into the internal plan draft.
func (r ConflictCheckRequest) Draft() models.PlanDraft {
	return models.PlanDraft{
		Subjects:        r.Subjects,
		OrderedSubjects: r.OrderedSubjects,
		Schedule:        r.Schedule,
		ExamDate:        r.ExamDate,
	}
}

// ResolveConflictsResponse returns detection plus auto-resolution output.
type ResolveConflictsResponse struct {
	ConflictCheck *models.ConflictCheckResult `json:"conflict_check"`
	Resolution    *models.ResolutionResult    `json:"resolution,omitempty"`
}

// PlanListQuery filters stored plans for the authenticated learner.
type PlanListQuery struct {
	Status   string `form:"status" json:"status"`
	Page     int    `form:"page" json:"page"`
	PageSize int    `form:"pageSize" json:"page_size"`
}
