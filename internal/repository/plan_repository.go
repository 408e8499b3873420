package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/mindpath/study-plan-api/internal/models"
)

// PlanRepository persists generated study plans and exposes the active
// plans the conflict checks compare against.
type PlanRepository struct {
	db *sqlx.DB
}

// NewPlanRepository creates a new repository instance.
func NewPlanRepository(db *sqlx.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, learner_id, status, subjects, schedule, content, daily_hours, weekly_days, start_date, exam_date, fail_reason, created_at, updated_at`

// Create inserts a new plan record, generating the id when absent.
func (r *PlanRepository) Create(ctx context.Context, plan *models.StudyPlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = now
	}
	plan.UpdatedAt = now
	if plan.Status == "" {
		plan.Status = models.PlanStatusPending
	}
	if plan.Content == nil {
		plan.Content = types.JSONText("null")
	}

	const query = `
		INSERT INTO study_plans (id, learner_id, status, subjects, schedule, content, daily_hours, weekly_days, start_date, exam_date, fail_reason, created_at, updated_at)
		VALUES (:id, :learner_id, :status, :subjects, :schedule, :content, :daily_hours, :weekly_days, :start_date, :exam_date, :fail_reason, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create study plan: %w", err)
	}
	return nil
}

// FindByID returns a plan by id.
func (r *PlanRepository) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	query := fmt.Sprintf(`SELECT %s FROM study_plans WHERE id = $1`, planColumns)
	var plan models.StudyPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, err
	}
	return &plan, nil
}

// ListByLearner returns the learner's plans with pagination metadata.
func (r *PlanRepository) ListByLearner(ctx context.Context, learnerID string, status string, page, pageSize int) ([]models.StudyPlan, int, error) {
	base := "FROM study_plans WHERE learner_id = $1"
	args := []interface{}{learnerID}
	if status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, status)
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", planColumns, base, pageSize, offset)
	var plans []models.StudyPlan
	if err := r.db.SelectContext(ctx, &plans, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list study plans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count study plans: %w", err)
	}

	return plans, total, nil
}

// ListActiveByLearner projects plans still in flight (pending or ready,
// exam date not yet passed) into the slim form the conflict checks use.
func (r *PlanRepository) ListActiveByLearner(ctx context.Context, learnerID string) ([]models.ActivePlan, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM study_plans
		WHERE learner_id = $1
		  AND status IN ('pending', 'ready')
		  AND exam_date >= CURRENT_DATE
		ORDER BY created_at DESC`, planColumns)

	var plans []models.StudyPlan
	if err := r.db.SelectContext(ctx, &plans, query, learnerID); err != nil {
		return nil, fmt.Errorf("list active plans: %w", err)
	}

	active := make([]models.ActivePlan, 0, len(plans))
	for _, plan := range plans {
		active = append(active, models.ActivePlan{
			ID:         plan.ID,
			Subjects:   subjectNames(plan.Subjects),
			DailyHours: plan.DailyHours,
			WeeklyDays: plan.WeeklyDays,
			StartDate:  plan.StartDate,
		})
	}
	return active, nil
}

// MarkReady stores the generated content and flips the status.
func (r *PlanRepository) MarkReady(ctx context.Context, id string, content types.JSONText) error {
	const query = `UPDATE study_plans SET status = 'ready', content = $2, fail_reason = '', updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark plan ready: %w", err)
	}
	return requireRow(result, id)
}

// MarkFailed records the generation failure reason.
func (r *PlanRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	const query = `UPDATE study_plans SET status = 'failed', fail_reason = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark plan failed: %w", err)
	}
	return requireRow(result, id)
}

func requireRow(result interface{ RowsAffected() (int64, error) }, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return nil // driver without RowsAffected support
	}
	if affected == 0 {
		return fmt.Errorf("study plan %s not found", id)
	}
	return nil
}

// subjectNames decodes the stored subjects document into bare names. The
// column holds either a list of progress entries or a list of strings.
func subjectNames(raw types.JSONText) []string {
	if len(raw) == 0 {
		return nil
	}
	var entries []models.SubjectProgress
	if err := json.Unmarshal(raw, &entries); err == nil && len(entries) > 0 && entries[0].Subject != "" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Subject)
		}
		return names
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names
	}
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return nil
}
