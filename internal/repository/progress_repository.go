package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mindpath/study-plan-api/internal/models"
)

// ProgressRepository reads the learner's persisted per-subject progress.
// The planner only ever reads these rows; writes happen in the learning
// tracker that owns the table.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new repository instance.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// FetchCurrent returns the authoritative progress snapshot per subject,
// including the last-updated timestamp used for staleness checks.
func (r *ProgressRepository) FetchCurrent(ctx context.Context, learnerID string) ([]models.ProgressSnapshot, error) {
	const query = `
		SELECT subject, status, progress, updated_at
		FROM learner_subject_progress
		WHERE learner_id = $1
		ORDER BY subject`

	var snapshots []models.ProgressSnapshot
	if err := r.db.SelectContext(ctx, &snapshots, query, learnerID); err != nil {
		return nil, fmt.Errorf("fetch current progress: %w", err)
	}
	return snapshots, nil
}
