package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
	"github.com/mindpath/study-plan-api/pkg/config"
)

type stubProgressReader struct {
	snapshots []models.ProgressSnapshot
	err       error
}

func (s *stubProgressReader) FetchCurrent(ctx context.Context, learnerID string) ([]models.ProgressSnapshot, error) {
	return s.snapshots, s.err
}

type stubPerformanceReader struct {
	historical *models.HistoricalPerformance
	recent     *models.RecentPerformance
	err        error
}

func (s *stubPerformanceReader) FetchHistorical(ctx context.Context, learnerID string, windowDays int) (*models.HistoricalPerformance, error) {
	return s.historical, s.err
}

func (s *stubPerformanceReader) FetchRecent(ctx context.Context, learnerID string, windowDays int) (*models.RecentPerformance, error) {
	return s.recent, s.err
}

type stubPlanReader struct {
	active []models.ActivePlan
	err    error
}

func (s *stubPlanReader) ListActiveByLearner(ctx context.Context, learnerID string) ([]models.ActivePlan, error) {
	return s.active, s.err
}

type conflictFixtureConfig struct {
	progress    []models.ProgressSnapshot
	historical  *models.HistoricalPerformance
	recent      *models.RecentPerformance
	active      []models.ActivePlan
	progressErr error
}

func newConflictFixture(t *testing.T, cfg conflictFixtureConfig) *ConflictService {
	t.Helper()
	if cfg.historical == nil {
		cfg.historical = &models.HistoricalPerformance{AvgDailyHours: 4, MaxDailyHours: 8, Consistency: 0.8}
	}
	if cfg.recent == nil {
		cfg.recent = &models.RecentPerformance{AvgCorrectRate: 0.8, AvgCompletionRate: 0.9}
	}
	return NewConflictService(
		&stubProgressReader{snapshots: cfg.progress, err: cfg.progressErr},
		&stubPerformanceReader{historical: cfg.historical, recent: cfg.recent},
		&stubPlanReader{active: cfg.active},
		reference.Default(),
		config.PlannerConfig{MaxCombinedDailyHours: 12, SnapshotWindowDays: 90, RecentWindowDays: 14},
		nil,
	)
}

func basicDraft(daily float64) models.PlanDraft {
	return models.PlanDraft{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 60},
			{Subject: "刑法", Status: models.SubjectStatusNotStarted},
		},
		OrderedSubjects: []string{"民法", "刑法"},
		Schedule:        models.ScheduleSettings{DailyHours: daily, WeeklyDays: 6},
		ExamDate:        time.Now().AddDate(0, 6, 0),
	}
}

func TestDetectConflictsCleanPlan(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		progress: []models.ProgressSnapshot{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 50, UpdatedAt: time.Now()},
		},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(4))
	assert.False(t, result.HasConflicts)
	assert.Empty(t, result.Conflicts)
}

func TestDetectConflictsProgressRegression(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		progress: []models.ProgressSnapshot{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 75, UpdatedAt: time.Now()},
		},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(4))
	require.True(t, result.HasConflicts)

	found := false
	for _, conflict := range result.Conflicts {
		if conflict.Type == models.ConflictTypeProgress {
			found = true
			assert.Equal(t, models.SeverityHigh, conflict.Severity)
			assert.Equal(t, 75.0, conflict.Details["recorded_progress"])
		}
	}
	assert.True(t, found, "expected a progress conflict")
}

func TestDetectConflictsStaleProgressDiscrepancy(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		progress: []models.ProgressSnapshot{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 30, UpdatedAt: time.Now().AddDate(0, 0, -45)},
		},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(4))
	require.True(t, result.HasConflicts)
	assert.Equal(t, models.ConflictTypeProgress, result.Conflicts[0].Type)
	assert.Equal(t, models.SeverityMedium, result.Conflicts[0].Severity)
}

func TestDetectConflictsCombinedDailyHours(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		active: []models.ActivePlan{
			{ID: "plan-a", Subjects: []string{"行政法与行政诉讼法"}, DailyHours: 7},
			{ID: "plan-b", Subjects: []string{"商经知"}, DailyHours: 7},
		},
		historical: &models.HistoricalPerformance{AvgDailyHours: 6, MaxDailyHours: 10, Consistency: 0.8},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(6))
	require.True(t, result.HasConflicts)

	timeConflicts := 0
	for _, conflict := range result.Conflicts {
		if conflict.Type == models.ConflictTypeTime {
			timeConflicts++
			assert.Equal(t, models.SeverityHigh, conflict.Severity)
			assert.Equal(t, 13.0, conflict.Details["combined_daily_hours"])
			assert.Equal(t, 7.0, conflict.Details["active_daily_hours"])
		}
	}
	assert.Equal(t, 2, timeConflicts)
}

func TestDetectConflictsActivePlanOverlap(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		active: []models.ActivePlan{
			{ID: "plan-a", Subjects: []string{"民法", "理论法"}, DailyHours: 2},
		},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(4))
	require.True(t, result.HasConflicts)
	assert.Equal(t, models.ConflictTypeContent, result.Conflicts[0].Type)
	assert.Equal(t, []string{"民法"}, result.Conflicts[0].Details["overlap"])
}

func TestDetectConflictsExceedsHistoricalMax(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		historical: &models.HistoricalPerformance{AvgDailyHours: 3, MaxDailyHours: 5, Consistency: 0.8},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(8))
	require.True(t, result.HasConflicts)
	assert.Equal(t, models.ConflictTypeTime, result.Conflicts[0].Type)
	assert.NotEmpty(t, result.Suggestions)
}

func TestDetectConflictsAdvancedBeforeFoundation(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{})

	draft := models.PlanDraft{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 30},
			{Subject: "民事诉讼法", Status: models.SubjectStatusNotStarted},
		},
		OrderedSubjects: []string{"民事诉讼法", "民法"},
		Schedule:        models.ScheduleSettings{DailyHours: 3, WeeklyDays: 6},
		ExamDate:        time.Now().AddDate(0, 6, 0),
	}

	result := service.DetectConflicts(context.Background(), "learner-1", draft)
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "民事诉讼法")
}

func TestDetectConflictsDegradedOnFetchFailure(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		progressErr: errors.New("connection refused"),
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(4))
	assert.False(t, result.HasConflicts)
	assert.Empty(t, result.Conflicts)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "conflict detection unavailable, plan creation may proceed", result.Warnings[0])
}

func TestDetectConflictsLowCompletionLongSessions(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		recent:     &models.RecentPerformance{AvgCorrectRate: 0.8, AvgCompletionRate: 0.5},
		historical: &models.HistoricalPerformance{AvgDailyHours: 5, MaxDailyHours: 9, Consistency: 0.8},
	})

	result := service.DetectConflicts(context.Background(), "learner-1", basicDraft(5))
	require.NotEmpty(t, result.Warnings)
	assert.Contains(t, result.Warnings[0], "completion rate")
}
