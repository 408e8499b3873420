package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/pkg/config"
)

func newResolverFixture(t *testing.T) *ConflictResolver {
	t.Helper()
	return NewConflictResolver(config.PlannerConfig{MaxCombinedDailyHours: 12, MinDailyHoursFloor: 2}, nil)
}

func TestAutoResolveReducesCombinedHours(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(6)
	conflicts := []models.ConflictItem{
		{
			Type:     models.ConflictTypeTime,
			Severity: models.SeverityHigh,
			Details:  map[string]any{"combined_daily_hours": 13.0},
		},
	}

	result := resolver.AutoResolve(original, conflicts)
	// 6 - ceil((13-10)/2) = 4
	assert.Equal(t, 4.0, result.AdjustedPlan.Schedule.DailyHours)
	assert.Len(t, result.Adjustments, 1)
	assert.Equal(t, 6.0, original.Schedule.DailyHours, "original plan must be untouched")
}

func TestAutoResolveDuplicateTimeConflictsReduceOnce(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(6)
	// Two active plans at 7h each yield two time conflicts, both detected
	// against the original 6h draft. The first reduction already brings
	// the combined load under the cap, so the second must not fire.
	conflicts := []models.ConflictItem{
		{
			Type:     models.ConflictTypeTime,
			Severity: models.SeverityHigh,
			Details:  map[string]any{"active_plan_id": "plan-a", "active_daily_hours": 7.0, "combined_daily_hours": 13.0},
		},
		{
			Type:     models.ConflictTypeTime,
			Severity: models.SeverityHigh,
			Details:  map[string]any{"active_plan_id": "plan-b", "active_daily_hours": 7.0, "combined_daily_hours": 13.0},
		},
	}

	result := resolver.AutoResolve(original, conflicts)
	assert.Equal(t, 4.0, result.AdjustedPlan.Schedule.DailyHours)
	assert.Len(t, result.Adjustments, 1)
}

func TestDetectThenResolveTwoActivePlans(t *testing.T) {
	service := newConflictFixture(t, conflictFixtureConfig{
		active: []models.ActivePlan{
			{ID: "plan-a", Subjects: []string{"行政法与行政诉讼法"}, DailyHours: 7},
			{ID: "plan-b", Subjects: []string{"商经知"}, DailyHours: 7},
		},
		historical: &models.HistoricalPerformance{AvgDailyHours: 6, MaxDailyHours: 10, Consistency: 0.8},
	})
	resolver := newResolverFixture(t)

	original := basicDraft(6)
	detected := service.DetectConflicts(context.Background(), "learner-1", original)
	require.True(t, detected.HasConflicts)

	result := resolver.AutoResolve(original, detected.Conflicts)
	// 6 - ceil((13-10)/2) = 4, applied once; 7+4 is back under the cap.
	assert.Equal(t, 4.0, result.AdjustedPlan.Schedule.DailyHours)
	assert.Len(t, result.Adjustments, 1)
}

func TestAutoResolveRespectsHoursFloor(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(3)
	conflicts := []models.ConflictItem{
		{Type: models.ConflictTypeTime, Details: map[string]any{"combined_daily_hours": 20.0}},
	}

	result := resolver.AutoResolve(original, conflicts)
	assert.Equal(t, 2.0, result.AdjustedPlan.Schedule.DailyHours)
}

func TestAutoResolveNeverIncreasesDailyHours(t *testing.T) {
	resolver := newResolverFixture(t)

	for _, combined := range []float64{10.5, 12.5, 13, 15, 24} {
		original := basicDraft(5)
		result := resolver.AutoResolve(original, []models.ConflictItem{
			{Type: models.ConflictTypeTime, Details: map[string]any{"combined_daily_hours": combined}},
		})
		assert.LessOrEqual(t, result.AdjustedPlan.Schedule.DailyHours, original.Schedule.DailyHours, "combined %.1f", combined)
	}
}

func TestAutoResolveOverwritesProgress(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(4)
	original.Subjects[0].Progress = 40

	result := resolver.AutoResolve(original, []models.ConflictItem{
		{
			Type: models.ConflictTypeProgress,
			Details: map[string]any{
				"subject":           "民法",
				"recorded_progress": 65.0,
				"recorded_status":   "in_progress",
			},
		},
	})

	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, 65.0, result.AdjustedPlan.Subjects[0].Progress)
	assert.Equal(t, 40.0, original.Subjects[0].Progress, "original plan must be untouched")
}

func TestAutoResolveRemovesOverlappingSubjects(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(4)
	result := resolver.AutoResolve(original, []models.ConflictItem{
		{
			Type:    models.ConflictTypeContent,
			Details: map[string]any{"overlap": []string{"民法"}},
		},
	})

	require.Len(t, result.Adjustments, 1)
	assert.Equal(t, []string{"刑法"}, result.AdjustedPlan.OrderedSubjects)
}

func TestAutoResolveOneAdjustmentPerConflict(t *testing.T) {
	resolver := newResolverFixture(t)

	original := models.PlanDraft{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 20},
			{Subject: "刑法", Status: models.SubjectStatusNotStarted},
			{Subject: "理论法", Status: models.SubjectStatusNotStarted},
		},
		OrderedSubjects: []string{"民法", "刑法", "理论法"},
		Schedule:        models.ScheduleSettings{DailyHours: 6, WeeklyDays: 6},
		ExamDate:        time.Now().AddDate(0, 6, 0),
	}

	conflicts := []models.ConflictItem{
		{Type: models.ConflictTypeTime, Details: map[string]any{"combined_daily_hours": 13.0}},
		{Type: models.ConflictTypeProgress, Details: map[string]any{"subject": "民法", "recorded_progress": 55.0}},
		{Type: models.ConflictTypeContent, Details: map[string]any{"overlap": []string{"理论法"}}},
	}

	result := resolver.AutoResolve(original, conflicts)
	assert.Len(t, result.Adjustments, 3)
	assert.Equal(t, 4.0, result.AdjustedPlan.Schedule.DailyHours)
	assert.Equal(t, 55.0, result.AdjustedPlan.Subjects[0].Progress)
	assert.Equal(t, []string{"民法", "刑法"}, result.AdjustedPlan.OrderedSubjects)
}

func TestAutoResolveSkipsConflictsWithoutDetails(t *testing.T) {
	resolver := newResolverFixture(t)

	original := basicDraft(4)
	result := resolver.AutoResolve(original, []models.ConflictItem{
		{Type: models.ConflictTypeTime, Message: "no details attached"},
	})
	assert.Empty(t, result.Adjustments)
	assert.Equal(t, original.Schedule.DailyHours, result.AdjustedPlan.Schedule.DailyHours)
}
