package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/prompt"
	"github.com/mindpath/study-plan-api/internal/reference"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
	"github.com/mindpath/study-plan-api/pkg/config"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (g *fakeGenerator) Generate(ctx context.Context, p string) (string, error) {
	g.prompts = append(g.prompts, p)
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

type fakePlanRecorder struct {
	records map[string]*models.StudyPlan
}

func newFakePlanRecorder() *fakePlanRecorder {
	return &fakePlanRecorder{records: make(map[string]*models.StudyPlan)}
}

func (f *fakePlanRecorder) Create(ctx context.Context, plan *models.StudyPlan) error {
	if plan.ID == "" {
		plan.ID = "plan-1"
	}
	clone := *plan
	f.records[plan.ID] = &clone
	return nil
}

func (f *fakePlanRecorder) FindByID(ctx context.Context, id string) (*models.StudyPlan, error) {
	plan, ok := f.records[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return plan, nil
}

func (f *fakePlanRecorder) ListByLearner(ctx context.Context, learnerID string, status string, page, pageSize int) ([]models.StudyPlan, int, error) {
	var out []models.StudyPlan
	for _, plan := range f.records {
		if plan.LearnerID == learnerID {
			out = append(out, *plan)
		}
	}
	return out, len(out), nil
}

func (f *fakePlanRecorder) MarkReady(ctx context.Context, id string, content types.JSONText) error {
	plan, ok := f.records[id]
	if !ok {
		return errors.New("not found")
	}
	plan.Status = models.PlanStatusReady
	plan.Content = content
	return nil
}

func (f *fakePlanRecorder) MarkFailed(ctx context.Context, id string, reason string) error {
	plan, ok := f.records[id]
	if !ok {
		return errors.New("not found")
	}
	plan.Status = models.PlanStatusFailed
	plan.FailReason = reason
	return nil
}

// longPlanText is representative generated output long enough to pass
// the structural length checks.
const longPlanText = "第一阶段以民法为主，每天3小时系统听课并完成配套练习，打牢基础概念。第二阶段转入刑法，保持2小时做题节奏，定期复盘错题并整理笔记，巩固重点罪名。冲刺阶段集中背诵与模拟测试，查漏补缺，确保各科按既定计划稳步推进，留出机动时间应对突发情况。"

func newPlanFixture(t *testing.T, generator *fakeGenerator, recorder *fakePlanRecorder) *PlanService {
	t.Helper()
	catalog := reference.Default()
	cfg := config.PlannerConfig{
		BaselineSubjectHours:  60,
		ReviewBufferDays:      7,
		MaxCombinedDailyHours: 12,
		MinDailyHoursFloor:    2,
		SnapshotWindowDays:    90,
		RecentWindowDays:      14,
	}
	priority := NewPriorityService(catalog, nil, nil)
	conflicts := NewConflictService(
		&stubProgressReader{},
		&stubPerformanceReader{
			historical: &models.HistoricalPerformance{AvgDailyHours: 4, MaxDailyHours: 8, Consistency: 0.8},
			recent:     &models.RecentPerformance{AvgCorrectRate: 0.8, AvgCompletionRate: 0.9},
		},
		&stubPlanReader{},
		catalog,
		cfg,
		nil,
	)
	resolver := NewConflictResolver(cfg, nil)
	loader := prompt.StaticLoader{Set: prompt.DefaultTemplates()}
	return NewPlanService(priority, conflicts, resolver, generator, loader, recorder, cfg, nil, nil, nil)
}

func TestTotalStudyHours(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	total := service.TotalStudyHours([]models.SubjectProgress{
		{Subject: "民法", Status: models.SubjectStatusCompleted, Progress: 100},
		{Subject: "刑法", Status: models.SubjectStatusInProgress, Progress: 50},
		{Subject: "理论法", Status: models.SubjectStatusNotStarted},
	})
	// 0.2*60 + 60*0.5 + 60
	assert.Equal(t, 102.0, total)
}

func TestEstimatedWeeks(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	weeks := service.EstimatedWeeks(102, models.ScheduleSettings{DailyHours: 4, WeeklyDays: 6})
	assert.Equal(t, 5, weeks)

	assert.Equal(t, 0, service.EstimatedWeeks(102, models.ScheduleSettings{}))
}

func TestPaceLabels(t *testing.T) {
	assert.Equal(t, "保守", paceLabel(300))
	assert.Equal(t, "适中", paceLabel(450))
	assert.Equal(t, "高强度", paceLabel(600))
}

func TestBuildPromptsLeavesNoPlaceholders(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	draft := basicDraft(4)
	prompts, pctx, err := service.BuildPrompts(draft, 420, 18, dto.PlanHints{})
	require.NoError(t, err)
	require.Len(t, prompts, 3)
	assert.Greater(t, pctx.DaysRemaining, 0)
	assert.Equal(t, pctx.DaysRemaining-7, pctx.AvailableDays)

	for tier, text := range prompts {
		assert.NotContains(t, text, "{{", "tier %s", tier)
		assert.NotContains(t, text, "}}", "tier %s", tier)
	}
	assert.Contains(t, prompts[prompt.TierOverall], "民法、刑法")
}

func TestBuildPromptsAppendsHintsVerbatim(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	prompts, _, err := service.BuildPrompts(basicDraft(4), 420, 18, dto.PlanHints{
		LearningStyle:   "喜欢先听课再做题",
		ReviewFrequency: "每周日统一复盘",
	})
	require.NoError(t, err)
	for _, text := range prompts {
		assert.Contains(t, text, "喜欢先听课再做题")
		assert.Contains(t, text, "每周日统一复盘")
	}
}

func TestBuildPromptsRejectsPastExamDate(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	draft := basicDraft(4)
	draft.ExamDate = time.Now().AddDate(0, 0, -1)
	_, _, err := service.BuildPrompts(draft, 420, 18, dto.PlanHints{})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidInput.Code, appErr.Code)
}

func TestValidatePlanConsistency(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	report := service.ValidatePlanConsistency(&models.GeneratedPlan{
		OverallStrategy: longPlanText,
		WeeklyPlan:      longPlanText,
		DailyPlan:       longPlanText,
	}, []string{"民法", "刑法"})
	assert.True(t, report.IsConsistent)
	assert.Empty(t, report.Issues)

	report = service.ValidatePlanConsistency(&models.GeneratedPlan{
		OverallStrategy: "太短",
		WeeklyPlan:      longPlanText,
		DailyPlan:       longPlanText,
	}, nil)
	assert.False(t, report.IsConsistent)

	report = service.ValidatePlanConsistency(&models.GeneratedPlan{
		OverallStrategy: longPlanText,
		WeeklyPlan:      longPlanText,
		DailyPlan:       longPlanText + "晚上安排15小时做题。",
	}, nil)
	assert.False(t, report.IsConsistent)
	assert.Contains(t, report.Issues[0], "15")
}

func TestValidatePlanConsistencyDispersion(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	subjects := []string{"民法", "刑法", "民事诉讼法", "刑事诉讼法", "行政法与行政诉讼法", "商经知", "理论法"}
	body := longPlanText + strings.Join(subjects, "，")
	report := service.ValidatePlanConsistency(&models.GeneratedPlan{
		OverallStrategy: body,
		WeeklyPlan:      body,
		DailyPlan:       body,
	}, subjects)
	assert.False(t, report.IsConsistent)
	assert.Contains(t, report.Issues, "too dispersed, focus is diluted")
}

func TestGeneratePlanSyncSuccess(t *testing.T) {
	generator := &fakeGenerator{response: longPlanText}
	recorder := newFakePlanRecorder()
	service := newPlanFixture(t, generator, recorder)

	resp, err := service.GeneratePlan(context.Background(), "learner-1", dto.GeneratePlanRequest{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 60},
			{Subject: "刑法", Status: models.SubjectStatusNotStarted},
		},
		Schedule: models.ScheduleSettings{DailyHours: 4, WeeklyDays: 6},
		ExamDate: time.Now().AddDate(0, 8, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, models.PlanStatusReady, resp.Status)
	require.NotNil(t, resp.Plan)
	assert.Equal(t, longPlanText, resp.Plan.OverallStrategy)
	assert.NotNil(t, resp.Priority, "ordering should be auto-computed when absent")
	assert.Len(t, generator.prompts, 3)

	stored, err := recorder.FindByID(context.Background(), resp.PlanID)
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusReady, stored.Status)
	assert.NotEmpty(t, stored.Content)
}

func TestGeneratePlanGenerationFailureMarksFailed(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("upstream timeout")}
	recorder := newFakePlanRecorder()
	service := newPlanFixture(t, generator, recorder)

	_, err := service.GeneratePlan(context.Background(), "learner-1", dto.GeneratePlanRequest{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 60},
		},
		OrderedSubjects: []string{"民法"},
		Schedule:        models.ScheduleSettings{DailyHours: 4, WeeklyDays: 6},
		ExamDate:        time.Now().AddDate(0, 8, 0),
	})
	require.Error(t, err)

	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrUpstreamGeneration.Code, appErr.Code)

	stored, err := recorder.FindByID(context.Background(), "plan-1")
	require.NoError(t, err)
	assert.Equal(t, models.PlanStatusFailed, stored.Status)
	assert.Contains(t, stored.FailReason, "upstream timeout")
}

func TestGeneratePlanAutoResolveAdjustsDraft(t *testing.T) {
	generator := &fakeGenerator{response: longPlanText}
	recorder := newFakePlanRecorder()

	catalog := reference.Default()
	cfg := config.PlannerConfig{
		BaselineSubjectHours:  60,
		ReviewBufferDays:      7,
		MaxCombinedDailyHours: 12,
		MinDailyHoursFloor:    2,
	}
	conflicts := NewConflictService(
		&stubProgressReader{},
		&stubPerformanceReader{
			historical: &models.HistoricalPerformance{AvgDailyHours: 6, MaxDailyHours: 10, Consistency: 0.8},
			recent:     &models.RecentPerformance{AvgCorrectRate: 0.8, AvgCompletionRate: 0.9},
		},
		&stubPlanReader{active: []models.ActivePlan{
			{ID: "plan-a", Subjects: []string{"商经知"}, DailyHours: 7},
		}},
		catalog,
		cfg,
		nil,
	)
	service := NewPlanService(
		NewPriorityService(catalog, nil, nil),
		conflicts,
		NewConflictResolver(cfg, nil),
		generator,
		prompt.StaticLoader{Set: prompt.DefaultTemplates()},
		recorder,
		cfg,
		nil, nil, nil,
	)

	resp, err := service.GeneratePlan(context.Background(), "learner-1", dto.GeneratePlanRequest{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 60},
		},
		OrderedSubjects: []string{"民法"},
		Schedule:        models.ScheduleSettings{DailyHours: 6, WeeklyDays: 6},
		ExamDate:        time.Now().AddDate(0, 8, 0),
		CheckConflicts:  true,
		AutoResolve:     true,
	})
	require.NoError(t, err)

	require.NotNil(t, resp.ConflictCheck)
	assert.True(t, resp.ConflictCheck.HasConflicts)
	require.NotNil(t, resp.Resolution)
	// combined 13 → reduce by ceil((13-10)/2) = 2
	assert.Equal(t, 4.0, resp.Resolution.AdjustedPlan.Schedule.DailyHours)

	stored, err := recorder.FindByID(context.Background(), resp.PlanID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, stored.DailyHours)
}

func TestGeneratePlanRejectsEmptySubjects(t *testing.T) {
	service := newPlanFixture(t, &fakeGenerator{response: longPlanText}, newFakePlanRecorder())

	_, err := service.GeneratePlan(context.Background(), "learner-1", dto.GeneratePlanRequest{
		Schedule: models.ScheduleSettings{DailyHours: 4, WeeklyDays: 6},
		ExamDate: time.Now().AddDate(0, 8, 0),
	})
	require.Error(t, err)
}
