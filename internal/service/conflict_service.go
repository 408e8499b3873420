package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
	"github.com/mindpath/study-plan-api/pkg/config"
)

const (
	staleAfter           = 30 * 24 * time.Hour
	staleDiscrepancy     = 20.0
	overloadFactor       = 1.5
	restConsistencyMax   = 0.5
	lowCorrectRate       = 0.6
	lowCompletionRate    = 0.7
	longSessionHours     = 4.0
	consecutiveHardLimit = 3
	foundationProgress   = 50.0
)

type progressReader interface {
	FetchCurrent(ctx context.Context, learnerID string) ([]models.ProgressSnapshot, error)
}

type performanceReader interface {
	FetchHistorical(ctx context.Context, learnerID string, windowDays int) (*models.HistoricalPerformance, error)
	FetchRecent(ctx context.Context, learnerID string, windowDays int) (*models.RecentPerformance, error)
}

type activePlanReader interface {
	ListActiveByLearner(ctx context.Context, learnerID string) ([]models.ActivePlan, error)
}

// learnerSnapshots is everything the checks compare the proposed plan
// against, fetched once per detection run.
type learnerSnapshots struct {
	Progress   []models.ProgressSnapshot
	Historical *models.HistoricalPerformance
	Recent     *models.RecentPerformance
	Active     []models.ActivePlan
}

// ConflictService runs the five independent checks that compare a
// proposed plan against the learner's persisted state. Detection is
// advisory: a fetch failure degrades to a warning, never an error.
type ConflictService struct {
	progress    progressReader
	performance performanceReader
	plans       activePlanReader
	catalog     *reference.Catalog
	cfg         config.PlannerConfig
	logger      *zap.Logger
}

// NewConflictService wires the detector dependencies.
func NewConflictService(progress progressReader, performance performanceReader, plans activePlanReader, catalog *reference.Catalog, cfg config.PlannerConfig, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{
		progress:    progress,
		performance: performance,
		plans:       plans,
		catalog:     catalog,
		cfg:         cfg,
		logger:      logger,
	}
}

// DetectConflicts fetches the learner's snapshots and runs all checks
// against the proposed plan. Any fetch failure collapses into a single
// advisory warning so plan creation is never blocked by missing data.
func (s *ConflictService) DetectConflicts(ctx context.Context, learnerID string, plan models.PlanDraft) *models.ConflictCheckResult {
	result := &models.ConflictCheckResult{
		Conflicts:   []models.ConflictItem{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	snapshots, err := s.fetchSnapshots(ctx, learnerID)
	if err != nil {
		s.logger.Warn("snapshot fetch failed, conflict detection degraded",
			zap.String("learner_id", learnerID),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, "conflict detection unavailable, plan creation may proceed")
		return result
	}

	s.checkProgress(plan, snapshots.Progress, result)
	s.checkTimeSanity(plan, snapshots.Historical, result)
	s.checkActivePlans(plan, snapshots.Active, result)
	s.checkContentContinuity(plan, result)
	s.checkDifficultyAdaptation(plan, snapshots.Recent, result)

	result.HasConflicts = len(result.Conflicts) > 0
	s.logger.Debug("conflict detection finished",
		zap.String("learner_id", learnerID),
		zap.Int("conflicts", len(result.Conflicts)),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result
}

// fetchSnapshots loads the four learner snapshots concurrently. A single
// failure fails the whole fetch; the caller handles degradation.
func (s *ConflictService) fetchSnapshots(ctx context.Context, learnerID string) (*learnerSnapshots, error) {
	snapshots := &learnerSnapshots{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		progress, err := s.progress.FetchCurrent(gctx, learnerID)
		if err != nil {
			return fmt.Errorf("current progress: %w", err)
		}
		snapshots.Progress = progress
		return nil
	})
	g.Go(func() error {
		hist, err := s.performance.FetchHistorical(gctx, learnerID, s.cfg.SnapshotWindowDays)
		if err != nil {
			return fmt.Errorf("historical performance: %w", err)
		}
		snapshots.Historical = hist
		return nil
	})
	g.Go(func() error {
		recent, err := s.performance.FetchRecent(gctx, learnerID, s.cfg.RecentWindowDays)
		if err != nil {
			return fmt.Errorf("recent performance: %w", err)
		}
		snapshots.Recent = recent
		return nil
	})
	g.Go(func() error {
		active, err := s.plans.ListActiveByLearner(gctx, learnerID)
		if err != nil {
			return fmt.Errorf("active plans: %w", err)
		}
		snapshots.Active = active
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return snapshots, nil
}

// checkProgress compares each proposed subject against the persisted
// snapshot. Proposed progress below the recorded value is always a high
// conflict; stale data with a large discrepancy is a medium one.
func (s *ConflictService) checkProgress(plan models.PlanDraft, persisted []models.ProgressSnapshot, result *models.ConflictCheckResult) {
	recorded := make(map[string]models.ProgressSnapshot, len(persisted))
	for _, snap := range persisted {
		recorded[snap.Subject] = snap
	}

	now := time.Now()
	for _, proposed := range plan.Subjects {
		snap, ok := recorded[proposed.Subject]
		if !ok {
			continue
		}
		if proposed.Progress < snap.Progress {
			result.Conflicts = append(result.Conflicts, models.ConflictItem{
				Type:     models.ConflictTypeProgress,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("proposed progress for %s (%.0f%%) is below recorded progress (%.0f%%)", proposed.Subject, proposed.Progress, snap.Progress),
				Details: map[string]any{
					"subject":           proposed.Subject,
					"claimed_progress":  proposed.Progress,
					"recorded_progress": snap.Progress,
					"recorded_status":   string(snap.Status),
				},
			})
			continue
		}
		if now.Sub(snap.UpdatedAt) > staleAfter && math.Abs(proposed.Progress-snap.Progress) > staleDiscrepancy {
			result.Conflicts = append(result.Conflicts, models.ConflictItem{
				Type:     models.ConflictTypeProgress,
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("stale progress data for %s with large discrepancy (recorded %.0f%% over 30 days ago, proposed %.0f%%)", proposed.Subject, snap.Progress, proposed.Progress),
				Details: map[string]any{
					"subject":           proposed.Subject,
					"claimed_progress":  proposed.Progress,
					"recorded_progress": snap.Progress,
					"recorded_status":   string(snap.Status),
				},
			})
		}
	}
}

// checkTimeSanity compares the requested schedule against sustained
// historical behaviour.
func (s *ConflictService) checkTimeSanity(plan models.PlanDraft, hist *models.HistoricalPerformance, result *models.ConflictCheckResult) {
	if hist == nil {
		return
	}
	daily := plan.Schedule.DailyHours

	if hist.MaxDailyHours > 0 && daily > hist.MaxDailyHours {
		result.Conflicts = append(result.Conflicts, models.ConflictItem{
			Type:     models.ConflictTypeTime,
			Severity: models.SeverityHigh,
			Message:  fmt.Sprintf("planned %.1f hours/day exceeds the historical maximum of %.1f hours/day", daily, hist.MaxDailyHours),
			Details: map[string]any{
				"daily_hours":     daily,
				"max_daily_hours": hist.MaxDailyHours,
			},
		})
		result.Suggestions = append(result.Suggestions, fmt.Sprintf("start at or below %.1f hours/day and ramp up gradually", hist.MaxDailyHours))
	} else if hist.AvgDailyHours > 0 && daily > hist.AvgDailyHours*overloadFactor {
		result.Warnings = append(result.Warnings, fmt.Sprintf("planned %.1f hours/day is well above the recent average of %.1f hours/day", daily, hist.AvgDailyHours))
		result.Suggestions = append(result.Suggestions, "consider a smaller daily budget to keep the plan sustainable")
	}

	if plan.Schedule.WeeklyDays >= 7 && hist.Consistency > 0 && hist.Consistency < restConsistencyMax {
		result.Suggestions = append(result.Suggestions, "study consistency has been low; keeping at least one rest day per week usually improves follow-through")
	}
}

// checkActivePlans flags subject overlap and combined daily-hour
// overruns against every plan still in flight.
func (s *ConflictService) checkActivePlans(plan models.PlanDraft, active []models.ActivePlan, result *models.ConflictCheckResult) {
	proposed := make(map[string]bool, len(plan.Subjects))
	for _, subject := range plan.Subjects {
		proposed[subject.Subject] = true
	}

	for _, other := range active {
		var overlap []string
		for _, subject := range other.Subjects {
			if proposed[subject] {
				overlap = append(overlap, subject)
			}
		}
		if len(overlap) > 0 {
			result.Conflicts = append(result.Conflicts, models.ConflictItem{
				Type:     models.ConflictTypeContent,
				Severity: models.SeverityMedium,
				Message:  fmt.Sprintf("subjects %s already appear in active plan %s", strings.Join(overlap, ", "), other.ID),
				Details: map[string]any{
					"active_plan_id": other.ID,
					"overlap":        overlap,
				},
			})
		}

		combined := other.DailyHours + plan.Schedule.DailyHours
		if combined > s.cfg.MaxCombinedDailyHours {
			result.Conflicts = append(result.Conflicts, models.ConflictItem{
				Type:     models.ConflictTypeTime,
				Severity: models.SeverityHigh,
				Message:  fmt.Sprintf("combined daily load of %.1f hours with active plan %s exceeds the %.0f hour limit", combined, other.ID, s.cfg.MaxCombinedDailyHours),
				Details: map[string]any{
					"active_plan_id":       other.ID,
					"active_daily_hours":   other.DailyHours,
					"combined_daily_hours": combined,
				},
			})
		}
	}
}

// checkContentContinuity validates the proposed ordering: advanced
// subjects should not run ahead of their foundational subject, and long
// hard streaks wear learners down.
func (s *ConflictService) checkContentContinuity(plan models.PlanDraft, result *models.ConflictCheckResult) {
	ordered := plan.OrderedSubjects
	if len(ordered) == 0 {
		for _, subject := range plan.Subjects {
			ordered = append(ordered, subject.Subject)
		}
	}

	progressBySubject := make(map[string]models.SubjectProgress, len(plan.Subjects))
	for _, subject := range plan.Subjects {
		progressBySubject[subject.Subject] = subject
	}
	position := make(map[string]int, len(ordered))
	for i, subject := range ordered {
		position[subject] = i
	}

	for i, subject := range ordered {
		core, ok := s.catalog.CoreOf(subject)
		if !ok {
			continue
		}
		if j, scheduled := position[core]; scheduled && j > i {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s is scheduled before its foundational subject %s; consider reordering", subject, core))
			continue
		}
		if base, known := progressBySubject[core]; known && base.Progress < foundationProgress {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s builds on %s, which is only %.0f%% complete; consider consolidating the foundation first", subject, core, base.Progress))
		}
	}

	streak := 0
	for _, subject := range ordered {
		if s.catalog.IsHard(subject) {
			streak++
			if streak == consecutiveHardLimit {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%d consecutive hard subjects in the ordering; interleaving easier material helps retention", consecutiveHardLimit))
				break
			}
		} else {
			streak = 0
		}
	}
}

// checkDifficultyAdaptation compares the plan's difficulty mix against
// recent answer quality and completion follow-through.
func (s *ConflictService) checkDifficultyAdaptation(plan models.PlanDraft, recent *models.RecentPerformance, result *models.ConflictCheckResult) {
	if recent == nil {
		return
	}

	ordered := plan.OrderedSubjects
	if len(ordered) == 0 {
		for _, subject := range plan.Subjects {
			ordered = append(ordered, subject.Subject)
		}
	}
	hard := 0
	for _, subject := range ordered {
		if s.catalog.IsHard(subject) {
			hard++
		}
	}

	if recent.AvgCorrectRate > 0 && recent.AvgCorrectRate < lowCorrectRate && len(ordered) > 0 && hard*2 > len(ordered) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("recent correct rate is %.0f%% and over half the plan is hard subjects; consider a lighter difficulty mix", recent.AvgCorrectRate*100))
	}
	if recent.AvgCompletionRate > 0 && recent.AvgCompletionRate < lowCompletionRate && plan.Schedule.DailyHours > longSessionHours {
		result.Warnings = append(result.Warnings, fmt.Sprintf("recent completion rate is %.0f%% and sessions over %.0f hours are planned; shorter sessions tend to complete more often", recent.AvgCompletionRate*100, longSessionHours))
	}
}
