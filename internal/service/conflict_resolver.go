package service

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/pkg/config"
)

const combinedHoursTarget = 10.0

// ConflictResolver applies one bounded correction per detected conflict
// to a deep copy of the plan. It is single-pass: the adjusted plan is
// not re-checked, so callers treat the output as best effort.
type ConflictResolver struct {
	cfg    config.PlannerConfig
	logger *zap.Logger
}

// NewConflictResolver wires the resolver.
func NewConflictResolver(cfg config.PlannerConfig, logger *zap.Logger) *ConflictResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinDailyHoursFloor <= 0 {
		cfg.MinDailyHoursFloor = 2
	}
	return &ConflictResolver{cfg: cfg, logger: logger}
}

// AutoResolve corrects the supplied conflicts, producing the adjusted
// plan and exactly one changelog line per applied correction. Daily
// hours only ever shrink, never grow.
func (r *ConflictResolver) AutoResolve(original models.PlanDraft, conflicts []models.ConflictItem) *models.ResolutionResult {
	adjusted := original.Clone()
	adjustments := []string{}

	for _, conflict := range conflicts {
		switch conflict.Type {
		case models.ConflictTypeTime:
			if line, ok := r.resolveTime(&adjusted, conflict); ok {
				adjustments = append(adjustments, line)
			}
		case models.ConflictTypeProgress:
			if line, ok := r.resolveProgress(&adjusted, conflict); ok {
				adjustments = append(adjustments, line)
			}
		case models.ConflictTypeContent:
			if line, ok := r.resolveContent(&adjusted, conflict); ok {
				adjustments = append(adjustments, line)
			}
		}
	}

	r.logger.Debug("conflicts auto-resolved",
		zap.Int("conflicts", len(conflicts)),
		zap.Int("adjustments", len(adjustments)),
	)
	return &models.ResolutionResult{AdjustedPlan: adjusted, Adjustments: adjustments}
}

// resolveTime shrinks the daily budget when a combined-total overrun was
// detected, bounded below by the configured floor.
func (r *ConflictResolver) resolveTime(plan *models.PlanDraft, conflict models.ConflictItem) (string, bool) {
	combined, ok := detailFloat(conflict.Details, "combined_daily_hours")
	if !ok {
		return "", false
	}
	// The detected combined total is stale once an earlier conflict in
	// the same pass has already shrunk the daily budget. When the active
	// plan's own budget is known, recompute against the current draft so
	// an already-sufficient reduction is not applied twice.
	if activeHours, known := detailFloat(conflict.Details, "active_daily_hours"); known {
		combined = activeHours + plan.Schedule.DailyHours
	}
	if combined <= r.cfg.MaxCombinedDailyHours {
		return "", false
	}

	reduction := math.Ceil((combined - combinedHoursTarget) / 2)
	before := plan.Schedule.DailyHours
	after := math.Max(before-reduction, r.cfg.MinDailyHoursFloor)
	if after >= before {
		return "", false
	}
	plan.Schedule.DailyHours = after
	return fmt.Sprintf("reduced daily study hours from %.1f to %.1f to keep the combined load with active plans manageable", before, after), true
}

// resolveProgress overwrites the claimed progress with the recorded
// authoritative value carried in the conflict details.
func (r *ConflictResolver) resolveProgress(plan *models.PlanDraft, conflict models.ConflictItem) (string, bool) {
	subject, ok := detailString(conflict.Details, "subject")
	if !ok {
		return "", false
	}
	recorded, ok := detailFloat(conflict.Details, "recorded_progress")
	if !ok {
		return "", false
	}

	for i := range plan.Subjects {
		if plan.Subjects[i].Subject != subject {
			continue
		}
		before := plan.Subjects[i].Progress
		plan.Subjects[i].Progress = recorded
		if status, hasStatus := detailString(conflict.Details, "recorded_status"); hasStatus {
			plan.Subjects[i].Status = models.SubjectStatus(status)
		}
		return fmt.Sprintf("corrected %s progress from %.0f%% to the recorded %.0f%%", subject, before, recorded), true
	}
	return "", false
}

// resolveContent drops subjects already covered by an active plan from
// the ordered list.
func (r *ConflictResolver) resolveContent(plan *models.PlanDraft, conflict models.ConflictItem) (string, bool) {
	overlap := detailStrings(conflict.Details, "overlap")
	if len(overlap) == 0 {
		return "", false
	}

	drop := make(map[string]bool, len(overlap))
	for _, subject := range overlap {
		drop[subject] = true
	}

	var removed []string
	kept := plan.OrderedSubjects[:0]
	for _, subject := range plan.OrderedSubjects {
		if drop[subject] {
			removed = append(removed, subject)
			continue
		}
		kept = append(kept, subject)
	}
	plan.OrderedSubjects = kept

	if len(removed) == 0 {
		return "", false
	}
	return fmt.Sprintf("removed %d subject(s) already covered by an active plan: %v", len(removed), removed), true
}

func detailFloat(details map[string]any, key string) (float64, bool) {
	if details == nil {
		return 0, false
	}
	switch v := details[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

func detailString(details map[string]any, key string) (string, bool) {
	if details == nil {
		return "", false
	}
	v, ok := details[key].(string)
	return v, ok
}

func detailStrings(details map[string]any, key string) []string {
	if details == nil {
		return nil
	}
	switch v := details[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
