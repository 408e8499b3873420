package service

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/llm"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/prompt"
	"github.com/mindpath/study-plan-api/pkg/config"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
	"github.com/mindpath/study-plan-api/pkg/jobs"
)

const (
	paceConservativeMax = 300.0
	paceIntensiveMin    = 600.0

	minOverallLength = 80
	minTierLength    = 50
	maxPlanSubjects  = 5
	minSessionHours  = 1.0
	maxSessionHours  = 12.0

	// GenerationJobType identifies queued plan-generation work.
	GenerationJobType = "plan_generation"
)

// hourPattern extracts literal hour figures ("3小时", "2.5 h") from the
// daily-plan text for range validation.
var hourPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:小时|h)`)

type planRecorder interface {
	Create(ctx context.Context, plan *models.StudyPlan) error
	FindByID(ctx context.Context, id string) (*models.StudyPlan, error)
	ListByLearner(ctx context.Context, learnerID string, status string, page, pageSize int) ([]models.StudyPlan, int, error)
	MarkReady(ctx context.Context, id string, content types.JSONText) error
	MarkFailed(ctx context.Context, id string, reason string) error
}

type generationObserver interface {
	ObserveGeneration(tier string, duration time.Duration, success bool)
	RecordPlanOutcome(status string)
}

// PlanService assembles the full pipeline: ranking, conflict analysis,
// time-budget arithmetic, prompt construction, text generation and
// persistence.
type PlanService struct {
	priority  *PriorityService
	conflicts *ConflictService
	resolver  *ConflictResolver
	generator llm.Generator
	loader    prompt.Loader
	plans     planRecorder
	cfg       config.PlannerConfig
	metrics   generationObserver
	validator *validator.Validate
	logger    *zap.Logger

	queue *jobs.Queue
}

// NewPlanService wires the pipeline. Metrics are optional.
func NewPlanService(
	priority *PriorityService,
	conflicts *ConflictService,
	resolver *ConflictResolver,
	generator llm.Generator,
	loader prompt.Loader,
	plans planRecorder,
	cfg config.PlannerConfig,
	metrics generationObserver,
	validate *validator.Validate,
	logger *zap.Logger,
) *PlanService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaselineSubjectHours <= 0 {
		cfg.BaselineSubjectHours = 60
	}
	if cfg.ReviewBufferDays <= 0 {
		cfg.ReviewBufferDays = 7
	}
	return &PlanService{
		priority:  priority,
		conflicts: conflicts,
		resolver:  resolver,
		generator: generator,
		loader:    loader,
		plans:     plans,
		cfg:       cfg,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// SetQueue attaches the background queue used for async generation.
func (s *PlanService) SetQueue(queue *jobs.Queue) {
	s.queue = queue
}

// TotalStudyHours estimates the remaining workload. Completed subjects
// keep a review reservation, in-progress subjects the unfinished share,
// untouched subjects the full baseline.
func (s *PlanService) TotalStudyHours(subjects []models.SubjectProgress) float64 {
	baseline := s.cfg.BaselineSubjectHours
	total := 0.0
	for _, subject := range subjects {
		switch subject.Status {
		case models.SubjectStatusCompleted:
			total += 0.2 * baseline
		case models.SubjectStatusInProgress:
			total += baseline * (1 - subject.Progress/100)
		case models.SubjectStatusNotStarted:
			total += baseline
		}
	}
	return total
}

// EstimatedWeeks converts the workload into whole calendar weeks under
// the given schedule.
func (s *PlanService) EstimatedWeeks(totalHours float64, schedule models.ScheduleSettings) int {
	weekly := schedule.DailyHours * float64(schedule.WeeklyDays)
	if weekly <= 0 {
		return 0
	}
	return int(math.Ceil(totalHours / weekly))
}

// promptContext carries the countdown arithmetic shared by the three
// prompts and the plan metadata.
type promptContext struct {
	DaysRemaining int
	AvailableDays int
	RequiredDaily float64
	Pace          string
	TotalHours    float64
	Weeks         int
}

// BuildPrompts computes the exam countdown, renders the three declared
// templates and appends the learner's free-text hints verbatim. Every
// placeholder must be bound; a leftover token fails the build.
func (s *PlanService) BuildPrompts(draft models.PlanDraft, totalHours float64, weeks int, hints dto.PlanHints) (map[prompt.Tier]string, *promptContext, error) {
	daysRemaining := int(math.Ceil(time.Until(draft.ExamDate).Hours() / 24))
	if daysRemaining <= 0 {
		return nil, nil, appErrors.Clone(appErrors.ErrInvalidInput, "exam date must be in the future")
	}
	availableDays := daysRemaining - s.cfg.ReviewBufferDays
	if availableDays < 1 {
		availableDays = 1
	}

	pctx := &promptContext{
		DaysRemaining: daysRemaining,
		AvailableDays: availableDays,
		RequiredDaily: totalHours / float64(availableDays),
		Pace:          paceLabel(totalHours),
		TotalHours:    totalHours,
		Weeks:         weeks,
	}

	vars := map[string]string{
		prompt.VarExamDate:       draft.ExamDate.Format("2006-01-02"),
		prompt.VarDaysRemaining:  strconv.Itoa(daysRemaining),
		prompt.VarAvailableDays:  strconv.Itoa(availableDays),
		prompt.VarTotalHours:     strconv.FormatFloat(totalHours, 'f', 0, 64),
		prompt.VarEstimatedWeeks: strconv.Itoa(weeks),
		prompt.VarRequiredDaily:  strconv.FormatFloat(pctx.RequiredDaily, 'f', 1, 64),
		prompt.VarDailyHours:     strconv.FormatFloat(draft.Schedule.DailyHours, 'f', 1, 64),
		prompt.VarWeeklyDays:     strconv.Itoa(draft.Schedule.WeeklyDays),
		prompt.VarRestDays:       strconv.Itoa(draft.Schedule.RestDays),
		prompt.VarPace:           pctx.Pace,
		prompt.VarSubjects:       strings.Join(draft.OrderedSubjects, "、"),
	}

	set, err := s.loader.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load prompt templates: %w", err)
	}

	suffix := hintSuffix(hints)
	prompts := make(map[prompt.Tier]string, 3)
	for _, tier := range []prompt.Tier{prompt.TierOverall, prompt.TierWeekly, prompt.TierDaily} {
		template, err := set.Get(tier)
		if err != nil {
			return nil, nil, err
		}
		rendered, err := prompt.Render(template, vars)
		if err != nil {
			return nil, nil, fmt.Errorf("render %s prompt: %w", tier, err)
		}
		prompts[tier] = rendered + suffix
	}
	return prompts, pctx, nil
}

// paceLabel classifies the total workload.
func paceLabel(totalHours float64) string {
	switch {
	case totalHours <= paceConservativeMax:
		return "保守"
	case totalHours >= paceIntensiveMin:
		return "高强度"
	default:
		return "适中"
	}
}

// hintSuffix appends the learner's free-text preferences verbatim.
func hintSuffix(hints dto.PlanHints) string {
	var lines []string
	if hints.LearningStyle != "" {
		lines = append(lines, "学习风格偏好："+hints.LearningStyle)
	}
	if hints.DifficultyPreference != "" {
		lines = append(lines, "难度偏好："+hints.DifficultyPreference)
	}
	if hints.ReviewFrequency != "" {
		lines = append(lines, "复习频率偏好："+hints.ReviewFrequency)
	}
	if len(lines) == 0 {
		return ""
	}
	return "\n\n考生补充说明：\n" + strings.Join(lines, "\n")
}

// ValidatePlanConsistency runs structural checks on the generated text.
// Failures are advisory; the caller decides whether to regenerate.
func (s *PlanService) ValidatePlanConsistency(plan *models.GeneratedPlan, subjects []string) *models.PlanConsistencyReport {
	report := &models.PlanConsistencyReport{IsConsistent: true, Issues: []string{}}
	if plan == nil {
		report.IsConsistent = false
		report.Issues = append(report.Issues, "plan content is empty")
		return report
	}

	if utf8.RuneCountInString(plan.OverallStrategy) < minOverallLength {
		report.Issues = append(report.Issues, "overall strategy is too short to be actionable")
	}
	if utf8.RuneCountInString(plan.WeeklyPlan) < minTierLength {
		report.Issues = append(report.Issues, "weekly plan is too short to be actionable")
	}
	if utf8.RuneCountInString(plan.DailyPlan) < minTierLength {
		report.Issues = append(report.Issues, "daily plan is too short to be actionable")
	}

	for _, match := range hourPattern.FindAllStringSubmatch(plan.DailyPlan, -1) {
		hours, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		if hours < minSessionHours || hours > maxSessionHours {
			report.Issues = append(report.Issues, fmt.Sprintf("daily plan mentions an implausible session length of %s hours", match[1]))
		}
	}

	combined := plan.OverallStrategy + plan.WeeklyPlan + plan.DailyPlan
	mentioned := 0
	for _, subject := range subjects {
		if strings.Contains(combined, subject) {
			mentioned++
		}
	}
	if mentioned > maxPlanSubjects {
		report.Issues = append(report.Issues, "too dispersed, focus is diluted")
	}

	report.IsConsistent = len(report.Issues) == 0
	return report
}

// GeneratePlan runs the full pipeline for one request. In sync mode the
// response carries the finished plan; in async mode a pending record is
// returned and generation continues on the queue.
func (s *PlanService) GeneratePlan(ctx context.Context, learnerID string, req dto.GeneratePlanRequest) (*dto.GeneratePlanResponse, error) {
	if len(req.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "subjects_progress must not be empty")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid plan request")
	}

	resp := &dto.GeneratePlanResponse{}

	draft := models.PlanDraft{
		Subjects:        req.Subjects,
		OrderedSubjects: req.OrderedSubjects,
		Schedule:        req.Schedule,
		ExamDate:        req.ExamDate,
	}

	if len(draft.OrderedSubjects) == 0 {
		ranked, err := s.priority.CalculateSubjectPriority(dto.PriorityRequest{
			Subjects:       req.Subjects,
			Profile:        req.Profile,
			RecentSubjects: req.RecentSubjects,
		})
		if err != nil {
			return nil, err
		}
		draft.OrderedSubjects = ranked.OrderedSubjects
		resp.Priority = ranked
	}

	if req.CheckConflicts || req.AutoResolve {
		check := s.conflicts.DetectConflicts(ctx, learnerID, draft)
		resp.ConflictCheck = check
		if req.AutoResolve && check.HasConflicts {
			resolution := s.resolver.AutoResolve(draft, check.Conflicts)
			resp.Resolution = resolution
			draft = resolution.AdjustedPlan
		}
	}

	totalHours := s.TotalStudyHours(draft.Subjects)
	weeks := s.EstimatedWeeks(totalHours, draft.Schedule)

	prompts, pctx, err := s.BuildPrompts(draft, totalHours, weeks, req.Hints)
	if err != nil {
		return nil, err
	}

	record, err := s.createRecord(ctx, learnerID, draft)
	if err != nil {
		return nil, err
	}
	resp.PlanID = record.ID
	resp.Status = record.Status

	metadata := models.PlanMetadata{
		GeneratedAt:            time.Now().UTC(),
		TotalHours:             totalHours,
		EstimatedDurationWeeks: weeks,
		KeyMilestones:          s.milestones(draft, totalHours, weeks),
	}

	if req.Mode == "async" {
		if s.queue == nil {
			return nil, appErrors.Clone(appErrors.ErrInternal, "async generation is not enabled")
		}
		task := generationTask{PlanID: record.ID, Prompts: prompts, Metadata: metadata, Subjects: draft.OrderedSubjects}
		if err := s.queue.Enqueue(jobs.Job{ID: record.ID, Type: GenerationJobType, Payload: task}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "enqueue plan generation")
		}
		s.logger.Info("plan generation enqueued", zap.String("plan_id", record.ID), zap.String("learner_id", learnerID))
		return resp, nil
	}

	plan, err := s.generateAndStore(ctx, record.ID, prompts, metadata)
	if err != nil {
		return nil, err
	}
	resp.Status = models.PlanStatusReady
	resp.Plan = plan
	resp.Consistency = s.ValidatePlanConsistency(plan, draft.OrderedSubjects)

	s.logger.Info("plan generated",
		zap.String("plan_id", record.ID),
		zap.String("learner_id", learnerID),
		zap.Float64("total_hours", pctx.TotalHours),
		zap.Int("weeks", pctx.Weeks),
		zap.Bool("consistent", resp.Consistency.IsConsistent),
	)
	return resp, nil
}

func (s *PlanService) createRecord(ctx context.Context, learnerID string, draft models.PlanDraft) (*models.StudyPlan, error) {
	subjectsJSON, err := json.Marshal(draft.Subjects)
	if err != nil {
		return nil, fmt.Errorf("encode subjects: %w", err)
	}
	scheduleJSON, err := json.Marshal(draft.Schedule)
	if err != nil {
		return nil, fmt.Errorf("encode schedule: %w", err)
	}

	record := &models.StudyPlan{
		LearnerID:  learnerID,
		Status:     models.PlanStatusPending,
		Subjects:   types.JSONText(subjectsJSON),
		Schedule:   types.JSONText(scheduleJSON),
		DailyHours: draft.Schedule.DailyHours,
		WeeklyDays: draft.Schedule.WeeklyDays,
		StartDate:  time.Now().UTC(),
		ExamDate:   draft.ExamDate,
	}
	if err := s.plans.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "persist plan record")
	}
	return record, nil
}

// generationTask is the queued payload for async generation.
type generationTask struct {
	PlanID   string
	Prompts  map[prompt.Tier]string
	Metadata models.PlanMetadata
	Subjects []string
}

// ProcessGenerationJob is the queue handler for async plan generation.
func (s *PlanService) ProcessGenerationJob(ctx context.Context, job jobs.Job) error {
	task, ok := job.Payload.(generationTask)
	if !ok {
		return fmt.Errorf("unexpected payload type %T for job %s", job.Payload, job.ID)
	}
	if _, err := s.generateAndStore(ctx, task.PlanID, task.Prompts, task.Metadata); err != nil {
		return err
	}
	return nil
}

// generateAndStore drives the three generation calls and persists the
// outcome. Generation failures mark the record failed and propagate.
func (s *PlanService) generateAndStore(ctx context.Context, planID string, prompts map[prompt.Tier]string, metadata models.PlanMetadata) (*models.GeneratedPlan, error) {
	plan := &models.GeneratedPlan{Metadata: metadata}

	for _, tier := range []prompt.Tier{prompt.TierOverall, prompt.TierWeekly, prompt.TierDaily} {
		text, err := s.generateTier(ctx, tier, prompts[tier])
		if err != nil {
			s.failRecord(ctx, planID, err)
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamGeneration.Code, appErrors.ErrUpstreamGeneration.Status, fmt.Sprintf("generate %s plan", tier))
		}
		switch tier {
		case prompt.TierOverall:
			plan.OverallStrategy = text
		case prompt.TierWeekly:
			plan.WeeklyPlan = text
		case prompt.TierDaily:
			plan.DailyPlan = text
		}
	}

	content, err := json.Marshal(plan)
	if err != nil {
		s.failRecord(ctx, planID, err)
		return nil, fmt.Errorf("encode generated plan: %w", err)
	}
	if err := s.plans.MarkReady(ctx, planID, types.JSONText(content)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "store generated plan")
	}
	if s.metrics != nil {
		s.metrics.RecordPlanOutcome(string(models.PlanStatusReady))
	}
	return plan, nil
}

func (s *PlanService) generateTier(ctx context.Context, tier prompt.Tier, text string) (string, error) {
	start := time.Now()
	out, err := s.generator.Generate(ctx, text)
	if s.metrics != nil {
		s.metrics.ObserveGeneration(string(tier), time.Since(start), err == nil)
	}
	return out, err
}

func (s *PlanService) failRecord(ctx context.Context, planID string, cause error) {
	if err := s.plans.MarkFailed(ctx, planID, cause.Error()); err != nil {
		s.logger.Error("failed to mark plan as failed", zap.String("plan_id", planID), zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordPlanOutcome(string(models.PlanStatusFailed))
	}
}

// milestones projects the ordered subjects onto cumulative weekly
// capacity, producing one checkpoint per subject completion.
func (s *PlanService) milestones(draft models.PlanDraft, totalHours float64, weeks int) []string {
	weeklyCapacity := draft.Schedule.DailyHours * float64(draft.Schedule.WeeklyDays)
	if weeklyCapacity <= 0 || len(draft.OrderedSubjects) == 0 {
		return nil
	}

	hoursBySubject := make(map[string]float64, len(draft.Subjects))
	for _, subject := range draft.Subjects {
		switch subject.Status {
		case models.SubjectStatusCompleted:
			hoursBySubject[subject.Subject] = 0.2 * s.cfg.BaselineSubjectHours
		case models.SubjectStatusInProgress:
			hoursBySubject[subject.Subject] = s.cfg.BaselineSubjectHours * (1 - subject.Progress/100)
		default:
			hoursBySubject[subject.Subject] = s.cfg.BaselineSubjectHours
		}
	}

	var milestones []string
	cumulative := 0.0
	for _, subject := range draft.OrderedSubjects {
		hours, ok := hoursBySubject[subject]
		if !ok {
			continue
		}
		cumulative += hours
		week := int(math.Ceil(cumulative / weeklyCapacity))
		if weeks > 0 && week > weeks {
			week = weeks
		}
		milestones = append(milestones, fmt.Sprintf("第%d周：完成%s", week, subject))
	}
	return milestones
}

// GetPlan returns a stored plan owned by the learner.
func (s *PlanService) GetPlan(ctx context.Context, learnerID, planID string) (*models.StudyPlan, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "study plan not found")
	}
	if plan.LearnerID != learnerID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "plan belongs to another learner")
	}
	return plan, nil
}

// ListPlans returns the learner's plans with pagination metadata.
func (s *PlanService) ListPlans(ctx context.Context, learnerID string, query dto.PlanListQuery) ([]models.StudyPlan, *models.Pagination, error) {
	plans, total, err := s.plans.ListByLearner(ctx, learnerID, query.Status, query.Page, query.PageSize)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list study plans")
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return plans, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// DecodePlanContent decodes a ready plan's stored content.
func DecodePlanContent(record *models.StudyPlan) (*models.GeneratedPlan, error) {
	if record == nil || len(record.Content) == 0 || string(record.Content) == "null" {
		return nil, nil
	}
	var plan models.GeneratedPlan
	if err := json.Unmarshal(record.Content, &plan); err != nil {
		return nil, fmt.Errorf("decode plan content: %w", err)
	}
	return &plan, nil
}

// SubjectNamesFromRecord decodes the subject names stored on a plan
// record. The column holds progress entries or a bare name list.
func SubjectNamesFromRecord(record *models.StudyPlan) []string {
	if record == nil || len(record.Subjects) == 0 {
		return nil
	}
	var entries []models.SubjectProgress
	if err := json.Unmarshal(record.Subjects, &entries); err == nil && len(entries) > 0 && entries[0].Subject != "" {
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Subject)
		}
		return names
	}
	var names []string
	if err := json.Unmarshal(record.Subjects, &names); err == nil {
		return names
	}
	return nil
}
