package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
)

const (
	// Correlation scoring: a match against a recently studied subject
	// counts far more than a match against another pending subject.
	recentMatchScore  = 50.0
	pendingMatchScore = 10.0
	maxDimensionScore = 100.0

	// Rationale thresholds for the top-ranked subjects.
	rationaleProgressMin    = 70.0
	rationaleImportanceMin  = 80.0
	rationaleDifficultyMin  = 70.0
	rationaleCorrelationMin = 30.0
	rationaleTopN           = 3

	// Related subjects further apart than this in the final ordering
	// trigger an order-sanity warning.
	maxRelatedSeparation = 3
)

// PriorityService computes the four weight dimensions per subject and
// blends them into a single ranked ordering under a preference profile.
type PriorityService struct {
	catalog   *reference.Catalog
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPriorityService wires the ranker dependencies.
func NewPriorityService(catalog *reference.Catalog, validate *validator.Validate, logger *zap.Logger) *PriorityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriorityService{catalog: catalog, validator: validate, logger: logger}
}

// CalculateSubjectPriority ranks the subjects under the requested
// profile. The computation is pure and deterministic: identical inputs
// always produce identical orderings, with ties broken by input order.
func (s *PriorityService) CalculateSubjectPriority(req dto.PriorityRequest) (*dto.PriorityResponse, error) {
	if len(req.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, "subjects_progress must not be empty")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidInput.Code, appErrors.ErrInvalidInput.Status, "invalid priority payload")
	}

	profile := req.Profile
	if profile == "" {
		profile = models.ProfileProgressLed
	}
	ratios, ok := profile.Ratios()
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidInput, fmt.Sprintf("unknown preference profile %q", profile))
	}

	weights := make([]models.SubjectWeight, 0, len(req.Subjects))
	for _, subject := range req.Subjects {
		weights = append(weights, models.SubjectWeight{
			Subject:           subject.Subject,
			ProgressWeight:    s.progressWeight(subject),
			ImportanceWeight:  s.importanceWeight(subject.Subject),
			DifficultyWeight:  s.difficultyWeight(subject.Subject),
			CorrelationWeight: s.correlationWeight(subject.Subject, req.RecentSubjects, req.Subjects),
		})
	}

	combine(weights, ratios)

	ordered := make([]string, len(weights))
	for i, w := range weights {
		ordered[i] = w.Subject
	}

	resp := &dto.PriorityResponse{
		Profile:         profile,
		Weights:         weights,
		OrderedSubjects: ordered,
		Rationale:       s.rationale(weights),
		Warnings:        s.validateOrder(ordered, req.Subjects),
	}
	s.logger.Debug("subject priority calculated",
		zap.String("profile", string(profile)),
		zap.Int("subjects", len(weights)),
		zap.Int("warnings", len(resp.Warnings)),
	)
	return resp, nil
}

// progressWeight favours finishing momentum: in-progress subjects rank
// highest, untouched subjects in the middle (pulled up by importance),
// and completed subjects keep a small residual weight for review.
// Monotonic non-decreasing in progress for a fixed status.
func (s *PriorityService) progressWeight(subject models.SubjectProgress) float64 {
	switch subject.Status {
	case models.SubjectStatusCompleted:
		return 10 + subject.Progress/100*10
	case models.SubjectStatusInProgress:
		return 60 + subject.Progress/100*40
	case models.SubjectStatusNotStarted:
		return 30 + s.catalog.ImportanceOf(subject.Subject)/10*20
	}
	return 0
}

func (s *PriorityService) importanceWeight(subject string) float64 {
	return s.catalog.ImportanceOf(subject) / 10 * 100
}

// difficultyWeight scores harder subjects higher so they are scheduled
// while capacity is still available.
func (s *PriorityService) difficultyWeight(subject string) float64 {
	return s.catalog.DifficultyOf(subject) / 10 * 100
}

func (s *PriorityService) correlationWeight(subject string, recent []string, pending []models.SubjectProgress) float64 {
	score := 0.0
	for _, other := range recent {
		if other != subject && s.catalog.AreRelated(subject, other) {
			score += recentMatchScore
		}
	}
	for _, other := range pending {
		if other.Subject != subject && s.catalog.AreRelated(subject, other.Subject) {
			score += pendingMatchScore
		}
	}
	if score > maxDimensionScore {
		score = maxDimensionScore
	}
	return score
}

// combine blends the dimensions into total weights and assigns ranks
// 1..N by stable descending sort.
func combine(weights []models.SubjectWeight, ratios models.WeightRatios) {
	for i := range weights {
		w := &weights[i]
		w.TotalWeight = w.ProgressWeight*ratios.Progress +
			w.ImportanceWeight*ratios.Importance +
			w.DifficultyWeight*ratios.Difficulty +
			w.CorrelationWeight*ratios.Correlation
	}
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].TotalWeight > weights[j].TotalWeight
	})
	for i := range weights {
		weights[i].PriorityRank = i + 1
	}
}

// rationale explains why the top-ranked subjects lead the ordering.
func (s *PriorityService) rationale(weights []models.SubjectWeight) string {
	var parts []string
	for i, w := range weights {
		if i >= rationaleTopN {
			break
		}
		var reasons []string
		if w.ProgressWeight > rationaleProgressMin {
			reasons = append(reasons, "进度接近完成，优先收尾")
		}
		if w.ImportanceWeight > rationaleImportanceMin {
			reasons = append(reasons, "考试分值权重高")
		}
		if w.DifficultyWeight > rationaleDifficultyMin {
			reasons = append(reasons, "难度较大，需尽早投入")
		}
		if w.CorrelationWeight > rationaleCorrelationMin {
			reasons = append(reasons, "与近期所学知识关联紧密")
		}
		if len(reasons) == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s：%s", w.Subject, strings.Join(reasons, "；")))
	}
	return strings.Join(parts, "。")
}

// validateOrder flags ordering shapes that usually indicate a mistake:
// completed subjects interleaved with active ones, and declared-related
// subjects pushed far apart.
func (s *PriorityService) validateOrder(ordered []string, progress []models.SubjectProgress) []string {
	statusBySubject := make(map[string]models.SubjectStatus, len(progress))
	for _, p := range progress {
		statusBySubject[p.Subject] = p.Status
	}

	var warnings []string

	firstActive := -1
	for i, subject := range ordered {
		status, ok := statusBySubject[subject]
		if !ok {
			continue
		}
		if status != models.SubjectStatusCompleted && firstActive == -1 {
			firstActive = i
			continue
		}
		if status == models.SubjectStatusCompleted && firstActive != -1 && i > firstActive {
			warnings = append(warnings, fmt.Sprintf("completed subject %s is interleaved with unfinished subjects; schedule it as later review instead", subject))
		}
	}

	position := make(map[string]int, len(ordered))
	for i, subject := range ordered {
		position[subject] = i
	}
	for i, subject := range ordered {
		for _, related := range s.catalog.RelatedTo(subject) {
			j, ok := position[related]
			if !ok || j <= i {
				continue
			}
			if j-i > maxRelatedSeparation {
				warnings = append(warnings, fmt.Sprintf("related subjects %s and %s are %d positions apart; studying them closer together reinforces both", subject, related, j-i))
			}
		}
	}

	return warnings
}
