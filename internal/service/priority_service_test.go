package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindpath/study-plan-api/internal/dto"
	"github.com/mindpath/study-plan-api/internal/models"
	"github.com/mindpath/study-plan-api/internal/reference"
)

func newPriorityFixture(t *testing.T) *PriorityService {
	t.Helper()
	return NewPriorityService(reference.Default(), nil, nil)
}

func TestPriorityProgressLedFavoursInProgress(t *testing.T) {
	service := newPriorityFixture(t)

	resp, err := service.CalculateSubjectPriority(dto.PriorityRequest{
		Subjects: []models.SubjectProgress{
			{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 80},
			{Subject: "刑法", Status: models.SubjectStatusNotStarted, Progress: 0},
		},
	})
	require.NoError(t, err)

	require.Len(t, resp.Weights, 2)
	assert.Equal(t, "民法", resp.Weights[0].Subject)
	assert.Equal(t, 1, resp.Weights[0].PriorityRank)
	assert.Greater(t, resp.Weights[0].TotalWeight, resp.Weights[1].TotalWeight)
	assert.Equal(t, models.ProfileProgressLed, resp.Profile)
}

func TestPriorityRanksFormPermutation(t *testing.T) {
	service := newPriorityFixture(t)

	subjects := []models.SubjectProgress{
		{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 40},
		{Subject: "刑法", Status: models.SubjectStatusNotStarted},
		{Subject: "商经知", Status: models.SubjectStatusCompleted, Progress: 100},
		{Subject: "理论法", Status: models.SubjectStatusNotStarted},
		{Subject: "三国法", Status: models.SubjectStatusInProgress, Progress: 5},
	}
	resp, err := service.CalculateSubjectPriority(dto.PriorityRequest{Subjects: subjects})
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, w := range resp.Weights {
		assert.False(t, seen[w.PriorityRank], "duplicate rank %d", w.PriorityRank)
		seen[w.PriorityRank] = true
		assert.GreaterOrEqual(t, w.PriorityRank, 1)
		assert.LessOrEqual(t, w.PriorityRank, len(subjects))
	}
	assert.Len(t, seen, len(subjects))
}

func TestPriorityProfileRatiosSumToOne(t *testing.T) {
	for _, profile := range models.Profiles() {
		ratios, ok := profile.Ratios()
		require.True(t, ok, "profile %s", profile)
		sum := ratios.Progress + ratios.Importance + ratios.Difficulty + ratios.Correlation
		assert.InDelta(t, 1.0, sum, 1e-9, "profile %s", profile)
	}
}

func TestProgressWeightMonotonic(t *testing.T) {
	service := newPriorityFixture(t)

	for _, status := range []models.SubjectStatus{models.SubjectStatusCompleted, models.SubjectStatusInProgress, models.SubjectStatusNotStarted} {
		prev := -1.0
		for p := 0.0; p <= 100; p += 10 {
			w := service.progressWeight(models.SubjectProgress{Subject: "民法", Status: status, Progress: p})
			assert.GreaterOrEqual(t, w, prev, "status %s progress %.0f", status, p)
			prev = w
		}
	}
}

func TestPriorityDeterministicAndStable(t *testing.T) {
	service := newPriorityFixture(t)

	// Two unknown subjects share identical weights; input order must win.
	subjects := []models.SubjectProgress{
		{Subject: "未知甲", Status: models.SubjectStatusNotStarted},
		{Subject: "未知乙", Status: models.SubjectStatusNotStarted},
	}

	first, err := service.CalculateSubjectPriority(dto.PriorityRequest{Subjects: subjects})
	require.NoError(t, err)
	second, err := service.CalculateSubjectPriority(dto.PriorityRequest{Subjects: subjects})
	require.NoError(t, err)

	assert.Equal(t, first.OrderedSubjects, second.OrderedSubjects)
	assert.Equal(t, []string{"未知甲", "未知乙"}, first.OrderedSubjects)
}

func TestPriorityCorrelationBoostsRelatedSubject(t *testing.T) {
	service := newPriorityFixture(t)

	// 民事诉讼法 is related to 民法 in the default catalog.
	with := service.correlationWeight("民事诉讼法", []string{"民法"}, nil)
	without := service.correlationWeight("民事诉讼法", []string{"三国法"}, nil)
	assert.Greater(t, with, without)
	assert.LessOrEqual(t, with, maxDimensionScore)
}

func TestPriorityRejectsEmptySubjects(t *testing.T) {
	service := newPriorityFixture(t)

	_, err := service.CalculateSubjectPriority(dto.PriorityRequest{})
	require.Error(t, err)
}

func TestPriorityRejectsUnknownProfile(t *testing.T) {
	service := newPriorityFixture(t)

	_, err := service.CalculateSubjectPriority(dto.PriorityRequest{
		Subjects: []models.SubjectProgress{{Subject: "民法", Status: models.SubjectStatusNotStarted}},
		Profile:  models.PreferenceProfile("aggressive"),
	})
	require.Error(t, err)
}

func TestValidateOrderFlagsInterleavedCompleted(t *testing.T) {
	service := newPriorityFixture(t)

	progress := []models.SubjectProgress{
		{Subject: "民法", Status: models.SubjectStatusInProgress, Progress: 30},
		{Subject: "刑法", Status: models.SubjectStatusCompleted, Progress: 100},
		{Subject: "理论法", Status: models.SubjectStatusNotStarted},
	}
	warnings := service.validateOrder([]string{"民法", "刑法", "理论法"}, progress)
	require.NotEmpty(t, warnings)
	assert.Contains(t, warnings[0], "刑法")
}
