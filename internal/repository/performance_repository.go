package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/mindpath/study-plan-api/internal/models"
	appErrors "github.com/mindpath/study-plan-api/pkg/errors"
)

// cacheObserver receives cache hit/miss accounting.
type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// PerformanceRepository aggregates the learner's study-session history
// into the snapshots the conflict checks consume. Reads go through an
// optional Redis read-through cache.
type PerformanceRepository struct {
	db       *sqlx.DB
	cache    *CacheRepository
	cacheTTL time.Duration
	metrics  cacheObserver
	logger   *zap.Logger
}

// NewPerformanceRepository creates a new repository instance. Cache and
// metrics are optional.
func NewPerformanceRepository(db *sqlx.DB, cache *CacheRepository, cacheTTL time.Duration, metrics cacheObserver, logger *zap.Logger) *PerformanceRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &PerformanceRepository{db: db, cache: cache, cacheTTL: cacheTTL, metrics: metrics, logger: logger}
}

type historicalRow struct {
	AvgDailyHours sql.NullFloat64 `db:"avg_daily_hours"`
	MaxDailyHours sql.NullFloat64 `db:"max_daily_hours"`
	ActiveDays    int             `db:"active_days"`
}

// FetchHistorical aggregates sustained study behaviour over the trailing
// window.
func (r *PerformanceRepository) FetchHistorical(ctx context.Context, learnerID string, windowDays int) (*models.HistoricalPerformance, error) {
	if windowDays <= 0 {
		windowDays = 90
	}

	cacheKey := fmt.Sprintf("perf:hist:%s:%d", learnerID, windowDays)
	var cached models.HistoricalPerformance
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	const aggQuery = `
		SELECT
			AVG(hours)      AS avg_daily_hours,
			MAX(hours)      AS max_daily_hours,
			COUNT(DISTINCT study_date) AS active_days
		FROM learner_study_sessions
		WHERE learner_id = $1
		  AND study_date >= CURRENT_DATE - $2::int`

	var row historicalRow
	if err := r.db.GetContext(ctx, &row, aggQuery, learnerID, windowDays); err != nil {
		return nil, fmt.Errorf("fetch historical performance: %w", err)
	}

	const ratesQuery = `
		SELECT completion_rate
		FROM learner_study_sessions
		WHERE learner_id = $1
		  AND study_date >= CURRENT_DATE - $2::int
		ORDER BY study_date DESC
		LIMIT 30`

	var rates []float64
	if err := r.db.SelectContext(ctx, &rates, ratesQuery, learnerID, windowDays); err != nil {
		return nil, fmt.Errorf("fetch completion rates: %w", err)
	}

	result := &models.HistoricalPerformance{
		AvgDailyHours:   row.AvgDailyHours.Float64,
		MaxDailyHours:   row.MaxDailyHours.Float64,
		Consistency:     float64(row.ActiveDays) / float64(windowDays),
		CompletionRates: rates,
	}

	r.cacheSet(ctx, cacheKey, result)
	return result, nil
}

type recentRow struct {
	AvgCorrectRate    sql.NullFloat64 `db:"avg_correct_rate"`
	AvgCompletionRate sql.NullFloat64 `db:"avg_completion_rate"`
}

// FetchRecent returns the trailing short-window quality signals.
func (r *PerformanceRepository) FetchRecent(ctx context.Context, learnerID string, windowDays int) (*models.RecentPerformance, error) {
	if windowDays <= 0 {
		windowDays = 14
	}

	cacheKey := fmt.Sprintf("perf:recent:%s:%d", learnerID, windowDays)
	var cached models.RecentPerformance
	if r.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	const query = `
		SELECT
			AVG(correct_rate)    AS avg_correct_rate,
			AVG(completion_rate) AS avg_completion_rate
		FROM learner_study_sessions
		WHERE learner_id = $1
		  AND study_date >= CURRENT_DATE - $2::int`

	var row recentRow
	if err := r.db.GetContext(ctx, &row, query, learnerID, windowDays); err != nil {
		return nil, fmt.Errorf("fetch recent performance: %w", err)
	}

	result := &models.RecentPerformance{
		AvgCorrectRate:    row.AvgCorrectRate.Float64,
		AvgCompletionRate: row.AvgCompletionRate.Float64,
	}

	r.cacheSet(ctx, cacheKey, result)
	return result, nil
}

func (r *PerformanceRepository) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if r.cache == nil {
		return false
	}
	start := time.Now()
	err := r.cache.Get(ctx, key, dest)
	hit := err == nil
	if r.metrics != nil {
		r.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		r.logger.Warn("snapshot cache read failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

func (r *PerformanceRepository) cacheSet(ctx context.Context, key string, value interface{}) {
	if r.cache == nil {
		return
	}
	start := time.Now()
	if err := r.cache.Set(ctx, key, value, r.cacheTTL); err != nil {
		r.logger.Warn("snapshot cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if r.metrics != nil {
		r.metrics.ObserveCacheWrite(time.Since(start))
	}
}
