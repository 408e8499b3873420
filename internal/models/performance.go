package models

// HistoricalPerformance is an aggregated read-only snapshot of the
// learner's sustained study behaviour over a trailing window.
type HistoricalPerformance struct {
	AvgDailyHours   float64   `json:"avg_daily_hours"`
	MaxDailyHours   float64   `json:"max_daily_hours"`
	Consistency     float64   `json:"consistency"`
	CompletionRates []float64 `json:"completion_rates"`
}

// RecentPerformance captures the trailing short-window quality signals
// used by the difficulty-adaptation check.
type RecentPerformance struct {
	AvgCorrectRate    float64 `json:"avg_correct_rate"`
	AvgCompletionRate float64 `json:"avg_completion_rate"`
}
