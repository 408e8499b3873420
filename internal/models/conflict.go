package models

// ConflictType classifies the dimension a conflict was detected on.
type ConflictType string

const (
	ConflictTypeProgress   ConflictType = "progress"
	ConflictTypeTime       ConflictType = "time"
	ConflictTypeContent    ConflictType = "content"
	ConflictTypeDifficulty ConflictType = "difficulty"
)

// Severity grades how strongly a conflict should influence the caller.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// ConflictItem is one detected inconsistency between a proposed plan and
// the learner's persisted state. Details carries the numeric payload the
// resolver needs (combined hours, recorded progress, overlap lists).
type ConflictItem struct {
	Type     ConflictType   `json:"type"`
	Severity Severity       `json:"severity"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ConflictCheckResult aggregates the outcome of all conflict checks.
// Warnings and suggestions are advisory and never block plan creation.
type ConflictCheckResult struct {
	HasConflicts bool           `json:"has_conflicts"`
	Conflicts    []ConflictItem `json:"conflicts"`
	Warnings     []string       `json:"warnings"`
	Suggestions  []string       `json:"suggestions"`
}

// ResolutionResult is the output of single-pass auto-resolution: the
// corrected plan plus one human-readable line per applied correction.
type ResolutionResult struct {
	AdjustedPlan PlanDraft `json:"adjusted_plan"`
	Adjustments  []string  `json:"adjustments"`
}
