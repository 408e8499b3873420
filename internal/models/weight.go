package models

// PreferenceProfile selects how the four weight dimensions are blended.
type PreferenceProfile string

const (
	ProfileProgressLed   PreferenceProfile = "progress_led"
	ProfileImportanceLed PreferenceProfile = "importance_led"
	ProfileDifficultyLed PreferenceProfile = "difficulty_led"
	ProfileBalanced      PreferenceProfile = "balanced"
)

// WeightRatios are the convex-combination coefficients for a profile.
// The four values always sum to 1.
type WeightRatios struct {
	Progress    float64 `json:"progress"`
	Importance  float64 `json:"importance"`
	Difficulty  float64 `json:"difficulty"`
	Correlation float64 `json:"correlation"`
}

var profileRatios = map[PreferenceProfile]WeightRatios{
	ProfileProgressLed:   {Progress: 0.60, Importance: 0.25, Difficulty: 0.10, Correlation: 0.05},
	ProfileImportanceLed: {Progress: 0.40, Importance: 0.45, Difficulty: 0.10, Correlation: 0.05},
	ProfileDifficultyLed: {Progress: 0.40, Importance: 0.20, Difficulty: 0.35, Correlation: 0.05},
	ProfileBalanced:      {Progress: 0.25, Importance: 0.25, Difficulty: 0.25, Correlation: 0.25},
}

// Ratios returns the ratio set for the profile and whether it is known.
func (p PreferenceProfile) Ratios() (WeightRatios, bool) {
	r, ok := profileRatios[p]
	return r, ok
}

// Valid reports whether the profile is one of the named profiles.
func (p PreferenceProfile) Valid() bool {
	_, ok := profileRatios[p]
	return ok
}

// Profiles lists every named preference profile.
func Profiles() []PreferenceProfile {
	return []PreferenceProfile{ProfileProgressLed, ProfileImportanceLed, ProfileDifficultyLed, ProfileBalanced}
}

// SubjectWeight carries the four dimension scores and the blended total
// for one subject. Computed fresh per request, never persisted.
type SubjectWeight struct {
	Subject           string  `json:"subject"`
	ProgressWeight    float64 `json:"progress_weight"`
	ImportanceWeight  float64 `json:"importance_weight"`
	DifficultyWeight  float64 `json:"difficulty_weight"`
	CorrelationWeight float64 `json:"correlation_weight"`
	TotalWeight       float64 `json:"total_weight"`
	PriorityRank      int     `json:"priority_rank"`
}
