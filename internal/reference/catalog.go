package reference

import (
	"fmt"
	"sort"

	"github.com/spf13/viper"
)

const (
	// DefaultScore stands in for subjects missing from the tables.
	DefaultScore = 5.0
	// HardThreshold marks a subject as "hard" for continuity and
	// difficulty-adaptation checks.
	HardThreshold = 7.0
)

// SubjectEntry is one row of the static reference tables.
type SubjectEntry struct {
	Name       string   `mapstructure:"name"`
	Code       string   `mapstructure:"code"`
	Importance float64  `mapstructure:"importance"`
	Difficulty float64  `mapstructure:"difficulty"`
	Related    []string `mapstructure:"related"`
}

// Catalog holds the versioned per-subject reference data: importance,
// difficulty, the undirected correlation relation and the
// advanced-to-foundational prerequisite mapping. It is injected at
// construction time and never mutated afterwards.
type Catalog struct {
	version    string
	importance map[string]float64
	difficulty map[string]float64
	codes      map[string]string
	related    map[string]map[string]bool
	coreOf     map[string]string
}

// Default returns the compiled-in judicial-exam subject catalog.
func Default() *Catalog {
	entries := []SubjectEntry{
		{Name: "民法", Code: "minfa", Importance: 10, Difficulty: 9, Related: []string{"民事诉讼法", "商经知"}},
		{Name: "刑法", Code: "xingfa", Importance: 9, Difficulty: 8, Related: []string{"刑事诉讼法"}},
		{Name: "民事诉讼法", Code: "minsu", Importance: 8, Difficulty: 7, Related: []string{"民法"}},
		{Name: "刑事诉讼法", Code: "xingsu", Importance: 8, Difficulty: 7, Related: []string{"刑法"}},
		{Name: "行政法与行政诉讼法", Code: "xingzheng", Importance: 8, Difficulty: 8, Related: []string{"理论法"}},
		{Name: "商经知", Code: "shangjingzhi", Importance: 7, Difficulty: 6, Related: []string{"民法"}},
		{Name: "理论法", Code: "lilunfa", Importance: 6, Difficulty: 4, Related: []string{"行政法与行政诉讼法"}},
		{Name: "三国法", Code: "sanguofa", Importance: 5, Difficulty: 5, Related: nil},
	}
	prereqs := map[string]string{
		"民事诉讼法": "民法",
		"刑事诉讼法": "刑法",
		"商经知":   "民法",
	}
	c, _ := build("builtin-2024.1", entries, prereqs)
	return c
}

// Load reads a catalog file (yaml/json, resolved by viper). An empty
// path falls back to the compiled-in defaults.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read subject catalog %s: %w", path, err)
	}

	var payload struct {
		Version       string            `mapstructure:"version"`
		Subjects      []SubjectEntry    `mapstructure:"subjects"`
		Prerequisites map[string]string `mapstructure:"prerequisites"`
	}
	if err := v.Unmarshal(&payload); err != nil {
		return nil, fmt.Errorf("decode subject catalog %s: %w", path, err)
	}
	if len(payload.Subjects) == 0 {
		return nil, fmt.Errorf("subject catalog %s contains no subjects", path)
	}

	return build(payload.Version, payload.Subjects, payload.Prerequisites)
}

func build(version string, entries []SubjectEntry, prereqs map[string]string) (*Catalog, error) {
	c := &Catalog{
		version:    version,
		importance: make(map[string]float64, len(entries)),
		difficulty: make(map[string]float64, len(entries)),
		codes:      make(map[string]string, len(entries)),
		related:    make(map[string]map[string]bool, len(entries)),
		coreOf:     make(map[string]string, len(prereqs)),
	}

	for _, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("catalog entry missing subject name")
		}
		if entry.Importance < 0 || entry.Importance > 10 || entry.Difficulty < 0 || entry.Difficulty > 10 {
			return nil, fmt.Errorf("catalog entry %s: importance/difficulty must be within [0,10]", entry.Name)
		}
		if entry.Importance > 0 {
			c.importance[entry.Name] = entry.Importance
		}
		if entry.Difficulty > 0 {
			c.difficulty[entry.Name] = entry.Difficulty
		}
		if entry.Code != "" {
			c.codes[entry.Name] = entry.Code
		}
		for _, other := range entry.Related {
			if other == entry.Name {
				continue
			}
			c.addRelation(entry.Name, other)
		}
	}

	for advanced, core := range prereqs {
		c.coreOf[advanced] = core
	}

	return c, nil
}

// addRelation records the pair in both directions. The source tables are
// not guaranteed symmetric; the undirected relation is the contract here.
func (c *Catalog) addRelation(a, b string) {
	if c.related[a] == nil {
		c.related[a] = make(map[string]bool)
	}
	if c.related[b] == nil {
		c.related[b] = make(map[string]bool)
	}
	c.related[a][b] = true
	c.related[b][a] = true
}

// Version identifies the loaded table revision.
func (c *Catalog) Version() string {
	return c.version
}

// ImportanceOf returns the subject's importance on a 0-10 scale.
func (c *Catalog) ImportanceOf(subject string) float64 {
	if v, ok := c.importance[subject]; ok {
		return v
	}
	return DefaultScore
}

// DifficultyOf returns the subject's difficulty on a 0-10 scale.
func (c *Catalog) DifficultyOf(subject string) float64 {
	if v, ok := c.difficulty[subject]; ok {
		return v
	}
	return DefaultScore
}

// CodeOf returns the short ASCII code for exports, or the name itself.
func (c *Catalog) CodeOf(subject string) string {
	if v, ok := c.codes[subject]; ok {
		return v
	}
	return subject
}

// Known reports whether the subject appears in the tables.
func (c *Catalog) Known(subject string) bool {
	_, impOK := c.importance[subject]
	_, diffOK := c.difficulty[subject]
	return impOK || diffOK || len(c.related[subject]) > 0
}

// KnownSubjects lists every catalogued subject name, sorted.
func (c *Catalog) KnownSubjects() []string {
	seen := make(map[string]bool)
	for name := range c.importance {
		seen[name] = true
	}
	for name := range c.difficulty {
		seen[name] = true
	}
	for name := range c.related {
		seen[name] = true
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// RelatedTo returns the subjects related to the given one, sorted.
func (c *Catalog) RelatedTo(subject string) []string {
	set := c.related[subject]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AreRelated reports whether two subjects are declared correlated.
func (c *Catalog) AreRelated(a, b string) bool {
	return c.related[a][b]
}

// CoreOf returns the foundational subject an advanced subject builds on.
func (c *Catalog) CoreOf(advanced string) (string, bool) {
	core, ok := c.coreOf[advanced]
	return core, ok
}

// IsHard reports whether the subject's difficulty meets HardThreshold.
func (c *Catalog) IsHard(subject string) bool {
	return c.DifficultyOf(subject) >= HardThreshold
}
