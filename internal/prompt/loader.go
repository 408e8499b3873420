package prompt

import (
	"fmt"
	"os"
	"path/filepath"
)

// TemplateSet holds the three declared plan templates.
type TemplateSet struct {
	Overall string
	Weekly  string
	Daily   string
}

// Get returns the template for a tier.
func (t TemplateSet) Get(tier Tier) (string, error) {
	switch tier {
	case TierOverall:
		return t.Overall, nil
	case TierWeekly:
		return t.Weekly, nil
	case TierDaily:
		return t.Daily, nil
	}
	return "", fmt.Errorf("unknown prompt tier %q", tier)
}

// Loader supplies the template set. Implementations own the I/O so the
// substitution routine stays pure.
type Loader interface {
	Load() (TemplateSet, error)
}

// StaticLoader serves a fixed in-memory template set.
type StaticLoader struct {
	Set TemplateSet
}

// Load returns the static set.
func (l StaticLoader) Load() (TemplateSet, error) {
	return l.Set, nil
}

// FSLoader reads per-tier template files from a directory, falling back
// to the compiled-in defaults for any missing file.
type FSLoader struct {
	Dir string
}

// Load assembles the template set from disk.
func (l FSLoader) Load() (TemplateSet, error) {
	set := DefaultTemplates()
	if l.Dir == "" {
		return set, nil
	}

	var err error
	if set.Overall, err = l.readOrDefault("overall.tmpl", set.Overall); err != nil {
		return TemplateSet{}, err
	}
	if set.Weekly, err = l.readOrDefault("weekly.tmpl", set.Weekly); err != nil {
		return TemplateSet{}, err
	}
	if set.Daily, err = l.readOrDefault("daily.tmpl", set.Daily); err != nil {
		return TemplateSet{}, err
	}
	return set, nil
}

func (l FSLoader) readOrDefault(name, fallback string) (string, error) {
	path := filepath.Join(l.Dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fallback, nil
		}
		return "", fmt.Errorf("read prompt template %s: %w", path, err)
	}
	if len(raw) == 0 {
		return fallback, nil
	}
	return string(raw), nil
}
