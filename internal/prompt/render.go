package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z][a-zA-Z0-9_]*)\s*\}\}`)

// Render substitutes every {{token}} in the template with its bound
// value. It is pure: no I/O, no defaults. Rendering fails when the
// template declares a token with no binding, so a rendered prompt is
// guaranteed to contain zero literal placeholder tokens.
func Render(template string, vars map[string]string) (string, error) {
	var missing []string
	out := tokenPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := tokenPattern.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			missing = append(missing, name)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unbound template placeholders: %s", strings.Join(dedupe(missing), ", "))
	}
	return out, nil
}

// Placeholders lists the distinct tokens declared by a template.
func Placeholders(template string) []string {
	matches := tokenPattern.FindAllStringSubmatch(template, -1)
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, m[1])
	}
	return dedupe(names)
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := values[:0]
	for _, v := range values {
		if seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
