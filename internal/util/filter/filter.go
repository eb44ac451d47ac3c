// Package filter selects transfer entries by name.
package filter

import (
	"path/filepath"
	"strings"
)

// Config holds filter configuration.
type Config struct {
	// Include patterns (glob-style). Empty means include all.
	// Example: []string{"*.jpg", "*.png"}
	Include []string

	// Exclude patterns (glob-style). Takes precedence over Include.
	Exclude []string

	// Search terms (case-insensitive substring match).
	// A name must contain ALL terms.
	Search []string
}

// IsEmpty reports whether the filter lets everything through.
func (c Config) IsEmpty() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0 && len(c.Search) == 0
}

// Match reports whether name passes the filter. Names may carry a folder
// prefix ("photos/a.jpg"); patterns are tried against the whole name and
// its base, and ** spans folders.
func (c Config) Match(name string) bool {
	name = filepath.ToSlash(name)

	for _, pattern := range c.Exclude {
		if matchName(name, pattern) {
			return false
		}
	}

	if len(c.Include) > 0 {
		included := false
		for _, pattern := range c.Include {
			if matchName(name, pattern) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	lower := strings.ToLower(name)
	for _, term := range c.Search {
		if !strings.Contains(lower, strings.ToLower(term)) {
			return false
		}
	}

	return true
}

// Indices returns the positions in names that pass the filter.
func (c Config) Indices(names []string) []int {
	out := make([]int, 0, len(names))
	for i, name := range names {
		if c.Match(name) {
			out = append(out, i)
		}
	}
	return out
}

func matchName(name, pattern string) bool {
	pattern = filepath.ToSlash(pattern)
	if strings.Contains(pattern, "**") {
		return matchDoubleStar(name, pattern)
	}
	if ok, _ := filepath.Match(pattern, name); ok {
		return true
	}
	ok, _ := filepath.Match(pattern, baseName(name))
	return ok
}

func baseName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// matchDoubleStar handles ** patterns.
// Examples:
//   - "**/a.jpg" matches "a.jpg", "x/a.jpg", "x/y/a.jpg"
//   - "raw/**" matches "raw/anything", "raw/a/b.dat"
func matchDoubleStar(name, pattern string) bool {
	if pattern == "**" {
		return true
	}

	if suffix, ok := strings.CutPrefix(pattern, "**/"); ok {
		parts := strings.Split(name, "/")
		for i := range parts {
			if matchName(strings.Join(parts[i:], "/"), suffix) {
				return true
			}
		}
		return false
	}

	if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
		parts := strings.Split(name, "/")
		for i := 1; i < len(parts); i++ {
			if ok, _ := filepath.Match(prefix, strings.Join(parts[:i], "/")); ok {
				return true
			}
		}
		return false
	}

	if i := strings.Index(pattern, "/**/"); i != -1 {
		prefix, suffix := pattern[:i], pattern[i+4:]
		parts := strings.Split(name, "/")
		for j := 1; j < len(parts); j++ {
			if ok, _ := filepath.Match(prefix, strings.Join(parts[:j], "/")); !ok {
				continue
			}
			for k := j; k < len(parts); k++ {
				if matchName(strings.Join(parts[k:], "/"), suffix) {
					return true
				}
			}
		}
		return false
	}

	ok, _ := filepath.Match(strings.ReplaceAll(pattern, "**", "*"), name)
	return ok
}

// ParsePatternList parses a comma-separated list of patterns into a slice.
// Example: "*.jpg,*.png" -> []string{"*.jpg", "*.png"}
func ParsePatternList(patternStr string) []string {
	if patternStr == "" {
		return nil
	}
	parts := strings.Split(patternStr, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}
	return patterns
}
