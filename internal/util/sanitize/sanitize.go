// Package sanitize turns untrusted file names into safe local names.
//
// Names come from a remote service and end up as paths on disk and as
// archive entries, so this package removes:
//   - Directory components and traversal ("../", "C:\")
//   - Control and invisible Unicode characters (zero-width spaces, etc.)
//   - Characters Windows refuses in file names
package sanitize

import (
	"path"
	"regexp"
	"strings"
	"unicode"
)

// invisibleChars are removed outright.
var invisibleChars = []string{
	"\u200B", // Zero-width space
	"\u200C", // Zero-width non-joiner
	"\u200D", // Zero-width joiner
	"\uFEFF", // Zero-width no-break space (BOM)
	"\u00AD", // Soft hyphen
	"\u2060", // Word joiner
	"\u180E", // Mongolian vowel separator
}

var (
	reservedChars = regexp.MustCompile(`[<>:"|?*]`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// FileName returns a single path element safe to create on any OS.
// It never returns an empty string, ".", or "..".
func FileName(name string) string {
	name = removeInvisibleChars(name)
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(name)
	name = whitespaceRun.ReplaceAllString(name, " ")

	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = reservedChars.ReplaceAllString(name, "_")
	name = strings.TrimSpace(name)
	name = strings.TrimRight(name, ". ")

	switch name {
	case "", ".", "..", "/":
		return "file"
	}
	return name
}

// Field trims whitespace and strips invisible characters from a display value.
func Field(field string) string {
	if field == "" {
		return field
	}
	return strings.TrimSpace(removeInvisibleChars(field))
}

func removeInvisibleChars(s string) string {
	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}
