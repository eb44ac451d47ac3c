// Package paths provides utilities for file path handling in downloads.
package paths

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// UniqueNames returns names with duplicates made unique by inserting a
// counter before the extension, comparing case-insensitively so archives
// extract cleanly on case-insensitive filesystems.
//
// Example: three files named "photo.jpg" become:
//   - photo.jpg
//   - photo_1.jpg
//   - photo_2.jpg
//
// The returned slice is parallel to names. The second result counts the
// names that had to be changed.
func UniqueNames(names []string) ([]string, int) {
	out := make([]string, len(names))
	taken := make(map[string]bool, len(names))
	for _, n := range names {
		taken[strings.ToLower(n)] = false
	}

	renamed := 0
	for i, n := range names {
		key := strings.ToLower(n)
		if used := taken[key]; !used {
			taken[key] = true
			out[i] = n
			continue
		}

		ext := path.Ext(n)
		base := n[:len(n)-len(ext)]
		for c := 1; ; c++ {
			candidate := fmt.Sprintf("%s_%d%s", base, c, ext)
			ckey := strings.ToLower(candidate)
			if used, exists := taken[ckey]; exists && (used || containsLater(names, i, ckey)) {
				continue
			}
			taken[ckey] = true
			out[i] = candidate
			renamed++
			break
		}
	}
	return out, renamed
}

// containsLater reports whether a name after position i lowercases to key.
func containsLater(names []string, i int, key string) bool {
	for _, n := range names[i+1:] {
		if strings.ToLower(n) == key {
			return true
		}
	}
	return false
}

// AvailablePath returns p, or p with a counter inserted before the
// extension if p already exists on disk.
//
// Example: "out/report.pdf" becomes "out/report_1.pdf" when the former exists.
func AvailablePath(p string) (string, error) {
	if _, err := os.Lstat(p); os.IsNotExist(err) {
		return p, nil
	} else if err != nil {
		return "", err
	}

	ext := filepath.Ext(p)
	base := p[:len(p)-len(ext)]
	for c := 1; ; c++ {
		candidate := fmt.Sprintf("%s_%d%s", base, c, ext)
		if _, err := os.Lstat(candidate); os.IsNotExist(err) {
			return candidate, nil
		} else if err != nil {
			return "", err
		}
	}
}
