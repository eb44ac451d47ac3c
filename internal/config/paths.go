package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// DownloadsDirectory returns the user's Downloads folder, falling back to
// the working directory when no home is available.
//
// Locations:
//   - Windows: %USERPROFILE%\Downloads
//   - Unix: ~/Downloads
func DownloadsDirectory() string {
	if runtime.GOOS == "windows" {
		if profile := os.Getenv("USERPROFILE"); profile != "" {
			return filepath.Join(profile, "Downloads")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, "Downloads")
}

// ExpandPath resolves a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// ResolveOutputDir returns the absolute output directory for cfg. Links in
// the part of the path that exists are resolved, so a Downloads folder that
// is a symlink or junction yields its target even before the output
// directory itself is created.
func (c *Config) ResolveOutputDir() (string, error) {
	dir := c.OutputDir
	if dir == "" {
		dir = DownloadsDirectory()
	}
	abs, err := filepath.Abs(ExpandPath(dir))
	if err != nil {
		return "", err
	}
	return resolveExisting(abs), nil
}

func resolveExisting(abs string) string {
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}

	current := abs
	var missing []string
	for {
		if _, err := os.Stat(current); err == nil {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				resolved = current
			}
			for i := len(missing) - 1; i >= 0; i-- {
				resolved = filepath.Join(resolved, missing[i])
			}
			return resolved
		}
		parent := filepath.Dir(current)
		if parent == current {
			return abs
		}
		missing = append(missing, filepath.Base(current))
		current = parent
	}
}
