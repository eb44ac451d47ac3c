// Package diskspace checks free space before saved downloads hit the disk.
package diskspace

import (
	"errors"
	"fmt"

	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/resources"
)

// DefaultSafetyMargin leaves 10% headroom over the bytes being written.
const DefaultSafetyMargin = 1.1

// InsufficientSpaceError indicates that there is not enough disk space available.
type InsufficientSpaceError struct {
	Path           string
	RequiredBytes  int64
	AvailableBytes int64
}

func (e *InsufficientSpaceError) Error() string {
	return fmt.Sprintf("insufficient disk space for %s: need %s, have %s available",
		e.Path, resources.FormatBytes(e.RequiredBytes), resources.FormatBytes(e.AvailableBytes))
}

// Unwrap lets callers match storage.ErrInsufficientSpace.
func (e *InsufficientSpaceError) Unwrap() error {
	return storage.ErrInsufficientSpace
}

// CheckAvailableSpace reports an InsufficientSpaceError when the filesystem
// holding dir has less than requiredBytes*safetyMargin free. If the free
// space cannot be determined the check passes and the write fails on its own.
func CheckAvailableSpace(dir string, requiredBytes int64, safetyMargin float64) error {
	if safetyMargin < 1 {
		safetyMargin = DefaultSafetyMargin
	}
	available, ok := availableBytes(dir)
	if !ok {
		return nil
	}

	required := int64(float64(requiredBytes) * safetyMargin)
	if available < required {
		return &InsufficientSpaceError{
			Path:           dir,
			RequiredBytes:  required,
			AvailableBytes: available,
		}
	}
	return nil
}

// GetAvailableSpace returns the free bytes on the filesystem holding dir,
// or 0 if unknown.
func GetAvailableSpace(dir string) int64 {
	n, _ := availableBytes(dir)
	return n
}

// IsInsufficientSpaceError checks if an error is an InsufficientSpaceError
func IsInsufficientSpaceError(err error) bool {
	var ise *InsufficientSpaceError
	return errors.As(err, &ise)
}
