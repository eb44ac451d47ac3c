package storage

import (
	"errors"
	"strings"
	"syscall"
)

var (
	ErrObjectNotFound    = errors.New("object not found")
	ErrInvalidLocation   = errors.New("invalid object location")
	ErrInsufficientSpace = errors.New("insufficient disk space")
)

// StatusError is a storage call that failed with an HTTP status.
type StatusError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *StatusError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *StatusError) Unwrap() error { return e.Err }

// HTTPStatusCode lets retry classification read the status.
func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// Lowercase fragments of out-of-space messages on Unix, Windows and quota
// filesystems.
var diskFullMessages = []string{
	"no space left on device",
	"enospc",
	"disk full",
	"out of disk space",
	"insufficient disk space",
	"not enough space",
	"disk quota exceeded",
}

// IsDiskFullError reports whether err means the disk ran out of space.
func IsDiskFullError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrInsufficientSpace) || errors.Is(err, syscall.ENOSPC) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range diskFullMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
