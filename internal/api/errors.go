// Package api provides the metadata client that resolves a transfer
// identifier into file descriptors.
package api

import (
	"errors"
	"fmt"
)

// ErrTransferNotFound indicates the identifier is unknown or has expired.
var ErrTransferNotFound = errors.New("transfer not found")

// DescriptorFetchError reports a failed metadata lookup.
//
// NotFound separates a terminal "no such transfer" (404, 410, malformed id)
// from transient failures that re-running the command may fix.
type DescriptorFetchError struct {
	ID         string
	StatusCode int // 0 when no response was received
	NotFound   bool
	Err        error
}

func (e *DescriptorFetchError) Error() string {
	switch {
	case e.NotFound:
		return fmt.Sprintf("transfer %q not found", e.ID)
	case e.StatusCode != 0:
		return fmt.Sprintf("transfer %q: metadata lookup failed with status %d: %v", e.ID, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("transfer %q: metadata lookup failed: %v", e.ID, e.Err)
	}
}

func (e *DescriptorFetchError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means the transfer does not exist.
//
// Usage:
//
//	files, err := client.GetTransfer(ctx, id)
//	if api.IsNotFound(err) {
//	    // show the dedicated not-found message
//	}
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrTransferNotFound) {
		return true
	}
	var dfe *DescriptorFetchError
	return errors.As(err, &dfe) && dfe.NotFound
}
