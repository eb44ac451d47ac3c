package transfer

import (
	"errors"
	"fmt"
)

// ErrUnknownUnit is returned for ids not present in the collection.
var ErrUnknownUnit = errors.New("unknown transfer unit")

// ErrNoBody indicates a response without a readable stream.
var ErrNoBody = errors.New("response has no readable body")

// FetchError describes why a single file could not be fetched. It never
// affects other units.
type FetchError struct {
	Name       string
	StatusCode int // 0 when the failure was not an HTTP status
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("failed to fetch %s: HTTP %d", e.Name, e.StatusCode)
	}
	return fmt.Sprintf("failed to fetch %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPStatusCode lets retry classification read the status.
func (e *FetchError) HTTPStatusCode() int {
	return e.StatusCode
}

// asFetchError wraps err unless it already is a *FetchError.
func asFetchError(name string, err error) error {
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Name: name, Err: err}
}
