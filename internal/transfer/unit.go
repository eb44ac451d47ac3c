// Package transfer fetches the files of a transfer concurrently.
//
// A Collection holds one Unit per file and is the single source of truth
// for their state. The Scheduler admits pending units under a Policy and
// hands them to the Fetcher, which streams each body into memory.
package transfer

import (
	"time"

	"github.com/dropshare/dropget/internal/models"
)

// Status is the lifecycle state of a unit.
//
//	pending -> downloading -> complete
//	                       -> error -> pending (explicit retry only)
type Status string

const (
	StatusPending     Status = "pending"     // Waiting for admission
	StatusDownloading Status = "downloading" // Admitted, body streaming
	StatusComplete    Status = "complete"    // Body assembled
	StatusError       Status = "error"       // Fetch failed, retry allowed
)

// Preview is the excerpt attached to a completed unit.
type Preview struct {
	Text string // Empty for non-text files
	Kind string // File category used for display (image, pdf, text, ...)
}

// Unit is one file of a transfer. Units are values: every change produces a
// new Unit inside a new collection snapshot, and Data is never written
// after assembly.
type Unit struct {
	ID         string
	Index      int
	Descriptor models.FileDescriptor

	Status   Status
	Progress int   // 0..100, never decreases within an attempt
	Received int64 // Bytes read in the current attempt
	Total    int64 // Expected bytes for the current attempt, 0 if unknown

	Data     []byte // Set only when complete
	MimeType string
	Preview  *Preview
	Handle   string // Download handle token, "" when none

	Err         error
	Attempts    int
	StartedAt   time.Time
	CompletedAt time.Time
}

// NewUnits builds pending units from descriptors, preserving their order.
func NewUnits(descs []models.FileDescriptor) []Unit {
	units := make([]Unit, len(descs))
	for i, d := range descs {
		units[i] = Unit{
			ID:         models.UnitID(d.Name, i),
			Index:      i,
			Descriptor: d,
			Status:     StatusPending,
			MimeType:   d.MimeType,
		}
	}
	return units
}

// Name returns the file name.
func (u Unit) Name() string {
	return u.Descriptor.Name
}

// HasData reports whether the unit holds its assembled bytes.
func (u Unit) HasData() bool {
	return u.Status == StatusComplete && u.Data != nil
}

// IsImage reports whether the resolved type is an image.
func (u Unit) IsImage() bool {
	return models.IsImageType(u.MimeType)
}

// Source exposes the unit to consumers that work on models.Source.
func (u Unit) Source() models.Source {
	return &models.RemoteSource{
		Descriptor: u.Descriptor,
		Data:       u.Data,
		Resolved:   u.MimeType,
	}
}
