package models

import (
	"fmt"
	"net/url"
	"strings"
)

// FileDescriptor describes one file available in a transfer, as returned by
// the metadata service. Descriptors are never modified after they are read.
type FileDescriptor struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Size     int64  `json:"size,omitempty"` // 0 when the service does not declare it
	MimeType string `json:"type,omitempty"`
}

// HasSize reports whether the descriptor declares a usable size.
func (d FileDescriptor) HasSize() bool {
	return d.Size > 0
}

// Validate checks that the descriptor can be fetched.
func (d FileDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("descriptor has empty name")
	}
	if d.URL == "" {
		return fmt.Errorf("descriptor %q has empty url", d.Name)
	}
	if _, err := url.Parse(d.URL); err != nil {
		return fmt.Errorf("descriptor %q has invalid url: %w", d.Name, err)
	}
	if d.Size < 0 {
		return fmt.Errorf("descriptor %q has negative size", d.Name)
	}
	return nil
}

// Normalize fills the MIME type from the file extension when the service
// left it out.
func (d FileDescriptor) Normalize() FileDescriptor {
	if d.MimeType == "" {
		d.MimeType = MimeTypeForName(d.Name)
	}
	return d
}

// UnitID derives the identifier of the transfer unit built from the
// descriptor at position index. The index keeps ids unique even when two
// files share a name.
func UnitID(name string, index int) string {
	return fmt.Sprintf("%s-%d", name, index)
}
