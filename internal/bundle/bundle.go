// Package bundle turns completed units into something the user can save:
// the file itself when there is only one, otherwise a zip archive.
package bundle

import (
	"fmt"
	"strings"
	"time"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/transfer"
	"github.com/dropshare/dropget/internal/util/sanitize"
)

// EmptyBundleError is returned when none of the requested units hold bytes.
type EmptyBundleError struct {
	Requested int
}

func (e *EmptyBundleError) Error() string {
	if e.Requested == 0 {
		return "nothing to bundle: no files selected"
	}
	return fmt.Sprintf("nothing to bundle: none of the %d selected files has finished downloading", e.Requested)
}

// Entry is one file headed for the archive or the disk.
type Entry struct {
	UnitID   string
	Name     string
	Data     []byte
	MimeType string
	Modified time.Time
}

// Request describes what to save. Exactly one of Single and Entries is set.
type Request struct {
	Folder  string
	Single  *Entry
	Entries []Entry
}

// IsSingle reports whether the request is a direct download.
func (r Request) IsSingle() bool {
	return r.Single != nil
}

// Plan selects the units that hold bytes. A lone unit becomes a direct
// download; several are grouped under a folder named after the first one.
func Plan(units []transfer.Unit) (Request, error) {
	var entries []Entry
	for _, u := range units {
		if !u.HasData() {
			continue
		}
		entries = append(entries, entryFor(u))
	}

	switch len(entries) {
	case 0:
		return Request{}, &EmptyBundleError{Requested: len(units)}
	case 1:
		return Request{Single: &entries[0]}, nil
	}
	return Request{Folder: FolderName(entries[0].Name), Entries: entries}, nil
}

// FolderName derives the archive folder from a file name: everything before
// the first dot, or the default bundle name when that is empty.
func FolderName(name string) string {
	base, _, _ := strings.Cut(strings.TrimSpace(name), ".")
	if strings.TrimSpace(base) == "" {
		return constants.DefaultBundleName
	}
	return sanitize.FileName(base)
}

func entryFor(u transfer.Unit) Entry {
	mod := u.CompletedAt
	if mod.IsZero() {
		mod = time.Now()
	}
	return Entry{
		UnitID:   u.ID,
		Name:     u.Name(),
		Data:     u.Data,
		MimeType: u.MimeType,
		Modified: mod,
	}
}
