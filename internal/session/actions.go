package session

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dropshare/dropget/internal/bundle"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/share"
	"github.com/dropshare/dropget/internal/transfer"
	"github.com/dropshare/dropget/internal/util/filter"
)

// SaveResult describes one blob handed to the download trigger.
type SaveResult struct {
	Name    string // File name the blob was saved as
	Path    string // Where the trigger put it
	Entries int    // Files inside, 1 for a direct download
	Bytes   int64
	Archive bool
}

// ShareOutcome is the result of ShareImages. Exactly one of Shared and
// Fallback is set when err is nil.
type ShareOutcome struct {
	Shared   *share.Result
	Fallback *SaveResult
	ShareErr error // Why the share fell back, if it did
}

// DownloadUnit saves one completed unit directly.
func (s *Session) DownloadUnit(ctx context.Context, id string) (*SaveResult, error) {
	u, ok := s.coll.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", transfer.ErrUnknownUnit, id)
	}
	return s.Bundle(ctx, []transfer.Unit{u})
}

// DownloadSelected bundles the selected units.
func (s *Session) DownloadSelected(ctx context.Context) (*SaveResult, error) {
	return s.Bundle(ctx, s.SelectedUnits())
}

// DownloadAll bundles every unit of the session.
func (s *Session) DownloadAll(ctx context.Context) (*SaveResult, error) {
	return s.Bundle(ctx, s.coll.Snapshot())
}

// Bundle saves units: one completed unit is saved as itself, several are
// packed into "<folder>.zip". Units without bytes are skipped; when none
// are left a *bundle.EmptyBundleError is returned and nothing is saved.
func (s *Session) Bundle(ctx context.Context, units []transfer.Unit) (*SaveResult, error) {
	req, err := bundle.Plan(units)
	if err != nil {
		return nil, err
	}

	if req.IsSingle() {
		e := req.Single
		return s.save(ctx, e.UnitID, e.Name, e.Data, e.MimeType, 1, false)
	}

	archive, err := s.packager.Pack(req)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, "bundle:"+s.id, archive.Name, archive.Data, bundle.ZipMimeType, len(archive.Entries), true)
}

// SaveSeparately saves each completed unit as its own file, several at a
// time. Without ids every unit is considered.
func (s *Session) SaveSeparately(ctx context.Context, ids ...string) ([]string, error) {
	units := s.coll.Snapshot()
	if len(ids) > 0 {
		units = s.unitsByID(ids)
	}
	req, err := bundle.Plan(units)
	if err != nil {
		return nil, err
	}
	entries := req.Entries
	if req.IsSingle() {
		entries = []bundle.Entry{*req.Single}
	}

	paths, err := bundle.SaveAll(ctx, s.trigger, entries, constants.SaveAllWorkers)
	for i, p := range paths {
		if p == "" {
			continue
		}
		s.publishSaved(&SaveResult{Name: entries[i].Name, Path: p, Entries: 1, Bytes: int64(len(entries[i].Data))})
	}
	return paths, err
}

// ShareImages shares every completed image. If the share target is
// missing or fails, the same images are bundled and saved instead.
func (s *Session) ShareImages(ctx context.Context) (*ShareOutcome, error) {
	var images []transfer.Unit
	var files []share.File
	for _, u := range s.coll.Snapshot() {
		if u.HasData() && u.IsImage() {
			images = append(images, u)
			files = append(files, share.File{Name: u.Name(), Data: u.Data, MimeType: u.MimeType})
		}
	}
	if len(images) == 0 {
		s.logger.Warn().Msg("No images to share")
		return nil, share.ErrNothingToShare
	}

	res, err := s.sharer.Share(ctx, share.Request{
		Title: constants.DefaultShareTitle,
		Text:  constants.DefaultShareText,
		Files: files,
	})
	if err == nil {
		links := make([]string, len(res.Links))
		for i, l := range res.Links {
			links[i] = l.URL
		}
		s.eventBus.Publish(&events.ShareEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventShared, Time: time.Now()},
			Files:     len(files),
			Links:     links,
		})
		return &ShareOutcome{Shared: res}, nil
	}

	if share.IsUnavailable(err) {
		s.logger.Debug().Err(err).Msg("Sharing unavailable, saving images instead")
	} else {
		s.logger.Warn().Err(err).Str("sharer", s.sharer.Name()).Msg("Share failed, saving images instead")
	}
	saved, ferr := s.Bundle(ctx, images)
	if ferr != nil {
		return nil, ferr
	}
	s.eventBus.Publish(&events.ShareEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventShared, Time: time.Now()},
		Files:     len(files),
		Fallback:  true,
	})
	return &ShareOutcome{Fallback: saved, ShareErr: err}, nil
}

// SelectedUnits returns the selected units in display order.
func (s *Session) SelectedUnits() []transfer.Unit {
	return s.unitsByID(s.selection.IDs())
}

// SelectKeys selects units by file name or by 1-based position in the list
// and returns the ids selected. Unknown keys are an error and leave the
// selection unchanged.
func (s *Session) SelectKeys(keys []string) ([]string, error) {
	units := s.coll.Snapshot()
	var ids []string
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		id, ok := matchKey(units, key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", transfer.ErrUnknownUnit, key)
		}
		ids = append(ids, id)
	}
	s.selection.Select(ids...)
	return ids, nil
}

// SelectMatching selects every unit whose name passes f and returns their
// ids in display order. An empty filter selects nothing.
func (s *Session) SelectMatching(f filter.Config) []string {
	if f.IsEmpty() {
		return nil
	}
	var ids []string
	for _, u := range s.coll.Snapshot() {
		if f.Match(u.Name()) {
			ids = append(ids, u.ID)
		}
	}
	s.selection.Select(ids...)
	return ids
}

func matchKey(units []transfer.Unit, key string) (string, bool) {
	for _, u := range units {
		if u.Name() == key || u.ID == key {
			return u.ID, true
		}
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= len(units) {
		return units[n-1].ID, true
	}
	return "", false
}

func (s *Session) unitsByID(ids []string) []transfer.Unit {
	var out []transfer.Unit
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, u := range s.coll.Snapshot() {
		if want[u.ID] {
			out = append(out, u)
		}
	}
	return out
}

// save hands data to the trigger through a short-lived handle. The handle
// is released HandleReleaseDelay after the save whatever its outcome.
func (s *Session) save(ctx context.Context, owner, name string, data []byte, mimeType string, entries int, archive bool) (*SaveResult, error) {
	token := s.handles.Create(owner, data, mimeType)
	defer s.handles.ReleaseAfter(token, constants.HandleReleaseDelay)

	path, err := s.trigger.Save(ctx, name, data)
	if err != nil {
		return nil, fmt.Errorf("failed to save %s: %w", name, err)
	}
	res := &SaveResult{Name: name, Path: path, Entries: entries, Bytes: int64(len(data)), Archive: archive}
	s.publishSaved(res)
	s.logger.Info().Str("file", name).Str("path", path).Int("entries", entries).Msg("Saved")
	return res, nil
}

func (s *Session) publishSaved(r *SaveResult) {
	s.eventBus.Publish(&events.BundleEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventBundleSaved, Time: time.Now()},
		Name:      r.Name,
		Path:      r.Path,
		Entries:   r.Entries,
		Bytes:     r.Bytes,
	})
}
