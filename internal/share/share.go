// Package share hands completed images to a share target. When no target
// is available the caller falls back to a zip download.
package share

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dropshare/dropget/internal/cloud"
	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/util/sanitize"
)

// ErrNothingToShare is returned for a request without files.
var ErrNothingToShare = errors.New("no files to share")

// ShareUnavailableError means the share target cannot be used at all.
type ShareUnavailableError struct {
	Reason string
}

func (e *ShareUnavailableError) Error() string {
	if e.Reason == "" {
		return "sharing is not available"
	}
	return "sharing is not available: " + e.Reason
}

// IsUnavailable reports whether err says sharing cannot be used.
func IsUnavailable(err error) bool {
	var sue *ShareUnavailableError
	return errors.As(err, &sue)
}

// File is one blob to share.
type File struct {
	Name     string
	Data     []byte
	MimeType string
}

// Request is what gets shared.
type Request struct {
	Title string
	Text  string
	Files []File
}

// Link points at one shared file.
type Link struct {
	Name string
	URL  string
}

// Result describes a completed share.
type Result struct {
	Title     string
	Text      string
	Links     []Link
	ExpiresAt time.Time
}

// Sharer publishes files.
type Sharer interface {
	Share(ctx context.Context, req Request) (*Result, error)
	Name() string
}

// Unavailable is the sharer used when no target is configured.
type Unavailable struct {
	Reason string
}

func (u Unavailable) Name() string { return "none" }

// Share always fails with a ShareUnavailableError.
func (u Unavailable) Share(context.Context, Request) (*Result, error) {
	return nil, &ShareUnavailableError{Reason: u.Reason}
}

// S3Sharer uploads files under a fresh prefix and returns presigned links.
type S3Sharer struct {
	uploader storage.Uploader
	prefix   string
	ttl      time.Duration
	workers  int
	logger   *logging.Logger
	now      func() time.Time
}

// NewS3Sharer creates a sharer on top of uploader. A zero ttl uses the
// default link lifetime.
func NewS3Sharer(uploader storage.Uploader, prefix string, ttl time.Duration, logger *logging.Logger) *S3Sharer {
	if ttl <= 0 {
		ttl = constants.DefaultShareTTL
	}
	return &S3Sharer{
		uploader: uploader,
		prefix:   prefix,
		ttl:      ttl,
		workers:  constants.SaveAllWorkers,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

func (s *S3Sharer) Name() string { return "s3" }

// Share uploads every file and presigns a GET link for each. Files of one
// share land under the same random prefix.
func (s *S3Sharer) Share(ctx context.Context, req Request) (*Result, error) {
	if s.uploader == nil {
		return nil, &ShareUnavailableError{Reason: "no share bucket configured"}
	}
	if len(req.Files) == 0 {
		return nil, ErrNothingToShare
	}

	id := uuid.NewString()
	expires := s.now().Add(s.ttl)
	links := make([]Link, len(req.Files))

	var total int64
	for _, f := range req.Files {
		total += int64(len(f.Data))
	}
	timer := cloud.StartTimer(nil, "share upload")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, f := range req.Files {
		g.Go(func() error {
			key := path.Join(s.prefix, id, fmt.Sprintf("%d-%s", i, sanitize.FileName(f.Name)))
			if err := s.uploader.PutObject(gctx, key, f.Data, f.MimeType); err != nil {
				return fmt.Errorf("failed to upload %s: %w", f.Name, err)
			}
			url, err := s.uploader.PresignGet(gctx, key, s.ttl)
			if err != nil {
				return fmt.Errorf("failed to sign link for %s: %w", f.Name, err)
			}
			links[i] = Link{Name: f.Name, URL: url}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	timer.StopBytes(total)

	s.logger.Info().
		Str("share_id", id).
		Int("files", len(links)).
		Time("expires", expires).
		Msg("Shared files")
	return &Result{Title: req.Title, Text: req.Text, Links: links, ExpiresAt: expires}, nil
}
