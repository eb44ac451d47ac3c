// Package session ties one transfer together: it loads the file list,
// runs the scheduler, keeps the selection and performs the save, bundle
// and share actions. A Session owns its handle cache and releases every
// handle on Close.
package session

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/google/uuid"

	"github.com/dropshare/dropget/internal/api"
	"github.com/dropshare/dropget/internal/bundle"
	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/handles"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/preview"
	"github.com/dropshare/dropget/internal/ratelimit"
	"github.com/dropshare/dropget/internal/share"
	"github.com/dropshare/dropget/internal/transfer"
)

// DescriptorSource lists the files of a transfer. *api.Client implements it.
type DescriptorSource interface {
	GetTransfer(ctx context.Context, id string) ([]models.FileDescriptor, error)
}

// Options configures a Session. Only Config is required; every other
// collaborator is derived from it when nil.
type Options struct {
	Config     *config.Config
	HTTPClient *nethttp.Client
	Opener     transfer.Opener
	Policy     transfer.Policy
	Trigger    bundle.Trigger
	Sharer     share.Sharer
	EventBus   *events.EventBus
	Logger     *logging.Logger
}

// Session is one opened transfer.
type Session struct {
	id         string
	transferID string
	cfg        *config.Config
	eventBus   *events.EventBus
	logger     *logging.Logger

	coll      *transfer.Collection
	scheduler *transfer.Scheduler
	fetcher   *transfer.Fetcher
	handles   *handles.Cache
	previews  *preview.Generator
	packager  *bundle.Packager
	trigger   bundle.Trigger
	sharer    share.Sharer
	selection *Selection
}

// Open fetches the file list of transferID from src and builds a session
// for it. A transfer that does not exist yields an error for which
// api.IsNotFound is true; nothing is fetched in that case.
func Open(ctx context.Context, src DescriptorSource, transferID string, opts Options) (*Session, error) {
	descs, err := src.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	s, err := New(descs, opts)
	if err != nil {
		return nil, err
	}
	s.transferID = transferID
	s.logger.Info().
		Str("transfer", transferID).
		Int("files", len(descs)).
		Str("policy", s.scheduler.Policy().Name()).
		Msg("Transfer opened")
	return s, nil
}

// New builds a session over an already known file list.
func New(descs []models.FileDescriptor, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	logger := logging.OrNop(opts.Logger)

	opener := opts.Opener
	if opener == nil {
		httpClient := opts.HTTPClient
		if httpClient == nil {
			return nil, fmt.Errorf("session needs an HTTP client or an opener")
		}
		opener = NewOpenerRegistry(cfg, httpClient, logger)
	}

	policy := opts.Policy
	if policy == nil {
		policy = NewPolicy(cfg, logger)
	}

	trigger := opts.Trigger
	if trigger == nil {
		dir, err := cfg.ResolveOutputDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve output directory: %w", err)
		}
		trigger = bundle.NewDirTrigger(dir, logger)
	}

	sharer := opts.Sharer
	if sharer == nil {
		sharer = share.Unavailable{Reason: "no share target"}
	}

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		eventBus: opts.EventBus,
		logger:   logger,
		handles:  handles.NewCache(logger),
		previews: preview.NewGenerator(constants.PreviewMaxChars, logger),
		packager: bundle.NewPackager(constants.ArchiveCompressionLevel, logger),
		trigger:  trigger,
		sharer:   sharer,
	}
	s.coll = transfer.NewCollection(descs, opts.EventBus)
	s.fetcher = transfer.NewFetcher(opener, transfer.FetcherOptions{
		Handles:   s.handles,
		Bandwidth: ratelimit.NewBandwidth(cfg.MaxBandwidth, constants.ReadChunkSize),
		Logger:    logger,
	})
	s.scheduler = transfer.NewScheduler(s.coll, s.fetcher, transfer.SchedulerOptions{
		Policy:     policy,
		EventBus:   opts.EventBus,
		Logger:     logger,
		OnComplete: s.attachPreview,
	})
	s.selection = newSelection(opts.EventBus, s.unitIDs)
	return s, nil
}

// ID is a random identifier of this session, used in logs.
func (s *Session) ID() string { return s.id }

// TransferID is the transfer the session was opened for, if any.
func (s *Session) TransferID() string { return s.transferID }

// Events returns the bus the session publishes to, possibly nil.
func (s *Session) Events() *events.EventBus { return s.eventBus }

// Selection returns the user's selection.
func (s *Session) Selection() *Selection { return s.selection }

// Handles exposes the session's handle cache.
func (s *Session) Handles() *handles.Cache { return s.handles }

// Policy returns the admission policy in use.
func (s *Session) Policy() transfer.Policy { return s.scheduler.Policy() }

// Start begins fetching every pending unit. It returns immediately.
func (s *Session) Start(ctx context.Context) {
	s.scheduler.Start(ctx)
}

// Wait blocks until no unit is pending or downloading, or ctx is done.
func (s *Session) Wait(ctx context.Context) error {
	return s.scheduler.Wait(ctx)
}

// Units returns a snapshot of every unit in display order.
func (s *Session) Units() []transfer.Unit {
	return s.coll.Snapshot()
}

// Unit returns one unit by id.
func (s *Session) Unit(id string) (transfer.Unit, bool) {
	return s.coll.Get(id)
}

// Progress summarizes the current state of all units.
func (s *Session) Progress() Aggregate {
	return aggregate(s.coll.Snapshot())
}

// Retry moves a failed unit back to pending and restarts fetching. It
// reports false, and does nothing, for units that are not failed.
func (s *Session) Retry(ctx context.Context, id string) bool {
	u, ok := s.coll.Get(id)
	if !ok || u.Status != transfer.StatusError {
		return false
	}
	return s.scheduler.Retry(ctx, id)
}

// RetryFailed retries every failed unit and returns how many were reset.
func (s *Session) RetryFailed(ctx context.Context) int {
	n := 0
	for _, u := range s.coll.Snapshot() {
		if u.Status == transfer.StatusError && s.Retry(ctx, u.ID) {
			n++
		}
	}
	return n
}

// Remove drops a unit from the session and releases its handles. A fetch
// in flight for it finishes in the background and is discarded.
func (s *Session) Remove(id string) error {
	u, ok := s.coll.Remove(id)
	if !ok {
		return fmt.Errorf("%w: %s", transfer.ErrUnknownUnit, id)
	}
	s.selection.Deselect(id)
	evicted := s.handles.EvictUnit(id)
	s.logger.Debug().Str("unit", id).Str("status", string(u.Status)).Int("handles", evicted).Msg("Unit removed")
	return nil
}

// Close stops fetching and releases every handle. The session must not be
// used afterwards.
func (s *Session) Close() {
	s.scheduler.Stop()
	s.handles.Close()
}

func (s *Session) unitIDs() []string {
	units := s.coll.Snapshot()
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

// attachPreview runs after a unit completes. Failures only leave the
// preview unset.
func (s *Session) attachPreview(ctx context.Context, u transfer.Unit) {
	p, err := s.previews.FromSource(u.Source())
	if err != nil {
		s.logger.Warn().Err(err).Str("file", u.Name()).Msg("No preview")
		return
	}
	s.coll.SetPreview(u.ID, transfer.Preview{Text: p.Text, Kind: string(p.Kind)})
}

// IsNotFound reports whether err means the transfer does not exist.
func IsNotFound(err error) bool {
	return api.IsNotFound(err)
}
