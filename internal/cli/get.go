package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dropshare/dropget/internal/api"
	"github.com/dropshare/dropget/internal/bundle"
	"github.com/dropshare/dropget/internal/config"
	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/http"
	"github.com/dropshare/dropget/internal/progress"
	"github.com/dropshare/dropget/internal/resources"
	"github.com/dropshare/dropget/internal/session"
	"github.com/dropshare/dropget/internal/share"
	"github.com/dropshare/dropget/internal/transfer"
	"github.com/dropshare/dropget/internal/util/filter"
	ustrings "github.com/dropshare/dropget/internal/util/strings"
)

// getOptions holds the flags of 'get'.
type getOptions struct {
	selectKeys  []string
	include     []string
	exclude     []string
	separate    bool
	share       bool
	retryFailed int
	preview     bool
	noBars      bool
	concurrency int
	budget      int64
	bandwidth   int64
	outDir      string
}

func newGetCmd() *cobra.Command {
	opts := &getOptions{}

	cmd := &cobra.Command{
		Use:   "get <transfer-id>",
		Short: "Download every file of a transfer",
		Long: `Download every file of a transfer concurrently and save the result.

By default all files that arrived are saved together: a single file is
saved as itself, several files are packed into "<first-name>.zip".

Examples:
  dropget get a1b2c3
  dropget get a1b2c3 --select 1,3
  dropget get a1b2c3 --select report.pdf --separate
  dropget get a1b2c3 --share
  dropget get a1b2c3 --budget 52428800 --bandwidth 1048576`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := opts.apply(cmd, cfg); err != nil {
				return err
			}
			return runGet(GetContext(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.selectKeys, "select", "s", nil, "Files to save, by name or 1-based position (comma-separated)")
	cmd.Flags().StringSliceVar(&opts.include, "include", nil, "Select files matching glob patterns, e.g. '*.jpg,raw/**'")
	cmd.Flags().StringSliceVar(&opts.exclude, "exclude", nil, "Leave out files matching glob patterns")
	cmd.Flags().BoolVar(&opts.separate, "separate", false, "Save each file on its own instead of one archive")
	cmd.Flags().BoolVar(&opts.share, "share", false, "Share the images; saves them as an archive if sharing is not possible")
	cmd.Flags().IntVar(&opts.retryFailed, "retry-failed", 0, "Retry failed files up to N times before saving")
	cmd.Flags().BoolVar(&opts.preview, "preview", false, "Print a text preview of each file")
	cmd.Flags().BoolVar(&opts.noBars, "no-bars", false, "Show one overall bar instead of one bar per file")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Files fetched at once (overrides config)")
	cmd.Flags().Int64Var(&opts.budget, "budget", 0, "Admit files by a byte budget instead of a fixed count")
	cmd.Flags().Int64Var(&opts.bandwidth, "bandwidth", 0, "Bandwidth cap in bytes per second, shared by all files")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "Directory to save into (overrides config)")

	return cmd
}

func (o *getOptions) filter() filter.Config {
	return filter.Config{Include: o.include, Exclude: o.exclude}
}

// apply copies explicitly set flags onto cfg and revalidates it.
func (o *getOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	if o.separate && o.share {
		return errors.New("--separate and --share cannot be combined")
	}
	// Sharing always takes every image that arrived.
	if o.share && (len(o.selectKeys) > 0 || len(o.include) > 0 || len(o.exclude) > 0) {
		return errors.New("--share cannot be combined with --select, --include or --exclude")
	}
	if o.retryFailed < 0 {
		return errors.New("--retry-failed must not be negative")
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency = o.concurrency
	}
	if cmd.Flags().Changed("budget") {
		cfg.AdmissionMode = config.AdmissionBudget
		cfg.ByteBudget = o.budget
	}
	if cmd.Flags().Changed("bandwidth") {
		cfg.MaxBandwidth = o.bandwidth
	}
	if o.outDir != "" {
		cfg.OutputDir = o.outDir
	}
	return cfg.Validate()
}

func runGet(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, id string, opts *getOptions) error {
	logger := GetLogger()

	bus := events.NewEventBus(0)
	defer bus.Close()

	apiClient, err := api.NewClient(cfg, logger)
	if err != nil {
		return err
	}
	httpClient, err := http.CreateOptimizedClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	sessOpts := session.Options{
		Config:     cfg,
		HTTPClient: httpClient,
		EventBus:   bus,
		Logger:     logger,
	}
	if opts.share {
		sessOpts.Sharer = session.NewSharer(ctx, cfg, httpClient, logger)
	}

	sess, err := session.Open(ctx, apiClient, id, sessOpts)
	if err != nil {
		if session.IsNotFound(err) {
			fmt.Fprintf(stderr, "Transfer %q was not found. It may have expired or the link is mistyped.\n", id)
		}
		return err
	}
	defer sess.Close()

	units := sess.Units()
	if len(units) == 0 {
		fmt.Fprintln(stdout, "The transfer holds no files.")
		return nil
	}

	var selected []string
	if len(opts.selectKeys) > 0 {
		if selected, err = sess.SelectKeys(opts.selectKeys); err != nil {
			return err
		}
	}
	if f := opts.filter(); !f.IsEmpty() {
		matched := sess.SelectMatching(f)
		if len(matched) == 0 {
			return errors.New("no file matches --include/--exclude")
		}
		selected = sess.Selection().IDs()
	}
	if len(selected) > 0 {
		logger.Debug().Strs("units", selected).Msg("Selection")
	}

	fmt.Fprintf(stderr, "Fetching %s (%s)\n", ustrings.Count(int64(len(units)), "file"), sess.Policy().Name())

	if err := fetchAll(ctx, stderr, sess, opts); err != nil {
		return err
	}

	if opts.preview {
		printPreviews(stdout, sess.Units())
	}

	if err := saveResult(ctx, stdout, sess, selected, opts); err != nil {
		return err
	}

	agg := sess.Progress()
	if agg.Failed > 0 {
		return fmt.Errorf("%d of %d %s could not be fetched",
			agg.Failed, agg.Total(), ustrings.Pluralize("file", int64(agg.Total())))
	}
	return nil
}

// fetchAll runs the session until idle, showing progress, then performs the
// retry rounds the user asked for.
func fetchAll(ctx context.Context, stderr io.Writer, sess *session.Session, opts *getOptions) error {
	logger := GetLogger()
	units := sess.Units()

	ui := progress.NewDownloadUITo(stderr, len(units))
	var overall *progress.Overall
	if opts.noBars && ui.IsTerminal() {
		ui = progress.NewDownloadUITo(io.Discard, len(units))
		overall = progress.NewOverall(progress.NewCLIProgressTo(stderr, false))
	} else if ui.IsTerminal() {
		prev := logger.Output()
		logger.SetOutput(ui.Writer())
		defer logger.SetOutput(prev)
	}

	tracker := progress.NewTracker(ui, sess.Events(), units)
	tracker.Start(ctx)
	defer func() {
		tracker.Stop()
		ui.Wait()
		if overall != nil {
			overall.Done()
		}
	}()

	wait := func() error {
		if overall == nil {
			return sess.Wait(ctx)
		}
		return waitWithOverall(ctx, sess, overall)
	}

	sess.Start(ctx)
	if err := wait(); err != nil {
		return err
	}

	for round := 0; round < opts.retryFailed && sess.Progress().Failed > 0; round++ {
		n := sess.RetryFailed(ctx)
		logger.Info().Int("files", n).Int("round", round+1).Msg("Retrying failed files")
		if err := wait(); err != nil {
			return err
		}
	}

	if sess.Progress().Failed == 0 || opts.retryFailed > 0 || !stdinIsTerminal() {
		return nil
	}
	p := newPrompter(os.Stdin, ui.Writer())
	for sess.Progress().Failed > 0 {
		switch promptRetryFailed(p, failedNames(sess.Units())) {
		case RetryFailed:
			sess.RetryFailed(ctx)
			if err := wait(); err != nil {
				return err
			}
		case RetryAbort:
			return errors.New("aborted")
		default:
			return nil
		}
	}
	return nil
}

// waitWithOverall polls the session aggregate into the overall bar until
// the session is idle.
func waitWithOverall(ctx context.Context, sess *session.Session, overall *progress.Overall) error {
	done := make(chan error, 1)
	go func() { done <- sess.Wait(ctx) }()

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case err := <-done:
			agg := sess.Progress()
			overall.Set(agg.Percent, agg.Started)
			return err
		case <-ticker.C:
			agg := sess.Progress()
			overall.Set(agg.Percent, agg.Started)
		}
	}
}

func failedNames(units []transfer.Unit) []string {
	var names []string
	for _, u := range units {
		if u.Status == transfer.StatusError {
			names = append(names, u.Name())
		}
	}
	return names
}

func printPreviews(out io.Writer, units []transfer.Unit) {
	for _, u := range units {
		if u.Preview == nil {
			continue
		}
		fmt.Fprintf(out, "── %s (%s)\n", u.Name(), u.Preview.Kind)
		if u.Preview.Text != "" {
			fmt.Fprintln(out, u.Preview.Text)
		}
		fmt.Fprintln(out)
	}
}

// saveResult performs the save action chosen by the flags.
func saveResult(ctx context.Context, out io.Writer, sess *session.Session, selected []string, opts *getOptions) error {
	var emptyErr *bundle.EmptyBundleError

	switch {
	case opts.share:
		outcome, err := sess.ShareImages(ctx)
		if errors.Is(err, share.ErrNothingToShare) {
			fmt.Fprintln(out, "No images to share.")
			return nil
		}
		if err != nil {
			return err
		}
		if outcome.Shared != nil {
			fmt.Fprintf(out, "%s: %s\n", outcome.Shared.Title, outcome.Shared.Text)
			for _, l := range outcome.Shared.Links {
				fmt.Fprintf(out, "  %s  %s\n", l.Name, l.URL)
			}
			fmt.Fprintf(out, "Links expire at %s\n", outcome.Shared.ExpiresAt.Format(time.RFC3339))
			return nil
		}
		if share.IsUnavailable(outcome.ShareErr) {
			fmt.Fprintf(out, "Saved %s\n", outcome.Fallback.Path)
			return nil
		}
		fmt.Fprintf(out, "Sharing failed (%v); saved %s\n", outcome.ShareErr, outcome.Fallback.Path)
		return nil

	case opts.separate:
		paths, err := sess.SaveSeparately(ctx, selected...)
		saved := 0
		for _, p := range paths {
			if p != "" {
				fmt.Fprintf(out, "Saved %s\n", p)
				saved++
			}
		}
		if errors.As(err, &emptyErr) {
			fmt.Fprintln(out, "Nothing to save: no requested file arrived.")
			return err
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s saved\n", ustrings.Count(int64(saved), "file"))
		return nil

	default:
		var res *session.SaveResult
		var err error
		if len(selected) > 0 {
			res, err = sess.DownloadSelected(ctx)
		} else {
			res, err = sess.DownloadAll(ctx)
		}
		if errors.As(err, &emptyErr) {
			fmt.Fprintln(out, "Nothing to save: no requested file arrived.")
			return err
		}
		if err != nil {
			return err
		}
		if res.Archive {
			fmt.Fprintf(out, "Saved %d %s to %s (%s)\n",
				res.Entries, ustrings.Pluralize("file", int64(res.Entries)), res.Path, resources.FormatBytes(res.Bytes))
		} else {
			fmt.Fprintf(out, "Saved %s (%s)\n", res.Path, resources.FormatBytes(res.Bytes))
		}
		return nil
	}
}
