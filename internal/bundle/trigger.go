package bundle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/dropshare/dropget/internal/cloud/storage"
	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/diskspace"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/util/paths"
	"github.com/dropshare/dropget/internal/util/sanitize"
)

// Trigger hands a finished blob to the user under a file name and returns
// where it ended up.
type Trigger interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DirTrigger saves blobs into a directory, never overwriting existing files.
type DirTrigger struct {
	Dir    string
	logger *logging.Logger
}

// NewDirTrigger creates a trigger that writes into dir.
func NewDirTrigger(dir string, logger *logging.Logger) *DirTrigger {
	return &DirTrigger{Dir: dir, logger: logging.OrNop(logger)}
}

// Save writes data as name inside the directory. A taken name gets a
// "_N" suffix.
func (t *DirTrigger) Save(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(t.Dir, constants.OutputDirPerm); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := diskspace.CheckAvailableSpace(t.Dir, int64(len(data)), diskspace.DefaultSafetyMargin); err != nil {
		return "", err
	}

	target := filepath.Join(t.Dir, sanitize.FileName(name))
	if err := within(t.Dir, target); err != nil {
		return "", err
	}
	f, path, err := createExclusive(target)
	if err != nil {
		return "", err
	}

	_, werr := f.Write(data)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		if storage.IsDiskFullError(werr) {
			return "", fmt.Errorf("failed to write %s: %w: %v", path, storage.ErrInsufficientSpace, werr)
		}
		return "", fmt.Errorf("failed to write %s: %w", path, werr)
	}

	t.logger.Debug().Str("path", path).Int("bytes", len(data)).Msg("Saved download")
	return path, nil
}

// within fails when path, once cleaned, leaves dir.
func within(dir, path string) error {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to place %s in %s: %w", path, dir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s escapes output directory %s", path, dir)
	}
	return nil
}

// createExclusive opens the first free variant of target. Another writer
// may claim a name between the check and the open, so O_EXCL decides.
func createExclusive(target string) (*os.File, string, error) {
	for {
		path, err := paths.AvailablePath(target)
		if err != nil {
			return nil, "", err
		}
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, constants.OutputFilePerm)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("failed to create %s: %w", path, err)
		}
		return f, path, nil
	}
}

// SaveAll writes entries through t with at most workers writes in flight.
// The returned paths are parallel to entries; the first error cancels the
// writes that have not started.
func SaveAll(ctx context.Context, t Trigger, entries []Entry, workers int) ([]string, error) {
	if len(entries) == 0 {
		return nil, &EmptyBundleError{}
	}
	if workers <= 0 {
		workers = constants.SaveAllWorkers
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = sanitize.FileName(e.Name)
	}
	names, _ = paths.UniqueNames(names)

	saved := make([]string, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		g.Go(func() error {
			p, err := t.Save(ctx, names[i], e.Data)
			if err != nil {
				return fmt.Errorf("failed to save %s: %w", e.Name, err)
			}
			saved[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return saved, err
	}
	return saved, nil
}
