package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"

	"github.com/klauspost/compress/flate"

	"github.com/dropshare/dropget/internal/constants"
	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/util/paths"
	"github.com/dropshare/dropget/internal/util/sanitize"
)

// ZipMimeType is the content type of packed archives.
const ZipMimeType = "application/zip"

// Archive is a packed bundle held in memory.
type Archive struct {
	Name     string   // "<folder>.zip"
	Data     []byte
	Entries  []string // Entry paths inside the archive, in write order
	Skipped  []string // Names that could not be added
	RawBytes int64    // Uncompressed payload size
}

// Packager writes deflate-compressed zip archives.
type Packager struct {
	level  int
	logger *logging.Logger
}

// NewPackager creates a packager. A level outside 1..9 uses the default.
func NewPackager(level int, logger *logging.Logger) *Packager {
	if level < flate.BestSpeed || level > flate.BestCompression {
		level = constants.ArchiveCompressionLevel
	}
	return &Packager{level: level, logger: logging.OrNop(logger)}
}

// Pack writes every entry of req under req.Folder. A single-file request
// is packed like any other. Entries that fail are skipped and logged; if
// none survive an EmptyBundleError is returned.
func (p *Packager) Pack(req Request) (*Archive, error) {
	entries := req.Entries
	if req.Single != nil {
		entries = []Entry{*req.Single}
	}
	folder := req.Folder
	if folder == "" && len(entries) > 0 {
		folder = FolderName(entries[0].Name)
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = sanitize.FileName(e.Name)
	}
	names, renamed := paths.UniqueNames(names)
	if renamed > 0 {
		p.logger.Debug().Int("renamed", renamed).Str("folder", folder).Msg("Duplicate names in bundle")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	level := p.level
	zw.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, level)
	})

	archive := &Archive{Name: folder + ".zip"}
	for i, e := range entries {
		name := path.Join(folder, names[i])
		if err := writeEntry(zw, name, e); err != nil {
			p.logger.Warn().Err(err).Str("file", e.Name).Msg("Skipping file in bundle")
			archive.Skipped = append(archive.Skipped, e.Name)
			continue
		}
		archive.Entries = append(archive.Entries, name)
		archive.RawBytes += int64(len(e.Data))
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish archive %s: %w", archive.Name, err)
	}
	if len(archive.Entries) == 0 {
		return nil, &EmptyBundleError{Requested: len(entries)}
	}

	archive.Data = buf.Bytes()
	p.logger.Debug().
		Str("archive", archive.Name).
		Int("entries", len(archive.Entries)).
		Int64("raw_bytes", archive.RawBytes).
		Int("zip_bytes", len(archive.Data)).
		Msg("Bundle packed")
	return archive, nil
}

func writeEntry(zw *zip.Writer, name string, e Entry) error {
	if e.Data == nil {
		return fmt.Errorf("%s has no data", e.Name)
	}
	hdr := &zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: e.Modified,
	}
	hdr.SetMode(constants.OutputFilePerm)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return err
	}
	_, err = w.Write(e.Data)
	return err
}
