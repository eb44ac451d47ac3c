package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SourceKind tags where a Source's bytes live.
type SourceKind int

const (
	// SourceLocal is a file on the local disk, e.g. one picked for upload.
	SourceLocal SourceKind = iota
	// SourceRemote is a file fetched from a transfer and held in memory.
	SourceRemote
)

func (k SourceKind) String() string {
	switch k {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// Source is the capability shared by local and fetched files. Consumers such
// as the preview generator read through it without caring which kind it is.
type Source interface {
	Kind() SourceKind
	Name() string
	// SizeHint is the best known size in bytes, or 0 when unknown.
	SizeHint() int64
	MimeType() string
	// Open returns a reader over the bytes. Callers must close it.
	Open() (io.ReadCloser, error)
}

// LocalSource is a file on disk.
type LocalSource struct {
	path     string
	size     int64
	mimeType string
}

// NewLocalSource stats path and returns a Source for it.
func NewLocalSource(path string) (*LocalSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &LocalSource{
		path:     path,
		size:     info.Size(),
		mimeType: ResolveMimeType(MimeTypeForName(path)),
	}, nil
}

func (s *LocalSource) Kind() SourceKind { return SourceLocal }
func (s *LocalSource) Name() string     { return filepath.Base(s.path) }
func (s *LocalSource) SizeHint() int64  { return s.size }
func (s *LocalSource) MimeType() string { return s.mimeType }
func (s *LocalSource) Path() string     { return s.path }

func (s *LocalSource) Open() (io.ReadCloser, error) {
	return os.Open(s.path)
}

// RemoteSource is a fetched file whose bytes are already in memory.
type RemoteSource struct {
	Descriptor FileDescriptor
	Data       []byte
	Resolved   string // MIME type resolved at fetch time
}

func (s *RemoteSource) Kind() SourceKind { return SourceRemote }
func (s *RemoteSource) Name() string     { return s.Descriptor.Name }

func (s *RemoteSource) SizeHint() int64 {
	if s.Data != nil {
		return int64(len(s.Data))
	}
	return s.Descriptor.Size
}

func (s *RemoteSource) MimeType() string {
	return ResolveMimeType(s.Resolved, s.Descriptor.MimeType)
}

func (s *RemoteSource) Open() (io.ReadCloser, error) {
	if s.Data == nil {
		return nil, fmt.Errorf("%s has not been downloaded", s.Descriptor.Name)
	}
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}
