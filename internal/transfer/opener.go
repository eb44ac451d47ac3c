package transfer

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/dropshare/dropget/internal/models"
)

// Body is an open byte stream for one file.
type Body struct {
	Reader   io.ReadCloser
	Length   int64  // -1 when unknown
	MimeType string // Type reported by the server, "" when none
}

// Opener opens the byte stream behind a descriptor.
type Opener interface {
	Open(ctx context.Context, desc models.FileDescriptor) (*Body, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, desc models.FileDescriptor) (*Body, error)

func (f OpenerFunc) Open(ctx context.Context, desc models.FileDescriptor) (*Body, error) {
	return f(ctx, desc)
}

// OpenerRegistry dispatches to an Opener by URL scheme.
type OpenerRegistry struct {
	mu      sync.RWMutex
	openers map[string]Opener
}

// NewOpenerRegistry creates an empty registry.
func NewOpenerRegistry() *OpenerRegistry {
	return &OpenerRegistry{openers: make(map[string]Opener)}
}

// DefaultRegistry returns a registry serving http, https and file URLs.
func DefaultRegistry(client *http.Client) *OpenerRegistry {
	r := NewOpenerRegistry()
	httpOpener := &HTTPOpener{Client: client}
	r.Register("http", httpOpener)
	r.Register("https", httpOpener)
	r.Register("file", FileOpener{})
	return r
}

// Register binds scheme to o, replacing any previous binding.
func (r *OpenerRegistry) Register(scheme string, o Opener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.openers[strings.ToLower(scheme)] = o
}

// Schemes returns the registered schemes.
func (r *OpenerRegistry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.openers))
	for s := range r.openers {
		out = append(out, s)
	}
	return out
}

// Open implements Opener.
func (r *OpenerRegistry) Open(ctx context.Context, desc models.FileDescriptor) (*Body, error) {
	u, err := url.Parse(desc.URL)
	if err != nil {
		return nil, &FetchError{Name: desc.Name, Err: fmt.Errorf("invalid url: %w", err)}
	}

	r.mu.RLock()
	o, ok := r.openers[strings.ToLower(u.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, &FetchError{Name: desc.Name, Err: fmt.Errorf("unsupported url scheme %q", u.Scheme)}
	}
	return o.Open(ctx, desc)
}

// HTTPOpener fetches http(s) URLs with a plain GET.
type HTTPOpener struct {
	Client *http.Client
}

func (o *HTTPOpener) Open(ctx context.Context, desc models.FileDescriptor) (*Body, error) {
	client := o.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, desc.URL, nil)
	if err != nil {
		return nil, &FetchError{Name: desc.Name, Err: err}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &FetchError{Name: desc.Name, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &FetchError{
			Name:       desc.Name,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
		}
	}
	// http.NoBody is a valid empty file.
	if resp.Body == nil {
		return nil, &FetchError{Name: desc.Name, Err: ErrNoBody}
	}

	return &Body{
		Reader:   resp.Body,
		Length:   resp.ContentLength,
		MimeType: baseMediaType(resp.Header.Get("Content-Type")),
	}, nil
}

// FileOpener reads file:// URLs from the local disk.
type FileOpener struct{}

func (FileOpener) Open(ctx context.Context, desc models.FileDescriptor) (*Body, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Name: desc.Name, Err: err}
	}
	u, err := url.Parse(desc.URL)
	if err != nil {
		return nil, &FetchError{Name: desc.Name, Err: err}
	}
	path := u.Path
	if path == "" {
		path = u.Opaque
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &FetchError{Name: desc.Name, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &FetchError{Name: desc.Name, Err: err}
	}
	if info.IsDir() {
		f.Close()
		return nil, &FetchError{Name: desc.Name, Err: fmt.Errorf("%s is a directory", path)}
	}
	return &Body{Reader: f, Length: info.Size()}, nil
}

// baseMediaType strips parameters from a Content-Type header.
func baseMediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.TrimSpace(strings.SplitN(header, ";", 2)[0])
	}
	return mt
}
