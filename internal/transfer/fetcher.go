package transfer

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	"github.com/dropshare/dropget/internal/logging"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/ratelimit"
	"github.com/dropshare/dropget/internal/util/buffers"
)

// HandleStore issues download handles for assembled bodies.
type HandleStore interface {
	Create(unitID string, data []byte, mimeType string) string
	Revoke(token string)
}

// ProgressFunc receives throttled progress for one fetch.
type ProgressFunc func(progress int, received, total int64)

// Result is an assembled body.
type Result struct {
	Data     []byte
	MimeType string
	Handle   string
	Received int64
	Duration time.Duration
}

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	Handles     HandleStore          // Optional
	Bandwidth   *ratelimit.Bandwidth // Optional, shared by every fetch
	Logger      *logging.Logger
	MinInterval time.Duration // Progress throttle interval (0 = default)
	MinStep     int           // Progress throttle step (0 = default)
}

// Fetcher streams file bodies into memory.
type Fetcher struct {
	opener    Opener
	handles   HandleStore
	bandwidth *ratelimit.Bandwidth
	logger    *logging.Logger

	minInterval time.Duration
	minStep     int
}

// NewFetcher creates a fetcher reading through opener.
func NewFetcher(opener Opener, opts FetcherOptions) *Fetcher {
	return &Fetcher{
		opener:      opener,
		handles:     opts.Handles,
		bandwidth:   opts.Bandwidth,
		logger:      logging.OrNop(opts.Logger),
		minInterval: opts.MinInterval,
		minStep:     opts.MinStep,
	}
}

// Fetch downloads u's body. Progress values passed to onProgress never
// decrease and end with exactly one 100 on success. Errors are always
// *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, u Unit, onProgress ProgressFunc) (*Result, error) {
	start := time.Now()
	name := u.Name()

	body, err := f.opener.Open(ctx, u.Descriptor)
	if err != nil {
		return nil, asFetchError(name, err)
	}
	if body == nil || body.Reader == nil {
		return nil, &FetchError{Name: name, Err: ErrNoBody}
	}
	defer body.Reader.Close()

	total := body.Length
	if total <= 0 {
		total = u.Descriptor.Size
	}
	if total < 0 {
		total = 0
	}

	throttle := NewProgressThrottle(f.minInterval, f.minStep)
	emit := func(p int, received int64) {
		if onProgress == nil {
			return
		}
		if v, ok := throttle.Offer(p); ok {
			onProgress(v, received, total)
		}
	}

	reader := f.bandwidth.Reader(ctx, body.Reader)
	chunks, received, err := readChunks(ctx, reader, func(received int64) {
		if total > 0 {
			// Intermediate values stop at 99 until the stream ends.
			emit(min(percent(received, total), 99), received)
		}
	})
	if err != nil {
		return nil, &FetchError{Name: name, Err: err}
	}

	data := make([]byte, 0, received)
	for _, c := range chunks {
		data = append(data, c...)
	}

	emit(100, received)

	mimeType := models.ResolveMimeType(body.MimeType, u.Descriptor.MimeType)

	var handle string
	if f.handles != nil {
		if u.Handle != "" {
			f.handles.Revoke(u.Handle)
		}
		handle = f.handles.Create(u.ID, data, mimeType)
	}

	f.logger.Debug().
		Str("unit", u.ID).
		Int64("bytes", received).
		Str("type", mimeType).
		Dur("elapsed", time.Since(start)).
		Msg("fetch complete")

	return &Result{
		Data:     data,
		MimeType: mimeType,
		Handle:   handle,
		Received: received,
		Duration: time.Since(start),
	}, nil
}

// Discard releases the handle of a result that will not be attached to a
// unit, such as one whose unit was removed mid-flight.
func (f *Fetcher) Discard(res *Result) {
	if res == nil || res.Handle == "" || f.handles == nil {
		return
	}
	f.handles.Revoke(res.Handle)
}

// readChunks drains r through pooled buffers. Each chunk is copied out of
// the pooled buffer before the buffer is reused.
func readChunks(ctx context.Context, r io.Reader, onRead func(received int64)) ([][]byte, int64, error) {
	bufPtr := buffers.GetReadBuffer()
	defer buffers.PutReadBuffer(bufPtr)
	buf := *bufPtr

	var chunks [][]byte
	var received int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, received, err
		}
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			chunks = append(chunks, chunk)
			received += int64(n)
			onRead(received)
		}
		if errors.Is(err, io.EOF) {
			return chunks, received, nil
		}
		if err != nil {
			return nil, received, err
		}
	}
}

func percent(received, total int64) int {
	if total <= 0 {
		return 0
	}
	p := int(math.Round(float64(received) * 100 / float64(total)))
	if p > 100 {
		p = 100
	}
	return p
}
