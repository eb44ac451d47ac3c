package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Bandwidth caps the aggregate read rate of every reader it wraps.
// A nil *Bandwidth means unlimited.
type Bandwidth struct {
	limiter *rate.Limiter
	burst   int
}

// NewBandwidth returns a cap of bytesPerSec, or nil when bytesPerSec <= 0.
// The burst is one read chunk so a single Read never waits on itself.
func NewBandwidth(bytesPerSec int64, chunk int) *Bandwidth {
	if bytesPerSec <= 0 {
		return nil
	}
	burst := chunk
	if int64(burst) > bytesPerSec {
		burst = int(bytesPerSec)
	}
	if burst < 1 {
		burst = 1
	}
	return &Bandwidth{
		limiter: rate.NewLimiter(rate.Limit(bytesPerSec), burst),
		burst:   burst,
	}
}

// Limit returns the configured rate in bytes per second, 0 when unlimited.
func (b *Bandwidth) Limit() int64 {
	if b == nil {
		return 0
	}
	return int64(b.limiter.Limit())
}

// WaitN blocks until n bytes may be consumed.
func (b *Bandwidth) WaitN(ctx context.Context, n int) error {
	if b == nil || n <= 0 {
		return nil
	}
	for n > 0 {
		step := n
		if step > b.burst {
			step = b.burst
		}
		if err := b.limiter.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}

// Reader wraps r so every Read is charged against the cap.
func (b *Bandwidth) Reader(ctx context.Context, r io.Reader) io.Reader {
	if b == nil {
		return r
	}
	return &limitedReader{ctx: ctx, r: r, bw: b}
}

type limitedReader struct {
	ctx context.Context
	r   io.Reader
	bw  *Bandwidth
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if len(p) > l.bw.burst {
		p = p[:l.bw.burst]
	}
	n, err := l.r.Read(p)
	if n > 0 {
		if werr := l.bw.WaitN(l.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
