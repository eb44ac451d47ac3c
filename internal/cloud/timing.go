// Package cloud holds object storage backends and their shared helpers.
//
// Setting DROPGET_TIMING=1 (or passing --timing) prints one line per
// storage call to stderr:
//
//	[TIMING] s3 GetObject photos/a.jpg: 85ms
//	[TIMING] share upload: 1.2s (12.0 MiB at 10.0 MiB/s)
package cloud

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/dropshare/dropget/internal/resources"
)

// TimingEnabled reports whether DROPGET_TIMING=1 is set.
func TimingEnabled() bool {
	return os.Getenv("DROPGET_TIMING") == "1"
}

// Timer measures one phase. Only the first Stop or StopBytes prints.
type Timer struct {
	phase string
	start time.Time
	w     io.Writer
	done  atomic.Bool
}

// StartTimer starts timing phase. A nil w means os.Stderr.
func StartTimer(w io.Writer, phase string) *Timer {
	if w == nil {
		w = os.Stderr
	}
	return &Timer{phase: phase, start: time.Now(), w: w}
}

// Stop prints the elapsed time and returns it.
func (t *Timer) Stop() time.Duration {
	return t.finish("")
}

// StopBytes is Stop with the amount moved and the resulting rate.
func (t *Timer) StopBytes(n int64) time.Duration {
	var rate float64
	if secs := time.Since(t.start).Seconds(); secs > 0 {
		rate = float64(n) / secs
	}
	return t.finish(fmt.Sprintf(" (%s at %s)", resources.FormatBytes(n), FormatSpeed(rate)))
}

func (t *Timer) finish(detail string) time.Duration {
	elapsed := time.Since(t.start)
	if t.done.CompareAndSwap(false, true) && TimingEnabled() {
		fmt.Fprintf(t.w, "[TIMING] %s: %v%s\n", t.phase, elapsed.Round(time.Millisecond), detail)
	}
	return elapsed
}

// FormatSpeed formats a transfer rate.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	return resources.FormatBytes(int64(bytesPerSec)) + "/s"
}
