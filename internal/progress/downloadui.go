package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/dropshare/dropget/internal/resources"
)

// DownloadUI manages one progress bar per transfer unit using mpb
type DownloadUI struct {
	progress   *mpb.Progress
	out        io.Writer
	bars       sync.Map // unitID -> *UnitBar
	isTerminal bool
	totalFiles int
	completed  int32
	failed     int32
}

var _ UnitsUI = (*DownloadUI)(nil)

// UnitBar is the progress bar of one unit. Units without a declared size
// are drawn on a 0..100 scale instead of bytes.
type UnitBar struct {
	bar        *mpb.Bar
	ui         *DownloadUI
	index      int
	unitID     string
	name       string
	size       int64
	attempt    int32
	startTime  time.Time
	lastUpdate time.Time
	lastValue  int64
	done       atomic.Bool
}

// NewDownloadUI creates a UI on stderr. Bars are drawn only when stderr
// is a terminal; otherwise start and finish lines are printed.
func NewDownloadUI(totalFiles int) *DownloadUI {
	return NewDownloadUITo(os.Stderr, totalFiles)
}

// NewDownloadUITo creates a UI on out. Bars are drawn only when out is a
// terminal.
func NewDownloadUITo(out io.Writer, totalFiles int) *DownloadUI {
	isTerminal := false
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		isTerminal = true
		enableANSI(f)
	}
	return newDownloadUI(out, isTerminal, totalFiles)
}

func newDownloadUI(out io.Writer, isTerminal bool, totalFiles int) *DownloadUI {
	var p *mpb.Progress
	if isTerminal {
		p = mpb.New(
			mpb.WithOutput(out),
			mpb.WithRefreshRate(150*time.Millisecond),
			mpb.WithWidth(100),
		)
	} else {
		p = mpb.New(mpb.WithOutput(io.Discard))
	}
	return &DownloadUI{
		progress:   p,
		out:        out,
		isTerminal: isTerminal,
		totalFiles: totalFiles,
	}
}

// AddUnit creates the bar for a unit. index is 1-based.
func (u *DownloadUI) AddUnit(index int, unitID, name string, size int64) UnitDisplay {
	return u.addBar(index, unitID, name, size, 1)
}

func (u *DownloadUI) addBar(index int, unitID, name string, size int64, attempt int) *UnitBar {
	fb := &UnitBar{
		ui:         u,
		index:      index,
		unitID:     unitID,
		name:       name,
		size:       size,
		attempt:    int32(attempt),
		startTime:  time.Now(),
		lastUpdate: time.Now(),
	}

	if u.isTerminal {
		total := size
		if total <= 0 {
			total = 100
		}
		sizeLabel := "size unknown"
		if size > 0 {
			sizeLabel = resources.FormatBytes(size)
		}
		counters := decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace)
		if size <= 0 {
			counters = decor.Name("", decor.WCSyncSpace)
		}

		fb.bar = u.progress.New(total,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					base := fmt.Sprintf("[%d/%d] %s (%s)", fb.index, u.totalFiles, fb.name, sizeLabel)
					if a := atomic.LoadInt32(&fb.attempt); a > 1 {
						return fmt.Sprintf("%s (retry %d)", base, a-1)
					}
					return base
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				counters,
				decor.Name("  "),
				decor.Any(func(s decor.Statistics) string {
					if s.Total == 0 {
						return fmt.Sprintf("%3d%%", 0)
					}
					return fmt.Sprintf("%3d%%", s.Current*100/s.Total)
				}, decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
			),
			mpb.BarRemoveOnComplete(),
		)
	}

	u.bars.Store(unitID, fb)
	return fb
}

// Bar returns the bar of a unit, if any.
func (u *DownloadUI) Bar(unitID string) (*UnitBar, bool) {
	v, ok := u.bars.Load(unitID)
	if !ok {
		return nil, false
	}
	return v.(*UnitBar), true
}

// Start prints the start line in non-terminal mode and resets the timer
// used for the speed summary.
func (f *UnitBar) Start() {
	f.startTime = time.Now()
	f.lastUpdate = f.startTime
	if !f.ui.isTerminal {
		fmt.Fprintf(f.ui.out, "Downloading [%d/%d]: %s\n", f.index, f.ui.totalFiles, f.name)
	}
}

// Update moves the bar. The received byte count drives sized bars, the
// percentage drives the rest.
func (f *UnitBar) Update(received int64, progress int) {
	if f.bar == nil || f.done.Load() {
		return
	}
	value := int64(progress)
	if f.size > 0 {
		value = received
		if value > f.size {
			value = f.size
		}
	}
	if value < f.lastValue {
		return
	}

	now := time.Now()
	f.bar.EwmaIncrBy(int(value-f.lastValue), now.Sub(f.lastUpdate))
	f.lastValue = value
	f.lastUpdate = now
}

// SetRetry records the attempt number shown in the label.
func (f *UnitBar) SetRetry(attempt int) {
	atomic.StoreInt32(&f.attempt, int32(attempt))
}

// Complete finishes the bar and prints a summary line above the bars.
func (f *UnitBar) Complete(err error) {
	if !f.done.CompareAndSwap(false, true) {
		return
	}
	elapsed := time.Since(f.startTime)

	var msg string
	if err == nil {
		if f.bar != nil {
			total := f.size
			if total <= 0 {
				total = 100
			}
			f.bar.SetTotal(total, true)
		}
		msg = fmt.Sprintf("✓ %s (%s)\n", f.name, elapsed.Round(10*time.Millisecond))
		if f.size > 0 && elapsed > 0 {
			speed := float64(f.size) / elapsed.Seconds()
			msg = fmt.Sprintf("✓ %s (%s, %s, %s/s)\n",
				f.name, resources.FormatBytes(f.size), elapsed.Round(10*time.Millisecond), resources.FormatBytes(int64(speed)))
		}
		atomic.AddInt32(&f.ui.completed, 1)
	} else {
		if f.bar != nil {
			f.bar.Abort(false)
		}
		msg = fmt.Sprintf("✗ %s: %v\n", f.name, err)
		atomic.AddInt32(&f.ui.failed, 1)
	}
	f.ui.Writer().Write([]byte(msg))
}

// Remove drops the bar without printing anything.
func (f *UnitBar) Remove() {
	if !f.done.CompareAndSwap(false, true) {
		return
	}
	if f.bar != nil {
		f.bar.Abort(true)
	}
	f.ui.bars.Delete(f.unitID)
}

// Abandon removes every bar that has not finished, so Wait can return
// after a cancelled run.
func (u *DownloadUI) Abandon() {
	u.bars.Range(func(_, v any) bool {
		v.(*UnitBar).Remove()
		return true
	})
}

// Wait blocks until all progress bars complete
func (u *DownloadUI) Wait() {
	if u.progress != nil {
		u.progress.Wait()
	}
}

// Writer returns an io.Writer that safely prints above the progress bars
func (u *DownloadUI) Writer() io.Writer {
	if u.progress != nil && u.isTerminal {
		return u.progress
	}
	return u.out
}

// GetCompleted returns the number of completed downloads
func (u *DownloadUI) GetCompleted() int {
	return int(atomic.LoadInt32(&u.completed))
}

// GetFailed returns the number of failed downloads
func (u *DownloadUI) GetFailed() int {
	return int(atomic.LoadInt32(&u.failed))
}

// IsTerminal returns whether output is to a terminal
func (u *DownloadUI) IsTerminal() bool {
	return u.isTerminal
}
