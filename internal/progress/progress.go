// Package progress draws download progress on the terminal: one mpb bar
// per unit, and a single overall bar for the whole transfer.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Reporter reports a single advancing quantity.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements Reporter with a progressbar on a writer.
type CLIProgress struct {
	bar   *progressbar.ProgressBar
	out   io.Writer
	bytes bool
}

// NewCLIProgress creates a reporter writing to stderr. When bytes is false
// the bar counts plain units, e.g. percent.
func NewCLIProgress(bytes bool) *CLIProgress {
	return NewCLIProgressTo(os.Stderr, bytes)
}

// NewCLIProgressTo creates a reporter writing to out.
func NewCLIProgressTo(out io.Writer, bytes bool) *CLIProgress {
	return &CLIProgress{out: out, bytes: bytes}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(p.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	}
	if p.bytes {
		opts = append(opts, progressbar.OptionShowBytes(true))
	} else {
		opts = append(opts, progressbar.OptionSetPredictTime(false))
	}
	p.bar = progressbar.NewOptions64(total, opts...)
}

// Update moves the bar to current.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(p.out, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// NoOpProgress discards everything.
type NoOpProgress struct{}

func (NoOpProgress) Start(int64, string)   {}
func (NoOpProgress) Update(int64)          {}
func (NoOpProgress) Finish()               {}
func (NoOpProgress) Error(error)           {}
func (NoOpProgress) SetDescription(string) {}

// Overall drives a Reporter from an aggregate percentage. The bar exists
// only while the percentage is below 100; reaching 100 finishes it.
type Overall struct {
	r       Reporter
	visible bool
	last    int64
}

// NewOverall wraps r.
func NewOverall(r Reporter) *Overall {
	if r == nil {
		r = NoOpProgress{}
	}
	return &Overall{r: r}
}

// Set shows percent, counting started as a share of units that have begun.
func (o *Overall) Set(percent, started float64) {
	p := int64(percent)
	if p >= 100 {
		o.Done()
		return
	}
	desc := fmt.Sprintf("overall (%.0f%% started)", started)
	if !o.visible {
		o.r.Start(100, desc)
		o.visible = true
	} else {
		o.r.SetDescription(desc)
	}
	if p < o.last {
		p = o.last
	}
	o.last = p
	o.r.Update(p)
}

// Done finishes the bar if it is visible.
func (o *Overall) Done() {
	if !o.visible {
		return
	}
	o.r.Update(100)
	o.r.Finish()
	o.visible = false
	o.last = 0
}

// Visible reports whether the bar is showing.
func (o *Overall) Visible() bool { return o.visible }
