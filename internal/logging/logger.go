// Package logging provides structured logging for the CLI and for library use.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/dropshare/dropget/internal/events"
)

// Mode selects where log lines go.
type Mode string

const (
	ModeCLI   Mode = "cli"   // human readable lines on stdout
	ModeQuiet Mode = "quiet" // discard everything
)

const timeFormat = "15:04:05"

// Logger is a zerolog logger whose writer can be swapped while bars are
// drawn. Warnings and errors are mirrored to an optional event bus.
type Logger struct {
	zlog  zerolog.Logger
	mode  Mode
	level zerolog.Level
	bus   *events.EventBus
	out   io.Writer
}

// NewLogger creates a logger at info level. stderr is left to the progress
// bars, so CLI output goes to stdout.
func NewLogger(mode Mode, bus *events.EventBus) *Logger {
	l := &Logger{mode: mode, level: zerolog.InfoLevel, bus: bus}
	l.SetOutput(os.Stdout)
	return l
}

// NewDefaultCLILogger creates the logger used by the dropget command.
func NewDefaultCLILogger() *Logger { return NewLogger(ModeCLI, nil) }

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger { return NewLogger(ModeQuiet, nil) }

// OrNop returns l, or a discarding logger if l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}

// SetOutput sends further lines to w. The CLI points it at the progress
// container so lines print above the bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.out = w
	l.rebuild()
}

// Output returns the writer set last.
func (l *Logger) Output() io.Writer { return l.out }

// SetLevel changes the minimum level written.
func (l *Logger) SetLevel(level zerolog.Level) {
	l.level = level
	l.rebuild()
}

func (l *Logger) rebuild() {
	var w io.Writer = io.Discard
	if l.mode != ModeQuiet {
		w = zerolog.ConsoleWriter{Out: l.out, TimeFormat: timeFormat}
	}
	zl := zerolog.New(w).Level(l.level).With().Timestamp().Logger()
	if l.bus != nil {
		zl = zl.Hook(busHook{bus: l.bus})
	}
	l.zlog = zl
}

type busHook struct{ bus *events.EventBus }

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch {
	case level == zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, msg, "", nil)
	case level >= zerolog.ErrorLevel && level <= zerolog.PanicLevel:
		h.bus.PublishLog(events.ErrorLevel, msg, "", nil)
	}
}

func (l *Logger) Debug() *zerolog.Event { return l.zlog.Debug() }
func (l *Logger) Info() *zerolog.Event  { return l.zlog.Info() }
func (l *Logger) Warn() *zerolog.Event  { return l.zlog.Warn() }
func (l *Logger) Error() *zerolog.Event { return l.zlog.Error() }
