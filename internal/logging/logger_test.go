package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dropshare/dropget/internal/events"
)

func TestLevelsAndRedirect(t *testing.T) {
	l := NewDefaultCLILogger()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	if l.Output() != &buf {
		t.Fatal("Output() is not the writer passed to SetOutput")
	}

	l.Debug().Msg("hidden detail")
	l.Info().Int("files", 3).Msg("fetched")
	if s := buf.String(); strings.Contains(s, "hidden detail") || !strings.Contains(s, "fetched") {
		t.Errorf("info level output = %q", s)
	}

	buf.Reset()
	l.SetLevel(zerolog.DebugLevel)
	l.Debug().Msg("shown detail")
	if !strings.Contains(buf.String(), "shown detail") {
		t.Errorf("debug level output = %q", buf.String())
	}
}

func TestWarningsMirroredToBus(t *testing.T) {
	bus := events.NewEventBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.EventLog)

	l := NewLogger(ModeCLI, bus)
	l.SetOutput(&bytes.Buffer{})
	l.Info().Msg("not mirrored")
	l.Warn().Msg("disk almost full")
	l.Error().Msg("share failed")

	want := []struct {
		level events.LogLevel
		msg   string
	}{{events.WarnLevel, "disk almost full"}, {events.ErrorLevel, "share failed"}}
	for _, w := range want {
		select {
		case ev := <-ch:
			got := ev.(*events.LogEvent)
			if got.Level != w.level || got.Message != w.msg {
				t.Errorf("log event = %v %q, want %v %q", got.Level, got.Message, w.level, w.msg)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%q not published", w.msg)
		}
	}
}

func TestNopLoggerWritesNothing(t *testing.T) {
	l := OrNop(nil)
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetLevel(zerolog.DebugLevel)
	l.Error().Msg("dropped silently")
	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote %q", buf.String())
	}
}
