package progress

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/models"
	"github.com/dropshare/dropget/internal/transfer"
)

func unitEvent(t events.EventType, id string, attempt int, err error) *events.UnitEvent {
	return &events.UnitEvent{
		BaseEvent: events.BaseEvent{EventType: t, Time: time.Now()},
		UnitID:    id,
		Attempt:   attempt,
		Error:     err,
	}
}

func TestDownloadUINonTerminal(t *testing.T) {
	var buf bytes.Buffer
	ui := newDownloadUI(&buf, false, 2)

	a := ui.AddUnit(1, "a.txt-0", "a.txt", 10)
	b := ui.AddUnit(2, "b.txt-1", "b.txt", 0)

	a.(*UnitBar).Start()
	a.Update(10, 100)
	a.Complete(nil)
	b.Complete(errors.New("boom"))
	b.Complete(nil) // second call is ignored

	ui.Wait()

	out := buf.String()
	for _, want := range []string{"Downloading [1/2]: a.txt", "✓ a.txt", "✗ b.txt: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if ui.GetCompleted() != 1 || ui.GetFailed() != 1 {
		t.Errorf("completed=%d failed=%d, want 1 and 1", ui.GetCompleted(), ui.GetFailed())
	}
}

func TestTrackerHandle(t *testing.T) {
	var buf bytes.Buffer
	ui := newDownloadUI(&buf, false, 2)
	bus := events.NewEventBus(16)
	defer bus.Close()

	units := []transfer.Unit{
		{ID: models.UnitID("a.txt", 0), Index: 0, Descriptor: models.FileDescriptor{Name: "a.txt", Size: 4}},
		{ID: models.UnitID("b.txt", 1), Index: 1, Descriptor: models.FileDescriptor{Name: "b.txt"}},
	}
	tr := NewTracker(ui, bus, units)
	defer tr.Stop()

	a, b := units[0].ID, units[1].ID
	tr.Handle(unitEvent(events.EventUnitStarted, a, 1, nil))
	tr.Handle(unitEvent(events.EventUnitCompleted, a, 1, nil))
	tr.Handle(unitEvent(events.EventUnitStarted, b, 1, nil))
	tr.Handle(unitEvent(events.EventUnitFailed, b, 1, errors.New("404")))

	tr.Handle(unitEvent(events.EventUnitRetried, b, 1, nil))
	bar, ok := ui.Bar(b)
	if !ok {
		t.Fatal("retried unit has no bar")
	}
	if bar.done.Load() {
		t.Error("retried unit got a finished bar")
	}
	if got := bar.attempt; got != 2 {
		t.Errorf("attempt = %d, want 2", got)
	}

	tr.Handle(unitEvent(events.EventUnitRemoved, b, 2, nil))
	if _, ok := ui.Bar(b); ok {
		t.Error("removed unit still has a bar")
	}

	// Unrelated events are ignored.
	tr.Handle(&events.SchedulerEvent{BaseEvent: events.BaseEvent{EventType: events.EventSchedulerIdle}})

	if ui.GetCompleted() != 1 || ui.GetFailed() != 1 {
		t.Errorf("completed=%d failed=%d, want 1 and 1", ui.GetCompleted(), ui.GetFailed())
	}
}

type recordingReporter struct {
	starts   int
	finishes int
	values   []int64
}

func (r *recordingReporter) Start(int64, string)   { r.starts++ }
func (r *recordingReporter) Update(v int64)        { r.values = append(r.values, v) }
func (r *recordingReporter) Finish()               { r.finishes++ }
func (r *recordingReporter) Error(error)           {}
func (r *recordingReporter) SetDescription(string) {}

func TestOverall(t *testing.T) {
	r := &recordingReporter{}
	o := NewOverall(r)

	o.Set(10, 50)
	o.Set(5, 50) // never moves backwards
	o.Set(60, 100)
	if !o.Visible() {
		t.Fatal("bar hidden below 100%")
	}
	o.Set(100, 100)
	if o.Visible() {
		t.Fatal("bar visible at 100%")
	}
	o.Done()

	if r.starts != 1 || r.finishes != 1 {
		t.Errorf("starts=%d finishes=%d, want 1 and 1", r.starts, r.finishes)
	}
	want := []int64{10, 10, 60, 100}
	if len(r.values) != len(want) {
		t.Fatalf("values = %v, want %v", r.values, want)
	}
	for i := range want {
		if r.values[i] != want[i] {
			t.Errorf("values = %v, want %v", r.values, want)
			break
		}
	}
}

func TestCLIProgressWritesToWriter(t *testing.T) {
	var buf bytes.Buffer
	p := NewCLIProgressTo(&buf, false)
	p.Start(100, "overall")
	p.Update(100)
	p.Finish()
	p.Error(errors.New("late"))
	if !strings.Contains(buf.String(), "Error: late") {
		t.Errorf("output = %q", buf.String())
	}
}
