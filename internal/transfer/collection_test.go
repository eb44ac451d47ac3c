package transfer

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dropshare/dropget/internal/events"
	"github.com/dropshare/dropget/internal/models"
)

func descriptors(names ...string) []models.FileDescriptor {
	out := make([]models.FileDescriptor, len(names))
	for i, n := range names {
		out[i] = models.FileDescriptor{Name: n, URL: "https://cdn.example.com/" + n}.Normalize()
	}
	return out
}

func TestNewCollection(t *testing.T) {
	bus := events.NewEventBus(100)
	ch := bus.Subscribe(events.EventUnitQueued)

	c := NewCollection(descriptors("a.txt", "a.txt", "b.png"), bus)
	units := c.Snapshot()
	if len(units) != 3 {
		t.Fatalf("Len = %d", len(units))
	}
	if units[0].ID == units[1].ID {
		t.Errorf("duplicate names must yield distinct ids: %s", units[0].ID)
	}
	for i, u := range units {
		if u.Status != StatusPending || u.Index != i {
			t.Errorf("unit %d: status=%s index=%d", i, u.Status, u.Index)
		}
	}
	if units[2].MimeType != "image/png" {
		t.Errorf("MimeType = %q", units[2].MimeType)
	}
	if got := len(ch); got != 3 {
		t.Errorf("queued events = %d, want 3", got)
	}
}

func TestCollectionLifecycle(t *testing.T) {
	c := NewCollection(descriptors("a.txt"), nil)
	id := c.Snapshot()[0].ID

	if c.Complete(id, []byte("x"), "text/plain", "") {
		t.Error("Complete must require downloading")
	}
	if c.SetProgress(id, 10, 1, 10) {
		t.Error("SetProgress must require downloading")
	}

	u, ok := c.Admit(id)
	if !ok || u.Status != StatusDownloading || u.Attempts != 1 {
		t.Fatalf("Admit = %+v, %v", u, ok)
	}

	c.SetProgress(id, 40, 4, 10)
	if c.SetProgress(id, 30, 3, 10) {
		t.Error("progress must not move backwards")
	}
	if got, _ := c.Get(id); got.Progress != 40 {
		t.Errorf("Progress = %d, want 40", got.Progress)
	}

	if !c.Complete(id, []byte("hello"), "text/plain", "tok") {
		t.Fatal("Complete failed")
	}
	got, _ := c.Get(id)
	if got.Status != StatusComplete || got.Progress != 100 || string(got.Data) != "hello" || got.Handle != "tok" {
		t.Errorf("after Complete: %+v", got)
	}
	if !got.HasData() {
		t.Error("HasData() = false")
	}

	if !c.SetPreview(id, Preview{Text: "hello", Kind: "text"}) {
		t.Error("SetPreview failed on complete unit")
	}
	if got, _ := c.Get(id); got.Preview == nil || got.Preview.Text != "hello" {
		t.Error("preview not attached")
	}
	if c.Fail(id, errors.New("late")) {
		t.Error("Fail must not apply to complete unit")
	}
}

func TestCollectionSnapshotsAreImmutable(t *testing.T) {
	c := NewCollection(descriptors("a.txt", "b.txt"), nil)
	before := c.Snapshot()
	c.Admit(before[0].ID)

	if before[0].Status != StatusPending {
		t.Error("earlier snapshot changed after a transition")
	}
	if c.Snapshot()[0].Status != StatusDownloading {
		t.Error("new snapshot missing transition")
	}
}

func TestCollectionNoDuplicateAdmission(t *testing.T) {
	c := NewCollection(descriptors("a.txt"), nil)
	id := c.Snapshot()[0].ID

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.Admit(id); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Errorf("unit admitted %d times", wins.Load())
	}
}

func TestCollectionRetryIsIdempotent(t *testing.T) {
	c := NewCollection(descriptors("a.txt", "b.txt"), nil)
	a, b := c.Snapshot()[0].ID, c.Snapshot()[1].ID

	if c.Retry(a) {
		t.Error("Retry on pending must be a no-op")
	}

	c.Admit(a)
	c.SetProgress(a, 60, 6, 10)
	if c.Retry(a) {
		t.Error("Retry on downloading must be a no-op")
	}

	c.Fail(a, errors.New("boom"))
	failed, _ := c.Get(a)
	if failed.Progress != 60 || failed.Err == nil {
		t.Errorf("failed unit should keep progress and error: %+v", failed)
	}

	if !c.Retry(a) {
		t.Fatal("Retry on error should succeed")
	}
	if c.Retry(a) {
		t.Error("second Retry must be a no-op")
	}
	retried, _ := c.Get(a)
	if retried.Status != StatusPending || retried.Progress != 0 || retried.Err != nil {
		t.Errorf("after Retry: %+v", retried)
	}

	c.Admit(b)
	c.Complete(b, []byte("b"), "text/plain", "")
	if c.Retry(b) {
		t.Error("Retry on complete must be a no-op")
	}

	if got := c.Counts(); got.Pending != 1 || got.Complete != 1 || got.Total() != 2 {
		t.Errorf("Counts = %+v", got)
	}
}

func TestCollectionRemove(t *testing.T) {
	bus := events.NewEventBus(100)
	removed := bus.Subscribe(events.EventUnitRemoved)

	c := NewCollection(descriptors("a.txt", "b.txt", "c.txt"), bus)
	id := c.Snapshot()[1].ID

	u, ok := c.Remove(id)
	if !ok || u.Name() != "b.txt" {
		t.Fatalf("Remove = %+v, %v", u, ok)
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
	if _, ok := c.Get(id); ok {
		t.Error("removed unit still present")
	}
	if _, ok := c.Remove(id); ok {
		t.Error("second Remove should fail")
	}
	if c.Complete(id, nil, "", "") {
		t.Error("Complete on removed unit should fail")
	}

	select {
	case ev := <-removed:
		if ev.(*events.UnitEvent).Name != "b.txt" {
			t.Errorf("removed event for %v", ev)
		}
	case <-time.After(time.Second):
		t.Error("no removal event")
	}
}

func TestCollectionEventOrder(t *testing.T) {
	bus := events.NewEventBus(100)
	c := NewCollection(descriptors("a.txt"), bus)
	all := bus.SubscribeAll()
	id := c.Snapshot()[0].ID

	c.Admit(id)
	c.SetProgress(id, 50, 5, 10)
	c.Fail(id, errors.New("x"))
	c.Retry(id)

	want := []events.EventType{
		events.EventUnitStarted,
		events.EventUnitProgress,
		events.EventUnitFailed,
		events.EventUnitRetried,
	}
	for i, w := range want {
		ev := <-all
		if ev.Type() != w {
			t.Errorf("event %d = %s, want %s", i, ev.Type(), w)
		}
	}
}
