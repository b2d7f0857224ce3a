package eventloop

import (
	"testing"
	"time"
)

func newTestLoop(now *time.Time) *EventLoop {
	el := New()
	el.now = func() time.Time { return *now }
	return el
}

func TestEventLoop_New(t *testing.T) {
	el := New()
	if el.timers == nil {
		t.Error("timers map should be initialized")
	}
	if el.HasPending() {
		t.Error("new event loop should have no pending timers")
	}
	if _, ok := el.NextDeadline(); ok {
		t.Error("new event loop should have no deadline")
	}
}

func TestEventLoop_DueOrder(t *testing.T) {
	now := time.Unix(1000, 0)
	el := newTestLoop(&now)

	late := el.RegisterTimer(1, 30*time.Millisecond, false)
	early := el.RegisterTimer(2, 10*time.Millisecond, false)
	tie := el.RegisterTimer(1, 10*time.Millisecond, false)

	next, ok := el.NextDeadline()
	if !ok || !next.Equal(now.Add(10*time.Millisecond)) {
		t.Fatalf("next deadline = %v, %v", next, ok)
	}

	if got := el.Due(now.Add(5 * time.Millisecond)); len(got) != 0 {
		t.Fatalf("nothing should be due yet, got %v", got)
	}

	got := el.Due(now.Add(50 * time.Millisecond))
	if len(got) != 3 {
		t.Fatalf("due = %v, want 3 timers", got)
	}
	if got[0].ID != early || got[1].ID != tie || got[2].ID != late {
		t.Errorf("due order = %v, want [%d %d %d]", got, early, tie, late)
	}
	if got[0].Owner != 2 {
		t.Errorf("owner = %d, want 2", got[0].Owner)
	}
	if el.HasPending() {
		t.Error("one-shot timers should be gone after firing")
	}
}

func TestEventLoop_Interval(t *testing.T) {
	now := time.Unix(1000, 0)
	el := newTestLoop(&now)

	id := el.RegisterTimer(1, time.Millisecond, true)
	if entry := el.timers[id]; entry.interval != minInterval {
		t.Errorf("interval = %v, want clamped to %v", entry.interval, minInterval)
	}

	fireAt := now.Add(5 * time.Millisecond)
	if got := el.Due(fireAt); len(got) != 1 || got[0].ID != id {
		t.Fatalf("due = %v, want interval timer", got)
	}
	if !el.HasPending() {
		t.Fatal("interval should stay scheduled")
	}
	next, _ := el.NextDeadline()
	if !next.Equal(fireAt.Add(minInterval)) {
		t.Errorf("rescheduled to %v, want %v", next, fireAt.Add(minInterval))
	}

	if el.ClearFor(2, id) {
		t.Error("another worker must not clear the interval")
	}
	if !el.ClearFor(1, id) || el.HasPending() {
		t.Error("cleared interval should be gone")
	}
}

func TestEventLoop_ClearOwner(t *testing.T) {
	el := New()
	a := el.RegisterTimer(1, time.Hour, false)
	b := el.RegisterTimer(1, time.Hour, true)
	c := el.RegisterTimer(2, time.Hour, false)

	ids := el.ClearOwner(1)
	if len(ids) != 2 || ids[0] != a || ids[1] != b {
		t.Errorf("cleared = %v, want [%d %d]", ids, a, b)
	}
	if _, ok := el.timers[c]; !ok {
		t.Error("other worker's timer should survive")
	}
	if el.ClearFor(1, 999) {
		t.Error("clearing an unknown timer should report false")
	}
	el.Reset()
	if el.HasPending() {
		t.Error("reset should clear all timers")
	}
}
