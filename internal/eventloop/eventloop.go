// Package eventloop schedules worker timers. Deadlines are tracked in Go;
// the callbacks live in the binding's private timer table on the JS side
// and are fired through __wk.fire on the engine goroutine between messages.
package eventloop

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cryguy/scriptworker/internal/core"
)

// minInterval is the shortest period a setInterval timer may have.
const minInterval = 10 * time.Millisecond

// timerEntry represents a pending setTimeout or setInterval callback.
type timerEntry struct {
	deadline time.Time
	interval time.Duration // 0 for setTimeout, >0 for setInterval
	id       int
	owner    core.WorkerID
	seq      uint64
}

// Fired identifies a timer whose deadline has passed.
type Fired struct {
	ID    int
	Owner core.WorkerID
}

// EventLoop manages Go-backed timers for setTimeout/setInterval.
type EventLoop struct {
	mu     sync.Mutex
	timers map[int]*timerEntry
	nextID int
	seq    uint64
	now    func() time.Time
}

// New creates a new EventLoop.
func New() *EventLoop {
	return &EventLoop{
		timers: make(map[int]*timerEntry),
		now:    time.Now,
	}
}

// RegisterTimer creates a timer entry for the worker owner and returns its
// ID. The JS callback is stored under the same ID.
func (el *EventLoop) RegisterTimer(owner core.WorkerID, delay time.Duration, isInterval bool) int {
	el.mu.Lock()
	defer el.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	el.nextID++
	el.seq++
	entry := &timerEntry{
		deadline: el.now().Add(delay),
		id:       el.nextID,
		owner:    owner,
		seq:      el.seq,
	}
	if isInterval {
		if delay < minInterval {
			delay = minInterval
		}
		entry.interval = delay
	}
	el.timers[entry.id] = entry
	return entry.id
}

// ClearOwner cancels every timer of a worker and returns their IDs.
func (el *EventLoop) ClearOwner(owner core.WorkerID) []int {
	el.mu.Lock()
	defer el.mu.Unlock()
	var ids []int
	for id, t := range el.timers {
		if t.owner == owner {
			ids = append(ids, id)
			delete(el.timers, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// NextDeadline returns the earliest pending deadline.
func (el *EventLoop) NextDeadline() (time.Time, bool) {
	el.mu.Lock()
	defer el.mu.Unlock()
	var next time.Time
	found := false
	for _, t := range el.timers {
		if !found || t.deadline.Before(next) {
			next = t.deadline
			found = true
		}
	}
	return next, found
}

// Due removes the timers whose deadline is not after now, reschedules
// intervals, and returns them ordered by deadline then registration.
func (el *EventLoop) Due(now time.Time) []Fired {
	el.mu.Lock()
	defer el.mu.Unlock()
	var due []*timerEntry
	for _, t := range el.timers {
		if !t.deadline.After(now) {
			due = append(due, t)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].deadline.Equal(due[j].deadline) {
			return due[i].deadline.Before(due[j].deadline)
		}
		return due[i].seq < due[j].seq
	})
	fired := make([]Fired, len(due))
	for i, t := range due {
		fired[i] = Fired{ID: t.id, Owner: t.owner}
		if t.interval > 0 {
			t.deadline = now.Add(t.interval)
		} else {
			delete(el.timers, t.id)
		}
	}
	return fired
}

// ClearFor cancels timer id only if it belongs to owner, so one worker
// cannot cancel another's timers.
func (el *EventLoop) ClearFor(owner core.WorkerID, id int) bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	t, ok := el.timers[id]
	if !ok || t.owner != owner {
		return false
	}
	delete(el.timers, id)
	return true
}

// Fire invokes the JS callback of a fired timer through the token-gated
// __wk.fire entry point, which drops one-shot callbacks before running them.
func (el *EventLoop) Fire(rt core.JSRuntime, f Fired, token string) error {
	return rt.Eval(fmt.Sprintf("__wk.fire(%q, %d)", token, f.ID), "timer.js")
}

// HasPending returns true if there are any active timers.
func (el *EventLoop) HasPending() bool {
	el.mu.Lock()
	defer el.mu.Unlock()
	return len(el.timers) > 0
}

// Reset clears all timers.
func (el *EventLoop) Reset() {
	el.mu.Lock()
	defer el.mu.Unlock()
	el.timers = make(map[int]*timerEntry)
	el.nextID = 0
}
