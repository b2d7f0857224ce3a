package scriptworker

import (
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
)

// ownerTable hands out generation-checked references to delivery sinks.
// The engine only ever holds core.OwnerRef values; releasing a slot bumps
// its generation so deliveries still in flight resolve to nothing.
type ownerTable struct {
	mu    sync.Mutex
	slots []ownerSlot
	free  []uint32
}

type ownerSlot struct {
	gen  uint32
	sink DeliverySink
}

func (t *ownerTable) add(sink DeliverySink) core.OwnerRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n := len(t.free); n > 0 {
		i := t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[i].sink = sink
		return core.OwnerRef{Slot: i, Gen: t.slots[i].gen}
	}
	t.slots = append(t.slots, ownerSlot{gen: 1, sink: sink})
	return core.OwnerRef{Slot: uint32(len(t.slots) - 1), Gen: 1}
}

func (t *ownerTable) get(ref core.OwnerRef) (DeliverySink, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref.IsZero() || int(ref.Slot) >= len(t.slots) {
		return nil, false
	}
	s := t.slots[ref.Slot]
	if s.gen != ref.Gen || s.sink == nil {
		return nil, false
	}
	return s.sink, true
}

// release invalidates ref. Releasing a stale ref does nothing.
func (t *ownerTable) release(ref core.OwnerRef) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ref.IsZero() || int(ref.Slot) >= len(t.slots) {
		return false
	}
	s := &t.slots[ref.Slot]
	if s.gen != ref.Gen || s.sink == nil {
		return false
	}
	s.sink = nil
	s.gen++
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, ref.Slot)
	return true
}

func (t *ownerTable) live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots) - len(t.free)
}
