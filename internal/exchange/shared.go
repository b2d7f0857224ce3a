package exchange

import (
	"sync"
	"sync/atomic"
)

var sharedListSeq atomic.Uint64

// SharedList is a mutable list model shared by reference between an owner
// and at most one runtime. It guards its own state, so both sides may use
// it concurrently; every item is copied on the way in and out.
type SharedList struct {
	id uint64

	mu       sync.RWMutex
	items    []Value
	affinity string
	revision uint64
}

// NewSharedList returns an empty list, optionally seeded with items.
func NewSharedList(items ...Value) *SharedList {
	l := &SharedList{id: sharedListSeq.Add(1)}
	for _, it := range items {
		l.items = append(l.items, it.Clone())
	}
	return l
}

// ID is a process-unique identifier for the list.
func (l *SharedList) ID() uint64 { return l.id }

// Bind sets the list's runtime affinity to marker if it has none yet. It
// reports whether the list may be consumed by the runtime named marker.
func (l *SharedList) Bind(marker string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.affinity == "" {
		l.affinity = marker
		return true
	}
	return l.affinity == marker
}

// Affinity returns the runtime marker the list is bound to, if any.
func (l *SharedList) Affinity() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.affinity
}

// Revision increases on every mutation.
func (l *SharedList) Revision() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.revision
}

// Count returns the number of items.
func (l *SharedList) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Get returns a copy of item i, Null when out of range.
func (l *SharedList) Get(i int) Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i < 0 || i >= len(l.items) {
		return Null()
	}
	return l.items[i].Clone()
}

// Items returns a copy of all items.
func (l *SharedList) Items() []Value {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Value, len(l.items))
	for i, it := range l.items {
		out[i] = it.Clone()
	}
	return out
}

// Append adds items at the end.
func (l *SharedList) Append(items ...Value) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, it := range items {
		l.items = append(l.items, it.Clone())
	}
	l.revision++
}

// Insert places v at index i. It reports false when i is out of range.
func (l *SharedList) Insert(i int, v Value) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i > len(l.items) {
		return false
	}
	l.items = append(l.items, Value{})
	copy(l.items[i+1:], l.items[i:])
	l.items[i] = v.Clone()
	l.revision++
	return true
}

// Set replaces item i. Setting index Count() appends.
func (l *SharedList) Set(i int, v Value) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch {
	case i >= 0 && i < len(l.items):
		l.items[i] = v.Clone()
	case i == len(l.items):
		l.items = append(l.items, v.Clone())
	default:
		return false
	}
	l.revision++
	return true
}

// Remove deletes n items starting at i.
func (l *SharedList) Remove(i, n int) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n < 1 || i < 0 || i+n > len(l.items) {
		return false
	}
	l.items = append(l.items[:i], l.items[i+n:]...)
	l.revision++
	return true
}

// Clear removes every item.
func (l *SharedList) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
	l.revision++
}
