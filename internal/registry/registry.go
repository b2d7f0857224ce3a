// Package registry tracks per-worker state for the engine goroutine.
package registry

import (
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
)

// Callback is the stored "on message" handler of a worker. The function
// object itself lives inside the runtime; the registry records whether the
// script's current handler can be called.
type Callback struct {
	Callable bool
}

// State is one worker's row. Fields other than ID and Owner are read and
// written only on the engine goroutine.
type State struct {
	ID          core.WorkerID
	Owner       core.OwnerRef
	Location    core.Location
	Initialized bool
	Callback    Callback
}

// Registry maps worker ids to their state. Insert may be called from any
// goroutine; every other method belongs to the engine goroutine.
type Registry struct {
	mu      sync.Mutex
	workers map[core.WorkerID]*State
	removed map[core.WorkerID]struct{}
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		workers: make(map[core.WorkerID]*State),
		removed: make(map[core.WorkerID]struct{}),
	}
}

// Insert registers an empty state for id. It reports false if id is
// already registered or was removed; removed ids are never reinserted.
func (r *Registry) Insert(id core.WorkerID, owner core.OwnerRef) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[id]; ok {
		return false
	}
	if _, ok := r.removed[id]; ok {
		return false
	}
	r.workers[id] = &State{ID: id, Owner: owner}
	return true
}

// Lookup returns the state for id, or nil if it is unknown or removed.
func (r *Registry) Lookup(id core.WorkerID) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers[id]
}

// Remove erases id and reports whether it was present. Removing twice is
// harmless.
func (r *Registry) Remove(id core.WorkerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[id]; !ok {
		return false
	}
	delete(r.workers, id)
	r.removed[id] = struct{}{}
	return true
}

// Len returns the number of live workers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}

// Reset discards every worker. Used at engine shutdown.
func (r *Registry) Reset() []core.WorkerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]core.WorkerID, 0, len(r.workers))
	for id := range r.workers {
		ids = append(ids, id)
		r.removed[id] = struct{}{}
	}
	r.workers = make(map[core.WorkerID]*State)
	return ids
}
