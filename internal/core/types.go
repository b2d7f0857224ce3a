package core

import (
	"errors"
	"fmt"
	"net/url"
)

// WorkerID identifies a worker for the lifetime of a Coordinator. IDs are
// allocated from 1 upward and never reused; 0 addresses "the owner" on
// outbound messages.
type WorkerID uint64

// OwnerID is the WorkerID value used on outbound messages.
const OwnerID WorkerID = 0

// OwnerRef is a weak, generation-checked reference to a caller-side owner.
// Holding one never keeps the owner alive; resolving a stale one yields
// nothing.
type OwnerRef struct {
	Slot uint32
	Gen  uint32
}

// IsZero reports whether the reference points nowhere.
func (r OwnerRef) IsZero() bool { return r.Gen == 0 }

// Location names a script source. Only absolute locations (with a scheme)
// can be resolved.
type Location string

// Scheme returns the lower-cased URL scheme, or "" for relative or
// unparsable locations.
func (l Location) Scheme() string {
	u, err := url.Parse(string(l))
	if err != nil || !u.IsAbs() {
		return ""
	}
	return u.Scheme
}

// IsAbsolute reports whether the location can be handed to a SourceLoader.
func (l Location) IsAbsolute() bool { return l.Scheme() != "" }

func (l Location) String() string { return string(l) }

var (
	// ErrNotFound is returned by a SourceLoader when no source exists at a
	// location.
	ErrNotFound = errors.New("script source not found")

	// ErrUnresolvable marks a location that is relative or uses a scheme no
	// loader handles.
	ErrUnresolvable = errors.New("unresolvable script location")
)

// ScriptError is an uncaught exception raised by a worker script while
// loading, handling a message or running a timer.
type ScriptError struct {
	Location Location
	Message  string
}

func (e *ScriptError) Error() string {
	if e.Location == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Location, e.Message)
}
