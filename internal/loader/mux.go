// Package loader resolves script locations to JavaScript source. Each
// loader handles one URL scheme; Mux routes a location to the loader
// registered for its scheme.
package loader

import (
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
)

// Mux dispatches Resolve calls by location scheme.
type Mux struct {
	mu      sync.RWMutex
	loaders map[string]core.SourceLoader
}

var _ core.SourceLoader = (*Mux)(nil)

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{loaders: make(map[string]core.SourceLoader)}
}

// Handle registers l for scheme, replacing any previous loader.
func (m *Mux) Handle(scheme string, l core.SourceLoader) *Mux {
	m.mu.Lock()
	m.loaders[strings.ToLower(scheme)] = l
	m.mu.Unlock()
	return m
}

// Resolve hands loc to the loader registered for its scheme. Relative
// locations and unknown schemes wrap core.ErrUnresolvable.
func (m *Mux) Resolve(loc core.Location) (string, error) {
	scheme := loc.Scheme()
	if scheme == "" {
		return "", fmt.Errorf("%q: %w", loc, core.ErrUnresolvable)
	}
	m.mu.RLock()
	l, ok := m.loaders[scheme]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no loader for scheme %q: %w", scheme, core.ErrUnresolvable)
	}
	return l.Resolve(loc)
}

// opaqueName returns the name part of locations like "db:name" or
// "db:///name".
func opaqueName(loc core.Location) (string, error) {
	u, err := url.Parse(string(loc))
	if err != nil {
		return "", fmt.Errorf("%q: %w", loc, core.ErrUnresolvable)
	}
	name := u.Opaque
	if name == "" {
		name = strings.TrimPrefix(u.Path, "/")
	}
	if name == "" {
		return "", fmt.Errorf("%q names no script: %w", loc, core.ErrUnresolvable)
	}
	return name, nil
}
