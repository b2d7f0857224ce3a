package loader

import (
	"fmt"
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
)

// Memory serves sources held in memory under "mem:<name>" locations.
type Memory struct {
	mu      sync.RWMutex
	sources map[string]string
}

var _ core.SourceLoader = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{sources: make(map[string]string)}
}

// Set stores src under name.
func (m *Memory) Set(name, src string) {
	m.mu.Lock()
	m.sources[name] = src
	m.mu.Unlock()
}

// Delete removes name.
func (m *Memory) Delete(name string) {
	m.mu.Lock()
	delete(m.sources, name)
	m.mu.Unlock()
}

func (m *Memory) Resolve(loc core.Location) (string, error) {
	name, err := opaqueName(loc)
	if err != nil {
		return "", err
	}
	m.mu.RLock()
	src, ok := m.sources[name]
	m.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%q: %w", loc, core.ErrNotFound)
	}
	return src, nil
}
