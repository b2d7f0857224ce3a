package scriptworker

import "github.com/cryguy/scriptworker/internal/loader"

// Source loaders. A LoaderMux routes locations by scheme; the others each
// serve one scheme.
type (
	LoaderMux    = loader.Mux
	FileLoader   = loader.File
	MemoryLoader = loader.Memory
	ScriptStore  = loader.Store
)

// NewLoaderMux returns a mux with no schemes registered.
func NewLoaderMux() *LoaderMux { return loader.NewMux() }

// NewMemoryLoader returns an empty "mem:" loader.
func NewMemoryLoader() *MemoryLoader { return loader.NewMemory() }

// OpenScriptStore opens the SQLite script store at path for "db:"
// locations.
func OpenScriptStore(path string) (*ScriptStore, error) { return loader.OpenStore(path) }

// DefaultLoader serves "file:" locations below root and "mem:" locations
// from mem. mem may be nil.
func DefaultLoader(root string, mem *MemoryLoader) *LoaderMux {
	m := loader.NewMux().Handle("file", &loader.File{Root: root})
	if mem != nil {
		m.Handle("mem", mem)
	}
	return m
}
