package core

// SourceLoader retrieves worker JS source code. It is only ever invoked on
// the engine goroutine, so blocking is acceptable.
type SourceLoader interface {
	Resolve(loc Location) (string, error)
}

// SourceLoaderFunc adapts a plain function to SourceLoader.
type SourceLoaderFunc func(loc Location) (string, error)

// Resolve calls f(loc).
func (f SourceLoaderFunc) Resolve(loc Location) (string, error) { return f(loc) }
