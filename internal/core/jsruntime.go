package core

// JSRuntime abstracts the JavaScript engine (QuickJS or V8) behind the
// small surface the engine goroutine needs. Every method must be called on
// the goroutine that created the runtime, except Interrupt.
type JSRuntime interface {
	// ID is the runtime's affinity marker. Shared objects bound to one
	// runtime cannot be consumed by another.
	ID() string

	// Eval evaluates JavaScript source and discards the result. origin names
	// the source in error messages where the engine supports it. An uncaught
	// exception is returned as an error.
	Eval(js, origin string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Supported argument types are string, int, float64 and bool. A
	// (T, error) return throws in JS when the error is non-nil.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. Basic Go types
	// (string, int, float64, bool) are auto-converted to JS types.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	// V8: PerformMicrotaskCheckpoint, QuickJS: ExecutePendingJob loop.
	RunMicrotasks()

	// Interrupt aborts the currently running evaluation. Safe to call from
	// any goroutine.
	Interrupt()

	// Close releases the engine. The runtime is unusable afterwards.
	Close()
}
