//go:build !v8

// Package quickjs implements core.JSRuntime on top of modernc.org/quickjs.
package quickjs

import (
	"fmt"
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
	"github.com/oklog/ulid/v2"
	"modernc.org/quickjs"
)

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
type qjsRuntime struct {
	vm   *quickjs.VM
	jobs *jobPump
	id   string

	// mu orders Interrupt, which may come from any goroutine, against
	// Close, which frees the interrupt state.
	mu     sync.Mutex
	closed bool
}

var _ core.JSRuntime = (*qjsRuntime)(nil)

// New creates a QuickJS VM. memoryLimitMB of 0 leaves the VM unlimited.
func New(memoryLimitMB int) (core.JSRuntime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if memoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(memoryLimitMB) * 1024 * 1024)
	}
	return &qjsRuntime{vm: vm, jobs: newJobPump(vm), id: ulid.Make().String()}, nil
}

// ID returns the runtime's affinity marker.
func (r *qjsRuntime) ID() string { return r.id }

// Eval evaluates JavaScript and discards the result. QuickJS takes no
// origin name; the engine's error text already names the failing line.
func (r *qjsRuntime) Eval(js, _ string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *qjsRuntime) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	if result == nil {
		return "", nil
	}
	return fmt.Sprint(result), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *qjsRuntime) EvalBool(js string) (bool, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return false, err
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("expected bool, got %T", result)
	}
	return b, nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are automatically unwrapped: on success
// returns T, on error throws a TypeError. This is necessary because the
// QuickJS Go wrapper returns multi-value results as JS arrays.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		var apply = Reflect.apply, isArray = Array.isArray;
		globalThis[%q] = function() {
			var r = apply(raw, this, arguments);
			if (isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError("calling %s: " + r[1]);
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, name, rawName)
	return r.Eval(wrapJS, "")
}

// SetGlobal sets a global property on the VM's global object.
func (r *qjsRuntime) SetGlobal(name string, value any) error {
	atom, err := r.vm.NewAtom(name)
	if err != nil {
		return fmt.Errorf("creating atom %q: %w", name, err)
	}
	glob := r.vm.GlobalObject()
	defer glob.Free()
	return glob.SetProperty(atom, value)
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() {
	r.jobs.run()
}

// Interrupt aborts the running evaluation. It is safe to call from any
// goroutine, and does nothing once the runtime is closed. The flag is
// cleared when the next evaluation starts.
func (r *qjsRuntime) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.vm.Interrupt()
}

// Close frees the VM.
func (r *qjsRuntime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.vm.Close()
}
