// Package binding installs the worker-facing JavaScript surface into a
// runtime: one WorkerScript object per worker exposing onMessage and
// sendMessage, worker-scoped timers, and the JS half of the exchange value
// marshaller. All methods must run on the runtime's goroutine.
package binding

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/eventloop"
	"github.com/cryguy/scriptworker/internal/exchange"
)

// Hooks receive the calls scripts make into the host. They run
// synchronously on the runtime's goroutine.
type Hooks struct {
	// Send is called by WorkerScript.sendMessage with the marshalled value.
	Send func(id core.WorkerID, v exchange.Value)
	// Callback is called whenever WorkerScript.onMessage is assigned.
	Callback func(id core.WorkerID, callable bool)
	// Error reports a failure that surfaced after the call that caused it
	// returned, such as a rejected promise from an async handler.
	Error func(id core.WorkerID, description string)
	// Log receives the worker's console output.
	Log func(id core.WorkerID, level, message string)
}

// Bridge is the Go side of the installed bindings.
type Bridge struct {
	rt     core.JSRuntime
	loop   *eventloop.EventLoop
	hooks  Hooks
	shared map[uint64]*exchange.SharedList

	// token gates globalThis.__wk; it only ever appears in source text the
	// bridge evaluates itself.
	token  string
	staged string
}

// Install registers the host functions and evaluates the bootstrap.
func Install(rt core.JSRuntime, loop *eventloop.EventLoop, hooks Hooks) (*Bridge, error) {
	b := &Bridge{
		rt:     rt,
		loop:   loop,
		hooks:  hooks,
		shared: make(map[uint64]*exchange.SharedList),
		token:  rand.Text(),
	}

	funcs := []struct {
		name string
		fn   any
	}{
		{"__wk_host_send", b.hostSend},
		{"__wk_host_callback", b.hostCallback},
		{"__wk_host_error", b.hostError},
		{"__wk_host_shared", b.hostShared},
		{"__wk_host_timer", b.hostTimer},
		{"__wk_host_clear_timer", b.hostClearTimer},
		{"__wk_host_log", b.hostLog},
		{"__wk_host_take", b.hostTake},
	}
	for _, f := range funcs {
		if err := rt.RegisterFunc(f.name, f.fn); err != nil {
			return nil, fmt.Errorf("registering %s: %w", f.name, err)
		}
	}
	if err := rt.Eval(consoleJS, "console.js"); err != nil {
		return nil, fmt.Errorf("installing console: %w", err)
	}
	tok, _ := json.Marshal(b.token)
	if err := rt.Eval(bootstrapJS+"("+string(tok)+");", "bootstrap.js"); err != nil {
		return nil, fmt.Errorf("installing worker bindings: %w", err)
	}
	return b, nil
}

// Create builds the WorkerScript object for id. Creating twice is a no-op.
func (b *Bridge) Create(id core.WorkerID) error {
	return b.rt.Eval(fmt.Sprintf("__wk.create(%q, %d)", b.token, id), "binding.js")
}

// Evaluate runs src with the worker's binding as its top-level scope.
// Top-level declarations stay private to the worker.
func (b *Bridge) Evaluate(id core.WorkerID, src string, loc core.Location) error {
	var sb strings.Builder
	sb.Grow(len(scopePrologue) + len(b.token) + len(src) + len(scopeEpilogue) + 16)
	fmt.Fprintf(&sb, scopePrologue, b.token, id)
	sb.WriteString(src)
	sb.WriteString(scopeEpilogue)

	err := b.rt.Eval(sb.String(), loc.String())
	b.settle()
	return err
}

// Dispatch invokes the worker's onMessage handler with v. It does nothing
// when the worker has no callable handler.
func (b *Bridge) Dispatch(id core.WorkerID, v exchange.Value) error {
	wire, err := exchange.EncodeWire(v, b.bind)
	if err != nil {
		return err
	}
	b.staged = wire
	err = b.rt.Eval(fmt.Sprintf("__wk.dispatch(%q, %d)", b.token, id), "dispatch.js")
	b.staged = ""
	b.settle()
	return err
}

// Release drops the worker's binding object and cancels its timers.
func (b *Bridge) Release(id core.WorkerID) error {
	timers := b.loop.ClearOwner(id)
	ids, _ := json.Marshal(timers)
	if timers == nil {
		ids = []byte("[]")
	}
	return b.rt.Eval(fmt.Sprintf("__wk.release(%q, %d, %s)", b.token, id, ids), "binding.js")
}

// RunTimers fires every timer due at now. Failures are passed to report
// with the worker that owns the timer.
func (b *Bridge) RunTimers(now time.Time, report func(id core.WorkerID, err error)) int {
	fired := b.loop.Due(now)
	for _, f := range fired {
		if err := b.loop.Fire(b.rt, f, b.token); err != nil {
			report(f.Owner, err)
		}
		b.settle()
	}
	return len(fired)
}

// settle runs pending promise jobs, then reports rejections no handler
// claimed through Hooks.Error.
func (b *Bridge) settle() {
	b.rt.RunMicrotasks()
	_ = b.rt.Eval(fmt.Sprintf("__wk.flush(%q)", b.token), "binding.js")
}

// ToExchange evaluates the JS expression expr and converts its result.
func (b *Bridge) ToExchange(expr string) (exchange.Value, error) {
	wire, err := b.rt.EvalString(fmt.Sprintf("__wk.encode(%q, %s)", b.token, expr))
	if err != nil {
		return exchange.Null(), err
	}
	return exchange.DecodeWire(wire, b.resolve)
}

// FromExchange converts v into a native JS value stored in the global name.
func (b *Bridge) FromExchange(v exchange.Value, name string) error {
	wire, err := exchange.EncodeWire(v, b.bind)
	if err != nil {
		return err
	}
	b.staged = wire
	defer func() { b.staged = "" }()
	key, _ := json.Marshal(name)
	return b.rt.Eval(fmt.Sprintf("globalThis[%s] = __wk.decode(%q);", key, b.token), "exchange.js")
}

// bind admits a shared list into this runtime, claiming its affinity.
func (b *Bridge) bind(l *exchange.SharedList) (uint64, bool) {
	if !l.Bind(b.rt.ID()) {
		return 0, false
	}
	b.shared[l.ID()] = l
	return l.ID(), true
}

func (b *Bridge) resolve(id uint64) *exchange.SharedList {
	return b.shared[id]
}

func (b *Bridge) hostSend(id int, wire string) (string, error) {
	v, err := exchange.DecodeWire(wire, b.resolve)
	if err != nil {
		return "", err
	}
	if b.hooks.Send != nil {
		b.hooks.Send(core.WorkerID(id), v)
	}
	return "", nil
}

func (b *Bridge) hostCallback(id int, callable int) (string, error) {
	if b.hooks.Callback != nil {
		b.hooks.Callback(core.WorkerID(id), callable != 0)
	}
	return "", nil
}

func (b *Bridge) hostError(id int, description string) (string, error) {
	if b.hooks.Error != nil {
		b.hooks.Error(core.WorkerID(id), description)
	}
	return "", nil
}

func (b *Bridge) hostTimer(id int, delayMs int, interval int) (int, error) {
	return b.loop.RegisterTimer(core.WorkerID(id), time.Duration(delayMs)*time.Millisecond, interval != 0), nil
}

func (b *Bridge) hostClearTimer(id int, timer int) (int, error) {
	if b.loop.ClearFor(core.WorkerID(id), timer) {
		return 1, nil
	}
	return 0, nil
}

// hostTake hands the staged wire value to __wk.dispatch or __wk.decode.
func (b *Bridge) hostTake() (string, error) {
	w := b.staged
	b.staged = ""
	return w, nil
}

func (b *Bridge) hostLog(id int, level, message string) (string, error) {
	if b.hooks.Log != nil {
		b.hooks.Log(core.WorkerID(id), level, message)
	}
	return "", nil
}
