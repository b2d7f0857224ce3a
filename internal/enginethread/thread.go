// Package enginethread owns the JavaScript runtime. A Thread runs one
// goroutine, locked to its OS thread, that creates the runtime, drains the
// inbound message queue, fires timers and shuts the runtime down. Nothing
// but that goroutine ever touches the runtime.
package enginethread

import (
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/scriptworker/internal/binding"
	"github.com/cryguy/scriptworker/internal/channel"
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/eventloop"
	"github.com/cryguy/scriptworker/internal/exchange"
	"github.com/cryguy/scriptworker/internal/metrics"
	"github.com/cryguy/scriptworker/internal/registry"
)

// RuntimeFactory builds the runtime on the engine goroutine.
type RuntimeFactory func(memoryLimitMB int) (core.JSRuntime, error)

// Options configure a Thread.
type Options struct {
	Config     core.EngineConfig
	Loader     core.SourceLoader
	NewRuntime RuntimeFactory
	// Deliver receives every outbound message. It is called on the engine
	// goroutine and must not block.
	Deliver func(channel.Delivery)
	Logger  *zap.Logger
}

// Thread is the engine goroutine and the state only it may use.
type Thread struct {
	cfg        core.EngineConfig
	loader     core.SourceLoader
	newRuntime RuntimeFactory
	deliver    func(channel.Delivery)
	log        *zap.Logger

	inbox    *channel.Queue[channel.Message]
	reg      *registry.Registry
	started  *channel.Handshake
	exited   chan struct{}
	launched atomic.Bool
	stopping atomic.Bool

	// Engine goroutine only.
	rt     core.JSRuntime
	loop   *eventloop.EventLoop
	bridge *binding.Bridge
}

// New prepares a Thread. Nothing runs until Start.
func New(opts Options) *Thread {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = core.SourceLoaderFunc(func(loc core.Location) (string, error) {
			return "", fmt.Errorf("%q: %w", loc, core.ErrNotFound)
		})
	}
	deliver := opts.Deliver
	if deliver == nil {
		deliver = func(channel.Delivery) {}
	}
	return &Thread{
		cfg:        opts.Config.WithDefaults(),
		loader:     loader,
		newRuntime: opts.NewRuntime,
		deliver:    deliver,
		log:        log,
		inbox:      channel.NewQueue[channel.Message](),
		reg:        registry.New(),
		started:    channel.NewHandshake(),
		exited:     make(chan struct{}),
	}
}

// Start launches the engine goroutine and waits, up to the configured
// start timeout, for the runtime to come up. ok is false on timeout; the
// goroutine keeps starting in the background and messages posted
// meanwhile are queued. err is the runtime construction error, if any.
func (t *Thread) Start() (ok bool, err error) {
	if t.launched.Swap(true) {
		return t.started.Poll()
	}
	go t.run()
	ok, err = t.started.Wait(t.cfg.StartTimeout)
	if !ok {
		t.log.Warn("engine start handshake timed out", zap.Duration("timeout", t.cfg.StartTimeout))
	}
	return ok, err
}

// Register inserts an empty state for id. It is the only registry
// operation callers perform directly.
func (t *Thread) Register(id core.WorkerID, owner core.OwnerRef) bool {
	if t.stopping.Load() || !t.reg.Insert(id, owner) {
		return false
	}
	metrics.WorkerAdded()
	return true
}

// Post queues msg for the engine goroutine. It reports false when the
// engine is stopping and the message was dropped.
func (t *Thread) Post(msg channel.Message) bool {
	if t.stopping.Load() {
		metrics.Dropped(metrics.DropStopping, 1)
		return false
	}
	if !t.inbox.Post(msg) {
		metrics.Dropped(metrics.DropClosedQueue, 1)
		return false
	}
	return true
}

// Stop raises the stopping flag, so queued messages are discarded, asks
// the engine goroutine to exit and waits for it up to the stop timeout.
// It reports whether the goroutine has exited. A timed-out stop also
// interrupts whatever script is running.
func (t *Thread) Stop() bool {
	if !t.launched.Load() {
		t.stopping.Store(true)
		return true
	}
	if !t.stopping.Swap(true) {
		t.inbox.Post(channel.ShutdownRequest{})
	}
	timer := time.NewTimer(t.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-t.exited:
		return true
	case <-timer.C:
	}
	t.log.Warn("engine did not stop in time", zap.Duration("timeout", t.cfg.StopTimeout))
	select {
	case <-t.started.Done():
		if t.rt != nil {
			t.rt.Interrupt()
		}
	default:
	}
	return false
}

// Ready reports whether the runtime has come up successfully.
func (t *Thread) Ready() bool {
	ok, err := t.started.Poll()
	return ok && err == nil
}

// Done is closed when the engine goroutine has exited.
func (t *Thread) Done() <-chan struct{} { return t.exited }

func (t *Thread) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.exited)

	if err := t.setup(); err != nil {
		t.log.Error("engine runtime failed to start", zap.Error(err))
		t.inbox.Close()
		t.started.Signal(err)
		return
	}
	t.started.Signal(nil)
	t.log.Debug("engine started", zap.String("runtime", t.rt.ID()))
	defer t.shutdown()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		var timerC <-chan time.Time
		if d, ok := t.loop.NextDeadline(); ok {
			timer.Reset(time.Until(d))
			timerC = timer.C
		}
		select {
		case <-t.inbox.Ready():
			if !t.drain() {
				return
			}
		case <-timerC:
			t.runTimers()
		}
	}
}

func (t *Thread) setup() error {
	if t.newRuntime == nil {
		return errors.New("no runtime factory configured")
	}
	rt, err := t.newRuntime(t.cfg.MemoryLimitMB)
	if err != nil {
		return fmt.Errorf("creating runtime: %w", err)
	}
	loop := eventloop.New()
	bridge, err := binding.Install(rt, loop, binding.Hooks{
		Send:     t.onSend,
		Callback: t.onCallback,
		Error:    t.onAsyncError,
		Log:      t.onLog,
	})
	if err != nil {
		rt.Close()
		return err
	}
	t.rt, t.loop, t.bridge = rt, loop, bridge
	return nil
}

func (t *Thread) shutdown() {
	if n := t.inbox.Close(); n > 0 {
		metrics.Dropped(metrics.DropStopping, n)
	}
	ids := t.reg.Reset()
	metrics.WorkersRemoved(len(ids))
	t.loop.Reset()
	t.rt.Close()
	metrics.Message(metrics.KindShutdown)
	t.log.Debug("engine stopped", zap.Int("workers", len(ids)))
}

// drain handles one batch of queued messages. It returns false once a
// ShutdownRequest is seen.
func (t *Thread) drain() bool {
	batch := t.inbox.Drain()
	for i, msg := range batch {
		if _, ok := msg.(channel.ShutdownRequest); ok {
			metrics.Dropped(metrics.DropStopping, len(batch)-i-1)
			return false
		}
		if t.stopping.Load() {
			metrics.Dropped(metrics.DropStopping, 1)
			continue
		}
		t.handle(msg)
	}
	return true
}

func (t *Thread) handle(msg channel.Message) {
	switch m := msg.(type) {
	case channel.LoadRequest:
		t.load(m)
	case channel.DataMessage:
		t.dispatch(m)
	case channel.RemoveRequest:
		t.remove(m.ID)
	default:
		t.log.Debug("ignoring inbound message", zap.String("type", fmt.Sprintf("%T", msg)))
	}
}

func (t *Thread) load(m channel.LoadRequest) {
	metrics.Message(metrics.KindLoad)
	st := t.lookup(m.ID)
	if st == nil {
		return
	}
	log := t.log.With(zap.Uint64("worker", uint64(m.ID)), zap.String("location", m.Location.String()))

	if !m.Location.IsAbsolute() {
		t.unresolved(st, m.Location, fmt.Errorf("%q: %w", m.Location, core.ErrUnresolvable))
		return
	}
	src, err := t.loader.Resolve(m.Location)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrUnresolvable) {
			t.unresolved(st, m.Location, err)
			return
		}
		log.Warn("loading worker source failed", zap.Error(err))
		t.report(st.Owner, m.Location, metrics.PhaseLoad, err)
		return
	}

	if err := t.initialize(st); err != nil {
		t.report(st.Owner, m.Location, metrics.PhaseLoad, err)
		return
	}
	if err := t.guard(func() error { return t.bridge.Evaluate(st.ID, src, m.Location) }); err != nil {
		t.report(st.Owner, m.Location, metrics.PhaseLoad, err)
		return
	}
	st.Location = m.Location
	log.Debug("worker script loaded")
}

// unresolved handles a load whose location cannot be resolved. It is a
// no-op unless the config asks for a diagnostic.
func (t *Thread) unresolved(st *registry.State, loc core.Location, err error) {
	metrics.Dropped(metrics.DropUnresolvable, 1)
	t.log.Debug("worker location not resolved",
		zap.Uint64("worker", uint64(st.ID)), zap.String("location", loc.String()), zap.Error(err))
	if t.cfg.ReportUnresolved {
		t.send(st.Owner, channel.ErrorReport{Origin: loc, Description: err.Error()})
	}
}

func (t *Thread) dispatch(m channel.DataMessage) {
	metrics.Message(metrics.KindData)
	st := t.lookup(m.ID)
	if st == nil {
		return
	}
	if err := t.initialize(st); err != nil {
		t.report(st.Owner, st.Location, metrics.PhaseCallback, err)
		return
	}
	if !st.Callback.Callable {
		return
	}

	v := m.Value()
	start := time.Now()
	err := t.guard(func() error { return t.bridge.Dispatch(st.ID, v) })
	metrics.ObserveDispatch(start)
	if err != nil {
		t.report(st.Owner, st.Location, metrics.PhaseCallback, err)
	}
}

func (t *Thread) remove(id core.WorkerID) {
	metrics.Message(metrics.KindRemove)
	st := t.reg.Lookup(id)
	if st == nil || !t.reg.Remove(id) {
		return
	}
	metrics.WorkersRemoved(1)
	if st.Initialized {
		if err := t.bridge.Release(id); err != nil {
			t.log.Warn("releasing worker binding failed", zap.Uint64("worker", uint64(id)), zap.Error(err))
		}
	}
	t.log.Debug("worker removed", zap.Uint64("worker", uint64(id)))
}

func (t *Thread) runTimers() {
	var n int
	_ = t.guard(func() error {
		n = t.bridge.RunTimers(time.Now(), func(id core.WorkerID, err error) {
			if st := t.reg.Lookup(id); st != nil {
				t.report(st.Owner, st.Location, metrics.PhaseTimer, err)
			}
		})
		return nil
	})
	if n > 0 {
		t.log.Debug("timers fired", zap.Int("count", n))
	}
}

// initialize creates the worker's binding object on first use.
func (t *Thread) initialize(st *registry.State) error {
	if st.Initialized {
		return nil
	}
	if err := t.bridge.Create(st.ID); err != nil {
		return fmt.Errorf("creating worker binding: %w", err)
	}
	st.Initialized = true
	return nil
}

func (t *Thread) lookup(id core.WorkerID) *registry.State {
	st := t.reg.Lookup(id)
	if st == nil {
		metrics.Dropped(metrics.DropUnknownWorker, 1)
		t.log.Debug("dropping message for unknown worker", zap.Uint64("worker", uint64(id)))
	}
	return st
}

// guard runs fn under the execution watchdog, if one is configured.
// Timeouts and engine panics come back as errors. guard returns only once
// the watchdog can no longer touch the runtime.
func (t *Thread) guard(fn func() error) (err error) {
	if t.cfg.ExecutionTimeout <= 0 {
		return fn()
	}
	var timedOut atomic.Bool
	fired := make(chan struct{})
	watchdog := time.AfterFunc(t.cfg.ExecutionTimeout, func() {
		defer close(fired)
		timedOut.Store(true)
		t.rt.Interrupt()
	})
	defer func() {
		// An interrupt that is already under way must land before the
		// runtime is used again.
		if !watchdog.Stop() {
			<-fired
		}
		if r := recover(); r != nil {
			err = fmt.Errorf("engine panic: %v", r)
		}
		if timedOut.Load() {
			err = fmt.Errorf("script execution timed out (limit: %v)", t.cfg.ExecutionTimeout)
		}
	}()
	return fn()
}

func (t *Thread) report(owner core.OwnerRef, origin core.Location, phase string, err error) {
	metrics.ScriptError(phase)
	serr := &core.ScriptError{Location: origin, Message: err.Error()}
	t.log.Info("worker script error", zap.String("phase", phase), zap.Error(serr))
	t.send(owner, channel.ErrorReport{Origin: origin, Description: serr.Message})
}

func (t *Thread) send(owner core.OwnerRef, msg channel.Message) {
	if _, ok := msg.(channel.ErrorReport); ok {
		metrics.Message(metrics.KindError)
	} else {
		metrics.Message(metrics.KindOutbound)
	}
	t.deliver(channel.Delivery{Owner: owner, Message: msg})
}

func (t *Thread) onSend(id core.WorkerID, v exchange.Value) {
	st := t.reg.Lookup(id)
	if st == nil {
		return
	}
	t.send(st.Owner, channel.DataMessage{ID: core.OwnerID, Payload: v})
}

func (t *Thread) onCallback(id core.WorkerID, callable bool) {
	if st := t.reg.Lookup(id); st != nil {
		st.Callback.Callable = callable
	}
}

func (t *Thread) onAsyncError(id core.WorkerID, description string) {
	st := t.reg.Lookup(id)
	if st == nil {
		return
	}
	t.report(st.Owner, st.Location, metrics.PhaseAsync, errors.New(description))
}

func (t *Thread) onLog(id core.WorkerID, level, message string) {
	log := t.log.Named("script").With(zap.Uint64("worker", uint64(id)))
	switch level {
	case "debug":
		log.Debug(message)
	case "warn":
		log.Warn(message)
	case "error":
		log.Error(message)
	default:
		log.Info(message)
	}
}
