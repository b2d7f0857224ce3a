// Package scriptworker runs JavaScript workers on one dedicated engine
// goroutine. Callers create workers, load scripts into them and exchange
// values with them without ever blocking on the engine; replies and errors
// come back through each worker's DeliverySink when the caller processes
// its events.
//
// QuickJS is the default engine. Build with -tags v8 to use V8.
package scriptworker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cryguy/scriptworker/internal/channel"
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/enginethread"
	"github.com/cryguy/scriptworker/internal/metrics"
)

// DeliverySink receives what a worker sends back. Both methods run on the
// goroutine that calls ProcessEvents or Run.
type DeliverySink interface {
	OnDataDelivered(v Value)
	OnErrorDelivered(origin Location, description string)
}

// Coordinator is the caller-facing side of an engine. All methods are
// safe for concurrent use.
type Coordinator struct {
	thread *enginethread.Thread
	events *channel.Queue[channel.Delivery]
	owners ownerTable
	log    *zap.Logger

	nextID atomic.Uint64

	mu   sync.Mutex
	refs map[WorkerID]core.OwnerRef
}

// New starts an engine and waits, up to cfg.StartTimeout, for its runtime
// to come up. A handshake timeout is not an error: the Coordinator is
// returned with Ready() == false and becomes ready once the runtime does.
// An error means the runtime could not be constructed.
func New(cfg EngineConfig, loader SourceLoader) (*Coordinator, error) {
	cfg = cfg.WithDefaults()
	log := cfg.Logger
	if log == nil {
		log = Logger()
	}
	c := &Coordinator{
		events: channel.NewQueue[channel.Delivery](),
		log:    log,
		refs:   make(map[WorkerID]core.OwnerRef),
	}
	c.thread = enginethread.New(enginethread.Options{
		Config:     cfg,
		Loader:     loader,
		NewRuntime: newRuntime,
		Deliver:    c.deliver,
		Logger:     log.Named("engine"),
	})
	if _, err := c.thread.Start(); err != nil {
		return nil, fmt.Errorf("starting %s engine: %w", Backend, err)
	}
	return c, nil
}

// Ready reports whether the engine runtime is up.
func (c *Coordinator) Ready() bool { return c.thread.Ready() }

// CreateWorker registers a new worker whose replies go to owner and
// returns its id. It never blocks on the engine. After Stop the id is
// still unique but nothing is kept for it.
func (c *Coordinator) CreateWorker(owner DeliverySink) WorkerID {
	id := WorkerID(c.nextID.Add(1))
	ref := c.owners.add(owner)
	c.mu.Lock()
	c.refs[id] = ref
	c.mu.Unlock()
	if !c.thread.Register(id, ref) {
		c.mu.Lock()
		delete(c.refs, id)
		c.mu.Unlock()
		c.owners.release(ref)
		c.log.Debug("worker created after stop", zap.Uint64("worker", uint64(id)))
	}
	return id
}

// LoadScript asks the engine to evaluate the script at location in the
// worker. Failures arrive later through the worker's sink.
func (c *Coordinator) LoadScript(id WorkerID, location string) {
	c.thread.Post(channel.LoadRequest{ID: id, Location: Location(location)})
}

// SendMessage hands v to the worker's onMessage handler. v is converted
// on the engine goroutine, so it must not be modified after the call;
// SharedList values are the exception and stay shared.
func (c *Coordinator) SendMessage(id WorkerID, v any) {
	c.thread.Post(channel.DataMessage{ID: id, Payload: v})
}

// RemoveWorker erases the worker. Its owner may be discarded right away:
// anything the worker had already sent is dropped rather than delivered.
// Removing twice is harmless.
func (c *Coordinator) RemoveWorker(id WorkerID) {
	c.mu.Lock()
	ref, ok := c.refs[id]
	delete(c.refs, id)
	c.mu.Unlock()
	if ok {
		c.owners.release(ref)
	}
	c.thread.Post(channel.RemoveRequest{ID: id})
}

// NewWorker creates a worker and returns a handle to it.
func (c *Coordinator) NewWorker(owner DeliverySink) *Worker {
	return &Worker{c: c, id: c.CreateWorker(owner)}
}

// Events is signalled when deliveries are waiting for ProcessEvents.
func (c *Coordinator) Events() <-chan struct{} { return c.events.Ready() }

// ProcessEvents delivers everything the engine has sent so far to the
// owning sinks, on the calling goroutine, and returns how many deliveries
// reached a sink.
func (c *Coordinator) ProcessEvents() int {
	n := 0
	for _, d := range c.events.Drain() {
		sink, ok := c.owners.get(d.Owner)
		if !ok {
			metrics.Dropped(metrics.DropStaleOwner, 1)
			continue
		}
		switch m := d.Message.(type) {
		case channel.DataMessage:
			sink.OnDataDelivered(m.Value())
		case channel.ErrorReport:
			sink.OnErrorDelivered(m.Origin, m.Description)
		default:
			continue
		}
		n++
	}
	return n
}

// Run processes events as they arrive until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.events.Ready():
			c.ProcessEvents()
		}
	}
}

// Stop discards queued messages, shuts the engine down and waits for it,
// up to the configured stop timeout. It reports whether the engine exited
// in time.
func (c *Coordinator) Stop() bool {
	ok := c.thread.Stop()
	c.log.Debug("engine stop", zap.Bool("clean", ok), zap.Int("owners", c.owners.live()))
	return ok
}

// Done is closed once the engine goroutine has exited.
func (c *Coordinator) Done() <-chan struct{} { return c.thread.Done() }

// deliver runs on the engine goroutine.
func (c *Coordinator) deliver(d channel.Delivery) {
	if !c.events.Post(d) {
		metrics.Dropped(metrics.DropClosedQueue, 1)
	}
}
