// Package metrics holds the Prometheus collectors of the script engine.
// They are registered with the default registerer at init.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Message kinds.
const (
	KindLoad     = "load"
	KindData     = "data"
	KindRemove   = "remove"
	KindShutdown = "shutdown"
	KindOutbound = "outbound"
	KindError    = "error"
)

// Drop reasons.
const (
	DropUnknownWorker = "unknown_worker"
	DropStopping      = "stopping"
	DropClosedQueue   = "closed_queue"
	DropStaleOwner    = "stale_owner"
	DropUnresolvable  = "unresolvable"
)

// Script error phases.
const (
	PhaseLoad     = "load"
	PhaseCallback = "callback"
	PhaseAsync    = "async"
	PhaseTimer    = "timer"
)

var (
	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptworker_messages_total",
			Help: "Messages handled by the engine, by kind.",
		},
		[]string{"kind"},
	)

	droppedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptworker_dropped_messages_total",
			Help: "Messages discarded without being handled, by reason.",
		},
		[]string{"reason"},
	)

	scriptErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scriptworker_script_errors_total",
			Help: "Uncaught script exceptions, by the phase they were raised in.",
		},
		[]string{"phase"},
	)

	activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "scriptworker_active_workers",
			Help: "Number of workers currently registered across all engines.",
		},
	)

	dispatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scriptworker_dispatch_duration_seconds",
			Help:    "Time spent in a worker's message handler, in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(messagesTotal)
	prometheus.MustRegister(droppedMessagesTotal)
	prometheus.MustRegister(scriptErrorsTotal)
	prometheus.MustRegister(activeWorkers)
	prometheus.MustRegister(dispatchDuration)

	for _, k := range []string{KindLoad, KindData, KindRemove, KindShutdown, KindOutbound, KindError} {
		messagesTotal.WithLabelValues(k)
	}
	for _, r := range []string{DropUnknownWorker, DropStopping, DropClosedQueue, DropStaleOwner, DropUnresolvable} {
		droppedMessagesTotal.WithLabelValues(r)
	}
	for _, p := range []string{PhaseLoad, PhaseCallback, PhaseAsync, PhaseTimer} {
		scriptErrorsTotal.WithLabelValues(p)
	}
}

func Message(kind string) { messagesTotal.WithLabelValues(kind).Inc() }

// Dropped counts n messages discarded for reason.
func Dropped(reason string, n int) {
	if n > 0 {
		droppedMessagesTotal.WithLabelValues(reason).Add(float64(n))
	}
}

func ScriptError(phase string) { scriptErrorsTotal.WithLabelValues(phase).Inc() }

func WorkerAdded() { activeWorkers.Inc() }

// WorkersRemoved lowers the active worker gauge by n.
func WorkersRemoved(n int) { activeWorkers.Sub(float64(n)) }

// ObserveDispatch records the time a handler took since start.
func ObserveDispatch(start time.Time) {
	dispatchDuration.Observe(time.Since(start).Seconds())
}
