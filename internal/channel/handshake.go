package channel

import (
	"sync"
	"time"
)

// Handshake lets one goroutine block, with a bound, until another signals
// that it is ready.
type Handshake struct {
	once sync.Once
	done chan struct{}
	err  error
}

// NewHandshake returns an unsignalled handshake.
func NewHandshake() *Handshake {
	return &Handshake{done: make(chan struct{})}
}

// Signal releases waiters. err reports a failed start; only the first
// call has any effect.
func (h *Handshake) Signal(err error) {
	h.once.Do(func() {
		h.err = err
		close(h.done)
	})
}

// Done is closed once Signal has been called.
func (h *Handshake) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until Signal is called or timeout elapses. ok is false on
// timeout; err is the value passed to Signal.
func (h *Handshake) Wait(timeout time.Duration) (ok bool, err error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-h.done:
		return true, h.err
	case <-t.C:
		return false, nil
	}
}

// Poll reports, without blocking, whether Signal has been called and with
// what error.
func (h *Handshake) Poll() (bool, error) {
	select {
	case <-h.done:
		return true, h.err
	default:
		return false, nil
	}
}
