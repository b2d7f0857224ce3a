package channel

import (
	"github.com/cryguy/scriptworker/internal/core"
	"github.com/cryguy/scriptworker/internal/exchange"
)

// Message is anything posted to the engine goroutine or back to an owner.
// Messages are created on the sending side and consumed exactly once.
type Message interface {
	message()
}

// LoadRequest asks the engine to evaluate the script at Location in the
// worker ID.
type LoadRequest struct {
	ID       core.WorkerID
	Location core.Location
}

// DataMessage carries a payload. Inbound (ID != 0) the payload is the
// caller's Go value, converted on the engine goroutine; outbound (ID == 0)
// it is an exchange.Value addressed to the owner.
type DataMessage struct {
	ID      core.WorkerID
	Payload any
}

// RemoveRequest erases a worker.
type RemoveRequest struct {
	ID core.WorkerID
}

// ErrorReport describes an uncaught script error raised at Origin.
type ErrorReport struct {
	Origin      core.Location
	Description string
}

// ShutdownRequest stops the engine goroutine.
type ShutdownRequest struct{}

func (LoadRequest) message()     {}
func (DataMessage) message()     {}
func (RemoveRequest) message()   {}
func (ErrorReport) message()     {}
func (ShutdownRequest) message() {}

// Value returns the outbound payload as an exchange value.
func (m DataMessage) Value() exchange.Value {
	if v, ok := m.Payload.(exchange.Value); ok {
		return v
	}
	return exchange.FromGo(m.Payload)
}

// Delivery is an outbound message addressed to an owner.
type Delivery struct {
	Owner   core.OwnerRef
	Message Message
}
