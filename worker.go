package scriptworker

// Worker is a handle to one worker of a Coordinator.
type Worker struct {
	c  *Coordinator
	id WorkerID
}

// ID returns the worker's id.
func (w *Worker) ID() WorkerID { return w.id }

// Load evaluates the script at location in the worker.
func (w *Worker) Load(location string) { w.c.LoadScript(w.id, location) }

// Send delivers v to the worker's onMessage handler.
func (w *Worker) Send(v any) { w.c.SendMessage(w.id, v) }

// Close removes the worker. Deliveries still in flight are dropped.
func (w *Worker) Close() { w.c.RemoveWorker(w.id) }
