//go:build !v8

package quickjs

import (
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// jobPump drains the QuickJS job queue. modernc.org/quickjs never calls
// JS_ExecutePendingJob itself, so without it promise reactions (and with
// them every async onMessage handler) would never settle.
type jobPump struct {
	cRuntime uintptr
	tls      *libc.TLS
}

// maxJobsPerPump bounds a single drain so a promise chain that keeps
// re-queueing itself cannot starve the message loop.
const maxJobsPerPump = 1 << 16

// newJobPump locates the C runtime behind vm. It returns nil when the
// wrapper's layout is not the one expected (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext uintptr
//	    ...
//	    runtime  *runtime
//	}
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func newJobPump(vm *quickjs.VM) *jobPump {
	rtField := reflect.ValueOf(vm).Elem().FieldByName("runtime")
	if !rtField.IsValid() || rtField.Kind() != reflect.Pointer || rtField.IsNil() {
		return nil
	}
	rt := reflect.NewAt(rtField.Type().Elem(), unsafe.Pointer(rtField.Pointer())).Elem()

	cRuntime := rt.FieldByName("cRuntime")
	tls := rt.FieldByName("tls")
	if !cRuntime.IsValid() || !tls.IsValid() || tls.IsNil() {
		return nil
	}
	return &jobPump{
		cRuntime: uintptr(cRuntime.Uint()),
		tls:      (*libc.TLS)(unsafe.Pointer(tls.Pointer())),
	}
}

// run executes pending jobs until the queue is empty, a job throws, or the
// per-pump bound is hit. It returns the number of jobs executed.
func (p *jobPump) run() int {
	if p == nil {
		return 0
	}
	n := 0
	for n < maxJobsPerPump && lib.XJS_ExecutePendingJob(p.tls, p.cRuntime, 0) > 0 {
		n++
	}
	return n
}
