//go:build v8

// Package v8engine implements core.JSRuntime on top of V8 (tommie/v8go).
package v8engine

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/cryguy/scriptworker/internal/core"
	"github.com/oklog/ulid/v2"
	v8 "github.com/tommie/v8go"
)

// v8Runtime implements core.JSRuntime for the V8 engine.
type v8Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
	id  string

	// mu orders Interrupt, which may come from any goroutine, against
	// Close, which disposes the isolate.
	mu     sync.Mutex
	closed bool
}

var _ core.JSRuntime = (*v8Runtime)(nil)

// New creates an isolate and a context. V8 sizes its own heap, so the
// memory limit is only honoured by the QuickJS backend.
func New(_ int) (core.JSRuntime, error) {
	iso := v8.NewIsolate()
	ctx := v8.NewContext(iso)
	return &v8Runtime{iso: iso, ctx: ctx, id: ulid.Make().String()}, nil
}

// ID returns the runtime's affinity marker.
func (r *v8Runtime) ID() string { return r.id }

// Eval evaluates JavaScript and discards the result.
func (r *v8Runtime) Eval(js, origin string) error {
	if origin == "" {
		origin = "eval.js"
	}
	_, err := r.ctx.RunScript(js, origin)
	return describe(err)
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.ctx.RunScript(js, "eval_string.js")
	if err != nil {
		return "", describe(err)
	}
	if val == nil || val.IsUndefined() || val.IsNull() {
		return "", nil
	}
	return val.String(), nil
}

// EvalBool evaluates JavaScript and returns the result as a Go bool.
func (r *v8Runtime) EvalBool(js string) (bool, error) {
	val, err := r.ctx.RunScript(js, "eval_bool.js")
	if err != nil {
		return false, describe(err)
	}
	if val == nil || !val.IsBoolean() {
		return false, fmt.Errorf("expected bool, got %v", val)
	}
	return val.Boolean(), nil
}

// describe appends a V8 exception's source position to its message.
func describe(err error) error {
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) && jsErr.Location != "" {
		return fmt.Errorf("%s (%s)", jsErr.Message, jsErr.Location)
	}
	return err
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Uses reflection to inspect the Go function's signature and creates a
// V8 FunctionTemplate that marshals arguments and return values.
//
// Supported Go function signatures:
//   - func(args...): no return, JS function returns undefined
//   - func(args...) T: single return, JS function returns T
//   - func(args...) (T, error): on success returns T, on error throws
//
// Supported argument and return types: string, int, float64, bool
func (r *v8Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()
	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		if len(args) < fnType.NumIn() {
			return r.throw(fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args)))
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := range goArgs {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}
		results := fnVal.Call(goArgs)

		switch fnType.NumOut() {
		case 1:
			return goToJSValue(r.iso, results[0])
		case 2:
			if errVal := results[1]; !errVal.IsNil() {
				return r.throw(fmt.Sprintf("calling %s: %s", name, errVal.Interface().(error).Error()))
			}
			return goToJSValue(r.iso, results[0])
		}
		return nil
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

func (r *v8Runtime) throw(msg string) *v8.Value {
	jsMsg, _ := v8.NewValue(r.iso, msg)
	return r.iso.ThrowException(jsMsg)
}

// SetGlobal sets a global variable on the JS context. Go ints become JS
// numbers; v8go would otherwise turn int64 into a BigInt.
func (r *v8Runtime) SetGlobal(name string, value any) error {
	var (
		jsVal *v8.Value
		err   error
	)
	switch v := value.(type) {
	case nil:
		jsVal = v8.Undefined(r.iso)
	case int:
		jsVal, err = v8.NewValue(r.iso, float64(v))
	default:
		jsVal, err = v8.NewValue(r.iso, v)
	}
	if err != nil {
		return fmt.Errorf("converting value for %q: %w", name, err)
	}
	return r.ctx.Global().Set(name, jsVal)
}

// RunMicrotasks pumps the V8 microtask queue.
func (r *v8Runtime) RunMicrotasks() {
	r.ctx.PerformMicrotaskCheckpoint()
}

// Interrupt terminates the running script. It is safe to call from any
// goroutine and does nothing once the runtime is closed.
func (r *v8Runtime) Interrupt() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.iso.TerminateExecution()
}

// Close disposes of the context and isolate.
func (r *v8Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.ctx.Close()
	r.iso.Dispose()
}

// jsToGoArg converts a V8 value to a Go reflect.Value of the expected type.
func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	}
	return reflect.Zero(targetType)
}

// goToJSValue converts a Go reflect.Value to a V8 value.
func goToJSValue(iso *v8.Isolate, val reflect.Value) *v8.Value {
	var (
		v   *v8.Value
		err error
	)
	switch val.Kind() {
	case reflect.String:
		v, err = v8.NewValue(iso, val.String())
	case reflect.Int, reflect.Int64, reflect.Int32:
		v, err = v8.NewValue(iso, float64(val.Int()))
	case reflect.Float64, reflect.Float32:
		v, err = v8.NewValue(iso, val.Float())
	case reflect.Bool:
		v, err = v8.NewValue(iso, val.Bool())
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return v
}
