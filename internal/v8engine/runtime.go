//go:build v8

package v8engine

import (
	"github.com/cryguy/jsbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// realm implements core.JSRuntime on one isolate and its context.
type realm struct {
	iso    *v8.Isolate
	ctx    *v8.Context
	closed bool
}

var _ core.JSRuntime = (*realm)(nil)

func (r *realm) Eval(js string) error {
	_, err := r.ctx.RunScript(js, "jsbridge.js")
	return err
}

func (r *realm) EvalString(js string) (string, error) {
	val, err := r.ctx.RunScript(js, "jsbridge.js")
	if err != nil {
		return "", err
	}
	if val == nil || val.IsNullOrUndefined() {
		return "", nil
	}
	return val.String(), nil
}

// Bind installs fn through a function template. Missing arguments read as
// zero values, matching what the QuickJS wrapper does.
func (r *realm) Bind(name string, fn core.HostFunc) error {
	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()
		var (
			id         int
			this, rest string
		)
		if len(args) > 0 {
			id = int(args[0].Int32())
		}
		if len(args) > 1 {
			this = args[1].String()
		}
		if len(args) > 2 {
			rest = args[2].String()
		}
		out, err := v8.NewValue(r.iso, fn(id, this, rest))
		if err != nil {
			return nil
		}
		return out
	})
	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

// RunMicrotasks performs a checkpoint. V8 does not report how many jobs
// ran, so the count is always 0.
func (r *realm) RunMicrotasks() int {
	r.ctx.PerformMicrotaskCheckpoint()
	return 0
}

// Close disposes the context and then its isolate.
func (r *realm) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.ctx.Close()
	r.iso.Dispose()
}
