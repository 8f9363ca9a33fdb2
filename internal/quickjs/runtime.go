//go:build !v8

package quickjs

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"modernc.org/quickjs"
)

// realm implements core.JSRuntime on one QuickJS VM.
type realm struct {
	vm     *quickjs.VM
	pump   *jobPump // nil when the VM internals could not be reached
	closed bool
}

var _ core.JSRuntime = (*realm)(nil)

func (r *realm) Eval(js string) error {
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

func (r *realm) EvalString(js string) (string, error) {
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Bind registers fn under name. The wrapper's reflection needs a plain
// func type, so the named HostFunc is converted first.
func (r *realm) Bind(name string, fn core.HostFunc) error {
	if err := r.vm.RegisterFunc(name, (func(int, string, string) string)(fn), false); err != nil {
		return fmt.Errorf("binding %s: %w", name, err)
	}
	return nil
}

func (r *realm) RunMicrotasks() int {
	if r.pump == nil {
		return 0
	}
	return r.pump.run()
}

func (r *realm) Close() {
	if r.closed {
		return
	}
	r.closed = true
	r.vm.Close()
}
