//go:build !v8

package quickjs

import (
	"fmt"
	"reflect"
	"unsafe"

	"modernc.org/libc"
	lib "modernc.org/libquickjs"
	"modernc.org/quickjs"
)

// jobPump runs pending QuickJS jobs (Promise reactions) through the C API.
// The modernc.org/quickjs Go wrapper never calls JS_ExecutePendingJob, so
// Promise .then() callbacks would otherwise never fire.
type jobPump struct {
	tls      *libc.TLS
	cRuntime uintptr
	cContext uintptr
}

// newJobPump extracts the VM's unexported tls, runtime and context
// pointers with reflect+unsafe.
//
// VM struct layout (modernc.org/quickjs@v0.17.1):
//
//	type VM struct {
//	    cContext       uintptr
//	    goFuncs       map[string]int32
//	    int32_16      lib.TJSValue
//	    int32_2       lib.TJSValue
//	    runtime       *runtime
//	    ...
//	}
//
//	type runtime struct {
//	    cRuntime uintptr
//	    tls      *libc.TLS
//	}
func newJobPump(vm *quickjs.VM) (p *jobPump, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic extracting VM internals: %v", r)
		}
	}()

	vmVal := reflect.ValueOf(vm).Elem()

	// cContext is the first field of VM (offset 0).
	cContext := *(*uintptr)(unsafe.Pointer(vm))
	if cContext == 0 {
		return nil, fmt.Errorf("JSContext is nil")
	}

	rtField := vmVal.FieldByName("runtime")
	if !rtField.IsValid() || rtField.IsNil() {
		return nil, fmt.Errorf("quickjs.VM missing 'runtime' field")
	}
	rtPtr := unsafe.Pointer(rtField.Pointer())
	rtVal := reflect.NewAt(rtField.Type().Elem(), rtPtr).Elem()

	cRuntimeField := rtVal.FieldByName("cRuntime")
	if !cRuntimeField.IsValid() {
		return nil, fmt.Errorf("runtime missing 'cRuntime' field")
	}
	tlsField := rtVal.FieldByName("tls")
	if !tlsField.IsValid() || tlsField.IsNil() {
		return nil, fmt.Errorf("runtime missing 'tls' field")
	}

	p = &jobPump{
		tls:      (*libc.TLS)(unsafe.Pointer(tlsField.Pointer())),
		cRuntime: uintptr(cRuntimeField.Uint()),
		cContext: cContext,
	}

	// Smoke-test: try a trivial C API call to verify pointers are valid.
	glob := lib.XJS_GetGlobalObject(p.tls, p.cContext)
	lib.XFreeValue(p.tls, p.cContext, glob)

	return p, nil
}

// run executes jobs until the queue is empty and returns how many ran.
// A job that throws is dropped; its exception does not reach the caller.
func (p *jobPump) run() int {
	count := 0
	for {
		ret := lib.XJS_ExecutePendingJob(p.tls, p.cRuntime, 0)
		if ret == 0 {
			return count
		}
		count++
	}
}
