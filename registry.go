package jsbridge

import (
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
)

// contextRegistry maps native context handles to their *Context wrappers
// through weak pointers, so a lookup never keeps a Context alive.
// Finalizer goroutines read it while owners add and remove entries.
type contextRegistry struct {
	entries sync.Map // core.ContextPtr -> weak.Pointer[Context]
}

var registry contextRegistry

// register adds ctx under ptr. An existing entry is never replaced, even
// when its Context has already been collected; unregister clears it.
func (r *contextRegistry) register(ptr ContextPtr, ctx *Context) error {
	wp := weak.Make(ctx)
	if _, loaded := r.entries.LoadOrStore(ptr, wp); loaded {
		Logger().Warn("context already registered", zap.Uintptr("cx", uintptr(ptr)))
		return errors.New(errors.PhaseContext, errors.KindDuplicateContext).
			Op("register").
			Context(uintptr(ptr)).
			Detail("context handle already registered").
			Build()
	}
	return nil
}

// lookup returns the live Context registered under ptr, or nil.
func (r *contextRegistry) lookup(ptr ContextPtr) *Context {
	v, ok := r.entries.Load(ptr)
	if !ok {
		return nil
	}
	return v.(weak.Pointer[Context]).Value()
}

// unregister removes the entry for ptr if it still belongs to ctx.
func (r *contextRegistry) unregister(ptr ContextPtr, ctx *Context) bool {
	v, ok := r.entries.Load(ptr)
	if !ok {
		return false
	}
	wp := v.(weak.Pointer[Context])
	if wp != weak.Make(ctx) {
		return false
	}
	return r.entries.CompareAndDelete(ptr, wp)
}

// FromPointer returns the Context wrapping a native context handle, as
// received by a NativeFunc. It returns nil when the handle is unknown or
// its Context has been disposed or collected.
func FromPointer(ptr ContextPtr) *Context {
	ctx := registry.lookup(ptr)
	if ctx == nil || ctx.IsDisposed() {
		return nil
	}
	return ctx
}
