package jsbridge

import (
	"runtime"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// Rooted keeps one engine value alive for as long as the handle is held.
// It is created rooted, and stays rooted until Dispose, until its Context
// is disposed, or until the Go collector finds it unreachable and the
// owning Context can still safely remove the root.
//
// A Rooted belongs to the goroutine driving its Context.
type Rooted[T Rootable] struct {
	slot *slot[T]
}

// NewRooted roots initial in ctx.
func NewRooted[T Rootable](ctx *Context, initial T) (*Rooted[T], error) {
	if err := ctx.enter("NewRooted"); err != nil {
		return nil, err
	}
	return newRooted(ctx.native, ctx.ptr, ctx, initial)
}

// NewRootedFromPointer roots initial against a raw context handle, as
// received by a NativeFunc. The owning Context is looked up in the
// registry; without one the root is only ever removed by Dispose.
func NewRootedFromPointer[T Rootable](cx ContextPtr, initial T) (*Rooted[T], error) {
	if ctx := FromPointer(cx); ctx != nil {
		return newRooted(ctx.native, cx, ctx, initial)
	}
	return newRooted(defaultNative(), cx, nil, initial)
}

func newRooted[T Rootable](n core.Native, cx core.ContextPtr, owner *Context, initial T) (*Rooted[T], error) {
	s, err := acquire(n, cx, owner, initial)
	if err != nil {
		return nil, err
	}
	r := &Rooted[T]{slot: s}
	if owner != nil {
		owner.track(s)
	}
	s.cleanup = runtime.AddCleanup(r, finalizeSlot[T], s)
	return r, nil
}

// Get returns the rooted payload.
func (r *Rooted[T]) Get() (T, error) {
	if r.slot.released.Load() {
		var zero T
		return zero, errors.UseAfterDispose(errors.PhaseRoot, "Rooted.Get")
	}
	return r.slot.read(), nil
}

// MustGet is Get for callers that own the handle's lifetime and treat a
// disposed handle as a bug.
func (r *Rooted[T]) MustGet() T {
	v, err := r.Get()
	if err != nil {
		panic(err)
	}
	return v
}

// Set replaces the rooted payload.
func (r *Rooted[T]) Set(v T) error {
	if r.slot.released.Load() {
		return errors.UseAfterDispose(errors.PhaseRoot, "Rooted.Set")
	}
	r.slot.write(v)
	return nil
}

// Dispose removes the root. Calling it again does nothing. The owning
// Context must still be alive, which holds whenever Dispose runs before
// Context.Dispose; afterwards the root is already gone.
func (r *Rooted[T]) Dispose() {
	r.slot.release("dispose")
}

// Disposed reports whether the root has been removed.
func (r *Rooted[T]) Disposed() bool {
	return r.slot.released.Load()
}

// AsHandle returns the address of the rooted slot, valid as an in/out
// handle for native calls until the next Dispose. It is nil once
// disposed.
func (r *Rooted[T]) AsHandle() *T {
	if r.slot.released.Load() {
		return nil
	}
	return r.slot.cell
}

// AsValue converts the payload to a Value. The result is only safe to use
// while r stays rooted.
func (r *Rooted[T]) AsValue() (Value, error) {
	v, err := r.Get()
	if err != nil {
		return core.Undefined, err
	}
	return toValue(v), nil
}

// ContextPtr returns the native context the root is registered against.
func (r *Rooted[T]) ContextPtr() ContextPtr {
	return r.slot.cx
}

// FinalizeOutcome is what happened when the Go collector finalized an
// undisposed Rooted.
type FinalizeOutcome uint8

const (
	// Deregistered means the root removal was handed to the owning
	// Context, which runs it at its next operation or at disposal.
	Deregistered FinalizeOutcome = iota
	// SkippedLeak means liveness of the owning Context could not be
	// proven, so the root was left registered.
	SkippedLeak
)

func (o FinalizeOutcome) String() string {
	if o == Deregistered {
		return "deregistered"
	}
	return "skipped_leak"
}

func finalizeSlot[T Rootable](s *slot[T]) {
	tryFinalize(s)
}

// tryFinalize removes the root of an unreachable Rooted only when the
// handle has an owning Context, that Context is still reachable, and it
// has not been disposed. Finalizers run on the cleanup goroutine, so the
// removal itself is queued on the Context.
func tryFinalize[T Rootable](s *slot[T]) FinalizeOutcome {
	if !s.hasOwner {
		return s.skip("no owning context")
	}
	ctx := s.owner.Value()
	if ctx == nil {
		return s.skip("owning context collected")
	}
	if !ctx.queueRelease(s) {
		return s.skip("owning context disposed")
	}
	return Deregistered
}

func (s *slot[T]) skip(reason string) FinalizeOutcome {
	if !s.released.Load() {
		Logger().Debug("root leaked at finalization",
			zap.String("kind", s.kind.name),
			zap.Uintptr("cx", uintptr(s.cx)),
			zap.String("reason", reason))
		emit(s.observer, Event{
			Type:    EventSkippedLeak,
			Context: uintptr(s.cx),
			Kind:    s.kind.name,
			Detail:  reason,
		})
	}
	return SkippedLeak
}
