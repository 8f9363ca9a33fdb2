package jsbridge

import (
	"runtime"
	"sync/atomic"
	"weak"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// slot is a heap cell registered with the native root table. The Go
// collector never moves heap objects and the native root table holds the
// cell's address, so the address stays valid until release.
type slot[T Rootable] struct {
	cell     *T
	native   core.Native
	cx       core.ContextPtr
	kind     rootKind[T]
	owner    weak.Pointer[Context]
	hasOwner bool
	observer Observer
	cleanup  runtime.Cleanup
	released atomic.Bool
}

// releaser is the type-erased view of a slot a Context keeps.
type releaser interface {
	release(reason string) bool
}

// acquire allocates a cell holding initial and registers it. On failure
// nothing stays registered.
func acquire[T Rootable](n core.Native, cx core.ContextPtr, owner *Context, initial T) (*slot[T], error) {
	s := &slot[T]{
		cell:   new(T),
		native: n,
		cx:     cx,
		kind:   kindOf[T](),
	}
	*s.cell = initial
	if owner != nil {
		s.owner = weak.Make(owner)
		s.hasOwner = true
		s.observer = owner.cfg.Observer
	}

	if !s.kind.add(n, cx, s.cell) {
		return nil, errors.New(errors.PhaseRoot, errors.KindRootRegistration).
			Op("acquire").
			Context(uintptr(cx)).
			Detail("native runtime refused to register a %s root", s.kind.name).
			Build()
	}
	emit(s.observer, Event{Type: EventRootAdded, Context: uintptr(cx), Kind: s.kind.name})
	return s, nil
}

func (s *slot[T]) read() T   { return *s.cell }
func (s *slot[T]) write(v T) { *s.cell = v }

// release removes the root. Only the first call reaches the native side;
// it reports whether this call did. A failed removal is logged, never
// returned.
func (s *slot[T]) release(reason string) bool {
	if !s.released.CompareAndSwap(false, true) {
		return false
	}
	s.cleanup.Stop()
	if ctx := s.owner.Value(); ctx != nil {
		ctx.untrack(s)
	}

	ev := Event{Context: uintptr(s.cx), Kind: s.kind.name, Detail: reason}
	if s.kind.remove(s.native, s.cx, s.cell) {
		ev.Type = EventRootRemoved
	} else {
		ev.Type = EventRootRemoveFailed
		Logger().Warn("root removal failed",
			zap.String("kind", s.kind.name),
			zap.Uintptr("cx", uintptr(s.cx)),
			zap.String("reason", reason))
	}
	emit(s.observer, ev)
	return true
}
