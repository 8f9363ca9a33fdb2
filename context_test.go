package jsbridge

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cryguy/jsbridge/internal/core"
)

// countingNative counts root removals reaching the engine.
type countingNative struct {
	core.Native
	valueRemoves  atomic.Int64
	objectRemoves atomic.Int64
}

func (n *countingNative) RemoveValueRoot(cx core.ContextPtr, p *core.Value) bool {
	n.valueRemoves.Add(1)
	return n.Native.RemoveValueRoot(cx, p)
}

func (n *countingNative) RemoveObjectRoot(cx core.ContextPtr, p *core.ObjectPtr) bool {
	n.objectRemoves.Add(1)
	return n.Native.RemoveObjectRoot(cx, p)
}

// refusingNative lets a test make value root registration or removal
// fail the way an exhausted root table would.
type refusingNative struct {
	core.Native
	refuseAdd    atomic.Bool
	refuseRemove atomic.Bool
}

func (n *refusingNative) AddValueRoot(cx core.ContextPtr, p *core.Value) bool {
	if n.refuseAdd.Load() {
		return false
	}
	return n.Native.AddValueRoot(cx, p)
}

func (n *refusingNative) RemoveValueRoot(cx core.ContextPtr, p *core.Value) bool {
	if n.refuseRemove.Load() {
		return false
	}
	return n.Native.RemoveValueRoot(cx, p)
}

func newTestContextWith(t *testing.T, n core.Native, mutate func(*Config)) *Context {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	rt, err := newRuntime(n, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	t.Cleanup(func() {
		if err := ctx.Dispose(); err != nil {
			t.Errorf("Context.Dispose: %v", err)
		}
		if err := rt.Dispose(); err != nil {
			t.Errorf("Runtime.Dispose: %v", err)
		}
	})
	return ctx
}

func newTestContext(t *testing.T, mutate func(*Config)) *Context {
	t.Helper()
	return newTestContextWith(t, defaultNative(), mutate)
}

// eval evaluates src and fails the test on any error.
func eval(t *testing.T, ctx *Context, src string) *Rooted[Value] {
	t.Helper()
	v, evalErr, err := ctx.Evaluate(nil, src, EvalOptions{Filename: "test.js"})
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", src, err)
	}
	if evalErr != nil {
		t.Fatalf("Evaluate(%q) threw: %v", src, evalErr)
	}
	t.Cleanup(v.Dispose)
	return v
}

func TestNewRuntimeTooSmall(t *testing.T) {
	_, err := NewRuntime(1024)
	if !errors.Is(err, ErrAllocationFailed) {
		t.Fatalf("NewRuntime(1024) error = %v, want ErrAllocationFailed", err)
	}
}

func TestRuntimeDisposeWithLiveContexts(t *testing.T) {
	rt, err := NewRuntime(8 << 20)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if rt.Contexts() != 1 {
		t.Errorf("Contexts = %d, want 1", rt.Contexts())
	}
	if err := rt.Dispose(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Dispose with a live context = %v, want ErrInvalidState", err)
	}

	if err := ctx.Dispose(); err != nil {
		t.Fatalf("Context.Dispose: %v", err)
	}
	if err := ctx.Dispose(); err != nil {
		t.Errorf("second Context.Dispose: %v", err)
	}
	if err := rt.Dispose(); err != nil {
		t.Fatalf("Runtime.Dispose: %v", err)
	}
	if err := rt.Dispose(); err != nil {
		t.Errorf("second Runtime.Dispose: %v", err)
	}
	if _, err := rt.NewContext(); !errors.Is(err, ErrUseAfterDispose) {
		t.Errorf("NewContext on disposed runtime = %v, want ErrUseAfterDispose", err)
	}
}

func TestContextUseAfterDispose(t *testing.T) {
	rt, err := NewRuntime(8 << 20)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Dispose()
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	if err := ctx.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}

	ops := map[string]func() error{
		"GlobalObject": func() error { _, err := ctx.GlobalObject(); return err },
		"NewObject":    func() error { _, err := ctx.NewObject(); return err },
		"Request":      func() error { _, err := ctx.Request(); return err },
		"GC":           ctx.GC,
		"Evaluate": func() error {
			_, _, err := ctx.Evaluate(nil, "1", EvalOptions{})
			return err
		},
		"NewRooted": func() error { _, err := NewRooted(ctx, Int32Value(1)); return err },
	}
	for name, op := range ops {
		t.Run(name, func(t *testing.T) {
			if err := op(); !errors.Is(err, ErrUseAfterDispose) {
				t.Errorf("got %v, want ErrUseAfterDispose", err)
			}
		})
	}
}

func TestContextDisposeSweepsRoots(t *testing.T) {
	counting := &countingNative{Native: defaultNative()}
	cfg := DefaultConfig()
	rt, err := newRuntime(counting, cfg)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Dispose()
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}

	a, _ := NewRooted(ctx, Int32Value(1))
	b, _ := NewRooted(ctx, Int32Value(2))
	if ctx.LiveRoots() != 2 {
		t.Fatalf("LiveRoots = %d, want 2", ctx.LiveRoots())
	}
	if err := ctx.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if !a.Disposed() || !b.Disposed() {
		t.Error("roots not disposed with their context")
	}
	if got := counting.valueRemoves.Load(); got != 2 {
		t.Errorf("value removes = %d, want 2", got)
	}

	// removal already happened; disposing the handles again must not
	// reach the engine
	a.Dispose()
	b.Dispose()
	if got := counting.valueRemoves.Load(); got != 2 {
		t.Errorf("value removes after handle Dispose = %d, want 2", got)
	}
}

func TestRegistry(t *testing.T) {
	var r contextRegistry
	ptr := ContextPtr(0x7000_0000_0001)
	a, b := &Context{}, &Context{}

	if got := r.lookup(ptr); got != nil {
		t.Fatal("lookup on empty registry returned a context")
	}
	if err := r.register(ptr, a); err != nil {
		t.Fatalf("register: %v", err)
	}
	if got := r.lookup(ptr); got != a {
		t.Errorf("lookup = %p, want %p", got, a)
	}
	if err := r.register(ptr, b); !errors.Is(err, ErrDuplicateContext) {
		t.Errorf("second register = %v, want ErrDuplicateContext", err)
	}
	if got := r.lookup(ptr); got != a {
		t.Error("duplicate register replaced the entry")
	}
	if r.unregister(ptr, b) {
		t.Error("unregister with the wrong context succeeded")
	}
	if !r.unregister(ptr, a) {
		t.Error("unregister failed")
	}
	if got := r.lookup(ptr); got != nil {
		t.Error("lookup after unregister returned a context")
	}
	if r.unregister(ptr, a) {
		t.Error("second unregister succeeded")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	var r contextRegistry
	const workers = 16
	const rounds = 200

	for round := 0; round < rounds; round++ {
		ptr := ContextPtr(0x7100_0000_0000 + round)
		var wins atomic.Int32
		var winner atomic.Pointer[Context]
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := &Context{}
				if r.register(ptr, c) == nil {
					wins.Add(1)
					winner.Store(c)
				}
			}()
		}
		wg.Wait()
		if wins.Load() != 1 {
			t.Fatalf("round %d: %d registrations succeeded", round, wins.Load())
		}

		c := winner.Load()
		wg.Add(2)
		go func() {
			defer wg.Done()
			if !r.unregister(ptr, c) {
				t.Errorf("round %d: unregister failed", round)
			}
			if r.lookup(ptr) != nil {
				t.Errorf("round %d: entry visible after unregister", round)
			}
		}()
		go func() {
			defer wg.Done()
			if got := r.lookup(ptr); got != nil && got != c {
				t.Errorf("round %d: lookup found a different context", round)
			}
		}()
		wg.Wait()
	}
}

func TestFromPointer(t *testing.T) {
	ctx := newTestContext(t, nil)
	if got := FromPointer(ctx.Ptr()); got != ctx {
		t.Errorf("FromPointer = %p, want %p", got, ctx)
	}
	if got := FromPointer(ContextPtr(0x7200_0000_0000)); got != nil {
		t.Error("FromPointer of an unknown handle returned a context")
	}
}

func TestFromPointerAfterDispose(t *testing.T) {
	rt, err := NewRuntime(8 << 20)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Dispose()
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	ptr := ctx.Ptr()
	if err := ctx.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if FromPointer(ptr) != nil {
		t.Error("FromPointer found a disposed context")
	}
}

func TestScopes(t *testing.T) {
	ctx := newTestContext(t, nil)
	g, err := ctx.GlobalObject()
	if err != nil {
		t.Fatalf("GlobalObject: %v", err)
	}

	req, err := ctx.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	comp, err := ctx.EnterCompartment(g)
	if err != nil {
		t.Fatalf("EnterCompartment: %v", err)
	}
	if comp.Target() != g {
		t.Error("Target is not the entered object")
	}

	if err := ctx.Dispose(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Dispose with open scopes = %v, want ErrInvalidState", err)
	}

	if err := req.Close(); !errors.Is(err, ErrScopeOrder) {
		t.Fatalf("closing the outer scope first = %v, want ErrScopeOrder", err)
	}
	if err := comp.Close(); err != nil {
		t.Fatalf("CompartmentEntry.Close: %v", err)
	}
	if err := comp.Close(); err != nil {
		t.Errorf("second CompartmentEntry.Close: %v", err)
	}
	if err := req.Close(); err != nil {
		t.Fatalf("Request.Close: %v", err)
	}
	if len(ctx.scopes) != 0 {
		t.Errorf("%d scopes left open", len(ctx.scopes))
	}
}

func TestNestedRequests(t *testing.T) {
	ctx := newTestContext(t, nil)
	outer, err := ctx.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	inner, err := ctx.Request()
	if err != nil {
		t.Fatalf("nested Request: %v", err)
	}
	eval(t, ctx, "1 + 1")
	if err := inner.Close(); err != nil {
		t.Fatalf("inner Close: %v", err)
	}
	if err := outer.Close(); err != nil {
		t.Fatalf("outer Close: %v", err)
	}
}

func TestScopeViolationPanicsInDebug(t *testing.T) {
	ctx := newTestContext(t, func(c *Config) { c.DebugScopes = true })
	outer, err := ctx.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	inner, err := ctx.Request()
	if err != nil {
		t.Fatalf("Request: %v", err)
	}

	func() {
		defer func() {
			p := recover()
			if p == nil {
				t.Fatal("out-of-order Close did not panic")
			}
			if err, ok := p.(error); !ok || !errors.Is(err, ErrScopeOrder) {
				t.Errorf("panic value = %v, want a scope order error", p)
			}
		}()
		outer.Close()
	}()

	if err := inner.Close(); err != nil {
		t.Fatalf("inner Close: %v", err)
	}
	if err := outer.Close(); err != nil {
		t.Fatalf("outer Close: %v", err)
	}
}

func TestGlobalObjectIsShared(t *testing.T) {
	ctx := newTestContext(t, nil)
	a, err := ctx.GlobalObject()
	if err != nil {
		t.Fatalf("GlobalObject: %v", err)
	}
	b, err := ctx.GlobalObject()
	if err != nil {
		t.Fatalf("GlobalObject: %v", err)
	}
	if a != b {
		t.Error("GlobalObject returned a different wrapper")
	}
	if err := a.Set("marker", Int32Value(5)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v := eval(t, ctx, "marker")
	if got := v.MustGet(); got != Int32Value(5) {
		t.Errorf("marker = %v, want 5", got)
	}
}

func TestContextsIsolated(t *testing.T) {
	a := newTestContext(t, nil)
	b := newTestContext(t, nil)

	ra := eval(t, a, "var x = 'from a'; ({tag: 'a'})")
	rb := eval(t, b, "typeof x")
	s, err := b.ToString(rb.MustGet())
	if err != nil {
		t.Fatalf("ToString: %v", err)
	}
	if s != "undefined" {
		t.Errorf("x leaked into the second context: typeof x = %q", s)
	}

	before := b.LiveRoots()
	ra.Dispose()
	if b.LiveRoots() != before {
		t.Error("disposing a root in one context changed the other's roots")
	}
}

func TestContextsOnConcurrentGoroutines(t *testing.T) {
	rt, err := NewRuntime(8 << 20)
	if err != nil {
		t.Fatalf("NewRuntime: %v", err)
	}
	defer rt.Dispose()

	const rounds = 50
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				ctx, err := rt.NewContext()
				if err != nil {
					t.Errorf("NewContext: %v", err)
					return
				}
				ptr := ctx.Ptr()
				if FromPointer(ptr) != ctx {
					t.Errorf("FromPointer(%#x) did not find its context", ptr)
				}
				if err := ctx.Dispose(); err != nil {
					t.Errorf("Dispose: %v", err)
					return
				}
				if got := FromPointer(ptr); got == ctx {
					t.Errorf("FromPointer(%#x) still finds a disposed context", ptr)
				}
			}
		}()
	}
	wg.Wait()
	if n := rt.Contexts(); n != 0 {
		t.Errorf("Contexts = %d after all were disposed", n)
	}
}
