package jsbridge

import (
	"fmt"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// ErrorReport describes an uncaught exception handed to a Reporter.
type ErrorReport = core.ErrorReport

// Reporter receives exceptions that escape EvaluateRaw while uncaught
// reporting is on.
type Reporter func(ctx *Context, report ErrorReport)

// Context is a native context: one global object, its scopes and the
// roots registered against it. A Context is driven by one goroutine at a
// time; only Dispose-state queries and finalizer hand-offs are safe from
// other goroutines.
type Context struct {
	rt     *Runtime
	native core.Native
	ptr    core.ContextPtr
	cfg    Config

	global   *Object
	scopes   []scope
	reporter Reporter

	mu       sync.Mutex
	disposed bool
	live     map[releaser]struct{}
	queued   []releaser
}

func newContext(rt *Runtime) (*Context, error) {
	n := rt.native
	ptr := n.NewContext(rt.ptr, rt.cfg.StackChunkSize)
	if ptr == 0 {
		return nil, errors.AllocationFailed(errors.PhaseContext, "NewContext")
	}

	c := &Context{
		rt:     rt,
		native: n,
		ptr:    ptr,
		cfg:    rt.cfg,
		live:   make(map[releaser]struct{}),
	}
	if err := registry.register(ptr, c); err != nil {
		n.DestroyContextNoGC(ptr)
		return nil, err
	}

	if !rt.cfg.ReportUncaught {
		n.SetContextOptions(ptr, n.GetContextOptions(ptr)|core.OptionDontReportUncaught)
	}
	if rt.cfg.GCZeal {
		n.SetGCZeal(ptr, true)
	}
	// The reporter holds the Context weakly so the native side never keeps
	// an abandoned Context reachable.
	wp := weak.Make(c)
	n.SetErrorReporter(ptr, func(_ core.ContextPtr, message string, report *core.ErrorReport) {
		if ctx := wp.Value(); ctx != nil {
			ctx.report(message, report)
		}
	})

	Logger().Debug("context created", zap.Uintptr("cx", uintptr(ptr)))
	emit(c.cfg.Observer, Event{Type: EventContextCreated, Context: uintptr(ptr)})
	return c, nil
}

// Ptr returns the native context handle.
func (c *Context) Ptr() ContextPtr {
	return c.ptr
}

// Runtime returns the runtime c was created from.
func (c *Context) Runtime() *Runtime {
	return c.rt
}

// IsDisposed reports whether Dispose has run. It is safe from any
// goroutine.
func (c *Context) IsDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}

// SetReporter installs the handler for uncaught exceptions and returns
// the previous one. With no handler they are logged.
func (c *Context) SetReporter(r Reporter) Reporter {
	old := c.reporter
	c.reporter = r
	return old
}

// SetReportUncaught turns reporting of exceptions escaping EvaluateRaw on
// or off. Off leaves them pending.
func (c *Context) SetReportUncaught(on bool) error {
	if err := c.enter("SetReportUncaught"); err != nil {
		return err
	}
	opts := c.native.GetContextOptions(c.ptr)
	if on {
		opts &^= core.OptionDontReportUncaught
	} else {
		opts |= core.OptionDontReportUncaught
	}
	c.native.SetContextOptions(c.ptr, opts)
	return nil
}

// SetGCZeal makes every allocating call collect first. Roots missing from
// host code then show up as stale references at once.
func (c *Context) SetGCZeal(on bool) error {
	if err := c.enter("SetGCZeal"); err != nil {
		return err
	}
	c.native.SetGCZeal(c.ptr, on)
	return nil
}

func (c *Context) report(message string, report *core.ErrorReport) {
	if c.reporter != nil && report != nil {
		c.reporter(c, *report)
		return
	}
	fields := []zap.Field{zap.Uintptr("cx", uintptr(c.ptr)), zap.String("message", message)}
	if report != nil {
		fields = append(fields, zap.String("file", report.Filename), zap.Int("line", report.Line))
	}
	Logger().Warn("uncaught exception", fields...)
}

// enter guards every operation: it rejects a disposed Context and runs
// root removals queued by finalizers.
func (c *Context) enter(op string) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return errors.New(errors.PhaseContext, errors.KindUseAfterDispose).
			Op(op).
			Context(uintptr(c.ptr)).
			Detail("context already disposed").
			Build()
	}
	q := c.queued
	c.queued = nil
	c.mu.Unlock()

	c.runQueued(q)
	return nil
}

func (c *Context) runQueued(q []releaser) {
	if len(q) == 0 {
		return
	}
	stats.queued.Add(-int64(len(q)))
	for _, r := range q {
		r.release("finalized")
	}
}

func (c *Context) track(r releaser) {
	c.mu.Lock()
	c.live[r] = struct{}{}
	c.mu.Unlock()
}

func (c *Context) untrack(r releaser) {
	c.mu.Lock()
	delete(c.live, r)
	c.mu.Unlock()
}

// queueRelease hands a finalized root to the owning goroutine. It fails
// once the Context is disposed.
func (c *Context) queueRelease(r releaser) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return false
	}
	c.queued = append(c.queued, r)
	stats.queued.Add(1)
	return true
}

// LiveRoots returns the number of roots registered through c and not yet
// removed.
func (c *Context) LiveRoots() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.live)
}

// QueuedReleases returns the number of finalized roots waiting for c's
// next operation.
func (c *Context) QueuedReleases() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queued)
}

// Dispose removes every root still registered through c, then destroys
// the native context. It fails while a Request or CompartmentEntry is
// still open. Calling it again does nothing.
func (c *Context) Dispose() error {
	if c.IsDisposed() {
		return nil
	}
	if len(c.scopes) > 0 {
		return errors.InvalidState(errors.PhaseContext, "Context.Dispose",
			fmt.Sprintf("%d scopes still open", len(c.scopes)))
	}

	c.mu.Lock()
	c.disposed = true
	queued := c.queued
	c.queued = nil
	live := make([]releaser, 0, len(c.live))
	for r := range c.live {
		live = append(live, r)
	}
	c.mu.Unlock()

	c.runQueued(queued)
	for _, r := range live {
		r.release("context disposed")
	}
	c.global = nil

	registry.unregister(c.ptr, c)
	c.native.SetErrorReporter(c.ptr, nil)
	c.native.DestroyContext(c.ptr)
	c.rt.contextClosed()

	Logger().Debug("context disposed",
		zap.Uintptr("cx", uintptr(c.ptr)),
		zap.Int("swept_roots", len(live)))
	emit(c.cfg.Observer, Event{
		Type:    EventContextDisposed,
		Context: uintptr(c.ptr),
		Detail:  fmt.Sprintf("%d roots swept", len(live)),
	})
	return nil
}

// GlobalObject returns the context's global object, creating it and its
// standard classes on first use.
func (c *Context) GlobalObject() (*Object, error) {
	if err := c.enter("GlobalObject"); err != nil {
		return nil, err
	}
	if c.global != nil {
		return c.global, nil
	}

	ptr := c.native.NewGlobalObject(c.ptr)
	if ptr == 0 {
		return nil, errors.AllocationFailed(errors.PhaseContext, "NewGlobalObject")
	}
	g, err := c.wrapObject(ptr)
	if err != nil {
		return nil, err
	}
	if !c.native.InitStandardClasses(c.ptr, g.root.AsHandle()) {
		g.Dispose()
		return nil, errors.OperationFailed(errors.PhaseContext, "InitStandardClasses", uintptr(c.ptr))
	}
	c.global = g
	return g, nil
}

// GC runs a full collection.
func (c *Context) GC() error {
	if err := c.enter("GC"); err != nil {
		return err
	}
	c.native.GC(c.ptr)
	return nil
}

// MaybeGC collects if enough has been allocated since the last collection.
func (c *Context) MaybeGC() error {
	if err := c.enter("MaybeGC"); err != nil {
		return err
	}
	c.native.MaybeGC(c.ptr)
	return nil
}

// RunJobs drains the engine's job queue (promise reactions) and returns
// how many jobs ran, when the engine reports it.
func (c *Context) RunJobs() (int, error) {
	if err := c.enter("RunJobs"); err != nil {
		return 0, err
	}
	return c.native.RunJobs(c.ptr), nil
}

// ToString converts v with the engine's String() conversion.
func (c *Context) ToString(v Value) (string, error) {
	if err := c.enter("ToString"); err != nil {
		return "", err
	}
	return c.stringOf(v, "ToString")
}

// stringOf converts v without re-entering c. A conversion that throws
// leaves nothing pending.
func (c *Context) stringOf(v Value, op string) (string, error) {
	if s, ok := v.AsString(); ok {
		return c.chars(s, op)
	}
	var str core.StringPtr
	c.quietly(func() bool {
		str = c.native.ValueToString(c.ptr, &v)
		return str != 0
	})
	if str == 0 {
		c.native.ClearPendingException(c.ptr)
		return "", errors.OperationFailed(errors.PhaseMarshal, op, uintptr(c.ptr))
	}
	return c.chars(str, op)
}

func (c *Context) chars(s core.StringPtr, op string) (string, error) {
	text, ok := c.native.GetStringChars(c.ptr, s)
	if !ok {
		c.native.ClearPendingException(c.ptr)
		return "", errors.New(errors.PhaseMarshal, errors.KindStale).
			Op(op).
			Context(uintptr(c.ptr)).
			Detail("string is no longer live").
			Build()
	}
	return text, nil
}

// quietly runs fn with uncaught reporting off, so a failure leaves the
// exception pending for the caller.
func (c *Context) quietly(fn func() bool) bool {
	old := c.native.SetContextOptions(c.ptr, c.native.GetContextOptions(c.ptr)|core.OptionDontReportUncaught)
	defer c.native.SetContextOptions(c.ptr, old)
	return fn()
}

// failure turns the outcome of a failed native call into an error. A
// pending exception becomes an EvaluationError and is cleared.
func (c *Context) failure(phase errors.Phase, op string) error {
	if c.native.IsExceptionPending(c.ptr) {
		if e := c.takeException(); e != nil {
			return e
		}
	}
	return errors.OperationFailed(phase, op, uintptr(c.ptr))
}

// takeException describes and clears the pending exception.
func (c *Context) takeException() *EvaluationError {
	var exc core.Value
	if !c.native.GetPendingException(c.ptr, &exc) {
		return nil
	}
	root, err := newRooted(c.native, c.ptr, c, exc)
	c.native.ClearPendingException(c.ptr)
	if err != nil {
		return &EvaluationError{Message: "exception could not be rooted: " + err.Error()}
	}
	defer root.Dispose()
	return c.describe(root, 0)
}
