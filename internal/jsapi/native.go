// Package jsapi is the native side of the bridge: it implements
// core.Native on top of an engine backend realm, keeping SpiderMonkey-style
// rooting semantics. GC things live in a per-context cell table inside the
// realm; a cell survives a collection only when it is reachable from a
// registered root, the pending exception, the entered compartment stack,
// a native call frame or the inputs of the operation in progress.
package jsapi

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/rootset"
)

// Options tunes a Native.
type Options struct {
	MaxRoots    int // root table capacity per context, 0 for rootset.DefaultMaxRoots
	GCThreshold int // cells born before MaybeGC collects, 0 for DefaultGCThreshold
}

const (
	// DefaultGCThreshold is the allocation count that makes MaybeGC collect.
	DefaultGCThreshold = 4096

	// MinRuntimeBytes is the smallest heap NewRuntime accepts.
	MinRuntimeBytes = 64 << 10

	maxContextIndex = 1<<15 - 1
)

// Native implements core.Native over an engine backend.
type Native struct {
	backend core.EngineBackend
	opts    Options

	handles atomic.Uint64

	mu       sync.Mutex
	runtimes map[core.RuntimePtr]*runtimeState
	contexts map[core.ContextPtr]*contextState
	cxIndex  uint64
}

var _ core.Native = (*Native)(nil)

// New creates a Native driving realms created by backend.
func New(backend core.EngineBackend, opts Options) *Native {
	if opts.GCThreshold <= 0 {
		opts.GCThreshold = DefaultGCThreshold
	}
	return &Native{
		backend:  backend,
		opts:     opts,
		runtimes: make(map[core.RuntimePtr]*runtimeState),
		contexts: make(map[core.ContextPtr]*contextState),
	}
}

// Backend returns the engine backend name.
func (n *Native) Backend() string {
	return n.backend.Name()
}

type runtimeState struct {
	ptr      core.RuntimePtr
	maxBytes uint32
	contexts int
}

type compartmentFrame struct {
	target core.ObjectPtr
	old    core.ObjectPtr
}

// contextState is owned by the goroutine driving the context. Only the
// Native tables are shared.
type contextState struct {
	ptr        core.ContextPtr
	rt         *runtimeState
	realm      core.JSRuntime
	roots      *rootset.Set
	stackChunk int
	threshold  int

	opts     core.ContextOptions
	reporter core.ErrorReporter
	zeal     bool

	requests    int
	global      core.ObjectPtr
	compartment core.ObjectPtr
	entered     []compartmentFrame

	pending    core.Value
	hasPending bool

	frames   []*core.CallArgs
	inflight [][]uint64

	funcs  map[int]core.NativeFunc
	nextFn int
}

func (n *Native) nextHandle() uintptr {
	// 16-byte aligned, like the heap addresses the engine hands out.
	return uintptr(n.handles.Add(1)) << 4
}

func (n *Native) runtime(rt core.RuntimePtr) *runtimeState {
	n.mu.Lock()
	r := n.runtimes[rt]
	n.mu.Unlock()
	if r == nil {
		panic(fmt.Sprintf("jsapi: runtime %#x is not live", uintptr(rt)))
	}
	return r
}

// context resolves cx. Using a destroyed context is fatal in the engine
// this layer stands in for, so it panics.
func (n *Native) context(cx core.ContextPtr) *contextState {
	n.mu.Lock()
	c := n.contexts[cx]
	n.mu.Unlock()
	if c == nil {
		panic(fmt.Sprintf("jsapi: context %#x used after destruction", uintptr(cx)))
	}
	return c
}

// --- runtime and context lifetime ---

func (n *Native) NewRuntime(maxBytes uint32) core.RuntimePtr {
	if maxBytes < MinRuntimeBytes {
		return 0
	}
	r := &runtimeState{ptr: core.RuntimePtr(n.nextHandle()), maxBytes: maxBytes}
	n.mu.Lock()
	n.runtimes[r.ptr] = r
	n.mu.Unlock()
	return r.ptr
}

func (n *Native) DestroyRuntime(rt core.RuntimePtr) {
	n.mu.Lock()
	defer n.mu.Unlock()
	r := n.runtimes[rt]
	if r == nil {
		panic(fmt.Sprintf("jsapi: DestroyRuntime on dead runtime %#x", uintptr(rt)))
	}
	if r.contexts > 0 {
		panic(fmt.Sprintf("jsapi: DestroyRuntime with %d live contexts", r.contexts))
	}
	delete(n.runtimes, rt)
}

func (n *Native) NewContext(rt core.RuntimePtr, stackChunkSize int) core.ContextPtr {
	r := n.runtime(rt)

	realm, err := n.backend.NewRealm(core.RealmConfig{MemoryLimit: uint64(r.maxBytes)})
	if err != nil {
		return 0
	}

	c := &contextState{
		ptr:        core.ContextPtr(n.nextHandle()),
		rt:         r,
		realm:      realm,
		roots:      rootset.New(n.opts.MaxRoots),
		stackChunk: stackChunkSize,
		threshold:  n.opts.GCThreshold,
		pending:    core.Undefined,
		funcs:      make(map[int]core.NativeFunc),
	}

	if err := realm.Bind("__jsb_call", n.trampoline(c)); err != nil {
		realm.Close()
		return 0
	}

	n.mu.Lock()
	n.cxIndex = n.cxIndex%maxContextIndex + 1
	base := n.cxIndex << 32
	n.mu.Unlock()

	if err := realm.Eval(fmt.Sprintf(preludeJS, base)); err != nil {
		realm.Close()
		return 0
	}

	n.mu.Lock()
	n.contexts[c.ptr] = c
	r.contexts++
	n.mu.Unlock()
	return c.ptr
}

func (n *Native) DestroyContext(cx core.ContextPtr) {
	c := n.context(cx)
	c.collect()
	n.destroy(c)
}

func (n *Native) DestroyContextNoGC(cx core.ContextPtr) {
	n.destroy(n.context(cx))
}

func (n *Native) destroy(c *contextState) {
	n.mu.Lock()
	delete(n.contexts, c.ptr)
	c.rt.contexts--
	n.mu.Unlock()

	c.roots.Reset()
	c.realm.Close()
}

func (n *Native) GetContextOptions(cx core.ContextPtr) core.ContextOptions {
	return n.context(cx).opts
}

func (n *Native) SetContextOptions(cx core.ContextPtr, opts core.ContextOptions) core.ContextOptions {
	c := n.context(cx)
	old := c.opts
	c.opts = opts
	return old
}

func (n *Native) SetErrorReporter(cx core.ContextPtr, reporter core.ErrorReporter) core.ErrorReporter {
	c := n.context(cx)
	old := c.reporter
	c.reporter = reporter
	return old
}

func (n *Native) SetGCZeal(cx core.ContextPtr, on bool) {
	n.context(cx).zeal = on
}

// --- scopes and globals ---

func (n *Native) BeginRequest(cx core.ContextPtr) {
	n.context(cx).requests++
}

func (n *Native) EndRequest(cx core.ContextPtr) {
	c := n.context(cx)
	if c.requests == 0 {
		panic("jsapi: EndRequest without matching BeginRequest")
	}
	c.requests--
	if c.requests == 0 {
		c.maybeCollect()
	}
}

// NewGlobalObject returns the realm's global object. A context owns a
// single realm, so a second call fails.
func (n *Native) NewGlobalObject(cx core.ContextPtr) core.ObjectPtr {
	c := n.context(cx)
	if c.global != 0 {
		return 0
	}
	c.beforeAlloc()
	v, _, ok := c.call("global")
	if !ok {
		return 0
	}
	obj, _ := v.AsObject()
	c.global = obj
	return obj
}

func (n *Native) InitStandardClasses(cx core.ContextPtr, global *core.ObjectPtr) bool {
	c := n.context(cx)
	return global != nil && *global != 0 && *global == c.global
}

func (n *Native) EnterCompartment(cx core.ContextPtr, target core.ObjectPtr) core.CompartmentPtr {
	c := n.context(cx)
	if target == 0 || !c.roots.Live(uint64(target)) {
		panic(fmt.Sprintf("jsapi: EnterCompartment on dead object %#x", uintptr(target)))
	}
	old := c.compartment
	c.entered = append(c.entered, compartmentFrame{target: target, old: old})
	c.compartment = target
	return core.CompartmentPtr(old)
}

func (n *Native) LeaveCompartment(cx core.ContextPtr, old core.CompartmentPtr) {
	c := n.context(cx)
	if len(c.entered) == 0 {
		panic("jsapi: LeaveCompartment with empty compartment stack")
	}
	top := c.entered[len(c.entered)-1]
	if core.CompartmentPtr(top.old) != old {
		panic(fmt.Sprintf("jsapi: LeaveCompartment(%#x) does not match entry (%#x)", uintptr(old), uintptr(top.old)))
	}
	c.entered = c.entered[:len(c.entered)-1]
	c.compartment = top.old
}

// --- collection ---

func (n *Native) GC(cx core.ContextPtr) {
	n.context(cx).collect()
}

func (n *Native) MaybeGC(cx core.ContextPtr) {
	n.context(cx).maybeCollect()
}

func (c *contextState) maybeCollect() {
	if c.roots.Allocs() >= c.threshold {
		c.collect()
	}
}

// beforeAlloc runs a full collection first when GC zeal is on.
func (c *contextState) beforeAlloc() {
	if c.zeal {
		c.collect()
	}
}

func (c *contextState) collect() {
	freed := c.roots.Collect(c.marks())
	if len(freed) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("__jsb.free([")
	for i, id := range freed {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatUint(id, 10))
	}
	b.WriteString("])")
	_ = c.realm.Eval(b.String())
}

// marks lists the cells the engine itself keeps alive.
func (c *contextState) marks() []uint64 {
	var ids []uint64
	add := func(v core.Value) {
		if id, ok := rootset.ValueCell(v); ok {
			ids = append(ids, id)
		}
	}
	if c.global != 0 {
		ids = append(ids, uint64(c.global))
	}
	if c.hasPending {
		add(c.pending)
	}
	for _, e := range c.entered {
		ids = append(ids, uint64(e.target))
	}
	for _, f := range c.frames {
		add(f.This)
		add(f.Result)
		for _, a := range f.Args {
			add(a)
		}
	}
	for _, in := range c.inflight {
		ids = append(ids, in...)
	}
	return ids
}

// pin keeps the inputs of the operation in progress alive across any
// collection that runs before it returns. The result goes to unpin.
func (c *contextState) pin(vals ...core.Value) int {
	var ids []uint64
	for _, v := range vals {
		if id, ok := rootset.ValueCell(v); ok {
			ids = append(ids, id)
		}
	}
	c.inflight = append(c.inflight, ids)
	return len(c.inflight) - 1
}

func (c *contextState) pinCell(id uint64) int {
	c.inflight = append(c.inflight, []uint64{id})
	return len(c.inflight) - 1
}

func (c *contextState) unpin(mark int) {
	c.inflight = c.inflight[:mark]
}

// --- root registration ---

func (n *Native) AddObjectRoot(cx core.ContextPtr, slot *core.ObjectPtr) bool {
	return n.context(cx).roots.AddRoot(ptrOf(slot), rootset.KindObject, "")
}

func (n *Native) RemoveObjectRoot(cx core.ContextPtr, slot *core.ObjectPtr) bool {
	return n.context(cx).roots.RemoveRoot(ptrOf(slot))
}

func (n *Native) AddStringRoot(cx core.ContextPtr, slot *core.StringPtr) bool {
	return n.context(cx).roots.AddRoot(ptrOf(slot), rootset.KindString, "")
}

func (n *Native) RemoveStringRoot(cx core.ContextPtr, slot *core.StringPtr) bool {
	return n.context(cx).roots.RemoveRoot(ptrOf(slot))
}

func (n *Native) AddNamedScriptRoot(cx core.ContextPtr, slot *core.ScriptPtr, name string) bool {
	return n.context(cx).roots.AddRoot(ptrOf(slot), rootset.KindScript, name)
}

func (n *Native) RemoveScriptRoot(cx core.ContextPtr, slot *core.ScriptPtr) bool {
	return n.context(cx).roots.RemoveRoot(ptrOf(slot))
}

func (n *Native) AddValueRoot(cx core.ContextPtr, slot *core.Value) bool {
	return n.context(cx).roots.AddRoot(ptrOf(slot), rootset.KindValue, "")
}

func (n *Native) RemoveValueRoot(cx core.ContextPtr, slot *core.Value) bool {
	return n.context(cx).roots.RemoveRoot(ptrOf(slot))
}

// RootCount reports the number of registered roots of cx.
func (n *Native) RootCount(cx core.ContextPtr) int {
	return n.context(cx).roots.Roots()
}

// IsLive reports whether the GC thing carried by v survived every
// collection so far. Primitives are always live.
func (n *Native) IsLive(cx core.ContextPtr, v core.Value) bool {
	id, ok := rootset.ValueCell(v)
	if !ok {
		return true
	}
	return n.context(cx).roots.Live(id)
}
