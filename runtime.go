package jsbridge

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge/errors"
	"github.com/cryguy/jsbridge/internal/core"
)

// Runtime owns a native runtime: a heap limit shared by the contexts
// created from it. It must outlive every one of them.
type Runtime struct {
	native core.Native
	ptr    core.RuntimePtr
	cfg    Config

	mu       sync.Mutex
	contexts int
	disposed bool
}

// NewRuntime creates a runtime with the default configuration and the
// given heap limit.
func NewRuntime(maxBytes uint32) (*Runtime, error) {
	cfg := DefaultConfig()
	cfg.RuntimeMaxBytes = maxBytes
	return NewRuntimeWithConfig(cfg)
}

// NewRuntimeWithConfig creates a runtime whose contexts use cfg.
func NewRuntimeWithConfig(cfg Config) (*Runtime, error) {
	return newRuntime(defaultNative(), cfg)
}

func newRuntime(n core.Native, cfg Config) (*Runtime, error) {
	if cfg.StackChunkSize <= 0 {
		cfg.StackChunkSize = DefaultConfig().StackChunkSize
	}
	ptr := n.NewRuntime(cfg.RuntimeMaxBytes)
	if ptr == 0 {
		return nil, errors.New(errors.PhaseRuntime, errors.KindAllocation).
			Op("NewRuntime").
			Detail("native runtime of %d bytes could not be created", cfg.RuntimeMaxBytes).
			Build()
	}
	Logger().Debug("runtime created",
		zap.Uintptr("rt", uintptr(ptr)),
		zap.Uint32("max_bytes", cfg.RuntimeMaxBytes))
	return &Runtime{native: n, ptr: ptr, cfg: cfg}, nil
}

// Config returns the configuration the runtime hands to its contexts.
func (rt *Runtime) Config() Config {
	return rt.cfg
}

// Contexts returns the number of live contexts created from rt.
func (rt *Runtime) Contexts() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.contexts
}

// Dispose destroys the native runtime. It fails while contexts created
// from rt are still alive. Calling it again does nothing.
func (rt *Runtime) Dispose() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.disposed {
		return nil
	}
	if rt.contexts > 0 {
		return errors.InvalidState(errors.PhaseRuntime, "Runtime.Dispose",
			fmt.Sprintf("%d contexts still alive", rt.contexts))
	}
	rt.disposed = true
	rt.native.DestroyRuntime(rt.ptr)
	Logger().Debug("runtime disposed", zap.Uintptr("rt", uintptr(rt.ptr)))
	return nil
}

// NewContext creates a context in rt and registers it so native
// callbacks can find it with FromPointer.
func (rt *Runtime) NewContext() (*Context, error) {
	rt.mu.Lock()
	if rt.disposed {
		rt.mu.Unlock()
		return nil, errors.UseAfterDispose(errors.PhaseRuntime, "Runtime.NewContext")
	}
	rt.contexts++
	rt.mu.Unlock()

	ctx, err := newContext(rt)
	if err != nil {
		rt.contextClosed()
		return nil, err
	}
	return ctx, nil
}

func (rt *Runtime) contextClosed() {
	rt.mu.Lock()
	rt.contexts--
	rt.mu.Unlock()
}
