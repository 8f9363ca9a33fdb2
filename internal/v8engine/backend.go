//go:build v8

// Package v8engine is the V8 engine backend (build tag v8), built on
// tommie/v8go. Each realm owns one isolate and one context.
package v8engine

import (
	"github.com/cryguy/jsbridge/internal/core"
	v8 "github.com/tommie/v8go"
)

// MinHeapBytes is the smallest heap limit handed to V8. Smaller limits make
// the isolate abort during bootstrap instead of failing allocations.
const MinHeapBytes = 16 << 20

// Backend creates V8 realms.
type Backend struct{}

var _ core.EngineBackend = Backend{}

// NewBackend returns the V8 engine backend.
func NewBackend() Backend {
	return Backend{}
}

// Name implements core.EngineBackend.
func (Backend) Name() string { return "v8" }

// NewRealm creates an isolate and a context inside it.
func (Backend) NewRealm(cfg core.RealmConfig) (core.JSRuntime, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimit > 0 {
		heapSize := cfg.MemoryLimit
		if heapSize < MinHeapBytes {
			heapSize = MinHeapBytes
		}
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	ctx := v8.NewContext(iso)
	return &realm{iso: iso, ctx: ctx}, nil
}
