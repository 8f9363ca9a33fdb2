//go:build !v8

// Package quickjs is the default engine backend, built on the pure Go
// modernc.org/quickjs port. Each realm is a separate VM.
package quickjs

import (
	"fmt"

	"github.com/cryguy/jsbridge/internal/core"
	"modernc.org/quickjs"
)

// Backend creates QuickJS realms.
type Backend struct{}

var _ core.EngineBackend = Backend{}

// NewBackend returns the QuickJS engine backend.
func NewBackend() Backend {
	return Backend{}
}

// Name implements core.EngineBackend.
func (Backend) Name() string { return "quickjs" }

// NewRealm creates a VM with the configured limits. Realms without a job
// pump still work; RunMicrotasks then reports zero jobs.
func (Backend) NewRealm(cfg core.RealmConfig) (core.JSRuntime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}

	if cfg.MemoryLimit > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimit))
	}

	rt := &realm{vm: vm}
	if pump, err := newJobPump(vm); err == nil {
		rt.pump = pump
	}
	return rt, nil
}
