//go:build v8

package jsapi

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/v8engine"
)

func testBackend() core.EngineBackend { return v8engine.NewBackend() }
