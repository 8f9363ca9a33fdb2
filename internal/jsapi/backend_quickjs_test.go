//go:build !v8

package jsapi

import (
	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/quickjs"
)

func testBackend() core.EngineBackend { return quickjs.NewBackend() }
