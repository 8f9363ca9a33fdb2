package jsbridge

import (
	"sync"

	"github.com/cryguy/jsbridge/internal/core"
	"github.com/cryguy/jsbridge/internal/jsapi"
)

var (
	processNative     core.Native
	processNativeOnce sync.Once
)

// defaultNative returns the process-wide native engine. Context handles
// key the Context Registry, so every context in the process must come
// from the same Native.
func defaultNative() core.Native {
	processNativeOnce.Do(func() {
		processNative = jsapi.New(newBackend(), jsapi.Options{})
	})
	return processNative
}

// Backend names the engine compiled into this build: "quickjs" by
// default, "v8" with the v8 build tag.
func Backend() string {
	return newBackend().Name()
}
