package core

// EngineBackend is the interface that engine implementations (QuickJS, V8)
// must satisfy. The root package picks one based on build tags.
type EngineBackend interface {
	// Name identifies the engine in logs and diagnostics.
	Name() string

	// NewRealm creates a fresh realm with its own global object.
	NewRealm(cfg RealmConfig) (JSRuntime, error)
}
