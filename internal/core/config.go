package core

// RealmConfig holds the per-realm limits handed to an engine backend.
type RealmConfig struct {
	MemoryLimit uint64 // heap limit in bytes, 0 for engine default
}
