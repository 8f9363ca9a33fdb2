package jsbridge

// Config holds the settings a Runtime hands to every Context it creates.
type Config struct {
	RuntimeMaxBytes uint32   // heap limit of the native runtime
	StackChunkSize  int      // accepted and ignored; the engine backends size their own stacks
	GCZeal          bool     // collect before every allocating call
	DebugScopes     bool     // panic when a scope closes out of order
	ReportUncaught  bool     // hand exceptions escaping EvaluateRaw to the reporter
	Observer        Observer // receives this runtime's events, in addition to subscribers
}

// DefaultConfig returns the settings used by NewRuntime.
func DefaultConfig() Config {
	return Config{
		RuntimeMaxBytes: 8 << 20,
		StackChunkSize:  8192,
		ReportUncaught:  true,
	}
}
