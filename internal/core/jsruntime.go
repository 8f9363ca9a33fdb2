package core

// HostFunc is the single Go entry point a realm exposes to script. The
// native layer multiplexes every host function through it by id, passing
// the receiver and arguments in its wire encoding.
type HostFunc func(fnID int, this, args string) string

// JSRuntime is one JavaScript realm of the engine (a QuickJS VM or a V8
// isolate+context), reduced to the string surface internal/jsapi drives.
type JSRuntime interface {
	// Eval evaluates source in the global scope and discards the result.
	Eval(js string) error

	// EvalString evaluates source and returns the result as a string.
	// Undefined and null come back as "".
	EvalString(js string) (string, error)

	// Bind installs fn as a global function named name.
	Bind(name string, fn HostFunc) error

	// RunMicrotasks drains pending Promise jobs and returns how many ran,
	// when the engine can tell.
	RunMicrotasks() int

	// Close releases the realm. Calling it twice is a no-op.
	Close()
}
