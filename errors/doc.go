// Package errors provides structured error types for the jsbridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the native operation that failed, the context it ran
// against, a human-readable detail and an optional cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseRoot, errors.KindRootRegistration).
//		Op("AddValueRoot").
//		Context(cx).
//		Detail("root table refused slot").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.AllocationFailed(errors.PhaseRuntime, "NewRuntime")
//	err := errors.UseAfterDispose(errors.PhaseRoot, "Rooted.Get")
//
// Matching with errors.Is compares Kind, and Phase when the target sets one,
// so a bare kind sentinel matches errors from every phase:
//
//	if errors.Is(err, &errors.Error{Kind: errors.KindUseAfterDispose}) { ... }
package errors
