package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseRuntime  Phase = "runtime"  // runtime creation/teardown
	PhaseContext  Phase = "context"  // context creation/teardown, registry
	PhaseRoot     Phase = "root"     // root registration and rooted handles
	PhaseScope    Phase = "scope"    // request and compartment scopes
	PhaseEvaluate Phase = "evaluate" // script compilation and evaluation
	PhaseMarshal  Phase = "marshal"  // Go <-> JS value conversion
	PhaseCall     Phase = "call"     // function invocation across the boundary
	PhaseJournal  Phase = "journal"  // diagnostic persistence
)

// Kind categorizes the error
type Kind string

const (
	KindAllocation       Kind = "allocation"
	KindRootRegistration Kind = "root_registration"
	KindUseAfterDispose  Kind = "use_after_dispose"
	KindEvaluation       Kind = "evaluation"
	KindScopeOrder       Kind = "scope_order"
	KindDuplicateContext Kind = "duplicate_context"
	KindInvalidState     Kind = "invalid_state"
	KindTypeMismatch     Kind = "type_mismatch"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindOperationFailed  Kind = "operation_failed"
	KindStale            Kind = "stale_reference"
)

// Error is the structured error type used throughout the bridge
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Op      string
	Detail  string
	Context uintptr
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Op != "" {
		b.WriteString(" in ")
		b.WriteString(e.Op)
	}

	if e.Context != 0 {
		fmt.Fprintf(&b, " (cx %#x)", e.Context)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. An empty Phase on the
// target matches any phase.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Phase == "" || t.Phase == e.Phase
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Op sets the name of the failing operation
func (b *Builder) Op(op string) *Builder {
	b.err.Op = op
	return b
}

// Context records the native context the operation ran against
func (b *Builder) Context(cx uintptr) *Builder {
	b.err.Context = cx
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// AllocationFailed creates an error for a native constructor that returned a null handle
func AllocationFailed(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindAllocation,
		Op:     op,
		Detail: "native call returned a null handle",
	}
}

// RootRegistrationFailed creates an error for a rejected add-root call
func RootRegistrationFailed(op string, cx uintptr) *Error {
	return &Error{
		Phase:   PhaseRoot,
		Kind:    KindRootRegistration,
		Op:      op,
		Context: cx,
		Detail:  "native runtime refused to register the root",
	}
}

// UseAfterDispose creates an error for access through a disposed handle or scope
func UseAfterDispose(phase Phase, op string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUseAfterDispose,
		Op:     op,
		Detail: "object already disposed",
	}
}

// ScopeOrder creates an error for a scope closed out of LIFO order
func ScopeOrder(op string, cx uintptr, detail string) *Error {
	return &Error{
		Phase:   PhaseScope,
		Kind:    KindScopeOrder,
		Op:      op,
		Context: cx,
		Detail:  detail,
	}
}

// InvalidState creates an error for an operation attempted in the wrong lifecycle state
func InvalidState(phase Phase, op, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidState,
		Op:     op,
		Detail: detail,
	}
}

// TypeMismatch creates an error for a value of an unexpected JS or Go type
func TypeMismatch(phase Phase, op string, want, got string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Op:     op,
		Detail: fmt.Sprintf("expected %s, got %s", want, got),
	}
}

// OperationFailed creates an error for a native call that returned failure
func OperationFailed(phase Phase, op string, cx uintptr) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindOperationFailed,
		Op:      op,
		Context: cx,
		Detail:  "native call reported failure",
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
