package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseRoot,
				Kind:    KindRootRegistration,
				Op:      "AddValueRoot",
				Context: 0x10,
				Detail:  "table full",
			},
			contains: []string{"[root]", "root_registration", "AddValueRoot", "0x10", "table full"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseScope,
				Kind:  KindScopeOrder,
			},
			contains: []string{"[scope]", "scope_order"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseRuntime,
				Kind:   KindAllocation,
				Detail: "out of memory",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[runtime]", "allocation", "out of memory", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseEvaluate,
		Kind:  KindEvaluation,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause through Unwrap")
	}
}

func TestError_Is(t *testing.T) {
	err := UseAfterDispose(PhaseRoot, "Rooted.Get")

	if !errors.Is(err, &Error{Phase: PhaseRoot, Kind: KindUseAfterDispose}) {
		t.Error("Is should match same phase and kind")
	}
	if !errors.Is(err, &Error{Kind: KindUseAfterDispose}) {
		t.Error("Is should match any phase when target phase is empty")
	}
	if errors.Is(err, &Error{Phase: PhaseScope, Kind: KindUseAfterDispose}) {
		t.Error("Is should not match different phase")
	}
	if errors.Is(err, &Error{Kind: KindAllocation}) {
		t.Error("Is should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseRoot, KindRootRegistration).
		Op("AddObjectRoot").
		Context(42).
		Value(7).
		Cause(cause).
		Detail("slot %d refused", 3).
		Build()

	if err.Phase != PhaseRoot || err.Kind != KindRootRegistration {
		t.Errorf("phase/kind = %v/%v", err.Phase, err.Kind)
	}
	if err.Op != "AddObjectRoot" {
		t.Errorf("Op = %q", err.Op)
	}
	if err.Context != 42 {
		t.Errorf("Context = %d", err.Context)
	}
	if err.Value != 7 {
		t.Errorf("Value = %v", err.Value)
	}
	if err.Detail != "slot 3 refused" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if !errors.Is(err, cause) {
		t.Error("cause not reachable")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"allocation", AllocationFailed(PhaseRuntime, "NewRuntime"), PhaseRuntime, KindAllocation},
		{"root registration", RootRegistrationFailed("AddStringRoot", 1), PhaseRoot, KindRootRegistration},
		{"use after dispose", UseAfterDispose(PhaseScope, "Request.Close"), PhaseScope, KindUseAfterDispose},
		{"scope order", ScopeOrder("LeaveCompartment", 1, "out of order"), PhaseScope, KindScopeOrder},
		{"invalid state", InvalidState(PhaseRuntime, "Dispose", "contexts alive"), PhaseRuntime, KindInvalidState},
		{"type mismatch", TypeMismatch(PhaseMarshal, "ToGo", "string", "object"), PhaseMarshal, KindTypeMismatch},
		{"operation failed", OperationFailed(PhaseCall, "GetProperty", 1), PhaseCall, KindOperationFailed},
		{"not found", NotFound(PhaseContext, "context", "0x1"), PhaseContext, KindNotFound},
		{"invalid input", InvalidInput(PhaseMarshal, "nil"), PhaseMarshal, KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("Phase = %v, want %v", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("Kind = %v, want %v", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(PhaseJournal, KindOperationFailed, cause, "insert event")
	if !errors.Is(err, cause) {
		t.Error("Wrap lost cause")
	}
	if !strings.Contains(err.Error(), "insert event") {
		t.Errorf("message %q missing detail", err.Error())
	}
}
