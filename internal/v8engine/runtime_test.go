//go:build v8

package v8engine

import (
	"strconv"
	"strings"
	"testing"

	"github.com/cryguy/jsbridge/internal/core"
)

func newTestRealm(t *testing.T) core.JSRuntime {
	t.Helper()
	rt, err := NewBackend().NewRealm(core.RealmConfig{MemoryLimit: 32 << 20})
	if err != nil {
		t.Fatalf("NewRealm: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt
}

func TestEvalString(t *testing.T) {
	rt := newTestRealm(t)
	if err := rt.Eval("var x = 40;"); err != nil {
		t.Fatalf("Eval: %v", err)
	}

	tests := []struct {
		src  string
		want string
	}{
		{"x + 2", "42"},
		{"'a' + 'b'", "ab"},
		{"x === 40", "true"},
		{"undefined", ""},
		{"null", ""},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			got, err := rt.EvalString(tt.src)
			if err != nil {
				t.Fatalf("EvalString: %v", err)
			}
			if got != tt.want {
				t.Errorf("EvalString(%s) = %q, want %q", tt.src, got, tt.want)
			}
		})
	}
}

func TestEvalSyntaxError(t *testing.T) {
	rt := newTestRealm(t)
	if err := rt.Eval("function ("); err == nil {
		t.Fatal("expected syntax error")
	}
}

func TestBind(t *testing.T) {
	rt := newTestRealm(t)
	if err := rt.Bind("host", func(id int, this, args string) string {
		return strconv.Itoa(id) + "|" + this + "|" + strings.ToUpper(args)
	}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := rt.EvalString("host(7, 'self', 'a,b')")
	if err != nil {
		t.Fatalf("EvalString: %v", err)
	}
	if got != "7|self|A,B" {
		t.Errorf("host = %q", got)
	}
}

func TestBindReentrant(t *testing.T) {
	rt := newTestRealm(t)
	if err := rt.Bind("outer", func(_ int, this, _ string) string {
		inner, err := rt.EvalString("'<' + '" + this + "' + '>'")
		if err != nil {
			return "error"
		}
		return inner
	}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	got, err := rt.EvalString("outer(0, 'q', '')")
	if err != nil {
		t.Fatalf("EvalString: %v", err)
	}
	if got != "<q>" {
		t.Errorf("outer = %q, want %q", got, "<q>")
	}
}

func TestRunMicrotasks(t *testing.T) {
	rt := newTestRealm(t)
	if err := rt.Eval("var done = false; Promise.resolve().then(function () { done = true; });"); err != nil {
		t.Fatalf("Eval: %v", err)
	}
	rt.RunMicrotasks()
	done, err := rt.EvalString("done")
	if err != nil {
		t.Fatalf("EvalString: %v", err)
	}
	if done != "true" {
		t.Error("promise reaction did not run")
	}
}

func TestCloseIdempotent(t *testing.T) {
	rt, err := NewBackend().NewRealm(core.RealmConfig{})
	if err != nil {
		t.Fatalf("NewRealm: %v", err)
	}
	rt.Close()
	rt.Close()
}

func TestHeapFloor(t *testing.T) {
	rt, err := NewBackend().NewRealm(core.RealmConfig{MemoryLimit: 1 << 20})
	if err != nil {
		t.Fatalf("NewRealm: %v", err)
	}
	defer rt.Close()
	n, err := rt.EvalString("[1, 2, 3].length")
	if err != nil {
		t.Fatalf("EvalString: %v", err)
	}
	if n != "3" {
		t.Errorf("length = %s", n)
	}
}
