package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/cryguy/jsbridge"
)

func flush(t *testing.T, j *Journal) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func TestJournalRecordsEvents(t *testing.T) {
	j, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer j.Close()

	now := time.Now()
	events := []jsbridge.Event{
		{Time: now, Type: jsbridge.EventContextCreated, Context: 7},
		{Time: now, Type: jsbridge.EventRootAdded, Context: 7, Kind: "value"},
		{Time: now, Type: jsbridge.EventSkippedLeak, Context: 7, Kind: "object", Detail: "owning context collected"},
		{Time: now, Type: jsbridge.EventRootAdded, Context: 9, Kind: "string"},
	}
	for _, ev := range events {
		j.OnBridgeEvent(ev)
	}
	flush(t, j)

	tests := []struct {
		name string
		q    Query
		want int
	}{
		{"all", Query{AnyType: true}, 4},
		{"by type", Query{Type: jsbridge.EventRootAdded}, 2},
		{"by context", Query{AnyType: true, Context: 7}, 3},
		{"type and context", Query{Type: jsbridge.EventRootAdded, Context: 9}, 1},
		{"limit", Query{AnyType: true, Limit: 2}, 2},
		{"no match", Query{Type: jsbridge.EventScopeViolation}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := j.Events(context.Background(), tt.q)
			if err != nil {
				t.Fatalf("Events: %v", err)
			}
			if len(recs) != tt.want {
				t.Errorf("got %d records, want %d", len(recs), tt.want)
			}
		})
	}

	leaks, err := j.Events(context.Background(), Query{Type: jsbridge.EventSkippedLeak})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(leaks) != 1 {
		t.Fatalf("got %d leaks, want 1", len(leaks))
	}
	if leaks[0].Kind != "object" || leaks[0].Detail != "owning context collected" || leaks[0].Context != 7 {
		t.Errorf("leak record = %+v", leaks[0])
	}
	if leaks[0].Time.UnixNano() != now.UnixNano() {
		t.Errorf("time = %v, want %v", leaks[0].Time, now)
	}

	counts, err := j.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["root_added"] != 2 || counts["skipped_leak"] != 1 || counts["context_created"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestJournalPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.db")
	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.OnBridgeEvent(jsbridge.Event{Time: time.Now(), Type: jsbridge.EventScopeViolation, Kind: "request"})
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j.Close()
	recs, err := j.Events(context.Background(), Query{Type: jsbridge.EventScopeViolation})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(recs) != 1 || recs[0].Kind != "request" {
		t.Errorf("records after reopen = %+v", recs)
	}
}

func TestJournalAfterClose(t *testing.T) {
	j, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	j.OnBridgeEvent(jsbridge.Event{Type: jsbridge.EventRootAdded})
	if j.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", j.Dropped())
	}
}

func TestJournalAsObserver(t *testing.T) {
	j, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	defer j.Close()

	cfg := jsbridge.DefaultConfig()
	cfg.Observer = j
	rt, err := jsbridge.NewRuntimeWithConfig(cfg)
	if err != nil {
		t.Fatalf("NewRuntimeWithConfig: %v", err)
	}
	ctx, err := rt.NewContext()
	if err != nil {
		t.Fatalf("NewContext: %v", err)
	}
	r, err := jsbridge.NewRooted(ctx, jsbridge.Int32Value(1))
	if err != nil {
		t.Fatalf("NewRooted: %v", err)
	}
	r.Dispose()
	if err := ctx.Dispose(); err != nil {
		t.Fatalf("Context.Dispose: %v", err)
	}
	if err := rt.Dispose(); err != nil {
		t.Fatalf("Runtime.Dispose: %v", err)
	}
	flush(t, j)

	counts, err := j.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts["context_created"] != 1 || counts["context_disposed"] != 1 {
		t.Errorf("context events = %v", counts)
	}
	if counts["root_added"] < 1 || counts["root_removed"] < 1 {
		t.Errorf("root events = %v", counts)
	}
}
