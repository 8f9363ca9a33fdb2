package jsbridge

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventType identifies a bridge lifecycle event.
type EventType uint8

const (
	EventRootAdded EventType = iota
	EventRootRemoved
	EventRootRemoveFailed
	EventSkippedLeak
	EventContextCreated
	EventContextDisposed
	EventScopeViolation
)

func (t EventType) String() string {
	switch t {
	case EventRootAdded:
		return "root_added"
	case EventRootRemoved:
		return "root_removed"
	case EventRootRemoveFailed:
		return "root_remove_failed"
	case EventSkippedLeak:
		return "skipped_leak"
	case EventContextCreated:
		return "context_created"
	case EventContextDisposed:
		return "context_disposed"
	case EventScopeViolation:
		return "scope_violation"
	default:
		return "unknown"
	}
}

// Event describes something the bridge did with a root, context or scope.
// Kind names the root kind or scope type; Detail is free text.
type Event struct {
	Time    time.Time
	Kind    string
	Detail  string
	Context uintptr
	Type    EventType
}

// Observer receives bridge events. Events from finalizers arrive on the
// runtime's cleanup goroutine, so implementations must be safe for
// concurrent use and must not call back into a Context.
type Observer interface {
	OnBridgeEvent(Event)
}

var (
	obsMu     sync.RWMutex
	observers []Observer
)

// Subscribe adds a process-wide observer.
func Subscribe(o Observer) {
	obsMu.Lock()
	defer obsMu.Unlock()
	observers = append(observers[:len(observers):len(observers)], o)
}

// Unsubscribe removes an observer added with Subscribe.
func Unsubscribe(o Observer) {
	obsMu.Lock()
	defer obsMu.Unlock()
	for i, obs := range observers {
		if obs == o {
			// copy so a concurrent emit keeps iterating its own snapshot
			next := make([]Observer, 0, len(observers)-1)
			next = append(next, observers[:i]...)
			observers = append(next, observers[i+1:]...)
			return
		}
	}
}

// Counters is a snapshot of process-wide bridge counters.
type Counters struct {
	LiveRoots      int64 // roots added and not yet removed
	RootsAdded     int64
	RootsRemoved   int64
	RemoveFailures int64
	SkippedLeaks   int64 // finalizers that declined to remove a root
	QueuedReleases int64 // finalized roots waiting for their context
	LiveContexts   int64
}

var stats struct {
	liveRoots      atomic.Int64
	rootsAdded     atomic.Int64
	rootsRemoved   atomic.Int64
	removeFailures atomic.Int64
	skippedLeaks   atomic.Int64
	queued         atomic.Int64
	liveContexts   atomic.Int64
}

// Stats returns the current counters.
func Stats() Counters {
	return Counters{
		LiveRoots:      stats.liveRoots.Load(),
		RootsAdded:     stats.rootsAdded.Load(),
		RootsRemoved:   stats.rootsRemoved.Load(),
		RemoveFailures: stats.removeFailures.Load(),
		SkippedLeaks:   stats.skippedLeaks.Load(),
		QueuedReleases: stats.queued.Load(),
		LiveContexts:   stats.liveContexts.Load(),
	}
}

// emit delivers ev to the subscribers and to extra, when set.
func emit(extra Observer, ev Event) {
	switch ev.Type {
	case EventRootAdded:
		stats.rootsAdded.Add(1)
		stats.liveRoots.Add(1)
	case EventRootRemoved:
		stats.rootsRemoved.Add(1)
		stats.liveRoots.Add(-1)
	case EventRootRemoveFailed:
		stats.removeFailures.Add(1)
		stats.liveRoots.Add(-1)
	case EventSkippedLeak:
		stats.skippedLeaks.Add(1)
	case EventContextCreated:
		stats.liveContexts.Add(1)
	case EventContextDisposed:
		stats.liveContexts.Add(-1)
	}

	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	obsMu.RLock()
	list := observers
	obsMu.RUnlock()
	for _, o := range list {
		o.OnBridgeEvent(ev)
	}
	if extra != nil {
		extra.OnBridgeEvent(ev)
	}
}
