// Package journal persists bridge events to a SQLite database so leaked
// roots and scope violations can be inspected after a process exits.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/jsbridge"
	"github.com/cryguy/jsbridge/errors"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS bridge_events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	at      INTEGER NOT NULL,
	type    TEXT    NOT NULL,
	context INTEGER NOT NULL,
	kind    TEXT    NOT NULL,
	detail  TEXT    NOT NULL
)`

// DefaultBuffer is the number of events held in memory while the writer
// catches up.
const DefaultBuffer = 1024

// Journal is a jsbridge.Observer writing every event it receives to
// SQLite. OnBridgeEvent never blocks: events arriving while the buffer is
// full are counted in Dropped and discarded.
type Journal struct {
	db      *sql.DB
	events  chan jsbridge.Event
	done    chan struct{}
	dropped atomic.Int64
	queued  atomic.Int64 // accepted into events
	settled atomic.Int64 // written, or lost to a failed write

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// Open opens (or creates) the journal database at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(errors.PhaseJournal, errors.KindInvalidInput, err, "creating journal directory")
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal %q: %w", path, err)
	}
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return start(db, DefaultBuffer)
}

// OpenMemory creates an in-memory journal, mostly for tests.
func OpenMemory() (*Journal, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory journal: %w", err)
	}
	// every connection to :memory: is a separate database
	db.SetMaxOpenConns(1)
	return start(db, DefaultBuffer)
}

func start(db *sql.DB, buffer int) (*Journal, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	j := &Journal{
		db:     db,
		events: make(chan jsbridge.Event, buffer),
		done:   make(chan struct{}),
	}
	go j.run()
	return j, nil
}

// OnBridgeEvent implements jsbridge.Observer.
func (j *Journal) OnBridgeEvent(ev jsbridge.Event) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		j.dropped.Add(1)
		return
	}
	select {
	case j.events <- ev:
		j.queued.Add(1)
	default:
		j.dropped.Add(1)
	}
}

// Dropped returns how many events were discarded because the buffer was
// full.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

func (j *Journal) run() {
	defer close(j.done)
	for ev := range j.events {
		batch := []jsbridge.Event{ev}
	drain:
		for len(batch) < 256 {
			select {
			case next, ok := <-j.events:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}
		if err := j.write(batch); err != nil {
			jsbridge.Logger().Warn("journal write failed",
				zap.Int("events", len(batch)),
				zap.Error(err))
		}
		j.settled.Add(int64(len(batch)))
	}
}

func (j *Journal) write(batch []jsbridge.Event) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare("INSERT INTO bridge_events (at, type, context, kind, detail) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for _, ev := range batch {
		if _, err := stmt.Exec(ev.Time.UnixNano(), ev.Type.String(), int64(ev.Context), ev.Kind, ev.Detail); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// Flush waits until every event accepted so far has been written or
// ctx ends.
func (j *Journal) Flush(ctx context.Context) error {
	target := j.queued.Load()
	tick := time.NewTicker(time.Millisecond)
	defer tick.Stop()
	for j.settled.Load() < target {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-j.done:
			return nil
		case <-tick.C:
		}
	}
	return nil
}

// Close stops accepting events, writes what is buffered and closes the
// database. Events arriving afterwards count as dropped.
func (j *Journal) Close() error {
	j.closeOnce.Do(func() {
		j.mu.Lock()
		j.closed = true
		close(j.events)
		j.mu.Unlock()
		<-j.done
		j.closeErr = j.db.Close()
	})
	return j.closeErr
}

// Record is one stored event.
type Record struct {
	ID      int64
	Time    time.Time
	Type    string
	Context uintptr
	Kind    string
	Detail  string
}

// Query selects stored events. Type is matched unless AnyType is set;
// a zero Context or Limit does not filter.
type Query struct {
	Type    jsbridge.EventType
	AnyType bool // ignore Type
	Context uintptr
	Limit   int
}

// Events returns stored events matching q, oldest first.
func (j *Journal) Events(ctx context.Context, q Query) ([]Record, error) {
	sqlStr := "SELECT id, at, type, context, kind, detail FROM bridge_events WHERE 1=1"
	var args []any
	if !q.AnyType {
		sqlStr += " AND type = ?"
		args = append(args, q.Type.String())
	}
	if q.Context != 0 {
		sqlStr += " AND context = ?"
		args = append(args, int64(q.Context))
	}
	sqlStr += " ORDER BY id"
	if q.Limit > 0 {
		sqlStr += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := j.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var at, cx int64
		if err := rows.Scan(&r.ID, &at, &r.Type, &cx, &r.Kind, &r.Detail); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		r.Time = time.Unix(0, at)
		r.Context = uintptr(cx)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Counts returns the number of stored events per event type name.
func (j *Journal) Counts(ctx context.Context) (map[string]int64, error) {
	rows, err := j.db.QueryContext(ctx, "SELECT type, COUNT(*) FROM bridge_events GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("counting journal events: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[t] = n
	}
	return out, rows.Err()
}
