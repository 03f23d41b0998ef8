// Package indexdb keeps a SQLite index of shopkeeper lifecycle events for
// diagnostics and offline tooling. Writes go through a dedicated goroutine
// so the logic thread never blocks on the database.
package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"shopcraft.gg/internal/shop"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	tick       INTEGER NOT NULL,
	kind       TEXT    NOT NULL,
	shop_id    INTEGER NOT NULL,
	shop_uuid  TEXT    NOT NULL,
	shop_type  TEXT    NOT NULL,
	detail     TEXT    NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS audit_shop_uuid ON audit(shop_uuid);
`

type SQLiteAudit struct {
	db  *sql.DB
	log *log.Logger

	ch     chan shop.AuditEvent
	wg     sync.WaitGroup
	once   sync.Once
	closed atomic.Bool

	dropped atomic.Uint64
}

func Open(path string, logger *log.Logger) (*SQLiteAudit, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit schema: %w", err)
	}

	a := &SQLiteAudit{
		db:  db,
		log: logger,
		ch:  make(chan shop.AuditEvent, 256),
	}
	a.wg.Add(1)
	go a.writer()
	return a, nil
}

// Record queues one event. Never blocks; events are dropped (and counted)
// when the writer is saturated or closed.
func (a *SQLiteAudit) Record(ev shop.AuditEvent) {
	if a.closed.Load() {
		a.dropped.Add(1)
		return
	}
	select {
	case a.ch <- ev:
	default:
		a.dropped.Add(1)
	}
}

func (a *SQLiteAudit) Dropped() uint64 { return a.dropped.Load() }

func (a *SQLiteAudit) writer() {
	defer a.wg.Done()
	for ev := range a.ch {
		_, err := a.db.Exec(
			`INSERT INTO audit (tick, kind, shop_id, shop_uuid, shop_type, detail, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.Tick, ev.Kind, ev.ShopID, ev.ShopUUID, ev.ShopType, ev.Detail, time.Now().Unix(),
		)
		if err != nil && a.log != nil {
			a.log.Printf("audit: insert: %v", err)
		}
	}
}

// Close drains queued events and closes the database.
func (a *SQLiteAudit) Close() error {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.ch)
	})
	a.wg.Wait()
	return a.db.Close()
}

// Entry is one persisted audit row.
type Entry struct {
	Seq      int64
	Tick     uint64
	Kind     string
	ShopID   int
	ShopUUID string
	ShopType string
	Detail   string
}

// Recent returns up to limit newest entries, newest first. Intended for
// offline tooling and the admin console, not the logic thread.
func (a *SQLiteAudit) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT seq, tick, kind, shop_id, shop_uuid, shop_type, detail FROM audit ORDER BY seq DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Seq, &e.Tick, &e.Kind, &e.ShopID, &e.ShopUUID, &e.ShopType, &e.Detail); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
