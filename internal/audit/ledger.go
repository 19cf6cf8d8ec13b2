// Package audit is an optional, append-only delivery ledger backed by
// SQLite. It satisfies pkg/server.Auditor: the relay tells it about a
// delivery outcome after the routing/authorization decision is already
// made, and the ledger is never read back to make one. Disabled by
// default — a deployment opts in by constructing a Ledger and passing
// it to server.WithAuditor.
package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Record is one row of the ledger.
type Record struct {
	ID        int64
	FromID    uint32
	ToID      uint32
	Status    string
	Reason    string
	Timestamp int64
}

// Ledger is a SQLite-backed append-only store of delivery outcomes.
type Ledger struct {
	db *sql.DB
}

// Open creates or attaches to the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("audit: open %s: %w", path, err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: enable WAL: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS deliveries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		from_id INTEGER NOT NULL,
		to_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		timestamp INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deliveries_to ON deliveries(to_id);
	CREATE INDEX IF NOT EXISTS idx_deliveries_from ON deliveries(from_id);
	`
	if _, err := l.db.Exec(schema); err != nil {
		return fmt.Errorf("audit: create schema: %w", err)
	}
	return nil
}

// RecordDelivery appends one row. It satisfies pkg/server.Auditor.
// Write failures are discarded, so the relay never blocks on them;
// callers that need the error can use Append directly instead of going
// through server.WithAuditor.
func (l *Ledger) RecordDelivery(fromID, toID uint32, status, reason string) {
	_, _ = l.Append(Record{
		FromID:    fromID,
		ToID:      toID,
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().Unix(),
	})
}

// Append inserts rec and returns its assigned row id.
func (l *Ledger) Append(rec Record) (int64, error) {
	res, err := l.db.Exec(
		`INSERT INTO deliveries (from_id, to_id, status, reason, timestamp) VALUES (?, ?, ?, ?, ?)`,
		rec.FromID, rec.ToID, rec.Status, rec.Reason, rec.Timestamp,
	)
	if err != nil {
		return 0, fmt.Errorf("audit: insert: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns the most recently recorded deliveries, newest first,
// capped at limit rows.
func (l *Ledger) Recent(limit int) ([]Record, error) {
	rows, err := l.db.Query(
		`SELECT id, from_id, to_id, status, reason, timestamp FROM deliveries ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Status, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ForRecipient returns every recorded delivery addressed to toID,
// oldest first.
func (l *Ledger) ForRecipient(toID uint32) ([]Record, error) {
	rows, err := l.db.Query(
		`SELECT id, from_id, to_id, status, reason, timestamp FROM deliveries WHERE to_id = ? ORDER BY id ASC`,
		toID,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query for recipient: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.FromID, &r.ToID, &r.Status, &r.Reason, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("audit: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the underlying database handle.
func (l *Ledger) Close() error {
	return l.db.Close()
}
