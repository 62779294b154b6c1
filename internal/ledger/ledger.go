// Package ledger tracks which external record identifiers have already been
// processed, durably across restarts. Each pipeline owns its own ledger file;
// marks persist immediately, so a crash between a mark and the caller's next
// step can only cause safe re-processing (the merge policy makes re-runs
// idempotent).
package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Mark sets. "imported" gates record import; "annotated" gates the separate
// explanatory-notes step, which may lag behind import; "invoiced" gates
// invoice line generation.
const (
	SetImported  = "imported"
	SetAnnotated = "annotated"
	SetInvoiced  = "invoiced"
)

// Ledger is a durable set of (set, id) membership marks on SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) a ledger database at the given path. Pass
// ":memory:" for a throwaway ledger.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS marks (
		set_name  TEXT NOT NULL,
		id        TEXT NOT NULL,
		marked_at DATETIME NOT NULL,
		PRIMARY KEY (set_name, id)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create marks table: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close releases the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Mark adds id to the given set and persists it. Marking an already-marked id
// is a no-op; blank ids are ignored.
func (l *Ledger) Mark(set, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	_, err := l.db.Exec(
		"INSERT OR IGNORE INTO marks (set_name, id, marked_at) VALUES (?,?,?)",
		set, id, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("mark %s/%s: %w", set, id, err)
	}
	return nil
}

// IsMarked reports whether id is a member of the given set.
func (l *Ledger) IsMarked(set, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	var n int
	err := l.db.QueryRow(
		"SELECT COUNT(*) FROM marks WHERE set_name = ? AND id = ?", set, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check %s/%s: %w", set, id, err)
	}
	return n > 0, nil
}

// Count returns the number of marks in a set.
func (l *Ledger) Count(set string) (int, error) {
	var n int
	err := l.db.QueryRow(
		"SELECT COUNT(*) FROM marks WHERE set_name = ?", set,
	).Scan(&n)
	return n, err
}
