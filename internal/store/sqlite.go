package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "modernc.org/sqlite"

	"github.com/lettia/backoffice/internal/domain"
)

// SQLite is a Store backed by a local SQLite file. Rows are stored as JSON
// documents per (table, position); headers and notes get their own tables so
// column order and cell annotations survive the round trip.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) a record store at the given path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS store_headers (
			tbl   TEXT NOT NULL,
			pos   INTEGER NOT NULL,
			field TEXT NOT NULL,
			PRIMARY KEY (tbl, pos)
		)`,
		`CREATE TABLE IF NOT EXISTS store_rows (
			tbl  TEXT NOT NULL,
			pos  INTEGER NOT NULL,
			k    TEXT NOT NULL DEFAULT '',
			data TEXT NOT NULL,
			PRIMARY KEY (tbl, pos)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_store_rows_key ON store_rows(tbl, k)`,
		`CREATE TABLE IF NOT EXISTS store_notes (
			tbl   TEXT NOT NULL,
			k     TEXT NOT NULL,
			field TEXT NOT NULL,
			note  TEXT NOT NULL,
			PRIMARY KEY (tbl, k, field)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("create store tables: %w", err)
		}
	}

	return &SQLite{db: db}, nil
}

// Close releases the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// SetHeaders defines the column set and order for a table. Seeding headers is
// a deployment step; the pipelines only ever read them.
func (s *SQLite) SetHeaders(table string, fields []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM store_headers WHERE tbl = ?", table); err != nil {
		return fmt.Errorf("clear headers: %w", err)
	}
	for i, f := range fields {
		if _, err := tx.Exec(
			"INSERT INTO store_headers (tbl, pos, field) VALUES (?,?,?)",
			table, i, f,
		); err != nil {
			return fmt.Errorf("insert header %q: %w", f, err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) Headers(table string) ([]string, error) {
	rows, err := s.db.Query(
		"SELECT field FROM store_headers WHERE tbl = ? ORDER BY pos", table,
	)
	if err != nil {
		return nil, fmt.Errorf("read headers: %w", err)
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("table %q has no headers", table)
	}
	return fields, rows.Err()
}

func (s *SQLite) ReadAll(table string) ([]domain.Record, error) {
	rows, err := s.db.Query(
		"SELECT data FROM store_rows WHERE tbl = ? ORDER BY pos", table,
	)
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	defer rows.Close()

	var out []domain.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec domain.Record
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, fmt.Errorf("decode row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLite) Upsert(table string, rec domain.Record, keyField string) error {
	headers, err := s.Headers(table)
	if err != nil {
		return err
	}
	key := rec.Str(keyField)
	if key == "" {
		return fmt.Errorf("upsert into %q: blank key field %q", table, keyField)
	}

	data, err := json.Marshal(projectToHeaders(rec, headers))
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}

	res, err := s.db.Exec(
		"UPDATE store_rows SET data = ? WHERE tbl = ? AND k = ?",
		string(data), table, key,
	)
	if err != nil {
		return fmt.Errorf("update row: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO store_rows (tbl, pos, k, data)
		 VALUES (?, (SELECT COALESCE(MAX(pos)+1, 0) FROM store_rows WHERE tbl = ?), ?, ?)`,
		table, table, key, string(data),
	)
	if err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	return nil
}

func (s *SQLite) AppendRows(table string, recs []domain.Record) error {
	if len(recs) == 0 {
		return nil
	}
	headers, err := s.Headers(table)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, rec := range recs {
		data, err := json.Marshal(projectToHeaders(rec, headers))
		if err != nil {
			return fmt.Errorf("encode row: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO store_rows (tbl, pos, k, data)
			 VALUES (?, (SELECT COALESCE(MAX(pos)+1, 0) FROM store_rows WHERE tbl = ?), ?, ?)`,
			table, table, rec.Str(headers[0]), string(data),
		); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	return tx.Commit()
}

func (s *SQLite) AnnotateCell(table, key, field, note string) error {
	_, err := s.db.Exec(
		`INSERT INTO store_notes (tbl, k, field, note) VALUES (?,?,?,?)
		 ON CONFLICT (tbl, k, field) DO UPDATE SET note = excluded.note`,
		table, key, field, note,
	)
	if err != nil {
		return fmt.Errorf("annotate %s.%s: %w", key, field, err)
	}
	return nil
}

// NoteFor returns the note on one cell, or "" when there is none.
func (s *SQLite) NoteFor(table, key, field string) (string, error) {
	var note string
	err := s.db.QueryRow(
		"SELECT note FROM store_notes WHERE tbl = ? AND k = ? AND field = ?",
		table, key, field,
	).Scan(&note)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return note, err
}

func (s *SQLite) DeleteRows(table string, positions []int) error {
	if len(positions) == 0 {
		return nil
	}
	// Map requested indexes onto actual pos values in storage order.
	rows, err := s.db.Query(
		"SELECT pos FROM store_rows WHERE tbl = ? ORDER BY pos", table,
	)
	if err != nil {
		return fmt.Errorf("read positions: %w", err)
	}
	var all []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return err
		}
		all = append(all, p)
	}
	rows.Close()

	want := append([]int(nil), positions...)
	sort.Ints(want)

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, idx := range want {
		if idx < 0 || idx >= len(all) {
			return fmt.Errorf("delete from %q: position %d out of range", table, idx)
		}
		if _, err := tx.Exec(
			"DELETE FROM store_rows WHERE tbl = ? AND pos = ?", table, all[idx],
		); err != nil {
			return fmt.Errorf("delete row: %w", err)
		}
	}
	return tx.Commit()
}

// projectToHeaders keeps only header fields, blank-filling missing columns so
// every stored row has the full column set.
func projectToHeaders(rec domain.Record, headers []string) domain.Record {
	out := make(domain.Record, len(headers))
	for _, h := range headers {
		if v, ok := rec[h]; ok {
			out[h] = v
		} else {
			out[h] = ""
		}
	}
	return out
}
