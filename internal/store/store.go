// Package store defines the datastore capability the pipelines write through.
// In production this seam is backed by the spreadsheet client; the SQLite
// implementation here serves local runs and tests with the same contract:
// header-defined columns, find-by-key-or-append upserts, and per-cell notes.
package store

import "github.com/lettia/backoffice/internal/domain"

// Store is the record datastore consumed by the sync and invoice pipelines.
//
// Headers define both column presence and serialization order; loading them
// is a run-level precondition, so implementations should fail loudly there.
// Numeric fields must round-trip as numbers, not strings.
type Store interface {
	// ReadAll returns every data row of a table in storage order.
	ReadAll(table string) ([]domain.Record, error)

	// Headers returns the table's column names in order.
	Headers(table string) ([]string, error)

	// Upsert finds the row whose keyField equals rec's value and overwrites
	// it, or appends a new row. Fields outside the table's headers are
	// dropped.
	Upsert(table string, rec domain.Record, keyField string) error

	// AppendRows appends rows in one batch.
	AppendRows(table string, rows []domain.Record) error

	// AnnotateCell attaches an explanatory note to the field of the row
	// identified by key.
	AnnotateCell(table, key, field, note string) error

	// DeleteRows removes the rows at the given zero-based positions.
	DeleteRows(table string, positions []int) error
}
