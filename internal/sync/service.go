// Package sync runs the reservation import pass: load the latest booking
// export, map and merge each row into the reservations table, recompute the
// financial columns, and annotate them with their formulas.
package sync

import (
	"fmt"
	"log"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/finance"
	"github.com/lettia/backoffice/internal/ingestion"
	"github.com/lettia/backoffice/internal/ledger"
	"github.com/lettia/backoffice/internal/reconcile"
	"github.com/lettia/backoffice/internal/store"
)

// TableReservations is the reservations table name in the backing store.
const TableReservations = "reservations"

// RunResult summarizes one import pass.
type RunResult struct {
	Imported  int    `json:"imported"`
	Merged    int    `json:"merged"`
	Skipped   int    `json:"skipped"`
	Invalid   int    `json:"invalid"`
	Errors    int    `json:"errors"`
	Annotated int    `json:"annotated"`
	File      string `json:"file"`
}

// Service imports booking CSV exports into the reservations table.
type Service struct {
	store    store.Store
	ledger   *ledger.Ledger
	importer *ingestion.Importer
	mapper   *ingestion.Mapper
	rates    finance.Rates
}

func NewService(st store.Store, led *ledger.Ledger, imp *ingestion.Importer, rates finance.Rates) *Service {
	return &Service{
		store:    st,
		ledger:   led,
		importer: imp,
		mapper:   ingestion.NewMapper(rates),
		rates:    rates,
	}
}

// Run imports the newest CSV export in the watched directory. Individual bad
// rows are counted and logged, not fatal; only missing preconditions (no
// file, bad columns, unreadable headers) abort the run.
func (s *Service) Run() (RunResult, error) {
	var result RunResult

	path, err := s.importer.LatestFile()
	if err != nil {
		return result, fmt.Errorf("locating export: %w", err)
	}
	result.File = path

	rows, err := s.importer.Load(path)
	if err != nil {
		return result, fmt.Errorf("loading %s: %w", path, err)
	}
	if err := ingestion.ValidateColumns(rows, ingestion.RequiredCSVColumns); err != nil {
		return result, fmt.Errorf("validating %s: %w", path, err)
	}

	if _, err := s.store.Headers(TableReservations); err != nil {
		return result, fmt.Errorf("reading reservation headers: %w", err)
	}

	existing, err := s.existingByID()
	if err != nil {
		log.Printf("[sync] WARNING: reading existing reservations failed, importing without merge: %v", err)
		existing = map[string]domain.Record{}
	}

	for i, row := range rows {
		rec, ok := s.mapper.MapRow(row)
		if !ok {
			result.Skipped++
			continue
		}

		id := rec.Str(domain.FieldReservationID)
		if id == "" {
			log.Printf("[sync] row %d: %v", i+1, domain.ErrMissingID)
			result.Invalid++
			continue
		}

		imported, err := s.ledger.IsMarked(ledger.SetImported, id)
		if err != nil {
			log.Printf("[sync] checking ledger for %s: %v", id, err)
			result.Errors++
			continue
		}
		if imported {
			result.Skipped++
			continue
		}

		merged := false
		if prev, found := existing[id]; found {
			rec = reconcile.Merge(prev, rec)
			merged = true
		}

		breakdown := finance.Compute(rec, s.rates)
		for k, v := range breakdown.Fields() {
			rec[k] = v
		}

		if err := s.store.Upsert(TableReservations, rec, domain.FieldReservationID); err != nil {
			log.Printf("[sync] upserting %s: %v", id, err)
			result.Errors++
			continue
		}
		if err := s.ledger.Mark(ledger.SetImported, id); err != nil {
			log.Printf("[sync] marking %s imported: %v", id, err)
			result.Errors++
			continue
		}

		if merged {
			result.Merged++
		} else {
			result.Imported++
		}
		existing[id] = rec

		if s.annotate(id, rec, breakdown) {
			result.Annotated++
		}
	}

	log.Printf("[sync] run complete: file=%s imported=%d merged=%d skipped=%d invalid=%d errors=%d annotated=%d",
		path, result.Imported, result.Merged, result.Skipped, result.Invalid, result.Errors, result.Annotated)
	return result, nil
}

// annotate attaches the financial-formula notes to a record's cells, once,
// tracked by its own ledger set so a crash between import and annotation
// just retries the notes next run.
func (s *Service) annotate(id string, rec domain.Record, breakdown finance.Breakdown) bool {
	done, err := s.ledger.IsMarked(ledger.SetAnnotated, id)
	if err != nil {
		log.Printf("[sync] checking annotation ledger for %s: %v", id, err)
		return false
	}
	if done {
		return false
	}

	for field, note := range finance.Notes(rec, breakdown, s.rates) {
		if err := s.store.AnnotateCell(TableReservations, id, field, note); err != nil {
			log.Printf("[sync] annotating %s.%s: %v", id, field, err)
			return false
		}
	}
	if err := s.ledger.Mark(ledger.SetAnnotated, id); err != nil {
		log.Printf("[sync] marking %s annotated: %v", id, err)
		return false
	}
	return true
}

func (s *Service) existingByID() (map[string]domain.Record, error) {
	rows, err := s.store.ReadAll(TableReservations)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.Record, len(rows))
	for _, row := range rows {
		if id := row.Str(domain.FieldReservationID); id != "" {
			byID[id] = row
		}
	}
	return byID, nil
}
