package invoice

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/lettia/backoffice/internal/dates"
	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/ledger"
	"github.com/lettia/backoffice/internal/match"
	"github.com/lettia/backoffice/internal/store"
)

// Table names in the backing store.
const (
	TableReservations  = "reservations"
	TableRegistrations = "registrations"
	TableInvoices      = "invoices"
)

// RunResult summarizes one generation pass.
type RunResult struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Service runs the invoice generation pass: one set of lines per reservation,
// exactly once, with the processed-set ledger and the existing line count
// both guarding against duplicates.
type Service struct {
	store   store.Store
	ledger  *ledger.Ledger
	matcher match.Matcher
	builder Builder
}

func NewService(st store.Store, led *ledger.Ledger, matcher match.Matcher, builder Builder) *Service {
	return &Service{store: st, ledger: led, matcher: matcher, builder: builder}
}

// Run generates invoice lines for every eligible reservation. With dryRun
// set, it logs what it would write and marks nothing.
func (s *Service) Run(dryRun bool) (RunResult, error) {
	var result RunResult

	if _, err := s.store.Headers(TableInvoices); err != nil {
		return result, fmt.Errorf("reading invoice headers: %w", err)
	}

	reservations, err := s.store.ReadAll(TableReservations)
	if err != nil {
		return result, fmt.Errorf("reading reservations: %w", err)
	}
	sortByReservationDate(reservations)

	forms, err := s.store.ReadAll(TableRegistrations)
	if err != nil {
		log.Printf("[invoice] WARNING: reading registrations failed, matching disabled: %v", err)
		forms = nil
	}

	lineCounts, err := s.existingLineCounts()
	if err != nil {
		log.Printf("[invoice] WARNING: reading existing invoice lines failed, relying on ledger only: %v", err)
		lineCounts = map[string]int{}
	}

	for _, res := range reservations {
		id := res.Str(domain.FieldReservationID)
		if id == "" {
			result.Skipped++
			continue
		}

		marked, err := s.ledger.IsMarked(ledger.SetInvoiced, id)
		if err != nil {
			log.Printf("[invoice] checking ledger for %s: %v", id, err)
			result.Errors++
			continue
		}
		if marked {
			result.Skipped++
			continue
		}

		// Lines already present from a run that died before marking.
		if lineCounts[id] >= ExpectedLineCount(res) {
			if !dryRun {
				if err := s.ledger.Mark(ledger.SetInvoiced, id); err != nil {
					log.Printf("[invoice] marking %s: %v", id, err)
				}
			}
			result.Skipped++
			continue
		}

		if err := s.generate(res, forms, dryRun); err != nil {
			log.Printf("[invoice] generating lines for %s: %v", id, err)
			result.Errors++
			continue
		}
		result.Generated++
	}

	log.Printf("[invoice] run complete: generated=%d skipped=%d errors=%d dry_run=%v",
		result.Generated, result.Skipped, result.Errors, dryRun)
	return result, nil
}

func (s *Service) generate(res domain.Record, forms []domain.Record, dryRun bool) error {
	id := res.Str(domain.FieldReservationID)

	guest := s.matcher.PrimaryGuest(res, forms)
	tax, taxedCount := match.TaxForReservation(res, forms, s.builder.TaxPolicy)

	lines := s.builder.BuildLines(res, guest, tax, taxedCount)
	if want := ExpectedLineCount(res); len(lines) != want {
		return fmt.Errorf("built %d lines, expected %d", len(lines), want)
	}

	if dryRun {
		log.Printf("[invoice] dry run: would write %d lines for %s (tax=%.2f guests=%d)",
			len(lines), id, tax, taxedCount)
		return nil
	}

	if err := s.store.AppendRows(TableInvoices, lines); err != nil {
		return fmt.Errorf("appending invoice lines: %w", err)
	}
	if err := s.ledger.Mark(ledger.SetInvoiced, id); err != nil {
		return fmt.Errorf("marking invoiced: %w", err)
	}
	return nil
}

// existingLineCounts counts invoice lines per reservation id already in the
// store.
func (s *Service) existingLineCounts() (map[string]int, error) {
	rows, err := s.store.ReadAll(TableInvoices)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		if id := row.Str(domain.FieldReservationID); id != "" {
			counts[id]++
		}
	}
	return counts, nil
}

// sortByReservationDate orders oldest booking first; rows without a parseable
// reservation date sink to the end in their original order.
func sortByReservationDate(rows []domain.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		ti := dates.NormalizeOrEmpty(rows[i][domain.FieldReservationDate])
		tj := dates.NormalizeOrEmpty(rows[j][domain.FieldReservationDate])
		if ti.IsZero() != tj.IsZero() {
			return !ti.IsZero()
		}
		if ti.IsZero() {
			return false
		}
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return strings.Compare(rows[i].Str(domain.FieldReservationID), rows[j].Str(domain.FieldReservationID)) < 0
	})
}
