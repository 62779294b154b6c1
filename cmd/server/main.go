package main

import (
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lettia/backoffice/internal/api"
	"github.com/lettia/backoffice/internal/config"
	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/ingestion"
	"github.com/lettia/backoffice/internal/invoice"
	"github.com/lettia/backoffice/internal/ledger"
	"github.com/lettia/backoffice/internal/match"
	"github.com/lettia/backoffice/internal/store"
	"github.com/lettia/backoffice/internal/sync"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data dir: %v", err)
	}
	if err := os.MkdirAll(cfg.CSVDir, 0o755); err != nil {
		log.Fatalf("Failed to create CSV dir: %v", err)
	}

	storePath := filepath.Join(cfg.DataDir, "backoffice.db")
	log.Printf("Initializing store at %s", storePath)
	st, err := store.OpenSQLite(storePath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	if err := seedHeaders(st); err != nil {
		log.Fatalf("Failed to seed table headers: %v", err)
	}

	// Each pipeline keeps its own ledger file.
	importLedger, err := ledger.Open(filepath.Join(cfg.DataDir, "import_ledger.db"))
	if err != nil {
		log.Fatalf("Failed to open import ledger: %v", err)
	}
	defer importLedger.Close()

	invoiceLedger, err := ledger.Open(filepath.Join(cfg.DataDir, "invoice_ledger.db"))
	if err != nil {
		log.Fatalf("Failed to open invoice ledger: %v", err)
	}
	defer invoiceLedger.Close()

	// Create services.
	rates := cfg.Rates()
	importer := ingestion.NewImporter(cfg.CSVDir)
	syncSvc := sync.NewService(st, importLedger, importer, rates)
	invoiceSvc := invoice.NewService(st, invoiceLedger, match.Matcher{}, invoice.Builder{
		TaxPolicy: cfg.TaxPolicy(),
	})

	// Create router.
	router := api.NewRouter(st, syncSvc, invoiceSvc)

	log.Printf("Lettia Rental Back-Office")
	log.Printf("Listening on http://localhost:%s", cfg.Port)
	log.Printf("API base: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("")
	log.Printf("Endpoints:")
	log.Printf("  POST   /api/v1/tasks/sync-reservations")
	log.Printf("  POST   /api/v1/tasks/generate-invoices")
	log.Printf("  GET    /api/v1/reservations")
	log.Printf("  GET    /api/v1/invoices")
	log.Printf("  GET    /healthz")

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// seedHeaders writes the canonical column layout for any table that does not
// have one yet. An existing layout is left alone.
func seedHeaders(st *store.SQLite) error {
	tables := map[string][]string{
		sync.TableReservations:     domain.ReservationColumns,
		invoice.TableRegistrations: domain.RegistrationColumns,
		invoice.TableInvoices:      domain.InvoiceColumns,
	}
	for table, columns := range tables {
		if _, err := st.Headers(table); err == nil {
			continue
		}
		log.Printf("Seeding %s headers (%d columns)", table, len(columns))
		if err := st.SetHeaders(table, columns); err != nil {
			return err
		}
	}
	return nil
}
