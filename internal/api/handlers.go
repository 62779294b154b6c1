package api

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/lettia/backoffice/internal/domain"
	"github.com/lettia/backoffice/internal/invoice"
	"github.com/lettia/backoffice/internal/store"
	"github.com/lettia/backoffice/internal/sync"
)

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	store      store.Store
	syncSvc    *sync.Service
	invoiceSvc *invoice.Service
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// --- SyncReservations ---

func (h *Handlers) SyncReservations(w http.ResponseWriter, r *http.Request) {
	result, err := h.syncSvc.Run()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// --- GenerateInvoices ---

func (h *Handlers) GenerateInvoices(w http.ResponseWriter, r *http.Request) {
	dryRun := r.URL.Query().Get("dry_run") == "true"

	result, err := h.invoiceSvc.Run(dryRun)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generated": result.Generated,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
		"dry_run":   dryRun,
	})
}

// --- ListReservations ---

func (h *Handlers) ListReservations(w http.ResponseWriter, r *http.Request) {
	h.listTable(w, invoice.TableReservations, "reservations")
}

// --- ListInvoices ---

func (h *Handlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	h.listTable(w, invoice.TableInvoices, "invoices")
}

func (h *Handlers) listTable(w http.ResponseWriter, table, key string) {
	rows, err := h.store.ReadAll(table)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []domain.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		key:     rows,
		"total": len(rows),
	})
}

// --- Health ---

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
