// Package api exposes the back-office pipelines over HTTP.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/lettia/backoffice/internal/invoice"
	"github.com/lettia/backoffice/internal/store"
	"github.com/lettia/backoffice/internal/sync"
)

// NewRouter creates the Chi router with all API routes mounted.
func NewRouter(st store.Store, syncSvc *sync.Service, invoiceSvc *invoice.Service) http.Handler {
	h := &Handlers{
		store:      st,
		syncSvc:    syncSvc,
		invoiceSvc: invoiceSvc,
	}

	r := chi.NewRouter()

	// Middleware.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.SetHeader("Content-Type", "application/json"))

	r.Route("/api/v1", func(r chi.Router) {
		// Pipelines.
		r.Post("/tasks/sync-reservations", h.SyncReservations)
		r.Post("/tasks/generate-invoices", h.GenerateInvoices)

		// Tables.
		r.Get("/reservations", h.ListReservations)
		r.Get("/invoices", h.ListInvoices)
	})

	r.Get("/healthz", h.Health)

	return r
}
