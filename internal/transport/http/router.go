package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter собирает маршруты API v1.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/provisioning", h.handleCreateProvisioning)
		r.Get("/provisioning/{runID}", h.handleGetRun)
		r.Get("/provisioning/{runID}/timeline", h.handleGetRunTimeline)
		r.Post("/provisioning/{runID}/resume", h.handleResumeRun)

		r.Get("/domains/{domainID}", h.handleGetDomain)
		r.Get("/domains/{domainID}/timeline", h.handleGetDomainTimeline)
		r.Get("/domains/{domainID}/recovery-quote", h.handleRecoveryQuote)
		r.Post("/domains/{domainID}/recovery-payment", h.handleRecoveryPayment)

		r.Get("/customers/{customerID}/orders", h.handleListOrders)
	})

	return r
}
