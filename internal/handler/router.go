package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	custommiddleware "github.com/mmeshcher/pledge-service/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса приёма пожертвований.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/", h.DonationForm)
	r.Get("/healthz", h.Health)

	r.Post("/create-checkout-session", h.CreateCheckoutSession)
	r.Post("/cancel-subscription", h.CancelSubscription)

	r.Get("/api/ledger", h.GetLedger)

	r.Handle("/*", http.FileServer(http.Dir(h.staticDir)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}
