package purchase

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes returns buyer-facing purchase routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Post("/confirm", h.Confirm)

	return r
}

// AdminRoutes returns admin-only purchase routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Post("/{id}/complete", h.AdminComplete)

	return r
}
