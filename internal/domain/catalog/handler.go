package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/pkg/response"
)

// Handler handles catalog HTTP requests
type Handler struct {
	repo *Repository
}

// NewHandler creates catalog handler
func NewHandler(repo *Repository) *Handler {
	return &Handler{repo: repo}
}

// List handles GET /packages
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	packages, err := h.repo.ListActive(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list packages failed")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{
		"packages": packages,
		"count":    len(packages),
	})
}

// Routes returns catalog routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	return r
}
