package pass

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
)

// Handler handles pass HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates pass handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /passes
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	passes, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Msg("list passes failed")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{
		"passes": passes,
		"count":  len(passes),
	})
}

// Routes returns pass routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)

	return r
}
