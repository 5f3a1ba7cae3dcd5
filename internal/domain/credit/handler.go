package credit

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
	"github.com/deskhive/deskhive-api/internal/pkg/validator"
)

// Handler handles credit HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates credit handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /credits
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	credits, summary, err := h.service.ListForUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"credits":          credits,
		"count":            len(credits),
		"remaining_credit": summary.RemainingCredit,
		"used_credit":      summary.UsedCredit,
		"total_credit":     summary.TotalCredit,
	})
}

// Apply handles POST /credits/apply
func (h *Handler) Apply(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ApplyCreditRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	bookingID, err := uuid.Parse(req.BookingID)
	if err != nil {
		response.BadRequest(w, "invalid booking_id")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "invalid amount")
		return
	}

	usages, err := h.service.Apply(r.Context(), userID, bookingID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"usages":  usages,
		"applied": amount,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientCredit):
		response.UnprocessableEntity(w, "INSUFFICIENT_CREDIT", "credit balance does not cover the requested amount")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "invalid amount")
	case errors.Is(err, ErrCreditNotFound):
		response.NotFound(w, "credit not found")
	default:
		log.Error().Err(err).Msg("credit operation failed")
		response.InternalError(w)
	}
}

// Routes returns credit routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Get("/", h.List)
	r.Post("/apply", h.Apply)

	return r
}
