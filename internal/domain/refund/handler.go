package refund

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
	"github.com/deskhive/deskhive-api/internal/pkg/validator"
)

// Handler handles refund HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates refund handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Request handles POST /refunds
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RequestRefundRequest
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

	result, err := h.service.Request(r.Context(), bookingID, userID, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, result)
}

// Preview handles GET /refunds/preview/{bookingId}
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingId"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	breakdown, err := h.service.Preview(r.Context(), bookingID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{"refund_details": breakdown})
}

// ListRequested handles GET /admin/refunds
func (h *Handler) ListRequested(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.ListRequested(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"refunds": txs,
		"count":   len(txs),
	})
}

// Approve handles POST /admin/refunds/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid refund id")
		return
	}

	t, err := h.service.Approve(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, t)
}

// Reject handles POST /admin/refunds/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid refund id")
		return
	}

	var req RejectRefundRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	t, err := h.service.Reject(r.Context(), id, req.Note)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, t)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrRefundNotFound):
		response.NotFound(w, "refund transaction not found")
	case errors.Is(err, ErrRefundConflict):
		response.Conflict(w, "refund already requested or processed for this booking")
	case errors.Is(err, ErrNotRequested):
		response.Conflict(w, "refund transaction already decided")
	case errors.Is(err, ErrNotConfirmed):
		response.UnprocessableEntity(w, "NO_CONFIRMED_PAYMENT", "booking has no confirmed payment to refund")
	case errors.Is(err, booking.ErrBookingNotFound):
		response.NotFound(w, "booking not found")
	case errors.Is(err, booking.ErrNotOwner):
		response.Forbidden(w, "booking belongs to another user")
	default:
		log.Error().Err(err).Msg("refund operation failed")
		response.InternalError(w)
	}
}

// Routes returns user-facing refund routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/", h.Request)
	r.Get("/preview/{bookingId}", h.Preview)

	return r
}

// AdminRoutes returns admin refund review routes
func (h *Handler) AdminRoutes(authMiddleware, adminMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(adminMiddleware)

	r.Get("/", h.ListRequested)
	r.Post("/{id}/approve", h.Approve)
	r.Post("/{id}/reject", h.Reject)

	return r
}
