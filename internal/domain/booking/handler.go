package booking

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/domain/pass"
	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
	"github.com/deskhive/deskhive-api/internal/pkg/validator"
)

// Handler handles booking ledger HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates booking handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// PayWithPass handles POST /bookings/{id}/pay-with-pass
func (h *Handler) PayWithPass(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var req PayWithPassRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	passID, err := uuid.Parse(req.PassID)
	if err != nil {
		response.BadRequest(w, "invalid pass_id")
		return
	}

	p, err := h.service.PayWithPass(r.Context(), bookingID, userID, passID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, p)
}

// CreateExtensionPayment handles POST /bookings/{id}/payments
func (h *Handler) CreateExtensionPayment(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	var req ExtensionPaymentRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		response.BadRequest(w, "invalid amount")
		return
	}

	payment, err := h.service.CreateExtensionPayment(r.Context(), bookingID, userID, amount)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.Created(w, payment)
}

// ListPayments handles GET /bookings/{id}/payments
func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	bookingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid booking id")
		return
	}

	if _, err := h.service.GetOwned(r.Context(), bookingID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	payments, err := h.service.ListPayments(r.Context(), bookingID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, map[string]interface{}{
		"payments": payments,
		"count":    len(payments),
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrBookingNotFound):
		response.NotFound(w, "booking not found")
	case errors.Is(err, ErrPaymentNotFound):
		response.NotFound(w, "payment not found")
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, "booking belongs to another user")
	case errors.Is(err, ErrAlreadyPaid):
		response.Conflict(w, "booking payment already confirmed")
	case errors.Is(err, ErrInvalidAmount):
		response.BadRequest(w, "invalid amount")
	case errors.Is(err, pass.ErrPassNotFound):
		response.NotFound(w, "no active pass found")
	case errors.Is(err, pass.ErrForbidden):
		response.Forbidden(w, "pass belongs to another user")
	case errors.Is(err, pass.ErrInsufficientCapacity):
		response.UnprocessableEntity(w, "INSUFFICIENT_CAPACITY", "pass does not have enough remaining capacity")
	default:
		log.Error().Err(err).Msg("booking ledger operation failed")
		response.InternalError(w)
	}
}

// Routes returns booking ledger routes
func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)

	r.Post("/{id}/pay-with-pass", h.PayWithPass)
	r.Post("/{id}/payments", h.CreateExtensionPayment)
	r.Get("/{id}/payments", h.ListPayments)

	return r
}
