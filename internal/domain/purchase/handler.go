package purchase

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/domain/catalog"
	"github.com/deskhive/deskhive-api/internal/middleware"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
	"github.com/deskhive/deskhive-api/internal/pkg/validator"
)

// Handler handles purchase HTTP requests
type Handler struct {
	service *Service
}

// NewHandler creates purchase handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Create handles POST /purchases
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreatePurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	packageID, err := uuid.Parse(req.PackageID)
	if err != nil {
		response.BadRequest(w, "invalid package_id")
		return
	}

	p, err := h.service.Create(r.Context(), userID, packageID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrPackageNotFound):
			response.NotFound(w, "package not found")
		case errors.Is(err, catalog.ErrPackageInactive):
			response.UnprocessableEntity(w, "PACKAGE_INACTIVE", "package is not available for purchase")
		case errors.Is(err, ErrInvalidQuantity):
			response.BadRequest(w, "invalid quantity")
		default:
			log.Error().Err(err).Msg("create purchase failed")
			response.InternalError(w)
		}
		return
	}

	response.Created(w, p)
}

// Confirm handles POST /purchases/confirm. Called by the client after the
// gateway redirect; races freely with the gateway webhook.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ConfirmPurchaseRequest
	if err := response.DecodeJSON(r.Body, &req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	purchaseID, err := uuid.Parse(req.PurchaseID)
	if err != nil {
		response.BadRequest(w, "invalid purchase_id")
		return
	}

	if _, err := h.service.GetOwned(r.Context(), purchaseID, userID); err != nil {
		h.writeError(w, err)
		return
	}

	result, err := h.service.Complete(r.Context(), purchaseID, req.PaymentMethod)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

// List handles GET /purchases
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	purchases, err := h.service.ListByUser(r.Context(), userID, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("list purchases failed")
		response.InternalError(w)
		return
	}
	response.OK(w, map[string]interface{}{
		"purchases": purchases,
		"count":     len(purchases),
	})
}

// AdminComplete handles POST /admin/purchases/{id}/complete, the manual
// override path. Runs through the same guard as webhook and client confirm.
func (h *Handler) AdminComplete(w http.ResponseWriter, r *http.Request) {
	purchaseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.BadRequest(w, "invalid purchase id")
		return
	}

	result, err := h.service.Complete(r.Context(), purchaseID, "")
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.OK(w, result)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrPurchaseNotFound):
		response.NotFound(w, "purchase not found")
	case errors.Is(err, ErrNotOwner):
		response.Forbidden(w, "purchase belongs to another user")
	case errors.Is(err, ErrPurchaseFailed):
		response.Conflict(w, "purchase payment has failed")
	default:
		log.Error().Err(err).Msg("purchase operation failed")
		response.InternalError(w)
	}
}
