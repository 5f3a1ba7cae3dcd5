package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/purchase"
	"github.com/deskhive/deskhive-api/internal/pkg/response"
	"github.com/deskhive/deskhive-api/internal/pkg/validator"
)

const (
	signatureHeader = "X-Gateway-Signature"
	dedupTTL        = 24 * time.Hour
	maxBodyBytes    = 1 << 20
)

// Handler is the payment gateway webhook boundary. Signature failures get
// 401; after that the gateway always gets 200, business outcome or not, so
// it stops redelivering. Correctness under redelivery rests on the ledger's
// conditional transitions, with a Redis seen-marker as a cheap fast path.
type Handler struct {
	secret    []byte
	purchases *purchase.Service
	bookings  *booking.Service
	rdb       *redis.Client
}

// NewHandler creates gateway webhook handler. rdb may be nil; dedup then
// falls through to the database guards.
func NewHandler(secret string, purchases *purchase.Service, bookings *booking.Service, rdb *redis.Client) *Handler {
	return &Handler{secret: []byte(secret), purchases: purchases, bookings: bookings, rdb: rdb}
}

// HandleWebhook handles POST /webhooks/gateway
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		response.BadRequest(w, "unreadable body")
		return
	}

	if !VerifySignature(h.secret, body, r.Header.Get(signatureHeader)) {
		log.Warn().Msg("gateway webhook signature mismatch")
		response.Unauthorized(w, "invalid signature")
		return
	}

	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.BadRequest(w, "invalid payload")
		return
	}
	if details := validator.Validate(payload); details != nil {
		response.ValidationError(w, details)
		return
	}

	if h.alreadySeen(r.Context(), &payload) {
		log.Debug().
			Str("transaction_id", payload.TransactionID).
			Str("reference_no", payload.ReferenceNo).
			Msg("duplicate webhook delivery, skipping")
		response.OK(w, map[string]string{"status": "ok"})
		return
	}

	if err := h.process(r.Context(), &payload); err != nil {
		// Acknowledged regardless: the gateway contract is 200 once the
		// signature checks out. Failures are logged for operators only.
		log.Error().Err(err).
			Str("transaction_id", payload.TransactionID).
			Str("reference_no", payload.ReferenceNo).
			Str("status", payload.Status).
			Msg("gateway webhook processing failed")
	} else {
		h.markSeen(r.Context(), &payload)
	}

	response.OK(w, map[string]string{"status": "ok"})
}

// process routes the event by reference: purchase order numbers carry the
// package prefix, everything else is a booking payment.
func (h *Handler) process(ctx context.Context, p *WebhookPayload) error {
	completed := p.Status == StatusCompleted

	if purchase.IsPurchaseOrderNo(p.ReferenceNo) {
		if completed {
			_, err := h.purchases.CompleteByOrderNo(ctx, p.ReferenceNo, p.PaymentMethod)
			return err
		}
		return h.purchases.FailByOrderNo(ctx, p.ReferenceNo)
	}

	if completed {
		return h.bookings.ConfirmPaymentByReference(ctx, p.ReferenceNo, p.PaymentMethod, p.PaidAt)
	}
	return h.bookings.FailPaymentByReference(ctx, p.ReferenceNo)
}

func dedupKey(p *WebhookPayload) string {
	return "webhook:gateway:" + p.TransactionID + ":" + p.Status
}

func (h *Handler) alreadySeen(ctx context.Context, p *WebhookPayload) bool {
	if h.rdb == nil {
		return false
	}
	n, err := h.rdb.Exists(ctx, dedupKey(p)).Result()
	if err != nil {
		// Redis down is not a reason to drop the event; the conditional
		// DB transitions stay authoritative.
		log.Warn().Err(err).Msg("webhook dedup check failed")
		return false
	}
	return n > 0
}

func (h *Handler) markSeen(ctx context.Context, p *WebhookPayload) {
	if h.rdb == nil {
		return
	}
	if err := h.rdb.Set(ctx, dedupKey(p), 1, dedupTTL).Err(); err != nil {
		log.Warn().Err(err).Msg("webhook dedup mark failed")
	}
}

// Routes returns gateway webhook routes. No auth middleware: the signature
// is the authentication.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/gateway", h.HandleWebhook)
	return r
}
