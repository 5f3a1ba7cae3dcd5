package gateway

import "time"

// Gateway transaction statuses as delivered in webhook payloads.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// WebhookPayload is the gateway's transaction notification. ReferenceNo
// routes the event: purchase order numbers carry the package prefix,
// everything else is a booking payment reference.
type WebhookPayload struct {
	TransactionID string    `json:"transaction_id" validate:"required"`
	ReferenceNo   string    `json:"reference_no" validate:"required"`
	Status        string    `json:"status" validate:"required,oneof=completed failed cancelled"`
	PaymentMethod string    `json:"payment_method" validate:"omitempty,payment_method"`
	PaidAt        time.Time `json:"paid_at"`
}
