package booking

import (
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundStatus represents a booking's refund lifecycle state
type RefundStatus string

const (
	RefundNone      RefundStatus = "none"
	RefundRequested RefundStatus = "requested"
	RefundApproved  RefundStatus = "approved"
	RefundRejected  RefundStatus = "rejected"
)

// PaymentStatus represents a gateway payment's state
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
	PaymentFailed    PaymentStatus = "failed"
)

// Booking carries the ledger-facing fields of a seat booking. Seat
// availability and overlap logic live in the booking collaborator; this
// module only reads and writes payment, pass-usage and refund state.
type Booking struct {
	ID               uuid.UUID      `db:"id" json:"id"`
	UserID           uuid.UUID      `db:"user_id" json:"user_id"`
	SeatLabel        sql.NullString `db:"seat_label" json:"seat_label,omitempty"`
	ReferenceNo      string         `db:"reference_no" json:"reference_no"`
	StartAt          time.Time      `db:"start_at" json:"start_at"`
	EndAt            time.Time      `db:"end_at" json:"end_at"`
	ConfirmedPayment bool           `db:"confirmed_payment" json:"confirmed_payment"`
	PurchaseID       uuid.NullUUID  `db:"purchase_id" json:"purchase_id,omitempty"`
	PassUsed         bool           `db:"pass_used" json:"pass_used"`
	RefundStatus     RefundStatus   `db:"refund_status" json:"refund_status"`
	RefundReason     sql.NullString `db:"refund_reason" json:"refund_reason,omitempty"`
	RefundRequestedAt sql.NullTime  `db:"refund_requested_at" json:"refund_requested_at,omitempty"`
	RefundDecidedAt  sql.NullTime   `db:"refund_decided_at" json:"refund_decided_at,omitempty"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updated_at"`
}

// DurationHours is the billable length of the booking, rounded up to whole
// hours with a one-hour floor.
func (b *Booking) DurationHours() int {
	hours := int(math.Ceil(b.EndAt.Sub(b.StartAt).Hours()))
	if hours < 1 {
		hours = 1
	}
	return hours
}

// Payment is one external payment-gateway transaction. A booking accumulates
// several over its lifetime: the original charge plus extension or reschedule
// charges, each with a reference derived from the booking's.
type Payment struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BookingID   uuid.UUID       `db:"booking_id" json:"booking_id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	ReferenceNo string          `db:"reference_no" json:"reference_no"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Method      sql.NullString  `db:"method" json:"method,omitempty"`
	Status      PaymentStatus   `db:"status" json:"status"`
	PaidAt      sql.NullTime    `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// ExtensionReference derives the gateway reference for the nth extension
// payment of a booking.
func ExtensionReference(bookingRef string, n int) string {
	return fmt.Sprintf("%s-EXT%d", bookingRef, n)
}
