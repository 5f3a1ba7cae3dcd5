package credit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents credit status
type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// ValidityDays is the fixed store-credit lifetime from mint time.
const ValidityDays = 30

// Credit is store value minted from an approved refund. The amount is fixed
// at mint time; consumption is tracked through usage rows, never by editing
// the amount.
type Credit struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	UserID          uuid.UUID       `db:"user_id" json:"user_id"`
	OriginBookingID uuid.UUID       `db:"origin_booking_id" json:"origin_booking_id"`
	Amount          decimal.Decimal `db:"amount" json:"amount"`
	Status          Status          `db:"status" json:"status"`
	ExpiresAt       time.Time       `db:"expires_at" json:"expires_at"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// EffectiveStatus applies lazy expiry at read time.
func (c *Credit) EffectiveStatus(now time.Time) Status {
	if c.Status == StatusActive && now.After(c.ExpiresAt) {
		return StatusExpired
	}
	return c.Status
}

// Usage is one application of a credit (possibly partial) to a booking.
// Append-only; per credit, the used sum never exceeds the minted amount.
type Usage struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	CreditID   uuid.UUID       `db:"credit_id" json:"credit_id"`
	UserID     uuid.UUID       `db:"user_id" json:"user_id"`
	BookingID  uuid.UUID       `db:"booking_id" json:"booking_id"`
	AmountUsed decimal.Decimal `db:"amount_used" json:"amount_used"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

// Summary is the per-user reconciliation triple. Remaining + Used must equal
// Total at every observation point.
type Summary struct {
	RemainingCredit decimal.Decimal `json:"remaining_credit"`
	UsedCredit      decimal.Decimal `json:"used_credit"`
	TotalCredit     decimal.Decimal `json:"total_credit"`
}
