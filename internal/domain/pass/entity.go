package pass

import (
	"time"

	"github.com/google/uuid"
)

// Status represents pass status
type Status string

const (
	StatusActive  Status = "active"
	StatusUsed    Status = "used"
	StatusExpired Status = "expired"
)

// Pass is a unit of usable entitlement derived from exactly one purchase.
// The database enforces at most one pass per purchase (unique purchase_id)
// and 0 <= remaining_units <= total_units.
type Pass struct {
	ID             uuid.UUID `db:"id" json:"id"`
	PurchaseID     uuid.UUID `db:"purchase_id" json:"purchase_id"`
	UserID         uuid.UUID `db:"user_id" json:"user_id"`
	TotalUnits     int       `db:"total_units" json:"total_units"`
	RemainingUnits int       `db:"remaining_units" json:"remaining_units"`
	UnitKind       string    `db:"unit_kind" json:"unit_kind"`
	Status         Status    `db:"status" json:"status"`
	ExpiresAt      time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// EffectiveStatus applies lazy expiry: a stored ACTIVE pass whose expiry has
// passed reads as EXPIRED whether or not the sweep has run.
func (p *Pass) EffectiveStatus(now time.Time) Status {
	if p.Status == StatusActive && now.After(p.ExpiresAt) {
		return StatusExpired
	}
	return p.Status
}

// Usage records one capacity debit against a booking. Append-only.
type Usage struct {
	ID        uuid.UUID `db:"id" json:"id"`
	PassID    uuid.UUID `db:"pass_id" json:"pass_id"`
	BookingID uuid.UUID `db:"booking_id" json:"booking_id"`
	UnitsUsed int       `db:"units_used" json:"units_used"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
