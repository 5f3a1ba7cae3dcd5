package refund

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents a refund transaction's workflow state
type Status string

const (
	StatusRequested Status = "requested"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Transaction is the audit record of one refund cycle on a booking. The
// booking's refund_status gates new requests, so a booking never carries two
// open transactions at once.
type Transaction struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	BookingID     uuid.UUID       `db:"booking_id" json:"booking_id"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	CreditGranted decimal.Decimal `db:"credit_granted" json:"credit_granted"`
	Reason        string          `db:"reason" json:"reason"`
	Status        Status          `db:"status" json:"status"`
	DecisionNote  sql.NullString  `db:"decision_note" json:"decision_note,omitempty"`
	RequestedAt   time.Time       `db:"requested_at" json:"requested_at"`
	DecidedAt     sql.NullTime    `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
