package purchase

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents purchase payment status
type PaymentStatus string

const (
	StatusPending   PaymentStatus = "pending"
	StatusCompleted PaymentStatus = "completed"
	StatusFailed    PaymentStatus = "failed"
)

// OrderPrefix marks gateway references that belong to package purchases.
const OrderPrefix = "PKG-"

// Purchase represents one package-buying transaction.
//
// PassUnits, UnitKind and ValidityDays are snapshotted from the package at
// creation time so later catalog edits cannot change what was sold.
type Purchase struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	UserID        uuid.UUID       `db:"user_id" json:"user_id"`
	PackageID     uuid.UUID       `db:"package_id" json:"package_id"`
	Quantity      int             `db:"quantity" json:"quantity"`
	Amount        decimal.Decimal `db:"amount" json:"amount"`
	PaymentStatus PaymentStatus   `db:"payment_status" json:"payment_status"`
	PaymentMethod sql.NullString  `db:"payment_method" json:"payment_method,omitempty"`
	OrderNo       string          `db:"order_no" json:"order_no"`
	PassUnits     int             `db:"pass_units" json:"pass_units"`
	UnitKind      string          `db:"unit_kind" json:"unit_kind"`
	ValidityDays  int             `db:"validity_days" json:"validity_days"`
	ActivatedAt   sql.NullTime    `db:"activated_at" json:"activated_at,omitempty"`
	ExpiresAt     sql.NullTime    `db:"expires_at" json:"expires_at,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// IsCompleted checks if the purchase reached COMPLETED
func (p *Purchase) IsCompleted() bool {
	return p.PaymentStatus == StatusCompleted
}

// TotalPassUnits is the capacity the purchase entitles the buyer to.
func (p *Purchase) TotalPassUnits() int {
	return p.PassUnits * p.Quantity
}

// NewOrderNo generates an external-facing order number used as the gateway
// idempotency key.
func NewOrderNo() string {
	return OrderPrefix + strings.ToUpper(uuid.New().String()[:18])
}

// IsPurchaseOrderNo reports whether a gateway reference belongs to a purchase.
func IsPurchaseOrderNo(ref string) bool {
	return strings.HasPrefix(ref, OrderPrefix)
}
