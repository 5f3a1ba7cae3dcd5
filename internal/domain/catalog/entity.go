package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UnitKind describes what a package's pass units are counted in.
type UnitKind string

const (
	UnitHours   UnitKind = "hours"
	UnitEntries UnitKind = "entries"
)

// Package is a purchasable bundle of passes.
type Package struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	Name         string          `db:"name" json:"name"`
	Description  string          `db:"description" json:"description"`
	Price        decimal.Decimal `db:"price" json:"price"`
	PassUnits    int             `db:"pass_units" json:"pass_units"`
	UnitKind     UnitKind        `db:"unit_kind" json:"unit_kind"`
	ValidityDays int             `db:"validity_days" json:"validity_days"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}
