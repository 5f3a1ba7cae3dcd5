package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository provides package catalog reads
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates catalog repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetByID returns a package by id
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Package, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Package
	err := r.db.GetContext(ctx2, &p, `
		SELECT id, name, description, price, pass_units, unit_kind, validity_days, active, created_at
		FROM packages
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("%w: get package", ErrInternal)
	}
	return &p, nil
}

// ListActive returns all purchasable packages
func (r *Repository) ListActive(ctx context.Context) ([]Package, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	packages := make([]Package, 0)
	err := r.db.SelectContext(ctx2, &packages, `
		SELECT id, name, description, price, pass_units, unit_kind, validity_days, active, created_at
		FROM packages
		WHERE active = true
		ORDER BY price ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list packages", ErrInternal)
	}
	return packages, nil
}
