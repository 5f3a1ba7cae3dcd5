package purchase

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

// Repository defines purchase data access
type Repository interface {
	Create(ctx context.Context, p *Purchase) error
	GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error)
	GetByOrderNo(ctx context.Context, orderNo string) (*Purchase, error)
	CompleteIfPending(ctx context.Context, id uuid.UUID, method string, activatedAt, expiresAt time.Time) (bool, error)
	FailIfPending(ctx context.Context, id uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Purchase, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates purchase repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const purchaseColumns = `
	id, user_id, package_id, quantity, amount, payment_status, payment_method,
	order_no, pass_units, unit_kind, validity_days, activated_at, expires_at,
	created_at, updated_at`

func (r *repository) Create(ctx context.Context, p *Purchase) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO purchases (
			id, user_id, package_id, quantity, amount, payment_status,
			order_no, pass_units, unit_kind, validity_days, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`, p.ID, p.UserID, p.PackageID, p.Quantity, p.Amount, p.PaymentStatus,
		p.OrderNo, p.PassUnits, p.UnitKind, p.ValidityDays)
	if err != nil {
		return fmt.Errorf("%w: create purchase", ErrInternal)
	}
	return nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Purchase, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Purchase
	err := r.db.GetContext(ctx2, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("%w: get purchase", ErrInternal)
	}
	return &p, nil
}

func (r *repository) GetByOrderNo(ctx context.Context, orderNo string) (*Purchase, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Purchase
	err := r.db.GetContext(ctx2, &p, `SELECT `+purchaseColumns+` FROM purchases WHERE order_no = $1`, orderNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("%w: get purchase by order", ErrInternal)
	}
	return &p, nil
}

// CompleteIfPending atomically transitions the purchase to completed. The
// WHERE clause on payment_status is what makes concurrent duplicate
// completion signals safe: only one caller can move the row out of pending.
// Returns false when the row was not pending (already completed, failed, or
// a concurrent caller won the race).
func (r *repository) CompleteIfPending(ctx context.Context, id uuid.UUID, method string, activatedAt, expiresAt time.Time) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE purchases
		SET payment_status = $2,
		    payment_method = COALESCE(NULLIF($3, ''), payment_method),
		    activated_at   = $4,
		    expires_at     = $5,
		    updated_at     = NOW()
		WHERE id = $1 AND payment_status = $6
	`, id, StatusCompleted, method, activatedAt, expiresAt, StatusPending)
	if err != nil {
		return false, fmt.Errorf("%w: complete purchase", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

// FailIfPending marks a pending purchase as failed. Completed purchases are
// never demoted.
func (r *repository) FailIfPending(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE purchases
		SET payment_status = $2, updated_at = NOW()
		WHERE id = $1 AND payment_status = $3
	`, id, StatusFailed, StatusPending)
	if err != nil {
		return false, fmt.Errorf("%w: fail purchase", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Purchase, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	purchases := make([]Purchase, 0)
	err := r.db.SelectContext(ctx2, &purchases, `
		SELECT `+purchaseColumns+`
		FROM purchases
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list purchases", ErrInternal)
	}
	return purchases, nil
}
