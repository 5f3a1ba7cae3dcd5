package pass

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

// Repository defines pass data access
type Repository interface {
	CreateIfAbsent(ctx context.Context, p *Pass) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Pass, error)
	GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*Pass, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Pass, error)
	Consume(ctx context.Context, passID, userID, bookingID uuid.UUID, units int) error
	ConsumeAny(ctx context.Context, userID, bookingID uuid.UUID, units int) (*Pass, error)
	ExpireSweep(ctx context.Context) (int64, error)
	ListUsagesByBooking(ctx context.Context, bookingID uuid.UUID) ([]Usage, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates pass repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const passColumns = `
	id, purchase_id, user_id, total_units, remaining_units, unit_kind,
	status, expires_at, created_at, updated_at`

// CreateIfAbsent inserts the pass unless one already exists for the same
// purchase. The unique constraint on purchase_id is the authoritative guard;
// ON CONFLICT DO NOTHING turns a duplicate delivery into a silent no-op
// instead of a racy check-then-insert. Returns whether a row was created.
func (r *repository) CreateIfAbsent(ctx context.Context, p *Pass) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		INSERT INTO passes (
			id, purchase_id, user_id, total_units, remaining_units,
			unit_kind, status, expires_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (purchase_id) DO NOTHING
	`, p.ID, p.PurchaseID, p.UserID, p.TotalUnits, p.RemainingUnits,
		p.UnitKind, p.Status, p.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("%w: create pass", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Pass, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Pass
	err := r.db.GetContext(ctx2, &p, `SELECT `+passColumns+` FROM passes WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("%w: get pass", ErrInternal)
	}
	return &p, nil
}

func (r *repository) GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*Pass, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Pass
	err := r.db.GetContext(ctx2, &p, `SELECT `+passColumns+` FROM passes WHERE purchase_id = $1`, purchaseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPassNotFound
		}
		return nil, fmt.Errorf("%w: get pass by purchase", ErrInternal)
	}
	return &p, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID) ([]Pass, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	passes := make([]Pass, 0)
	err := r.db.SelectContext(ctx2, &passes, `
		SELECT `+passColumns+`
		FROM passes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list passes", ErrInternal)
	}
	return passes, nil
}

// Consume debits a specific pass. The decrement runs as a single conditional
// UPDATE (remaining_units >= units in the predicate) so two concurrent
// bookings cannot overdraw the same pass; the usage row is written in the
// same transaction.
func (r *repository) Consume(ctx context.Context, passID, userID, bookingID uuid.UUID, units int) error {
	if units <= 0 {
		return ErrInvalidUnits
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		UPDATE passes
		SET remaining_units = remaining_units - $2,
		    status = CASE WHEN remaining_units - $2 = 0 THEN 'used' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
		  AND user_id = $3
		  AND status = 'active'
		  AND expires_at > NOW()
		  AND remaining_units >= $2
	`, passID, units, userID)
	if err != nil {
		return fmt.Errorf("%w: debit pass", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return r.diagnoseConsumeFailure(ctx2, passID, userID, units)
	}

	if err := insertUsage(ctx2, tx, passID, bookingID, units); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// ConsumeAny debits whichever of the user's active passes has enough
// remaining capacity, preferring the one expiring soonest. The candidate row
// is locked FOR UPDATE before the conditional decrement.
func (r *repository) ConsumeAny(ctx context.Context, userID, bookingID uuid.UUID, units int) (*Pass, error) {
	if units <= 0 {
		return nil, ErrInvalidUnits
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var p Pass
	err = tx.GetContext(ctx2, &p, `
		SELECT `+passColumns+`
		FROM passes
		WHERE user_id = $1
		  AND status = 'active'
		  AND expires_at > NOW()
		  AND remaining_units >= $2
		ORDER BY expires_at ASC
		LIMIT 1
		FOR UPDATE
	`, userID, units)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, r.diagnoseAnyFailure(ctx2, userID)
		}
		return nil, fmt.Errorf("%w: lock pass", ErrInternal)
	}

	_, err = tx.ExecContext(ctx2, `
		UPDATE passes
		SET remaining_units = remaining_units - $2,
		    status = CASE WHEN remaining_units - $2 = 0 THEN 'used' ELSE status END,
		    updated_at = NOW()
		WHERE id = $1
	`, p.ID, units)
	if err != nil {
		return nil, fmt.Errorf("%w: debit pass", ErrInternal)
	}

	if err := insertUsage(ctx2, tx, p.ID, bookingID, units); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	p.RemainingUnits -= units
	if p.RemainingUnits == 0 {
		p.Status = StatusUsed
	}
	return &p, nil
}

// ExpireSweep flips stored status for passes past expiry. Reads already treat
// those passes as expired; this keeps the stored column consistent.
func (r *repository) ExpireSweep(ctx context.Context) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE passes
		SET status = 'expired', updated_at = NOW()
		WHERE status = 'active' AND expires_at <= NOW()
	`)
	if err != nil {
		return 0, fmt.Errorf("%w: expire sweep", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows, nil
}

func (r *repository) ListUsagesByBooking(ctx context.Context, bookingID uuid.UUID) ([]Usage, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	usages := make([]Usage, 0)
	err := r.db.SelectContext(ctx2, &usages, `
		SELECT id, pass_id, booking_id, units_used, created_at
		FROM pass_usages
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: list usages", ErrInternal)
	}
	return usages, nil
}

func insertUsage(ctx context.Context, tx *sqlx.Tx, passID, bookingID uuid.UUID, units int) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pass_usages (id, pass_id, booking_id, units_used, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, NOW())
	`, passID, bookingID, units)
	if err != nil {
		return fmt.Errorf("%w: insert usage", ErrInternal)
	}
	return nil
}

// diagnoseConsumeFailure works out which error a zero-row debit means.
func (r *repository) diagnoseConsumeFailure(ctx context.Context, passID, userID uuid.UUID, units int) error {
	var p Pass
	err := r.db.GetContext(ctx, &p, `SELECT `+passColumns+` FROM passes WHERE id = $1`, passID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPassNotFound
		}
		return fmt.Errorf("%w: diagnose debit", ErrInternal)
	}
	if p.UserID != userID {
		return ErrForbidden
	}
	if p.EffectiveStatus(time.Now()) != StatusActive {
		return ErrPassNotFound
	}
	if p.RemainingUnits < units {
		return ErrInsufficientCapacity
	}
	return fmt.Errorf("%w: debit pass", ErrInternal)
}

func (r *repository) diagnoseAnyFailure(ctx context.Context, userID uuid.UUID) error {
	var active int
	err := r.db.GetContext(ctx, &active, `
		SELECT COUNT(*) FROM passes
		WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()
	`, userID)
	if err != nil {
		return fmt.Errorf("%w: diagnose pass lookup", ErrInternal)
	}
	if active == 0 {
		return ErrPassNotFound
	}
	return ErrInsufficientCapacity
}
