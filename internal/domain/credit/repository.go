package credit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// Repository defines credit ledger data access
type Repository interface {
	Mint(ctx context.Context, c *Credit) error
	MintTx(ctx context.Context, tx *sqlx.Tx, c *Credit) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]Credit, error)
	Apply(ctx context.Context, userID, bookingID uuid.UUID, amount decimal.Decimal) ([]Usage, error)
	Summary(ctx context.Context, userID uuid.UUID) (*Summary, error)
	SumUsageByBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error)
	ExpireSweep(ctx context.Context) (int64, error)
}

// CreditRepository provides credit ledger operations
type CreditRepository struct {
	db *sqlx.DB
}

// NewRepository creates credit repository
func NewRepository(db *sqlx.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

const creditColumns = `id, user_id, origin_booking_id, amount, status, expires_at, created_at`

func (r *CreditRepository) Mint(ctx context.Context, c *Credit) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	if err := r.MintTx(ctx2, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// MintTx inserts a credit within an external transaction. Used by refund
// approval so the mint commits or rolls back together with the status
// updates. This method does NOT commit or rollback — the caller is
// responsible.
func (r *CreditRepository) MintTx(ctx context.Context, tx *sqlx.Tx, c *Credit) error {
	if c.Amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO credits (id, user_id, origin_booking_id, amount, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, c.ID, c.UserID, c.OriginBookingID, c.Amount, c.Status, c.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%w: insert credit", ErrInternal)
	}
	return nil
}

// ListActive returns active, unexpired credits. Expiry is a read-time
// filter; rows are never deleted.
func (r *CreditRepository) ListActive(ctx context.Context, userID uuid.UUID) ([]Credit, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	credits := make([]Credit, 0)
	err := r.db.SelectContext(ctx2, &credits, `
		SELECT `+creditColumns+`
		FROM credits
		WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()
		ORDER BY created_at ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list credits", ErrInternal)
	}
	return credits, nil
}

// Apply consumes amount from the user's active credits, oldest first. The
// candidate rows are locked FOR UPDATE so concurrent applications serialize;
// consumption is recorded as usage rows, and credits drained to zero flip to
// used status. The credit amount column itself is never mutated.
func (r *CreditRepository) Apply(ctx context.Context, userID, bookingID uuid.UUID, amount decimal.Decimal) ([]Usage, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	var credits []Credit
	err = tx.SelectContext(ctx2, &credits, `
		SELECT `+creditColumns+`
		FROM credits
		WHERE user_id = $1 AND status = 'active' AND expires_at > NOW()
		ORDER BY created_at ASC
		FOR UPDATE
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: lock credits", ErrInternal)
	}
	if len(credits) == 0 {
		return nil, ErrInsufficientCredit
	}

	used, err := usedByCredit(ctx2, tx, credits)
	if err != nil {
		return nil, err
	}

	// Check the balance covers the request before writing anything.
	available := decimal.Zero
	for _, c := range credits {
		available = available.Add(c.Amount.Sub(used[c.ID]))
	}
	if available.LessThan(amount) {
		return nil, ErrInsufficientCredit
	}

	usages := make([]Usage, 0, len(credits))
	left := amount
	for _, c := range credits {
		if left.LessThanOrEqual(decimal.Zero) {
			break
		}
		free := c.Amount.Sub(used[c.ID])
		if free.LessThanOrEqual(decimal.Zero) {
			continue
		}
		take := decimal.Min(free, left)

		u := Usage{
			ID:         uuid.New(),
			CreditID:   c.ID,
			UserID:     userID,
			BookingID:  bookingID,
			AmountUsed: take,
		}
		_, err := tx.ExecContext(ctx2, `
			INSERT INTO credit_usages (id, credit_id, user_id, booking_id, amount_used, created_at)
			VALUES ($1, $2, $3, $4, $5, NOW())
		`, u.ID, u.CreditID, u.UserID, u.BookingID, u.AmountUsed)
		if err != nil {
			return nil, fmt.Errorf("%w: insert usage", ErrInternal)
		}
		usages = append(usages, u)

		if used[c.ID].Add(take).Equal(c.Amount) {
			if _, err := tx.ExecContext(ctx2, `UPDATE credits SET status = 'used' WHERE id = $1`, c.ID); err != nil {
				return nil, fmt.Errorf("%w: mark credit used", ErrInternal)
			}
		}
		left = left.Sub(take)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return usages, nil
}

// Summary returns the reconciliation triple for a user.
func (r *CreditRepository) Summary(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var remaining decimal.Decimal
	err := r.db.GetContext(ctx2, &remaining, `
		SELECT COALESCE(SUM(c.amount - COALESCE(u.used, 0)), 0)
		FROM credits c
		LEFT JOIN (
			SELECT credit_id, SUM(amount_used) AS used
			FROM credit_usages
			GROUP BY credit_id
		) u ON u.credit_id = c.id
		WHERE c.user_id = $1 AND c.status = 'active' AND c.expires_at > NOW()
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: sum remaining", ErrInternal)
	}

	var usedTotal decimal.Decimal
	err = r.db.GetContext(ctx2, &usedTotal, `
		SELECT COALESCE(SUM(amount_used), 0) FROM credit_usages WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: sum used", ErrInternal)
	}

	return &Summary{
		RemainingCredit: remaining,
		UsedCredit:      usedTotal,
		TotalCredit:     remaining.Add(usedTotal),
	}, nil
}

// SumUsageByBooking totals the credit applied to one booking. The refund
// calculator uses this to exclude credit from the cash-eligible amount.
func (r *CreditRepository) SumUsageByBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var total decimal.Decimal
	err := r.db.GetContext(ctx2, &total, `
		SELECT COALESCE(SUM(amount_used), 0) FROM credit_usages WHERE booking_id = $1
	`, bookingID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: sum booking usage", ErrInternal)
	}
	return total, nil
}

// ExpireSweep flips stored status for credits past expiry.
func (r *CreditRepository) ExpireSweep(ctx context.Context) (int64, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE credits SET status = 'expired'
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

func usedByCredit(ctx context.Context, tx *sqlx.Tx, credits []Credit) (map[uuid.UUID]decimal.Decimal, error) {
	ids := make([]uuid.UUID, len(credits))
	for i, c := range credits {
		ids[i] = c.ID
	}

	rows, err := tx.QueryxContext(ctx, `
		SELECT credit_id, COALESCE(SUM(amount_used), 0) AS used
		FROM credit_usages
		WHERE credit_id = ANY($1)
		GROUP BY credit_id
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("%w: sum usages", ErrInternal)
	}
	defer rows.Close()

	used := make(map[uuid.UUID]decimal.Decimal, len(credits))
	for _, c := range credits {
		used[c.ID] = decimal.Zero
	}
	for rows.Next() {
		var id uuid.UUID
		var sum decimal.Decimal
		if err := rows.Scan(&id, &sum); err != nil {
			return nil, fmt.Errorf("%w: scan usage sum", ErrInternal)
		}
		used[id] = sum
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate usage sums", ErrInternal)
	}
	return used, nil
}
