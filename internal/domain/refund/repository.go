package refund

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const queryTimeout = 5 * time.Second

// Repository defines refund transaction data access
type Repository interface {
	Request(ctx context.Context, t *Transaction, allowRerequest bool) error
	Approve(ctx context.Context, id uuid.UUID, mint func(ctx context.Context, tx *sqlx.Tx, t *Transaction) error) (*Transaction, error)
	Reject(ctx context.Context, id uuid.UUID, note string) (*Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	ListRequested(ctx context.Context) ([]Transaction, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates refund repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const txColumns = `
	id, user_id, booking_id, amount, credit_granted, reason, status,
	decision_note, requested_at, decided_at, created_at`

// Request moves the booking into requested state and records the audit row in
// one transaction. The conditional booking update is the gate: a booking
// already in a refund cycle yields zero rows, and the whole thing rolls back
// with a conflict. Rejected bookings may re-enter only when configured to.
func (r *repository) Request(ctx context.Context, t *Transaction, allowRerequest bool) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	allowed := []string{"none"}
	if allowRerequest {
		allowed = append(allowed, "rejected")
	}
	result, err := tx.ExecContext(ctx2, `
		UPDATE bookings
		SET refund_status = 'requested', refund_reason = $2,
		    refund_requested_at = $3, updated_at = NOW()
		WHERE id = $1 AND refund_status = ANY($4)
	`, t.BookingID, t.Reason, t.RequestedAt, pq.Array(allowed))
	if err != nil {
		return fmt.Errorf("%w: mark booking requested", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrRefundConflict
	}

	_, err = tx.ExecContext(ctx2, `
		INSERT INTO refund_transactions
			(id, user_id, booking_id, amount, credit_granted, reason, status, requested_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
	`, t.ID, t.UserID, t.BookingID, t.Amount, t.CreditGranted, t.Reason, t.Status, t.RequestedAt)
	if err != nil {
		return fmt.Errorf("%w: insert refund transaction", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit tx", ErrInternal)
	}
	return nil
}

// Approve finalizes a requested refund: the transaction flips to approved,
// the booking follows, its seat is released, and the mint callback runs
// inside the same transaction so the credit appears atomically with the
// decision.
func (r *repository) Approve(ctx context.Context, id uuid.UUID, mint func(ctx context.Context, tx *sqlx.Tx, t *Transaction) error) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	t, err := r.lockRequested(ctx2, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx2, `
		UPDATE refund_transactions
		SET status = 'approved', credit_granted = amount, decided_at = $2
		WHERE id = $1
	`, id, now)
	if err != nil {
		return nil, fmt.Errorf("%w: approve refund", ErrInternal)
	}

	// Seat released, payment and audit fields kept. The booking row stays
	// as the audit record.
	_, err = tx.ExecContext(ctx2, `
		UPDATE bookings
		SET refund_status = 'approved', refund_decided_at = $2,
		    seat_label = NULL, updated_at = NOW()
		WHERE id = $1
	`, t.BookingID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: approve booking refund", ErrInternal)
	}

	if err := mint(ctx2, tx, t); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	t.Status = StatusApproved
	t.CreditGranted = t.Amount
	t.DecidedAt = sql.NullTime{Time: now, Valid: true}
	return t, nil
}

// Reject finalizes a requested refund without minting anything.
func (r *repository) Reject(ctx context.Context, id uuid.UUID, note string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	t, err := r.lockRequested(ctx2, tx, id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx2, `
		UPDATE refund_transactions
		SET status = 'rejected', decision_note = $2, decided_at = $3
		WHERE id = $1
	`, id, note, now)
	if err != nil {
		return nil, fmt.Errorf("%w: reject refund", ErrInternal)
	}

	_, err = tx.ExecContext(ctx2, `
		UPDATE bookings
		SET refund_status = 'rejected', refund_decided_at = $2, updated_at = NOW()
		WHERE id = $1
	`, t.BookingID, now)
	if err != nil {
		return nil, fmt.Errorf("%w: reject booking refund", ErrInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	t.Status = StatusRejected
	t.DecisionNote = sql.NullString{String: note, Valid: true}
	t.DecidedAt = sql.NullTime{Time: now, Valid: true}
	return t, nil
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	err := r.db.GetContext(ctx2, &t, `SELECT `+txColumns+` FROM refund_transactions WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("%w: get refund transaction", ErrInternal)
	}
	return &t, nil
}

// ListRequested returns open transactions awaiting a decision, oldest first.
func (r *repository) ListRequested(ctx context.Context) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	txs := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &txs, `
		SELECT `+txColumns+`
		FROM refund_transactions
		WHERE status = 'requested'
		ORDER BY requested_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: list requested refunds", ErrInternal)
	}
	return txs, nil
}

func (r *repository) lockRequested(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*Transaction, error) {
	var t Transaction
	err := tx.GetContext(ctx, &t, `
		SELECT `+txColumns+` FROM refund_transactions WHERE id = $1 FOR UPDATE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRefundNotFound
		}
		return nil, fmt.Errorf("%w: lock refund transaction", ErrInternal)
	}
	if t.Status != StatusRequested {
		return nil, ErrNotRequested
	}
	return &t, nil
}
