package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const queryTimeout = 3 * time.Second

// Repository defines booking ledger data access
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	GetByReference(ctx context.Context, referenceNo string) (*Booking, error)
	ListPaymentsByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error)
	GetPaymentByReference(ctx context.Context, referenceNo string) (*Payment, error)
	CreateExtensionPayment(ctx context.Context, b *Booking, amount decimal.Decimal) (*Payment, error)
	ConfirmPaymentByReference(ctx context.Context, referenceNo, method string, paidAt time.Time) (bool, error)
	FailPaymentByReference(ctx context.Context, referenceNo string) error
	SetConfirmedPayment(ctx context.Context, bookingID uuid.UUID) error
	MarkPassUsedIfNot(ctx context.Context, bookingID uuid.UUID) (bool, error)
	UnmarkPassUsed(ctx context.Context, bookingID uuid.UUID) error
	AttachPass(ctx context.Context, bookingID, purchaseID uuid.UUID) error
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates booking repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const bookingColumns = `
	id, user_id, seat_label, reference_no, start_at, end_at,
	confirmed_payment, purchase_id, pass_used, refund_status, refund_reason,
	refund_requested_at, refund_decided_at, created_at, updated_at`

const paymentColumns = `
	id, booking_id, user_id, reference_no, amount, method, status, paid_at, created_at`

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Booking, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Booking
	err := r.db.GetContext(ctx2, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("%w: get booking", ErrInternal)
	}
	return &b, nil
}

func (r *repository) GetByReference(ctx context.Context, referenceNo string) (*Booking, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var b Booking
	err := r.db.GetContext(ctx2, &b, `SELECT `+bookingColumns+` FROM bookings WHERE reference_no = $1`, referenceNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("%w: get booking by reference", ErrInternal)
	}
	return &b, nil
}

// ListPaymentsByBooking returns every payment row linked to the booking,
// original and extension alike. Extension payments carry derived references
// but always the same booking_id, so the foreign key covers all of them.
func (r *repository) ListPaymentsByBooking(ctx context.Context, bookingID uuid.UUID) ([]Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	payments := make([]Payment, 0)
	err := r.db.SelectContext(ctx2, &payments, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: list payments", ErrInternal)
	}
	return payments, nil
}

func (r *repository) GetPaymentByReference(ctx context.Context, referenceNo string) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var p Payment
	err := r.db.GetContext(ctx2, &p, `SELECT `+paymentColumns+` FROM payments WHERE reference_no = $1`, referenceNo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("%w: get payment by reference", ErrInternal)
	}
	return &p, nil
}

// CreateExtensionPayment records a pending payment row for an extension or
// reschedule charge, with a reference derived from the booking's.
func (r *repository) CreateExtensionPayment(ctx context.Context, b *Booking, amount decimal.Decimal) (*Payment, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	if err := r.db.GetContext(ctx2, &count, `SELECT COUNT(*) FROM payments WHERE booking_id = $1`, b.ID); err != nil {
		return nil, fmt.Errorf("%w: count payments", ErrInternal)
	}

	p := &Payment{
		ID:          uuid.New(),
		BookingID:   b.ID,
		UserID:      b.UserID,
		ReferenceNo: ExtensionReference(b.ReferenceNo, count),
		Amount:      amount,
		Status:      PaymentPending,
	}
	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO payments (id, booking_id, user_id, reference_no, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
	`, p.ID, p.BookingID, p.UserID, p.ReferenceNo, p.Amount, p.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: create payment", ErrInternal)
	}
	return p, nil
}

// ConfirmPaymentByReference confirms a pending payment and enriches it with
// the method and paid-at reported by the gateway. Conditional on status so a
// redelivered webhook cannot double-confirm. Returns whether a row moved.
func (r *repository) ConfirmPaymentByReference(ctx context.Context, referenceNo, method string, paidAt time.Time) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE payments
		SET status = $2,
		    method = COALESCE(NULLIF($3, ''), method),
		    paid_at = $4
		WHERE reference_no = $1 AND status = $5
	`, referenceNo, PaymentConfirmed, method, paidAt, PaymentPending)
	if err != nil {
		return false, fmt.Errorf("%w: confirm payment", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) FailPaymentByReference(ctx context.Context, referenceNo string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE payments SET status = $2 WHERE reference_no = $1 AND status = $3
	`, referenceNo, PaymentFailed, PaymentPending)
	if err != nil {
		return fmt.Errorf("%w: fail payment", ErrInternal)
	}
	return nil
}

func (r *repository) SetConfirmedPayment(ctx context.Context, bookingID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE bookings SET confirmed_payment = true, updated_at = NOW() WHERE id = $1
	`, bookingID)
	if err != nil {
		return fmt.Errorf("%w: confirm booking payment", ErrInternal)
	}
	return nil
}

// MarkPassUsedIfNot flips the booking's pass-usage flag once. The conditional
// update is the guard that keeps a booking from debiting a pass twice.
func (r *repository) MarkPassUsedIfNot(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE bookings SET pass_used = true, updated_at = NOW()
		WHERE id = $1 AND pass_used = false
	`, bookingID)
	if err != nil {
		return false, fmt.Errorf("%w: mark pass used", ErrInternal)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	return rows == 1, nil
}

func (r *repository) UnmarkPassUsed(ctx context.Context, bookingID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE bookings SET pass_used = false, updated_at = NOW() WHERE id = $1
	`, bookingID)
	if err != nil {
		return fmt.Errorf("%w: unmark pass used", ErrInternal)
	}
	return nil
}

func (r *repository) AttachPass(ctx context.Context, bookingID, purchaseID uuid.UUID) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		UPDATE bookings
		SET purchase_id = $2, confirmed_payment = true, updated_at = NOW()
		WHERE id = $1
	`, bookingID, purchaseID)
	if err != nil {
		return fmt.Errorf("%w: attach pass", ErrInternal)
	}
	return nil
}
