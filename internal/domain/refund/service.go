package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/credit"
)

// Notifier sends refund decision notifications
type Notifier interface {
	RefundApproved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, expiresAt time.Time)
	RefundRejected(ctx context.Context, userID uuid.UUID, reason string)
}

// Config carries refund policy switches
type Config struct {
	// AutoApprove runs approval synchronously right after a request, with
	// no human gate.
	AutoApprove bool
	// AllowRerequest lets a rejected booking open a fresh refund cycle.
	AllowRerequest bool
}

// Result is what a refund request returns to the caller.
type Result struct {
	Transaction *Transaction `json:"transaction"`
	Breakdown   Breakdown    `json:"refund_details"`
	ExpiresAt   *time.Time   `json:"expires_at,omitempty"`
}

// Service handles refund workflow business logic
type Service struct {
	repo     Repository
	bookings booking.Repository
	credits  *credit.Service
	notifier Notifier
	cfg      Config
}

// NewService creates refund service
func NewService(repo Repository, bookings booking.Repository, credits *credit.Service, notifier Notifier, cfg Config) *Service {
	return &Service{repo: repo, bookings: bookings, credits: credits, notifier: notifier, cfg: cfg}
}

// Request opens a refund cycle on a booking. The refundable amount is
// computed up front from the booking's confirmed payments and prior credit
// usage, and recorded on the transaction. With auto-approval on, the decision
// follows immediately and the credit is minted in the same call.
func (s *Service) Request(ctx context.Context, bookingID, userID uuid.UUID, reason string) (*Result, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrNotOwner
	}
	if !b.ConfirmedPayment {
		return nil, ErrNotConfirmed
	}

	breakdown, err := s.calculate(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	t := &Transaction{
		ID:            uuid.New(),
		UserID:        userID,
		BookingID:     bookingID,
		Amount:        breakdown.CashRefunded,
		CreditGranted: decimal.Zero,
		Reason:        reason,
		Status:        StatusRequested,
		RequestedAt:   time.Now(),
	}
	if err := s.repo.Request(ctx, t, s.cfg.AllowRerequest); err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", bookingID.String()).
		Str("refund_id", t.ID.String()).
		Str("amount", t.Amount.StringFixed(2)).
		Msg("refund requested")

	result := &Result{Transaction: t, Breakdown: breakdown}
	if !s.cfg.AutoApprove {
		return result, nil
	}

	approved, expiresAt, err := s.approve(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	result.Transaction = approved
	result.ExpiresAt = expiresAt
	return result, nil
}

// Approve finalizes a requested refund and mints the credit.
func (s *Service) Approve(ctx context.Context, refundID uuid.UUID) (*Transaction, error) {
	t, _, err := s.approve(ctx, refundID)
	return t, err
}

func (s *Service) approve(ctx context.Context, refundID uuid.UUID) (*Transaction, *time.Time, error) {
	var expiresAt *time.Time
	t, err := s.repo.Approve(ctx, refundID, func(ctx context.Context, tx *sqlx.Tx, t *Transaction) error {
		if t.Amount.LessThanOrEqual(decimal.Zero) {
			// Nothing cash-eligible; the approval stands but no credit
			// is minted.
			return nil
		}
		c, err := s.credits.MintTx(ctx, tx, t.UserID, t.BookingID, t.Amount)
		if err != nil {
			return err
		}
		expiresAt = &c.ExpiresAt
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("refund_id", t.ID.String()).
		Str("booking_id", t.BookingID.String()).
		Str("credit_granted", t.CreditGranted.StringFixed(2)).
		Msg("refund approved")

	if s.notifier != nil && expiresAt != nil {
		s.notifier.RefundApproved(ctx, t.UserID, t.Amount, *expiresAt)
	}
	return t, expiresAt, nil
}

// Reject declines a requested refund. No credit is minted; the booking keeps
// its seat and payment state.
func (s *Service) Reject(ctx context.Context, refundID uuid.UUID, note string) (*Transaction, error) {
	t, err := s.repo.Reject(ctx, refundID, note)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("refund_id", t.ID.String()).
		Str("booking_id", t.BookingID.String()).
		Msg("refund rejected")

	if s.notifier != nil {
		s.notifier.RefundRejected(ctx, t.UserID, note)
	}
	return t, nil
}

// Preview computes the refund breakdown for a booking without opening a
// cycle.
func (s *Service) Preview(ctx context.Context, bookingID, userID uuid.UUID) (*Breakdown, error) {
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, booking.ErrNotOwner
	}

	breakdown, err := s.calculate(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return &breakdown, nil
}

// ListRequested returns open refund transactions for admin review.
func (s *Service) ListRequested(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListRequested(ctx)
}

func (s *Service) calculate(ctx context.Context, bookingID uuid.UUID) (Breakdown, error) {
	payments, err := s.bookings.ListPaymentsByBooking(ctx, bookingID)
	if err != nil {
		return Breakdown{}, err
	}
	creditsUsed, err := s.credits.UsedOnBooking(ctx, bookingID)
	if err != nil {
		return Breakdown{}, err
	}
	return Calculate(payments, creditsUsed), nil
}
