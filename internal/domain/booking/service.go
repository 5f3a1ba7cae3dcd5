package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/domain/pass"
)

// Service handles the ledger-facing side of bookings: payment confirmation
// and pass consumption.
type Service struct {
	repo   Repository
	passes *pass.Service
}

// NewService creates booking ledger service
func NewService(repo Repository, passes *pass.Service) *Service {
	return &Service{repo: repo, passes: passes}
}

// ConfirmPaymentByReference processes a gateway "completed" signal for a
// booking payment. Redeliveries are no-ops once the payment is confirmed.
func (s *Service) ConfirmPaymentByReference(ctx context.Context, referenceNo, method string, paidAt time.Time) error {
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}

	moved, err := s.repo.ConfirmPaymentByReference(ctx, referenceNo, method, paidAt)
	if err != nil {
		return err
	}

	p, err := s.repo.GetPaymentByReference(ctx, referenceNo)
	if err != nil {
		return err
	}
	if !moved {
		if p.Status == PaymentConfirmed {
			// Redelivered webhook; the first delivery did the work.
			log.Debug().Str("reference_no", referenceNo).Msg("payment already confirmed, skipping")
			return nil
		}
		return ErrPaymentNotFound
	}

	if err := s.repo.SetConfirmedPayment(ctx, p.BookingID); err != nil {
		return err
	}

	log.Info().
		Str("reference_no", referenceNo).
		Str("booking_id", p.BookingID.String()).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("booking payment confirmed")
	return nil
}

// FailPaymentByReference processes a gateway "failed"/"cancelled" signal.
func (s *Service) FailPaymentByReference(ctx context.Context, referenceNo string) error {
	return s.repo.FailPaymentByReference(ctx, referenceNo)
}

// PayWithPass settles a booking against one of the user's passes. The
// booking's pass-usage flag is flipped first as the idempotency guard; the
// capacity debit itself is conditional inside the pass repository, so
// concurrent attempts cannot overdraw.
func (s *Service) PayWithPass(ctx context.Context, bookingID, userID, passID uuid.UUID) (*pass.Pass, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	if b.ConfirmedPayment {
		return nil, ErrAlreadyPaid
	}

	p, err := s.passes.Get(ctx, passID)
	if err != nil {
		return nil, err
	}

	units := 1
	if p.UnitKind == "hours" {
		units = b.DurationHours()
	}

	flagged, err := s.repo.MarkPassUsedIfNot(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !flagged {
		return nil, ErrAlreadyPaid
	}

	if err := s.passes.Consume(ctx, passID, userID, bookingID, units); err != nil {
		if unmarkErr := s.repo.UnmarkPassUsed(ctx, bookingID); unmarkErr != nil {
			log.Error().Err(unmarkErr).Str("booking_id", bookingID.String()).Msg("failed to unmark pass usage after debit failure")
		}
		return nil, err
	}

	if err := s.repo.AttachPass(ctx, bookingID, p.PurchaseID); err != nil {
		return nil, err
	}

	log.Info().
		Str("booking_id", bookingID.String()).
		Str("pass_id", passID.String()).
		Int("units", units).
		Msg("booking paid with pass")

	return s.passes.Get(ctx, passID)
}

// CreateExtensionPayment records a pending charge for extending or
// rescheduling a booking. The gateway webhook confirms it later.
func (s *Service) CreateExtensionPayment(ctx context.Context, bookingID, userID uuid.UUID, amount decimal.Decimal) (*Payment, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}

	return s.repo.CreateExtensionPayment(ctx, b, amount)
}

// GetOwned returns a booking after checking ownership
func (s *Service) GetOwned(ctx context.Context, bookingID, userID uuid.UUID) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	return b, nil
}

// ListPayments returns a booking's payment history
func (s *Service) ListPayments(ctx context.Context, bookingID uuid.UUID) ([]Payment, error) {
	return s.repo.ListPaymentsByBooking(ctx, bookingID)
}
