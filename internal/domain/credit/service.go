package credit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Service provides credit ledger business logic
type Service struct {
	repo Repository
}

// NewService creates credit service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// MintTx mints a credit inside the caller's transaction. The refund approval
// flow uses this so the credit appears atomically with the refund decision.
func (s *Service) MintTx(ctx context.Context, tx *sqlx.Tx, userID, originBookingID uuid.UUID, amount decimal.Decimal) (*Credit, error) {
	now := time.Now()
	c := &Credit{
		ID:              uuid.New(),
		UserID:          userID,
		OriginBookingID: originBookingID,
		Amount:          amount,
		Status:          StatusActive,
		ExpiresAt:       now.Add(ValidityDays * 24 * time.Hour),
		CreatedAt:       now,
	}
	if err := s.repo.MintTx(ctx, tx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// ListForUser returns the user's active credits plus the reconciliation
// summary. Only read-time-valid credits are listed, so a credit past its
// expiry never shows even before the sweep has flipped its stored status.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Credit, *Summary, error) {
	credits, err := s.repo.ListActive(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	summary, err := s.repo.Summary(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return credits, summary, nil
}

// Apply spends amount of the user's credit against a booking, oldest credit
// first.
func (s *Service) Apply(ctx context.Context, userID, bookingID uuid.UUID, amount decimal.Decimal) ([]Usage, error) {
	return s.repo.Apply(ctx, userID, bookingID, amount)
}

// UsedOnBooking returns the total credit already applied to a booking.
func (s *Service) UsedOnBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	return s.repo.SumUsageByBooking(ctx, bookingID)
}

// Sweep persists expiry for credits past their window. Listing and
// application already filter by expires_at, so the sweep only reconciles
// stored status.
func (s *Service) Sweep(ctx context.Context) {
	n, err := s.repo.ExpireSweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("credit expire sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("credits expired")
	}
}
