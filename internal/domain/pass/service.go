package pass

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/deskhive/deskhive-api/internal/domain/purchase"
)

// Service handles pass allocation and consumption
type Service struct {
	repo Repository
}

// NewService creates pass service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Allocate materializes the pass for a completed purchase. Idempotent: a
// duplicate trigger for the same purchase finds the unique constraint and
// skips silently.
func (s *Service) Allocate(ctx context.Context, a purchase.Allocation) error {
	created, err := s.repo.CreateIfAbsent(ctx, &Pass{
		ID:             uuid.New(),
		PurchaseID:     a.PurchaseID,
		UserID:         a.UserID,
		TotalUnits:     a.Units,
		RemainingUnits: a.Units,
		UnitKind:       a.UnitKind,
		Status:         StatusActive,
		ExpiresAt:      a.ExpiresAt,
	})
	if err != nil {
		return err
	}
	if !created {
		log.Debug().Str("purchase_id", a.PurchaseID.String()).Msg("pass already allocated, skipping")
		return nil
	}

	log.Info().
		Str("purchase_id", a.PurchaseID.String()).
		Int("units", a.Units).
		Time("expires_at", a.ExpiresAt).
		Msg("pass allocated")
	return nil
}

// Consume debits capacity from a specific pass on behalf of a booking.
func (s *Service) Consume(ctx context.Context, passID, userID, bookingID uuid.UUID, units int) error {
	return s.repo.Consume(ctx, passID, userID, bookingID, units)
}

// ConsumeAny debits capacity from whichever active pass of the user can cover
// the booking, and returns the pass that was debited.
func (s *Service) ConsumeAny(ctx context.Context, userID, bookingID uuid.UUID, units int) (*Pass, error) {
	return s.repo.ConsumeAny(ctx, userID, bookingID, units)
}

// ListForUser returns the user's passes with lazy expiry applied.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Pass, error) {
	passes, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range passes {
		passes[i].Status = passes[i].EffectiveStatus(now)
	}
	return passes, nil
}

// Get returns a single pass with lazy expiry applied.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Pass, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Status = p.EffectiveStatus(time.Now())
	return p, nil
}

// GetByPurchase returns the pass allocated for a purchase, if any.
func (s *Service) GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*Pass, error) {
	p, err := s.repo.GetByPurchase(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	p.Status = p.EffectiveStatus(time.Now())
	return p, nil
}

// Sweep flips stored status for expired passes. Correctness does not depend
// on how often this runs; reads apply expiry lazily.
func (s *Service) Sweep(ctx context.Context) {
	n, err := s.repo.ExpireSweep(ctx)
	if err != nil {
		log.Error().Err(err).Msg("pass expiry sweep failed")
		return
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("pass expiry sweep")
	}
}
