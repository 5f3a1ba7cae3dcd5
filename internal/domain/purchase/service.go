package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/domain/catalog"
)

// PackageCatalog resolves packages for purchase creation
type PackageCatalog interface {
	GetByID(ctx context.Context, id uuid.UUID) (*catalog.Package, error)
}

// Allocation describes the pass a completed purchase entitles the buyer to.
type Allocation struct {
	PurchaseID uuid.UUID
	UserID     uuid.UUID
	Units      int
	UnitKind   string
	ExpiresAt  time.Time
}

// PassAllocator materializes passes for completed purchases. Implementations
// must be idempotent per purchase id.
type PassAllocator interface {
	Allocate(ctx context.Context, a Allocation) error
}

// Notifier sends fire-and-forget purchase notifications
type Notifier interface {
	PurchaseCompleted(userID uuid.UUID, packageID uuid.UUID, expiresAt time.Time)
}

// CompletionResult is what every completion trigger observes, no matter
// whether it ran the transition or arrived after it.
type CompletionResult struct {
	PurchaseID    uuid.UUID     `json:"purchase_id"`
	OrderNo       string        `json:"order_no"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ActivatedAt   *time.Time    `json:"activated_at,omitempty"`
	ExpiresAt     *time.Time    `json:"expires_at,omitempty"`
}

// Service handles purchase business logic, including the idempotent
// completion guard sitting between payment triggers and pass allocation.
type Service struct {
	repo      Repository
	packages  PackageCatalog
	allocator PassAllocator
	notifier  Notifier
}

// NewService creates purchase service
func NewService(repo Repository, packages PackageCatalog, allocator PassAllocator, notifier Notifier) *Service {
	return &Service{repo: repo, packages: packages, allocator: allocator, notifier: notifier}
}

// Create records a purchase intent in pending state and returns the order
// number the gateway will echo back.
func (s *Service) Create(ctx context.Context, userID, packageID uuid.UUID, quantity int) (*Purchase, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return nil, err
	}
	if !pkg.Active {
		return nil, catalog.ErrPackageInactive
	}

	p := &Purchase{
		ID:            uuid.New(),
		UserID:        userID,
		PackageID:     pkg.ID,
		Quantity:      quantity,
		Amount:        pkg.Price.Mul(decimal.NewFromInt(int64(quantity))),
		PaymentStatus: StatusPending,
		OrderNo:       NewOrderNo(),
		PassUnits:     pkg.PassUnits,
		UnitKind:      string(pkg.UnitKind),
		ValidityDays:  pkg.ValidityDays,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	log.Info().
		Str("purchase_id", p.ID.String()).
		Str("order_no", p.OrderNo).
		Str("amount", p.Amount.StringFixed(2)).
		Msg("purchase created")
	return p, nil
}

// Complete processes a "payment completed" signal for a purchase id. Safe to
// call any number of times from any trigger (webhook, client confirm, admin).
func (s *Service) Complete(ctx context.Context, purchaseID uuid.UUID, method string) (*CompletionResult, error) {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, p, method)
}

// CompleteByOrderNo processes a completion signal keyed by the gateway
// reference.
func (s *Service) CompleteByOrderNo(ctx context.Context, orderNo, method string) (*CompletionResult, error) {
	p, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, p, method)
}

func (s *Service) complete(ctx context.Context, p *Purchase, method string) (*CompletionResult, error) {
	if p.IsCompleted() {
		// Idempotent repeat: return the recorded activation window, run no
		// side effects again.
		return resultFrom(p), nil
	}
	if p.PaymentStatus == StatusFailed {
		return nil, ErrPurchaseFailed
	}

	activatedAt := time.Now().UTC()
	expiresAt := activatedAt.AddDate(0, 0, p.ValidityDays)

	won, err := s.repo.CompleteIfPending(ctx, p.ID, method, activatedAt, expiresAt)
	if err != nil {
		return nil, err
	}
	if !won {
		// Lost the race (or the state moved under us). Re-read and report
		// whatever the winner recorded.
		current, err := s.repo.GetByID(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		if !current.IsCompleted() {
			return nil, ErrPurchaseFailed
		}
		return resultFrom(current), nil
	}

	if err := s.allocator.Allocate(ctx, Allocation{
		PurchaseID: p.ID,
		UserID:     p.UserID,
		Units:      p.TotalPassUnits(),
		UnitKind:   p.UnitKind,
		ExpiresAt:  expiresAt,
	}); err != nil {
		// The purchase is completed; the allocator's own idempotency lets a
		// retried trigger finish the job.
		log.Error().Err(err).Str("purchase_id", p.ID.String()).Msg("pass allocation failed after completion")
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.PurchaseCompleted(p.UserID, p.PackageID, expiresAt)
	}

	log.Info().
		Str("purchase_id", p.ID.String()).
		Str("order_no", p.OrderNo).
		Time("expires_at", expiresAt).
		Msg("purchase completed")

	return &CompletionResult{
		PurchaseID:    p.ID,
		OrderNo:       p.OrderNo,
		PaymentStatus: StatusCompleted,
		ActivatedAt:   &activatedAt,
		ExpiresAt:     &expiresAt,
	}, nil
}

// FailByOrderNo processes a "payment failed/cancelled" signal. Completed
// purchases are never demoted; repeats are no-ops.
func (s *Service) FailByOrderNo(ctx context.Context, orderNo string) error {
	p, err := s.repo.GetByOrderNo(ctx, orderNo)
	if err != nil {
		return err
	}
	if p.PaymentStatus != StatusPending {
		return nil
	}
	if _, err := s.repo.FailIfPending(ctx, p.ID); err != nil {
		return err
	}
	log.Info().Str("order_no", orderNo).Msg("purchase marked failed")
	return nil
}

// ListByUser returns the buyer's purchase history
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Purchase, error) {
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// GetOwned returns a purchase after checking ownership
func (s *Service) GetOwned(ctx context.Context, purchaseID, userID uuid.UUID) (*Purchase, error) {
	p, err := s.repo.GetByID(ctx, purchaseID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrNotOwner
	}
	return p, nil
}

func resultFrom(p *Purchase) *CompletionResult {
	res := &CompletionResult{
		PurchaseID:    p.ID,
		OrderNo:       p.OrderNo,
		PaymentStatus: p.PaymentStatus,
	}
	if p.ActivatedAt.Valid {
		t := p.ActivatedAt.Time
		res.ActivatedAt = &t
	}
	if p.ExpiresAt.Valid {
		t := p.ExpiresAt.Time
		res.ExpiresAt = &t
	}
	return res
}

// IsNotFound reports whether err is the purchase-not-found sentinel
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPurchaseNotFound)
}
