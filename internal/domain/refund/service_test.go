package refund_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/credit"
	"github.com/deskhive/deskhive-api/internal/domain/refund"
)

// memoryStore backs both the booking and refund repositories so the refund
// state machine can be exercised without a database.
type memoryStore struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	payments map[uuid.UUID][]booking.Payment
	refunds  map[uuid.UUID]*refund.Transaction
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		bookings: make(map[uuid.UUID]*booking.Booking),
		payments: make(map[uuid.UUID][]booking.Payment),
		refunds:  make(map[uuid.UUID]*refund.Transaction),
	}
}

func (s *memoryStore) addBooking(b *booking.Booking, payments ...booking.Payment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings[b.ID] = b
	s.payments[b.ID] = payments
}

// booking.Repository

func (s *memoryStore) GetByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *memoryStore) GetByReference(ctx context.Context, ref string) (*booking.Booking, error) {
	return nil, booking.ErrBookingNotFound
}

func (s *memoryStore) ListPaymentsByBooking(ctx context.Context, bookingID uuid.UUID) ([]booking.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]booking.Payment(nil), s.payments[bookingID]...), nil
}

func (s *memoryStore) GetPaymentByReference(ctx context.Context, ref string) (*booking.Payment, error) {
	return nil, booking.ErrPaymentNotFound
}

func (s *memoryStore) CreateExtensionPayment(ctx context.Context, b *booking.Booking, amount decimal.Decimal) (*booking.Payment, error) {
	return nil, booking.ErrInternal
}

func (s *memoryStore) ConfirmPaymentByReference(ctx context.Context, ref, method string, paidAt time.Time) (bool, error) {
	return false, nil
}

func (s *memoryStore) FailPaymentByReference(ctx context.Context, ref string) error { return nil }

func (s *memoryStore) SetConfirmedPayment(ctx context.Context, id uuid.UUID) error { return nil }

func (s *memoryStore) MarkPassUsedIfNot(ctx context.Context, id uuid.UUID) (bool, error) {
	return false, nil
}

func (s *memoryStore) UnmarkPassUsed(ctx context.Context, id uuid.UUID) error { return nil }

func (s *memoryStore) AttachPass(ctx context.Context, id, purchaseID uuid.UUID) error { return nil }

// refund.Repository

func (s *memoryStore) Request(ctx context.Context, t *refund.Transaction, allowRerequest bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[t.BookingID]
	if !ok {
		return booking.ErrBookingNotFound
	}
	allowed := b.RefundStatus == booking.RefundNone ||
		(allowRerequest && b.RefundStatus == booking.RefundRejected)
	if !allowed {
		return refund.ErrRefundConflict
	}
	b.RefundStatus = booking.RefundRequested
	cp := *t
	s.refunds[t.ID] = &cp
	return nil
}

func (s *memoryStore) Approve(ctx context.Context, id uuid.UUID, mint func(ctx context.Context, tx *sqlx.Tx, t *refund.Transaction) error) (*refund.Transaction, error) {
	s.mu.Lock()
	t, ok := s.refunds[id]
	if !ok {
		s.mu.Unlock()
		return nil, refund.ErrRefundNotFound
	}
	if t.Status != refund.StatusRequested {
		s.mu.Unlock()
		return nil, refund.ErrNotRequested
	}
	s.mu.Unlock()

	if err := mint(ctx, nil, t); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t.Status = refund.StatusApproved
	t.CreditGranted = t.Amount
	if b, ok := s.bookings[t.BookingID]; ok {
		b.RefundStatus = booking.RefundApproved
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) Reject(ctx context.Context, id uuid.UUID, note string) (*refund.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refunds[id]
	if !ok {
		return nil, refund.ErrRefundNotFound
	}
	if t.Status != refund.StatusRequested {
		return nil, refund.ErrNotRequested
	}
	t.Status = refund.StatusRejected
	if b, ok := s.bookings[t.BookingID]; ok {
		b.RefundStatus = booking.RefundRejected
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) GetByIDRefund(ctx context.Context, id uuid.UUID) (*refund.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.refunds[id]
	if !ok {
		return nil, refund.ErrRefundNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) ListRequested(ctx context.Context) ([]refund.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]refund.Transaction, 0)
	for _, t := range s.refunds {
		if t.Status == refund.StatusRequested {
			out = append(out, *t)
		}
	}
	return out, nil
}

// refundRepoView adapts memoryStore to refund.Repository, working around the
// GetByID name collision with booking.Repository.
type refundRepoView struct{ *memoryStore }

func (v refundRepoView) GetByID(ctx context.Context, id uuid.UUID) (*refund.Transaction, error) {
	return v.memoryStore.GetByIDRefund(ctx, id)
}

// memoryCreditRepo records mints; the ledger math itself is covered by the
// credit package tests.
type memoryCreditRepo struct {
	mu      sync.Mutex
	minted  []credit.Credit
	perUsed map[uuid.UUID]decimal.Decimal
}

func newMemoryCreditRepo() *memoryCreditRepo {
	return &memoryCreditRepo{perUsed: make(map[uuid.UUID]decimal.Decimal)}
}

func (r *memoryCreditRepo) Mint(ctx context.Context, c *credit.Credit) error {
	return r.MintTx(ctx, nil, c)
}

func (r *memoryCreditRepo) MintTx(ctx context.Context, tx *sqlx.Tx, c *credit.Credit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.minted = append(r.minted, *c)
	return nil
}

func (r *memoryCreditRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]credit.Credit, error) {
	return nil, nil
}

func (r *memoryCreditRepo) Apply(ctx context.Context, userID, bookingID uuid.UUID, amount decimal.Decimal) ([]credit.Usage, error) {
	return nil, credit.ErrInsufficientCredit
}

func (r *memoryCreditRepo) Summary(ctx context.Context, userID uuid.UUID) (*credit.Summary, error) {
	return &credit.Summary{}, nil
}

func (r *memoryCreditRepo) SumUsageByBooking(ctx context.Context, bookingID uuid.UUID) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.perUsed[bookingID]; ok {
		return v, nil
	}
	return decimal.Zero, nil
}

func (r *memoryCreditRepo) ExpireSweep(ctx context.Context) (int64, error) { return 0, nil }

func confirmedBooking(userID uuid.UUID) *booking.Booking {
	start := time.Now().Add(24 * time.Hour)
	return &booking.Booking{
		ID:               uuid.New(),
		UserID:           userID,
		ReferenceNo:      "BK-" + uuid.New().String()[:8],
		StartAt:          start,
		EndAt:            start.Add(2 * time.Hour),
		ConfirmedPayment: true,
		RefundStatus:     booking.RefundNone,
	}
}

func TestRequestAutoApproveMintsCredit(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	creditRepo := newMemoryCreditRepo()
	credits := credit.NewService(creditRepo)
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{AutoApprove: true})

	b := confirmedBooking(userID)
	store.addBooking(b, confirmedPayment("105.00", "card", time.Hour))

	result, err := svc.Request(context.Background(), b.ID, userID, "plans changed")
	require.NoError(t, err)

	require.Equal(t, refund.StatusApproved, result.Transaction.Status)
	require.True(t, result.Breakdown.CashRefunded.Equal(decimal.RequireFromString("100.00")))
	require.NotNil(t, result.ExpiresAt)

	require.Len(t, creditRepo.minted, 1)
	minted := creditRepo.minted[0]
	require.True(t, minted.Amount.Equal(decimal.RequireFromString("100.00")))
	require.Equal(t, b.ID, minted.OriginBookingID)
	require.WithinDuration(t, time.Now().Add(credit.ValidityDays*24*time.Hour), minted.ExpiresAt, time.Minute)
}

func TestRequestConflictOnOpenCycle(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	credits := credit.NewService(newMemoryCreditRepo())
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{})

	b := confirmedBooking(userID)
	store.addBooking(b, confirmedPayment("50.00", "cash", time.Hour))

	_, err := svc.Request(context.Background(), b.ID, userID, "first")
	require.NoError(t, err)

	_, err = svc.Request(context.Background(), b.ID, userID, "second")
	require.ErrorIs(t, err, refund.ErrRefundConflict)
	require.Len(t, store.refunds, 1, "no duplicate transaction on conflict")
}

func TestRequestRequiresConfirmedPayment(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	credits := credit.NewService(newMemoryCreditRepo())
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{})

	b := confirmedBooking(userID)
	b.ConfirmedPayment = false
	store.addBooking(b)

	_, err := svc.Request(context.Background(), b.ID, userID, "reason")
	require.ErrorIs(t, err, refund.ErrNotConfirmed)
}

func TestRequestOwnership(t *testing.T) {
	store := newMemoryStore()
	credits := credit.NewService(newMemoryCreditRepo())
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{})

	b := confirmedBooking(uuid.New())
	store.addBooking(b)

	_, err := svc.Request(context.Background(), b.ID, uuid.New(), "reason")
	require.ErrorIs(t, err, booking.ErrNotOwner)
}

func TestRejectMintsNothing(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	creditRepo := newMemoryCreditRepo()
	credits := credit.NewService(creditRepo)
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{})

	b := confirmedBooking(userID)
	store.addBooking(b, confirmedPayment("50.00", "cash", time.Hour))

	result, err := svc.Request(context.Background(), b.ID, userID, "reason")
	require.NoError(t, err)
	require.Equal(t, refund.StatusRequested, result.Transaction.Status)

	rejected, err := svc.Reject(context.Background(), result.Transaction.ID, "outside the cancellation window")
	require.NoError(t, err)
	require.Equal(t, refund.StatusRejected, rejected.Status)
	require.Empty(t, creditRepo.minted)

	// Further decisions on the same transaction are refused.
	_, err = svc.Approve(context.Background(), result.Transaction.ID)
	require.ErrorIs(t, err, refund.ErrNotRequested)
}

func TestRerequestAfterRejection(t *testing.T) {
	userID := uuid.New()

	for _, allow := range []bool{false, true} {
		store := newMemoryStore()
		credits := credit.NewService(newMemoryCreditRepo())
		svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{AllowRerequest: allow})

		b := confirmedBooking(userID)
		store.addBooking(b, confirmedPayment("50.00", "cash", time.Hour))

		first, err := svc.Request(context.Background(), b.ID, userID, "first")
		require.NoError(t, err)
		_, err = svc.Reject(context.Background(), first.Transaction.ID, "no")
		require.NoError(t, err)

		_, err = svc.Request(context.Background(), b.ID, userID, "again")
		if allow {
			require.NoError(t, err, "rejected bookings may re-enter when configured to")
		} else {
			require.ErrorIs(t, err, refund.ErrRefundConflict)
		}
	}
}

func TestRequestCreditsExcludedFromRefund(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	creditRepo := newMemoryCreditRepo()
	credits := credit.NewService(creditRepo)
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{AutoApprove: true})

	b := confirmedBooking(userID)
	store.addBooking(b,
		confirmedPayment("50.00", "cash", 2*time.Hour),
		confirmedPayment("30.00", "cash", time.Hour),
	)
	creditRepo.perUsed[b.ID] = decimal.RequireFromString("30.00")

	result, err := svc.Request(context.Background(), b.ID, userID, "reason")
	require.NoError(t, err)

	require.True(t, result.Breakdown.TotalPaid.Equal(decimal.RequireFromString("80.00")))
	require.True(t, result.Breakdown.CashPaid.Equal(decimal.RequireFromString("50.00")))
	require.True(t, result.Breakdown.CashRefunded.Equal(decimal.RequireFromString("50.00")))
	require.True(t, result.Breakdown.CreditsRefunded.IsZero())
}

func TestRequestZeroRefundApprovedWithoutMint(t *testing.T) {
	userID := uuid.New()
	store := newMemoryStore()
	creditRepo := newMemoryCreditRepo()
	credits := credit.NewService(creditRepo)
	svc := refund.NewService(refundRepoView{store}, store, credits, nil, refund.Config{AutoApprove: true})

	b := confirmedBooking(userID)
	store.addBooking(b, confirmedPayment("30.00", "cash", time.Hour))
	creditRepo.perUsed[b.ID] = decimal.RequireFromString("30.00")

	result, err := svc.Request(context.Background(), b.ID, userID, "reason")
	require.NoError(t, err)

	require.Equal(t, refund.StatusApproved, result.Transaction.Status)
	require.True(t, result.Breakdown.CashRefunded.IsZero())
	require.Empty(t, creditRepo.minted, "zero refund approves but mints nothing")
	require.Nil(t, result.ExpiresAt)
}
