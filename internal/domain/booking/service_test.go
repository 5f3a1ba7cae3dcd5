package booking_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/pass"
)

// fakeBookingRepo is an in-memory booking store mirroring the conditional
// update semantics of the SQL implementation.
type fakeBookingRepo struct {
	mu       sync.Mutex
	bookings map[uuid.UUID]*booking.Booking
	payments map[string]*booking.Payment
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{
		bookings: make(map[uuid.UUID]*booking.Booking),
		payments: make(map[string]*booking.Payment),
	}
}

func (r *fakeBookingRepo) add(b *booking.Booking) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings[b.ID] = b
}

func (r *fakeBookingRepo) GetByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return nil, booking.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *fakeBookingRepo) GetByReference(ctx context.Context, ref string) (*booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bookings {
		if b.ReferenceNo == ref {
			cp := *b
			return &cp, nil
		}
	}
	return nil, booking.ErrBookingNotFound
}

func (r *fakeBookingRepo) ListPaymentsByBooking(ctx context.Context, bookingID uuid.UUID) ([]booking.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]booking.Payment, 0)
	for _, p := range r.payments {
		if p.BookingID == bookingID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *fakeBookingRepo) GetPaymentByReference(ctx context.Context, ref string) (*booking.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[ref]
	if !ok {
		return nil, booking.ErrPaymentNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeBookingRepo) CreateExtensionPayment(ctx context.Context, b *booking.Booking, amount decimal.Decimal) (*booking.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.payments {
		if p.BookingID == b.ID {
			count++
		}
	}
	p := &booking.Payment{
		ID:          uuid.New(),
		BookingID:   b.ID,
		UserID:      b.UserID,
		ReferenceNo: booking.ExtensionReference(b.ReferenceNo, count),
		Amount:      amount,
		Status:      booking.PaymentPending,
		CreatedAt:   time.Now(),
	}
	r.payments[p.ReferenceNo] = p
	return p, nil
}

func (r *fakeBookingRepo) ConfirmPaymentByReference(ctx context.Context, ref, method string, paidAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[ref]
	if !ok || p.Status != booking.PaymentPending {
		return false, nil
	}
	p.Status = booking.PaymentConfirmed
	return true, nil
}

func (r *fakeBookingRepo) FailPaymentByReference(ctx context.Context, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[ref]; ok && p.Status == booking.PaymentPending {
		p.Status = booking.PaymentFailed
	}
	return nil
}

func (r *fakeBookingRepo) SetConfirmedPayment(ctx context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[bookingID]; ok {
		b.ConfirmedPayment = true
	}
	return nil
}

func (r *fakeBookingRepo) MarkPassUsedIfNot(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok || b.PassUsed {
		return false, nil
	}
	b.PassUsed = true
	return true, nil
}

func (r *fakeBookingRepo) UnmarkPassUsed(ctx context.Context, bookingID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[bookingID]; ok {
		b.PassUsed = false
	}
	return nil
}

func (r *fakeBookingRepo) AttachPass(ctx context.Context, bookingID, purchaseID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bookings[bookingID]; ok {
		b.PurchaseID = uuid.NullUUID{UUID: purchaseID, Valid: true}
		b.ConfirmedPayment = true
	}
	return nil
}

// fakePassRepo holds a single pass and debits it with the same conditional
// checks as the SQL implementation.
type fakePassRepo struct {
	mu       sync.Mutex
	pass     *pass.Pass
	consumed []int
}

func (r *fakePassRepo) CreateIfAbsent(ctx context.Context, p *pass.Pass) (bool, error) {
	return false, nil
}

func (r *fakePassRepo) GetByID(ctx context.Context, id uuid.UUID) (*pass.Pass, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pass == nil || r.pass.ID != id {
		return nil, pass.ErrPassNotFound
	}
	cp := *r.pass
	return &cp, nil
}

func (r *fakePassRepo) GetByPurchase(ctx context.Context, purchaseID uuid.UUID) (*pass.Pass, error) {
	return nil, pass.ErrPassNotFound
}

func (r *fakePassRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]pass.Pass, error) {
	return nil, nil
}

func (r *fakePassRepo) Consume(ctx context.Context, passID, userID, bookingID uuid.UUID, units int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pass == nil || r.pass.ID != passID {
		return pass.ErrPassNotFound
	}
	if r.pass.UserID != userID {
		return pass.ErrForbidden
	}
	if r.pass.RemainingUnits < units {
		return pass.ErrInsufficientCapacity
	}
	r.pass.RemainingUnits -= units
	r.consumed = append(r.consumed, units)
	return nil
}

func (r *fakePassRepo) ConsumeAny(ctx context.Context, userID, bookingID uuid.UUID, units int) (*pass.Pass, error) {
	return nil, pass.ErrPassNotFound
}

func (r *fakePassRepo) ExpireSweep(ctx context.Context) (int64, error) { return 0, nil }

func (r *fakePassRepo) ListUsagesByBooking(ctx context.Context, bookingID uuid.UUID) ([]pass.Usage, error) {
	return nil, nil
}

func newTestBooking(userID uuid.UUID, hours int) *booking.Booking {
	start := time.Now().Add(24 * time.Hour)
	return &booking.Booking{
		ID:          uuid.New(),
		UserID:      userID,
		ReferenceNo: "BK-" + uuid.New().String()[:8],
		StartAt:     start,
		EndAt:       start.Add(time.Duration(hours) * time.Hour),
	}
}

func newTestPass(userID uuid.UUID, units int, kind string) *pass.Pass {
	return &pass.Pass{
		ID:             uuid.New(),
		PurchaseID:     uuid.New(),
		UserID:         userID,
		TotalUnits:     units,
		RemainingUnits: units,
		UnitKind:       kind,
		Status:         pass.StatusActive,
		ExpiresAt:      time.Now().Add(30 * 24 * time.Hour),
	}
}

func TestPayWithPassDebitsBookingHours(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	passRepo := &fakePassRepo{pass: newTestPass(userID, 10, "hours")}
	svc := booking.NewService(repo, pass.NewService(passRepo))

	b := newTestBooking(userID, 3)
	repo.add(b)

	used, err := svc.PayWithPass(context.Background(), b.ID, userID, passRepo.pass.ID)
	require.NoError(t, err)
	require.Equal(t, 7, used.RemainingUnits, "a 3-hour booking debits 3 hour units")

	current, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.True(t, current.PassUsed)
	require.True(t, current.ConfirmedPayment)
	require.Equal(t, passRepo.pass.PurchaseID, current.PurchaseID.UUID)
}

func TestPayWithPassEntriesKindDebitsOne(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	passRepo := &fakePassRepo{pass: newTestPass(userID, 5, "entries")}
	svc := booking.NewService(repo, pass.NewService(passRepo))

	b := newTestBooking(userID, 6)
	repo.add(b)

	used, err := svc.PayWithPass(context.Background(), b.ID, userID, passRepo.pass.ID)
	require.NoError(t, err)
	require.Equal(t, 4, used.RemainingUnits, "entry passes debit one unit regardless of duration")
}

func TestPayWithPassRejectsDoubleUse(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	passRepo := &fakePassRepo{pass: newTestPass(userID, 10, "hours")}
	svc := booking.NewService(repo, pass.NewService(passRepo))

	b := newTestBooking(userID, 2)
	repo.add(b)

	_, err := svc.PayWithPass(context.Background(), b.ID, userID, passRepo.pass.ID)
	require.NoError(t, err)

	_, err = svc.PayWithPass(context.Background(), b.ID, userID, passRepo.pass.ID)
	require.ErrorIs(t, err, booking.ErrAlreadyPaid)
	require.Len(t, passRepo.consumed, 1, "the pass must be debited exactly once")
}

func TestPayWithPassUnmarksFlagOnDebitFailure(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	passRepo := &fakePassRepo{pass: newTestPass(userID, 1, "hours")}
	svc := booking.NewService(repo, pass.NewService(passRepo))

	b := newTestBooking(userID, 4)
	repo.add(b)

	_, err := svc.PayWithPass(context.Background(), b.ID, userID, passRepo.pass.ID)
	require.ErrorIs(t, err, pass.ErrInsufficientCapacity)

	current, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.False(t, current.PassUsed, "a failed debit must release the usage flag")
	require.False(t, current.ConfirmedPayment)
}

func TestPayWithPassOwnership(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	passRepo := &fakePassRepo{pass: newTestPass(userID, 10, "hours")}
	svc := booking.NewService(repo, pass.NewService(passRepo))

	b := newTestBooking(userID, 2)
	repo.add(b)

	_, err := svc.PayWithPass(context.Background(), b.ID, uuid.New(), passRepo.pass.ID)
	require.ErrorIs(t, err, booking.ErrNotOwner)
}

func TestConfirmPaymentRedeliveryIsNoOp(t *testing.T) {
	userID := uuid.New()
	repo := newFakeBookingRepo()
	svc := booking.NewService(repo, pass.NewService(&fakePassRepo{}))

	b := newTestBooking(userID, 2)
	repo.add(b)

	p, err := svc.CreateExtensionPayment(context.Background(), b.ID, userID, decimal.RequireFromString("15.00"))
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmPaymentByReference(context.Background(), p.ReferenceNo, "card", time.Now()))
	require.NoError(t, svc.ConfirmPaymentByReference(context.Background(), p.ReferenceNo, "card", time.Now()),
		"a redelivered confirmation must be a silent no-op")

	current, err := repo.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	require.True(t, current.ConfirmedPayment)
}
