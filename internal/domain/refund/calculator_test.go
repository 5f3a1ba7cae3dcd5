package refund_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
	"github.com/deskhive/deskhive-api/internal/domain/refund"
)

func confirmedPayment(amount string, method string, age time.Duration) booking.Payment {
	return booking.Payment{
		ID:          uuid.New(),
		BookingID:   uuid.New(),
		UserID:      uuid.New(),
		ReferenceNo: "BK-TEST",
		Amount:      decimal.RequireFromString(amount),
		Method:      sql.NullString{String: method, Valid: method != ""},
		Status:      booking.PaymentConfirmed,
		CreatedAt:   time.Now().Add(-age),
	}
}

func TestCalculateCardSurcharge(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("105.00", "card", time.Hour)}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.TotalPaid.Equal(decimal.RequireFromString("105.00")))
	require.True(t, b.CashPaid.Equal(decimal.RequireFromString("105.00")))
	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("100.00")),
		"got %s", b.CashRefunded)
}

func TestCalculateSmallTransferFee(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("9.00", "bank_transfer", time.Hour)}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("8.80")),
		"got %s", b.CashRefunded)
}

func TestCalculateTransferFeeFloorsAtZero(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("0.10", "bank_transfer", time.Hour)}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.CashRefunded.IsZero(), "got %s", b.CashRefunded)
}

func TestCalculateLargeTransferNoFee(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("10.00", "bank_transfer", time.Hour)}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("10.00")))
}

func TestCalculateCashNoFee(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("50.00", "cash", time.Hour)}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("50.00")))
}

func TestCalculateCreditsExcluded(t *testing.T) {
	payments := []booking.Payment{
		confirmedPayment("50.00", "cash", 2*time.Hour),
		confirmedPayment("30.00", "cash", time.Hour),
	}

	b := refund.Calculate(payments, decimal.RequireFromString("30.00"))

	require.True(t, b.TotalPaid.Equal(decimal.RequireFromString("80.00")))
	require.True(t, b.CashPaid.Equal(decimal.RequireFromString("50.00")))
	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("50.00")),
		"refund must be computed on the cash portion only")
	require.True(t, b.CreditsRefunded.IsZero(), "spent credit is forfeited, never re-credited")
}

func TestCalculateFullyCreditFunded(t *testing.T) {
	payments := []booking.Payment{confirmedPayment("30.00", "cash", time.Hour)}

	b := refund.Calculate(payments, decimal.RequireFromString("30.00"))

	require.True(t, b.CashPaid.IsZero())
	require.True(t, b.CashRefunded.IsZero(), "zero is a valid outcome, not an error")
}

func TestCalculateLatestMethodPricesWholeCashPortion(t *testing.T) {
	// Earlier cash payment, later card payment: the card surcharge applies
	// to the entire cash portion.
	payments := []booking.Payment{
		confirmedPayment("52.50", "cash", 2*time.Hour),
		confirmedPayment("52.50", "card", time.Hour),
	}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.TotalPaid.Equal(decimal.RequireFromString("105.00")))
	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("100.00")),
		"got %s", b.CashRefunded)
}

func TestCalculateIgnoresPendingAndFailedPayments(t *testing.T) {
	pending := confirmedPayment("40.00", "card", time.Minute)
	pending.Status = booking.PaymentPending
	failed := confirmedPayment("25.00", "card", 30*time.Minute)
	failed.Status = booking.PaymentFailed

	payments := []booking.Payment{
		confirmedPayment("50.00", "cash", time.Hour),
		pending,
		failed,
	}

	b := refund.Calculate(payments, decimal.Zero)

	require.True(t, b.TotalPaid.Equal(decimal.RequireFromString("50.00")))
	require.True(t, b.CashRefunded.Equal(decimal.RequireFromString("50.00")),
		"pending and failed payments must not count, nor set the fee method")
}

func TestCalculateNoPayments(t *testing.T) {
	b := refund.Calculate(nil, decimal.Zero)

	require.True(t, b.TotalPaid.IsZero())
	require.True(t, b.CashRefunded.IsZero())
}
