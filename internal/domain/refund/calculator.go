package refund

import (
	"github.com/shopspring/decimal"

	"github.com/deskhive/deskhive-api/internal/domain/booking"
)

// Fee policy constants. The card surcharge is a flat 5% added at charge time;
// instant bank transfers under the small-transfer threshold carry a flat
// $0.20 fee.
var (
	cardSurchargeDivisor = decimal.NewFromFloat(1.05)
	transferFee          = decimal.NewFromFloat(0.20)
	smallTransferCeiling = decimal.NewFromInt(10)
)

// Breakdown is the result of a refund calculation. CashRefunded is what gets
// minted as credit on approval; CreditsRefunded is always zero because store
// credit spent on a booking is forfeited, never re-credited.
type Breakdown struct {
	TotalPaid       decimal.Decimal `json:"total_paid"`
	CreditsUsed     decimal.Decimal `json:"credits_used"`
	CashPaid        decimal.Decimal `json:"cash_paid"`
	CashRefunded    decimal.Decimal `json:"cash_refunded"`
	CreditsRefunded decimal.Decimal `json:"credits_refunded"`
}

func isCardMethod(method string) bool {
	switch method {
	case "card", "visa", "mastercard", "amex":
		return true
	}
	return false
}

// Calculate reconstructs the refundable amount for a booking from its
// confirmed payments and the store credit already applied to it.
//
// Credit spent on the booking is not cash: it is excluded before fee math and
// never refunded. The payment method of the most recent confirmed payment
// prices the entire cash portion, even when earlier payments used a different
// method. That attribution is a deliberate policy simplification, not
// per-payment splitting.
func Calculate(payments []booking.Payment, creditsUsed decimal.Decimal) Breakdown {
	b := Breakdown{
		TotalPaid:       decimal.Zero,
		CreditsUsed:     creditsUsed,
		CashPaid:        decimal.Zero,
		CashRefunded:    decimal.Zero,
		CreditsRefunded: decimal.Zero,
	}

	method := ""
	var latest *booking.Payment
	for i := range payments {
		p := payments[i]
		if p.Status != booking.PaymentConfirmed {
			continue
		}
		b.TotalPaid = b.TotalPaid.Add(p.Amount)
		if latest == nil || !p.CreatedAt.Before(latest.CreatedAt) {
			latest = &payments[i]
		}
	}
	if latest != nil && latest.Method.Valid {
		method = latest.Method.String
	}

	cashPaid := b.TotalPaid.Sub(creditsUsed)
	if cashPaid.LessThanOrEqual(decimal.Zero) {
		// Nothing cash-eligible. A zero or negative result is a valid
		// outcome, not an error.
		return b
	}
	b.CashPaid = cashPaid

	switch {
	case isCardMethod(method):
		b.CashRefunded = cashPaid.Div(cardSurchargeDivisor).Round(2)
	case method == "bank_transfer" && cashPaid.LessThan(smallTransferCeiling):
		refund := cashPaid.Sub(transferFee)
		if refund.IsNegative() {
			refund = decimal.Zero
		}
		b.CashRefunded = refund
	default:
		b.CashRefunded = cashPaid
	}
	return b
}
