package policy

import "github.com/shopspring/decimal"

// ChangeQuote prices a proposed reservation change against what the
// customer already paid. All amounts are whole KRW.
type ChangeQuote struct {
	OriginalPaidAmount        decimal.Decimal
	RecalculatedAmount        decimal.Decimal
	ChangeFeeAmount           decimal.Decimal
	NewTotalAmount            decimal.Decimal
	ExtraChargeAmount         decimal.Decimal
	ExpectedRefundAmount      decimal.Decimal
	RequiresAdditionalPayment bool
	RequiresRefund            bool
}

// NewChangeQuote derives the settlement amounts for a change:
// the new total is the recalculated price plus the change fee, and the
// signed delta against the amount already paid decides whether the
// customer owes more or is refunded. Both flags are false only when the
// delta is exactly zero.
func NewChangeQuote(originalPaid, recalculated, changeFee decimal.Decimal) ChangeQuote {
	newTotal := recalculated.Add(changeFee)
	delta := newTotal.Sub(originalPaid)

	q := ChangeQuote{
		OriginalPaidAmount:   originalPaid,
		RecalculatedAmount:   recalculated,
		ChangeFeeAmount:      changeFee,
		NewTotalAmount:       newTotal,
		ExtraChargeAmount:    decimal.Zero,
		ExpectedRefundAmount: decimal.Zero,
	}
	switch {
	case delta.IsPositive():
		q.RequiresAdditionalPayment = true
		q.ExtraChargeAmount = delta
	case delta.IsNegative():
		q.RequiresRefund = true
		q.ExpectedRefundAmount = delta.Neg()
	}
	return q
}
