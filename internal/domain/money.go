package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// ValidAmount reports whether the decimal carries at most two fractional
// digits, the precision of every monetary column in the system.
func ValidAmount(d decimal.Decimal) bool {
	return d.Exponent() >= -2
}

// MoneyJSON renders a monetary amount as a plain decimal JSON number with two
// fractional digits, e.g. 25.00. Rendering through json.Number avoids the
// float round-trip that would reintroduce drift.
func MoneyJSON(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

// LineTotal computes quantity * unitPrice in exact decimal arithmetic.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// PaymentStatusFor derives the three-tier payment status from the cumulative
// paid amount and the order total. It is a pure function: paid >= total maps
// to paid, 0 < paid < total to partial, everything else to unpaid.
func PaymentStatusFor(paid, total decimal.Decimal) PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return PaymentStatusPaid
	case paid.IsPositive():
		return PaymentStatusPartial
	default:
		return PaymentStatusUnpaid
	}
}
