// Package policy holds the pure business rules for dinner reservations:
// pricing, the change/cancellation fee windows, change quotes, and the
// order lifecycle transition table. Nothing here touches the database or
// the clock; callers pass amounts and times in.
package policy

import "github.com/shopspring/decimal"

// LoyaltyDeliveredThreshold is the number of delivered orders after which
// a consenting customer earns the loyalty discount.
const LoyaltyDeliveredThreshold = 4

var loyaltyDiscountRate = decimal.RequireFromString("0.1")

// PricedItem is one menu item line as priced at order time. DefaultQty is
// the quantity already bundled with the dinner; only the excess is charged.
type PricedItem struct {
	UnitPrice  decimal.Decimal
	Quantity   int32
	DefaultQty int32
}

// CalculateTotal computes the order total:
// base price x style multiplier + sum of item price x chargeable quantity.
// Chargeable quantity is the amount above the dinner's bundled default,
// floored at zero. Result is rounded to whole KRW.
func CalculateTotal(basePrice, styleMultiplier decimal.Decimal, items []PricedItem) decimal.Decimal {
	total := basePrice.Mul(styleMultiplier)
	for _, it := range items {
		extra := it.Quantity - it.DefaultQty
		if extra <= 0 {
			continue
		}
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt32(extra)))
	}
	return total.Round(0)
}

// LoyaltyEligible reports whether the customer qualifies for the 10%
// loyalty discount: both consents on file and enough delivered orders.
func LoyaltyEligible(consent, loyaltyConsent bool, deliveredOrders int64) bool {
	return consent && loyaltyConsent && deliveredOrders >= LoyaltyDeliveredThreshold
}

// ApplyLoyaltyDiscount returns the total after the 10% loyalty discount,
// rounded to whole KRW.
func ApplyLoyaltyDiscount(total decimal.Decimal) decimal.Decimal {
	return total.Sub(total.Mul(loyaltyDiscountRate)).Round(0)
}
