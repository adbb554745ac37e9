// Package pricing computes cart and order totals.
//
// A Quote is always derived from the current lines and the applied discount;
// it is never persisted, so a stale total cannot outlive the mutation that
// produced it.
package pricing

import "github.com/shopspring/decimal"

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Line is a priced quantity of a single food.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Quote holds the derived totals for a set of lines.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal
}

// Subtotal returns the sum of unit price times quantity across all lines.
func Subtotal(lines []Line) decimal.Decimal {
	sum := zero
	for _, l := range lines {
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// Compute prices lines without a coupon.
func Compute(lines []Line) Quote {
	return ComputeWithPercent(lines, zero)
}

// ComputeWithPercent prices lines with a percentage discount applied to the
// subtotal. The total is floored at zero and all amounts are rounded to two
// decimal places.
func ComputeWithPercent(lines []Line, percent decimal.Decimal) Quote {
	subtotal := Subtotal(lines)

	discount := zero
	if percent.IsPositive() {
		discount = subtotal.Mul(percent).Div(hundred)
	}

	total := subtotal.Sub(discount)
	if total.IsNegative() {
		total = zero
	}

	return Quote{
		Subtotal: subtotal.Round(2),
		Discount: discount.Round(2),
		Total:    total.Round(2),
	}
}

// DiscountedPrice applies a per-item percentage markdown to price, as the
// catalog does for foods on sale.
func DiscountedPrice(price decimal.Decimal, percent int) decimal.Decimal {
	if percent <= 0 {
		return price
	}
	factor := hundred.Sub(decimal.NewFromInt(int64(percent))).Div(hundred)
	return price.Mul(factor).Round(2)
}
