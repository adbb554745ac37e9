// Package money formats amounts for display in the storefront.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol is the currency sign appended to formatted amounts.
const Symbol = "₫"

// nbsp separates the amount from the currency sign, matching the vi-VN
// currency style used by browsers.
const nbsp = "\u00a0"

// Format renders amount as Vietnamese dong: rounded to whole units, dot
// thousands separators and a trailing currency sign, e.g. "90.000 ₫".
func Format(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	digits := rounded.Abs().String()

	var b strings.Builder
	if rounded.IsNegative() {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(digits[:lead])
	for i := lead; i < len(digits); i += 3 {
		b.WriteByte('.')
		b.WriteString(digits[i : i+3])
	}
	b.WriteString(nbsp)
	b.WriteString(Symbol)
	return b.String()
}
