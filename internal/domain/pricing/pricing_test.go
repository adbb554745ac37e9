package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestComputeWithPercent_Scenario(t *testing.T) {
	lines := []Line{{UnitPrice: decimal.NewFromInt(50000), Quantity: 2}}

	q := ComputeWithPercent(lines, decimal.NewFromInt(10))

	assert.True(t, decimal.NewFromInt(100000).Equal(q.Subtotal), "subtotal %s", q.Subtotal)
	assert.True(t, decimal.NewFromInt(10000).Equal(q.Discount), "discount %s", q.Discount)
	assert.True(t, decimal.NewFromInt(90000).Equal(q.Total), "total %s", q.Total)
}

func TestSubtotal_NoDrift(t *testing.T) {
	// 0.1 * 3 + 0.2 * 7 drifts with float64; decimal keeps it exact.
	lines := []Line{
		{UnitPrice: decimal.RequireFromString("0.1"), Quantity: 3},
		{UnitPrice: decimal.RequireFromString("0.2"), Quantity: 7},
	}

	assert.True(t, decimal.RequireFromString("1.7").Equal(Subtotal(lines)))
}

func TestCompute(t *testing.T) {
	tests := []struct {
		name    string
		lines   []Line
		percent decimal.Decimal
		want    Quote
	}{
		{
			name:  "empty cart prices to zero",
			lines: nil,
			want:  Quote{Subtotal: decimal.Zero, Discount: decimal.Zero, Total: decimal.Zero},
		},
		{
			name: "multiple lines without coupon",
			lines: []Line{
				{UnitPrice: decimal.NewFromInt(35000), Quantity: 1},
				{UnitPrice: decimal.NewFromInt(12000), Quantity: 3},
			},
			want: Quote{
				Subtotal: decimal.NewFromInt(71000),
				Discount: decimal.Zero,
				Total:    decimal.NewFromInt(71000),
			},
		},
		{
			name:    "fractional discount is rounded",
			lines:   []Line{{UnitPrice: decimal.NewFromInt(333), Quantity: 1}},
			percent: decimal.NewFromInt(15),
			want: Quote{
				Subtotal: decimal.NewFromInt(333),
				Discount: decimal.RequireFromString("49.95"),
				Total:    decimal.RequireFromString("283.05"),
			},
		},
		{
			name:    "full discount floors at zero",
			lines:   []Line{{UnitPrice: decimal.NewFromInt(20000), Quantity: 2}},
			percent: decimal.NewFromInt(100),
			want: Quote{
				Subtotal: decimal.NewFromInt(40000),
				Discount: decimal.NewFromInt(40000),
				Total:    decimal.Zero,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeWithPercent(tt.lines, tt.percent)
			assert.True(t, tt.want.Subtotal.Equal(got.Subtotal), "subtotal: want %s, got %s", tt.want.Subtotal, got.Subtotal)
			assert.True(t, tt.want.Discount.Equal(got.Discount), "discount: want %s, got %s", tt.want.Discount, got.Discount)
			assert.True(t, tt.want.Total.Equal(got.Total), "total: want %s, got %s", tt.want.Total, got.Total)
		})
	}
}

func TestCompute_CouponRoundTrip(t *testing.T) {
	lines := []Line{
		{UnitPrice: decimal.NewFromInt(45000), Quantity: 2},
		{UnitPrice: decimal.NewFromInt(15000), Quantity: 1},
	}

	before := Compute(lines)
	applied := ComputeWithPercent(lines, decimal.NewFromInt(20))
	removed := Compute(lines)

	assert.True(t, applied.Total.LessThan(before.Total))
	assert.True(t, before.Subtotal.Equal(removed.Total))
	assert.True(t, before.Total.Equal(removed.Total))
}

func TestDiscountedPrice(t *testing.T) {
	assert.True(t, decimal.NewFromInt(40000).Equal(DiscountedPrice(decimal.NewFromInt(50000), 20)))
	assert.True(t, decimal.NewFromInt(50000).Equal(DiscountedPrice(decimal.NewFromInt(50000), 0)))
	assert.True(t, decimal.Zero.Equal(DiscountedPrice(decimal.NewFromInt(50000), 100)))
}
