package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
		want   string
	}{
		{name: "zero", amount: decimal.Zero, want: "0\u00a0₫"},
		{name: "below thousand", amount: decimal.NewFromInt(950), want: "950\u00a0₫"},
		{name: "thousands", amount: decimal.NewFromInt(90000), want: "90.000\u00a0₫"},
		{name: "millions", amount: decimal.NewFromInt(1234567), want: "1.234.567\u00a0₫"},
		{name: "exact group boundary", amount: decimal.NewFromInt(100000), want: "100.000\u00a0₫"},
		{name: "fraction rounds half up", amount: decimal.RequireFromString("12499.5"), want: "12.500\u00a0₫"},
		{name: "negative", amount: decimal.NewFromInt(-10000), want: "-10.000\u00a0₫"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.amount))
		})
	}
}
