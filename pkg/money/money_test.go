package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestMinorUnitRoundTrip(t *testing.T) {
	cases := []struct {
		amount   string
		currency string
		minor    int64
	}{
		{"19.99", "USD", 1999},
		{"500", "JPY", 500},
		{"0.10", "ghs", 10},
		{"1500", "XOF", 1500},
		{"10.005", "NGN", 1001},
	}
	for _, tc := range cases {
		t.Run(tc.currency+"_"+tc.amount, func(t *testing.T) {
			assert.Equal(t, tc.minor, ToMinorUnits(decimal.RequireFromString(tc.amount), tc.currency))
		})
	}

	assert.True(t, FromMinorUnits(1999, "USD").Equal(decimal.RequireFromString("19.99")))
	assert.True(t, FromMinorUnits(500, "JPY").Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "19.99", FromMinorUnits(1999, "usd").StringFixed(2))
}

func TestIsZeroDecimal(t *testing.T) {
	assert.True(t, IsZeroDecimal(" krw "))
	assert.False(t, IsZeroDecimal("EUR"))
	assert.Equal(t, "NGN", Normalize(" ngn"))
}
