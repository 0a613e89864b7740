// Package money converts between decimal major-unit amounts and the integer
// minor units payment gateways expect.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencies without a fractional subunit at the gateways
var zeroDecimal = map[string]struct{}{
	"BIF": {}, "CLP": {}, "DJF": {}, "GNF": {}, "JPY": {}, "KMF": {}, "KRW": {}, "MGA": {},
	"PYG": {}, "RWF": {}, "UGX": {}, "VND": {}, "VUV": {}, "XAF": {}, "XOF": {}, "XPF": {},
}

var hundred = decimal.NewFromInt(100)

func Normalize(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

func IsZeroDecimal(currency string) bool {
	_, ok := zeroDecimal[Normalize(currency)]
	return ok
}

// ToMinorUnits rounds half away from zero to the nearest minor unit.
func ToMinorUnits(amount decimal.Decimal, currency string) int64 {
	if IsZeroDecimal(currency) {
		return amount.Round(0).IntPart()
	}
	return amount.Mul(hundred).Round(0).IntPart()
}

func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	if IsZeroDecimal(currency) {
		return decimal.NewFromInt(minor)
	}
	return decimal.New(minor, -2)
}
