package depreciation

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Round2 rounds to cents, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Cents builds an amount from a float literal, rounded to cents.
func Cents(f float64) decimal.Decimal {
	return Round2(decimal.NewFromFloat(f))
}

// ParseAmount parses a user-entered amount such as "1,250.00" or "$99".
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "$")
	s = strings.ReplaceAll(s, ",", "")
	return decimal.NewFromString(s)
}

func trim(s string) string { return strings.TrimSpace(s) }
