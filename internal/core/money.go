// Package core provides amount parsing for ledger submissions.
//
// Amounts are carried as decimal.Decimal so totals never drift the way
// binary floating point does.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// maxAmountLength rejects absurd inputs before they reach the decimal parser.
	maxAmountLength = 64
	// maxAmountIntegerDigits and maxAmountScale bound the value itself, which
	// exponent notation would otherwise leave unbounded.
	maxAmountIntegerDigits = 15
	maxAmountScale         = 8
)

// ParseAmount converts user input into a non-negative magnitude.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional sign. The sign is dropped: the stored value is abs(number), the
// direction is carried by the operation.
//
// Examples:
//
//	ParseAmount("12.34") -> 12.34, nil
//	ParseAmount("12,34") -> 12.34, nil
//	ParseAmount("-5")    -> 5, nil
//	ParseAmount("abc")   -> 0, ErrInvalidNumber
//	ParseAmount("1e500") -> 0, ErrInvalidNumber
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" || len(s) > maxAmountLength {
		return decimal.Zero, ErrInvalidNumber
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.TrimPrefix(s, "+")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	d = d.Abs()
	if d.IsZero() {
		return decimal.Zero, nil
	}
	if !InAmountRange(d) {
		return decimal.Zero, ErrInvalidNumber
	}
	return d, nil
}

// InAmountRange reports whether |d| has at most 15 digits before the point
// and 8 significant digits after it. Only the exponent and the short
// coefficient are inspected, never the expansion.
func InAmountRange(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	d = d.Abs()
	exp := int(d.Exponent())
	if exp > maxAmountIntegerDigits || exp < -maxAmountLength {
		return false
	}
	if len(d.Coefficient().String())+exp > maxAmountIntegerDigits {
		return false
	}
	if exp < -maxAmountScale && !d.Equal(d.Truncate(maxAmountScale)) {
		return false
	}
	return true
}

// FormatAmount renders an amount with two decimals for display.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
