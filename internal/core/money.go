// Package core holds the domain types for the cobranzas ledger.
//
// This file contains parsing and formatting of monetary amounts. Amounts
// are written the way guaraní amounts are written locally: period as
// thousands separator, comma as decimal separator ("1.234,56").
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts user-entered amount text to a decimal.
//
// Periods are treated as thousands separators and stripped; a comma is the
// decimal separator and becomes a period before conversion. Text that does
// not parse yields decimal zero rather than an error; callers reject it
// through the positive-amount validation, not at the parse step.
//
// Examples:
//
//	ParseAmount("1.234,56") -> 1234.56
//	ParseAmount("2000000")  -> 2000000
//	ParseAmount("abc")      -> 0
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatAmountInput renders an amount the way ParseAmount reads it back,
// with a comma decimal and no thousands separators. Used to pre-fill
// edit forms so a resubmitted value round-trips unchanged.
func FormatAmountInput(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1)
}

// FormatGuarani renders an amount for display, e.g. "₲ 1.234,56".
// Thousands are separated with periods, decimals with a comma, always two
// decimal places.
func FormatGuarani(d decimal.Decimal) string {
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(2)

	intPart := fixed
	fracPart := "00"
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart = fixed[:i]
		fracPart = fixed[i+1:]
	}

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	b.WriteString("₲ ")
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(fracPart)
	return b.String()
}
