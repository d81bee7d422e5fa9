// Package money converts between integer minor units (kopecks) and the
// decimal rouble amounts shown to people and accepted from admin input.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// MinorPerMajor is the number of kopecks in one rouble.
const MinorPerMajor = 100

var hundred = decimal.NewFromInt(MinorPerMajor)

// FromMajor parses a decimal rouble amount such as "450.00" into kopecks.
// Amounts with more than two fractional digits or a negative sign are rejected.
func FromMajor(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	minor := d.Mul(hundred)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has fractional kopecks", s)
	}
	return minor.IntPart(), nil
}

// Format renders kopecks as "45 000 ₽" or "450,50 ₽": thousands separated by a
// space, kopecks shown only when non-zero.
func Format(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	whole := groupThousands(fmt.Sprintf("%d", minor/MinorPerMajor))
	if frac := minor % MinorPerMajor; frac != 0 {
		return fmt.Sprintf("%s%s,%02d ₽", sign, whole, frac)
	}
	return fmt.Sprintf("%s%s ₽", sign, whole)
}

func groupThousands(s string) string {
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
