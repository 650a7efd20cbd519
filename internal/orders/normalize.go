package orders

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// NormalizePhone drops whitespace and hyphens: "6011-123 4567" -> "60111234567".
func NormalizePhone(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// PaymentMethods adalah himpunan metode yang diterima kasir.
var PaymentMethods = map[string]bool{
	"cash":        true,
	"card":        true,
	"qr":          true,
	"transfer":    true,
	"credit card": true,
	"cheque":      true,
}

// NormalizePaymentMethod returns the canonical method and whether it is allowed.
func NormalizePaymentMethod(s string) (string, bool) {
	m := strings.ToLower(strings.TrimSpace(s))
	return m, PaymentMethods[m]
}

// SumLines returns the sum of line totals.
func SumLines(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// FinalTotal: override menang kalau ada, selain itu jumlah line.
func FinalTotal(lines []Line, override *decimal.Decimal) decimal.Decimal {
	if override != nil {
		return *override
	}
	return SumLines(lines)
}
