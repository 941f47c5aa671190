package order

import (
	"strconv"
	"strings"
)

// FormatAmount renders an amount the way customers see it:
// "200 USD" for dollars, "470 000 FC" for francs.
// This is a PURE function.
func FormatAmount(amount float64, currency Currency) string {
	if currency == CurrencyCDF {
		return groupThousands(strconv.FormatFloat(amount, 'f', -1, 64)) + " FC"
	}
	return strconv.FormatFloat(amount, 'f', -1, 64) + " USD"
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], ","+s[i+1:]
	}

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + frac
}
