package utils

import (
	"math"
	"strconv"
	"strings"
)

// FormatAmount renders an amount with thousands separators and two decimals,
// prefixed by the currency code when one is given.
func FormatAmount(amount float64, currency string) string {
	negative := amount < 0
	cents := int64(math.Round(math.Abs(amount) * 100))
	whole := strconv.FormatInt(cents/100, 10)

	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	frac := cents % 100
	text := b.String() + "."
	if frac < 10 {
		text += "0"
	}
	text += strconv.FormatInt(frac, 10)
	if negative {
		text = "-" + text
	}
	if currency = strings.TrimSpace(currency); currency != "" {
		return currency + " " + text
	}
	return text
}
