// Package format renders amounts and dates for display.
package format

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/currency"
)

var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"EGP": "E£",
}

// arabicSymbols are written after the amount.
var arabicSymbols = map[string]string{
	"EGP": "ج.م",
	"SAR": "ر.س",
	"AED": "د.إ",
}

// Scale returns the number of minor-unit digits of an ISO currency code.
// Unknown codes use two digits.
func Scale(code string) int {
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return 2
	}
	scale, _ := currency.Standard.Rounding(unit)
	return scale
}

// FmtCurrency formats an amount in minor units.
// Example: FmtCurrency(123450, "EGP", "en") => "E£1,234.50"
func FmtCurrency(minor int64, code, lang string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	neg := minor < 0
	if neg {
		minor = -minor
	}
	number := decimal(minor, Scale(code))
	if neg {
		number = "-" + number
	}

	if strings.HasPrefix(strings.ToLower(lang), "ar") {
		if sym, ok := arabicSymbols[code]; ok {
			return number + " " + sym
		}
	}
	if sym, ok := symbols[code]; ok {
		if neg {
			return "-" + sym + number[1:]
		}
		return sym + number
	}
	return code + " " + number
}

func decimal(minor int64, scale int) string {
	if scale <= 0 {
		return thousandSep(minor)
	}
	div := int64(1)
	for i := 0; i < scale; i++ {
		div *= 10
	}
	frac := strconv.FormatInt(minor%div, 10)
	for len(frac) < scale {
		frac = "0" + frac
	}
	return thousandSep(minor/div) + "." + frac
}

func thousandSep(n int64) string {
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, c := range s {
		if i != 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// FmtDate formats time in a locale-friendly short form.
func FmtDate(t time.Time, lang string) string {
	switch strings.ToLower(lang) {
	case "ar":
		return t.Format("2006/01/02")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// FmtDeliveryWindow describes an estimated delivery date range from now.
func FmtDeliveryWindow(now time.Time, days int, lang string) string {
	if days <= 0 {
		return ""
	}
	return FmtDate(now.AddDate(0, 0, days), lang)
}
