package report

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const rupee = "₹"

// Indian numbering units.
const (
	crore    = 1e7
	lakh     = 1e5
	thousand = 1e3
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders amount with thousands separators and two decimals.
func FormatAmount(amount float64) string {
	return printer.Sprintf("%.2f", amount)
}

// FormatCurrency renders amount in crore/lakh notation, e.g. "₹1.50 Cr".
func FormatCurrency(amount float64) string {
	return formatIndian(amount, "%.2f Cr", "%.2f L", "%.1fK")
}

// FormatCurrencyCompact is FormatCurrency with fewer digits and no spaces.
func FormatCurrencyCompact(amount float64) string {
	return formatIndian(amount, "%.1fCr", "%.1fL", "%.0fK")
}

func formatIndian(amount float64, crFmt, lakhFmt, kFmt string) string {
	if amount == 0 || math.IsNaN(amount) {
		return rupee + "0"
	}
	neg := amount < 0
	a := math.Abs(amount)

	var s string
	switch {
	case a >= crore:
		s = rupee + printer.Sprintf(crFmt, a/crore)
	case a >= lakh:
		s = rupee + printer.Sprintf(lakhFmt, a/lakh)
	case a >= thousand:
		s = rupee + printer.Sprintf(kFmt, a/thousand)
	default:
		s = rupee + printer.Sprintf("%d", int64(math.Round(a)))
	}
	if neg {
		return "-" + s
	}
	return s
}

// ParseCurrency reverses FormatCurrency and FormatCurrencyCompact. Plain
// numbers with separators are accepted too.
func ParseCurrency(s string) (float64, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(s, rupee, ""))
	neg := strings.HasPrefix(cleaned, "-")
	cleaned = strings.TrimSpace(strings.TrimPrefix(cleaned, "-"))

	mult := 1.0
	for _, u := range []struct {
		suffix string
		mult   float64
	}{
		{"Crores", crore}, {"Lakhs", lakh}, {"Thousands", thousand},
		{"Cr", crore}, {"L", lakh}, {"K", thousand},
	} {
		if strings.HasSuffix(cleaned, u.suffix) {
			cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, u.suffix))
			mult = u.mult
			break
		}
	}

	f, err := strconv.ParseFloat(strings.ReplaceAll(cleaned, ",", ""), 64)
	if err != nil {
		return 0, err
	}
	if neg {
		f = -f
	}
	return f * mult, nil
}
