package receipt

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Total amount patterns in fallback order. The Baht symbol form is the most
// common (often an integer), the THB prefix/suffix forms always carry two
// decimals.
var totalAmountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`฿\s*([\d,]+(?:\.\d{2})?)`),
	regexp.MustCompile(`THB\s*([\d,]+\.\d{2})`),
	regexp.MustCompile(`([\d,]+\.\d{2})\s*THB`),
}

// ExtractTotalAmount returns the first total found in the text, trying each
// pattern in order. A match whose digits fail to convert counts as no match
// and scanning continues with the next pattern.
func ExtractTotalAmount(text string) (float64, bool) {
	for _, pattern := range totalAmountPatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v, ok := parseAmount(m[1]); ok {
			return v, true
		}
	}
	return 0, false
}

// Grab order/booking ids all look like A-8Q34JAIGWGQMAV.
var orderIDPattern = regexp.MustCompile(`A-[A-Z0-9]{10,}`)

// ExtractOrderID returns the first order id in the text, or "".
func ExtractOrderID(text string) string {
	return orderIDPattern.FindString(text)
}

// parseAmount converts an amount string to a float, stripping thousands
// separators. Non-convertible text yields ok=false, never an error.
func parseAmount(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// formatAmount renders a float the way the ledger historically did: integral
// values keep one trailing decimal ("80.0"), everything else prints its
// shortest exact form.
func formatAmount(f float64) string {
	if f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
