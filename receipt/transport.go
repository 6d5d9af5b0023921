package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Ride tier vocabulary as printed at the top of transport receipts.
	serviceClassPattern = regexp.MustCompile(`(?i)(GrabCar\s*Premium|Standard\s*\(JustGrab\)|JustGrab|GrabBike)`)

	// "17.18 km • 38 mins" or "17 km · 38 min".
	distanceDurationPattern = regexp.MustCompile(`([\d.]+)\s*km\s*[•·]\s*(\d+)\s*min`)

	// Location followed by a clock time, e.g. "SCB Park Plaza West 8:52AM".
	// First pair is the pickup, second the dropoff.
	locationTimePattern = regexp.MustCompile(`([^⋮]+?)\s+(\d{1,2}:\d{2}[AP]M)`)

	transportFarePattern     = regexp.MustCompile(`(?:Fare|ค่าโดยสาร)\s+(?:฿\s*)?([\d,]+)`)
	transportTollPattern     = regexp.MustCompile(`(?i)Toll\s+(?:฿\s*)?([\d,]+)`)
	transportPlatformPattern = regexp.MustCompile(`(?i)Platform Fee\s+(?:฿\s*)?([\d,]+)`)

	// "Paid by ... 1234 ฿" gives the card's last four digits.
	transportPaidCardPattern = regexp.MustCompile(`(?i)(?:Paid by|Payment)[:\s]*(?:.*?)(\d{4})\s*(?:฿|THB)`)
	transportPaymentPattern  = regexp.MustCompile(`(?i)(MasterCard|Visa|Cash|GrabPay)\s*(\d{4})?`)
)

func extractTransport(text string) Metadata {
	meta := Metadata{}

	if m := serviceClassPattern.FindStringSubmatch(text); m != nil {
		meta["service_class"] = strings.TrimSpace(m[1])
	}

	// Distance and duration come from one joint pattern: both set or neither.
	if m := distanceDurationPattern.FindStringSubmatch(text); m != nil {
		km, kmErr := strconv.ParseFloat(m[1], 64)
		min, minErr := strconv.Atoi(m[2])
		if kmErr == nil && minErr == nil {
			meta["distance_km"] = km
			meta["duration_min"] = min
		}
	}

	if pairs := locationTimePattern.FindAllStringSubmatch(text, -1); len(pairs) >= 2 {
		meta["pickup"] = strings.TrimSpace(pairs[0][1])
		meta["pickup_time"] = pairs[0][2]
		meta["dropoff"] = strings.TrimSpace(pairs[1][1])
		meta["dropoff_time"] = pairs[1][2]
	}

	if m := transportFarePattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["fare"] = v
		}
	}
	if m := transportTollPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["toll"] = v
		}
	}
	if m := transportPlatformPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["platform_fee"] = v
		}
	}

	if m := transportPaidCardPattern.FindStringSubmatch(text); m != nil {
		meta["payment_method"] = fmt.Sprintf("Card ending %s", m[1])
	} else if m := transportPaymentPattern.FindStringSubmatch(text); m != nil {
		meta["payment_method"] = strings.TrimSpace(m[1] + " " + m[2])
	}

	return meta
}
