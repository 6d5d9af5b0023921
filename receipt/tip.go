package receipt

import (
	"regexp"
	"strings"
)

var (
	// Driver name sits between the driver label and the traveler-name label
	// (or end of text). The "(GB)" fleet prefix is dropped.
	tipDriverPattern  = regexp.MustCompile(`(?:ชื่อผู้ขับ|Driver)[:\s]*(?:\(GB\))?\s*([^\n]+?)(?:\s*ชื่อผู้เดินทาง|$)`)
	tipPaymentPattern = regexp.MustCompile(`(?i)(?:ชำระโดย|Paid by|Payment)[:\s]*(MasterCard|Visa|Cash|GrabPay)\s*(\d{4})?`)
)

// The order id is not duplicated here, the caller already has it from
// ExtractOrderID.
func extractTip(text string) Metadata {
	meta := Metadata{}

	if m := tipDriverPattern.FindStringSubmatch(text); m != nil {
		meta["driver_name"] = strings.TrimSpace(m[1])
	}
	if m := tipPaymentPattern.FindStringSubmatch(text); m != nil {
		meta["payment_method"] = strings.TrimSpace(m[1] + " " + m[2])
	}

	return meta
}
