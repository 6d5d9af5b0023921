package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// GrabFood templates label the restaurant and delivery address with a Thai
// origin/destination/profile sequence. Each rule below is independent; a rule
// that does not match simply leaves its field absent.
var (
	foodRestaurantPattern = regexp.MustCompile(`สถานที่เริ่มต้นการเดินทาง:\s*(.+?)\s*สถานที่ปลายทาง`)
	foodAddressPattern    = regexp.MustCompile(`สถานที่ปลายทาง:\s*(.+?)\s*โปรไฟล์`)
	foodItemPattern       = regexp.MustCompile(`(\d+)x\s+(.+?)\s+฿\s*([\d,]+)`)
	foodSubtotalPattern   = regexp.MustCompile(`ค่าอาหาร\s+฿\s*([\d,]+)`)
	foodDeliveryPattern   = regexp.MustCompile(`ค่าจัดส่ง\s+฿\s*([\d,]+)`)
	foodPlatformPattern   = regexp.MustCompile(`(?:คำสั่งซื้อพิเศษ|Platform Fee|Small Order Fee)\s*\d*\s*฿\s*([\d,]+)`)
	foodPaymentPattern    = regexp.MustCompile(`(?i)(?:รูปแบบการชำระเงิน|Paid by|Payment)[:\s]*(MasterCard|Visa|Cash|GrabPay|เงินสด)\s*(\d{4})?`)
)

func extractFood(text string) Metadata {
	meta := Metadata{}

	if m := foodRestaurantPattern.FindStringSubmatch(text); m != nil {
		meta["restaurant"] = strings.TrimSpace(m[1])
	}
	if m := foodAddressPattern.FindStringSubmatch(text); m != nil {
		meta["delivery_address"] = strings.TrimSpace(m[1])
	}

	var items []string
	for _, m := range foodItemPattern.FindAllStringSubmatch(text, -1) {
		qty, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		price, ok := parseAmount(m[3])
		if !ok {
			continue
		}
		items = append(items, fmt.Sprintf("%dx %s @%s", qty, strings.TrimSpace(m[2]), formatAmount(price)))
	}
	if len(items) > 0 {
		meta["items"] = strings.Join(items, "; ")
	}

	if m := foodSubtotalPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["subtotal"] = v
		}
	}
	if m := foodDeliveryPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["delivery_fee"] = v
		}
	}
	if m := foodPlatformPattern.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			meta["platform_fee"] = v
		}
	}

	if m := foodPaymentPattern.FindStringSubmatch(text); m != nil {
		meta["payment_method"] = strings.TrimSpace(m[1] + " " + m[2])
	}

	return meta
}
