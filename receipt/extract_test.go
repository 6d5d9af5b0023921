package receipt

import (
	"strings"
	"testing"
)

func TestExtractFood(t *testing.T) {
	text := "Grab E-Receipt " +
		"สถานที่เริ่มต้นการเดินทาง: ร้านข้าวมันไก่ประตูน้ำ สถานที่ปลายทาง: 99/1 Sukhumvit 24, Bangkok โปรไฟล์ ส่วนตัว " +
		"1x ข้าวผัด ฿ 80 2x ต้มยำ ฿ 120 " +
		"ค่าอาหาร ฿ 320 ค่าจัดส่ง ฿ 25 คำสั่งซื้อพิเศษ ฿ 10 " +
		"รูปแบบการชำระเงิน: MasterCard 1234"

	meta := ExtractMetadata(text, ServiceFood)

	if got := meta["restaurant"]; got != "ร้านข้าวมันไก่ประตูน้ำ" {
		t.Errorf("restaurant = %v", got)
	}
	if got := meta["delivery_address"]; got != "99/1 Sukhumvit 24, Bangkok" {
		t.Errorf("delivery_address = %v", got)
	}

	items, _ := meta["items"].(string)
	if !strings.Contains(items, "1x ข้าวผัด @80.0") {
		t.Errorf("items missing first line item: %q", items)
	}
	if !strings.Contains(items, "2x ต้มยำ @120.0") {
		t.Errorf("items missing second line item: %q", items)
	}
	if !strings.Contains(items, "; ") {
		t.Errorf("items not joined with separator: %q", items)
	}

	if got := meta["subtotal"]; got != 320.0 {
		t.Errorf("subtotal = %v", got)
	}
	if got := meta["delivery_fee"]; got != 25.0 {
		t.Errorf("delivery_fee = %v", got)
	}
	if got := meta["platform_fee"]; got != 10.0 {
		t.Errorf("platform_fee = %v", got)
	}
	if got := meta["payment_method"]; got != "MasterCard 1234" {
		t.Errorf("payment_method = %v", got)
	}
}

func TestExtractFoodPartial(t *testing.T) {
	meta := ExtractMetadata("nothing recognizable", ServiceFood)
	if len(meta) != 0 {
		t.Errorf("expected empty metadata, got %v", meta)
	}

	meta = ExtractMetadata("ค่าจัดส่ง ฿ 40", ServiceFood)
	if got := meta["delivery_fee"]; got != 40.0 {
		t.Errorf("delivery_fee = %v", got)
	}
	if _, ok := meta["restaurant"]; ok {
		t.Error("restaurant should be absent")
	}
}

func TestExtractFoodCashPayment(t *testing.T) {
	meta := ExtractMetadata("Paid by Cash", ServiceFood)
	if got := meta["payment_method"]; got != "Cash" {
		t.Errorf("payment_method = %v", got)
	}

	meta = ExtractMetadata("รูปแบบการชำระเงิน: เงินสด", ServiceFood)
	if got := meta["payment_method"]; got != "เงินสด" {
		t.Errorf("thai cash payment_method = %v", got)
	}
}

func TestExtractTransport(t *testing.T) {
	text := "GrabCar Premium 17.18 km • 38 mins " +
		"The River Condominium North Tower 8:13AM SCB Park Plaza West 8:52AM " +
		"Fare ฿ 350 Toll ฿ 50 Platform Fee ฿ 5 " +
		"Paid by MasterCard 9876 ฿ 405"

	meta := ExtractMetadata(text, ServiceTransport)

	if got := meta["service_class"]; got != "GrabCar Premium" {
		t.Errorf("service_class = %v", got)
	}
	if got := meta["distance_km"]; got != 17.18 {
		t.Errorf("distance_km = %v", got)
	}
	if got := meta["duration_min"]; got != 38 {
		t.Errorf("duration_min = %v", got)
	}
	if got := meta["pickup_time"]; got != "8:13AM" {
		t.Errorf("pickup_time = %v", got)
	}
	if got := meta["dropoff_time"]; got != "8:52AM" {
		t.Errorf("dropoff_time = %v", got)
	}
	pickup, _ := meta["pickup"].(string)
	if !strings.Contains(pickup, "River Condominium") {
		t.Errorf("pickup = %q", pickup)
	}
	dropoff, _ := meta["dropoff"].(string)
	if !strings.Contains(dropoff, "SCB Park Plaza") {
		t.Errorf("dropoff = %q", dropoff)
	}
	if got := meta["fare"]; got != 350.0 {
		t.Errorf("fare = %v", got)
	}
	if got := meta["toll"]; got != 50.0 {
		t.Errorf("toll = %v", got)
	}
	if got := meta["platform_fee"]; got != 5.0 {
		t.Errorf("platform_fee = %v", got)
	}
	if got := meta["payment_method"]; got != "Card ending 9876" {
		t.Errorf("payment_method = %v", got)
	}
}

func TestExtractTransportDistanceDurationJoint(t *testing.T) {
	meta := ExtractMetadata("17.18 km • 38 mins", ServiceTransport)
	if meta["distance_km"] != 17.18 || meta["duration_min"] != 38 {
		t.Errorf("joint extraction failed: %v", meta)
	}

	// Distance without the joint pattern leaves both fields absent.
	meta = ExtractMetadata("17.18 km away", ServiceTransport)
	_, hasDistance := meta["distance_km"]
	_, hasDuration := meta["duration_min"]
	if hasDistance || hasDuration {
		t.Errorf("expected neither field, got %v", meta)
	}
}

func TestExtractTransportSingleLocationPair(t *testing.T) {
	meta := ExtractMetadata("Somewhere 8:13AM", ServiceTransport)
	if _, ok := meta["pickup"]; ok {
		t.Error("pickup should require at least two location/time pairs")
	}
}

func TestExtractTransportPaymentFallback(t *testing.T) {
	meta := ExtractMetadata("charged to Visa 4321", ServiceTransport)
	if got := meta["payment_method"]; got != "Visa 4321" {
		t.Errorf("payment_method = %v", got)
	}
}

func TestExtractTip(t *testing.T) {
	text := "Grab Tips E-Receipt ชื่อผู้ขับ: สมชาย ใจดี ชื่อผู้เดินทาง: Somsri ชำระโดย: GrabPay 5678"

	meta := ExtractMetadata(text, ServiceTip)

	if got := meta["driver_name"]; got != "สมชาย ใจดี" {
		t.Errorf("driver_name = %v", got)
	}
	if got := meta["payment_method"]; got != "GrabPay 5678" {
		t.Errorf("payment_method = %v", got)
	}
}

func TestExtractTipDriverAtEndOfText(t *testing.T) {
	meta := ExtractMetadata("Driver: John Walker", ServiceTip)
	if got := meta["driver_name"]; got != "John Walker" {
		t.Errorf("driver_name = %v", got)
	}
}

func TestExtractUnknownIsEmpty(t *testing.T) {
	meta := ExtractMetadata("Fare ฿ 350 anything", ServiceUnknown)
	if len(meta) != 0 {
		t.Errorf("unknown type should produce empty metadata, got %v", meta)
	}
}
