package receipt

import (
	"bytes"
	"encoding/json"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// Record is one assembled ledger row. Created once per message, serialized
// immediately, never mutated afterwards.
type Record struct {
	UID         uint32
	Date        string
	Type        ServiceType
	OrderID     string
	Currency    string
	TotalAmount string
	Metadata    string
}

// CSVHeader is the fixed column order of the ledger file.
func CSVHeader() []string {
	return []string{"uid", "date", "type", "order_id", "currency", "total_amount", "metadata"}
}

// Row renders the record as CSV cells, absent fields as empty strings.
func (r Record) Row() []string {
	return []string{
		strconv.FormatUint(uint64(r.UID), 10),
		r.Date,
		string(r.Type),
		r.OrderID,
		r.Currency,
		r.TotalAmount,
		r.Metadata,
	}
}

// ExtractMetadata runs the extractor matching the service type over the
// HTML-stripped text. Unknown receipts get an empty mapping.
func ExtractMetadata(text string, serviceType ServiceType) Metadata {
	stripped := StripHTML(text)
	switch serviceType {
	case ServiceFood:
		return extractFood(stripped)
	case ServiceTransport:
		return extractTransport(stripped)
	case ServiceTip:
		return extractTip(stripped)
	}
	return Metadata{}
}

// Assemble builds the record for one message from its identifier, Date
// header and combined body text. The date header is normalized to RFC 3339;
// if it does not parse the raw header string passes through unchanged. Total
// amount and order id are attempted regardless of classification.
func Assemble(uid uint32, dateHeader, text string) Record {
	date := dateHeader
	if t, err := mail.ParseDate(dateHeader); err == nil {
		date = t.Format(time.RFC3339)
	}

	serviceType := Classify(text)

	rec := Record{
		UID:     uid,
		Date:    date,
		Type:    serviceType,
		OrderID: ExtractOrderID(text),
	}

	if total, ok := ExtractTotalAmount(text); ok {
		rec.Currency = "THB"
		rec.TotalAmount = strconv.FormatFloat(total, 'f', 2, 64)
	}

	if meta := ExtractMetadata(text, serviceType); len(meta) > 0 {
		rec.Metadata = encodeMetadata(meta)
	}

	return rec
}

// Parse assembles a record straight from the raw message bytes.
func Parse(uid uint32, raw []byte) Record {
	rec, _ := ParseMessage(uid, raw)
	return rec
}

// ParseMessage is Parse plus the combined body text, for callers that match
// patterns against the decoded message afterwards.
func ParseMessage(uid uint32, raw []byte) (Record, string) {
	var dateHeader string
	if msg, err := mail.ReadMessage(bytes.NewReader(raw)); err == nil {
		dateHeader = msg.Header.Get("Date")
	}
	text := EmailText(raw)
	return Assemble(uid, dateHeader, text), text
}

// encodeMetadata writes compact JSON without HTML escaping so Thai text and
// URLs stay readable in the CSV cell.
func encodeMetadata(meta Metadata) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(meta); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
