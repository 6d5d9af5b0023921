package runner

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dhcgn/grab-receipts-exporter/config"
	"github.com/dhcgn/grab-receipts-exporter/model"
	"github.com/dhcgn/grab-receipts-exporter/receipt"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawMessage(body string) []byte {
	return []byte("Date: Thu, 24 Apr 2025 12:26:59 +0700\r\nSubject: Your Grab E-Receipt\r\n\r\n" + body + "\r\n")
}

func collectRecords(t *testing.T, cfg config.Config, envelopes []model.Envelope) []receipt.Record {
	t.Helper()

	r, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var records []receipt.Record
	r.AddStage("collect", func(ctx context.Context) error {
		for rec := range r.Records() {
			records = append(records, rec)
		}
		return nil
	})

	go func() {
		out := r.MailboxWriter()
		for _, env := range envelopes {
			out <- env
		}
		r.CloseMailbox()
	}()

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return records
}

func TestBridgeIsolatesEnvelopeErrors(t *testing.T) {
	cfg := config.Config{StateDir: t.TempDir(), DryRun: true, LogLevel: "error"}

	envelopes := []model.Envelope{
		{Err: errors.New("fetch uid 1: boom")},
		{Message: model.RawMessage{UID: 2, Raw: rawMessage("SOURCE_GRABFOOD Total ฿ 191")}},
	}

	records := collectRecords(t, cfg, envelopes)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1 (error envelope skipped, not fatal)", len(records))
	}
	if records[0].UID != 2 || records[0].Type != receipt.ServiceFood {
		t.Errorf("record = %+v", records[0])
	}
}

func TestBridgeAppliesTypeFilter(t *testing.T) {
	cfg := config.Config{StateDir: t.TempDir(), DryRun: true, LogLevel: "error", OnlyTypes: []string{"GrabTip"}}

	envelopes := []model.Envelope{
		{Message: model.RawMessage{UID: 1, Raw: rawMessage("SOURCE_GRABFOOD Total ฿ 191")}},
		{Message: model.RawMessage{UID: 2, Raw: rawMessage("Tips E-Receipt Total ฿ 20")}},
	}

	records := collectRecords(t, cfg, envelopes)
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Type != receipt.ServiceTip {
		t.Errorf("record type = %q", records[0].Type)
	}
}

func TestBridgeBodyFilterMatchesDecodedText(t *testing.T) {
	cfg := config.Config{StateDir: t.TempDir(), DryRun: true, LogLevel: "error", IncludeBody: []string{"E-Receipt"}}

	// "Your Grab E-Receipt body" in base64; the raw bytes never contain the
	// pattern, only the decoded text does.
	encoded := []byte("Date: Thu, 24 Apr 2025 12:26:59 +0700\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"Content-Transfer-Encoding: base64\r\n" +
		"\r\n" +
		"WW91ciBHcmFiIEUtUmVjZWlwdCBib2R5\r\n")

	envelopes := []model.Envelope{
		{Message: model.RawMessage{UID: 1, Raw: encoded}},
		{Message: model.RawMessage{UID: 2, Raw: rawMessage("unrelated newsletter")}},
	}

	records := collectRecords(t, cfg, envelopes)
	if len(records) != 1 || records[0].UID != 1 {
		t.Fatalf("records = %+v, want only the base64 message", records)
	}
}

func TestBridgeSkipsAtOrBelowCursor(t *testing.T) {
	cfg := config.Config{StateDir: t.TempDir(), DryRun: true, LogLevel: "error"}

	r, err := New(cfg, quietLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	r.Tracker().Advance(5)

	var records []receipt.Record
	r.AddStage("collect", func(ctx context.Context) error {
		for rec := range r.Records() {
			records = append(records, rec)
		}
		return nil
	})

	go func() {
		out := r.MailboxWriter()
		out <- model.Envelope{Message: model.RawMessage{UID: 5, Raw: rawMessage("Tips E-Receipt")}}
		out <- model.Envelope{Message: model.RawMessage{UID: 6, Raw: rawMessage("Tips E-Receipt")}}
		r.CloseMailbox()
	}()

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if len(records) != 1 || records[0].UID != 6 {
		t.Errorf("records = %+v, want only uid 6", records)
	}
}

func TestNewRejectsBadFilter(t *testing.T) {
	cfg := config.Config{StateDir: t.TempDir(), OnlyTypes: []string{"nope"}}
	if _, err := New(cfg, quietLogger()); err == nil {
		t.Error("expected error for invalid filter config")
	}
}
