package stream

import (
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
)

func TestDecodeMixedFrame(t *testing.T) {
	frame := []byte(`[
		{"ev":"T","sym":"AAPL","p":201.35,"s":500,"t":1748871000123,"x":4},
		{"ev":"AM","sym":"AAPL","o":200.1,"h":201.6,"l":199.9,"c":201.35,"v":182000,"vw":200.8,"s":1748870940000,"e":1748871000000},
		{"ev":"OQ","sym":"O:AAPL241220C00200000","bp":4.9,"ap":5.1,"t":1748871000500},
		{"ev":"OT","sym":"O:AAPL241220C00200000","p":5.1,"s":120,"t":1748871000650,"x":2},
		{"ev":"??","sym":"JUNK"}
	]`)

	events := decodeFrame(frame)
	if len(events) != 4 {
		t.Fatalf("decoded %d events, want 4", len(events))
	}

	trade := events[0].Trade
	if trade == nil || trade.Ticker != "AAPL" || trade.Price != 201.35 || trade.ExchangeID != 4 {
		t.Fatalf("trade = %+v", trade)
	}
	if trade.Timestamp != 1748871000123*int64(time.Millisecond) {
		t.Fatalf("trade ts = %d, want ns conversion", trade.Timestamp)
	}

	bar := events[1].Bar
	if bar == nil || bar.Close != 201.35 || bar.VWAP != 200.8 {
		t.Fatalf("bar = %+v", bar)
	}
	if bar.EndTs-bar.StartTs != int64(time.Minute) {
		t.Fatalf("bar window = %d ns, want one minute", bar.EndTs-bar.StartTs)
	}

	quote := events[2].Quote
	if quote == nil || quote.BidPrice != 4.9 || quote.AskPrice != 5.1 {
		t.Fatalf("quote = %+v", quote)
	}

	opt := events[3].OptionTrade
	if opt == nil || opt.Underlying != "AAPL" || opt.OptionType != models.OptionCall {
		t.Fatalf("option trade = %+v", opt)
	}
	if opt.Strike != 200 {
		t.Fatalf("strike = %v, want 200", opt.Strike)
	}
}

func TestDecodeRejectsMalformedFrame(t *testing.T) {
	if got := decodeFrame([]byte(`{"not":"an array"}`)); got != nil {
		t.Fatalf("expected nil for non-array frame, got %+v", got)
	}
	if got := decodeFrame([]byte(`[{"ev":"OT","sym":"O:BROKEN","p":1,"s":1,"t":1}]`)); len(got) != 0 {
		t.Fatalf("unparseable contract must be skipped, got %+v", got)
	}
}

func TestParseContract(t *testing.T) {
	meta, err := ParseContract("O:TSLA250117P00180500")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if meta.Underlying != "TSLA" {
		t.Fatalf("underlying = %s", meta.Underlying)
	}
	if meta.Type != models.OptionPut {
		t.Fatalf("type = %s, want put", meta.Type)
	}
	if meta.Strike != 180.5 {
		t.Fatalf("strike = %v, want 180.5", meta.Strike)
	}
	want := time.Date(2025, 1, 17, 0, 0, 0, 0, time.UTC)
	if !meta.Expiration.Equal(want) {
		t.Fatalf("expiration = %s, want %s", meta.Expiration, want)
	}
}

func TestParseContractErrors(t *testing.T) {
	for _, id := range []string{"AAPL241220C00200000", "O:SHORT", "O:AAPL241220X00200000", "O:24122000200000C"} {
		if _, err := ParseContract(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
