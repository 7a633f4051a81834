package engine

import (
	"math"
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
)

func trade(ticker string, price, size float64, ts int64) *models.Trade {
	return &models.Trade{Ticker: ticker, Price: price, Size: size, Timestamp: ts}
}

func TestDayExtremaTrackMinMax(t *testing.T) {
	e := New(Config{})
	prices := []float64{101.5, 99.2, 104.8, 100.0, 97.6, 103.1}
	ts := time.Now().UnixNano()
	for i, p := range prices {
		e.IngestTrade(trade("AAPL", p, 100, ts+int64(i)))
	}
	s := e.State("AAPL")
	if s.DayHigh != 104.8 {
		t.Fatalf("day high = %v, want 104.8", s.DayHigh)
	}
	if s.DayLow != 97.6 {
		t.Fatalf("day low = %v, want 97.6", s.DayLow)
	}
}

func TestVWAPEqualsWeightedAverage(t *testing.T) {
	e := New(Config{})
	ts := time.Now().UnixNano()
	type obs struct{ p, v float64 }
	seq := []obs{{100, 200}, {101, 50}, {99.5, 300}, {100.25, 125}}
	var num, den float64
	for i, o := range seq {
		e.IngestTrade(trade("MSFT", o.p, o.v, ts+int64(i)))
		num += o.p * o.v
		den += o.v
	}
	vwap, ok := e.State("MSFT").VWAP()
	if !ok {
		t.Fatalf("expected vwap available")
	}
	if math.Abs(vwap-num/den) > 1e-9 {
		t.Fatalf("vwap = %v, want %v", vwap, num/den)
	}
}

func TestTradeBufferBounded(t *testing.T) {
	e := New(Config{TradeBufferCap: 10})
	ts := time.Now().UnixNano()
	for i := 0; i < 25; i++ {
		e.IngestTrade(trade("TSLA", 100+float64(i), 1, ts+int64(i)))
	}
	s := e.State("TSLA")
	if len(s.Trades()) != 10 {
		t.Fatalf("trade buffer len = %d, want 10", len(s.Trades()))
	}
	// oldest evicted: first retained is the 16th trade
	if got := s.Trades()[0].Price; got != 115 {
		t.Fatalf("oldest retained price = %v, want 115", got)
	}
}

func TestBarBufferBounded(t *testing.T) {
	e := New(Config{BarBufferCap: 5})
	for i := 0; i < 8; i++ {
		e.IngestBar(barAt("NVDA", 100, 100, int64(i)))
	}
	if got := len(e.State("NVDA").Bars()); got != 5 {
		t.Fatalf("bar buffer len = %d, want 5", got)
	}
}

func TestResetDailyClearsSessionState(t *testing.T) {
	e := New(Config{})
	ts := time.Now().UnixNano()
	e.IngestTrade(trade("AAPL", 150, 100, ts))
	e.IngestBar(barAt("AAPL", 151, 10_000, 1))
	e.ResetDaily()

	s := e.State("AAPL")
	if _, ok := s.VWAP(); ok {
		t.Fatalf("vwap sums must be zeroed")
	}
	if s.DayHigh != 0 || !math.IsInf(s.DayLow, 1) {
		t.Fatalf("extrema must reset, got high=%v low=%v", s.DayHigh, s.DayLow)
	}
	if len(s.Trades()) != 0 {
		t.Fatalf("trade buffer must be cleared")
	}
	if s.SessionBars() != 0 {
		t.Fatalf("session bar count must reset")
	}
	// bar buffer survives the reset; only the session counter restarts
	if len(s.Bars()) != 1 {
		t.Fatalf("bar buffer should be retained")
	}
}

func TestSnapshotReportsFiniteLow(t *testing.T) {
	e := New(Config{})
	e.State("AMD")
	snap, ok := e.Snapshot("AMD")
	if !ok {
		t.Fatalf("expected snapshot")
	}
	if snap.DayLow != 0 {
		t.Fatalf("untouched day low should report 0, got %v", snap.DayLow)
	}
	if _, ok := e.Snapshot("UNKNOWN"); ok {
		t.Fatalf("unknown ticker must not snapshot")
	}
}
