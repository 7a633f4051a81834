package sweep

import (
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
)

const contract = "O:AAPL241220C00200000"

func optTrade(price, size float64, exch int, at time.Time) *models.OptionTrade {
	return &models.OptionTrade{
		Underlying: "AAPL",
		ContractID: contract,
		Strike:     200,
		Expiration: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
		OptionType: models.OptionCall,
		Price:      price,
		Size:       size,
		Timestamp:  at.UnixNano(),
		ExchangeID: exch,
	}
}

func newCorrelator(now *time.Time) *Correlator {
	return New(Config{}, WithClock(func() time.Time { return *now }))
}

func TestSweepDetectedOnce(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	c.OnQuote(&models.Quote{ContractID: contract, BidPrice: 4.9, AskPrice: 5.0, Timestamp: now.UnixNano()})

	// 3 trades across 2 exchanges within 500ms, premium 105k total
	var signals []*models.Signal
	for i, exch := range []int{1, 2, 1} {
		at := now.Add(time.Duration(i) * 100 * time.Millisecond)
		if s := c.OnOptionTrade(optTrade(5.0, 70, exch, at)); s != nil {
			signals = append(signals, s)
		}
	}
	if len(signals) != 1 {
		t.Fatalf("expected exactly one sweep, got %d", len(signals))
	}
	det := signals[0].Details.(models.SweepDetails)
	if det.ExchangeCount != 2 {
		t.Fatalf("exchange count = %d, want 2", det.ExchangeCount)
	}
	if det.TotalPremium != 105_000 {
		t.Fatalf("premium = %v, want 105000", det.TotalPremium)
	}
	if det.DominantSide != string(SideAsk) {
		t.Fatalf("dominant side = %s, want ask", det.DominantSide)
	}
	if !det.Bullish {
		t.Fatalf("ask-side call sweep must be bullish")
	}

	// a 4th qualifying trade in the same 10s bucket yields no extra sweep
	if s := c.OnOptionTrade(optTrade(5.0, 70, 2, now.Add(400*time.Millisecond))); s != nil {
		t.Fatalf("expected dedup inside the bucket, got %+v", s)
	}
}

func TestSingleExchangeRejected(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	for i := 0; i < 4; i++ {
		at := now.Add(time.Duration(i) * 100 * time.Millisecond)
		if s := c.OnOptionTrade(optTrade(5.0, 100, 1, at)); s != nil {
			t.Fatalf("single-exchange burst must not qualify")
		}
	}
}

func TestPremiumBelowMinimumRejected(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	for i, exch := range []int{1, 2, 3} {
		at := now.Add(time.Duration(i) * 100 * time.Millisecond)
		// 3 x $10k premium, well under the $100k floor
		if s := c.OnOptionTrade(optTrade(1.0, 100, exch, at)); s != nil {
			t.Fatalf("sub-minimum premium must not qualify")
		}
	}
}

func TestWideGapSplitsBursts(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	if s := c.OnOptionTrade(optTrade(5.0, 150, 1, now)); s != nil {
		t.Fatalf("unexpected sweep")
	}
	// 700ms later: adjacent delta exceeds the 500ms partition window
	if s := c.OnOptionTrade(optTrade(5.0, 150, 2, now.Add(700*time.Millisecond))); s != nil {
		t.Fatalf("trades split across bursts must not correlate")
	}
}

func TestPutBidSweepBearishSideMapping(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	putContract := "O:AAPL241220P00180000"
	c.OnQuote(&models.Quote{ContractID: putContract, BidPrice: 3.0, AskPrice: 3.2, Timestamp: now.UnixNano()})

	var sig *models.Signal
	for i, exch := range []int{1, 2} {
		tr := &models.OptionTrade{
			Underlying: "AAPL", ContractID: putContract, Strike: 180,
			Expiration: time.Date(2024, 12, 20, 0, 0, 0, 0, time.UTC),
			OptionType: models.OptionPut, Price: 3.0, Size: 200,
			Timestamp:  now.Add(time.Duration(i) * 100 * time.Millisecond).UnixNano(),
			ExchangeID: exch,
		}
		if s := c.OnOptionTrade(tr); s != nil {
			sig = s
		}
	}
	if sig == nil {
		t.Fatalf("expected sweep")
	}
	det := sig.Details.(models.SweepDetails)
	if det.DominantSide != string(SideBid) {
		t.Fatalf("dominant side = %s, want bid", det.DominantSide)
	}
	if !det.Bullish {
		t.Fatalf("bid-side put sweep is bullish by the direction rule")
	}
}

func TestUnknownSideWithoutQuote(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	var sig *models.Signal
	for i, exch := range []int{1, 2} {
		at := now.Add(time.Duration(i) * 100 * time.Millisecond)
		if s := c.OnOptionTrade(optTrade(5.0, 150, exch, at)); s != nil {
			sig = s
		}
	}
	if sig == nil {
		t.Fatalf("expected sweep")
	}
	det := sig.Details.(models.SweepDetails)
	if det.DominantSide != string(SideUnknown) {
		t.Fatalf("dominant side = %s, want unknown", det.DominantSide)
	}
	if det.Bullish {
		t.Fatalf("unknown-side sweep must not be bullish")
	}
}

func TestCleanupEvictsStaleState(t *testing.T) {
	now := time.Date(2025, 6, 2, 15, 0, 0, 0, time.UTC)
	c := newCorrelator(&now)
	c.OnQuote(&models.Quote{ContractID: contract, BidPrice: 4.9, AskPrice: 5.0, Timestamp: now.UnixNano()})
	c.OnOptionTrade(optTrade(5.0, 10, 1, now))
	if c.BufferLen("AAPL") != 1 {
		t.Fatalf("expected one buffered entry")
	}

	now = now.Add(2 * time.Minute)
	c.Cleanup()
	if c.BufferLen("AAPL") != 0 {
		t.Fatalf("stale entries must be evicted")
	}
	if _, ok := c.quotes.Get(contract); ok {
		t.Fatalf("stale quote must be evicted")
	}
}
