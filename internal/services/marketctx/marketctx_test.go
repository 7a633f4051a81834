package marketctx

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
	"TapeHeat/internal/engine"
	pkghttp "TapeHeat/pkg/http"
	"TapeHeat/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func setPrice(e *engine.Engine, ticker string, prevClose, last float64) {
	e.SetPrevClose(ticker, prevClose)
	e.IngestTrade(&models.Trade{Ticker: ticker, Price: last, Size: 100, Timestamp: time.Now().UnixNano()})
}

func TestRefreshComputesRelativeMoves(t *testing.T) {
	eng := engine.New(engine.Config{})
	svc := New(Config{
		Benchmark:     "SPY",
		SectorETFs:    map[string]string{"energy": "XLE", "tech": "XLK"},
		TickerSectors: map[string]string{"XOM": "energy", "AAPL": "tech"},
		LeadMargin:    0.5,
	}, eng, pkghttp.NewClient(), testLogger(t))

	setPrice(eng, "SPY", 500, 502.5) // +0.5%
	setPrice(eng, "XLE", 80, 82)     // +2.5%, leads
	setPrice(eng, "XLK", 200, 200.6) // +0.3%, trails
	setPrice(eng, "XOM", 100, 104)   // +4.0%

	svc.Refresh()
	snap := svc.Snapshot()
	if math.Abs(snap.BenchmarkChange-0.5) > 1e-9 {
		t.Fatalf("benchmark change = %v, want 0.5", snap.BenchmarkChange)
	}
	if !snap.Leading["energy"] {
		t.Fatalf("energy should lead the benchmark")
	}
	if snap.Leading["tech"] {
		t.Fatalf("tech should not lead the benchmark")
	}

	bench, tick, leading := svc.ContextFor("XOM")
	if math.Abs(bench-0.5) > 1e-9 || math.Abs(tick-4.0) > 1e-9 {
		t.Fatalf("context = (%v, %v), want (0.5, 4.0)", bench, tick)
	}
	if !leading {
		t.Fatalf("XOM sits in a leading sector")
	}
}

func TestContextWithoutBaselineIsZero(t *testing.T) {
	eng := engine.New(engine.Config{})
	svc := New(Config{}, eng, pkghttp.NewClient(), testLogger(t))
	svc.Refresh()
	bench, tick, leading := svc.ContextFor("UNKNOWN")
	if bench != 0 || tick != 0 || leading {
		t.Fatalf("empty engine must yield zero context, got (%v, %v, %v)", bench, tick, leading)
	}
}

func TestSeedBaselinesAppliesFeed(t *testing.T) {
	rows := []baselineRow{
		{Ticker: "AAPL", PrevClose: 199.5, AvgVolume: 120_000},
		{Ticker: "MSFT", PrevClose: 430.0, AvgVolume: 90_000},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rows)
	}))
	defer srv.Close()

	eng := engine.New(engine.Config{})
	svc := New(Config{BaselineURL: srv.URL}, eng, pkghttp.NewClient(), testLogger(t))
	if err := svc.SeedBaselines(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}
	st, ok := eng.Lookup("AAPL")
	if !ok || st.PrevClose != 199.5 {
		t.Fatalf("prev close not applied, got %+v", st)
	}
	if st.AvgVolumeBaseline != 120_000 {
		t.Fatalf("avg volume baseline not applied")
	}
}

func TestSeedBaselinesNoURLIsNoop(t *testing.T) {
	eng := engine.New(engine.Config{})
	svc := New(Config{}, eng, pkghttp.NewClient(), testLogger(t))
	if err := svc.SeedBaselines(context.Background()); err != nil {
		t.Fatalf("expected noop, got %v", err)
	}
}
