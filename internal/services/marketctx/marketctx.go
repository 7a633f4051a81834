package marketctx

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"TapeHeat/internal/engine"
	pkghttp "TapeHeat/pkg/http"
	"TapeHeat/pkg/logger"
)

// Config maps tickers onto sectors and names the benchmark the relative
// measures compare against.
type Config struct {
	Benchmark       string            `yaml:"benchmark" default:"SPY"`
	SectorETFs      map[string]string `yaml:"sector_etfs"`    // sector -> ETF ticker
	TickerSectors   map[string]string `yaml:"ticker_sectors"` // ticker -> sector
	LeadMargin      float64           `yaml:"lead_margin" default:"0.5"`
	BaselineURL     string            `yaml:"baseline_url"`
}

// Snapshot is one consistent view of benchmark and sector moves. Readers get
// the whole struct at once; the refresher swaps it atomically.
type Snapshot struct {
	BenchmarkChange float64
	SectorChange    map[string]float64
	Leading         map[string]bool
	UpdatedAt       time.Time
}

// Service derives the cross-market context the heat scorer needs from the
// same aggregation state the detectors read. Refresh must run on the dispatch
// goroutine because it reads live engine state; other goroutines only touch
// the atomic snapshot.
type Service struct {
	cfg    Config
	eng    *engine.Engine
	client *pkghttp.Client
	log    *logger.Logger
	snap   atomic.Value // Snapshot
}

func New(cfg Config, eng *engine.Engine, client *pkghttp.Client, log *logger.Logger) *Service {
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.LeadMargin <= 0 {
		cfg.LeadMargin = 0.5
	}
	s := &Service{cfg: cfg, eng: eng, client: client, log: log}
	s.snap.Store(Snapshot{SectorChange: map[string]float64{}, Leading: map[string]bool{}})
	return s
}

// Snapshot returns the latest computed view.
func (s *Service) Snapshot() Snapshot {
	return s.snap.Load().(Snapshot)
}

// changeOf reports a ticker's session move in percent against its previous
// close, or 0 when either side is unknown.
func (s *Service) changeOf(ticker string) float64 {
	st, ok := s.eng.Lookup(ticker)
	if !ok || st.PrevClose <= 0 || st.LastPrice <= 0 {
		return 0
	}
	return (st.LastPrice - st.PrevClose) / st.PrevClose * 100
}

// Refresh recomputes benchmark and sector moves and swaps the snapshot.
func (s *Service) Refresh() {
	next := Snapshot{
		BenchmarkChange: s.changeOf(s.cfg.Benchmark),
		SectorChange:    make(map[string]float64, len(s.cfg.SectorETFs)),
		Leading:         make(map[string]bool, len(s.cfg.SectorETFs)),
		UpdatedAt:       time.Now(),
	}
	for sector, etf := range s.cfg.SectorETFs {
		change := s.changeOf(etf)
		next.SectorChange[sector] = change
		next.Leading[sector] = change >= next.BenchmarkChange+s.cfg.LeadMargin
	}
	s.snap.Store(next)
}

// ContextFor resolves the benchmark-relative inputs for one ticker.
func (s *Service) ContextFor(ticker string) (benchmarkChange, tickerChange float64, sectorLeading bool) {
	snap := s.Snapshot()
	benchmarkChange = snap.BenchmarkChange
	tickerChange = s.changeOf(ticker)
	if sector, ok := s.cfg.TickerSectors[ticker]; ok {
		sectorLeading = snap.Leading[sector]
	}
	return benchmarkChange, tickerChange, sectorLeading
}

// baselineRow is one entry of the previous-session reference feed.
type baselineRow struct {
	Ticker    string  `json:"ticker"`
	PrevClose float64 `json:"prev_close"`
	AvgVolume float64 `json:"avg_volume"`
}

// SeedBaselines pulls previous closes and average-volume baselines from the
// reference feed and applies them to the aggregation state. Called at startup
// and after each daily reset; a missing URL is a no-op.
func (s *Service) SeedBaselines(ctx context.Context) error {
	if s.cfg.BaselineURL == "" {
		return nil
	}
	var rows []baselineRow
	err := s.client.SendAndParse(ctx, &pkghttp.RequestOptions{
		Method: pkghttp.MethodGet,
		URL:    s.cfg.BaselineURL,
	}, &rows)
	if err != nil {
		return fmt.Errorf("fetch baselines: %w", err)
	}
	for _, row := range rows {
		if row.PrevClose > 0 {
			s.eng.SetPrevClose(row.Ticker, row.PrevClose)
		}
		if row.AvgVolume > 0 {
			s.eng.SetAvgVolumeBaseline(row.Ticker, row.AvgVolume)
		}
	}
	s.log.Info("seeded session baselines", logger.Int("tickers", len(rows)))
	return nil
}
