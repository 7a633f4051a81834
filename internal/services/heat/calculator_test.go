package heat

import (
	"testing"
	"time"

	"TapeHeat/internal/domain/models"
)

func newCalculator(t *testing.T, cfg Config) *Calculator {
	t.Helper()
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("new calculator: %v", err)
	}
	return c
}

func testSignal(t models.SignalType, details models.SignalDetails) *models.Signal {
	return &models.Signal{
		ID:       "t-1",
		Type:     t,
		Ticker:   "AAPL",
		Price:    200,
		Time:     time.Date(2025, 6, 2, 14, 35, 0, 0, time.UTC),
		Severity: models.SeverityHigh,
		Details:  details,
	}
}

func baseContext() models.HeatContext {
	return models.HeatContext{DaysToExpiration: -1, SessionPhase: models.PhaseMidday}
}

func sumBreakdown(res models.HeatResult) int {
	total := 0
	for _, c := range res.Breakdown {
		total += c.Points
	}
	return total
}

func TestBreakoutWithVolumeConfirmation(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.VolumeMultiple = 3.5
	ctx.SessionPhase = models.PhaseOpening

	res := c.Calculate(testSignal(models.SignalBreakout, models.BreakoutDetails{
		Resistance: 199.5, BreakPercent: 0.4, QualifyingBars: 18,
	}), ctx)

	// +15 volume, +20 base, +10 opening
	if res.Score != 45 {
		t.Fatalf("score = %d, want 45", res.Score)
	}
	if res.RawScore != sumBreakdown(res) {
		t.Fatalf("raw score %d disagrees with breakdown sum %d", res.RawScore, sumBreakdown(res))
	}
	if res.MeetsThreshold {
		t.Fatalf("45 off watchlist must not route")
	}
}

func TestSweepPremiumAndDTEStack(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.DaysToExpiration = 2
	ctx.RecentSignals = 3
	ctx.SessionPhase = models.PhasePower

	res := c.Calculate(testSignal(models.SignalSweep, models.SweepDetails{
		ContractID: "O:AAPL241220C00200000", OptionType: models.OptionCall,
		TotalPremium: 1_250_000, DominantSide: "ask", Bullish: true,
		ExchangeCount: 3, TradeCount: 5,
	}), ctx)

	// +20 aligned, +25 tier1, +10 dte, +25 repeat, +20 base, +5 power hour
	if res.Score != 100 {
		t.Fatalf("score = %d, want 100", res.Score)
	}
	if res.Channel != models.ChannelHighConviction {
		t.Fatalf("channel = %s, want high-conviction", res.Channel)
	}
	if !res.MeetsThreshold {
		t.Fatalf("high-conviction result must meet threshold")
	}
}

func TestScoreClampedAtHundred(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.VolumeMultiple = 6
	ctx.RecentSignals = 4
	ctx.DaysToExpiration = 1
	ctx.PriceFlat = true
	ctx.IVChangePercent = 22
	ctx.SectorLeading = true
	ctx.SessionPhase = models.PhaseOpening

	res := c.Calculate(testSignal(models.SignalSweep, models.SweepDetails{
		OptionType: models.OptionCall, TotalPremium: 2_000_000, DominantSide: "ask",
	}), ctx)

	if res.RawScore <= 100 {
		t.Fatalf("stacked factors should exceed 100 before the clamp, got %d", res.RawScore)
	}
	if res.Score != 100 {
		t.Fatalf("score = %d, want clamp to 100", res.Score)
	}
}

func TestScoreClampedAtZero(t *testing.T) {
	cfg := Config{}
	cfg.BasePoints = map[string]int{string(models.SignalVWAPCross): 2}
	cfg.TimeOfDay = map[string]int{string(models.PhaseMidday): -20}
	cfg.AgainstTrendPenalty = -10
	c := newCalculator(t, cfg)

	ctx := baseContext()
	ctx.TickerChange = 0.2
	ctx.BenchmarkChange = -1.5

	res := c.Calculate(testSignal(models.SignalVWAPCross, models.VWAPCrossDetails{}), ctx)
	if res.RawScore >= 0 {
		t.Fatalf("penalties should drive the raw score negative, got %d", res.RawScore)
	}
	if res.Score != 0 {
		t.Fatalf("score = %d, want clamp to 0", res.Score)
	}
	if res.MeetsThreshold {
		t.Fatalf("zero score must not route")
	}
}

func TestMomentumMagnitudeUpgradesBase(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.SessionPhase = models.PhaseAfterHours

	weak := c.Calculate(testSignal(models.SignalMomentumSurge,
		models.MomentumDetails{ChangePercent: 2.1, Bars: 1}), ctx)
	strong := c.Calculate(testSignal(models.SignalMomentumSurge,
		models.MomentumDetails{ChangePercent: -6.4, Bars: 1}), ctx)

	if weak.Score != 15 {
		t.Fatalf("weak momentum base = %d, want 15", weak.Score)
	}
	if strong.Score != 25 {
		t.Fatalf("strong momentum base = %d, want 25", strong.Score)
	}
}

func TestRepeatSweepsScoreOnlySweepSignals(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.RecentSweeps = 2

	sweep := c.Calculate(testSignal(models.SignalSweep, models.SweepDetails{
		OptionType: models.OptionCall, DominantSide: "mixed",
	}), ctx)
	// +10 repeat sweeps, +20 base, -5 midday
	if sweep.RawScore != 25 {
		t.Fatalf("sweep raw score = %d, want 25", sweep.RawScore)
	}
	found := false
	for _, f := range sweep.Breakdown {
		if f.Label == "repeat_sweeps" && f.Points == 10 {
			found = true
		}
	}
	if !found {
		t.Fatalf("repeat_sweeps factor missing from breakdown: %+v", sweep.Breakdown)
	}

	other := c.Calculate(testSignal(models.SignalBreakout, models.BreakoutDetails{}), ctx)
	// +20 base, -5 midday: trailing sweeps only count for sweep signals
	if other.RawScore != 15 {
		t.Fatalf("breakout raw score = %d, want 15", other.RawScore)
	}
}

func TestIVAnomalyRequiresFlatPrice(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.IVChangePercent = 15

	moving := c.Calculate(testSignal(models.SignalVWAPCross, models.VWAPCrossDetails{}), ctx)
	ctx.PriceFlat = true
	flat := c.Calculate(testSignal(models.SignalVWAPCross, models.VWAPCrossDetails{}), ctx)

	if flat.RawScore-moving.RawScore != 15 {
		t.Fatalf("iv anomaly delta = %d, want 15", flat.RawScore-moving.RawScore)
	}
}

func TestWatchlistRouting(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.VolumeMultiple = 5.5 // +30
	ctx.SessionPhase = models.PhasePower

	// +30 volume, +20 base, +5 power hour = 55: under the alert floor
	sig := testSignal(models.SignalBreakout, models.BreakoutDetails{})
	off := c.Calculate(sig, ctx)
	if off.MeetsThreshold {
		t.Fatalf("55 off watchlist must discard, got channel %s", off.Channel)
	}

	ctx.OnWatchlist = true
	on := c.Calculate(sig, ctx)
	if on.Channel != models.ChannelWatchlist || !on.MeetsThreshold {
		t.Fatalf("55 on watchlist should route to watchlist, got %s", on.Channel)
	}

	ctx.RecentSignals = 2 // +15, now 70: alert tier outranks watchlist
	alert := c.Calculate(sig, ctx)
	if alert.Channel != models.ChannelFlowAlerts {
		t.Fatalf("70 should route to flow-alerts, got %s", alert.Channel)
	}
}

func TestBreakdownOrderIsStable(t *testing.T) {
	c := newCalculator(t, Config{})
	ctx := baseContext()
	ctx.VolumeMultiple = 3.2
	ctx.RecentSignals = 2
	ctx.SectorLeading = true
	ctx.SessionPhase = models.PhaseOpening

	res := c.Calculate(testSignal(models.SignalBreakout, models.BreakoutDetails{}), ctx)
	want := []string{
		"volume_confirmed",
		"repeat_activity_2",
		"base_breakout",
		"sector_leading",
		"time_of_day_opening",
	}
	if len(res.Breakdown) != len(want) {
		t.Fatalf("breakdown len = %d, want %d: %+v", len(res.Breakdown), len(want), res.Breakdown)
	}
	for i, label := range want {
		if res.Breakdown[i].Label != label {
			t.Fatalf("breakdown[%d] = %s, want %s", i, res.Breakdown[i].Label, label)
		}
	}
}
