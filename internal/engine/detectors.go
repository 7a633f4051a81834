package engine

import (
	"math"
	"time"

	"github.com/google/uuid"

	"TapeHeat/internal/domain/models"
	"TapeHeat/internal/service/cooldown"
)

// DetectorConfig carries per-detector thresholds and cooldown windows.
// Percent fields are simple relative differences, e.g. 1.0 means 1%.
type DetectorConfig struct {
	BlockTradeMinValue   float64       `yaml:"block_trade_min_value" default:"500000"`
	BlockTradeLargeValue float64       `yaml:"block_trade_large_value" default:"1000000"`
	BlockTradeCooldown   time.Duration `yaml:"block_trade_cooldown" default:"10s"`

	MomentumOneBarPct  float64       `yaml:"momentum_one_bar_pct" default:"1.0"`
	MomentumFiveBarPct float64       `yaml:"momentum_five_bar_pct" default:"2.5"`
	MomentumCooldown   time.Duration `yaml:"momentum_cooldown" default:"60s"`

	VolumeSpikeRatio      float64       `yaml:"volume_spike_ratio" default:"3.0"`
	VolumeSpikeExtreme    float64       `yaml:"volume_spike_extreme" default:"5.0"`
	VolumeSpikeLookback   int           `yaml:"volume_spike_lookback" default:"20"`
	VolumeSpikeCooldown   time.Duration `yaml:"volume_spike_cooldown" default:"60s"`

	VWAPCrossCooldown time.Duration `yaml:"vwap_cross_cooldown" default:"5m"`

	DayExtremeMinBars  int           `yaml:"day_extreme_min_bars" default:"60"`
	DayExtremeCooldown time.Duration `yaml:"day_extreme_cooldown" default:"5m"`

	BreakoutBufferPct     float64       `yaml:"breakout_buffer_pct" default:"0.2"`
	BreakoutLookback      int           `yaml:"breakout_lookback" default:"20"`
	BreakoutMinQualifying int           `yaml:"breakout_min_qualifying" default:"10"`
	BreakoutCooldown      time.Duration `yaml:"breakout_cooldown" default:"5m"`

	GapPct         float64       `yaml:"gap_pct" default:"2.0"`
	GapWindowBars  int           `yaml:"gap_window_bars" default:"5"`
	GapCooldown    time.Duration `yaml:"gap_cooldown" default:"1h"`

	RelStrengthPct      float64       `yaml:"rel_strength_pct" default:"2.0"`
	RelStrengthLookback int           `yaml:"rel_strength_lookback" default:"30"`
	RelStrengthCooldown time.Duration `yaml:"rel_strength_cooldown" default:"10m"`

	ConsolidationRangePct float64       `yaml:"consolidation_range_pct" default:"1.5"`
	ConsolidationBreakPct float64       `yaml:"consolidation_break_pct" default:"0.2"`
	ConsolidationBars     int           `yaml:"consolidation_bars" default:"10"`
	ConsolidationCooldown time.Duration `yaml:"consolidation_cooldown" default:"10m"`

	BenchmarkTicker string `yaml:"benchmark_ticker" default:"SPY"`

	// EmitAll surfaces every qualifying signal per event instead of only the
	// first in priority order.
	EmitAll bool `yaml:"emit_all"`
}

// MaxCooldown returns the largest window in use; the cooldown sweeper retains
// entries at least this long.
func (c DetectorConfig) MaxCooldown() time.Duration {
	max := c.BlockTradeCooldown
	for _, d := range []time.Duration{
		c.MomentumCooldown, c.VolumeSpikeCooldown, c.VWAPCrossCooldown,
		c.DayExtremeCooldown, c.BreakoutCooldown, c.GapCooldown,
		c.RelStrengthCooldown, c.ConsolidationCooldown,
	} {
		if d > max {
			max = d
		}
	}
	return max
}

// Detectors evaluates the signal family against aggregation state. Each
// detector is stateless per call; all shared state lives in the engine and
// the cooldown manager.
type Detectors struct {
	cfg DetectorConfig
	eng *Engine
	cd  *cooldown.Manager
}

// NewDetectors creates the detector family.
func NewDetectors(cfg DetectorConfig, eng *Engine, cd *cooldown.Manager) *Detectors {
	return &Detectors{cfg: cfg, eng: eng, cd: cd}
}

type detectorFn struct {
	typ  models.SignalType
	eval func() Result
}

// OnTrade runs the trade-driven detectors in priority order.
func (d *Detectors) OnTrade(s *TickerState, t *models.Trade) Evaluation {
	at := time.Unix(0, t.Timestamp)
	return d.run([]detectorFn{
		{models.SignalBlockTrade, func() Result { return d.blockTrade(s, t, at) }},
		{models.SignalVWAPCross, func() Result { return d.vwapCross(s, at) }},
		{models.SignalNewHigh, func() Result { return d.newHigh(s, at) }},
		{models.SignalNewLow, func() Result { return d.newLow(s, at) }},
	})
}

// OnBar runs the bar-driven detectors in priority order.
func (d *Detectors) OnBar(s *TickerState, b *models.Bar) Evaluation {
	at := time.Unix(0, b.EndTs)
	return d.run([]detectorFn{
		{models.SignalMomentumSurge, func() Result { return d.momentum(s, at) }},
		{models.SignalVolumeSpike, func() Result { return d.volumeSpike(s, at) }},
		{models.SignalVWAPCross, func() Result { return d.vwapCross(s, at) }},
		{models.SignalNewHigh, func() Result { return d.newHigh(s, at) }},
		{models.SignalNewLow, func() Result { return d.newLow(s, at) }},
		{models.SignalBreakout, func() Result { return d.breakout(s, at) }},
		{models.SignalGap, func() Result { return d.gap(s, b, at) }},
		{models.SignalRelativeStrength, func() Result { return d.relativeStrength(s, at) }},
		{models.SignalConsolidationBreakout, func() Result { return d.consolidation(s, at) }},
	})
}

// run evaluates every detector even after one fires; later firings consume
// their cooldowns but only the first is surfaced unless EmitAll is set.
func (d *Detectors) run(fns []detectorFn) Evaluation {
	var ev Evaluation
	for _, fn := range fns {
		ev.add(fn.eval())
	}
	if !d.cfg.EmitAll && ev.Primary != nil {
		ev.All = ev.All[:1]
	}
	return ev
}

// fire checks the cooldown scope and, on success, stamps it and builds the
// signal envelope.
func (d *Detectors) fire(typ models.SignalType, key string, window time.Duration,
	ticker string, price float64, at time.Time, sev models.Severity, det models.SignalDetails) Result {
	if d.cd.ShouldSuppress(key, window) {
		return Result{Type: typ, Outcome: OutcomeSuppressed}
	}
	d.cd.MarkFired(key)
	return Result{Type: typ, Outcome: OutcomeFired, Signal: &models.Signal{
		ID:       uuid.NewString(),
		Type:     typ,
		Ticker:   ticker,
		Price:    price,
		Time:     at,
		Severity: sev,
		Details:  det,
	}}
}

func (d *Detectors) blockTrade(s *TickerState, t *models.Trade, at time.Time) Result {
	value := t.Price * t.Size
	if value < d.cfg.BlockTradeMinValue {
		return Result{Type: models.SignalBlockTrade}
	}
	large := value >= d.cfg.BlockTradeLargeValue
	sev := models.SeverityMedium
	if large {
		sev = models.SeverityHigh
	}
	return d.fire(models.SignalBlockTrade, cooldown.Key("block", s.Ticker), d.cfg.BlockTradeCooldown,
		s.Ticker, t.Price, at, sev,
		models.BlockTradeDetails{Value: value, Size: t.Size, Large: large})
}

func (d *Detectors) momentum(s *TickerState, at time.Time) Result {
	bars := s.Bars()
	if len(bars) < 5 {
		return Result{Type: models.SignalMomentumSurge, Outcome: OutcomeInsufficientHistory}
	}
	cur := bars[len(bars)-1].Close
	oneBar := pctChange(bars[len(bars)-2].Close, cur)
	pct, span := oneBar, 1
	trigger := math.Abs(oneBar) >= d.cfg.MomentumOneBarPct
	if len(bars) >= 6 {
		fiveBar := pctChange(bars[len(bars)-6].Close, cur)
		if math.Abs(fiveBar) >= d.cfg.MomentumFiveBarPct && math.Abs(fiveBar) > math.Abs(pct) {
			pct, span = fiveBar, 5
			trigger = true
		}
	}
	if !trigger {
		return Result{Type: models.SignalMomentumSurge}
	}
	sev := models.SeverityMedium
	switch {
	case math.Abs(pct) >= 5.0:
		sev = models.SeverityExtreme
	case math.Abs(pct) >= 2.5:
		sev = models.SeverityHigh
	}
	return d.fire(models.SignalMomentumSurge, cooldown.Key("momentum", s.Ticker), d.cfg.MomentumCooldown,
		s.Ticker, cur, at, sev,
		models.MomentumDetails{ChangePercent: pct, Bars: span, Direction: direction(pct)})
}

func (d *Detectors) volumeSpike(s *TickerState, at time.Time) Result {
	bars := s.Bars()
	if len(bars) < d.cfg.VolumeSpikeLookback {
		return Result{Type: models.SignalVolumeSpike, Outcome: OutcomeInsufficientHistory}
	}
	cur := bars[len(bars)-1]
	// average of the lookback window excluding the current bar
	window := bars[len(bars)-d.cfg.VolumeSpikeLookback : len(bars)-1]
	var sum float64
	for _, b := range window {
		sum += b.Volume
	}
	avg := sum / float64(len(window))
	if avg <= 0 {
		return Result{Type: models.SignalVolumeSpike}
	}
	rvol := cur.Volume / avg
	if rvol < d.cfg.VolumeSpikeRatio {
		return Result{Type: models.SignalVolumeSpike}
	}
	sev := models.SeverityHigh
	if rvol >= d.cfg.VolumeSpikeExtreme {
		sev = models.SeverityExtreme
	}
	return d.fire(models.SignalVolumeSpike, cooldown.Key("volume", s.Ticker), d.cfg.VolumeSpikeCooldown,
		s.Ticker, cur.Close, at, sev,
		models.VolumeSpikeDetails{RVol: rvol, BarVolume: cur.Volume, AvgVolume: avg})
}

func (d *Detectors) vwapCross(s *TickerState, at time.Time) Result {
	vwap, ok := s.VWAP()
	if !ok || s.PrevPrice <= 0 {
		return Result{Type: models.SignalVWAPCross, Outcome: OutcomeInsufficientHistory}
	}
	if (s.PrevPrice-vwap)*(s.LastPrice-vwap) >= 0 {
		return Result{Type: models.SignalVWAPCross}
	}
	dir := models.DirectionDown
	if s.LastPrice > vwap {
		dir = models.DirectionUp
	}
	return d.fire(models.SignalVWAPCross, cooldown.Key("vwap", s.Ticker), d.cfg.VWAPCrossCooldown,
		s.Ticker, s.LastPrice, at, models.SeverityMedium,
		models.VWAPCrossDetails{VWAP: vwap, PrevPrice: s.PrevPrice, Direction: dir})
}

func (d *Detectors) newHigh(s *TickerState, at time.Time) Result {
	if s.SessionBars() < d.cfg.DayExtremeMinBars {
		return Result{Type: models.SignalNewHigh, Outcome: OutcomeInsufficientHistory}
	}
	if s.LastPrice < s.DayHigh {
		return Result{Type: models.SignalNewHigh}
	}
	return d.fire(models.SignalNewHigh, cooldown.Key("newhigh", s.Ticker), d.cfg.DayExtremeCooldown,
		s.Ticker, s.LastPrice, at, models.SeverityMedium,
		models.DayExtremeDetails{Level: s.DayHigh, Bars: s.SessionBars()})
}

func (d *Detectors) newLow(s *TickerState, at time.Time) Result {
	if s.SessionBars() < d.cfg.DayExtremeMinBars {
		return Result{Type: models.SignalNewLow, Outcome: OutcomeInsufficientHistory}
	}
	if s.LastPrice > s.DayLow {
		return Result{Type: models.SignalNewLow}
	}
	return d.fire(models.SignalNewLow, cooldown.Key("newlow", s.Ticker), d.cfg.DayExtremeCooldown,
		s.Ticker, s.LastPrice, at, models.SeverityMedium,
		models.DayExtremeDetails{Level: s.DayLow, Bars: s.SessionBars()})
}

func (d *Detectors) breakout(s *TickerState, at time.Time) Result {
	bars := s.Bars()
	// lookback window sits behind the current and previous bar
	need := d.cfg.BreakoutLookback + 2
	if len(bars) < need {
		return Result{Type: models.SignalBreakout, Outcome: OutcomeInsufficientHistory}
	}
	window := bars[len(bars)-need : len(bars)-2]
	var resistance float64
	qualifying := 0
	for _, b := range window {
		if b.Volume > 0 {
			qualifying++
		}
		if b.High > resistance {
			resistance = b.High
		}
	}
	if qualifying < d.cfg.BreakoutMinQualifying || resistance <= 0 {
		return Result{Type: models.SignalBreakout}
	}
	cur := bars[len(bars)-1].Close
	if cur <= resistance*(1+d.cfg.BreakoutBufferPct/100) {
		return Result{Type: models.SignalBreakout}
	}
	pct := pctChange(resistance, cur)
	sev := models.SeverityMedium
	if pct >= 1.0 {
		sev = models.SeverityHigh
	}
	return d.fire(models.SignalBreakout, cooldown.Key("breakout", s.Ticker), d.cfg.BreakoutCooldown,
		s.Ticker, cur, at, sev,
		models.BreakoutDetails{Resistance: resistance, BreakPercent: pct, QualifyingBars: qualifying})
}

func (d *Detectors) gap(s *TickerState, b *models.Bar, at time.Time) Result {
	if s.SessionBars() > d.cfg.GapWindowBars {
		return Result{Type: models.SignalGap}
	}
	if s.PrevClose <= 0 {
		return Result{Type: models.SignalGap, Outcome: OutcomeInsufficientHistory}
	}
	pct := pctChange(s.PrevClose, b.Open)
	if math.Abs(pct) < d.cfg.GapPct {
		return Result{Type: models.SignalGap}
	}
	sev := models.SeverityMedium
	if math.Abs(pct) >= 4.0 {
		sev = models.SeverityHigh
	}
	return d.fire(models.SignalGap, cooldown.Key("gap", s.Ticker), d.cfg.GapCooldown,
		s.Ticker, b.Open, at, sev,
		models.GapDetails{GapPercent: pct, PrevClose: s.PrevClose, Open: b.Open, Direction: direction(pct)})
}

func (d *Detectors) relativeStrength(s *TickerState, at time.Time) Result {
	if s.Ticker == d.cfg.BenchmarkTicker {
		return Result{Type: models.SignalRelativeStrength}
	}
	n := d.cfg.RelStrengthLookback
	bars := s.Bars()
	bench, ok := d.eng.Lookup(d.cfg.BenchmarkTicker)
	if !ok || len(bars) < n || len(bench.Bars()) < n {
		return Result{Type: models.SignalRelativeStrength, Outcome: OutcomeInsufficientHistory}
	}
	tickerChg := pctChange(bars[len(bars)-n].Close, bars[len(bars)-1].Close)
	bb := bench.Bars()
	benchChg := pctChange(bb[len(bb)-n].Close, bb[len(bb)-1].Close)
	spread := tickerChg - benchChg
	if math.Abs(spread) < d.cfg.RelStrengthPct {
		return Result{Type: models.SignalRelativeStrength}
	}
	sev := models.SeverityMedium
	if math.Abs(spread) >= 2*d.cfg.RelStrengthPct {
		sev = models.SeverityHigh
	}
	return d.fire(models.SignalRelativeStrength, cooldown.Key("relstr", s.Ticker), d.cfg.RelStrengthCooldown,
		s.Ticker, s.LastPrice, at, sev,
		models.RelativeStrengthDetails{TickerChange: tickerChg, BenchmarkChange: benchChg, Spread: spread})
}

func (d *Detectors) consolidation(s *TickerState, at time.Time) Result {
	n := d.cfg.ConsolidationBars
	bars := s.Bars()
	if len(bars) < n+1 {
		return Result{Type: models.SignalConsolidationBreakout, Outcome: OutcomeInsufficientHistory}
	}
	prior := bars[len(bars)-n-1 : len(bars)-1]
	rangeHigh, rangeLow := prior[0].High, prior[0].Low
	for _, b := range prior[1:] {
		if b.High > rangeHigh {
			rangeHigh = b.High
		}
		if b.Low < rangeLow {
			rangeLow = b.Low
		}
	}
	if rangeLow <= 0 {
		return Result{Type: models.SignalConsolidationBreakout}
	}
	rangePct := (rangeHigh - rangeLow) / rangeLow * 100
	if rangePct > d.cfg.ConsolidationRangePct {
		return Result{Type: models.SignalConsolidationBreakout}
	}
	cur := bars[len(bars)-1].Close
	buf := d.cfg.ConsolidationBreakPct / 100
	var breakPct float64
	var dir models.Direction
	switch {
	case cur > rangeHigh*(1+buf):
		breakPct = pctChange(rangeHigh, cur)
		dir = models.DirectionUp
	case cur < rangeLow*(1-buf):
		breakPct = pctChange(rangeLow, cur)
		dir = models.DirectionDown
	default:
		return Result{Type: models.SignalConsolidationBreakout}
	}
	return d.fire(models.SignalConsolidationBreakout, cooldown.Key("consol", s.Ticker), d.cfg.ConsolidationCooldown,
		s.Ticker, cur, at, models.SeverityMedium,
		models.ConsolidationBreakoutDetails{
			RangeHigh:    rangeHigh,
			RangeLow:     rangeLow,
			RangePercent: rangePct,
			BreakPercent: breakPct,
			Direction:    dir,
		})
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from * 100
}

func direction(pct float64) models.Direction {
	if pct < 0 {
		return models.DirectionDown
	}
	return models.DirectionUp
}
