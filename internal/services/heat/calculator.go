package heat

import (
	"fmt"
	"math"

	"github.com/creasty/defaults"

	"TapeHeat/internal/domain/models"
)

// Config is the heat-score point table and routing thresholds. Values are
// configuration; the defaults mirror config.yaml.
type Config struct {
	VolumeConfirmMultiple float64 `yaml:"volume_confirm_multiple" default:"3.0"`
	VolumeConfirmPoints   int     `yaml:"volume_confirm_points" default:"15"`
	VolumeSolidMultiple   float64 `yaml:"volume_solid_multiple" default:"4.0"`
	VolumeSolidPoints     int     `yaml:"volume_solid_points" default:"22"`
	VolumeStrongMultiple  float64 `yaml:"volume_strong_multiple" default:"5.0"`
	VolumeStrongPoints    int     `yaml:"volume_strong_points" default:"30"`

	SweepAlignmentPoints int     `yaml:"sweep_alignment_points" default:"20"`
	PremiumTier1         float64 `yaml:"premium_tier1" default:"1000000"`
	PremiumTier1Points   int     `yaml:"premium_tier1_points" default:"25"`
	PremiumTier2         float64 `yaml:"premium_tier2" default:"500000"`
	PremiumTier2Points   int     `yaml:"premium_tier2_points" default:"15"`

	DTENearMax    int `yaml:"dte_near_max" default:"3"`
	DTENearPoints int `yaml:"dte_near_points" default:"10"`
	DTEMidMax     int `yaml:"dte_mid_max" default:"7"`
	DTEMidPoints  int `yaml:"dte_mid_points" default:"5"`

	RepeatTwoPoints   int `yaml:"repeat_two_points" default:"15"`
	RepeatThreePoints int `yaml:"repeat_three_points" default:"25"`
	RepeatSweepPoints int `yaml:"repeat_sweep_points" default:"10"`

	IVAnomalyThreshold float64 `yaml:"iv_anomaly_threshold" default:"10.0"`
	IVAnomalyPoints    int     `yaml:"iv_anomaly_points" default:"15"`

	MomentumStrongPct    float64 `yaml:"momentum_strong_pct" default:"5.0"`
	MomentumStrongPoints int     `yaml:"momentum_strong_points" default:"25"`

	// BasePoints maps a detector type to its base contribution.
	BasePoints map[string]int `yaml:"base_points"`

	AgainstTrendPenalty int `yaml:"against_trend_penalty" default:"-10"`
	RelStrengthBonus    int `yaml:"rel_strength_bonus" default:"10"`
	SectorLeadPoints    int `yaml:"sector_lead_points" default:"5"`

	// TimeOfDay maps a session phase to its bonus; may be negative.
	TimeOfDay map[string]int `yaml:"time_of_day"`

	HighConvictionThreshold int `yaml:"high_conviction_threshold" default:"80"`
	AlertThreshold          int `yaml:"alert_threshold" default:"65"`
	WatchlistThreshold      int `yaml:"watchlist_threshold" default:"40"`
}

func defaultBasePoints() map[string]int {
	return map[string]int{
		string(models.SignalMomentumSurge):         15,
		string(models.SignalVolumeSpike):           15,
		string(models.SignalBreakout):              20,
		string(models.SignalConsolidationBreakout): 15,
		string(models.SignalGap):                   15,
		string(models.SignalVWAPCross):             10,
		string(models.SignalNewHigh):               15,
		string(models.SignalNewLow):                10,
		string(models.SignalRelativeStrength):      15,
		string(models.SignalBlockTrade):            15,
		string(models.SignalSweep):                 20,
	}
}

func defaultTimeOfDay() map[string]int {
	return map[string]int{
		string(models.PhasePreMarket):  0,
		string(models.PhaseOpening):    10,
		string(models.PhaseMidday):     -5,
		string(models.PhasePower):      5,
		string(models.PhaseAfterHours): 0,
		string(models.PhaseClosed):     0,
	}
}

// Calculator turns a signal plus context into a HeatResult. Pure over its
// arguments; the time-windowed supporting state arrives inside HeatContext.
type Calculator struct {
	cfg Config
}

// New creates a calculator, filling unset point values with defaults.
func New(cfg Config) (*Calculator, error) {
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("heat defaults: %w", err)
	}
	if cfg.BasePoints == nil {
		cfg.BasePoints = defaultBasePoints()
	}
	if cfg.TimeOfDay == nil {
		cfg.TimeOfDay = defaultTimeOfDay()
	}
	return &Calculator{cfg: cfg}, nil
}

// Calculate scores one signal. Every contributing factor appends a
// (label, points) entry to the breakdown in evaluation order; the final
// score is clamped to [0, 100].
func (c *Calculator) Calculate(sig *models.Signal, ctx models.HeatContext) models.HeatResult {
	res := models.HeatResult{}
	add := func(label string, points int) {
		if points == 0 {
			return
		}
		res.Breakdown = append(res.Breakdown, models.Contribution{Label: label, Points: points})
		res.RawScore += points
	}

	// volume confirmation
	switch {
	case ctx.VolumeMultiple >= c.cfg.VolumeStrongMultiple:
		add("volume_confirmed_strong", c.cfg.VolumeStrongPoints)
	case ctx.VolumeMultiple >= c.cfg.VolumeSolidMultiple:
		add("volume_confirmed_solid", c.cfg.VolumeSolidPoints)
	case ctx.VolumeMultiple >= c.cfg.VolumeConfirmMultiple:
		add("volume_confirmed", c.cfg.VolumeConfirmPoints)
	}

	// sweep side alignment and premium tiers
	if sweep, ok := sig.Details.(models.SweepDetails); ok && sig.Type == models.SignalSweep {
		if sweep.DominantSide == "ask" || sweep.DominantSide == "bid" {
			add("sweep_side_aligned", c.cfg.SweepAlignmentPoints)
		}
		switch {
		case sweep.TotalPremium >= c.cfg.PremiumTier1:
			add("premium_tier_1", c.cfg.PremiumTier1Points)
		case sweep.TotalPremium >= c.cfg.PremiumTier2:
			add("premium_tier_2", c.cfg.PremiumTier2Points)
		}
	}

	// days to expiration
	if ctx.DaysToExpiration >= 0 {
		switch {
		case ctx.DaysToExpiration <= c.cfg.DTENearMax:
			add("dte_near", c.cfg.DTENearPoints)
		case ctx.DaysToExpiration <= c.cfg.DTEMidMax:
			add("dte_mid", c.cfg.DTEMidPoints)
		}
	}

	// repeat activity in the trailing hour
	switch {
	case ctx.RecentSignals >= 3:
		add("repeat_activity_3", c.cfg.RepeatThreePoints)
	case ctx.RecentSignals >= 2:
		add("repeat_activity_2", c.cfg.RepeatTwoPoints)
	}

	// repeat sweep flow on the same underlying
	if sig.Type == models.SignalSweep && ctx.RecentSweeps >= 2 {
		add("repeat_sweeps", c.cfg.RepeatSweepPoints)
	}

	// IV moving without price is its own tell
	if ctx.PriceFlat && math.Abs(ctx.IVChangePercent) >= c.cfg.IVAnomalyThreshold {
		add("iv_anomaly", c.cfg.IVAnomalyPoints)
	}

	add("base_"+string(sig.Type), c.basePoints(sig))

	// benchmark alignment
	if pts, label := c.benchmarkAlignment(sig, ctx); pts != 0 {
		add(label, pts)
	}

	if ctx.SectorLeading {
		add("sector_leading", c.cfg.SectorLeadPoints)
	}

	if pts, ok := c.cfg.TimeOfDay[string(ctx.SessionPhase)]; ok {
		add("time_of_day_"+string(ctx.SessionPhase), pts)
	}

	res.Score = clamp(res.RawScore, 0, 100)
	res.Channel, res.MeetsThreshold = c.route(res.Score, ctx.OnWatchlist)
	return res
}

func (c *Calculator) basePoints(sig *models.Signal) int {
	if sig.Type == models.SignalMomentumSurge {
		if det, ok := sig.Details.(models.MomentumDetails); ok &&
			math.Abs(det.ChangePercent) >= c.cfg.MomentumStrongPct {
			return c.cfg.MomentumStrongPoints
		}
	}
	return c.cfg.BasePoints[string(sig.Type)]
}

// benchmarkAlignment penalizes a weak against-trend move and rewards a move
// that outruns the benchmark.
func (c *Calculator) benchmarkAlignment(sig *models.Signal, ctx models.HeatContext) (int, string) {
	if sig.Type == models.SignalRelativeStrength {
		return c.cfg.RelStrengthBonus, "benchmark_rel_strength"
	}
	if ctx.TickerChange == 0 || ctx.BenchmarkChange == 0 {
		return 0, ""
	}
	sameSign := (ctx.TickerChange > 0) == (ctx.BenchmarkChange > 0)
	if sameSign {
		return 0, ""
	}
	if math.Abs(ctx.TickerChange) < math.Abs(ctx.BenchmarkChange) {
		return c.cfg.AgainstTrendPenalty, "benchmark_against_trend"
	}
	return c.cfg.RelStrengthBonus, "benchmark_rel_strength"
}

func (c *Calculator) route(score int, onWatchlist bool) (models.Channel, bool) {
	switch {
	case score >= c.cfg.HighConvictionThreshold:
		return models.ChannelHighConviction, true
	case score >= c.cfg.AlertThreshold:
		return models.ChannelFlowAlerts, true
	case onWatchlist && score >= c.cfg.WatchlistThreshold:
		return models.ChannelWatchlist, true
	default:
		return models.ChannelNone, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
