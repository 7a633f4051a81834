package models

import "time"

// Channel is the alert destination a scored signal routes to.
type Channel string

const (
	ChannelNone           Channel = ""
	ChannelWatchlist      Channel = "watchlist"
	ChannelFlowAlerts     Channel = "flow-alerts"
	ChannelHighConviction Channel = "high-conviction"
)

// Contribution is one (label, points) entry of a heat-score breakdown.
// Slice order is evaluation order.
type Contribution struct {
	Label  string `json:"label"`
	Points int    `json:"points"`
}

// HeatResult is the outcome of scoring one signal. Derived, not persisted
// directly; the capped score and channel are written into the Record.
type HeatResult struct {
	RawScore       int
	Score          int // clamped to [0, 100]
	Breakdown      []Contribution
	MeetsThreshold bool
	Channel        Channel
}

// HeatContext carries the supporting state the calculator reads. It is
// assembled by the dispatch loop immediately before Calculate, so the
// calculator stays deterministic over its arguments; the wall-clock
// sensitivity of the trailing-window counts lives in the assembly.
type HeatContext struct {
	VolumeMultiple   float64 // current bar volume over baseline, 0 if unknown
	RecentSignals    int     // signals on this ticker in the trailing hour
	RecentSweeps     int     // sweep signals on this underlying in the trailing hour
	IVChangePercent  float64 // implied-vol move, 0 if unknown
	PriceFlat        bool    // price unchanged while IV moved
	BenchmarkChange  float64 // benchmark move over the comparison window
	TickerChange     float64 // ticker move over the same window
	SectorLeading    bool    // ticker's sector is currently leading
	OnWatchlist      bool
	SessionPhase     SessionPhase
	DaysToExpiration int // options only, -1 when not applicable
}

// SessionPhase buckets the trading day for the time-of-day factor.
type SessionPhase string

const (
	PhasePreMarket  SessionPhase = "pre_market"
	PhaseOpening    SessionPhase = "opening"
	PhaseMidday     SessionPhase = "midday"
	PhasePower      SessionPhase = "power_hour"
	PhaseAfterHours SessionPhase = "after_hours"
	PhaseClosed     SessionPhase = "closed"
)

// TickerSnapshot is the read-only view of aggregation state exposed over HTTP.
type TickerSnapshot struct {
	Ticker     string    `json:"ticker"`
	LastPrice  float64   `json:"last_price"`
	LastUpdate time.Time `json:"last_update"`
	DayHigh    float64   `json:"day_high"`
	DayLow     float64   `json:"day_low"` // 0 until first observation
	VWAP       float64   `json:"vwap"`
	PrevClose  float64   `json:"prev_close"`
	TradeCount int       `json:"trade_count"`
	BarCount   int       `json:"bar_count"`
}
