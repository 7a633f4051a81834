package models

import (
	"encoding/json"
	"time"
)

// SignalType identifies the detector family that produced a signal.
type SignalType string

const (
	SignalVolumeSpike           SignalType = "volume_spike"
	SignalMomentumSurge         SignalType = "momentum_surge"
	SignalBreakout              SignalType = "breakout"
	SignalConsolidationBreakout SignalType = "consolidation_breakout"
	SignalGap                   SignalType = "gap"
	SignalVWAPCross             SignalType = "vwap_cross"
	SignalNewHigh               SignalType = "new_high"
	SignalNewLow                SignalType = "new_low"
	SignalRelativeStrength      SignalType = "relative_strength"
	SignalBlockTrade            SignalType = "block_trade"
	SignalSweep                 SignalType = "sweep"
)

// Severity grades a signal by magnitude.
type Severity string

const (
	SeverityMedium  Severity = "medium"
	SeverityHigh    Severity = "high"
	SeverityExtreme Severity = "extreme"
)

// Direction of a directional signal.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// SignalDetails is the variant-specific payload. Implementations are plain
// structs; serialization to JSON happens only at the persistence boundary.
type SignalDetails interface {
	Magnitude() float64
}

type VolumeSpikeDetails struct {
	RVol      float64 `json:"rvol"`
	BarVolume float64 `json:"bar_volume"`
	AvgVolume float64 `json:"avg_volume"`
}

func (d VolumeSpikeDetails) Magnitude() float64 { return d.RVol }

type MomentumDetails struct {
	ChangePercent float64   `json:"change_percent"`
	Bars          int       `json:"bars"`
	Direction     Direction `json:"direction"`
}

func (d MomentumDetails) Magnitude() float64 { return d.ChangePercent }

type BreakoutDetails struct {
	Resistance     float64 `json:"resistance"`
	BreakPercent   float64 `json:"break_percent"`
	QualifyingBars int     `json:"qualifying_bars"`
}

func (d BreakoutDetails) Magnitude() float64 { return d.BreakPercent }

type ConsolidationBreakoutDetails struct {
	RangeHigh    float64   `json:"range_high"`
	RangeLow     float64   `json:"range_low"`
	RangePercent float64   `json:"range_percent"`
	BreakPercent float64   `json:"break_percent"`
	Direction    Direction `json:"direction"`
}

func (d ConsolidationBreakoutDetails) Magnitude() float64 { return d.BreakPercent }

type GapDetails struct {
	GapPercent float64   `json:"gap_percent"`
	PrevClose  float64   `json:"prev_close"`
	Open       float64   `json:"open"`
	Direction  Direction `json:"direction"`
}

func (d GapDetails) Magnitude() float64 { return d.GapPercent }

type VWAPCrossDetails struct {
	VWAP      float64   `json:"vwap"`
	PrevPrice float64   `json:"prev_price"`
	Direction Direction `json:"direction"`
}

func (d VWAPCrossDetails) Magnitude() float64 { return d.VWAP }

type DayExtremeDetails struct {
	Level float64 `json:"level"`
	Bars  int     `json:"bars"`
}

func (d DayExtremeDetails) Magnitude() float64 { return d.Level }

type RelativeStrengthDetails struct {
	TickerChange    float64 `json:"ticker_change"`
	BenchmarkChange float64 `json:"benchmark_change"`
	Spread          float64 `json:"spread"`
}

func (d RelativeStrengthDetails) Magnitude() float64 { return d.Spread }

type BlockTradeDetails struct {
	Value float64 `json:"value"`
	Size  float64 `json:"size"`
	Large bool    `json:"large"`
}

func (d BlockTradeDetails) Magnitude() float64 { return d.Value }

type SweepDetails struct {
	ContractID     string     `json:"contract_id"`
	OptionType     OptionType `json:"option_type"`
	Strike         float64    `json:"strike"`
	Expiration     time.Time  `json:"expiration"`
	ExchangeCount  int        `json:"exchange_count"`
	TotalPremium   float64    `json:"total_premium"`
	TotalContracts float64    `json:"total_contracts"`
	AvgPrice       float64    `json:"avg_price"`
	DominantSide   string     `json:"dominant_side"`
	Bullish        bool       `json:"bullish"`
	TradeCount     int        `json:"trade_count"`
}

func (d SweepDetails) Magnitude() float64 { return d.TotalPremium }

// Signal is an ephemeral detection result. It is not a storage entity; a
// Record summary is handed to the heat-history store instead.
type Signal struct {
	ID       string
	Type     SignalType
	Ticker   string
	Price    float64
	Time     time.Time
	Severity Severity
	Details  SignalDetails
}

// Record is the persisted summary of an accepted signal.
type Record struct {
	Ticker    string
	Type      SignalType
	Magnitude float64
	Score     int
	Channel   string
	Details   string // JSON-encoded SignalDetails
	At        time.Time
}

// NewRecord serializes the signal payload for the persistence boundary.
func NewRecord(s *Signal, score int, channel string) Record {
	var details string
	if s.Details != nil {
		if b, err := json.Marshal(s.Details); err == nil {
			details = string(b)
		}
	}
	var mag float64
	if s.Details != nil {
		mag = s.Details.Magnitude()
	}
	return Record{
		Ticker:    s.Ticker,
		Type:      s.Type,
		Magnitude: mag,
		Score:     score,
		Channel:   channel,
		Details:   details,
		At:        s.Time,
	}
}
