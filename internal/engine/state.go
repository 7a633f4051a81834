package engine

import (
	"math"
	"time"

	"TapeHeat/internal/domain/models"
)

// Buffer capacities. One trading session is 390 one-minute bars.
const (
	DefaultTradeBufferCap = 1000
	DefaultBarBufferCap   = 390
)

// Config bounds the per-ticker buffers.
type Config struct {
	TradeBufferCap int
	BarBufferCap   int
}

func (c *Config) applyDefaults() {
	if c.TradeBufferCap <= 0 {
		c.TradeBufferCap = DefaultTradeBufferCap
	}
	if c.BarBufferCap <= 0 {
		c.BarBufferCap = DefaultBarBufferCap
	}
}

// TradePoint is one entry of the bounded trade buffer.
type TradePoint struct {
	Price float64
	Size  float64
	Time  time.Time
}

// BarPoint is one entry of the bounded bar buffer.
type BarPoint struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	VWAP   float64
	Start  time.Time
	End    time.Time
}

// TickerState is the rolling per-symbol aggregation state. Created lazily on
// first observation, never destroyed, reset once per trading session.
type TickerState struct {
	Ticker     string
	LastPrice  float64
	PrevPrice  float64
	LastUpdate time.Time

	trades []TradePoint
	bars   []BarPoint

	vwapNum float64
	vwapDen float64

	DayHigh float64 // init 0
	DayLow  float64 // init +Inf

	PrevClose         float64
	AvgVolumeBaseline float64

	sessionBars int
}

func newTickerState(ticker string) *TickerState {
	return &TickerState{
		Ticker:  ticker,
		DayLow:  math.Inf(1),
		DayHigh: 0,
	}
}

// VWAP returns the running session VWAP; ok is false until any size accrues.
func (s *TickerState) VWAP() (float64, bool) {
	if s.vwapDen <= 0 {
		return 0, false
	}
	return s.vwapNum / s.vwapDen, true
}

// Bars returns the bar buffer, oldest first. Callers must not mutate it.
func (s *TickerState) Bars() []BarPoint { return s.bars }

// Trades returns the trade buffer, oldest first. Callers must not mutate it.
func (s *TickerState) Trades() []TradePoint { return s.trades }

// SessionBars is the number of bars observed since the last daily reset.
func (s *TickerState) SessionBars() int { return s.sessionBars }

// Engine maintains TickerState for every observed symbol. It is driven by a
// single dispatch goroutine, so no locking guards the state map.
type Engine struct {
	cfg    Config
	states map[string]*TickerState
}

// New creates an aggregation engine.
func New(cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{cfg: cfg, states: make(map[string]*TickerState)}
}

// State returns the state for ticker, creating it on first observation.
func (e *Engine) State(ticker string) *TickerState {
	s, ok := e.states[ticker]
	if !ok {
		s = newTickerState(ticker)
		e.states[ticker] = s
	}
	return s
}

// Lookup returns the state for ticker without creating it.
func (e *Engine) Lookup(ticker string) (*TickerState, bool) {
	s, ok := e.states[ticker]
	return s, ok
}

// Tickers lists every tracked symbol.
func (e *Engine) Tickers() []string {
	out := make([]string, 0, len(e.states))
	for t := range e.states {
		out = append(out, t)
	}
	return out
}

// IngestTrade folds a trade into the ticker's state and returns it.
func (e *Engine) IngestTrade(t *models.Trade) *TickerState {
	s := e.State(t.Ticker)
	s.PrevPrice = s.LastPrice
	s.LastPrice = t.Price
	s.LastUpdate = time.Unix(0, t.Timestamp)

	if t.Price > s.DayHigh {
		s.DayHigh = t.Price
	}
	if t.Price < s.DayLow {
		s.DayLow = t.Price
	}

	s.vwapNum += t.Price * t.Size
	s.vwapDen += t.Size

	s.trades = append(s.trades, TradePoint{Price: t.Price, Size: t.Size, Time: s.LastUpdate})
	if len(s.trades) > e.cfg.TradeBufferCap {
		s.trades = s.trades[len(s.trades)-e.cfg.TradeBufferCap:]
	}
	return s
}

// IngestBar folds a bar into the ticker's state and returns it.
func (e *Engine) IngestBar(b *models.Bar) *TickerState {
	s := e.State(b.Ticker)
	s.PrevPrice = s.LastPrice
	s.LastPrice = b.Close
	s.LastUpdate = time.Unix(0, b.EndTs)

	if b.High > s.DayHigh {
		s.DayHigh = b.High
	}
	if b.Low < s.DayLow {
		s.DayLow = b.Low
	}

	s.bars = append(s.bars, BarPoint{
		Open:   b.Open,
		High:   b.High,
		Low:    b.Low,
		Close:  b.Close,
		Volume: b.Volume,
		VWAP:   b.VWAP,
		Start:  time.Unix(0, b.StartTs),
		End:    time.Unix(0, b.EndTs),
	})
	if len(s.bars) > e.cfg.BarBufferCap {
		s.bars = s.bars[len(s.bars)-e.cfg.BarBufferCap:]
	}
	s.sessionBars++
	return s
}

// SetPrevClose supplies the externally sourced previous session close.
func (e *Engine) SetPrevClose(ticker string, v float64) {
	e.State(ticker).PrevClose = v
}

// SetAvgVolumeBaseline supplies the externally sourced average volume.
func (e *Engine) SetAvgVolumeBaseline(ticker string, v float64) {
	e.State(ticker).AvgVolumeBaseline = v
}

// ResetDaily zeroes VWAP sums and extrema and clears the trade buffer for
// every tracked ticker. Invoked once at the open-of-session transition.
func (e *Engine) ResetDaily() {
	for _, s := range e.states {
		s.vwapNum = 0
		s.vwapDen = 0
		s.DayHigh = 0
		s.DayLow = math.Inf(1)
		s.trades = s.trades[:0]
		s.sessionBars = 0
	}
}

// Snapshot builds the read-only view exposed over HTTP.
func (e *Engine) Snapshot(ticker string) (models.TickerSnapshot, bool) {
	s, ok := e.states[ticker]
	if !ok {
		return models.TickerSnapshot{}, false
	}
	vwap, _ := s.VWAP()
	low := s.DayLow
	if math.IsInf(low, 1) {
		low = 0 // no observation yet; keep JSON finite
	}
	return models.TickerSnapshot{
		Ticker:     s.Ticker,
		LastPrice:  s.LastPrice,
		LastUpdate: s.LastUpdate,
		DayHigh:    s.DayHigh,
		DayLow:     low,
		VWAP:       vwap,
		PrevClose:  s.PrevClose,
		TradeCount: len(s.trades),
		BarCount:   len(s.bars),
	}, true
}
