package middleware

import (
	"fmt"
	"time"

	"TapeHeat/internal/domain/models"
	domrepo "TapeHeat/internal/domain/repository"
)

// IngestGuard sits between the market stream and the dispatch loop. It
// validates events, rejects stale ones, and throttles runaway per-ticker
// trade bursts so one hot symbol cannot starve the rest of the tape. Bars,
// quotes, and option trades are never throttled; they are already aggregated
// or sparse.
type IngestGuard struct {
	metrics  domrepo.Metrics
	maxRPS   int
	maxAge   time.Duration
	now      func() time.Time
	lastSeen map[string]time.Time
}

type GuardOption func(*IngestGuard)

// WithMaxRPS caps accepted trades per second per ticker.
func WithMaxRPS(n int) GuardOption {
	return func(g *IngestGuard) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithMaxAge rejects events whose exchange timestamp is older than d.
// Zero disables the check.
func WithMaxAge(d time.Duration) GuardOption {
	return func(g *IngestGuard) { g.maxAge = d }
}

// WithGuardClock overrides the time source, for tests.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *IngestGuard) { g.now = now }
}

// NewIngestGuard creates a guard. Only the dispatch goroutine calls Admit,
// so the per-ticker state needs no lock.
func NewIngestGuard(metrics domrepo.Metrics, opts ...GuardOption) *IngestGuard {
	g := &IngestGuard{
		metrics:  metrics,
		maxRPS:   50,
		now:      time.Now,
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Admit reports whether the event should reach the dispatch loop. A false
// return with nil error means a clean drop (throttle or staleness); an error
// means the event was malformed.
func (g *IngestGuard) Admit(ev models.MarketEvent) (bool, error) {
	switch {
	case ev.Trade != nil:
		if err := ev.Trade.Validate(); err != nil {
			g.metrics.RecordError("ingest_validate_trade")
			return false, err
		}
		if g.stale(ev.Trade.Timestamp) {
			g.metrics.RecordError("ingest_stale")
			return false, nil
		}
		if !g.allow(ev.Trade.Ticker) {
			g.metrics.RecordSuppressed("ingest_throttle")
			return false, nil
		}
		return true, nil
	case ev.Bar != nil:
		if err := ev.Bar.Validate(); err != nil {
			g.metrics.RecordError("ingest_validate_bar")
			return false, err
		}
		return true, nil
	case ev.Quote != nil:
		if err := ev.Quote.Validate(); err != nil {
			g.metrics.RecordError("ingest_validate_quote")
			return false, err
		}
		return true, nil
	case ev.OptionTrade != nil:
		if err := ev.OptionTrade.Validate(); err != nil {
			g.metrics.RecordError("ingest_validate_option")
			return false, err
		}
		if g.stale(ev.OptionTrade.Timestamp) {
			g.metrics.RecordError("ingest_stale")
			return false, nil
		}
		return true, nil
	default:
		g.metrics.RecordError("ingest_empty_event")
		return false, fmt.Errorf("empty market event")
	}
}

func (g *IngestGuard) stale(ts int64) bool {
	if g.maxAge <= 0 {
		return false
	}
	return g.now().Sub(time.Unix(0, ts)) > g.maxAge
}

func (g *IngestGuard) allow(ticker string) bool {
	if g.maxRPS <= 0 {
		return true
	}
	now := g.now()
	last := g.lastSeen[ticker]
	if !last.IsZero() && now.Sub(last) < time.Second/time.Duration(g.maxRPS) {
		return false
	}
	g.lastSeen[ticker] = now
	return true
}
