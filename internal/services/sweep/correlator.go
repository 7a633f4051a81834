package sweep

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"TapeHeat/internal/domain/models"
	"TapeHeat/internal/service/cooldown"
	"TapeHeat/internal/service/ttlstore"
)

// Side classifies an option trade against the prevailing quote.
type Side string

const (
	SideAsk      Side = "ask"
	SideBid      Side = "bid"
	SideAboveMid Side = "above_mid"
	SideBelowMid Side = "below_mid"
	SideUnknown  Side = "unknown"
)

// Config tunes the correlator.
type Config struct {
	BufferTime   time.Duration `yaml:"buffer_time" default:"500ms"`
	MinPremium   float64       `yaml:"min_premium" default:"100000"`
	MinTrades    int           `yaml:"min_trades" default:"2"`
	MinExchanges int           `yaml:"min_exchanges" default:"2"`
	DedupBucket  time.Duration `yaml:"dedup_bucket" default:"10s"`
	EntryTTL     time.Duration `yaml:"entry_ttl" default:"60s"`
	QuoteTTL     time.Duration `yaml:"quote_ttl" default:"5m"`
	DedupTTL     time.Duration `yaml:"dedup_ttl" default:"30s"`
}

func (c *Config) applyDefaults() {
	if c.BufferTime <= 0 {
		c.BufferTime = 500 * time.Millisecond
	}
	if c.MinPremium <= 0 {
		c.MinPremium = 100_000
	}
	if c.MinTrades <= 0 {
		c.MinTrades = 2
	}
	if c.MinExchanges <= 0 {
		c.MinExchanges = 2
	}
	if c.DedupBucket <= 0 {
		c.DedupBucket = 10 * time.Second
	}
	if c.EntryTTL <= 0 {
		c.EntryTTL = time.Minute
	}
	if c.QuoteTTL <= 0 {
		c.QuoteTTL = 5 * time.Minute
	}
	if c.DedupTTL <= 0 {
		c.DedupTTL = 30 * time.Second
	}
}

// Entry is one enriched option trade in a per-underlying buffer.
type Entry struct {
	Trade   models.OptionTrade
	Side    Side
	Premium float64
	Time    time.Time
}

// Correlator detects multi-exchange sweep orders from bursts of related
// option trades. It buffers per underlying, not per contract, so the same
// eviction pass covers every contract on the symbol.
type Correlator struct {
	cfg     Config
	buffers map[string][]Entry
	quotes  *ttlstore.Store[models.Quote]
	dedup   *ttlstore.Store[struct{}]
	now     func() time.Time
}

// Option configures the Correlator.
type Option func(*Correlator)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Correlator) { c.now = now }
}

// New creates a sweep correlator.
func New(cfg Config, opts ...Option) *Correlator {
	cfg.applyDefaults()
	c := &Correlator{
		cfg:     cfg,
		buffers: make(map[string][]Entry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.quotes = ttlstore.New[models.Quote](cfg.QuoteTTL, ttlstore.WithClock[models.Quote](c.now))
	c.dedup = ttlstore.New[struct{}](cfg.DedupTTL, ttlstore.WithClock[struct{}](c.now))
	return c
}

// OnQuote records the latest NBBO for a contract.
func (c *Correlator) OnQuote(q *models.Quote) {
	c.quotes.Set(q.ContractID, *q)
}

// classify infers the execution side from the last known quote.
func (c *Correlator) classify(t *models.OptionTrade) Side {
	q, ok := c.quotes.Get(t.ContractID)
	if !ok || (q.BidPrice <= 0 && q.AskPrice <= 0) {
		return SideUnknown
	}
	switch {
	case q.AskPrice > 0 && t.Price >= q.AskPrice:
		return SideAsk
	case q.BidPrice > 0 && t.Price <= q.BidPrice:
		return SideBid
	}
	mid := (q.BidPrice + q.AskPrice) / 2
	if t.Price > mid {
		return SideAboveMid
	}
	return SideBelowMid
}

// OnOptionTrade ingests one option trade and returns a sweep signal when a
// qualifying burst completes, at most one per call.
func (c *Correlator) OnOptionTrade(t *models.OptionTrade) *models.Signal {
	at := time.Unix(0, t.Timestamp)
	entry := Entry{Trade: *t, Side: c.classify(t), Premium: t.Premium(), Time: at}

	buf := append(c.buffers[t.Underlying], entry)
	// restrict to the correlation horizon around the newest trade
	cutoff := at.Add(-2 * c.cfg.BufferTime)
	live := buf[:0]
	for _, e := range buf {
		if !e.Time.Before(cutoff) {
			live = append(live, e)
		}
	}
	c.buffers[t.Underlying] = live

	for _, group := range groupByContract(live) {
		for _, burst := range partition(group, c.cfg.BufferTime) {
			if sig := c.evaluate(t.Underlying, burst); sig != nil {
				return sig
			}
		}
	}
	return nil
}

// evaluate applies the qualifying rules to one consecutive burst.
func (c *Correlator) evaluate(underlying string, burst []Entry) *models.Signal {
	if len(burst) < c.cfg.MinTrades {
		return nil
	}
	exchanges := make(map[int]struct{}, len(burst))
	var premium, contracts, priceSum float64
	sideWeight := make(map[Side]float64)
	for _, e := range burst {
		exchanges[e.Trade.ExchangeID] = struct{}{}
		premium += e.Premium
		contracts += e.Trade.Size
		priceSum += e.Trade.Price
		sideWeight[e.Side] += e.Premium
	}
	if len(exchanges) < c.cfg.MinExchanges || premium < c.cfg.MinPremium {
		return nil
	}

	contract := burst[0].Trade
	key := cooldown.BucketKey("sweep", contract.ContractID, burst[len(burst)-1].Time, c.cfg.DedupBucket)
	if _, seen := c.dedup.Get(key); seen {
		return nil
	}
	c.dedup.Set(key, struct{}{})

	dominant := SideUnknown
	var best float64
	for side, w := range sideWeight {
		if w > best {
			dominant, best = side, w
		}
	}
	bullish := (dominant == SideAsk && contract.OptionType == models.OptionCall) ||
		(dominant == SideBid && contract.OptionType == models.OptionPut)

	sev := models.SeverityMedium
	switch {
	case premium >= 1_000_000:
		sev = models.SeverityExtreme
	case premium >= 500_000:
		sev = models.SeverityHigh
	}

	return &models.Signal{
		ID:       uuid.NewString(),
		Type:     models.SignalSweep,
		Ticker:   underlying,
		Price:    priceSum / float64(len(burst)),
		Time:     burst[len(burst)-1].Time,
		Severity: sev,
		Details: models.SweepDetails{
			ContractID:     contract.ContractID,
			OptionType:     contract.OptionType,
			Strike:         contract.Strike,
			Expiration:     contract.Expiration,
			ExchangeCount:  len(exchanges),
			TotalPremium:   premium,
			TotalContracts: contracts,
			AvgPrice:       priceSum / float64(len(burst)),
			DominantSide:   string(dominant),
			Bullish:        bullish,
			TradeCount:     len(burst),
		},
	}
}

// Cleanup evicts stale buffer entries, quotes, and dedup buckets. Run on a
// 60s interval by the dispatch loop's background scheduler.
func (c *Correlator) Cleanup() {
	cutoff := c.now().Add(-c.cfg.EntryTTL)
	for underlying, buf := range c.buffers {
		live := buf[:0]
		for _, e := range buf {
			if e.Time.After(cutoff) {
				live = append(live, e)
			}
		}
		if len(live) == 0 {
			delete(c.buffers, underlying)
			continue
		}
		c.buffers[underlying] = live
	}
	c.quotes.Sweep()
	c.dedup.Sweep()
}

// BufferLen reports the buffered entry count for an underlying, for tests
// and the state endpoint.
func (c *Correlator) BufferLen(underlying string) int {
	return len(c.buffers[underlying])
}

func groupByContract(entries []Entry) map[string][]Entry {
	groups := make(map[string][]Entry)
	for _, e := range entries {
		groups[e.Trade.ContractID] = append(groups[e.Trade.ContractID], e)
	}
	return groups
}

// partition splits a contract group, sorted by time, into consecutive bursts
// whose adjacent gaps are within maxGap.
func partition(group []Entry, maxGap time.Duration) [][]Entry {
	sort.Slice(group, func(i, j int) bool { return group[i].Time.Before(group[j].Time) })
	var out [][]Entry
	start := 0
	for i := 1; i <= len(group); i++ {
		if i == len(group) || group[i].Time.Sub(group[i-1].Time) > maxGap {
			out = append(out, group[start:i])
			start = i
		}
	}
	return out
}
