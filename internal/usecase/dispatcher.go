package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"TapeHeat/internal/domain/models"
	drepo "TapeHeat/internal/domain/repository"
	"TapeHeat/internal/engine"
	"TapeHeat/internal/service/cooldown"
	"TapeHeat/internal/service/session"
	"TapeHeat/internal/service/watchlist"
	"TapeHeat/internal/services/heat"
	"TapeHeat/internal/services/marketctx"
	"TapeHeat/internal/services/sweep"
	applogger "TapeHeat/pkg/logger"
)

// DispatcherConfig tunes the dispatch loop.
type DispatcherConfig struct {
	RepeatWindow    time.Duration `yaml:"repeat_window" default:"1h"`
	QueryTimeout    time.Duration `yaml:"query_timeout" default:"300ms"`
	PublishTimeout  time.Duration `yaml:"publish_timeout" default:"2s"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"60s"`
}

func (c *DispatcherConfig) applyDefaults() {
	if c.RepeatWindow <= 0 {
		c.RepeatWindow = time.Hour
	}
	if c.QueryTimeout <= 0 {
		c.QueryTimeout = 300 * time.Millisecond
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = 2 * time.Second
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
}

// Dispatcher runs the whole per-event pipeline: session accounting,
// aggregation, detection, sweep correlation, heat scoring, and fan-out.
// HandleEvent is only ever called from the collector goroutine; none of the
// state it touches is shared.
type Dispatcher struct {
	cfg DispatcherConfig

	eng       *engine.Engine
	detectors *engine.Detectors
	cd        *cooldown.Manager
	sweeper   *sweep.Correlator
	calc      *heat.Calculator
	market    *marketctx.Service
	clock     *session.Clock

	lists     drepo.WatchlistStore
	history   drepo.HeatHistory
	publisher drepo.SignalPublisher
	metrics   drepo.Metrics
	l         *applogger.Logger

	lastEvent    time.Time
	lastMaintain time.Time
	snapshots    atomic.Value // map[string]models.TickerSnapshot
}

// NewDispatcher wires the pipeline.
func NewDispatcher(
	cfg DispatcherConfig,
	eng *engine.Engine,
	detectors *engine.Detectors,
	cd *cooldown.Manager,
	sweeper *sweep.Correlator,
	calc *heat.Calculator,
	market *marketctx.Service,
	clock *session.Clock,
	lists drepo.WatchlistStore,
	history drepo.HeatHistory,
	publisher drepo.SignalPublisher,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *Dispatcher {
	cfg.applyDefaults()
	d := &Dispatcher{
		cfg:       cfg,
		eng:       eng,
		detectors: detectors,
		cd:        cd,
		sweeper:   sweeper,
		calc:      calc,
		market:    market,
		clock:     clock,
		lists:     lists,
		history:   history,
		publisher: publisher,
		metrics:   metrics,
		l:         l,
	}
	d.snapshots.Store(map[string]models.TickerSnapshot{})
	return d
}

// HandleEvent routes one admitted event through the pipeline. A panic in a
// detector is contained here: the event is dropped, the fault recorded, and
// the stream keeps flowing.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev models.MarketEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.RecordError("detector_panic")
			d.l.Error("detector fault recovered", applogger.Any("panic", r))
		}
	}()

	d.maybeMaintain(time.Now())

	switch {
	case ev.Trade != nil:
		d.rollSession(time.Unix(0, ev.Trade.Timestamp))
		state := d.eng.IngestTrade(ev.Trade)
		eval := d.detectors.OnTrade(state, ev.Trade)
		d.emit(ctx, state, eval.All)
	case ev.Bar != nil:
		d.rollSession(time.Unix(0, ev.Bar.EndTs))
		state := d.eng.IngestBar(ev.Bar)
		eval := d.detectors.OnBar(state, ev.Bar)
		d.emit(ctx, state, eval.All)
	case ev.Quote != nil:
		d.sweeper.OnQuote(ev.Quote)
	case ev.OptionTrade != nil:
		if sig := d.sweeper.OnOptionTrade(ev.OptionTrade); sig != nil {
			state, _ := d.eng.Lookup(sig.Ticker)
			d.emit(ctx, state, []*models.Signal{sig})
		}
	}
}

// rollSession resets daily aggregation state when the exchange-local date
// advances between consecutive events.
func (d *Dispatcher) rollSession(at time.Time) {
	if !d.lastEvent.IsZero() && !d.clock.SameSession(d.lastEvent, at) {
		d.l.Info("session rolled, resetting daily state",
			applogger.String("date", at.In(d.clock.Location()).Format("2006-01-02")))
		d.eng.ResetDaily()
		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.PublishTimeout)
		if err := d.market.SeedBaselines(ctx); err != nil {
			d.l.Warn("baseline seed after reset failed", applogger.Error(err))
		}
		cancel()
	}
	d.lastEvent = at
}

// emit scores each fired signal and fans the accepted ones out.
func (d *Dispatcher) emit(ctx context.Context, state *engine.TickerState, signals []*models.Signal) {
	for _, sig := range signals {
		if sig == nil {
			continue
		}
		if d.ignored(ctx, sig.Ticker) {
			d.metrics.RecordSuppressed("ignore_list")
			continue
		}
		start := time.Now()
		hctx := d.assembleContext(ctx, state, sig)
		res := d.calc.Calculate(sig, hctx)
		d.metrics.RecordSignal(string(sig.Type), string(sig.Severity))
		d.metrics.RecordHeatScore(string(res.Channel), res.Score)
		if !res.MeetsThreshold {
			d.l.Debug("signal below routing thresholds",
				applogger.String("ticker", sig.Ticker),
				applogger.String("type", string(sig.Type)),
				applogger.Int("score", res.Score))
			continue
		}
		d.deliver(ctx, sig, &res)
		d.metrics.RecordLatency("emit", time.Since(start).Seconds())
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sig *models.Signal, res *models.HeatResult) {
	pubCtx, cancel := context.WithTimeout(ctx, d.cfg.PublishTimeout)
	defer cancel()
	if err := d.publisher.Publish(pubCtx, sig, res); err != nil {
		d.metrics.RecordError("publish")
		d.l.Error("signal publish failed",
			applogger.String("ticker", sig.Ticker),
			applogger.String("type", string(sig.Type)),
			applogger.Error(err))
	}
	rec := models.NewRecord(sig, res.Score, string(res.Channel))
	if err := d.history.Record(pubCtx, rec); err != nil {
		d.metrics.RecordError("record")
		d.l.Error("signal record failed",
			applogger.String("ticker", sig.Ticker),
			applogger.Error(err))
	}
	d.l.Info("signal routed",
		applogger.String("ticker", sig.Ticker),
		applogger.String("type", string(sig.Type)),
		applogger.String("severity", string(sig.Severity)),
		applogger.Int("score", res.Score),
		applogger.String("channel", string(res.Channel)))
}

func (d *Dispatcher) ignored(ctx context.Context, ticker string) bool {
	qctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()
	on, err := d.lists.Contains(qctx, watchlist.ListIgnore, ticker)
	if err != nil {
		d.metrics.RecordError("ignore_lookup")
		return false
	}
	return on
}

// assembleContext gathers the supporting state the heat calculator reads.
// Lookups that fail degrade to zero values rather than blocking the tape.
func (d *Dispatcher) assembleContext(ctx context.Context, state *engine.TickerState, sig *models.Signal) models.HeatContext {
	hctx := models.HeatContext{DaysToExpiration: -1}

	if state != nil {
		hctx.VolumeMultiple = volumeMultiple(state, sig)
	}

	bench, tick, leading := d.market.ContextFor(sig.Ticker)
	hctx.BenchmarkChange = bench
	hctx.TickerChange = tick
	hctx.SectorLeading = leading
	hctx.SessionPhase = d.clock.Phase(sig.Time)

	qctx, cancel := context.WithTimeout(ctx, d.cfg.QueryTimeout)
	defer cancel()
	if n, err := d.history.RecentCount(qctx, sig.Ticker, sig.Time.Add(-d.cfg.RepeatWindow)); err == nil {
		hctx.RecentSignals = n
	} else {
		d.metrics.RecordError("recent_count")
	}
	if sig.Type == models.SignalSweep {
		if n, err := d.history.SweepCount(qctx, sig.Ticker, sig.Time.Add(-d.cfg.RepeatWindow)); err == nil {
			hctx.RecentSweeps = n
		} else {
			d.metrics.RecordError("sweep_count")
		}
	}
	if on, err := d.lists.Contains(qctx, watchlist.ListWatch, sig.Ticker); err == nil {
		hctx.OnWatchlist = on
	}

	if det, ok := sig.Details.(models.SweepDetails); ok {
		if days := int(det.Expiration.Sub(sig.Time).Hours() / 24); days >= 0 {
			hctx.DaysToExpiration = days
		}
	}
	return hctx
}

// volumeMultiple prefers the detector's own relative-volume measurement and
// falls back to the latest bar against the session baseline.
func volumeMultiple(state *engine.TickerState, sig *models.Signal) float64 {
	if det, ok := sig.Details.(models.VolumeSpikeDetails); ok {
		return det.RVol
	}
	bars := state.Bars()
	if len(bars) == 0 || state.AvgVolumeBaseline <= 0 {
		return 0
	}
	return bars[len(bars)-1].Volume / state.AvgVolumeBaseline
}

// maybeMaintain runs the periodic passes inline on the dispatch goroutine:
// cooldown and correlator eviction bound memory on quiet tickers, the market
// snapshot feeds the heat factors, and the state snapshots feed the HTTP
// layer. Running here keeps every engine access single-threaded.
func (d *Dispatcher) maybeMaintain(now time.Time) {
	if !d.lastMaintain.IsZero() && now.Sub(d.lastMaintain) < d.cfg.CleanupInterval {
		return
	}
	d.lastMaintain = now

	removed := d.cd.Sweep()
	d.sweeper.Cleanup()
	d.market.Refresh()
	d.publishSnapshots()
	if removed > 0 {
		d.l.Debug("cooldown entries evicted", applogger.Int("count", removed))
	}
}

func (d *Dispatcher) publishSnapshots() {
	out := make(map[string]models.TickerSnapshot)
	for _, ticker := range d.eng.Tickers() {
		if snap, ok := d.eng.Snapshot(ticker); ok {
			out[ticker] = snap
		}
	}
	d.snapshots.Store(out)
}

// Snapshot returns the last published view of a ticker's aggregation state.
// At most one cleanup interval stale; safe from any goroutine.
func (d *Dispatcher) Snapshot(ticker string) (models.TickerSnapshot, bool) {
	m := d.snapshots.Load().(map[string]models.TickerSnapshot)
	snap, ok := m[ticker]
	return snap, ok
}

// Snapshots returns every published ticker snapshot.
func (d *Dispatcher) Snapshots() map[string]models.TickerSnapshot {
	return d.snapshots.Load().(map[string]models.TickerSnapshot)
}

// Close flushes downstream resources.
func (d *Dispatcher) Close() {
	if d.publisher != nil {
		_ = d.publisher.Close()
	}
	if d.history != nil {
		_ = d.history.Close()
	}
}
