package usecase

import (
	"context"
	"time"

	"TapeHeat/internal/domain/models"
	drepo "TapeHeat/internal/domain/repository"
	mid "TapeHeat/internal/middleware"
	applogger "TapeHeat/pkg/logger"
)

// Reconnect retries back off exponentially between these bounds.
const (
	reconnectBaseDelay = 500 * time.Millisecond
	reconnectMaxDelay  = 30 * time.Second
)

// EventCollector owns the market stream lifecycle and feeds admitted events
// into the dispatcher. All dispatch work happens on the consume goroutine, so
// the aggregation state downstream needs no locking.
type EventCollector struct {
	stream     drepo.MarketStream
	dispatcher *Dispatcher
	guard      *mid.IngestGuard
	metrics    drepo.Metrics
	l          *applogger.Logger
}

// NewEventCollector creates a collector.
func NewEventCollector(
	stream drepo.MarketStream,
	dispatcher *Dispatcher,
	guard *mid.IngestGuard,
	metrics drepo.Metrics,
	l *applogger.Logger,
) *EventCollector {
	return &EventCollector{
		stream:     stream,
		dispatcher: dispatcher,
		guard:      guard,
		metrics:    metrics,
		l:          l,
	}
}

// IsConnected reports the stream status.
func (c *EventCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

// Start connects, subscribes, and launches the consume goroutine.
func (c *EventCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	events, errs := c.stream.Read(ctx)
	go c.consume(ctx, events, errs)
	return nil
}

// consume runs until ctx ends. A closed channel means the stream's read loop
// died, so both channels are replaced through reopen; selecting on a closed
// channel again would spin at full speed on zero values.
func (c *EventCollector) consume(ctx context.Context, events <-chan models.MarketEvent, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				if events, errs = c.reopen(ctx); events == nil {
					return
				}
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.l.Warn("market stream error, reconnecting", applogger.Error(err))
			if events, errs = c.reopen(ctx); events == nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				if events, errs = c.reopen(ctx); events == nil {
					return
				}
				continue
			}
			admitted, err := c.guard.Admit(ev)
			if err != nil {
				c.l.Debug("malformed event dropped", applogger.Error(err))
				continue
			}
			if !admitted {
				continue
			}
			c.dispatcher.HandleEvent(ctx, ev)
			if ev.Trade != nil {
				c.metrics.RecordLastPrice(ev.Trade.Ticker, ev.Trade.Price)
			}
		}
	}
}

// reopen reconnects with backoff until the stream comes back or ctx ends.
// Both returned channels are nil once ctx is done.
func (c *EventCollector) reopen(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	delay := reconnectBaseDelay
	for {
		if ctx.Err() != nil {
			return nil, nil
		}
		if err := c.stream.Reconnect(ctx); err != nil {
			c.metrics.RecordError("stream_reconnect")
			c.l.Error("market stream reconnect failed",
				applogger.Error(err),
				applogger.Duration("retry_in", delay))
			select {
			case <-ctx.Done():
				return nil, nil
			case <-time.After(delay):
			}
			delay *= 2
			if delay > reconnectMaxDelay {
				delay = reconnectMaxDelay
			}
			continue
		}
		return c.stream.Read(ctx)
	}
}

// Dispatcher returns the underlying dispatcher for lifecycle management.
func (c *EventCollector) Dispatcher() *Dispatcher { return c.dispatcher }

// Shutdown closes the stream.
func (c *EventCollector) Shutdown(ctx context.Context) error {
	return c.stream.Close()
}
