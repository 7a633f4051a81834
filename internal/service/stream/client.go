package stream

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"TapeHeat/internal/domain/models"
	drepo "TapeHeat/internal/domain/repository"
	"TapeHeat/pkg/logger"
)

// Config names the upstream feed and what to subscribe to.
type Config struct {
	URL            string        `yaml:"url" validate:"required"`
	APIKey         string        `yaml:"api_key"`
	Symbols        []string      `yaml:"symbols" validate:"min=1"`
	Options        []string      `yaml:"options"` // underlyings to watch option flow on
	ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
	PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
}

// Client implements a MarketStream over a multiplexed WebSocket feed that
// interleaves trades, minute bars, option quotes, and option trades.
type Client struct {
	cfg       Config
	log       *logger.Logger
	metrics   drepo.Metrics
	conn      *websocket.Conn
	connected bool
}

// New creates a market stream client.
func New(cfg Config, log *logger.Logger, metrics drepo.Metrics) drepo.MarketStream {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	return &Client{cfg: cfg, log: log, metrics: metrics}
}

// Connect dials the feed and authenticates.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.cfg.APIKey != "" {
		auth := map[string]string{"action": "auth", "params": c.cfg.APIKey}
		if err := conn.WriteJSON(auth); err != nil {
			return fmt.Errorf("stream auth: %w", err)
		}
	}
	c.log.Info("market stream connected", logger.String("url", c.cfg.URL))
	return nil
}

// Subscribe requests trade and bar channels for every symbol, plus option
// quote and trade channels for the configured underlyings.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("stream not connected")
	}
	var params []string
	for _, s := range c.cfg.Symbols {
		params = append(params, "T."+s, "AM."+s)
	}
	for _, u := range c.cfg.Options {
		params = append(params, "OT."+u, "OQ."+u)
	}
	msg := map[string]string{"action": "subscribe", "params": strings.Join(params, ",")}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.log.Info("market stream subscribed",
		logger.Int("symbols", len(c.cfg.Symbols)),
		logger.Int("option_underlyings", len(c.cfg.Options)))
	return nil
}

// Read streams normalized events and errors. A read failure ends both
// channels; the dispatch loop owns reconnection.
func (c *Client) Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error) {
	events := make(chan models.MarketEvent, 4096)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.cfg.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("stream conn nil")
					return
				}
				_, frame, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("stream read: %w", err)
					return
				}
				for _, ev := range decodeFrame(frame) {
					c.offer(events, ev)
				}
			}
		}
	}()

	return events, errs
}

// offer hands an event to the consumer without blocking the read loop. A full
// buffer means the consumer is behind; the event is dropped and counted.
func (c *Client) offer(events chan<- models.MarketEvent, ev models.MarketEvent) {
	select {
	case events <- ev:
	default:
		if c.metrics != nil {
			c.metrics.RecordSuppressed("stream_backpressure")
		}
	}
}

// Reconnect closes, waits, and re-establishes the subscription.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ReconnectDelay):
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
