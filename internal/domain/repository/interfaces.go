package repository

import (
	"context"
	"time"

	"TapeHeat/internal/domain/models"
)

// MarketStream delivers normalized market events. The wire protocol and
// reconnection policy live behind this interface.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.MarketEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// SignalPublisher fans accepted signals out to the alert-evaluation layer.
type SignalPublisher interface {
	Publish(ctx context.Context, s *models.Signal, r *models.HeatResult) error
	Close() error
}

// HeatHistory is the narrow recording interface into the persistence
// collaborator, plus the read path this core issues against the same store.
type HeatHistory interface {
	Init(ctx context.Context) error
	Record(ctx context.Context, rec models.Record) error
	RecentCount(ctx context.Context, ticker string, since time.Time) (int, error)
	SweepCount(ctx context.Context, ticker string, since time.Time) (int, error)
	Recent(ctx context.Context, ticker, signalType string, limit int) ([]models.Record, error)
	Health(ctx context.Context) error
	Close() error
}

// WatchlistStore backs the mutable watch/ignore lists.
type WatchlistStore interface {
	Add(ctx context.Context, list, ticker string) error
	Remove(ctx context.Context, list, ticker string) error
	Contains(ctx context.Context, list, ticker string) (bool, error)
	Members(ctx context.Context, list string) ([]string, error)
}

// Metrics records operational metrics.
type Metrics interface {
	RecordSignal(signalType, severity string)
	RecordSuppressed(scope string)
	RecordHeatScore(channel string, score int)
	RecordError(kind string)
	RecordLastPrice(ticker string, price float64)
	RecordLatency(op string, seconds float64)
}
