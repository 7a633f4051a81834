package di

import (
	"context"
	"fmt"
	"time"

	"TapeHeat/internal/domain/repository"
	"TapeHeat/internal/engine"
	api "TapeHeat/internal/handler/api"
	mid "TapeHeat/internal/middleware"
	internalrepo "TapeHeat/internal/repository"
	"TapeHeat/internal/service/cooldown"
	"TapeHeat/internal/service/session"
	"TapeHeat/internal/service/stream"
	"TapeHeat/internal/service/watchlist"
	"TapeHeat/internal/services/heat"
	"TapeHeat/internal/services/marketctx"
	"TapeHeat/internal/services/sweep"
	"TapeHeat/internal/usecase"
	pkgch "TapeHeat/pkg/clickhouse"
	"TapeHeat/pkg/config"
	xhttp "TapeHeat/pkg/http"
	pkgkafka "TapeHeat/pkg/kafka"
	applogger "TapeHeat/pkg/logger"
	"TapeHeat/pkg/metrics"
	"TapeHeat/pkg/server"
)

// ProvideLogger creates the process logger. Production runs JSON, everything
// else gets console output.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "console"
	level := "debug"
	if cfg.Environment == "prod" {
		format = "json"
		level = "info"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: "stdout"})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists. Table DDL belongs to the history repository.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database,
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideHeatHistory creates the ClickHouse-backed signal history.
func ProvideHeatHistory(chClient *pkgch.Client, l *applogger.Logger) repository.HeatHistory {
	h := internalrepo.NewCHHeatHistory(chClient)
	h.SetLogger(l)
	return h
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalPublisher creates the Kafka signal publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) repository.SignalPublisher {
	p := internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
	p.SetLogger(l)
	return p
}

// ProvideWatchlist creates the Redis-backed watch/ignore lists.
func ProvideWatchlist(cfg *config.Config) repository.WatchlistStore {
	return watchlist.New(cfg.Redis)
}

// ProvideEngine creates the per-ticker aggregation engine.
func ProvideEngine(cfg *config.Config) *engine.Engine {
	return engine.New(engine.Config{
		TradeBufferCap: cfg.Engine.TradeBufferCap,
		BarBufferCap:   cfg.Engine.BarBufferCap,
	})
}

// ProvideCooldown creates the signal cooldown manager. Its sweep horizon is
// the longest configured detector cooldown.
func ProvideCooldown(cfg *config.Config) *cooldown.Manager {
	return cooldown.New(cfg.Detectors.MaxCooldown())
}

// ProvideDetectors creates the detector suite.
func ProvideDetectors(cfg *config.Config, eng *engine.Engine, cd *cooldown.Manager) *engine.Detectors {
	return engine.NewDetectors(cfg.Detectors, eng, cd)
}

// ProvideSweeper creates the options sweep correlator.
func ProvideSweeper(cfg *config.Config) *sweep.Correlator {
	return sweep.New(cfg.Sweep)
}

// ProvideHeatCalculator creates the heat scorer.
func ProvideHeatCalculator(cfg *config.Config) (*heat.Calculator, error) {
	return heat.New(cfg.Heat)
}

// ProvideMarketContext creates the benchmark/sector context service.
func ProvideMarketContext(cfg *config.Config, eng *engine.Engine, l *applogger.Logger) *marketctx.Service {
	return marketctx.New(cfg.Market, eng, xhttp.NewClient(), l)
}

// ProvideSessionClock creates the trading-calendar clock.
func ProvideSessionClock(cfg *config.Config) *session.Clock {
	return session.New(cfg.Session.MIC)
}

// ProvideMarketStream creates the WebSocket market stream.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger, m repository.Metrics) repository.MarketStream {
	return stream.New(cfg.Stream, l, m)
}

// ProvideIngestGuard creates the admission guard in front of the dispatcher.
func ProvideIngestGuard(cfg *config.Config, m repository.Metrics) *mid.IngestGuard {
	return mid.NewIngestGuard(m,
		mid.WithMaxRPS(cfg.Ingest.MaxRPS),
		mid.WithMaxAge(cfg.Ingest.MaxAge),
	)
}

// ProvideDispatcher wires the full per-event pipeline.
func ProvideDispatcher(
	cfg *config.Config,
	eng *engine.Engine,
	detectors *engine.Detectors,
	cd *cooldown.Manager,
	sweeper *sweep.Correlator,
	calc *heat.Calculator,
	market *marketctx.Service,
	clock *session.Clock,
	lists repository.WatchlistStore,
	history repository.HeatHistory,
	publisher repository.SignalPublisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Dispatcher {
	return usecase.NewDispatcher(cfg.Dispatcher, eng, detectors, cd, sweeper, calc, market, clock, lists, history, publisher, m, l)
}

// ProvideEventCollector creates the stream consumer.
func ProvideEventCollector(
	s repository.MarketStream,
	d *usecase.Dispatcher,
	guard *mid.IngestGuard,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.EventCollector {
	return usecase.NewEventCollector(s, d, guard, m, l)
}

// ProvideAPIHandler creates the Echo HTTP handler.
func ProvideAPIHandler(
	l *applogger.Logger,
	collector *usecase.EventCollector,
	history repository.HeatHistory,
	lists repository.WatchlistStore,
) xhttp.Handler {
	return api.NewHeatEchoHandler(l, collector, history, lists)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	collector *usecase.EventCollector,
	market *marketctx.Service,
	history repository.HeatHistory,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	l *applogger.Logger,
) *server.App {
	return server.New(cfg, collector, market, history, chClient, handler, l)
}
