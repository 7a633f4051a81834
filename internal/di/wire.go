//go:build wireinject
// +build wireinject

package di

import (
	"TapeHeat/pkg/config"
	"TapeHeat/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Repositories
		ProvideHeatHistory,
		ProvideSignalPublisher,
		ProvideWatchlist,
		ProvideMarketStream,

		// Pipeline services
		ProvideEngine,
		ProvideCooldown,
		ProvideDetectors,
		ProvideSweeper,
		ProvideHeatCalculator,
		ProvideMarketContext,
		ProvideSessionClock,
		ProvideIngestGuard,

		// Use cases
		ProvideDispatcher,
		ProvideEventCollector,

		// HTTP surface and application server
		ProvideAPIHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
