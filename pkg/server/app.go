package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TapeHeat/internal/domain/repository"
	"TapeHeat/internal/services/marketctx"
	"TapeHeat/internal/usecase"
	pkgch "TapeHeat/pkg/clickhouse"
	"TapeHeat/pkg/config"
	xhttp "TapeHeat/pkg/http"
	applogger "TapeHeat/pkg/logger"
)

// App encapsulates the application lifecycle: schema init, baseline seeding,
// stream consumption, the HTTP surface, and graceful shutdown.
type App struct {
	cfg        *config.Config
	collector  *usecase.EventCollector
	market     *marketctx.Service
	history    repository.HeatHistory
	chClient   *pkgch.Client
	handler    xhttp.Handler
	httpServer *xhttp.Server
	l          *applogger.Logger
}

// New creates an App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *usecase.EventCollector,
	market *marketctx.Service,
	history repository.HeatHistory,
	chClient *pkgch.Client,
	handler xhttp.Handler,
	l *applogger.Logger,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		market:    market,
		history:   history,
		chClient:  chClient,
		handler:   handler,
		l:         l,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initCtx, initCancel := context.WithTimeout(ctx, 15*time.Second)
	if err := a.history.Init(initCtx); err != nil {
		initCancel()
		return err
	}
	if err := a.market.SeedBaselines(initCtx); err != nil {
		a.l.Warn("baseline seed failed, relative-volume factors start cold", applogger.Error(err))
	}
	initCancel()

	if err := a.collector.Start(ctx); err != nil {
		return err
	}
	a.l.Info("collector started",
		applogger.Strings("symbols", a.cfg.Stream.Symbols),
		applogger.Strings("option_underlyings", a.cfg.Stream.Options))

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)
	if err := a.httpServer.Start(); err != nil {
		return err
	}
	a.l.Info("http server started", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.l.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops the stream first so no event is mid-flight when the
// downstream sinks close.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.collector.Shutdown(ctx); err != nil {
		a.l.Warn("collector stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			a.l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Closes the publisher and the history repository.
	a.collector.Dispatcher().Close()

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.l.Info("shutdown complete")
	return nil
}
