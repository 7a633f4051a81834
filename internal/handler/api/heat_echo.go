package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	models "TapeHeat/internal/domain/models"
	domrepo "TapeHeat/internal/domain/repository"
	"TapeHeat/internal/service/watchlist"
	"TapeHeat/internal/usecase"
	xhttp "TapeHeat/pkg/http"
	xlogger "TapeHeat/pkg/logger"
)

// HeatEchoHandler exposes the read API: recent signals, per-ticker
// aggregation state, and the watch/ignore list mutations.
type HeatEchoHandler struct {
	logger    *xlogger.Logger
	collector *usecase.EventCollector
	history   domrepo.HeatHistory
	lists     domrepo.WatchlistStore
}

func NewHeatEchoHandler(
	logger *xlogger.Logger,
	collector *usecase.EventCollector,
	history domrepo.HeatHistory,
	lists domrepo.WatchlistStore,
) *HeatEchoHandler {
	return &HeatEchoHandler{logger: logger, collector: collector, history: history, lists: lists}
}

func (h *HeatEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/signals", h.Signals)
	g.GET("/state", h.States)
	g.GET("/state/:ticker", h.State)
	g.GET("/watchlist", h.Watchlist)
	g.POST("/watchlist", h.WatchlistAdd)
	g.DELETE("/watchlist", h.WatchlistRemove)
}

// Health reports stream connectivity and history-store reachability.
func (h *HeatEchoHandler) Health(c echo.Context) error {
	status := map[string]any{
		"stream_connected": h.collector.IsConnected(),
		"history":          "ok",
	}
	code := http.StatusOK
	if err := h.history.Health(c.Request().Context()); err != nil {
		status["history"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if !h.collector.IsConnected() {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, status)
}

// Signals lists the newest accepted signals, optionally filtered.
func (h *HeatEchoHandler) Signals(c echo.Context) error {
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	recs, err := h.history.Recent(c.Request().Context(), req.Ticker, req.Type, req.Limit)
	if err != nil {
		h.logger.Error("signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if since, ok := xhttp.ParseTime(c.QueryParam("since")); ok {
		filtered := recs[:0]
		for _, rec := range recs {
			if !rec.At.Before(since) {
				filtered = append(filtered, rec)
			}
		}
		recs = filtered
	}
	return xhttp.ListResponse(c, recs, int64(len(recs)))
}

// State returns the published aggregation snapshot for one ticker.
func (h *HeatEchoHandler) State(c echo.Context) error {
	req := &models.StateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, ok := h.collector.Dispatcher().Snapshot(req.Ticker)
	if !ok {
		return xhttp.NotFoundResponse(c, "ticker not tracked")
	}
	return xhttp.SuccessResponse(c, snap)
}

// States returns every published ticker snapshot.
func (h *HeatEchoHandler) States(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.collector.Dispatcher().Snapshots())
}

// Watchlist returns both lists.
func (h *HeatEchoHandler) Watchlist(c echo.Context) error {
	ctx := c.Request().Context()
	watch, err := h.lists.Members(ctx, watchlist.ListWatch)
	if err != nil {
		h.logger.Error("watchlist members error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	ignore, err := h.lists.Members(ctx, watchlist.ListIgnore)
	if err != nil {
		h.logger.Error("ignore members error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string][]string{
		watchlist.ListWatch:  watch,
		watchlist.ListIgnore: ignore,
	})
}

// WatchlistAdd puts a ticker on the watch or ignore list.
func (h *HeatEchoHandler) WatchlistAdd(c echo.Context) error {
	req := &models.WatchlistMutateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.lists.Add(c.Request().Context(), req.List, req.Ticker); err != nil {
		h.logger.Error("watchlist add error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.CreatedResponse(c, req)
}

// WatchlistRemove takes a ticker off the watch or ignore list.
func (h *HeatEchoHandler) WatchlistRemove(c echo.Context) error {
	req := &models.WatchlistMutateRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.lists.Remove(c.Request().Context(), req.List, req.Ticker); err != nil {
		h.logger.Error("watchlist remove error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.NoContentResponse(c)
}
