package api

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	domrepo "github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/service/ratelimit"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/usecase"
	xhttp "github.com/saltymaverick/Chloe-alpha-sub002/pkg/http"
	xlogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

// PositionLister reports the current position of every known symbol.
type PositionLister interface {
	Positions() []models.PositionState
}

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// DecisionsEchoHandler serves decision snapshots and accepts ticks over HTTP.
type DecisionsEchoHandler struct {
	logger    *xlogger.Logger
	sink      usecase.TickSink
	positions PositionLister
	snaps     domrepo.SnapshotStore
	limiter   *ratelimit.Limiter
	checks    []HealthCheck
}

func NewDecisionsEchoHandler(
	logger *xlogger.Logger,
	sink usecase.TickSink,
	positions PositionLister,
	snaps domrepo.SnapshotStore,
	limiter *ratelimit.Limiter,
	checks ...HealthCheck,
) *DecisionsEchoHandler {
	return &DecisionsEchoHandler{
		logger:    logger,
		sink:      sink,
		positions: positions,
		snaps:     snaps,
		limiter:   limiter,
		checks:    checks,
	}
}

var _ xhttp.Handler = (*DecisionsEchoHandler)(nil)

func (h *DecisionsEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)
	g := e.Group("/api")
	g.GET("/decisions/:symbol", h.Latest)
	g.GET("/positions", h.Positions)
	g.POST("/ticks", h.SubmitTick)
}

// Latest returns the most recent decision record of a symbol.
func (h *DecisionsEchoHandler) Latest(c echo.Context) error {
	symbol := strings.TrimSpace(c.Param("symbol"))
	if symbol == "" {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("symbol is required"))
	}
	rec, err := h.snaps.Latest(c.Request().Context(), symbol)
	if err != nil {
		if appErr := xhttp.FromDomain(err); appErr.Status >= http.StatusInternalServerError {
			h.logger.Error("load snapshot failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		}
		return xhttp.AppErrorResponse(c, err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, rec)
}

func (h *DecisionsEchoHandler) Positions(c echo.Context) error {
	pos := h.positions.Positions()
	sort.Slice(pos, func(i, j int) bool { return pos[i].Symbol < pos[j].Symbol })
	return xhttp.SuccessResponse(c, pos)
}

// SubmitTick evaluates one tick synchronously and returns its decisions.
func (h *DecisionsEchoHandler) SubmitTick(c echo.Context) error {
	req := &models.SignalContext{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.limiter != nil && !h.limiter.Allow(req.Symbol) {
		return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("tick rate exceeded").WithParam("symbol", req.Symbol))
	}

	recs, err := h.sink.Process(c.Request().Context(), *req)
	if err != nil {
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, recs)
}

// Health runs every dependency probe with a short deadline.
func (h *DecisionsEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	out := make(map[string]string, len(h.checks))
	for _, chk := range h.checks {
		if err := chk.Check(ctx); err != nil {
			status = http.StatusServiceUnavailable
			out[chk.Name] = err.Error()
			continue
		}
		out[chk.Name] = "ok"
	}
	return xhttp.DataResponse(c, status, out)
}
