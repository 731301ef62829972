package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saltymaverick/Chloe-alpha-sub002/internal/domain/models"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/repository"
	"github.com/saltymaverick/Chloe-alpha-sub002/internal/service/ratelimit"
	"github.com/saltymaverick/Chloe-alpha-sub002/pkg/cache"
	xhttp "github.com/saltymaverick/Chloe-alpha-sub002/pkg/http"
	xlogger "github.com/saltymaverick/Chloe-alpha-sub002/pkg/logger"
)

type fakeSink struct {
	got []models.SignalContext
	err error
}

func (f *fakeSink) Process(_ context.Context, sc models.SignalContext) ([]models.DecisionRecord, error) {
	f.got = append(f.got, sc)
	if f.err != nil {
		return nil, f.err
	}
	return []models.DecisionRecord{{ID: "r1", Symbol: sc.Symbol, Action: models.ActionHold, Reason: models.ReasonNoDirection}}, nil
}

type fakePositions []models.PositionState

func (p fakePositions) Positions() []models.PositionState { return p }

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, sink *fakeSink, limiter *ratelimit.Limiter, checks ...HealthCheck) (*echo.Echo, *repository.CacheSnapshotStore) {
	t.Helper()
	snaps := repository.NewCacheSnapshotStore(cache.NewMemoryCache(), time.Hour)
	pos := fakePositions{
		{Symbol: "SOLUSDT", Direction: models.DirectionFlat},
		{Symbol: "BTCUSDT", Direction: models.DirectionLong, BarsOpen: 3},
	}
	h := NewDecisionsEchoHandler(xlogger.Nop(), sink, pos, snaps, limiter, checks...)
	reg := prometheus.NewRegistry()
	srv := xhttp.NewServer(h, xhttp.WithPrometheus(reg, reg), xhttp.WithCORS(false))
	return srv.Echo(), snaps
}

func do(e *echo.Echo, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

const validTick = `{"symbol":"BTCUSDT","ts":"2026-03-01T00:00:00Z","price":100,"signals":{"flow":[]}}`

func TestLatestDecision(t *testing.T) {
	e, snaps := newTestServer(t, &fakeSink{}, nil)

	rec, _ := do(e, http.MethodGet, "/api/decisions/BTCUSDT", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, snaps.Save(context.Background(), models.DecisionRecord{ID: "abc", Symbol: "BTCUSDT", Reason: models.ReasonHeld}))
	rec, env := do(e, http.MethodGet, "/api/decisions/BTCUSDT", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.DecisionRecord
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "abc", got.ID)
	assert.Equal(t, models.ReasonHeld, got.Reason)
}

func TestPositionsAreSorted(t *testing.T) {
	e, _ := newTestServer(t, &fakeSink{}, nil)
	rec, env := do(e, http.MethodGet, "/api/positions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.PositionState
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
}

func TestSubmitTick(t *testing.T) {
	sink := &fakeSink{}
	e, _ := newTestServer(t, sink, nil)

	rec, env := do(e, http.MethodPost, "/api/ticks", validTick)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sink.got, 1)
	assert.Equal(t, "BTCUSDT", sink.got[0].Symbol)
	assert.Equal(t, 100.0, sink.got[0].Price)

	var recs []models.DecisionRecord
	require.NoError(t, json.Unmarshal(env.Data, &recs))
	assert.Equal(t, "r1", recs[0].ID)
}

func TestSubmitTickValidation(t *testing.T) {
	sink := &fakeSink{}
	e, _ := newTestServer(t, sink, nil)

	rec, env := do(e, http.MethodPost, "/api/ticks", `{"ts":"2026-03-01T00:00:00Z","signals":{}}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verrs []xhttp.ValidationError
	require.NoError(t, json.Unmarshal(env.Data, &verrs))
	require.NotEmpty(t, verrs)
	assert.Equal(t, "symbol", verrs[0].Field)
	assert.Equal(t, "ERR_REQUIRED", verrs[0].Code)

	rec, _ = do(e, http.MethodPost, "/api/ticks", `{"symbol":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sink.got)
}

func TestSubmitTickMapsDataErrors(t *testing.T) {
	e, _ := newTestServer(t, &fakeSink{err: models.NewDataError("symbol", "is required")}, nil)
	rec, _ := do(e, http.MethodPost, "/api/ticks", validTick)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitTickIsRateLimited(t *testing.T) {
	e, _ := newTestServer(t, &fakeSink{}, ratelimit.New(0.001, 1))

	rec, _ := do(e, http.MethodPost, "/api/ticks", validTick)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(e, http.MethodPost, "/api/ticks", validTick)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestHealth(t *testing.T) {
	ok := HealthCheck{Name: "ledger", Check: func(context.Context) error { return nil }}
	e, _ := newTestServer(t, &fakeSink{}, nil, ok)
	rec, _ := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	bad := HealthCheck{Name: "redis", Check: func(context.Context) error { return errors.New("refused") }}
	e, _ = newTestServer(t, &fakeSink{}, nil, ok, bad)
	rec, env := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "refused", got["redis"])
	assert.Equal(t, "ok", got["ledger"])
}

func TestMetricsEndpoint(t *testing.T) {
	e, _ := newTestServer(t, &fakeSink{}, nil)
	do(e, http.MethodGet, "/api/positions", "")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="GET",route="/api/positions",status="200"} 1`)
}
