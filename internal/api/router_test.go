package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wonny/aegis-signal/internal/api/handlers"
	"github.com/wonny/aegis-signal/internal/audit"
	"github.com/wonny/aegis-signal/internal/contracts"
	"github.com/wonny/aegis-signal/internal/journal"
	"github.com/wonny/aegis-signal/internal/portfolio"
	"github.com/wonny/aegis-signal/internal/prediction"
	"github.com/wonny/aegis-signal/internal/selection"
	"github.com/wonny/aegis-signal/internal/signal"
	"github.com/wonny/aegis-signal/pkg/logger"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

type fixture struct {
	engine *signal.Engine
	pool   *portfolio.Pool
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	table, err := prediction.FromPoints([]contracts.PredictionPoint{
		{Date: day(2), Instrument: "A", Score: 0.05},
		{Date: day(2), Instrument: "B", Score: 0.03},
		{Date: day(2), Instrument: "C", Score: -0.02},
		{Date: day(3), Instrument: "A", Score: 0.0},
		{Date: day(3), Instrument: "B", Score: 0.04},
		{Date: day(3), Instrument: "C", Score: 0.01},
		{Date: day(4), Instrument: "A", Score: -0.05},
		{Date: day(4), Instrument: "B", Score: 0.02},
		{Date: day(4), Instrument: "C", Score: 0.01},
	})
	require.NoError(t, err)

	topK := 2
	params, err := signal.NewParams(0.02, -0.01, &topK)
	require.NoError(t, err)
	engine, err := signal.NewEngine(params, table, logger.Nop())
	require.NoError(t, err)

	pool, err := portfolio.NewPool(engine.Selector(), time.Time{}, time.Time{}, contracts.RebalanceDay, logger.Nop())
	require.NoError(t, err)

	return fixture{engine: engine, pool: pool}
}

type missingStore struct{}

func (missingStore) GetTarget(ctx context.Context, date time.Time, period contracts.RebalancePeriod) (*contracts.TargetPortfolio, error) {
	return nil, selection.ErrPoolNotFound
}

type staticReports struct {
	report *contracts.AnalyticsReport
}

func (s staticReports) GetReport(ctx context.Context, runID string) (*contracts.AnalyticsReport, error) {
	if s.report != nil && s.report.RunID == runID {
		return s.report, nil
	}
	return nil, audit.ErrReportNotFound
}

func get(t *testing.T, h http.Handler, url string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body: %s", rec.Body.String())
	return rec, body
}

func TestHealth(t *testing.T) {
	router := NewRouter(Handlers{}, nil, logger.Nop())
	rec, body := get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestGetPool(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(Handlers{
		Pool: handlers.NewPoolHandler(missingStore{}, f.pool, contracts.RebalanceDay, logger.Nop()),
	}, nil, logger.Nop())

	rec, body := get(t, router, "/api/pool?date=2024-01-02")
	require.Equal(t, http.StatusOK, rec.Code)
	positions := body["positions"].([]interface{})
	require.Len(t, positions, 2)
	assert.Equal(t, "A", positions[0].(map[string]interface{})["code"])
	assert.Equal(t, "B", positions[1].(map[string]interface{})["code"])

	rec, _ = get(t, router, "/api/pool?date=2024-13-01")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// before the first rebalance date: in-memory pool misses, store has nothing
	rec, _ = get(t, router, "/api/pool?date=2023-06-01")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetDateSignals(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(Handlers{
		Signals: handlers.NewSignalHandler(f.engine, nil, logger.Nop()),
	}, nil, logger.Nop())

	rec, body := get(t, router, "/api/signals?date=2024-01-02")
	require.Equal(t, http.StatusOK, rec.Code)

	actions := map[string]string{}
	for _, raw := range body["signals"].([]interface{}) {
		s := raw.(map[string]interface{})
		actions[s["instrument"].(string)] = s["action"].(string)
	}
	assert.Equal(t, map[string]string{"A": "BUY", "B": "BUY", "C": "SELL"}, actions)

	rec, _ = get(t, router, "/api/signals")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetDateSignals_UnknownDateLeavesCachesAlone(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(Handlers{
		Signals: handlers.NewSignalHandler(f.engine, nil, logger.Nop()),
	}, nil, logger.Nop())

	before := f.engine.Selector().Builds()
	for _, date := range []string{"2030-01-01", "2030-01-02", "1999-12-31"} {
		rec, body := get(t, router, "/api/signals?date="+date)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, body["signals"])
	}
	assert.Equal(t, before, f.engine.Selector().Builds())
}

func TestGetInstrumentSignals(t *testing.T) {
	f := newFixture(t)
	router := NewRouter(Handlers{
		Signals: handlers.NewSignalHandler(f.engine, nil, logger.Nop()),
	}, nil, logger.Nop())

	rec, body := get(t, router, "/api/signals/A")
	require.Equal(t, http.StatusOK, rec.Code)
	signals := body["signals"].([]interface{})
	require.Len(t, signals, 2, "NONE on day 3 is not emitted")
	assert.Equal(t, "BUY", signals[0].(map[string]interface{})["action"])
	assert.Equal(t, "SELL", signals[1].(map[string]interface{})["action"])

	_, body = get(t, router, "/api/signals/A?all=true")
	assert.Len(t, body["signals"].([]interface{}), 3)

	_, body = get(t, router, "/api/signals/A?from=2024-01-03")
	assert.Len(t, body["signals"].([]interface{}), 1)

	rec, _ = get(t, router, "/api/signals/ZZZ")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport_FromStore(t *testing.T) {
	stored := &contracts.AnalyticsReport{RunID: "run-1", StrategyName: "s", TotalReturn: 0.1}
	router := NewRouter(Handlers{
		Reports: handlers.NewReportHandler(nil, staticReports{report: stored}, nil, audit.NewAnalyzer(0.03, audit.MatchFIFO, nil), logger.Nop()),
	}, nil, logger.Nop())

	rec, body := get(t, router, "/api/reports/run-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0.1, body["total_return"])

	rec, _ = get(t, router, "/api/reports/run-2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetReport_RecomputedFromJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	defer j.Close()

	ctx := context.Background()
	require.NoError(t, j.RecordRun(ctx, journal.RunInfo{RunID: "run-9", StrategyName: "topk", InitialCapital: 100}))
	for i, eq := range []float64{100, 110, 99} {
		require.NoError(t, j.RecordEquity(ctx, "run-9", contracts.EquityPoint{Date: day(2 + i), Equity: eq}))
	}
	require.NoError(t, j.RecordTrade(ctx, "run-9", contracts.Trade{Instrument: "A", Side: contracts.SideBuy, Quantity: 1, Price: 10, Date: day(2)}))
	require.NoError(t, j.RecordTrade(ctx, "run-9", contracts.Trade{Instrument: "A", Side: contracts.SideSell, Quantity: 1, Price: 12, Date: day(3)}))

	router := NewRouter(Handlers{
		Reports: handlers.NewReportHandler(nil, staticReports{}, j, audit.NewAnalyzer(0.03, audit.MatchFIFO, nil), logger.Nop()),
	}, nil, logger.Nop())

	rec, body := get(t, router, "/api/reports/run-9")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, -0.01, body["total_return"].(float64), 1e-9)
	assert.InDelta(t, 0.1, body["max_drawdown"].(float64), 1e-9)
	assert.Equal(t, 1.0, body["win_rate"])
	assert.Equal(t, 2.0, body["total_trades"])

	rec, _ = get(t, router, "/api/reports/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	router := NewRouter(Handlers{
		Reports: handlers.NewReportHandler(nil, staticReports{}, nil, audit.NewAnalyzer(0.03, audit.MatchFIFO, nil), logger.Nop()),
	}, limiter, logger.Nop())

	rec, _ := get(t, router, "/api/reports/x")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := get(t, router, "/api/reports/x")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "rate limit exceeded", body["error"])

	// health is outside the limited subrouter
	rec, _ = get(t, router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestID(t *testing.T) {
	router := NewRouter(Handlers{}, nil, logger.Nop())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}
