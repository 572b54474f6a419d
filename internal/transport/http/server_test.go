package adminhttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"polytrader/internal/executor"
	"polytrader/internal/risk"
	"polytrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	health    executor.Health
	portfolio types.Portfolio
	trade     *types.Trade
	execErr   error
	executed  []types.TradeSignal
	closeAll  executor.CloseAllResult
}

func (f *fakeEngine) ExecuteSignal(_ context.Context, signal types.TradeSignal, _ risk.Assessment) (*types.Trade, error) {
	f.executed = append(f.executed, signal)
	return f.trade, f.execErr
}
func (f *fakeEngine) Portfolio() types.Portfolio   { return f.portfolio }
func (f *fakeEngine) Positions() []types.Position  { return f.portfolio.Positions }
func (f *fakeEngine) Orders() []types.PendingOrder { return nil }
func (f *fakeEngine) Health() executor.Health      { return f.health }
func (f *fakeEngine) EmergencyCloseAll(context.Context, string) executor.CloseAllResult {
	return f.closeAll
}

type fakeRisk struct {
	assessment risk.Assessment
	emergency  bool
	resets     int
}

func (f *fakeRisk) AssessTrade(types.TradeSignal, float64, float64, []types.Position) risk.Assessment {
	return f.assessment
}
func (f *fakeRisk) Status() (types.DailyRiskState, risk.Limits) {
	return types.DailyRiskState{Date: "2026-08-29", TotalTrades: 2}, risk.Limits{MaxDailyTrades: 5}
}
func (f *fakeRisk) EmergencyStopActive() bool { return f.emergency }
func (f *fakeRisk) ResetEmergencyStop(context.Context) {
	f.resets++
	f.emergency = false
}

type fakeReconciler struct {
	result types.ReconciliationResult
	err    error
	has    bool
}

func (f *fakeReconciler) Reconcile(context.Context) (types.ReconciliationResult, error) {
	return f.result, f.err
}
func (f *fakeReconciler) Last() (types.ReconciliationResult, bool) { return f.result, f.has }
func (f *fakeReconciler) TotalDiscrepancies() int                  { return 3 }

type fakeLimits struct{}

func (fakeLimits) SnapshotYAML() ([]byte, error) { return []byte("max_daily_trades: 5\n"), nil }
func (fakeLimits) LoadedAt() time.Time           { return time.Now() }

func newTestServer(t *testing.T, engine *fakeEngine, riskGate *fakeRisk, rec *fakeReconciler) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Engine:     engine,
		Risk:       riskGate,
		Reconciler: rec,
		Limits:     fakeLimits{},
	})
	require.NoError(t, err)
	return srv
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	engine := &fakeEngine{health: executor.Health{Healthy: true, CashUSD: 9000}}
	srv := newTestServer(t, engine, &fakeRisk{}, &fakeReconciler{})

	w := doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	engine.health.Healthy = false
	w = doRequest(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSignal_RejectedBySchema(t *testing.T) {
	engine := &fakeEngine{}
	srv := newTestServer(t, engine, &fakeRisk{}, &fakeReconciler{})

	cases := []string{
		`{"outcome":"YES","side":"BUY","price":0.5}`,                          // missing market_id
		`{"market_id":"m","outcome":"MAYBE","side":"BUY","price":0.5}`,        // bad outcome
		`{"market_id":"m","outcome":"YES","side":"BUY","price":1.5}`,          // price out of range
		`{"market_id":"m","outcome":"YES","side":"BUY","price":0.5,"x":true}`, // unknown key
		`not json`,
	}
	for _, body := range cases {
		w := doRequest(srv, http.MethodPost, "/api/v1/signal", body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body: %s", body)
	}
	assert.Empty(t, engine.executed)
}

func TestSignal_RiskRejectionIsNotAnError(t *testing.T) {
	engine := &fakeEngine{}
	riskGate := &fakeRisk{assessment: risk.Assessment{Approved: false, Warnings: []string{"cooldown active"}}}
	srv := newTestServer(t, engine, riskGate, &fakeReconciler{})

	w := doRequest(srv, http.MethodPost, "/api/v1/signal",
		`{"market_id":"m","outcome":"YES","side":"BUY","price":0.5,"confidence":0.8,"edge":0.1}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Executed bool `json:"executed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Executed)
	assert.Empty(t, engine.executed)
}

func TestSignal_ApprovedExecutes(t *testing.T) {
	engine := &fakeEngine{trade: &types.Trade{ID: "t-1", Status: types.TradeFilled}}
	riskGate := &fakeRisk{assessment: risk.Assessment{Approved: true, SuggestedSizeUSD: 100}}
	srv := newTestServer(t, engine, riskGate, &fakeReconciler{})

	w := doRequest(srv, http.MethodPost, "/api/v1/signal",
		`{"market_id":"m","outcome":"YES","side":"BUY","price":0.5,"confidence":0.8,"edge":0.1}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, engine.executed, 1)
	assert.Equal(t, "m", engine.executed[0].MarketID)
	assert.Contains(t, w.Body.String(), `"t-1"`)
}

func TestSignal_ExecutionErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{&executor.ValidationError{Reason: "stale price"}, http.StatusBadRequest},
		{executor.ErrInsufficientBalance, http.StatusUnprocessableEntity},
		{executor.ErrOrderPending, http.StatusConflict},
	}
	for _, tc := range cases {
		engine := &fakeEngine{execErr: tc.err}
		riskGate := &fakeRisk{assessment: risk.Assessment{Approved: true, SuggestedSizeUSD: 100}}
		srv := newTestServer(t, engine, riskGate, &fakeReconciler{})

		w := doRequest(srv, http.MethodPost, "/api/v1/signal",
			`{"market_id":"m","outcome":"YES","side":"BUY","price":0.5}`)
		assert.Equal(t, tc.code, w.Code, "err: %v", tc.err)
	}
}

func TestRiskResetEndpoint(t *testing.T) {
	riskGate := &fakeRisk{emergency: true}
	srv := newTestServer(t, &fakeEngine{}, riskGate, &fakeReconciler{})

	w := doRequest(srv, http.MethodPost, "/api/v1/risk/reset", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, riskGate.resets)
	assert.Contains(t, w.Body.String(), `"emergency_stop":false`)
}

func TestRiskLimitsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeEngine{}, &fakeRisk{}, &fakeReconciler{})
	w := doRequest(srv, http.MethodGet, "/api/v1/risk/limits", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "max_daily_trades: 5")
	assert.NotEmpty(t, w.Header().Get("X-Loaded-At"))
}

func TestReconcileEndpoints(t *testing.T) {
	rec := &fakeReconciler{result: types.ReconciliationResult{Synced: true}, has: false}
	srv := newTestServer(t, &fakeEngine{}, &fakeRisk{}, rec)

	w := doRequest(srv, http.MethodGet, "/api/v1/reconcile/last", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(srv, http.MethodPost, "/api/v1/reconcile", "")
	assert.Equal(t, http.StatusOK, w.Code)

	rec.has = true
	w = doRequest(srv, http.MethodGet, "/api/v1/reconcile/last", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_discrepancies":3`)
}

func TestCloseAllEndpoint(t *testing.T) {
	engine := &fakeEngine{closeAll: executor.CloseAllResult{Closed: 2, TotalPnL: 5}}
	srv := newTestServer(t, engine, &fakeRisk{}, &fakeReconciler{})

	w := doRequest(srv, http.MethodPost, "/api/v1/close-all", `{"reason":"drill"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"closed":2`)
}
