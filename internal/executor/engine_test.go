package executor

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/risk"
	"polytrader/internal/store/gormstore"
	"polytrader/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	mu     sync.Mutex
	trades []types.Trade
}

func (f *fakeRecorder) RecordTrade(_ context.Context, trade types.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, trade)
}

func (f *fakeRecorder) recorded() []types.Trade {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Trade(nil), f.trades...)
}

type fakeSink struct {
	mu        sync.Mutex
	trades    []types.Trade
	stops     []string
	emergency []string
}

func (f *fakeSink) TradeExecuted(trade types.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trades = append(f.trades, trade)
}

func (f *fakeSink) StopLossTriggered(position types.Position, _, _ float64, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops = append(f.stops, position.MarketID+": "+reason)
}

func (f *fakeSink) EmergencyStop(reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emergency = append(f.emergency, reason)
}

func (f *fakeSink) Error(string, error) {}

func testTradingConfig() config.TradingConfig {
	return config.TradingConfig{
		PaperTrading:    true,
		PaperBalanceUSD: 10000,
		PaperFeeRate:    0,
		LiveFeeRate:     0.01,
		MaxSlippagePct:  0.02,
		OrderTimeoutMs:  30000,
		OrderSweepMs:    10000,
		OrderCleanupMs:  60000,
		PriceMaxAgeMs:   60000,
		StopLossScanMs:  30000,
	}
}

func newTestEngine(t *testing.T, cfg config.TradingConfig) (*Engine, *fakeRecorder, *fakeSink) {
	t.Helper()
	st, err := gormstore.Open(filepath.Join(t.TempDir(), "trading.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	recorder := &fakeRecorder{}
	sink := &fakeSink{}
	e, err := NewEngine(cfg, st, recorder, sink)
	require.NoError(t, err)
	return e, recorder, sink
}

func approved(sizeUSD float64) risk.Assessment {
	return risk.Assessment{Approved: true, SuggestedSizeUSD: sizeUSD}
}

func buyAt(price float64) types.TradeSignal {
	return types.TradeSignal{
		MarketID:    "mkt-1",
		MarketTitle: "Will it happen?",
		Outcome:     types.OutcomeYes,
		Side:        types.SideBuy,
		Price:       price,
		Confidence:  0.8,
		Edge:        0.1,
	}
}

func TestExecuteSignal_BuyOpensPosition(t *testing.T) {
	e, recorder, sink := newTestEngine(t, testTradingConfig())

	trade, err := e.ExecuteSignal(context.Background(), buyAt(0.40), approved(100))
	require.NoError(t, err)
	assert.Equal(t, types.SideBuy, trade.Side)
	assert.InDelta(t, 250.0, trade.Shares, 1e-9)
	assert.Equal(t, types.TradeFilled, trade.Status)

	portfolio := e.Portfolio()
	assert.InDelta(t, 9900.0, portfolio.AvailableBalance, 1e-9)
	require.Len(t, portfolio.Positions, 1)
	assert.InDelta(t, 0.40, portfolio.Positions[0].AveragePrice, 1e-9)

	assert.Len(t, recorder.recorded(), 1)
	assert.Len(t, sink.trades, 1)
}

func TestExecuteSignal_WeightedAverageMerge(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	ctx := context.Background()

	// 10 shares at 0.40, then 5 shares at 0.60.
	_, err := e.ExecuteSignal(ctx, buyAt(0.40), approved(4.0))
	require.NoError(t, err)
	_, err = e.ExecuteSignal(ctx, buyAt(0.60), approved(3.0))
	require.NoError(t, err)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 15.0, positions[0].Shares, 1e-9)
	assert.InDelta(t, 0.4667, positions[0].AveragePrice, 0.0001)
}

func TestExecuteSignal_SellRealizesPnL(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	ctx := context.Background()

	_, err := e.ExecuteSignal(ctx, buyAt(0.40), approved(40.0)) // 100 shares
	require.NoError(t, err)

	sell := types.TradeSignal{
		MarketID: "mkt-1",
		Outcome:  types.OutcomeYes,
		Side:     types.SideSell,
		Price:    0.50,
		Shares:   60,
	}
	trade, err := e.ExecuteSignal(ctx, sell, approved(0))
	require.NoError(t, err)
	assert.InDelta(t, 6.0, trade.PnL, 1e-9)

	portfolio := e.Portfolio()
	assert.InDelta(t, 6.0, portfolio.RealizedPnL, 1e-9)
	require.Len(t, portfolio.Positions, 1)
	assert.InDelta(t, 40.0, portfolio.Positions[0].Shares, 1e-9)
}

func TestExecuteSignal_SellCapsAtHeldAndCloses(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	ctx := context.Background()

	_, err := e.ExecuteSignal(ctx, buyAt(0.40), approved(40.0)) // 100 shares
	require.NoError(t, err)

	sell := types.TradeSignal{
		MarketID: "mkt-1",
		Outcome:  types.OutcomeYes,
		Side:     types.SideSell,
		Price:    0.45,
		Shares:   500, // more than held
	}
	trade, err := e.ExecuteSignal(ctx, sell, approved(0))
	require.NoError(t, err)
	assert.InDelta(t, 100.0, trade.Shares, 1e-9)
	assert.Empty(t, e.Positions())
}

func TestExecuteSignal_ValidationRejections(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	ctx := context.Background()

	cases := []struct {
		name       string
		signal     types.TradeSignal
		assessment risk.Assessment
	}{
		{"bad side", types.TradeSignal{MarketID: "m", Outcome: types.OutcomeYes, Side: "HOLD", Price: 0.5}, approved(10)},
		{"bad outcome", types.TradeSignal{MarketID: "m", Outcome: "MAYBE", Side: types.SideBuy, Price: 0.5}, approved(10)},
		{"zero price", types.TradeSignal{MarketID: "m", Outcome: types.OutcomeYes, Side: types.SideBuy, Price: 0}, approved(10)},
		{"not approved", buyAt(0.5), risk.Assessment{Approved: false}},
		{"zero size", buyAt(0.5), risk.Assessment{Approved: true, SuggestedSizeUSD: 0}},
		{"sell without shares", types.TradeSignal{MarketID: "m", Outcome: types.OutcomeYes, Side: types.SideSell, Price: 0.5}, approved(0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.ExecuteSignal(ctx, tc.signal, tc.assessment)
			require.Error(t, err)
			assert.True(t, IsValidation(err), "want validation error, got %v", err)
		})
	}

	// Validation happens before registration: no orders were created.
	assert.Empty(t, e.Orders())
}

func TestExecuteSignal_SellWithoutPositionFails(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	sell := types.TradeSignal{
		MarketID: "mkt-1",
		Outcome:  types.OutcomeYes,
		Side:     types.SideSell,
		Price:    0.5,
		Shares:   10,
	}
	_, err := e.ExecuteSignal(context.Background(), sell, approved(0))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	// The order was registered first, so it must be marked FAILED.
	orders := e.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, types.OrderFailed, orders[0].Status)
	assert.NotEmpty(t, orders[0].Error)
}

func TestExecuteSignal_InsufficientBalance(t *testing.T) {
	cfg := testTradingConfig()
	cfg.PaperBalanceUSD = 50
	e, _, _ := newTestEngine(t, cfg)

	_, err := e.ExecuteSignal(context.Background(), buyAt(0.40), approved(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
}

func TestExecuteSignal_PendingOrderConflict(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	_, err := e.registerOrder(buyAt(0.40))
	require.NoError(t, err)

	_, err = e.ExecuteSignal(context.Background(), buyAt(0.40), approved(100))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOrderPending))
}

func TestExecuteSignal_StalePriceRejected(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	yes := 0.40
	e.UpdateMarketPrice("mkt-1", &yes, nil)
	e.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	_, err := e.ExecuteSignal(context.Background(), buyAt(0.40), approved(100))
	require.Error(t, err)
	assert.True(t, IsValidation(err))
}

func TestExecuteSignal_SlippageLiveOnly(t *testing.T) {
	cfg := testTradingConfig()
	cfg.PaperTrading = false
	e, _, _ := newTestEngine(t, cfg)

	yes := 0.40
	e.UpdateMarketPrice("mkt-1", &yes, nil)

	_, err := e.ExecuteSignal(context.Background(), buyAt(0.45), approved(100))
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	// Paper mode ignores slippage entirely.
	paper, _, _ := newTestEngine(t, testTradingConfig())
	paper.UpdateMarketPrice("mkt-1", &yes, nil)
	_, err = paper.ExecuteSignal(context.Background(), buyAt(0.45), approved(100))
	require.NoError(t, err)
}

func TestExecuteSignal_LiveFeeRate(t *testing.T) {
	cfg := testTradingConfig()
	cfg.PaperTrading = false
	e, _, _ := newTestEngine(t, cfg)

	trade, err := e.ExecuteSignal(context.Background(), buyAt(0.40), approved(100))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, trade.Fee, 1e-9) // 100 * 0.01
	assert.InDelta(t, 10000-101.0, e.Portfolio().AvailableBalance, 1e-9)
}

func TestUpdateMarketPrice_RecomputesUnrealized(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())

	_, err := e.ExecuteSignal(context.Background(), buyAt(0.40), approved(40.0)) // 100 shares
	require.NoError(t, err)

	yes := 0.55
	e.UpdateMarketPrice("mkt-1", &yes, nil)

	positions := e.Positions()
	require.Len(t, positions, 1)
	assert.InDelta(t, 0.55, positions[0].LastPrice, 1e-9)
	assert.InDelta(t, 15.0, positions[0].UnrealizedPnL, 1e-9)

	// Used balance stays at cost basis while total value marks to market.
	portfolio := e.Portfolio()
	assert.InDelta(t, 40.0, portfolio.UsedBalance, 1e-9)
	assert.InDelta(t, 9960.0+55.0, portfolio.TotalValue, 1e-9)
}

func TestEngine_RestoresPositionsFromStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trading.db")
	st, err := gormstore.Open(path)
	require.NoError(t, err)
	require.NoError(t, st.Positions().Upsert(context.Background(), types.Position{
		MarketID: "mkt-1", Outcome: types.OutcomeYes, Shares: 10, AveragePrice: 0.4, LastPrice: 0.4,
	}))
	require.NoError(t, st.Close())

	st, err = gormstore.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	e, err := NewEngine(testTradingConfig(), st, &fakeRecorder{}, &fakeSink{})
	require.NoError(t, err)
	require.Len(t, e.Positions(), 1)
	assert.Equal(t, "mkt-1", e.Positions()[0].MarketID)
}

func TestHealth(t *testing.T) {
	e, _, _ := newTestEngine(t, testTradingConfig())
	h := e.Health()
	assert.True(t, h.Healthy)
	assert.InDelta(t, 10000.0, h.CashUSD, 1e-9)

	cfg := testTradingConfig()
	cfg.PaperBalanceUSD = 0
	broke, _, _ := newTestEngine(t, cfg)
	assert.False(t, broke.Health().Healthy)
}
