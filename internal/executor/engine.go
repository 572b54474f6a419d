// Package executor owns the trading ledger: cash, open positions and
// pending orders. Every mutation goes through one mutex; executions on the
// same market are additionally serialized by a per-market lock.
package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"polytrader/internal/config"
	"polytrader/internal/logger"
	"polytrader/internal/notifier"
	"polytrader/internal/pkg/trading"
	"polytrader/internal/risk"
	"polytrader/internal/store"
	"polytrader/internal/types"

	"github.com/google/uuid"
)

// TradeRecorder receives every executed trade for daily risk accounting.
type TradeRecorder interface {
	RecordTrade(ctx context.Context, trade types.Trade)
}

// Engine executes approved trade signals against the ledger.
type Engine struct {
	mu          sync.Mutex
	cash        float64
	realizedPnL float64
	positions   map[types.PositionKey]types.Position
	orders      map[string]*types.PendingOrder
	prices      map[string]priceSnapshot

	marketMu    sync.Mutex
	marketLocks map[string]*sync.Mutex

	cfg    config.TradingConfig
	store  store.Store
	risk   TradeRecorder
	alerts notifier.AlertSink

	now func() time.Time
}

// NewEngine builds the engine and restores open positions from the store.
// The starting cash balance comes from configuration; in live mode the
// reconciler corrects position drift against the venue afterwards.
func NewEngine(cfg config.TradingConfig, st store.Store, recorder TradeRecorder, alerts notifier.AlertSink) (*Engine, error) {
	if st == nil {
		return nil, fmt.Errorf("executor: store is required")
	}
	if recorder == nil {
		return nil, fmt.Errorf("executor: trade recorder is required")
	}
	if alerts == nil {
		alerts = notifier.NewLogSink()
	}
	e := &Engine{
		cash:        cfg.PaperBalanceUSD,
		positions:   make(map[types.PositionKey]types.Position),
		orders:      make(map[string]*types.PendingOrder),
		prices:      make(map[string]priceSnapshot),
		marketLocks: make(map[string]*sync.Mutex),
		cfg:         cfg,
		store:       st,
		risk:        recorder,
		alerts:      alerts,
		now:         time.Now,
	}
	positions, err := st.Positions().List(context.Background())
	if err != nil {
		return nil, fmt.Errorf("executor: restoring positions failed: %w", err)
	}
	for _, p := range positions {
		e.positions[p.Key()] = p
	}
	if len(positions) > 0 {
		logger.Infof("executor: restored %d open positions", len(positions))
	}
	return e, nil
}

// ExecuteSignal runs one approved signal through the full order lifecycle.
// Any failure after the pending order is registered marks it FAILED and the
// error is returned to the caller.
func (e *Engine) ExecuteSignal(ctx context.Context, signal types.TradeSignal, assessment risk.Assessment) (*types.Trade, error) {
	if err := e.validateSignal(signal, assessment); err != nil {
		return nil, err
	}

	lock := e.marketLock(signal.MarketID)
	lock.Lock()
	defer lock.Unlock()

	order, err := e.registerOrder(signal)
	if err != nil {
		return nil, err
	}
	defer e.scheduleOrderCleanup(order.ID)

	trade, err := e.fill(ctx, signal, assessment)
	if err != nil {
		e.finishOrder(order.ID, types.OrderFailed, nil, err.Error())
		e.journalFailure(ctx, signal, err)
		return nil, err
	}

	e.finishOrder(order.ID, types.OrderFilled, trade, "")
	e.risk.RecordTrade(ctx, *trade)
	e.alerts.TradeExecuted(*trade)
	logger.Infof("executor: %s %s %.2f shares @ %.4f (market=%s fee=%.4f pnl=%.2f)",
		trade.Side, trade.Outcome, trade.Shares, trade.Price, trade.MarketID, trade.Fee, trade.PnL)
	return trade, nil
}

func (e *Engine) validateSignal(signal types.TradeSignal, assessment risk.Assessment) error {
	if signal.Side != types.SideBuy && signal.Side != types.SideSell {
		return validationErrf("unknown side %q", signal.Side)
	}
	if signal.Outcome != types.OutcomeYes && signal.Outcome != types.OutcomeNo {
		return validationErrf("unknown outcome %q", signal.Outcome)
	}
	if signal.MarketID == "" {
		return validationErrf("missing market id")
	}
	if signal.Price <= 0 || math.IsNaN(signal.Price) || math.IsInf(signal.Price, 0) {
		return validationErrf("price %v is not a positive finite number", signal.Price)
	}
	if !assessment.Approved {
		return validationErrf("risk assessment rejected: %v", assessment.Warnings)
	}
	if signal.Side == types.SideBuy && assessment.SuggestedSizeUSD <= 0 {
		return validationErrf("suggested size is zero")
	}
	if signal.Side == types.SideSell && signal.Shares <= 0 {
		return validationErrf("sell requires a positive share count")
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if snap, ok := e.prices[signal.MarketID]; ok {
		if age := e.now().Sub(snap.at); age > e.priceMaxAge() {
			return validationErrf("price snapshot is %s old", age.Truncate(time.Second))
		}
		if !e.cfg.PaperTrading {
			if last := snap.price(signal.Outcome); last > 0 {
				slippage := math.Abs(signal.Price-last) / last
				if slippage > e.cfg.MaxSlippagePct {
					return validationErrf("slippage %.4f exceeds limit %.4f", slippage, e.cfg.MaxSlippagePct)
				}
			}
		}
	}
	return nil
}

// fill applies the signal to the ledger and persists the resulting trade.
func (e *Engine) fill(ctx context.Context, signal types.TradeSignal, assessment risk.Assessment) (*types.Trade, error) {
	e.mu.Lock()

	var (
		trade    *types.Trade
		position types.Position
		closed   bool
		err      error
	)
	switch signal.Side {
	case types.SideBuy:
		trade, position, err = e.buyLocked(signal, assessment.SuggestedSizeUSD)
	case types.SideSell:
		trade, position, closed, err = e.sellLocked(signal, signal.Shares)
	}
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	if closed {
		err = e.store.Positions().Remove(ctx, position.MarketID, position.Outcome)
	} else {
		err = e.store.Positions().Upsert(ctx, position)
	}
	if err != nil {
		return nil, fmt.Errorf("executor: persisting position failed: %w", err)
	}
	if err := e.store.Trades().Insert(ctx, *trade); err != nil {
		return nil, fmt.Errorf("executor: persisting trade failed: %w", err)
	}
	return trade, nil
}

func (e *Engine) buyLocked(signal types.TradeSignal, sizeUSD float64) (*types.Trade, types.Position, error) {
	shares := sizeUSD / signal.Price
	cost := shares * signal.Price
	fee := cost * e.feeRate()
	if cost+fee > e.cash {
		return nil, types.Position{}, ErrInsufficientBalance
	}

	key := types.PositionKey{MarketID: signal.MarketID, Outcome: signal.Outcome}
	position, exists := e.positions[key]
	if exists {
		position.AveragePrice = trading.WeightedAverage(position.Shares, position.AveragePrice, shares, signal.Price)
		position.Shares += shares
	} else {
		position = types.Position{
			MarketID:     signal.MarketID,
			MarketTitle:  signal.MarketTitle,
			Outcome:      signal.Outcome,
			Shares:       shares,
			AveragePrice: signal.Price,
			OpenedAt:     e.now(),
		}
	}
	position.LastPrice = signal.Price
	position.UnrealizedPnL = (position.LastPrice - position.AveragePrice) * position.Shares

	e.cash -= cost + fee
	e.positions[key] = position

	return e.newTrade(signal, shares, fee, 0), position, nil
}

func (e *Engine) sellLocked(signal types.TradeSignal, requested float64) (*types.Trade, types.Position, bool, error) {
	key := types.PositionKey{MarketID: signal.MarketID, Outcome: signal.Outcome}
	position, exists := e.positions[key]
	if !exists {
		return nil, types.Position{}, false, validationErrf("no open position for %s %s", signal.MarketID, signal.Outcome)
	}

	sellShares := math.Min(requested, position.Shares)
	proceeds := sellShares * signal.Price
	fee := proceeds * e.feeRate()
	pnl := (signal.Price - position.AveragePrice) * sellShares

	e.cash += proceeds - fee
	e.realizedPnL += pnl

	position.Shares -= sellShares
	position.LastPrice = signal.Price
	position.UnrealizedPnL = (position.LastPrice - position.AveragePrice) * position.Shares

	closed := trading.ApproxZero(position.Shares)
	if closed {
		delete(e.positions, key)
	} else {
		e.positions[key] = position
	}

	return e.newTrade(signal, sellShares, fee, pnl), position, closed, nil
}

func (e *Engine) newTrade(signal types.TradeSignal, shares, fee, pnl float64) *types.Trade {
	return &types.Trade{
		ID:          uuid.NewString(),
		MarketID:    signal.MarketID,
		MarketTitle: signal.MarketTitle,
		Outcome:     signal.Outcome,
		Side:        signal.Side,
		Shares:      shares,
		Price:       signal.Price,
		Fee:         fee,
		PnL:         pnl,
		Timestamp:   e.now(),
		Status:      types.TradeFilled,
		Reason:      signal.Reason,
	}
}

// journalFailure records a failed execution in the trade journal. Best
// effort: journaling must not mask the execution error.
func (e *Engine) journalFailure(ctx context.Context, signal types.TradeSignal, cause error) {
	trade := types.Trade{
		ID:          uuid.NewString(),
		MarketID:    signal.MarketID,
		MarketTitle: signal.MarketTitle,
		Outcome:     signal.Outcome,
		Side:        signal.Side,
		Price:       signal.Price,
		Timestamp:   e.now(),
		Status:      types.TradeFailed,
		Reason:      cause.Error(),
	}
	if err := e.store.Trades().Insert(ctx, trade); err != nil {
		logger.Errorf("executor: journaling failed trade: %v", err)
	}
}

func (e *Engine) feeRate() float64 {
	if e.cfg.PaperTrading {
		return e.cfg.PaperFeeRate
	}
	return e.cfg.LiveFeeRate
}

func (e *Engine) priceMaxAge() time.Duration {
	if e.cfg.PriceMaxAgeMs <= 0 {
		return time.Minute
	}
	return time.Duration(e.cfg.PriceMaxAgeMs) * time.Millisecond
}

func (e *Engine) marketLock(marketID string) *sync.Mutex {
	e.marketMu.Lock()
	defer e.marketMu.Unlock()
	lock, ok := e.marketLocks[marketID]
	if !ok {
		lock = &sync.Mutex{}
		e.marketLocks[marketID] = lock
	}
	return lock
}

// Portfolio returns a derived snapshot of the ledger.
func (e *Engine) Portfolio() types.Portfolio {
	e.mu.Lock()
	defer e.mu.Unlock()

	p := types.Portfolio{
		AvailableBalance: e.cash,
		RealizedPnL:      e.realizedPnL,
	}
	var markToMarket float64
	for _, position := range e.positions {
		p.Positions = append(p.Positions, position)
		p.UsedBalance += position.Shares * position.AveragePrice
		p.UnrealizedPnL += position.UnrealizedPnL
		markToMarket += position.Shares * position.LastPrice
	}
	p.TotalValue = p.AvailableBalance + markToMarket
	return p
}

// Positions returns a copy of all open positions.
func (e *Engine) Positions() []types.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]types.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, p)
	}
	return out
}

// Health is the operational snapshot exposed over the admin surface.
type Health struct {
	Healthy       bool    `json:"healthy"`
	CashUSD       float64 `json:"cash_usd"`
	OpenPositions int     `json:"open_positions"`
	PendingOrders int     `json:"pending_orders"`
}

// Health reports ledger liveness; the engine is healthy while cash remains.
func (e *Engine) Health() Health {
	e.mu.Lock()
	defer e.mu.Unlock()
	pending := 0
	for _, o := range e.orders {
		if o.Status == types.OrderPending {
			pending++
		}
	}
	return Health{
		Healthy:       e.cash > 0,
		CashUSD:       e.cash,
		OpenPositions: len(e.positions),
		PendingOrders: pending,
	}
}

// RemovePosition drops a position from memory and the store without trading
// against it. The reconciler uses this for orphan cleanup.
func (e *Engine) RemovePosition(ctx context.Context, marketID string, outcome types.Outcome) error {
	e.mu.Lock()
	delete(e.positions, types.PositionKey{MarketID: marketID, Outcome: outcome})
	e.mu.Unlock()
	return e.store.Positions().Remove(ctx, marketID, outcome)
}
