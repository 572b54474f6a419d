package executor

import (
	"context"
	"fmt"

	"polytrader/internal/logger"
	"polytrader/internal/types"
)

// CloseAllResult summarizes an emergency liquidation.
type CloseAllResult struct {
	Closed   int     `json:"closed"`
	Failed   int     `json:"failed"`
	TotalPnL float64 `json:"total_pnl"`
}

// EmergencyCloseAll liquidates every open position at its last known price.
// A failure on one position is counted and the rest continue.
func (e *Engine) EmergencyCloseAll(ctx context.Context, reason string) CloseAllResult {
	var result CloseAllResult
	for _, position := range e.Positions() {
		trade, err := e.closePosition(ctx, position, reason)
		if err != nil {
			result.Failed++
			logger.Errorf("executor: closing %s %s failed: %v", position.MarketID, position.Outcome, err)
			e.alerts.Error("executor", err)
			continue
		}
		result.Closed++
		result.TotalPnL += trade.PnL
	}
	logger.Warnf("executor: emergency close-all finished (closed=%d failed=%d pnl=%.2f reason=%s)",
		result.Closed, result.Failed, result.TotalPnL, reason)
	e.alerts.EmergencyStop(fmt.Sprintf("close-all: %d closed, %d failed, pnl %.2f (%s)",
		result.Closed, result.Failed, result.TotalPnL, reason))
	return result
}

// closePosition synthesizes a market SELL for the full position at its last
// known price and records the trade.
func (e *Engine) closePosition(ctx context.Context, position types.Position, reason string) (*types.Trade, error) {
	price := position.LastPrice
	if price <= 0 {
		price = position.AveragePrice
	}
	if price <= 0 {
		return nil, fmt.Errorf("executor: no price for %s %s", position.MarketID, position.Outcome)
	}
	signal := types.TradeSignal{
		MarketID:    position.MarketID,
		MarketTitle: position.MarketTitle,
		Outcome:     position.Outcome,
		Side:        types.SideSell,
		Price:       price,
		Shares:      position.Shares,
		Reason:      reason,
	}

	e.mu.Lock()
	trade, closedPos, closed, err := e.sellLocked(signal, signal.Shares)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if closed {
		err = e.store.Positions().Remove(ctx, closedPos.MarketID, closedPos.Outcome)
	} else {
		err = e.store.Positions().Upsert(ctx, closedPos)
	}
	if err != nil {
		return nil, fmt.Errorf("executor: persisting close failed: %w", err)
	}
	if err := e.store.Trades().Insert(ctx, *trade); err != nil {
		return nil, fmt.Errorf("executor: persisting close trade failed: %w", err)
	}
	e.risk.RecordTrade(ctx, *trade)
	return trade, nil
}
