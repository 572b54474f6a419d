package executor

import (
	"context"
	"fmt"
	"time"

	"polytrader/internal/logger"
	"polytrader/internal/types"
)

// StopLossScanner flags positions whose drawdown breaches the stop-loss
// limit.
type StopLossScanner interface {
	CheckStopLosses(positions []types.Position) []types.Position
}

// StopLossBreach describes one breached position. The scan is observe-only:
// nothing is sold, callers decide what to do.
type StopLossBreach struct {
	Position  types.Position `json:"position"`
	ExitPrice float64        `json:"exit_price"`
	PnL       float64        `json:"pnl"`
	Reason    string         `json:"reason"`
}

// CheckStopLosses runs one read-only scan over the open positions.
func (e *Engine) CheckStopLosses(scanner StopLossScanner) []StopLossBreach {
	var breaches []StopLossBreach
	for _, p := range scanner.CheckStopLosses(e.Positions()) {
		change := 0.0
		if p.AveragePrice > 0 {
			change = (p.LastPrice - p.AveragePrice) / p.AveragePrice
		}
		breaches = append(breaches, StopLossBreach{
			Position:  p,
			ExitPrice: p.LastPrice,
			PnL:       (p.LastPrice - p.AveragePrice) * p.Shares,
			Reason:    fmt.Sprintf("price moved %.1f%% against entry", change*100),
		})
	}
	return breaches
}

// RunStopLossScan periodically scans and alerts on breaches until ctx is
// cancelled. Positions are not closed automatically.
func (e *Engine) RunStopLossScan(ctx context.Context, scanner StopLossScanner) error {
	interval := time.Duration(e.cfg.StopLossScanMs) * time.Millisecond
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, b := range e.CheckStopLosses(scanner) {
				logger.Warnf("executor: stop loss breached (market=%s outcome=%s pnl=%.2f)",
					b.Position.MarketID, b.Position.Outcome, b.PnL)
				e.alerts.StopLossTriggered(b.Position, b.ExitPrice, b.PnL, b.Reason)
			}
		}
	}
}
