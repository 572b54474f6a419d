package notifier

import (
	"polytrader/internal/logger"
	"polytrader/internal/types"
)

// LogSink writes alerts to the process log. It is the fallback sink when no
// external channel is configured.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) TradeExecuted(trade types.Trade) {
	logger.Infof("alert: trade executed %s %s %s shares=%.2f price=%.4f pnl=%.2f",
		trade.Side, trade.MarketID, trade.Outcome, trade.Shares, trade.Price, trade.PnL)
}

func (s *LogSink) StopLossTriggered(position types.Position, exitPrice, pnl float64, reason string) {
	logger.Warnf("alert: stop-loss %s %s exit=%.4f pnl=%.2f (%s)",
		position.MarketID, position.Outcome, exitPrice, pnl, reason)
}

func (s *LogSink) EmergencyStop(reason string) {
	logger.Errorf("alert: EMERGENCY STOP: %s", reason)
}

func (s *LogSink) Error(component string, err error) {
	if err == nil {
		return
	}
	logger.Errorf("alert: %s: %v", component, err)
}
