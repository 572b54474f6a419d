// Package notifier delivers fire-and-forget operational alerts. Sink
// implementations must never block trading; delivery failures are logged
// and dropped.
package notifier

import "polytrader/internal/types"

// AlertSink receives trading lifecycle notifications.
type AlertSink interface {
	TradeExecuted(trade types.Trade)
	StopLossTriggered(position types.Position, exitPrice, pnl float64, reason string)
	EmergencyStop(reason string)
	Error(component string, err error)
}
