package executor

import (
	"time"

	"polytrader/internal/types"
)

// priceSnapshot is the last known YES/NO quote for one market.
type priceSnapshot struct {
	yes *float64
	no  *float64
	at  time.Time
}

func (s priceSnapshot) price(outcome types.Outcome) float64 {
	switch outcome {
	case types.OutcomeYes:
		if s.yes != nil {
			return *s.yes
		}
	case types.OutcomeNo:
		if s.no != nil {
			return *s.no
		}
	}
	return 0
}

// UpdateMarketPrice refreshes the cached quote for a market and recomputes
// the mark and unrealized P&L of every open position on it. Either side may
// be nil when the venue only published one of them.
func (e *Engine) UpdateMarketPrice(marketID string, yesPrice, noPrice *float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := e.prices[marketID]
	if yesPrice != nil {
		snap.yes = yesPrice
	}
	if noPrice != nil {
		snap.no = noPrice
	}
	snap.at = e.now()
	e.prices[marketID] = snap

	for key, position := range e.positions {
		if key.MarketID != marketID {
			continue
		}
		last := snap.price(key.Outcome)
		if last <= 0 {
			continue
		}
		position.LastPrice = last
		position.UnrealizedPnL = (last - position.AveragePrice) * position.Shares
		e.positions[key] = position
	}
}
