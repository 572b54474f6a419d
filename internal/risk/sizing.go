package risk

import (
	"math"
	"strings"

	"polytrader/internal/pkg/trading"
	"polytrader/internal/types"
)

// minTradeFloorUSD is the absolute floor below which a suggested size is
// considered too small to trade.
const minTradeFloorUSD = 5.0

// suggestedSize computes the position size in USD for an approved idea.
// Pure: never errors, returns 0 when the result would be too small to trade.
//
//	size = maxPositionUsd * confidenceMult * edgeMult * heatMult
//
// clamped to availableBalance and rounded down to cents.
func suggestedSize(limits Limits, signal types.TradeSignal, portfolioValue, availableBalance, currentHeat float64) float64 {
	if portfolioValue <= 0 || availableBalance <= 0 {
		return 0
	}
	maxPositionUSD := portfolioValue * limits.MaxPositionPct

	confidenceMult := 0.5 + clamp01(signal.Confidence)*0.5
	edgeMult := math.Min(1+math.Abs(signal.Edge)*2, 1.5)
	heatMult := 1.0
	if limits.MaxPortfolioHeatPct > 0 {
		heatMult = math.Max(0.3, (limits.MaxPortfolioHeatPct-currentHeat)/limits.MaxPortfolioHeatPct)
	}

	size := maxPositionUSD * confidenceMult * edgeMult * heatMult
	if size > availableBalance {
		size = availableBalance
	}
	if size < math.Max(minTradeFloorUSD, availableBalance*0.01) {
		return 0
	}
	return trading.RoundDownCents(size)
}

// riskScore grades the idea in [0, 1]; higher is riskier.
func riskScore(limits Limits, signal types.TradeSignal, positionCount int) float64 {
	edgeComponent := math.Min(math.Abs(signal.Edge-0.10)*2, 0.3)
	confidenceComponent := (1 - clamp01(signal.Confidence)) * 0.3
	crowdingComponent := 0.0
	if limits.MaxPositions > 0 {
		crowdingComponent = float64(positionCount) / float64(limits.MaxPositions) * 0.2
	}
	return math.Min(1, edgeComponent+confidenceComponent+crowdingComponent)
}

// portfolioHeat is the fraction of portfolio value tied up in open positions.
func portfolioHeat(positions []types.Position, portfolioValue float64) float64 {
	if portfolioValue <= 0 {
		return 0
	}
	var exposure float64
	for _, p := range positions {
		exposure += p.Shares * p.LastPrice
	}
	return exposure / portfolioValue
}

// titlesCorrelated reports whether two market titles share at least two
// significant words (longer than three characters).
func titlesCorrelated(a, b string) bool {
	wordsA := significantWords(a)
	if len(wordsA) == 0 {
		return false
	}
	wordsB := significantWords(b)
	shared := 0
	for w := range wordsB {
		if wordsA[w] {
			shared++
			if shared >= 2 {
				return true
			}
		}
	}
	return false
}

func significantWords(title string) map[string]bool {
	out := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(title)) {
		w = strings.Trim(w, ".,!?:;\"'()")
		if len(w) > 3 {
			out[w] = true
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
