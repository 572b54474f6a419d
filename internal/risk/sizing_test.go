package risk

import (
	"testing"

	"polytrader/internal/types"

	"github.com/stretchr/testify/assert"
)

func testLimits() Limits {
	return Limits{
		MaxDailyLossPct:        0.02,
		MaxDailyLossUSD:        100,
		MaxDailyTrades:         5,
		MaxPortfolioHeatPct:    0.30,
		MaxPositions:           10,
		MaxPositionPct:         0.05,
		CooldownAfterLossMin:   30,
		CooldownAfterWinMin:    5,
		StopLossPct:            0.20,
		EnableCorrelationCheck: true,
		MaxCorrelatedPositions: 2,
		EmergencyStopDailyLoss: 0.05,
	}
}

func TestSuggestedSize_ReferenceCase(t *testing.T) {
	// portfolio 10000, maxPositionPct 0.05, confidence 0.8, edge 0.15,
	// heat 0: 500 * 0.9 * 1.3 * 1.0 = 585.00
	signal := types.TradeSignal{Confidence: 0.8, Edge: 0.15}
	size := suggestedSize(testLimits(), signal, 10000, 10000, 0)
	assert.Equal(t, 585.00, size)
}

func TestSuggestedSize_ClampedToBalance(t *testing.T) {
	signal := types.TradeSignal{Confidence: 0.8, Edge: 0.15}
	size := suggestedSize(testLimits(), signal, 10000, 300, 0)
	assert.Equal(t, 300.0, size)
}

func TestSuggestedSize_BelowMinimumIsZero(t *testing.T) {
	limits := testLimits()
	limits.MaxPositionPct = 0.0004 // 10000 * 0.0004 = 4 < floor of 5
	signal := types.TradeSignal{Confidence: 0.5, Edge: 0}
	size := suggestedSize(limits, signal, 10000, 100, 0)
	assert.Equal(t, 0.0, size)
}

func TestSuggestedSize_HeatReducesSize(t *testing.T) {
	signal := types.TradeSignal{Confidence: 1, Edge: 0}
	full := suggestedSize(testLimits(), signal, 10000, 10000, 0)
	heated := suggestedSize(testLimits(), signal, 10000, 10000, 0.15)
	assert.Less(t, heated, full)

	// Heat multiplier floors at 0.3 even above the heat limit.
	extreme := suggestedSize(testLimits(), signal, 10000, 10000, 0.9)
	assert.InDelta(t, full*0.3, extreme, 0.01)
}

func TestSuggestedSize_EdgeMultiplierCapped(t *testing.T) {
	small := suggestedSize(testLimits(), types.TradeSignal{Confidence: 1, Edge: 0.25}, 10000, 10000, 0)
	big := suggestedSize(testLimits(), types.TradeSignal{Confidence: 1, Edge: 0.90}, 10000, 10000, 0)
	assert.Equal(t, small, big, "edge multiplier caps at 1.5")
}

func TestRiskScore(t *testing.T) {
	limits := testLimits()

	// edge exactly 0.10 contributes nothing; full confidence contributes
	// nothing; no positions contribute nothing.
	score := riskScore(limits, types.TradeSignal{Confidence: 1, Edge: 0.10}, 0)
	assert.Equal(t, 0.0, score)

	score = riskScore(limits, types.TradeSignal{Confidence: 0, Edge: 0.10}, 10)
	assert.InDelta(t, 0.5, score, 1e-9)

	// Score never exceeds 1.
	score = riskScore(limits, types.TradeSignal{Confidence: 0, Edge: 0.9}, 10)
	assert.LessOrEqual(t, score, 1.0)
}

func TestPortfolioHeat(t *testing.T) {
	positions := []types.Position{
		{Shares: 100, LastPrice: 0.5},
		{Shares: 200, LastPrice: 0.25},
	}
	assert.InDelta(t, 0.01, portfolioHeat(positions, 10000), 1e-9)
	assert.Equal(t, 0.0, portfolioHeat(positions, 0))
}

func TestTitlesCorrelated(t *testing.T) {
	assert.True(t, titlesCorrelated(
		"Will Bitcoin close above 100k in December?",
		"Bitcoin above 90k before December ends"))
	assert.False(t, titlesCorrelated(
		"Will Bitcoin close above 100k?",
		"Will the Lakers win the finals?"))
	// Short words are not significant.
	assert.False(t, titlesCorrelated("Will it be hot?", "Will it be cold?"))
}
