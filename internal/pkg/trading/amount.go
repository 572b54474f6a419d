// Package trading provides money math helpers shared by sizing and the
// ledger. Amounts are kept as float64 at the edges; decimal is used where
// rounding must be exact.
package trading

import "github.com/shopspring/decimal"

// sharesEpsilon is the threshold below which a residual share count is
// treated as a fully closed position.
const sharesEpsilon = 1e-6

// RoundDownCents truncates a USD amount to whole cents.
func RoundDownCents(v float64) float64 {
	if v <= 0 {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).RoundDown(2).Float64()
	return f
}

// ApproxZero reports whether a share count is effectively zero.
func ApproxZero(shares float64) bool {
	return shares < sharesEpsilon
}

// WeightedAverage returns the running average entry price after buying
// addShares at price into a position of oldShares at oldAvg.
func WeightedAverage(oldShares, oldAvg, addShares, price float64) float64 {
	if oldShares <= 0 {
		return price
	}
	if addShares <= 0 {
		return oldAvg
	}
	oldCost := decimal.NewFromFloat(oldShares).Mul(decimal.NewFromFloat(oldAvg))
	newCost := decimal.NewFromFloat(addShares).Mul(decimal.NewFromFloat(price))
	total := decimal.NewFromFloat(oldShares).Add(decimal.NewFromFloat(addShares))
	avg, _ := oldCost.Add(newCost).Div(total).Float64()
	return avg
}
