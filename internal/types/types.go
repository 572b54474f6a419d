// Package types holds the shared domain model of the trading core.
package types

import "time"

// Outcome is the side of a binary prediction market.
type Outcome string

const (
	OutcomeYes Outcome = "YES"
	OutcomeNo  Outcome = "NO"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// MarketStatus describes the lifecycle state of a market at the venue.
type MarketStatus string

const (
	MarketOpen     MarketStatus = "OPEN"
	MarketClosed   MarketStatus = "CLOSED"
	MarketResolved MarketStatus = "RESOLVED"
	MarketUnknown  MarketStatus = "UNKNOWN"
)

// PositionKey identifies a live position: at most one entry per key.
type PositionKey struct {
	MarketID string
	Outcome  Outcome
}

// Position is an open holding in one market outcome.
// UnrealizedPnL = (LastPrice - AveragePrice) * Shares, recomputed on every
// price tick. Shares stays > 0 while the position exists.
type Position struct {
	MarketID      string    `json:"market_id"`
	MarketTitle   string    `json:"market_title"`
	Outcome       Outcome   `json:"outcome"`
	Shares        float64   `json:"shares"`
	AveragePrice  float64   `json:"average_price"`
	LastPrice     float64   `json:"last_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	OpenedAt      time.Time `json:"opened_at"`
}

// Key returns the (marketId, outcome) identity of the position.
func (p Position) Key() PositionKey {
	return PositionKey{MarketID: p.MarketID, Outcome: p.Outcome}
}

// TradeStatus is the terminal bookkeeping status of a stored trade.
type TradeStatus string

const (
	TradeFilled TradeStatus = "FILLED"
	TradeFailed TradeStatus = "FAILED"
)

// Trade is an append-only execution record, immutable once stored.
type Trade struct {
	ID          string      `json:"id"`
	MarketID    string      `json:"market_id"`
	MarketTitle string      `json:"market_title"`
	Outcome     Outcome     `json:"outcome"`
	Side        Side        `json:"side"`
	Shares      float64     `json:"shares"`
	Price       float64     `json:"price"`
	Fee         float64     `json:"fee"`
	PnL         float64     `json:"pnl"`
	Timestamp   time.Time   `json:"timestamp"`
	Status      TradeStatus `json:"status"`
	Reason      string      `json:"reason"`
}

// TradeSignal is a proposed trade handed in by the orchestrator.
type TradeSignal struct {
	MarketID    string  `json:"market_id"`
	MarketTitle string  `json:"market_title"`
	Outcome     Outcome `json:"outcome"`
	Side        Side    `json:"side"`
	Price       float64 `json:"price"`
	Shares      float64 `json:"shares,omitempty"` // SELL only; BUY sizes from risk
	Confidence  float64 `json:"confidence"`
	Edge        float64 `json:"edge"`
	Reason      string  `json:"reason,omitempty"`
}

// Portfolio is a derived snapshot, never persisted.
type Portfolio struct {
	TotalValue       float64    `json:"total_value"`
	AvailableBalance float64    `json:"available_balance"`
	UsedBalance      float64    `json:"used_balance"`
	RealizedPnL      float64    `json:"realized_pnl"`
	UnrealizedPnL    float64    `json:"unrealized_pnl"`
	Positions        []Position `json:"positions"`
}

// OrderStatus is the pending-order state machine.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderFilled    OrderStatus = "FILLED"
	OrderFailed    OrderStatus = "FAILED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderFailed || s == OrderCancelled
}

// PendingOrder tracks one in-flight execution.
type PendingOrder struct {
	ID           string      `json:"id"`
	Signal       TradeSignal `json:"signal"`
	Status       OrderStatus `json:"status"`
	SubmittedAt  time.Time   `json:"submitted_at"`
	FilledAt     *time.Time  `json:"filled_at,omitempty"`
	FilledShares float64     `json:"filled_shares,omitempty"`
	FilledPrice  float64     `json:"filled_price,omitempty"`
	RetryCount   int         `json:"retry_count"`
	Error        string      `json:"error,omitempty"`
}

// DailyRiskState is the per-calendar-day risk ledger. One live instance per
// day, persisted so a restart resumes mid-day accounting, replaced wholesale
// at local midnight.
type DailyRiskState struct {
	Date                   string    `json:"date"` // YYYY-MM-DD, local
	Trades                 []Trade   `json:"trades"`
	TotalTrades            int       `json:"total_trades"`
	WinningTrades          int       `json:"winning_trades"`
	LosingTrades           int       `json:"losing_trades"`
	DailyPnL               float64   `json:"daily_pnl"`
	LastTradeTime          time.Time `json:"last_trade_time"`
	CooldownUntil          time.Time `json:"cooldown_until"`
	EmergencyStopTriggered bool      `json:"emergency_stop_triggered"`
}

// DiscrepancySeverity grades local-vs-venue share drift.
type DiscrepancySeverity string

const (
	SeverityMinor    DiscrepancySeverity = "MINOR"
	SeverityMajor    DiscrepancySeverity = "MAJOR"
	SeverityCritical DiscrepancySeverity = "CRITICAL"
)

// PositionDiscrepancy is one mismatch found during reconciliation.
type PositionDiscrepancy struct {
	Position       Position            `json:"position"`
	ActualShares   float64             `json:"actual_shares"`
	ExpectedShares float64             `json:"expected_shares"`
	Difference     float64             `json:"difference"`
	Severity       DiscrepancySeverity `json:"severity"`
}

// ReconciliationResult is the transient outcome of one reconcile cycle.
type ReconciliationResult struct {
	Timestamp         time.Time             `json:"timestamp"`
	Discrepancies     []PositionDiscrepancy `json:"discrepancies"`
	OrphanedPositions []Position            `json:"orphaned_positions"`
	StalePositions    []Position            `json:"stale_positions"`
	CleanupFailures   int                   `json:"cleanup_failures"`
	Synced            bool                  `json:"synced"`
}

// VenuePosition is an authoritative position as reported by the venue.
type VenuePosition struct {
	MarketID string  `json:"market_id"`
	Outcome  Outcome `json:"outcome"`
	Shares   float64 `json:"shares"`
	AvgPrice float64 `json:"avg_price"`
}
