// Package store defines the persistence boundary of the trading core.
// Implementations must be safe for concurrent use.
package store

import (
	"context"

	"polytrader/internal/types"
)

// PositionRepository persists open positions keyed by (marketId, outcome).
type PositionRepository interface {
	// Upsert inserts or replaces the position for its key.
	Upsert(ctx context.Context, position types.Position) error
	// Remove deletes the position for the key; missing rows are not an error.
	Remove(ctx context.Context, marketID string, outcome types.Outcome) error
	// List returns all live positions.
	List(ctx context.Context) ([]types.Position, error)
}

// TradeRepository is an append-only trade journal.
type TradeRepository interface {
	Insert(ctx context.Context, trade types.Trade) error
	ListRecent(ctx context.Context, limit int) ([]types.Trade, error)
}

// Store is the entry point for database access.
type Store interface {
	Positions() PositionRepository
	Trades() TradeRepository
	Close() error
}
