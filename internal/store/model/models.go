package model

import (
	"gorm.io/datatypes"
)

// PositionModel is the persisted form of an open position. The
// (market_id, outcome) pair is the logical key.
type PositionModel struct {
	ID            int64   `gorm:"column:id;primaryKey"`
	MarketID      string  `gorm:"column:market_id;uniqueIndex:idx_position_key,priority:1"`
	Outcome       string  `gorm:"column:outcome;uniqueIndex:idx_position_key,priority:2"`
	MarketTitle   string  `gorm:"column:market_title"`
	Shares        float64 `gorm:"column:shares"`
	AveragePrice  float64 `gorm:"column:average_price"`
	LastPrice     float64 `gorm:"column:last_price"`
	UnrealizedPnL float64 `gorm:"column:unrealized_pnl"`
	OpenedAtUnix  int64   `gorm:"column:opened_at"`
	UpdatedAtUnix int64   `gorm:"column:updated_at"`
}

func (PositionModel) TableName() string { return "positions" }

// TradeModel is one row of the append-only trade journal. RawData carries
// the full trade record as JSON for audit.
type TradeModel struct {
	ID            int64          `gorm:"column:id;primaryKey"`
	TradeID       string         `gorm:"column:trade_id;uniqueIndex"`
	MarketID      string         `gorm:"column:market_id;index"`
	MarketTitle   string         `gorm:"column:market_title"`
	Outcome       string         `gorm:"column:outcome"`
	Side          string         `gorm:"column:side"`
	Shares        float64        `gorm:"column:shares"`
	Price         float64        `gorm:"column:price"`
	Fee           float64        `gorm:"column:fee"`
	PnL           float64        `gorm:"column:pnl"`
	Status        string         `gorm:"column:status"`
	Reason        string         `gorm:"column:reason"`
	RawData       datatypes.JSON `gorm:"column:raw_data;type:TEXT"`
	TimestampUnix int64          `gorm:"column:executed_at;index"`
	CreatedAtUnix int64          `gorm:"column:created_at"`
}

func (TradeModel) TableName() string { return "trades" }
