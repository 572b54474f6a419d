package gormstore

import (
	"context"
	"encoding/json"
	"time"

	"polytrader/internal/store/model"
	"polytrader/internal/types"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type tradeRepo struct {
	db *gorm.DB
}

func (r *tradeRepo) Insert(ctx context.Context, trade types.Trade) error {
	raw, err := json.Marshal(trade)
	if err != nil {
		return err
	}
	row := model.TradeModel{
		TradeID:       trade.ID,
		MarketID:      trade.MarketID,
		MarketTitle:   trade.MarketTitle,
		Outcome:       string(trade.Outcome),
		Side:          string(trade.Side),
		Shares:        trade.Shares,
		Price:         trade.Price,
		Fee:           trade.Fee,
		PnL:           trade.PnL,
		Status:        string(trade.Status),
		Reason:        trade.Reason,
		RawData:       datatypes.JSON(raw),
		TimestampUnix: trade.Timestamp.UnixMilli(),
		CreatedAtUnix: time.Now().Unix(),
	}
	return r.db.WithContext(ctx).Create(&row).Error
}

func (r *tradeRepo) ListRecent(ctx context.Context, limit int) ([]types.Trade, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []model.TradeModel
	if err := r.db.WithContext(ctx).Order("executed_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.Trade{
			ID:          row.TradeID,
			MarketID:    row.MarketID,
			MarketTitle: row.MarketTitle,
			Outcome:     types.Outcome(row.Outcome),
			Side:        types.Side(row.Side),
			Shares:      row.Shares,
			Price:       row.Price,
			Fee:         row.Fee,
			PnL:         row.PnL,
			Timestamp:   time.UnixMilli(row.TimestampUnix),
			Status:      types.TradeStatus(row.Status),
			Reason:      row.Reason,
		})
	}
	return out, nil
}
