package gormstore

import (
	"context"
	"time"

	"polytrader/internal/store/model"
	"polytrader/internal/types"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type positionRepo struct {
	db *gorm.DB
}

func (r *positionRepo) Upsert(ctx context.Context, position types.Position) error {
	now := time.Now().Unix()
	row := model.PositionModel{
		MarketID:      position.MarketID,
		Outcome:       string(position.Outcome),
		MarketTitle:   position.MarketTitle,
		Shares:        position.Shares,
		AveragePrice:  position.AveragePrice,
		LastPrice:     position.LastPrice,
		UnrealizedPnL: position.UnrealizedPnL,
		OpenedAtUnix:  position.OpenedAt.Unix(),
		UpdatedAtUnix: now,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "market_id"}, {Name: "outcome"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"market_title", "shares", "average_price", "last_price", "unrealized_pnl", "updated_at",
		}),
	}).Create(&row).Error
}

func (r *positionRepo) Remove(ctx context.Context, marketID string, outcome types.Outcome) error {
	return r.db.WithContext(ctx).
		Where("market_id = ? AND outcome = ?", marketID, string(outcome)).
		Delete(&model.PositionModel{}).Error
}

func (r *positionRepo) List(ctx context.Context) ([]types.Position, error) {
	var rows []model.PositionModel
	if err := r.db.WithContext(ctx).Order("market_id, outcome").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(rows))
	for _, row := range rows {
		out = append(out, types.Position{
			MarketID:      row.MarketID,
			MarketTitle:   row.MarketTitle,
			Outcome:       types.Outcome(row.Outcome),
			Shares:        row.Shares,
			AveragePrice:  row.AveragePrice,
			LastPrice:     row.LastPrice,
			UnrealizedPnL: row.UnrealizedPnL,
			OpenedAt:      time.Unix(row.OpenedAtUnix, 0),
		})
	}
	return out, nil
}
