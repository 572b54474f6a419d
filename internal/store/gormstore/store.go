// Package gormstore implements the store interfaces on SQLite via Gorm.
package gormstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"polytrader/internal/store"
	"polytrader/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type GormStore struct {
	db        *gorm.DB
	positions *positionRepo
	trades    *tradeRepo
}

var _ store.Store = (*GormStore)(nil)

// Open opens or creates the SQLite database at path and migrates the schema.
func Open(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already-open gorm handle; tests use this with an
// in-memory database.
func NewWithDB(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm store: nil db")
	}
	if err := db.AutoMigrate(&model.PositionModel{}, &model.TradeModel{}); err != nil {
		return nil, fmt.Errorf("gorm store: migrate failed: %w", err)
	}
	return &GormStore{
		db:        db,
		positions: &positionRepo{db: db},
		trades:    &tradeRepo{db: db},
	}, nil
}

func (s *GormStore) Positions() store.PositionRepository { return s.positions }
func (s *GormStore) Trades() store.TradeRepository       { return s.trades }

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
