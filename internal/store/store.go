// Package store keeps the order and trade history in SQLite through gorm. It is a
// write-behind sink: the engine never reads trading state back from it.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"algotrade/internal/types"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	_ "modernc.org/sqlite"
)

const maxQueryLimit = 1000

type Store struct {
	db *gorm.DB
}

// Open creates the database file if needed and migrates the history tables. The
// pure-Go modernc driver is used, so the binary needs no cgo.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: 数据库路径不能为空")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", DSN: dsn}), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&OrderModel{}, &TradeModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveOrders upserts by order id; the latest state wins.
func (s *Store) SaveOrders(ctx context.Context, orders []types.Order) error {
	if len(orders) == 0 {
		return nil
	}
	models := make([]OrderModel, 0, len(orders))
	for _, o := range orders {
		models = append(models, newOrderModel(o))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"price", "volume", "traded_volume", "status", "message", "update_time", "raw",
			}),
		}).
		Create(&models).Error
}

// SaveTrades inserts trades, ignoring ids already stored.
func (s *Store) SaveTrades(ctx context.Context, trades []types.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	models := make([]TradeModel, 0, len(trades))
	for _, t := range trades {
		models = append(models, newTradeModel(t))
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trade_id"}},
			DoNothing: true,
		}).
		Create(&models).Error
}

// RecentOrders returns the newest orders first. An empty ticker matches all.
func (s *Store) RecentOrders(ctx context.Context, ticker string, limit int) ([]types.Order, error) {
	var rows []OrderModel
	q := s.db.WithContext(ctx).Order("update_time DESC, id DESC").Limit(clampLimit(limit))
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toOrder())
	}
	return out, nil
}

// RecentTrades returns the newest trades first. An empty ticker matches all.
func (s *Store) RecentTrades(ctx context.Context, ticker string, limit int) ([]types.Trade, error) {
	var rows []TradeModel
	q := s.db.WithContext(ctx).Order("trade_time DESC, id DESC").Limit(clampLimit(limit))
	if ticker != "" {
		q = q.Where("ticker = ?", ticker)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toTrade())
	}
	return out, nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

func mustJSONBytes(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return b
}
