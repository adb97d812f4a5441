// Package sqlstore records balance changes in SQLite through gorm.
package sqlstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/pnltrack/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is a SQL-backed change recorder and history loader.
type Store struct {
	db *gorm.DB
}

// NewStore opens the SQLite database at path and migrates the schema.
func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("sqlite path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create sqlite dir")
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	return NewStoreFromDB(db)
}

// NewStoreFromDB wraps an existing connection and migrates the schema.
func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&balanceChangeModel{}); err != nil {
		return nil, errors.Wrap(err, "migrate balance changes")
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &Store{db: db}, nil
}

// Save inserts the change.
func (s *Store) Save(change domain.ProfitLossBalanceChange) error {
	row := toModel(change)
	if err := s.db.Create(&row).Error; err != nil {
		return errors.Wrapf(err, "insert balance change %s", change.ID)
	}
	return nil
}

// LoadSince returns changes dated at or after since in insertion order.
func (s *Store) LoadSince(since time.Time) ([]domain.ProfitLossBalanceChange, error) {
	var rows []balanceChangeModel
	err := s.db.
		Where("change_date >= ?", since.UTC().UnixNano()).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select balance changes")
	}

	return fromModels(rows)
}

// ByTradePlace returns changes of one trade place dated at or after since.
func (s *Store) ByTradePlace(ctx context.Context, tp domain.TradePlaceAccount, since time.Time) ([]domain.ProfitLossBalanceChange, error) {
	var rows []balanceChangeModel
	err := s.db.WithContext(ctx).
		Where("exchange_account_id = ? AND currency_pair = ? AND change_date >= ?",
			tp.ExchangeAccountID, tp.CurrencyPair.String(), since.UTC().UnixNano()).
		Order("seq").
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "select trade place balance changes")
	}

	return fromModels(rows)
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(change domain.ProfitLossBalanceChange) balanceChangeModel {
	return balanceChangeModel{
		ChangeID:                change.ID.String(),
		ServiceName:             change.Configuration.ServiceName,
		ServiceConfigurationKey: change.Configuration.ServiceConfigurationKey,
		ExchangeAccountID:       change.ExchangeAccountID,
		CurrencyPair:            change.CurrencyPair.String(),
		CurrencyCode:            change.CurrencyCode,
		ClientOrderFillID:       change.ClientOrderFillID,
		ChangeDateUnixNano:      change.ChangeDate.UTC().UnixNano(),
		BalanceChange:           change.BalanceChange.String(),
		UsdBalanceChange:        change.UsdBalanceChange.String(),
	}
}

func fromModels(rows []balanceChangeModel) ([]domain.ProfitLossBalanceChange, error) {
	changes := make([]domain.ProfitLossBalanceChange, 0, len(rows))
	for _, row := range rows {
		change, err := fromModel(row)
		if err != nil {
			return nil, errors.Wrapf(err, "decode balance change row %d", row.Seq)
		}
		changes = append(changes, change)
	}
	return changes, nil
}

func fromModel(row balanceChangeModel) (domain.ProfitLossBalanceChange, error) {
	id, err := uuid.Parse(row.ChangeID)
	if err != nil {
		return domain.ProfitLossBalanceChange{}, err
	}
	pair, err := domain.ParseCurrencyPair(row.CurrencyPair)
	if err != nil {
		return domain.ProfitLossBalanceChange{}, err
	}
	balanceChange, err := decimal.NewFromString(row.BalanceChange)
	if err != nil {
		return domain.ProfitLossBalanceChange{}, err
	}
	usdBalanceChange, err := decimal.NewFromString(row.UsdBalanceChange)
	if err != nil {
		return domain.ProfitLossBalanceChange{}, err
	}

	return domain.ProfitLossBalanceChange{
		ID:                id,
		Configuration:     domain.NewConfigurationDescriptor(row.ServiceName, row.ServiceConfigurationKey),
		ExchangeAccountID: row.ExchangeAccountID,
		CurrencyPair:      pair,
		CurrencyCode:      row.CurrencyCode,
		ClientOrderFillID: row.ClientOrderFillID,
		ChangeDate:        time.Unix(0, row.ChangeDateUnixNano).UTC(),
		BalanceChange:     balanceChange,
		UsdBalanceChange:  usdBalanceChange,
	}, nil
}
