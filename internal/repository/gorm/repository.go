package gormrepository

import (
	"context"
	"errors"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"stockwatch/internal/models"
	"stockwatch/internal/repository"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

// --- users -------------------------------------------------------------------

func (s *Store) GetUserByID(ctx context.Context, id uint64) (*models.User, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.User
	err := s.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) ListUsersByIDs(ctx context.Context, ids []uint64) ([]models.User, error) {
	if s == nil || s.db == nil || len(ids) == 0 {
		return nil, nil
	}
	var items []models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- stock master ------------------------------------------------------------

func (s *Store) UpsertStockMastersTx(ctx context.Context, tx *gorm.DB, items []models.StockMaster) error {
	if len(items) == 0 {
		return nil
	}
	db := s.txOrDB(ctx, tx)
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name",
			"market",
			"corp_code",
			"is_delisted",
			"updated_at",
		}),
	}).CreateInBatches(items, 500).Error
}

func (s *Store) ListStockMastersBySymbols(ctx context.Context, symbols []string) ([]models.StockMaster, error) {
	if s == nil || s.db == nil || len(symbols) == 0 {
		return nil, nil
	}
	var items []models.StockMaster
	if err := s.db.WithContext(ctx).Where("symbol IN ?", symbols).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// --- daily prices ------------------------------------------------------------

func (s *Store) UpsertDailyPricesTx(ctx context.Context, tx *gorm.DB, items []models.DailyPrice) error {
	if len(items) == 0 {
		return nil
	}
	db := s.txOrDB(ctx, tx)
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "trade_date"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"open",
			"high",
			"low",
			"close",
			"volume",
			"updated_at",
		}),
	}).CreateInBatches(items, 500).Error
}

func (s *Store) ListRecentDailyPrices(ctx context.Context, symbol string, limit int) ([]models.DailyPrice, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 2
	}
	var items []models.DailyPrice
	err := s.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("trade_date DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// --- disclosures -------------------------------------------------------------

func (s *Store) ListExistingReceiptNos(ctx context.Context, receiptNos []string) ([]string, error) {
	if s == nil || s.db == nil || len(receiptNos) == 0 {
		return nil, nil
	}
	var existing []string
	err := s.db.WithContext(ctx).
		Model(&models.Disclosure{}).
		Where("receipt_no IN ?", receiptNos).
		Pluck("receipt_no", &existing).Error
	if err != nil {
		return nil, err
	}
	return existing, nil
}

// InsertDisclosuresTx skips rows whose receipt number already exists so a
// single duplicate never aborts the batch.
func (s *Store) InsertDisclosuresTx(ctx context.Context, tx *gorm.DB, items []models.Disclosure) error {
	if len(items) == 0 {
		return nil
	}
	db := s.txOrDB(ctx, tx)
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "receipt_no"}},
		DoNothing: true,
	}).CreateInBatches(items, 500).Error
}

// --- price alerts ------------------------------------------------------------

func (s *Store) CreatePriceAlert(ctx context.Context, item *models.PriceAlert) error {
	if s == nil || s.db == nil || item == nil {
		return nil
	}
	if err := item.Validate(); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Create(item).Error
}

func (s *Store) ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PriceAlert
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("symbol, id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListDisclosureSubscribers(ctx context.Context, symbol string) ([]models.PriceAlert, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var items []models.PriceAlert
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND notify_on_disclosure = ? AND is_active = ?", symbol, true, true).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) DeactivatePriceAlertTx(ctx context.Context, tx *gorm.DB, id uint64) error {
	db := s.txOrDB(ctx, tx)
	res := db.Model(&models.PriceAlert{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// --- system config -----------------------------------------------------------

func (s *Store) GetSystemConfig(ctx context.Context, key string) (*models.SystemConfig, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var item models.SystemConfig
	err := s.db.WithContext(ctx).First(&item, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) SaveSystemConfigTx(ctx context.Context, tx *gorm.DB, key, value string) error {
	db := s.txOrDB(ctx, tx)
	item := models.SystemConfig{Key: key, Value: value}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
}

// --- referenced symbols ------------------------------------------------------

func (s *Store) ListReferencedSymbols(ctx context.Context) ([]string, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}
	var watched []string
	if err := s.db.WithContext(ctx).
		Model(&models.WatchlistItem{}).
		Distinct().
		Pluck("symbol", &watched).Error; err != nil {
		return nil, err
	}
	var alerted []string
	if err := s.db.WithContext(ctx).
		Model(&models.PriceAlert{}).
		Where("is_active = ?", true).
		Distinct().
		Pluck("symbol", &alerted).Error; err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(watched)+len(alerted))
	for _, sym := range append(watched, alerted...) {
		sym = strings.TrimSpace(sym)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) txOrDB(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db.WithContext(ctx)
}
