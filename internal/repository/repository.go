package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"stockwatch/internal/models"
)

// ErrNotFound is returned by lookups that target a single row.
var ErrNotFound = errors.New("not found")

// Repository is the persistence surface shared by the worker jobs and the
// control API. Writes that must commit together run inside InTx; the
// evaluator commits per symbol and the poller commits inserts and the
// watermark in one transaction.
type Repository interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error

	// Users
	GetUserByID(ctx context.Context, id uint64) (*models.User, error)
	ListUsersByIDs(ctx context.Context, ids []uint64) ([]models.User, error)

	// Stock master
	UpsertStockMastersTx(ctx context.Context, tx *gorm.DB, items []models.StockMaster) error
	ListStockMastersBySymbols(ctx context.Context, symbols []string) ([]models.StockMaster, error)

	// Daily prices
	UpsertDailyPricesTx(ctx context.Context, tx *gorm.DB, items []models.DailyPrice) error
	ListRecentDailyPrices(ctx context.Context, symbol string, limit int) ([]models.DailyPrice, error)

	// Disclosures
	ListExistingReceiptNos(ctx context.Context, receiptNos []string) ([]string, error)
	InsertDisclosuresTx(ctx context.Context, tx *gorm.DB, items []models.Disclosure) error

	// Price alerts
	CreatePriceAlert(ctx context.Context, item *models.PriceAlert) error
	ListActivePriceAlerts(ctx context.Context) ([]models.PriceAlert, error)
	ListDisclosureSubscribers(ctx context.Context, symbol string) ([]models.PriceAlert, error)
	DeactivatePriceAlertTx(ctx context.Context, tx *gorm.DB, id uint64) error

	// System config
	GetSystemConfig(ctx context.Context, key string) (*models.SystemConfig, error)
	SaveSystemConfigTx(ctx context.Context, tx *gorm.DB, key, value string) error

	// Watchlists + alerts drive which symbols the price refresher fetches.
	ListReferencedSymbols(ctx context.Context) ([]string, error)
}
