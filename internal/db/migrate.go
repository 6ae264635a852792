package db

import (
	"stockwatch/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.StockMaster{},
		&models.DailyPrice{},
		&models.Disclosure{},
		&models.PriceAlert{},
		&models.SystemConfig{},
		&models.WatchlistItem{},
	)
}
