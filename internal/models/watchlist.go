package models

import "time"

// WatchlistItem is a pure membership relation: a user follows a symbol.
// Symbols on any watchlist (or with an active alert) are the ones the daily
// price refresher fetches.
type WatchlistItem struct {
	UserID uint64 `gorm:"primaryKey;comment:사용자 ID"`
	Symbol string `gorm:"primaryKey;type:varchar(6);comment:종목코드"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (WatchlistItem) TableName() string {
	return "watchlists"
}
