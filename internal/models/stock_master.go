package models

import "time"

// StockMaster is refreshed daily from the KRX registry feed. Rows are
// upserted and flagged, never hard-deleted.
type StockMaster struct {
	Symbol     string `gorm:"primaryKey;type:varchar(6);comment:종목코드"`
	Name       string `gorm:"type:varchar(120);not null;index;comment:종목명"`
	Market     string `gorm:"type:varchar(20);not null;comment:시장구분"`
	CorpCode   string `gorm:"type:varchar(8);index;comment:DART 고유번호"`
	IsDelisted bool   `gorm:"not null;default:false;comment:상장폐지 여부"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (StockMaster) TableName() string {
	return "stock_masters"
}
