package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyPrice is one OHLCV row per (symbol, trade date). The two most recent
// rows drive current price and prior close for alert evaluation.
type DailyPrice struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Symbol    string    `gorm:"type:varchar(6);not null;uniqueIndex:uniq_daily_price,priority:1;comment:종목코드"`
	TradeDate time.Time `gorm:"type:date;not null;uniqueIndex:uniq_daily_price,priority:2;comment:거래일"`

	Open   decimal.Decimal `gorm:"type:numeric(20,4);not null;comment:시가"`
	High   decimal.Decimal `gorm:"type:numeric(20,4);not null;comment:고가"`
	Low    decimal.Decimal `gorm:"type:numeric(20,4);not null;comment:저가"`
	Close  decimal.Decimal `gorm:"type:numeric(20,4);not null;comment:종가"`
	Volume int64           `gorm:"not null;comment:거래량"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (DailyPrice) TableName() string {
	return "daily_prices"
}
