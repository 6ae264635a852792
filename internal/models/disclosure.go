package models

import (
	"time"

	"gorm.io/datatypes"
)

// Disclosure is a regulatory filing. Receipt numbers are globally unique;
// the poller inserts each row exactly once and never updates it.
type Disclosure struct {
	ReceiptNo string  `gorm:"primaryKey;type:varchar(14);comment:접수번호"`
	Symbol    *string `gorm:"type:varchar(6);index;comment:종목코드"`
	CorpCode  string  `gorm:"type:varchar(8);not null;index;comment:DART 고유번호"`
	CorpName  string  `gorm:"type:varchar(120);not null;comment:회사명"`
	Title     string  `gorm:"type:text;not null;comment:보고서명"`
	Type      string  `gorm:"type:varchar(120);comment:공시유형"`

	DisclosedAt time.Time `gorm:"type:timestamptz;not null;index;comment:공시일시"`
	SourceURL   string    `gorm:"type:text;comment:원문 URL"`

	// Raw keeps the source feed row as received, for audit and reprocessing.
	Raw datatypes.JSON `gorm:"comment:원본 데이터"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (Disclosure) TableName() string {
	return "disclosures"
}
