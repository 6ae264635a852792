package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PriceAlert trigger conditions.
const (
	ConditionGTE = "gte"
	ConditionLTE = "lte"

	ChangeUp   = "up"
	ChangeDown = "down"
)

// ErrNoTrigger rejects alerts with no trigger field populated.
var ErrNoTrigger = errors.New("price alert needs a target price, a change percent or a disclosure subscription")

// PriceAlert carries mutually optional trigger fields. At least one of
// TargetPrice, ChangePercent or NotifyOnDisclosure must be set; Validate
// enforces this at creation time so the evaluator never sees an empty rule.
type PriceAlert struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	UserID uint64 `gorm:"not null;index;comment:사용자 ID"`
	Symbol string `gorm:"type:varchar(6);not null;index:idx_alerts_symbol_active,priority:1;comment:종목코드"`

	TargetPrice *decimal.Decimal `gorm:"type:numeric(20,4);comment:목표가"`
	Condition   string           `gorm:"type:varchar(3);comment:목표가 조건(gte/lte)"`

	ChangePercent *decimal.Decimal `gorm:"type:numeric(8,4);comment:등락률 기준(%)"`
	ChangeType    string           `gorm:"type:varchar(4);comment:등락 방향(up/down)"`

	NotifyOnDisclosure bool `gorm:"not null;default:false;comment:공시 알림 여부"`

	IsActive       bool    `gorm:"not null;default:true;index:idx_alerts_symbol_active,priority:2;comment:활성 여부"`
	RepeatInterval *string `gorm:"type:varchar(20);comment:반복 주기(null이면 1회성)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (PriceAlert) TableName() string {
	return "price_alerts"
}

func (a PriceAlert) Validate() error {
	if a.TargetPrice == nil && a.ChangePercent == nil && !a.NotifyOnDisclosure {
		return ErrNoTrigger
	}
	return nil
}

// OneShot reports whether the alert deactivates after its first trigger.
func (a PriceAlert) OneShot() bool {
	return a.RepeatInterval == nil
}
