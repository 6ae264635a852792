package models

import "time"

// SystemConfig keys written by this service.
const (
	ConfigKeyLastCheckedRceptNo = "last_checked_rcept_no"
)

// SystemConfig is a single-row-per-key configuration table. The disclosure
// poller's watermark is the only key this service writes; the value is
// monotonically non-decreasing.
type SystemConfig struct {
	Key   string `gorm:"primaryKey;type:varchar(120);comment:설정 키"`
	Value string `gorm:"type:text;not null;comment:설정 값"`

	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (SystemConfig) TableName() string {
	return "system_configs"
}
