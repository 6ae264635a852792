package models

import "time"

// User is created on first contact from an external channel and is never
// deleted by this service.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	TelegramChatID *int64  `gorm:"uniqueIndex;comment:텔레그램 채팅 ID"`
	Email          *string `gorm:"type:varchar(255);uniqueIndex;comment:이메일 주소"`

	NotifyTelegram bool `gorm:"not null;default:true;comment:텔레그램 알림 수신 여부"`
	NotifyEmail    bool `gorm:"not null;default:false;comment:이메일 알림 수신 여부"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

// ChannelTargets maps channel name to the recipient identifier for that
// channel; channels without a target are absent from the map.
func (u User) ChannelTargets() map[string]string {
	targets := map[string]string{}
	if u.TelegramChatID != nil {
		targets[ChannelTelegram] = formatInt64(*u.TelegramChatID)
	}
	if u.Email != nil && *u.Email != "" {
		targets[ChannelEmail] = *u.Email
	}
	return targets
}

// ChannelPreferences maps channel name to the user's opt-in flag.
func (u User) ChannelPreferences() map[string]bool {
	return map[string]bool{
		ChannelTelegram: u.NotifyTelegram,
		ChannelEmail:    u.NotifyEmail,
	}
}
