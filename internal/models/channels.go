package models

import "strconv"

// Notification channel names. These are the keys of the listener's channel
// registry and must match the names carried in user preferences.
const (
	ChannelTelegram = "telegram"
	ChannelEmail    = "email"
)

func formatInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}
