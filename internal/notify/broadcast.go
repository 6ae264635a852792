package notify

import (
	"context"

	"stockwatch/internal/models"
)

// Recipient addresses a single (id, channel) pair.
type Recipient struct {
	ID      string
	Channel string
}

// UserTarget carries a user's per-channel targets and opt-in preferences,
// as produced by models.User.ChannelTargets / ChannelPreferences.
type UserTarget struct {
	Targets     map[string]string
	Preferences map[string]bool
}

// Broadcaster fans a single message out to many recipients over the bus.
// No ordering is guaranteed across recipients.
type Broadcaster struct {
	Bus Publisher
}

// SendToRecipients publishes one envelope per recipient.
func (b *Broadcaster) SendToRecipients(ctx context.Context, recipients []Recipient, text string) int {
	if b == nil || b.Bus == nil {
		return 0
	}
	sent := 0
	for _, r := range recipients {
		if r.ID == "" || r.Channel == "" {
			continue
		}
		b.Bus.Publish(ctx, envelopeFor(r.Channel, r.ID, text))
		sent++
	}
	return sent
}

// SendToUsers publishes to every channel a user has both opted into and
// configured a target for.
func (b *Broadcaster) SendToUsers(ctx context.Context, users []UserTarget, text string) int {
	if b == nil || b.Bus == nil {
		return 0
	}
	sent := 0
	for _, u := range users {
		for channel, target := range u.Targets {
			if target == "" || !u.Preferences[channel] {
				continue
			}
			b.Bus.Publish(ctx, envelopeFor(channel, target, text))
			sent++
		}
	}
	return sent
}

func envelopeFor(channel, target, text string) Envelope {
	env := Envelope{ChatID: target, Text: text}
	// Telegram is the default route; only non-telegram envelopes carry the
	// channel hint so the wire schema stays unchanged for existing readers.
	if channel != models.ChannelTelegram {
		env.Channel = channel
	}
	return env
}
