package notify

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/models"
)

// Listener is the single consumer of the notification topic: it blocks on
// the subscription, parses envelopes and dispatches them to the channel
// registry. Per-message failures are logged and the loop continues; a
// transport error backs off briefly before resubscribing reads.
type Listener struct {
	Bus      *Bus
	Registry *Registry
	Logger   *zap.Logger

	// Backoff after a transport-level receive error.
	Backoff time.Duration
}

func (l *Listener) Run(ctx context.Context) error {
	if l == nil || l.Bus == nil || l.Registry == nil {
		return errors.New("listener not configured")
	}
	backoff := l.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	sub, err := l.Bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		msg, err := sub.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if l.Logger != nil {
				l.Logger.Warn("bus receive failed", zap.Error(err))
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			continue
		}
		l.handle(msg.Payload)
	}
}

func (l *Listener) handle(payload string) {
	env, err := ParseEnvelope([]byte(payload))
	if err != nil {
		if l.Logger != nil {
			l.Logger.Warn("bad notification envelope", zap.Error(err))
		}
		return
	}
	channel := env.Channel
	if channel == "" {
		channel = models.ChannelTelegram
	}

	opts := SendOptions{}
	if channel == models.ChannelEmail {
		opts.Template = "notification"
	}
	if ok := l.Registry.Dispatch(channel, env.Recipient(), env.Text, opts); !ok {
		if l.Logger != nil {
			l.Logger.Warn("notification dispatch failed",
				zap.String("channel", channel),
				zap.String("recipient", env.Recipient()),
			)
		}
	}
}
