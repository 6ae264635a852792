package notify

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stockwatch/internal/config"
)

// Publisher is the bus surface the worker jobs depend on. Publication is
// fire-and-forget: transport errors are logged, never propagated.
type Publisher interface {
	Publish(ctx context.Context, env Envelope)
}

// Bus carries notification envelopes over a Redis pub/sub topic.
type Bus struct {
	client *redis.Client
	logger *zap.Logger
}

// NewBus connects to Redis. A missing host disables the bus: Publish
// becomes a logged no-op and Subscribe fails.
func NewBus(cfg config.RedisConfig, logger *zap.Logger) *Bus {
	if cfg.Host == "" {
		return &Bus{logger: logger}
	}
	client := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	})
	return &Bus{client: client, logger: logger}
}

func (b *Bus) Enabled() bool {
	return b != nil && b.client != nil
}

func (b *Bus) Publish(ctx context.Context, env Envelope) {
	if !b.Enabled() {
		if b != nil && b.logger != nil {
			b.logger.Debug("bus disabled, dropping notification", zap.String("text", env.Text))
		}
		return
	}
	raw, err := env.Marshal()
	if err != nil {
		b.logger.Error("failed to marshal envelope", zap.Error(err))
		return
	}
	if err := b.client.Publish(ctx, TopicNotifications, raw).Err(); err != nil {
		b.logger.Error("bus publish failed", zap.Error(err))
	}
}

// Subscription wraps a Redis pub/sub subscription on the notification topic.
type Subscription struct {
	pubsub *redis.PubSub
}

func (b *Bus) Subscribe(ctx context.Context) (*Subscription, error) {
	if !b.Enabled() {
		return nil, fmt.Errorf("bus disabled: no redis host configured")
	}
	pubsub := b.client.Subscribe(ctx, TopicNotifications)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}
	if b.logger != nil {
		b.logger.Info("subscribed to notification topic", zap.String("topic", TopicNotifications))
	}
	return &Subscription{pubsub: pubsub}, nil
}

func (s *Subscription) Receive(ctx context.Context) (*redis.Message, error) {
	return s.pubsub.ReceiveMessage(ctx)
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

func (b *Bus) Close() error {
	if b == nil || b.client == nil {
		return nil
	}
	return b.client.Close()
}
