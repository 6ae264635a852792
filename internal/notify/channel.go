package notify

import (
	"go.uber.org/zap"
)

// SendOptions carries channel-specific delivery options.
type SendOptions struct {
	// Subject is the email subject line; ignored by telegram.
	Subject string
	// Template selects a specialised email body template
	// (e.g. "price_alert"); empty means the generic notification body.
	Template string
}

// Channel is a concrete notification delivery mechanism. Send reports
// success; failures are logged by the implementation and never panic.
type Channel interface {
	Send(recipient, message string, opts SendOptions) bool
}

// Registry maps channel names to implementations. Unknown names are a
// logged no-op, never fatal.
type Registry struct {
	channels map[string]Channel
	logger   *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		channels: map[string]Channel{},
		logger:   logger,
	}
}

func (r *Registry) Register(name string, ch Channel) {
	if r == nil || name == "" || ch == nil {
		return
	}
	r.channels[name] = ch
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

func (r *Registry) Dispatch(channel, recipient, message string, opts SendOptions) bool {
	if r == nil {
		return false
	}
	ch, ok := r.channels[channel]
	if !ok {
		if r.logger != nil {
			r.logger.Warn("unknown notification channel", zap.String("channel", channel))
		}
		return false
	}
	return ch.Send(recipient, message, opts)
}
