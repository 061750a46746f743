package activity

import (
	"context"
	"strings"
)

// Config toggles activity emission.
type Config struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Channel string `json:"channel,omitempty" yaml:"channel,omitempty"`
}

// Emitter stamps the configured channel and the actor from ctx onto events.
type Emitter struct {
	hooks   Hooks
	enabled bool
	channel string
}

// NewEmitter returns an emitter that is enabled only when cfg.Enabled and at least one hook
// is present.
func NewEmitter(hooks Hooks, cfg Config) *Emitter {
	channel := strings.TrimSpace(cfg.Channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Emitter{
		hooks:   hooks,
		enabled: cfg.Enabled && len(hooks) > 0,
		channel: channel,
	}
}

// Enabled reports whether Emit delivers anything.
func (e *Emitter) Enabled() bool {
	return e != nil && e.enabled
}

// Emit delivers evt to the hooks.
func (e *Emitter) Emit(ctx context.Context, evt Event) error {
	if !e.Enabled() {
		return nil
	}
	if evt.Channel == "" {
		evt.Channel = e.channel
	}
	actor := FromContext(ctx)
	if evt.ActorID == "" {
		evt.ActorID = actor.ActorID
	}
	if evt.UserID == "" {
		evt.UserID = actor.UserID
	}
	if evt.TenantID == "" {
		evt.TenantID = actor.TenantID
	}
	return e.hooks.Notify(ctx, evt)
}
