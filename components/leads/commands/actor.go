package commands

import (
	"context"

	"github.com/goliatone/go-leadboard/pkg/activity"
)

// Actor identifies who issued a command. Empty fields fall back to whatever the context holds.
type Actor struct {
	ActorID  string `json:"actor_id,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	TenantID string `json:"tenant_id,omitempty"`
}

func (a Actor) attach(ctx context.Context) context.Context {
	if a == (Actor{}) {
		return ctx
	}
	current := activity.FromContext(ctx)
	if a.ActorID == "" {
		a.ActorID = current.ActorID
	}
	if a.UserID == "" {
		a.UserID = current.UserID
	}
	if a.TenantID == "" {
		a.TenantID = current.TenantID
	}
	return activity.WithActor(ctx, activity.Actor{ActorID: a.ActorID, UserID: a.UserID, TenantID: a.TenantID})
}
