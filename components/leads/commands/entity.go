package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

type entityService interface {
	Create(ctx context.Context, entity string, payload map[string]any) (leads.MutationResult, error)
	Delete(ctx context.Context, entity, id string) (leads.MutationResult, error)
}

// CreateEntityInput captures a create form submission.
type CreateEntityInput struct {
	Entity  string         `json:"entity"`
	Payload map[string]any `json:"payload"`
	// Reload refetches the entity's collection after a successful create.
	Reload bool `json:"reload,omitempty"`
	Actor
	Result *leads.MutationResult `json:"-"`
}

// DeleteEntityInput identifies the entity to remove.
type DeleteEntityInput struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reload bool   `json:"reload,omitempty"`
	Actor
	Result *leads.MutationResult `json:"-"`
}

type collectionLoader interface {
	Load(ctx context.Context, name string) (leads.State[[]leads.Row], error)
}

// CreateEntityCommand wraps Mutator.Create.
type CreateEntityCommand struct {
	service   entityService
	loader    collectionLoader
	telemetry Telemetry
}

// NewCreateEntityCommand creates the command. loader may be nil when callers never reload.
func NewCreateEntityCommand(service entityService, loader collectionLoader, telemetry Telemetry) *CreateEntityCommand {
	return &CreateEntityCommand{service: service, loader: loader, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[CreateEntityInput] = (*CreateEntityCommand)(nil)

// Execute validates and posts the payload.
func (c *CreateEntityCommand) Execute(ctx context.Context, msg CreateEntityInput) error {
	if c.service == nil {
		return errors.New("create command requires a mutator")
	}
	ctx = msg.Actor.attach(ctx)
	result, err := c.service.Create(ctx, msg.Entity, msg.Payload)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	c.telemetry.Record(ctx, "leads.command.create", map[string]any{"entity": msg.Entity})
	return reloadAfter(ctx, c.loader, msg.Entity, msg.Reload)
}

// DeleteEntityCommand wraps Mutator.Delete.
type DeleteEntityCommand struct {
	service   entityService
	loader    collectionLoader
	telemetry Telemetry
}

// NewDeleteEntityCommand creates the command.
func NewDeleteEntityCommand(service entityService, loader collectionLoader, telemetry Telemetry) *DeleteEntityCommand {
	return &DeleteEntityCommand{service: service, loader: loader, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[DeleteEntityInput] = (*DeleteEntityCommand)(nil)

// Execute deletes the entity.
func (c *DeleteEntityCommand) Execute(ctx context.Context, msg DeleteEntityInput) error {
	if c.service == nil {
		return errors.New("delete command requires a mutator")
	}
	ctx = msg.Actor.attach(ctx)
	result, err := c.service.Delete(ctx, msg.Entity, msg.ID)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	c.telemetry.Record(ctx, "leads.command.delete", map[string]any{"entity": msg.Entity, "id": msg.ID})
	return reloadAfter(ctx, c.loader, msg.Entity, msg.Reload)
}

func reloadAfter(ctx context.Context, loader collectionLoader, name string, reload bool) error {
	if !reload || loader == nil {
		return nil
	}
	if _, err := loader.Load(ctx, name); err != nil && !errors.Is(err, leads.ErrSuperseded) {
		return err
	}
	return nil
}
