package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

// SubmitInput sends a collection's pending annotations. Result receives the outcome when set.
type SubmitInput struct {
	Collection string `json:"collection"`
	Endpoint   string `json:"endpoint,omitempty"`
	Reload     bool   `json:"reload,omitempty"`
	Actor
	Result *leads.SubmitResult `json:"-"`
}

type submitService interface {
	Submit(ctx context.Context, name, endpoint string, reload bool) (leads.SubmitResult, error)
}

// SubmitAnnotationsCommand wraps Workspace.Submit.
type SubmitAnnotationsCommand struct {
	service   submitService
	telemetry Telemetry
}

// NewSubmitAnnotationsCommand creates the command.
func NewSubmitAnnotationsCommand(service submitService, telemetry Telemetry) *SubmitAnnotationsCommand {
	return &SubmitAnnotationsCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SubmitInput] = (*SubmitAnnotationsCommand)(nil)

// Execute issues the bulk PATCH.
func (c *SubmitAnnotationsCommand) Execute(ctx context.Context, msg SubmitInput) error {
	if c.service == nil {
		return errors.New("submit command requires a workspace")
	}
	if msg.Collection == "" {
		return leads.NewValidationError("collection is required")
	}
	ctx = msg.Actor.attach(ctx)
	result, err := c.service.Submit(ctx, msg.Collection, msg.Endpoint, msg.Reload)
	if err != nil {
		return err
	}
	if msg.Result != nil {
		*msg.Result = result
	}
	c.telemetry.Record(ctx, "leads.command.submit", map[string]any{
		"collection": msg.Collection,
		"rows":       len(result.IDs),
	})
	return nil
}
