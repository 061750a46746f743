package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

// LoadCollectionInput names the collection to fetch. An empty Collection loads every one.
type LoadCollectionInput struct {
	Collection string `json:"collection"`
}

type loadService interface {
	Load(ctx context.Context, name string) (leads.State[[]leads.Row], error)
	LoadAll(ctx context.Context) error
	PageInsights() *leads.Store[leads.PageInsights]
}

// LoadCollectionCommand triggers store loads. Outcomes land in the stores themselves; the
// returned error only tells the caller the load failed.
type LoadCollectionCommand struct {
	state     loadService
	telemetry Telemetry
}

// NewLoadCollectionCommand creates the command.
func NewLoadCollectionCommand(state loadService, telemetry Telemetry) *LoadCollectionCommand {
	return &LoadCollectionCommand{state: state, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[LoadCollectionInput] = (*LoadCollectionCommand)(nil)

// Execute loads the requested store.
func (c *LoadCollectionCommand) Execute(ctx context.Context, msg LoadCollectionInput) error {
	if c.state == nil {
		return errors.New("load command requires app state")
	}
	var err error
	switch msg.Collection {
	case "":
		err = c.state.LoadAll(ctx)
	case leads.StorePageInsight:
		insights := c.state.PageInsights()
		if insights == nil {
			return leads.NewValidationError("page insights are not configured")
		}
		_, err = insights.Load(ctx)
	default:
		_, err = c.state.Load(ctx, msg.Collection)
	}
	if errors.Is(err, leads.ErrSuperseded) {
		err = nil
	}
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "leads.command.load", map[string]any{
		"collection": msg.Collection,
	})
	return nil
}
