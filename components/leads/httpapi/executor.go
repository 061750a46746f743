package httpapi

import (
	"context"
	"fmt"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/queries"
)

// Executor is the transport-neutral surface shared by the net/http handlers and the go-router
// registration. *Handlers implements it.
type Executor interface {
	Load(ctx context.Context, input commands.LoadCollectionInput) error
	Select(ctx context.Context, input commands.SelectRowsInput) error
	Annotate(ctx context.Context, input commands.AnnotateInput) error
	Tag(ctx context.Context, input commands.TagInput) error
	Submit(ctx context.Context, input commands.SubmitInput) (leads.SubmitResult, error)
	Create(ctx context.Context, input commands.CreateEntityInput) (leads.MutationResult, error)
	Delete(ctx context.Context, input commands.DeleteEntityInput) (leads.MutationResult, error)

	State(ctx context.Context, collection string) (leads.State[[]leads.Row], error)
	Table(ctx context.Context, collection string) (leads.TableView, error)
	Overview(ctx context.Context) (leads.Overview, error)
	Funnel(ctx context.Context, input queries.FunnelInput) (charts.FunnelReport, error)
	Chart(ctx context.Context, input queries.ChartInput) (queries.ChartOutput, error)
}

var _ Executor = (*Handlers)(nil)

func (h *Handlers) Load(ctx context.Context, input commands.LoadCollectionInput) error {
	if h.Loader == nil {
		return notConfigured("load")
	}
	return h.Loader.Execute(ctx, input)
}

func (h *Handlers) Select(ctx context.Context, input commands.SelectRowsInput) error {
	if h.Selector == nil {
		return notConfigured("select")
	}
	return h.Selector.Execute(ctx, input)
}

func (h *Handlers) Annotate(ctx context.Context, input commands.AnnotateInput) error {
	if h.Annotator == nil {
		return notConfigured("annotate")
	}
	return h.Annotator.Execute(ctx, input)
}

func (h *Handlers) Tag(ctx context.Context, input commands.TagInput) error {
	if h.Tagger == nil {
		return notConfigured("tag")
	}
	return h.Tagger.Execute(ctx, input)
}

// Submit runs the submit command and returns the result it reports.
func (h *Handlers) Submit(ctx context.Context, input commands.SubmitInput) (leads.SubmitResult, error) {
	if h.Submitter == nil {
		return leads.SubmitResult{}, notConfigured("submit")
	}
	var result leads.SubmitResult
	input.Result = &result
	if err := h.Submitter.Execute(ctx, input); err != nil {
		return leads.SubmitResult{}, err
	}
	return result, nil
}

func (h *Handlers) Create(ctx context.Context, input commands.CreateEntityInput) (leads.MutationResult, error) {
	if h.Creator == nil {
		return leads.MutationResult{}, notConfigured("create")
	}
	var result leads.MutationResult
	input.Result = &result
	if err := h.Creator.Execute(ctx, input); err != nil {
		return leads.MutationResult{}, err
	}
	return result, nil
}

func (h *Handlers) Delete(ctx context.Context, input commands.DeleteEntityInput) (leads.MutationResult, error) {
	if h.Deleter == nil {
		return leads.MutationResult{}, notConfigured("delete")
	}
	var result leads.MutationResult
	input.Result = &result
	if err := h.Deleter.Execute(ctx, input); err != nil {
		return leads.MutationResult{}, err
	}
	return result, nil
}

func (h *Handlers) State(ctx context.Context, collection string) (leads.State[[]leads.Row], error) {
	if h.StateQuery == nil {
		return leads.State[[]leads.Row]{}, notConfigured("state")
	}
	return h.StateQuery.Query(ctx, queries.CollectionInput{Collection: collection})
}

func (h *Handlers) Table(ctx context.Context, collection string) (leads.TableView, error) {
	if h.TableQuery == nil {
		return leads.TableView{}, notConfigured("table")
	}
	return h.TableQuery.Query(ctx, queries.CollectionInput{Collection: collection})
}

func (h *Handlers) Overview(ctx context.Context) (leads.Overview, error) {
	if h.OverviewQuery == nil {
		return leads.Overview{}, notConfigured("overview")
	}
	return h.OverviewQuery.Query(ctx, queries.OverviewInput{})
}

func (h *Handlers) Funnel(ctx context.Context, input queries.FunnelInput) (charts.FunnelReport, error) {
	if h.FunnelQuery == nil {
		return charts.FunnelReport{}, notConfigured("funnel")
	}
	return h.FunnelQuery.Query(ctx, input)
}

func (h *Handlers) Chart(ctx context.Context, input queries.ChartInput) (queries.ChartOutput, error) {
	if h.ChartQuery == nil {
		return queries.ChartOutput{}, notConfigured("chart")
	}
	return h.ChartQuery.Query(ctx, input)
}

func notConfigured(op string) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, op)
}
