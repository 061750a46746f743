package queries

import (
	"context"
	"fmt"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
)

// FunnelInput selects the collection and, optionally, a field and stages other than the
// configured funnel.
type FunnelInput struct {
	Collection string   `json:"collection"`
	Field      string   `json:"field,omitempty"`
	Stages     []string `json:"stages,omitempty"`
}

type funnelSource interface {
	collectionSource
	Config() leads.Config
}

// FunnelQuery computes the lead funnel over a loaded collection.
type FunnelQuery struct {
	state funnelSource
}

// NewFunnelQuery builds the query.
func NewFunnelQuery(state funnelSource) *FunnelQuery {
	return &FunnelQuery{state: state}
}

var _ gocommand.Querier[FunnelInput, charts.FunnelReport] = (*FunnelQuery)(nil)

// Query counts the collection's rows per stage.
func (q *FunnelQuery) Query(_ context.Context, input FunnelInput) (charts.FunnelReport, error) {
	rows, field, stages, err := q.resolve(input)
	if err != nil {
		return charts.FunnelReport{}, err
	}
	return charts.BuildFunnel(rows, field, stages), nil
}

func (q *FunnelQuery) resolve(input FunnelInput) ([]leads.Row, string, []string, error) {
	store, ok := q.state.Collection(input.Collection)
	if !ok {
		return nil, "", nil, leads.NewValidationError(fmt.Sprintf("unknown collection %q", input.Collection))
	}
	funnel := q.state.Config().Funnel
	field := strings.TrimSpace(input.Field)
	if field == "" {
		field = funnel.Field
	}
	stages := input.Stages
	if len(stages) == 0 {
		stages = funnel.Stages
	}
	if field == "" || len(stages) == 0 {
		return nil, "", nil, leads.NewValidationError("funnel field and stages are required")
	}
	return store.Snapshot().Data, field, stages, nil
}

// ChartKind selects the chart rendered by ChartQuery.
type ChartKind string

const (
	ChartFunnel ChartKind = "funnel"
	ChartBar    ChartKind = "bar"
	ChartPie    ChartKind = "pie"
)

// ChartInput describes a chart over one collection. Bar and pie charts count rows by Field.
type ChartInput struct {
	FunnelInput
	Kind  ChartKind `json:"kind"`
	Title string    `json:"title,omitempty"`
}

// ChartOutput carries the rendered chart fragment.
type ChartOutput struct {
	Kind ChartKind `json:"kind"`
	HTML string    `json:"html"`
}

// ChartQuery renders collection charts through the chart builder.
type ChartQuery struct {
	funnel  *FunnelQuery
	builder *charts.Builder
}

// NewChartQuery builds the query. A nil builder uses charts.NewBuilder defaults.
func NewChartQuery(state funnelSource, builder *charts.Builder) *ChartQuery {
	if builder == nil {
		builder = charts.NewBuilder()
	}
	return &ChartQuery{funnel: NewFunnelQuery(state), builder: builder}
}

var _ gocommand.Querier[ChartInput, ChartOutput] = (*ChartQuery)(nil)

func (q *ChartQuery) Query(ctx context.Context, input ChartInput) (ChartOutput, error) {
	kind := input.Kind
	if kind == "" {
		kind = ChartFunnel
	}
	title := input.Title
	if title == "" {
		title = leads.ColumnLabel(input.Collection)
	}
	var (
		html string
		err  error
	)
	switch kind {
	case ChartFunnel:
		report, qerr := q.funnel.Query(ctx, input.FunnelInput)
		if qerr != nil {
			return ChartOutput{}, qerr
		}
		html, err = q.builder.Funnel(title, report)
	case ChartBar, ChartPie:
		rows, field, _, rerr := q.funnel.resolve(FunnelInput{Collection: input.Collection, Field: input.Field, Stages: []string{"*"}})
		if rerr != nil {
			return ChartOutput{}, rerr
		}
		counts := leads.CountBy(leads.NormalizeRows(rows), field)
		if kind == ChartBar {
			html, err = q.builder.Bar(title, counts)
		} else {
			html, err = q.builder.Pie(title, counts)
		}
	default:
		return ChartOutput{}, leads.NewValidationError(fmt.Sprintf("unknown chart kind %q", kind))
	}
	if err != nil {
		return ChartOutput{}, err
	}
	return ChartOutput{Kind: kind, HTML: html}, nil
}
