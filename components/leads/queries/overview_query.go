package queries

import (
	"context"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

// OverviewInput is the empty input of OverviewQuery.
type OverviewInput struct{}

type overviewSource interface {
	Overview() leads.Overview
}

// OverviewQuery summarizes every collection.
type OverviewQuery struct {
	source overviewSource
}

// NewOverviewQuery builds the query.
func NewOverviewQuery(source overviewSource) *OverviewQuery {
	return &OverviewQuery{source: source}
}

var _ gocommand.Querier[OverviewInput, leads.Overview] = (*OverviewQuery)(nil)

func (q *OverviewQuery) Query(context.Context, OverviewInput) (leads.Overview, error) {
	return q.source.Overview(), nil
}
