package queries

import (
	"context"
	"fmt"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
)

// CollectionInput names a collection store.
type CollectionInput struct {
	Collection string `json:"collection"`
}

type collectionSource interface {
	Collection(name string) (*leads.Store[[]leads.Row], bool)
}

// CollectionStateQuery reads a store's fetch state without loading it.
type CollectionStateQuery struct {
	state collectionSource
}

// NewCollectionStateQuery builds the query.
func NewCollectionStateQuery(state collectionSource) *CollectionStateQuery {
	return &CollectionStateQuery{state: state}
}

var _ gocommand.Querier[CollectionInput, leads.State[[]leads.Row]] = (*CollectionStateQuery)(nil)

// Query returns the current snapshot.
func (q *CollectionStateQuery) Query(_ context.Context, input CollectionInput) (leads.State[[]leads.Row], error) {
	store, ok := q.state.Collection(input.Collection)
	if !ok {
		return leads.State[[]leads.Row]{}, leads.NewValidationError(fmt.Sprintf("unknown collection %q", input.Collection))
	}
	return store.Snapshot(), nil
}

type tableSource interface {
	Table(name string) (*leads.Table, error)
}

// TableViewQuery renders the table of a collection.
type TableViewQuery struct {
	tables tableSource
}

// NewTableViewQuery builds the query.
func NewTableViewQuery(tables tableSource) *TableViewQuery {
	return &TableViewQuery{tables: tables}
}

var _ gocommand.Querier[CollectionInput, leads.TableView] = (*TableViewQuery)(nil)

// Query returns the render-ready table.
func (q *TableViewQuery) Query(_ context.Context, input CollectionInput) (leads.TableView, error) {
	table, err := q.tables.Table(input.Collection)
	if err != nil {
		return leads.TableView{}, err
	}
	return table.View(), nil
}
