package commands

import (
	"context"
	"errors"
	"testing"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/pkg/activity"
)

type stubFetcher struct {
	rows  map[string][]leads.Row
	calls int
}

func (f *stubFetcher) List(_ context.Context, req leads.ListRequest) ([]leads.Row, error) {
	f.calls++
	return f.rows[req.Path], nil
}

func (f *stubFetcher) PageInsights(context.Context, string, string) (leads.PageInsights, error) {
	return leads.PageInsights{PageName: "page"}, nil
}

type stubTelemetry struct {
	events []string
}

func (s *stubTelemetry) Record(_ context.Context, event string, _ map[string]any) {
	s.events = append(s.events, event)
}

type recordingPatcher struct {
	calls   int
	payload any
	actor   activity.Actor
}

func (p *recordingPatcher) Patch(ctx context.Context, _ string, payload any) (leads.MutationResponse, error) {
	p.calls++
	p.payload = payload
	p.actor = activity.FromContext(ctx)
	return leads.MutationResponse{Status: 200}, nil
}

func newWorkspace(t *testing.T, patcher leads.Patcher) (*leads.Workspace, *stubFetcher) {
	t.Helper()
	fetcher := &stubFetcher{rows: map[string][]leads.Row{
		"/api/leads": {{"_id": "a", "name": "Ada"}, {"_id": "b", "name": "Bo"}, {"_id": "c", "name": "Cy"}},
	}}
	state, err := leads.NewAppState(leads.AppStateOptions{
		Config:  leads.DefaultConfig(),
		Fetcher: fetcher,
		Auth:    leads.NewAuthContext(leads.StaticSession{Token: "tok"}),
	})
	if err != nil {
		t.Fatalf("NewAppState returned error: %v", err)
	}
	ws, err := leads.NewWorkspace(leads.WorkspaceOptions{State: state, Patcher: patcher})
	if err != nil {
		t.Fatalf("NewWorkspace returned error: %v", err)
	}
	if _, err := state.Load(context.Background(), leads.StoreLeads); err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	return ws, fetcher
}

func TestLoadCollectionCommand(t *testing.T) {
	ws, fetcher := newWorkspace(t, nil)
	telemetry := &stubTelemetry{}
	cmd := NewLoadCollectionCommand(ws.State(), telemetry)
	before := fetcher.calls

	if err := cmd.Execute(context.Background(), LoadCollectionInput{Collection: leads.StoreLeads}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if fetcher.calls != before+1 {
		t.Fatalf("expected one fetch, got %d", fetcher.calls-before)
	}
	if err := cmd.Execute(context.Background(), LoadCollectionInput{}); err != nil {
		t.Fatalf("load all returned error: %v", err)
	}
	if fetcher.calls != before+1+len(leads.CollectionStores) {
		t.Fatalf("expected every collection to load")
	}
	if err := cmd.Execute(context.Background(), LoadCollectionInput{Collection: leads.StorePageInsight}); err != nil {
		t.Fatalf("insights load returned error: %v", err)
	}
	if got := ws.State().PageInsights().Snapshot().Data.PageName; got != "page" {
		t.Fatalf("expected insights to load, got %q", got)
	}
	if len(telemetry.events) != 3 {
		t.Fatalf("expected 3 telemetry events, got %d", len(telemetry.events))
	}
	if err := cmd.Execute(context.Background(), LoadCollectionInput{Collection: "nope"}); !errors.Is(err, leads.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSelectRowsCommand(t *testing.T) {
	ws, _ := newWorkspace(t, nil)
	cmd := NewSelectRowsCommand(ws)
	ctx := context.Background()

	if err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, IDs: []string{"a", "c"}, Mode: SelectOn}); err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	table, _ := ws.Table(leads.StoreLeads)
	if got := table.Selected(); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("unexpected selection %v", got)
	}
	if err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, IDs: []string{"a"}}); err != nil {
		t.Fatalf("toggle returned error: %v", err)
	}
	if table.IsSelected("a") {
		t.Fatalf("expected toggle to deselect a")
	}
	err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, IDs: []string{"b", "zz"}, Mode: SelectOn})
	if !errors.Is(err, leads.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if table.IsSelected("b") {
		t.Fatalf("unknown id must not partially apply")
	}
	if err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, Mode: SelectAllRows}); err != nil {
		t.Fatalf("select all returned error: %v", err)
	}
	if len(table.Selected()) != 3 {
		t.Fatalf("expected all rows selected")
	}
	if err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, Mode: SelectNoneRows}); err != nil {
		t.Fatalf("select none returned error: %v", err)
	}
	if len(table.Selected()) != 0 {
		t.Fatalf("expected empty selection")
	}
	if err := cmd.Execute(ctx, SelectRowsInput{Collection: leads.StoreLeads, Mode: "sideways", IDs: []string{"a"}}); err == nil {
		t.Fatalf("expected unknown mode error")
	}
}

func TestAnnotateAndTagCommands(t *testing.T) {
	ws, _ := newWorkspace(t, nil)
	ctx := context.Background()
	annotate := NewAnnotateCommand(ws, nil)
	tag := NewTagCommand(ws)

	err := annotate.Execute(ctx, AnnotateInput{Collection: leads.StoreLeads, Remark1: "x"})
	if !errors.Is(err, leads.ErrNoSelection) {
		t.Fatalf("expected no selection error, got %v", err)
	}

	table, _ := ws.Table(leads.StoreLeads)
	_ = table.SetSelected("b", true)
	if err := annotate.Execute(ctx, AnnotateInput{Collection: leads.StoreLeads, Remark1: "called", Remark2: "busy"}); err != nil {
		t.Fatalf("global annotate returned error: %v", err)
	}
	if err := annotate.Execute(ctx, AnnotateInput{Collection: leads.StoreLeads, ID: "c", Remark1: "solo"}); err != nil {
		t.Fatalf("row annotate returned error: %v", err)
	}
	if ann, _ := table.Annotation("b"); ann.Remark1 != "called" || ann.Remark2 != "busy" {
		t.Fatalf("unexpected annotation %+v", ann)
	}
	if ann, _ := table.Annotation("c"); ann.Remark1 != "solo" {
		t.Fatalf("unexpected annotation %+v", ann)
	}

	if err := tag.Execute(ctx, TagInput{Collection: leads.StoreLeads, ID: "b", Text: "hot"}); err != nil {
		t.Fatalf("tag returned error: %v", err)
	}
	if err := tag.Execute(ctx, TagInput{Collection: leads.StoreLeads, Text: "batch"}); err != nil {
		t.Fatalf("global tag returned error: %v", err)
	}
	if ann, _ := table.Annotation("b"); len(ann.Tags) != 1 || ann.Tags[0].Text != "hot" {
		t.Fatalf("unexpected tags %+v", ann.Tags)
	}
	if draft := table.Draft(); len(draft.Tags) != 1 || draft.Tags[0].Text != "batch" {
		t.Fatalf("unexpected draft %+v", draft)
	}
	if err := tag.Execute(ctx, TagInput{Collection: leads.StoreLeads, ID: "b", Remove: true, Index: 0}); err != nil {
		t.Fatalf("remove tag returned error: %v", err)
	}
	if ann, _ := table.Annotation("b"); len(ann.Tags) != 0 {
		t.Fatalf("expected tag removal")
	}
	if err := tag.Execute(ctx, TagInput{Collection: leads.StoreLeads, Remove: true, Index: 0}); err != nil {
		t.Fatalf("remove draft tag returned error: %v", err)
	}
	if draft := table.Draft(); len(draft.Tags) != 0 {
		t.Fatalf("expected draft tag removal, got %+v", draft.Tags)
	}
	if err := tag.Execute(ctx, TagInput{Collection: leads.StoreLeads, Remove: true, Index: 0}); !errors.Is(err, leads.ErrValidation) {
		t.Fatalf("expected validation error for missing draft tag, got %v", err)
	}
}

func TestSubmitAnnotationsCommand(t *testing.T) {
	patcher := &recordingPatcher{}
	ws, _ := newWorkspace(t, patcher)
	telemetry := &stubTelemetry{}
	cmd := NewSubmitAnnotationsCommand(ws, telemetry)

	table, _ := ws.Table(leads.StoreLeads)
	_ = table.SetSelected("a", true)
	if _, err := table.ApplyGlobal("r1", "r2"); err != nil {
		t.Fatalf("ApplyGlobal returned error: %v", err)
	}

	var result leads.SubmitResult
	err := cmd.Execute(context.Background(), SubmitInput{
		Collection: leads.StoreLeads,
		Actor:      Actor{ActorID: "admin-1"},
		Result:     &result,
	})
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if patcher.calls != 1 {
		t.Fatalf("expected one patch, got %d", patcher.calls)
	}
	if patcher.actor.ActorID != "admin-1" {
		t.Fatalf("expected actor on context, got %+v", patcher.actor)
	}
	if len(result.IDs) != 1 || result.IDs[0] != "a" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(telemetry.events) != 1 || telemetry.events[0] != "leads.command.submit" {
		t.Fatalf("unexpected telemetry %v", telemetry.events)
	}

	table.ClearSelection()
	if err := cmd.Execute(context.Background(), SubmitInput{Collection: leads.StoreLeads}); !errors.Is(err, leads.ErrNoSelection) {
		t.Fatalf("expected no selection error, got %v", err)
	}
	if patcher.calls != 1 {
		t.Fatalf("empty selection must not reach the network")
	}
}

type stubMutator struct {
	created map[string]any
	deleted string
	err     error
}

func (m *stubMutator) Create(_ context.Context, entity string, payload map[string]any) (leads.MutationResult, error) {
	m.created = payload
	return leads.MutationResult{Entity: entity, ID: "new-id"}, m.err
}

func (m *stubMutator) Delete(_ context.Context, entity, id string) (leads.MutationResult, error) {
	m.deleted = id
	return leads.MutationResult{Entity: entity, ID: id}, m.err
}

type stubLoader struct {
	names []string
}

func (l *stubLoader) Load(_ context.Context, name string) (leads.State[[]leads.Row], error) {
	l.names = append(l.names, name)
	return leads.State[[]leads.Row]{}, nil
}

func TestEntityCommands(t *testing.T) {
	mutator := &stubMutator{}
	loader := &stubLoader{}
	create := NewCreateEntityCommand(mutator, loader, nil)
	remove := NewDeleteEntityCommand(mutator, loader, nil)

	var result leads.MutationResult
	if err := create.Execute(context.Background(), CreateEntityInput{
		Entity:  leads.StoreUsers,
		Payload: map[string]any{"email": "x@example.com"},
		Reload:  true,
		Result:  &result,
	}); err != nil {
		t.Fatalf("create returned error: %v", err)
	}
	if result.ID != "new-id" || mutator.created["email"] != "x@example.com" {
		t.Fatalf("unexpected create outcome %+v", result)
	}
	if err := remove.Execute(context.Background(), DeleteEntityInput{Entity: leads.StoreUsers, ID: "u1"}); err != nil {
		t.Fatalf("delete returned error: %v", err)
	}
	if mutator.deleted != "u1" {
		t.Fatalf("expected delete of u1")
	}
	if len(loader.names) != 1 || loader.names[0] != leads.StoreUsers {
		t.Fatalf("expected one reload, got %v", loader.names)
	}

	mutator.err = leads.NewValidationError("users is invalid")
	if err := create.Execute(context.Background(), CreateEntityInput{Entity: leads.StoreUsers, Reload: true}); err == nil {
		t.Fatalf("expected error")
	}
	if len(loader.names) != 1 {
		t.Fatalf("failed create must not reload")
	}
}
