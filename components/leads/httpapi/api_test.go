package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/queries"
)

type stubCommander[T any] struct {
	last  T
	calls int
	err   error
	apply func(*T)
}

func (s *stubCommander[T]) Execute(ctx context.Context, msg T) error {
	s.last = msg
	s.calls++
	if s.apply != nil && s.err == nil {
		s.apply(&msg)
	}
	return s.err
}

type stubQuerier[T, R any] struct {
	last   T
	calls  int
	result R
	err    error
}

func (s *stubQuerier[T, R]) Query(ctx context.Context, msg T) (R, error) {
	s.last = msg
	s.calls++
	return s.result, s.err
}

func TestHandleSelectRepliesWithTable(t *testing.T) {
	selector := &stubCommander[commands.SelectRowsInput]{}
	table := &stubQuerier[queries.CollectionInput, leads.TableView]{result: leads.TableView{Name: "leads", SelectedCount: 2}}
	api := &Handlers{Selector: selector, TableQuery: table}
	buf, _ := json.Marshal(commands.SelectRowsInput{Collection: "ignored", IDs: []string{"a", "b"}, Mode: commands.SelectOn})
	req := httptest.NewRequest(http.MethodPost, "/collections/leads/select", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	api.HandleSelect(rec, req, "leads")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if selector.last.Collection != "leads" || len(selector.last.IDs) != 2 {
		t.Fatalf("expected path collection to win, got %+v", selector.last)
	}
	var view leads.TableView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.SelectedCount != 2 || table.last.Collection != "leads" {
		t.Fatalf("unexpected view %+v", view)
	}
}

func TestHandleAnnotateWithoutTableQuery(t *testing.T) {
	annotator := &stubCommander[commands.AnnotateInput]{}
	api := &Handlers{Annotator: annotator}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"remarks1":"call back"}`))
	rec := httptest.NewRecorder()
	api.HandleAnnotate(rec, req, "leads")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if annotator.last.Remark1 != "call back" || annotator.last.ID != "" {
		t.Fatalf("unexpected input %+v", annotator.last)
	}
}

func TestHandleAnnotateNoSelection(t *testing.T) {
	annotator := &stubCommander[commands.AnnotateInput]{err: leads.ErrNoSelection}
	api := &Handlers{Annotator: annotator}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"remarks1":"x"}`))
	rec := httptest.NewRecorder()
	api.HandleAnnotate(rec, req, "leads")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "select at least one row") {
		t.Fatalf("expected message in body, got %s", rec.Body.String())
	}
}

func TestHandleTagBadJSON(t *testing.T) {
	tagger := &stubCommander[commands.TagInput]{}
	api := &Handlers{Tagger: tagger}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`))
	rec := httptest.NewRecorder()
	api.HandleTag(rec, req, "leads")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if tagger.calls != 0 {
		t.Fatalf("expected tagger not to run")
	}
}

func TestHandleSubmit(t *testing.T) {
	submitter := &stubCommander[commands.SubmitInput]{apply: func(in *commands.SubmitInput) {
		*in.Result = leads.SubmitResult{Endpoint: "/api/leads/bulk-update", IDs: []string{"a"}}
	}}
	api := &Handlers{
		Submitter: submitter,
		Actor: func(*http.Request) commands.Actor {
			return commands.Actor{ActorID: "admin-1"}
		},
	}
	req := httptest.NewRequest(http.MethodPost, "/collections/leads/submit", nil)
	rec := httptest.NewRecorder()
	api.HandleSubmit(rec, req, "leads")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if submitter.last.Collection != "leads" || submitter.last.ActorID != "admin-1" {
		t.Fatalf("unexpected input %+v", submitter.last)
	}
	var result leads.SubmitResult
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if result.Endpoint != "/api/leads/bulk-update" || len(result.IDs) != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestHandleSubmitMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{leads.ErrNoSelection, http.StatusBadRequest},
		{&leads.Error{Kind: leads.KindUnauthenticated, Message: "Unauthorized: invalid token"}, http.StatusUnauthorized},
		{leads.NewServerError("save leads", 500, "db down"), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		api := &Handlers{Submitter: &stubCommander[commands.SubmitInput]{err: tc.err}}
		rec := httptest.NewRecorder()
		api.HandleSubmit(rec, httptest.NewRequest(http.MethodPost, "/", nil), "leads")
		if rec.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestHandleCreateAndDelete(t *testing.T) {
	creator := &stubCommander[commands.CreateEntityInput]{apply: func(in *commands.CreateEntityInput) {
		*in.Result = leads.MutationResult{Entity: in.Entity, Message: "created"}
	}}
	deleter := &stubCommander[commands.DeleteEntityInput]{apply: func(in *commands.DeleteEntityInput) {
		*in.Result = leads.MutationResult{Entity: in.Entity, ID: in.ID}
	}}
	api := &Handlers{Creator: creator, Deleter: deleter}

	req := httptest.NewRequest(http.MethodPost, "/entities/manual-leads?reload=true", strings.NewReader(`{"name":"Ann","phone":"5550100"}`))
	rec := httptest.NewRecorder()
	api.HandleCreate(rec, req, "manual-leads")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !creator.last.Reload || creator.last.Payload["name"] != "Ann" {
		t.Fatalf("unexpected create input %+v", creator.last)
	}

	rec = httptest.NewRecorder()
	api.HandleDelete(rec, httptest.NewRequest(http.MethodDelete, "/entities/users/u1", nil), "users", "u1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if deleter.last.ID != "u1" || deleter.last.Reload {
		t.Fatalf("unexpected delete input %+v", deleter.last)
	}
}

func TestHandleLoad(t *testing.T) {
	loader := &stubCommander[commands.LoadCollectionInput]{}
	state := &stubQuerier[queries.CollectionInput, leads.State[[]leads.Row]]{result: leads.State[[]leads.Row]{Generation: 3}}
	api := &Handlers{Loader: loader, StateQuery: state}

	rec := httptest.NewRecorder()
	api.HandleLoad(rec, httptest.NewRequest(http.MethodPost, "/", nil), "leads")
	if rec.Code != http.StatusOK || state.calls != 1 {
		t.Fatalf("expected state reply, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	api.HandleLoad(rec, httptest.NewRequest(http.MethodPost, "/", nil), "")
	if rec.Code != http.StatusNoContent || loader.calls != 2 {
		t.Fatalf("expected 204 after load all, got %d", rec.Code)
	}
}

func TestHandleFunnelParsesQuery(t *testing.T) {
	funnel := &stubQuerier[queries.FunnelInput, charts.FunnelReport]{result: charts.FunnelReport{Field: "status", Total: 4}}
	api := &Handlers{FunnelQuery: funnel}
	rec := httptest.NewRecorder()
	api.HandleFunnel(rec, httptest.NewRequest(http.MethodGet, "/?field=status&stages=new,+won,", nil), "leads")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if funnel.last.Field != "status" || len(funnel.last.Stages) != 2 || funnel.last.Stages[1] != "won" {
		t.Fatalf("unexpected funnel input %+v", funnel.last)
	}
}

func TestHandleChartWritesHTML(t *testing.T) {
	chart := &stubQuerier[queries.ChartInput, queries.ChartOutput]{result: queries.ChartOutput{Kind: queries.ChartPie, HTML: "<div>chart</div>"}}
	api := &Handlers{ChartQuery: chart}
	rec := httptest.NewRecorder()
	api.HandleChart(rec, httptest.NewRequest(http.MethodGet, "/?kind=pie&field=source", nil), "contacts")
	if rec.Code != http.StatusOK || rec.Body.String() != "<div>chart</div>" {
		t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if chart.last.Kind != queries.ChartPie || chart.last.Collection != "contacts" {
		t.Fatalf("unexpected chart input %+v", chart.last)
	}
}

func TestUnconfiguredHandlers(t *testing.T) {
	api := &Handlers{}
	rec := httptest.NewRecorder()
	api.HandleOverview(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rec.Code)
	}
}

func TestRoutesDispatchThroughChi(t *testing.T) {
	state := &stubQuerier[queries.CollectionInput, leads.State[[]leads.Row]]{}
	deleter := &stubCommander[commands.DeleteEntityInput]{}
	overview := &stubQuerier[queries.OverviewInput, leads.Overview]{}
	api := &Handlers{StateQuery: state, Deleter: deleter, OverviewQuery: overview}
	handler := api.Routes()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/collections/meta-leads/", nil))
	if rec.Code != http.StatusOK || state.last.Collection != "meta-leads" {
		t.Fatalf("state route: %d %+v", rec.Code, state.last)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/entities/manual-leads/m1", nil))
	if rec.Code != http.StatusOK || deleter.last.Entity != "manual-leads" || deleter.last.ID != "m1" {
		t.Fatalf("delete route: %d %+v", rec.Code, deleter.last)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/overview", nil))
	if rec.Code != http.StatusOK || overview.calls != 1 {
		t.Fatalf("overview route: %d", rec.Code)
	}
}
