package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	gocommand "github.com/goliatone/go-command"
	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/queries"
)

// ErrNotConfigured is returned when a handler's command or query was not wired.
var ErrNotConfigured = errors.New("httpapi: operation not configured")

// ActorResolver extracts the acting user from a request.
type ActorResolver func(*http.Request) commands.Actor

// Handlers exposes HTTP endpoints backed by shared commands and queries.
type Handlers struct {
	Loader    gocommand.Commander[commands.LoadCollectionInput]
	Selector  gocommand.Commander[commands.SelectRowsInput]
	Annotator gocommand.Commander[commands.AnnotateInput]
	Tagger    gocommand.Commander[commands.TagInput]
	Submitter gocommand.Commander[commands.SubmitInput]
	Creator   gocommand.Commander[commands.CreateEntityInput]
	Deleter   gocommand.Commander[commands.DeleteEntityInput]

	StateQuery    gocommand.Querier[queries.CollectionInput, leads.State[[]leads.Row]]
	TableQuery    gocommand.Querier[queries.CollectionInput, leads.TableView]
	OverviewQuery gocommand.Querier[queries.OverviewInput, leads.Overview]
	FunnelQuery   gocommand.Querier[queries.FunnelInput, charts.FunnelReport]
	ChartQuery    gocommand.Querier[queries.ChartInput, queries.ChartOutput]

	Actor ActorResolver
}

func (h *Handlers) HandleState(w http.ResponseWriter, r *http.Request, collection string) {
	state, err := h.State(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleLoad refetches one collection, or every collection when collection is empty, and replies
// with the resulting state when a state query is wired.
func (h *Handlers) HandleLoad(w http.ResponseWriter, r *http.Request, collection string) {
	if err := h.Load(r.Context(), commands.LoadCollectionInput{Collection: collection}); err != nil {
		writeError(w, err)
		return
	}
	if collection == "" || h.StateQuery == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.HandleState(w, r, collection)
}

func (h *Handlers) HandleTable(w http.ResponseWriter, r *http.Request, collection string) {
	view, err := h.Table(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handlers) HandleSelect(w http.ResponseWriter, r *http.Request, collection string) {
	var payload commands.SelectRowsInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Collection = collection
	if err := h.Select(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondTable(w, r, collection)
}

func (h *Handlers) HandleAnnotate(w http.ResponseWriter, r *http.Request, collection string) {
	var payload commands.AnnotateInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Collection = collection
	if err := h.Annotate(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondTable(w, r, collection)
}

func (h *Handlers) HandleTag(w http.ResponseWriter, r *http.Request, collection string) {
	var payload commands.TagInput
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Collection = collection
	if err := h.Tag(r.Context(), payload); err != nil {
		writeError(w, err)
		return
	}
	h.respondTable(w, r, collection)
}

// HandleSubmit sends the pending annotations. An empty body submits to the configured endpoint.
func (h *Handlers) HandleSubmit(w http.ResponseWriter, r *http.Request, collection string) {
	var payload commands.SubmitInput
	if err := decodeOptional(r, &payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Collection = collection
	payload.Actor = h.actor(r, payload.Actor)
	result, err := h.Submit(r.Context(), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleCreate posts the request body as the entity's fields. ?reload=true refetches the collection.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request, entity string) {
	var fields map[string]any
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	input := commands.CreateEntityInput{
		Entity:  entity,
		Payload: fields,
		Reload:  queryBool(r, "reload"),
		Actor:   h.actor(r, commands.Actor{}),
	}
	result, err := h.Create(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request, entity, id string) {
	input := commands.DeleteEntityInput{
		Entity: entity,
		ID:     id,
		Reload: queryBool(r, "reload"),
		Actor:  h.actor(r, commands.Actor{}),
	}
	result, err := h.Delete(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) HandleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// HandleFunnel reads optional field and comma separated stages from the query string.
func (h *Handlers) HandleFunnel(w http.ResponseWriter, r *http.Request, collection string) {
	report, err := h.Funnel(r.Context(), funnelInput(r, collection))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleChart replies with the rendered chart HTML.
func (h *Handlers) HandleChart(w http.ResponseWriter, r *http.Request, collection string) {
	input := queries.ChartInput{
		FunnelInput: funnelInput(r, collection),
		Kind:        queries.ChartKind(r.URL.Query().Get("kind")),
		Title:       r.URL.Query().Get("title"),
	}
	out, err := h.Chart(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.HTML))
}

func (h *Handlers) respondTable(w http.ResponseWriter, r *http.Request, collection string) {
	if h.TableQuery == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.HandleTable(w, r, collection)
}

func (h *Handlers) actor(r *http.Request, current commands.Actor) commands.Actor {
	if h.Actor == nil || current != (commands.Actor{}) {
		return current
	}
	return h.Actor(r)
}

func funnelInput(r *http.Request, collection string) queries.FunnelInput {
	input := queries.FunnelInput{Collection: collection, Field: r.URL.Query().Get("field")}
	for _, stage := range strings.Split(r.URL.Query().Get("stages"), ",") {
		if stage = strings.TrimSpace(stage); stage != "" {
			input.Stages = append(input.Stages, stage)
		}
	}
	return input
}

func decodeOptional(r *http.Request, target any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(target)
}

func queryBool(r *http.Request, key string) bool {
	ok, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return ok
}

// StatusFor maps command errors onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, leads.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, leads.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, leads.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, leads.ErrServer), errors.Is(err, leads.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
