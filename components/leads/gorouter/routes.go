package gorouter

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/httpapi"
	"github.com/goliatone/go-leadboard/components/leads/queries"
)

// ActorResolver converts a router.Context into the acting user recorded on mutations.
type ActorResolver func(router.Context) commands.Actor

// Config wires go-router with the leadboard API, HTML fragments, and refresh stream.
type Config[T any] struct {
	Router        router.Router[T]
	API           httpapi.Executor
	Renderer      leads.Renderer
	Broadcast     *leads.BroadcastHook
	ActorResolver ActorResolver
	BasePath      string
	Routes        RouteConfig
}

// RouteConfig customizes the relative paths used for leadboard endpoints.
type RouteConfig struct {
	Overview     string
	OverviewHTML string
	LoadAll      string
	Collection   string
	Load         string
	Table        string
	TableHTML    string
	Select       string
	Annotate     string
	Tags         string
	Submit       string
	Funnel       string
	Chart        string
	Entity       string
	EntityID     string
	WebSocket    string
}

// Register mounts leadboard routes (HTML, JSON, WebSocket) on a go-router router.
func Register[T any](cfg Config[T]) error {
	if cfg.Router == nil {
		return errors.New("gorouter: router is required")
	}
	if cfg.API == nil {
		return errors.New("gorouter: api executor is required")
	}
	routes := defaultRouteConfig(cfg.Routes)
	base := cfg.BasePath
	if base == "" {
		base = "/admin"
	}
	resolver := cfg.ActorResolver
	if resolver == nil {
		resolver = defaultActorResolver
	}

	group := cfg.Router.Group(base)

	if cfg.Renderer != nil {
		registerHTML(group, cfg.API, cfg.Renderer, routes)
	}
	registerQueries(group, cfg.API, routes)
	registerCommands(group, cfg.API, resolver, routes)

	if cfg.Broadcast != nil {
		registerWebSocket(group, cfg.Broadcast, routes.WebSocket)
	}
	return nil
}

func registerHTML[T any](r router.Router[T], api httpapi.Executor, renderer leads.Renderer, routes RouteConfig) {
	r.Get(routes.OverviewHTML, router.WrapHandler(func(ctx router.Context) error {
		overview, err := api.Overview(ctx.Context())
		if err != nil {
			return respondError(ctx, err)
		}
		var buf bytes.Buffer
		if _, err := leads.RenderOverview(renderer, overview, &buf); err != nil {
			return respondError(ctx, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send(buf.Bytes())
	}))

	r.Get(routes.TableHTML, router.WrapHandler(func(ctx router.Context) error {
		view, err := api.Table(ctx.Context(), ctx.Param("collection"))
		if err != nil {
			return respondError(ctx, err)
		}
		var buf bytes.Buffer
		if _, err := leads.RenderTable(renderer, view, &buf); err != nil {
			return respondError(ctx, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send(buf.Bytes())
	}))
}

func registerQueries[T any](r router.Router[T], api httpapi.Executor, routes RouteConfig) {
	r.Get(routes.Overview, router.WrapHandler(func(ctx router.Context) error {
		overview, err := api.Overview(ctx.Context())
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, overview)
	}))

	r.Get(routes.Collection, router.WrapHandler(func(ctx router.Context) error {
		state, err := api.State(ctx.Context(), ctx.Param("collection"))
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, state)
	}))

	r.Get(routes.Table, router.WrapHandler(func(ctx router.Context) error {
		return respondTable(ctx, api, ctx.Param("collection"), http.StatusOK)
	}))

	r.Get(routes.Funnel, router.WrapHandler(func(ctx router.Context) error {
		report, err := api.Funnel(ctx.Context(), funnelInput(ctx))
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, report)
	}))

	r.Get(routes.Chart, router.WrapHandler(func(ctx router.Context) error {
		out, err := api.Chart(ctx.Context(), queries.ChartInput{
			FunnelInput: funnelInput(ctx),
			Kind:        queries.ChartKind(ctx.Query("kind")),
			Title:       ctx.Query("title"),
		})
		if err != nil {
			return respondError(ctx, err)
		}
		ctx.SetHeader("Content-Type", "text/html; charset=utf-8")
		return ctx.Send([]byte(out.HTML))
	}))
}

func registerCommands[T any](r router.Router[T], api httpapi.Executor, resolver ActorResolver, routes RouteConfig) {
	r.Post(routes.LoadAll, router.WrapHandler(func(ctx router.Context) error {
		if err := api.Load(ctx.Context(), commands.LoadCollectionInput{}); err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusAccepted, map[string]string{"status": "loaded"})
	}))

	r.Post(routes.Load, router.WrapHandler(func(ctx router.Context) error {
		collection := ctx.Param("collection")
		if err := api.Load(ctx.Context(), commands.LoadCollectionInput{Collection: collection}); err != nil {
			return respondError(ctx, err)
		}
		state, err := api.State(ctx.Context(), collection)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, state)
	}))

	r.Post(routes.Select, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.SelectRowsInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondStatus(ctx, http.StatusBadRequest, err)
		}
		payload.Collection = ctx.Param("collection")
		if err := api.Select(ctx.Context(), payload); err != nil {
			return respondError(ctx, err)
		}
		return respondTable(ctx, api, payload.Collection, http.StatusOK)
	}))

	r.Post(routes.Annotate, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.AnnotateInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondStatus(ctx, http.StatusBadRequest, err)
		}
		payload.Collection = ctx.Param("collection")
		if err := api.Annotate(ctx.Context(), payload); err != nil {
			return respondError(ctx, err)
		}
		return respondTable(ctx, api, payload.Collection, http.StatusOK)
	}))

	r.Post(routes.Tags, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.TagInput
		if err := json.Unmarshal(ctx.Body(), &payload); err != nil {
			return respondStatus(ctx, http.StatusBadRequest, err)
		}
		payload.Collection = ctx.Param("collection")
		if err := api.Tag(ctx.Context(), payload); err != nil {
			return respondError(ctx, err)
		}
		return respondTable(ctx, api, payload.Collection, http.StatusOK)
	}))

	r.Post(routes.Submit, router.WrapHandler(func(ctx router.Context) error {
		var payload commands.SubmitInput
		if body := ctx.Body(); len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &payload); err != nil {
				return respondStatus(ctx, http.StatusBadRequest, err)
			}
		}
		payload.Collection = ctx.Param("collection")
		if payload.Actor == (commands.Actor{}) {
			payload.Actor = resolver(ctx)
		}
		result, err := api.Submit(ctx.Context(), payload)
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, result)
	}))

	r.Post(routes.Entity, router.WrapHandler(func(ctx router.Context) error {
		var fields map[string]any
		if err := json.Unmarshal(ctx.Body(), &fields); err != nil {
			return respondStatus(ctx, http.StatusBadRequest, err)
		}
		result, err := api.Create(ctx.Context(), commands.CreateEntityInput{
			Entity:  ctx.Param("entity"),
			Payload: fields,
			Reload:  true,
			Actor:   resolver(ctx),
		})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusCreated, result)
	}))

	r.Delete(routes.EntityID, router.WrapHandler(func(ctx router.Context) error {
		id := ctx.Param("id")
		if id == "" {
			return respondStatus(ctx, http.StatusBadRequest, errors.New("id is required"))
		}
		result, err := api.Delete(ctx.Context(), commands.DeleteEntityInput{
			Entity: ctx.Param("entity"),
			ID:     id,
			Reload: true,
			Actor:  resolver(ctx),
		})
		if err != nil {
			return respondError(ctx, err)
		}
		return ctx.JSON(http.StatusOK, result)
	}))
}

func registerWebSocket[T any](r router.Router[T], hook *leads.BroadcastHook, path string) {
	cfg := router.DefaultWebSocketConfig()
	r.WebSocket(path, cfg, func(ws router.WebSocketContext) error {
		events, cancel := hook.Subscribe()
		defer cancel()
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return nil
				}
				if err := ws.WriteJSON(event); err != nil {
					return err
				}
			case <-ws.Context().Done():
				return ws.Close()
			}
		}
	})
}

func respondTable(ctx router.Context, api httpapi.Executor, collection string, status int) error {
	view, err := api.Table(ctx.Context(), collection)
	if err != nil {
		return respondError(ctx, err)
	}
	return ctx.JSON(status, view)
}

func funnelInput(ctx router.Context) queries.FunnelInput {
	input := queries.FunnelInput{
		Collection: ctx.Param("collection"),
		Field:      ctx.Query("field"),
	}
	for _, stage := range strings.Split(ctx.Query("stages"), ",") {
		if stage = strings.TrimSpace(stage); stage != "" {
			input.Stages = append(input.Stages, stage)
		}
	}
	return input
}

func defaultActorResolver(ctx router.Context) commands.Actor {
	var actor commands.Actor
	if v, ok := ctx.Locals("user_id").(string); ok {
		actor.UserID = v
		actor.ActorID = v
	}
	if v, ok := ctx.Locals("actor_id").(string); ok && v != "" {
		actor.ActorID = v
	}
	if v, ok := ctx.Locals("tenant_id").(string); ok {
		actor.TenantID = v
	}
	return actor
}

func respondError(ctx router.Context, err error) error {
	return respondStatus(ctx, httpapi.StatusFor(err), err)
}

func respondStatus(ctx router.Context, status int, err error) error {
	return ctx.JSON(status, map[string]string{"error": err.Error()})
}

func defaultRouteConfig(routes RouteConfig) RouteConfig {
	set := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	set(&routes.Overview, "/leads/_overview")
	set(&routes.OverviewHTML, "/leads")
	set(&routes.LoadAll, "/leads/_load")
	set(&routes.WebSocket, "/leads/_ws")
	set(&routes.Collection, "/leads/:collection")
	set(&routes.Load, "/leads/:collection/load")
	set(&routes.Table, "/leads/:collection/table")
	set(&routes.TableHTML, "/leads/:collection/table.html")
	set(&routes.Select, "/leads/:collection/select")
	set(&routes.Annotate, "/leads/:collection/annotate")
	set(&routes.Tags, "/leads/:collection/tags")
	set(&routes.Submit, "/leads/:collection/submit")
	set(&routes.Funnel, "/leads/:collection/funnel")
	set(&routes.Chart, "/leads/:collection/chart")
	set(&routes.Entity, "/entities/:entity")
	set(&routes.EntityID, "/entities/:entity/:id")
	return routes
}
