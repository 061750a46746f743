package leadboard

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	router "github.com/goliatone/go-router"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/gorouter"
	"github.com/goliatone/go-leadboard/components/leads/httpapi"
	"github.com/goliatone/go-leadboard/components/leads/queries"
	activitypkg "github.com/goliatone/go-leadboard/pkg/activity"
	"github.com/goliatone/go-leadboard/pkg/apiclient"
)

// Options wires the leadboard against a backend.
type Options struct {
	Config Config
	// Session supplies the signed-in admin. Defaults to the config's session file when set.
	Session        leads.SessionSource
	HTTPClient     *http.Client
	Logger         *slog.Logger
	Telemetry      leads.Telemetry
	Hooks          leads.ChangeHooks
	ActivityHooks  activitypkg.Hooks
	ActivityConfig activitypkg.Config
	ChartCacheTTL  time.Duration
	TableOptions   []TableOption
}

// App holds the wired stores, workspace, and transports.
type App struct {
	Config    Config
	Auth      *leads.AuthContext
	Client    *apiclient.HTTPClient
	State     *leads.AppState
	Workspace *leads.Workspace
	Mutator   *leads.Mutator
	Broadcast *leads.BroadcastHook
	Activity  *activitypkg.Emitter
	Handlers  *httpapi.Handlers
}

// New builds an App. Stores start empty; call State.LoadAll or the load command to fetch.
func New(opts Options) (*App, error) {
	cfg := opts.Config
	if cfg.BaseURL == "" {
		return nil, errors.New("leadboard: base url is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	session := opts.Session
	if session == nil && cfg.SessionFile != "" {
		session = leads.NewFileSessionStore(cfg.SessionFile, cfg.SessionKey)
	}
	auth := leads.NewAuthContext(session)

	client, err := apiclient.NewHTTPClient(apiclient.HTTPConfig{
		BaseURL:    cfg.BaseURL,
		Auth:       auth,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.Timeout.Std(),
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}

	broadcast := leads.NewBroadcastHook()
	hooks := append(leads.ChangeHooks{broadcast}, opts.Hooks...)

	state, err := leads.NewAppState(leads.AppStateOptions{
		Config:    cfg,
		Fetcher:   client,
		Auth:      auth,
		Logger:    opts.Logger,
		Telemetry: opts.Telemetry,
		Hook:      hooks,
	})
	if err != nil {
		return nil, err
	}

	emitter := activitypkg.NewEmitter(opts.ActivityHooks, opts.ActivityConfig)
	workspace, err := leads.NewWorkspace(leads.WorkspaceOptions{
		State:        state,
		Patcher:      client,
		Hook:         hooks,
		Logger:       opts.Logger,
		Telemetry:    opts.Telemetry,
		Activity:     emitter,
		TableOptions: opts.TableOptions,
	})
	if err != nil {
		return nil, err
	}
	mutator, err := leads.NewMutator(leads.MutatorOptions{
		Config:    cfg,
		Client:    client,
		Validator: leads.NewSchemaValidator(),
		Activity:  emitter,
		Hook:      hooks,
		Logger:    opts.Logger,
		Telemetry: opts.Telemetry,
	})
	if err != nil {
		return nil, err
	}

	ttl := opts.ChartCacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	builder := charts.NewBuilder(charts.WithCache(charts.NewChartCache(ttl)))

	handlers := &httpapi.Handlers{
		Loader:    commands.NewLoadCollectionCommand(state, opts.Telemetry),
		Selector:  commands.NewSelectRowsCommand(workspace),
		Annotator: commands.NewAnnotateCommand(workspace, opts.Telemetry),
		Tagger:    commands.NewTagCommand(workspace),
		Submitter: commands.NewSubmitAnnotationsCommand(workspace, opts.Telemetry),
		Creator:   commands.NewCreateEntityCommand(mutator, state, opts.Telemetry),
		Deleter:   commands.NewDeleteEntityCommand(mutator, state, opts.Telemetry),

		StateQuery:    queries.NewCollectionStateQuery(state),
		TableQuery:    queries.NewTableViewQuery(workspace),
		OverviewQuery: queries.NewOverviewQuery(workspace),
		FunnelQuery:   queries.NewFunnelQuery(state),
		ChartQuery:    queries.NewChartQuery(state, builder),
	}

	return &App{
		Config:    cfg,
		Auth:      auth,
		Client:    client,
		State:     state,
		Workspace: workspace,
		Mutator:   mutator,
		Broadcast: broadcast,
		Activity:  emitter,
		Handlers:  handlers,
	}, nil
}

// Mount registers the app's routes on a go-router router under basePath.
func Mount[T any](app *App, r router.Router[T], basePath string) error {
	if app == nil {
		return errors.New("leadboard: app is required")
	}
	renderer, err := leads.NewTemplateRenderer()
	if err != nil {
		return fmt.Errorf("leadboard: templates: %w", err)
	}
	return gorouter.Register(gorouter.Config[T]{
		Router:    r,
		API:       app.Handlers,
		Renderer:  renderer,
		Broadcast: app.Broadcast,
		BasePath:  basePath,
	})
}
