package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// PageInsights are the basic statistics of the connected Facebook page.
type PageInsights struct {
	PageName       string `json:"page_name" yaml:"page_name"`
	FanCount       int    `json:"fan_count" yaml:"fan_count"`
	FollowersCount int    `json:"followers_count" yaml:"followers_count"`
	LeadsCount     int    `json:"leads_count" yaml:"leads_count"`
}

// ListRequest addresses one collection endpoint.
type ListRequest struct {
	Path       string
	Collection string
	Token      string
}

// CollectionFetcher is the read side of the backend used by AppState loaders.
type CollectionFetcher interface {
	List(ctx context.Context, req ListRequest) ([]Row, error)
	PageInsights(ctx context.Context, path, token string) (PageInsights, error)
}

// AppStateOptions configures NewAppState.
type AppStateOptions struct {
	Config    Config
	Fetcher   CollectionFetcher
	Auth      *AuthContext
	Logger    *slog.Logger
	Telemetry Telemetry
	Hook      ChangeHook
	Clock     func() time.Time
}

// AppState owns the application's fetch-state stores, one per collection plus page insights.
type AppState struct {
	config      Config
	auth        *AuthContext
	logger      *slog.Logger
	collections map[string]*Store[[]Row]
	order       []string
	insights    *Store[PageInsights]
}

// NewAppState instantiates every configured store.
func NewAppState(opts AppStateOptions) (*AppState, error) {
	if opts.Fetcher == nil {
		return nil, fmt.Errorf("leads: app state requires a collection fetcher")
	}
	cfg := opts.Config
	if cfg.Stores == nil {
		cfg.applyDefaults()
	}
	auth := opts.Auth
	if auth == nil {
		auth = NewAuthContext(nil)
	}
	logger := normalizeLogger(opts.Logger)
	storeOpts := []StoreOption{
		WithStoreLogger(logger),
		WithStoreTelemetry(opts.Telemetry),
		WithStoreHook(opts.Hook),
		WithStoreClock(opts.Clock),
	}

	state := &AppState{
		config:      cfg,
		auth:        auth,
		logger:      logger,
		collections: make(map[string]*Store[[]Row], len(CollectionStores)),
	}
	for _, name := range CollectionStores {
		sc, ok := cfg.Stores[name]
		if !ok {
			continue
		}
		state.collections[name] = NewStore(name, collectionLoader(opts.Fetcher, auth, sc), storeOpts...)
		state.order = append(state.order, name)
	}
	// extra collections declared in config are appended after the stock ones
	for _, name := range slices.Sorted(maps.Keys(cfg.Stores)) {
		sc := cfg.Stores[name]
		if name == StorePageInsight {
			continue
		}
		if _, ok := state.collections[name]; ok {
			continue
		}
		state.collections[name] = NewStore(name, collectionLoader(opts.Fetcher, auth, sc), storeOpts...)
		state.order = append(state.order, name)
	}
	if sc, ok := cfg.Stores[StorePageInsight]; ok {
		fetcher := opts.Fetcher
		state.insights = NewStore(StorePageInsight, func(ctx context.Context) (PageInsights, error) {
			token, err := tokenFor(ctx, auth, sc)
			if err != nil {
				return PageInsights{}, err
			}
			return fetcher.PageInsights(ctx, sc.Path, token)
		}, storeOpts...)
	}
	return state, nil
}

func collectionLoader(fetcher CollectionFetcher, auth *AuthContext, sc StoreConfig) Loader[[]Row] {
	return func(ctx context.Context) ([]Row, error) {
		token, err := tokenFor(ctx, auth, sc)
		if err != nil {
			return nil, err
		}
		return fetcher.List(ctx, ListRequest{Path: sc.Path, Collection: sc.Collection, Token: token})
	}
}

// tokenFor fails fast for authenticated endpoints and sends whatever token exists otherwise.
func tokenFor(ctx context.Context, auth *AuthContext, sc StoreConfig) (string, error) {
	if sc.RequiresAuth() {
		return auth.Token(ctx)
	}
	return auth.OptionalToken(ctx), nil
}

// Config returns the configuration the stores were built from.
func (a *AppState) Config() Config {
	return a.config
}

// Auth returns the shared credential accessor.
func (a *AppState) Auth() *AuthContext {
	return a.auth
}

// Names lists collection stores in display order.
func (a *AppState) Names() []string {
	return append([]string(nil), a.order...)
}

// Collection looks a collection store up by name.
func (a *AppState) Collection(name string) (*Store[[]Row], bool) {
	store, ok := a.collections[name]
	return store, ok
}

// PageInsights returns the page statistics store, nil when not configured.
func (a *AppState) PageInsights() *Store[PageInsights] {
	return a.insights
}

// Load loads one collection store by name.
func (a *AppState) Load(ctx context.Context, name string) (State[[]Row], error) {
	store, ok := a.Collection(name)
	if !ok {
		return State[[]Row]{}, NewValidationError(fmt.Sprintf("unknown collection %q", name))
	}
	return store.Load(ctx)
}

// LoadAll loads every collection store concurrently. Each store records its own outcome; the
// returned error joins the failures.
func (a *AppState) LoadAll(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, name := range a.order {
		store := a.collections[name]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Load(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return errors.Join(errs...)
}
