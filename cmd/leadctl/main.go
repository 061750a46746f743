package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"
	"github.com/gofiber/fiber/v2"
	router "github.com/goliatone/go-router"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-leadboard/components/leads"
	"github.com/goliatone/go-leadboard/components/leads/charts"
	"github.com/goliatone/go-leadboard/components/leads/commands"
	"github.com/goliatone/go-leadboard/components/leads/queries"
	"github.com/goliatone/go-leadboard/internal/mockapi"
	"github.com/goliatone/go-leadboard/pkg/apiclient"
	"github.com/goliatone/go-leadboard/pkg/leadboard"
)

// Globals are the flags shared by every command.
type Globals struct {
	Config  string `type:"path" short:"c" env:"LEADBOARD_CONFIG" help:"Path to the leadboard YAML config."`
	BaseURL string `name:"base-url" help:"Backend base URL (overrides config)."`
	Verbose bool   `short:"v" help:"Enable debug logging."`
}

type cli struct {
	Globals

	List        listCmd        `cmd:"" help:"Load a collection and print its rows."`
	Annotate    annotateCmd    `cmd:"" help:"Apply remarks and tags to rows and submit them in one bulk update."`
	Funnel      funnelCmd      `cmd:"" help:"Print the lead funnel of a collection, optionally rendering it as HTML."`
	Login       loginCmd       `cmd:"" help:"Sign in and store the session token."`
	Logout      logoutCmd      `cmd:"" help:"Remove the stored session."`
	Serve       serveCmd       `cmd:"" help:"Serve the dashboard API and HTML fragments."`
	MockBackend mockBackendCmd `cmd:"" name:"mock-backend" help:"Run the in-memory backend used for demos and tests."`
}

func main() {
	var app cli
	ctx := kong.Parse(&app,
		kong.Name("leadctl"),
		kong.Description("Lead management dashboard utility."),
		kong.UsageOnError(),
		kong.BindTo(context.Background(), (*context.Context)(nil)),
	)
	env := &runEnv{
		Globals: app.Globals,
		out:     os.Stdout,
		logger:  newLogger(os.Stderr, app.Verbose),
	}
	err := ctx.Run(env)
	ctx.FatalIfErrorf(err)
}

// runEnv is what command Run methods receive: the parsed globals plus output sinks.
type runEnv struct {
	Globals
	out    io.Writer
	logger *slog.Logger
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (g *runEnv) loadConfig() (leads.Config, error) {
	var (
		cfg leads.Config
		err error
	)
	if g.Config != "" {
		cfg, err = leads.LoadConfigFile(g.Config)
		if err != nil {
			return leads.Config{}, err
		}
	} else {
		cfg = leads.DefaultConfig()
		cfg.ApplyEnv(os.LookupEnv)
	}
	if g.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(g.BaseURL, "/")
	}
	if cfg.SessionFile == "" {
		cfg.SessionFile = defaultSessionFile()
	}
	return cfg, cfg.Validate()
}

func (g *runEnv) app() (*leadboard.App, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	return leadboard.New(leadboard.Options{Config: cfg, Logger: g.logger})
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".leadboard-session.yaml"
	}
	return filepath.Join(dir, "leadboard", "session.yaml")
}

type listCmd struct {
	Collection string `arg:"" help:"Collection store (leads, manual-leads, users, meta-leads, contacts, ca-leads)."`
	Format     string `enum:"table,json,yaml" default:"table" help:"Output format."`
}

func (cmd *listCmd) Run(ctx context.Context, g *runEnv) error {
	app, err := g.app()
	if err != nil {
		return err
	}
	if err := app.Handlers.Load(ctx, commands.LoadCollectionInput{Collection: cmd.Collection}); err != nil {
		return err
	}
	switch cmd.Format {
	case "json":
		state, err := app.Handlers.State(ctx, cmd.Collection)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(g.out)
		enc.SetIndent("", "  ")
		return enc.Encode(state.Data)
	case "yaml":
		state, err := app.Handlers.State(ctx, cmd.Collection)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(g.out).Encode(state.Data)
	}
	view, err := app.Handlers.Table(ctx, cmd.Collection)
	if err != nil {
		return err
	}
	return printTable(g.out, view)
}

func printTable(w io.Writer, view leads.TableView) error {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	headers := []string{"ID"}
	for _, col := range view.Columns {
		headers = append(headers, col.Label)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range view.Rows {
		fmt.Fprintln(tw, row.ID+"\t"+strings.Join(row.Cells, "\t"))
	}
	if view.Rejected > 0 {
		fmt.Fprintf(tw, "(%d rows without an id skipped)\n", view.Rejected)
	}
	return tw.Flush()
}

type annotateCmd struct {
	Collection string   `arg:"" help:"Collection store to annotate."`
	IDs        []string `name:"id" required:"" help:"Row ids to select (repeatable)."`
	Remark1    string   `name:"remarks1" help:"First remark applied to every selected row."`
	Remark2    string   `name:"remarks2" help:"Second remark applied to every selected row."`
	Tags       []string `name:"tag" help:"Tag added to every selected row (repeatable)."`
	Endpoint   string   `help:"Bulk update endpoint (defaults to the configured one)."`
	Actor      string   `help:"Actor id recorded on the activity event."`
}

func (cmd *annotateCmd) Run(ctx context.Context, g *runEnv) error {
	app, err := g.app()
	if err != nil {
		return err
	}
	api := app.Handlers
	if err := api.Load(ctx, commands.LoadCollectionInput{Collection: cmd.Collection}); err != nil {
		return err
	}
	if err := api.Select(ctx, commands.SelectRowsInput{Collection: cmd.Collection, IDs: cmd.IDs, Mode: commands.SelectOn}); err != nil {
		return err
	}
	if cmd.Remark1 != "" || cmd.Remark2 != "" {
		if err := api.Annotate(ctx, commands.AnnotateInput{Collection: cmd.Collection, Remark1: cmd.Remark1, Remark2: cmd.Remark2}); err != nil {
			return err
		}
	}
	for _, tag := range cmd.Tags {
		if err := api.Tag(ctx, commands.TagInput{Collection: cmd.Collection, Text: tag}); err != nil {
			return err
		}
	}
	result, err := api.Submit(ctx, commands.SubmitInput{
		Collection: cmd.Collection,
		Endpoint:   cmd.Endpoint,
		Actor:      commands.Actor{ActorID: cmd.Actor},
	})
	if err != nil {
		return err
	}
	message := result.Message
	if message == "" {
		message = "saved"
	}
	fmt.Fprintf(g.out, "%s: %d rows (%s) via %s\n", message, len(result.IDs), result.Variant, result.Endpoint)
	return nil
}

type funnelCmd struct {
	Collection string   `arg:"" optional:"" default:"leads" help:"Collection store."`
	Field      string   `help:"Status field (defaults to the configured funnel field)."`
	Stages     []string `name:"stage" help:"Ordered stage (repeatable; defaults to the configured stages)."`
	HTML       string   `type:"path" help:"Write the rendered funnel chart to this file."`
}

func (cmd *funnelCmd) Run(ctx context.Context, g *runEnv) error {
	app, err := g.app()
	if err != nil {
		return err
	}
	if err := app.Handlers.Load(ctx, commands.LoadCollectionInput{Collection: cmd.Collection}); err != nil {
		return err
	}
	input := queries.FunnelInput{Collection: cmd.Collection, Field: cmd.Field, Stages: cmd.Stages}
	report, err := app.Handlers.Funnel(ctx, input)
	if err != nil {
		return err
	}
	printFunnel(g.out, report)
	if cmd.HTML == "" {
		return nil
	}
	out, err := app.Handlers.Chart(ctx, queries.ChartInput{FunnelInput: input, Kind: queries.ChartFunnel})
	if err != nil {
		return err
	}
	if err := os.WriteFile(cmd.HTML, []byte(out.HTML), 0o644); err != nil {
		return fmt.Errorf("leadctl: write chart: %w", err)
	}
	g.logger.Info("funnel chart written", "path", cmd.HTML)
	return nil
}

func printFunnel(w io.Writer, report charts.FunnelReport) {
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tLEADS\tDROP-OFF")
	for _, step := range report.Steps {
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\n", step.Label, step.Value, step.DropOff)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d leads, %.1f%% converted, %d outside the funnel\n", report.Total, report.ConversionRate, report.Unstaged)
}

type loginCmd struct {
	Email    string `required:"" help:"Account email."`
	Password string `required:"" env:"LEADBOARD_PASSWORD" help:"Account password."`
	Path     string `default:"/api/auth/login" help:"Sign-in endpoint."`
}

func (cmd *loginCmd) Run(ctx context.Context, g *runEnv) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	client, err := apiclient.NewHTTPClient(apiclient.HTTPConfig{BaseURL: cfg.BaseURL, Timeout: cfg.Timeout.Std(), Logger: g.logger})
	if err != nil {
		return err
	}
	session, err := client.Login(ctx, cmd.Path, apiclient.Credentials{Email: cmd.Email, Password: cmd.Password})
	if err != nil {
		return err
	}
	store := leads.NewFileSessionStore(cfg.SessionFile, cfg.SessionKey)
	if err := store.Save(session); err != nil {
		return err
	}
	fmt.Fprintf(g.out, "signed in as %s (%s)\n", cmd.Email, firstNonEmpty(session.Role, "no role"))
	return nil
}

type logoutCmd struct{}

func (cmd *logoutCmd) Run(_ context.Context, g *runEnv) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	return leads.NewFileSessionStore(cfg.SessionFile, cfg.SessionKey).Clear()
}

type serveCmd struct {
	Addr     string `default:":9876" help:"Listen address."`
	BasePath string `name:"base-path" default:"/admin" help:"Route prefix."`
	NoLoad   bool   `name:"no-load" help:"Skip the initial load of every collection."`
}

func (cmd *serveCmd) Run(ctx context.Context, g *runEnv) error {
	app, err := g.app()
	if err != nil {
		return err
	}
	if !cmd.NoLoad {
		if err := app.State.LoadAll(ctx); err != nil {
			g.logger.Warn("initial load incomplete", "error", err)
		}
	}
	server := router.NewFiberAdapter()
	var appRouter router.Router[*fiber.App] = server.Router()
	if err := leadboard.Mount(app, appRouter, cmd.BasePath); err != nil {
		return fmt.Errorf("leadctl: register routes: %w", err)
	}
	g.logger.Info("leadboard ready", "addr", cmd.Addr, "overview", cmd.BasePath+"/leads", "backend", app.Config.BaseURL)
	return server.Serve(cmd.Addr)
}

type mockBackendCmd struct {
	Addr   string `default:":8080" help:"Listen address."`
	Seed   string `type:"existingfile" help:"YAML file with accounts and collection rows."`
	Secret string `env:"LEADBOARD_MOCK_SECRET" default:"leadboard-mock-secret" help:"JWT signing secret."`
}

type seedDocument struct {
	Accounts []struct {
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"accounts"`
	Collections map[string][]leads.Row `yaml:"collections"`
	Insights    *leads.PageInsights    `yaml:"insights"`
}

func (cmd *mockBackendCmd) Run(_ context.Context, g *runEnv) error {
	cfg := leads.DefaultConfig()
	if g.Config != "" {
		loaded, err := leads.LoadConfigFile(g.Config)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	backend := mockapi.New(mockapi.Options{Config: cfg, Secret: cmd.Secret, Logger: g.logger})
	if cmd.Seed != "" {
		if err := seedBackend(backend, cmd.Seed); err != nil {
			return err
		}
	}
	g.logger.Info("mock backend listening", "addr", cmd.Addr, "login", mockapi.LoginPath)
	if err := http.ListenAndServe(cmd.Addr, backend); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func seedBackend(backend *mockapi.Server, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("leadctl: read seed: %w", err)
	}
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("leadctl: parse seed %s: %w", path, err)
	}
	for _, acct := range doc.Accounts {
		if _, err := backend.AddAccount(acct.Email, acct.Password, acct.Role); err != nil {
			return fmt.Errorf("leadctl: seed account %s: %w", acct.Email, err)
		}
	}
	for name, rows := range doc.Collections {
		backend.Seed(name, rows)
	}
	if doc.Insights != nil {
		backend.SetInsights(*doc.Insights)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
