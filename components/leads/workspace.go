package leads

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-leadboard/pkg/activity"
)

// WorkspaceOptions configures NewWorkspace.
type WorkspaceOptions struct {
	State     *AppState
	Patcher   Patcher
	Hook      ChangeHook
	Logger    *slog.Logger
	Telemetry Telemetry
	Activity  *activity.Emitter
	// TableOptions are appended to every table built by the workspace.
	TableOptions []TableOption
}

type tableSlot struct {
	generation uint64
	table      *Table
}

// Workspace pairs every collection store with the Table views edit against.
type Workspace struct {
	state     *AppState
	patcher   Patcher
	hook      ChangeHook
	logger    *slog.Logger
	telemetry Telemetry
	activity  *activity.Emitter
	tableOpts []TableOption

	mu     sync.Mutex
	tables map[string]*tableSlot
}

// NewWorkspace builds a workspace over the app state.
func NewWorkspace(opts WorkspaceOptions) (*Workspace, error) {
	if opts.State == nil {
		return nil, fmt.Errorf("leads: workspace requires app state")
	}
	hook := opts.Hook
	if hook == nil {
		hook = noopChangeHook{}
	}
	return &Workspace{
		state:     opts.State,
		patcher:   opts.Patcher,
		hook:      hook,
		logger:    normalizeLogger(opts.Logger),
		telemetry: normalizeTelemetry(opts.Telemetry),
		activity:  opts.Activity,
		tableOpts: append([]TableOption(nil), opts.TableOptions...),
		tables:    make(map[string]*tableSlot),
	}, nil
}

// State returns the underlying app state.
func (w *Workspace) State() *AppState {
	return w.state
}

// Table returns the table for the collection's current data. A new store generation rebuilds
// the table, which resets selection and annotations.
func (w *Workspace) Table(name string) (*Table, error) {
	store, ok := w.state.Collection(name)
	if !ok {
		return nil, NewValidationError(fmt.Sprintf("unknown collection %q", name))
	}
	snapshot := store.Snapshot()

	w.mu.Lock()
	defer w.mu.Unlock()
	if slot, ok := w.tables[name]; ok && slot.generation == snapshot.Generation {
		return slot.table, nil
	}
	table := NewTable(snapshot.Data, w.optionsFor(name)...)
	w.tables[name] = &tableSlot{generation: snapshot.Generation, table: table}
	w.logger.Debug("table rebuilt", "collection", name, "generation", snapshot.Generation, "rows", table.Len())
	return table, nil
}

func (w *Workspace) optionsFor(name string) []TableOption {
	opts := []TableOption{
		WithTableName(name),
		WithTableLogger(w.logger),
		WithTableTelemetry(w.telemetry),
	}
	if w.patcher != nil {
		opts = append(opts, WithPatcher(w.patcher))
	}
	if bulk, ok := w.state.Config().Bulk[name]; ok {
		opts = append(opts, WithEndpoint(bulk.Path))
		if bulk.Variant != "" {
			opts = append(opts, WithPatchVariant(bulk.Variant))
		}
		if bulk.RequireSuccess {
			opts = append(opts, WithRequireSuccessFlag())
		}
	}
	return append(opts, w.tableOpts...)
}

// Submit sends the collection table's pending annotations and, when reload is set, reloads the
// collection afterwards so views show server-confirmed values. A failed reload does not fail an
// accepted submit; it is logged and reported in SubmitResult.ReloadError.
func (w *Workspace) Submit(ctx context.Context, name, endpoint string, reload bool) (SubmitResult, error) {
	table, err := w.Table(name)
	if err != nil {
		return SubmitResult{}, err
	}
	result, err := table.Submit(ctx, endpoint)
	if err != nil {
		return SubmitResult{}, err
	}
	store, _ := w.state.Collection(name)
	if hookErr := w.hook.StoreUpdated(ctx, StoreEvent{
		Store:      name,
		Reason:     ReasonSubmitted,
		Generation: store.Snapshot().Generation,
		At:         time.Now(),
	}); hookErr != nil {
		w.logger.Warn("change hook failed", "collection", name, "error", hookErr)
	}
	if err := w.activity.Emit(ctx, activity.Event{
		Verb:           "leads." + name + ".annotate",
		ObjectType:     name,
		ObjectID:       strings.Join(result.IDs, ","),
		DefinitionCode: name + ":annotate",
		Metadata: map[string]any{
			"endpoint": result.Endpoint,
			"variant":  string(result.Variant),
			"rows":     len(result.IDs),
		},
	}); err != nil {
		w.logger.Warn("activity emit failed", "collection", name, "error", err)
	}
	if reload {
		if _, err := store.Load(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
			w.logger.Warn("reload after submit failed", "collection", name, "error", err)
			result.ReloadError = Message("reload "+name, err)
		}
	}
	return result, nil
}

// CollectionSummary describes one collection for the overview.
type CollectionSummary struct {
	Name       string         `json:"name"`
	Rows       int            `json:"rows"`
	Loading    bool           `json:"loading"`
	Error      string         `json:"error,omitempty"`
	Generation uint64         `json:"generation"`
	Statuses   map[string]int `json:"statuses,omitempty"`
}

// Overview summarizes every collection store.
type Overview struct {
	Collections []CollectionSummary `json:"collections"`
	Insights    *PageInsights       `json:"insights,omitempty"`
}

// Overview counts rows and lead statuses per collection using the configured funnel field.
func (w *Workspace) Overview() Overview {
	field := w.state.Config().Funnel.Field
	out := Overview{}
	for _, name := range w.state.Names() {
		store, _ := w.state.Collection(name)
		snapshot := store.Snapshot()
		summary := CollectionSummary{
			Name:       name,
			Rows:       len(snapshot.Data),
			Loading:    snapshot.Loading,
			Error:      snapshot.Error,
			Generation: snapshot.Generation,
		}
		if field != "" {
			summary.Statuses = CountBy(NormalizeRows(snapshot.Data), field)
		}
		out.Collections = append(out.Collections, summary)
	}
	if insights := w.state.PageInsights(); insights != nil {
		snapshot := insights.Snapshot()
		if snapshot.Generation > 0 {
			data := snapshot.Data
			out.Insights = &data
		}
	}
	return out
}

// CountBy counts rows by the lower-cased text of field. Rows without the field are ignored.
func CountBy(rows []Row, field string) map[string]int {
	counts := map[string]int{}
	for _, row := range rows {
		value := strings.ToLower(strings.TrimSpace(CellText(row[field])))
		if value == "" {
			continue
		}
		counts[value]++
	}
	if len(counts) == 0 {
		return nil
	}
	return counts
}
