package leads

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// TableOption customizes a Table.
type TableOption func(*tableOptions)

type tableOptions struct {
	keyFn       KeyFunc
	positional  bool
	columnMode  ColumnMode
	hidden      []string
	patcher     Patcher
	endpoint    string
	variant     PatchVariant
	requireFlag bool
	pickColor   ColorPicker
	logger      *slog.Logger
	telemetry   Telemetry
	name        string
}

// WithKeyFunc sets the identifier extraction used to join display and edit state.
func WithKeyFunc(fn KeyFunc) TableOption {
	return func(o *tableOptions) {
		o.keyFn = fn
	}
}

// WithPositionalKeys falls back to the row index ("#3") when no identifier can be derived.
// Selection and annotations then follow positions, so reordering rows between renders moves
// them to whichever row now sits at that index.
func WithPositionalKeys() TableOption {
	return func(o *tableOptions) {
		o.positional = true
	}
}

// WithColumnMode selects first-row or union column derivation.
func WithColumnMode(mode ColumnMode) TableOption {
	return func(o *tableOptions) {
		o.columnMode = mode
	}
}

// WithHiddenColumns replaces DefaultHiddenColumns.
func WithHiddenColumns(keys ...string) TableOption {
	return func(o *tableOptions) {
		o.hidden = append([]string(nil), keys...)
	}
}

// WithPatcher sets the client used by Submit.
func WithPatcher(p Patcher) TableOption {
	return func(o *tableOptions) {
		o.patcher = p
	}
}

// WithEndpoint sets the default bulk PATCH endpoint.
func WithEndpoint(endpoint string) TableOption {
	return func(o *tableOptions) {
		o.endpoint = endpoint
	}
}

// WithPatchVariant selects the bulk body shape.
func WithPatchVariant(v PatchVariant) TableOption {
	return func(o *tableOptions) {
		o.variant = v
	}
}

// WithRequireSuccessFlag treats a 2xx response without a success field as a failure.
func WithRequireSuccessFlag() TableOption {
	return func(o *tableOptions) {
		o.requireFlag = true
	}
}

// WithColorPicker overrides RandomColor, mostly for deterministic tests.
func WithColorPicker(pick ColorPicker) TableOption {
	return func(o *tableOptions) {
		o.pickColor = pick
	}
}

// WithTableLogger sets the table logger.
func WithTableLogger(logger *slog.Logger) TableOption {
	return func(o *tableOptions) {
		o.logger = logger
	}
}

// WithTableTelemetry records submit events.
func WithTableTelemetry(t Telemetry) TableOption {
	return func(o *tableOptions) {
		o.telemetry = t
	}
}

// WithTableName labels logs and telemetry with the collection name.
func WithTableName(name string) TableOption {
	return func(o *tableOptions) {
		o.name = name
	}
}

// RejectedRow is a row dropped because no identifier could be derived for it.
type RejectedRow struct {
	Index int   `json:"index"`
	Row   Row   `json:"row"`
	Err   error `json:"-"`
}

// Table tracks selection and annotations over one row collection and batch-submits edits.
type Table struct {
	opts tableOptions

	mu          sync.Mutex
	sources     []RowSource
	rows        []Row
	keys        []string
	index       map[string]int
	rejected    []RejectedRow
	columns     []Column
	selected    map[string]bool
	annotations map[string]*Annotation
	draft       Annotation
	draftSet    bool
}

// NewTable builds a table over rows.
func NewTable(rows []Row, opts ...TableOption) *Table {
	o := tableOptions{
		keyFn:     DefaultKey,
		hidden:    DefaultHiddenColumns,
		variant:   PatchShared,
		pickColor: RandomColor,
		name:      "table",
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.keyFn == nil {
		o.keyFn = DefaultKey
	}
	if o.pickColor == nil {
		o.pickColor = RandomColor
	}
	o.logger = normalizeLogger(o.logger).With("table", o.name)
	o.telemetry = normalizeTelemetry(o.telemetry)
	t := &Table{opts: o}
	t.Reload(rows)
	return t
}

// Reload replaces the collection. Selection, annotations and the shared draft are reset and
// columns are derived again.
func (t *Table) Reload(rows []Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assign(rows)
	t.columns = DeriveColumns(t.sources, t.opts.columnMode, t.opts.hidden)
	t.selected = make(map[string]bool, len(t.keys))
	for _, key := range t.keys {
		t.selected[key] = false
	}
	t.annotations = make(map[string]*Annotation)
	t.draft = Annotation{}
	t.draftSet = false
}

// Rerender swaps in a reordered or filtered view of the same collection. State is kept per
// identifier and columns stay as derived at the last Reload.
func (t *Table) Rerender(rows []Row) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.assign(rows)
	selected := make(map[string]bool, len(t.keys))
	for _, key := range t.keys {
		selected[key] = t.selected[key]
	}
	t.selected = selected
	for key := range t.annotations {
		if _, ok := t.index[key]; !ok {
			delete(t.annotations, key)
		}
	}
}

func (t *Table) assign(rows []Row) {
	t.sources = make([]RowSource, 0, len(rows))
	t.rows = make([]Row, 0, len(rows))
	t.keys = make([]string, 0, len(rows))
	t.index = make(map[string]int, len(rows))
	t.rejected = nil
	for i, raw := range rows {
		src := SourceOf(raw)
		row := Normalize(src)
		key, ok := t.opts.keyFn(row)
		if ok {
			if _, dup := t.index[key]; dup {
				t.rejected = append(t.rejected, RejectedRow{Index: i, Row: row, Err: fmt.Errorf("leads: duplicate row identifier %q", key)})
				continue
			}
		} else if t.opts.positional {
			key = positionalKey(i)
		} else {
			t.rejected = append(t.rejected, RejectedRow{Index: i, Row: row, Err: ErrMissingRowKey})
			continue
		}
		t.index[key] = len(t.keys)
		t.sources = append(t.sources, src)
		t.rows = append(t.rows, row)
		t.keys = append(t.keys, key)
	}
	if len(t.rejected) > 0 {
		t.opts.logger.Warn("rows rejected", "count", len(t.rejected))
	}
}

// Len returns the number of accepted rows.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.keys)
}

// Keys returns row identifiers in display order.
func (t *Table) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.keys...)
}

// Row returns the normalized row for id.
func (t *Table) Row(id string) (Row, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.index[id]
	if !ok {
		return nil, false
	}
	return t.rows[idx], true
}

// Rejected lists rows that were dropped for lack of an identifier.
func (t *Table) Rejected() []RejectedRow {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]RejectedRow(nil), t.rejected...)
}

// Columns returns the derived columns.
func (t *Table) Columns() []Column {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Column(nil), t.columns...)
}

// Cell renders one value by row id and column key.
func (t *Table) Cell(id, key string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx, ok := t.index[id]
	if !ok {
		return ""
	}
	return CellText(t.rows[idx][key])
}

// ToggleSelect flips the selection of one row and returns the new value.
func (t *Table) ToggleSelect(id string) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[id]; !ok {
		return false, unknownRow(id)
	}
	t.selected[id] = !t.selected[id]
	return t.selected[id], nil
}

// SetSelected sets the selection of one row.
func (t *Table) SetSelected(id string, selected bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.index[id]; !ok {
		return unknownRow(id)
	}
	t.selected[id] = selected
	return nil
}

// SelectAll marks every row selected.
func (t *Table) SelectAll() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range t.keys {
		t.selected[key] = true
	}
}

// ClearSelection marks every row unselected.
func (t *Table) ClearSelection() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, key := range t.keys {
		t.selected[key] = false
	}
}

// IsSelected reports the selection of one row.
func (t *Table) IsSelected(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selected[id]
}

// Selection returns a copy of the full selection map.
func (t *Table) Selection() map[string]bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]bool, len(t.selected))
	for k, v := range t.selected {
		out[k] = v
	}
	return out
}

// Selected returns selected identifiers in display order.
func (t *Table) Selected() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selectedLocked()
}

func (t *Table) selectedLocked() []string {
	var ids []string
	for _, key := range t.keys {
		if t.selected[key] {
			ids = append(ids, key)
		}
	}
	return ids
}

// Annotation returns the row's annotation, seeding it from the row on first access.
func (t *Table) Annotation(id string) (Annotation, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ann, ok := t.annotationLocked(id)
	if !ok {
		return Annotation{}, false
	}
	return ann.Clone(), true
}

// Annotations returns every annotation created so far.
func (t *Table) Annotations() map[string]Annotation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]Annotation, len(t.annotations))
	for k, v := range t.annotations {
		out[k] = v.Clone()
	}
	return out
}

func (t *Table) annotationLocked(id string) (*Annotation, bool) {
	if ann, ok := t.annotations[id]; ok {
		return ann, true
	}
	idx, ok := t.index[id]
	if !ok {
		return nil, false
	}
	seeded := seedAnnotation(t.rows[idx], t.opts.pickColor)
	t.annotations[id] = &seeded
	return &seeded, true
}

// SetRemarks edits one row's remarks.
func (t *Table) SetRemarks(id, remark1, remark2 string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ann, ok := t.annotationLocked(id)
	if !ok {
		return unknownRow(id)
	}
	ann.Remark1 = remark1
	ann.Remark2 = remark2
	return nil
}

// ApplyGlobal overwrites remarks on every selected row and records them as the shared draft.
// Tags are untouched. With nothing selected it changes nothing and returns ErrNoSelection.
func (t *Table) ApplyGlobal(remark1, remark2 string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	ids := t.selectedLocked()
	if len(ids) == 0 {
		t.opts.logger.Warn("apply global remarks with empty selection")
		return 0, ErrNoSelection
	}
	for _, id := range ids {
		ann, _ := t.annotationLocked(id)
		ann.Remark1 = remark1
		ann.Remark2 = remark2
	}
	t.draft.Remark1 = remark1
	t.draft.Remark2 = remark2
	t.draftSet = true
	return len(ids), nil
}

// AddTag appends a tag to one row.
func (t *Table) AddTag(id, text string) (Tag, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Tag{}, NewValidationError("tag text is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	ann, ok := t.annotationLocked(id)
	if !ok {
		return Tag{}, unknownRow(id)
	}
	tag := Tag{Text: text, ColorClass: t.opts.pickColor()}
	ann.Tags = append(ann.Tags, tag)
	return tag, nil
}

// RemoveTag drops the tag at index from one row.
func (t *Table) RemoveTag(id string, index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	ann, ok := t.annotationLocked(id)
	if !ok {
		return unknownRow(id)
	}
	if index < 0 || index >= len(ann.Tags) {
		return NewValidationError(fmt.Sprintf("tag %d does not exist on row %s", index, id))
	}
	ann.Tags = append(ann.Tags[:index:index], ann.Tags[index+1:]...)
	return nil
}

// AddGlobalTag appends a tag to the shared draft sent by PatchShared submits.
func (t *Table) AddGlobalTag(text string) (Tag, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Tag{}, NewValidationError("tag text is required")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	tag := Tag{Text: text, ColorClass: t.opts.pickColor()}
	t.draft.Tags = append(t.draft.Tags, tag)
	t.draftSet = true
	return tag, nil
}

// RemoveGlobalTag drops the draft tag at index.
func (t *Table) RemoveGlobalTag(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.draft.Tags) {
		return NewValidationError(fmt.Sprintf("tag %d does not exist on the shared draft", index))
	}
	t.draft.Tags = append(t.draft.Tags[:index:index], t.draft.Tags[index+1:]...)
	return nil
}

// Draft returns the shared annotation sent by PatchShared submits.
func (t *Table) Draft() Annotation {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.draft.Clone()
}

// Submit issues exactly one PATCH carrying the selected rows' annotations. Validation failures
// never reach the network. Local state is left unchanged whatever the outcome; the caller
// reloads the collection to see server-confirmed values.
func (t *Table) Submit(ctx context.Context, endpoint string) (SubmitResult, error) {
	if endpoint == "" {
		endpoint = t.opts.endpoint
	}
	if endpoint == "" {
		return SubmitResult{}, NewValidationError("no update endpoint configured")
	}
	if t.opts.patcher == nil {
		return SubmitResult{}, fmt.Errorf("leads: table %s has no patch client", t.opts.name)
	}

	t.mu.Lock()
	ids := t.selectedLocked()
	if len(ids) == 0 {
		t.mu.Unlock()
		return SubmitResult{}, ErrNoSelection
	}
	var payload any
	switch t.opts.variant {
	case PatchPerRow:
		annotations := make(map[string]Annotation, len(ids))
		for _, id := range ids {
			ann, _ := t.annotationLocked(id)
			annotations[id] = ann.Clone()
		}
		payload = perRowPayload(ids, annotations)
	default:
		// A shared body overwrites every id.
		if !t.draftSet {
			t.mu.Unlock()
			return SubmitResult{}, ErrDraftNotApplied
		}
		payload = sharedPayload(ids, t.draft.Clone())
	}
	t.mu.Unlock()

	op := "save " + t.opts.name
	t.opts.logger.Debug("submitting annotations", "endpoint", endpoint, "rows", len(ids), "variant", t.opts.variant)
	resp, err := t.opts.patcher.Patch(ctx, endpoint, payload)
	if err == nil {
		err = checkMutation(op, resp, t.opts.requireFlag)
	}
	telemetry := map[string]any{
		"table":    t.opts.name,
		"endpoint": endpoint,
		"rows":     len(ids),
		"variant":  string(t.opts.variant),
	}
	if err != nil {
		telemetry["error"] = err.Error()
		t.opts.telemetry.Record(ctx, "leads.table.submit_failed", telemetry)
		t.opts.logger.Warn("submit failed", "endpoint", endpoint, "error", err)
		return SubmitResult{}, err
	}
	t.opts.telemetry.Record(ctx, "leads.table.submit", telemetry)
	return SubmitResult{
		Endpoint: endpoint,
		Variant:  t.opts.variant,
		IDs:      ids,
		Message:  resp.Message,
	}, nil
}

func unknownRow(id string) error {
	return NewValidationError(fmt.Sprintf("row %q is not in this table", id))
}
