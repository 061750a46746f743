package leads

// TableView is a render-ready snapshot of a Table.
type TableView struct {
	Name          string       `json:"name"`
	Columns       []Column     `json:"columns"`
	Rows          []RowView    `json:"rows"`
	SelectedCount int          `json:"selected_count"`
	Rejected      int          `json:"rejected"`
	Draft         Annotation   `json:"draft"`
	Variant       PatchVariant `json:"variant"`
	Endpoint      string       `json:"endpoint,omitempty"`
}

// RowView is one rendered row.
type RowView struct {
	ID         string     `json:"id"`
	Cells      []string   `json:"cells"`
	Selected   bool       `json:"selected"`
	Annotation Annotation `json:"annotation"`
}

// View renders the table. Annotations are seeded for every row so the editor shows server
// values.
func (t *Table) View() TableView {
	t.mu.Lock()
	defer t.mu.Unlock()
	view := TableView{
		Name:     t.opts.name,
		Columns:  append([]Column(nil), t.columns...),
		Rows:     make([]RowView, 0, len(t.keys)),
		Rejected: len(t.rejected),
		Draft:    t.draft.Clone(),
		Variant:  t.opts.variant,
		Endpoint: t.opts.endpoint,
	}
	for i, key := range t.keys {
		cells := make([]string, len(t.columns))
		for c, col := range t.columns {
			cells[c] = CellText(t.rows[i][col.Key])
		}
		ann, _ := t.annotationLocked(key)
		selected := t.selected[key]
		if selected {
			view.SelectedCount++
		}
		view.Rows = append(view.Rows, RowView{
			ID:         key,
			Cells:      cells,
			Selected:   selected,
			Annotation: ann.Clone(),
		})
	}
	return view
}
