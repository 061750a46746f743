package leads

import (
	"slices"
	"strings"

	"github.com/ettle/strcase"
)

// ColumnMode selects which rows contribute column keys.
type ColumnMode int

const (
	// ColumnsFirstRow derives columns from the first row only.
	ColumnsFirstRow ColumnMode = iota
	// ColumnsUnion derives columns from every row, in order of first appearance.
	ColumnsUnion
)

// ColumnOrigin records where a column key came from.
type ColumnOrigin string

const (
	OriginField     ColumnOrigin = "field"
	OriginFieldData ColumnOrigin = "field_data"
)

// Column is a derived table column.
type Column struct {
	Key    string       `json:"key"`
	Label  string       `json:"label"`
	Origin ColumnOrigin `json:"origin"`
}

// DefaultHiddenColumns are never rendered as data columns: identifiers, driver metadata and the
// fields the annotation editor owns.
var DefaultHiddenColumns = []string{FieldID, "__v", FieldFieldData, FieldRemarks1, FieldRemarks2, FieldTags}

// DeriveColumns computes an ordered, de-duplicated column list. Flat keys of a row are sorted
// alphabetically (Go maps carry no order); field_data names keep their list order and follow
// the flat keys of the same row.
func DeriveColumns(sources []RowSource, mode ColumnMode, hidden []string) []Column {
	if len(sources) == 0 {
		return nil
	}
	skip := make(map[string]struct{}, len(hidden))
	for _, key := range hidden {
		skip[key] = struct{}{}
	}
	scan := sources
	if mode == ColumnsFirstRow {
		scan = sources[:1]
	}
	seen := map[string]struct{}{}
	var columns []Column
	add := func(key string, origin ColumnOrigin) {
		if key == "" {
			return
		}
		if _, ok := skip[key]; ok {
			return
		}
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		columns = append(columns, Column{Key: key, Label: ColumnLabel(key), Origin: origin})
	}
	for _, src := range scan {
		if src == nil {
			continue
		}
		switch typed := src.(type) {
		case FieldListSource:
			for _, key := range sortedKeys(typed.Base) {
				add(key, OriginField)
			}
		case FlatSource:
			for _, key := range sortedKeys(Row(typed)) {
				add(key, OriginField)
			}
		}
		for _, name := range src.fieldNames() {
			add(name, OriginFieldData)
		}
	}
	return columns
}

// ColumnLabel turns an API key ("full_name", "createdAt", "phone number") into a header label.
func ColumnLabel(key string) string {
	snake := strcase.ToSnake(key)
	if snake == "" {
		return key
	}
	words := strings.Split(snake, "_")
	for i, word := range words {
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

func sortedKeys(row Row) []string {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
