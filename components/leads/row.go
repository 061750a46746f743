package leads

import (
	"fmt"
	"strings"
)

// Row is one record from a backend collection.
type Row map[string]any

// FieldDatum is a single {name, values} pair from a Meta lead's field_data list.
type FieldDatum struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// SourceKind tags the shape a Row arrived in.
type SourceKind int

const (
	SourceFlat SourceKind = iota
	SourceFieldList
)

// Keys the normalizer and table treat specially.
const (
	FieldID        = "_id"
	FieldAltID     = "id"
	FieldFieldData = "field_data"
	FieldRemarks1  = "remarks1"
	FieldRemarks2  = "remarks2"
	FieldTags      = "tags"
)

// RowSource is the tagged union over raw row shapes. Only FlatSource and FieldListSource
// implement it.
type RowSource interface {
	Kind() SourceKind
	normalize() Row
	fieldNames() []string
}

// FlatSource is a row whose fields are plain keys.
type FlatSource Row

func (FlatSource) Kind() SourceKind { return SourceFlat }

func (s FlatSource) normalize() Row {
	out := make(Row, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (FlatSource) fieldNames() []string { return nil }

// FieldListSource is a row that nests its metadata in a field_data list.
type FieldListSource struct {
	Base   Row
	Fields []FieldDatum
}

func (FieldListSource) Kind() SourceKind { return SourceFieldList }

func (s FieldListSource) normalize() Row {
	out := make(Row, len(s.Base)+len(s.Fields))
	for k, v := range s.Base {
		if k == FieldFieldData {
			continue
		}
		out[k] = v
	}
	for _, field := range s.Fields {
		name := strings.TrimSpace(field.Name)
		if name == "" {
			continue
		}
		if _, exists := out[name]; exists {
			continue
		}
		out[name] = joinValues(field.Values)
	}
	return out
}

func (s FieldListSource) fieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, field := range s.Fields {
		if name := strings.TrimSpace(field.Name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// SourceOf classifies a raw row. Rows carrying a non-empty field_data list become
// FieldListSource; everything else is flat.
func SourceOf(raw Row) RowSource {
	fields, ok := parseFieldData(raw[FieldFieldData])
	if !ok {
		return FlatSource(raw)
	}
	return FieldListSource{Base: raw, Fields: fields}
}

// Normalize produces the uniform flat view of a row source.
func Normalize(src RowSource) Row {
	if src == nil {
		return Row{}
	}
	return src.normalize()
}

// NormalizeRows classifies and normalizes a whole collection.
func NormalizeRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = Normalize(SourceOf(row))
	}
	return out
}

func parseFieldData(v any) ([]FieldDatum, bool) {
	switch list := v.(type) {
	case []FieldDatum:
		return list, len(list) > 0
	case []any:
		out := make([]FieldDatum, 0, len(list))
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := m["name"].(string)
			out = append(out, FieldDatum{Name: name, Values: stringList(m["values"])})
		}
		return out, len(out) > 0
	case []map[string]any:
		out := make([]FieldDatum, 0, len(list))
		for _, m := range list {
			name, _ := m["name"].(string)
			out = append(out, FieldDatum{Name: name, Values: stringList(m["values"])})
		}
		return out, len(out) > 0
	default:
		return nil, false
	}
}

func stringList(v any) []string {
	switch val := v.(type) {
	case []string:
		return append([]string(nil), val...)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		return []string{val}
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(val)}
	}
}

func joinValues(values []string) any {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return values[0]
	default:
		return strings.Join(values, ", ")
	}
}

// KeyFunc extracts the stable identifier of a normalized row.
type KeyFunc func(row Row) (string, bool)

// DefaultKey looks at _id, then id. Numeric ids are formatted without exponent.
func DefaultKey(row Row) (string, bool) {
	for _, field := range []string{FieldID, FieldAltID} {
		if key, ok := keyString(row[field]); ok {
			return key, true
		}
	}
	return "", false
}

// FieldKey builds a KeyFunc reading a single field.
func FieldKey(field string) KeyFunc {
	return func(row Row) (string, bool) {
		return keyString(row[field])
	}
}

func keyString(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		val = strings.TrimSpace(val)
		return val, val != ""
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val)), true
		}
		return fmt.Sprintf("%g", val), true
	case int:
		return fmt.Sprintf("%d", val), true
	case int64:
		return fmt.Sprintf("%d", val), true
	case fmt.Stringer:
		s := strings.TrimSpace(val.String())
		return s, s != ""
	default:
		return "", false
	}
}

func positionalKey(index int) string {
	return fmt.Sprintf("#%d", index)
}

// CellText renders a normalized value for table display.
func CellText(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []string:
		return strings.Join(val, ", ")
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, CellText(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		if text, ok := val["text"].(string); ok {
			return text
		}
		return fmt.Sprint(val)
	case float64:
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprint(val)
	}
}
