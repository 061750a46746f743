package leads

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceOfClassifiesRows(t *testing.T) {
	flat := SourceOf(Row{"_id": "1", "name": "Ada"})
	assert.Equal(t, SourceFlat, flat.Kind())

	nested := SourceOf(Row{"_id": "2", "field_data": []any{
		map[string]any{"name": "email", "values": []any{"x@example.com"}},
	}})
	assert.Equal(t, SourceFieldList, nested.Kind())

	empty := SourceOf(Row{"_id": "3", "field_data": []any{}})
	assert.Equal(t, SourceFlat, empty.Kind(), "an empty field_data list is a flat row")
}

func TestNormalizeFieldListRow(t *testing.T) {
	row := Normalize(SourceOf(Row{
		"_id":  "m1",
		"city": "Lagos",
		"field_data": []any{
			map[string]any{"name": "full_name", "values": []any{"Ada Obi"}},
			map[string]any{"name": "city", "values": []any{"Abuja"}},
			map[string]any{"name": "interests", "values": []any{"solar", "wind"}},
			map[string]any{"name": "", "values": []any{"ignored"}},
			map[string]any{"name": "empty"},
		},
	}))
	assert.Equal(t, Row{
		"_id":       "m1",
		"city":      "Lagos",
		"full_name": "Ada Obi",
		"interests": "solar, wind",
		"empty":     "",
	}, row)
}

func TestNormalizeCopiesFlatRow(t *testing.T) {
	raw := Row{"_id": "1", "name": "Ada"}
	row := Normalize(SourceOf(raw))
	row["name"] = "changed"
	assert.Equal(t, "Ada", raw["name"])
	assert.Equal(t, Row{}, Normalize(nil))
}

func TestNormalizeTypedFieldData(t *testing.T) {
	row := Normalize(SourceOf(Row{"id": "x", "field_data": []FieldDatum{{Name: "phone", Values: []string{"+1"}}}}))
	assert.Equal(t, "+1", row["phone"])
	_, hasFieldData := row[FieldFieldData]
	assert.False(t, hasFieldData)
}

func TestDefaultKey(t *testing.T) {
	cases := []struct {
		name string
		row  Row
		key  string
		ok   bool
	}{
		{name: "underscore id", row: Row{"_id": "abc", "id": "ignored"}, key: "abc", ok: true},
		{name: "plain id", row: Row{"id": "def"}, key: "def", ok: true},
		{name: "numeric id", row: Row{"id": 42.0}, key: "42", ok: true},
		{name: "fractional id", row: Row{"id": 1.5}, key: "1.5", ok: true},
		{name: "blank id falls through", row: Row{"_id": "  ", "id": 3}, key: "3", ok: true},
		{name: "missing", row: Row{"name": "x"}, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, ok := DefaultKey(tc.row)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.key, key)
		})
	}
}

func TestCellText(t *testing.T) {
	assert.Equal(t, "", CellText(nil))
	assert.Equal(t, "12", CellText(12.0))
	assert.Equal(t, "a, b", CellText([]any{"a", "b"}))
	assert.Equal(t, "hot, vip", CellText([]any{"hot", map[string]any{"text": "vip"}}))
	assert.Equal(t, "true", CellText(true))
}

func TestDeriveColumnsFirstRowAndUnion(t *testing.T) {
	sources := []RowSource{
		SourceOf(Row{"_id": "1", "name": "Ada", "email": "a@example.com", "remarks1": "x"}),
		SourceOf(Row{"_id": "2", "phone": "123"}),
	}
	first := DeriveColumns(sources, ColumnsFirstRow, DefaultHiddenColumns)
	require.Len(t, first, 2)
	assert.Equal(t, "email", first[0].Key)
	assert.Equal(t, "name", first[1].Key)

	union := DeriveColumns(sources, ColumnsUnion, DefaultHiddenColumns)
	keys := make([]string, len(union))
	for i, col := range union {
		keys[i] = col.Key
	}
	assert.Equal(t, []string{"email", "name", "phone"}, keys)

	assert.Nil(t, DeriveColumns(nil, ColumnsUnion, nil))
}

func TestDeriveColumnsFieldDataPseudoColumns(t *testing.T) {
	sources := []RowSource{SourceOf(Row{
		"_id":          "m1",
		"created_time": "2024-01-01",
		"field_data": []any{
			map[string]any{"name": "full_name", "values": []any{"Ada"}},
			map[string]any{"name": "created_time", "values": []any{"dup"}},
		},
	})}
	columns := DeriveColumns(sources, ColumnsFirstRow, DefaultHiddenColumns)
	assert.Equal(t, []Column{
		{Key: "created_time", Label: "Created Time", Origin: OriginField},
		{Key: "full_name", Label: "Full Name", Origin: OriginFieldData},
	}, columns)
}

func TestColumnLabel(t *testing.T) {
	assert.Equal(t, "Full Name", ColumnLabel("full_name"))
	assert.Equal(t, "Created At", ColumnLabel("createdAt"))
	assert.Equal(t, "Phone Number", ColumnLabel("phone number"))
	assert.Equal(t, "", ColumnLabel(""))
}
