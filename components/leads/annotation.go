package leads

import (
	"math/rand/v2"
	"strings"
)

// Tag is a freeform label attached to a row. ColorClass is cosmetic.
type Tag struct {
	Text       string `json:"text"`
	ColorClass string `json:"colorClass,omitempty"`
}

// Annotation is the user-editable metadata attached to a row.
type Annotation struct {
	Remark1 string `json:"remarks1"`
	Remark2 string `json:"remarks2"`
	Tags    []Tag  `json:"tags"`
}

// IsZero reports whether nothing has been entered.
func (a Annotation) IsZero() bool {
	return a.Remark1 == "" && a.Remark2 == "" && len(a.Tags) == 0
}

// Clone returns a deep copy.
func (a Annotation) Clone() Annotation {
	out := a
	if a.Tags != nil {
		out.Tags = append([]Tag(nil), a.Tags...)
	}
	return out
}

// TagPalette is the fixed set of color classes tags are drawn from.
var TagPalette = []string{
	"bg-blue-100 text-blue-800",
	"bg-green-100 text-green-800",
	"bg-yellow-100 text-yellow-800",
	"bg-red-100 text-red-800",
	"bg-purple-100 text-purple-800",
	"bg-pink-100 text-pink-800",
}

// ColorPicker chooses a palette entry for a new tag.
type ColorPicker func() string

// RandomColor picks uniformly from TagPalette.
func RandomColor() string {
	return TagPalette[rand.IntN(len(TagPalette))]
}

// seedAnnotation builds the initial annotation from the row's own remarks1/remarks2/tags.
func seedAnnotation(row Row, pick ColorPicker) Annotation {
	ann := Annotation{}
	if v, ok := row[FieldRemarks1].(string); ok {
		ann.Remark1 = v
	}
	if v, ok := row[FieldRemarks2].(string); ok {
		ann.Remark2 = v
	}
	ann.Tags = parseTags(row[FieldTags], pick)
	return ann
}

func parseTags(v any, pick ColorPicker) []Tag {
	switch list := v.(type) {
	case []Tag:
		return append([]Tag(nil), list...)
	case []string:
		out := make([]Tag, 0, len(list))
		for _, text := range list {
			if text = strings.TrimSpace(text); text != "" {
				out = append(out, Tag{Text: text, ColorClass: pick()})
			}
		}
		return out
	case []any:
		out := make([]Tag, 0, len(list))
		for _, item := range list {
			switch tag := item.(type) {
			case string:
				if text := strings.TrimSpace(tag); text != "" {
					out = append(out, Tag{Text: text, ColorClass: pick()})
				}
			case map[string]any:
				text, _ := tag["text"].(string)
				if strings.TrimSpace(text) == "" {
					continue
				}
				color, _ := tag["colorClass"].(string)
				if color == "" {
					color = pick()
				}
				out = append(out, Tag{Text: text, ColorClass: color})
			}
		}
		return out
	default:
		return nil
	}
}
