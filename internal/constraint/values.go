package constraint

import (
	"encoding/json"
	"math"
	"reflect"

	"github.com/mark3labs/apiflow/internal/schema"
)

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toInt(v any) (int, bool) {
	f, ok := toFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// equalValues compares decoded values, treating numbers of any Go type as
// equal when they denote the same quantity.
func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func lengthOf(v any, kinds ...reflect.Kind) (int, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	for _, k := range kinds {
		if rv.Kind() == k {
			return rv.Len(), true
		}
	}
	return 0, false
}

// FromFragment derives the constraints expressed by the validation keywords
// of f, in a fixed order. Keywords without a native variant are ignored.
func FromFragment(f schema.Fragment) []Constraint {
	var out []Constraint
	if values, ok := f["enum"].([]any); ok && len(values) > 0 {
		out = append(out, Enum{Values: append([]any(nil), values...)})
	}
	if p, ok := f["pattern"].(string); ok && p != "" {
		out = append(out, Pattern{Regex: p})
	}
	if n, ok := toFloat(f["minimum"]); ok {
		if excl, _ := f["exclusiveMinimum"].(bool); excl {
			out = append(out, ExclusiveMinimum{Value: n})
		} else {
			out = append(out, Minimum{Value: n})
		}
	} else if n, ok := toFloat(f["exclusiveMinimum"]); ok {
		out = append(out, ExclusiveMinimum{Value: n})
	}
	if n, ok := toFloat(f["maximum"]); ok {
		if excl, _ := f["exclusiveMaximum"].(bool); excl {
			out = append(out, ExclusiveMaximum{Value: n})
		} else {
			out = append(out, Maximum{Value: n})
		}
	} else if n, ok := toFloat(f["exclusiveMaximum"]); ok {
		out = append(out, ExclusiveMaximum{Value: n})
	}
	if n, ok := toFloat(f["multipleOf"]); ok && n != 0 {
		out = append(out, MultipleOf{Value: n})
	}
	ints := []struct {
		key  string
		make func(int) Constraint
	}{
		{"minLength", func(n int) Constraint { return MinLength{Value: n} }},
		{"maxLength", func(n int) Constraint { return MaxLength{Value: n} }},
		{"minItems", func(n int) Constraint { return MinItems{Value: n} }},
		{"maxItems", func(n int) Constraint { return MaxItems{Value: n} }},
		{"minProperties", func(n int) Constraint { return MinProperties{Value: n} }},
		{"maxProperties", func(n int) Constraint { return MaxProperties{Value: n} }},
	}
	for _, entry := range ints {
		if n, ok := toInt(f[entry.key]); ok {
			out = append(out, entry.make(n))
		}
	}
	if unique, ok := f["uniqueItems"].(bool); ok && unique {
		out = append(out, UniqueItems{Enabled: true})
	}
	return out
}
