// Package constraint implements the closed set of predicates a parameter can
// carry. Each variant contributes a schema fragment and evaluates values.
package constraint

import (
	"encoding/json"
	"math"
	"reflect"
	"regexp"
	"unicode/utf8"

	"github.com/mark3labs/apiflow/internal/schema"
)

// Kind names a constraint variant.
type Kind string

const (
	KindEnum             Kind = "enum"
	KindPattern          Kind = "pattern"
	KindMinimum          Kind = "minimum"
	KindMaximum          Kind = "maximum"
	KindExclusiveMinimum Kind = "exclusiveMinimum"
	KindExclusiveMaximum Kind = "exclusiveMaximum"
	KindMinLength        Kind = "minLength"
	KindMaxLength        Kind = "maxLength"
	KindMinItems         Kind = "minItems"
	KindMaxItems         Kind = "maxItems"
	KindUniqueItems      Kind = "uniqueItems"
	KindMultipleOf       Kind = "multipleOf"
	KindMinProperties    Kind = "minProperties"
	KindMaxProperties    Kind = "maxProperties"
	KindJSONSchema       Kind = "json-schema"
	KindXMLSchema        Kind = "xml-schema"
)

// Constraint is a predicate that also knows its schema contribution.
type Constraint interface {
	Kind() Kind
	// Schema returns the fragment keys meaningful to this variant only.
	Schema() schema.Fragment
	// Evaluate reports whether v satisfies the predicate.
	Evaluate(v any) bool
}

// Enum accepts one of a fixed list of values.
type Enum struct{ Values []any }

func (c Enum) Kind() Kind { return KindEnum }
func (c Enum) Schema() schema.Fragment {
	return schema.Fragment{"enum": append([]any(nil), c.Values...)}
}
func (c Enum) Evaluate(v any) bool {
	for _, candidate := range c.Values {
		if equalValues(candidate, v) {
			return true
		}
	}
	return false
}

// Pattern accepts strings matching a regular expression.
type Pattern struct{ Regex string }

func (c Pattern) Kind() Kind              { return KindPattern }
func (c Pattern) Schema() schema.Fragment { return schema.Fragment{"pattern": c.Regex} }
func (c Pattern) Evaluate(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	re, err := regexp.Compile(c.Regex)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// Minimum is an inclusive lower bound.
type Minimum struct{ Value float64 }

func (c Minimum) Kind() Kind              { return KindMinimum }
func (c Minimum) Schema() schema.Fragment { return schema.Fragment{"minimum": c.Value} }
func (c Minimum) Evaluate(v any) bool {
	n, ok := toFloat(v)
	return ok && n >= c.Value
}

// Maximum is an inclusive upper bound.
type Maximum struct{ Value float64 }

func (c Maximum) Kind() Kind              { return KindMaximum }
func (c Maximum) Schema() schema.Fragment { return schema.Fragment{"maximum": c.Value} }
func (c Maximum) Evaluate(v any) bool {
	n, ok := toFloat(v)
	return ok && n <= c.Value
}

// ExclusiveMinimum is a strict lower bound. Its fragment carries both the
// bound and the draft-4 boolean flag.
type ExclusiveMinimum struct{ Value float64 }

func (c ExclusiveMinimum) Kind() Kind { return KindExclusiveMinimum }
func (c ExclusiveMinimum) Schema() schema.Fragment {
	return schema.Fragment{"minimum": c.Value, "exclusiveMinimum": true}
}
func (c ExclusiveMinimum) Evaluate(v any) bool {
	n, ok := toFloat(v)
	return ok && n > c.Value
}

// ExclusiveMaximum is a strict upper bound.
type ExclusiveMaximum struct{ Value float64 }

func (c ExclusiveMaximum) Kind() Kind { return KindExclusiveMaximum }
func (c ExclusiveMaximum) Schema() schema.Fragment {
	return schema.Fragment{"maximum": c.Value, "exclusiveMaximum": true}
}
func (c ExclusiveMaximum) Evaluate(v any) bool {
	n, ok := toFloat(v)
	return ok && n < c.Value
}

// MinLength bounds the rune count of a string from below.
type MinLength struct{ Value int }

func (c MinLength) Kind() Kind              { return KindMinLength }
func (c MinLength) Schema() schema.Fragment { return schema.Fragment{"minLength": c.Value} }
func (c MinLength) Evaluate(v any) bool {
	s, ok := v.(string)
	return ok && utf8.RuneCountInString(s) >= c.Value
}

// MaxLength bounds the rune count of a string from above.
type MaxLength struct{ Value int }

func (c MaxLength) Kind() Kind              { return KindMaxLength }
func (c MaxLength) Schema() schema.Fragment { return schema.Fragment{"maxLength": c.Value} }
func (c MaxLength) Evaluate(v any) bool {
	s, ok := v.(string)
	return ok && utf8.RuneCountInString(s) <= c.Value
}

// MinItems bounds the length of a list from below.
type MinItems struct{ Value int }

func (c MinItems) Kind() Kind              { return KindMinItems }
func (c MinItems) Schema() schema.Fragment { return schema.Fragment{"minItems": c.Value} }
func (c MinItems) Evaluate(v any) bool {
	n, ok := lengthOf(v, reflect.Slice, reflect.Array)
	return ok && n >= c.Value
}

// MaxItems bounds the length of a list from above.
type MaxItems struct{ Value int }

func (c MaxItems) Kind() Kind              { return KindMaxItems }
func (c MaxItems) Schema() schema.Fragment { return schema.Fragment{"maxItems": c.Value} }
func (c MaxItems) Evaluate(v any) bool {
	n, ok := lengthOf(v, reflect.Slice, reflect.Array)
	return ok && n <= c.Value
}

// UniqueItems requires list entries to be pairwise distinct when Enabled.
type UniqueItems struct{ Enabled bool }

func (c UniqueItems) Kind() Kind              { return KindUniqueItems }
func (c UniqueItems) Schema() schema.Fragment { return schema.Fragment{"uniqueItems": c.Enabled} }
func (c UniqueItems) Evaluate(v any) bool {
	if !c.Enabled {
		return true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return false
	}
	seen := make(map[string]struct{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		key, err := json.Marshal(rv.Index(i).Interface())
		if err != nil {
			return false
		}
		seen[string(key)] = struct{}{}
	}
	return len(seen) == rv.Len()
}

// MultipleOf requires numbers to be an exact multiple of Value.
type MultipleOf struct{ Value float64 }

func (c MultipleOf) Kind() Kind              { return KindMultipleOf }
func (c MultipleOf) Schema() schema.Fragment { return schema.Fragment{"multipleOf": c.Value} }
func (c MultipleOf) Evaluate(v any) bool {
	n, ok := toFloat(v)
	if !ok || c.Value == 0 {
		return false
	}
	return math.Mod(n, c.Value) == 0
}

// MinProperties bounds the number of keys of an object from below.
type MinProperties struct{ Value int }

func (c MinProperties) Kind() Kind { return KindMinProperties }
func (c MinProperties) Schema() schema.Fragment {
	return schema.Fragment{"minProperties": c.Value}
}
func (c MinProperties) Evaluate(v any) bool {
	n, ok := lengthOf(v, reflect.Map)
	return ok && n >= c.Value
}

// MaxProperties bounds the number of keys of an object from above.
type MaxProperties struct{ Value int }

func (c MaxProperties) Kind() Kind { return KindMaxProperties }
func (c MaxProperties) Schema() schema.Fragment {
	return schema.Fragment{"maxProperties": c.Value}
}
func (c MaxProperties) Evaluate(v any) bool {
	n, ok := lengthOf(v, reflect.Map)
	return ok && n <= c.Value
}

// JSONSchema passes an opaque schema through. Nested schemas are not
// validated natively, so Evaluate always succeeds.
type JSONSchema struct{ Fragment schema.Fragment }

func (c JSONSchema) Kind() Kind              { return KindJSONSchema }
func (c JSONSchema) Schema() schema.Fragment { return schema.Clone(c.Fragment) }
func (c JSONSchema) Evaluate(any) bool       { return true }

// XMLSchema passes an opaque XML schema document through.
type XMLSchema struct{ Document string }

func (c XMLSchema) Kind() Kind { return KindXMLSchema }
func (c XMLSchema) Schema() schema.Fragment {
	return schema.Fragment{schema.KeyXML: c.Document}
}
func (c XMLSchema) Evaluate(any) bool { return true }

// MergeAll folds the fragments of cs into one, later constraints winning on
// key collisions.
func MergeAll(cs []Constraint) schema.Fragment {
	out := schema.Fragment{}
	for _, c := range cs {
		if c == nil {
			continue
		}
		for k, v := range c.Schema() {
			out[k] = v
		}
	}
	return out
}

// All reports whether every constraint accepts v. An empty list accepts all.
func All(cs []Constraint, v any) bool {
	for _, c := range cs {
		if c != nil && !c.Evaluate(v) {
			return false
		}
	}
	return true
}
