// Package schema holds the JSON-Schema-shaped fragments produced by parameter
// synthesis and by the type-declaration compiler, plus the pure helpers used to
// merge, copy and rewrite them.
package schema

import (
	"strings"
)

// Fragment is a plain nested JSON-Schema-shaped object. Nested objects are
// Fragments too and lists are []any, so a Fragment round-trips through JSON.
type Fragment = map[string]any

// Well-known keys.
const (
	KeyRef      = "$ref"
	KeyIdentity = "$key"
	KeySequence = "x-sequence"
	KeyTitle    = "x-title"
	KeyFaker    = "x-faker"
	KeyExamples = "x-examples"
	KeyXML      = "x-xml"

	FormatSequence = "sequence"
	DefinitionsRef = "#/definitions/"
)

// Pointer is implemented by values that can stand in for a "$ref" string
// while a fragment is being assembled.
type Pointer interface {
	Pointer() string
}

// Merge returns a new fragment holding dst overlaid by each of srcs in order.
// Keys are assigned shallowly and later fragments win on collision.
func Merge(dst Fragment, srcs ...Fragment) Fragment {
	out := make(Fragment, len(dst))
	for k, v := range dst {
		out[k] = v
	}
	for _, src := range srcs {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

// Clone deep-copies a fragment.
func Clone(f Fragment) Fragment {
	if f == nil {
		return nil
	}
	out, _ := CloneValue(f).(Fragment)
	return out
}

// CloneValue deep-copies maps and slices found in v. Scalars are returned as is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// UnescapePointer decodes a JSON pointer token ("~1" -> "/", "~0" -> "~").
func UnescapePointer(token string) string {
	return strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
}

// RefName returns the unescaped last segment of a reference pointer.
func RefName(ref string) string {
	if i := strings.LastIndex(ref, "/"); i >= 0 {
		ref = ref[i+1:]
	}
	return UnescapePointer(ref)
}

// RefString renders a "$ref" value as a string, whether it is already a
// string or a Pointer.
func RefString(v any) (string, bool) {
	switch ref := v.(type) {
	case string:
		return ref, true
	case Pointer:
		return ref.Pointer(), true
	default:
		return "", false
	}
}

// ReplaceRefs rebuilds v with every "$ref" swapped for a literal placeholder:
// the reference name becomes the default and the type is forced to string.
// v is never modified.
func ReplaceRefs(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val)+1)
		for k, item := range val {
			if k == KeyRef {
				continue
			}
			out[k] = ReplaceRefs(item)
		}
		if raw, ok := val[KeyRef]; ok {
			if ref, ok := RefString(raw); ok {
				out["default"] = RefName(ref)
				out["type"] = "string"
			}
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = ReplaceRefs(item)
		}
		return out
	default:
		return v
	}
}

// SimplifyRefs rebuilds v keeping every "$ref" but rendering it as the
// referenced id string. v is never modified.
func SimplifyRefs(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if k == KeyRef {
				if ref, ok := RefString(item); ok {
					out[k] = ref
					continue
				}
			}
			out[k] = SimplifyRefs(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = SimplifyRefs(item)
		}
		return out
	default:
		return v
	}
}

// isDescriptive reports keys that only document a schema.
func isDescriptive(key string) bool {
	switch key {
	case "title", "description", KeyIdentity:
		return true
	}
	return false
}

// Normalize dissolves a needless single-branch allOf: when the only
// non-descriptive key of f is an allOf with exactly one branch, the branch is
// inlined into a copy of f.
func Normalize(f Fragment) Fragment {
	nonDescriptive := 0
	for k := range f {
		if !isDescriptive(k) {
			nonDescriptive++
		}
	}
	allOf, ok := f["allOf"].([]any)
	if nonDescriptive != 1 || !ok || len(allOf) != 1 {
		return f
	}
	branch, ok := allOf[0].(map[string]any)
	if !ok {
		return f
	}
	out := make(Fragment, len(f)+len(branch))
	for k, v := range f {
		if k != "allOf" {
			out[k] = v
		}
	}
	for k, v := range branch {
		out[k] = v
	}
	return out
}

// Type returns the "type" keyword of f, if it is a string.
func Type(f Fragment) string {
	t, _ := f["type"].(string)
	return t
}

// Identity returns the "$key" of f.
func Identity(f Fragment) string {
	k, _ := f[KeyIdentity].(string)
	return k
}
