package ir

import (
	"strings"

	"github.com/mark3labs/apiflow/internal/constraint"
	"github.com/mark3labs/apiflow/internal/schema"
)

// composite keywords have no native constraint variant; schemas using them
// travel as opaque JSON-schema constraints.
var composite = []string{"properties", "additionalProperties", "allOf", "anyOf", "oneOf", "not"}

// FromSchema builds the parameter keyed key that f describes: a
// reference-valued parameter for a "$ref" into the constraint store, an
// array parameter carrying its item parameter, or a simple parameter with
// constraints derived from the validation keywords.
func FromSchema(key string, f schema.Fragment) Parameter {
	p := Parameter{Key: key, Name: key}
	if desc, _ := f["description"].(string); desc != "" {
		p.Description = strings.TrimSpace(desc)
	}
	if ref, ok := f[schema.KeyRef].(string); ok {
		p.Value = RefValued{Ref: Reference{Kind: KindConstraint, ID: ref}}
		return p
	}
	p.Type = schema.Type(f)
	p.Format, _ = f["format"].(string)
	p.Default = schema.CloneValue(f["default"])

	if p.Type == "array" {
		if items, ok := f["items"].(map[string]any); ok {
			item := FromSchema("", items)
			p.Value = ArrayOf{Items: &item}
		}
		p.Constraints = constraint.FromFragment(f)
		return p
	}
	if p.Type == "object" || hasAny(f, composite) {
		opaque := schema.Clone(f)
		for _, k := range []string{"type", "default", "description", "format", schema.KeyIdentity} {
			delete(opaque, k)
		}
		if len(opaque) > 0 {
			p.Constraints = []constraint.Constraint{constraint.JSONSchema{Fragment: opaque}}
		}
		return p
	}
	p.Constraints = constraint.FromFragment(f)
	return p
}

func hasAny(f schema.Fragment, keys []string) bool {
	for _, k := range keys {
		if _, ok := f[k]; ok {
			return true
		}
	}
	return false
}

// ContentTypeContext is the header condition under which a body of the given
// media type is usable.
func ContentTypeContext(mime string, usedIn UsedIn) Parameter {
	return Parameter{
		Key:         "Content-Type",
		Name:        "Content-Type",
		In:          LocationHeader,
		UsedIn:      usedIn,
		Type:        "string",
		Default:     mime,
		Constraints: []constraint.Constraint{constraint.Enum{Values: []any{mime}}},
	}
}
