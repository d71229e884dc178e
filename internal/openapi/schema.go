package openapi

import (
	"encoding/json"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/apiflow/internal/schema"
)

const componentSchemasRef = "#/components/schemas/"

// fragmentOf renders a schema as a fragment whose component references point
// into the definitions table. It returns nil when the schema cannot be
// encoded.
func fragmentOf(ref *openapi3.SchemaRef) schema.Fragment {
	if ref == nil {
		return nil
	}
	raw, err := json.Marshal(ref)
	if err != nil {
		return nil
	}
	var f schema.Fragment
	if err := json.Unmarshal(raw, &f); err != nil || f == nil {
		return nil
	}
	out, _ := localRefs(f).(schema.Fragment)
	return out
}

// localRefs rebuilds v with every "$ref" rewritten by localRef.
func localRefs(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(schema.Fragment, len(t))
		for k, val := range t {
			if s, ok := val.(string); ok && k == schema.KeyRef {
				out[k] = localRef(s)
				continue
			}
			out[k] = localRefs(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = localRefs(val)
		}
		return out
	default:
		return v
	}
}

// localRef drops the document part of a reference and maps component
// schemas onto "#/definitions/".
func localRef(ref string) string {
	if i := strings.Index(ref, "#/"); i > 0 {
		ref = ref[i:]
	}
	if name, ok := strings.CutPrefix(ref, componentSchemasRef); ok {
		return schema.DefinitionsRef + name
	}
	return ref
}
