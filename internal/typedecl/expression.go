package typedecl

import (
	"regexp"
	"strings"

	"github.com/mark3labs/apiflow/internal/schema"
)

var itemTypeExpr = regexp.MustCompile(`^\(?(.*?)\)?\[\]$`)

var jsonTypes = map[string]bool{
	"array":   true,
	"object":  true,
	"number":  true,
	"integer": true,
	"string":  true,
	"boolean": true,
}

// auxiliary describes the shared definition a date, time or file type refers
// to instead of inlining its pattern.
type auxiliary struct {
	name        string
	pattern     string
	description string
}

const (
	datePattern = `[0-9]{4}-(0[1-9]|1[0-2])-(0[1-9]|[12][0-9]|3[01])`
	timePattern = `([01][0-9]|20|21|22|23):[0-5][0-9]:([0-5][0-9]|60)(.[0-9]+)?`
)

var auxiliaries = map[Kind]auxiliary{
	KindDateOnly:     {"$DateOnly", "^" + datePattern + "$", "full-date as defined in RFC#3339"},
	KindTimeOnly:     {"$TimeOnly", "^" + timePattern + "$", "full-time as defined in RFC#3339"},
	KindDateTimeOnly: {"$DateTimeOnly", "^" + datePattern + "T" + timePattern + "$", "full-time as defined in RFC#3339"},
	KindDateTime:     {"$DateTime", "", "datetime"},
	KindFile:         {"$File", "^[^\u0000]*\u0000$", "file"},
}

// scope is the state threaded through one compile call: the namespace that
// qualifies reference names and the auxiliary schemas collected on the way.
type scope struct {
	namespace string
	aux       []schema.Fragment
	seen      map[string]bool
}

func newScope(namespace string) *scope {
	return &scope{namespace: namespace, seen: map[string]bool{}}
}

func (s *scope) qualify(name string) string {
	if s.namespace == "" {
		return name
	}
	return s.namespace + "." + name
}

// ref points at a named type. Names that already carry a namespace are
// kept as they are.
func (s *scope) ref(name string) schema.Fragment {
	if !strings.Contains(name, ".") {
		name = s.qualify(name)
	}
	return schema.Fragment{schema.KeyRef: schema.DefinitionsRef + name}
}

// auxiliary returns the primary schema of a date, time or file type and
// records its shared definition.
func (s *scope) auxiliary(k Kind) schema.Fragment {
	a := auxiliaries[k]
	key := s.qualify(a.name)
	if !s.seen[key] {
		s.seen[key] = true
		def := schema.Fragment{
			schema.KeyIdentity: key,
			"type":             "string",
			"description":      a.description,
		}
		if a.pattern != "" {
			def["pattern"] = a.pattern
		}
		s.aux = append(s.aux, def)
	}
	return schema.Fragment{
		"type":        "string",
		schema.KeyRef: schema.DefinitionsRef + key,
	}
}

// fromType resolves one type expression.
func (s *scope) fromType(expr string) schema.Fragment {
	t := ungroup(strings.TrimSpace(expr))
	if jsonTypes[t] {
		return schema.Fragment{"type": t}
	}
	if t == "nil" {
		return schema.Fragment{"type": "null"}
	}
	if t == "any" {
		return schema.Fragment{}
	}
	if _, ok := auxiliaries[Kind(t)]; ok {
		return s.auxiliary(Kind(t))
	}
	if union, ok := s.fromUnion(t); ok {
		return union
	}
	if items, ok := s.fromImplicitArray(t); ok {
		return items
	}
	return s.ref(t)
}

func (s *scope) fromImplicitArray(t string) (schema.Fragment, bool) {
	inner, ok := strings.CutSuffix(t, "[]")
	if !ok || strings.TrimSpace(inner) == "" {
		return nil, false
	}
	return schema.Fragment{"type": "array", "items": s.fromType(inner)}, true
}

func (s *scope) fromUnion(t string) (schema.Fragment, bool) {
	branches := splitUnion(t)
	if len(branches) < 2 {
		return nil, false
	}
	anyOf := make([]any, len(branches))
	for i, b := range branches {
		anyOf[i] = s.fromType(b)
	}
	return schema.Fragment{"anyOf": anyOf}, true
}

// splitUnion splits t on the | separators outside parentheses.
func splitUnion(t string) []string {
	var (
		branches []string
		depth    int
		start    int
	)
	add := func(part string) {
		if part = strings.TrimSpace(part); part != "" {
			branches = append(branches, part)
		}
	}
	for i, r := range t {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '|':
			if depth == 0 {
				add(t[start:i])
				start = i + 1
			}
		}
	}
	add(t[start:])
	return branches
}

// ungroup strips parentheses that enclose the whole expression.
func ungroup(t string) string {
	for strings.HasPrefix(t, "(") && strings.HasSuffix(t, ")") && closes(t) == len(t)-1 {
		t = strings.TrimSpace(t[1 : len(t)-1])
	}
	return t
}

// closes returns the index of the parenthesis matching the one at t[0].
func closes(t string) int {
	depth := 0
	for i, r := range t {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// itemTypes extracts the item expressions of implicit array types.
func itemTypes(types []string) []string {
	var out []string
	for _, t := range types {
		if m := itemTypeExpr.FindStringSubmatch(strings.TrimSpace(t)); m != nil {
			out = append(out, m[1])
		}
	}
	return out
}
