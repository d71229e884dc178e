package raml

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apiflow/internal/typedecl"
)

var builtins = map[string]typedecl.Kind{
	"object":        typedecl.KindObject,
	"array":         typedecl.KindArray,
	"string":        typedecl.KindString,
	"number":        typedecl.KindNumber,
	"integer":       typedecl.KindInteger,
	"boolean":       typedecl.KindBoolean,
	"date-only":     typedecl.KindDateOnly,
	"time-only":     typedecl.KindTimeOnly,
	"datetime-only": typedecl.KindDateTimeOnly,
	"datetime":      typedecl.KindDateTime,
	"file":          typedecl.KindFile,
	"nil":           typedecl.KindNil,
	"any":           typedecl.KindAny,
}

const maxKindDepth = 16

// types translates RAML type declarations into typedecl Nodes. decls holds
// every named declaration by qualified name so that kinds can be followed
// through user-defined types.
type types struct {
	decls map[string]*yaml.Node
}

func newTypes() *types {
	return &types{decls: map[string]*yaml.Node{}}
}

// declare registers the declarations of a types (or schemas) mapping under
// namespace.
func (t *types) declare(namespace string, n *yaml.Node) {
	for _, e := range entries(n) {
		t.decls[qualify(namespace, e.key)] = e.value
	}
}

// library translates the declarations of a types mapping.
func (t *types) library(namespace string, n *yaml.Node) typedecl.Library {
	lib := typedecl.Library{Namespace: namespace}
	for _, e := range entries(n) {
		lib.Types = append(lib.Types, t.node(e.key, namespace, e.value))
	}
	return lib
}

func qualify(namespace, name string) string {
	if namespace == "" || strings.Contains(name, ".") {
		return name
	}
	return namespace + "." + name
}

// node translates one declaration. A scalar is a type expression, a sequence
// lists supertypes and a mapping is a full declaration.
func (t *types) node(name, namespace string, n *yaml.Node) *typedecl.Node {
	n = content(n)
	out := &typedecl.Node{Name: name, Required: true}
	switch {
	case isNull(n):
	case n.Kind == yaml.ScalarNode, n.Kind == yaml.SequenceNode:
		out.Types = scalars(n)
	case n.Kind == yaml.MappingNode:
		t.mapping(out, namespace, n)
	}
	if len(out.Types) == 0 {
		out.Types = []string{implicitType(n)}
	}
	out.Kind = t.kind(out.Types, namespace, 0)
	return out
}

func (t *types) mapping(out *typedecl.Node, namespace string, n *yaml.Node) {
	typ := lookup(n, "type")
	if typ == nil {
		typ = lookup(n, "schema")
	}
	if typ != nil && !isMapping(typ) {
		out.Types = scalars(typ)
	}
	out.DisplayName = scalar(lookup(n, "displayName"))
	out.Description = strings.TrimSpace(scalar(lookup(n, "description")))
	out.Default = decode(lookup(n, "default"))
	if r := lookup(n, "required"); r != nil {
		out.Required = r.Value == "true"
	}
	if ex := lookup(n, "example"); ex != nil {
		out.Examples = append(out.Examples, exampleValue(ex))
	}
	for _, e := range entries(lookup(n, "examples")) {
		out.Examples = append(out.Examples, exampleValue(e.value))
	}

	for _, e := range entries(lookup(n, "properties")) {
		key, optional := strings.CutSuffix(e.key, "?")
		prop := t.node(key, namespace, e.value)
		if optional && lookup(e.value, "required") == nil {
			prop.Required = false
		}
		out.Properties = append(out.Properties, prop)
	}
	if items := lookup(n, "items"); items != nil {
		if isMapping(items) {
			out.ItemNode = t.node("", namespace, items)
		} else {
			out.Items = scalars(items)
		}
	}
	out.Facets = facets(n)
}

// implicitType is the base type of a declaration without a type facet.
func implicitType(n *yaml.Node) string {
	switch {
	case lookup(n, "properties") != nil:
		return "object"
	case lookup(n, "items") != nil:
		return "array"
	}
	return "string"
}

var exampleKeys = map[string]bool{"value": true, "displayName": true, "description": true, "strict": true}

// exampleValue unwraps the value of an example given in its long form.
func exampleValue(n *yaml.Node) any {
	if v := lookup(n, "value"); v != nil {
		long := true
		for _, e := range entries(n) {
			long = long && (exampleKeys[e.key] || strings.HasPrefix(e.key, "("))
		}
		if long {
			return decode(v)
		}
	}
	return decode(n)
}

// kind resolves the kind of a list of supertypes. Several supertypes are
// only allowed for objects.
func (t *types) kind(exprs []string, namespace string, depth int) typedecl.Kind {
	if len(exprs) > 1 {
		for _, e := range exprs {
			if k := t.kindOf(e, namespace, depth); k != typedecl.KindExternal && k != typedecl.KindAny {
				return k
			}
		}
		return typedecl.KindObject
	}
	if len(exprs) == 0 {
		return typedecl.KindString
	}
	return t.kindOf(exprs[0], namespace, depth)
}

func (t *types) kindOf(expr, namespace string, depth int) typedecl.Kind {
	e := strings.TrimSpace(expr)
	switch {
	case strings.HasPrefix(e, "{"), strings.HasPrefix(e, "<"):
		return typedecl.KindExternal
	case hasTopLevelUnion(e):
		return typedecl.KindUnion
	case strings.HasSuffix(e, "[]"):
		return typedecl.KindArray
	case strings.HasPrefix(e, "(") && strings.HasSuffix(e, ")"):
		return t.kindOf(e[1:len(e)-1], namespace, depth)
	}
	if k, ok := builtins[e]; ok {
		return k
	}
	decl, ok := t.decls[qualify(namespace, e)]
	if !ok {
		decl, ok = t.decls[e]
	}
	if !ok || depth >= maxKindDepth {
		return typedecl.KindExternal
	}
	if ns, _, found := strings.Cut(e, "."); found {
		namespace = ns
	}
	return t.kind(declaredTypes(decl), namespace, depth+1)
}

// declaredTypes reads the supertypes of a declaration without translating it.
func declaredTypes(n *yaml.Node) []string {
	n = content(n)
	if isNull(n) {
		return []string{"string"}
	}
	if n.Kind != yaml.MappingNode {
		return scalars(n)
	}
	typ := lookup(n, "type")
	if typ == nil {
		typ = lookup(n, "schema")
	}
	if typ != nil && !isMapping(typ) {
		if ts := scalars(typ); len(ts) > 0 {
			return ts
		}
	}
	return []string{implicitType(n)}
}

func hasTopLevelUnion(e string) bool {
	depth := 0
	for _, r := range e {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case '|':
			if depth == 0 {
				return true
			}
		}
	}
	return false
}

func facets(n *yaml.Node) typedecl.Facets {
	var fc typedecl.Facets
	fc.MinProperties = intFacet(n, "minProperties")
	fc.MaxProperties = intFacet(n, "maxProperties")
	fc.AdditionalProperties = boolFacet(n, "additionalProperties")
	fc.Discriminator = scalar(lookup(n, "discriminator"))
	fc.DiscriminatorValue = decode(lookup(n, "discriminatorValue"))
	fc.UniqueItems = boolFacet(n, "uniqueItems")
	fc.MinItems = intFacet(n, "minItems")
	fc.MaxItems = intFacet(n, "maxItems")
	fc.MinLength = intFacet(n, "minLength")
	fc.MaxLength = intFacet(n, "maxLength")
	fc.Pattern = scalar(lookup(n, "pattern"))
	fc.Minimum = floatFacet(n, "minimum")
	fc.Maximum = floatFacet(n, "maximum")
	fc.MultipleOf = floatFacet(n, "multipleOf")
	if enum, ok := decode(lookup(n, "enum")).([]any); ok {
		fc.Enum = enum
	}
	return fc
}

func intFacet(n *yaml.Node, key string) *int {
	v, err := strconv.Atoi(scalar(lookup(n, key)))
	if err != nil {
		return nil
	}
	return &v
}

func floatFacet(n *yaml.Node, key string) *float64 {
	v, err := strconv.ParseFloat(scalar(lookup(n, key)), 64)
	if err != nil {
		return nil
	}
	return &v
}

func boolFacet(n *yaml.Node, key string) *bool {
	v, err := strconv.ParseBool(scalar(lookup(n, key)))
	if err != nil {
		return nil
	}
	return &v
}
