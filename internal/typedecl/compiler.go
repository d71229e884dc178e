package typedecl

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/mark3labs/apiflow/internal/schema"
)

// Compiler turns Nodes into schema fragments. A Compiler holds no state
// between calls and may be shared by concurrent compilations.
type Compiler struct {
	logger *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used to report conversion quirks.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCompiler returns a Compiler. Quirks are logged at warn level to stderr
// unless another logger is given.
func NewCompiler(opts ...Option) *Compiler {
	c := &Compiler{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile converts n into its primary schema followed by the auxiliary
// schemas it depends on. Reference names are qualified with namespace. Every
// returned schema carries its identity under "$key" when it has one.
func (c *Compiler) Compile(n *Node, namespace string) []schema.Fragment {
	s := newScope(namespace)
	primary, deps := c.compile(s, n)
	out := make([]schema.Fragment, 0, 1+len(deps)+len(s.aux))
	out = append(out, primary)
	out = append(out, deps...)
	return append(out, s.aux...)
}

// Define compiles every type of lib into defs.
func (c *Compiler) Define(defs *schema.Definitions, lib Library) {
	for _, n := range lib.Types {
		for _, f := range c.Compile(n, lib.Namespace) {
			if !defs.Add(f) {
				c.logger.Warn("skipping definition without a name",
					slog.String("namespace", lib.Namespace),
					slog.String("type", n.Name))
			}
		}
	}
}

// Definitions compiles libs, in order, into a fresh definitions table.
func (c *Compiler) Definitions(libs ...Library) *schema.Definitions {
	defs := schema.NewDefinitions()
	for _, lib := range libs {
		c.Define(defs, lib)
	}
	return defs
}

func (c *Compiler) compile(s *scope, n *Node) (schema.Fragment, []schema.Fragment) {
	var (
		f    schema.Fragment
		deps []schema.Fragment
	)
	switch n.Kind {
	case KindExternal:
		f, deps = c.external(s, n)
	case KindObject:
		f, deps = c.object(s, n)
	case KindArray:
		f, deps = c.array(s, n)
	case KindUnion, KindBoolean:
		f = c.inherit(s, n.Types)
	case KindString:
		f = c.inherit(s, n.Types)
		stringFacets(f, n.Facets)
	case KindNumber, KindInteger:
		f = c.inherit(s, n.Types)
		numberFacets(f, n.Facets)
	case KindDateOnly, KindTimeOnly, KindDateTimeOnly, KindDateTime, KindFile:
		f = s.auxiliary(n.Kind)
	case KindNil:
		f = schema.Fragment{"type": "null"}
	case KindAny:
		f = schema.Fragment{}
	default:
		c.logger.Warn("unrecognized type declaration", slog.String("type", n.Name), slog.String("kind", string(n.Kind)))
		f = schema.Fragment{}
	}
	if n.Default != nil {
		f["default"] = n.Default
	}
	describe(f, n, s)
	return f, deps
}

// external handles declarations whose type is a reference or an embedded
// schema literal.
func (c *Compiler) external(s *scope, n *Node) (schema.Fragment, []schema.Fragment) {
	if len(n.Types) == 0 {
		return schema.Fragment{}, nil
	}
	t := strings.TrimSpace(n.Types[0])
	switch {
	case isMaybeJSON(t):
		return c.jsonLiteral(n, t)
	case isMaybeXML(t):
		return schema.Fragment{schema.KeyXML: t}, nil
	case t == "any":
		return schema.Fragment{}, nil
	}
	return s.ref(t), nil
}

// jsonLiteral parses an embedded JSON schema, hoisting its definitions as
// separate schemas keyed by their names.
func (c *Compiler) jsonLiteral(n *Node, literal string) (schema.Fragment, []schema.Fragment) {
	var f schema.Fragment
	if err := json.Unmarshal([]byte(literal), &f); err != nil {
		c.logger.Warn("invalid JSON schema literal", slog.String("type", n.Name), slog.Any("error", err))
		return schema.Fragment{}, nil
	}
	defs, ok := f["definitions"].(map[string]any)
	if !ok {
		return f, nil
	}
	delete(f, "definitions")
	names := sortedKeys(defs)
	others := make([]schema.Fragment, 0, len(names))
	for _, name := range names {
		def, ok := defs[name].(map[string]any)
		if !ok {
			continue
		}
		def[schema.KeyIdentity] = name
		others = append(others, def)
	}
	return f, others
}

func (c *Compiler) object(s *scope, n *Node) (schema.Fragment, []schema.Fragment) {
	f := c.inherit(s, n.Types)
	objectFacets(f, n.Facets)
	if len(n.Properties) == 0 {
		return f, nil
	}
	props := make(schema.Fragment, len(n.Properties))
	var (
		required []any
		deps     []schema.Fragment
	)
	for _, prop := range n.Properties {
		pf, pdeps := c.compile(s, prop)
		pf = schema.Normalize(pf)
		delete(pf, schema.KeyIdentity)
		props[prop.Name] = pf
		if prop.Required {
			required = append(required, prop.Name)
		}
		deps = append(deps, pdeps...)
	}
	f["properties"] = props
	if len(required) > 0 {
		f["required"] = required
	}
	return f, deps
}

func (c *Compiler) array(s *scope, n *Node) (schema.Fragment, []schema.Fragment) {
	f := c.inherit(s, n.Types)
	arrayFacets(f, n.Facets)
	if n.ItemNode != nil {
		items, deps := c.compile(s, n.ItemNode)
		items = schema.Normalize(items)
		delete(items, schema.KeyIdentity)
		if len(items) > 0 {
			f["items"] = items
		}
		return f, deps
	}
	types := n.Items
	if len(types) == 0 {
		types = itemTypes(n.Types)
	}
	if items := schema.Normalize(c.inherit(s, types)); len(items) > 0 {
		f["items"] = items
	}
	return f, nil
}

// inherit resolves the supertypes of a declaration. A single concrete JSON
// type is hoisted next to the remaining branches under allOf; without one,
// every branch goes under allOf.
func (c *Compiler) inherit(s *scope, types []string) schema.Fragment {
	if len(types) == 0 {
		return schema.Fragment{}
	}
	branches := make([]schema.Fragment, len(types))
	var concrete []schema.Fragment
	for i, t := range types {
		branches[i] = s.fromType(t)
		if schema.Type(branches[i]) != "" {
			concrete = append(concrete, branches[i])
		}
	}
	switch len(concrete) {
	case 0:
		allOf := make([]any, len(branches))
		for i, b := range branches {
			allOf[i] = b
		}
		return schema.Fragment{"allOf": allOf}
	case 1:
	default:
		// Conflicting concrete supertypes: the last one is kept and the
		// others are dropped.
		c.logger.Warn("multiple concrete supertypes", slog.Any("types", types))
	}
	hoisted := concrete[len(concrete)-1]
	f := schema.Fragment{"type": hoisted["type"]}
	if hoisted["type"] == "array" && hoisted["items"] != nil {
		f["items"] = hoisted["items"]
	}
	var allOf []any
	for _, b := range branches {
		if schema.Type(b) == "" {
			allOf = append(allOf, b)
		}
	}
	if len(allOf) > 0 {
		f["allOf"] = allOf
	}
	return f
}

// describe adds the identity and documentation keys of n to f.
func describe(f schema.Fragment, n *Node, s *scope) {
	if n.Name != "" {
		f[schema.KeyIdentity] = s.qualify(n.Name)
	}
	if n.DisplayName != "" && n.DisplayName != n.Name {
		f["title"] = n.DisplayName
	}
	if n.Description != "" {
		f["description"] = n.Description
	}
	if len(n.Examples) == 0 {
		return
	}
	examples := make([]any, len(n.Examples))
	for i, ex := range n.Examples {
		examples[i] = ex
		if str, ok := ex.(string); ok && n.Kind != KindString {
			var parsed any
			if err := json.Unmarshal([]byte(str), &parsed); err == nil {
				examples[i] = parsed
			}
		}
	}
	f[schema.KeyExamples] = examples
}

func objectFacets(f schema.Fragment, fc Facets) {
	setInt(f, "minProperties", fc.MinProperties)
	setInt(f, "maxProperties", fc.MaxProperties)
	if fc.AdditionalProperties != nil {
		f["additionalProperties"] = *fc.AdditionalProperties
	}
	if fc.Discriminator != "" {
		f["discriminator"] = fc.Discriminator
	}
	if fc.DiscriminatorValue != nil {
		f["discriminatorValue"] = fc.DiscriminatorValue
	}
}

func arrayFacets(f schema.Fragment, fc Facets) {
	if fc.UniqueItems != nil {
		f["uniqueItems"] = *fc.UniqueItems
	}
	setInt(f, "minItems", fc.MinItems)
	setInt(f, "maxItems", fc.MaxItems)
}

func stringFacets(f schema.Fragment, fc Facets) {
	setInt(f, "minLength", fc.MinLength)
	setInt(f, "maxLength", fc.MaxLength)
	if fc.Pattern != "" {
		f["pattern"] = fc.Pattern
	}
	setEnum(f, fc.Enum)
}

func numberFacets(f schema.Fragment, fc Facets) {
	setFloat(f, "minimum", fc.Minimum)
	setFloat(f, "maximum", fc.Maximum)
	setFloat(f, "multipleOf", fc.MultipleOf)
	setEnum(f, fc.Enum)
}

func setInt(f schema.Fragment, key string, v *int) {
	if v != nil {
		f[key] = *v
	}
}

func setFloat(f schema.Fragment, key string, v *float64) {
	if v != nil {
		f[key] = *v
	}
}

func setEnum(f schema.Fragment, values []any) {
	if len(values) > 0 {
		f["enum"] = append([]any(nil), values...)
	}
}

func isMaybeJSON(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

func isMaybeXML(s string) bool {
	return strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
