// Package raml is the RAML 1.0 front-end. It reads a document together with
// its includes and libraries and normalizes it into an ir.Document whose
// types are compiled into a definitions table.
package raml

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apiflow/internal/constraint"
	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/schema"
	"github.com/mark3labs/apiflow/internal/source"
	"github.com/mark3labs/apiflow/internal/typedecl"
)

const (
	defaultMediaType = "application/json"
	maxLibraryDepth  = 16
)

var methodOrder = []string{"get", "post", "put", "delete", "patch", "head", "options", "trace"}

// Result is a compiled RAML document.
type Result struct {
	Document    *ir.Document
	Definitions *schema.Definitions
	// Files lists every file or URL that was read, the root document first.
	Files []string
}

// Load reads input (a path or an http/https URL) and compiles it.
func Load(ctx context.Context, input string, opts ...source.Option) (*Result, error) {
	settings := source.NewSettings(opts...)
	d, err := source.Read(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, d, settings)
}

// Parse compiles an already read document.
func Parse(ctx context.Context, d *source.Document, settings source.Settings) (*Result, error) {
	format, err := source.DetectDocument(d)
	if err != nil {
		return nil, err
	}
	if format != source.FormatRAML10 {
		return nil, &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("raml: %s documents are not RAML 1.0", format), Location: d.Location}
	}
	r := newReader(ctx, settings)
	root, err := r.parse(d)
	if err != nil {
		return nil, err
	}

	logger := settings.Log()
	b := &builder{
		logger:        logger,
		compiler:      typedecl.NewCompiler(typedecl.WithLogger(logger)),
		types:         newTypes(),
		store:         ir.NewStore(),
		traits:        map[string]*yaml.Node{},
		resourceTypes: map[string]*yaml.Node{},
		mediaTypes:    scalars(lookup(root, "mediaType")),
	}
	var libs []libraryNode
	if err := b.uses(r, d, root, 0, &libs); err != nil {
		return nil, err
	}
	libs = append(libs, libraryNode{node: root})
	for _, lib := range libs {
		b.types.declare(lib.namespace, lookup(lib.node, "types"))
		b.types.declare(lib.namespace, lookup(lib.node, "schemas"))
		b.interfaces(lib.namespace, lib.node)
	}
	compiled := make([]typedecl.Library, 0, len(libs))
	for _, lib := range libs {
		l := b.types.library(lib.namespace, lookup(lib.node, "types"))
		l.Types = append(l.Types, b.types.library(lib.namespace, lookup(lib.node, "schemas")).Types...)
		compiled = append(compiled, l)
	}
	b.defs = b.compiler.Definitions(compiled...)

	doc := &ir.Document{
		Title:       scalar(lookup(root, "title")),
		Description: strings.TrimSpace(scalar(lookup(root, "description"))),
		Version:     scalar(lookup(root, "version")),
		Store:       b.store,
	}
	doc.BaseURI = b.baseURI(root, doc.Version)
	doc.Resources = b.resources(root, "", nil)
	b.publish()
	return &Result{Document: doc, Definitions: b.defs, Files: r.files}, nil
}

type libraryNode struct {
	namespace string
	node      *yaml.Node
}

type builder struct {
	logger        *slog.Logger
	compiler      *typedecl.Compiler
	types         *types
	defs          *schema.Definitions
	store         *ir.Store
	traits        map[string]*yaml.Node
	resourceTypes map[string]*yaml.Node
	mediaTypes    []string
}

// uses loads the libraries n declares, dependencies first.
func (b *builder) uses(r *reader, d *source.Document, n *yaml.Node, depth int, out *[]libraryNode) error {
	for _, e := range entries(lookup(n, "uses")) {
		if depth >= maxLibraryDepth {
			return &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("raml: libraries nested deeper than %d", maxLibraryDepth), Location: d.Location}
		}
		if isMapping(e.value) {
			*out = append(*out, libraryNode{namespace: e.key, node: content(e.value)})
			continue
		}
		ld, ln, err := r.load(d.Resolve(scalar(e.value)))
		if err != nil {
			return err
		}
		if err := b.uses(r, ld, ln, depth+1, out); err != nil {
			return err
		}
		*out = append(*out, libraryNode{namespace: e.key, node: ln})
	}
	return nil
}

// publish exposes every definition as a constraint of the store.
func (b *builder) publish() {
	for _, name := range b.defs.Names() {
		f, _ := b.defs.Get(name)
		b.store.Put(ir.KindConstraint, schema.DefinitionsRef+name, constraint.JSONSchema{Fragment: f})
	}
}

func (b *builder) baseURI(root *yaml.Node, version string) ir.URLComponent {
	u := ir.NewURLComponent("baseUri", scalar(lookup(root, "baseUri")), "{", "}")
	if version != "" {
		u = u.WithVariable(ir.Parameter{Key: "version", Name: "version", In: ir.LocationPath, Type: "string", Default: version})
	}
	for _, p := range b.parameters(lookup(root, "baseUriParameters"), ir.LocationPath, ir.UsedInRequest) {
		u = u.WithVariable(p)
	}
	return u
}

// resources walks the nested resources of n. Resources without methods are
// not returned but their children are.
func (b *builder) resources(n *yaml.Node, parent string, inherited []ir.Parameter) []ir.Resource {
	var out []ir.Resource
	for _, e := range entries(n) {
		if !strings.HasPrefix(e.key, "/") {
			continue
		}
		path := parent + e.key
		node, interfaces := b.applyResourceType(e.value, path)
		uriParams := append(append([]ir.Parameter(nil), inherited...),
			b.parameters(lookup(node, "uriParameters"), ir.LocationPath, ir.UsedInRequest)...)

		res := ir.Resource{
			UUID:        path,
			Name:        scalar(lookup(node, "displayName")),
			Description: strings.TrimSpace(scalar(lookup(node, "description"))),
			Path:        ir.NewURLComponent("pathname", path, "{", "}"),
			Interfaces:  interfaces,
		}
		if res.Name == "" {
			res.Name = path
		}
		for _, p := range uriParams {
			res.Path = res.Path.WithVariable(p)
		}
		resourceTraits := applications(lookup(node, "is"))
		for _, method := range methodOrder {
			mn := lookup(node, method)
			if mn == nil {
				continue
			}
			res.Requests = append(res.Requests, b.request(method, path, mn, resourceTraits, res.Path.Variables()))
		}
		if len(res.Requests) > 0 {
			out = append(out, res)
		}
		out = append(out, b.resources(e.value, path, uriParams)...)
	}
	return out
}

func (b *builder) request(method, path string, n *yaml.Node, resourceTraits []application, pathParams []ir.Parameter) ir.Request {
	params := map[string]string{
		"methodName":       method,
		"resourcePath":     path,
		"resourcePathName": pathName(path),
	}
	n = substitute(n, params)
	if n == nil || isNull(n) {
		n = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}
	apps := append(applications(lookup(n, "is")), resourceTraits...)
	n, interfaces := b.applyTraits(n, apps, params)

	id := strings.ToUpper(method) + " " + path
	req := ir.Request{
		ID:          id,
		Method:      strings.ToUpper(method),
		Name:        scalar(lookup(n, "displayName")),
		Description: strings.TrimSpace(scalar(lookup(n, "description"))),
	}
	if req.Name == "" {
		req.Name = id
	}
	if len(interfaces) > 0 {
		req.Interfaces = interfaces
	}
	for _, p := range pathParams {
		p.In, p.UsedIn = ir.LocationPath, ir.UsedInRequest
		req.Parameters = req.Parameters.Add(p)
	}
	for _, p := range b.parameters(lookup(n, "queryParameters"), ir.LocationQuery, ir.UsedInRequest) {
		req.Parameters = req.Parameters.Add(p)
	}
	for _, p := range b.parameters(lookup(n, "headers"), ir.LocationHeader, ir.UsedInRequest) {
		req.Parameters = req.Parameters.Add(p)
	}
	bodies, contexts := b.bodies(lookup(n, "body"), ir.UsedInRequest)
	for _, p := range bodies {
		req.Parameters = req.Parameters.Add(p)
	}
	req.Contexts = contexts
	for _, e := range entries(lookup(n, "responses")) {
		req.Responses = append(req.Responses, b.response(e.key, e.value))
	}
	return req
}

func (b *builder) response(code string, n *yaml.Node) ir.Response {
	resp := ir.Response{
		Code:        code,
		Description: strings.TrimSpace(scalar(lookup(n, "description"))),
	}
	for _, p := range b.parameters(lookup(n, "headers"), ir.LocationHeader, ir.UsedInResponse) {
		resp.Parameters = resp.Parameters.Add(p)
	}
	bodies, contexts := b.bodies(lookup(n, "body"), ir.UsedInResponse)
	for _, p := range bodies {
		resp.Parameters = resp.Parameters.Add(p)
	}
	resp.Contexts = contexts
	return resp
}

// parameters translates a mapping of named parameter declarations. A "?"
// suffix makes a parameter optional.
func (b *builder) parameters(n *yaml.Node, in ir.Location, usedIn ir.UsedIn) []ir.Parameter {
	var out []ir.Parameter
	for _, e := range entries(n) {
		key, optional := strings.CutSuffix(e.key, "?")
		decl := b.types.node(key, "", e.value)
		if optional && lookup(e.value, "required") == nil {
			decl.Required = false
		}
		p := b.parameter(key, decl)
		p.In, p.UsedIn, p.Required = in, usedIn, decl.Required
		out = append(out, p)
	}
	return out
}

// parameter compiles decl and records the auxiliary schemas it needs.
func (b *builder) parameter(key string, decl *typedecl.Node) ir.Parameter {
	compiled := b.compiler.Compile(decl, "")
	for _, aux := range compiled[1:] {
		b.defs.Add(aux)
	}
	return ir.FromSchema(key, schema.Normalize(compiled[0]))
}

// bodies translates a body declaration, keyed by media type or applying to
// every default media type. Each body is usable under a Content-Type context.
func (b *builder) bodies(n *yaml.Node, usedIn ir.UsedIn) (bodies, contexts []ir.Parameter) {
	n = content(n)
	if n == nil || isNull(n) {
		return nil, nil
	}
	type media struct {
		mime string
		decl *yaml.Node
	}
	var ms []media
	if es := entries(n); len(es) > 0 && strings.Contains(es[0].key, "/") {
		for _, e := range es {
			ms = append(ms, media{e.key, e.value})
		}
	} else {
		defaults := b.mediaTypes
		if len(defaults) == 0 {
			defaults = []string{defaultMediaType}
		}
		for _, mt := range defaults {
			ms = append(ms, media{mt, n})
		}
	}
	for _, m := range ms {
		decl := b.types.node("body", "", m.decl)
		if !hasExplicitType(m.decl) {
			decl.Types, decl.Kind = []string{"any"}, typedecl.KindAny
		}
		p := b.parameter("body", decl)
		p.In, p.UsedIn, p.Required = ir.LocationBody, usedIn, decl.Required
		if len(decl.Examples) > 0 {
			p.Default = exampleDefault(decl.Examples[0])
		}
		ctx := ir.ContentTypeContext(m.mime, usedIn)
		bodies = append(bodies, p.WithContexts(ctx))
		contexts = append(contexts, ctx)
	}
	return bodies, contexts
}

// hasExplicitType reports whether a declaration names or implies its type.
// Bodies without one accept anything.
func hasExplicitType(n *yaml.Node) bool {
	n = content(n)
	switch {
	case isNull(n):
		return false
	case n.Kind != yaml.MappingNode:
		return true
	}
	for _, key := range []string{"type", "schema", "properties", "items"} {
		if lookup(n, key) != nil {
			return true
		}
	}
	return false
}

// exampleDefault decodes examples written as JSON text.
func exampleDefault(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	if t := strings.TrimSpace(s); strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
		var out any
		if err := json.Unmarshal([]byte(t), &out); err == nil {
			return out
		}
	}
	return v
}
