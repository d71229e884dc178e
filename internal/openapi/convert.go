package openapi

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/mark3labs/apiflow/internal/constraint"
	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/schema"
)

// ParametersRef prefixes the store ids of shared component parameters.
const ParametersRef = "#/parameters/"

// ConvertOption configures how a document is normalized.
type ConvertOption func(*convertConfig)

type convertConfig struct {
	includeTags map[string]struct{}
	excludeTags map[string]struct{}
	methods     map[string]struct{}
	pathRes     []*regexp.Regexp
	err         error
	logger      *slog.Logger
}

func tagSet(dst map[string]struct{}, tags []string) map[string]struct{} {
	for _, t := range tags {
		if t = strings.TrimSpace(t); t == "" {
			continue
		}
		if dst == nil {
			dst = make(map[string]struct{}, len(tags))
		}
		dst[t] = struct{}{}
	}
	return dst
}

// WithIncludeTags keeps only operations that have at least one of the given tags.
func WithIncludeTags(tags []string) ConvertOption {
	return func(c *convertConfig) { c.includeTags = tagSet(c.includeTags, tags) }
}

// WithExcludeTags removes operations that have any of the given tags.
func WithExcludeTags(tags []string) ConvertOption {
	return func(c *convertConfig) { c.excludeTags = tagSet(c.excludeTags, tags) }
}

// WithMethods keeps only operations using one of the given HTTP methods.
func WithMethods(methods []string) ConvertOption {
	return func(c *convertConfig) {
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m == "" {
				continue
			}
			if c.methods == nil {
				c.methods = make(map[string]struct{}, len(methods))
			}
			c.methods[m] = struct{}{}
		}
	}
}

// WithPathPatterns keeps only paths matching at least one of the given
// regular expressions. An invalid pattern makes Convert fail.
func WithPathPatterns(patterns []string) ConvertOption {
	return func(c *convertConfig) {
		for _, p := range patterns {
			if p = strings.TrimSpace(p); p == "" {
				continue
			}
			re, err := regexp.Compile(p)
			if err != nil {
				if c.err == nil {
					c.err = fmt.Errorf("path pattern %q: %w", p, err)
				}
				continue
			}
			c.pathRes = append(c.pathRes, re)
		}
	}
}

// WithLogger sets the logger used for skipped or degraded elements.
func WithLogger(logger *slog.Logger) ConvertOption {
	return func(c *convertConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func (c *convertConfig) allowPath(p string) bool {
	if len(c.pathRes) == 0 {
		return true
	}
	for _, re := range c.pathRes {
		if re.MatchString(p) {
			return true
		}
	}
	return false
}

func (c *convertConfig) allowMethod(m string) bool {
	if len(c.methods) == 0 {
		return true
	}
	_, ok := c.methods[m]
	return ok
}

func (c *convertConfig) allowTags(tags []string) bool {
	if len(c.includeTags) > 0 {
		ok := false
		for _, t := range tags {
			if _, yes := c.includeTags[t]; yes {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	for _, t := range tags {
		if _, blocked := c.excludeTags[t]; blocked {
			return false
		}
	}
	return true
}

type converter struct {
	cfg   *convertConfig
	doc   *openapi3.T
	store *ir.Store
}

// Convert normalizes doc into an ir.Document. Component schemas become
// JSON-schema constraints in the store under "#/definitions/<name>" and are
// referenced from parameters; paths become URL components with "{}"
// delimiters.
func Convert(doc *openapi3.T, opts ...ConvertOption) (*ir.Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	cfg := &convertConfig{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.err != nil {
		return nil, cfg.err
	}

	c := &converter{cfg: cfg, doc: doc, store: ir.NewStore()}
	out := &ir.Document{Store: c.store}
	if doc.Info != nil {
		out.Title = strings.TrimSpace(doc.Info.Title)
		out.Version = strings.TrimSpace(doc.Info.Version)
		out.Description = strings.TrimSpace(doc.Info.Description)
	}
	if len(doc.Servers) > 0 && doc.Servers[0] != nil {
		out.BaseURI = baseURI(doc.Servers[0])
	}
	c.components()

	for _, path := range sortedKeys(doc.Paths) {
		item := doc.Paths[path]
		if item == nil || !cfg.allowPath(path) {
			continue
		}
		if res, ok := c.resource(path, item); ok {
			out.Resources = append(out.Resources, res)
		}
	}
	return out, nil
}

func baseURI(s *openapi3.Server) ir.URLComponent {
	u := ir.NewURLComponent("baseUri", strings.TrimSpace(s.URL), "{", "}")
	for _, name := range sortedKeys(s.Variables) {
		sv := s.Variables[name]
		if sv == nil {
			continue
		}
		v := ir.Parameter{Key: name, Description: sv.Description, Type: "string"}
		if sv.Default != "" {
			v.Default = sv.Default
		}
		if len(sv.Enum) > 0 {
			values := make([]any, len(sv.Enum))
			for i, e := range sv.Enum {
				values[i] = e
			}
			v.Constraints = []constraint.Constraint{constraint.Enum{Values: values}}
		}
		u = u.WithVariable(v)
	}
	return u
}

func (c *converter) components() {
	comps := c.doc.Components
	if comps == nil {
		return
	}
	for _, name := range sortedKeys(comps.Schemas) {
		f := fragmentOf(comps.Schemas[name])
		if f == nil {
			c.cfg.logger.Warn("skipping unreadable schema", slog.String("schema", name))
			continue
		}
		c.store.Put(ir.KindConstraint, schema.DefinitionsRef+name, constraint.JSONSchema{Fragment: f})
	}
	for _, name := range sortedKeys(comps.Parameters) {
		if p, ok := c.parameter(comps.Parameters[name], ir.UsedInRequest); ok {
			c.store.Put(ir.KindParameter, ParametersRef+name, p)
		}
	}
	for _, t := range c.doc.Tags {
		if t == nil || t.Name == "" {
			continue
		}
		c.store.Put(ir.KindInterface, tagID(t.Name), ir.Interface{
			UUID:        tagID(t.Name),
			Name:        t.Name,
			Level:       ir.LevelRequest,
			Description: t.Description,
		})
	}
}

func tagID(name string) string { return "tag_" + name }

var methodOrder = []string{
	"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS", "TRACE",
}

func operations(item *openapi3.PathItem) map[string]*openapi3.Operation {
	return map[string]*openapi3.Operation{
		"GET": item.Get, "POST": item.Post, "PUT": item.Put, "DELETE": item.Delete,
		"PATCH": item.Patch, "HEAD": item.Head, "OPTIONS": item.Options, "TRACE": item.Trace,
	}
}

func (c *converter) resource(path string, item *openapi3.PathItem) (ir.Resource, bool) {
	res := ir.Resource{
		UUID:        path,
		Name:        strings.TrimSpace(item.Summary),
		Description: strings.TrimSpace(item.Description),
		Path:        ir.NewURLComponent("pathname", path, "{", "}"),
	}
	if res.Name == "" {
		res.Name = path
	}

	base := make(map[string]ir.Parameter)
	for _, pref := range item.Parameters {
		if p, ok := c.parameter(pref, ir.UsedInRequest); ok {
			base[paramKey(p)] = p
		}
	}
	for _, p := range base {
		if p.In == ir.LocationPath {
			res.Path = res.Path.WithVariable(p)
		}
	}

	ops := operations(item)
	for _, method := range methodOrder {
		op := ops[method]
		if op == nil || !c.cfg.allowMethod(method) {
			continue
		}
		tags := trimmed(op.Tags)
		if !c.cfg.allowTags(tags) {
			continue
		}
		req := c.request(path, method, op, base, tags)
		for _, p := range req.Parameters.Path {
			res.Path = res.Path.WithVariable(p)
		}
		res.Requests = append(res.Requests, req)
	}
	return res, len(res.Requests) > 0
}

func (c *converter) request(path, method string, op *openapi3.Operation, base map[string]ir.Parameter, tags []string) ir.Request {
	req := ir.Request{
		ID:          strings.TrimSpace(op.OperationID),
		Name:        strings.TrimSpace(op.Summary),
		Method:      method,
		Description: strings.TrimSpace(op.Description),
	}
	if req.ID == "" {
		req.ID = method + " " + path
	}
	if req.Name == "" {
		req.Name = req.ID
	}

	// Operation parameters override path-level ones with the same location and name.
	merged := make(map[string]ir.Parameter, len(base))
	for k, v := range base {
		merged[k] = v
	}
	for _, pref := range op.Parameters {
		if p, ok := c.parameter(pref, ir.UsedInRequest); ok {
			merged[paramKey(p)] = p
		}
	}
	for _, k := range sortedKeys(merged) {
		req.Parameters = req.Parameters.Add(merged[k])
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		rb := op.RequestBody.Value
		bodies, contexts := bodyParameters(rb.Content, rb.Required, ir.UsedInRequest)
		for _, b := range bodies {
			if b.Description == "" {
				b.Description = strings.TrimSpace(rb.Description)
			}
			req.Parameters = req.Parameters.Add(b)
		}
		req.Contexts = contexts
	}

	for _, code := range sortedKeys(op.Responses) {
		rref := op.Responses[code]
		if rref == nil || rref.Value == nil {
			continue
		}
		req.Responses = append(req.Responses, c.response(code, rref.Value))
	}

	for _, t := range tags {
		if _, known := c.store.Interface(tagID(t)); !known {
			c.store.Put(ir.KindInterface, tagID(t), ir.Interface{UUID: tagID(t), Name: t, Level: ir.LevelRequest})
		}
		if req.Interfaces == nil {
			req.Interfaces = make(map[string]ir.Reference, len(tags))
		}
		req.Interfaces[t] = ir.Reference{Kind: ir.KindInterface, ID: tagID(t)}
	}
	return req
}

func (c *converter) response(code string, r *openapi3.Response) ir.Response {
	out := ir.Response{Code: code}
	if r.Description != nil {
		out.Description = strings.TrimSpace(*r.Description)
	}
	for _, name := range sortedKeys(r.Headers) {
		href := r.Headers[name]
		if href == nil || href.Value == nil {
			continue
		}
		h := ir.FromSchema(name, schemaOrString(href.Value.Schema))
		h.In = ir.LocationHeader
		h.UsedIn = ir.UsedInResponse
		h.Required = href.Value.Required
		if h.Description == "" {
			h.Description = strings.TrimSpace(href.Value.Description)
		}
		out.Parameters = out.Parameters.Add(h)
	}
	bodies, contexts := bodyParameters(r.Content, false, ir.UsedInResponse)
	for _, b := range bodies {
		out.Parameters = out.Parameters.Add(b)
	}
	out.Contexts = contexts
	return out
}

// bodyParameters returns one body parameter per media type, each applicable only
// under its Content-Type, along with those Content-Type contexts.
func bodyParameters(content openapi3.Content, required bool, usedIn ir.UsedIn) ([]ir.Parameter, []ir.Parameter) {
	var params, contexts []ir.Parameter
	for _, mime := range sortedKeys(content) {
		mt := content[mime]
		if mt == nil {
			continue
		}
		f := schema.Fragment{}
		if mt.Schema != nil {
			if read := fragmentOf(mt.Schema); read != nil {
				f = read
			}
		}
		ctx := ir.ContentTypeContext(mime, usedIn)
		p := ir.FromSchema("body", f)
		p.In = ir.LocationBody
		p.UsedIn = usedIn
		p.Required = required
		if ex := mediaExample(mt); ex != nil {
			p.Default = ex
		}
		params = append(params, p.WithContexts(ctx))
		contexts = append(contexts, ctx)
	}
	return params, contexts
}

func mediaExample(mt *openapi3.MediaType) any {
	if mt.Example != nil {
		return mt.Example
	}
	names := sortedKeys(mt.Examples)
	if len(names) == 0 {
		return nil
	}
	if ref := mt.Examples[names[0]]; ref != nil && ref.Value != nil {
		return ref.Value.Value
	}
	return nil
}

func (c *converter) parameter(pref *openapi3.ParameterRef, usedIn ir.UsedIn) (ir.Parameter, bool) {
	if pref == nil || pref.Value == nil {
		return ir.Parameter{}, false
	}
	v := pref.Value
	in, ok := locations[strings.ToLower(v.In)]
	if !ok {
		c.cfg.logger.Warn("skipping parameter with unsupported location",
			slog.String("parameter", v.Name), slog.String("in", v.In))
		return ir.Parameter{}, false
	}
	p := ir.FromSchema(strings.TrimSpace(v.Name), schemaOrString(v.Schema))
	p.In = in
	p.UsedIn = usedIn
	p.Required = v.Required
	if desc := strings.TrimSpace(v.Description); desc != "" {
		p.Description = desc
	}
	if p.Default == nil && v.Example != nil {
		p.Default = v.Example
	}
	return p, true
}

var locations = map[string]ir.Location{
	"header": ir.LocationHeader,
	"query":  ir.LocationQuery,
	"path":   ir.LocationPath,
}

func paramKey(p ir.Parameter) string { return string(p.In) + ":" + p.Key }

func schemaOrString(ref *openapi3.SchemaRef) schema.Fragment {
	if ref != nil {
		if f := fragmentOf(ref); f != nil {
			return f
		}
	}
	return schema.Fragment{"type": "string"}
}

func trimmed(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
