package schemaemitter

import (
	"sort"
	"strings"

	"github.com/mark3labs/apiflow/internal/fake"
	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/schema"
)

// Document is the content of endpoints.json.
type Document struct {
	Title       string     `json:"title"`
	Version     string     `json:"version,omitempty"`
	Description string     `json:"description,omitempty"`
	BaseURI     string     `json:"baseUri,omitempty"`
	Endpoints   []Endpoint `json:"endpoints"`
}

// Endpoint is one request of a resource.
type Endpoint struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	ExampleURL  string   `json:"exampleUrl"`
	Description string   `json:"description,omitempty"`
	Interfaces  []string `json:"interfaces,omitempty"`
	// Parameters maps a location (path, query, header) to an object schema
	// of the parameters found there.
	Parameters map[string]schema.Fragment `json:"parameters,omitempty"`
	Bodies     []Body                     `json:"bodies,omitempty"`
	Responses  []Response                 `json:"responses,omitempty"`
}

type Body struct {
	ContentType string          `json:"contentType,omitempty"`
	Schema      schema.Fragment `json:"schema"`
	Example     any             `json:"example,omitempty"`
}

type Response struct {
	Code        string          `json:"code"`
	Description string          `json:"description,omitempty"`
	Headers     schema.Fragment `json:"headers,omitempty"`
	Bodies      []Body          `json:"bodies,omitempty"`
}

type renderer struct {
	doc   *ir.Document
	defs  map[string]schema.Fragment
	gen   *fake.Generator
	delim []string
}

func (r renderer) endpoints() Document {
	out := Document{
		Title:       r.doc.Title,
		Version:     r.doc.Version,
		Description: r.doc.Description,
		Endpoints:   []Endpoint{},
	}
	var base string
	if r.doc.BaseURI.Template != "" {
		out.BaseURI = r.template(r.doc.BaseURI)
		base = strings.TrimSuffix(r.doc.BaseURI.Generate(nil, true), "/")
	}
	for _, res := range r.doc.Resources {
		path := r.template(res.Path)
		for _, req := range res.Requests {
			e := Endpoint{
				ID:          req.ID,
				Name:        req.Name,
				Method:      req.Method,
				Path:        path,
				ExampleURL:  base + res.Path.Generate(nil, false, ir.WithGenerator(r.gen)),
				Description: req.Description,
				Interfaces:  interfaceNames(res.Interfaces, req.Interfaces),
				Parameters:  r.parameters(req.Parameters),
				Bodies:      r.bodies(req.Parameters.Body),
			}
			for _, resp := range req.Responses {
				e.Responses = append(e.Responses, Response{
					Code:        resp.Code,
					Description: resp.Description,
					Headers:     r.object(resp.Parameters.Headers),
					Bodies:      r.bodies(resp.Parameters.Body),
				})
			}
			out.Endpoints = append(out.Endpoints, e)
		}
	}
	return out
}

// template renders u with the configured delimiters.
func (r renderer) template(u ir.URLComponent) string {
	if len(r.delim) == 0 {
		return u.Template
	}
	return u.Generate(r.delim, true)
}

func (r renderer) parameters(c ir.Container) map[string]schema.Fragment {
	out := map[string]schema.Fragment{}
	for loc, ps := range map[string][]ir.Parameter{
		"path":   c.Path,
		"query":  c.Queries,
		"header": c.Headers,
	} {
		if f := r.object(ps); f != nil {
			out[loc] = f
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// object describes ps as the properties of an object schema.
func (r renderer) object(ps []ir.Parameter) schema.Fragment {
	if len(ps) == 0 {
		return nil
	}
	props := make(schema.Fragment, len(ps))
	var required []any
	for _, p := range ps {
		props[p.Key] = p.JSONSchema(false, false)
		if p.Required {
			required = append(required, p.Key)
		}
	}
	f := schema.Fragment{"type": "object", "properties": props}
	if len(required) > 0 {
		f["required"] = required
	}
	return f
}

func (r renderer) bodies(ps []ir.Parameter) []Body {
	var out []Body
	for _, p := range ps {
		out = append(out, Body{
			ContentType: contentType(p),
			Schema:      p.JSONSchema(false, false),
			Example:     r.example(p),
		})
	}
	return out
}

// example returns the default of p or a value generated from its schema with
// definitions inlined.
func (r renderer) example(p ir.Parameter) any {
	if p.Default != nil {
		return p.Default
	}
	f, _ := r.inline(p.JSONSchema(true, false), 0).(schema.Fragment)
	return p.Generate(false, ir.WithSchema(f), ir.WithGenerator(r.gen))
}

// inline replaces references into the definitions table by the definitions
// they name, up to a fixed depth. Sibling keys of a reference win.
func (r renderer) inline(v any, depth int) any {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t[schema.KeyRef].(string); ok && depth < maxInlineDepth && strings.HasPrefix(ref, schema.DefinitionsRef) {
			if def, found := r.defs[strings.TrimPrefix(ref, schema.DefinitionsRef)]; found {
				merged := schema.Clone(def)
				for k, val := range t {
					if k != schema.KeyRef {
						merged[k] = val
					}
				}
				return r.inline(merged, depth+1)
			}
		}
		out := make(schema.Fragment, len(t))
		for k, val := range t {
			out[k] = r.inline(val, depth)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = r.inline(val, depth)
		}
		return out
	default:
		return v
	}
}

func contentType(p ir.Parameter) string {
	for _, ctx := range p.ApplicableContexts {
		if strings.EqualFold(ctx.Key, "Content-Type") {
			s, _ := ctx.Default.(string)
			return s
		}
	}
	return ""
}

func interfaceNames(sets ...map[string]ir.Reference) []string {
	seen := map[string]bool{}
	var out []string
	for _, set := range sets {
		for name := range set {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}
