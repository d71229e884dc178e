package raml

import (
	"log/slog"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apiflow/internal/ir"
)

func traitID(name string) string        { return "trait_" + name }
func resourceTypeID(name string) string { return "resourceType_" + name }

// application is one use of a trait or resource type together with its
// parameters.
type application struct {
	name   string
	params map[string]string
}

// applications reads an "is" list or a "type" value. Each entry is either a
// name or a single-key mapping from the name to its parameters.
func applications(n *yaml.Node) []application {
	n = content(n)
	if n == nil || isNull(n) {
		return nil
	}
	var items []*yaml.Node
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	} else {
		items = []*yaml.Node{n}
	}
	var out []application
	for _, item := range items {
		item = content(item)
		switch {
		case item == nil:
		case item.Kind == yaml.ScalarNode && item.Value != "":
			out = append(out, application{name: item.Value, params: map[string]string{}})
		case item.Kind == yaml.MappingNode:
			for _, e := range entries(item) {
				app := application{name: e.key, params: map[string]string{}}
				for _, p := range entries(e.value) {
					app.params[p.key] = scalar(p.value)
				}
				out = append(out, app)
			}
		}
	}
	return out
}

// interfaces registers the traits and resource types declared in n under
// namespace.
func (b *builder) interfaces(namespace string, n *yaml.Node) {
	for _, e := range entries(lookup(n, "resourceTypes")) {
		name := qualify(namespace, e.key)
		b.resourceTypes[name] = e.value
		b.store.Put(ir.KindInterface, resourceTypeID(name), ir.Interface{
			UUID:        resourceTypeID(name),
			Name:        name,
			Level:       ir.LevelResource,
			Description: strings.TrimSpace(scalar(lookup(e.value, "usage"))),
		})
	}
	for _, e := range entries(lookup(n, "traits")) {
		name := qualify(namespace, e.key)
		b.traits[name] = e.value
		b.store.Put(ir.KindInterface, traitID(name), ir.Interface{
			UUID:        traitID(name),
			Name:        name,
			Level:       ir.LevelRequest,
			Description: strings.TrimSpace(scalar(lookup(e.value, "usage"))),
		})
	}
}

// applyResourceType merges the resource type of a resource under its own
// declarations. Methods the type marks optional ("get?") only apply when the
// resource declares them.
func (b *builder) applyResourceType(n *yaml.Node, path string) (*yaml.Node, map[string]ir.Reference) {
	apps := applications(lookup(n, "type"))
	if len(apps) == 0 {
		return content(n), nil
	}
	app := apps[0]
	body, ok := b.resourceTypes[app.name]
	if !ok {
		b.logger.Warn("unknown resource type", slog.String("resource", path), slog.String("type", app.name))
		return content(n), nil
	}
	params := app.params
	params["resourcePath"] = path
	params["resourcePathName"] = pathName(path)
	base := substitute(body, params)

	own := map[string]bool{}
	for _, e := range entries(n) {
		own[e.key] = true
	}
	filtered := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range entries(base) {
		key, optional := strings.CutSuffix(e.key, "?")
		if key == "usage" || optional && !own[key] {
			continue
		}
		filtered.Content = append(filtered.Content, keyNode(key), e.value)
	}
	return merge(filtered, n), map[string]ir.Reference{
		app.name: {Kind: ir.KindInterface, ID: resourceTypeID(app.name)},
	}
}

// applyTraits merges the traits of a method under its own declarations, in
// order, so that earlier traits win over later ones.
func (b *builder) applyTraits(n *yaml.Node, apps []application, context map[string]string) (*yaml.Node, map[string]ir.Reference) {
	refs := map[string]ir.Reference{}
	for _, app := range apps {
		body, ok := b.traits[app.name]
		if !ok {
			b.logger.Warn("unknown trait", slog.String("trait", app.name))
			continue
		}
		params := map[string]string{}
		for k, v := range context {
			params[k] = v
		}
		for k, v := range app.params {
			params[k] = v
		}
		n = merge(without(substitute(body, params), "usage"), n)
		refs[app.name] = ir.Reference{Kind: ir.KindInterface, ID: traitID(app.name)}
	}
	return n, refs
}

func without(n *yaml.Node, key string) *yaml.Node {
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, e := range entries(n) {
		if e.key != key {
			out.Content = append(out.Content, keyNode(e.key), e.value)
		}
	}
	return out
}

// pathName is the rightmost segment of path that is not a URI parameter.
func pathName(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if s := segments[i]; s != "" && !strings.Contains(s, "{") {
			return s
		}
	}
	return ""
}

var placeholder = regexp.MustCompile(`<<\s*([A-Za-z_][A-Za-z0-9_]*)\s*(?:\|\s*!([A-Za-z]+)\s*)?>>`)

// substitute returns a copy of n with every known <<param>> replaced in keys
// and values. Unknown parameters are left in place.
func substitute(n *yaml.Node, params map[string]string) *yaml.Node {
	out := clone(content(n))
	if out == nil {
		return nil
	}
	var walk func(*yaml.Node)
	walk = func(n *yaml.Node) {
		if n.Kind == yaml.ScalarNode && strings.Contains(n.Value, "<<") {
			n.Value = placeholder.ReplaceAllStringFunc(n.Value, func(m string) string {
				sub := placeholder.FindStringSubmatch(m)
				v, ok := params[sub[1]]
				if !ok {
					return m
				}
				return transform(v, sub[2])
			})
		}
		for _, c := range n.Content {
			walk(c)
		}
	}
	walk(out)
	return out
}

func transform(v, fn string) string {
	switch strings.ToLower(fn) {
	case "uppercase":
		return strings.ToUpper(v)
	case "lowercase":
		return strings.ToLower(v)
	case "singularize":
		if strings.HasSuffix(v, "ies") {
			return strings.TrimSuffix(v, "ies") + "y"
		}
		return strings.TrimSuffix(v, "s")
	case "pluralize":
		if strings.HasSuffix(v, "s") {
			return v
		}
		if strings.HasSuffix(v, "y") {
			return strings.TrimSuffix(v, "y") + "ies"
		}
		return v + "s"
	}
	return v
}
