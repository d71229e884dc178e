package raml

import (
	"context"
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/apiflow/internal/source"
)

const (
	includeTag      = "!include"
	maxIncludeDepth = 32
)

type entry struct {
	key   string
	value *yaml.Node
}

// content unwraps document and alias nodes.
func content(n *yaml.Node) *yaml.Node {
	for n != nil {
		switch n.Kind {
		case yaml.DocumentNode:
			if len(n.Content) == 0 {
				return nil
			}
			n = n.Content[0]
		case yaml.AliasNode:
			n = n.Alias
		default:
			return n
		}
	}
	return nil
}

// entries returns the pairs of a mapping in document order.
func entries(n *yaml.Node) []entry {
	n = content(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	out := make([]entry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, entry{key: n.Content[i].Value, value: n.Content[i+1]})
	}
	return out
}

func lookup(n *yaml.Node, key string) *yaml.Node {
	for _, e := range entries(n) {
		if e.key == key {
			return content(e.value)
		}
	}
	return nil
}

func scalar(n *yaml.Node) string {
	n = content(n)
	if n == nil || n.Kind != yaml.ScalarNode || isNull(n) {
		return ""
	}
	return n.Value
}

func isNull(n *yaml.Node) bool {
	n = content(n)
	return n == nil || n.Kind == yaml.ScalarNode && n.Tag == "!!null"
}

func isMapping(n *yaml.Node) bool {
	n = content(n)
	return n != nil && n.Kind == yaml.MappingNode
}

// scalars reads a scalar or a sequence of scalars.
func scalars(n *yaml.Node) []string {
	n = content(n)
	if n == nil {
		return nil
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if isNull(n) {
			return nil
		}
		return []string{n.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if s := scalar(c); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func decode(n *yaml.Node) any {
	n = content(n)
	if n == nil || isNull(n) {
		return nil
	}
	var v any
	if err := n.Decode(&v); err != nil {
		return n.Value
	}
	return v
}

// reader loads documents and expands their includes, recording every file it
// touches.
type reader struct {
	ctx      context.Context
	settings source.Settings
	files    []string
	seen     map[string]bool
}

func newReader(ctx context.Context, settings source.Settings) *reader {
	return &reader{ctx: ctx, settings: settings, seen: map[string]bool{}}
}

func (r *reader) record(location string) {
	if !r.seen[location] {
		r.seen[location] = true
		r.files = append(r.files, location)
	}
}

// parse decodes the YAML of d and expands its includes.
func (r *reader) parse(d *source.Document) (*yaml.Node, error) {
	r.record(d.Location)
	var root yaml.Node
	if err := yaml.Unmarshal(d.Raw, &root); err != nil {
		return nil, &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("raml: %v", err), Location: d.Location, Cause: err}
	}
	n := content(&root)
	if n == nil {
		return nil, &source.SpecError{Code: source.ParseError, Message: "raml: document is empty", Location: d.Location}
	}
	if err := r.expand(d, n, 0); err != nil {
		return nil, err
	}
	return n, nil
}

// load reads and parses the document at location.
func (r *reader) load(location string) (*source.Document, *yaml.Node, error) {
	d, err := source.Read(r.ctx, location, r.settings)
	if err != nil {
		return nil, nil, err
	}
	n, err := r.parse(d)
	return d, n, err
}

// expand replaces every !include node below n, in place, by the included
// content: a parsed tree for RAML and YAML fragments, a string otherwise.
func (r *reader) expand(d *source.Document, n *yaml.Node, depth int) error {
	if n == nil {
		return nil
	}
	if n.Kind == yaml.ScalarNode && n.Tag == includeTag {
		if depth >= maxIncludeDepth {
			return &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("raml: includes nested deeper than %d", maxIncludeDepth), Location: d.Location}
		}
		inc, err := source.Read(r.ctx, d.Resolve(strings.TrimSpace(n.Value)), r.settings)
		if err != nil {
			return err
		}
		r.record(inc.Location)
		if !isYAML(inc.Location) {
			*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(inc.Raw)}
			return nil
		}
		var root yaml.Node
		if err := yaml.Unmarshal(inc.Raw, &root); err != nil {
			return &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("raml: %v", err), Location: inc.Location, Cause: err}
		}
		body := content(&root)
		if body == nil {
			*n = yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null"}
			return nil
		}
		if err := r.expand(inc, body, depth+1); err != nil {
			return err
		}
		*n = *body
		return nil
	}
	for _, c := range n.Content {
		if err := r.expand(d, c, depth); err != nil {
			return err
		}
	}
	return nil
}

func isYAML(location string) bool {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		location = location[:i]
	}
	switch strings.ToLower(path.Ext(location)) {
	case ".raml", ".yaml", ".yml":
		return true
	}
	return false
}

// clone deep-copies n.
func clone(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Kind == yaml.AliasNode {
		return clone(n.Alias)
	}
	out.Content = make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		out.Content[i] = clone(c)
	}
	return &out
}

// merge deep-merges overlay onto base and returns a new node. Mappings merge
// key by key and everything else is replaced by overlay.
func merge(base, overlay *yaml.Node) *yaml.Node {
	base, overlay = content(base), content(overlay)
	if base == nil {
		return clone(overlay)
	}
	if overlay == nil || isNull(overlay) {
		return clone(base)
	}
	if base.Kind != yaml.MappingNode || overlay.Kind != yaml.MappingNode {
		return clone(overlay)
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	own := map[string]*yaml.Node{}
	for _, e := range entries(overlay) {
		own[e.key] = e.value
	}
	for _, e := range entries(base) {
		if v, ok := own[e.key]; ok {
			out.Content = append(out.Content, keyNode(e.key), merge(e.value, v))
			delete(own, e.key)
			continue
		}
		out.Content = append(out.Content, keyNode(e.key), clone(e.value))
	}
	for _, e := range entries(overlay) {
		if _, ok := own[e.key]; ok {
			out.Content = append(out.Content, keyNode(e.key), clone(e.value))
		}
	}
	return out
}

func keyNode(key string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}
}
