package ir

import (
	"github.com/mark3labs/apiflow/internal/fake"
	"github.com/mark3labs/apiflow/internal/schema"
)

type generateConfig struct {
	schema    schema.Fragment
	generator *fake.Generator
}

// GenerateOption configures Parameter.Generate.
type GenerateOption func(*generateConfig)

// WithSchema generates from f instead of the parameter's own schema.
func WithSchema(f schema.Fragment) GenerateOption {
	return func(c *generateConfig) { c.schema = f }
}

// WithGenerator uses g to produce values, typically a seeded generator.
func WithGenerator(g *fake.Generator) GenerateOption {
	return func(c *generateConfig) { c.generator = g }
}

// Generate produces an example value for p. With useDefault an existing
// default is returned as is. Sequence parameters always yield a string: the
// concatenation of their generated segments.
func (p Parameter) Generate(useDefault bool, opts ...GenerateOption) any {
	if useDefault && p.Default != nil {
		return p.Default
	}
	cfg := generateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.generator == nil {
		cfg.generator = fake.New(0)
	}
	var f schema.Fragment
	if cfg.schema != nil {
		f = schema.Clone(cfg.schema)
	} else {
		f = p.JSONSchema(true, true)
	}
	f, _ = schema.ReplaceRefs(f).(schema.Fragment)
	f = prepareForGeneration(f, useDefault)
	return cfg.generator.Generate(f)
}

// prepareForGeneration pins defaults and sequence segments, and adds a
// readable word hint to bare string leaves so generated output stays usable.
func prepareForGeneration(f schema.Fragment, useDefault bool) schema.Fragment {
	out := schema.Merge(f)
	if def, ok := out["default"]; ok && def != nil && !isSequence(out) {
		out["enum"] = []any{def}
		return out
	}
	if format, _ := out["format"].(string); format == schema.FormatSequence {
		items, _ := out[schema.KeySequence].([]any)
		entries := make([]any, len(items))
		for i, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				entries[i] = item
				continue
			}
			entries[i] = prepareSegment(entry, useDefault)
		}
		out[schema.KeySequence] = entries
		return out
	}
	addWordHint(out)
	return out
}

func prepareSegment(entry schema.Fragment, useDefault bool) schema.Fragment {
	out := schema.Merge(entry)
	_, isVariable := out[schema.KeyTitle]
	if def, ok := out["default"]; ok && def != nil && (useDefault || !isVariable) {
		out["enum"] = []any{def}
		return out
	}
	delete(out, "default")
	if format, _ := out["format"].(string); format == schema.FormatSequence {
		return prepareForGeneration(out, useDefault)
	}
	addWordHint(out)
	return out
}

func addWordHint(f schema.Fragment) {
	if schema.Type(f) != "string" {
		return
	}
	for _, key := range []string{"format", "faker", schema.KeyFaker, "pattern", "enum"} {
		if _, ok := f[key]; ok {
			return
		}
	}
	f[schema.KeyFaker] = fake.HintNoun
}

func isSequence(f schema.Fragment) bool {
	format, _ := f["format"].(string)
	return format == schema.FormatSequence
}
