// Package ir holds the canonical, format-independent model that front-ends
// build and serializers consume: Parameters with their constraints, the
// References and Store that share definitions between them, URL templates and
// the document composites.
package ir

import (
	"strings"

	"github.com/mark3labs/apiflow/internal/constraint"
	"github.com/mark3labs/apiflow/internal/schema"
)

// Location is where a parameter travels in an HTTP exchange.
type Location string

const (
	LocationHeader Location = "header"
	LocationQuery  Location = "query"
	LocationBody   Location = "body"
	LocationPath   Location = "path"
)

// UsedIn tells whether a parameter belongs to a request or a response.
type UsedIn string

const (
	UsedInRequest  UsedIn = "request"
	UsedInResponse UsedIn = "response"
)

// SuperType discriminates the shape of a Parameter's payload.
type SuperType string

const (
	SuperTypeNone      SuperType = "none"
	SuperTypeSequence  SuperType = "sequence"
	SuperTypeArray     SuperType = "array"
	SuperTypeReference SuperType = "reference"
)

// Variant is the payload of a Parameter. The set of implementations is
// closed: Simple, Sequence, ArrayOf and RefValued.
type Variant interface {
	superType() SuperType
}

// Simple carries no payload; the parameter is described by its type,
// default and constraints alone.
type Simple struct{}

// Sequence alternates literal and variable parameters. It always has odd
// length, starts and ends with a key-less literal, and its variables (odd
// indexes) carry a key.
type Sequence struct {
	Parts []Parameter
}

// ArrayOf describes the items of an array parameter.
type ArrayOf struct {
	Items *Parameter
}

// RefValued substitutes a shared definition at synthesis time.
type RefValued struct {
	Ref Reference
}

func (Simple) superType() SuperType    { return SuperTypeNone }
func (Sequence) superType() SuperType  { return SuperTypeSequence }
func (ArrayOf) superType() SuperType   { return SuperTypeArray }
func (RefValued) superType() SuperType { return SuperTypeReference }

// Parameter is the canonical description of a value. Parameters are treated
// as immutable: every With* method returns a modified copy.
type Parameter struct {
	Key         string
	Name        string
	Description string
	In          Location
	UsedIn      UsedIn
	Type        string
	Format      string
	Default     any
	Required    bool

	// Value is nil for simple parameters.
	Value Variant

	// Constraints form a conjunction.
	Constraints []constraint.Constraint
	// ApplicableContexts form a disjunction of conditions under which the
	// parameter is usable. An empty list means always.
	ApplicableContexts []Parameter
	Interfaces         map[string]Reference
}

// SuperType returns the discriminator derived from Value.
func (p Parameter) SuperType() SuperType {
	if p.Value == nil {
		return SuperTypeNone
	}
	return p.Value.superType()
}

// IsLiteral reports whether p is a key-less sequence segment.
func (p Parameter) IsLiteral() bool { return p.Key == "" }

func (p Parameter) WithKey(key string) Parameter {
	p.Key = key
	return p
}

func (p Parameter) WithName(name string) Parameter {
	p.Name = name
	return p
}

func (p Parameter) WithDefault(v any) Parameter {
	p.Default = v
	return p
}

func (p Parameter) WithValue(v Variant) Parameter {
	p.Value = v
	return p
}

// WithConstraints returns a copy of p with cs appended to its constraints.
func (p Parameter) WithConstraints(cs ...constraint.Constraint) Parameter {
	out := make([]constraint.Constraint, 0, len(p.Constraints)+len(cs))
	out = append(out, p.Constraints...)
	p.Constraints = append(out, cs...)
	return p
}

// WithContexts returns a copy of p with ctxs appended to its applicable
// contexts.
func (p Parameter) WithContexts(ctxs ...Parameter) Parameter {
	out := make([]Parameter, 0, len(p.ApplicableContexts)+len(ctxs))
	out = append(out, p.ApplicableContexts...)
	p.ApplicableContexts = append(out, ctxs...)
	return p
}

// WithInterface returns a copy of p with ref attached under name.
func (p Parameter) WithInterface(name string, ref Reference) Parameter {
	out := make(map[string]Reference, len(p.Interfaces)+1)
	for k, v := range p.Interfaces {
		out[k] = v
	}
	out[name] = ref
	p.Interfaces = out
	return p
}

// Overlay merges patch onto p field by field. Non-zero scalars of patch win,
// constraints are replaced per kind, contexts are replaced per key and
// interfaces are merged.
func (p Parameter) Overlay(patch Parameter) Parameter {
	out := p
	if patch.Key != "" {
		out.Key = patch.Key
	}
	if patch.Name != "" {
		out.Name = patch.Name
	}
	if patch.Description != "" {
		out.Description = patch.Description
	}
	if patch.In != "" {
		out.In = patch.In
	}
	if patch.UsedIn != "" {
		out.UsedIn = patch.UsedIn
	}
	if patch.Type != "" {
		out.Type = patch.Type
	}
	if patch.Format != "" {
		out.Format = patch.Format
	}
	if patch.Default != nil {
		out.Default = patch.Default
	}
	if patch.Value != nil {
		out.Value = patch.Value
	}
	out.Required = p.Required || patch.Required

	out.Constraints = append([]constraint.Constraint(nil), p.Constraints...)
	for _, c := range patch.Constraints {
		replaced := false
		for i, existing := range out.Constraints {
			if existing.Kind() == c.Kind() {
				out.Constraints[i] = c
				replaced = true
			}
		}
		if !replaced {
			out.Constraints = append(out.Constraints, c)
		}
	}

	out.ApplicableContexts = append([]Parameter(nil), p.ApplicableContexts...)
	for _, ctx := range patch.ApplicableContexts {
		replaced := false
		for i, existing := range out.ApplicableContexts {
			if existing.Key == ctx.Key {
				out.ApplicableContexts[i] = existing.Overlay(ctx)
				replaced = true
			}
		}
		if !replaced {
			out.ApplicableContexts = append(out.ApplicableContexts, ctx)
		}
	}

	if len(patch.Interfaces) > 0 {
		merged := make(map[string]Reference, len(p.Interfaces)+len(patch.Interfaces))
		for k, v := range p.Interfaces {
			merged[k] = v
		}
		for k, v := range patch.Interfaces {
			merged[k] = v
		}
		out.Interfaces = merged
	}
	return out
}

// Validate reports whether v satisfies every constraint of p.
func (p Parameter) Validate(v any) bool {
	return constraint.All(p.Constraints, v)
}

// IsValid reports whether candidate meets at least one applicable context of
// p. A context matches when it has the candidate's key and validates the
// candidate's default.
func (p Parameter) IsValid(candidate Parameter) bool {
	if len(p.ApplicableContexts) == 0 {
		return true
	}
	for _, ctx := range p.ApplicableContexts {
		if ctx.Key == candidate.Key && ctx.Validate(candidate.Default) {
			return true
		}
	}
	return false
}

var primitiveTypes = map[string]bool{
	"integer": true,
	"number":  true,
	"array":   true,
	"string":  true,
	"object":  true,
	"boolean": true,
	"null":    true,
}

// InferType maps a declared type token onto a JSON type name.
func InferType(t string) string {
	if primitiveTypes[t] {
		return t
	}
	if strings.Contains(t, "double") || strings.Contains(t, "float") {
		return "number"
	}
	if strings.Contains(t, "date") {
		return "string"
	}
	if t == "" {
		return "string"
	}
	return t
}

// fakerFormats adds generation hints for well-known formats.
var fakerFormats = map[string]schema.Fragment{
	"email": {schema.KeyFaker: "internet.email"},
	// base64 encoded
	"byte":      {"pattern": `^(?:[A-Za-z0-9+/]{4})*(?:[A-Za-z0-9+/]{2}==|[A-Za-z0-9+/]{3}=)?$`},
	"binary":    {"pattern": "^.*$"},
	"password":  {"pattern": "^.*$"},
	"date-time": {schema.KeyFaker: "date.recent"},
	"sequence":  {"format": schema.FormatSequence},
}

// JSONSchema synthesizes the schema fragment described by p. With useFaker
// the fragment carries generation hints for well-known formats. With
// resolveRefs every reference becomes a literal placeholder string, otherwise
// it stays a "$ref" holding the referenced id. The result never shares
// structure with p.
func (p Parameter) JSONSchema(useFaker, resolveRefs bool) schema.Fragment {
	f := p.synthesize(useFaker)
	if resolveRefs {
		out, _ := schema.ReplaceRefs(f).(schema.Fragment)
		return out
	}
	out, _ := schema.SimplifyRefs(f).(schema.Fragment)
	return out
}

func (p Parameter) synthesize(useFaker bool) schema.Fragment {
	f := constraint.MergeAll(p.Constraints)
	switch v := p.Value.(type) {
	case nil, Simple:
		p.addType(f)
		p.addTitle(f)
		if p.Default != nil {
			f["default"] = schema.CloneValue(p.Default)
		}
	case Sequence:
		p.addType(f)
		p.addTitle(f)
		parts := make([]any, len(v.Parts))
		for i, part := range v.Parts {
			parts[i] = part.synthesize(useFaker)
		}
		f[schema.KeySequence] = parts
		f["format"] = schema.FormatSequence
	case ArrayOf:
		p.addType(f)
		p.addTitle(f)
		if v.Items != nil {
			f["items"] = v.Items.synthesize(useFaker)
		}
	case RefValued:
		p.addTitle(f)
		f[schema.KeyRef] = v.Ref
	}
	if useFaker {
		for k, val := range fakerFormats[p.Format] {
			if _, set := f[k]; !set {
				f[k] = val
			}
		}
	}
	return f
}

func (p Parameter) addType(f schema.Fragment) {
	f["type"] = InferType(p.Type)
}

func (p Parameter) addTitle(f schema.Fragment) {
	if p.Key != "" {
		f[schema.KeyTitle] = p.Key
	}
}
