package ir

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/mark3labs/apiflow/internal/constraint"
)

// URLComponent is a templated string such as "/users/{id}" together with the
// parameter it tokenizes into.
type URLComponent struct {
	Name       string
	Template   string
	Parameter  Parameter
	Delimiters []string
}

// NewURLComponent tokenizes template with delims (an open and optional close
// literal) into a parameter named name.
func NewURLComponent(name, template string, delims ...string) URLComponent {
	return URLComponent{
		Name:       name,
		Template:   template,
		Parameter:  StringToParameter(name, template, delims),
		Delimiters: append([]string(nil), delims...),
	}
}

// URLComponentFromParameter wraps an already tokenized parameter.
func URLComponentFromParameter(name, template string, p Parameter, delims ...string) URLComponent {
	return URLComponent{
		Name:       name,
		Template:   template,
		Parameter:  p,
		Delimiters: append([]string(nil), delims...),
	}
}

// AddConstraint returns a copy of u whose parameter also carries c.
func (u URLComponent) AddConstraint(c constraint.Constraint) URLComponent {
	u.Parameter = u.Parameter.WithConstraints(c)
	return u
}

// WithVariable returns a copy of u whose variable segment keyed p.Key is
// overlaid with p. Unknown keys leave u unchanged.
func (u URLComponent) WithVariable(p Parameter) URLComponent {
	seq, ok := u.Parameter.Value.(Sequence)
	if !ok || p.Key == "" {
		return u
	}
	parts := make([]Parameter, len(seq.Parts))
	copy(parts, seq.Parts)
	for i := 1; i < len(parts); i += 2 {
		if parts[i].Key == p.Key {
			parts[i] = parts[i].Overlay(p)
		}
	}
	u.Parameter = u.Parameter.WithValue(Sequence{Parts: parts})
	return u
}

// Variables returns the variable segments of the component in order.
func (u URLComponent) Variables() []Parameter {
	seq, ok := u.Parameter.Value.(Sequence)
	if !ok {
		return nil
	}
	var out []Parameter
	for i, part := range seq.Parts {
		if i%2 == 1 {
			out = append(out, part)
		}
	}
	return out
}

// Generate renders the component. When delims are given, every variable is
// rewrapped with them first, so a template can be re-emitted in another
// templating syntax.
func (u URLComponent) Generate(delims []string, useDefault bool, opts ...GenerateOption) string {
	p := u.Parameter
	if len(delims) > 0 {
		if seq, ok := p.Value.(Sequence); ok {
			parts := make([]Parameter, len(seq.Parts))
			for i, part := range seq.Parts {
				if i%2 == 1 {
					part = part.WithDefault(WrapVariable(part.Key, delims))
				}
				parts[i] = part
			}
			p = p.WithValue(Sequence{Parts: parts})
		}
	}
	v := p.Generate(useDefault, opts...)
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// WrapVariable surrounds name with the open and close delimiters. A single
// delimiter is used on both sides.
func WrapVariable(name string, delims []string) string {
	open, closing := delimiterPair(delims)
	return open + name + closing
}

func delimiterPair(delims []string) (string, string) {
	switch len(delims) {
	case 0:
		return "", ""
	case 1:
		return delims[0], delims[0]
	default:
		return delims[0], delims[1]
	}
}

// ExtractSections splits template into alternating literal and variable
// sections. The result has odd length; variables sit at odd indexes.
// Unbalanced delimiters leave the template whole.
func ExtractSections(template string, delims []string) []string {
	open, closing := delimiterPair(delims)
	if open == "" {
		return []string{template}
	}
	re := regexp.MustCompile(regexp.QuoteMeta(open) + "(.+?)" + regexp.QuoteMeta(closing))
	var sections []string
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(template, -1) {
		sections = append(sections, template[last:m[0]], template[m[2]:m[3]])
		last = m[1]
	}
	sections = append(sections, template[last:])
	for i := 0; i < len(sections); i += 2 {
		if strings.Contains(sections[i], open) || strings.Contains(sections[i], closing) {
			return []string{template}
		}
	}
	return sections
}

// StringToParameter converts a template into a parameter keyed by name:
// a simple string parameter when there are no delimiters or no variables,
// a sequence parameter otherwise.
func StringToParameter(name, template string, delims []string) Parameter {
	if len(delims) == 0 {
		return simpleString(name, template)
	}
	sections := ExtractSections(template, delims)
	if len(sections) == 1 {
		return simpleString(name, sections[0])
	}
	parts := make([]Parameter, len(sections))
	for i, s := range sections {
		if i%2 == 1 {
			parts[i] = simpleString(s, s)
			continue
		}
		parts[i] = Parameter{Type: "string", Default: s}
	}
	return Parameter{
		Key:   name,
		Name:  name,
		Type:  "string",
		Value: Sequence{Parts: parts},
	}
}

func simpleString(key, value string) Parameter {
	return Parameter{Key: key, Name: key, Type: "string", Default: value}
}
