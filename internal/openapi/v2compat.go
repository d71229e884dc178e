package openapi

import (
	"strings"

	"gopkg.in/yaml.v3"
)

var swagger2Methods = map[string]bool{
	"get": true, "post": true, "put": true, "delete": true,
	"patch": true, "options": true, "head": true,
}

// normalizeSwagger2 rewrites operations kin-openapi cannot convert:
// several body parameters are merged into one object body, and body
// parameters mixed with formData become formData fields consumed as
// multipart/form-data. On error the input is returned unchanged.
func normalizeSwagger2(data []byte) ([]byte, bool, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return data, false, err
	}
	paths, _ := doc["paths"].(map[string]any)
	changed := false
	for _, item := range paths {
		ops, _ := item.(map[string]any)
		for method, raw := range ops {
			if !swagger2Methods[strings.ToLower(method)] {
				continue
			}
			if op, ok := raw.(map[string]any); ok && fixOperation(op) {
				changed = true
			}
		}
	}
	if !changed {
		return data, false, nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return data, false, err
	}
	return out, true, nil
}

func fixOperation(op map[string]any) bool {
	params, _ := op["parameters"].([]any)
	var bodies, forms int
	for _, p := range params {
		switch paramIn(p) {
		case "body":
			bodies++
		case "formdata":
			forms++
		}
	}
	switch {
	case bodies > 0 && forms > 0:
		op["parameters"] = bodiesToFormData(params)
		consumes, _ := op["consumes"].([]any)
		if !containsString(consumes, "multipart/form-data") {
			op["consumes"] = append(consumes, "multipart/form-data")
		}
		return true
	case bodies > 1:
		op["parameters"] = mergeBodies(params)
		return true
	}
	return false
}

func paramIn(p any) string {
	pm, _ := p.(map[string]any)
	return strings.ToLower(asString(pm["in"]))
}

// mergeBodies replaces every body parameter with one object body whose
// properties are the original parameters.
func mergeBodies(params []any) []any {
	props := map[string]any{}
	var required []any
	rest := make([]any, 0, len(params))
	for _, p := range params {
		if paramIn(p) != "body" {
			rest = append(rest, p)
			continue
		}
		pm := p.(map[string]any)
		name := nameOr(pm, "field")
		s := paramSchema(pm)
		if s == nil {
			s = map[string]any{"type": "string"}
		}
		props[name] = s
		if req, _ := pm["required"].(bool); req {
			required = append(required, name)
		}
	}
	body := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		body["required"] = required
	}
	merged := map[string]any{"in": "body", "name": "body", "schema": body}
	return append([]any{merged}, rest...)
}

func bodiesToFormData(params []any) []any {
	out := make([]any, 0, len(params))
	for _, p := range params {
		if paramIn(p) == "body" {
			out = append(out, formField(p.(map[string]any)))
			continue
		}
		out = append(out, p)
	}
	return out
}

// formField turns a body parameter into a formData one. Referenced schemas
// cannot travel as form fields and degrade to strings.
func formField(pm map[string]any) map[string]any {
	out := map[string]any{"in": "formData", "name": nameOr(pm, "field")}
	if desc := asString(pm["description"]); desc != "" {
		out["description"] = desc
	}
	if req, ok := pm["required"].(bool); ok {
		out["required"] = req
	}
	src := paramSchema(pm)
	typ := asString(src["type"])
	if typ == "" {
		typ = "string"
	}
	out["type"] = typ
	if items, ok := src["items"].(map[string]any); ok {
		out["items"] = items
	}
	if format := asString(src["format"]); format != "" {
		out["format"] = format
	}
	return out
}

// paramSchema returns the schema of a parameter, synthesizing one from
// inline type keywords when needed.
func paramSchema(pm map[string]any) map[string]any {
	if s, ok := pm["schema"].(map[string]any); ok {
		return s
	}
	typ := asString(pm["type"])
	if typ == "" {
		return nil
	}
	s := map[string]any{"type": typ}
	if items, ok := pm["items"].(map[string]any); ok {
		s["items"] = items
	}
	if format := asString(pm["format"]); format != "" {
		s["format"] = format
	}
	return s
}

func nameOr(pm map[string]any, fallback string) string {
	if name := asString(pm["name"]); name != "" {
		return name
	}
	return fallback
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func containsString(list []any, want string) bool {
	for _, v := range list {
		if s, ok := v.(string); ok && s == want {
			return true
		}
	}
	return false
}
