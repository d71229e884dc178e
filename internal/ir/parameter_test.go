package ir

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/apiflow/internal/constraint"
	"github.com/mark3labs/apiflow/internal/fake"
	"github.com/mark3labs/apiflow/internal/schema"
)

func TestJSONSchema_Simple(t *testing.T) {
	t.Parallel()
	p := Parameter{
		Key:         "id",
		Type:        "integer",
		Default:     3,
		Constraints: []constraint.Constraint{constraint.Minimum{Value: 0}},
	}
	want := schema.Fragment{"type": "integer", "x-title": "id", "default": 3, "minimum": 0.0}
	if diff := cmp.Diff(want, p.JSONSchema(true, true)); diff != "" {
		t.Fatalf("schema mismatch (-want +got):\n%s", diff)
	}
}

func TestInferType(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"":              "string",
		"integer":       "integer",
		"double":        "number",
		"float":         "number",
		"date-only":     "string",
		"datetime":      "string",
		"object":        "object",
		"customPayload": "customPayload",
	}
	for in, want := range cases {
		if got := InferType(in); got != want {
			t.Errorf("InferType(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestJSONSchema_DoesNotMutate(t *testing.T) {
	t.Parallel()
	p := Parameter{
		Type:    "object",
		Default: map[string]any{"a": 1},
		Constraints: []constraint.Constraint{
			constraint.JSONSchema{Fragment: schema.Fragment{"properties": schema.Fragment{"a": schema.Fragment{"$ref": "#/definitions/A"}}}},
		},
	}
	first := p.JSONSchema(true, true)
	second := p.JSONSchema(true, true)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated synthesis differs (-first +second):\n%s", diff)
	}
	first["default"].(map[string]any)["a"] = 2
	if got := p.Default.(map[string]any)["a"]; got != 1 {
		t.Fatalf("default mutated through schema: got %v", got)
	}
	js := p.Constraints[0].(constraint.JSONSchema).Fragment
	if _, ok := js["properties"].(schema.Fragment)["a"].(schema.Fragment)["$ref"]; !ok {
		t.Fatalf("ref replacement leaked into the constraint fragment")
	}
}

func TestJSONSchema_ReferenceModes(t *testing.T) {
	t.Parallel()
	p := Parameter{
		Key:   "user",
		Value: RefValued{Ref: Reference{Kind: KindConstraint, ID: "#/definitions/User~1Admin"}},
	}
	resolved := p.JSONSchema(true, true)
	if diff := cmp.Diff(schema.Fragment{"x-title": "user", "default": "User/Admin", "type": "string"}, resolved); diff != "" {
		t.Fatalf("resolved mismatch (-want +got):\n%s", diff)
	}
	kept := p.JSONSchema(true, false)
	if diff := cmp.Diff(schema.Fragment{"x-title": "user", "$ref": "#/definitions/User~1Admin"}, kept); diff != "" {
		t.Fatalf("kept mismatch (-want +got):\n%s", diff)
	}
	if _, ok := kept["default"]; ok {
		t.Fatalf("$ref mode must not carry a placeholder default")
	}
}

func TestJSONSchema_Array(t *testing.T) {
	t.Parallel()
	p := Parameter{Type: "array", Value: ArrayOf{Items: &Parameter{Type: "string"}}}
	want := schema.Fragment{"type": "array", "items": schema.Fragment{"type": "string"}}
	if diff := cmp.Diff(want, p.JSONSchema(false, true)); diff != "" {
		t.Fatalf("array mismatch (-want +got):\n%s", diff)
	}
	if _, ok := (Parameter{Type: "array", Value: ArrayOf{}}).JSONSchema(false, true)["items"]; ok {
		t.Fatalf("array without item parameter must omit items")
	}
}

func TestJSONSchema_Sequence(t *testing.T) {
	t.Parallel()
	u := NewURLComponent("pathname", "/users/{userId}", "{", "}")
	want := schema.Fragment{
		"type":    "string",
		"x-title": "pathname",
		"format":  "sequence",
		"x-sequence": []any{
			schema.Fragment{"type": "string", "default": "/users/"},
			schema.Fragment{"type": "string", "x-title": "userId", "default": "userId"},
			schema.Fragment{"type": "string", "default": ""},
		},
	}
	if diff := cmp.Diff(want, u.Parameter.JSONSchema(false, true)); diff != "" {
		t.Fatalf("sequence mismatch (-want +got):\n%s", diff)
	}
}

func TestJSONSchema_FakerFormats(t *testing.T) {
	t.Parallel()
	email := Parameter{Type: "string", Format: "email"}
	if got := email.JSONSchema(true, true)["x-faker"]; got != "internet.email" {
		t.Fatalf("email hint: got %v", got)
	}
	if _, ok := email.JSONSchema(false, true)["x-faker"]; ok {
		t.Fatalf("hints must be omitted without useFaker")
	}
	b := Parameter{Type: "string", Format: "byte", Constraints: []constraint.Constraint{constraint.Pattern{Regex: "^a$"}}}
	if got := b.JSONSchema(true, true)["pattern"]; got != "^a$" {
		t.Fatalf("existing pattern overwritten: got %v", got)
	}
}

func TestValidate_Conjunction(t *testing.T) {
	t.Parallel()
	p := Parameter{Type: "integer", Constraints: []constraint.Constraint{constraint.Minimum{Value: 0}, constraint.Maximum{Value: 10}}}
	for in, want := range map[int]bool{5: true, -1: false, 11: false} {
		if got := p.Validate(in); got != want {
			t.Errorf("Validate(%d): got %v, want %v", in, got, want)
		}
	}
	if !(Parameter{}).Validate("anything") {
		t.Errorf("no constraints must accept everything")
	}
}

func TestIsValid_Disjunction(t *testing.T) {
	t.Parallel()
	jsonCtx := Parameter{Key: "Content-Type", In: LocationHeader, Constraints: []constraint.Constraint{constraint.Enum{Values: []any{"application/json"}}}}
	other := Parameter{Key: "Accept", Constraints: []constraint.Constraint{constraint.Enum{Values: []any{"text/plain"}}}}
	body := Parameter{In: LocationBody, ApplicableContexts: []Parameter{other, jsonCtx}}

	if !(Parameter{}).IsValid(Parameter{Key: "x"}) {
		t.Fatalf("no contexts must always be valid")
	}
	if !body.IsValid(Parameter{Key: "Content-Type", Default: "application/json"}) {
		t.Fatalf("matching context rejected")
	}
	if body.IsValid(Parameter{Key: "Content-Type", Default: "text/xml"}) {
		t.Fatalf("mismatching value accepted")
	}
	if body.IsValid(Parameter{Key: "X-Other", Default: "application/json"}) {
		t.Fatalf("mismatching key accepted")
	}
}

func TestWithConstraints_CopiesSlice(t *testing.T) {
	t.Parallel()
	base := Parameter{Constraints: make([]constraint.Constraint, 1, 4)}
	base.Constraints[0] = constraint.Minimum{Value: 1}
	a := base.WithConstraints(constraint.Maximum{Value: 2})
	b := base.WithConstraints(constraint.Maximum{Value: 3})
	if len(base.Constraints) != 1 {
		t.Fatalf("base mutated: got %d constraints", len(base.Constraints))
	}
	if a.Constraints[1].(constraint.Maximum).Value != 2 || b.Constraints[1].(constraint.Maximum).Value != 3 {
		t.Fatalf("derived parameters share backing storage")
	}
}

func TestGenerate_UsesDefault(t *testing.T) {
	t.Parallel()
	p := Parameter{Type: "integer", Default: 7}
	if got := p.Generate(true); got != 7 {
		t.Fatalf("default: got %v", got)
	}
	q := Parameter{Type: "integer", Constraints: []constraint.Constraint{constraint.Minimum{Value: 0}, constraint.Maximum{Value: 10}}}
	g := fake.New(5)
	for i := 0; i < 20; i++ {
		v := q.Generate(false, WithGenerator(g))
		if !q.Validate(v) {
			t.Fatalf("generated value violates constraints: %v", v)
		}
	}
}

func TestGenerate_PinsSchemaDefault(t *testing.T) {
	t.Parallel()
	owner := Parameter{
		Key:   "owner",
		Value: RefValued{Ref: Reference{Kind: KindConstraint, ID: "#/definitions/User"}},
	}
	if got := owner.Generate(false, WithGenerator(fake.New(3))); got != "User" {
		t.Fatalf("reference placeholder: got %v", got)
	}
	lang := Parameter{Type: "string", Default: "en"}
	if got := lang.Generate(false, WithGenerator(fake.New(3))); got != "en" {
		t.Fatalf("string default: got %v", got)
	}
}

func TestGenerate_SchemaOverride(t *testing.T) {
	t.Parallel()
	p := Parameter{Type: "integer"}
	got := p.Generate(false, WithSchema(schema.Fragment{"type": "string", "enum": []any{"fixed"}}), WithGenerator(fake.New(2)))
	if got != "fixed" {
		t.Fatalf("override: got %v", got)
	}
}

func TestGenerate_SequenceKeepsLiterals(t *testing.T) {
	t.Parallel()
	u := NewURLComponent("pathname", "/users/{userId}/songs/{songId}", "{", "}")
	got, ok := u.Parameter.Generate(false, WithGenerator(fake.New(11))).(string)
	if !ok {
		t.Fatalf("sequence generation must yield a string")
	}
	if !strings.HasPrefix(got, "/users/") || !strings.Contains(got, "/songs/") {
		t.Fatalf("literals lost: got %q", got)
	}
	if strings.Contains(got, "{userId}") || strings.Contains(got, "userId") {
		t.Fatalf("variables were not generated: got %q", got)
	}
}

func TestReference_ResolveWithOverlay(t *testing.T) {
	t.Parallel()
	store := NewStore()
	store.Put(KindParameter, "limit", Parameter{
		Key:         "limit",
		Type:        "integer",
		Constraints: []constraint.Constraint{constraint.Minimum{Value: 0}, constraint.Maximum{Value: 100}},
	})
	ref := Reference{Kind: KindParameter, ID: "limit", Overlay: &Parameter{
		Description: "page size",
		Constraints: []constraint.Constraint{constraint.Maximum{Value: 50}},
	}}
	v, ok := ref.Resolve(store)
	if !ok {
		t.Fatalf("reference did not resolve")
	}
	p := v.(Parameter)
	if p.Key != "limit" || p.Description != "page size" {
		t.Fatalf("overlay scalars: got key=%q description=%q", p.Key, p.Description)
	}
	want := []constraint.Constraint{constraint.Minimum{Value: 0}, constraint.Maximum{Value: 50}}
	if diff := cmp.Diff(want, p.Constraints); diff != "" {
		t.Fatalf("overlay constraints (-want +got):\n%s", diff)
	}
	stored, _ := store.Parameter("limit")
	if stored.Description != "" {
		t.Fatalf("overlay mutated the stored parameter")
	}
	if _, ok := (Reference{Kind: KindParameter, ID: "missing"}).Resolve(store); ok {
		t.Fatalf("dangling reference resolved")
	}
}

func TestStore_InsertionOrder(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Put(KindConstraint, "b", constraint.Minimum{Value: 1})
	s.Put(KindConstraint, "a", constraint.Minimum{Value: 2})
	s.Put(KindConstraint, "b", constraint.Minimum{Value: 3})
	if diff := cmp.Diff([]string{"b", "a"}, s.IDs(KindConstraint)); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	c, ok := s.Constraint("b")
	if !ok || c.(constraint.Minimum).Value != 3 {
		t.Fatalf("replaced entry: got %v", c)
	}
	if s.Len(KindParameter) != 0 || s.IDs(KindParameter) != nil {
		t.Fatalf("empty kind must report no entries")
	}
}
