package typedecl

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/apiflow/internal/schema"
)

func newTestCompiler(t *testing.T) (*Compiler, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewCompiler(WithLogger(logger)), &buf
}

func TestCompile_ObjectWithInheritance(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	user := &Node{
		Kind:  KindObject,
		Name:  "User",
		Types: []string{"BaseEntity"},
		Properties: []*Node{
			{Kind: KindInteger, Name: "id", Types: []string{"integer"}},
			{Kind: KindArray, Name: "tags", Types: []string{"string[]"}},
		},
	}
	got := c.Compile(user, "")
	want := []schema.Fragment{{
		"$key":  "User",
		"allOf": []any{schema.Fragment{"$ref": "#/definitions/BaseEntity"}},
		"properties": schema.Fragment{
			"id":   schema.Fragment{"type": "integer"},
			"tags": schema.Fragment{"type": "array", "items": schema.Fragment{"type": "string"}},
		},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("compiled schema mismatch (-want +got):\n%s", diff)
	}
	// allOf is not the only non-descriptive key, so it must survive.
	if _, ok := schema.Normalize(got[0])["allOf"]; !ok {
		t.Fatalf("normalization dissolved a multi-key allOf")
	}
}

func TestCompile_RequiredAndFacets(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	minLen, maxItems := 1, 3
	lo := 0.0
	unique := true
	n := &Node{
		Kind:  KindObject,
		Name:  "Playlist",
		Types: []string{"object"},
		Properties: []*Node{
			{Kind: KindString, Name: "name", Types: []string{"string"}, Required: true, Facets: Facets{MinLength: &minLen, Pattern: "^[a-z]+$"}},
			{Kind: KindNumber, Name: "rating", Types: []string{"number"}, Facets: Facets{Minimum: &lo, Enum: []any{1.0, 2.0}}},
			{Kind: KindArray, Name: "songs", Types: []string{"array"}, Items: []string{"Song"}, Required: true, Facets: Facets{UniqueItems: &unique, MaxItems: &maxItems}},
		},
	}
	want := schema.Fragment{
		"$key": "Playlist",
		"type": "object",
		"properties": schema.Fragment{
			"name":   schema.Fragment{"type": "string", "minLength": 1, "pattern": "^[a-z]+$"},
			"rating": schema.Fragment{"type": "number", "minimum": 0.0, "enum": []any{1.0, 2.0}},
			"songs": schema.Fragment{
				"type":        "array",
				"uniqueItems": true,
				"maxItems":    3,
				"items":       schema.Fragment{"$ref": "#/definitions/Song"},
			},
		},
		"required": []any{"name", "songs"},
	}
	if diff := cmp.Diff(want, c.Compile(n, "")[0]); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCompile_TypeExpressions(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		types []string
		want  schema.Fragment
	}{
		{
			name:  "union",
			types: []string{"Cat | Dog"},
			want:  schema.Fragment{"allOf": []any{schema.Fragment{"anyOf": []any{schema.Fragment{"$ref": "#/definitions/Cat"}, schema.Fragment{"$ref": "#/definitions/Dog"}}}}},
		},
		{
			name:  "mixed implicit array",
			types: []string{"(Cat | nil)[]"},
			want: schema.Fragment{"type": "array", "items": schema.Fragment{"anyOf": []any{
				schema.Fragment{"$ref": "#/definitions/Cat"},
				schema.Fragment{"type": "null"},
			}}},
		},
		{
			name:  "single concrete hoisted",
			types: []string{"object", "Named"},
			want:  schema.Fragment{"type": "object", "allOf": []any{schema.Fragment{"$ref": "#/definitions/Named"}}},
		},
		{
			name:  "references only",
			types: []string{"Named", "Timestamped"},
			want: schema.Fragment{"allOf": []any{
				schema.Fragment{"$ref": "#/definitions/Named"},
				schema.Fragment{"$ref": "#/definitions/Timestamped"},
			}},
		},
		{
			name:  "grouped union",
			types: []string{"(Cat | Dog)"},
			want:  schema.Fragment{"allOf": []any{schema.Fragment{"anyOf": []any{schema.Fragment{"$ref": "#/definitions/Cat"}, schema.Fragment{"$ref": "#/definitions/Dog"}}}}},
		},
		{
			name:  "grouped array in union",
			types: []string{"(Cat | Dog)[] | Bird"},
			want: schema.Fragment{"allOf": []any{schema.Fragment{"anyOf": []any{
				schema.Fragment{"type": "array", "items": schema.Fragment{"anyOf": []any{
					schema.Fragment{"$ref": "#/definitions/Cat"},
					schema.Fragment{"$ref": "#/definitions/Dog"},
				}}},
				schema.Fragment{"$ref": "#/definitions/Bird"},
			}}}},
		},
		{
			name:  "nested group branch",
			types: []string{"Cat[] | (Dog | Bird)"},
			want: schema.Fragment{"allOf": []any{schema.Fragment{"anyOf": []any{
				schema.Fragment{"type": "array", "items": schema.Fragment{"$ref": "#/definitions/Cat"}},
				schema.Fragment{"anyOf": []any{
					schema.Fragment{"$ref": "#/definitions/Dog"},
					schema.Fragment{"$ref": "#/definitions/Bird"},
				}},
			}}}},
		},
	}
	for _, tc := range cases {
		c, _ := newTestCompiler(t)
		got := c.Compile(&Node{Kind: KindUnion, Types: tc.types}, "")[0]
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestCompile_MultipleConcreteSupertypes(t *testing.T) {
	t.Parallel()
	c, logs := newTestCompiler(t)
	got := c.Compile(&Node{Kind: KindUnion, Types: []string{"string", "Named", "Tag[]"}}, "")[0]
	want := schema.Fragment{
		"type":  "array",
		"items": schema.Fragment{"$ref": "#/definitions/Tag"},
		"allOf": []any{schema.Fragment{"$ref": "#/definitions/Named"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "multiple concrete supertypes") {
		t.Fatalf("conflict was not logged: %q", logs.String())
	}
}

func TestCompile_AuxiliarySchemas(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	n := &Node{
		Kind:  KindObject,
		Name:  "Event",
		Types: []string{"object"},
		Properties: []*Node{
			{Kind: KindDateOnly, Name: "day"},
			{Kind: KindDateOnly, Name: "until"},
			{Kind: KindFile, Name: "attachment"},
		},
	}
	got := c.Compile(n, "lib")
	if len(got) != 3 {
		t.Fatalf("expected primary plus two auxiliary schemas, got %d", len(got))
	}
	props := got[0]["properties"].(schema.Fragment)
	if diff := cmp.Diff(schema.Fragment{"type": "string", "$ref": "#/definitions/lib.$DateOnly"}, props["day"]); diff != "" {
		t.Fatalf("date-only property (-want +got):\n%s", diff)
	}
	if got[1]["$key"] != "lib.$DateOnly" || got[1]["description"] != "full-date as defined in RFC#3339" {
		t.Fatalf("date-only auxiliary: got %v", got[1])
	}
	if got[2]["$key"] != "lib.$File" {
		t.Fatalf("file auxiliary: got %v", got[2])
	}
}

func TestCompile_ExternalLiterals(t *testing.T) {
	t.Parallel()
	c, logs := newTestCompiler(t)
	js := &Node{Kind: KindExternal, Name: "Pet", Types: []string{`{"type":"object","definitions":{"Tag":{"type":"string"}}}`}}
	got := c.Compile(js, "")
	want := []schema.Fragment{
		{"$key": "Pet", "type": "object"},
		{"$key": "Tag", "type": "string"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("json literal (-want +got):\n%s", diff)
	}
	xml := c.Compile(&Node{Kind: KindExternal, Name: "Doc", Types: []string{"<xs:schema/>"}}, "")[0]
	if xml["x-xml"] != "<xs:schema/>" {
		t.Fatalf("xml literal: got %v", xml)
	}
	ref := c.Compile(&Node{Kind: KindExternal, Name: "Alias", Types: []string{"Person"}}, "people")[0]
	if diff := cmp.Diff(schema.Fragment{"$key": "people.Alias", "$ref": "#/definitions/people.Person"}, ref); diff != "" {
		t.Fatalf("in-place reference (-want +got):\n%s", diff)
	}
	broken := c.Compile(&Node{Kind: KindExternal, Name: "Broken", Types: []string{"{not json}"}}, "")[0]
	if diff := cmp.Diff(schema.Fragment{"$key": "Broken"}, broken); diff != "" {
		t.Fatalf("broken literal (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "invalid JSON schema literal") {
		t.Fatalf("broken literal was not logged")
	}
}

func TestCompile_DescriptiveFields(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	n := &Node{
		Kind:        KindInteger,
		Name:        "count",
		DisplayName: "Item count",
		Description: "How many items",
		Types:       []string{"integer"},
		Examples:    []any{"12", "not json"},
	}
	want := schema.Fragment{
		"$key":        "count",
		"type":        "integer",
		"title":       "Item count",
		"description": "How many items",
		"x-examples":  []any{12.0, "not json"},
	}
	if diff := cmp.Diff(want, c.Compile(n, "")[0]); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	s := c.Compile(&Node{Kind: KindString, Name: "code", Types: []string{"string"}, Examples: []any{"12"}}, "")[0]
	if diff := cmp.Diff([]any{"12"}, s["x-examples"]); diff != "" {
		t.Fatalf("string examples must stay strings (-want +got):\n%s", diff)
	}
}

func TestCompile_UnknownKindDegrades(t *testing.T) {
	t.Parallel()
	c, logs := newTestCompiler(t)
	got := c.Compile(&Node{Kind: "mystery", Name: "X"}, "")[0]
	if diff := cmp.Diff(schema.Fragment{"$key": "X"}, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "unrecognized type declaration") {
		t.Fatalf("unknown kind was not logged")
	}
}

func TestDefinitions_LibrariesAndNormalization(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	defs := c.Definitions(
		Library{Types: []*Node{
			{Kind: KindObject, Name: "Admin", Types: []string{"lib.User"}},
			{Kind: KindDateTime, Name: "Stamp"},
		}},
		Library{Namespace: "lib", Types: []*Node{
			{Kind: KindObject, Name: "User", Types: []string{"object"}},
		}},
	)
	if diff := cmp.Diff([]string{"Admin", "Stamp", "$DateTime", "lib.User"}, defs.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
	admin, _ := defs.Get("Admin")
	if diff := cmp.Diff(schema.Fragment{"$ref": "#/definitions/lib.User"}, admin); diff != "" {
		t.Fatalf("single allOf must dissolve (-want +got):\n%s", diff)
	}
	stamp, _ := defs.Get("$DateTime")
	if diff := cmp.Diff(schema.Fragment{"type": "string", "description": "datetime"}, stamp); diff != "" {
		t.Fatalf("datetime auxiliary (-want +got):\n%s", diff)
	}
}

func TestCompile_InlineItems(t *testing.T) {
	t.Parallel()
	c, _ := newTestCompiler(t)
	n := &Node{
		Kind:  KindArray,
		Name:  "Stamps",
		Types: []string{"array"},
		ItemNode: &Node{
			Kind:  KindObject,
			Types: []string{"object"},
			Properties: []*Node{
				{Kind: KindDateTime, Name: "at", Required: true},
			},
		},
	}
	got := c.Compile(n, "")
	want := []schema.Fragment{
		{
			"$key": "Stamps",
			"type": "array",
			"items": schema.Fragment{
				"type": "object",
				"properties": schema.Fragment{
					"at": schema.Fragment{"type": "string", "$ref": "#/definitions/$DateTime"},
				},
				"required": []any{"at"},
			},
		},
		{"$key": "$DateTime", "type": "string", "description": "datetime"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
