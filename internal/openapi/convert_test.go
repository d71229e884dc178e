package openapi

import (
	"context"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"

	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/schema"
)

const sampleDoc = `openapi: 3.0.0
info:
  title: Sample API
  version: "1.0.0"
  description: Demo
servers:
  - url: https://{region}.example.com/v1
    variables:
      region:
        default: eu
        enum: [eu, us]
tags:
  - name: animal
    description: Animal operations
paths:
  /pets/{petId}:
    parameters:
      - in: path
        name: petId
        required: true
        schema:
          type: integer
          minimum: 1
      - in: query
        name: limit
        schema:
          type: integer
    get:
      summary: Get pet
      operationId: getPet
      tags: [read, animal]
      parameters:
        - in: query
          name: limit
          required: true
          schema:
            type: integer
            maximum: 50
        - in: header
          name: X-Trace
          schema:
            type: string
            pattern: "^[a-f0-9]+$"
        - in: cookie
          name: session
          schema:
            type: string
      responses:
        "200":
          description: ok
          headers:
            X-Rate-Limit:
              schema:
                type: integer
          content:
            application/json:
              schema:
                $ref: '#/components/schemas/Pet'
        "404":
          description: missing
    put:
      summary: Replace pet
      tags: [write]
      requestBody:
        required: true
        content:
          application/xml:
            schema:
              $ref: '#/components/schemas/Pet'
          application/json:
            schema:
              $ref: '#/components/schemas/Pet'
            example:
              id: 1
              name: Fluffy
      responses:
        "204":
          description: replaced
  /tags:
    get:
      tags: [admin]
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema:
                type: array
                items:
                  type: string
                  maxLength: 12
components:
  schemas:
    Pet:
      type: object
      required: [id, name]
      properties:
        id:
          type: integer
          format: int64
        name:
          type: string
        owner:
          $ref: '#/components/schemas/Owner'
    Owner:
      type: object
      properties:
        name:
          type: string
`

func loadDoc(t *testing.T, doc string) *openapi3.T {
	t.Helper()
	loader := openapi3.NewLoader()
	out, err := loader.LoadFromData([]byte(strings.TrimSpace(doc)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := out.Validate(context.Background()); err != nil {
		t.Fatalf("validate: %v", err)
	}
	return out
}

func TestConvert_Basic(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if d.Title != "Sample API" || d.Version != "1.0.0" || d.Description != "Demo" {
		t.Fatalf("info: got %q %q %q", d.Title, d.Version, d.Description)
	}
	if len(d.Resources) != 2 {
		t.Fatalf("resources: got %d", len(d.Resources))
	}
	pets := d.Resources[0]
	if pets.UUID != "/pets/{petId}" || len(pets.Requests) != 2 {
		t.Fatalf("pets resource: got %q with %d requests", pets.UUID, len(pets.Requests))
	}
	if pets.Requests[0].Method != "GET" || pets.Requests[0].ID != "getPet" {
		t.Fatalf("first request: got %s %s", pets.Requests[0].Method, pets.Requests[0].ID)
	}
	if pets.Requests[1].ID != "PUT /pets/{petId}" || pets.Requests[1].Name != "Replace pet" {
		t.Fatalf("generated id: got %q name %q", pets.Requests[1].ID, pets.Requests[1].Name)
	}
}

func TestConvert_ComponentsGoToStore(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if diff := cmp.Diff([]string{"#/definitions/Owner", "#/definitions/Pet"}, d.Store.IDs(ir.KindConstraint)); diff != "" {
		t.Fatalf("constraint ids (-want +got):\n%s", diff)
	}
	c, ok := d.Store.Constraint("#/definitions/Pet")
	if !ok {
		t.Fatalf("Pet constraint missing")
	}
	owner := c.Schema()["properties"].(map[string]any)["owner"]
	if diff := cmp.Diff(map[string]any{"$ref": "#/definitions/Owner"}, owner); diff != "" {
		t.Fatalf("component refs must point at definitions (-want +got):\n%s", diff)
	}
	if _, ok := d.Store.Interface("tag_animal"); !ok {
		t.Fatalf("declared tag missing from interfaces")
	}
}

func TestConvert_ParametersMergeAndPathVariables(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	get := d.Resources[0].Requests[0]
	if len(get.Parameters.Queries) != 1 {
		t.Fatalf("queries: got %d", len(get.Parameters.Queries))
	}
	limit := get.Parameters.Queries[0]
	if !limit.Required || limit.Type != "integer" {
		t.Fatalf("operation parameter must override path-level one: got %+v", limit)
	}
	if !limit.Validate(50.0) || limit.Validate(51.0) {
		t.Fatalf("limit constraints not derived from schema: %v", limit.Constraints)
	}
	if len(get.Parameters.Headers) != 1 || !get.Parameters.Headers[0].Validate("beef") || get.Parameters.Headers[0].Validate("xyz") {
		t.Fatalf("header pattern: got %+v", get.Parameters.Headers)
	}
	if len(get.Parameters.Path) != 1 {
		t.Fatalf("cookie parameters are skipped and path parameters kept, got %+v", get.Parameters)
	}

	vars := d.Resources[0].Path.Variables()
	if len(vars) != 1 || vars[0].Type != "integer" || !vars[0].Required {
		t.Fatalf("path variable overlay: got %+v", vars)
	}
	if got := d.Resources[0].Path.Generate([]string{":"}, true); got != "/pets/:petId:" {
		t.Fatalf("re-emitted path: got %q", got)
	}
}

func TestConvert_RequestBodiesPerContentType(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	put := d.Resources[0].Requests[1]
	if len(put.Parameters.Body) != 2 || len(put.Contexts) != 2 {
		t.Fatalf("bodies: got %d, contexts %d", len(put.Parameters.Body), len(put.Contexts))
	}
	jsonBody := put.Parameters.Body[0]
	if jsonBody.SuperType() != ir.SuperTypeReference || !jsonBody.Required {
		t.Fatalf("json body: got %+v", jsonBody)
	}
	if diff := cmp.Diff(map[string]any{"id": 1.0, "name": "Fluffy"}, jsonBody.Default); diff != "" {
		t.Fatalf("example as default (-want +got):\n%s", diff)
	}
	xmlOnly := put.Parameters.Filter([]ir.Parameter{{Key: "Content-Type", Default: "application/xml"}})
	if len(xmlOnly.Body) != 1 {
		t.Fatalf("content-type filtering: got %d bodies", len(xmlOnly.Body))
	}
	if !xmlOnly.Body[0].IsValid(ir.Parameter{Key: "Content-Type", Default: "application/xml"}) {
		t.Fatalf("xml body must be applicable under application/xml")
	}

	got := jsonBody.JSONSchema(false, false)
	if diff := cmp.Diff(schema.Fragment{"$ref": "#/definitions/Pet", "x-title": "body"}, got); diff != "" {
		t.Fatalf("body schema (-want +got):\n%s", diff)
	}
}

func TestConvert_Responses(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	responses := d.Resources[0].Requests[0].Responses
	if len(responses) != 2 || responses[0].Code != "200" || responses[1].Description != "missing" {
		t.Fatalf("responses: got %+v", responses)
	}
	ok := responses[0]
	if len(ok.Parameters.Headers) != 1 || ok.Parameters.Headers[0].Key != "X-Rate-Limit" || ok.Parameters.Headers[0].UsedIn != ir.UsedInResponse {
		t.Fatalf("response headers: got %+v", ok.Parameters.Headers)
	}

	tags := d.Resources[1].Requests[0].Responses[0].Parameters.Body[0]
	arr, isArray := tags.Value.(ir.ArrayOf)
	if !isArray || arr.Items == nil || arr.Items.Type != "string" {
		t.Fatalf("array body: got %+v", tags.Value)
	}
	if !arr.Items.Validate("short") || arr.Items.Validate("much too long for this") {
		t.Fatalf("item constraints: got %v", arr.Items.Constraints)
	}
}

func TestConvert_Filters(t *testing.T) {
	t.Parallel()
	doc := loadDoc(t, sampleDoc)
	cases := []struct {
		name string
		opts []ConvertOption
		want []string
	}{
		{"include", []ConvertOption{WithIncludeTags([]string{"animal", "admin"})}, []string{"getPet", "GET /tags"}},
		{"exclude", []ConvertOption{WithExcludeTags([]string{"read"})}, []string{"PUT /pets/{petId}", "GET /tags"}},
		{"methods", []ConvertOption{WithMethods([]string{"put"})}, []string{"PUT /pets/{petId}"}},
		{"paths", []ConvertOption{WithPathPatterns([]string{"^/tags$"})}, []string{"GET /tags"}},
	}
	for _, tc := range cases {
		d, err := Convert(doc, tc.opts...)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		var got []string
		for _, r := range d.Resources {
			for _, req := range r.Requests {
				got = append(got, req.ID)
			}
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("%s (-want +got):\n%s", tc.name, diff)
		}
	}
	if _, err := Convert(doc, WithPathPatterns([]string{"("})); err == nil {
		t.Fatalf("invalid path pattern must fail")
	}
}

func TestConvert_BaseURI(t *testing.T) {
	t.Parallel()
	d, err := Convert(loadDoc(t, sampleDoc))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if got := d.BaseURI.Generate(nil, true); got != "https://eu.example.com/v1" {
		t.Fatalf("base uri: got %q", got)
	}
	region := d.BaseURI.Variables()[0]
	if !region.Validate("us") || region.Validate("ap") {
		t.Fatalf("server variable enum: got %v", region.Constraints)
	}
}

func TestLocalRef(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"other.yaml#/components/schemas/Thing": "#/definitions/Thing",
		"#/components/schemas/Pet":             "#/definitions/Pet",
		"#/components/parameters/limit":        "#/components/parameters/limit",
	}
	for in, want := range cases {
		if got := localRef(in); got != want {
			t.Errorf("localRef(%q): got %q", in, got)
		}
	}
}
