package fake

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/apiflow/internal/schema"
)

func TestGenerate_RespectsNumericBounds(t *testing.T) {
	t.Parallel()
	g := New(42)
	f := schema.Fragment{"type": "integer", "minimum": 3.0, "maximum": 7.0}
	for i := 0; i < 50; i++ {
		v, ok := g.Generate(f).(int)
		if !ok {
			t.Fatalf("integer: got %T", g.Generate(f))
		}
		if v < 3 || v > 7 {
			t.Fatalf("integer out of bounds: got %d", v)
		}
	}
	excl := schema.Fragment{"type": "integer", "minimum": 0.0, "maximum": 2.0, "exclusiveMinimum": true, "exclusiveMaximum": true}
	for i := 0; i < 20; i++ {
		if v := g.Generate(excl).(int); v != 1 {
			t.Fatalf("exclusive integer: got %d, want 1", v)
		}
	}
	mult := schema.Fragment{"type": "integer", "minimum": 1.0, "maximum": 20.0, "multipleOf": 5.0}
	for i := 0; i < 20; i++ {
		if v := g.Generate(mult).(int); v%5 != 0 || v < 5 || v > 20 {
			t.Fatalf("multipleOf: got %d", v)
		}
	}
}

func TestGenerate_ExclusiveNumberBounds(t *testing.T) {
	t.Parallel()
	g := New(8)
	open := schema.Fragment{"type": "number", "minimum": 0.0, "maximum": 1.0, "exclusiveMinimum": true, "exclusiveMaximum": true}
	for i := 0; i < 50; i++ {
		if v := g.Generate(open).(float64); v <= 0 || v >= 1 {
			t.Fatalf("exclusive number: got %v", v)
		}
	}
	steps := schema.Fragment{"type": "number", "minimum": 0.0, "maximum": 10.0, "multipleOf": 5.0, "exclusiveMinimum": true, "exclusiveMaximum": true}
	for i := 0; i < 20; i++ {
		if v := g.Generate(steps).(float64); v != 5 {
			t.Fatalf("exclusive multipleOf: got %v, want 5", v)
		}
	}
}

func TestGenerate_EnumAndPattern(t *testing.T) {
	t.Parallel()
	g := New(7)
	if v := g.Generate(schema.Fragment{"type": "string", "enum": []any{"only"}}); v != "only" {
		t.Fatalf("enum: got %v", v)
	}
	re := regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)
	v, _ := g.Generate(schema.Fragment{"type": "string", "pattern": re.String()}).(string)
	if !re.MatchString(v) {
		t.Fatalf("pattern: %q does not match %s", v, re)
	}
}

func TestGenerate_SequenceConcatenates(t *testing.T) {
	t.Parallel()
	g := New(1)
	f := schema.Fragment{
		"type":   "string",
		"format": "sequence",
		"x-sequence": []any{
			schema.Fragment{"type": "string", "enum": []any{"/users/"}},
			schema.Fragment{"type": "integer", "enum": []any{12}},
			schema.Fragment{"type": "string", "enum": []any{"/songs"}},
		},
	}
	if got := g.Generate(f); got != "/users/12/songs" {
		t.Fatalf("sequence: got %v", got)
	}
}

func TestGenerate_ObjectsAndArrays(t *testing.T) {
	t.Parallel()
	g := New(3)
	f := schema.Fragment{
		"type": "object",
		"properties": schema.Fragment{
			"tags": schema.Fragment{"type": "array", "items": schema.Fragment{"type": "boolean"}, "minItems": 2, "maxItems": 2},
			"id":   schema.Fragment{"type": "integer"},
		},
	}
	obj, ok := g.Generate(f).(map[string]any)
	if !ok {
		t.Fatalf("object: got %T", g.Generate(f))
	}
	tags, ok := obj["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags: got %#v", obj["tags"])
	}
	if _, ok := tags[0].(bool); !ok {
		t.Fatalf("tags[0]: got %T", tags[0])
	}
	if _, ok := obj["id"].(int); !ok {
		t.Fatalf("id: got %T", obj["id"])
	}
}

func TestGenerate_Hints(t *testing.T) {
	t.Parallel()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := New(9, WithClock(func() time.Time { return now }))
	email, _ := g.Generate(schema.Fragment{"type": "string", "x-faker": HintEmail}).(string)
	if !strings.Contains(email, "@") {
		t.Fatalf("email hint: got %q", email)
	}
	recent, _ := g.Generate(schema.Fragment{"type": "string", "x-faker": HintRecentDate}).(string)
	ts, err := time.Parse(time.RFC3339, recent)
	if err != nil {
		t.Fatalf("recent date: %v", err)
	}
	if ts.After(now) || ts.Before(now.AddDate(0, 0, -8)) {
		t.Fatalf("recent date out of window: %s", ts)
	}
}
