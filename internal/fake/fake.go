// Package fake generates example values that satisfy a schema fragment.
package fake

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/mark3labs/apiflow/internal/schema"
)

// Hints understood through the "x-faker" keyword.
const (
	HintEmail      = "internet.email"
	HintRecentDate = "date.recent"
	HintNoun       = "company.bsNoun"
)

const (
	defaultMaxDepth = 6
	defaultMaxItems = 3
	rangeSpan       = 1000
)

// Generator produces values from fragments. It is not safe for concurrent use.
type Generator struct {
	faker    *gofakeit.Faker
	maxDepth int
	now      func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithMaxDepth bounds nesting of generated objects and arrays.
func WithMaxDepth(n int) Option { return func(g *Generator) { g.maxDepth = n } }

// WithClock overrides the reference time used for recent dates.
func WithClock(now func() time.Time) Option { return func(g *Generator) { g.now = now } }

// New returns a Generator seeded with seed. A zero seed draws a random one.
func New(seed int64, opts ...Option) *Generator {
	g := &Generator{
		faker:    gofakeit.New(seed),
		maxDepth: defaultMaxDepth,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns a value for f.
func (g *Generator) Generate(f schema.Fragment) any {
	return g.value(f, 0)
}

func (g *Generator) value(f schema.Fragment, depth int) any {
	if f == nil {
		return nil
	}
	if values, ok := f["enum"].([]any); ok && len(values) > 0 {
		return values[g.faker.IntRange(0, len(values)-1)]
	}
	if format, _ := f["format"].(string); format == schema.FormatSequence {
		return g.sequence(f, depth)
	}
	if branches, ok := f["allOf"].([]any); ok && len(branches) > 0 {
		merged := without(f, "allOf")
		for _, b := range branches {
			if bf, ok := b.(map[string]any); ok {
				merged = schema.Merge(merged, bf)
			}
		}
		return g.value(merged, depth)
	}
	for _, key := range []string{"anyOf", "oneOf"} {
		if branches, ok := f[key].([]any); ok && len(branches) > 0 {
			pick, _ := branches[g.faker.IntRange(0, len(branches)-1)].(map[string]any)
			return g.value(schema.Merge(without(f, key), pick), depth)
		}
	}
	if hint := hintOf(f); hint != "" {
		return g.hinted(hint)
	}

	switch typeOf(f) {
	case "null":
		return nil
	case "boolean":
		return g.faker.Bool()
	case "integer":
		return g.integer(f)
	case "number":
		return g.number(f)
	case "array":
		return g.array(f, depth)
	case "object":
		return g.object(f, depth)
	default:
		return g.str(f)
	}
}

func (g *Generator) sequence(f schema.Fragment, depth int) string {
	items, _ := f[schema.KeySequence].([]any)
	out := ""
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		v := g.value(entry, depth+1)
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out += s
			continue
		}
		out += fmt.Sprint(v)
	}
	return out
}

func (g *Generator) hinted(hint string) any {
	switch hint {
	case HintEmail:
		return g.faker.Email()
	case HintRecentDate:
		now := g.now()
		return g.faker.DateRange(now.AddDate(0, 0, -7), now).UTC().Format(time.RFC3339)
	case HintNoun:
		return g.faker.BS()
	default:
		return g.faker.Word()
	}
}

func (g *Generator) str(f schema.Fragment) string {
	if pattern, _ := f["pattern"].(string); pattern != "" {
		return g.faker.Regex(pattern)
	}
	switch format, _ := f["format"].(string); format {
	case "date-time":
		return g.faker.Date().UTC().Format(time.RFC3339)
	case "date":
		return g.faker.Date().Format("2006-01-02")
	case "time":
		return g.faker.Date().Format("15:04:05")
	case "email":
		return g.faker.Email()
	case "uuid":
		return g.faker.UUID()
	case "uri", "url":
		return g.faker.URL()
	}
	minLen, hasMin := intOf(f["minLength"])
	maxLen, hasMax := intOf(f["maxLength"])
	if !hasMin && !hasMax {
		return g.faker.Word()
	}
	if !hasMax {
		maxLen = minLen + 10
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	return g.faker.LetterN(uint(g.faker.IntRange(minLen, maxLen)))
}

func (g *Generator) bounds(f schema.Fragment) (lo, hi float64, loExcl, hiExcl bool) {
	lo, hasLo := floatOf(f["minimum"])
	hi, hasHi := floatOf(f["maximum"])
	loExcl, _ = f["exclusiveMinimum"].(bool)
	hiExcl, _ = f["exclusiveMaximum"].(bool)
	switch {
	case !hasLo && !hasHi:
		lo, hi = 0, rangeSpan
	case !hasLo:
		lo = hi - rangeSpan
	case !hasHi:
		hi = lo + rangeSpan
	}
	return lo, hi, loExcl, hiExcl
}

func (g *Generator) integer(f schema.Fragment) int {
	lo, hi, loExcl, hiExcl := g.bounds(f)
	lower := int(math.Ceil(lo))
	upper := int(math.Floor(hi))
	if loExcl && float64(lower) == lo {
		lower++
	}
	if hiExcl && float64(upper) == hi {
		upper--
	}
	if upper < lower {
		return lower
	}
	if step, ok := floatOf(f["multipleOf"]); ok && step >= 1 && step == math.Trunc(step) {
		s := int(step)
		first := int(math.Ceil(float64(lower)/step)) * s
		last := int(math.Floor(float64(upper)/step)) * s
		if last < first {
			return first
		}
		return first + g.faker.IntRange(0, (last-first)/s)*s
	}
	return g.faker.IntRange(lower, upper)
}

func (g *Generator) number(f schema.Fragment) float64 {
	lo, hi, loExcl, hiExcl := g.bounds(f)
	if step, ok := floatOf(f["multipleOf"]); ok && step > 0 {
		first := math.Ceil(lo/step) * step
		if loExcl && first == lo {
			first += step
		}
		last := math.Floor(hi/step) * step
		if hiExcl && last == hi {
			last -= step
		}
		count := int(math.Round((last - first) / step))
		if count < 0 {
			return first
		}
		return first + float64(g.faker.IntRange(0, count))*step
	}
	if loExcl {
		lo = math.Nextafter(lo, math.Inf(1))
	}
	if hiExcl {
		hi = math.Nextafter(hi, math.Inf(-1))
	}
	if hi <= lo {
		return lo
	}
	return g.faker.Float64Range(lo, hi)
}

func (g *Generator) array(f schema.Fragment, depth int) []any {
	if depth >= g.maxDepth {
		return []any{}
	}
	if tuple, ok := f["items"].([]any); ok {
		out := make([]any, 0, len(tuple))
		for _, item := range tuple {
			entry, _ := item.(map[string]any)
			out = append(out, g.value(entry, depth+1))
		}
		return out
	}
	items, _ := f["items"].(map[string]any)
	minItems, _ := intOf(f["minItems"])
	maxItems, hasMax := intOf(f["maxItems"])
	if !hasMax {
		maxItems = minItems + defaultMaxItems
	}
	if maxItems < minItems {
		maxItems = minItems
	}
	n := g.faker.IntRange(minItems, maxItems)
	unique, _ := f["uniqueItems"].(bool)
	out := make([]any, 0, n)
	seen := map[string]struct{}{}
	for attempts := 0; len(out) < n && attempts < n*10; attempts++ {
		v := g.value(items, depth+1)
		if unique {
			key := fmt.Sprintf("%#v", v)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
		}
		out = append(out, v)
	}
	return out
}

func (g *Generator) object(f schema.Fragment, depth int) map[string]any {
	out := map[string]any{}
	if depth >= g.maxDepth {
		return out
	}
	props, _ := f["properties"].(map[string]any)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		out[name] = g.value(prop, depth+1)
	}
	return out
}

func hintOf(f schema.Fragment) string {
	if h, _ := f[schema.KeyFaker].(string); h != "" {
		return h
	}
	h, _ := f["faker"].(string)
	return h
}

func typeOf(f schema.Fragment) string {
	if t := schema.Type(f); t != "" {
		return t
	}
	if _, ok := f["properties"]; ok {
		return "object"
	}
	if _, ok := f["items"]; ok {
		return "array"
	}
	return "string"
}

func without(f schema.Fragment, key string) schema.Fragment {
	out := make(schema.Fragment, len(f))
	for k, v := range f {
		if k != key {
			out[k] = v
		}
	}
	return out
}

func floatOf(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

func intOf(v any) (int, bool) {
	f, ok := floatOf(v)
	if !ok {
		return 0, false
	}
	return int(f), true
}
