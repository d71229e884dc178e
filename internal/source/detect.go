package source

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the description language of a document.
type Format int

const (
	FormatUnknown Format = iota
	FormatSwagger2
	FormatOpenAPI3
	FormatRAML10
)

func (f Format) String() string {
	switch f {
	case FormatSwagger2:
		return "swagger2"
	case FormatOpenAPI3:
		return "openapi3"
	case FormatRAML10:
		return "raml10"
	default:
		return "unknown"
	}
}

const ramlHeader = "#%RAML 1.0"

// Detect classifies raw by its version marker: a "#%RAML 1.0" header line,
// an "openapi: 3.x" key or a "swagger: 2.0" key.
func Detect(raw []byte) (Format, error) {
	first, _, _ := bytes.Cut(bytes.TrimLeft(raw, "\ufeff \t\r\n"), []byte("\n"))
	if line := strings.TrimSpace(string(first)); strings.HasPrefix(line, "#%RAML") {
		if strings.HasPrefix(line, ramlHeader) {
			return FormatRAML10, nil
		}
		return FormatUnknown, fmt.Errorf("source: unsupported RAML version %q", line)
	}

	var root map[string]any
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return FormatUnknown, fmt.Errorf("parse document: %w", err)
	}
	if v, ok := root["openapi"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "3.") {
			return FormatOpenAPI3, nil
		}
	}
	if v, ok := root["swagger"]; ok {
		if s, _ := v.(string); strings.HasPrefix(strings.TrimSpace(s), "2.") {
			return FormatSwagger2, nil
		}
	}
	return FormatUnknown, fmt.Errorf("source: missing or unknown version (expected '#%%RAML 1.0', 'openapi: 3.x' or 'swagger: 2.0')")
}

// DetectDocument is Detect wrapped in a SpecError carrying d's location.
func DetectDocument(d *Document) (Format, error) {
	f, err := Detect(d.Raw)
	if err != nil {
		return FormatUnknown, &SpecError{Code: ParseError, Message: err.Error(), Location: d.Location, Cause: err}
	}
	return f, nil
}
