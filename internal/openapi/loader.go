// Package openapi is the Swagger 2.0 / OpenAPI 3 front-end. It loads a
// document with kin-openapi, converting Swagger 2.0 to OpenAPI 3 first, and
// normalizes it into an ir.Document.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	jsonyaml "github.com/invopop/yaml"

	"github.com/mark3labs/apiflow/internal/source"
)

// Load reads input (a path or an http/https URL) and returns it as an
// OpenAPI 3 document.
func Load(ctx context.Context, input string, opts ...source.Option) (*openapi3.T, error) {
	settings := source.NewSettings(opts...)
	d, err := source.Read(ctx, input, settings)
	if err != nil {
		return nil, err
	}
	return Parse(ctx, d, settings)
}

// Parse converts an already read document. Validation is permissive: a
// document whose only problems are unresolved references is still returned.
func Parse(ctx context.Context, d *source.Document, settings source.Settings) (*openapi3.T, error) {
	format, err := source.DetectDocument(d)
	if err != nil {
		return nil, err
	}
	logger := settings.Log()

	var doc *openapi3.T
	switch format {
	case source.FormatOpenAPI3:
		loader := newLoader(settings, d.IsFile())
		if d.IsFile() {
			doc, err = loader.LoadFromFile(d.Location)
		} else {
			doc, err = loader.LoadFromURI(d.URL)
		}
		if err != nil {
			return nil, mapValidateOrParseErr(err, d.Location)
		}
	case source.FormatSwagger2:
		raw := d.Raw
		if fixed, changed, ferr := normalizeSwagger2(raw); ferr != nil {
			logger.Warn("swagger 2.0 compatibility pass failed", slog.String("location", d.Location), slog.Any("error", ferr))
		} else if changed {
			logger.Debug("rewrote swagger 2.0 body parameters", slog.String("location", d.Location))
			raw = fixed
		}
		doc, err = convertV2ToV3(raw)
		if err != nil {
			return nil, &source.SpecError{Code: source.ConversionError, Message: fmt.Sprintf("convert v2→v3: %v", err), Location: d.Location, Cause: err}
		}
		if err := newLoader(settings, d.IsFile()).ResolveRefsIn(doc, nil); err != nil {
			logger.Warn("unresolved references after conversion", slog.String("location", d.Location), slog.Any("error", err))
		}
	default:
		return nil, &source.SpecError{Code: source.ParseError, Message: fmt.Sprintf("openapi: %s documents are not OpenAPI", format), Location: d.Location}
	}

	if err := doc.Validate(ctx); err != nil {
		if !canProceedDespiteValidation(err) {
			return nil, mapValidateOrParseErr(err, d.Location)
		}
		logger.Warn("proceeding despite validation errors", slog.String("location", d.Location), slog.Any("error", err))
	}
	return doc, nil
}

func newLoader(settings source.Settings, rootIsFile bool) *openapi3.Loader {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	client := settings.HTTPClient()
	// File refs are allowed when configured or when the root is a local file.
	allowFile := settings.AllowFileRefs || rootIsFile
	loader.ReadFromURIFunc = func(l *openapi3.Loader, uri *url.URL) ([]byte, error) {
		switch strings.ToLower(uri.Scheme) {
		case "", "file":
			if !allowFile {
				return nil, fmt.Errorf("blocked file ref: %s", uri.String())
			}
			path := uri.Path
			if path == "" {
				path = uri.Opaque
			}
			return os.ReadFile(path)
		case "http", "https":
			req, err := http.NewRequest(http.MethodGet, uri.String(), nil)
			if err != nil {
				return nil, err
			}
			resp, err := client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return nil, fmt.Errorf("http %d: %s", resp.StatusCode, uri.String())
			}
			return io.ReadAll(resp.Body)
		default:
			return nil, fmt.Errorf("unsupported ref scheme: %s", uri.Scheme)
		}
	}
	return loader
}

// convertV2ToV3 decodes through JSON so the json tags and custom unmarshalers
// of the openapi2 types apply.
func convertV2ToV3(data []byte) (*openapi3.T, error) {
	var v2 openapi2.T
	if err := jsonyaml.Unmarshal(data, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

func mapValidateOrParseErr(err error, location string) error {
	code := source.ValidationError
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "parse") || strings.Contains(msg, "invalid character") {
		code = source.ParseError
	}
	return &source.SpecError{Code: code, Message: err.Error(), Location: location, JSONPointer: extractJSONPointer(err), Cause: err}
}

var jsonPtrRe = regexp.MustCompile(`#/[^\s'"]+`)

func extractJSONPointer(err error) string {
	if err == nil {
		return ""
	}
	if me, ok := err.(openapi3.MultiError); ok && len(me) > 0 {
		return extractJSONPointer(me[0])
	}
	var se *openapi3.SchemaError
	if errors.As(err, &se) {
		if parts := se.JSONPointer(); len(parts) > 0 {
			return "#/" + strings.Join(parts, "/")
		}
		if se.SchemaField != "" {
			return se.SchemaField
		}
	}
	return jsonPtrRe.FindString(err.Error())
}

// canProceedDespiteValidation reports whether err only concerns references
// that could not be resolved.
func canProceedDespiteValidation(err error) bool {
	if err == nil {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "unresolved ref")
}
