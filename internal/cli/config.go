package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configField documents one key of the apiflow config file.
type configField struct {
	Name    string
	Example string
	Help    string
}

// configFields lists every field a config file may set, in the order init
// documents them. Each command reads the fields it understands and ignores
// the others.
var configFields = []configField{
	{"input", "./api.raml", "Path or URL to a RAML 1.0, Swagger 2.0 or OpenAPI 3 document (convert)."},
	{"inputs", "[./music.raml, ./petstore.yaml]", "Documents compiled in parallel by compile, each into <out>/<name>."},
	{"out", "./out", "Output directory. convert derives it from the document title when omitted."},
	{"delimiters", `[":"]`, `Re-emit URL templates with other delimiters, ":" or ["<<", ">>"].`},
	{"includeTags", "[public, read]", "Swagger/OpenAPI only. Keep operations carrying one of these tags."},
	{"excludeTags", "[internal]", "Swagger/OpenAPI only. Drop operations carrying one of these tags."},
	{"methods", "[get, post]", "Swagger/OpenAPI only. Keep these HTTP methods."},
	{"paths", `["^/pets"]`, "Swagger/OpenAPI only. Keep paths matching one of these patterns."},
	{"seed", "0", "Seed for generated example values."},
	{"dryRun", "false", "Preview planned outputs without writing files."},
	{"force", "false", "Overwrite non-empty output directories."},
	{"watch", "false", "Recompile when a document or one of its includes changes (compile)."},
	{"verbose", "false", "Enable verbose logging."},
}

// configKeys holds the normalized names of configFields.
var configKeys = func() map[string]bool {
	keys := make(map[string]bool, len(configFields))
	for _, f := range configFields {
		keys[normalizeKey(f.Name)] = true
	}
	return keys
}()

// readConfigFile loads the --config file, if any, into a map keyed by
// normalized field names. Keys are matched case-insensitively and ignore
// dashes and underscores.
func readConfigFile(cmd *cobra.Command) (string, map[string]any, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return "", nil, err
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, newUsageError(fmt.Sprintf("read config file %q: %v", path, err))
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", nil, newUsageError(fmt.Sprintf("parse config file %q: %v", path, err))
	}
	out := make(map[string]any, len(raw))
	for key, value := range raw {
		out[normalizeKey(key)] = value
	}
	return path, out, nil
}

func normalizeKey(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	lowered = strings.ReplaceAll(lowered, "-", "")
	lowered = strings.ReplaceAll(lowered, "_", "")
	return lowered
}

func valueAsString(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected string, got %T", v)
	}
}

func valueAsStringSlice(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(val) == "" {
			return nil, nil
		}
		return splitAndTrim(val), nil
	case []any:
		items := make([]string, 0, len(val))
		for idx, elem := range val {
			str, err := valueAsString(elem)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", idx, err)
			}
			if str != "" {
				items = append(items, str)
			}
		}
		return items, nil
	default:
		return nil, fmt.Errorf("expected string or list, got %T", v)
	}
}

func valueAsBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		trimmed := strings.ToLower(strings.TrimSpace(val))
		switch trimmed {
		case "true", "t", "1", "yes", "y":
			return true, nil
		case "false", "f", "0", "no", "n":
			return false, nil
		case "":
			return false, nil
		default:
			return false, fmt.Errorf("invalid boolean value %q", val)
		}
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", v)
	}
}

func valueAsInt64(v any) (int64, error) {
	switch val := v.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func splitAndTrim(csv string) []string {
	parts := strings.Split(csv, ",")
	cleaned := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return cleaned
}

func sanitizeList(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(items))
	result := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, exists := seen[trimmed]; exists {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

func intersect(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a))
	for _, item := range a {
		set[item] = struct{}{}
	}
	var result []string
	for _, item := range b {
		if _, ok := set[item]; ok {
			result = append(result, item)
		}
	}
	return result
}
