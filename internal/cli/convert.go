package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/mark3labs/apiflow/internal/emitter/schemaemitter"
	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/openapi"
	"github.com/mark3labs/apiflow/internal/raml"
	"github.com/mark3labs/apiflow/internal/schema"
	"github.com/mark3labs/apiflow/internal/source"
)

// ConvertConfig captures all inputs that influence the convert command after
// merging defaults, config file values, and CLI overrides.
type ConvertConfig struct {
	Input       string
	Out         string
	Delimiters  []string
	IncludeTags []string
	ExcludeTags []string
	Methods     []string
	Paths       []string
	Seed        int64
	ConfigPath  string
	DryRun      bool
	Force       bool
	Verbose     bool
}

var convertRunner = runConvert

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a RAML or Swagger/OpenAPI document into JSON schemas",
		Long: "Convert a RAML 1.0, Swagger 2.0 or OpenAPI 3 document into definitions.json and endpoints.json. " +
			"Options can be provided via flags, config files, or defaults.",
		Example: strings.TrimSpace(`  apiflow convert --input api.raml --out ./out
  apiflow convert --input openapi.yaml --delimiters ":" --methods get,post
  apiflow --config apiflow.yaml convert --force --dry-run`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConvertConfig(cmd)
			if err != nil {
				return err
			}
			return convertRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("input", "", "Path or URL to the RAML, Swagger or OpenAPI document")
	flags.String("out", "", "Output directory (derived from the document title when omitted)")
	flags.StringSlice("delimiters", nil, "Re-emit URL templates with these delimiters, e.g. ':' or '<<,>>'")
	flags.StringSlice("include-tags", nil, "Only include operations with these tags (OpenAPI)")
	flags.StringSlice("exclude-tags", nil, "Exclude operations with these tags (OpenAPI)")
	flags.StringSlice("methods", nil, "Only include these HTTP methods (OpenAPI)")
	flags.StringSlice("paths", nil, "Only include paths matching these regular expressions (OpenAPI)")
	flags.Int64("seed", 0, "Seed for generated example values")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")

	return cmd
}

func resolveConvertConfig(cmd *cobra.Command) (*ConvertConfig, error) {
	cfg := ConvertConfig{}

	path, raw, err := readConfigFile(cmd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.ConfigPath = path
		if err := cfg.applyFile(path, raw); err != nil {
			return nil, err
		}
	}

	if err := applyConvertFlagOverrides(cmd.Flags(), &cfg); err != nil {
		return nil, err
	}

	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *ConvertConfig) applyFile(path string, raw map[string]any) error {
	for key, value := range raw {
		var err error
		switch key {
		case "input":
			c.Input, err = valueAsString(value)
		case "out":
			c.Out, err = valueAsString(value)
		case "delimiters":
			c.Delimiters, err = valueAsStringSlice(value)
		case "includetags":
			c.IncludeTags, err = valueAsStringSlice(value)
		case "excludetags":
			c.ExcludeTags, err = valueAsStringSlice(value)
		case "methods":
			c.Methods, err = valueAsStringSlice(value)
		case "paths":
			c.Paths, err = valueAsStringSlice(value)
		case "seed":
			c.Seed, err = valueAsInt64(value)
		case "dryrun":
			c.DryRun, err = valueAsBool(value)
		case "force":
			c.Force, err = valueAsBool(value)
		case "verbose":
			c.Verbose, err = valueAsBool(value)
		default:
			if !configKeys[key] {
				return newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
			}
		}
		if err != nil {
			return newUsageError(fmt.Sprintf("config field %q: %v", key, err))
		}
	}
	return nil
}

func applyConvertFlagOverrides(flags *pflag.FlagSet, cfg *ConvertConfig) error {
	var err error
	if flags.Changed("input") {
		if cfg.Input, err = flags.GetString("input"); err != nil {
			return err
		}
	}
	if flags.Changed("out") {
		if cfg.Out, err = flags.GetString("out"); err != nil {
			return err
		}
	}
	if flags.Changed("delimiters") {
		if cfg.Delimiters, err = flags.GetStringSlice("delimiters"); err != nil {
			return err
		}
	}
	if flags.Changed("include-tags") {
		if cfg.IncludeTags, err = flags.GetStringSlice("include-tags"); err != nil {
			return err
		}
	}
	if flags.Changed("exclude-tags") {
		if cfg.ExcludeTags, err = flags.GetStringSlice("exclude-tags"); err != nil {
			return err
		}
	}
	if flags.Changed("methods") {
		if cfg.Methods, err = flags.GetStringSlice("methods"); err != nil {
			return err
		}
	}
	if flags.Changed("paths") {
		if cfg.Paths, err = flags.GetStringSlice("paths"); err != nil {
			return err
		}
	}
	if flags.Changed("seed") {
		if cfg.Seed, err = flags.GetInt64("seed"); err != nil {
			return err
		}
	}
	if flags.Changed("dry-run") {
		if cfg.DryRun, err = flags.GetBool("dry-run"); err != nil {
			return err
		}
	}
	if flags.Changed("force") {
		if cfg.Force, err = flags.GetBool("force"); err != nil {
			return err
		}
	}
	if flags.Changed("verbose") {
		if cfg.Verbose, err = flags.GetBool("verbose"); err != nil {
			return err
		}
	}
	return nil
}

func (c *ConvertConfig) normalize() {
	c.Input = strings.TrimSpace(c.Input)
	c.Out = strings.TrimSpace(c.Out)
	c.Delimiters = sanitizeList(c.Delimiters)
	c.IncludeTags = sanitizeList(c.IncludeTags)
	c.ExcludeTags = sanitizeList(c.ExcludeTags)
	c.Methods = sanitizeList(c.Methods)
	c.Paths = sanitizeList(c.Paths)
	for i, m := range c.Methods {
		c.Methods[i] = strings.ToUpper(m)
	}
}

func (c *ConvertConfig) validate() error {
	if c.Input == "" {
		return newUsageError("convert: --input is required (set via flag or config file)")
	}
	if err := validateDelimiters("convert", c.Delimiters); err != nil {
		return err
	}
	overlap := intersect(c.IncludeTags, c.ExcludeTags)
	if len(overlap) > 0 {
		return newUsageError(fmt.Sprintf("convert: include/exclude tags overlap: %s", strings.Join(overlap, ", ")))
	}
	return nil
}

func validateDelimiters(command string, delims []string) error {
	if len(delims) > 2 {
		return newUsageError(fmt.Sprintf("%s: at most two delimiters are allowed, got %d", command, len(delims)))
	}
	return nil
}

func runConvert(ctx context.Context, cfg *ConvertConfig) error {
	logger := newLogger(cfg.Verbose)
	c, err := compileInput(ctx, cfg.Input, logger,
		openapi.WithIncludeTags(cfg.IncludeTags),
		openapi.WithExcludeTags(cfg.ExcludeTags),
		openapi.WithMethods(cfg.Methods),
		openapi.WithPathPatterns(cfg.Paths),
	)
	if err != nil {
		return err
	}
	if c.format == source.FormatRAML10 && (len(cfg.IncludeTags)+len(cfg.ExcludeTags)+len(cfg.Methods)+len(cfg.Paths)) > 0 {
		logger.Warn("operation filters only apply to Swagger/OpenAPI documents", "input", cfg.Input)
	}

	outDir := cfg.Out
	if outDir == "" {
		outDir = deriveOutDir(c.doc.Title)
	}
	absOut := outDir
	if ap, err := filepath.Abs(outDir); err == nil {
		absOut = ap
	}

	res, err := schemaemitter.Emit(ctx, c.doc, c.defs, schemaemitter.Options{
		OutDir:     outDir,
		Delimiters: cfg.Delimiters,
		Seed:       cfg.Seed,
		Force:      cfg.Force,
		DryRun:     cfg.DryRun,
	})
	if err != nil {
		return wrapOutputError(err, absOut)
	}
	if cfg.DryRun {
		printPlan(absOut, res)
		return nil
	}
	fmt.Fprintf(os.Stdout, "Wrote %d endpoints and %d definitions to %s\n", res.Endpoints, res.Definitions, absOut)
	return nil
}

// compiled is one document brought into the intermediate model.
type compiled struct {
	format source.Format
	doc    *ir.Document
	defs   *schema.Definitions
	// files lists every local file the document was read from.
	files []string
}

// compileInput reads input and dispatches it to the front-end of its format.
// The filters only apply to Swagger/OpenAPI documents.
func compileInput(ctx context.Context, input string, logger *slog.Logger, filters ...openapi.ConvertOption) (*compiled, error) {
	settings := source.NewSettings(source.WithLogger(logger))
	d, err := source.Read(ctx, input, settings)
	if err != nil {
		return nil, specUsageError(err)
	}
	format, err := source.DetectDocument(d)
	if err != nil {
		return nil, specUsageError(err)
	}
	logger.Debug("document detected", "input", input, "format", format.String())

	if format == source.FormatRAML10 {
		res, err := raml.Parse(ctx, d, settings)
		if err != nil {
			return nil, specUsageError(err)
		}
		return &compiled{format: format, doc: res.Document, defs: res.Definitions, files: localFiles(res.Files)}, nil
	}

	t, err := openapi.Parse(ctx, d, settings)
	if err != nil {
		return nil, specUsageError(err)
	}
	doc, err := openapi.Convert(t, append(filters, openapi.WithLogger(logger))...)
	if err != nil {
		return nil, specUsageError(&source.SpecError{Code: source.ConversionError, Message: err.Error(), Location: d.Location, Cause: err})
	}
	return &compiled{format: format, doc: doc, files: localFiles([]string{d.Location})}, nil
}

func localFiles(files []string) []string {
	var out []string
	for _, f := range files {
		if strings.HasPrefix(f, "http://") || strings.HasPrefix(f, "https://") {
			continue
		}
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, f)
	}
	return out
}

// specUsageError maps structured document errors into friendly messages.
func specUsageError(err error) error {
	var se *source.SpecError
	if !errors.As(err, &se) {
		return err
	}
	msg := fmt.Sprintf("spec: %s", se.Message)
	if se.Location != "" {
		msg = fmt.Sprintf("%s\nLocation: %s", msg, se.Location)
	}
	if se.JSONPointer != "" {
		msg = fmt.Sprintf("%s\nPointer: %s", msg, se.JSONPointer)
	}
	return newUsageError(msg)
}

func printPlan(outDir string, res *schemaemitter.Result) {
	fmt.Fprintf(os.Stdout, "Planned writes to %s (%d files):\n", outDir, len(res.Planned))
	for _, p := range res.Planned {
		fmt.Fprintf(os.Stdout, "- %s\n", p.RelPath)
	}
}

func wrapOutputError(err error, outDir string) error {
	// Provide clearer guidance for common FS failures.
	msg := err.Error()
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "permission") || strings.Contains(lower, "read-only") || strings.Contains(lower, "mkdir") || strings.Contains(lower, "rename") || strings.Contains(lower, "output directory") {
		return newUsageError(fmt.Sprintf("output error for %s: %s\nHint: choose a different --out or use --force when appropriate.", outDir, msg))
	}
	return err
}

func deriveOutDir(title string) string {
	t := strings.ToLower(strings.TrimSpace(title))
	repl := strings.NewReplacer("/", " ", "_", " ", ".", " ", ",", " ", ":", " ")
	var b strings.Builder
	for _, r := range strings.Join(strings.Fields(repl.Replace(t)), "-") {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if out := strings.Trim(b.String(), "-"); out != "" {
		return out
	}
	return "apiflow-out"
}
