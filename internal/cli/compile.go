package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mark3labs/apiflow/internal/emitter/schemaemitter"
)

// CompileConfig captures the options for the compile command.
type CompileConfig struct {
	Inputs     []string
	Out        string
	Delimiters []string
	Seed       int64
	ConfigPath string
	DryRun     bool
	Force      bool
	Watch      bool
	Verbose    bool
}

var compileRunner = runCompile

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile [documents...]",
		Short: "Compile several documents in parallel, optionally watching them",
		Long: "Compile every given document into its own directory under --out. " +
			"Each document gets its own definitions table. With --watch the documents and " +
			"every file they include are watched and recompiled on change.",
		Example: strings.TrimSpace(`  apiflow compile music.raml petstore.yaml --out ./schemas
  apiflow compile api.raml --out ./schemas --watch`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveCompileConfig(cmd, args)
			if err != nil {
				return err
			}
			return compileRunner(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("out", "", "Parent output directory; each document writes to <out>/<name>")
	flags.StringSlice("delimiters", nil, "Re-emit URL templates with these delimiters")
	flags.Int64("seed", 0, "Seed for generated example values")
	flags.Bool("dry-run", false, "Preview planned outputs without writing files")
	flags.Bool("force", false, "Overwrite existing output when set")
	flags.Bool("watch", false, "Recompile when a document or one of its includes changes")

	return cmd
}

func resolveCompileConfig(cmd *cobra.Command, args []string) (*CompileConfig, error) {
	cfg := CompileConfig{}

	path, raw, err := readConfigFile(cmd)
	if err != nil {
		return nil, err
	}
	if path != "" {
		cfg.ConfigPath = path
		for key, value := range raw {
			var err error
			switch key {
			case "inputs":
				cfg.Inputs, err = valueAsStringSlice(value)
			case "out":
				cfg.Out, err = valueAsString(value)
			case "delimiters":
				cfg.Delimiters, err = valueAsStringSlice(value)
			case "seed":
				cfg.Seed, err = valueAsInt64(value)
			case "dryrun":
				cfg.DryRun, err = valueAsBool(value)
			case "force":
				cfg.Force, err = valueAsBool(value)
			case "watch":
				cfg.Watch, err = valueAsBool(value)
			case "verbose":
				cfg.Verbose, err = valueAsBool(value)
			default:
				if !configKeys[key] {
					return nil, newUsageError(fmt.Sprintf("config file %q: unknown field %q", path, key))
				}
			}
			if err != nil {
				return nil, newUsageError(fmt.Sprintf("config field %q: %v", key, err))
			}
		}
	}

	flags := cmd.Flags()
	if len(args) > 0 {
		cfg.Inputs = args
	}
	if flags.Changed("out") {
		if cfg.Out, err = flags.GetString("out"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("delimiters") {
		if cfg.Delimiters, err = flags.GetStringSlice("delimiters"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("seed") {
		if cfg.Seed, err = flags.GetInt64("seed"); err != nil {
			return nil, err
		}
	}
	for name, dst := range map[string]*bool{"dry-run": &cfg.DryRun, "force": &cfg.Force, "watch": &cfg.Watch, "verbose": &cfg.Verbose} {
		if flags.Changed(name) {
			if *dst, err = flags.GetBool(name); err != nil {
				return nil, err
			}
		}
	}

	cfg.Inputs = sanitizeList(cfg.Inputs)
	cfg.Out = strings.TrimSpace(cfg.Out)
	cfg.Delimiters = sanitizeList(cfg.Delimiters)
	if len(cfg.Inputs) == 0 {
		return nil, newUsageError("compile: at least one document is required")
	}
	if cfg.Out == "" {
		return nil, newUsageError("compile: --out is required")
	}
	if cfg.Watch && cfg.DryRun {
		return nil, newUsageError("compile: --watch and --dry-run cannot be combined")
	}
	if err := validateDelimiters("compile", cfg.Delimiters); err != nil {
		return nil, err
	}
	if dup := duplicateNames(cfg.Inputs); dup != "" {
		return nil, newUsageError(fmt.Sprintf("compile: two documents would write to %q", dup))
	}
	return &cfg, nil
}

// outputName is the directory a document writes to under --out.
func outputName(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func duplicateNames(inputs []string) string {
	seen := map[string]bool{}
	for _, in := range inputs {
		name := outputName(in)
		if seen[name] {
			return name
		}
		seen[name] = true
	}
	return ""
}

// compileJob compiles one document into its own output directory.
type compileJob struct {
	input  string
	outDir string
	cfg    *CompileConfig
	logger *slog.Logger

	mu    sync.Mutex
	files []string
}

func (j *compileJob) run(ctx context.Context, force bool) (*schemaemitter.Result, error) {
	c, err := compileInput(ctx, j.input, j.logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", j.input, err)
	}
	j.mu.Lock()
	j.files = c.files
	j.mu.Unlock()
	res, err := schemaemitter.Emit(ctx, c.doc, c.defs, schemaemitter.Options{
		OutDir:     j.outDir,
		Delimiters: j.cfg.Delimiters,
		Seed:       j.cfg.Seed,
		Force:      force,
		DryRun:     j.cfg.DryRun,
	})
	if err != nil {
		return nil, wrapOutputError(err, j.outDir)
	}
	return res, nil
}

func (j *compileJob) watched() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.files...)
}

func runCompile(ctx context.Context, cfg *CompileConfig) error {
	logger := newLogger(cfg.Verbose)
	jobs := make([]*compileJob, len(cfg.Inputs))
	for i, in := range cfg.Inputs {
		jobs[i] = &compileJob{
			input:  in,
			outDir: filepath.Join(cfg.Out, outputName(in)),
			cfg:    cfg,
			logger: logger.With("input", in),
		}
	}

	results := make([]*schemaemitter.Result, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	for i, j := range jobs {
		g.Go(func() error {
			res, err := j.run(gctx, cfg.Force)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, j := range jobs {
		report(j, results[i], cfg.DryRun)
	}

	if !cfg.Watch {
		return nil
	}
	return watch(ctx, jobs, logger)
}

func report(j *compileJob, res *schemaemitter.Result, dryRun bool) {
	abs := j.outDir
	if ap, err := filepath.Abs(j.outDir); err == nil {
		abs = ap
	}
	if dryRun {
		printPlan(abs, res)
		return
	}
	fmt.Fprintf(os.Stdout, "Compiled %s: %d endpoints and %d definitions to %s\n", j.input, res.Endpoints, res.Definitions, abs)
}

// watch recompiles a job whenever one of its files changes, until ctx is
// done. The watched set is refreshed after every compilation so new includes
// are picked up.
func watch(ctx context.Context, jobs []*compileJob, logger *slog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	defer w.Close()

	// Directories are watched rather than files so editors that replace a
	// file on save keep being observed.
	dirs := map[string]bool{}
	refresh := func() {
		for _, j := range jobs {
			for _, f := range j.watched() {
				dir := filepath.Dir(f)
				if dirs[dir] {
					continue
				}
				if err := w.Add(dir); err != nil {
					logger.Warn("cannot watch directory", "dir", dir, "error", err)
					continue
				}
				dirs[dir] = true
			}
		}
	}
	refresh()
	fmt.Fprintf(os.Stdout, "Watching %d directories for changes\n", len(dirs))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			changed := filepath.Clean(ev.Name)
			for _, j := range jobs {
				if !contains(j.watched(), changed) {
					continue
				}
				logger.Debug("file changed", "file", changed, "input", j.input)
				res, err := j.run(ctx, true)
				if err != nil {
					var ue usageError
					if errors.As(err, &ue) {
						fmt.Fprintf(os.Stderr, "%v\n", err)
						continue
					}
					logger.Warn("recompile failed", "input", j.input, "error", err)
					continue
				}
				report(j, res, false)
			}
			refresh()
		}
	}
}

func contains(files []string, name string) bool {
	for _, f := range files {
		if filepath.Clean(f) == name {
			return true
		}
	}
	return false
}
