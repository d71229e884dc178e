package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

const defaultConfigFile = "apiflow.yaml"

// InitConfig captures the options for the init command.
type InitConfig struct {
	Path   string
	Force  bool
	Stdout bool
	Out    io.Writer
}

var initRunner = runInit

func newInitCmd() *cobra.Command {
	cfg := &InitConfig{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a sample apiflow configuration file",
		Long:  "Write a commented apiflow configuration file listing every field convert and compile read from --config.",
		Example: strings.TrimSpace(`  apiflow init
  apiflow init --out configs/apiflow.yaml --force
  apiflow init --stdout > apiflow.yaml`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Out = cmd.OutOrStdout()
			return initRunner(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&cfg.Path, "out", defaultConfigFile, "Where to write the sample config file")
	cmd.Flags().BoolVar(&cfg.Force, "force", false, "Overwrite the target file if it already exists")
	cmd.Flags().BoolVar(&cfg.Stdout, "stdout", false, "Print the sample config instead of writing a file")

	return cmd
}

func runInit(_ context.Context, cfg *InitConfig) error {
	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}
	content := sampleConfig()
	if cfg.Stdout {
		_, err := io.WriteString(out, content)
		return err
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = defaultConfigFile
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("init: resolve output path: %w", err)
	}
	if st, err := os.Stat(path); err == nil {
		if st.IsDir() {
			return newUsageError(fmt.Sprintf("init: %q is a directory", path))
		}
		if !cfg.Force {
			return newUsageError(fmt.Sprintf("init: %q already exists (use --force to overwrite)", path))
		}
	}
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return newUsageError(fmt.Sprintf("init: %v", err))
	}
	fmt.Fprintf(out, "Wrote sample config to %s\n", path)
	return nil
}

// sampleConfig renders configFields as a commented YAML document in which
// every setting line is valid once uncommented.
func sampleConfig() string {
	var b strings.Builder
	b.WriteString("# apiflow configuration (YAML or JSON)\n")
	b.WriteString("# Every field is optional. Command-line flags override config values.\n")
	for _, f := range configFields {
		fmt.Fprintf(&b, "\n# %s\n# %s: %s\n", f.Help, f.Name, f.Example)
	}
	return b.String()
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("place %s: %w", path, err)
	}
	return nil
}
