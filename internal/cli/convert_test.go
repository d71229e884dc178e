package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Tests that swap convertRunner do not run in parallel.

func captureConvert(t *testing.T, args ...string) *ConvertConfig {
	t.Helper()
	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	var captured *ConvertConfig
	convertRunner = func(ctx context.Context, cfg *ConvertConfig) error {
		captured = cfg
		return nil
	}
	t.Cleanup(func() { convertRunner = runConvert })

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if captured == nil {
		t.Fatalf("expected config to be captured")
	}
	return captured
}

func TestConvertConfigFromFlags(t *testing.T) {
	got := captureConvert(t,
		"--verbose",
		"convert",
		"--input", "api.raml",
		"--out", "./build",
		"--delimiters", "<<,>>",
		"--include-tags", "foo,bar",
		"--exclude-tags", "baz",
		"--methods", "get,post",
		"--paths", "^/pets",
		"--seed", "42",
		"--dry-run",
		"--force",
	)
	want := &ConvertConfig{
		Input:       "api.raml",
		Out:         "./build",
		Delimiters:  []string{"<<", ">>"},
		IncludeTags: []string{"foo", "bar"},
		ExcludeTags: []string{"baz"},
		Methods:     []string{"GET", "POST"},
		Paths:       []string{"^/pets"},
		Seed:        42,
		DryRun:      true,
		Force:       true,
		Verbose:     true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestConvertConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := strings.TrimSpace(`input: config-spec.yaml
out: from-config
delimiters: ":"
includeTags:
  - cfgFoo
exclude_tags: cfgBar
seed: 7
dryRun: true
force: false
verbose: true
watch: true
`) + "\n"
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got := captureConvert(t,
		"--config", configPath,
		"convert",
		"--input", "flag-spec.yaml",
		"--include-tags", "flagTag",
		"--dry-run=false",
		"--force",
	)
	want := &ConvertConfig{
		Input:       "flag-spec.yaml",
		Out:         "from-config",
		Delimiters:  []string{":"},
		IncludeTags: []string{"flagTag"},
		ExcludeTags: []string{"cfgBar"},
		Seed:        7,
		ConfigPath:  configPath,
		DryRun:      false,
		Force:       true,
		Verbose:     true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}

func TestConvertConfigUnknownKey(t *testing.T) {
	t.Parallel()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")
	if err := os.WriteFile(configPath, []byte("unknown: value\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--config", configPath, "convert", "--input", "spec.yaml"})

	err := root.Execute()
	if !errors.Is(err, ErrUsage) {
		t.Fatalf("expected usage error, got %v", err)
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Fatalf("unexpected error message: %v", err)
	}
}

func TestConvertConfigValidation(t *testing.T) {
	cases := map[string][]string{
		"input is required": {"convert"},
		"at most two":       {"convert", "--input", "x.yaml", "--delimiters", "a,b,c"},
		"tags overlap":      {"convert", "--input", "x.yaml", "--include-tags", "a", "--exclude-tags", "a"},
		"unsupported URL":   {"convert", "--input", "ftp://example.com/x.yaml"},
	}
	for want, args := range cases {
		root := NewRootCmd()
		root.SetOut(io.Discard)
		root.SetErr(io.Discard)
		root.SetArgs(args)
		err := root.Execute()
		if !errors.Is(err, ErrUsage) || !strings.Contains(err.Error(), want) {
			t.Errorf("%v: want usage error containing %q, got %v", args, want, err)
		}
	}
}

func TestDeriveOutDir(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"Music API":        "music-api",
		"Pet Store v1.2":   "pet-store-v1-2",
		"  ":               "apiflow-out",
		"Über/Service API": "ber-service-api",
	}
	for in, want := range cases {
		if got := deriveOutDir(in); got != want {
			t.Errorf("deriveOutDir(%q): got %q", in, got)
		}
	}
}
