package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gopkg.in/yaml.v3"
)

func TestInit_WritesSampleConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "apiflow configuration") {
		t.Fatalf("unexpected config contents: %s", s)
	}
}

func TestInit_ExistingWithoutForce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatalf("prewrite: %v", err)
	}

	root := NewRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--out", path})

	err := root.Execute()
	if err == nil {
		t.Fatalf("expected error for existing file without --force")
	}
	if _, ok := err.(usageError); !ok {
		t.Fatalf("expected usage error, got %T: %v", err, err)
	}
}


func TestInit_Stdout(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"init", "--stdout"})
	if err := root.Execute(); err != nil {
		t.Fatalf("init execute: %v", err)
	}
	if out.String() != sampleConfig() {
		t.Fatalf("stdout: got %q", out.String())
	}
}

func TestSampleConfig_UncommentedIsValid(t *testing.T) {
	t.Parallel()
	var lines []string
	for _, f := range configFields {
		prefix := "# " + f.Name + ": "
		for _, line := range strings.Split(sampleConfig(), "\n") {
			if strings.HasPrefix(line, prefix) {
				lines = append(lines, strings.TrimPrefix(line, "# "))
			}
		}
	}
	if len(lines) != len(configFields) {
		t.Fatalf("documented settings: got %d, want %d", len(lines), len(configFields))
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &raw); err != nil {
		t.Fatalf("uncommented sample: %v", err)
	}
	normalized := make(map[string]any, len(raw))
	for key, value := range raw {
		if !configKeys[normalizeKey(key)] {
			t.Errorf("unknown key %q", key)
		}
		normalized[normalizeKey(key)] = value
	}
	var cfg ConvertConfig
	if err := cfg.applyFile("sample", normalized); err != nil {
		t.Fatalf("apply: %v", err)
	}
	want := ConvertConfig{
		Input:       "./api.raml",
		Out:         "./out",
		Delimiters:  []string{":"},
		IncludeTags: []string{"public", "read"},
		ExcludeTags: []string{"internal"},
		Methods:     []string{"get", "post"},
		Paths:       []string{"^/pets"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Fatalf("config (-want +got):\n%s", diff)
	}
}
