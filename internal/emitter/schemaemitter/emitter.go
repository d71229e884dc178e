// Package schemaemitter writes a compiled document as JSON: the shared
// definitions table and one entry per endpoint with synthesized parameter
// schemas, re-emitted URL templates and example values.
package schemaemitter

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/apiflow/internal/fake"
	"github.com/mark3labs/apiflow/internal/ir"
	"github.com/mark3labs/apiflow/internal/schema"
)

const (
	DefinitionsFile = "definitions.json"
	EndpointsFile   = "endpoints.json"

	maxInlineDepth = 4
)

// Options controls how a document is rendered.
type Options struct {
	OutDir string // required; target directory
	// Delimiters re-emit URL templates in another templating syntax, such as
	// [":"] or ["<<", ">>"]. Empty keeps the source templates.
	Delimiters []string
	Seed       int64 // seeds example generation
	Force      bool  // overwrite existing files
	DryRun     bool  // don't write, only plan
}

// PlannedFile describes a file the emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files and what they contain.
type Result struct {
	Endpoints   int
	Definitions int
	Planned     []PlannedFile
}

// Emit renders doc. defs is the definitions table of the document; when nil
// it is rebuilt from the constraints of the document's store.
func Emit(ctx context.Context, doc *ir.Document, defs *schema.Definitions, opts Options) (*Result, error) {
	_ = ctx
	if doc == nil {
		return nil, fmt.Errorf("schemaemitter: nil document")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("schemaemitter: OutDir is required")
	}

	table := definitionsOf(doc, defs)
	r := renderer{
		doc:   doc,
		defs:  table,
		gen:   fake.New(opts.Seed),
		delim: opts.Delimiters,
	}
	endpoints := r.endpoints()

	files := map[string][]byte{}
	defsJSON, err := json.MarshalIndent(schema.Fragment{"definitions": table}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", DefinitionsFile, err)
	}
	files[DefinitionsFile] = append(defsJSON, '\n')
	endpointsJSON, err := json.MarshalIndent(endpoints, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", EndpointsFile, err)
	}
	files[EndpointsFile] = append(endpointsJSON, '\n')

	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, filepath.ToSlash(p))
	}
	sort.Strings(rels)
	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: rel, Size: len(files[rel]), Mode: 0o644})
	}

	if !opts.DryRun {
		if err := writeFiles(opts.OutDir, files, opts.Force); err != nil {
			return nil, err
		}
	}
	return &Result{Endpoints: len(endpoints.Endpoints), Definitions: len(table), Planned: planned}, nil
}

// definitionsOf returns the definitions keyed by name.
func definitionsOf(doc *ir.Document, defs *schema.Definitions) map[string]schema.Fragment {
	out := map[string]schema.Fragment{}
	if defs != nil {
		for _, name := range defs.Names() {
			f, _ := defs.Get(name)
			out[name] = schema.Clone(f)
		}
		return out
	}
	if doc.Store == nil {
		return out
	}
	for _, id := range doc.Store.IDs(ir.KindConstraint) {
		if c, ok := doc.Store.Constraint(id); ok {
			out[schema.RefName(id)] = c.Schema()
		}
	}
	return out
}

func writeFiles(outDir string, files map[string][]byte, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	if st, err := os.Stat(abs); err == nil && st.IsDir() && !force {
		entries, rerr := os.ReadDir(abs)
		if rerr == nil && len(entries) > 0 {
			return fmt.Errorf("schemaemitter: output directory %q is not empty (use --force to overwrite)", abs)
		}
	}
	for rel, content := range files {
		p := filepath.Join(abs, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		tmp := p + ".tmp-" + time.Now().Format("20060102150405")
		if err := os.WriteFile(tmp, content, 0o644); err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		if err := os.Rename(tmp, p); err != nil {
			_ = os.Remove(tmp)
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}
