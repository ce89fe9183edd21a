package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"

	"github.com/jward/cellscope/internal/store"
)

// ScriptExt is the extension of rule scripts.
const ScriptExt = ".risor"

// Runtime embeds a Risor VM and exposes a notebook snapshot, Julia
// tree-sitter helpers and a report function to rule scripts.
type Runtime struct {
	ds         store.DataStore
	scriptsDir string
	fsys       fs.FS
	sources    *sourceStore
	logger     *slog.Logger

	mu       sync.Mutex
	findings []Finding
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger behind the scripts' log object and rule
// failures. The default is slog.Default().
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(r *Runtime) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRuntime creates a Runtime reading the snapshot ds and loading scripts
// from scriptsDir. ds may be nil, in which case the snapshot globals are
// not defined.
func NewRuntime(ds store.DataStore, scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		ds:         ds,
		scriptsDir: scriptsDir,
		sources:    newSourceStore(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Findings returns everything reported so far, ordered by rule, cell and
// offset.
func (r *Runtime) Findings() []Finding {
	r.mu.Lock()
	out := append([]Finding(nil), r.findings...)
	r.mu.Unlock()
	sortFindings(out)
	return out
}

// RunScript loads and executes a Risor script with all standard globals
// plus any extra globals provided by the caller. Findings it reports are
// attributed to the script's base name.
func (r *Runtime) RunScript(ctx context.Context, scriptPath string, extraGlobals map[string]any) error {
	src, err := r.LoadScript(scriptPath)
	if err != nil {
		return err
	}
	return r.eval(ctx, src, RuleName(scriptPath), extraGlobals)
}

// RunSource executes Risor source code directly with all standard globals
// plus any extra globals. Useful for testing without script files.
func (r *Runtime) RunSource(ctx context.Context, source string, extraGlobals map[string]any) error {
	return r.eval(ctx, source, "<inline>", extraGlobals)
}

// RunRules runs every script at the top of the configured script source in
// name order. A failing rule is logged and skipped; the failures are
// returned together.
func (r *Runtime) RunRules(ctx context.Context) error {
	paths, err := r.RulePaths()
	if err != nil {
		return err
	}

	var errs []error
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.RunScript(ctx, p, nil); err != nil {
			r.logger.Warn("runtime.rule", "rule", RuleName(p), "error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("rules had %d error(s): %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// RulePaths lists the scripts RunRules runs, sorted.
func (r *Runtime) RulePaths() ([]string, error) {
	var (
		entries []fs.DirEntry
		err     error
	)
	switch {
	case r.fsys != nil:
		entries, err = fs.ReadDir(r.fsys, ".")
	case r.scriptsDir != "":
		entries, err = os.ReadDir(r.scriptsDir)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("runtime: listing rules: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ScriptExt {
			continue
		}
		paths = append(paths, e.Name())
	}
	sort.Strings(paths)
	return paths, nil
}

// RuleName returns the name findings of the script at path are reported
// under.
func RuleName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ScriptExt)
}

func (r *Runtime) eval(ctx context.Context, source, label string, extraGlobals map[string]any) error {
	globals := r.buildGlobals(label, extraGlobals)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}

	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}

	_, err := risor.Eval(ctx, source, opts...)
	if err != nil {
		return fmt.Errorf("runtime: script %s: %w", label, err)
	}
	return nil
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{ScriptExt},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{ScriptExt},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on the embedded filesystem.
// Otherwise, uses os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		// Paths are relative within the FS ("/shadowed_global.risor" ->
		// "shadowed_global.risor").
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the full set of globals exposed to the script
// labelled rule.
func (r *Runtime) buildGlobals(rule string, extra map[string]any) map[string]any {
	globals := map[string]any{
		"parse":      makeParseFn(r.sources),
		"parse_src":  makeParseSrcFn(r.sources),
		"node_text":  makeNodeTextFn(r.sources),
		"node_child": makeNodeChildFn(),
		"query":      makeQueryFn(r.sources),
		"log":        mustProxy(&logObject{logger: r.logger.With("rule", rule)}),
	}

	// Snapshot access. Risor cannot construct Go struct pointers, so rows
	// are handed to scripts as maps.
	if r.ds != nil {
		globals["cells"] = makeCellsFn(r.ds)
		globals["cell_by_name"] = makeCellByNameFn(r.ds)
		globals["definitions"] = makeDefinitionsFn(r.ds)
		globals["definitions_named"] = makeDefinitionsNamedFn(r.ds)
		globals["usages"] = makeUsagesFn(r.ds)
		globals["locals"] = makeLocalsFn(r.ds)
		globals["report"] = makeReportFn(r, rule)
	}

	for k, v := range extra {
		globals[k] = v
	}
	return globals
}

func (r *Runtime) addFinding(f Finding) {
	r.mu.Lock()
	r.findings = append(r.findings, f)
	r.mu.Unlock()
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
