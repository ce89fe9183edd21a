package runtime

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/cellscope/internal/scope"
	"github.com/jward/cellscope/internal/store"
)

const juliaTestSource = `function area(r)
    return pi * r^2
end

total = area(2.0)
`

// notebook builds a two-cell snapshot: cell "a" defines x at top level,
// cell "b" binds a local x inside a function.
func notebook(t *testing.T) (*store.BatchedStore, int64, int64) {
	t.Helper()

	xDef := scope.Range{From: 0, To: 1}
	a := &scope.State{
		Definitions: map[string]scope.Definition{"x": {Name: "x", Range: xDef}},
		Usages:      []scope.Usage{{Name: "x", Range: xDef, Definition: &xDef}},
	}

	fDef := scope.Range{From: 9, To: 10}
	localX := scope.Range{From: 17, To: 18}
	b := &scope.State{
		Definitions: map[string]scope.Definition{"f": {Name: "f", Range: fDef}},
		Usages: []scope.Usage{
			{Name: "f", Range: fDef, Definition: &fDef},
			{Name: "x", Range: localX, Definition: &localX},
			{Name: "x", Range: scope.Range{From: 26, To: 27}, Definition: &localX},
		},
		Locals: []scope.Local{
			{Name: "x", Definition: localX, Validity: scope.Range{From: 0, To: 31}},
		},
	}

	batch := store.NewBatchedStore()
	aID := batch.AddCell(store.Cell{Name: "a", Path: "a.jl"}, a)
	bID := batch.AddCell(store.Cell{Name: "b", Path: "b.jl"}, b)
	return batch, aID, bID
}

// --- Snapshot globals ---

func TestRunSource_SnapshotGlobals(t *testing.T) {
	t.Parallel()

	batch, aID, bID := notebook(t)
	rt := NewRuntime(batch, "")

	script := `
cs := cells()
assert(len(cs) == 2, 'expected 2 cells, got {len(cs)}')
assert(cs[0]["name"] == "a", "first cell should be a")
assert(cs[0]["path"] == "a.jl", "path should be a.jl")

defs := definitions(a_id)
assert(len(defs) == 1, 'expected 1 definition, got {len(defs)}')
assert(defs[0]["name"] == "x", "a should define x")
assert(defs[0]["from"] == 0 && defs[0]["to"] == 1, "x should span 0..1")

named := definitions_named("x")
assert(len(named) == 1, 'expected 1 definition of x, got {len(named)}')

us := usages(b_id)
assert(len(us) == 3, 'expected 3 usages, got {len(us)}')
assert(us[1]["resolved"], "local x should resolve")
assert(us[1]["def_from"] == 17, "local x is bound at 17")

ls := locals(b_id)
assert(len(ls) == 1, 'expected 1 local, got {len(ls)}')
assert(ls[0]["valid_to"] == 31, "validity ends at 31")

c := cell_by_name("b")
assert(c["id"] == b_id, "cell_by_name should find b")
assert(cell_by_name("missing") == nil, "missing cell should be nil")
`
	err := rt.RunSource(context.Background(), script, map[string]any{
		"a_id": aID,
		"b_id": bID,
	})
	require.NoError(t, err)
}

func TestRunSource_UnresolvedUsageHasNoDefinition(t *testing.T) {
	t.Parallel()

	st := &scope.State{
		Definitions: map[string]scope.Definition{},
		Usages:      []scope.Usage{{Name: "println", Range: scope.Range{From: 0, To: 7}}},
	}
	batch := store.NewBatchedStore()
	id := batch.AddCell(store.Cell{Name: "c"}, st)
	rt := NewRuntime(batch, "")

	script := `
u := usages(cell)[0]
assert(!u["resolved"], "println is free")
assert(!("def_from" in u), "free usages carry no def_from")
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"cell": id}))
}

func TestRunSource_NoStoreGlobalsWithoutStore(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `cells()`, nil)
	require.Error(t, err)
}

// --- report ---

func TestRunScript_ReportCollectsFindings(t *testing.T) {
	t.Parallel()

	batch, _, bID := notebook(t)
	mapFS := fstest.MapFS{
		"flag_locals.risor": &fstest.MapFile{Data: []byte(`
ls := locals(cell)
for i := 0; i < len(ls); i++ {
    l := ls[i]
    report(cell, l["def_from"], l["def_to"], 'local ' + l["name"])
}
report(cell, 0, 1, {"message": "from map", "from": 2, "to": 3})
`)},
	}
	rt := NewRuntime(batch, "", WithRuntimeFS(mapFS))

	err := rt.RunScript(context.Background(), "flag_locals.risor", map[string]any{"cell": bID})
	require.NoError(t, err)

	got := rt.Findings()
	require.Len(t, got, 2)
	assert.Equal(t, Finding{Rule: "flag_locals", CellID: bID, Cell: "b", Path: "b.jl", From: 2, To: 3, Message: "from map"}, got[0])
	assert.Equal(t, Finding{Rule: "flag_locals", CellID: bID, Cell: "b", Path: "b.jl", From: 17, To: 18, Message: "local x"}, got[1])
}

func TestReport_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		script string
	}{
		{"wrong arity", `report(cell, 0, 1)`},
		{"unknown cell", `report(12345, 0, 1, "msg")`},
		{"empty message", `report(cell, 0, 1, "")`},
		{"bad offset", `report(cell, "zero", 1, "msg")`},
		{"bad message", `report(cell, 0, 1, 42)`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			batch, _, bID := notebook(t)
			rt := NewRuntime(batch, "")
			err := rt.RunSource(context.Background(), tt.script, map[string]any{"cell": bID})
			require.Error(t, err)
			assert.Empty(t, rt.Findings())
		})
	}
}

// --- RunRules ---

func TestRunRules_RunsEveryScriptAndCollectsFailures(t *testing.T) {
	t.Parallel()

	batch, _, _ := notebook(t)
	mapFS := fstest.MapFS{
		"b_second.risor": &fstest.MapFile{Data: []byte(`
cs := cells()
report(cs[1]["id"], 0, 1, "second")
`)},
		"a_first.risor": &fstest.MapFile{Data: []byte(`
cs := cells()
report(cs[0]["id"], 0, 1, "first")
`)},
		"c_broken.risor": &fstest.MapFile{Data: []byte(`undefined_function()`)},
		"notes.txt":      &fstest.MapFile{Data: []byte(`not a rule`)},
	}
	rt := NewRuntime(batch, "", WithRuntimeFS(mapFS), WithLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))

	paths, err := rt.RulePaths()
	require.NoError(t, err)
	assert.Equal(t, []string{"a_first.risor", "b_second.risor", "c_broken.risor"}, paths)

	err = rt.RunRules(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rules had 1 error(s)")
	assert.Contains(t, err.Error(), "c_broken")

	got := rt.Findings()
	require.Len(t, got, 2)
	assert.Equal(t, "a_first", got[0].Rule)
	assert.Equal(t, "a", got[0].Cell)
	assert.Equal(t, "b_second", got[1].Rule)
	assert.Equal(t, "b", got[1].Cell)
}

func TestRunRules_FromDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "one.risor"), []byte(`report(cells()[0]["id"], 0, 1, "one")`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.risor"), 0o755))

	batch, _, _ := notebook(t)
	rt := NewRuntime(batch, dir)
	require.NoError(t, rt.RunRules(context.Background()))

	got := rt.Findings()
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].Rule)
}

func TestRunRules_NoSource(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	paths, err := rt.RulePaths()
	require.NoError(t, err)
	assert.Empty(t, paths)
	require.NoError(t, rt.RunRules(context.Background()))
}

func TestRunRules_CanceledContext(t *testing.T) {
	t.Parallel()

	mapFS := fstest.MapFS{"a.risor": &fstest.MapFile{Data: []byte(`x := 1`)}}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, rt.RunRules(ctx), context.Canceled)
}

func TestRuleName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "shadowed_global", RuleName("rules/shadowed_global.risor"))
	assert.Equal(t, "x", RuleName("x"))
}

// --- Julia tree-sitter helpers ---

func TestRunSource_ParseSrcAndQuery(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	script := `
tree := parse_src("a = b")
root := tree.RootNode()
assert(root.Type() == "source_file", 'expected source_file, got {root.Type()}')

matches := query("(identifier) @id", root)
assert(len(matches) == 2, 'expected 2 identifiers, got {len(matches)}')
assert(node_text(matches[0]["id"]) == "a", "first identifier is a")
assert(node_text(matches[1]["id"]) == "b", "second identifier is b")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_ParseFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "area.jl")
	require.NoError(t, os.WriteFile(path, []byte(juliaTestSource), 0o644))

	rt := NewRuntime(nil, "")
	script := `
tree := parse(path)
root := tree.RootNode()
n := int(root.NamedChildCount())
assert(n == 2, 'expected 2 top-level nodes, got {n}')
first := root.NamedChild(0)
assert(first.Type() == "function_definition", 'expected function_definition, got {first.Type()}')
assert(node_child(first, "no_such_field") == nil, "missing field gives nil")
`
	require.NoError(t, rt.RunSource(context.Background(), script, map[string]any{"path": path}))
}

func TestRunSource_ParseMissingFile(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	err := rt.RunSource(context.Background(), `parse("/nonexistent/cell.jl")`, nil)
	require.Error(t, err)
}

func TestRunSource_QueryInvalidPattern(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	script := `
root := parse_src("x = 1").RootNode()
query("(not_a_real_node_type @x)", root)
`
	require.Error(t, rt.RunSource(context.Background(), script, nil))
}

func TestRunSource_NodeTextRejectsNonNode(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "")
	require.Error(t, rt.RunSource(context.Background(), `node_text("x")`, nil))
}

// --- log ---

func TestRunSource_LogForwardsToSlog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	rt := NewRuntime(nil, "", WithLogger(logger))

	script := `
log.Info("hello")
log.Warn("careful")
log.Error("broken")
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))

	out := buf.String()
	assert.Contains(t, out, "runtime.script")
	assert.Contains(t, out, "rule=<inline>")
	assert.Contains(t, out, "message=hello")
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "message=broken")
}

// --- Script loading ---

func TestRunScript_MissingFile(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, t.TempDir())
	err := rt.RunScript(context.Background(), "nonexistent.risor", nil)
	require.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "test.risor")
	content := `x := 42`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	rt := NewRuntime(nil, dir)
	got, err := rt.LoadScript(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	got, err = rt.LoadScript("test.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestLoadScript_FromFS(t *testing.T) {
	t.Parallel()

	content := `y := 99`
	mapFS := fstest.MapFS{
		"rules/one.risor": &fstest.MapFile{Data: []byte(content)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	got, err := rt.LoadScript("/rules/one.risor")
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = rt.LoadScript("nonexistent.risor")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from fs")
}

// --- Importer wiring ---

func TestImport_FSImporter(t *testing.T) {
	t.Parallel()

	// FSImporter resolves "helpers" by trying name + ".risor" at the FS root.
	mapFS := fstest.MapFS{
		"helpers.risor": &fstest.MapFile{Data: []byte(`
func greet(name) {
	return "hello " + name
}
`)},
	}
	rt := NewRuntime(nil, "", WithRuntimeFS(mapFS))

	script := `
import helpers

msg := helpers.greet("world")
assert(msg == "hello world", 'expected "hello world", got ' + msg)
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestImport_LocalImporterSeesHostGlobals(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "count.risor"), []byte(`
func cell_count() {
	return len(cells())
}
`), 0o644))

	batch, _, _ := notebook(t)
	rt := NewRuntime(batch, dir)

	script := `
import count

n := count.cell_count()
assert(n == 2, 'expected 2, got {n}')
`
	require.NoError(t, rt.RunSource(context.Background(), script, nil))
}

func TestNewRuntime_Defaults(t *testing.T) {
	t.Parallel()

	rt := NewRuntime(nil, "/some/dir")
	require.NotNil(t, rt)
	assert.Nil(t, rt.fsys)
	assert.Equal(t, "/some/dir", rt.scriptsDir)
	assert.NotNil(t, rt.logger)
	assert.Empty(t, rt.Findings())
}
