package cellscope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiagnostics_DuplicateDefinition(t *testing.T) {
	e := newTestEngine(t)
	setCells(t, e, "x = 1\nf(a) = a", "x = 2", "y = x")

	diags, err := e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)

	d := diags[0]
	assert.Equal(t, "x", d.Name)
	assert.Equal(t, []string{"c1"}, d.Others)
	assert.Equal(t, 1, d.Location.Line)
	assert.Equal(t, 1, d.Location.Col)
	assert.Contains(t, d.Message, "Multiple definitions for x")
	require.Len(t, d.Actions, 2)
	assert.Equal(t, Action{Kind: ActionRename, Title: "Rename x to x2", Cell: "c0", Name: "x", NewName: "x2"}, d.Actions[0])
	assert.Equal(t, ActionDisable, d.Actions[1].Kind)
	assert.Equal(t, "c1", d.Actions[1].Cell)

	diags, err = e.Diagnostics("c2")
	require.NoError(t, err)
	assert.Empty(t, diags, "using a name is not defining it")

	assert.Len(t, e.AllDiagnostics(), 2)
}

func TestDiagnostics_RenameSkipsTakenNames(t *testing.T) {
	e := newTestEngine(t)
	setCells(t, e, "x = 1\nprintln(x3)", "x = 2", "x2 = 0")

	diags, err := e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "x4", diags[0].Actions[0].NewName)
}

func TestDiagnostics_RenameSuffixStart(t *testing.T) {
	start := 5
	e := newTestEngine(t, WithConfig(&Config{RenameSuffixStart: &start}))
	setCells(t, e, "x = 1", "x = 2")

	diags, err := e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "x5", diags[0].Actions[0].NewName)
}

func TestDiagnostics_DisabledCellsIgnored(t *testing.T) {
	e := newTestEngine(t)
	setCells(t, e, "x = 1", "x = 2", "x = 3")

	diags, err := e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, []string{"c1", "c2"}, diags[0].Others)
	assert.Len(t, diags[0].Actions, 3)

	require.NoError(t, e.Apply(context.Background(), diags[0].Actions[1]))
	assert.True(t, e.Disabled("c1"))

	diags, err = e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, []string{"c2"}, diags[0].Others)

	diags, err = e.Diagnostics("c1")
	require.NoError(t, err)
	assert.Empty(t, diags, "a disabled cell is not diagnosed")

	require.NoError(t, e.ApplyDisable("c2"))
	diags, err = e.Diagnostics("c0")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestApplyRename_LeavesLocalsAlone(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	setCells(t, e, "x = 1\nfunction g(x)\n    x\nend\nprintln(x)", "x = 2")

	diags, err := e.Diagnostics("c0")
	require.NoError(t, err)
	require.Len(t, diags, 1)
	require.NoError(t, e.Apply(ctx, diags[0].Actions[0]))

	src, err := e.Source("c0")
	require.NoError(t, err)
	assert.Equal(t, "x2 = 1\nfunction g(x)\n    x\nend\nprintln(x2)", string(src))

	diags, err = e.Diagnostics("c0")
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestApplyRename_Macro(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	setCells(t, e, "macro m(ex)\n    ex\nend\n@m 1")

	require.NoError(t, e.ApplyRename(ctx, "c0", "@m", "@m2"))
	src, err := e.Source("c0")
	require.NoError(t, err)
	assert.Equal(t, "macro m2(ex)\n    ex\nend\n@m2 1", string(src))

	st, err := e.State("c0")
	require.NoError(t, err)
	assert.Equal(t, []string{"@m2"}, st.Names())
}

func TestApplyRename_Errors(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine(t)
	setCells(t, e, "x = 1")

	assert.Error(t, e.ApplyRename(ctx, "c0", "x", "x"))
	assert.Error(t, e.ApplyRename(ctx, "c0", "x", ""))
	assert.ErrorIs(t, e.ApplyRename(ctx, "nope", "x", "y"), ErrUnknownCell)
	assert.Error(t, e.Apply(ctx, Action{Kind: "explode"}))

	// Renaming a name the cell does not have changes nothing.
	require.NoError(t, e.ApplyRename(ctx, "c0", "zzz", "w"))
	src, err := e.Source("c0")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", string(src))
}
