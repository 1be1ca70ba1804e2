package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finos/morphir-scala/internal/diag"
	"github.com/finos/morphir-scala/internal/testutil"
)

func TestLoadInline(t *testing.T) {
	units, err := Load(context.Background(), InlineText("def x: Int = 1"), Options{})
	require.NoError(t, err)
	require.Len(t, units, 1)

	u := units[0]
	assert.Equal(t, SnippetID, u.ID)
	assert.Equal(t, 0, u.Index)
	assert.Empty(t, u.Path)
	assert.Equal(t, "def x: Int = 1", u.Text)
	assert.Equal(t, "snippet", u.DefaultModule())
	assert.Len(t, u.Digest, 64)
}

func TestLoadInlineEmpty(t *testing.T) {
	units, err := Load(context.Background(), InlineText(""), Options{})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "", units[0].Text)
}

func TestLoadDirectoryOrdering(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"b.src":        "val b: Int = 2",
		"a.src":        "val a: Int = 1",
		"c.src":        "val c: Int = 3",
		"a/nested.src": "val n: Int = 4",
		"notes.txt":    "ignored",
	})

	units, err := Load(context.Background(), Directory(dir), Options{})
	require.NoError(t, err)

	var ids []string
	for i, u := range units {
		assert.Equal(t, i, u.Index)
		ids = append(ids, u.ID)
	}
	// "a.src" sorts before "a/nested.src" because '.' < '/'.
	assert.Equal(t, []string{"a.src", "a/nested.src", "b.src", "c.src"}, ids)
	assert.Equal(t, "a.nested", units[1].DefaultModule())
	assert.Equal(t, filepath.Join(dir, "b.src"), units[2].Path)
}

func TestLoadDirectorySkipsHiddenAndOutput(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"main.scala":               "val a: Int = 1",
		".git/x.scala":             "junk",
		".hidden.scala":            "junk",
		"target/morphir/old.scala": "junk",
		"target/other/keep.scala":  "val k: Int = 1",
		"lib/util.src":             "val u: Int = 1",
		"lib/readme.md":            "docs",
	})

	units, err := Load(context.Background(), Directory(dir), Options{
		Skip: []string{filepath.Join(dir, "target", "morphir")},
	})
	require.NoError(t, err)

	var ids []string
	for _, u := range units {
		ids = append(ids, u.ID)
	}
	assert.Equal(t, []string{"lib/util.src", "main.scala", "target/other/keep.scala"}, ids)
}

func TestLoadDirectoryCustomExtensions(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.morphir": "val a: Int = 1",
		"b.scala":   "val b: Int = 1",
	})

	units, err := Load(context.Background(), Directory(dir), Options{Extensions: []string{".morphir"}})
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "a.morphir", units[0].ID)
	assert.Equal(t, "a", units[0].Stem())
}

func TestLoadStripsByteOrderMark(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.src": "\ufeffval a: Int = 1",
	})

	units, err := Load(context.Background(), Directory(dir), Options{})
	require.NoError(t, err)
	assert.Equal(t, "val a: Int = 1", units[0].Text)
}

func TestLoadErrors(t *testing.T) {
	empty := t.TempDir()
	file := filepath.Join(t.TempDir(), "f.src")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	broken := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(broken, "missing"), filepath.Join(broken, "dangling.src")))

	tests := []struct {
		name string
		dir  string
		code string
	}{
		{"missing directory", filepath.Join(empty, "nope"), diag.CodeNotFound},
		{"not a directory", file, diag.CodeNotFound},
		{"no source files", empty, diag.CodeNoFiles},
		{"unreadable file", broken, diag.CodeReadFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			units, err := Load(context.Background(), Directory(tt.dir), Options{})
			assert.Nil(t, units)

			var le *LoadError
			require.True(t, errors.As(err, &le), "expected *LoadError, got %T", err)
			assert.Equal(t, tt.code, le.Code)
		})
	}
}

func TestLoadRejectsSharedStems(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{
		"a.scala":     "package one",
		"a.src":       "package two",
		"b.src":       "val b: Int = 2",
		"pkg/c.scala": "val c: Int = 3",
	})

	units, err := Load(context.Background(), Directory(dir), Options{})
	assert.Nil(t, units)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, diag.CodeStemClash, le.Code)
	assert.Equal(t, "a.scala and a.src would both write artifacts named a", le.Message)

	// Same base name in different directories is fine.
	other := testutil.WriteTree(t, map[string]string{
		"a.src":     "val a: Int = 1",
		"pkg/a.src": "val b: Int = 2",
	})
	units, err = Load(context.Background(), Directory(other), Options{})
	require.NoError(t, err)
	assert.Len(t, units, 2)
}

func TestLoadCancelled(t *testing.T) {
	dir := testutil.WriteTree(t, map[string]string{"a.src": "val a: Int = 1"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Directory(dir), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, diag.CodeCancelled, le.Code)
}

func TestInputString(t *testing.T) {
	assert.Equal(t, "<inline>", InlineText("x").String())
	assert.Equal(t, "/tmp/x", Directory("/tmp/x").String())
	assert.True(t, InlineText("").IsInline())
	assert.False(t, Directory("d").IsInline())
}
