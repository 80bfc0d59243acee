package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchensync/internal/ks"
	"kitchensync/internal/testutil"
)

type walked struct {
	outcome ks.WalkOutcome
	rel     string
}

func collect(w *Walker, root string) ([]walked, map[string]ks.Entry) {
	var events []walked
	entries := make(map[string]ks.Entry)
	for ev := range w.Walk(root) {
		events = append(events, walked{ev.Outcome, ev.RelPath})
		if ev.Outcome == ks.WalkIncluded {
			entries[ev.RelPath] = ev.Entry
		}
	}
	return events, entries
}

func memTree(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	for p, content := range files {
		require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, afero.WriteFile(fsys, p, []byte(content), 0o644))
	}
	return fsys
}

func newTestWalker(t *testing.T, fsys afero.Fs, patterns ...string) *Walker {
	t.Helper()
	filter, err := NewFilter(patterns, false)
	require.NoError(t, err)
	return NewWalker(fsys, filter, ks.NewNopLogger())
}

func TestWalker_Order(t *testing.T) {
	t.Parallel()
	fsys := memTree(t, map[string]string{
		"/src/b.txt":     "bb",
		"/src/a.txt":     "a",
		"/src/a/x.txt":   "xxx",
		"/src/a/b/y.txt": "y",
	})

	events, entries := collect(newTestWalker(t, fsys), "/src")

	assert.Equal(t, []walked{
		{ks.WalkIncluded, "a"},
		{ks.WalkIncluded, "a/b"},
		{ks.WalkIncluded, "a/b/y.txt"},
		{ks.WalkIncluded, "a/x.txt"},
		{ks.WalkIncluded, "a.txt"},
		{ks.WalkIncluded, "b.txt"},
	}, events)
	assert.Equal(t, ks.KindDir, entries["a"].Kind)
	assert.Equal(t, ks.KindFile, entries["a/x.txt"].Kind)
	assert.Equal(t, int64(3), entries["a/x.txt"].Size)

	again, _ := collect(newTestWalker(t, fsys), "/src")
	assert.Equal(t, events, again, "order must be stable across walks")
}

func TestWalker_ExcludedDirectoryIsPruned(t *testing.T) {
	t.Parallel()
	fsys := memTree(t, map[string]string{
		"/src/node_modules/pkg/index.js": "x",
		"/src/main.go":                   "package main",
		"/src/.kitchensync/old/file":     "archived",
		"/src/backup_20240115_1430.zip":  "zip",
	})

	events, entries := collect(newTestWalker(t, fsys, "node_modules"), "/src")

	assert.Equal(t, []walked{
		{ks.WalkExcluded, ".kitchensync"},
		{ks.WalkExcluded, "backup_20240115_1430.zip"},
		{ks.WalkIncluded, "main.go"},
		{ks.WalkExcluded, "node_modules"},
	}, events)
	assert.Len(t, entries, 1)
}

func TestWalker_MissingRootYieldsNothing(t *testing.T) {
	t.Parallel()
	events, _ := collect(newTestWalker(t, afero.NewMemMapFs()), "/nope")
	assert.Empty(t, events)
}

func TestWalker_UnreadableDirectory(t *testing.T) {
	t.Parallel()
	base := memTree(t, map[string]string{
		"/src/locked/secret.txt": "s",
		"/src/open.txt":          "o",
	})
	fsys := testutil.NewFaultFs(base)
	fsys.Fail(testutil.OpOpen, "/src/locked", os.ErrPermission)

	var failures []*ks.WalkError
	var included []string
	for ev := range newTestWalker(t, fsys).Walk("/src") {
		switch ev.Outcome {
		case ks.WalkFailed:
			failures = append(failures, ev.Err)
		case ks.WalkIncluded:
			included = append(included, ev.RelPath)
		}
	}

	require.Len(t, failures, 1)
	assert.Equal(t, "locked", failures[0].RelPath)
	assert.True(t, errors.Is(failures[0], os.ErrPermission))
	assert.Equal(t, []string{"locked", "open.txt"}, included)
}

func TestWalker_Symlinks(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"real.txt": "hello",
		"dir/":     "",
	})
	require.NoError(t, os.Symlink(filepath.Join(root, "real.txt"), filepath.Join(root, "file-link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "dir"), filepath.Join(root, "dir-link")))
	require.NoError(t, os.Symlink(filepath.Join(root, "missing"), filepath.Join(root, "broken-link")))

	events, entries := collect(newTestWalker(t, afero.NewOsFs()), root)

	assert.Equal(t, []walked{
		{ks.WalkLinkSkipped, "broken-link"},
		{ks.WalkIncluded, "dir"},
		{ks.WalkLinkSkipped, "dir-link"},
		{ks.WalkIncluded, "file-link"},
		{ks.WalkIncluded, "real.txt"},
	}, events)
	assert.Equal(t, ks.KindFile, entries["file-link"].Kind)
	assert.Equal(t, int64(5), entries["file-link"].Size)

	// Skipped links still occupy their path.
	for ev := range newTestWalker(t, afero.NewOsFs()).Walk(root) {
		if ev.Outcome == ks.WalkLinkSkipped {
			assert.Equal(t, ks.KindOther, ev.Entry.Kind, ev.RelPath)
			assert.Equal(t, ev.RelPath, ev.Entry.RelPath)
		}
	}
}

func TestWalker_StopsWhenConsumerStops(t *testing.T) {
	t.Parallel()
	fsys := memTree(t, map[string]string{
		"/src/a/1": "1",
		"/src/a/2": "2",
		"/src/b":   "b",
	})

	var seen []string
	for ev := range newTestWalker(t, fsys).Walk("/src") {
		seen = append(seen, ev.RelPath)
		if ev.RelPath == "a/1" {
			break
		}
	}
	assert.Equal(t, []string{"a", "a/1"}, seen)
}
