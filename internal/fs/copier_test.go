package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kitchensync/internal/ks"
	"kitchensync/internal/testutil"
)

func sourceEntry(t *testing.T, path, rel string) ks.Entry {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	return ks.Entry{RelPath: rel, Kind: ks.KindFile, Size: info.Size(), ModTime: info.ModTime()}
}

func TestCopier_StageAndCommit(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"doc.txt": "content1"})
	mtime := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	testutil.SetModTime(t, src, "doc.txt", mtime)
	require.NoError(t, os.Chmod(filepath.Join(src, "doc.txt"), 0o640))

	c := NewCopier(afero.NewOsFs(), time.Second, ks.NewNopLogger())
	srcPath, dstPath := filepath.Join(src, "doc.txt"), filepath.Join(dst, "doc.txt")

	staged, err := c.Stage(context.Background(), srcPath, dstPath, sourceEntry(t, srcPath, "doc.txt"))
	require.NoError(t, err)
	assert.Equal(t, dst, filepath.Dir(staged))
	assert.True(t, IsReserved(filepath.Base(staged)))
	assert.NoFileExists(t, dstPath, "nothing is visible before commit")

	require.NoError(t, c.Commit(staged, dstPath))

	assert.Equal(t, map[string]string{"doc.txt": "content1"}, testutil.ReadTree(t, dst))
	info, err := os.Stat(dstPath)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
	assert.Equal(t, os.FileMode(0o640), info.Mode().Perm())
}

func TestCopier_SizeMismatch(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"grown.txt": "longer than recorded"})
	srcPath := filepath.Join(src, "grown.txt")
	entry := sourceEntry(t, srcPath, "grown.txt")
	entry.Size = 4

	c := NewCopier(afero.NewOsFs(), time.Second, ks.NewNopLogger())
	_, err := c.Stage(context.Background(), srcPath, filepath.Join(dst, "grown.txt"), entry)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "size mismatch")
	assert.Empty(t, testutil.ReadTree(t, dst), "temporary file must be removed")
}

func TestCopier_Stall(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"slow.bin": "data"})
	srcPath := filepath.Join(src, "slow.bin")

	fsys := testutil.NewFaultFs(afero.NewOsFs())
	fsys.Stall(srcPath)
	c := NewCopier(fsys, 50*time.Millisecond, ks.NewNopLogger())

	_, err := c.Stage(context.Background(), srcPath, filepath.Join(dst, "slow.bin"), sourceEntry(t, srcPath, "slow.bin"))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ks.ErrStalled))
	assert.Empty(t, testutil.ReadTree(t, dst))
}

func TestCopier_Cancelled(t *testing.T) {
	t.Parallel()
	src, dst := t.TempDir(), t.TempDir()
	testutil.WriteTree(t, src, map[string]string{"slow.bin": "data"})
	srcPath := filepath.Join(src, "slow.bin")

	fsys := testutil.NewFaultFs(afero.NewOsFs())
	fsys.Stall(srcPath)
	c := NewCopier(fsys, 0, ks.NewNopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err := c.Stage(ctx, srcPath, filepath.Join(dst, "slow.bin"), sourceEntry(t, srcPath, "slow.bin"))

	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, testutil.ReadTree(t, dst))
}

func TestCopier_DiscardMissingFile(t *testing.T) {
	t.Parallel()
	c := NewCopier(afero.NewOsFs(), time.Second, ks.NewNopLogger())
	c.Discard(filepath.Join(t.TempDir(), PartialPrefix+"gone"))
}
