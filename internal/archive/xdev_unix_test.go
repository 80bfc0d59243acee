//go:build unix

package archive

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"kitchensync/internal/ks"
	"kitchensync/internal/testutil"
)

func TestArchiver_CrossDeviceFallsBackToCopy(t *testing.T) {
	t.Parallel()
	dst := t.TempDir()
	testutil.WriteTree(t, dst, map[string]string{
		"mnt/data.txt":     "payload",
		"mnt/nested/n.txt": "nested",
	})
	mtime := time.Date(2022, 3, 4, 5, 6, 7, 0, time.UTC)
	testutil.SetModTime(t, dst, "mnt/data.txt", mtime)

	fsys := testutil.NewFaultFs(afero.NewOsFs())
	fsys.FailTimes(testutil.OpRename, filepath.Join(dst, "mnt"), unix.EXDEV, 1)

	a := NewArchiver(fsys, ks.NewNopLogger())
	archived, err := a.Archive(ks.NewArchiveSession(dst, started), ks.Entry{RelPath: "mnt", Kind: ks.KindDir})
	require.NoError(t, err)

	assert.NoDirExists(t, filepath.Join(dst, "mnt"))
	assert.Equal(t, map[string]string{
		"data.txt":     "payload",
		"nested/":      "",
		"nested/n.txt": "nested",
	}, testutil.ReadTree(t, archived))
	info, err := os.Stat(filepath.Join(archived, "data.txt"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestArchiver_CrossDeviceRefusesSpecialFile(t *testing.T) {
	t.Parallel()
	dst := t.TempDir()
	pipe := filepath.Join(dst, "pipe")
	require.NoError(t, unix.Mkfifo(pipe, 0o644))

	fsys := testutil.NewFaultFs(afero.NewOsFs())
	fsys.FailTimes(testutil.OpRename, pipe, unix.EXDEV, 1)

	a := NewArchiver(fsys, ks.NewNopLogger())
	_, err := a.Archive(ks.NewArchiveSession(dst, started), ks.Entry{RelPath: "pipe", Kind: ks.KindOther})
	require.Error(t, err)

	info, err := os.Lstat(pipe)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&os.ModeNamedPipe, "the fifo stays in place")
}
