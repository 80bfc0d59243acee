//go:build unix

package fs

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"kitchensync/internal/ks"
	"kitchensync/internal/testutil"
)

func TestWalker_SpecialFile(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"a.txt": "a"})
	require.NoError(t, unix.Mkfifo(filepath.Join(root, "pipe"), 0o644))

	var special []ks.WalkEvent
	for ev := range newTestWalker(t, afero.NewOsFs()).Walk(root) {
		if ev.Outcome == ks.WalkSpecialSkipped {
			special = append(special, ev)
		}
	}

	require.Len(t, special, 1)
	assert.Equal(t, "pipe", special[0].RelPath)
	assert.Equal(t, ks.KindOther, special[0].Entry.Kind)
}
