// Package archive moves destination content into an archive session before
// it is overwritten or removed.
package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"

	"kitchensync/internal/ks"
)

// Archiver relocates destination entries with a rename, falling back to copy
// and remove when the rename would cross a mount point.
type Archiver struct {
	fs     afero.Fs
	logger ks.Logger
}

// NewArchiver creates an Archiver operating on fsys.
func NewArchiver(fsys afero.Fs, logger ks.Logger) *Archiver {
	return &Archiver{fs: fsys, logger: logger}
}

// Archive implements ks.Archiver.
func (a *Archiver) Archive(session *ks.ArchiveSession, e ks.Entry) (string, error) {
	dir, err := session.Ensure(a.mkdirSession)
	if err != nil {
		return "", err
	}

	target := session.PathFor(e.RelPath)
	if err := a.fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("creating archive directory: %w", err)
	}

	source := filepath.Join(session.DestRoot(), filepath.FromSlash(e.RelPath))
	if err := a.move(source, target); err != nil {
		return "", err
	}
	a.logger.Debug("archived entry", "path", e.RelPath, "kind", e.Kind.String(), "session", dir)
	return target, nil
}

// Restore implements ks.Archiver.
func (a *Archiver) Restore(session *ks.ArchiveSession, archived string, e ks.Entry) error {
	dest := filepath.Join(session.DestRoot(), filepath.FromSlash(e.RelPath))
	if err := a.move(archived, dest); err != nil {
		return fmt.Errorf("restoring %s: %w", e.RelPath, err)
	}
	return nil
}

func (a *Archiver) mkdirSession(dir string) error {
	if err := a.fs.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return err
	}
	if err := a.fs.Mkdir(dir, 0o755); err != nil {
		return err
	}
	a.logger.Info("created archive session", "path", dir)
	return nil
}

func (a *Archiver) move(from, to string) error {
	err := a.fs.Rename(from, to)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("moving %s: %w", from, err)
	}

	a.logger.Debug("rename crosses devices, copying instead", "from", from, "to", to)
	if err := a.copyTree(from, to); err != nil {
		if rmErr := a.fs.RemoveAll(to); rmErr != nil {
			a.logger.Warn("removing incomplete copy", "path", to, "error", rmErr)
		}
		return fmt.Errorf("copying %s: %w", from, err)
	}
	if err := a.fs.RemoveAll(from); err != nil {
		return fmt.Errorf("removing %s after copy: %w", from, err)
	}
	return nil
}

// copyTree copies from to to, preserving modification times.
func (a *Archiver) copyTree(from, to string) error {
	var dirs []string
	err := afero.Walk(a.fs, from, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, p)
		if err != nil {
			return err
		}
		target := filepath.Join(to, rel)

		switch {
		case info.IsDir():
			if err := a.fs.MkdirAll(target, info.Mode().Perm()|0o700); err != nil {
				return err
			}
			dirs = append(dirs, p)
			return nil
		case info.Mode()&os.ModeSymlink != 0:
			return a.copyLink(p, target)
		case !info.Mode().IsRegular():
			return fmt.Errorf("cannot copy special file %s", p)
		default:
			if err := a.copyFile(p, target, info); err != nil {
				return err
			}
			return a.fs.Chtimes(target, info.ModTime(), info.ModTime())
		}
	})
	if err != nil {
		return err
	}

	// Children first, so creating them does not bump a parent's mtime afterwards.
	for _, dir := range slices.Backward(dirs) {
		info, err := a.fs.Stat(dir)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(from, dir)
		if err != nil {
			return err
		}
		if err := a.fs.Chtimes(filepath.Join(to, rel), info.ModTime(), info.ModTime()); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archiver) copyFile(from, to string, info os.FileInfo) error {
	in, err := a.fs.Open(from)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := a.fs.OpenFile(to, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (a *Archiver) copyLink(from, to string) error {
	reader, ok := a.fs.(afero.LinkReader)
	if !ok {
		return fmt.Errorf("cannot read symlink %s on %s", from, a.fs.Name())
	}
	linker, ok := a.fs.(afero.Linker)
	if !ok {
		return fmt.Errorf("cannot create symlink %s on %s", to, a.fs.Name())
	}
	target, err := reader.ReadlinkIfPossible(from)
	if err != nil {
		return err
	}
	return linker.SymlinkIfPossible(target, to)
}

// Compile-time check that Archiver implements ks.Archiver
var _ ks.Archiver = (*Archiver)(nil)
