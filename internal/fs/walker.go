package fs

import (
	"errors"
	iofs "io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"

	"github.com/spf13/afero"

	"kitchensync/internal/ks"
)

// Walker enumerates a tree depth first, siblings in name order.
type Walker struct {
	fs     afero.Fs
	filter *Filter
	logger ks.Logger
}

// NewWalker creates a Walker reading through fsys.
func NewWalker(fsys afero.Fs, filter *Filter, logger ks.Logger) *Walker {
	return &Walker{fs: fsys, filter: filter, logger: logger}
}

// Walk returns a lazy enumeration of root. A missing root yields nothing.
func (w *Walker) Walk(root string) iter.Seq[ks.WalkEvent] {
	return func(yield func(ks.WalkEvent) bool) {
		info, err := w.fs.Stat(root)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return
			}
			yield(failed("", err))
			return
		}
		if !info.IsDir() {
			yield(failed("", &os.PathError{Op: "readdir", Path: root, Err: errors.New("not a directory")}))
			return
		}
		w.walkDir(root, "", yield)
	}
}

// walkDir yields the children of rel and recurses into directories. It
// returns false once the consumer stops.
func (w *Walker) walkDir(root, rel string, yield func(ks.WalkEvent) bool) bool {
	dir := filepath.Join(root, filepath.FromSlash(rel))
	w.logger.Debug("loading directory", "path", dir)

	infos, err := afero.ReadDir(w.fs, dir)
	if err != nil {
		return yield(failed(rel, err))
	}

	for _, info := range infos {
		childRel := path.Join(rel, info.Name())
		if w.filter.Excluded(childRel) {
			if !yield(ks.WalkEvent{Outcome: ks.WalkExcluded, RelPath: childRel}) {
				return false
			}
			continue
		}

		mode := info.Mode()
		if mode&os.ModeSymlink != 0 {
			opaque := ks.Entry{RelPath: childRel, Kind: ks.KindOther, ModTime: info.ModTime()}
			target, err := w.fs.Stat(filepath.Join(dir, info.Name()))
			switch {
			case err != nil:
				w.logger.Warn("skipping broken symlink", "path", childRel, "error", err)
				if !yield(ks.WalkEvent{Outcome: ks.WalkLinkSkipped, RelPath: childRel, Entry: opaque}) {
					return false
				}
				continue
			case !target.Mode().IsRegular():
				w.logger.Debug("skipping symlink to non-regular file", "path", childRel)
				if !yield(ks.WalkEvent{Outcome: ks.WalkLinkSkipped, RelPath: childRel, Entry: opaque}) {
					return false
				}
				continue
			}
			info = target
			mode = info.Mode()
		}

		var entry ks.Entry
		switch {
		case mode.IsDir():
			entry = ks.Entry{RelPath: childRel, Kind: ks.KindDir, ModTime: info.ModTime()}
		case mode.IsRegular():
			entry = ks.Entry{RelPath: childRel, Kind: ks.KindFile, Size: info.Size(), ModTime: info.ModTime()}
		default:
			w.logger.Debug("skipping special file", "path", childRel, "mode", mode.String())
			special := ks.Entry{RelPath: childRel, Kind: ks.KindOther, ModTime: info.ModTime()}
			if !yield(ks.WalkEvent{Outcome: ks.WalkSpecialSkipped, RelPath: childRel, Entry: special}) {
				return false
			}
			continue
		}

		if !yield(ks.WalkEvent{Outcome: ks.WalkIncluded, RelPath: childRel, Entry: entry}) {
			return false
		}
		if entry.IsDir() && !w.walkDir(root, childRel, yield) {
			return false
		}
	}
	return true
}

func failed(rel string, err error) ks.WalkEvent {
	return ks.WalkEvent{
		Outcome: ks.WalkFailed,
		RelPath: rel,
		Err:     &ks.WalkError{RelPath: rel, Err: err},
	}
}

// Compile-time check that Walker implements ks.Walker
var _ ks.Walker = (*Walker)(nil)
