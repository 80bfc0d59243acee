package ks

import (
	"iter"
	"time"
)

// Kind distinguishes files from directories.
type Kind uint8

const (
	KindFile Kind = iota + 1
	KindDir
	// KindOther is a destination node that is never synchronized itself: a
	// symlink that does not resolve to a regular file, or a special file. It
	// only occupies its path.
	KindOther
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindOther:
		return "other"
	default:
		return "unknown"
	}
}

// Entry is a snapshot of one filesystem node under a tree root.
// RelPath is slash-separated and is the join key between the source and
// destination trees.
type Entry struct {
	RelPath string
	Kind    Kind
	Size    int64
	ModTime time.Time
}

// IsDir returns true if the entry is a directory.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// EntryPair joins the source and destination entries found at the same
// relative path. Either side may be nil, never both.
type EntryPair struct {
	Source *Entry
	Dest   *Entry
}

// RelPath returns the relative path shared by both sides.
func (p EntryPair) RelPath() string {
	if p.Source != nil {
		return p.Source.RelPath
	}
	return p.Dest.RelPath
}

// Subject returns the entry an action is about: the source entry when the
// source has one, otherwise the destination entry.
func (p EntryPair) Subject() Entry {
	if p.Source != nil {
		return *p.Source
	}
	return *p.Dest
}

// ComparePaths orders slash-separated relative paths component by component,
// which places every directory directly before its own contents.
func ComparePaths(a, b string) int {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		ca, cb := a[i], b[i]
		if ca == cb {
			continue
		}
		if ca == '/' {
			return -1
		}
		if cb == '/' {
			return 1
		}
		if ca < cb {
			return -1
		}
		return 1
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Side identifies which tree a walk event came from.
type Side uint8

const (
	SideSource Side = iota + 1
	SideDest
)

func (s Side) String() string {
	if s == SideSource {
		return "source"
	}
	return "destination"
}

// WalkOutcome says what the walker did with a node.
type WalkOutcome uint8

const (
	// WalkIncluded carries an Entry to be synchronized.
	WalkIncluded WalkOutcome = iota + 1
	// WalkExcluded reports a node removed by the filter; directories are pruned.
	WalkExcluded
	// WalkLinkSkipped reports a symlink that is broken or points at a
	// directory. Entry holds the link itself as KindOther.
	WalkLinkSkipped
	// WalkSpecialSkipped reports a fifo, socket or device. Entry holds it as
	// KindOther.
	WalkSpecialSkipped
	// WalkFailed reports an unreadable subtree, which is treated as empty.
	WalkFailed
)

// WalkEvent is one item of a tree enumeration.
type WalkEvent struct {
	Outcome WalkOutcome
	RelPath string
	Entry   Entry      // set unless WalkExcluded or WalkFailed
	Err     *WalkError // set for WalkFailed
}

// Walker enumerates the non-excluded nodes under a root.
// Each call re-reads the tree; the order is deterministic for an unchanged tree.
type Walker interface {
	Walk(root string) iter.Seq[WalkEvent]
}
