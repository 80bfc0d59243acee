package ks

import "time"

// Action is the outcome of comparing one EntryPair.
type Action uint8

const (
	// Skip leaves the destination as it is.
	Skip Action = iota + 1
	// Copy creates a destination entry that does not exist yet.
	Copy
	// ArchiveAndReplace archives the destination entry, then copies the source over it.
	ArchiveAndReplace
	// ArchiveAndRemove archives a destination entry that has no source counterpart.
	ArchiveAndRemove
	// UpdateModTime sets the destination file's mtime to the source's without
	// touching content. Only produced when modification times are ignored.
	UpdateModTime
)

func (a Action) String() string {
	switch a {
	case Skip:
		return "skip"
	case Copy:
		return "copy"
	case ArchiveAndReplace:
		return "archive-and-replace"
	case ArchiveAndRemove:
		return "archive-and-remove"
	case UpdateModTime:
		return "update-modtime"
	default:
		return "unknown"
	}
}

// Mutates reports whether the action changes the destination.
func (a Action) Mutates() bool {
	return a != Skip
}

// CompareMode selects the comparison policy.
type CompareMode struct {
	// GreaterSizeOnly copies a file only when the source is strictly larger,
	// ignoring modification times, and keeps destination-only entries.
	GreaterSizeOnly bool
	// IgnoreModTime compares files by size alone; a differing mtime on
	// equal-sized files is repaired with UpdateModTime.
	IgnoreModTime bool
	// Force replaces every file present on both sides.
	Force bool
}

// Decide computes the action for one pair.
func Decide(pair EntryPair, mode CompareMode) Action {
	src, dst := pair.Source, pair.Dest
	switch {
	case src == nil && dst == nil:
		return Skip
	case dst == nil:
		return Copy
	case src == nil:
		if mode.GreaterSizeOnly || dst.Kind == KindOther {
			return Skip
		}
		return ArchiveAndRemove
	case src.Kind != dst.Kind:
		return ArchiveAndReplace
	case src.Kind != KindFile:
		return Skip
	}

	if mode.Force {
		return ArchiveAndReplace
	}
	if mode.GreaterSizeOnly {
		if src.Size > dst.Size {
			return ArchiveAndReplace
		}
		return Skip
	}
	if src.Size != dst.Size {
		return ArchiveAndReplace
	}
	if sameModTime(src.ModTime, dst.ModTime) {
		return Skip
	}
	if mode.IgnoreModTime {
		return UpdateModTime
	}
	return ArchiveAndReplace
}

// sameModTime compares at whole-second precision so that filesystems with
// coarse timestamps still converge to Skip after a copy.
func sameModTime(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
