package ks

import "context"

// Copier transfers file content from the source tree into the destination
// tree. A copy is staged next to its target first so that the destination
// entry is only replaced once the new content is complete.
type Copier interface {
	// Stage copies srcPath into a temporary file in the directory of dstPath,
	// verifies the byte count against src.Size and sets the temporary file's
	// modification time to src.ModTime. It returns the temporary file's path.
	Stage(ctx context.Context, srcPath, dstPath string, src Entry) (string, error)

	// Commit atomically moves a staged file to dstPath.
	Commit(staged, dstPath string) error

	// Discard removes a staged file that will not be committed.
	Discard(staged string)
}

// Archiver relocates destination entries into an archive session.
type Archiver interface {
	// Archive moves the destination entry e (and its subtree, for a directory)
	// to session.PathFor(e.RelPath), creating the session directory on first
	// use. It returns the archived path. On error the destination is unchanged.
	Archive(session *ArchiveSession, e Entry) (string, error)

	// Restore moves an archived entry back to its place in the destination.
	Restore(session *ArchiveSession, archived string, e Entry) error
}
