package ks

import (
	"errors"
	"fmt"
)

// ErrStalled is returned by a copy that made no progress within the
// configured abort timeout.
var ErrStalled = errors.New("copy stalled")

// ConfigError reports an invalid configuration or unusable root. It is the
// only error that stops a run before any entry is processed.
type ConfigError struct {
	Msg string
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError. err may be nil.
func NewConfigError(msg string, err error) *ConfigError {
	return &ConfigError{Msg: msg, Err: err}
}

// EntryFailure is implemented by the per-entry error types that are
// accumulated in a RunSummary.
type EntryFailure interface {
	error
	Operation() string
	Path() string
}

// WalkError reports a subtree that could not be read.
type WalkError struct {
	Side    Side
	RelPath string
	Err     error
}

func (e *WalkError) Error() string {
	return fmt.Sprintf("reading %s directory %q: %v", e.Side, displayPath(e.RelPath), e.Err)
}

func (e *WalkError) Unwrap() error     { return e.Err }
func (e *WalkError) Operation() string { return "reading directory" }
func (e *WalkError) Path() string      { return e.RelPath }

// ArchiveError reports destination content that could not be moved into the
// archive session. The entry's action was not performed.
type ArchiveError struct {
	RelPath string
	Err     error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archiving %q: %v", displayPath(e.RelPath), e.Err)
}

func (e *ArchiveError) Unwrap() error     { return e.Err }
func (e *ArchiveError) Operation() string { return "archiving" }
func (e *ArchiveError) Path() string      { return e.RelPath }

// CopyError reports a failure to create or update a destination entry.
// Op names the step that failed, e.g. "copying" or "creating directory".
type CopyError struct {
	Op      string
	RelPath string
	Err     error
}

func (e *CopyError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, displayPath(e.RelPath), e.Err)
}

func (e *CopyError) Unwrap() error     { return e.Err }
func (e *CopyError) Operation() string { return e.Op }
func (e *CopyError) Path() string      { return e.RelPath }

func displayPath(rel string) string {
	if rel == "" {
		return "."
	}
	return rel
}

// Compile-time checks
var (
	_ EntryFailure = (*WalkError)(nil)
	_ EntryFailure = (*ArchiveError)(nil)
	_ EntryFailure = (*CopyError)(nil)
)
