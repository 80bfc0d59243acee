package testutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
)

// WriteTree creates files under root. Keys are slash-separated relative
// paths; a key ending in "/" creates a directory and its value is ignored.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if strings.HasSuffix(rel, "/") {
			if err := os.MkdirAll(p, 0o755); err != nil {
				t.Fatalf("creating directory %s: %v", rel, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating parent of %s: %v", rel, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", rel, err)
		}
	}
}

// ReadTree snapshots every node under root in the form WriteTree accepts.
// Top-level names listed in skip are left out.
func ReadTree(t *testing.T, root string, skip ...string) map[string]string {
	t.Helper()
	tree := make(map[string]string)
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		for _, s := range skip {
			if rel == s {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}
		if d.IsDir() {
			tree[rel+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		tree[rel] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("reading tree %s: %v", root, err)
	}
	return tree
}

// SetModTime sets both atime and mtime of the node at root/rel.
func SetModTime(t *testing.T, root, rel string, mtime time.Time) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.Chtimes(p, mtime, mtime); err != nil {
		t.Fatalf("setting mtime of %s: %v", rel, err)
	}
}

// Fault operations understood by FaultFs.
const (
	OpOpen     = "open"      // Open and OpenFile, by name
	OpMkdir    = "mkdir"     // Mkdir and MkdirAll, by path
	OpRename   = "rename"    // Rename, by old name
	OpRenameTo = "rename-to" // Rename, by new name
	OpRemove   = "remove"    // Remove and RemoveAll, by path
	OpChtimes  = "chtimes"
)

type fault struct {
	err   error
	times int // remaining failures; negative means always
}

// FaultFs wraps an afero.Fs and injects failures on chosen operations and
// paths. Safe for concurrent use.
type FaultFs struct {
	afero.Fs

	mu     sync.Mutex
	faults map[string]map[string]*fault
	stalls map[string]bool
}

// NewFaultFs wraps base.
func NewFaultFs(base afero.Fs) *FaultFs {
	return &FaultFs{
		Fs:     base,
		faults: make(map[string]map[string]*fault),
		stalls: make(map[string]bool),
	}
}

// Fail makes every op on path return err.
func (f *FaultFs) Fail(op, path string, err error) {
	f.FailTimes(op, path, err, -1)
}

// FailTimes makes the next n ops on path return err.
func (f *FaultFs) FailTimes(op, path string, err error, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.faults[op] == nil {
		f.faults[op] = make(map[string]*fault)
	}
	f.faults[op][filepath.Clean(path)] = &fault{err: err, times: n}
}

// Stall makes reads from path block until the file is closed.
func (f *FaultFs) Stall(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stalls[filepath.Clean(path)] = true
}

func (f *FaultFs) check(op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ft, ok := f.faults[op][filepath.Clean(path)]
	if !ok || ft.times == 0 {
		return nil
	}
	if ft.times > 0 {
		ft.times--
	}
	return &os.PathError{Op: op, Path: path, Err: ft.err}
}

func (f *FaultFs) stalled(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stalls[filepath.Clean(path)]
}

func (f *FaultFs) Open(name string) (afero.File, error) {
	if err := f.check(OpOpen, name); err != nil {
		return nil, err
	}
	file, err := f.Fs.Open(name)
	if err != nil || !f.stalled(name) {
		return file, err
	}
	return newStallFile(file), nil
}

func (f *FaultFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if err := f.check(OpOpen, name); err != nil {
		return nil, err
	}
	return f.Fs.OpenFile(name, flag, perm)
}

func (f *FaultFs) Mkdir(name string, perm os.FileMode) error {
	if err := f.check(OpMkdir, name); err != nil {
		return err
	}
	return f.Fs.Mkdir(name, perm)
}

func (f *FaultFs) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdir, path); err != nil {
		return err
	}
	return f.Fs.MkdirAll(path, perm)
}

func (f *FaultFs) Rename(oldname, newname string) error {
	if err := f.check(OpRename, oldname); err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.Unwrap(err)}
	}
	if err := f.check(OpRenameTo, newname); err != nil {
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: errors.Unwrap(err)}
	}
	return f.Fs.Rename(oldname, newname)
}

func (f *FaultFs) Remove(name string) error {
	if err := f.check(OpRemove, name); err != nil {
		return err
	}
	return f.Fs.Remove(name)
}

func (f *FaultFs) RemoveAll(path string) error {
	if err := f.check(OpRemove, path); err != nil {
		return err
	}
	return f.Fs.RemoveAll(path)
}

func (f *FaultFs) Chtimes(name string, atime, mtime time.Time) error {
	if err := f.check(OpChtimes, name); err != nil {
		return err
	}
	return f.Fs.Chtimes(name, atime, mtime)
}

// stallFile blocks every Read until Close.
type stallFile struct {
	afero.File
	once   sync.Once
	closed chan struct{}
}

func newStallFile(file afero.File) *stallFile {
	return &stallFile{File: file, closed: make(chan struct{})}
}

func (s *stallFile) Read(p []byte) (int, error) {
	<-s.closed
	return 0, os.ErrClosed
}

func (s *stallFile) Close() error {
	s.once.Do(func() { close(s.closed) })
	return s.File.Close()
}

var _ afero.Fs = (*FaultFs)(nil)
