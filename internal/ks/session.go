package ks

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"
)

// ArchiveDirName is the directory under the destination root that holds
// archive sessions. It is never synchronized.
const ArchiveDirName = ".kitchensync"

// SessionNameLayout names session directories. UTC keeps the names sortable
// across DST changes.
const SessionNameLayout = "2006-01-02_15-04-05.000Z"

// maxSessionSuffix bounds the search for a free session name when a previous
// run started in the same millisecond.
const maxSessionSuffix = 100

// ArchiveSession is the holding area for everything displaced during one run.
// The directory is created on first use, at most once.
type ArchiveSession struct {
	destRoot string
	name     string

	mu  sync.Mutex
	dir string
}

// NewArchiveSession creates a session for a run that started at startedAt.
// Nothing is written until Ensure is called.
func NewArchiveSession(destRoot string, startedAt time.Time) *ArchiveSession {
	return &ArchiveSession{
		destRoot: destRoot,
		name:     startedAt.UTC().Format(SessionNameLayout),
	}
}

// DestRoot returns the destination root the session belongs to.
func (s *ArchiveSession) DestRoot() string {
	return s.destRoot
}

// Root returns <destRoot>/.kitchensync.
func (s *ArchiveSession) Root() string {
	return filepath.Join(s.destRoot, ArchiveDirName)
}

// Dir returns the session directory, or "" if it has not been created.
func (s *ArchiveSession) Dir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dir
}

// PathFor returns where the entry at rel is (or would be) archived.
func (s *ArchiveSession) PathFor(rel string) string {
	dir := s.Dir()
	if dir == "" {
		dir = filepath.Join(s.Root(), s.name)
	}
	return filepath.Join(dir, filepath.FromSlash(rel))
}

// Ensure creates the session directory if needed and returns it.
// mkdir must create exactly the given directory and fail with fs.ErrExist if
// it is already there, so a name used by an earlier run is never reused.
func (s *ArchiveSession) Ensure(mkdir func(dir string) error) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir != "" {
		return s.dir, nil
	}

	for i := 0; i <= maxSessionSuffix; i++ {
		name := s.name
		if i > 0 {
			name = fmt.Sprintf("%s-%d", s.name, i)
		}
		candidate := filepath.Join(s.Root(), name)
		err := mkdir(candidate)
		if err == nil {
			s.dir = candidate
			return s.dir, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("creating archive session directory: %w", err)
		}
	}
	return "", fmt.Errorf("no free archive session name for %s", s.name)
}
