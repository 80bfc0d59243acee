package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/gobwas/glob"

	"kitchensync/internal/ks"
)

// PartialPrefix starts the name of every in-flight copy. Such files are
// reserved and never synchronized.
const PartialPrefix = ".kitchensync-partial-"

// Filter decides which nodes are left out of a walk.
// Patterns are matched against the final path segment only, so an excluded
// name is excluded at every depth and on both sides.
type Filter struct {
	patterns          []glob.Glob
	raw               []string
	includeTimestamps bool
}

// NewFilter compiles the exclusion patterns. Blank patterns are ignored.
// An invalid pattern is a *ks.ConfigError.
func NewFilter(patterns []string, includeTimestamps bool) (*Filter, error) {
	f := &Filter{includeTimestamps: includeTimestamps}
	for _, raw := range patterns {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		g, err := glob.Compile(raw)
		if err != nil {
			return nil, ks.NewConfigError(fmt.Sprintf("invalid exclude pattern %q", raw), err)
		}
		f.patterns = append(f.patterns, g)
		f.raw = append(f.raw, raw)
	}
	return f, nil
}

// Patterns returns the compiled patterns as given.
func (f *Filter) Patterns() []string {
	return f.raw
}

// Excluded reports whether the node at the slash-separated relPath is
// left out.
func (f *Filter) Excluded(relPath string) bool {
	name := path.Base(relPath)
	if IsReserved(name) {
		return true
	}
	for _, g := range f.patterns {
		if g.Match(name) {
			return true
		}
	}
	return !f.includeTimestamps && IsTimestampLike(name)
}

// IsReserved reports whether name belongs to kitchensync itself.
func IsReserved(name string) bool {
	return name == ks.ArchiveDirName || strings.HasPrefix(name, PartialPrefix)
}

// ParseExcludeFile reads one pattern per line from path.
// Blank lines and lines starting with '#' are skipped.
func ParseExcludeFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening exclude file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading exclude file: %w", err)
	}
	return patterns, nil
}
