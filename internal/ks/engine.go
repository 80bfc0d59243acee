package ks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
)

// Options configures a run.
type Options struct {
	// Preview computes and reports every action without touching the destination.
	Preview bool
	Mode    CompareMode
}

// Engine is the orchestration layer: it walks both trees, pairs their entries
// by relative path and makes the destination match the source, archiving
// destination content before it is overwritten or removed.
type Engine struct {
	fs       afero.Fs
	walker   Walker
	archiver Archiver
	copier   Copier
	reporter Reporter
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	opts     Options
}

// NewEngine creates a new Engine with the provided dependencies.
func NewEngine(fsys afero.Fs, walker Walker, archiver Archiver, copier Copier, reporter Reporter, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Engine {
	return &Engine{
		fs:       fsys,
		walker:   walker,
		archiver: archiver,
		copier:   copier,
		reporter: reporter,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		opts:     opts,
	}
}

// Run performs one pass from sourceRoot to destRoot.
// Only a *ConfigError is returned as an error; per-entry failures are
// collected in the summary and the pass continues past them.
func (e *Engine) Run(ctx context.Context, sourceRoot, destRoot string) (*RunSummary, error) {
	src, dst, destExists, err := e.checkRoots(sourceRoot, destRoot)
	if err != nil {
		return nil, err
	}

	if !destExists && !e.opts.Preview {
		if err := e.fs.Mkdir(dst, 0o755); err != nil {
			return nil, NewConfigError(fmt.Sprintf("creating destination directory %s", dst), err)
		}
		e.logger.Info("created destination directory", "path", dst)
	}

	startedAt := e.clock.Now()
	summary := &RunSummary{
		RunID:       e.idgen.New(),
		Source:      src,
		Destination: dst,
		Preview:     e.opts.Preview,
		StartedAt:   startedAt,
	}
	e.reporter.Started(RunInfo{
		RunID:       summary.RunID,
		Source:      src,
		Destination: dst,
		Preview:     e.opts.Preview,
		Mode:        e.opts.Mode,
		StartedAt:   startedAt,
	})

	pairs, unreadable := e.pair(src, dst, summary)
	e.logger.Debug("trees paired", "entries", len(pairs))

	p := &pass{
		Engine:  e,
		src:     src,
		dst:     dst,
		session: NewArchiveSession(dst, startedAt),
		summary: summary,
		settled: make(map[string]bool),
	}
	for _, rel := range unreadable {
		e.logger.Warn("leaving unreadable destination directory untouched", "path", displayPath(rel))
		p.settled[displayPath(rel)] = true
	}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			summary.Interrupted = true
			e.logger.Warn("run interrupted", "error", err)
			break
		}
		p.process(ctx, pair)
	}

	summary.ArchiveDir = p.session.Dir()
	summary.FinishedAt = e.clock.Now()
	e.logger.Info("run finished",
		"copied", summary.Copied,
		"archived", summary.Archived,
		"removed", summary.Removed,
		"skipped", summary.Skipped,
		"errors", len(summary.Errors),
	)
	e.reporter.Finished(summary)
	return summary, nil
}

// checkRoots validates both roots and returns them as absolute paths.
func (e *Engine) checkRoots(sourceRoot, destRoot string) (src, dst string, destExists bool, err error) {
	src, err = filepath.Abs(sourceRoot)
	if err != nil {
		return "", "", false, NewConfigError("resolving source path", err)
	}
	dst, err = filepath.Abs(destRoot)
	if err != nil {
		return "", "", false, NewConfigError("resolving destination path", err)
	}

	info, err := e.fs.Stat(src)
	if err != nil {
		return "", "", false, NewConfigError(fmt.Sprintf("source %s is not accessible", src), err)
	}
	if !info.IsDir() {
		return "", "", false, NewConfigError(fmt.Sprintf("source %s is not a directory", src), nil)
	}

	info, err = e.fs.Stat(dst)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", "", false, NewConfigError(fmt.Sprintf("destination %s is not a directory", dst), nil)
		}
		destExists = true
	case errors.Is(err, fs.ErrNotExist):
		parent := filepath.Dir(dst)
		if pinfo, perr := e.fs.Stat(parent); perr != nil || !pinfo.IsDir() {
			return "", "", false, NewConfigError(fmt.Sprintf("destination parent directory %s does not exist", parent), perr)
		}
	default:
		return "", "", false, NewConfigError(fmt.Sprintf("destination %s is not accessible", dst), err)
	}

	if contains(src, dst) || contains(dst, src) {
		return "", "", false, NewConfigError("source and destination must not contain each other", nil)
	}
	return src, dst, destExists, nil
}

// contains reports whether child is parent or lies below it.
func contains(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// listing is the materialized result of walking one side.
type listing struct {
	entries  map[string]Entry
	filtered int
	links    int
	errs     []error
	failed   []string
}

// pair walks both roots concurrently and joins their entries by relative
// path, ordered so that directories precede their contents. It also returns
// the destination directories that could not be read.
func (e *Engine) pair(src, dst string, summary *RunSummary) ([]EntryPair, []string) {
	var source, dest listing
	var g errgroup.Group
	g.Go(func() error {
		source = e.list(SideSource, src)
		return nil
	})
	g.Go(func() error {
		dest = e.list(SideDest, dst)
		return nil
	})
	_ = g.Wait() // walk failures are per subtree and carried in the listings

	summary.Filtered = source.filtered + dest.filtered
	summary.LinksSkipped = source.links + dest.links
	summary.Errors = append(summary.Errors, source.errs...)
	summary.Errors = append(summary.Errors, dest.errs...)

	pairs := make([]EntryPair, 0, len(source.entries)+len(dest.entries))
	for rel, s := range source.entries {
		p := EntryPair{Source: &s}
		if d, ok := dest.entries[rel]; ok {
			p.Dest = &d
		}
		pairs = append(pairs, p)
	}
	for rel, d := range dest.entries {
		if _, ok := source.entries[rel]; !ok {
			pairs = append(pairs, EntryPair{Dest: &d})
		}
	}
	slices.SortFunc(pairs, func(a, b EntryPair) int {
		return ComparePaths(a.RelPath(), b.RelPath())
	})
	return pairs, dest.failed
}

func (e *Engine) list(side Side, root string) listing {
	l := listing{entries: make(map[string]Entry)}
	for ev := range e.walker.Walk(root) {
		switch ev.Outcome {
		case WalkIncluded:
			l.entries[ev.Entry.RelPath] = ev.Entry
		case WalkExcluded:
			l.filtered++
			e.reporter.Walked(side, ev)
		case WalkLinkSkipped, WalkSpecialSkipped:
			if ev.Outcome == WalkLinkSkipped {
				l.links++
			}
			// On the destination the node still occupies its path, so
			// nothing is written through or over it unarchived.
			if side == SideDest {
				l.entries[ev.Entry.RelPath] = ev.Entry
			}
			e.reporter.Walked(side, ev)
		case WalkFailed:
			ev.Err.Side = side
			l.errs = append(l.errs, ev.Err)
			l.failed = append(l.failed, ev.RelPath)
			e.reporter.Walked(side, ev)
		}
	}
	return l
}

// pass holds the state of one run over the paired entries.
type pass struct {
	*Engine
	src, dst string
	session  *ArchiveSession
	summary  *RunSummary

	// settled holds directories whose whole subtree has been dealt with:
	// destination directories that were archived (or failed to be) or could
	// not be read, and source directories that could not be created. An
	// unreadable destination root is keyed ".".
	settled map[string]bool
}

func (p *pass) process(ctx context.Context, pair EntryPair) {
	rel := pair.RelPath()
	if p.isSettled(rel) {
		return
	}

	action := Decide(pair, p.opts.Mode)
	ev := ActionEvent{
		Action:  action,
		Entry:   pair.Subject(),
		Preview: p.opts.Preview,
	}
	archives := action == ArchiveAndReplace || action == ArchiveAndRemove
	if archives {
		ev.Replaced = pair.Dest
	}

	if p.opts.Preview {
		if archives {
			ev.ArchivedTo = p.session.PathFor(rel)
		}
	} else {
		ev.ArchivedTo, ev.Err = p.execute(ctx, action, pair)
	}

	p.count(action, pair, ev)

	if archives && pair.Dest.IsDir() {
		p.settled[rel] = true
	}
	if ev.Err != nil && pair.Source != nil && pair.Source.IsDir() {
		p.settled[rel] = true
	}

	p.reporter.Acted(ev)
}

func (p *pass) isSettled(rel string) bool {
	for dir := path.Dir(rel); ; dir = path.Dir(dir) {
		if p.settled[dir] {
			return true
		}
		if dir == "." || dir == "/" {
			return false
		}
	}
}

// execute performs action and returns where the destination entry was
// archived, if it was.
func (p *pass) execute(ctx context.Context, action Action, pair EntryPair) (string, error) {
	if !action.Mutates() {
		return "", nil
	}
	switch action {
	case Copy:
		return p.create(ctx, *pair.Source, nil)
	case ArchiveAndReplace:
		return p.create(ctx, *pair.Source, pair.Dest)
	case ArchiveAndRemove:
		return p.archive(*pair.Dest)
	case UpdateModTime:
		src := *pair.Source
		if err := p.fs.Chtimes(p.destPath(src.RelPath), src.ModTime, src.ModTime); err != nil {
			return "", &CopyError{Op: "updating modification time", RelPath: src.RelPath, Err: err}
		}
		return "", nil
	default:
		panic(fmt.Sprintf("unhandled action %d", action))
	}
}

// create makes the destination entry match src. When replaced is set, the
// existing destination entry is archived once the new content is ready and
// before it is put in place; if putting it in place fails, the archived entry
// is restored.
func (p *pass) create(ctx context.Context, src Entry, replaced *Entry) (string, error) {
	dstPath := p.destPath(src.RelPath)

	if src.IsDir() {
		archived, err := p.archiveIfSet(replaced)
		if err != nil {
			return "", err
		}
		if err := p.fs.MkdirAll(dstPath, 0o755); err != nil {
			return p.rollback(archived, replaced, &CopyError{Op: "creating directory", RelPath: src.RelPath, Err: err})
		}
		return archived, nil
	}

	staged, err := p.copier.Stage(ctx, p.sourcePath(src.RelPath), dstPath, src)
	if err != nil {
		return "", &CopyError{Op: "copying", RelPath: src.RelPath, Err: err}
	}
	archived, err := p.archiveIfSet(replaced)
	if err != nil {
		p.copier.Discard(staged)
		return "", err
	}
	if err := p.copier.Commit(staged, dstPath); err != nil {
		p.copier.Discard(staged)
		return p.rollback(archived, replaced, &CopyError{Op: "committing copy", RelPath: src.RelPath, Err: err})
	}
	return archived, nil
}

func (p *pass) archiveIfSet(e *Entry) (string, error) {
	if e == nil {
		return "", nil
	}
	return p.archive(*e)
}

func (p *pass) archive(e Entry) (string, error) {
	archived, err := p.archiver.Archive(p.session, e)
	if err != nil {
		return "", &ArchiveError{RelPath: e.RelPath, Err: err}
	}
	return archived, nil
}

// rollback puts an archived entry back after its replacement failed. The
// returned path is non-empty only if the entry had to stay in the archive.
func (p *pass) rollback(archived string, replaced *Entry, cause error) (string, error) {
	if archived == "" {
		return "", cause
	}
	if err := p.archiver.Restore(p.session, archived, *replaced); err != nil {
		p.logger.Error("restoring archived entry", "path", replaced.RelPath, "archive", archived, "error", err)
		return archived, cause
	}
	p.logger.Warn("restored archived entry after failed replacement", "path", replaced.RelPath)
	return "", cause
}

// count updates the summary exactly once for a processed entry.
func (p *pass) count(action Action, pair EntryPair, ev ActionEvent) {
	s := p.summary
	if ev.Err != nil {
		s.Errors = append(s.Errors, ev.Err)
		if ev.ArchivedTo != "" {
			s.Archived++
		}
		return
	}

	switch action {
	case Skip:
		if pair.Subject().Kind == KindFile {
			s.Skipped++
		}
	case Copy:
		p.countCreated(*pair.Source)
	case ArchiveAndReplace:
		s.Archived++
		p.countCreated(*pair.Source)
	case ArchiveAndRemove:
		s.Archived++
		s.Removed++
	case UpdateModTime:
		s.Touched++
	default:
		panic(fmt.Sprintf("unhandled action %d", action))
	}
}

func (p *pass) countCreated(e Entry) {
	if e.IsDir() {
		p.summary.DirsCreated++
	} else {
		p.summary.Copied++
	}
}

func (p *pass) sourcePath(rel string) string {
	return filepath.Join(p.src, filepath.FromSlash(rel))
}

func (p *pass) destPath(rel string) string {
	return filepath.Join(p.dst, filepath.FromSlash(rel))
}
