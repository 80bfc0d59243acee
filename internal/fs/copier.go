package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"kitchensync/internal/ks"
)

const copyChunkSize = 1 << 20

// Copier stages file copies next to their destination and commits them with
// a rename.
type Copier struct {
	fs           afero.Fs
	stallTimeout time.Duration
	logger       ks.Logger
}

// NewCopier creates a Copier. A copy that makes no progress for stallTimeout
// is aborted with ks.ErrStalled; zero disables the watchdog.
func NewCopier(fsys afero.Fs, stallTimeout time.Duration, logger ks.Logger) *Copier {
	return &Copier{fs: fsys, stallTimeout: stallTimeout, logger: logger}
}

// Stage implements ks.Copier.
func (c *Copier) Stage(ctx context.Context, srcPath, dstPath string, src ks.Entry) (string, error) {
	in, err := c.fs.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return "", fmt.Errorf("stat source: %w", err)
	}

	out, err := afero.TempFile(c.fs, filepath.Dir(dstPath), PartialPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("creating temporary file: %w", err)
	}
	staged := out.Name()

	n, err := c.transfer(ctx, out, in)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("closing temporary file: %w", closeErr)
	}
	if err != nil {
		c.Discard(staged)
		return "", err
	}
	if n != src.Size {
		c.Discard(staged)
		return "", fmt.Errorf("size mismatch: copied %d bytes, expected %d", n, src.Size)
	}

	if err := c.fs.Chmod(staged, info.Mode().Perm()); err != nil {
		c.Discard(staged)
		return "", fmt.Errorf("setting permissions: %w", err)
	}
	if err := c.fs.Chtimes(staged, src.ModTime, src.ModTime); err != nil {
		c.Discard(staged)
		return "", fmt.Errorf("setting modification time: %w", err)
	}
	return staged, nil
}

// Commit implements ks.Copier.
func (c *Copier) Commit(staged, dstPath string) error {
	if err := c.fs.Rename(staged, dstPath); err != nil {
		return fmt.Errorf("moving copy into place: %w", err)
	}
	return nil
}

// Discard implements ks.Copier.
func (c *Copier) Discard(staged string) {
	if err := c.fs.Remove(staged); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		c.logger.Warn("removing temporary file", "path", staged, "error", err)
	}
}

type copyResult struct {
	n   int64
	err error
}

// transfer copies in to out while watching for progress. On a stall or
// cancellation both files are closed so the copying goroutine fails out of
// its next read or write.
func (c *Copier) transfer(ctx context.Context, out io.WriteCloser, in io.ReadCloser) (int64, error) {
	progress := make(chan struct{}, 1)
	done := make(chan copyResult, 1)
	go func() {
		n, err := copyChunks(out, in, progress)
		done <- copyResult{n: n, err: err}
	}()

	var stalled <-chan time.Time
	if c.stallTimeout > 0 {
		timer := time.NewTimer(c.stallTimeout)
		defer timer.Stop()
		stalled = timer.C
		for {
			select {
			case r := <-done:
				return r.n, r.err
			case <-progress:
				timer.Reset(c.stallTimeout)
			case <-stalled:
				in.Close()
				out.Close()
				return 0, fmt.Errorf("no progress for %s: %w", c.stallTimeout, ks.ErrStalled)
			case <-ctx.Done():
				in.Close()
				out.Close()
				return 0, ctx.Err()
			}
		}
	}

	select {
	case r := <-done:
		return r.n, r.err
	case <-ctx.Done():
		in.Close()
		out.Close()
		return 0, ctx.Err()
	}
}

func copyChunks(out io.Writer, in io.Reader, progress chan<- struct{}) (int64, error) {
	buf := make([]byte, copyChunkSize)
	var total int64
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return total, fmt.Errorf("writing: %w", werr)
			}
			total += int64(n)
			select {
			case progress <- struct{}{}:
			default:
			}
		}
		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, fmt.Errorf("reading: %w", err)
		}
	}
}

// Compile-time check that Copier implements ks.Copier
var _ ks.Copier = (*Copier)(nil)
