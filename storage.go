package mpart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Storage is the temp-file facility the buffering receivers allocate
// through. Implementations must hand out unique paths. The contract is
// three operations: allocate-and-bulk-write, read back, delete.
//
// Write must not leave a file behind when it returns an error, so a
// canceled or failed write can never leak storage.
type Storage interface {
	// Write allocates a new file, copies r into it in full, and returns
	// the file's path and size.
	Write(ctx context.Context, r io.Reader) (path string, n int64, err error)

	// Open returns a reader over a previously written file.
	Open(path string) (io.ReadCloser, error)

	// Remove deletes a previously written file. Removing a path that is
	// already gone is not an error.
	Remove(path string) error
}

// DirStorage is the default Storage: unique files in a directory via
// os.CreateTemp.
type DirStorage struct {
	// Dir is the target directory. Empty means the OS temp directory.
	Dir string

	// Pattern is the os.CreateTemp name pattern. Empty means "mpart-*".
	Pattern string
}

// Write copies r into a newly created file. On any error — including
// context cancellation mid-copy — the file is removed before returning.
func (s DirStorage) Write(ctx context.Context, r io.Reader) (string, int64, error) {
	pattern := s.Pattern
	if pattern == "" {
		pattern = "mpart-*"
	}

	f, err := os.CreateTemp(s.Dir, pattern)
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return "", 0, fmt.Errorf("write temp file: %w", err)
	}
	return f.Name(), n, nil
}

// Open opens a previously written file for read-back.
func (s DirStorage) Open(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

// Remove deletes the file. A missing file is treated as already removed.
func (s DirStorage) Remove(path string) error {
	err := os.Remove(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ctxReader aborts a copy as soon as its context is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
