package mpart

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// Default adaptive-buffer parameters, matching the common form-field case:
// small values stay in memory, anything bigger streams through a temp file.
const (
	DefaultMaxMemory = 1 << 20  // spill threshold
	DefaultChunkSize = 32 << 10 // read granularity, both scan and read-back
)

// Buffer is a replayable byte sequence produced by the adaptive buffering
// algorithm. Content is identical to the source body whether it stayed in
// memory or spilled to a file; the path taken is not observable through
// reads.
//
// The creator owns the buffer and must call Release when done; releasing
// removes any backing file, even if the content was never fully drained.
// Readers obtained from Open before Release keep working on their own file
// handle; Release is idempotent.
type Buffer interface {
	// Open returns a fresh reader over the buffered content.
	Open() (io.ReadCloser, error)

	// Size returns the buffered content length in bytes.
	Size() int64

	// Release frees the backing storage, if any.
	Release() error
}

// BufferBody accumulates body in memory until the next chunk would push the
// total past maxMemory, then writes everything — the accumulated bytes, the
// overflowing chunk, and the rest of the unread body — to a single temp
// file in one bulk write, and serves reads back from that file in chunkSize
// blocks. A body that ends under the threshold never touches disk.
//
// The spill decision lands on the first chunk that would overflow, so the
// file write is one contiguous operation with a single failure point, and
// the outcome is deterministic for a given chunk sequence.
//
// If the body reader fails mid-scan with a content-level *DecodeError (an
// upstream size limit, for instance), BufferBody still succeeds: the
// returned buffer replays the prefix read so far and surfaces that error
// when drained. Infrastructure errors — storage I/O, cancellation — are
// returned directly, with no file left behind.
func BufferBody(ctx context.Context, body io.Reader, maxMemory, chunkSize int, store Storage) (Buffer, error) {
	if maxMemory <= 0 {
		maxMemory = DefaultMaxMemory
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if store == nil {
		store = DirStorage{}
	}

	var acc []byte
	chunk := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := body.Read(chunk)
		if n > 0 {
			if len(acc)+n > maxMemory {
				// Threshold crossed: commit accumulator + this chunk +
				// everything unread to a temp file in one write.
				combined := io.MultiReader(
					bytes.NewReader(acc),
					bytes.NewReader(chunk[:n]),
					body,
				)
				path, size, werr := store.Write(ctx, combined)
				if werr != nil {
					var de *DecodeError
					if errors.As(werr, &de) {
						return &failTailBuffer{inner: memoryBuffer{}, err: de}, nil
					}
					return nil, werr
				}
				return &fileBuffer{store: store, path: path, size: size, chunkSize: chunkSize}, nil
			}
			acc = append(acc, chunk[:n]...)
		}

		if err != nil {
			if err == io.EOF {
				return memoryBuffer{data: acc}, nil
			}
			var de *DecodeError
			if errors.As(err, &de) {
				return &failTailBuffer{inner: memoryBuffer{data: acc}, err: de}, nil
			}
			return nil, err
		}
	}
}

// memoryBuffer holds the whole body; no file was ever created.
type memoryBuffer struct {
	data []byte
}

func (b memoryBuffer) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (b memoryBuffer) Size() int64 { return int64(len(b.data)) }

func (b memoryBuffer) Release() error { return nil }

// fileBuffer replays a spilled body from its temp file in chunkSize blocks.
type fileBuffer struct {
	store     Storage
	path      string
	size      int64
	chunkSize int
	released  bool
}

func (b *fileBuffer) Open() (io.ReadCloser, error) {
	rc, err := b.store.Open(b.path)
	if err != nil {
		return nil, err
	}
	return &chunkedReadCloser{rc: rc, chunkSize: b.chunkSize}, nil
}

func (b *fileBuffer) Size() int64 { return b.size }

func (b *fileBuffer) Release() error {
	if b.released {
		return nil
	}
	b.released = true
	return b.store.Remove(b.path)
}

// chunkedReadCloser caps each read at the configured block size.
type chunkedReadCloser struct {
	rc        io.ReadCloser
	chunkSize int
}

func (c *chunkedReadCloser) Read(p []byte) (int, error) {
	if len(p) > c.chunkSize {
		p = p[:c.chunkSize]
	}
	return c.rc.Read(p)
}

func (c *chunkedReadCloser) Close() error { return c.rc.Close() }

// failTailBuffer replays what was read before the source failed, then
// surfaces the source's decode failure in place of EOF. This preserves the
// two-phase failure surface: the receive succeeds, the drain fails.
type failTailBuffer struct {
	inner Buffer
	err   *DecodeError
}

func (b *failTailBuffer) Open() (io.ReadCloser, error) {
	rc, err := b.inner.Open()
	if err != nil {
		return nil, err
	}
	return &failTailReader{rc: rc, err: b.err}, nil
}

func (b *failTailBuffer) Size() int64 { return b.inner.Size() }

func (b *failTailBuffer) Release() error { return b.inner.Release() }

// deferredErr exposes the pending drain failure to callers that have to
// fail fast without draining, such as ReadForm.
func (b *failTailBuffer) deferredErr() *DecodeError { return b.err }

type deferredFailure interface {
	deferredErr() *DecodeError
}

type failTailReader struct {
	rc  io.ReadCloser
	err *DecodeError
}

func (r *failTailReader) Read(p []byte) (int, error) {
	n, err := r.rc.Read(p)
	if err == io.EOF {
		err = r.err
	}
	return n, err
}

func (r *failTailReader) Close() error { return r.rc.Close() }
