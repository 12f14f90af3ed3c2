package mpart

import (
	"context"
	"io"
)

// LimitBody returns a transform that enforces a byte ceiling on a body
// stream. Accounting is per chunk: a chunk that fits under the running
// limit passes through unchanged; the first chunk that would push the total
// past maxBytes is dropped in full and every read from then on fails with a
// size-exceeded *DecodeError. The bytes emitted before the failing chunk
// are a valid prefix of the body.
//
// The transform is single-pass and never buffers more than one chunk.
func LimitBody(maxBytes int64) BodyTransform {
	return func(_ context.Context, body io.Reader) io.Reader {
		return &limitedReader{r: body, limit: maxBytes}
	}
}

// limitedReader fails as soon as the cumulative read total would cross the
// limit, rather than at end-of-stream.
type limitedReader struct {
	r      io.Reader
	limit  int64
	total  int64
	failed bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.failed {
		return 0, SizeExceeded(l.limit)
	}

	n, err := l.r.Read(p)
	if n > 0 {
		if l.total+int64(n) > l.limit {
			l.failed = true
			return 0, SizeExceeded(l.limit)
		}
		l.total += int64(n)
	}
	return n, err
}
