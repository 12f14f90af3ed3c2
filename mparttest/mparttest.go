// Package mparttest provides typed test helpers for the mpart library.
package mparttest

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"strings"
	"testing"

	"github.com/bjaus/mpart"
)

// FieldPart builds a form-data text part with the given field name and
// value.
func FieldPart(t testing.TB, field, value string) *mpart.Part {
	t.Helper()
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, field))
	return mpart.NewPart(header, strings.NewReader(value))
}

// FilePart builds a form-data file part with the given field name,
// filename, content type, and body.
func FilePart(t testing.TB, field, filename, contentType string, body io.Reader) *mpart.Part {
	t.Helper()
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return mpart.NewPart(header, body)
}

// BodyPart builds a bare part with just a content type and body — no
// form-data disposition.
func BodyPart(t testing.TB, contentType string, body io.Reader) *mpart.Part {
	t.Helper()
	header := textproto.MIMEHeader{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return mpart.NewPart(header, body)
}

// Multipart encodes a multipart body via the build callback and returns a
// reader positioned at the first part.
func Multipart(t testing.TB, build func(w *multipart.Writer)) *multipart.Reader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	build(w)
	if err := w.Close(); err != nil {
		t.Fatalf("mparttest: close multipart writer: %v", err)
	}
	return multipart.NewReader(&buf, w.Boundary())
}

// ChunkReader delivers its chunks one per Read call, preserving the chunk
// boundaries exactly as long as each destination slice is large enough.
// After the last chunk it returns io.EOF.
func ChunkReader(chunks ...[]byte) io.Reader {
	return &chunkReader{chunks: chunks}
}

type chunkReader struct {
	chunks [][]byte
	offset int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.chunks) > 0 && len(c.chunks[0]) == c.offset {
		c.chunks = c.chunks[1:]
		c.offset = 0
	}
	if len(c.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.chunks[0][c.offset:])
	c.offset += n
	return n, nil
}

// NoReadReader fails the test if anything reads from it. Use it to prove a
// receiver never touches the part body.
func NoReadReader(t testing.TB) io.Reader {
	return &noReadReader{t: t}
}

type noReadReader struct {
	t testing.TB
}

func (r *noReadReader) Read([]byte) (int, error) {
	r.t.Helper()
	r.t.Fatal("mparttest: part body was read")
	return 0, io.EOF
}

// ErrReader yields the given prefix, then the given error in place of EOF.
func ErrReader(prefix []byte, err error) io.Reader {
	return &errReader{r: bytes.NewReader(prefix), err: err}
}

type errReader struct {
	r   io.Reader
	err error
}

func (e *errReader) Read(p []byte) (int, error) {
	n, err := e.r.Read(p)
	if err == io.EOF {
		err = e.err
	}
	return n, err
}
