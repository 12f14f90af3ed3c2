package mpart_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/mpart"
	"github.com/bjaus/mpart/mparttest"
)

func TestBodyText(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		contentType string
		body        []byte
		want        string
	}{
		"no content type defaults to utf-8": {
			contentType: "",
			body:        []byte("plain text"),
			want:        "plain text",
		},
		"explicit utf-8": {
			contentType: "text/plain; charset=utf-8",
			body:        []byte("héllo"),
			want:        "héllo",
		},
		"iso-8859-1 is transcoded": {
			contentType: "text/plain; charset=ISO-8859-1",
			body:        []byte{'c', 'a', 'f', 0xE9},
			want:        "café",
		},
	}

	for name, tc := range tests {
		name, tc := name, tc
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			part := mparttest.BodyPart(t, tc.contentType, mparttest.ChunkReader(tc.body))
			scope, err := mpart.BodyText().Receive(context.Background(), part)
			require.NoError(t, err)
			defer func() { require.NoError(t, scope.Release()) }()

			require.Nil(t, scope.Err())
			assert.Equal(t, tc.want, scope.Value())
		})
	}
}

func TestBodyText_unknown_charset_fails(t *testing.T) {
	t.Parallel()

	part := mparttest.BodyPart(t, "text/plain; charset=klingon-1", strings.NewReader("nuqneH"))
	scope, err := mpart.BodyText().Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, scope.Err())
	assert.ErrorIs(t, scope.Err(), mpart.ErrMalformed)
}

func TestBodyText_size_limited(t *testing.T) {
	t.Parallel()

	r := mpart.WithSizeLimit(mpart.BodyText(), 5)
	part := mparttest.FieldPart(t, "comment", "way too much text")

	scope, err := r.Receive(context.Background(), part)
	require.NoError(t, err, "a size overflow is a decode failure, not a receive error")
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, scope.Err())
	assert.ErrorIs(t, scope.Err(), mpart.ErrSizeExceeded)
}

func TestToTempFile_transfers_ownership(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := mpart.DirStorage{Dir: dir}

	part := mparttest.FilePart(t, "doc", "notes.txt", "text/plain", strings.NewReader("file content"))
	scope, err := mpart.ToTempFile(store).Receive(context.Background(), part)
	require.NoError(t, err)
	require.Nil(t, scope.Err())

	path := scope.Value()
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file content", string(got))

	// Ownership transferred: the file survives scope release.
	require.NoError(t, scope.Release())
	_, err = os.Stat(path)
	require.NoError(t, err, "ToTempFile must not delete the file on release")

	require.NoError(t, store.Remove(path))
}

func TestToTempFile_limit_failure_leaves_no_file(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := mpart.DirStorage{Dir: dir}

	r := mpart.WithSizeLimit(mpart.ToTempFile(store), 3)
	part := mparttest.FilePart(t, "doc", "big.bin", "", strings.NewReader("abcdef"))

	scope, err := r.Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, scope.Err())
	assert.ErrorIs(t, scope.Err(), mpart.ErrSizeExceeded)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "the partial write must be cleaned up")
}

func TestIgnore_drains_and_succeeds(t *testing.T) {
	t.Parallel()

	src := strings.NewReader("content that goes nowhere")
	part := mparttest.FilePart(t, "skip", "noise.bin", "", src)

	scope, err := mpart.Ignore().Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.Nil(t, scope.Err())
	assert.Zero(t, src.Len(), "body must be drained")
}

func TestIgnore_cancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	part := mparttest.FieldPart(t, "f", "data")
	_, err := mpart.Ignore().Receive(ctx, part)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestToMixedBuffer_small_body_stays_in_memory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store := mpart.DirStorage{Dir: dir}

	part := mparttest.FilePart(t, "f", "tiny.txt", "", strings.NewReader("tiny"))
	scope, err := mpart.ToMixedBuffer(100, 32, store).Receive(context.Background(), part)
	require.NoError(t, err)
	require.Nil(t, scope.Err())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a 4-byte body must never touch disk")

	assert.Equal(t, "tiny", string(drain(t, scope.Value())))
	require.NoError(t, scope.Release())
}
