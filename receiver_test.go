package mpart_test

import (
	"context"
	"errors"
	"io"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/mpart"
	"github.com/bjaus/mpart/mparttest"
)

func TestMap_composes(t *testing.T) {
	t.Parallel()

	double := func(s string) string { return s + s }
	upper := strings.ToUpper

	part1 := mparttest.FieldPart(t, "greeting", "hello")
	part2 := mparttest.FieldPart(t, "greeting", "hello")

	// r.map(f).map(g) must equal r.map(g∘f).
	chained := mpart.Map(mpart.Map(mpart.BodyText(), double), upper)
	fused := mpart.Map(mpart.BodyText(), func(s string) string { return upper(double(s)) })

	s1, err := chained.Receive(context.Background(), part1)
	require.NoError(t, err)
	defer func() { require.NoError(t, s1.Release()) }()

	s2, err := fused.Receive(context.Background(), part2)
	require.NoError(t, err)
	defer func() { require.NoError(t, s2.Release()) }()

	require.Nil(t, s1.Err())
	require.Nil(t, s2.Err())
	assert.Equal(t, "HELLOHELLO", s1.Value())
	assert.Equal(t, s2.Value(), s1.Value())
}

func TestMap_skips_failures(t *testing.T) {
	t.Parallel()

	fail := mpart.Rejected("no thanks")
	r := mpart.Map(mpart.Reject[string](fail), func(string) string {
		t.Fatal("map must never run on a failure")
		return ""
	})

	part := mpart.NewPart(textproto.MIMEHeader{}, mparttest.NoReadReader(t))
	scope, err := r.Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, scope.Err())
	assert.ErrorIs(t, scope.Err(), mpart.ErrRejected)
	assert.ErrorIs(t, scope.Err(), fail)
}

func TestMapWithHeaders_sees_original_headers(t *testing.T) {
	t.Parallel()

	part := mparttest.BodyPart(t, "text/plain; charset=utf-8", strings.NewReader("body"))

	r := mpart.MapWithHeaders(mpart.BodyText(), func(h textproto.MIMEHeader, s string) string {
		return h.Get("Content-Type") + "|" + s
	})

	scope, err := r.Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.Nil(t, scope.Err())
	assert.Equal(t, "text/plain; charset=utf-8|body", scope.Value())
}

func TestPreprocess_identity_is_noop(t *testing.T) {
	t.Parallel()

	identity := func(_ context.Context, body io.Reader) io.Reader { return body }

	direct, err := mpart.BodyText().Receive(context.Background(), mparttest.FieldPart(t, "f", "same content"))
	require.NoError(t, err)
	defer func() { require.NoError(t, direct.Release()) }()

	wrapped, err := mpart.Preprocess(mpart.BodyText(), identity).
		Receive(context.Background(), mparttest.FieldPart(t, "f", "same content"))
	require.NoError(t, err)
	defer func() { require.NoError(t, wrapped.Release()) }()

	require.Nil(t, direct.Err())
	require.Nil(t, wrapped.Err())
	assert.Equal(t, direct.Value(), wrapped.Value())
}

func TestTaps_ordering(t *testing.T) {
	t.Parallel()

	var events []string

	r := mpart.TapStart(
		mpart.TapResult(
			mpart.TapRelease(
				mpart.BodyText(),
				func() { events = append(events, "release") },
			),
			func(_ context.Context, v string, err *mpart.DecodeError) {
				require.Nil(t, err)
				events = append(events, "result:"+v)
			},
		),
		func(_ context.Context, part *mpart.Part) {
			events = append(events, "start:"+part.FormName())
		},
	)

	scope, err := r.Receive(context.Background(), mparttest.FieldPart(t, "name", "v"))
	require.NoError(t, err)

	assert.Equal(t, []string{"start:name", "result:v"}, events)

	require.NoError(t, scope.Release())
	assert.Equal(t, []string{"start:name", "result:v", "release"}, events)
}

func TestTapResult_sees_failures(t *testing.T) {
	t.Parallel()

	var seen *mpart.DecodeError
	r := mpart.TapResult(mpart.Reject[string](mpart.Rejected("nope")),
		func(_ context.Context, _ string, err *mpart.DecodeError) { seen = err })

	scope, err := r.Receive(context.Background(), mparttest.FieldPart(t, "f", ""))
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, seen)
	assert.ErrorIs(t, seen, mpart.ErrRejected)
}

func TestTapRelease_runs_on_receive_error(t *testing.T) {
	t.Parallel()

	boom := errors.New("storage offline")
	failing := mpart.ReceiverFunc[string](func(context.Context, *mpart.Part) (*mpart.Scoped[string], error) {
		return nil, boom
	})

	released := false
	r := mpart.TapRelease(failing, func() { released = true })

	_, err := r.Receive(context.Background(), mparttest.FieldPart(t, "f", ""))
	assert.ErrorIs(t, err, boom)
	assert.True(t, released, "release hook must run even when acquisition fails")
}

func TestTapRelease_runs_on_failure_scopes(t *testing.T) {
	t.Parallel()

	released := false
	r := mpart.TapRelease(mpart.Reject[string](mpart.Rejected("nope")), func() { released = true })

	scope, err := r.Receive(context.Background(), mparttest.FieldPart(t, "f", ""))
	require.NoError(t, err)
	require.NotNil(t, scope.Err())

	require.NoError(t, scope.Release())
	assert.True(t, released)
}

func TestScoped_release_idempotent_through_combinators(t *testing.T) {
	t.Parallel()

	count := 0
	r := mpart.Map(
		mpart.TapRelease(mpart.BodyText(), func() { count++ }),
		strings.ToUpper,
	)

	scope, err := r.Receive(context.Background(), mparttest.FieldPart(t, "f", "x"))
	require.NoError(t, err)
	require.Nil(t, scope.Err())
	assert.Equal(t, "X", scope.Value())

	require.NoError(t, scope.Release())
	require.NoError(t, scope.Release())
	assert.Equal(t, 1, count, "cleanups run exactly once no matter how often Release is called")
}

func TestReject_never_reads_body(t *testing.T) {
	t.Parallel()

	// NoReadReader fails the test on any Read.
	part := mpart.NewPart(textproto.MIMEHeader{}, mparttest.NoReadReader(t))

	scope, err := mpart.Reject[int](mpart.SizeExceeded(0)).Receive(context.Background(), part)
	require.NoError(t, err)
	defer func() { require.NoError(t, scope.Release()) }()

	require.NotNil(t, scope.Err())
	assert.ErrorIs(t, scope.Err(), mpart.ErrSizeExceeded)
}

func TestReceivers_are_reusable_across_parts(t *testing.T) {
	t.Parallel()

	r := mpart.WithSizeLimit(mpart.BodyText(), 100)

	for _, content := range []string{"one", "two", "three"} {
		scope, err := r.Receive(context.Background(), mparttest.FieldPart(t, "f", content))
		require.NoError(t, err)
		require.Nil(t, scope.Err())
		assert.Equal(t, content, scope.Value())
		require.NoError(t, scope.Release())
	}
}
