package mpart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/ianaindex"
)

// BodyText reads the whole body and decodes it as text. The charset comes
// from the part's Content-Type parameter, defaulting to UTF-8. An unknown
// charset is a malformed-content failure.
func BodyText() Receiver[string] {
	return ReceiverFunc[string](func(ctx context.Context, part *Part) (*Scoped[string], error) {
		body := io.Reader(&ctxReader{ctx: ctx, r: part.Body})

		if cs := part.Charset(); cs != "" && !isUTF8Compatible(cs) {
			enc, err := ianaindex.MIME.Encoding(cs)
			if err != nil || enc == nil {
				return Fail[string](Malformed(fmt.Sprintf("unsupported charset %q", cs), err)), nil
			}
			body = enc.NewDecoder().Reader(body)
		}

		b, err := io.ReadAll(body)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				return Fail[string](de), nil
			}
			return nil, fmt.Errorf("read part body: %w", err)
		}
		return Succeed(string(b)), nil
	})
}

func isUTF8Compatible(charset string) bool {
	switch strings.ToLower(charset) {
	case "utf-8", "utf8", "us-ascii", "ascii":
		return true
	default:
		return false
	}
}

// ToTempFile writes the entire body to a newly allocated temp file and
// succeeds with the file's path. Ownership of the file transfers to the
// caller: releasing the scope does NOT remove it, unlike the adaptive
// buffer's internally owned spill file.
func ToTempFile(store Storage) Receiver[string] {
	if store == nil {
		store = DirStorage{}
	}
	return ReceiverFunc[string](func(ctx context.Context, part *Part) (*Scoped[string], error) {
		path, _, err := store.Write(ctx, part.Body)
		if err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				// The storage removed its partial file already.
				return Fail[string](de), nil
			}
			return nil, err
		}
		return Succeed(path), nil
	})
}

// Ignore drains and discards the body, succeeding with unit. Content-level
// read failures are discarded along with the content; only cancellation
// aborts the receive.
func Ignore() Receiver[struct{}] {
	return ReceiverFunc[struct{}](func(ctx context.Context, part *Part) (*Scoped[struct{}], error) {
		_, _ = io.Copy(io.Discard, &ctxReader{ctx: ctx, r: part.Body})
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Succeed(struct{}{}), nil
	})
}

// Reject never reads the body and fails every part with err immediately.
func Reject[A any](err *DecodeError) Receiver[A] {
	return ReceiverFunc[A](func(context.Context, *Part) (*Scoped[A], error) {
		return Fail[A](err), nil
	})
}

// Decode delegates to the registry decoder matching the part's content
// type, falling back to JSON when the type is missing or unregistered.
// A nil registry means NewRegistry().
func Decode[A any](reg *Registry) Receiver[A] {
	return decodeWith[A](reg, false)
}

// DecodeStrict is Decode with strict content-type checking: a missing or
// unregistered content type fails with an unsupported-media error instead
// of falling back.
func DecodeStrict[A any](reg *Registry) Receiver[A] {
	return decodeWith[A](reg, true)
}

func decodeWith[A any](reg *Registry, strict bool) Receiver[A] {
	if reg == nil {
		reg = NewRegistry()
	}
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		dec, ok := reg.decoderFor(part.MediaType(), strict)
		if !ok {
			return Fail[A](unsupportedMedia(part.MediaType())), nil
		}

		var v A
		if err := dec.Decode(&ctxReader{ctx: ctx, r: part.Body}, &v); err != nil {
			var de *DecodeError
			if errors.As(err, &de) {
				return Fail[A](de), nil
			}
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			return Fail[A](DelegateFailure(err)), nil
		}
		return Succeed(v), nil
	})
}

// ToMixedBuffer runs the adaptive buffering algorithm: bodies up to
// maxMemory bytes stay in memory, larger ones spill to a temp file that the
// scope owns and removes on release.
//
// The receive itself always succeeds. If an upstream transform (a size
// limit, say) aborted the body mid-read, that failure is deferred: the
// returned Buffer replays what was read and reports the error when drained.
// Consumers must be prepared for a failure at drain time, not just at
// receive time.
func ToMixedBuffer(maxMemory, chunkSize int, store Storage) Receiver[Buffer] {
	return ReceiverFunc[Buffer](func(ctx context.Context, part *Part) (*Scoped[Buffer], error) {
		buf, err := BufferBody(ctx, part.Body, maxMemory, chunkSize, store)
		if err != nil {
			return nil, err
		}
		s := Succeed(buf)
		s.Defer(buf.Release)
		return s, nil
	})
}
