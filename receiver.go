package mpart

import (
	"context"
	"errors"
	"io"
	"net/textproto"
)

// Receiver turns one part into a typed, resource-scoped result. Receivers
// are pure capability values: they hold no per-invocation state, so a
// single receiver may serve many parts concurrently.
//
// Expected decode problems come back as a *DecodeError inside the scope via
// Scoped.Err. The second return value is reserved for infrastructure
// failures (temp storage I/O, cancellation); when it is non-nil, every
// resource the receiver had already acquired has been released.
type Receiver[A any] interface {
	Receive(ctx context.Context, part *Part) (*Scoped[A], error)
}

// ReceiverFunc adapts a function to the Receiver interface.
type ReceiverFunc[A any] func(ctx context.Context, part *Part) (*Scoped[A], error)

// Receive calls f.
func (f ReceiverFunc[A]) Receive(ctx context.Context, part *Part) (*Scoped[A], error) {
	return f(ctx, part)
}

// BodyTransform rewrites a part's body stream. Transforms compose under a
// receiver via Preprocess, the way middleware composes around a handler.
type BodyTransform func(ctx context.Context, body io.Reader) io.Reader

// Scoped is the resource scope produced by one Receive invocation: either a
// decoded value or a *DecodeError, plus any cleanup obligations (temp
// files, caller-registered hooks). Release must be called on every path —
// success, decode failure, or abandonment — and is safe to call more than
// once.
type Scoped[A any] struct {
	value    A
	fail     *DecodeError
	cleanups []func() error
	released bool
}

// Succeed builds a scope holding a decoded value.
func Succeed[A any](v A) *Scoped[A] {
	return &Scoped[A]{value: v}
}

// Fail builds a scope holding a decode failure.
func Fail[A any](err *DecodeError) *Scoped[A] {
	return &Scoped[A]{fail: err}
}

// Value returns the decoded value. Meaningless when Err is non-nil.
func (s *Scoped[A]) Value() A { return s.value }

// Err returns the decode failure, or nil on success.
func (s *Scoped[A]) Err() *DecodeError { return s.fail }

// Defer registers a cleanup to run when the scope is released. Cleanups run
// in reverse registration order.
func (s *Scoped[A]) Defer(fn func() error) {
	s.cleanups = append(s.cleanups, fn)
}

// Release runs all registered cleanups, joining their errors. Calling
// Release again is a no-op.
func (s *Scoped[A]) Release() error {
	if s.released {
		return nil
	}
	s.released = true

	var errs []error
	for i := len(s.cleanups) - 1; i >= 0; i-- {
		if err := s.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// adopt moves ownership of s into a fresh scope of another type, carrying
// the decode failure and cleanup obligations along.
func adopt[B, A any](s *Scoped[A]) *Scoped[B] {
	out := &Scoped[B]{fail: s.fail}
	out.Defer(s.Release)
	return out
}

// Map transforms the success value of a receiver. Failures pass through
// untouched and f is never invoked for them.
func Map[A, B any](r Receiver[A], f func(A) B) Receiver[B] {
	return ReceiverFunc[B](func(ctx context.Context, part *Part) (*Scoped[B], error) {
		s, err := r.Receive(ctx, part)
		if err != nil {
			return nil, err
		}
		out := adopt[B](s)
		if s.Err() == nil {
			out.value = f(s.Value())
		}
		return out, nil
	})
}

// MapWithHeaders is Map where f also sees the original part's headers,
// for content-type-sensitive post-processing.
func MapWithHeaders[A, B any](r Receiver[A], f func(textproto.MIMEHeader, A) B) Receiver[B] {
	return ReceiverFunc[B](func(ctx context.Context, part *Part) (*Scoped[B], error) {
		s, err := r.Receive(ctx, part)
		if err != nil {
			return nil, err
		}
		out := adopt[B](s)
		if s.Err() == nil {
			out.value = f(part.Header, s.Value())
		}
		return out, nil
	})
}

// TapStart runs fn immediately before every Receive. The result is
// unaffected.
func TapStart[A any](r Receiver[A], fn func(ctx context.Context, part *Part)) Receiver[A] {
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		fn(ctx, part)
		return r.Receive(ctx, part)
	})
}

// TapResult runs fn once the result — success or decode failure — is
// available, before the scope is handed to the caller. Infrastructure
// failures produce no result, so fn is not invoked for them. The result is
// unaffected.
func TapResult[A any](r Receiver[A], fn func(ctx context.Context, v A, err *DecodeError)) Receiver[A] {
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		s, err := r.Receive(ctx, part)
		if err != nil {
			return nil, err
		}
		fn(ctx, s.Value(), s.Err())
		return s, nil
	})
}

// TapRelease registers fn to run when the scope closes, whatever the
// outcome. If Receive itself fails, fn runs before the error is returned,
// since no scope will ever reach the caller.
func TapRelease[A any](r Receiver[A], fn func()) Receiver[A] {
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		s, err := r.Receive(ctx, part)
		if err != nil {
			fn()
			return nil, err
		}
		s.Defer(func() error {
			fn()
			return nil
		})
		return s, nil
	})
}

// Preprocess rewrites the part by substituting its body with
// transform(body) before delegating to r. Headers are unchanged.
func Preprocess[A any](r Receiver[A], transform BodyTransform) Receiver[A] {
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		return r.Receive(ctx, part.WithBody(transform(ctx, part.Body)))
	})
}

// WithSizeLimit caps the number of body bytes r may consume. Sugar for
// Preprocess(r, LimitBody(maxBytes)).
func WithSizeLimit[A any](r Receiver[A], maxBytes int64) Receiver[A] {
	return Preprocess(r, LimitBody(maxBytes))
}
