// Package mpart is a generics-first streaming decoder for multipart/form-data
// parts. Receiver types are the source of truth — each part of a multipart
// body is handed to a typed Receiver that turns the part's headers and byte
// stream into a Go value, without ever materializing a large body in memory.
//
// The core contract is a single method:
//
//	type Receiver[A any] interface {
//	    Receive(ctx context.Context, part *Part) (*Scoped[A], error)
//	}
//
// Everything else is composition. Package-level generic functions wrap a
// receiver the way HTTP middleware wraps a handler:
//
//	r := mpart.WithSizeLimit(mpart.BodyText(), 1<<20)
//	scope, err := r.Receive(ctx, part)
//	if err != nil {
//	    return err // infrastructure failure; nothing leaked
//	}
//	defer scope.Release()
//	text, fail := scope.Value(), scope.Err()
//
// Expected decode problems (size exceeded, malformed content, a delegate
// decoder refusing the part) are returned as *DecodeError values inside the
// scope, never as Receive errors, so a caller draining several parts can
// fail fast on one part without disturbing the cleanup of the others.
//
// Large bodies are handled by an adaptive buffer: ToMixedBuffer keeps small
// parts in memory and transparently spills bigger ones to a temp file owned
// by the scope, so releasing the scope always removes the file.
//
// ReadForm builds on these primitives to decode a whole multipart form:
//
//	form, err := mpart.ReadForm(ctx, req.MultipartReader(),
//	    mpart.WithMaxFileSize(32<<20),
//	)
//	defer form.Release()
package mpart
