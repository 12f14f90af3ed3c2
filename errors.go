package mpart

import (
	"fmt"
	"net/http"
)

// FailureKind classifies why decoding a part failed.
type FailureKind int

const (
	// KindMalformed means the part content could not be interpreted.
	KindMalformed FailureKind = iota
	// KindSizeExceeded means the body or a sub-stream crossed a configured
	// byte limit.
	KindSizeExceeded
	// KindDelegate wraps a failure reported by a delegate decoder.
	KindDelegate
	// KindRejected means a receiver unconditionally refused the part.
	KindRejected
	// KindUnsupportedMedia means strict content-type checking found no
	// decoder for the part's declared media type.
	KindUnsupportedMedia
)

// Sentinel failures for use with errors.Is. Two *DecodeError values match
// when their kinds match, so errors.Is(err, mpart.ErrSizeExceeded) reports
// whether err is any size-limit failure.
var (
	ErrMalformed        = &DecodeError{Kind: KindMalformed, Message: "malformed part content"}
	ErrSizeExceeded     = &DecodeError{Kind: KindSizeExceeded, Message: "size limit exceeded"}
	ErrDelegate         = &DecodeError{Kind: KindDelegate, Message: "delegate decoder failed"}
	ErrRejected         = &DecodeError{Kind: KindRejected, Message: "part rejected"}
	ErrUnsupportedMedia = &DecodeError{Kind: KindUnsupportedMedia, Message: "unsupported media type"}
)

// DecodeError describes why decoding a part failed. It is returned as a
// value inside a Scoped result for expected, content-related problems;
// infrastructure problems (temp storage I/O) surface as plain errors from
// Receive instead.
type DecodeError struct {
	Kind    FailureKind
	Message string
	cause   error
}

// Error returns the human-readable failure message.
func (e *DecodeError) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *DecodeError) Unwrap() error { return e.cause }

// Is matches any *DecodeError of the same kind.
func (e *DecodeError) Is(target error) bool {
	t, ok := target.(*DecodeError)
	return ok && t.Kind == e.Kind
}

// StatusCode returns the HTTP status code this failure maps to.
func (e *DecodeError) StatusCode() int {
	//exhaustive:ignore
	switch e.Kind {
	case KindSizeExceeded:
		return http.StatusRequestEntityTooLarge
	case KindUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	case KindDelegate:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

// SizeExceeded reports that a body crossed the given byte limit.
func SizeExceeded(limit int64) *DecodeError {
	return &DecodeError{
		Kind:    KindSizeExceeded,
		Message: fmt.Sprintf("body exceeds %d byte limit", limit),
	}
}

// DelegateFailure wraps an error reported by a delegate decoder.
func DelegateFailure(err error) *DecodeError {
	return &DecodeError{Kind: KindDelegate, Message: "delegate decoder failed", cause: err}
}

// Rejected builds the failure returned by a Reject receiver.
func Rejected(msg string) *DecodeError {
	return &DecodeError{Kind: KindRejected, Message: msg}
}

// Malformed reports content that could not be interpreted.
func Malformed(msg string, cause error) *DecodeError {
	return &DecodeError{Kind: KindMalformed, Message: msg, cause: cause}
}

func unsupportedMedia(mediaType string) *DecodeError {
	msg := "no decoder for content type"
	if mediaType != "" {
		msg = fmt.Sprintf("no decoder for content type %q", mediaType)
	}
	return &DecodeError{Kind: KindUnsupportedMedia, Message: msg}
}
