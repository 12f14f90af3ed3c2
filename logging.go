package mpart

import (
	"context"
	"log/slog"
	"time"
)

// LogReceives wraps a receiver so every invocation emits one structured log
// record with the part's field name, filename, outcome, and duration.
// Decode failures log at warn level, infrastructure failures at error.
func LogReceives[A any](r Receiver[A], logger *slog.Logger) Receiver[A] {
	return ReceiverFunc[A](func(ctx context.Context, part *Part) (*Scoped[A], error) {
		start := time.Now()

		attrs := []slog.Attr{
			slog.String("field", part.FormName()),
		}
		if fn := part.FileName(); fn != "" {
			attrs = append(attrs, slog.String("filename", fn))
		}
		if mt := part.MediaType(); mt != "" {
			attrs = append(attrs, slog.String("content_type", mt))
		}

		s, err := r.Receive(ctx, part)

		attrs = append(attrs, slog.Duration("latency", time.Since(start)))

		switch {
		case err != nil:
			attrs = append(attrs, slog.String("error", err.Error()))
			logger.LogAttrs(ctx, slog.LevelError, "part receive failed", attrs...)
		case s.Err() != nil:
			attrs = append(attrs, slog.String("failure", s.Err().Error()))
			logger.LogAttrs(ctx, slog.LevelWarn, "part decode failed", attrs...)
		default:
			logger.LogAttrs(ctx, slog.LevelInfo, "part received", attrs...)
		}

		return s, err
	})
}
