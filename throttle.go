package mpart

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Throttle returns a transform that paces body reads with the given
// limiter, charging one token per byte. It composes under a receiver via
// Preprocess exactly like LimitBody:
//
//	r := mpart.Preprocess(mpart.ToTempFile(store),
//	    mpart.Throttle(rate.NewLimiter(rate.Limit(1<<20), 64<<10)))
//
// Waits honor the Receive context; cancellation surfaces as a read error.
func Throttle(limiter *rate.Limiter) BodyTransform {
	return func(ctx context.Context, body io.Reader) io.Reader {
		return &throttledReader{ctx: ctx, r: body, limiter: limiter}
	}
}

type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 && t.limiter.Limit() != rate.Inf {
		// A single read may exceed the burst; charge it in burst-sized
		// installments.
		for charged := 0; charged < n; {
			step := n - charged
			if b := t.limiter.Burst(); b > 0 && step > b {
				step = b
			}
			if werr := t.limiter.WaitN(t.ctx, step); werr != nil {
				return 0, werr
			}
			charged += step
		}
	}
	return n, err
}
