package body

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// ThrottledReader wraps a reader so that callers reading through it are
// blocked until the configured throughput has been earned.
type ThrottledReader struct {
	r       io.Reader
	limiter *rate.Limiter
	burst   int
	ctx     context.Context
}

// NewThrottledReader wraps r so reads through it are limited to
// bytesPerSecond. A bytesPerSecond <= 0 is clamped to 1.
func NewThrottledReader(ctx context.Context, r io.Reader, bytesPerSecond int) *ThrottledReader {
	if bytesPerSecond <= 0 {
		bytesPerSecond = 1
	}
	return &ThrottledReader{
		r:       r,
		limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond),
		burst:   bytesPerSecond,
		ctx:     ctx,
	}
}

// Read never asks the underlying reader for more than the limiter's
// burst size in one call: WaitN rejects any n larger than the burst
// outright rather than waiting for it, so a single oversized Read
// would surface as a spurious error instead of being paced.
func (t *ThrottledReader) Read(p []byte) (int, error) {
	if len(p) > t.burst {
		p = p[:t.burst]
	}
	n, err := t.r.Read(p)
	if n <= 0 {
		return n, err
	}
	if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
		return n, werr
	}
	return n, err
}
