package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// requestLimiter paces Complete calls. A nil limiter never blocks.
type requestLimiter struct {
	lim *rate.Limiter
}

// newRequestLimiter returns nil when rps <= 0.
func newRequestLimiter(rps float64, burst int) *requestLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &requestLimiter{lim: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until one request may go out. A wait that cannot finish before
// the context deadline fails at once with context.DeadlineExceeded.
func (l *requestLimiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if err := l.lim.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", context.DeadlineExceeded, err)
	}
	return nil
}
