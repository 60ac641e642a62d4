package remote

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// DefaultConcurrency is the default number of simultaneous remote calls.
const DefaultConcurrency = 5

// Limiter bounds remote calls across every source sharing it. The
// concurrency ceiling always applies; the request rate only when configured.
type Limiter struct {
	sem   *semaphore.Weighted
	rate  *rate.Limiter
	limit int
}

// NewLimiter creates a limiter allowing concurrency simultaneous calls.
// A positive requestsPerSecond also caps the request rate.
func NewLimiter(concurrency int, requestsPerSecond float64) *Limiter {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	l := &Limiter{
		sem:   semaphore.NewWeighted(int64(concurrency)),
		limit: concurrency,
	}
	if requestsPerSecond > 0 {
		l.rate = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return l
}

// Limit returns the concurrency ceiling.
func (l *Limiter) Limit() int {
	return l.limit
}

// Acquire blocks until a call may start. The returned release must be
// called exactly once when the call finishes.
func (l *Limiter) Acquire(ctx context.Context) (func(), error) {
	if l.rate != nil {
		if err := l.rate.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("concurrency limiter: %w", err)
	}
	return func() { l.sem.Release(1) }, nil
}
