package backoff

import (
	"context"
	"time"
)

// Policy bounds a retry loop.
type Policy struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
	Strategy Strategy
}

// DefaultPolicy retries twice, starting at 200ms.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 2,
		Initial:  200 * time.Millisecond,
		Max:      2 * time.Second,
		Strategy: Exponential{Multiplier: 2, Jitter: 0.1},
	}
}

// Retry calls fn until it succeeds, retryable reports false, the attempts
// run out, or ctx is done. It returns the last error from fn.
func Retry(ctx context.Context, p Policy, retryable func(error) bool, fn func(context.Context) error) error {
	strategy := p.Strategy
	if strategy == nil {
		strategy = Exponential{}
	}

	err := fn(ctx)
	for attempt := 0; attempt < p.Attempts && err != nil && retryable(err); attempt++ {
		timer := time.NewTimer(strategy.Delay(attempt, p.Initial, p.Max))
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
		err = fn(ctx)
	}
	return err
}
