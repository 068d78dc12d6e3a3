package resilience

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy retries transient failures with a linearly growing pause.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries <= 0 {
		maxRetries = 2
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff}
}

// Do calls fn until it succeeds, retries run out or ctx ends. Rate limit
// errors are not retried.
func (r RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		err = fn()
		if err == nil || IsRateLimit(err) {
			return err
		}
		if i == r.MaxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(r.Backoff * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("after %d attempts: %w", r.MaxRetries+1, err)
}
