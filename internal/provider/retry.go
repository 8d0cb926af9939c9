package provider

import (
	"context"
	"errors"
	"time"
)

// errPermanent marks failures that a retry cannot fix, such as a revert or a
// malformed return value.
var errPermanent = errors.New("permanent")

// revertErrorCode is the JSON-RPC code geth uses for a revert carrying data.
const revertErrorCode = 3

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	// onRetry is called before each sleep with the attempt that failed.
	onRetry func(attempt int, delay time.Duration, err error)
}

// do runs fn until it succeeds, fails permanently, the retries are spent or
// ctx is done. The delay doubles after every attempt.
func (r retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	maxRetries := r.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := r.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries || errors.Is(err, errPermanent) {
			return err
		}
		if r.onRetry != nil {
			r.onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
