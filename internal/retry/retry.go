package retry

import (
	"context"
	"time"
)

// Do executes fn up to attempts times with exponential backoff, stopping as
// soon as fn succeeds, retryable(err) is false, or ctx is canceled.
// A nil retryable retries every error.
func Do(ctx context.Context, attempts int, baseDelay time.Duration, retryable func(error) bool, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := baseDelay

	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err = fn(); err == nil {
			return nil
		}

		if i == attempts-1 || (retryable != nil && !retryable(err)) {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
