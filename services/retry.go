package services

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// withRetry runs op with exponential backoff for up to maxRetries extra attempts.
// Errors wrapped with backoff.Permanent, and the sentinel errors below, stop immediately.
func withRetry(ctx context.Context, maxRetries int, op func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 2 * time.Second
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries)), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrInvalidAddress) || errors.Is(err, ErrSocialAuthExpired) ||
			errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
