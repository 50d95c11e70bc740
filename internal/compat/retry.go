package compat

import (
	"context"
	"errors"
	"time"

	"restocrm/internal/docstore"
	"restocrm/internal/legacy"
)

const (
	defaultRetryDelay  = 100 * time.Millisecond
	defaultRetryFactor = 2
)

// RetryPolicy bounds the retries of a legacy-path write. The wait before
// retry n is InitialDelay * BackoffFactor^(n-1), capped at MaxDelay.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Backoff returns the wait before retry n (1-based).
func (r RetryPolicy) Backoff(n int) time.Duration {
	wait := r.InitialDelay
	if wait <= 0 {
		wait = defaultRetryDelay
	}
	factor := r.BackoffFactor
	if factor <= 1 {
		factor = defaultRetryFactor
	}
	for i := 1; i < n; i++ {
		wait = time.Duration(float64(wait) * factor)
		if r.MaxDelay > 0 && wait >= r.MaxDelay {
			return r.MaxDelay
		}
	}
	if r.MaxDelay > 0 && wait > r.MaxDelay {
		return r.MaxDelay
	}
	return wait
}

// Do calls write until it succeeds, fails with a permanent error, or the
// retries run out. The last error is returned.
func (r RetryPolicy) Do(ctx context.Context, write func() error) error {
	err := write()
	for n := 1; err != nil && n <= r.MaxRetries && !permanent(err); n++ {
		select {
		case <-ctx.Done():
			return err
		case <-time.After(r.Backoff(n)):
		}
		err = write()
	}
	return err
}

// permanent errors come from bad input or a cancelled caller; repeating the
// write cannot fix them.
func permanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, legacy.ErrInvalidPart) ||
		errors.Is(err, docstore.ErrInvalidPath) ||
		errors.Is(err, docstore.ErrInvalidField)
}
