package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rohmanhakim/curlgrab/pkg/failure"
	"github.com/rohmanhakim/curlgrab/pkg/timeutil"
)

// Retry executes the provided function with retry logic.
// It will retry the function up to MaxAttempts times, applying exponential backoff
// with jitter between attempts. Only retryable errors will trigger a retry, and
// the wait between attempts ends early when ctx is done.
//
// Type parameter T represents the return type of the function being retried.
func Retry[T any](ctx context.Context, retryParam RetryParam, fn func() (T, failure.ClassifiedError)) Result[T] {
	var lastErr failure.ClassifiedError

	if retryParam.MaxAttempts < 1 {
		return Result[T]{
			err: &RetryError{
				Message:   "max attempt cannot be 0",
				Cause:     ErrZeroAttempt,
				Retryable: false,
			},
		}
	}

	rng := rand.New(rand.NewSource(retryParam.RandomSeed))

	for attempt := 1; attempt <= retryParam.MaxAttempts; attempt++ {
		value, err := fn()
		if err == nil {
			return Result[T]{value: value, attempts: attempt}
		}

		lastErr = err

		// A non-retryable error, or a single configured attempt, surfaces the task's own error.
		if !isErrorRetryable(err) || retryParam.MaxAttempts == 1 {
			return Result[T]{err: err, attempts: attempt}
		}

		if attempt == retryParam.MaxAttempts {
			break
		}

		backoffDelay := timeutil.ExponentialBackoffDelay(
			attempt,
			retryParam.Jitter,
			rng,
			retryParam.BackoffParam,
		)
		backoffDelay = timeutil.MaxDuration([]time.Duration{
			backoffDelay,
			serverDelay(err, retryParam.BackoffParam.MaxDuration()),
		})

		if sleepErr := timeutil.SleepContext(ctx, backoffDelay); sleepErr != nil {
			return Result[T]{
				err: &RetryError{
					Message:   fmt.Sprintf("stopped after %d attempts: %v", attempt, sleepErr),
					Cause:     ErrInterrupted,
					Retryable: false,
					Last:      lastErr,
				},
				attempts: attempt,
			}
		}
	}

	return Result[T]{
		err: &RetryError{
			Message:   fmt.Sprintf("exhausted %d attempts. Last error: %v", retryParam.MaxAttempts, lastErr),
			Cause:     ErrExhaustedAttempts,
			Retryable: false,
			Last:      lastErr,
		},
		attempts: retryParam.MaxAttempts,
	}
}

// isErrorRetryable checks if an error should be retried.
// Errors without an IsRetryable method fall back to their severity.
func isErrorRetryable(err failure.ClassifiedError) bool {
	type hasRetryable interface {
		IsRetryable() bool
	}

	if r, ok := err.(hasRetryable); ok {
		return r.IsRetryable()
	}

	return err.Severity() == failure.SeverityRecoverable
}

// serverDelay returns the wait an error asks for, capped at limit when limit is positive.
func serverDelay(err failure.ClassifiedError, limit time.Duration) time.Duration {
	type hasRetryAfter interface {
		RetryAfter() time.Duration
	}
	r, ok := err.(hasRetryAfter)
	if !ok {
		return 0
	}
	delay := r.RetryAfter()
	if limit > 0 && delay > limit {
		return limit
	}
	return delay
}
