package httputil

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// maxRetryAfter caps how long a server-provided Retry-After may stall a
// download.
const maxRetryAfter = time.Minute

// RetryableError marks a failure as transient. After, when positive, is the
// wait the server asked for (GitHub sends Retry-After with 429 and 503).
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable wraps err in a [RetryableError]. A nil err stays nil.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// IsRetryable reports whether err wraps a [RetryableError].
func IsRetryable(err error) bool {
	return errors.As(err, new(*RetryableError))
}

// Retry runs fn up to attempts times. The wait between attempts starts at
// delay and doubles, unless the error carries a longer Retry-After.
// Non-retryable errors return immediately and a cancelled ctx returns
// ctx.Err().
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	attempts = max(attempts, 1)
	var err error
	for i := range attempts {
		err = fn()
		var re *RetryableError
		if err == nil || !errors.As(err, &re) || i == attempts-1 {
			return err
		}

		wait := max(delay, min(re.After, maxRetryAfter))
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		delay *= 2
	}
	return err
}

// RetryWithBackoff is [Retry] with 3 attempts starting at one second.
func RetryWithBackoff(ctx context.Context, fn func() error) error {
	return Retry(ctx, 3, time.Second, fn)
}

// parseRetryAfter reads a Retry-After header given in seconds or as an
// HTTP date. Unparseable or past values yield 0.
func parseRetryAfter(v string, now time.Time) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}
