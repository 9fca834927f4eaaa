package dispatch

import "time"

// RetryPolicy bounds in-run retries of retryable failures.
type RetryPolicy struct {
	// MaxAttempts includes the first attempt.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// MaxRetryAfter is the longest server-requested wait honoured within a
	// run. Longer hints defer the pair to the next run.
	MaxRetryAfter time.Duration
}

// DefaultRetryPolicy retries twice with 2s, 4s backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:   3,
		BaseDelay:     2 * time.Second,
		MaxDelay:      30 * time.Second,
		MaxRetryAfter: 2 * time.Minute,
	}
}

// Next decides whether attempt (1-based, already failed with f) should be
// retried and how long to wait first.
func (p RetryPolicy) Next(attempt int, f *Failure) (time.Duration, bool) {
	if f == nil || !f.Retryable || attempt >= p.MaxAttempts {
		return 0, false
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			delay = p.MaxDelay
			break
		}
	}
	if f.RetryAfter > 0 {
		if p.MaxRetryAfter > 0 && f.RetryAfter > p.MaxRetryAfter {
			return 0, false
		}
		if f.RetryAfter > delay {
			delay = f.RetryAfter
		}
	}
	return delay, true
}
