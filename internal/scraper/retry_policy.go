package scraper

import (
	"math"
	"time"
)

// RetryPolicy bounds the attempt loop and spaces retries exponentially.
type RetryPolicy struct {
	MaxAttempts int
	Unit        time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy allows three attempts with 1s, then 2s, between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Unit:        time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Attempts returns the attempt ceiling, never less than one.
func (p RetryPolicy) Attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Backoff returns the wait after the zero-indexed attempt: 2^attempt units, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.Unit) * math.Pow(2, float64(attempt))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if delay > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(delay)
}
