package retry

import (
	"math"
	"time"

	"github.com/freefrancisco/modelfusion/core"
)

// Policy decides whether a failed attempt should be retried and after what
// delay. attempt is 1-based and counts the attempt that just failed.
// Implementations must be stateless with respect to individual calls so a
// single Policy value can be shared across concurrent calls.
type Policy interface {
	ShouldRetry(attempt int, err error) (delay time.Duration, retry bool)
}

// ExponentialBackoff retries transient failures with exponentially growing
// delays: initialDelay * backoffFactor^(attempt-1), capped at MaxTries total
// attempts including the first. When attempts are exhausted the executor
// surfaces the last observed error, not a synthetic "too many retries".
type ExponentialBackoff struct {
	MaxTries      int
	InitialDelay  time.Duration
	BackoffFactor float64
}

// NewExponentialBackoff constructs the default retry policy
// (3 tries, 2s initial delay, doubling).
func NewExponentialBackoff(optFns ...func(o *ExponentialBackoff)) *ExponentialBackoff {
	p := &ExponentialBackoff{
		MaxTries:      3,
		InitialDelay:  2 * time.Second,
		BackoffFactor: 2,
	}
	for _, fn := range optFns {
		fn(p)
	}
	return p
}

// ShouldRetry implements Policy.
func (p *ExponentialBackoff) ShouldRetry(attempt int, err error) (time.Duration, bool) {
	if !core.IsRetryable(err) {
		return 0, false
	}
	if attempt >= p.MaxTries {
		return 0, false
	}

	factor := p.BackoffFactor
	if factor <= 0 {
		factor = 1
	}

	delay := time.Duration(float64(p.InitialDelay) * math.Pow(factor, float64(attempt-1)))

	return delay, true
}

// None never retries; every call gets exactly one attempt.
func None() Policy { return nonePolicy{} }

type nonePolicy struct{}

func (nonePolicy) ShouldRetry(int, error) (time.Duration, bool) { return 0, false }
