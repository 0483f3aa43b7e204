package effect

import "time"

// RetryPolicy controls re-execution of a failing invocation before the
// effect's recovery policy applies.
//
// MaxAttempts <= 1 means no retries. Backoff grows exponentially from
// InitialBackoff by BackoffMultiplier (default 2.0 when <= 0), capped at
// MaxBackoff when MaxBackoff > 0.
type RetryPolicy struct {
	MaxAttempts       int
	InitialBackoff    time.Duration
	BackoffMultiplier float64
	MaxBackoff        time.Duration
}

// attempts returns the total number of tries, at least 1.
func (p RetryPolicy) attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// backoff returns the delay before retry number attempt (1-based: the
// delay after the attempt-th failure).
func (p RetryPolicy) backoff(attempt int) time.Duration {
	if p.InitialBackoff <= 0 {
		return 0
	}
	mult := p.BackoffMultiplier
	if mult <= 0 {
		mult = 2.0
	}
	d := float64(p.InitialBackoff)
	for i := 1; i < attempt; i++ {
		d *= mult
	}
	delay := time.Duration(d)
	if p.MaxBackoff > 0 && delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}
