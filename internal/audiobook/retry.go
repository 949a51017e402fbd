package audiobook

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryPolicy bounds the attempts made for one chapter. MaxAttempts counts
// every call, the first one included.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Jitter      float64 // randomization factor in [0, 1]
}

// newBackOff returns a fresh schedule: BaseDelay * 2^n, randomized by
// Jitter and never longer than MaxDelay.
func (p RetryPolicy) newBackOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: p.Jitter,
		Multiplier:          2,
		MaxInterval:         p.MaxDelay,
	}
	b.Reset()
	return cappedBackOff{BackOff: b, max: p.MaxDelay}
}

// cappedBackOff clips jittered delays that overshoot max.
type cappedBackOff struct {
	backoff.BackOff
	max time.Duration
}

func (c cappedBackOff) NextBackOff() time.Duration {
	next := c.BackOff.NextBackOff()
	if next != backoff.Stop && c.max > 0 && next > c.max {
		return c.max
	}
	return next
}
