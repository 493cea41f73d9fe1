package usecase

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/googleapis/gax-go/v2"
)

// Backoff returns the delay before the next retry of one batch. It is not shared between batches.
type Backoff interface {
	Pause() time.Duration
}

// BackoffStrategy creates Backoff for each batch.
type BackoffStrategy func() Backoff

// jitterRatio bounds random jitter to a fraction of the current base delay.
const jitterRatio = 0.25

// ExponentialBackoff returns initial*2^n for the n-th retry plus random jitter of up to a quarter of it. The delay never exceeds max, and never falls below min(initial*2^n, max).
func ExponentialBackoff(initial, max time.Duration) BackoffStrategy {
	return func() Backoff {
		return &exponentialBackoff{
			initial: initial,
			max:     max,
			jitter: func(d time.Duration) time.Duration {
				n := int64(float64(d) * jitterRatio)
				if n <= 0 {
					return 0
				}
				return time.Duration(rand.Int64N(n + 1))
			},
		}
	}
}

type exponentialBackoff struct {
	initial time.Duration
	max     time.Duration
	cur     time.Duration
	jitter  func(time.Duration) time.Duration
}

func (x *exponentialBackoff) Pause() time.Duration {
	switch {
	case x.cur == 0:
		x.cur = x.initial
	case x.cur < x.max:
		x.cur *= 2
	}
	if x.max > 0 && x.cur > x.max {
		x.cur = x.max
	}

	d := x.cur + x.jitter(x.cur)
	if x.max > 0 && d > x.max {
		d = x.max
	}
	return d
}

type noBackoff struct{}

func (noBackoff) Pause() time.Duration { return 0 }

// NoBackoff retries immediately.
func NoBackoff() Backoff { return noBackoff{} }

// sleep waits d or until ctx is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	return gax.Sleep(ctx, d)
}
