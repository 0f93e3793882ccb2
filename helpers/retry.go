package helpers

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Backoff describes a bounded retry schedule. At least one of MaxElapsed or
// MaxAttempts must be set; an unbounded schedule is rejected by Retry.
type Backoff struct {
	Initial     time.Duration
	Multiplier  float64
	Max         time.Duration
	MaxElapsed  time.Duration
	MaxAttempts int
}

var (
	// InstagramPublishBackoff waits for container processing: 3s growing by
	// 1.5x up to 10s, for at most 90s in total.
	InstagramPublishBackoff = Backoff{
		Initial:    3 * time.Second,
		Multiplier: 1.5,
		Max:        10 * time.Second,
		MaxElapsed: 90 * time.Second,
	}

	// TikTokPollBackoff polls the publish status every 5s, 30 times at most.
	TikTokPollBackoff = Backoff{
		Initial:     5 * time.Second,
		Multiplier:  1,
		Max:         5 * time.Second,
		MaxAttempts: 30,
	}
)

func (b Backoff) build(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = b.Initial
	exp.Multiplier = b.Multiplier
	if exp.Multiplier < 1 {
		exp.Multiplier = 1
	}
	exp.MaxInterval = b.Max
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.MaxElapsedTime = b.MaxElapsed
	exp.RandomizationFactor = 0

	var policy backoff.BackOff = exp
	if b.MaxAttempts > 0 {
		policy = backoff.WithMaxRetries(policy, uint64(b.MaxAttempts-1))
	}
	return backoff.WithContext(policy, ctx)
}

// Retry calls op until it succeeds, returns an error for which retryable is
// false, the schedule is exhausted, or ctx is done. It returns the number of
// calls made and the last error. When ctx ends the context error is returned.
func Retry(ctx context.Context, b Backoff, retryable func(error) bool, op func(attempt int) error) (int, error) {
	if b.MaxElapsed <= 0 && b.MaxAttempts <= 0 {
		return 0, NewError(KindInternal, "retry schedule must be bounded")
	}

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op(attempts)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, b.build(ctx))
	return attempts, err
}
