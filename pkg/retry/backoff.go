package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay before a given retry attempt.
type BackoffStrategy interface {
	// NextDelay returns the delay before the attempt'th retry (1-based).
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff doubles the delay each attempt, capped at MaxDelay.
// JitterFactor, when non-zero, spreads delays by up to ±JitterFactor.
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
}

// NextDelay calculates the delay for the given attempt.
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	multiplier := eb.Multiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}

	delay := float64(eb.BaseDelay) * math.Pow(multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		jitter := delay * eb.JitterFactor
		delay += (rand.Float64() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}

	return time.Duration(delay)
}

// ConstantBackoff waits the same delay before every attempt.
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns the constant delay.
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait sleeps for delay or until the context is cancelled.
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
