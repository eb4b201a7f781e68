// Package ratelimit paces provider requests with fixed delays so harvest
// traffic stays well under the provider's tolerance.
package ratelimit

import (
	"context"
	"time"
)

// Pacer enforces a fixed minimum spacing between provider operations. Zero
// and negative intervals disable the pacer.
type Pacer struct {
	interval time.Duration
	last     time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer with the given spacing.
func NewPacer(interval time.Duration) *Pacer {
	return &Pacer{
		interval: interval,
		sleep:    sleepCtx,
	}
}

// Wait blocks until at least the configured interval has passed since the
// previous Wait, or until the context is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.interval <= 0 {
		return nil
	}

	now := time.Now()
	if !p.last.IsZero() {
		if remaining := p.interval - now.Sub(p.last); remaining > 0 {
			if err := p.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	p.last = time.Now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
