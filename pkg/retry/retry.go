// Package retry implements the bounded, classification-aware retry loop used
// for every provider operation. Failures are classified (soft, rotate,
// terminal); rotate-class failures switch credentials before backing off,
// terminal failures abort immediately, and an exhausted budget skips the unit
// of work rather than failing the run.
package retry

import (
	"context"
	"fmt"
	"time"

	errs "github.com/sdheenr/Auto-Insta/pkg/errors"
	"github.com/sdheenr/Auto-Insta/pkg/logger"
)

// Operation is a unit of work that may be retried.
type Operation func() error

// Outcome summarizes how a retry loop ended.
type Outcome int

const (
	// OK means the operation succeeded within the budget.
	OK Outcome = iota
	// Skipped means the budget was exhausted; the caller moves on.
	Skipped
	// Fatal means a terminal failure; the caller abandons the larger unit.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case OK:
		return "ok"
	case Skipped:
		return "skipped"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Rotator switches to the next credential in response to an error. It reports
// whether a switch actually happened (false for a single-credential pool).
type Rotator interface {
	RotateOnError() bool
}

// Policy bounds one retry loop.
type Policy struct {
	// MaxAttempts caps total attempts, the first one included.
	MaxAttempts int
	// Backoff computes the delay before each retry.
	Backoff BackoffStrategy
}

// Result reports how a retry loop ended.
type Result struct {
	Outcome  Outcome
	Attempts int
	Err      error
}

// Do runs op under the policy. Rotate-class errors trigger a credential
// rotation before the backoff; whether or not the rotation succeeded, the
// retry still happens and still consumes the attempt budget. Terminal errors
// end the loop immediately with Fatal. Context cancellation surfaces as Fatal
// with the context's error.
func Do(ctx context.Context, op Operation, policy Policy, rotator Rotator, log logger.Logger) Result {
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := op()
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return Result{Outcome: OK, Attempts: attempt}
		}
		lastErr = err

		category := errs.CategoryOf(err)
		class := errs.ClassOf(err)

		if class == errs.ClassTerminal {
			log.DebugWithFields("error is terminal, not retrying", map[string]interface{}{
				"category": string(category),
				"error":    err.Error(),
			})
			return Result{Outcome: Fatal, Attempts: attempt, Err: err}
		}

		if class == errs.ClassRotate && rotator != nil {
			if !rotator.RotateOnError() {
				log.Debug("rotation requested but pool has a single credential")
			}
		}

		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Backoff.NextDelay(attempt)
		log.WarnWithFields("retrying operation", map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": policy.MaxAttempts,
			"category":     string(category),
			"delay_ms":     delay.Milliseconds(),
			"error":        err.Error(),
		})

		if err := Wait(ctx, delay); err != nil {
			return Result{Outcome: Fatal, Attempts: attempt, Err: err}
		}
	}

	log.ErrorWithFields("retry budget exhausted", map[string]interface{}{
		"attempts":   policy.MaxAttempts,
		"last_error": lastErr.Error(),
	})
	return Result{
		Outcome:  Skipped,
		Attempts: policy.MaxAttempts,
		Err:      fmt.Errorf("retry budget (%d) exhausted: %w", policy.MaxAttempts, lastErr),
	}
}

// ItemPolicy returns the retry policy for single-item downloads.
func ItemPolicy(maxAttempts int, base, cap time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     &ExponentialBackoff{BaseDelay: base, MaxDelay: cap},
	}
}

// ProfilePolicy returns the retry policy for whole-profile recovery.
func ProfilePolicy(maxAttempts int, base, cap time.Duration) Policy {
	return Policy{
		MaxAttempts: maxAttempts,
		Backoff:     &ExponentialBackoff{BaseDelay: base, MaxDelay: cap},
	}
}
