package communicator

import (
	"context"
	"math/rand"
	"time"

	"github.com/bs2609/fs2/internal/erroriface"
)

// Backoff retries a transient operation with exponential delay and
// jitter, the same shape as the teacher's own retry pacer: double the
// delay on every failure up to a ceiling, and never retry an error
// already classified as non-retryable (spec §7).
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewBackoff returns a Backoff with sane defaults: five attempts,
// starting at 500ms and capping at 8s.
func NewBackoff() *Backoff {
	return &Backoff{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    8 * time.Second,
	}
}

// Retry calls op until it succeeds, returns a NoRetry/Fatal error, ctx
// is cancelled, or MaxAttempts is exhausted.
func (b *Backoff) Retry(ctx context.Context, op func() error) error {
	delay := b.BaseDelay
	var lastErr error
	for attempt := 0; attempt < b.MaxAttempts; attempt++ {
		if attempt > 0 {
			jittered := delay/2 + time.Duration(rand.Int63n(int64(delay)/2+1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(jittered):
			}
			delay *= 2
			if delay > b.MaxDelay {
				delay = b.MaxDelay
			}
		}

		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		if erroriface.IsNoRetry(err) || erroriface.IsFatal(err) {
			return err
		}
	}
	return lastErr
}
