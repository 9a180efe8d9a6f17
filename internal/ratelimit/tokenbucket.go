// Package ratelimit provides the token buckets referenced throughout
// spec §5: one for CPU-side hashing bandwidth (share engine) and one
// each for client HTTP output and downloader input. It is a thin,
// reconfigurable wrapper over golang.org/x/time/rate, mirroring the
// shape of the teacher's fs/accounting.tokenBucket (see
// fs/accounting/token_bucket_test.go in the retrieval pack, which
// exercises the same curr[tx/rx] split this package keeps).
package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// Unlimited disables a bucket: WaitN becomes a no-op.
const Unlimited rate.Limit = rate.Inf

// Bucket is a reconfigurable, mutex-guarded rate.Limiter. The limiter
// itself is swapped rather than mutated in place so a reconfiguration
// never races a concurrent WaitN burst accounting decision.
type Bucket struct {
	mu  sync.RWMutex
	lim *rate.Limiter
}

// New creates a Bucket allowing bytesPerSec bytes per second with a
// burst of the same size. A bytesPerSec of zero or negative means
// unlimited.
func New(bytesPerSec int) *Bucket {
	b := &Bucket{}
	b.SetLimit(bytesPerSec)
	return b
}

// SetLimit reconfigures the bucket. Called when an operator changes the
// configured bandwidth limit at runtime.
func (b *Bucket) SetLimit(bytesPerSec int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if bytesPerSec <= 0 {
		b.lim = rate.NewLimiter(Unlimited, 0)
		return
	}
	b.lim = rate.NewLimiter(rate.Limit(bytesPerSec), bytesPerSec)
}

// WaitN blocks until n bytes worth of budget are available or ctx is
// done. Callers pass chunk sizes (a disk read, a socket write) rather
// than calling once per byte.
func (b *Bucket) WaitN(ctx context.Context, n int) error {
	b.mu.RLock()
	lim := b.lim
	b.mu.RUnlock()
	if lim.Limit() == Unlimited {
		return nil
	}
	// A limiter's burst caps the largest single WaitN call; split large
	// requests into burst-sized slices so a big chunk doesn't need a
	// burst bigger than the configured rate.
	burst := lim.Burst()
	if burst <= 0 {
		return nil
	}
	for n > 0 {
		take := n
		if take > burst {
			take = burst
		}
		if err := lim.WaitN(ctx, take); err != nil {
			return err
		}
		n -= take
	}
	return nil
}
