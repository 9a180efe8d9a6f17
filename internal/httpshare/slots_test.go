package httpshare

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlotQueueLimitsPerPeer(t *testing.T) {
	q := NewSlotQueue(1)
	ctx := context.Background()

	release1, err := q.Acquire(ctx, "peer-a")
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = q.Acquire(ctx2, "peer-a")
	assert.Error(t, err, "second acquire for the same peer should block until the first releases")

	release1()
	release2, err := q.Acquire(ctx, "peer-a")
	require.NoError(t, err)
	release2()
}

func TestSlotQueueIndependentPerPeer(t *testing.T) {
	q := NewSlotQueue(1)
	ctx := context.Background()

	_, err := q.Acquire(ctx, "peer-a")
	require.NoError(t, err)

	release, err := q.Acquire(ctx, "peer-b")
	require.NoError(t, err)
	release()
}
