package autoindexnode

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapabilityIsNonNegative(t *testing.T) {
	for i := 0; i < 10; i++ {
		assert.GreaterOrEqual(t, Capability(), int64(0))
	}
}

func TestCapabilityVariesAcrossCalls(t *testing.T) {
	seen := map[int64]bool{}
	for i := 0; i < 20; i++ {
		seen[Capability()] = true
	}
	assert.Greater(t, len(seen), 1)
}
