package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGrowCapacityNeverShrinks(t *testing.T) {
	assert.Equal(t, uint64(1000), GrowCapacity(1000, 10))
	assert.Equal(t, uint64(1000), GrowCapacity(1000, 1000))
}

func TestGrowCapacityGoldenStep(t *testing.T) {
	// A small overshoot grows by the factor, not to the exact requirement.
	got := GrowCapacity(1000, 1001)
	assert.Equal(t, uint64(1618), got)
}

func TestGrowCapacitySingleStepReachesLargeJump(t *testing.T) {
	// Requirement exceeding current*factor is satisfied in one resize.
	got := GrowCapacity(1000, 50_000)
	assert.Equal(t, uint64(50_000), got)
	assert.GreaterOrEqual(t, got, uint64(50_000))
}

func TestGrowCapacityMonotonicAcrossSequence(t *testing.T) {
	capacity := uint64(64)
	sizes := []uint64{128, 100, 90, 4096, 12, 4097, 3}
	for _, required := range sizes {
		next := GrowCapacity(capacity, required)
		assert.GreaterOrEqual(t, next, capacity)
		assert.GreaterOrEqual(t, next, required)
		capacity = next
	}
}
