package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignIndexOffset(t *testing.T) {
	assert.Equal(t, uint64(0), AlignIndexOffset(0))
	assert.Equal(t, uint64(16), AlignIndexOffset(1))
	assert.Equal(t, uint64(16), AlignIndexOffset(16))
	assert.Equal(t, uint64(32), AlignIndexOffset(17))
	assert.Equal(t, uint64(96), AlignIndexOffset(84))
}

func TestMeshAgeRule(t *testing.T) {
	const swapBufferCount = 2
	m := &Mesh{}
	m.MarkUsed(100)

	// Alive through frame lastUsed+swapBufferCount, reclaimable strictly after.
	for frame := uint64(100); frame <= 100+swapBufferCount; frame++ {
		assert.False(t, m.AgedOut(frame, swapBufferCount), "frame %d", frame)
	}
	assert.True(t, m.AgedOut(100+swapBufferCount+1, swapBufferCount))
}

func TestMeshMarkUsedMonotonic(t *testing.T) {
	m := &Mesh{}
	m.MarkUsed(7)
	m.MarkUsed(3)
	assert.Equal(t, uint64(7), m.LastUsedFrame())
}
