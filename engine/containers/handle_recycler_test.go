package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandleRecyclerMonotonic(t *testing.T) {
	r := NewHandleRecycler[uint32]()
	assert.Equal(t, uint32(0), r.GetHandle())
	assert.Equal(t, uint32(1), r.GetHandle())
	assert.Equal(t, uint32(2), r.GetHandle())
	assert.Equal(t, uint32(3), r.IssuedCount())
}

func TestHandleRecyclerReusesFreedFirst(t *testing.T) {
	r := NewHandleRecycler[uint32]()
	for i := 0; i < 4; i++ {
		r.GetHandle()
	}
	r.Recycle(1)
	r.Recycle(3)

	// Recycled handles come back in FIFO order before the counter grows.
	assert.Equal(t, uint32(1), r.GetHandle())
	assert.Equal(t, uint32(3), r.GetHandle())
	assert.Equal(t, uint32(4), r.GetHandle())
	assert.Equal(t, 0, r.FreeCount())
}

func TestHandleRecyclerEmptyFreeListDoesNotPop(t *testing.T) {
	r := NewHandleRecycler[uint16]()
	// With nothing recycled, handles must come from the counter only.
	assert.Equal(t, uint16(0), r.GetHandle())
	assert.Equal(t, 0, r.FreeCount())
}
