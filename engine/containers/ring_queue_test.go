package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[int](3)
	assert.NoError(t, rq.Enqueue(1))
	assert.NoError(t, rq.Enqueue(2))
	assert.NoError(t, rq.Enqueue(3))
	assert.ErrorIs(t, rq.Enqueue(4), ErrQueueFull)

	v, err := rq.Dequeue()
	assert.NoError(t, err)
	assert.Equal(t, 1, v)

	// Wraps around the backing array.
	assert.NoError(t, rq.Enqueue(4))
	for _, want := range []int{2, 3, 4} {
		v, err = rq.Dequeue()
		assert.NoError(t, err)
		assert.Equal(t, want, v)
	}
	_, err = rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)
}

func TestRingQueuePeek(t *testing.T) {
	rq := NewRingQueue[string](2)
	_, err := rq.Peek()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	assert.NoError(t, rq.Enqueue("a"))
	v, err := rq.Peek()
	assert.NoError(t, err)
	assert.Equal(t, "a", v)
	assert.Equal(t, 1, rq.Len())
}
