package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueueOrder(t *testing.T) {
	rq := NewRingQueue[int](2)
	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	rq.Enqueue(1)
	rq.Enqueue(2)
	assert.True(t, rq.IsFull())

	v, err := rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// Wraps around, then grows with the wrapped element still first.
	rq.Enqueue(3)
	rq.Enqueue(4)
	assert.Equal(t, 3, rq.Len())
	assert.Equal(t, 2, rq.At(0))
	assert.Equal(t, 4, rq.At(2))

	front, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, 2, front)

	for _, want := range []int{2, 3, 4} {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, want, v)
	}
	assert.True(t, rq.IsEmpty())
}

func TestRingQueueAtPanicsOutOfRange(t *testing.T) {
	rq := NewRingQueue[string](4)
	rq.Enqueue("a")
	assert.Panics(t, func() { rq.At(1) })
}
