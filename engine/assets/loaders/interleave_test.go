package loaders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterleaveConcatenatesPerVertex(t *testing.T) {
	const count = 5
	sizes := []int{3, 2, 4}
	// Strides larger than sizes: the tail of each element is padding.
	strides := []int{4, 2, 6}

	streams := make([][]byte, len(sizes))
	for a := range streams {
		streams[a] = make([]byte, strides[a]*count)
		for v := 0; v < count; v++ {
			for b := 0; b < strides[a]; b++ {
				streams[a][v*strides[a]+b] = byte(a*100 + v*10 + b)
			}
		}
	}

	out, stride := Interleave(streams, strides, sizes, count)
	assert.Equal(t, 9, stride)
	assert.Len(t, out, 9*count)

	for v := 0; v < count; v++ {
		var want []byte
		for a := range streams {
			want = append(want, streams[a][v*strides[a]:v*strides[a]+sizes[a]]...)
		}
		assert.Equal(t, want, out[v*stride:(v+1)*stride], "vertex %d", v)
	}
}

func TestInterleaveOwnsStorage(t *testing.T) {
	stream := []byte{1, 2, 3, 4}
	out, _ := Interleave([][]byte{stream}, []int{2}, []int{2}, 2)
	stream[0] = 99
	assert.Equal(t, []byte{1, 2, 3, 4}, out)
}

func TestInterleaveEmpty(t *testing.T) {
	out, stride := Interleave([][]byte{nil, nil}, []int{12, 8}, []int{12, 8}, 0)
	assert.Empty(t, out)
	assert.Equal(t, 20, stride)
}
