package scene

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// grid builds a terrain mesh whose vertex i sits at (i, 2i, 3i).
func grid(count int) loaders.MeshSource {
	m := loaders.MeshSource{Name: "terrain", VertexCount: count, VertexStride: loaders.VertexStride}
	m.Vertices = make([]byte, count*m.VertexStride)
	for i := 0; i < count; i++ {
		for c := 0; c < 3; c++ {
			binary.LittleEndian.PutUint32(m.Vertices[i*m.VertexStride+c*4:], gomath.Float32bits(float32(i*(c+1))))
		}
	}
	return m
}

func TestPartition(t *testing.T) {
	assert.Equal(t, []Range{{1, 1024}, {1024, 2048}}, Partition(2048, 2))
	assert.Equal(t, []Range{{1, 8}}, Partition(8, 1))
	assert.Equal(t, []Range{{1, 4}, {4, 8}}, Partition(8, 2))
	assert.Nil(t, Partition(8, 0))

	// Ranges tile [1,total) without gaps.
	ranges := Partition(1000, 3)
	assert.Equal(t, 1, ranges[0].Start)
	for s := 1; s < len(ranges); s++ {
		assert.Equal(t, ranges[s-1].End, ranges[s].Start)
	}
	assert.Equal(t, 1000, ranges[2].End)
}

func TestPlaceAnchorsOnVertices(t *testing.T) {
	terrain := grid(1000)
	instances, err := Place(NewRand(7), terrain, 64)
	require.NoError(t, err)
	require.Len(t, instances, 64)

	for _, inst := range instances {
		i := inst.Position.X
		assert.Equal(t, float32(int(i)), i)
		assert.GreaterOrEqual(t, i, float32(0))
		assert.Less(t, i, float32(1000))
		assert.Equal(t, math.NewVec3(i, 2*i, 3*i), inst.Position)

		assert.GreaterOrEqual(t, inst.Scale, float32(0))
		assert.Less(t, inst.Scale, float32(1))
		assert.GreaterOrEqual(t, inst.Rotation, float32(0))
		assert.Less(t, inst.Rotation, float32(1))
	}
}

func TestPlaceIsDeterministicForASeed(t *testing.T) {
	terrain := grid(100)
	a, err := Place(NewRand(42), terrain, 10)
	require.NoError(t, err)
	b, err := Place(NewRand(42), terrain, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPlaceErrors(t *testing.T) {
	_, err := Place(NewRand(1), loaders.MeshSource{}, 4)
	assert.Error(t, err)
	_, err = Place(NewRand(1), grid(10), 0)
	assert.Error(t, err)
}

func TestInstanceTransforms(t *testing.T) {
	inst := Instance{Scale: 0.5, Rotation: 0.25}
	assert.InDelta(t, 0.0015, inst.ScaleFactor(), 1e-7)
	assert.InDelta(t, math.K_HALF_PI, inst.Yaw(), 1e-6)
}
