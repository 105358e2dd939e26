// Package scene scatters vegetation instances over the terrain.
package scene

import (
	"encoding/binary"
	"fmt"
	gomath "math"
	"time"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/math"
	"golang.org/x/exp/rand"
)

// Instance is one placed piece of vegetation. Scale and Rotation are the raw
// samples in [0,1); ScaleFactor and Yaw map them to world units.
type Instance struct {
	Position math.Vec3
	Scale    float32
	Rotation float32
}

func (i Instance) ScaleFactor() float32 {
	return 0.0015 * (i.Scale + 0.5)
}

func (i Instance) Yaw() float32 {
	return i.Rotation * math.K_PI_2
}

// NewRand returns the placement generator. A zero seed seeds from the wall
// clock.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewSource(seed))
}

// Place anchors count instances on randomly chosen terrain vertices. All
// positions are drawn before the scale and rotation samples.
func Place(rng *rand.Rand, terrain loaders.MeshSource, count int) ([]Instance, error) {
	if count < 1 {
		return nil, fmt.Errorf("instance count must be positive, got %d", count)
	}
	if terrain.VertexCount == 0 || terrain.VertexStride < 12 {
		return nil, fmt.Errorf("terrain mesh %q has no usable vertices", terrain.Name)
	}
	if len(terrain.Vertices) < terrain.VertexCount*terrain.VertexStride {
		return nil, fmt.Errorf("terrain mesh %q holds %d bytes, expected %d", terrain.Name,
			len(terrain.Vertices), terrain.VertexCount*terrain.VertexStride)
	}

	instances := make([]Instance, count)
	for i := range instances {
		index := int(rng.Float32() * float32(terrain.VertexCount))
		index = math.Clamp(index, 0, terrain.VertexCount-1)
		instances[i].Position = readVec3(terrain.Vertices[index*terrain.VertexStride:])
	}
	for i := range instances {
		instances[i].Scale = rng.Float32()
		instances[i].Rotation = rng.Float32()
	}
	return instances, nil
}

func readVec3(b []byte) math.Vec3 {
	return math.NewVec3(
		gomath.Float32frombits(binary.LittleEndian.Uint32(b[0:])),
		gomath.Float32frombits(binary.LittleEndian.Uint32(b[4:])),
		gomath.Float32frombits(binary.LittleEndian.Uint32(b[8:])),
	)
}
