package math

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const tolerance = 1e-5

func TestMat4MulIdentity(t *testing.T) {
	m := NewMat4Translation(NewVec3(1, 2, 3)).Mul(NewMat4EulerY(0.3))
	assert.True(t, m.Mul(NewMat4Identity()).Compare(m, tolerance))
	assert.True(t, NewMat4Identity().Mul(m).Compare(m, tolerance))
}

func TestMat4RowVectorOrder(t *testing.T) {
	// Scale first, then translate.
	m := NewMat4Scale(NewVec3(2, 2, 2)).Mul(NewMat4Translation(NewVec3(1, 0, 0)))
	p := NewVec3(1, 1, 1).Transform(m)
	assert.True(t, p.Compare(NewVec3(3, 2, 2), tolerance), "%v", p)
}

func TestEulerYMatchesRotateAxis(t *testing.T) {
	angle := float32(0.7)
	v := NewVec3(1, 0.5, -2)
	viaMatrix := v.Transform(NewMat4EulerY(angle))
	viaAxis := v.RotateAxis(NewVec3Up(), angle)
	assert.True(t, viaMatrix.Compare(viaAxis, tolerance), "%v != %v", viaMatrix, viaAxis)

	// A quarter turn moves +X onto -Z.
	q := NewVec3Right().RotateAxis(NewVec3Up(), K_HALF_PI)
	assert.True(t, q.Compare(NewVec3(0, 0, -1), tolerance), "%v", q)
}

func TestLookAtLH(t *testing.T) {
	eye := NewVec3(0, 0, -10)
	view := NewMat4LookAtLH(eye, eye.Add(NewVec3Forward()), NewVec3Up())

	// The eye sits at the view-space origin and the look direction is +Z.
	assert.True(t, eye.Transform(view).Compare(NewVec3Zero(), tolerance))
	assert.True(t, NewVec3Zero().Transform(view).Compare(NewVec3(0, 0, 10), tolerance))
	assert.True(t, NewVec3(1, 0, -10).Transform(view).Compare(NewVec3(1, 0, 0), tolerance))
}

func TestPerspectiveFovLHDepthRange(t *testing.T) {
	near, far := float32(0.1), float32(100)
	proj := NewMat4PerspectiveFovLH(1.0, 1.6, near, far)

	depth := func(z float32) float32 {
		// Row vector (0, 0, z, 1) times proj, then the perspective divide.
		clipZ := z*proj.Data[10] + proj.Data[14]
		clipW := z*proj.Data[11] + proj.Data[15]
		return clipZ / clipW
	}
	assert.InDelta(t, 0.0, depth(near), tolerance)
	assert.InDelta(t, 1.0, depth(far), tolerance)
}

func TestTransposed(t *testing.T) {
	m := NewMat4Translation(NewVec3(4, 5, 6))
	tr := m.Transposed()
	assert.Equal(t, float32(4), tr.Data[3])
	assert.Equal(t, float32(5), tr.Data[7])
	assert.Equal(t, float32(6), tr.Data[11])
	assert.True(t, tr.Transposed().Compare(m, 0))
}

func TestNormalizedZero(t *testing.T) {
	assert.Equal(t, NewVec3Zero(), NewVec3Zero().Normalized())
	assert.InDelta(t, 1.0, NewVec3(3, 4, 0).Normalized().Length(), tolerance)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, Clamp(-3, 0, 9))
	assert.Equal(t, 9, Clamp(12, 0, 9))
	assert.Equal(t, float32(0.5), Clamp(float32(0.5), 0, 1))
}
