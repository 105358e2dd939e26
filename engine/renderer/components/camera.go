package components

import (
	"github.com/spaghettifunk/grove/engine/math"
)

/**
 * @brief A free-flying camera described by its position and an
 * orthonormal basis. The view matrix is rebuilt only when one of
 * them changed.
 */
type Camera struct {
	/** @brief The position of this camera. */
	Position math.Vec3
	Forward  math.Vec3
	Up       math.Vec3
	Right    math.Vec3
	/** @brief Internal flag used to determine when the view matrix needs to be rebuilt. */
	IsDirty bool

	view math.Mat4
}

func NewCamera(position math.Vec3) *Camera {
	camera := &Camera{}
	camera.Reset(position)
	return camera
}

func (c *Camera) Reset(position math.Vec3) {
	c.Position = position
	c.Forward = math.NewVec3Forward()
	c.Up = math.NewVec3Up()
	c.Right = math.NewVec3Right()
	c.IsDirty = true
}

// ViewMatrix looks from the position along the forward axis.
func (c *Camera) ViewMatrix() math.Mat4 {
	if c.IsDirty {
		c.view = math.NewMat4LookAtLH(c.Position, c.Position.Add(c.Forward), c.Up)
		c.IsDirty = false
	}
	return c.view
}

// Pitch turns forward and up about the right axis.
func (c *Camera) Pitch(radians float32) {
	c.Forward = c.Forward.RotateAxis(c.Right, radians).Normalized()
	c.Up = c.Up.RotateAxis(c.Right, radians).Normalized()
	c.IsDirty = true
}

// Yaw turns forward and right about the up axis.
func (c *Camera) Yaw(radians float32) {
	c.Forward = c.Forward.RotateAxis(c.Up, radians).Normalized()
	c.Right = c.Right.RotateAxis(c.Up, radians).Normalized()
	c.IsDirty = true
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = c.Position.Add(c.Forward.MulScalar(amount))
	c.IsDirty = true
}
