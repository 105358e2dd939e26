package components

import (
	"testing"

	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tolerance = 1e-5

func TestCameraDefaultView(t *testing.T) {
	c := NewCamera(math.NewVec3(0, 0, -10))
	view := c.ViewMatrix()

	// The origin sits 10 units in front of the camera.
	p := math.NewVec3Zero().Transform(view)
	assert.True(t, p.Compare(math.NewVec3(0, 0, 10), tolerance), "%v", p)
	assert.False(t, c.IsDirty)
}

func TestCameraYawKeepsBasisOrthonormal(t *testing.T) {
	c := NewCamera(math.NewVec3Zero())
	c.Yaw(math.K_HALF_PI)

	assert.True(t, c.Forward.Compare(math.NewVec3(1, 0, 0), tolerance), "%v", c.Forward)
	assert.True(t, c.Right.Compare(math.NewVec3(0, 0, -1), tolerance), "%v", c.Right)
	assert.True(t, c.Up.Compare(math.NewVec3Up(), tolerance))
	assert.InDelta(t, 0, c.Forward.Dot(c.Right), tolerance)
}

func TestCameraPitchAndMove(t *testing.T) {
	c := NewCamera(math.NewVec3Zero())
	c.Pitch(math.K_HALF_PI)
	assert.True(t, c.Forward.Compare(math.NewVec3(0, -1, 0), tolerance), "%v", c.Forward)
	assert.True(t, c.Right.Compare(math.NewVec3Right(), tolerance))

	c.MoveForward(2)
	assert.True(t, c.Position.Compare(math.NewVec3(0, -2, 0), tolerance), "%v", c.Position)
	assert.True(t, c.IsDirty)
}

func TestControllerKeys(t *testing.T) {
	cfg := core.DefaultConfig().Camera
	c := NewController(NewCamera(math.NewVec3(0, 0, -10)), cfg)

	assert.True(t, c.OnKey(core.KEY_W, true))
	assert.True(t, c.OnKey(core.KEY_SPACE, true))
	assert.False(t, c.OnKey(core.KEY_Q, true))
	assert.Equal(t, MOVE_FORWARD, c.Held())

	c.Update()
	assert.InDelta(t, -9.9, c.Camera.Position.Z, tolerance)

	c.OnKey(core.KEY_W, false)
	c.OnKey(core.KEY_SPACE, false)
	assert.Zero(t, c.Held())

	c.OnKey(core.KEY_D, true)
	c.Update()
	expected := math.NewVec3Forward().RotateAxis(math.NewVec3Up(), math.K_PI*0.01)
	assert.True(t, c.Camera.Forward.Compare(expected, tolerance))
	assert.InDelta(t, -9.9, c.Camera.Position.Z, tolerance)
}

func TestControllerEvents(t *testing.T) {
	core.EventSystemInitialize()
	defer core.EventSystemShutdown()

	c := NewController(NewCamera(math.NewVec3Zero()), core.DefaultConfig().Camera)
	c.Listen()

	require.True(t, core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_PRESSED, Data: &core.KeyEvent{KeyCode: core.KEY_UP}}))
	assert.Equal(t, PITCH_DOWN, c.Held())
	require.True(t, core.EventFire(core.EventContext{Type: core.EVENT_CODE_KEY_RELEASED, Data: &core.KeyEvent{KeyCode: core.KEY_UP}}))
	assert.Zero(t, c.Held())
}

func TestControllerLook(t *testing.T) {
	c := NewController(NewCamera(math.NewVec3Zero()), core.DefaultConfig().Camera)
	c.Look(0, 0)
	assert.True(t, c.Camera.Forward.Compare(math.NewVec3Forward(), 0))

	c.Look(100, 0)
	expected := math.NewVec3Forward().RotateAxis(math.NewVec3Up(), 0.1)
	assert.True(t, c.Camera.Forward.Compare(expected, tolerance))
}
