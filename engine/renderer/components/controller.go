package components

import (
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
)

type Movement uint8

const (
	MOVE_FORWARD Movement = 1 << iota
	MOVE_BACK
	YAW_LEFT
	YAW_RIGHT
	PITCH_DOWN
	PITCH_UP
)

var keyBindings = map[core.KeyCode]Movement{
	core.KEY_W:      MOVE_FORWARD,
	core.KEY_SPACE:  MOVE_FORWARD,
	core.KEY_S:      MOVE_BACK,
	core.KEY_SHIFT:  MOVE_BACK,
	core.KEY_LSHIFT: MOVE_BACK,
	core.KEY_RSHIFT: MOVE_BACK,
	core.KEY_A:      YAW_LEFT,
	core.KEY_LEFT:   YAW_LEFT,
	core.KEY_D:      YAW_RIGHT,
	core.KEY_RIGHT:  YAW_RIGHT,
	core.KEY_UP:     PITCH_DOWN,
	core.KEY_DOWN:   PITCH_UP,
}

// Controller turns held keys and mouse drags into camera motion. Keys are
// applied once per frame, so speeds are per frame rather than per second.
type Controller struct {
	Camera *Camera
	held   Movement

	moveStep         float32
	turnStep         float32
	mouseSensitivity float32
}

func NewController(camera *Camera, cfg core.CameraConfig) *Controller {
	return &Controller{
		Camera:           camera,
		moveStep:         cfg.MoveStep,
		turnStep:         math.K_PI * cfg.TurnRate,
		mouseSensitivity: cfg.MouseSensitivity,
	}
}

// OnKey records a key transition. Returns true if the key is bound.
func (c *Controller) OnKey(key core.KeyCode, pressed bool) bool {
	m, ok := keyBindings[key]
	if !ok {
		return false
	}
	if pressed {
		c.held |= m
	} else {
		c.held &^= m
	}
	return true
}

func (c *Controller) Held() Movement {
	return c.held
}

// Look applies a mouse drag of dx, dy pixels.
func (c *Controller) Look(dx, dy int32) {
	if dy != 0 {
		c.Camera.Pitch(float32(dy) * c.mouseSensitivity)
	}
	if dx != 0 {
		c.Camera.Yaw(float32(dx) * c.mouseSensitivity)
	}
}

// Update moves the camera for one frame of held keys.
func (c *Controller) Update() {
	if c.held&MOVE_FORWARD != 0 {
		c.Camera.MoveForward(c.moveStep)
	}
	if c.held&MOVE_BACK != 0 {
		c.Camera.MoveForward(-c.moveStep)
	}
	if c.held&YAW_LEFT != 0 {
		c.Camera.Yaw(-c.turnStep)
	}
	if c.held&YAW_RIGHT != 0 {
		c.Camera.Yaw(c.turnStep)
	}
	if c.held&PITCH_DOWN != 0 {
		c.Camera.Pitch(c.turnStep)
	}
	if c.held&PITCH_UP != 0 {
		c.Camera.Pitch(-c.turnStep)
	}
}

// Listen wires the controller to the key events of the core event system.
func (c *Controller) Listen() {
	core.EventRegister(core.EVENT_CODE_KEY_PRESSED, func(ctx core.EventContext) bool {
		return c.OnKey(ctx.Data.(*core.KeyEvent).KeyCode, true)
	})
	core.EventRegister(core.EVENT_CODE_KEY_RELEASED, func(ctx core.EventContext) bool {
		return c.OnKey(ctx.Data.(*core.KeyEvent).KeyCode, false)
	})
}

// PollMouse applies the drag since the previous input update while the left
// button is held.
func (c *Controller) PollMouse() {
	if !core.InputIsButtonDown(core.BUTTON_LEFT) {
		return
	}
	x, y := core.InputGetMousePosition()
	px, py := core.InputGetPreviousMousePosition()
	c.Look(x-px, y-py)
}
