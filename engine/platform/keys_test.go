package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/stretchr/testify/assert"
)

func TestTranslateKey(t *testing.T) {
	cases := map[glfw.Key]core.KeyCode{
		glfw.KeyA:         core.KEY_A,
		glfw.KeyW:         core.KEY_W,
		glfw.KeyZ:         core.KEY_Z,
		glfw.KeyF1:        core.KEY_F1,
		glfw.KeyF12:       core.KEY_F12,
		glfw.KeyEscape:    core.KEY_ESCAPE,
		glfw.KeySpace:     core.KEY_SPACE,
		glfw.KeyLeftShift: core.KEY_LSHIFT,
		glfw.KeyDown:      core.KEY_DOWN,
	}
	for key, want := range cases {
		got, ok := translateKey(key)
		assert.True(t, ok, "key %d", key)
		assert.Equal(t, want, got, "key %d", key)
	}

	_, ok := translateKey(glfw.KeyKPAdd)
	assert.False(t, ok)
}
