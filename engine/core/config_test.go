package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint32(2560), cfg.Window.Width)
	assert.Equal(t, uint32(1600), cfg.Window.Height)
	assert.Equal(t, uint32(2), cfg.Renderer.FrameCount)
	assert.Equal(t, uint64(4096*256), cfg.Renderer.ConstantBufferSize)
	assert.Equal(t, uint64(0x2000000), cfg.Renderer.StagingBufferSize)
	assert.Equal(t, 2048, cfg.Scene.InstanceCount)
	assert.Len(t, cfg.Scene.Textures, 7)
	assert.Equal(t, uint32(5), cfg.Scene.Species[1].TextureBase)
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, uint32(2560), cfg.Renderer.Width)
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.toml")
	data := `
[renderer]
backend = "headless"

[scene]
instance_count = 8
textures = ["a.dds"]

[[scene.species]]
model = "bush.glb"
texture_base = 0
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "headless", cfg.Renderer.Backend)
	assert.Equal(t, 8, cfg.Scene.InstanceCount)
	assert.Equal(t, []SpeciesConfig{{Model: "bush.glb"}}, cfg.Scene.Species)
	// Untouched sections keep their defaults.
	assert.Equal(t, "terrain.glb", cfg.Scene.Terrain)
	assert.Equal(t, uint32(1600), cfg.Renderer.Height)
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grove.toml")
	require.NoError(t, os.WriteFile(path, []byte("[renderer]\nwarp = true\n"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scene.InstanceCount = 4097
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Renderer.DescriptorCapacity = 10
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Renderer.FrameCount = 1
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultConfig()
	cfg.Renderer.Backend = "d3d12"
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}
