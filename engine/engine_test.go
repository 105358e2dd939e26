package engine

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeModel saves a binary glTF with one mesh of n triangles.
func writeModel(t *testing.T, path string, triangles int) {
	t.Helper()
	var (
		pos     [][3]float32
		nrm     [][3]float32
		tan     [][4]float32
		uv      [][2]float32
		indices []uint16
	)
	for i := 0; i < triangles*3; i++ {
		pos = append(pos, [3]float32{float32(i), 0, float32(i % 7)})
		nrm = append(nrm, [3]float32{0, 1, 0})
		tan = append(tan, [4]float32{1, 0, 0, 1})
		uv = append(uv, [2]float32{float32(i%2), float32(i%3) * 0.5})
		indices = append(indices, uint16(i))
	}

	doc := gltf.NewDocument()
	prim := &gltf.Primitive{
		Attributes: map[string]int{
			loaders.AttributePosition: modeler.WritePosition(doc, pos),
			loaders.AttributeNormal:   modeler.WriteNormal(doc, nrm),
			loaders.AttributeTangent:  modeler.WriteTangent(doc, tan),
			loaders.AttributeTexcoord: modeler.WriteTextureCoord(doc, uv),
		},
		Indices: gltf.Index(modeler.WriteIndices(doc, indices)),
	}
	doc.Meshes = []*gltf.Mesh{{Name: filepath.Base(path), Primitives: []*gltf.Primitive{prim}}}
	require.NoError(t, gltf.SaveBinary(doc, path))
}

func writeTexture(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := 0; i < 16; i++ {
		img.Set(i%4, i/4, color.RGBA{R: uint8(i * 16), G: 128, B: 64, A: 255})
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeShader(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x00, 0x01, 0x00}, 0o644))
}

func headlessConfig(t *testing.T) *core.Config {
	t.Helper()
	dir := t.TempDir()
	writeShader(t, filepath.Join(dir, "shaders", "scene.vert.spv"))
	writeShader(t, filepath.Join(dir, "shaders", "scene.frag.spv"))
	writeModel(t, filepath.Join(dir, "terrain.glb"), 40)
	writeModel(t, filepath.Join(dir, "shrub.glb"), 2)
	writeTexture(t, filepath.Join(dir, "ground.png"))
	writeTexture(t, filepath.Join(dir, "leaves.png"))

	cfg := core.DefaultConfig()
	cfg.Application.MaxFrames = 3
	cfg.Window.Width, cfg.Window.Height = 64, 32
	cfg.Renderer.Backend = "headless"
	cfg.Renderer.StagingBufferSize = 1 << 16
	cfg.Renderer.RotationSpeed = 0.5
	cfg.Scene = core.SceneConfig{
		Terrain:       "terrain.glb",
		Species:       []core.SpeciesConfig{{Model: "shrub.glb", TextureBase: 1}},
		Textures:      []string{"ground.png", "leaves.png"},
		InstanceCount: 8,
		Seed:          11,
	}
	cfg.Log.Level = "info"
	cfg.Assets.Directory = dir
	require.NoError(t, cfg.Validate())
	cfg.Renderer.Width, cfg.Renderer.Height = cfg.Window.Width, cfg.Window.Height
	return cfg
}

func TestHeadlessRun(t *testing.T) {
	cfg := headlessConfig(t)

	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.Initialize())
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Nil(t, e.platform)

	require.NoError(t, e.Run())
	assert.Equal(t, uint64(3), e.Frames())
	assert.GreaterOrEqual(t, e.context.Sync().LastSignaled(), uint64(3))
	assert.Len(t, e.context.Instances(), 8)

	// Escape goes through the quit event and stops the loop.
	e.running.Store(true)
	core.InputProcessKey(core.KEY_ESCAPE, true)
	assert.False(t, e.running.Load())
	core.InputProcessKey(core.KEY_ESCAPE, false)

	require.NoError(t, e.Shutdown())
	assert.Equal(t, EngineStageUninitialized, e.Stage())
	assert.Nil(t, e.context)
}

func TestLoadRejectsWrongAssetType(t *testing.T) {
	cfg := headlessConfig(t)
	e, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, e.assetManager.Initialize(cfg.Assets.Directory))
	defer e.assetManager.Shutdown()

	_, err = e.loadModel("ground.png")
	assert.ErrorIs(t, err, core.ErrUnknownAssetType)

	_, err = e.loadShader("missing.spv")
	assert.ErrorIs(t, err, core.ErrAssetNotFound)
}
