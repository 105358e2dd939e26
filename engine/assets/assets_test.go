package assets

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeShader(t *testing.T, path string) {
	t.Helper()
	data := binary.LittleEndian.AppendUint32(nil, 0x07230203)
	data = binary.LittleEndian.AppendUint32(data, 0x00010000)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestAssetManagerIndexAndLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "shaders"), 0o755))
	writeShader(t, filepath.Join(dir, "shaders", "scene.vert.spv"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	am, err := NewAssetManager(false)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Shutdown()

	assert.Equal(t, 1, am.Count())

	res, err := am.LoadAsset("shaders/scene.vert.spv", nil)
	require.NoError(t, err)
	assert.Equal(t, resources.ResourceTypeShader, res.Type)
	assert.NotEmpty(t, res.ID)
	assert.Equal(t, []uint32{0x07230203, 0x00010000}, res.Data.([]uint32))

	again, err := am.LoadAsset("shaders/scene.vert.spv", nil)
	require.NoError(t, err)
	assert.NotEqual(t, res.ID, again.ID)

	_, err = am.LoadAsset("missing.glb", nil)
	assert.ErrorIs(t, err, core.ErrAssetNotFound)

	require.NoError(t, am.UnloadAsset(res))
	assert.Nil(t, res.Data)
}

func TestAssetManagerReportsChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.frag.spv")
	writeShader(t, path)

	am, err := NewAssetManager(true)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir))
	defer am.Shutdown()

	_, err = am.LoadAsset("scene.frag.spv", nil)
	require.NoError(t, err)

	writeShader(t, path)
	select {
	case changed := <-am.Changes():
		assert.Equal(t, path, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestDetermineAssetType(t *testing.T) {
	assert.Equal(t, resources.ResourceTypeModel, determineAssetType("trees/white_oak.glb"))
	assert.Equal(t, resources.ResourceTypeTexture, determineAssetType("Bark_Color.DDS"))
	assert.Equal(t, resources.ResourceTypeTexture, determineAssetType("leaf.webp"))
	assert.Equal(t, resources.ResourceTypeShader, determineAssetType("scene.vert.spv"))
	assert.Equal(t, resources.ResourceTypeNone, determineAssetType("README"))
}

var _ Loader = (*loaders.ModelLoader)(nil)
