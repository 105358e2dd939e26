package renderer

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/spaghettifunk/grove/engine/renderer/headless"
	"github.com/spaghettifunk/grove/engine/scene"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var shaderStub = []uint32{0x07230203, 0x00010000}

func testConfig() core.RendererConfig {
	cfg := core.DefaultConfig().Renderer
	cfg.Backend = "headless"
	cfg.Width, cfg.Height = 64, 32
	cfg.StagingBufferSize = 1 << 16
	cfg.ConstantBufferSize = 16 * core.ConstantSlotSize
	return cfg
}

// meshSource builds a mesh of vertexCount vertices and one triangle per
// three vertices, with 16-bit indices.
func meshSource(vertexCount int) loaders.MeshSource {
	m := loaders.MeshSource{
		Name:         "mesh",
		VertexStride: loaders.VertexStride,
		VertexCount:  vertexCount,
		Vertices:     make([]byte, vertexCount*loaders.VertexStride),
		IndexWidth:   2,
	}
	for i := 0; i < vertexCount; i++ {
		binary.LittleEndian.PutUint32(m.Vertices[i*m.VertexStride:], gomath.Float32bits(float32(i)))
	}
	for i := 0; i < vertexCount/3*3; i++ {
		m.Indices = binary.LittleEndian.AppendUint16(m.Indices, uint16(i))
	}
	m.IndexCount = len(m.Indices) / 2
	return m
}

func texture(name string) *loaders.TextureData {
	return &loaders.TextureData{
		Name:   name,
		Width:  2,
		Height: 2,
		Format: gpu.FormatR8G8B8A8Unorm,
		Mips: []loaders.MipLevel{{
			Width: 2, Height: 2, RowPitch: 8, Rows: 2,
			Data: []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16},
		}},
	}
}

func newScene(t *testing.T, instances int) (*GraphicsContext, *headless.Device) {
	t.Helper()
	c, err := Bootstrap(headless.NewInstance(), nil, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { c.Destroy() })

	err = c.InitAssets(SceneAssets{
		VertexShader:   shaderStub,
		FragmentShader: shaderStub,
		Terrain:        &loaders.Model{Meshes: []loaders.MeshSource{meshSource(1000)}},
		Species: []SpeciesAssets{
			{Model: &loaders.Model{Meshes: []loaders.MeshSource{meshSource(30)}}, TextureBase: 0},
		},
		Textures:      []*loaders.TextureData{texture("ground")},
		InstanceCount: instances,
		Rand:          scene.NewRand(3),
	})
	require.NoError(t, err)
	return c, c.Device().(*headless.Device)
}

func TestSelectAdapter(t *testing.T) {
	a, err := SelectAdapter([]gpu.Adapter{
		{Index: 0, Name: "warp", Software: true, Supported: true},
		{Index: 1, Name: "old", Supported: false},
		{Index: 2, Name: "gpu", Supported: true},
		{Index: 3, Name: "gpu2", Supported: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Index)

	_, err = SelectAdapter([]gpu.Adapter{{Name: "warp", Software: true, Supported: true}})
	assert.ErrorIs(t, err, core.ErrNoAdapter)
}

func TestBootstrapWithoutHardwareAdapter(t *testing.T) {
	inst := headless.NewInstance(headless.WithAdapters(gpu.Adapter{Name: "warp", Software: true, Supported: true}))
	_, err := Bootstrap(inst, nil, testConfig())
	assert.ErrorIs(t, err, core.ErrNoAdapter)
}

func TestEndToEndDraws(t *testing.T) {
	c, dev := newScene(t, 8)
	assert.Empty(t, dev.Faults())

	dev.ResetLog()
	require.NoError(t, c.Update(math.NewMat4Identity(), 0.016))
	require.NoError(t, c.Render())

	draws := headless.Draws(dev.Executed())
	require.Len(t, draws, 8)

	terrain := draws[0]
	assert.Equal(t, uint32(999), terrain.IndexCount)
	assert.Equal(t, uint32(0), terrain.Table)
	assert.Equal(t, uint64(0), terrain.ConstantOffset)
	assert.Equal(t, uint32(loaders.VertexStride), terrain.VertexStride)

	offsets := map[uint64]bool{}
	for i, d := range draws {
		assert.Equal(t, uint64(i*256), d.ConstantOffset)
		assert.Zero(t, d.ConstantOffset%256)
		assert.Equal(t, uint32(1), d.InstanceCount)
		offsets[d.ConstantOffset] = true
	}
	assert.Len(t, offsets, 8)
	for _, d := range draws[1:] {
		assert.Equal(t, uint32(30), d.IndexCount)
	}
	assert.Empty(t, dev.Faults())
	assert.Equal(t, 1, dev.Presents())
}

func TestRecordedFrameShape(t *testing.T) {
	c, dev := newScene(t, 4)
	dev.ResetLog()
	require.NoError(t, c.Render())

	cmds := dev.Executed()
	require.NotEmpty(t, cmds)
	var transitions []headless.Command
	for _, cmd := range cmds {
		if cmd.Op == headless.OpTransition {
			transitions = append(transitions, cmd)
		}
		if cmd.Op == headless.OpClearRenderTarget {
			assert.Equal(t, [4]float32{0.8, 0.85, 1.0, 1.0}, cmd.Color)
		}
	}
	require.Len(t, transitions, 2)
	assert.Equal(t, gpu.StatePresent, transitions[0].Before)
	assert.Equal(t, gpu.StateRenderTarget, transitions[0].After)
	assert.Equal(t, gpu.StateRenderTarget, transitions[1].Before)
	assert.Equal(t, gpu.StatePresent, transitions[1].After)
	assert.Equal(t, headless.OpTransition, cmds[len(cmds)-1].Op)
}

func TestFenceCompletedAtEveryReset(t *testing.T) {
	c, dev := newScene(t, 8)
	sync := c.Sync()

	for frame := 0; frame < 5; frame++ {
		assert.GreaterOrEqual(t, sync.Fence().CompletedValue(), sync.LastSignaled())
		before := sync.LastSignaled()
		require.NoError(t, c.Update(math.NewMat4Identity(), 0.016))
		require.NoError(t, c.Render())
		assert.Equal(t, before+1, sync.LastSignaled())
		assert.Equal(t, uint32((frame+1)%2), sync.FrameIndex())
	}
	assert.Empty(t, dev.Faults())
	assert.Equal(t, 5, dev.Presents())
}

func TestUpdateWritesTerrainBlock(t *testing.T) {
	c, _ := newScene(t, 4)
	view := math.NewMat4Translation(math.NewVec3(0, 0, 10))
	require.NoError(t, c.Update(view, 0))

	data := c.constants.Buffer().(*headless.Buffer).Bytes()
	read := func(offset int) math.Mat4 {
		var m math.Mat4
		for i := range m.Data {
			m.Data[i] = gomath.Float32frombits(binary.LittleEndian.Uint32(data[offset+i*4:]))
		}
		return m
	}

	proj := math.NewMat4PerspectiveFovLH(1.0, 2.0, 0.1, 100)
	assert.True(t, read(0).Compare(view.Mul(proj), 1e-5))
	assert.True(t, read(64).Compare(math.NewMat4Identity(), 0))

	// Instance worlds carry the anchor as their translation.
	inst := c.Instances()[1]
	world := read(256 + 64)
	assert.InDelta(t, inst.Position.X, world.Data[12], 1e-5)
	assert.InDelta(t, inst.Position.Y, world.Data[13], 1e-5)
	assert.InDelta(t, inst.Position.Z, world.Data[14], 1e-5)
}

func TestConstantBufferOffsets(t *testing.T) {
	dev, err := headless.NewInstance().CreateDevice(gpu.Adapter{Index: 1}, nil)
	require.NoError(t, err)
	defer dev.Destroy()

	cb, err := NewConstantBuffer(dev, 8*256)
	require.NoError(t, err)
	assert.Equal(t, uint64(256), cb.Stride())
	assert.Equal(t, 8, cb.Slots())

	for i := 0; i < 8; i++ {
		offset, err := cb.Offset(i)
		require.NoError(t, err)
		assert.Equal(t, uint64(i*256), offset)
		assert.LessOrEqual(t, offset+ConstantBlockSize, cb.Buffer().Size())
	}
	_, err = cb.Offset(8)
	assert.ErrorIs(t, err, core.ErrConstantBufferOverflow)
	_, err = cb.Offset(-1)
	assert.ErrorIs(t, err, core.ErrConstantBufferOverflow)
	assert.ErrorIs(t, cb.Write(8, &ConstantBlock{}), core.ErrConstantBufferOverflow)
}

func TestMeshCapacity(t *testing.T) {
	c, err := Bootstrap(headless.NewInstance(), nil, testConfig())
	require.NoError(t, err)
	defer c.Destroy()

	up := NewUploader(c.device, c.queue, c.allocator, nil, nil, c.sync, 1024)
	model := &loaders.Model{Meshes: []loaders.MeshSource{meshSource(3), meshSource(3), meshSource(3)}}

	_, err = NewMeshes(up, model, 2)
	assert.ErrorIs(t, err, core.ErrCapacityExceeded)

	meshes, err := NewMeshes(up, model, 3)
	require.NoError(t, err)
	assert.Len(t, meshes, 3)
	assert.Equal(t, gpu.IndexFormatUint16, meshes[0].IndexView.Format)

	bad := &loaders.Model{Meshes: []loaders.MeshSource{meshSource(3)}}
	bad.Meshes[0].IndexWidth = 1
	_, err = NewMeshes(up, bad, 3)
	assert.ErrorIs(t, err, core.ErrUnsupportedIndexWidth)
}

func TestUploadTextureStagingOverflow(t *testing.T) {
	cfg := testConfig()
	cfg.StagingBufferSize = 256
	c, err := Bootstrap(headless.NewInstance(), nil, cfg)
	require.NoError(t, err)
	defer c.Destroy()

	err = c.InitAssets(SceneAssets{
		VertexShader:   shaderStub,
		FragmentShader: shaderStub,
		Terrain:        &loaders.Model{Meshes: []loaders.MeshSource{meshSource(30)}},
		Species:        []SpeciesAssets{{Model: &loaders.Model{Meshes: []loaders.MeshSource{meshSource(3)}}}},
		Textures:       []*loaders.TextureData{texture("a"), texture("b")},
		InstanceCount:  4,
		Rand:           scene.NewRand(1),
	})
	// Two 256-byte rows do not fit in 256 bytes.
	assert.ErrorIs(t, err, core.ErrStagingOverflow)
}

func TestUploadTextureCopiesAllMips(t *testing.T) {
	c, dev := newScene(t, 4)
	tex := c.textures[0].(*headless.Texture)
	assert.Equal(t, gpu.StateShaderResource, tex.State())

	// Rows are staged at a 256-byte pitch.
	mip := tex.Mip(0)
	require.Len(t, mip, 512)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, mip[:8])
	assert.Equal(t, []byte{9, 10, 11, 12, 13, 14, 15, 16}, mip[256:264])
	assert.Empty(t, dev.Faults())
}

func TestStagingLayout(t *testing.T) {
	tex := &loaders.TextureData{Mips: []loaders.MipLevel{
		{Width: 100, Height: 3, RowPitch: 400, Rows: 3},
		{Width: 50, Height: 1, RowPitch: 200, Rows: 1},
	}}
	subs, total := StagingLayout(tex)
	require.Len(t, subs, 2)
	assert.Equal(t, uint64(0), subs[0].Offset)
	assert.Equal(t, uint32(512), subs[0].RowPitch)
	// 3 rows of 512 end at 1536, already 512 aligned.
	assert.Equal(t, uint64(1536), subs[1].Offset)
	assert.Equal(t, uint32(256), subs[1].RowPitch)
	assert.Equal(t, uint64(1792), total)
}

func TestDestroyDrains(t *testing.T) {
	c, err := Bootstrap(headless.NewInstance(), nil, testConfig())
	require.NoError(t, err)
	sync := c.Sync()
	fence := sync.Fence()
	require.NoError(t, c.Destroy())
	assert.GreaterOrEqual(t, fence.CompletedValue(), uint64(1))
}

func TestTwoSpeciesTablesAndSlots(t *testing.T) {
	c, err := Bootstrap(headless.NewInstance(), nil, testConfig())
	require.NoError(t, err)
	t.Cleanup(func() { c.Destroy() })

	textures := make([]*loaders.TextureData, 6)
	for i := range textures {
		textures[i] = texture("t")
	}
	err = c.InitAssets(SceneAssets{
		VertexShader:   shaderStub,
		FragmentShader: shaderStub,
		Terrain:        &loaders.Model{Meshes: []loaders.MeshSource{meshSource(1000)}},
		Species: []SpeciesAssets{
			{Model: &loaders.Model{Meshes: []loaders.MeshSource{meshSource(30), meshSource(6)}}, TextureBase: 1},
			{Model: &loaders.Model{Meshes: []loaders.MeshSource{meshSource(9)}}, TextureBase: 5},
		},
		Textures:      textures,
		InstanceCount: 8,
		Rand:          scene.NewRand(5),
	})
	require.NoError(t, err)
	dev := c.Device().(*headless.Device)

	dev.ResetLog()
	require.NoError(t, c.Update(math.NewMat4Identity(), 0))
	require.NoError(t, c.Render())

	draws := headless.Draws(dev.Executed())
	require.Len(t, draws, 11)

	type call struct {
		table  uint32
		offset uint64
		count  uint32
	}
	expected := []call{
		{0, 0, 999},
		// First species, slots 1..3, one pass per mesh.
		{2, 256, 30}, {2, 512, 30}, {2, 768, 30},
		{4, 256, 6}, {4, 512, 6}, {4, 768, 6},
		// Second species, slots 4..7.
		{10, 1024, 9}, {10, 1280, 9}, {10, 1536, 9}, {10, 1792, 9},
	}
	for i, want := range expected {
		assert.Equal(t, want.table, draws[i].Table, "draw %d", i)
		assert.Equal(t, want.offset, draws[i].ConstantOffset, "draw %d", i)
		assert.Equal(t, want.count, draws[i].IndexCount, "draw %d", i)
	}
	assert.Empty(t, dev.Faults())
}

type signalFailQueue struct {
	gpu.Queue
}

func (q signalFailQueue) Signal(fence gpu.Fence, value uint64) error {
	return gpu.ErrDeviceLost
}

func TestUploadTextureReleasesTextureWhenWaitFails(t *testing.T) {
	c, _ := newScene(t, 4)

	sync, err := NewFrameSync(c.device, signalFailQueue{c.queue}, c.swapchain)
	require.NoError(t, err)
	defer sync.Destroy()
	allocator, err := c.device.CreateCommandAllocator()
	require.NoError(t, err)
	defer allocator.Destroy()
	list, err := c.device.CreateCommandList(allocator, c.pipeline)
	require.NoError(t, err)
	defer list.Destroy()

	var created *headless.Texture
	up := NewUploader(trackingDevice{Device: c.device, created: &created}, c.queue, allocator, list, c.pipeline, sync, 1<<16)
	defer up.Release()

	_, err = up.UploadTexture(texture("leaf"))
	assert.ErrorIs(t, err, gpu.ErrDeviceLost)
	require.NotNil(t, created)
	assert.True(t, created.Destroyed())
}

// trackingDevice remembers the last texture it created.
type trackingDevice struct {
	gpu.Device
	created **headless.Texture
}

func (d trackingDevice) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	tex, err := d.Device.CreateTexture(desc)
	if err == nil {
		*d.created = tex.(*headless.Texture)
	}
	return tex, err
}
