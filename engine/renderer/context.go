package renderer

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/spaghettifunk/grove/engine/scene"
	"golang.org/x/exp/rand"
)

// SpeciesAssets is one vegetation model. Mesh i samples texture
// TextureBase+i.
type SpeciesAssets struct {
	Model       *loaders.Model
	TextureBase uint32
}

// SceneAssets is everything InitAssets uploads.
type SceneAssets struct {
	VertexShader   []uint32
	FragmentShader []uint32
	Terrain        *loaders.Model
	Species        []SpeciesAssets
	Textures       []*loaders.TextureData
	InstanceCount  int
	Rand           *rand.Rand
}

type species struct {
	meshes      []*Mesh
	textureBase uint32
	instances   scene.Range
}

// GraphicsContext owns every GPU object of the renderer. It is created by
// Bootstrap, filled by InitAssets and released by Destroy.
type GraphicsContext struct {
	cfg core.RendererConfig

	device        gpu.Device
	queue         gpu.Queue
	swapchain     gpu.Swapchain
	rtvHeap       gpu.DescriptorHeap
	dsvHeap       gpu.DescriptorHeap
	cbvSrvHeap    gpu.DescriptorHeap
	renderTargets []gpu.Texture
	depth         gpu.Texture
	allocator     gpu.CommandAllocator
	sync          *FrameSync

	pipeline  gpu.Pipeline
	list      gpu.CommandList
	constants *ConstantBuffer
	terrain   []*Mesh
	species   []species
	textures  []gpu.Texture
	instances []scene.Instance

	viewport gpu.Viewport
	scissor  gpu.Rect
	rotation float32
}

// SelectAdapter returns the first hardware adapter able to run the renderer.
func SelectAdapter(adapters []gpu.Adapter) (gpu.Adapter, error) {
	for _, a := range adapters {
		if a.Software {
			core.LogDebug("skipping software adapter %q", a.Name)
			continue
		}
		if !a.Supported {
			core.LogDebug("skipping unsupported adapter %q", a.Name)
			continue
		}
		return a, nil
	}
	return gpu.Adapter{}, core.ErrNoAdapter
}

// Bootstrap brings up the device, presentation and the objects every frame
// needs.
func Bootstrap(instance gpu.Instance, surface gpu.Surface, cfg core.RendererConfig) (*GraphicsContext, error) {
	adapters, err := instance.Adapters()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate adapters: %w", err)
	}
	adapter, err := SelectAdapter(adapters)
	if err != nil {
		return nil, err
	}
	core.LogInfo("using adapter %q", adapter.Name)

	c := &GraphicsContext{cfg: cfg}
	if err := c.bootstrap(instance, adapter, surface); err != nil {
		c.release()
		return nil, err
	}
	return c, nil
}

func (c *GraphicsContext) bootstrap(instance gpu.Instance, adapter gpu.Adapter, surface gpu.Surface) error {
	var err error
	cfg := c.cfg

	if c.device, err = instance.CreateDevice(adapter, surface); err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}
	if c.queue, err = c.device.CreateCommandQueue(); err != nil {
		return fmt.Errorf("failed to create command queue: %w", err)
	}
	c.swapchain, err = c.device.CreateSwapchain(c.queue, gpu.SwapchainDesc{
		Width:       cfg.Width,
		Height:      cfg.Height,
		BufferCount: cfg.FrameCount,
		Format:      gpu.FormatR8G8B8A8Unorm,
	})
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}

	if c.rtvHeap, err = c.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Type:     gpu.DescriptorHeapRTV,
		Capacity: c.swapchain.BufferCount(),
	}); err != nil {
		return fmt.Errorf("failed to create RTV heap: %w", err)
	}
	if c.dsvHeap, err = c.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Type:     gpu.DescriptorHeapDSV,
		Capacity: 1,
	}); err != nil {
		return fmt.Errorf("failed to create DSV heap: %w", err)
	}
	if c.cbvSrvHeap, err = c.device.CreateDescriptorHeap(gpu.DescriptorHeapDesc{
		Type:          gpu.DescriptorHeapCBVSRV,
		Capacity:      cfg.DescriptorCapacity,
		ShaderVisible: true,
	}); err != nil {
		return fmt.Errorf("failed to create CBV/SRV heap: %w", err)
	}

	for i := uint32(0); i < c.swapchain.BufferCount(); i++ {
		rt, err := c.swapchain.Buffer(i)
		if err != nil {
			return fmt.Errorf("failed to get back buffer %d: %w", i, err)
		}
		if err := c.device.CreateRenderTargetView(c.rtvHeap, i, rt); err != nil {
			return fmt.Errorf("failed to create RTV %d: %w", i, err)
		}
		c.renderTargets = append(c.renderTargets, rt)
	}

	if c.depth, err = c.device.CreateDepthBuffer(cfg.Width, cfg.Height); err != nil {
		return fmt.Errorf("failed to create depth buffer: %w", err)
	}
	if err := c.device.CreateDepthStencilView(c.dsvHeap, 0, c.depth); err != nil {
		return fmt.Errorf("failed to create DSV: %w", err)
	}

	if c.allocator, err = c.device.CreateCommandAllocator(); err != nil {
		return fmt.Errorf("failed to create command allocator: %w", err)
	}
	if c.sync, err = NewFrameSync(c.device, c.queue, c.swapchain); err != nil {
		return err
	}

	c.viewport = gpu.Viewport{
		Width:    float32(cfg.Width),
		Height:   float32(cfg.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	c.scissor = gpu.Rect{Right: int32(cfg.Width), Bottom: int32(cfg.Height)}
	return nil
}

// InitAssets builds the pipeline, uploads geometry and textures, places the
// vegetation and fills the descriptor heap.
func (c *GraphicsContext) InitAssets(assets SceneAssets) error {
	if assets.Terrain == nil || len(assets.Terrain.Meshes) == 0 {
		return fmt.Errorf("terrain model has no meshes")
	}
	if len(assets.Species) == 0 {
		return fmt.Errorf("no vegetation species")
	}

	var err error
	c.pipeline, err = c.device.CreatePipeline(gpu.PipelineDesc{
		VertexShader:   assets.VertexShader,
		FragmentShader: assets.FragmentShader,
		ColorFormat:    gpu.FormatR8G8B8A8Unorm,
		DepthFormat:    gpu.FormatD32Float,
		TableCount:     uint32(len(assets.Textures)),
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	if c.list, err = c.device.CreateCommandList(c.allocator, c.pipeline); err != nil {
		return fmt.Errorf("failed to create command list: %w", err)
	}

	up := NewUploader(c.device, c.queue, c.allocator, c.list, c.pipeline, c.sync, c.cfg.StagingBufferSize)
	defer up.Release()

	if c.terrain, err = NewMeshes(up, assets.Terrain, c.cfg.MaxMeshes); err != nil {
		return fmt.Errorf("terrain: %w", err)
	}

	if c.instances, err = scene.Place(assets.Rand, assets.Terrain.Meshes[0], assets.InstanceCount); err != nil {
		return err
	}

	ranges := scene.Partition(assets.InstanceCount, len(assets.Species))
	for s, sp := range assets.Species {
		if n := uint32(len(sp.Model.Meshes)); sp.TextureBase+n > uint32(len(assets.Textures)) {
			return fmt.Errorf("%w: species %d uses textures %d..%d, %d loaded",
				core.ErrInvalidConfig, s, sp.TextureBase, sp.TextureBase+n-1, len(assets.Textures))
		}
		meshes, err := NewMeshes(up, sp.Model, c.cfg.MaxMeshes)
		if err != nil {
			return fmt.Errorf("species %d: %w", s, err)
		}
		c.species = append(c.species, species{
			meshes:      meshes,
			textureBase: sp.TextureBase,
			instances:   ranges[s],
		})
	}

	if c.constants, err = NewConstantBuffer(c.device, c.cfg.ConstantBufferSize); err != nil {
		return err
	}
	if c.constants.Slots() < assets.InstanceCount {
		return fmt.Errorf("%w: %d instances, %d slots", core.ErrConstantBufferOverflow, assets.InstanceCount, c.constants.Slots())
	}

	for i, tex := range assets.Textures {
		texture, err := up.UploadTexture(tex)
		if err != nil {
			return fmt.Errorf("texture %d: %w", i, err)
		}
		c.textures = append(c.textures, texture)

		// Every table pairs a CBV over the start of the constant buffer with
		// the texture SRV.
		slot := uint32(2 * i)
		if err := c.device.CreateConstantBufferView(c.cbvSrvHeap, slot, c.constants.Buffer(), uint32(c.constants.Stride())); err != nil {
			return fmt.Errorf("failed to create CBV %d: %w", slot, err)
		}
		if err := c.device.CreateShaderResourceView(c.cbvSrvHeap, slot+1, texture); err != nil {
			return fmt.Errorf("failed to create SRV %d: %w", slot+1, err)
		}
	}

	core.LogInfo("scene ready: %d terrain meshes, %d species, %d textures, %d instances",
		len(c.terrain), len(c.species), len(c.textures), len(c.instances))
	return nil
}

func (c *GraphicsContext) Sync() *FrameSync {
	return c.sync
}

func (c *GraphicsContext) Device() gpu.Device {
	return c.device
}

func (c *GraphicsContext) Instances() []scene.Instance {
	return c.instances
}

// Destroy waits for the GPU to go idle and releases everything.
func (c *GraphicsContext) Destroy() error {
	var err error
	if c.sync != nil {
		err = c.sync.WaitForFrame()
	}
	c.release()
	return err
}

func (c *GraphicsContext) release() {
	for _, t := range c.textures {
		t.Destroy()
	}
	c.textures = nil
	for _, sp := range c.species {
		destroyMeshes(sp.meshes)
	}
	c.species = nil
	destroyMeshes(c.terrain)
	c.terrain = nil
	if c.constants != nil {
		c.constants.Destroy()
		c.constants = nil
	}
	if c.list != nil {
		c.list.Destroy()
		c.list = nil
	}
	if c.pipeline != nil {
		c.pipeline.Destroy()
		c.pipeline = nil
	}
	if c.sync != nil {
		c.sync.Destroy()
		c.sync = nil
	}
	if c.allocator != nil {
		c.allocator.Destroy()
		c.allocator = nil
	}
	if c.depth != nil {
		c.depth.Destroy()
		c.depth = nil
	}
	for _, h := range []gpu.DescriptorHeap{c.cbvSrvHeap, c.dsvHeap, c.rtvHeap} {
		if h != nil {
			h.Destroy()
		}
	}
	c.cbvSrvHeap, c.dsvHeap, c.rtvHeap = nil, nil, nil
	c.renderTargets = nil
	if c.swapchain != nil {
		c.swapchain.Destroy()
		c.swapchain = nil
	}
	if c.device != nil {
		c.device.Destroy()
		c.device = nil
	}
}
