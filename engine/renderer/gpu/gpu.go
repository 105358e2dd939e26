// Package gpu declares the explicit graphics API the renderer is written
// against. The vulkan package drives real hardware; the headless package
// executes the same calls on the CPU.
package gpu

// Surface is an opaque presentation target obtained from the platform layer.
type Surface interface{}

type Instance interface {
	Adapters() ([]Adapter, error)
	CreateDevice(adapter Adapter, surface Surface) (Device, error)
	Destroy()
}

type Device interface {
	CreateCommandQueue() (Queue, error)
	CreateSwapchain(queue Queue, desc SwapchainDesc) (Swapchain, error)
	CreateDescriptorHeap(desc DescriptorHeapDesc) (DescriptorHeap, error)
	CreateRenderTargetView(heap DescriptorHeap, slot uint32, texture Texture) error
	CreateDepthBuffer(width, height uint32) (Texture, error)
	CreateDepthStencilView(heap DescriptorHeap, slot uint32, texture Texture) error
	CreateCommandAllocator() (CommandAllocator, error)
	CreateFence(initial uint64) (Fence, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)
	CreateCommandList(allocator CommandAllocator, pipeline Pipeline) (CommandList, error)
	CreateBuffer(desc BufferDesc) (Buffer, error)
	CreateTexture(desc TextureDesc) (Texture, error)
	CreateConstantBufferView(heap DescriptorHeap, slot uint32, buffer Buffer, size uint32) error
	CreateShaderResourceView(heap DescriptorHeap, slot uint32, texture Texture) error
	Destroy()
}

type Queue interface {
	Execute(lists ...CommandList) error
	// Signal sets the fence to value once all previously submitted work is done.
	Signal(fence Fence, value uint64) error
}

type Fence interface {
	CompletedValue() uint64
	// Wait blocks until CompletedValue() >= value.
	Wait(value uint64) error
	Destroy()
}

type Swapchain interface {
	BufferCount() uint32
	Buffer(index uint32) (Texture, error)
	CurrentBackBufferIndex() uint32
	Present(syncInterval uint32, flags uint32) error
	Destroy()
}

type CommandAllocator interface {
	// Reset fails with ErrAllocatorInFlight while the GPU may still read
	// commands recorded from it.
	Reset() error
	Destroy()
}

type CommandList interface {
	Reset(allocator CommandAllocator, pipeline Pipeline) error
	Close() error

	SetPipeline(pipeline Pipeline)
	SetDescriptorHeap(heap DescriptorHeap)
	SetDescriptorTable(slot uint32)
	SetConstantBuffer(buffer Buffer, offset uint64)
	SetViewport(viewport Viewport)
	SetScissor(rect Rect)
	Transition(resource Texture, before, after ResourceState)
	SetRenderTarget(rtvSlot uint32, dsvSlot uint32)
	ClearRenderTarget(rtvSlot uint32, color [4]float32)
	ClearDepth(dsvSlot uint32, depth float32)
	SetPrimitiveTopology(topology PrimitiveTopology)
	SetVertexBuffer(view VertexBufferView)
	SetIndexBuffer(view IndexBufferView)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	CopyBufferToTexture(src Buffer, dst Texture, mip uint32, sub Subresource)
	Destroy()
}

type Buffer interface {
	Size() uint64
	// Map returns a CPU view of an upload-heap buffer, valid until Unmap.
	Map() ([]byte, error)
	Unmap()
	Destroy()
}

type Texture interface {
	Width() uint32
	Height() uint32
	Destroy()
}

type DescriptorHeap interface {
	Capacity() uint32
	Destroy()
}

type Pipeline interface {
	Destroy()
}
