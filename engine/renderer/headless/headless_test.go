package headless

import (
	"testing"
	"time"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	device    *Device
	queue     gpu.Queue
	fence     gpu.Fence
	allocator gpu.CommandAllocator
	list      gpu.CommandList
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	inst := NewInstance(opts...)
	adapters, err := inst.Adapters()
	require.NoError(t, err)

	dev, err := inst.CreateDevice(adapters[1], nil)
	require.NoError(t, err)
	t.Cleanup(dev.Destroy)

	f := &fixture{device: dev.(*Device)}
	f.queue, err = dev.CreateCommandQueue()
	require.NoError(t, err)
	f.fence, err = dev.CreateFence(0)
	require.NoError(t, err)
	f.allocator, err = dev.CreateCommandAllocator()
	require.NoError(t, err)
	f.list, err = dev.CreateCommandList(f.allocator, nil)
	require.NoError(t, err)
	return f
}

func TestDefaultAdapters(t *testing.T) {
	adapters, err := NewInstance().Adapters()
	require.NoError(t, err)
	require.Len(t, adapters, 2)
	assert.True(t, adapters[0].Software)
	assert.False(t, adapters[1].Software)
}

func TestFenceSignalOrder(t *testing.T) {
	f := newFixture(t, WithLatency(2*time.Millisecond))

	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.Execute(f.list))
	require.NoError(t, f.queue.Signal(f.fence, 1))
	require.NoError(t, f.queue.Signal(f.fence, 2))

	require.NoError(t, f.fence.Wait(2))
	assert.Equal(t, uint64(2), f.fence.CompletedValue())
	// Waiting on a reached value returns at once.
	require.NoError(t, f.fence.Wait(1))
}

func TestAllocatorResetWhileInFlight(t *testing.T) {
	f := newFixture(t, WithLatency(20*time.Millisecond))

	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.Execute(f.list))
	assert.ErrorIs(t, f.allocator.Reset(), gpu.ErrAllocatorInFlight)

	require.NoError(t, f.queue.Signal(f.fence, 1))
	require.NoError(t, f.fence.Wait(1))
	assert.NoError(t, f.allocator.Reset())
}

func TestExecuteRequiresClosedList(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.queue.Execute(f.list), gpu.ErrListOpen)

	require.NoError(t, f.list.Close())
	f.list.SetDescriptorTable(0)
	assert.ErrorIs(t, f.queue.Execute(f.list), gpu.ErrListClosed)
}

func TestCopyAndTransition(t *testing.T) {
	f := newFixture(t)
	dev := f.device

	staging, err := dev.CreateBuffer(gpu.BufferDesc{Heap: gpu.HeapUpload, Size: 1024, State: gpu.StateGenericRead})
	require.NoError(t, err)
	data, err := staging.Map()
	require.NoError(t, err)
	for i := range data[:16] {
		data[i] = byte(i)
	}
	staging.Unmap()

	tex, err := dev.CreateTexture(gpu.TextureDesc{Width: 2, Height: 2, MipLevels: 1, Format: gpu.FormatR8G8B8A8Unorm, State: gpu.StateCopyDest})
	require.NoError(t, err)

	f.list.CopyBufferToTexture(staging, tex, 0, gpu.Subresource{Width: 2, Height: 2, RowPitch: 8, Rows: 2})
	f.list.Transition(tex, gpu.StateCopyDest, gpu.StateShaderResource)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.Execute(f.list))
	require.NoError(t, f.queue.Signal(f.fence, 1))
	require.NoError(t, f.fence.Wait(1))

	ht := tex.(*Texture)
	assert.Equal(t, gpu.StateShaderResource, ht.State())
	assert.Equal(t, data[:16], ht.Mip(0))
	assert.Empty(t, dev.Faults())
}

func TestBadTransitionIsAFault(t *testing.T) {
	f := newFixture(t)
	tex, err := f.device.CreateDepthBuffer(4, 4)
	require.NoError(t, err)

	f.list.Transition(tex, gpu.StatePresent, gpu.StateRenderTarget)
	require.NoError(t, f.list.Close())
	require.NoError(t, f.queue.Execute(f.list))
	require.NoError(t, f.queue.Signal(f.fence, 1))
	require.NoError(t, f.fence.Wait(1))

	assert.Len(t, f.device.Faults(), 1)
}

func TestDestroyReleasesWaiters(t *testing.T) {
	f := newFixture(t, WithLatency(10*time.Millisecond))

	errc := make(chan error, 1)
	go func() { errc <- f.fence.Wait(5) }()

	f.device.Destroy()
	assert.ErrorIs(t, <-errc, gpu.ErrDeviceLost)
	assert.ErrorIs(t, f.queue.Signal(f.fence, 6), gpu.ErrDeviceLost)
}

func TestSwapchainPresentRotates(t *testing.T) {
	f := newFixture(t)
	sc, err := f.device.CreateSwapchain(f.queue, gpu.SwapchainDesc{Width: 4, Height: 4, BufferCount: 2, Format: gpu.FormatR8G8B8A8Unorm})
	require.NoError(t, err)

	assert.Equal(t, uint32(0), sc.CurrentBackBufferIndex())
	require.NoError(t, sc.Present(1, 0))
	require.NoError(t, f.queue.Signal(f.fence, 1))
	require.NoError(t, f.fence.Wait(1))
	assert.Equal(t, uint32(1), sc.CurrentBackBufferIndex())
	assert.Equal(t, 1, f.device.Presents())
}
