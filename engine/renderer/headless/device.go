package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type Device struct {
	adapter gpu.Adapter
	latency time.Duration

	mu       sync.Mutex
	queues   []*Queue
	fences   []*Fence
	executed []Command
	faults   []error
	presents int
	lost     bool
}

func newDevice(adapter gpu.Adapter, latency time.Duration) *Device {
	return &Device{adapter: adapter, latency: latency}
}

func (d *Device) Adapter() gpu.Adapter {
	return d.adapter
}

func (d *Device) CreateCommandQueue() (gpu.Queue, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lost {
		return nil, gpu.ErrDeviceLost
	}
	q := newQueue(d)
	d.queues = append(d.queues, q)
	return q, nil
}

func (d *Device) CreateSwapchain(queue gpu.Queue, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("swapchain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	sc := &Swapchain{queue: queue.(*Queue)}
	for i := uint32(0); i < desc.BufferCount; i++ {
		sc.buffers = append(sc.buffers, newTexture(gpu.TextureDesc{
			Width:     desc.Width,
			Height:    desc.Height,
			MipLevels: 1,
			Format:    desc.Format,
			State:     gpu.StatePresent,
		}))
	}
	return sc, nil
}

func (d *Device) CreateDescriptorHeap(desc gpu.DescriptorHeapDesc) (gpu.DescriptorHeap, error) {
	if desc.Capacity == 0 {
		return nil, fmt.Errorf("descriptor heap capacity must be positive")
	}
	return &DescriptorHeap{desc: desc, slots: make([]interface{}, desc.Capacity)}, nil
}

func (d *Device) CreateRenderTargetView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	return heap.(*DescriptorHeap).put(slot, texture)
}

func (d *Device) CreateDepthBuffer(width, height uint32) (gpu.Texture, error) {
	return newTexture(gpu.TextureDesc{
		Width:     width,
		Height:    height,
		MipLevels: 1,
		Format:    gpu.FormatD32Float,
		State:     gpu.StateDepthWrite,
	}), nil
}

func (d *Device) CreateDepthStencilView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	return heap.(*DescriptorHeap).put(slot, texture)
}

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	return &CommandAllocator{}, nil
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	f := newFence(d, initial)
	d.mu.Lock()
	d.fences = append(d.fences, f)
	d.mu.Unlock()
	return f, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if len(desc.VertexShader) == 0 || len(desc.FragmentShader) == 0 {
		return nil, fmt.Errorf("pipeline requires vertex and fragment shaders")
	}
	return &Pipeline{desc: desc}, nil
}

func (d *Device) CreateCommandList(allocator gpu.CommandAllocator, pipeline gpu.Pipeline) (gpu.CommandList, error) {
	l := &CommandList{}
	// A new list starts in the recording state.
	if err := l.Reset(allocator, pipeline); err != nil {
		return nil, err
	}
	return l, nil
}

func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer size must be positive")
	}
	return &Buffer{desc: desc, data: make([]byte, desc.Size)}, nil
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 {
		return nil, fmt.Errorf("invalid texture dimensions %dx%d with %d mips", desc.Width, desc.Height, desc.MipLevels)
	}
	return newTexture(desc), nil
}

func (d *Device) CreateConstantBufferView(heap gpu.DescriptorHeap, slot uint32, buffer gpu.Buffer, size uint32) error {
	if uint64(size) > buffer.Size() {
		return fmt.Errorf("constant buffer view of %d bytes exceeds buffer of %d", size, buffer.Size())
	}
	return heap.(*DescriptorHeap).put(slot, buffer)
}

func (d *Device) CreateShaderResourceView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	return heap.(*DescriptorHeap).put(slot, texture)
}

// Destroy stops the queue workers. Fence waiters still blocked return
// gpu.ErrDeviceLost.
func (d *Device) Destroy() {
	d.mu.Lock()
	if d.lost {
		d.mu.Unlock()
		return
	}
	d.lost = true
	queues := d.queues
	fences := d.fences
	d.mu.Unlock()

	for _, q := range queues {
		q.stop()
	}
	for _, f := range fences {
		f.abandon()
	}
}

// Executed returns every command the queue workers have run so far.
func (d *Device) Executed() []Command {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Command(nil), d.executed...)
}

// Faults returns the validation errors raised while executing lists.
func (d *Device) Faults() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.faults...)
}

func (d *Device) Presents() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.presents
}

// ResetLog forgets executed commands and faults.
func (d *Device) ResetLog() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = nil
	d.faults = nil
}

func (d *Device) record(cmds []Command, faults []error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.executed = append(d.executed, cmds...)
	d.faults = append(d.faults, faults...)
}

func (d *Device) presented(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil {
		d.faults = append(d.faults, err)
		return
	}
	d.presents++
}
