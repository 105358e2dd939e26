package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type Buffer struct {
	desc   gpu.BufferDesc
	data   []byte
	mapped bool
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

func (b *Buffer) Map() ([]byte, error) {
	if b.desc.Heap != gpu.HeapUpload {
		return nil, fmt.Errorf("only upload heap buffers can be mapped")
	}
	b.mapped = true
	return b.data, nil
}

func (b *Buffer) Unmap() {
	b.mapped = false
}

// Bytes exposes the buffer contents.
func (b *Buffer) Bytes() []byte {
	return b.data
}

func (b *Buffer) Destroy() {
	b.data = nil
}

type Texture struct {
	desc gpu.TextureDesc

	mu        sync.Mutex
	state     gpu.ResourceState
	mips      [][]byte
	destroyed bool
}

func newTexture(desc gpu.TextureDesc) *Texture {
	return &Texture{desc: desc, state: desc.State, mips: make([][]byte, desc.MipLevels)}
}

func (t *Texture) Width() uint32 {
	return t.desc.Width
}

func (t *Texture) Height() uint32 {
	return t.desc.Height
}

func (t *Texture) Format() gpu.Format {
	return t.desc.Format
}

// State is the resource state after the last executed transition.
func (t *Texture) State() gpu.ResourceState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Mip returns the bytes copied into the given mip level.
func (t *Texture) Mip(level uint32) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(level) >= len(t.mips) {
		return nil
	}
	return t.mips[level]
}

func (t *Texture) transition(before, after gpu.ResourceState) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != before {
		return fmt.Errorf("transition %s->%s on a texture in state %s", before, after, t.state)
	}
	t.state = after
	return nil
}

func (t *Texture) write(mip uint32, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(mip) >= len(t.mips) {
		return fmt.Errorf("mip %d out of range (%d levels)", mip, len(t.mips))
	}
	if t.state != gpu.StateCopyDest {
		return fmt.Errorf("copy into a texture in state %s", t.state)
	}
	t.mips[mip] = append([]byte(nil), data...)
	return nil
}

func (t *Texture) Destroy() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.destroyed = true
}

func (t *Texture) Destroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

type DescriptorHeap struct {
	desc  gpu.DescriptorHeapDesc
	mu    sync.Mutex
	slots []interface{}
}

func (h *DescriptorHeap) Capacity() uint32 {
	return h.desc.Capacity
}

// Slot returns the resource a view was created for, or nil.
func (h *DescriptorHeap) Slot(i uint32) interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	if i >= uint32(len(h.slots)) {
		return nil
	}
	return h.slots[i]
}

func (h *DescriptorHeap) put(slot uint32, resource interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if slot >= uint32(len(h.slots)) {
		return fmt.Errorf("slot %d of %d: %w", slot, len(h.slots), gpu.ErrOutOfRange)
	}
	h.slots[slot] = resource
	return nil
}

func (h *DescriptorHeap) Destroy() {}

type Pipeline struct {
	desc gpu.PipelineDesc
}

func (p *Pipeline) Destroy() {}

type Swapchain struct {
	queue   *Queue
	mu      sync.Mutex
	buffers []*Texture
	current uint32
}

func (s *Swapchain) BufferCount() uint32 {
	return uint32(len(s.buffers))
}

func (s *Swapchain) Buffer(index uint32) (gpu.Texture, error) {
	if index >= uint32(len(s.buffers)) {
		return nil, fmt.Errorf("swapchain buffer %d: %w", index, gpu.ErrOutOfRange)
	}
	return s.buffers[index], nil
}

func (s *Swapchain) CurrentBackBufferIndex() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Present queues a flip to the next back buffer behind all submitted work.
func (s *Swapchain) Present(syncInterval uint32, flags uint32) error {
	return s.queue.submit(submission{present: s})
}

func (s *Swapchain) flip() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.buffers[s.current].State(); st != gpu.StatePresent {
		return fmt.Errorf("presenting back buffer %d in state %s", s.current, st)
	}
	s.current = (s.current + 1) % uint32(len(s.buffers))
	return nil
}

func (s *Swapchain) Destroy() {}
