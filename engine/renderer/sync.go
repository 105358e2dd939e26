package renderer

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// FrameSync serializes the CPU against the GPU with one fence whose value
// grows by one per wait.
type FrameSync struct {
	queue        gpu.Queue
	swapchain    gpu.Swapchain
	fence        gpu.Fence
	fenceValue   uint64
	lastSignaled uint64
	frameIndex   uint32
}

func NewFrameSync(device gpu.Device, queue gpu.Queue, swapchain gpu.Swapchain) (*FrameSync, error) {
	fence, err := device.CreateFence(0)
	if err != nil {
		return nil, fmt.Errorf("failed to create frame fence: %w", err)
	}
	return &FrameSync{
		queue:      queue,
		swapchain:  swapchain,
		fence:      fence,
		fenceValue: 1,
		frameIndex: swapchain.CurrentBackBufferIndex(),
	}, nil
}

// WaitForFrame blocks until every command submitted so far has executed,
// then picks up the swapchain's current back buffer.
func (s *FrameSync) WaitForFrame() error {
	value := s.fenceValue
	if err := s.queue.Signal(s.fence, value); err != nil {
		return fmt.Errorf("failed to signal fence value %d: %w", value, err)
	}
	s.lastSignaled = value
	s.fenceValue++

	if s.fence.CompletedValue() < value {
		if err := s.fence.Wait(value); err != nil {
			return err
		}
	}
	s.frameIndex = s.swapchain.CurrentBackBufferIndex()
	return nil
}

func (s *FrameSync) LastSignaled() uint64 {
	return s.lastSignaled
}

func (s *FrameSync) FrameIndex() uint32 {
	return s.frameIndex
}

func (s *FrameSync) Fence() gpu.Fence {
	return s.fence
}

func (s *FrameSync) Destroy() {
	s.fence.Destroy()
}
