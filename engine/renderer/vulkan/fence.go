package vulkan

import (
	"fmt"
	gomath "math"
	"sync"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/containers"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type submission struct {
	serial uint64
	fence  vk.Fence
}

// Queue tags every submission with a serial number and a vkFence. Serials
// complete in order, which is what monotonic fences and allocator resets
// are built on.
type Queue struct {
	device *Device
	handle vk.Queue

	mu        sync.Mutex
	serial    uint64
	completed uint64
	pending   *containers.RingQueue[submission]
	free      []vk.Fence
}

func newQueue(d *Device) *Queue {
	q := &Queue{device: d, pending: containers.NewRingQueue[submission](8)}
	vk.GetDeviceQueue(d.handle, d.family, 0, &q.handle)
	return q
}

func (q *Queue) takeFence() (vk.Fence, error) {
	if n := len(q.free); n > 0 {
		f := q.free[n-1]
		q.free = q.free[:n-1]
		if err := check(vk.ResetFences(q.device.handle, 1, []vk.Fence{f}), "vkResetFences"); err != nil {
			return nil, err
		}
		return f, nil
	}
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	var f vk.Fence
	if err := check(vk.CreateFence(q.device.handle, &info, nil, &f), "vkCreateFence"); err != nil {
		return nil, err
	}
	return f, nil
}

// submit hands the batches to the GPU and returns the serial that
// completes with them. q.mu must be held.
func (q *Queue) submit(infos []vk.SubmitInfo) (uint64, error) {
	f, err := q.takeFence()
	if err != nil {
		return 0, err
	}
	err = q.device.locks.SafeCall(QueueManagement, func() error {
		return check(vk.QueueSubmit(q.handle, uint32(len(infos)), infos, f), "vkQueueSubmit")
	})
	if err != nil {
		q.free = append(q.free, f)
		return 0, err
	}
	q.serial++
	q.pending.Enqueue(submission{serial: q.serial, fence: f})
	return q.serial, nil
}

// retire moves signaled submissions to completed. q.mu must be held.
func (q *Queue) retire() {
	for !q.pending.IsEmpty() {
		s, _ := q.pending.Peek()
		if vk.GetFenceStatus(q.device.handle, s.fence) != vk.Success {
			return
		}
		q.completed = s.serial
		q.free = append(q.free, s.fence)
		q.pending.Dequeue()
	}
}

func (q *Queue) completedSerial() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retire()
	return q.completed
}

func (q *Queue) waitSerial(serial uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := 0; i < q.pending.Len(); i++ {
		s := q.pending.At(i)
		if s.serial < serial {
			continue
		}
		result := vk.WaitForFences(q.device.handle, 1, []vk.Fence{s.fence}, vk.True, gomath.MaxUint64)
		if result == vk.ErrorDeviceLost {
			return fmt.Errorf("waiting for submission %d: %w", serial, gpu.ErrDeviceLost)
		}
		if err := check(result, "vkWaitForFences"); err != nil {
			return err
		}
		break
	}
	q.retire()
	return nil
}

func (q *Queue) Execute(lists ...gpu.CommandList) error {
	var (
		buffers    []vk.CommandBuffer
		waits      []vk.Semaphore
		waitStages []vk.PipelineStageFlags
		signals    []vk.Semaphore
		allocators []*CommandAllocator
	)
	for _, l := range lists {
		cl, ok := l.(*CommandList)
		if !ok {
			return fmt.Errorf("unexpected command list type %T", l)
		}
		if cl.err != nil {
			return cl.err
		}
		if cl.open {
			return gpu.ErrListOpen
		}
		buffers = append(buffers, cl.handle)
		allocators = append(allocators, cl.allocator)
		if cl.acquires != nil {
			if sem, ok := cl.acquires.waitSemaphore(); ok {
				waits = append(waits, sem)
				waitStages = append(waitStages, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
			}
		}
		if cl.presents != nil {
			signals = append(signals, cl.presents.signalSemaphore())
		}
	}

	info := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	serial, err := q.submit([]vk.SubmitInfo{info})
	if err != nil {
		return err
	}
	for _, a := range allocators {
		a.lastSerial.Store(serial)
	}
	return nil
}

func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	f, ok := fence.(*Fence)
	if !ok {
		return fmt.Errorf("unexpected fence type %T", fence)
	}
	q.mu.Lock()
	serial, err := q.submit(nil)
	q.mu.Unlock()
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.pending.Enqueue(signal{value: value, serial: serial})
	f.mu.Unlock()
	return nil
}

func (q *Queue) destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	vk.QueueWaitIdle(q.handle)
	q.retire()
	for !q.pending.IsEmpty() {
		s, _ := q.pending.Dequeue()
		vk.DestroyFence(q.device.handle, s.fence, nil)
	}
	for _, f := range q.free {
		vk.DestroyFence(q.device.handle, f, nil)
	}
	q.free = nil
}

type signal struct {
	value  uint64
	serial uint64
}

// Fence is a monotonic fence built on queue serials.
type Fence struct {
	queue *Queue

	mu        sync.Mutex
	completed uint64
	pending   *containers.RingQueue[signal]
}

func (d *Device) CreateFence(initial uint64) (gpu.Fence, error) {
	if d.queue == nil {
		return nil, fmt.Errorf("create the command queue before any fence")
	}
	return &Fence{queue: d.queue, completed: initial, pending: containers.NewRingQueue[signal](4)}, nil
}

func (f *Fence) update(done uint64) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	for !f.pending.IsEmpty() {
		s, _ := f.pending.Peek()
		if s.serial > done {
			break
		}
		if s.value > f.completed {
			f.completed = s.value
		}
		f.pending.Dequeue()
	}
	return f.completed
}

func (f *Fence) CompletedValue() uint64 {
	return f.update(f.queue.completedSerial())
}

func (f *Fence) Wait(value uint64) error {
	if f.CompletedValue() >= value {
		return nil
	}
	f.mu.Lock()
	var serial uint64
	for i := 0; i < f.pending.Len(); i++ {
		if s := f.pending.At(i); s.value >= value {
			serial = s.serial
			break
		}
	}
	f.mu.Unlock()
	if serial == 0 {
		err := fmt.Errorf("fence value %d was never signaled", value)
		core.LogError(err.Error())
		return err
	}
	if err := f.queue.waitSerial(serial); err != nil {
		return err
	}
	f.CompletedValue()
	return nil
}

func (f *Fence) Destroy() {}
