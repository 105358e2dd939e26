package headless

import (
	"fmt"
	"sync"
	"time"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type recorded struct {
	allocator *CommandAllocator
	commands  []Command
}

type submission struct {
	lists   []recorded
	fence   *Fence
	value   uint64
	present *Swapchain
}

// Queue executes submissions in submission order on its own goroutine.
type Queue struct {
	device *Device
	work   chan submission
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

func newQueue(d *Device) *Queue {
	q := &Queue{
		device: d,
		work:   make(chan submission, 64),
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

func (q *Queue) Execute(lists ...gpu.CommandList) error {
	batch := make([]recorded, 0, len(lists))
	for _, l := range lists {
		cl := l.(*CommandList)
		if cl.err != nil {
			return cl.err
		}
		if !cl.closed {
			return gpu.ErrListOpen
		}
		// The list may be reset and re-recorded while this batch is queued.
		batch = append(batch, recorded{
			allocator: cl.allocator,
			commands:  append([]Command(nil), cl.commands...),
		})
	}
	// In flight from the moment of submission, not of execution.
	for _, r := range batch {
		r.allocator.inFlight.Add(1)
	}
	if err := q.submit(submission{lists: batch}); err != nil {
		for _, r := range batch {
			r.allocator.inFlight.Add(-1)
		}
		return err
	}
	return nil
}

func (q *Queue) Signal(fence gpu.Fence, value uint64) error {
	return q.submit(submission{fence: fence.(*Fence), value: value})
}

func (q *Queue) submit(s submission) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return gpu.ErrDeviceLost
	}
	q.work <- s
	return nil
}

func (q *Queue) stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.work)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for s := range q.work {
		if q.device.latency > 0 {
			time.Sleep(q.device.latency)
		}
		for _, r := range s.lists {
			q.device.record(r.commands, replay(r.commands))
			r.allocator.inFlight.Add(-1)
		}
		if s.present != nil {
			q.device.presented(s.present.flip())
		}
		if s.fence != nil {
			s.fence.complete(s.value)
		}
	}
}

type Fence struct {
	device    *Device
	mu        sync.Mutex
	cond      *sync.Cond
	completed uint64
	abandoned bool
}

func newFence(d *Device, initial uint64) *Fence {
	f := &Fence{device: d, completed: initial}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (f *Fence) CompletedValue() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.completed
}

func (f *Fence) Wait(value uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.completed < value {
		if f.abandoned {
			return fmt.Errorf("waiting for fence value %d: %w", value, gpu.ErrDeviceLost)
		}
		f.cond.Wait()
	}
	return nil
}

func (f *Fence) complete(value uint64) {
	f.mu.Lock()
	if value > f.completed {
		f.completed = value
	}
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *Fence) abandon() {
	f.mu.Lock()
	f.abandoned = true
	f.mu.Unlock()
	f.cond.Broadcast()
}

func (f *Fence) Destroy() {}
