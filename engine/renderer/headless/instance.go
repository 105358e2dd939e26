// Package headless implements the gpu interfaces on the CPU. Submitted
// command lists are executed in order by a worker goroutine, which keeps
// fences, allocators and copies asynchronous the way a real queue is.
package headless

import (
	"fmt"
	"time"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type Option func(*Instance)

// WithLatency delays every submission by d before the worker executes it.
func WithLatency(d time.Duration) Option {
	return func(i *Instance) {
		i.latency = d
	}
}

// WithAdapters replaces the enumerated adapter list.
func WithAdapters(adapters ...gpu.Adapter) Option {
	return func(i *Instance) {
		i.adapters = adapters
	}
}

type Instance struct {
	adapters []gpu.Adapter
	latency  time.Duration
}

func NewInstance(opts ...Option) *Instance {
	i := &Instance{
		adapters: []gpu.Adapter{
			{Index: 0, Name: "Basic Render Driver", Software: true, Supported: true},
			{Index: 1, Name: "Headless Device", Supported: true},
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	return append([]gpu.Adapter(nil), i.adapters...), nil
}

func (i *Instance) CreateDevice(adapter gpu.Adapter, surface gpu.Surface) (gpu.Device, error) {
	if adapter.Index < 0 || adapter.Index >= len(i.adapters) {
		return nil, fmt.Errorf("adapter %d does not exist", adapter.Index)
	}
	return newDevice(adapter, i.latency), nil
}

func (i *Instance) Destroy() {}
