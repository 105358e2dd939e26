package headless

import (
	"fmt"
	"sync/atomic"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type CommandAllocator struct {
	inFlight atomic.Int64
	resets   int
}

func (a *CommandAllocator) Reset() error {
	if a.inFlight.Load() > 0 {
		return gpu.ErrAllocatorInFlight
	}
	a.resets++
	return nil
}

// Resets counts the successful resets.
func (a *CommandAllocator) Resets() int {
	return a.resets
}

func (a *CommandAllocator) Destroy() {}

type Op uint8

const (
	OpSetPipeline Op = iota
	OpSetDescriptorHeap
	OpSetDescriptorTable
	OpSetConstantBuffer
	OpSetViewport
	OpSetScissor
	OpTransition
	OpSetRenderTarget
	OpClearRenderTarget
	OpClearDepth
	OpSetPrimitiveTopology
	OpSetVertexBuffer
	OpSetIndexBuffer
	OpDrawIndexed
	OpCopyBufferToTexture
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op       Op
	Slot     uint32
	Offset   uint64
	Before   gpu.ResourceState
	After    gpu.ResourceState
	Color    [4]float32
	Depth    float32
	Viewport gpu.Viewport
	Scissor  gpu.Rect

	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32

	Texture      *Texture
	Buffer       *Buffer
	Heap         *DescriptorHeap
	Pipeline     *Pipeline
	VertexView   gpu.VertexBufferView
	IndexView    gpu.IndexBufferView
	Mip          uint32
	Subresource  gpu.Subresource
	RenderTarget uint32
}

type CommandList struct {
	allocator *CommandAllocator
	commands  []Command
	closed    bool
	err       error
}

func (l *CommandList) Reset(allocator gpu.CommandAllocator, pipeline gpu.Pipeline) error {
	l.allocator = allocator.(*CommandAllocator)
	l.commands = l.commands[:0]
	l.closed = false
	l.err = nil
	if pipeline != nil {
		l.SetPipeline(pipeline)
	}
	return nil
}

func (l *CommandList) Close() error {
	if l.closed {
		return gpu.ErrListClosed
	}
	l.closed = true
	return l.err
}

func (l *CommandList) add(c Command) {
	if l.closed {
		l.err = gpu.ErrListClosed
		return
	}
	l.commands = append(l.commands, c)
}

func (l *CommandList) SetPipeline(pipeline gpu.Pipeline) {
	l.add(Command{Op: OpSetPipeline, Pipeline: pipeline.(*Pipeline)})
}

func (l *CommandList) SetDescriptorHeap(heap gpu.DescriptorHeap) {
	l.add(Command{Op: OpSetDescriptorHeap, Heap: heap.(*DescriptorHeap)})
}

func (l *CommandList) SetDescriptorTable(slot uint32) {
	l.add(Command{Op: OpSetDescriptorTable, Slot: slot})
}

func (l *CommandList) SetConstantBuffer(buffer gpu.Buffer, offset uint64) {
	l.add(Command{Op: OpSetConstantBuffer, Buffer: buffer.(*Buffer), Offset: offset})
}

func (l *CommandList) SetViewport(viewport gpu.Viewport) {
	l.add(Command{Op: OpSetViewport, Viewport: viewport})
}

func (l *CommandList) SetScissor(rect gpu.Rect) {
	l.add(Command{Op: OpSetScissor, Scissor: rect})
}

func (l *CommandList) Transition(resource gpu.Texture, before, after gpu.ResourceState) {
	l.add(Command{Op: OpTransition, Texture: resource.(*Texture), Before: before, After: after})
}

func (l *CommandList) SetRenderTarget(rtvSlot uint32, dsvSlot uint32) {
	l.add(Command{Op: OpSetRenderTarget, RenderTarget: rtvSlot, Slot: dsvSlot})
}

func (l *CommandList) ClearRenderTarget(rtvSlot uint32, color [4]float32) {
	l.add(Command{Op: OpClearRenderTarget, RenderTarget: rtvSlot, Color: color})
}

func (l *CommandList) ClearDepth(dsvSlot uint32, depth float32) {
	l.add(Command{Op: OpClearDepth, Slot: dsvSlot, Depth: depth})
}

func (l *CommandList) SetPrimitiveTopology(topology gpu.PrimitiveTopology) {
	l.add(Command{Op: OpSetPrimitiveTopology, Slot: uint32(topology)})
}

func (l *CommandList) SetVertexBuffer(view gpu.VertexBufferView) {
	l.add(Command{Op: OpSetVertexBuffer, VertexView: view})
}

func (l *CommandList) SetIndexBuffer(view gpu.IndexBufferView) {
	l.add(Command{Op: OpSetIndexBuffer, IndexView: view})
}

func (l *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	l.add(Command{
		Op:            OpDrawIndexed,
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
	})
}

func (l *CommandList) CopyBufferToTexture(src gpu.Buffer, dst gpu.Texture, mip uint32, sub gpu.Subresource) {
	l.add(Command{
		Op:          OpCopyBufferToTexture,
		Buffer:      src.(*Buffer),
		Texture:     dst.(*Texture),
		Mip:         mip,
		Subresource: sub,
	})
}

func (l *CommandList) Destroy() {}

// replay runs a snapshot of a list on the worker goroutine and returns
// the validation faults.
func replay(commands []Command) []error {
	var (
		faults   []error
		pipeline bool
		heap     *DescriptorHeap
		target   bool
		vertex   bool
		index    *gpu.IndexBufferView
		cbuffer  *Buffer
	)
	fault := func(i int, format string, args ...interface{}) {
		faults = append(faults, fmt.Errorf("command %d: "+format, append([]interface{}{i}, args...)...))
	}

	for i, c := range commands {
		switch c.Op {
		case OpSetPipeline:
			pipeline = true
		case OpSetDescriptorHeap:
			heap = c.Heap
		case OpSetDescriptorTable:
			if heap == nil {
				fault(i, "descriptor table set without a heap")
			} else if c.Slot >= heap.Capacity() {
				fault(i, "descriptor table %d: %v", c.Slot, gpu.ErrOutOfRange)
			}
		case OpSetConstantBuffer:
			cbuffer = c.Buffer
			if c.Offset%gpu.ConstantBufferAlignment != 0 || c.Offset >= c.Buffer.Size() {
				fault(i, "constant buffer offset %d invalid for %d bytes", c.Offset, c.Buffer.Size())
			}
		case OpTransition:
			if err := c.Texture.transition(c.Before, c.After); err != nil {
				fault(i, "%v", err)
			}
		case OpSetRenderTarget:
			target = true
		case OpSetVertexBuffer:
			vertex = c.VertexView.Buffer != nil
		case OpSetIndexBuffer:
			v := c.IndexView
			index = &v
		case OpDrawIndexed:
			switch {
			case !pipeline || heap == nil || !target:
				fault(i, "draw without pipeline, heap or render target")
			case !vertex || index == nil:
				fault(i, "draw without vertex or index buffer")
			case cbuffer == nil:
				fault(i, "draw without constant buffer")
			default:
				width := uint64(2)
				if index.Format == gpu.IndexFormatUint32 {
					width = 4
				}
				if uint64(c.FirstIndex+c.IndexCount)*width > uint64(index.Size) {
					fault(i, "draw reads %d indices past a %d byte index buffer", c.FirstIndex+c.IndexCount, index.Size)
				}
			}
		case OpCopyBufferToTexture:
			sub := c.Subresource
			end := sub.Offset + uint64(sub.RowPitch)*uint64(sub.Rows)
			if end > c.Buffer.Size() {
				fault(i, "copy source [%d,%d) outside %d byte buffer", sub.Offset, end, c.Buffer.Size())
				continue
			}
			if err := c.Texture.write(c.Mip, c.Buffer.data[sub.Offset:end]); err != nil {
				fault(i, "%v", err)
			}
		}
	}
	return faults
}
