package vulkan

import (
	"fmt"
	"sync/atomic"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

/**
 * @brief A command pool. Its memory backs every list recorded from it.
 */
type CommandAllocator struct {
	device *Device
	pool   vk.CommandPool
	/** @brief Serial of the last submission that used this allocator. */
	lastSerial atomic.Uint64
}

func (d *Device) CreateCommandAllocator() (gpu.CommandAllocator, error) {
	info := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.family,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	a := &CommandAllocator{device: d}
	if err := check(vk.CreateCommandPool(d.handle, &info, nil, &a.pool), "vkCreateCommandPool"); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *CommandAllocator) Reset() error {
	if a.device.queue != nil && a.lastSerial.Load() > a.device.queue.completedSerial() {
		return gpu.ErrAllocatorInFlight
	}
	return check(vk.ResetCommandPool(a.device.handle, a.pool, 0), "vkResetCommandPool")
}

func (a *CommandAllocator) Destroy() {
	if a.pool != nil {
		vk.DestroyCommandPool(a.device.handle, a.pool, nil)
		a.pool = nil
	}
}

// CommandList records into a primary command buffer. The render pass is
// begun by the first draw after SetRenderTarget, so clears recorded before it
// become the pass's clear values.
type CommandList struct {
	device    *Device
	allocator *CommandAllocator
	handle    vk.CommandBuffer
	State     VulkanCommandBufferState
	open      bool
	err       error

	pipeline *VulkanPipeline
	heap     *DescriptorHeap
	table    uint32
	cbOffset uint32

	rtvSlot, dsvSlot uint32
	hasTarget        bool
	framebuffer      *VulkanFramebuffer
	clearColor       [4]float32
	clearDepth       float32

	// Swapchains whose acquire semaphore this list waits on and whose
	// render-done semaphore it signals.
	acquires *Swapchain
	presents *Swapchain
}

func (d *Device) CreateCommandList(allocator gpu.CommandAllocator, pipeline gpu.Pipeline) (gpu.CommandList, error) {
	a, ok := allocator.(*CommandAllocator)
	if !ok {
		return nil, fmt.Errorf("unexpected allocator type %T", allocator)
	}
	l := &CommandList{device: d, State: COMMAND_BUFFER_STATE_NOT_ALLOCATED}
	if err := l.allocate(a); err != nil {
		return nil, err
	}
	if err := l.begin(pipeline); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *CommandList) allocate(a *CommandAllocator) error {
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        a.pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(l.device.handle, &info, buffers), "vkAllocateCommandBuffers"); err != nil {
		return err
	}
	l.allocator = a
	l.handle = buffers[0]
	l.State = COMMAND_BUFFER_STATE_READY
	return nil
}

func (l *CommandList) begin(pipeline gpu.Pipeline) error {
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if err := check(vk.BeginCommandBuffer(l.handle, &info), "vkBeginCommandBuffer"); err != nil {
		return err
	}
	l.open = true
	l.err = nil
	l.State = COMMAND_BUFFER_STATE_RECORDING
	l.heap = nil
	l.hasTarget = false
	l.framebuffer = nil
	l.acquires, l.presents = nil, nil
	l.cbOffset, l.table = 0, 0
	if pipeline != nil {
		l.SetPipeline(pipeline)
	}
	return nil
}

func (l *CommandList) Reset(allocator gpu.CommandAllocator, pipeline gpu.Pipeline) error {
	if l.open {
		return gpu.ErrListOpen
	}
	a, ok := allocator.(*CommandAllocator)
	if !ok {
		return fmt.Errorf("unexpected allocator type %T", allocator)
	}
	if a != l.allocator {
		vk.FreeCommandBuffers(l.device.handle, l.allocator.pool, 1, []vk.CommandBuffer{l.handle})
		if err := l.allocate(a); err != nil {
			return err
		}
	}
	return l.begin(pipeline)
}

func (l *CommandList) Close() error {
	if !l.open {
		return gpu.ErrListClosed
	}
	l.endPass()
	l.open = false
	if err := check(vk.EndCommandBuffer(l.handle), "vkEndCommandBuffer"); err != nil {
		return err
	}
	l.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return l.err
}

// fail keeps the first recording error; Close and Execute report it.
func (l *CommandList) fail(err error) {
	if l.err == nil {
		core.LogError(err.Error())
		l.err = err
	}
}

func (l *CommandList) SetPipeline(pipeline gpu.Pipeline) {
	p, ok := pipeline.(*VulkanPipeline)
	if !ok {
		l.fail(fmt.Errorf("unexpected pipeline type %T", pipeline))
		return
	}
	l.pipeline = p
	vk.CmdBindPipeline(l.handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (l *CommandList) SetDescriptorHeap(heap gpu.DescriptorHeap) {
	h, ok := heap.(*DescriptorHeap)
	if !ok {
		l.fail(fmt.Errorf("unexpected heap type %T", heap))
		return
	}
	l.heap = h
}

func (l *CommandList) SetDescriptorTable(slot uint32) {
	l.table = slot
}

// SetConstantBuffer selects the dynamic offset of the table's uniform
// buffer. The buffer itself was bound when the view was created.
func (l *CommandList) SetConstantBuffer(buffer gpu.Buffer, offset uint64) {
	if offset > uint64(^uint32(0)) {
		l.fail(fmt.Errorf("%w: constant buffer offset %d", gpu.ErrOutOfRange, offset))
		return
	}
	l.cbOffset = uint32(offset)
}

func (l *CommandList) SetViewport(viewport gpu.Viewport) {
	vk.CmdSetViewport(l.handle, 0, 1, []vk.Viewport{{
		X:        viewport.X,
		Y:        viewport.Y,
		Width:    viewport.Width,
		Height:   viewport.Height,
		MinDepth: viewport.MinDepth,
		MaxDepth: viewport.MaxDepth,
	}})
}

func (l *CommandList) SetScissor(rect gpu.Rect) {
	vk.CmdSetScissor(l.handle, 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: rect.Left, Y: rect.Top},
		Extent: vk.Extent2D{
			Width:  uint32(rect.Right - rect.Left),
			Height: uint32(rect.Bottom - rect.Top),
		},
	}})
}

func (l *CommandList) Transition(resource gpu.Texture, before, after gpu.ResourceState) {
	t, ok := resource.(*Texture)
	if !ok {
		l.fail(fmt.Errorf("unexpected texture type %T", resource))
		return
	}
	l.endPass()

	src := stateLayout(before)
	dst := stateLayout(after)
	if !t.initialized {
		src.layout = vk.ImageLayoutUndefined
		t.initialized = true
	}
	if before == gpu.StatePresent {
		src.access = 0
		src.stage = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
		if t.swapchain != nil {
			l.acquires = t.swapchain
		}
	}
	if after == gpu.StatePresent && t.swapchain != nil {
		l.presents = t.swapchain
	}
	l.barrier(t, src, dst)
}

func (l *CommandList) barrier(t *Texture, src, dst layoutAccess) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       src.access,
		DstAccessMask:       dst.access,
		OldLayout:           src.layout,
		NewLayout:           dst.layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               t.Handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.aspect,
			BaseMipLevel:   0,
			LevelCount:     t.mips,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(l.handle, src.stage, dst.stage, 0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (l *CommandList) SetRenderTarget(rtvSlot uint32, dsvSlot uint32) {
	l.endPass()
	rtv, dsv := l.device.rtvHeap, l.device.dsvHeap
	if rtv == nil || dsv == nil {
		l.fail(fmt.Errorf("render targets need an RTV and a DSV heap"))
		return
	}
	fb, err := rtv.framebuffer(rtvSlot, dsvSlot, dsv)
	if err != nil {
		l.fail(err)
		return
	}
	l.rtvSlot, l.dsvSlot = rtvSlot, dsvSlot
	l.framebuffer = fb
	l.hasTarget = true
	l.clearColor = [4]float32{}
	l.clearDepth = 1.0
}

func (l *CommandList) ClearRenderTarget(rtvSlot uint32, color [4]float32) {
	if !l.hasTarget || rtvSlot != l.rtvSlot {
		l.fail(fmt.Errorf("clear of render target %d that is not bound", rtvSlot))
		return
	}
	if l.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		l.clearColor = color
		return
	}
	var value vk.ClearValue
	value.SetColor(color[:])
	l.clearAttachment(vk.ImageAspectFlags(vk.ImageAspectColorBit), value)
}

func (l *CommandList) ClearDepth(dsvSlot uint32, depth float32) {
	if !l.hasTarget || dsvSlot != l.dsvSlot {
		l.fail(fmt.Errorf("clear of depth target %d that is not bound", dsvSlot))
		return
	}
	if l.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		l.clearDepth = depth
		return
	}
	var value vk.ClearValue
	value.SetDepthStencil(depth, 0)
	l.clearAttachment(vk.ImageAspectFlags(vk.ImageAspectDepthBit), value)
}

func (l *CommandList) clearAttachment(aspect vk.ImageAspectFlags, value vk.ClearValue) {
	attachment := vk.ClearAttachment{
		AspectMask:      aspect,
		ColorAttachment: 0,
		ClearValue:      value,
	}
	rect := vk.ClearRect{
		Rect: vk.Rect2D{
			Extent: vk.Extent2D{Width: l.framebuffer.Width, Height: l.framebuffer.Height},
		},
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	vk.CmdClearAttachments(l.handle, 1, []vk.ClearAttachment{attachment}, 1, []vk.ClearRect{rect})
}

func (l *CommandList) SetPrimitiveTopology(topology gpu.PrimitiveTopology) {
	if topology != gpu.TopologyTriangleList {
		l.fail(fmt.Errorf("unsupported primitive topology %d", topology))
	}
}

func (l *CommandList) SetVertexBuffer(view gpu.VertexBufferView) {
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		l.fail(fmt.Errorf("unexpected buffer type %T", view.Buffer))
		return
	}
	vk.CmdBindVertexBuffers(l.handle, 0, 1, []vk.Buffer{b.handle}, []vk.DeviceSize{0})
}

func (l *CommandList) SetIndexBuffer(view gpu.IndexBufferView) {
	b, ok := view.Buffer.(*Buffer)
	if !ok {
		l.fail(fmt.Errorf("unexpected buffer type %T", view.Buffer))
		return
	}
	vk.CmdBindIndexBuffer(l.handle, b.handle, 0, indexType(view.Format))
}

func (l *CommandList) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	if l.err != nil {
		return
	}
	if l.pipeline == nil || l.heap == nil {
		l.fail(fmt.Errorf("draw without a pipeline and descriptor heap"))
		return
	}
	set, err := l.heap.table(l.table, 0)
	if err != nil {
		l.fail(err)
		return
	}
	if !l.beginPass() {
		return
	}
	vk.CmdBindDescriptorSets(l.handle, vk.PipelineBindPointGraphics, l.pipeline.PipelineLayout,
		0, 1, []vk.DescriptorSet{set}, 1, []uint32{l.cbOffset})
	vk.CmdDrawIndexed(l.handle, indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (l *CommandList) beginPass() bool {
	if l.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return true
	}
	if !l.hasTarget {
		l.fail(fmt.Errorf("draw without a render target"))
		return false
	}
	l.device.renderpass.begin(l.handle, l.framebuffer, l.clearColor, l.clearDepth)
	l.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	return true
}

// endPass closes an active pass. A target that was cleared but never drawn
// still gets its pass so the clears land.
func (l *CommandList) endPass() {
	if l.State != COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		if !l.hasTarget || l.framebuffer == nil {
			return
		}
		l.device.renderpass.begin(l.handle, l.framebuffer, l.clearColor, l.clearDepth)
	}
	vk.CmdEndRenderPass(l.handle)
	l.State = COMMAND_BUFFER_STATE_RECORDING
	l.hasTarget = false
}

func (l *CommandList) CopyBufferToTexture(src gpu.Buffer, dst gpu.Texture, mip uint32, sub gpu.Subresource) {
	b, ok := src.(*Buffer)
	if !ok {
		l.fail(fmt.Errorf("unexpected buffer type %T", src))
		return
	}
	t, ok := dst.(*Texture)
	if !ok {
		l.fail(fmt.Errorf("unexpected texture type %T", dst))
		return
	}
	if mip >= t.mips {
		l.fail(fmt.Errorf("%w: mip %d of %d", gpu.ErrOutOfRange, mip, t.mips))
		return
	}
	l.endPass()
	if !t.initialized {
		l.barrier(t, layoutAccess{
			layout: vk.ImageLayoutUndefined,
			stage:  vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
		}, stateLayout(gpu.StateCopyDest))
		t.initialized = true
	}

	rowLength, imageHeight := copyExtent(t.format, sub)
	region := vk.BufferImageCopy{
		BufferOffset:      vk.DeviceSize(sub.Offset),
		BufferRowLength:   rowLength,
		BufferImageHeight: imageHeight,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       mip,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: sub.Width, Height: sub.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(l.handle, b.handle, t.Handle, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (l *CommandList) Destroy() {
	if l.handle == nil {
		return
	}
	vk.FreeCommandBuffers(l.device.handle, l.allocator.pool, 1, []vk.CommandBuffer{l.handle})
	l.handle = nil
	l.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}
