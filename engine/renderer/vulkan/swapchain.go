package vulkan

import (
	"fmt"
	gomath "math"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type VulkanSwapchainSupportInfo struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Swapchain presents through the device's only queue. Acquiring the next
// image and finishing a frame are ordered with semaphores that Queue.Execute
// waits on and signals for lists touching a back buffer.
type Swapchain struct {
	device *Device
	queue  *Queue

	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	buffers     []*Texture
	current     uint32

	// Rotated per frame so a semaphore is never reused while a previous
	// wait on it may still be pending.
	imageAvailable []vk.Semaphore
	renderDone     []vk.Semaphore
	frame          int

	acquired bool
	rendered bool
}

func (d *Device) querySwapchainSupport() (*VulkanSwapchainSupportInfo, error) {
	info := &VulkanSwapchainSupportInfo{}
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.surface, &info.Capabilities), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return nil, err
	}
	info.Capabilities.Deref()
	info.Capabilities.CurrentExtent.Deref()
	info.Capabilities.MinImageExtent.Deref()
	info.Capabilities.MaxImageExtent.Deref()

	var formatCount uint32
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.surface, &formatCount, nil), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return nil, err
	}
	if formatCount == 0 {
		return nil, fmt.Errorf("surface reports no formats")
	}
	info.Formats = make([]vk.SurfaceFormat, formatCount)
	if err := check(vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.surface, &formatCount, info.Formats), "vkGetPhysicalDeviceSurfaceFormats"); err != nil {
		return nil, err
	}
	for i := range info.Formats {
		info.Formats[i].Deref()
	}

	var modeCount uint32
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.surface, &modeCount, nil), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return nil, err
	}
	info.PresentModes = make([]vk.PresentMode, modeCount)
	if err := check(vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.surface, &modeCount, info.PresentModes), "vkGetPhysicalDeviceSurfacePresentModes"); err != nil {
		return nil, err
	}
	return info, nil
}

func (d *Device) CreateSwapchain(queue gpu.Queue, desc gpu.SwapchainDesc) (gpu.Swapchain, error) {
	q, ok := queue.(*Queue)
	if !ok {
		return nil, fmt.Errorf("swapchain needs a vulkan queue, got %T", queue)
	}
	if desc.BufferCount < 2 {
		return nil, fmt.Errorf("swapchain needs at least 2 buffers, got %d", desc.BufferCount)
	}
	support, err := d.querySwapchainSupport()
	if err != nil {
		return nil, err
	}

	sc := &Swapchain{device: d, queue: q}

	// Prefer an 8-bit UNORM format, as the pipeline writes linear color.
	sc.ImageFormat = support.Formats[0]
	for _, format := range support.Formats {
		if (format.Format == vk.FormatB8g8r8a8Unorm || format.Format == vk.FormatR8g8b8a8Unorm) &&
			format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			sc.ImageFormat = format
			break
		}
	}

	caps := support.Capabilities
	sc.Extent = vk.Extent2D{Width: desc.Width, Height: desc.Height}
	if caps.CurrentExtent.Width != gomath.MaxUint32 {
		sc.Extent = caps.CurrentExtent
	}
	sc.Extent.Width = math.Clamp(sc.Extent.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width)
	sc.Extent.Height = math.Clamp(sc.Extent.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height)

	imageCount := max(desc.BufferCount, caps.MinImageCount)
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	// FIFO is always available and matches a sync interval of one.
	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      sc.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
	}
	if err := check(vk.CreateSwapchain(d.handle, &createInfo, nil, &sc.Handle), "vkCreateSwapchain"); err != nil {
		return nil, err
	}

	if err := sc.createBuffers(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createSemaphores(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := d.createRenderpass(sc.ImageFormat.Format); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.acquire(); err != nil {
		sc.Destroy()
		return nil, err
	}

	core.LogInfo("Swapchain created: %dx%d, %d images.", sc.Extent.Width, sc.Extent.Height, len(sc.buffers))
	return sc, nil
}

func (sc *Swapchain) createBuffers() error {
	d := sc.device
	var count uint32
	if err := check(vk.GetSwapchainImages(d.handle, sc.Handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		return err
	}
	images := make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(d.handle, sc.Handle, &count, images), "vkGetSwapchainImages"); err != nil {
		return err
	}
	for _, image := range images {
		t := &Texture{
			device:    d,
			Handle:    image,
			vkFmt:     sc.ImageFormat.Format,
			format:    gpuFormat(sc.ImageFormat.Format),
			width:     sc.Extent.Width,
			height:    sc.Extent.Height,
			mips:      1,
			aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			swapchain: sc,
		}
		if err := t.createView(); err != nil {
			return err
		}
		sc.buffers = append(sc.buffers, t)
	}
	return nil
}

func (sc *Swapchain) createSemaphores() error {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	n := len(sc.buffers) + 1
	sc.imageAvailable = make([]vk.Semaphore, n)
	sc.renderDone = make([]vk.Semaphore, n)
	for i := 0; i < n; i++ {
		if err := check(vk.CreateSemaphore(sc.device.handle, &info, nil, &sc.imageAvailable[i]), "vkCreateSemaphore"); err != nil {
			return err
		}
		if err := check(vk.CreateSemaphore(sc.device.handle, &info, nil, &sc.renderDone[i]), "vkCreateSemaphore"); err != nil {
			return err
		}
	}
	return nil
}

func (sc *Swapchain) acquire() error {
	var index uint32
	result := vk.AcquireNextImage(sc.device.handle, sc.Handle, gomath.MaxUint64, sc.imageAvailable[sc.frame], vk.NullFence, &index)
	if result == vk.Suboptimal {
		core.LogWarn("swapchain is suboptimal for the surface")
	} else if err := check(result, "vkAcquireNextImageKHR"); err != nil {
		return err
	}
	sc.current = index
	sc.acquired = true
	return nil
}

// waitSemaphore hands the pending acquire semaphore to the first submission
// that renders into the back buffer.
func (sc *Swapchain) waitSemaphore() (vk.Semaphore, bool) {
	if !sc.acquired {
		return nil, false
	}
	sc.acquired = false
	return sc.imageAvailable[sc.frame], true
}

// signalSemaphore is signaled by the submission that returns the back
// buffer to the present state.
func (sc *Swapchain) signalSemaphore() vk.Semaphore {
	sc.rendered = true
	return sc.renderDone[sc.frame]
}

func (sc *Swapchain) BufferCount() uint32 {
	return uint32(len(sc.buffers))
}

func (sc *Swapchain) Buffer(index uint32) (gpu.Texture, error) {
	if int(index) >= len(sc.buffers) {
		return nil, fmt.Errorf("%w: back buffer %d of %d", gpu.ErrOutOfRange, index, len(sc.buffers))
	}
	return sc.buffers[index], nil
}

func (sc *Swapchain) CurrentBackBufferIndex() uint32 {
	return sc.current
}

// Present queues the current back buffer and acquires the next one. The
// swapchain always runs in FIFO mode, so syncInterval only gets a warning
// when it asks for something else.
func (sc *Swapchain) Present(syncInterval uint32, flags uint32) error {
	if syncInterval != 1 {
		core.LogDebug("sync interval %d requested, presenting with FIFO", syncInterval)
	}
	presentInfo := vk.PresentInfo{
		SType:          vk.StructureTypePresentInfo,
		SwapchainCount: 1,
		PSwapchains:    []vk.Swapchain{sc.Handle},
		PImageIndices:  []uint32{sc.current},
	}
	if sc.rendered {
		presentInfo.WaitSemaphoreCount = 1
		presentInfo.PWaitSemaphores = []vk.Semaphore{sc.renderDone[sc.frame]}
		sc.rendered = false
	}

	err := sc.device.locks.SafeCall(QueueManagement, func() error {
		result := vk.QueuePresent(sc.queue.handle, &presentInfo)
		if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
			core.LogWarn("swapchain no longer matches the surface; resizing is not supported")
			return nil
		}
		return check(result, "vkQueuePresentKHR")
	})
	if err != nil {
		return err
	}

	sc.frame = (sc.frame + 1) % len(sc.imageAvailable)
	return sc.acquire()
}

func (sc *Swapchain) Destroy() {
	d := sc.device
	vk.DeviceWaitIdle(d.handle)
	for _, t := range sc.buffers {
		t.Destroy()
	}
	sc.buffers = nil
	for i := range sc.imageAvailable {
		if sc.imageAvailable[i] != nil {
			vk.DestroySemaphore(d.handle, sc.imageAvailable[i], nil)
		}
		if sc.renderDone[i] != nil {
			vk.DestroySemaphore(d.handle, sc.renderDone[i], nil)
		}
	}
	sc.imageAvailable, sc.renderDone = nil, nil
	if sc.Handle != nil {
		vk.DestroySwapchain(d.handle, sc.Handle, nil)
		sc.Handle = nil
	}
}
