package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type Texture struct {
	device *Device
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	format gpu.Format
	vkFmt  vk.Format
	width  uint32
	height uint32
	mips   uint32
	aspect vk.ImageAspectFlags

	// Swapchain images are owned by the swapchain; only the view is ours.
	owned     bool
	swapchain *Swapchain
	// Until the first transition the image content is undefined.
	initialized bool
}

func (d *Device) createImage(width, height, mips uint32, format vk.Format, usage vk.ImageUsageFlags, aspect vk.ImageAspectFlags) (*Texture, error) {
	t := &Texture{
		device: d,
		vkFmt:  format,
		format: gpuFormat(format),
		width:  width,
		height: height,
		mips:   mips,
		aspect: aspect,
		owned:  true,
	}
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     mips,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check(vk.CreateImage(d.handle, &info, nil, &t.Handle), "vkCreateImage"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, t.Handle, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.Memory = memory
	if err := check(vk.BindImageMemory(d.handle, t.Handle, t.Memory, 0), "vkBindImageMemory"); err != nil {
		t.Destroy()
		return nil, err
	}
	if err := t.createView(); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *Texture) createView() error {
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    t.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   t.vkFmt,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     t.aspect,
			BaseMipLevel:   0,
			LevelCount:     t.mips,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	return check(vk.CreateImageView(t.device.handle, &info, nil, &t.View), "vkCreateImageView")
}

func (d *Device) CreateTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 {
		return nil, fmt.Errorf("invalid texture dimensions %dx%d with %d mips", desc.Width, desc.Height, desc.MipLevels)
	}
	format, err := vulkanFormat(desc.Format)
	if err != nil {
		return nil, err
	}
	t, err := d.createImage(desc.Width, desc.Height, desc.MipLevels, format,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}
	t.format = desc.Format
	return t, nil
}

// CreateDepthBuffer uses the best depth format the device supports.
func (d *Device) CreateDepthBuffer(width, height uint32) (gpu.Texture, error) {
	return d.createImage(width, height, 1, d.depthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

func (t *Texture) Width() uint32 {
	return t.width
}

func (t *Texture) Height() uint32 {
	return t.height
}

func (t *Texture) Destroy() {
	h := t.device.handle
	if t.View != nil {
		vk.DestroyImageView(h, t.View, nil)
		t.View = nil
	}
	if !t.owned {
		return
	}
	if t.Handle != nil {
		vk.DestroyImage(h, t.Handle, nil)
		t.Handle = nil
	}
	if t.Memory != nil {
		vk.FreeMemory(h, t.Memory, nil)
		t.Memory = nil
	}
}
