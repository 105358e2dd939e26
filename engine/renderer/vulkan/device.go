package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

type Device struct {
	instance *Instance
	physical vk.PhysicalDevice
	handle   vk.Device
	surface  vk.Surface

	family uint32
	queue  *Queue

	properties  vk.PhysicalDeviceProperties
	memory      vk.PhysicalDeviceMemoryProperties
	depthFormat vk.Format
	anisotropy  bool

	locks *VulkanLockPool

	// Shared by every pipeline and descriptor heap: binding 0 is the
	// per-draw constant block, binding 1 the texture.
	tableLayout vk.DescriptorSetLayout
	sampler     vk.Sampler
	renderpass  *VulkanRenderpass

	// Render target slots resolve against the most recent heaps of each kind.
	rtvHeap *DescriptorHeap
	dsvHeap *DescriptorHeap
}

// graphicsFamilies returns the queue families that support graphics.
func graphicsFamilies(pd vk.PhysicalDevice) ([]uint32, bool) {
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)

	var out []uint32
	for i := range families {
		families[i].Deref()
		if vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0 {
			out = append(out, uint32(i))
		}
	}
	return out, len(out) > 0
}

func hasExtension(pd vk.PhysicalDevice, name string) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, nil) != vk.Success || count == 0 {
		return false
	}
	available := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(pd, "", &count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func newDevice(instance *Instance, pd vk.PhysicalDevice, window WindowSurface) (*Device, error) {
	d := &Device{
		instance: instance,
		physical: pd,
		locks:    NewVulkanLockPool(),
	}
	if err := d.create(window); err != nil {
		d.Destroy()
		return nil, err
	}
	return d, nil
}

func (d *Device) create(window WindowSurface) error {
	surface, err := window.CreateWindowSurface(d.instance.handle, nil)
	if err != nil {
		err = fmt.Errorf("vulkan surface creation failed: %w", err)
		core.LogError(err.Error())
		return err
	}
	d.surface = vk.SurfaceFromPointer(surface)

	vk.GetPhysicalDeviceProperties(d.physical, &d.properties)
	d.properties.Deref()
	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memory)
	d.memory.Deref()

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(d.physical, &features)
	features.Deref()
	d.anisotropy = features.SamplerAnisotropy == vk.True

	// One queue does graphics, copies and presentation.
	families, _ := graphicsFamilies(d.physical)
	found := false
	for _, f := range families {
		var supportsPresent vk.Bool32
		vk.GetPhysicalDeviceSurfaceSupport(d.physical, f, d.surface, &supportsPresent)
		if supportsPresent == vk.True {
			d.family = f
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: no queue family can both draw and present", core.ErrNoAdapter)
	}

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasExtension(d.physical, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	if d.anisotropy {
		deviceFeatures.SamplerAnisotropy = vk.True
	}
	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: d.family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}},
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensions),
	}
	if err := check(vk.CreateDevice(d.physical, &deviceCreateInfo, nil, &d.handle), "vkCreateDevice"); err != nil {
		return err
	}
	core.LogInfo("Logical device created on '%s'.", cString(d.properties.DeviceName[:]))

	if !d.detectDepthFormat() {
		return fmt.Errorf("failed to find a supported depth format")
	}
	if err := d.createTableLayout(); err != nil {
		return err
	}
	return d.createSampler()
}

func (d *Device) detectDepthFormat() bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physical, candidate, &properties)
		properties.Deref()
		if properties.OptimalTilingFeatures&flags == flags {
			d.depthFormat = candidate
			return true
		}
	}
	return false
}

func (d *Device) createTableLayout() error {
	bindings := []vk.DescriptorSetLayoutBinding{
		{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
		},
		{
			Binding:         1,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		},
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	return check(vk.CreateDescriptorSetLayout(d.handle, &info, nil, &d.tableLayout), "vkCreateDescriptorSetLayout")
}

// createSampler builds the one linear, wrapping sampler every texture uses.
func (d *Device) createSampler() error {
	info := vk.SamplerCreateInfo{
		SType:            vk.StructureTypeSamplerCreateInfo,
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		MaxAnisotropy:    1.0,
		CompareOp:        vk.CompareOpNever,
		MinLod:           0,
		MaxLod:           1000,
		BorderColor:      vk.BorderColorFloatOpaqueBlack,
		AnisotropyEnable: vk.False,
	}
	if d.anisotropy {
		info.AnisotropyEnable = vk.True
		info.MaxAnisotropy = 16
	}
	return check(vk.CreateSampler(d.handle, &info, nil, &d.sampler), "vkCreateSampler")
}

func (d *Device) CreateCommandQueue() (gpu.Queue, error) {
	if d.queue == nil {
		d.queue = newQueue(d)
	}
	return d.queue, nil
}

func (d *Device) CreateRenderTargetView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	h, ok := heap.(*DescriptorHeap)
	if !ok || h.desc.Type != gpu.DescriptorHeapRTV {
		return fmt.Errorf("render target views need an RTV heap")
	}
	return h.putView(slot, texture.(*Texture))
}

func (d *Device) CreateDepthStencilView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	h, ok := heap.(*DescriptorHeap)
	if !ok || h.desc.Type != gpu.DescriptorHeapDSV {
		return fmt.Errorf("depth stencil views need a DSV heap")
	}
	return h.putView(slot, texture.(*Texture))
}

// Destroy waits for the queue to drain and releases the device. Objects
// created from it must already be destroyed.
func (d *Device) Destroy() {
	if d.handle != nil {
		vk.DeviceWaitIdle(d.handle)
		if d.queue != nil {
			d.queue.destroy()
			d.queue = nil
		}
		if d.renderpass != nil {
			d.renderpass.Destroy(d)
			d.renderpass = nil
		}
		if d.sampler != nil {
			vk.DestroySampler(d.handle, d.sampler, nil)
			d.sampler = nil
		}
		if d.tableLayout != nil {
			vk.DestroyDescriptorSetLayout(d.handle, d.tableLayout, nil)
			d.tableLayout = nil
		}
		core.LogInfo("Destroying logical device...")
		vk.DestroyDevice(d.handle, nil)
		d.handle = nil
	}
	if d.surface != nil {
		vk.DestroySurface(d.instance.handle, d.surface, nil)
		d.surface = nil
	}
}
