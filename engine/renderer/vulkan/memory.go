package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

func (d *Device) findMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < d.memory.MemoryTypeCount; i++ {
		memoryType := d.memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&propertyFlags == propertyFlags {
			return i, nil
		}
	}
	err := fmt.Errorf("unable to find suitable memory type for filter %#x", typeFilter)
	core.LogWarn(err.Error())
	return 0, err
}

func (d *Device) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	index, err := d.findMemoryIndex(reqs.MemoryTypeBits, flags)
	if err != nil {
		return nil, err
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.handle, &info, nil, &memory), "vkAllocateMemory"); err != nil {
		return nil, err
	}
	return memory, nil
}

type Buffer struct {
	device *Device
	desc   gpu.BufferDesc
	handle vk.Buffer
	memory vk.DeviceMemory

	mapped   []byte
	mapCount int
}

// CreateBuffer backs upload-heap buffers with host-coherent memory so that
// writes through Map are visible to the GPU without flushing.
func (d *Device) CreateBuffer(desc gpu.BufferDesc) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return nil, fmt.Errorf("buffer size must be positive")
	}
	usage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageIndexBufferBit |
		vk.BufferUsageUniformBufferBit | vk.BufferUsageTransferSrcBit)
	flags := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	if desc.Heap == gpu.HeapDefault {
		usage |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
		flags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}

	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	b := &Buffer{device: d, desc: desc}
	if err := check(vk.CreateBuffer(d.handle, &info, nil, &b.handle), "vkCreateBuffer"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, b.handle, &reqs)
	reqs.Deref()
	memory, err := d.allocate(reqs, flags)
	if err != nil {
		b.Destroy()
		return nil, err
	}
	b.memory = memory
	if err := check(vk.BindBufferMemory(d.handle, b.handle, b.memory, 0), "vkBindBufferMemory"); err != nil {
		b.Destroy()
		return nil, err
	}
	return b, nil
}

func (b *Buffer) Size() uint64 {
	return b.desc.Size
}

// Map may be called more than once; the memory stays mapped until every
// Map has been matched by an Unmap.
func (b *Buffer) Map() ([]byte, error) {
	if b.desc.Heap != gpu.HeapUpload {
		return nil, fmt.Errorf("only upload heap buffers can be mapped")
	}
	if b.mapCount == 0 {
		var ptr unsafe.Pointer
		if err := check(vk.MapMemory(b.device.handle, b.memory, 0, vk.DeviceSize(b.desc.Size), 0, &ptr), "vkMapMemory"); err != nil {
			return nil, err
		}
		b.mapped = unsafe.Slice((*byte)(ptr), b.desc.Size)
	}
	b.mapCount++
	return b.mapped, nil
}

func (b *Buffer) Unmap() {
	if b.mapCount == 0 {
		return
	}
	b.mapCount--
	if b.mapCount == 0 {
		vk.UnmapMemory(b.device.handle, b.memory)
		b.mapped = nil
	}
}

func (b *Buffer) Destroy() {
	if b.mapCount > 0 {
		b.mapCount = 1
		b.Unmap()
	}
	if b.handle != nil {
		vk.DestroyBuffer(b.device.handle, b.handle, nil)
		b.handle = nil
	}
	if b.memory != nil {
		vk.FreeMemory(b.device.handle, b.memory, nil)
		b.memory = nil
	}
}
