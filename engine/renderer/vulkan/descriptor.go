package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// DescriptorHeap emulates a descriptor heap. RTV and DSV heaps only hold
// image views. A shader-visible CBV/SRV heap is carved into tables of two
// slots: slot 2i is the constant buffer of descriptor set i, slot 2i+1 its
// texture.
type DescriptorHeap struct {
	device *Device
	desc   gpu.DescriptorHeapDesc

	views        []*Texture
	framebuffers map[[2]uint32]*VulkanFramebuffer

	pool vk.DescriptorPool
	sets []vk.DescriptorSet
}

func (d *Device) CreateDescriptorHeap(desc gpu.DescriptorHeapDesc) (gpu.DescriptorHeap, error) {
	if desc.Capacity == 0 {
		return nil, fmt.Errorf("descriptor heap capacity must be positive")
	}
	h := &DescriptorHeap{device: d, desc: desc}

	switch desc.Type {
	case gpu.DescriptorHeapRTV:
		h.views = make([]*Texture, desc.Capacity)
		h.framebuffers = make(map[[2]uint32]*VulkanFramebuffer)
		d.rtvHeap = h
	case gpu.DescriptorHeapDSV:
		h.views = make([]*Texture, desc.Capacity)
		d.dsvHeap = h
	case gpu.DescriptorHeapCBVSRV:
		if err := h.createSets((desc.Capacity + 1) / 2); err != nil {
			h.Destroy()
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown descriptor heap type %d", desc.Type)
	}
	return h, nil
}

func (h *DescriptorHeap) createSets(tables uint32) error {
	d := h.device
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       tables,
		PoolSizeCount: 2,
		PPoolSizes: []vk.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBufferDynamic, DescriptorCount: tables},
			{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: tables},
		},
	}
	if err := check(vk.CreateDescriptorPool(d.handle, &poolInfo, nil, &h.pool), "vkCreateDescriptorPool"); err != nil {
		return err
	}

	h.sets = make([]vk.DescriptorSet, tables)
	for i := range h.sets {
		allocInfo := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     h.pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{d.tableLayout},
		}
		if err := check(vk.AllocateDescriptorSets(d.handle, &allocInfo, &h.sets[i]), "vkAllocateDescriptorSets"); err != nil {
			return err
		}
	}
	return nil
}

func (h *DescriptorHeap) Capacity() uint32 {
	return h.desc.Capacity
}

func (h *DescriptorHeap) putView(slot uint32, t *Texture) error {
	if slot >= uint32(len(h.views)) {
		return fmt.Errorf("%w: slot %d in a heap of %d", gpu.ErrOutOfRange, slot, len(h.views))
	}
	h.views[slot] = t
	return nil
}

func (h *DescriptorHeap) view(slot uint32) (*Texture, error) {
	if slot >= uint32(len(h.views)) || h.views[slot] == nil {
		return nil, fmt.Errorf("%w: no view in slot %d", gpu.ErrOutOfRange, slot)
	}
	return h.views[slot], nil
}

// framebuffer returns the cached framebuffer for an RTV/DSV slot pair.
func (h *DescriptorHeap) framebuffer(rtvSlot, dsvSlot uint32, dsv *DescriptorHeap) (*VulkanFramebuffer, error) {
	key := [2]uint32{rtvSlot, dsvSlot}
	if fb, ok := h.framebuffers[key]; ok {
		return fb, nil
	}
	color, err := h.view(rtvSlot)
	if err != nil {
		return nil, err
	}
	depth, err := dsv.view(dsvSlot)
	if err != nil {
		return nil, err
	}
	fb, err := h.device.createFramebuffer(color, depth)
	if err != nil {
		return nil, err
	}
	h.framebuffers[key] = fb
	return fb, nil
}

func (h *DescriptorHeap) table(slot uint32, binding uint32) (vk.DescriptorSet, error) {
	if h.desc.Type != gpu.DescriptorHeapCBVSRV {
		return nil, fmt.Errorf("constant buffer and texture views need a CBV/SRV heap")
	}
	if slot >= h.desc.Capacity {
		return nil, fmt.Errorf("%w: slot %d in a heap of %d", gpu.ErrOutOfRange, slot, h.desc.Capacity)
	}
	if slot%2 != binding {
		return nil, fmt.Errorf("slot %d cannot hold binding %d; constant buffers use even slots and textures odd ones", slot, binding)
	}
	return h.sets[slot/2], nil
}

func (d *Device) CreateConstantBufferView(heap gpu.DescriptorHeap, slot uint32, buffer gpu.Buffer, size uint32) error {
	h, ok := heap.(*DescriptorHeap)
	if !ok {
		return fmt.Errorf("unexpected heap type %T", heap)
	}
	if uint64(size) > buffer.Size() {
		return fmt.Errorf("constant buffer view of %d bytes exceeds buffer of %d", size, buffer.Size())
	}
	set, err := h.table(slot, 0)
	if err != nil {
		return err
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBufferDynamic,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: buffer.(*Buffer).handle,
			Offset: 0,
			Range:  vk.DeviceSize(size),
		}},
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.handle, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (d *Device) CreateShaderResourceView(heap gpu.DescriptorHeap, slot uint32, texture gpu.Texture) error {
	h, ok := heap.(*DescriptorHeap)
	if !ok {
		return fmt.Errorf("unexpected heap type %T", heap)
	}
	set, err := h.table(slot, 1)
	if err != nil {
		return err
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      1,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     d.sampler,
			ImageView:   texture.(*Texture).View,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	return d.locks.SafeCall(DescriptorManagement, func() error {
		vk.UpdateDescriptorSets(d.handle, 1, []vk.WriteDescriptorSet{write}, 0, nil)
		return nil
	})
}

func (h *DescriptorHeap) Destroy() {
	d := h.device
	for key, fb := range h.framebuffers {
		fb.Destroy(d)
		delete(h.framebuffers, key)
	}
	if h.pool != nil {
		vk.DestroyDescriptorPool(d.handle, h.pool, nil)
		h.pool = nil
		h.sets = nil
	}
	if d.rtvHeap == h {
		d.rtvHeap = nil
	}
	if d.dsvHeap == h {
		d.dsvHeap = nil
	}
}
