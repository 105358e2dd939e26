package renderer

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// Uploader moves CPU data into GPU resources. Buffers live in the upload
// heap. Textures are copied through one shared staging buffer, one at a
// time, waiting for each copy to finish before the next.
type Uploader struct {
	device    gpu.Device
	queue     gpu.Queue
	allocator gpu.CommandAllocator
	list      gpu.CommandList
	pipeline  gpu.Pipeline
	sync      *FrameSync

	staging     gpu.Buffer
	stagingSize uint64
	uploads     int
}

func NewUploader(device gpu.Device, queue gpu.Queue, allocator gpu.CommandAllocator, list gpu.CommandList,
	pipeline gpu.Pipeline, sync *FrameSync, stagingSize uint64) *Uploader {
	return &Uploader{
		device:      device,
		queue:       queue,
		allocator:   allocator,
		list:        list,
		pipeline:    pipeline,
		sync:        sync,
		stagingSize: stagingSize,
	}
}

// UploadBuffer creates an upload-heap buffer holding a copy of data.
func (u *Uploader) UploadBuffer(data []byte) (gpu.Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot upload an empty buffer")
	}
	buffer, err := u.device.CreateBuffer(gpu.BufferDesc{
		Heap:  gpu.HeapUpload,
		Size:  uint64(len(data)),
		State: gpu.StateGenericRead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer of %d bytes: %w", len(data), err)
	}
	mapped, err := buffer.Map()
	if err != nil {
		buffer.Destroy()
		return nil, fmt.Errorf("failed to map buffer: %w", err)
	}
	copy(mapped, data)
	buffer.Unmap()
	return buffer, nil
}

// StagingLayout places every mip of tex in the staging buffer: each starts
// on a 512-byte boundary and rows are 256-byte aligned.
func StagingLayout(tex *loaders.TextureData) ([]gpu.Subresource, uint64) {
	subs := make([]gpu.Subresource, len(tex.Mips))
	var offset uint64
	for i, mip := range tex.Mips {
		offset = gpu.AlignUp(offset, gpu.TextureDataAlignment)
		pitch := uint32(gpu.AlignUp(uint64(mip.RowPitch), gpu.TextureRowPitchAlignment))
		subs[i] = gpu.Subresource{
			Offset:   offset,
			Width:    mip.Width,
			Height:   mip.Height,
			RowPitch: pitch,
			Rows:     mip.Rows,
		}
		offset += uint64(pitch) * uint64(mip.Rows)
	}
	return subs, offset
}

// UploadTexture creates a shader-readable texture from tex and returns once
// the GPU copy has completed.
func (u *Uploader) UploadTexture(tex *loaders.TextureData) (gpu.Texture, error) {
	if len(tex.Mips) == 0 {
		return nil, fmt.Errorf("%w: %s has no mip levels", core.ErrInvalidTexture, tex.Name)
	}
	subs, total := StagingLayout(tex)
	if total > u.stagingSize {
		return nil, fmt.Errorf("%w: %s needs %d bytes, staging holds %d", core.ErrStagingOverflow, tex.Name, total, u.stagingSize)
	}
	if err := u.ensureStaging(); err != nil {
		return nil, err
	}

	texture, err := u.device.CreateTexture(gpu.TextureDesc{
		Width:     tex.Width,
		Height:    tex.Height,
		MipLevels: uint32(len(tex.Mips)),
		Format:    tex.Format,
		State:     gpu.StateCopyDest,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %s: %w", tex.Name, err)
	}

	// The list comes out of creation open; later uploads reuse it.
	if u.uploads > 0 {
		if err := u.allocator.Reset(); err != nil {
			texture.Destroy()
			return nil, fmt.Errorf("failed to reset command allocator: %w", err)
		}
		if err := u.list.Reset(u.allocator, u.pipeline); err != nil {
			texture.Destroy()
			return nil, fmt.Errorf("failed to reset command list: %w", err)
		}
	}

	staging, err := u.staging.Map()
	if err != nil {
		texture.Destroy()
		return nil, fmt.Errorf("failed to map staging buffer: %w", err)
	}
	for i, mip := range tex.Mips {
		sub := subs[i]
		for row := uint32(0); row < mip.Rows; row++ {
			src := mip.Data[row*mip.RowPitch : (row+1)*mip.RowPitch]
			copy(staging[sub.Offset+uint64(row)*uint64(sub.RowPitch):], src)
		}
	}
	u.staging.Unmap()

	for i := range subs {
		u.list.CopyBufferToTexture(u.staging, texture, uint32(i), subs[i])
	}
	u.list.Transition(texture, gpu.StateCopyDest, gpu.StateShaderResource)

	if err := u.list.Close(); err != nil {
		texture.Destroy()
		return nil, fmt.Errorf("failed to close upload list: %w", err)
	}
	if err := u.queue.Execute(u.list); err != nil {
		texture.Destroy()
		return nil, fmt.Errorf("failed to execute upload list: %w", err)
	}
	u.uploads++
	if err := u.sync.WaitForFrame(); err != nil {
		texture.Destroy()
		return nil, err
	}

	core.LogDebug("uploaded texture %s (%dx%d, %d mips, %d staged bytes)", tex.Name, tex.Width, tex.Height, len(tex.Mips), total)
	return texture, nil
}

func (u *Uploader) ensureStaging() error {
	if u.staging != nil {
		return nil
	}
	staging, err := u.device.CreateBuffer(gpu.BufferDesc{
		Heap:  gpu.HeapUpload,
		Size:  u.stagingSize,
		State: gpu.StateGenericRead,
	})
	if err != nil {
		return fmt.Errorf("failed to create staging buffer: %w", err)
	}
	u.staging = staging
	return nil
}

// Release frees the staging buffer. Call it once no upload is in flight.
func (u *Uploader) Release() {
	if u.staging != nil {
		u.staging.Destroy()
		u.staging = nil
	}
}
