package renderer

import (
	"encoding/binary"
	"fmt"
	gomath "math"

	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/math"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// ConstantBlockSize is the packed size of a ConstantBlock.
const ConstantBlockSize = 2 * 16 * 4

// ConstantBlock holds the per-draw matrices, row-major.
type ConstantBlock struct {
	WorldViewProj math.Mat4
	World         math.Mat4
}

func (b *ConstantBlock) put(dst []byte) {
	for i, v := range b.WorldViewProj.Data {
		binary.LittleEndian.PutUint32(dst[i*4:], gomath.Float32bits(v))
	}
	for i, v := range b.World.Data {
		binary.LittleEndian.PutUint32(dst[64+i*4:], gomath.Float32bits(v))
	}
}

// ConstantBuffer is a persistently mapped upload buffer divided into
// 256-byte slots, one ConstantBlock each.
type ConstantBuffer struct {
	buffer gpu.Buffer
	data   []byte
	stride uint64
}

func NewConstantBuffer(device gpu.Device, size uint64) (*ConstantBuffer, error) {
	buffer, err := device.CreateBuffer(gpu.BufferDesc{
		Heap:  gpu.HeapUpload,
		Size:  size,
		State: gpu.StateGenericRead,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create constant buffer: %w", err)
	}
	// Mapped for the lifetime of the buffer.
	data, err := buffer.Map()
	if err != nil {
		buffer.Destroy()
		return nil, fmt.Errorf("failed to map constant buffer: %w", err)
	}
	return &ConstantBuffer{
		buffer: buffer,
		data:   data,
		stride: gpu.Align256(ConstantBlockSize),
	}, nil
}

func (cb *ConstantBuffer) Buffer() gpu.Buffer {
	return cb.buffer
}

func (cb *ConstantBuffer) Stride() uint64 {
	return cb.stride
}

// Slots is the number of blocks the buffer holds.
func (cb *ConstantBuffer) Slots() int {
	return int(cb.buffer.Size() / cb.stride)
}

// Offset returns the byte offset of slot i. The whole block must fit.
func (cb *ConstantBuffer) Offset(i int) (uint64, error) {
	if i < 0 {
		return 0, fmt.Errorf("%w: slot %d", core.ErrConstantBufferOverflow, i)
	}
	offset := uint64(i) * cb.stride
	if offset+ConstantBlockSize > cb.buffer.Size() {
		return 0, fmt.Errorf("%w: slot %d at %d, buffer is %d bytes", core.ErrConstantBufferOverflow, i, offset, cb.buffer.Size())
	}
	return offset, nil
}

func (cb *ConstantBuffer) Write(i int, block *ConstantBlock) error {
	offset, err := cb.Offset(i)
	if err != nil {
		return err
	}
	block.put(cb.data[offset : offset+ConstantBlockSize])
	return nil
}

func (cb *ConstantBuffer) Destroy() {
	cb.buffer.Unmap()
	cb.buffer.Destroy()
	cb.data = nil
}
