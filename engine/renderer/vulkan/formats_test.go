package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMapping(t *testing.T) {
	for _, f := range []gpu.Format{
		gpu.FormatR8G8B8A8Unorm,
		gpu.FormatB8G8R8A8Unorm,
		gpu.FormatD32Float,
		gpu.FormatBC1Unorm,
		gpu.FormatBC3Unorm,
		gpu.FormatBC7Unorm,
	} {
		vf, err := vulkanFormat(f)
		require.NoError(t, err)
		assert.Equal(t, f, gpuFormat(vf))
	}

	_, err := vulkanFormat(gpu.FormatUnknown)
	assert.Error(t, err)
	assert.Equal(t, gpu.FormatUnknown, gpuFormat(vk.FormatR32Sfloat))
}

func TestCopyExtent(t *testing.T) {
	// 256x128 RGBA: pitch is width*4.
	row, height := copyExtent(gpu.FormatR8G8B8A8Unorm, gpu.Subresource{Width: 256, Height: 128, RowPitch: 1024, Rows: 128})
	assert.Equal(t, uint32(256), row)
	assert.Equal(t, uint32(128), height)

	// 64x64 BC1: 16 block rows of 16 blocks, 8 bytes each.
	row, height = copyExtent(gpu.FormatBC1Unorm, gpu.Subresource{Width: 64, Height: 64, RowPitch: 128, Rows: 16})
	assert.Equal(t, uint32(64), row)
	assert.Equal(t, uint32(64), height)

	// Padded BC7 rows widen the buffer row.
	row, _ = copyExtent(gpu.FormatBC7Unorm, gpu.Subresource{Width: 8, Height: 8, RowPitch: 256, Rows: 2})
	assert.Equal(t, uint32(64), row)
}

func TestStateLayout(t *testing.T) {
	assert.Equal(t, vk.ImageLayoutPresentSrc, stateLayout(gpu.StatePresent).layout)
	assert.Equal(t, vk.ImageLayoutColorAttachmentOptimal, stateLayout(gpu.StateRenderTarget).layout)
	assert.Equal(t, vk.ImageLayoutTransferDstOptimal, stateLayout(gpu.StateCopyDest).layout)
	assert.Equal(t, vk.ImageLayoutShaderReadOnlyOptimal, stateLayout(gpu.StateShaderResource).layout)
	assert.Equal(t, vk.IndexTypeUint32, indexType(gpu.IndexFormatUint32))
	assert.Equal(t, vk.IndexTypeUint16, indexType(gpu.IndexFormatUint16))
	assert.Equal(t, uint32(0), blockBytes(gpu.FormatR8G8B8A8Unorm))
}
