package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

func vulkanFormat(format gpu.Format) (vk.Format, error) {
	switch format {
	case gpu.FormatR8G8B8A8Unorm:
		return vk.FormatR8g8b8a8Unorm, nil
	case gpu.FormatB8G8R8A8Unorm:
		return vk.FormatB8g8r8a8Unorm, nil
	case gpu.FormatD32Float:
		return vk.FormatD32Sfloat, nil
	case gpu.FormatBC1Unorm:
		return vk.FormatBc1RgbaUnormBlock, nil
	case gpu.FormatBC3Unorm:
		return vk.FormatBc3UnormBlock, nil
	case gpu.FormatBC7Unorm:
		return vk.FormatBc7UnormBlock, nil
	}
	return vk.FormatUndefined, fmt.Errorf("format %d has no Vulkan equivalent", format)
}

func gpuFormat(format vk.Format) gpu.Format {
	switch format {
	case vk.FormatR8g8b8a8Unorm:
		return gpu.FormatR8G8B8A8Unorm
	case vk.FormatB8g8r8a8Unorm:
		return gpu.FormatB8G8R8A8Unorm
	case vk.FormatD32Sfloat:
		return gpu.FormatD32Float
	case vk.FormatBc1RgbaUnormBlock:
		return gpu.FormatBC1Unorm
	case vk.FormatBc3UnormBlock:
		return gpu.FormatBC3Unorm
	case vk.FormatBc7UnormBlock:
		return gpu.FormatBC7Unorm
	}
	return gpu.FormatUnknown
}

// blockBytes is the size of one 4x4 block, or zero for linear formats.
func blockBytes(format gpu.Format) uint32 {
	switch format {
	case gpu.FormatBC1Unorm:
		return 8
	case gpu.FormatBC3Unorm, gpu.FormatBC7Unorm:
		return 16
	}
	return 0
}

// copyExtent converts a staged subresource into the texel row length and
// image height Vulkan expects for the buffer side of a copy.
func copyExtent(format gpu.Format, sub gpu.Subresource) (rowLength, imageHeight uint32) {
	if b := blockBytes(format); b != 0 {
		return sub.RowPitch / b * 4, sub.Rows * 4
	}
	return sub.RowPitch / 4, sub.Rows
}

type layoutAccess struct {
	layout vk.ImageLayout
	access vk.AccessFlags
	stage  vk.PipelineStageFlags
}

func stateLayout(state gpu.ResourceState) layoutAccess {
	switch state {
	case gpu.StateRenderTarget:
		return layoutAccess{
			layout: vk.ImageLayoutColorAttachmentOptimal,
			access: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
			stage:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		}
	case gpu.StateCopyDest:
		return layoutAccess{
			layout: vk.ImageLayoutTransferDstOptimal,
			access: vk.AccessFlags(vk.AccessTransferWriteBit),
			stage:  vk.PipelineStageFlags(vk.PipelineStageTransferBit),
		}
	case gpu.StateShaderResource:
		return layoutAccess{
			layout: vk.ImageLayoutShaderReadOnlyOptimal,
			access: vk.AccessFlags(vk.AccessShaderReadBit),
			stage:  vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
		}
	case gpu.StateDepthWrite:
		return layoutAccess{
			layout: vk.ImageLayoutDepthStencilAttachmentOptimal,
			access: vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit | vk.AccessDepthStencilAttachmentWriteBit),
			stage:  vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit | vk.PipelineStageLateFragmentTestsBit),
		}
	case gpu.StateGenericRead:
		return layoutAccess{
			layout: vk.ImageLayoutGeneral,
			access: vk.AccessFlags(vk.AccessShaderReadBit | vk.AccessTransferReadBit),
			stage:  vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit),
		}
	}
	return layoutAccess{
		layout: vk.ImageLayoutPresentSrc,
		access: 0,
		stage:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
	}
}

func indexType(format gpu.IndexFormat) vk.IndexType {
	if format == gpu.IndexFormatUint32 {
		return vk.IndexTypeUint32
	}
	return vk.IndexTypeUint16
}
