package gpu

type ResourceState uint32

const (
	StatePresent ResourceState = iota
	StateRenderTarget
	StateCopyDest
	StateShaderResource
	StateGenericRead
	StateDepthWrite
)

func (s ResourceState) String() string {
	switch s {
	case StatePresent:
		return "present"
	case StateRenderTarget:
		return "render-target"
	case StateCopyDest:
		return "copy-dest"
	case StateShaderResource:
		return "shader-resource"
	case StateGenericRead:
		return "generic-read"
	case StateDepthWrite:
		return "depth-write"
	}
	return "unknown"
}

type Format uint32

const (
	FormatUnknown Format = iota
	FormatR8G8B8A8Unorm
	FormatB8G8R8A8Unorm
	FormatD32Float
	FormatBC1Unorm
	FormatBC3Unorm
	FormatBC7Unorm
)

// BlockCompressed reports whether the format stores 4x4 texel blocks.
func (f Format) BlockCompressed() bool {
	return f == FormatBC1Unorm || f == FormatBC3Unorm || f == FormatBC7Unorm
}

type IndexFormat uint32

const (
	IndexFormatUint16 IndexFormat = iota
	IndexFormatUint32
)

type HeapType uint32

const (
	// CPU writable, GPU readable.
	HeapUpload HeapType = iota
	// GPU local.
	HeapDefault
)

type DescriptorHeapType uint32

const (
	DescriptorHeapRTV DescriptorHeapType = iota
	DescriptorHeapDSV
	DescriptorHeapCBVSRV
)

type PrimitiveTopology uint32

const (
	TopologyTriangleList PrimitiveTopology = iota
)

type Adapter struct {
	Index int
	Name  string
	// Software rasterizers are never picked.
	Software bool
	// Supported is false when the adapter lacks a required feature level or queue.
	Supported bool
}

type SwapchainDesc struct {
	Width       uint32
	Height      uint32
	BufferCount uint32
	Format      Format
}

type DescriptorHeapDesc struct {
	Type          DescriptorHeapType
	Capacity      uint32
	ShaderVisible bool
}

type BufferDesc struct {
	Heap  HeapType
	Size  uint64
	State ResourceState
}

type TextureDesc struct {
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    Format
	State     ResourceState
}

// PipelineDesc describes the single graphics pipeline. Shaders are SPIR-V
// words. The input layout is fixed: position, normal, tangent and texcoord.
type PipelineDesc struct {
	VertexShader   []uint32
	FragmentShader []uint32
	ColorFormat    Format
	DepthFormat    Format
	// Number of CBV/SRV descriptor tables the shader can address.
	TableCount uint32
}

type Viewport struct {
	X, Y          float32
	Width, Height float32
	MinDepth      float32
	MaxDepth      float32
}

type Rect struct {
	Left, Top, Right, Bottom int32
}

type VertexBufferView struct {
	Buffer Buffer
	Size   uint32
	Stride uint32
}

type IndexBufferView struct {
	Buffer Buffer
	Size   uint32
	Format IndexFormat
}

// Subresource locates one mip level inside a staging buffer.
type Subresource struct {
	Offset   uint64
	Width    uint32
	Height   uint32
	RowPitch uint32
	Rows     uint32
}
