package loaders

import (
	"encoding/binary"
	"fmt"

	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

const (
	ddsMagic      = 0x20534444 // "DDS "
	ddsHeaderSize = 124
	ddsDX10Size   = 20

	MaxTextureDimension = 16384

	ddpfFourCC = 0x4
	ddpfRGB    = 0x40

	dxgiR8G8B8A8Unorm     = 28
	dxgiR8G8B8A8UnormSRGB = 29
	dxgiBC1Unorm          = 71
	dxgiBC1UnormSRGB      = 72
	dxgiBC3Unorm          = 77
	dxgiBC3UnormSRGB      = 78
	dxgiB8G8R8A8Unorm     = 87
	dxgiBC7Unorm          = 98
	dxgiBC7UnormSRGB      = 99
)

func fourCC(s string) uint32 {
	return uint32(s[0]) | uint32(s[1])<<8 | uint32(s[2])<<16 | uint32(s[3])<<24
}

// ParseDDS reads a 2D DirectDraw Surface with its full mip chain.
// Uncompressed 32-bit RGBA/BGRA and BC1, BC3 and BC7 are supported.
func ParseDDS(data []byte) (*TextureData, error) {
	if len(data) < 4+ddsHeaderSize || binary.LittleEndian.Uint32(data) != ddsMagic {
		return nil, fmt.Errorf("%w: not a DDS file", core.ErrInvalidTexture)
	}
	h := data[4 : 4+ddsHeaderSize]
	le := binary.LittleEndian
	if le.Uint32(h[0:]) != ddsHeaderSize {
		return nil, fmt.Errorf("%w: bad DDS header size %d", core.ErrInvalidTexture, le.Uint32(h[0:]))
	}

	height := le.Uint32(h[8:])
	width := le.Uint32(h[12:])
	mips := le.Uint32(h[24:])
	if mips == 0 {
		mips = 1
	}
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("%w: empty DDS surface", core.ErrInvalidTexture)
	}
	if width > MaxTextureDimension || height > MaxTextureDimension {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d", core.ErrInvalidTexture, width, height, MaxTextureDimension)
	}

	pfFlags := le.Uint32(h[76:])
	pfFourCC := le.Uint32(h[80:])
	pfBits := le.Uint32(h[84:])
	pfRMask := le.Uint32(h[88:])

	payload := data[4+ddsHeaderSize:]
	var format gpu.Format
	switch {
	case pfFlags&ddpfFourCC != 0 && pfFourCC == fourCC("DX10"):
		if len(payload) < ddsDX10Size {
			return nil, fmt.Errorf("%w: truncated DX10 header", core.ErrInvalidTexture)
		}
		dxgi := le.Uint32(payload)
		payload = payload[ddsDX10Size:]
		switch dxgi {
		case dxgiR8G8B8A8Unorm, dxgiR8G8B8A8UnormSRGB:
			format = gpu.FormatR8G8B8A8Unorm
		case dxgiB8G8R8A8Unorm:
			format = gpu.FormatB8G8R8A8Unorm
		case dxgiBC1Unorm, dxgiBC1UnormSRGB:
			format = gpu.FormatBC1Unorm
		case dxgiBC3Unorm, dxgiBC3UnormSRGB:
			format = gpu.FormatBC3Unorm
		case dxgiBC7Unorm, dxgiBC7UnormSRGB:
			format = gpu.FormatBC7Unorm
		default:
			return nil, fmt.Errorf("%w: unsupported DXGI format %d", core.ErrInvalidTexture, dxgi)
		}
	case pfFlags&ddpfFourCC != 0 && pfFourCC == fourCC("DXT1"):
		format = gpu.FormatBC1Unorm
	case pfFlags&ddpfFourCC != 0 && (pfFourCC == fourCC("DXT5") || pfFourCC == fourCC("DXT4")):
		format = gpu.FormatBC3Unorm
	case pfFlags&ddpfRGB != 0 && pfBits == 32 && pfRMask == 0x000000FF:
		format = gpu.FormatR8G8B8A8Unorm
	case pfFlags&ddpfRGB != 0 && pfBits == 32 && pfRMask == 0x00FF0000:
		format = gpu.FormatB8G8R8A8Unorm
	default:
		return nil, fmt.Errorf("%w: unsupported DDS pixel format (flags %#x, fourcc %#x)", core.ErrInvalidTexture, pfFlags, pfFourCC)
	}

	tex := &TextureData{Width: width, Height: height, Format: format}
	w, ht := width, height
	for level := uint32(0); level < mips; level++ {
		pitch, rows := SurfaceLayout(format, w, ht)
		size := int(pitch) * int(rows)
		if len(payload) < size {
			return nil, fmt.Errorf("%w: mip %d truncated (%d of %d bytes)", core.ErrInvalidTexture, level, len(payload), size)
		}
		tex.Mips = append(tex.Mips, MipLevel{
			Width:    w,
			Height:   ht,
			RowPitch: pitch,
			Rows:     rows,
			Data:     append([]byte(nil), payload[:size]...),
		})
		payload = payload[size:]
		w = max(1, w/2)
		ht = max(1, ht/2)
	}
	return tex, nil
}

// SurfaceLayout returns the tightly packed row pitch and row count of a
// w x h surface. Block compressed rows hold one row of 4x4 blocks.
func SurfaceLayout(format gpu.Format, w, h uint32) (uint32, uint32) {
	switch format {
	case gpu.FormatBC1Unorm:
		return max(1, (w+3)/4) * 8, max(1, (h+3)/4)
	case gpu.FormatBC3Unorm, gpu.FormatBC7Unorm:
		return max(1, (w+3)/4) * 16, max(1, (h+3)/4)
	}
	return w * 4, h
}
