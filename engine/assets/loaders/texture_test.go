package loaders

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/spaghettifunk/grove/engine/resources"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ddsHeader(width, height, mips uint32, flags, fourcc, bits, rmask uint32) []byte {
	h := make([]byte, 4+ddsHeaderSize)
	le := binary.LittleEndian
	le.PutUint32(h[0:], ddsMagic)
	le.PutUint32(h[4:], ddsHeaderSize)
	le.PutUint32(h[4+8:], height)
	le.PutUint32(h[4+12:], width)
	le.PutUint32(h[4+24:], mips)
	le.PutUint32(h[4+72:], 32)
	le.PutUint32(h[4+76:], flags)
	le.PutUint32(h[4+80:], fourcc)
	le.PutUint32(h[4+84:], bits)
	le.PutUint32(h[4+88:], rmask)
	return h
}

func TestParseDDSUncompressedMipChain(t *testing.T) {
	data := ddsHeader(4, 2, 3, ddpfRGB, 0, 32, 0xFF)
	// 4x2, 2x1, 1x1 RGBA8.
	data = append(data, bytes.Repeat([]byte{1}, 32)...)
	data = append(data, bytes.Repeat([]byte{2}, 8)...)
	data = append(data, bytes.Repeat([]byte{3}, 4)...)

	tex, err := ParseDDS(data)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatR8G8B8A8Unorm, tex.Format)
	require.Len(t, tex.Mips, 3)
	assert.Equal(t, MipLevel{Width: 2, Height: 1, RowPitch: 8, Rows: 1, Data: bytes.Repeat([]byte{2}, 8)}, tex.Mips[1])
	assert.Equal(t, uint64(44), tex.Size())
}

func TestParseDDSBlockCompressed(t *testing.T) {
	data := ddsHeader(8, 8, 1, ddpfFourCC, fourCC("DXT1"), 0, 0)
	data = append(data, make([]byte, 4*8)...)

	tex, err := ParseDDS(data)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatBC1Unorm, tex.Format)
	assert.Equal(t, uint32(16), tex.Mips[0].RowPitch)
	assert.Equal(t, uint32(2), tex.Mips[0].Rows)
}

func TestParseDDSDX10(t *testing.T) {
	data := ddsHeader(4, 4, 0, ddpfFourCC, fourCC("DX10"), 0, 0)
	ext := make([]byte, ddsDX10Size)
	binary.LittleEndian.PutUint32(ext, dxgiBC7Unorm)
	data = append(data, ext...)
	data = append(data, make([]byte, 16)...)

	tex, err := ParseDDS(data)
	require.NoError(t, err)
	assert.Equal(t, gpu.FormatBC7Unorm, tex.Format)
	assert.Len(t, tex.Mips, 1)
}

func TestParseDDSErrors(t *testing.T) {
	_, err := ParseDDS([]byte("not a texture"))
	assert.ErrorIs(t, err, core.ErrInvalidTexture)

	truncated := ddsHeader(4, 4, 1, ddpfRGB, 0, 32, 0xFF)
	_, err = ParseDDS(append(truncated, 0, 0, 0))
	assert.ErrorIs(t, err, core.ErrInvalidTexture)

	rgb24 := ddsHeader(4, 4, 1, ddpfRGB, 0, 24, 0xFF)
	_, err = ParseDDS(append(rgb24, make([]byte, 48)...))
	assert.ErrorIs(t, err, core.ErrInvalidTexture)
}

func TestTextureLoaderDecodesImages(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	path := filepath.Join(t.TempDir(), "leaf.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	res, err := (&TextureLoader{}).Load(path, resources.ResourceTypeTexture, nil)
	require.NoError(t, err)
	tex := res.Data.(*TextureData)
	assert.Equal(t, "leaf.png", tex.Name)
	assert.Equal(t, gpu.FormatR8G8B8A8Unorm, tex.Format)
	require.Len(t, tex.Mips, 1)
	assert.Equal(t, uint32(12), tex.Mips[0].RowPitch)
	px := tex.Mips[0].Data[1*12+2*4:]
	assert.Equal(t, []byte{10, 20, 30, 255}, px[:4])
}

func TestBytesToBytecode(t *testing.T) {
	code, err := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 1, 0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, []uint32{spirvMagic, 1}, code)

	_, err = bytesToBytecode([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = bytesToBytecode([]byte{0, 0, 0, 0})
	assert.Error(t, err)
}

func TestParseDDSRejectsOversizedSurface(t *testing.T) {
	// 2^30 * 4 wraps a uint32 pitch to zero.
	data := ddsHeader(1<<30, 1, 1, ddpfRGB, 0, 32, 0xFF)
	_, err := ParseDDS(data)
	assert.ErrorIs(t, err, core.ErrInvalidTexture)
	assert.ErrorContains(t, err, "exceeds")

	data = ddsHeader(4, MaxTextureDimension+1, 1, ddpfRGB, 0, 32, 0xFF)
	_, err = ParseDDS(data)
	assert.ErrorIs(t, err, core.ErrInvalidTexture)
}
