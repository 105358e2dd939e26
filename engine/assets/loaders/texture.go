package loaders

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spaghettifunk/grove/engine/renderer/gpu"
	"github.com/spaghettifunk/grove/engine/resources"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

type MipLevel struct {
	Width    uint32
	Height   uint32
	RowPitch uint32
	Rows     uint32
	Data     []byte
}

// TextureData is a decoded texture ready to be staged for upload.
type TextureData struct {
	Name   string
	Width  uint32
	Height uint32
	Format gpu.Format
	Mips   []MipLevel
}

// Size is the number of bytes across all mip levels.
func (t *TextureData) Size() uint64 {
	var n uint64
	for _, m := range t.Mips {
		n += uint64(len(m.Data))
	}
	return n
}

type TextureLoader struct{}

func (tl *TextureLoader) Load(path string, assetType resources.ResourceType, params interface{}) (*resources.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tex *TextureData
	if strings.EqualFold(filepath.Ext(path), ".dds") {
		tex, err = ParseDDS(data)
	} else {
		tex, err = DecodeImage(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load texture %s: %w", path, err)
	}
	tex.Name = filepath.Base(path)

	return &resources.Resource{
		Type:     resources.ResourceTypeTexture,
		Name:     tex.Name,
		FullPath: path,
		DataSize: tex.Size(),
		Data:     tex,
	}, nil
}

func (tl *TextureLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// DecodeImage decodes any registered image format (png, jpeg, bmp, tiff,
// webp) into a single mip of RGBA8.
func DecodeImage(data []byte) (*TextureData, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != b.Dx()*4 || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := uint32(b.Dx()), uint32(b.Dy())
	return &TextureData{
		Width:  w,
		Height: h,
		Format: gpu.FormatR8G8B8A8Unorm,
		Mips: []MipLevel{{
			Width:    w,
			Height:   h,
			RowPitch: w * 4,
			Rows:     h,
			Data:     rgba.Pix,
		}},
	}, nil
}
