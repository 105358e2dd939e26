package gpu

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/core"
)

const (
	ConstantBufferAlignment  = 256
	TextureDataAlignment     = 512
	TextureRowPitchAlignment = 256
)

// IndexFormatForWidth maps an index element width in bytes to its format.
func IndexFormatForWidth(width int) (IndexFormat, error) {
	switch width {
	case 2:
		return IndexFormatUint16, nil
	case 4:
		return IndexFormatUint32, nil
	}
	return 0, fmt.Errorf("%w: %d bytes", core.ErrUnsupportedIndexWidth, width)
}

func AlignUp(size, alignment uint64) uint64 {
	return (size + alignment - 1) &^ (alignment - 1)
}

// Align256 rounds size up to the constant buffer placement alignment.
func Align256(size uint64) uint64 {
	return AlignUp(size, ConstantBufferAlignment)
}
