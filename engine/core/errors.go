package core

import (
	"errors"
)

var (
	ErrNoAdapter              = errors.New("no capable hardware adapter found")
	ErrMissingAttribute       = errors.New("required vertex attribute is missing")
	ErrCapacityExceeded       = errors.New("mesh table capacity exceeded")
	ErrUnsupportedIndexWidth  = errors.New("unsupported index element width")
	ErrConstantBufferOverflow = errors.New("constant block outside of the constant buffer")
	ErrStagingOverflow        = errors.New("texture data does not fit in the staging buffer")
	ErrAssetNotFound          = errors.New("asset not found")
	ErrUnknownAssetType       = errors.New("unknown asset type")
	ErrInvalidTexture         = errors.New("invalid texture data")
	ErrInvalidConfig          = errors.New("invalid configuration")
	ErrUnknown                = errors.New("unknown")
)
