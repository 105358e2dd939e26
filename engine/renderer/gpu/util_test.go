package gpu

import (
	"testing"

	"github.com/spaghettifunk/grove/engine/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexFormatForWidth(t *testing.T) {
	f, err := IndexFormatForWidth(2)
	require.NoError(t, err)
	assert.Equal(t, IndexFormatUint16, f)

	f, err = IndexFormatForWidth(4)
	require.NoError(t, err)
	assert.Equal(t, IndexFormatUint32, f)

	for _, w := range []int{0, 1, 3, 8} {
		_, err := IndexFormatForWidth(w)
		assert.ErrorIs(t, err, core.ErrUnsupportedIndexWidth, "width %d", w)
	}
}

func TestAlign256(t *testing.T) {
	assert.Equal(t, uint64(0), Align256(0))
	assert.Equal(t, uint64(256), Align256(1))
	assert.Equal(t, uint64(256), Align256(128))
	assert.Equal(t, uint64(256), Align256(256))
	assert.Equal(t, uint64(512), Align256(257))
	assert.Equal(t, uint64(1024), AlignUp(600, TextureDataAlignment))
}
