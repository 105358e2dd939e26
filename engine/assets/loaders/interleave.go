package loaders

// Interleave packs count vertices from separate attribute streams into one
// buffer. Stream a holds elements strides[a] bytes apart, of which the first
// sizes[a] bytes are copied. The result is freshly allocated and owned by
// the caller, laid out as count vertices of Σsizes bytes each.
func Interleave(streams [][]byte, strides, sizes []int, count int) ([]byte, int) {
	stride := 0
	for _, s := range sizes {
		stride += s
	}

	out := make([]byte, stride*count)
	offset := 0
	for a, stream := range streams {
		for v := 0; v < count; v++ {
			src := stream[v*strides[a] : v*strides[a]+sizes[a]]
			copy(out[v*stride+offset:], src)
		}
		offset += sizes[a]
	}
	return out, stride
}
