package headless

import "github.com/spaghettifunk/grove/engine/renderer/gpu"

// Draw is a DrawIndexed call together with the bindings in effect.
type Draw struct {
	IndexCount     uint32
	InstanceCount  uint32
	Table          uint32
	ConstantOffset uint64
	VertexStride   uint32
	IndexFormat    gpu.IndexFormat
}

// Draws folds a command stream into the draws it issues.
func Draws(commands []Command) []Draw {
	var (
		draws []Draw
		cur   Draw
	)
	for _, c := range commands {
		switch c.Op {
		case OpSetDescriptorTable:
			cur.Table = c.Slot
		case OpSetConstantBuffer:
			cur.ConstantOffset = c.Offset
		case OpSetVertexBuffer:
			cur.VertexStride = c.VertexView.Stride
		case OpSetIndexBuffer:
			cur.IndexFormat = c.IndexView.Format
		case OpDrawIndexed:
			d := cur
			d.IndexCount = c.IndexCount
			d.InstanceCount = c.InstanceCount
			draws = append(draws, d)
		}
	}
	return draws
}
