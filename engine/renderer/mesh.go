package renderer

import (
	"fmt"

	"github.com/spaghettifunk/grove/engine/assets/loaders"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/renderer/gpu"
)

// Mesh is an uploaded, immutable draw unit.
type Mesh struct {
	Name         string
	VertexBuffer gpu.Buffer
	IndexBuffer  gpu.Buffer
	VertexView   gpu.VertexBufferView
	IndexView    gpu.IndexBufferView
	NumIndices   uint32
}

// NewMeshes uploads every mesh of the model. A model with more meshes than
// capacity is rejected before anything is uploaded.
func NewMeshes(up *Uploader, model *loaders.Model, capacity int) ([]*Mesh, error) {
	if len(model.Meshes) > capacity {
		return nil, fmt.Errorf("%w: model has %d meshes, table holds %d", core.ErrCapacityExceeded, len(model.Meshes), capacity)
	}

	meshes := make([]*Mesh, 0, len(model.Meshes))
	for i := range model.Meshes {
		m, err := newMesh(up, &model.Meshes[i])
		if err != nil {
			destroyMeshes(meshes)
			return nil, fmt.Errorf("mesh %d: %w", i, err)
		}
		meshes = append(meshes, m)
	}
	return meshes, nil
}

func newMesh(up *Uploader, src *loaders.MeshSource) (*Mesh, error) {
	format, err := gpu.IndexFormatForWidth(src.IndexWidth)
	if err != nil {
		return nil, err
	}
	vb, err := up.UploadBuffer(src.Vertices)
	if err != nil {
		return nil, err
	}
	ib, err := up.UploadBuffer(src.Indices)
	if err != nil {
		vb.Destroy()
		return nil, err
	}
	return &Mesh{
		Name:         src.Name,
		VertexBuffer: vb,
		IndexBuffer:  ib,
		VertexView: gpu.VertexBufferView{
			Buffer: vb,
			Size:   uint32(len(src.Vertices)),
			Stride: uint32(src.VertexStride),
		},
		IndexView: gpu.IndexBufferView{
			Buffer: ib,
			Size:   uint32(len(src.Indices)),
			Format: format,
		},
		NumIndices: uint32(src.IndexCount),
	}, nil
}

func (m *Mesh) Destroy() {
	m.VertexBuffer.Destroy()
	m.IndexBuffer.Destroy()
}

func destroyMeshes(meshes []*Mesh) {
	for _, m := range meshes {
		m.Destroy()
	}
}
