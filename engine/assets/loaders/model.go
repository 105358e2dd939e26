package loaders

import (
	"fmt"
	"path/filepath"

	"github.com/qmuntal/gltf"
	"github.com/spaghettifunk/grove/engine/core"
	"github.com/spaghettifunk/grove/engine/resources"
)

// Vertex layout shared by every mesh: position, normal, tangent, texcoord.
const (
	AttributePosition = "POSITION"
	AttributeNormal   = "NORMAL"
	AttributeTangent  = "TANGENT"
	AttributeTexcoord = "TEXCOORD_0"

	VertexStride = 44
)

var vertexAttributes = []struct {
	name string
	size int
}{
	{AttributePosition, 12},
	{AttributeNormal, 12},
	{AttributeTangent, 12},
	{AttributeTexcoord, 8},
}

// MeshSource is the CPU side of one glTF primitive. All byte slices are
// owned copies.
type MeshSource struct {
	Name         string
	Vertices     []byte
	VertexStride int
	VertexCount  int
	Indices      []byte
	IndexCount   int
	IndexWidth   int
}

type Model struct {
	Meshes []MeshSource
}

type ModelLoader struct{}

func (ml *ModelLoader) Load(path string, assetType resources.ResourceType, params interface{}) (*resources.Resource, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open model %s: %w", path, err)
	}
	model, err := ImportDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to import model %s: %w", path, err)
	}

	var size uint64
	for _, m := range model.Meshes {
		size += uint64(len(m.Vertices) + len(m.Indices))
	}
	return &resources.Resource{
		Type:     resources.ResourceTypeModel,
		Name:     filepath.Base(path),
		FullPath: path,
		DataSize: size,
		Data:     model,
	}, nil
}

func (ml *ModelLoader) Unload(res *resources.Resource) error {
	res.Data = nil
	return nil
}

// ImportDocument converts every primitive of every mesh into a MeshSource,
// in document order.
func ImportDocument(doc *gltf.Document) (*Model, error) {
	model := &Model{}
	for mi, mesh := range doc.Meshes {
		for pi, prim := range mesh.Primitives {
			src, err := importPrimitive(doc, prim)
			if err != nil {
				return nil, fmt.Errorf("mesh %d (%s) primitive %d: %w", mi, mesh.Name, pi, err)
			}
			src.Name = mesh.Name
			model.Meshes = append(model.Meshes, *src)
		}
	}
	return model, nil
}

func importPrimitive(doc *gltf.Document, prim *gltf.Primitive) (*MeshSource, error) {
	var (
		streams = make([][]byte, len(vertexAttributes))
		strides = make([]int, len(vertexAttributes))
		sizes   = make([]int, len(vertexAttributes))
		count   = -1
	)
	for i, attr := range vertexAttributes {
		idx, ok := prim.Attributes[attr.name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", core.ErrMissingAttribute, attr.name)
		}
		if idx < 0 || int(idx) >= len(doc.Accessors) {
			return nil, fmt.Errorf("%s accessor %d does not exist", attr.name, idx)
		}
		acc := doc.Accessors[idx]
		if acc.ComponentType != gltf.ComponentFloat {
			return nil, fmt.Errorf("%s must hold floats, got %v", attr.name, acc.ComponentType)
		}
		if count < 0 {
			count = int(acc.Count)
		} else if int(acc.Count) < count {
			return nil, fmt.Errorf("%s has %d elements, %s has %d", attr.name, acc.Count, AttributePosition, count)
		}

		data, stride, err := accessorBytes(doc, acc, attr.size, count)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", attr.name, err)
		}
		streams[i], strides[i], sizes[i] = data, stride, attr.size
	}

	vertices, stride := Interleave(streams, strides, sizes, count)

	indices, indexCount, width, err := indexBytes(doc, prim)
	if err != nil {
		return nil, err
	}

	return &MeshSource{
		Vertices:     vertices,
		VertexStride: stride,
		VertexCount:  count,
		Indices:      indices,
		IndexCount:   indexCount,
		IndexWidth:   width,
	}, nil
}

// accessorBytes resolves an accessor to the bytes backing its first count
// elements together with the distance between elements. A zero buffer view
// stride means the elements are tightly packed.
func accessorBytes(doc *gltf.Document, acc *gltf.Accessor, size, count int) ([]byte, int, error) {
	if acc.BufferView == nil {
		return nil, 0, fmt.Errorf("sparse or empty accessors are not supported")
	}
	if vi := *acc.BufferView; vi < 0 || vi >= len(doc.BufferViews) {
		return nil, 0, fmt.Errorf("buffer view %d does not exist", vi)
	}
	view := doc.BufferViews[*acc.BufferView]
	if view.Buffer < 0 || view.Buffer >= len(doc.Buffers) {
		return nil, 0, fmt.Errorf("buffer %d does not exist", view.Buffer)
	}
	buffer := doc.Buffers[view.Buffer].Data

	element := int(acc.ComponentType.ByteSize()) * int(acc.Type.Components())
	if element < size {
		return nil, 0, fmt.Errorf("elements of %d bytes are smaller than the %d the layout needs", element, size)
	}
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = element
	}

	start := int(view.ByteOffset) + int(acc.ByteOffset)
	end := start
	if count > 0 {
		end = start + stride*(count-1) + size
	}
	if end > int(view.ByteOffset)+int(view.ByteLength) || end > len(buffer) {
		return nil, 0, fmt.Errorf("accessor reads past its buffer view")
	}
	return buffer[start:end], stride, nil
}

// indexBytes copies the index stream unchanged. Its element width is the
// byte count divided by the index count.
func indexBytes(doc *gltf.Document, prim *gltf.Primitive) ([]byte, int, int, error) {
	if prim.Indices == nil {
		return nil, 0, 0, fmt.Errorf("%w: indices", core.ErrMissingAttribute)
	}
	if idx := *prim.Indices; idx < 0 || idx >= len(doc.Accessors) {
		return nil, 0, 0, fmt.Errorf("index accessor %d does not exist", idx)
	}
	acc := doc.Accessors[*prim.Indices]
	if acc.Type != gltf.AccessorScalar {
		return nil, 0, 0, fmt.Errorf("index accessor must be scalar, got %s", acc.Type)
	}
	count := int(acc.Count)
	if count == 0 {
		return nil, 0, 0, fmt.Errorf("index accessor is empty")
	}

	component := int(acc.ComponentType.ByteSize())
	data, _, err := accessorBytes(doc, acc, component, count)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("indices: %w", err)
	}
	total := count * component
	if len(data) != total {
		return nil, 0, 0, fmt.Errorf("interleaved index buffers are not supported")
	}
	return append([]byte(nil), data...), count, total / count, nil
}
