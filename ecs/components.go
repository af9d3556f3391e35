package ecs

import (
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

// Vertex is the layout of the shared vertex buffer: position, color, uv.
type Vertex struct {
	Pos   [3]float32
	Color [3]float32
	UV    [2]float32
}

const (
	VertexSize = uint32(unsafe.Sizeof(Vertex{}))
	MVPSize    = uint64(unsafe.Sizeof(MVP{}))
	IndexSize  = uint64(unsafe.Sizeof(uint16(0)))
)

// VertexAttributes describes Vertex for pipeline creation.
var VertexAttributes = []gpu.VertexAttribute{
	{Location: 0, Components: 3, Offset: uint32(unsafe.Offsetof(Vertex{}.Pos))},
	{Location: 1, Components: 3, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
	{Location: 2, Components: 2, Offset: uint32(unsafe.Offsetof(Vertex{}.UV))},
}

// VertexBytes views vertices as raw bytes without copying.
func VertexBytes(vertices []Vertex) []byte {
	if len(vertices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*int(VertexSize))
}

// IndexBytes views indices as raw bytes without copying.
func IndexBytes(indices []uint16) []byte {
	if len(indices) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*int(IndexSize))
}

// MVP is the per-entity uniform block: three column-major matrices.
type MVP struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

// Bytes views the block as the 192 bytes uploaded to a uniform slot.
func (m *MVP) Bytes() []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(m)), MVPSize)
}

// Mesh holds geometry and the scratch MVP recomputed every frame.
type Mesh struct {
	Name     string
	Vertices []Vertex
	Indices  []uint16
	MVP      MVP
}

// VertexBytes is the size of the mesh's vertex data in bytes.
func (m *Mesh) VertexBytes() uint64 {
	return uint64(len(m.Vertices)) * uint64(VertexSize)
}

// IndexBytes is the size of the mesh's index data in bytes.
func (m *Mesh) IndexBytes() uint64 {
	return uint64(len(m.Indices)) * IndexSize
}

type Transform struct {
	Position mgl32.Vec3
}

// Matrix returns the model matrix, a pure translation.
func (t *Transform) Matrix() mgl32.Mat4 {
	if t == nil {
		return mgl32.Ident4()
	}
	return mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
}

// Material selects the pipeline an entity is drawn with. Wireframe is optional.
type Material struct {
	Name      string
	Solid     gpu.Pipeline
	Wireframe gpu.Pipeline
}

// Pipeline returns the wireframe pipeline when requested and available, else the solid one.
func (m *Material) Pipeline(wireframe bool) gpu.Pipeline {
	if m == nil {
		return nil
	}
	if wireframe && m.Wireframe != nil {
		return m.Wireframe
	}
	return m.Solid
}

// RenderModel ties an entity to caller-owned mesh, transform and material.
// The store never frees what these point to.
type RenderModel struct {
	Mesh      *Mesh
	Transform *Transform
	Material  *Material
}
