package systems

import (
	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

// MeshEntry locates one entity's geometry inside the shared buffers.
type MeshEntry struct {
	// Ordinal is the entity's uniform slot, dense from 0 in registration order.
	Ordinal      int
	VertexOffset uint64
	IndexOffset  uint64
	IndexCount   uint32
}

// MeshTable is the immutable result of packing every renderable entity's
// mesh into one vertex buffer and one index buffer. Entities that share a
// *ecs.Mesh share its bytes but still get their own ordinal.
type MeshTable struct {
	entries map[ecs.Entity]MeshEntry
	order   []ecs.Entity

	vertexBuffer gpu.Buffer
	indexBuffer  gpu.Buffer
	vertexBytes  uint64
	indexBytes   uint64
}

// PackMeshes walks the store in registration order and uploads the mesh of
// every entity that has a RenderModel with non-empty geometry. progress, if
// non-nil, is called after each renderable entity.
func PackMeshes(dev gpu.Device, store *ecs.Store, progress func(done, total int)) (*MeshTable, error) {
	var renderable []ecs.Entity
	for _, e := range store.Entities() {
		rm := ecs.Get[ecs.RenderModel](store, e)
		if rm == nil || rm.Mesh == nil {
			continue
		}
		if len(rm.Mesh.Vertices) == 0 || len(rm.Mesh.Indices) == 0 {
			continue
		}
		renderable = append(renderable, e)
	}

	t := &MeshTable{entries: make(map[ecs.Entity]MeshEntry, len(renderable))}

	type placed struct{ vertex, index uint64 }
	seen := make(map[*ecs.Mesh]placed)
	var meshes []*ecs.Mesh

	for i, e := range renderable {
		mesh := ecs.Get[ecs.RenderModel](store, e).Mesh
		at, ok := seen[mesh]
		if !ok {
			at = placed{vertex: t.vertexBytes, index: t.indexBytes}
			seen[mesh] = at
			meshes = append(meshes, mesh)
			t.vertexBytes += mesh.VertexBytes()
			t.indexBytes += mesh.IndexBytes()
		}
		t.entries[e] = MeshEntry{
			Ordinal:      i,
			VertexOffset: at.vertex,
			IndexOffset:  at.index,
			IndexCount:   uint32(len(mesh.Indices)),
		}
		t.order = append(t.order, e)
		if progress != nil {
			progress(i+1, len(renderable))
		}
	}

	if len(meshes) == 0 {
		return t, nil
	}

	var err error
	t.vertexBuffer, err = dev.CreateBuffer(t.vertexBytes, gpu.BufferUsageVertex, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		return nil, errors.Wrap(err, "systems: create vertex buffer")
	}
	t.indexBuffer, err = dev.CreateBuffer(t.indexBytes, gpu.BufferUsageIndex, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
	if err != nil {
		t.Destroy()
		return nil, errors.Wrap(err, "systems: create index buffer")
	}

	for _, mesh := range meshes {
		at := seen[mesh]
		if err := t.vertexBuffer.Write(at.vertex, ecs.VertexBytes(mesh.Vertices)); err != nil {
			t.Destroy()
			return nil, errors.Wrapf(err, "systems: upload vertices of %q", mesh.Name)
		}
		if err := t.indexBuffer.Write(at.index, ecs.IndexBytes(mesh.Indices)); err != nil {
			t.Destroy()
			return nil, errors.Wrapf(err, "systems: upload indices of %q", mesh.Name)
		}
	}
	return t, nil
}

// Lookup returns the packed location of e.
func (t *MeshTable) Lookup(e ecs.Entity) (MeshEntry, bool) {
	entry, ok := t.entries[e]
	return entry, ok
}

// Len is the number of packed entities, which is also the number of uniform
// slots the table needs.
func (t *MeshTable) Len() int { return len(t.order) }

// Entities returns the packed entities in ordinal order.
func (t *MeshTable) Entities() []ecs.Entity {
	return append([]ecs.Entity(nil), t.order...)
}

func (t *MeshTable) VertexBuffer() gpu.Buffer { return t.vertexBuffer }
func (t *MeshTable) IndexBuffer() gpu.Buffer  { return t.indexBuffer }

func (t *MeshTable) Destroy() {
	if t.vertexBuffer != nil {
		t.vertexBuffer.Destroy()
		t.vertexBuffer = nil
	}
	if t.indexBuffer != nil {
		t.indexBuffer.Destroy()
		t.indexBuffer = nil
	}
}
