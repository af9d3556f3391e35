// Package systems holds the per-frame render system: it packs entity meshes
// into shared buffers once, then every frame writes each entity's MVP into
// its uniform slot and records one indexed draw per entity.
package systems

import (
	"log/slog"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/descriptor"
	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/frame"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/uniform"
)

// Camera supplies the view transform.
type Camera interface {
	View() mgl32.Mat4
	Position() mgl32.Vec3
}

// Projection parameters. FovY is in degrees.
type Projection struct {
	FovY float32
	Near float32
	Far  float32
}

// DefaultProjection is a 45 degree frustum from 0.1 to 20.
var DefaultProjection = Projection{FovY: 45, Near: 0.1, Far: 20}

// Matrix returns the perspective matrix for the given aspect ratio
// with Y flipped for Vulkan clip space.
func (p Projection) Matrix(aspect float32) mgl32.Mat4 {
	m := mgl32.Perspective(mgl32.DegToRad(p.FovY), aspect, p.Near, p.Far)
	m[5] *= -1
	return m
}

// Renderer implements frame.Recorder.
type Renderer struct {
	store  *ecs.Store
	table  *MeshTable
	alloc  *uniform.Allocator
	binder *descriptor.Binder
	camera Camera
	logger *slog.Logger

	proj      Projection
	wireframe bool

	draws  int
	warned map[ecs.Entity]bool
}

var _ frame.Recorder = (*Renderer)(nil)

// NewRenderer wires the render system. The allocator must have been built
// for table.Len() entities and the binder over the allocator's buffers.
func NewRenderer(store *ecs.Store, table *MeshTable, alloc *uniform.Allocator, binder *descriptor.Binder, cam Camera, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		store:  store,
		table:  table,
		alloc:  alloc,
		binder: binder,
		camera: cam,
		logger: logger,
		proj:   DefaultProjection,
		warned: make(map[ecs.Entity]bool),
	}
}

func (r *Renderer) SetProjection(p Projection) { r.proj = p }
func (r *Renderer) Projection() Projection     { return r.proj }
func (r *Renderer) SetWireframe(on bool)       { r.wireframe = on }
func (r *Renderer) Wireframe() bool            { return r.wireframe }

// Draws is the number of draws recorded by the last frame.
func (r *Renderer) Draws() int { return r.draws }

// Record draws every packed entity into fc.Cmd.
func (r *Renderer) Record(fc frame.Context) error {
	r.draws = 0
	if r.table.Len() == 0 {
		return nil
	}

	view := r.camera.View()
	proj := r.proj.Matrix(fc.Extent.Aspect())
	set := r.binder.Set(fc.Slot)
	stride := r.alloc.Stride()

	var last gpu.Pipeline
	for _, e := range r.store.Entities() {
		rm := ecs.Get[ecs.RenderModel](r.store, e)
		if rm == nil || rm.Mesh == nil {
			continue
		}
		entry, ok := r.table.Lookup(e)
		if !ok {
			r.warnOnce(e, "entity has no packed mesh")
			continue
		}
		pipeline := rm.Material.Pipeline(r.wireframe)
		if pipeline == nil {
			r.warnOnce(e, "entity has no pipeline")
			continue
		}

		mesh := rm.Mesh
		mesh.MVP = ecs.MVP{Model: rm.Transform.Matrix(), View: view, Proj: proj}
		if err := r.alloc.WriteSlot(fc.Slot, entry.Ordinal, &mesh.MVP); err != nil {
			return errors.Wrapf(err, "systems: write uniform slot %d", entry.Ordinal)
		}

		if pipeline != last {
			fc.Cmd.BindPipeline(pipeline)
			last = pipeline
		}
		fc.Cmd.BindDescriptorSet(pipeline.Layout(), set, []uint32{r.binder.DynamicOffset(entry.Ordinal, stride)})
		fc.Cmd.BindVertexBuffer(r.table.VertexBuffer(), entry.VertexOffset)
		fc.Cmd.BindIndexBuffer(r.table.IndexBuffer(), entry.IndexOffset, gpu.IndexUint16)
		fc.Cmd.DrawIndexed(entry.IndexCount, 0, 0)
		r.draws++
	}

	r.logger.Debug("frame recorded", "slot", fc.Slot, "draws", r.draws)
	return nil
}

func (r *Renderer) warnOnce(e ecs.Entity, msg string) {
	if r.warned[e] {
		return
	}
	r.warned[e] = true
	r.logger.Warn(msg, "entity", e)
}
