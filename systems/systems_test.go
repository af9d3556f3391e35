package systems

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/NOT-REAL-GAMES/trianglego/descriptor"
	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/frame"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
	"github.com/NOT-REAL-GAMES/trianglego/scene"
	"github.com/NOT-REAL-GAMES/trianglego/uniform"
)

type fixedCamera struct{}

func (fixedCamera) View() mgl32.Mat4 {
	return mgl32.LookAtV(mgl32.Vec3{0, 0, 2}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
}

func (fixedCamera) Position() mgl32.Vec3 { return mgl32.Vec3{0, 0, 2} }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newMaterial(t *testing.T, dev *gputest.Device, name string) *ecs.Material {
	t.Helper()
	layout, err := dev.CreatePipelineLayout(nil)
	if err != nil {
		t.Fatalf("CreatePipelineLayout: %v", err)
	}
	solid, err := dev.CreatePipeline(gpu.PipelineDesc{Name: name, Layout: layout})
	if err != nil {
		t.Fatalf("CreatePipeline: %v", err)
	}
	return &ecs.Material{Name: name, Solid: solid}
}

func spawn(t *testing.T, store *ecs.Store, mesh *ecs.Mesh, pos mgl32.Vec3, mat *ecs.Material) ecs.Entity {
	t.Helper()
	e := store.Spawn()
	if err := ecs.Assign(store, e, ecs.RenderModel{Mesh: mesh, Transform: &ecs.Transform{Position: pos}, Material: mat}); err != nil {
		t.Fatalf("Assign: %v", err)
	}
	return e
}

func TestPackMeshesOffsets(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	store := ecs.NewStore()
	mat := newMaterial(t, dev, "solid")

	cube, square := scene.Cube(), scene.Square()
	e0 := spawn(t, store, cube, mgl32.Vec3{}, mat)
	store.Spawn() // no RenderModel
	e1 := spawn(t, store, square, mgl32.Vec3{2, 2, 2}, mat)
	e2 := spawn(t, store, cube, mgl32.Vec3{-2, 0, 0}, mat)

	var calls [][2]int
	table, err := PackMeshes(dev, store, func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("PackMeshes: %v", err)
	}

	if table.Len() != 3 {
		t.Fatalf("Len = %d, want 3", table.Len())
	}
	if len(calls) != 3 || calls[2] != [2]int{3, 3} {
		t.Fatalf("progress calls = %v", calls)
	}

	cubeVerts := uint64(24) * uint64(ecs.VertexSize)
	tests := []struct {
		entity  ecs.Entity
		ordinal int
		vertex  uint64
		index   uint64
		count   uint32
	}{
		{e0, 0, 0, 0, 36},
		{e1, 1, cubeVerts, 36 * ecs.IndexSize, 6},
		{e2, 2, 0, 0, 36},
	}
	for _, tt := range tests {
		got, ok := table.Lookup(tt.entity)
		if !ok {
			t.Fatalf("entity %d not packed", tt.entity)
		}
		want := MeshEntry{Ordinal: tt.ordinal, VertexOffset: tt.vertex, IndexOffset: tt.index, IndexCount: tt.count}
		if got != want {
			t.Fatalf("entity %d: got %+v, want %+v", tt.entity, got, want)
		}
	}

	vb := table.VertexBuffer().(*gputest.Buffer)
	ib := table.IndexBuffer().(*gputest.Buffer)
	if vb.Size() != cubeVerts+4*uint64(ecs.VertexSize) {
		t.Fatalf("vertex buffer holds shared meshes more than once: %d bytes", vb.Size())
	}
	if vb.Usage != gpu.BufferUsageVertex || ib.Usage != gpu.BufferUsageIndex {
		t.Fatalf("buffer usages %v and %v", vb.Usage, ib.Usage)
	}
	if !bytes.Equal(vb.Data[cubeVerts:], ecs.VertexBytes(square.Vertices)) {
		t.Fatalf("square vertices not at their offset")
	}
	if !bytes.Equal(ib.Data[36*ecs.IndexSize:], ecs.IndexBytes(square.Indices)) {
		t.Fatalf("square indices not at their offset")
	}
}

func TestPackMeshesEmpty(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	store := ecs.NewStore()
	store.Spawn()

	table, err := PackMeshes(dev, store, nil)
	if err != nil {
		t.Fatalf("PackMeshes: %v", err)
	}
	if table.Len() != 0 || table.VertexBuffer() != nil || len(dev.Buffers) != 0 {
		t.Fatalf("empty scene should allocate nothing")
	}
	table.Destroy()
}

func TestPackMeshesWithoutHostMemory(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	dev.NoHostVisibleMemory = true
	store := ecs.NewStore()
	spawn(t, store, scene.Square(), mgl32.Vec3{}, nil)

	if _, err := PackMeshes(dev, store, nil); !errors.Is(err, gpu.ErrNoSuitableMemoryType) {
		t.Fatalf("PackMeshes = %v, want ErrNoSuitableMemoryType", err)
	}
}

type harness struct {
	dev      *gputest.Device
	store    *ecs.Store
	table    *MeshTable
	alloc    *uniform.Allocator
	binder   *descriptor.Binder
	sched    *frame.Scheduler
	renderer *Renderer
}

func newHarness(t *testing.T, populate func(*gputest.Device, *ecs.Store)) *harness {
	t.Helper()
	h := &harness{dev: gputest.New(gpu.Extent{Width: 800, Height: 600}), store: ecs.NewStore()}
	populate(h.dev, h.store)

	var err error
	if h.table, err = PackMeshes(h.dev, h.store, nil); err != nil {
		t.Fatalf("PackMeshes: %v", err)
	}
	if h.alloc, err = uniform.New(h.dev, 2, h.table.Len()); err != nil {
		t.Fatalf("uniform.New: %v", err)
	}
	if h.binder, err = descriptor.Build(h.dev, 2, h.alloc.Buffers(), ecs.MVPSize, nil); err != nil {
		t.Fatalf("descriptor.Build: %v", err)
	}
	h.sched, err = frame.New(h.dev, frame.Options{
		FramesInFlight: 2,
		FenceTimeout:   10 * time.Millisecond,
		Logger:         quietLogger(),
	})
	if err != nil {
		t.Fatalf("frame.New: %v", err)
	}
	h.renderer = NewRenderer(h.store, h.table, h.alloc, h.binder, fixedCamera{}, quietLogger())
	return h
}

func (h *harness) run(t *testing.T, frames int) {
	t.Helper()
	for i := 0; i < frames; i++ {
		if err := h.sched.RunFrame(context.Background(), h.renderer); err != nil {
			t.Fatalf("RunFrame %d: %v", i, err)
		}
	}
}

func TestCubeAndSquareOverThreeFrames(t *testing.T) {
	var cube, square *ecs.Mesh
	h := newHarness(t, func(dev *gputest.Device, store *ecs.Store) {
		mat := newMaterial(t, dev, "solid")
		cube, square = scene.Cube(), scene.Square()
		spawn(t, store, cube, mgl32.Vec3{}, mat)
		spawn(t, store, square, mgl32.Vec3{2, 2, 2}, mat)
	})
	h.run(t, 3)

	if len(h.dev.Submissions) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(h.dev.Submissions))
	}
	if h.dev.MaxUnsignaled > 2 {
		t.Fatalf("%d fences unsignalled at once", h.dev.MaxUnsignaled)
	}

	stride := uint32(h.alloc.Stride())
	wantSlots := []int{0, 1, 0}
	for i, sub := range h.dev.Submissions {
		cmd := sub.CommandBuffers[0]

		if n := len(cmd.Filter(gputest.OpBindPipeline)); n != 1 {
			t.Fatalf("frame %d bound the pipeline %d times", i, n)
		}
		draws := cmd.Filter(gputest.OpDrawIndexed)
		if len(draws) != 2 || draws[0].IndexCount != 36 || draws[1].IndexCount != 6 {
			t.Fatalf("frame %d draws %+v", i, draws)
		}

		binds := cmd.Filter(gputest.OpBindDescriptorSet)
		if len(binds) != 2 {
			t.Fatalf("frame %d has %d descriptor binds", i, len(binds))
		}
		for j, b := range binds {
			if b.Set != h.binder.Set(wantSlots[i]) {
				t.Fatalf("frame %d used the wrong slot's descriptor set", i)
			}
			if len(b.DynamicOffsets) != 1 || b.DynamicOffsets[0] != uint32(j)*stride {
				t.Fatalf("frame %d draw %d dynamic offsets %v", i, j, b.DynamicOffsets)
			}
		}

		vbs := cmd.Filter(gputest.OpBindVertexBuffer)
		ibs := cmd.Filter(gputest.OpBindIndexBuffer)
		if vbs[1].Offset != 24*uint64(ecs.VertexSize) || ibs[1].Offset != 36*ecs.IndexSize {
			t.Fatalf("frame %d square bound at %d/%d", i, vbs[1].Offset, ibs[1].Offset)
		}
		if ibs[0].IndexType != gpu.IndexUint16 {
			t.Fatalf("index type = %v", ibs[0].IndexType)
		}
	}

	if h.renderer.Draws() != 2 {
		t.Fatalf("Draws = %d", h.renderer.Draws())
	}

	// Frame 2 reused slot 0; its buffer holds both entities' MVPs.
	buf := h.alloc.Buffer(0).(*gputest.Buffer)
	if !bytes.Equal(buf.Data[:ecs.MVPSize], cube.MVP.Bytes()) {
		t.Fatalf("slot 0 does not hold the cube MVP")
	}
	off := uint64(stride)
	if !bytes.Equal(buf.Data[off:off+ecs.MVPSize], square.MVP.Bytes()) {
		t.Fatalf("slot 1 does not hold the square MVP")
	}
	if square.MVP.Model != mgl32.Translate3D(2, 2, 2) {
		t.Fatalf("square model = %v", square.MVP.Model)
	}
	if square.MVP.Proj[5] >= 0 {
		t.Fatalf("projection Y is not flipped")
	}
}

func TestSkipsEntitiesWithoutDrawData(t *testing.T) {
	var late ecs.Entity
	var mat *ecs.Material
	h := newHarness(t, func(dev *gputest.Device, store *ecs.Store) {
		mat = newMaterial(t, dev, "solid")
		spawn(t, store, scene.Square(), mgl32.Vec3{}, mat)
		store.Spawn()
		spawn(t, store, scene.Cube(), mgl32.Vec3{}, &ecs.Material{Name: "empty"})
	})
	// Added after packing, so it has no table entry.
	late = spawn(t, h.store, scene.Cube(), mgl32.Vec3{}, mat)
	h.run(t, 1)

	draws := h.dev.Submissions[0].CommandBuffers[0].Filter(gputest.OpDrawIndexed)
	if len(draws) != 1 || draws[0].IndexCount != 6 {
		t.Fatalf("expected only the square to draw, got %+v", draws)
	}
	if _, ok := h.table.Lookup(late); ok {
		t.Fatalf("late entity should not be packed")
	}
}

func TestPipelineBoundOnChangeOnly(t *testing.T) {
	var a, b *ecs.Material
	h := newHarness(t, func(dev *gputest.Device, store *ecs.Store) {
		a, b = newMaterial(t, dev, "a"), newMaterial(t, dev, "b")
		spawn(t, store, scene.Square(), mgl32.Vec3{}, a)
		spawn(t, store, scene.Square(), mgl32.Vec3{1, 0, 0}, a)
		spawn(t, store, scene.Square(), mgl32.Vec3{2, 0, 0}, b)
		spawn(t, store, scene.Square(), mgl32.Vec3{3, 0, 0}, a)
	})
	h.run(t, 1)

	binds := h.dev.Submissions[0].CommandBuffers[0].Filter(gputest.OpBindPipeline)
	want := []gpu.Pipeline{a.Solid, b.Solid, a.Solid}
	if len(binds) != len(want) {
		t.Fatalf("expected %d pipeline binds, got %d", len(want), len(binds))
	}
	for i := range want {
		if binds[i].Pipeline != want[i] {
			t.Fatalf("bind %d is the wrong pipeline", i)
		}
	}
}

func TestWireframeFallsBackToSolid(t *testing.T) {
	var withWire, solidOnly *ecs.Material
	h := newHarness(t, func(dev *gputest.Device, store *ecs.Store) {
		withWire = newMaterial(t, dev, "a")
		wire := newMaterial(t, dev, "a-wire")
		withWire.Wireframe = wire.Solid
		solidOnly = newMaterial(t, dev, "b")
		spawn(t, store, scene.Square(), mgl32.Vec3{}, withWire)
		spawn(t, store, scene.Square(), mgl32.Vec3{}, solidOnly)
	})
	h.renderer.SetWireframe(true)
	h.run(t, 1)

	binds := h.dev.Submissions[0].CommandBuffers[0].Filter(gputest.OpBindPipeline)
	if len(binds) != 2 || binds[0].Pipeline != withWire.Wireframe || binds[1].Pipeline != solidOnly.Solid {
		t.Fatalf("unexpected pipeline binds %+v", binds)
	}
}

func TestEmptySceneClearsOnly(t *testing.T) {
	h := newHarness(t, func(*gputest.Device, *ecs.Store) {})
	h.run(t, 2)

	for i, sub := range h.dev.Submissions {
		cmd := sub.CommandBuffers[0]
		if len(cmd.Filter(gputest.OpDrawIndexed)) != 0 {
			t.Fatalf("frame %d drew in an empty scene", i)
		}
		if len(cmd.Filter(gputest.OpBeginRendering)) != 1 {
			t.Fatalf("frame %d did not clear", i)
		}
	}
	if len(h.dev.Presents) != 2 {
		t.Fatalf("expected 2 presents, got %d", len(h.dev.Presents))
	}
}

func TestProjectionMatrix(t *testing.T) {
	p := Projection{FovY: 90, Near: 1, Far: 10}
	m := p.Matrix(2)
	if m[0] <= 0 || m[5] >= 0 {
		t.Fatalf("unexpected projection diagonal %v %v", m[0], m[5])
	}
	if ratio := m[0] / -m[5]; ratio < 0.49 || ratio > 0.51 {
		t.Fatalf("aspect not applied: x/y scale ratio %v", ratio)
	}
}
