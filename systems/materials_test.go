package systems

import (
	"testing"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
)

func buildMaterials(t *testing.T, dev *gputest.Device) *Materials {
	t.Helper()
	setLayout, err := dev.CreateDescriptorSetLayout(nil)
	if err != nil {
		t.Fatalf("CreateDescriptorSetLayout: %v", err)
	}
	m := NewMaterials(quietLogger())
	if err := m.Build(dev, setLayout, Shaders{Vertex: []byte{1}, Fragment: []byte{2}}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return m
}

func TestMaterialsBuild(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	m := buildMaterials(t, dev)

	if len(dev.Pipelines) != 2 {
		t.Fatalf("pipelines = %d, want 2", len(dev.Pipelines))
	}
	fill, line := dev.Pipelines[0], dev.Pipelines[1]
	if fill.Desc.Polygon != gpu.PolygonFill || line.Desc.Polygon != gpu.PolygonLine {
		t.Fatalf("polygon modes = %v, %v", fill.Desc.Polygon, line.Desc.Polygon)
	}
	for _, p := range dev.Pipelines {
		if !p.Desc.DepthTest || p.Desc.VertexStride != ecs.VertexSize || len(p.Desc.Attributes) != 3 {
			t.Fatalf("pipeline %q desc = %+v", p.Desc.Name, p.Desc)
		}
		if p.Layout() != m.Layout() {
			t.Fatalf("pipeline %q not built on the shared layout", p.Desc.Name)
		}
	}

	solid := m.ByName()[MaterialSolid]
	if solid.Pipeline(false) != fill || solid.Pipeline(true) != line {
		t.Fatalf("solid material pipelines wrong")
	}
	wire := m.ByName()[MaterialWireframe]
	if wire.Pipeline(false) != line || wire.Pipeline(true) != line {
		t.Fatalf("wireframe material pipelines wrong")
	}

	m.Destroy()
	if !fill.Destroyed || !line.Destroyed {
		t.Fatalf("pipelines not destroyed")
	}
	if solid.Pipeline(false) != nil {
		t.Fatalf("material still carries a pipeline after Destroy")
	}
}

func TestMaterialsWithoutLineSupport(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	dev.NoLinePolygons = true
	m := buildMaterials(t, dev)
	defer m.Destroy()

	if len(dev.Pipelines) != 1 {
		t.Fatalf("pipelines = %d, want 1", len(dev.Pipelines))
	}
	fill := dev.Pipelines[0]
	for name, mat := range m.ByName() {
		if mat.Pipeline(false) != fill || mat.Pipeline(true) != fill {
			t.Fatalf("material %q does not fall back to the filled pipeline", name)
		}
	}
}

func TestMaterialsExistBeforeBuild(t *testing.T) {
	m := NewMaterials(nil)
	for _, name := range []string{MaterialSolid, MaterialWireframe} {
		mat, ok := m.ByName()[name]
		if !ok || mat.Name != name {
			t.Fatalf("material %q missing", name)
		}
		if mat.Pipeline(false) != nil {
			t.Fatalf("material %q has a pipeline before Build", name)
		}
	}
}
