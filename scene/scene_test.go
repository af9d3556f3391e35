package scene

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
)

func TestBuiltinMeshes(t *testing.T) {
	tests := []struct {
		name     string
		vertices int
		indices  int
	}{
		{"cube", 24, 36},
		{"square", 4, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := Builtin(tt.name)
			if !ok {
				t.Fatalf("Builtin(%q) not found", tt.name)
			}
			if len(m.Vertices) != tt.vertices || len(m.Indices) != tt.indices {
				t.Fatalf("%s: %d vertices, %d indices", tt.name, len(m.Vertices), len(m.Indices))
			}
			for _, idx := range m.Indices {
				if int(idx) >= len(m.Vertices) {
					t.Fatalf("%s: index %d out of range", tt.name, idx)
				}
			}
		})
	}

	if _, ok := Builtin("teapot"); ok {
		t.Fatalf("unexpected built-in teapot")
	}
}

func TestCubeIndexPattern(t *testing.T) {
	want := []uint16{0, 1, 2, 2, 3, 0, 4, 5, 6, 6, 7, 4}
	got := Cube().Indices
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indices start %v, want %v", got[:len(want)], want)
		}
	}
	if got[35] != 20 {
		t.Fatalf("last index = %d, want 20", got[35])
	}
}

func TestBuiltinReturnsFreshCopies(t *testing.T) {
	a, _ := Builtin("cube")
	b, _ := Builtin("cube")
	a.Vertices[0].Pos[0] = 99
	if b.Vertices[0].Pos[0] == 99 {
		t.Fatalf("built-in meshes share vertex storage")
	}
}

func materials() map[string]*ecs.Material {
	return map[string]*ecs.Material{
		"solid":     {Name: "solid"},
		"wireframe": {Name: "wireframe"},
	}
}

func TestDefaultPopulate(t *testing.T) {
	store := ecs.NewStore()
	out, err := Default().Populate(store, materials())
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(out.Entities) != 2 || store.Len() != 2 {
		t.Fatalf("expected 2 entities, got %d", len(out.Entities))
	}

	cube := ecs.Get[ecs.RenderModel](store, out.Entities[0])
	square := ecs.Get[ecs.RenderModel](store, out.Entities[1])
	if cube == nil || square == nil {
		t.Fatalf("entities are missing render models")
	}
	if cube.Mesh.Name != "cube" || square.Mesh.Name != "square" {
		t.Fatalf("unexpected meshes %q and %q", cube.Mesh.Name, square.Mesh.Name)
	}
	if cube.Transform.Position != (mgl32.Vec3{}) {
		t.Fatalf("cube position = %v", cube.Transform.Position)
	}
	if square.Transform.Position != (mgl32.Vec3{2, 2, 2}) {
		t.Fatalf("square position = %v", square.Transform.Position)
	}
	if cube.Material.Name != DefaultMaterial {
		t.Fatalf("cube material = %q", cube.Material.Name)
	}
}

const sceneYAML = `
meshes:
  - name: tri
    vertices:
      - {pos: [0, 0, 0], color: [1, 0, 0]}
      - {pos: [1, 0, 0], color: [0, 1, 0]}
      - {pos: [0, 1, 0], color: [0, 0, 1], uv: [0, 1]}
    indices: [0, 1, 2]
entities:
  - name: a
    mesh: tri
    material: wireframe
    position: [1, 2, 3]
  - name: b
    mesh: tri
  - name: c
    mesh: cube
`

func TestLoadAndPopulate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	if err := os.WriteFile(path, []byte(sceneYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	store := ecs.NewStore()
	out, err := sc.Populate(store, materials())
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(out.Entities) != 3 {
		t.Fatalf("expected 3 entities, got %d", len(out.Entities))
	}

	a := ecs.Get[ecs.RenderModel](store, out.Entities[0])
	b := ecs.Get[ecs.RenderModel](store, out.Entities[1])
	if a.Mesh != b.Mesh {
		t.Fatalf("entities naming the same mesh must share it")
	}
	if a.Material.Name != "wireframe" || b.Material.Name != "solid" {
		t.Fatalf("materials = %q, %q", a.Material.Name, b.Material.Name)
	}
	if a.Transform.Position != (mgl32.Vec3{1, 2, 3}) {
		t.Fatalf("position = %v", a.Transform.Position)
	}
	if a.Mesh.Vertices[2].UV != [2]float32{0, 1} {
		t.Fatalf("uv = %v", a.Mesh.Vertices[2].UV)
	}
	if len(out.Meshes) != 2 {
		t.Fatalf("expected tri and cube, got %d meshes", len(out.Meshes))
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown_mesh", "entities: [{mesh: teapot}]"},
		{"missing_mesh", "entities: [{name: x}]"},
		{"index_out_of_range", "meshes: [{name: m, vertices: [{pos: [0,0,0]}], indices: [0, 0, 1]}]"},
		{"partial_triangle", "meshes: [{name: m, vertices: [{pos: [0,0,0]}], indices: [0, 0]}]"},
		{"no_vertices", "meshes: [{name: m, indices: [0, 0, 0]}]"},
		{"duplicate_mesh", "meshes: [{name: m, vertices: [{pos: [0,0,0]}], indices: [0,0,0]}, {name: m, vertices: [{pos: [0,0,0]}], indices: [0,0,0]}]"},
		{"bad_yaml", "entities: [mesh: cube"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestPopulateUnknownMaterial(t *testing.T) {
	sc := &Scene{Entities: []EntitySpec{{Mesh: "cube", Material: "glass"}}}
	if _, err := sc.Populate(ecs.NewStore(), materials()); err == nil {
		t.Fatalf("expected error for an unknown material")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
