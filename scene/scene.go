// Package scene describes what to draw: named meshes, the materials they are
// drawn with and the entities placing them. Scenes load from YAML and
// populate an ecs.Store.
package scene

import (
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
)

// DefaultMaterial is used by entities that name no material.
const DefaultMaterial = "solid"

type VertexSpec struct {
	Pos   [3]float32 `yaml:"pos"`
	Color [3]float32 `yaml:"color"`
	UV    [2]float32 `yaml:"uv"`
}

// MeshSpec is an inline mesh. An inline mesh may shadow a built-in name.
type MeshSpec struct {
	Name     string       `yaml:"name"`
	Vertices []VertexSpec `yaml:"vertices"`
	Indices  []uint16     `yaml:"indices"`
}

type EntitySpec struct {
	Name     string     `yaml:"name"`
	Mesh     string     `yaml:"mesh"`
	Material string     `yaml:"material"`
	Position [3]float32 `yaml:"position"`
}

type Scene struct {
	Meshes   []MeshSpec   `yaml:"meshes"`
	Entities []EntitySpec `yaml:"entities"`
}

// Default is the cube at the origin and the square at (2, 2, 2).
func Default() *Scene {
	return &Scene{
		Entities: []EntitySpec{
			{Name: "cube", Mesh: "cube"},
			{Name: "square", Mesh: "square", Position: [3]float32{2, 2, 2}},
		},
	}
}

// Load reads and validates a scene file.
func Load(path string) (*Scene, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "scene: read %s", path)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "scene: %s", path)
	}
	return sc, nil
}

func Parse(data []byte) (*Scene, error) {
	var sc Scene
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "unmarshal")
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that inline meshes are well formed and that every entity
// names a known mesh.
func (sc *Scene) Validate() error {
	inline := make(map[string]bool, len(sc.Meshes))
	for i, m := range sc.Meshes {
		if m.Name == "" {
			return errors.Errorf("mesh %d has no name", i)
		}
		if inline[m.Name] {
			return errors.Errorf("mesh %q declared twice", m.Name)
		}
		inline[m.Name] = true
		if len(m.Vertices) == 0 {
			return errors.Errorf("mesh %q has no vertices", m.Name)
		}
		if len(m.Vertices) > 1<<16 {
			return errors.Errorf("mesh %q has %d vertices, more than 16-bit indices can address", m.Name, len(m.Vertices))
		}
		if len(m.Indices) == 0 || len(m.Indices)%3 != 0 {
			return errors.Errorf("mesh %q: index count %d is not a positive multiple of 3", m.Name, len(m.Indices))
		}
		for _, idx := range m.Indices {
			if int(idx) >= len(m.Vertices) {
				return errors.Errorf("mesh %q: index %d out of range for %d vertices", m.Name, idx, len(m.Vertices))
			}
		}
	}

	for i, e := range sc.Entities {
		if e.Mesh == "" {
			return errors.Errorf("entity %d has no mesh", i)
		}
		if inline[e.Mesh] {
			continue
		}
		if _, ok := Builtin(e.Mesh); !ok {
			return errors.Errorf("entity %d: unknown mesh %q", i, e.Mesh)
		}
	}
	return nil
}

// Populated is what Populate created. The store only points at these
// objects; the caller keeps them alive for as long as the entities exist.
type Populated struct {
	Entities   []ecs.Entity
	Meshes     map[string]*ecs.Mesh
	Transforms []*ecs.Transform
}

// Populate spawns one entity per EntitySpec, in file order, each with a
// RenderModel. Entities naming the same mesh share one *ecs.Mesh.
func (sc *Scene) Populate(store *ecs.Store, materials map[string]*ecs.Material) (*Populated, error) {
	out := &Populated{Meshes: make(map[string]*ecs.Mesh)}

	for _, m := range sc.Meshes {
		out.Meshes[m.Name] = m.mesh()
	}

	for i, spec := range sc.Entities {
		mesh, ok := out.Meshes[spec.Mesh]
		if !ok {
			if mesh, ok = Builtin(spec.Mesh); !ok {
				return nil, errors.Errorf("scene: entity %d: unknown mesh %q", i, spec.Mesh)
			}
			out.Meshes[spec.Mesh] = mesh
		}

		matName := spec.Material
		if matName == "" {
			matName = DefaultMaterial
		}
		mat, ok := materials[matName]
		if !ok {
			return nil, errors.Errorf("scene: entity %d: unknown material %q", i, matName)
		}

		tr := &ecs.Transform{Position: mgl32.Vec3(spec.Position)}
		e := store.Spawn()
		if err := ecs.Assign(store, e, ecs.RenderModel{Mesh: mesh, Transform: tr, Material: mat}); err != nil {
			return nil, errors.Wrapf(err, "scene: entity %d", i)
		}
		out.Entities = append(out.Entities, e)
		out.Transforms = append(out.Transforms, tr)
	}
	return out, nil
}

func (m MeshSpec) mesh() *ecs.Mesh {
	vertices := make([]ecs.Vertex, len(m.Vertices))
	for i, v := range m.Vertices {
		vertices[i] = ecs.Vertex{Pos: v.Pos, Color: v.Color, UV: v.UV}
	}
	return &ecs.Mesh{
		Name:     m.Name,
		Vertices: vertices,
		Indices:  append([]uint16(nil), m.Indices...),
	}
}
