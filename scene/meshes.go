package scene

import "github.com/NOT-REAL-GAMES/trianglego/ecs"

var faceUV = [4][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

// quads turns groups of four vertices into two counter-clockwise triangles each.
func quads(n int) []uint16 {
	indices := make([]uint16, 0, n/4*6)
	for base := uint16(0); int(base) < n; base += 4 {
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return indices
}

func face(corners [4][3]float32, colors [4][3]float32) []ecs.Vertex {
	out := make([]ecs.Vertex, 4)
	for i := range out {
		out[i] = ecs.Vertex{Pos: corners[i], Color: colors[i], UV: faceUV[i]}
	}
	return out
}

// Cube returns a unit cube centred on the origin: 24 vertices, one quad per
// face with its own colors, and 36 indices.
func Cube() *ecs.Mesh {
	var v []ecs.Vertex
	// bottom
	v = append(v, face(
		[4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}},
		[4][3]float32{{0.5, 0, 0}, {0.4, 0, 0}, {0.3, 0, 0}, {0.2, 0.2, 0}},
	)...)
	// back
	v = append(v, face(
		[4][3]float32{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}},
		[4][3]float32{{0.6, 0.2, 0}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}},
	)...)
	// left
	v = append(v, face(
		[4][3]float32{{-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {-0.5, 0.5, 0.5}, {-0.5, -0.5, 0.5}},
		[4][3]float32{{0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}},
	)...)
	// right
	v = append(v, face(
		[4][3]float32{{0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}, {0.5, -0.5, 0.5}},
		[4][3]float32{{0.5, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}},
	)...)
	// front
	v = append(v, face(
		[4][3]float32{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}},
		[4][3]float32{{1, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}},
	)...)
	// top
	v = append(v, face(
		[4][3]float32{{-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}},
		[4][3]float32{{0.6, 0.2, 0.5}, {0.9, 0.2, 0.5}, {0.6, 0.2, 0.5}, {0.6, 0.2, 0.5}},
	)...)

	return &ecs.Mesh{Name: "cube", Vertices: v, Indices: quads(len(v))}
}

// Square returns a unit quad in the XY plane.
func Square() *ecs.Mesh {
	red := [3]float32{0.5, 0, 0}
	v := face(
		[4][3]float32{{-0.5, -0.5, 0}, {0.5, -0.5, 0}, {0.5, 0.5, 0}, {-0.5, 0.5, 0}},
		[4][3]float32{red, red, red, red},
	)
	return &ecs.Mesh{Name: "square", Vertices: v, Indices: quads(len(v))}
}

// Builtin returns a fresh copy of a named built-in mesh.
func Builtin(name string) (*ecs.Mesh, bool) {
	switch name {
	case "cube":
		return Cube(), true
	case "square":
		return Square(), true
	}
	return nil, false
}
