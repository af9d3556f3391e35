package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func near(a, b mgl32.Vec3) bool {
	return a.ApproxEqualThreshold(b, 1e-4)
}

func TestDefaults(t *testing.T) {
	c := New()
	if c.Position() != (mgl32.Vec3{0, 0, 2}) {
		t.Fatalf("position = %v", c.Position())
	}

	// The origin sits 2 units in front of the camera.
	p := c.View().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !near(p.Vec3(), mgl32.Vec3{0, 0, -2}) {
		t.Fatalf("origin in view space = %v", p)
	}
}

func TestMove(t *testing.T) {
	tests := []struct {
		name string
		dir  Direction
		want mgl32.Vec3
	}{
		{"forward", Forward, mgl32.Vec3{0, 0, -4}},
		{"backward", Backward, mgl32.Vec3{0, 0, 8}},
		{"left", Left, mgl32.Vec3{-6, 0, 2}},
		{"right", Right, mgl32.Vec3{6, 0, 2}},
		{"up", Up, mgl32.Vec3{0, 6, 2}},
		{"down", Down, mgl32.Vec3{0, -6, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.Move(tt.dir, 1)
			if !near(c.Position(), tt.want) {
				t.Fatalf("after one second: %v, want %v", c.Position(), tt.want)
			}
		})
	}
}

func TestRotateClampsPitch(t *testing.T) {
	c := New()
	c.Rotate(0, -10000)
	if c.Pitch() != 89 {
		t.Fatalf("pitch = %v, want 89", c.Pitch())
	}
	c.Rotate(0, 20000)
	if c.Pitch() != -89 {
		t.Fatalf("pitch = %v, want -89", c.Pitch())
	}
	if f := c.Front(); f.Len() < 0.999 || f.Len() > 1.001 {
		t.Fatalf("front is not normalized: %v", f)
	}
}

func TestRotateYaw(t *testing.T) {
	c := New()
	// 450 units at 0.2 deg/unit = 90 degrees, turning from -Z to +X.
	c.Rotate(450, 0)
	if !near(c.Front(), mgl32.Vec3{1, 0, 0}) {
		t.Fatalf("front = %v", c.Front())
	}
}
