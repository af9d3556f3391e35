// Package camera is a first-person fly camera.
package camera

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DefaultSpeed       = 6.0
	DefaultSensitivity = 0.2
	maxPitch           = 89.0
)

type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Up
	Down
)

// Fly moves freely and looks around by yaw and pitch, in degrees.
type Fly struct {
	position mgl32.Vec3
	front    mgl32.Vec3
	up       mgl32.Vec3

	yaw   float32
	pitch float32

	Speed       float32
	Sensitivity float32
}

// New returns a camera at (0, 0, 2) looking down -Z.
func New() *Fly {
	return &Fly{
		position:    mgl32.Vec3{0, 0, 2},
		front:       mgl32.Vec3{0, 0, -1},
		up:          mgl32.Vec3{0, 1, 0},
		yaw:         -90,
		Speed:       DefaultSpeed,
		Sensitivity: DefaultSensitivity,
	}
}

func (c *Fly) View() mgl32.Mat4 {
	return mgl32.LookAtV(c.position, c.position.Add(c.front), c.up)
}

func (c *Fly) Position() mgl32.Vec3 { return c.position }
func (c *Fly) Front() mgl32.Vec3    { return c.front }

func (c *Fly) SetPosition(p mgl32.Vec3) { c.position = p }

// Move translates the camera by Speed*dt along dir. Left and right strafe
// perpendicular to the view direction.
func (c *Fly) Move(dir Direction, dt float32) {
	step := c.Speed * dt
	switch dir {
	case Forward:
		c.position = c.position.Add(c.front.Mul(step))
	case Backward:
		c.position = c.position.Sub(c.front.Mul(step))
	case Left:
		c.position = c.position.Sub(c.right().Mul(step))
	case Right:
		c.position = c.position.Add(c.right().Mul(step))
	case Up:
		c.position = c.position.Add(c.up.Mul(step))
	case Down:
		c.position = c.position.Sub(c.up.Mul(step))
	}
}

func (c *Fly) right() mgl32.Vec3 {
	return c.front.Cross(c.up).Normalize()
}

// Rotate applies a mouse delta scaled by Sensitivity. Pitch is clamped so
// the view never flips over the poles.
func (c *Fly) Rotate(dx, dy float32) {
	c.yaw += dx * c.Sensitivity
	c.pitch -= dy * c.Sensitivity
	c.pitch = mgl32.Clamp(c.pitch, -maxPitch, maxPitch)

	yaw := float64(mgl32.DegToRad(c.yaw))
	pitch := float64(mgl32.DegToRad(c.pitch))
	c.front = mgl32.Vec3{
		float32(math.Cos(yaw) * math.Cos(pitch)),
		float32(math.Sin(pitch)),
		float32(math.Sin(yaw) * math.Cos(pitch)),
	}.Normalize()
}

func (c *Fly) Yaw() float32   { return c.yaw }
func (c *Fly) Pitch() float32 { return c.pitch }
