package components

import (
	"github.com/prismrender/prism/engine/math"
)

type Camera struct {
	Position math.Vec3
	Target   math.Vec3
	Up       math.Vec3

	FovRad float32
	Aspect float32
	Near   float32
	Far    float32
}

func NewCamera() *Camera {
	return &Camera{
		Position: math.NewVec3(0, 0, 5),
		Target:   math.NewVec3Zero(),
		Up:       math.NewVec3Up(),
		FovRad:   math.DegToRad(60),
		Aspect:   16.0 / 9.0,
		Near:     0.1,
		Far:      1000.0,
	}
}

func (c *Camera) SetPerspective(fovRad, aspect, near, far float32) {
	c.FovRad = fovRad
	c.Aspect = aspect
	c.Near = near
	c.Far = far
}

func (c *Camera) View() math.Mat4 {
	return math.NewMat4LookAt(c.Position, c.Target, c.Up)
}

func (c *Camera) Projection() math.Mat4 {
	return math.NewMat4Perspective(c.FovRad, c.Aspect, c.Near, c.Far)
}

func (c *Camera) ViewProjection() math.Mat4 {
	return c.Projection().Mul(c.View())
}
