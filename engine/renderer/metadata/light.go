package metadata

import "github.com/prismrender/prism/engine/math"

type LightKind uint8

const (
	LightDirectional LightKind = iota
	LightPoint
	LightSpot
)

type Light struct {
	Kind        LightKind
	Position    math.Vec3
	Direction   math.Vec3
	Color       math.Vec4
	Intensity   float32
	Range       float32
	CastsShadow bool
}

// PackedLight is the GPU layout the lighting subpass consumes.
type PackedLight struct {
	Position  math.Vec4 // w = range
	Direction math.Vec4 // w = kind
	Color     math.Vec4 // w = intensity
}

func (l Light) Pack() PackedLight {
	return PackedLight{
		Position:  math.NewVec4(l.Position.X, l.Position.Y, l.Position.Z, l.Range),
		Direction: math.NewVec4(l.Direction.X, l.Direction.Y, l.Direction.Z, float32(l.Kind)),
		Color:     math.NewVec4(l.Color.X, l.Color.Y, l.Color.Z, l.Intensity),
	}
}
