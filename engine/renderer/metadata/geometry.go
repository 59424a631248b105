package metadata

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/prismrender/prism/engine/math"
)

type ShapeKind uint8

const (
	ShapeCube ShapeKind = iota
	ShapeSphere
	ShapePlane
)

// ShapeConfig describes one built-in primitive. Transform, when set, is
// baked into the generated positions, normals and tangents.
type ShapeConfig struct {
	Kind ShapeKind

	// Cube and plane extents.
	Width  float32
	Height float32
	Depth  float32

	// Sphere parameters.
	Radius   float32
	Segments uint32
	Rings    uint32

	Transform *math.Mat4
}

// GenerateShape produces the vertex and index arrays for a primitive.
func GenerateShape(cfg ShapeConfig) ([]math.Vertex, []uint32, error) {
	var vertices []math.Vertex
	var indices []uint32

	switch cfg.Kind {
	case ShapeCube:
		vertices, indices = generateCube(cfg.Width, cfg.Height, cfg.Depth)
	case ShapeSphere:
		vertices, indices = generateSphere(cfg.Radius, cfg.Segments, cfg.Rings)
	case ShapePlane:
		vertices, indices = generatePlane(cfg.Width, cfg.Depth)
	default:
		return nil, nil, fmt.Errorf("unknown shape kind %d", cfg.Kind)
	}

	if cfg.Transform != nil {
		bakeTransform(vertices, *cfg.Transform)
	}
	return vertices, indices, nil
}

func bakeTransform(vertices []math.Vertex, transform math.Mat4) {
	for i := range vertices {
		vertices[i].Position = vertices[i].Position.TransformPoint(transform)
		vertices[i].Normal = vertices[i].Normal.TransformDirection(transform).Normalized()
		vertices[i].Tangent = vertices[i].Tangent.TransformDirection(transform).Normalized()
	}
}

func generateCube(width, height, depth float32) ([]math.Vertex, []uint32) {
	if width == 0 {
		width = 1
	}
	if height == 0 {
		height = 1
	}
	if depth == 0 {
		depth = 1
	}
	hw, hh, hd := width*0.5, height*0.5, depth*0.5

	type face struct {
		normal  math.Vec3
		tangent math.Vec3
		corners [4]math.Vec3
	}
	faces := []face{
		{ // +Z
			normal: math.NewVec3(0, 0, 1), tangent: math.NewVec3(1, 0, 0),
			corners: [4]math.Vec3{{X: -hw, Y: -hh, Z: hd}, {X: hw, Y: -hh, Z: hd}, {X: hw, Y: hh, Z: hd}, {X: -hw, Y: hh, Z: hd}},
		},
		{ // -Z
			normal: math.NewVec3(0, 0, -1), tangent: math.NewVec3(-1, 0, 0),
			corners: [4]math.Vec3{{X: hw, Y: -hh, Z: -hd}, {X: -hw, Y: -hh, Z: -hd}, {X: -hw, Y: hh, Z: -hd}, {X: hw, Y: hh, Z: -hd}},
		},
		{ // +X
			normal: math.NewVec3(1, 0, 0), tangent: math.NewVec3(0, 0, -1),
			corners: [4]math.Vec3{{X: hw, Y: -hh, Z: hd}, {X: hw, Y: -hh, Z: -hd}, {X: hw, Y: hh, Z: -hd}, {X: hw, Y: hh, Z: hd}},
		},
		{ // -X
			normal: math.NewVec3(-1, 0, 0), tangent: math.NewVec3(0, 0, 1),
			corners: [4]math.Vec3{{X: -hw, Y: -hh, Z: -hd}, {X: -hw, Y: -hh, Z: hd}, {X: -hw, Y: hh, Z: hd}, {X: -hw, Y: hh, Z: -hd}},
		},
		{ // +Y
			normal: math.NewVec3(0, 1, 0), tangent: math.NewVec3(1, 0, 0),
			corners: [4]math.Vec3{{X: -hw, Y: hh, Z: hd}, {X: hw, Y: hh, Z: hd}, {X: hw, Y: hh, Z: -hd}, {X: -hw, Y: hh, Z: -hd}},
		},
		{ // -Y
			normal: math.NewVec3(0, -1, 0), tangent: math.NewVec3(1, 0, 0),
			corners: [4]math.Vec3{{X: -hw, Y: -hh, Z: -hd}, {X: hw, Y: -hh, Z: -hd}, {X: hw, Y: -hh, Z: hd}, {X: -hw, Y: -hh, Z: hd}},
		},
	}

	uvs := [4]math.Vec2{{X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}

	vertices := make([]math.Vertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for c := 0; c < 4; c++ {
			vertices = append(vertices, math.Vertex{
				Position: f.corners[c],
				Normal:   f.normal,
				Tangent:  f.tangent,
				Texcoord: uvs[c],
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}
	return vertices, indices
}

func generateSphere(radius float32, segments, rings uint32) ([]math.Vertex, []uint32) {
	if radius == 0 {
		radius = 0.5
	}
	if segments < 3 {
		segments = 16
	}
	if rings < 2 {
		rings = 16
	}

	vertices := make([]math.Vertex, 0, (rings+1)*(segments+1))
	for r := uint32(0); r <= rings; r++ {
		phi := math.Pi * float32(r) / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)
		for s := uint32(0); s <= segments; s++ {
			theta := 2 * math.Pi * float32(s) / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)

			normal := math.NewVec3(sinPhi*cosTheta, cosPhi, sinPhi*sinTheta)
			tangent := math.NewVec3(-sinTheta, 0, cosTheta)
			vertices = append(vertices, math.Vertex{
				Position: normal.MulScalar(radius),
				Normal:   normal,
				Tangent:  tangent,
				Texcoord: math.Vec2{X: float32(s) / float32(segments), Y: float32(r) / float32(rings)},
			})
		}
	}

	indices := make([]uint32, 0, rings*segments*6)
	stride := segments + 1
	for r := uint32(0); r < rings; r++ {
		for s := uint32(0); s < segments; s++ {
			i0 := r*stride + s
			i1 := i0 + 1
			i2 := i0 + stride
			i3 := i2 + 1
			indices = append(indices, i0, i2, i1, i1, i2, i3)
		}
	}
	return vertices, indices
}

func generatePlane(width, depth float32) ([]math.Vertex, []uint32) {
	if width == 0 {
		width = 1
	}
	if depth == 0 {
		depth = 1
	}
	hw, hd := width*0.5, depth*0.5

	normal := math.NewVec3(0, 1, 0)
	tangent := math.NewVec3(1, 0, 0)
	vertices := []math.Vertex{
		{Position: math.NewVec3(-hw, 0, -hd), Normal: normal, Tangent: tangent, Texcoord: math.Vec2{X: 0, Y: 0}},
		{Position: math.NewVec3(hw, 0, -hd), Normal: normal, Tangent: tangent, Texcoord: math.Vec2{X: 1, Y: 0}},
		{Position: math.NewVec3(hw, 0, hd), Normal: normal, Tangent: tangent, Texcoord: math.Vec2{X: 1, Y: 1}},
		{Position: math.NewVec3(-hw, 0, hd), Normal: normal, Tangent: tangent, Texcoord: math.Vec2{X: 0, Y: 1}},
	}
	indices := []uint32{0, 2, 1, 0, 3, 2}
	return vertices, indices
}
