package metadata

import (
	"testing"

	"github.com/prismrender/prism/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateCube(t *testing.T) {
	vertices, indices, err := GenerateShape(ShapeConfig{Kind: ShapeCube, Width: 2, Height: 2, Depth: 2})
	require.NoError(t, err)
	assert.Len(t, vertices, 24)
	assert.Len(t, indices, 36)

	for _, idx := range indices {
		assert.Less(t, int(idx), len(vertices))
	}
	for _, v := range vertices {
		assert.InDelta(t, 1.0, v.Normal.Length(), 1e-5)
	}
}

func TestGenerateSphereIndexBounds(t *testing.T) {
	vertices, indices, err := GenerateShape(ShapeConfig{Kind: ShapeSphere, Radius: 1, Segments: 8, Rings: 6})
	require.NoError(t, err)
	assert.NotEmpty(t, vertices)
	assert.Equal(t, len(indices)%3, 0)
	for _, idx := range indices {
		assert.Less(t, int(idx), len(vertices))
	}
	// Every position sits on the sphere surface.
	for _, v := range vertices {
		assert.InDelta(t, 1.0, v.Position.Length(), 1e-4)
	}
}

func TestGeneratePlane(t *testing.T) {
	vertices, indices, err := GenerateShape(ShapeConfig{Kind: ShapePlane, Width: 4, Depth: 2})
	require.NoError(t, err)
	assert.Len(t, vertices, 4)
	assert.Len(t, indices, 6)
}

func TestGenerateShapeBakesTransform(t *testing.T) {
	transform := math.NewMat4Translation(math.NewVec3(0, 10, 0))
	vertices, _, err := GenerateShape(ShapeConfig{Kind: ShapePlane, Width: 2, Depth: 2, Transform: &transform})
	require.NoError(t, err)
	for _, v := range vertices {
		assert.InDelta(t, 10.0, v.Position.Y, 1e-5)
		// Translation must not disturb directions.
		assert.InDelta(t, 1.0, v.Normal.Y, 1e-5)
	}
}

func TestGenerateShapeUnknownKind(t *testing.T) {
	_, _, err := GenerateShape(ShapeConfig{Kind: ShapeKind(99)})
	assert.Error(t, err)
}
