package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

func quadVertices() []math.Vertex {
	return []math.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}},
		{Position: math.Vec3{X: 1, Y: -1}},
		{Position: math.Vec3{X: 1, Y: 1}},
		{Position: math.Vec3{X: -1, Y: 1}},
	}
}

func quadIndices() []uint32 {
	return []uint32{0, 1, 2, 2, 3, 0}
}

func TestCreateMeshRejectsEmptyInput(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 3)

	assert.Nil(t, ms.CreateMesh(nil, quadIndices()))
	assert.Nil(t, ms.CreateMesh(quadVertices(), nil))
	assert.Equal(t, 0, backend.meshCreates)
	assert.Equal(t, 0, ms.Count())
}

func TestCreateMeshUploadsAndRegisters(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 3)

	mesh := ms.CreateMesh(quadVertices(), quadIndices())
	require.NotNil(t, mesh)
	assert.Equal(t, 1, backend.meshCreates)
	assert.Equal(t, uint32(4), mesh.VertexCount)
	assert.Equal(t, uint32(6), mesh.IndexCount)
	assert.NotNil(t, mesh.RendererData)
	assert.Equal(t, 1, ms.Count())
}

func TestCreateMeshUploadFailureYieldsNilHandle(t *testing.T) {
	backend := &fakeBackend{}
	backend.createErr = assert.AnError
	ms := NewMeshSystem(backend, 3)

	assert.Nil(t, ms.CreateMesh(quadVertices(), quadIndices()))
	assert.Equal(t, 0, ms.Count())
}

func TestCreateMeshesLeavesHolesForFailures(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 3)

	meshes := ms.CreateMeshes([]MeshUpload{
		{Vertices: quadVertices(), Indices: quadIndices()},
		{Vertices: nil, Indices: quadIndices()},
		{Vertices: quadVertices(), Indices: quadIndices()},
	})
	require.Len(t, meshes, 3)
	assert.NotNil(t, meshes[0])
	assert.Nil(t, meshes[1])
	assert.NotNil(t, meshes[2])
	assert.Equal(t, 2, ms.Count())
}

func TestCreateMeshFromShape(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 3)

	mesh := ms.CreateMeshFromShape(metadata.ShapeConfig{
		Kind:   metadata.ShapeCube,
		Width:  2,
		Height: 2,
		Depth:  2,
	})
	require.NotNil(t, mesh)
	assert.Equal(t, uint32(24), mesh.VertexCount)
	assert.Equal(t, uint32(36), mesh.IndexCount)
}

func TestSweepHonorsReferencesAndAgeRule(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 2)

	mesh := ms.CreateMesh(quadVertices(), quadIndices())
	require.NotNil(t, mesh)
	mesh.MarkUsed(5)

	// Live handle: never reclaimed, however old.
	assert.Equal(t, 0, ms.Sweep(100))

	ms.DestroyMesh(mesh)

	// The frame ring may still be reading the buffer for SwapBufferCount
	// frames past its last use.
	assert.Equal(t, 0, ms.Sweep(6))
	assert.Equal(t, 0, ms.Sweep(7))
	assert.Equal(t, 1, ms.Sweep(8))
	assert.Equal(t, 1, backend.meshDestroys)
	assert.Equal(t, 0, ms.Count())
}

func TestShutdownDestroysEverything(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMeshSystem(backend, 3)

	require.NotNil(t, ms.CreateMesh(quadVertices(), quadIndices()))
	require.NotNil(t, ms.CreateMesh(quadVertices(), quadIndices()))

	ms.Shutdown()
	assert.Equal(t, 2, backend.meshDestroys)
	assert.Equal(t, 0, ms.Count())
}
