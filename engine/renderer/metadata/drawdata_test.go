package metadata

import (
	"testing"

	"github.com/prismrender/prism/engine/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMesh() *Mesh {
	return &Mesh{VertexCount: 3, IndexCount: 3}
}

func testMaterial(id uint32) *Material {
	return NewMaterial(id, MaterialFactors{Albedo: math.NewVec4(1, 1, 1, 1)}, NoTextures())
}

func TestSnapshotHandlesAreUniquePerKind(t *testing.T) {
	dd := NewDrawData()
	mesh := testMesh()
	mat := testMaterial(0)

	// Re-adding the same resource yields a second, distinct handle.
	m0, err := dd.AddMesh(mesh)
	require.NoError(t, err)
	m1, err := dd.AddMesh(mesh)
	require.NoError(t, err)
	assert.NotEqual(t, m0, m1)

	r0, err := dd.AddMaterial(mat)
	require.NoError(t, err)
	r1, err := dd.AddMaterial(mat)
	require.NoError(t, err)
	assert.NotEqual(t, r0, r1)

	i0, err := dd.AddInstance(math.NewMat4Identity(), r0, 7)
	require.NoError(t, err)
	i1, err := dd.AddInstance(math.NewMat4Identity(), r1, 7)
	require.NoError(t, err)
	assert.NotEqual(t, i0, i1)

	assert.Equal(t, 2, dd.MeshCount())
	assert.Equal(t, 2, dd.MaterialCount())
	assert.Equal(t, 2, dd.InstanceCount())
}

func TestSnapshotRejectsForeignHandles(t *testing.T) {
	dd := NewDrawData()
	_, err := dd.AddInstance(math.NewMat4Identity(), MaterialRef(0), 0)
	assert.Error(t, err)

	_, err = dd.AddDrawCall(MeshRef(0), []InstanceHandle{0})
	assert.Error(t, err)

	_, err = dd.AddDeferredShadingDrawPass([]DrawCallHandle{0})
	assert.Error(t, err)
}

func TestSnapshotDrawCallNeedsInstances(t *testing.T) {
	dd := NewDrawData()
	mref, err := dd.AddMesh(testMesh())
	require.NoError(t, err)

	_, err = dd.AddDrawCall(mref, nil)
	assert.Error(t, err)
}

func TestSnapshotSealBlocksMutation(t *testing.T) {
	dd := NewDrawData()
	mref, err := dd.AddMesh(testMesh())
	require.NoError(t, err)
	matRef, err := dd.AddMaterial(testMaterial(0))
	require.NoError(t, err)
	inst, err := dd.AddInstance(math.NewMat4Identity(), matRef, 0)
	require.NoError(t, err)
	call, err := dd.AddDrawCall(mref, []InstanceHandle{inst})
	require.NoError(t, err)
	_, err = dd.AddDeferredShadingDrawPass([]DrawCallHandle{call})
	require.NoError(t, err)

	dd.Seal()
	assert.True(t, dd.IsSealed())

	_, err = dd.AddMesh(testMesh())
	assert.Error(t, err)
	_, err = dd.AddInstance(math.NewMat4Identity(), matRef, 0)
	assert.Error(t, err)
	assert.Equal(t, 1, dd.InstanceCount())
}

func TestBuildIndirectionFollowsUploadedSlots(t *testing.T) {
	dd := NewDrawData()

	uploaded := testMaterial(0)
	uploaded.SetMemory(&MaterialMemory{GpuIndex: 4, Uploaded: true})
	pending := testMaterial(1)
	pending.SetMemory(&MaterialMemory{GpuIndex: 9})

	_, err := dd.AddMaterial(uploaded)
	require.NoError(t, err)
	_, err = dd.AddMaterial(pending)
	require.NoError(t, err)

	table := dd.BuildIndirection()
	require.Len(t, table, 2)
	assert.Equal(t, uint32(4), table[0])
	// Never-uploaded material resolves to the invalid slot, not the
	// half-written one.
	assert.Equal(t, InvalidID, table[1])
}
