package renderer

import (
	"testing"

	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSnapshot(t *testing.T, instancesPerCall []int) *metadata.DrawData {
	t.Helper()
	dd := metadata.NewDrawData()
	mat := metadata.NewMaterial(0, metadata.MaterialFactors{}, metadata.NoTextures())
	matRef, err := dd.AddMaterial(mat)
	require.NoError(t, err)

	calls := make([]metadata.DrawCallHandle, 0, len(instancesPerCall))
	for _, n := range instancesPerCall {
		mref, err := dd.AddMesh(&metadata.Mesh{VertexCount: 3, IndexCount: 3})
		require.NoError(t, err)
		handles := make([]metadata.InstanceHandle, 0, n)
		for i := 0; i < n; i++ {
			ih, err := dd.AddInstance(math.NewMat4Identity(), matRef, uint32(i))
			require.NoError(t, err)
			handles = append(handles, ih)
		}
		ch, err := dd.AddDrawCall(mref, handles)
		require.NoError(t, err)
		calls = append(calls, ch)
	}
	_, err = dd.AddDeferredShadingDrawPass(calls)
	require.NoError(t, err)
	return dd
}

func TestBuildDrawRangesPrefixSum(t *testing.T) {
	dd := buildSnapshot(t, []int{3, 1, 5})
	ranges, flat, total := BuildDrawRanges(dd)

	require.Len(t, ranges, 3)
	assert.Len(t, flat, 9)
	assert.Equal(t, uint64(9)*PackedInstanceSize, total)

	assert.Equal(t, uint64(0), ranges[0].ByteOffset)
	assert.Equal(t, uint32(0), ranges[0].FirstInstance)
	assert.Equal(t, uint32(3), ranges[0].InstanceCount)

	assert.Equal(t, 3*PackedInstanceSize, ranges[1].ByteOffset)
	assert.Equal(t, uint32(3), ranges[1].FirstInstance)
	assert.Equal(t, uint32(1), ranges[1].InstanceCount)

	assert.Equal(t, 4*PackedInstanceSize, ranges[2].ByteOffset)
	assert.Equal(t, uint32(4), ranges[2].FirstInstance)
	assert.Equal(t, uint32(5), ranges[2].InstanceCount)
}

func TestBuildDrawRangesIgnoresCallsOutsideAnyPass(t *testing.T) {
	dd := metadata.NewDrawData()
	mat := metadata.NewMaterial(0, metadata.MaterialFactors{}, metadata.NoTextures())
	matRef, err := dd.AddMaterial(mat)
	require.NoError(t, err)

	orphanMesh := &metadata.Mesh{VertexCount: 3, IndexCount: 3}
	passMesh := &metadata.Mesh{VertexCount: 3, IndexCount: 3}

	orphanRef, err := dd.AddMesh(orphanMesh)
	require.NoError(t, err)
	passRef, err := dd.AddMesh(passMesh)
	require.NoError(t, err)

	ih0, err := dd.AddInstance(math.NewMat4Identity(), matRef, 0)
	require.NoError(t, err)
	ih1, err := dd.AddInstance(math.NewMat4Identity(), matRef, 1)
	require.NoError(t, err)
	ih2, err := dd.AddInstance(math.NewMat4Identity(), matRef, 2)
	require.NoError(t, err)

	// Registered but never attached to a pass: must not be uploaded.
	_, err = dd.AddDrawCall(orphanRef, []metadata.InstanceHandle{ih0, ih1})
	require.NoError(t, err)
	attached, err := dd.AddDrawCall(passRef, []metadata.InstanceHandle{ih2})
	require.NoError(t, err)
	_, err = dd.AddDeferredShadingDrawPass([]metadata.DrawCallHandle{attached})
	require.NoError(t, err)

	ranges, flat, total := BuildDrawRanges(dd)
	require.Len(t, ranges, 1)
	assert.Same(t, passMesh, ranges[0].Mesh)
	assert.Equal(t, uint32(0), ranges[0].FirstInstance)
	assert.Equal(t, uint32(1), ranges[0].InstanceCount)
	assert.Len(t, flat, 1)
	assert.Equal(t, uint32(2), flat[0].CustomID)
	assert.Equal(t, PackedInstanceSize, total)
}

func TestBuildDrawRangesDedupesCallsAcrossPasses(t *testing.T) {
	dd := buildSnapshot(t, []int{2})
	calls := dd.Passes()[0].Calls
	_, err := dd.AddDeferredShadingDrawPass(calls)
	require.NoError(t, err)

	ranges, flat, total := BuildDrawRanges(dd)
	require.Len(t, ranges, 1)
	assert.Len(t, flat, 2)
	assert.Equal(t, 2*PackedInstanceSize, total)
}

func TestBuildDrawRangesEmptySnapshot(t *testing.T) {
	dd := metadata.NewDrawData()
	ranges, flat, total := BuildDrawRanges(dd)
	assert.Empty(t, ranges)
	assert.Empty(t, flat)
	assert.Zero(t, total)
}

func TestPackedInstanceSizeIsAligned(t *testing.T) {
	// The stride feeds straight into buffer offsets; keep it 16-byte aligned.
	assert.Zero(t, PackedInstanceSize%16)
}
