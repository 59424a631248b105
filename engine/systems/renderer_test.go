package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// newTestRendererSystem wires a renderer system against the fake backend.
// The job pool is pre-joined so material uploads run inline and the tests
// stay deterministic.
func newTestRendererSystem(t *testing.T, backend *fakeBackend, cfg *config.Config) (*RendererSystem, *MeshSystem, *MaterialSystem) {
	t.Helper()
	jobs, err := NewJobSystem(1, 4)
	require.NoError(t, err)
	jobs.Shutdown()

	meshes := NewMeshSystem(backend, cfg.SwapBufferCount)
	materials := NewMaterialSystem(backend, cfg.MaxMaterialCount, cfg.SwapBufferCount)
	rs := NewRendererSystem(cfg, nil, backend, meshes, materials, jobs)
	return rs, meshes, materials
}

func buildSnapshot(t *testing.T, mesh *metadata.Mesh, material *metadata.Material) *metadata.DrawData {
	t.Helper()
	dd := metadata.NewDrawData()
	meshRef, err := dd.AddMesh(mesh)
	require.NoError(t, err)
	matRef, err := dd.AddMaterial(material)
	require.NoError(t, err)
	inst, err := dd.AddInstance(math.NewMat4Identity(), matRef, 0)
	require.NoError(t, err)
	call, err := dd.AddDrawCall(meshRef, []metadata.InstanceHandle{inst})
	require.NoError(t, err)
	_, err = dd.AddDeferredShadingDrawPass([]metadata.DrawCallHandle{call})
	require.NoError(t, err)
	return dd
}

func TestDrawFrameEmptySnapshotAdvancesClock(t *testing.T) {
	backend := &fakeBackend{}
	rs, _, _ := newTestRendererSystem(t, backend, config.Default())

	assert.True(t, rs.DrawFrame(nil))
	assert.True(t, rs.DrawFrame(metadata.NewDrawData()))

	// Both were no-ops for the GPU, but the reclamation clock moved.
	assert.Equal(t, 0, backend.drawCalls)
	assert.Equal(t, uint64(2), rs.FrameCounter())
}

func TestDrawFrameSubmitsAndStampsResources(t *testing.T) {
	backend := &fakeBackend{}
	rs, meshes, materials := newTestRendererSystem(t, backend, config.Default())

	mesh := meshes.CreateMesh(quadVertices(), quadIndices())
	require.NotNil(t, mesh)
	material, err := materials.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	dd := buildSnapshot(t, mesh, material)
	assert.True(t, rs.DrawFrame(dd))

	assert.Equal(t, 1, backend.drawCalls)
	assert.True(t, dd.IsSealed())
	assert.Equal(t, rs.FrameCounter(), mesh.LastUsedFrame())
	assert.Equal(t, rs.FrameCounter(), material.LastUsedFrame())

	// The dirty material went out with this frame's upload batch.
	assert.Equal(t, 1, backend.writeCount())
	assert.False(t, material.IsDirty())
}

func TestDrawFrameSwapchainBootingIsNotAFailure(t *testing.T) {
	backend := &fakeBackend{}
	backend.drawErr = core.ErrSwapchainBooting
	rs, meshes, materials := newTestRendererSystem(t, backend, config.Default())

	mesh := meshes.CreateMesh(quadVertices(), quadIndices())
	material, err := materials.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	assert.True(t, rs.DrawFrame(buildSnapshot(t, mesh, material)))
}

func TestDrawFrameSubmissionFailureReturnsFalse(t *testing.T) {
	backend := &fakeBackend{}
	backend.drawErr = core.ErrFrameSubmission
	rs, meshes, materials := newTestRendererSystem(t, backend, config.Default())

	mesh := meshes.CreateMesh(quadVertices(), quadIndices())
	material, err := materials.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	assert.False(t, rs.DrawFrame(buildSnapshot(t, mesh, material)))
}

func TestPeriodicSweepReclaimsReleasedMesh(t *testing.T) {
	backend := &fakeBackend{}
	cfg := config.Default()
	cfg.CleanupInterval = 4
	cfg.SwapBufferCount = 2
	rs, meshes, materials := newTestRendererSystem(t, backend, cfg)

	mesh := meshes.CreateMesh(quadVertices(), quadIndices())
	require.NotNil(t, mesh)
	material, err := materials.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	// Frame 1 references the mesh, then the handle is dropped mid-flight.
	assert.True(t, rs.DrawFrame(buildSnapshot(t, mesh, material)))
	meshes.DestroyMesh(mesh)

	// Sweep at frame 4: 4-1 > 2, the buffer is reclaimable.
	for i := 0; i < 3; i++ {
		assert.True(t, rs.DrawFrame(nil))
	}
	assert.Equal(t, 1, backend.meshDestroys)
	assert.Equal(t, 0, meshes.Count())
}

func TestSweepWaitsOutTheGracePeriod(t *testing.T) {
	backend := &fakeBackend{}
	cfg := config.Default()
	cfg.CleanupInterval = 2
	cfg.SwapBufferCount = 3
	rs, meshes, materials := newTestRendererSystem(t, backend, cfg)

	mesh := meshes.CreateMesh(quadVertices(), quadIndices())
	require.NotNil(t, mesh)
	material, err := materials.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	assert.True(t, rs.DrawFrame(buildSnapshot(t, mesh, material)))
	meshes.DestroyMesh(mesh)

	// Sweeps at frames 2 and 4 are inside the grace window (4-1 <= 3).
	assert.True(t, rs.DrawFrame(nil))
	assert.True(t, rs.DrawFrame(nil))
	assert.True(t, rs.DrawFrame(nil))
	assert.Equal(t, 0, backend.meshDestroys)

	// Frame 6 sweep: 6-1 > 3.
	assert.True(t, rs.DrawFrame(nil))
	assert.True(t, rs.DrawFrame(nil))
	assert.Equal(t, 1, backend.meshDestroys)
}

func TestResizePropagatesToBackend(t *testing.T) {
	backend := &fakeBackend{}
	rs, _, _ := newTestRendererSystem(t, backend, config.Default())

	assert.True(t, rs.Resize(false, 1920, 1080))
	require.Len(t, backend.resizes, 1)
	assert.Equal(t, [2]uint32{1920, 1080}, backend.resizes[0])
}

func TestCleanUpJoinsWorkersBeforeTeardown(t *testing.T) {
	backend := &fakeBackend{}
	cfg := config.Default()

	jobs, err := NewJobSystem(2, 8)
	require.NoError(t, err)
	meshes := NewMeshSystem(backend, cfg.SwapBufferCount)
	materials := NewMaterialSystem(backend, cfg.MaxMaterialCount, cfg.SwapBufferCount)
	rs := NewRendererSystem(cfg, nil, backend, meshes, materials, jobs)

	require.NotNil(t, meshes.CreateMesh(quadVertices(), quadIndices()))

	assert.True(t, rs.CleanUp())
	assert.Equal(t, 1, backend.waitIdles)
	assert.Equal(t, 1, backend.meshDestroys)
	assert.Equal(t, 1, backend.shutdowns)

	// The pool is joined: late submissions are refused, not leaked.
	assert.ErrorIs(t, jobs.Submit(JobTask{}), ErrJobsStopped)
}
