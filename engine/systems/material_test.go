package systems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

func testFactors() metadata.MaterialFactors {
	return metadata.MaterialFactors{
		Albedo:    math.Vec4{X: 1, Y: 0.5, Z: 0.25, W: 1},
		Metallic:  0.2,
		Roughness: 0.8,
	}
}

func TestCreateMaterialStartsDirtyAndUnreadable(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 3)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.True(t, m.IsDirty())
	// No upload has landed: readers get no usable slot yet.
	assert.Equal(t, metadata.InvalidID, m.GetCurrentlyUsedGpuIndex())
}

func TestCreateMaterialFailsWhenExhausted(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 2, 3)

	_, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)
	_, err = ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	assert.Nil(t, m)
	assert.ErrorIs(t, err, core.ErrResourceCreation)
}

func TestUploadDataInstallsFreshSlot(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 3)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)
	firstSlot := m.CurrentMemory().GpuIndex

	require.NoError(t, ms.UploadData(10))

	assert.Equal(t, 1, backend.writeCount())
	cur := m.CurrentMemory()
	assert.True(t, cur.Uploaded)
	assert.False(t, cur.UploadInFlight)
	assert.Equal(t, uint64(10), cur.UploadedFrame)
	assert.NotEqual(t, firstSlot, cur.GpuIndex)
	assert.Equal(t, cur.GpuIndex, m.GetCurrentlyUsedGpuIndex())
	assert.False(t, m.IsDirty())
	assert.Equal(t, uint64(10), ms.LastUpdatedFrame())
}

func TestUploadDataNoDirtyMaterialsIsNoop(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 3)

	require.NoError(t, ms.UploadData(1))
	assert.Equal(t, 0, backend.writeCount())
}

func TestSetFactorAfterUploadQueuesNextBatch(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 3)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)
	require.NoError(t, ms.UploadData(1))
	uploadedSlot := m.GetCurrentlyUsedGpuIndex()

	m.SetRoughnessFactor(0.1)
	assert.True(t, m.IsDirty())

	// Readers keep the already-uploaded slot until the new batch lands.
	assert.Equal(t, uploadedSlot, m.GetCurrentlyUsedGpuIndex())

	require.NoError(t, ms.UploadData(2))
	assert.Equal(t, 2, backend.writeCount())
	assert.NotEqual(t, uploadedSlot, m.GetCurrentlyUsedGpuIndex())
}

func TestDirtyDuringUploadIsRequeued(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 3)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	// The write hook fires while the batch is mid-flight.
	backend.onWrite = func([]renderer.MaterialSlotWrite) {
		m.SetMetallicFactor(0.9)
	}
	require.NoError(t, ms.UploadData(1))

	// The change made during the upload survives as a pending batch.
	assert.True(t, m.IsDirty())

	backend.onWrite = nil
	require.NoError(t, ms.UploadData(2))
	assert.False(t, m.IsDirty())
	assert.Equal(t, 2, backend.writeCount())
}

func TestUploadFailureKeepsMaterialDirty(t *testing.T) {
	backend := &fakeBackend{}
	backend.writeErr = assert.AnError
	ms := NewMaterialSystem(backend, 8, 3)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	err = ms.UploadData(1)
	assert.Error(t, err)
	assert.True(t, m.IsDirty())
	assert.Equal(t, metadata.InvalidID, m.GetCurrentlyUsedGpuIndex())
}

func TestSweepReclaimsAgedMaterials(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 8, 2)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)
	require.NoError(t, ms.UploadData(1))
	m.MarkUsed(5)

	// Creator still holds its reference: nothing goes away.
	assert.Equal(t, 0, ms.Sweep(100))

	ms.DestroyMaterial(m)

	// Within the grace window the frame ring may still read the slot.
	assert.Equal(t, 0, ms.Sweep(6))
	assert.Equal(t, 0, ms.Sweep(7))
	assert.Equal(t, 1, ms.Sweep(8))
	assert.Equal(t, 0, ms.Count())
}

func TestRetiredSlotsRecycleAfterGracePeriod(t *testing.T) {
	backend := &fakeBackend{}
	ms := NewMaterialSystem(backend, 4, 2)

	m, err := ms.CreateMaterial(testFactors(), metadata.NoTextures())
	require.NoError(t, err)

	// Three uploads cycle through three slots; the first retired slot is
	// only reusable once its grace period passes.
	require.NoError(t, ms.UploadData(1))
	m.MarkDirty()
	require.NoError(t, ms.UploadData(2))
	m.MarkDirty()
	require.NoError(t, ms.UploadData(3))

	freedBefore := ms.slots.FreeCount()
	ms.Sweep(10)
	assert.Greater(t, ms.slots.FreeCount(), freedBefore)
}
