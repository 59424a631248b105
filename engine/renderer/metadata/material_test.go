package metadata

import (
	"testing"

	"github.com/prismrender/prism/engine/math"
	"github.com/stretchr/testify/assert"
)

func TestMaterialStalenessFallback(t *testing.T) {
	m := testMaterial(0)
	m.SetMemory(&MaterialMemory{GpuIndex: 2, Uploaded: true})

	// A fresh allocation that has not landed yet must not be visible.
	m.SwapMemory(&MaterialMemory{GpuIndex: 5})
	assert.Equal(t, uint32(2), m.GetCurrentlyUsedGpuIndex())

	m.CurrentMemory().Uploaded = true
	assert.Equal(t, uint32(5), m.GetCurrentlyUsedGpuIndex())
}

func TestMaterialWithoutAnyUploadReportsInvalid(t *testing.T) {
	m := testMaterial(0)
	m.SetMemory(&MaterialMemory{GpuIndex: 3})
	assert.Equal(t, InvalidID, m.GetCurrentlyUsedGpuIndex())
}

func TestMaterialDirtyLifecycle(t *testing.T) {
	m := testMaterial(0)
	// New materials are dirty so their first upload precedes first use.
	assert.True(t, m.IsDirty())
	assert.True(t, m.ConsumeDirty())
	assert.False(t, m.IsDirty())

	m.SetRoughnessFactor(0.25)
	assert.True(t, m.IsDirty())
}

func TestMaterialSwapMemoryRetiresOldest(t *testing.T) {
	m := testMaterial(0)
	first := &MaterialMemory{GpuIndex: 0, Uploaded: true}
	m.SetMemory(first)

	second := &MaterialMemory{GpuIndex: 1}
	retired := m.SwapMemory(second)
	assert.Nil(t, retired)

	third := &MaterialMemory{GpuIndex: 2}
	retired = m.SwapMemory(third)
	assert.Same(t, first, retired)
	assert.Same(t, second, m.PreviousMemory())
	assert.Same(t, third, m.CurrentMemory())
}

func TestPackMaterialData(t *testing.T) {
	packed := PackMaterialData(MaterialFactors{
		Albedo:    math.NewVec4(1, 0, 0, 1),
		Emissive:  math.NewVec4(0, 0, 0, 0),
		Metallic:  1.0,
		Roughness: 0.0,
	}, NoTextures())

	assert.Equal(t, uint32(0xFF0000FF), packed.Albedo)
	assert.Equal(t, uint32(0), packed.Emissive)
	assert.Equal(t, uint32(0x0000FFFF), packed.MetallicRoughness)
	assert.Equal(t, uint32(0xFFFFFFFF), packed.TexturesA)
}

func TestPackClampsOutOfRangeFactors(t *testing.T) {
	packed := PackMaterialData(MaterialFactors{
		Albedo:   math.NewVec4(2.0, -1.0, 0.5, 1.0),
		Metallic: 1.5,
	}, NoTextures())

	assert.Equal(t, uint8(0xFF), uint8(packed.Albedo))
	assert.Equal(t, uint8(0x00), uint8(packed.Albedo>>8))
	assert.Equal(t, uint16(0xFFFF), uint16(packed.MetallicRoughness))
}

func TestMaterialAgeRule(t *testing.T) {
	const swapBufferCount = 3
	m := testMaterial(0)
	m.MarkUsed(10)

	for frame := uint64(10); frame <= 10+swapBufferCount; frame++ {
		assert.False(t, m.AgedOut(frame, swapBufferCount), "frame %d", frame)
	}
	assert.True(t, m.AgedOut(10+swapBufferCount+1, swapBufferCount))
}

func TestMarkUsedNeverRewindsTheStamp(t *testing.T) {
	m := testMaterial(0)
	m.MarkUsed(20)
	m.MarkUsed(5)
	assert.Equal(t, uint64(20), m.LastUsedFrame())
}
