package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstanceRingRotation(t *testing.T) {
	a, b, c := &InstanceRingEntry{}, &InstanceRingEntry{}, &InstanceRingEntry{}
	ring := &InstanceRing{Entries: []*InstanceRingEntry{a, b, c}}

	assert.Same(t, a, ring.Current())
	assert.Same(t, c, ring.Previous())

	ring.Advance()
	assert.Same(t, b, ring.Current())
	assert.Same(t, a, ring.Previous())
}

// A frame that skips submission after its transfer went out leaves the ring
// un-advanced: the same entry comes back as Current with its signal still
// pending, which is exactly what Upload keys the semaphore swap off. Only
// the consuming graphics submit clears the flag.
func TestSkippedFrameLeavesUploadSignalPending(t *testing.T) {
	ring := &InstanceRing{Entries: []*InstanceRingEntry{{}, {}, {}}}

	entry := ring.Current()
	entry.HasDraws = true
	entry.SignalPending = true

	// Skipped frame: no advance, the orphaned signal is still there.
	require.Same(t, entry, ring.Current())
	assert.True(t, ring.Current().SignalPending)

	// Completed frame: the entry is consumed as Previous and its wait has
	// been queued, so the semaphore may be signaled again.
	ring.Advance()
	require.Same(t, entry, ring.Previous())
	entry.SignalPending = false
	assert.False(t, ring.Previous().SignalPending)
}

func TestStageRebuildTracksSwapchainGeneration(t *testing.T) {
	vr := &Renderer{
		context:                  &VulkanContext{Swapchain: &VulkanSwapchain{Generation: 1}},
		stageSwapchainGeneration: 1,
	}
	assert.False(t, vr.stageOutOfDate())

	// Internal recreate at acquire or present time; no resize event fires.
	vr.context.Swapchain.Generation++
	assert.True(t, vr.stageOutOfDate())

	vr.stageSwapchainGeneration = vr.context.Swapchain.Generation
	assert.False(t, vr.stageOutOfDate())
}
