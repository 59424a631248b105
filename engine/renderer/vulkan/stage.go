package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
)

// RenderStage is one self-contained piece of the frame's command stream.
// Stages record into the frame's primary command buffer and may append to
// the shared submit synchronization lists.
type RenderStage interface {
	Initialize(context *VulkanContext) error
	// RecordCommandBuffer records this stage's commands for the given
	// swapchain image, consuming the instance ring entry written one upload
	// cycle earlier.
	RecordCommandBuffer(context *VulkanContext, cb *VulkanCommandBuffer, imageIndex uint32, entry *InstanceRingEntry, sync *SubmitSync) error
	// Resize rebuilds size-dependent state after a swapchain recreation.
	Resize(context *VulkanContext, width, height uint32) error
	CleanUp(context *VulkanContext)
}

// SubmitSync collects the wait/signal semaphores for one queue submission.
// The lists are append-only; every wait semaphore must be pushed together
// with its pipeline stage. A length mismatch is a contract violation by a
// stage, not a recoverable runtime condition.
type SubmitSync struct {
	WaitSemaphores   []vk.Semaphore
	WaitStages       []vk.PipelineStageFlags
	SignalSemaphores []vk.Semaphore
}

func (s *SubmitSync) AddWait(semaphore vk.Semaphore, stage vk.PipelineStageFlags) {
	s.WaitSemaphores = append(s.WaitSemaphores, semaphore)
	s.WaitStages = append(s.WaitStages, stage)
}

func (s *SubmitSync) AddSignal(semaphore vk.Semaphore) {
	s.SignalSemaphores = append(s.SignalSemaphores, semaphore)
}

// Validate checks the wait-semaphore/wait-stage parity before submission.
func (s *SubmitSync) Validate() error {
	if len(s.WaitSemaphores) != len(s.WaitStages) {
		return fmt.Errorf("%w: %d wait semaphores but %d wait stages",
			core.ErrSyncMisuse, len(s.WaitSemaphores), len(s.WaitStages))
	}
	return nil
}
