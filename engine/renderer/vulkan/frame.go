package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// FrameSlot bundles the synchronization and recording state reused every
// SwapBufferCount frames. The owned snapshot keeps the resources it
// references alive until the slot's fence proves the GPU is done with them.
type FrameSlot struct {
	InFlightFence           *VulkanFence
	ImageAvailableSemaphore vk.Semaphore
	RenderCompleteSemaphore vk.Semaphore
	CommandPool             vk.CommandPool
	CommandBuffer           *VulkanCommandBuffer

	// Snapshot submitted the last time this slot was used. Replaced, not
	// cleared, on the next cycle through the ring.
	Snapshot *metadata.DrawData
}

func NewFrameSlot(context *VulkanContext) (*FrameSlot, error) {
	slot := &FrameSlot{}

	// Signaled so the first wait on this slot passes immediately.
	fence, err := NewFence(context, true)
	if err != nil {
		return nil, err
	}
	slot.InFlightFence = fence

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &slot.ImageAvailableSemaphore); res != vk.Success {
		slot.Destroy(context)
		err := fmt.Errorf("failed to create image available semaphore: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &slot.RenderCompleteSemaphore); res != vk.Success {
		slot.Destroy(context)
		err := fmt.Errorf("failed to create render complete semaphore: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	// Per-slot pool so a whole frame's command memory is reclaimed with
	// one reset instead of per-buffer frees.
	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &slot.CommandPool); res != vk.Success {
		slot.Destroy(context)
		err := fmt.Errorf("failed to create frame command pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	cb, err := NewVulkanCommandBuffer(context, slot.CommandPool, true)
	if err != nil {
		slot.Destroy(context)
		return nil, err
	}
	slot.CommandBuffer = cb

	return slot, nil
}

// BeginRecording resets the slot's pool and opens the command buffer. The
// slot's fence must have been waited on before calling.
func (fs *FrameSlot) BeginRecording(context *VulkanContext) error {
	if res := vk.ResetCommandPool(context.Device.LogicalDevice, fs.CommandPool, 0); res != vk.Success {
		err := fmt.Errorf("failed to reset frame command pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	fs.CommandBuffer.Reset()
	return fs.CommandBuffer.Begin(false, false, false)
}

func (fs *FrameSlot) Destroy(context *VulkanContext) {
	if fs.CommandBuffer != nil && fs.CommandBuffer.Handle != nil {
		fs.CommandBuffer.Free(context, fs.CommandPool)
		fs.CommandBuffer = nil
	}
	if fs.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(context.Device.LogicalDevice, fs.CommandPool, context.Allocator)
		fs.CommandPool = vk.NullCommandPool
	}
	if fs.ImageAvailableSemaphore != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, fs.ImageAvailableSemaphore, context.Allocator)
		fs.ImageAvailableSemaphore = vk.NullSemaphore
	}
	if fs.RenderCompleteSemaphore != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, fs.RenderCompleteSemaphore, context.Allocator)
		fs.RenderCompleteSemaphore = vk.NullSemaphore
	}
	if fs.InFlightFence != nil {
		fs.InFlightFence.Destroy(context)
		fs.InFlightFence = nil
	}
	fs.Snapshot = nil
}
