package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

const (
	initialInstanceCapacity = 256
	initialLightCapacity    = 16
)

// InstanceRingEntry owns the GPU-side per-frame scene data: the packed
// instance buffer with its staging twin, the material indirection table and
// the packed lights. Entries are recycled round-robin; the ring holds one
// more entry than there are frame slots so the entry consumed by the stage
// (one cycle older than the one being written) is always upload-complete.
type InstanceRingEntry struct {
	InstanceBuffer    *GpuBuffer
	StagingBuffer     *GpuBuffer
	IndirectionBuffer *GpuBuffer
	LightBuffer       *GpuBuffer

	UploadSemaphore vk.Semaphore
	UploadFence     *VulkanFence
	CommandPool     vk.CommandPool
	CommandBuffer   *VulkanCommandBuffer

	DrawRanges     []renderer.DrawRange
	ViewProjection math.Mat4
	CameraPosition math.Vec3
	LightCount     uint32
	HasDraws       bool

	// True while UploadSemaphore carries a submitted signal that no graphics
	// submit has waited on yet. A frame that skips submission leaves the flag
	// set; the next Upload must replace the semaphore instead of signaling a
	// binary semaphore twice.
	SignalPending bool

	// Bumped whenever a backing buffer is reallocated; the stage compares
	// it against the generation its descriptor set was written with.
	Generation uint64
}

type InstanceRing struct {
	Entries    []*InstanceRingEntry
	writeIndex int
}

// NewInstanceRing builds swapBufferCount+1 entries.
func NewInstanceRing(context *VulkanContext, swapBufferCount uint32) (*InstanceRing, error) {
	ring := &InstanceRing{
		Entries: make([]*InstanceRingEntry, swapBufferCount+1),
	}
	for i := range ring.Entries {
		entry, err := newInstanceRingEntry(context)
		if err != nil {
			ring.Destroy(context)
			return nil, err
		}
		ring.Entries[i] = entry
	}
	return ring, nil
}

func newInstanceRingEntry(context *VulkanContext) (*InstanceRingEntry, error) {
	entry := &InstanceRingEntry{}

	var err error
	instanceBytes := uint64(initialInstanceCapacity) * renderer.PackedInstanceSize
	entry.InstanceBuffer, err = NewGpuBuffer(context, instanceBytes,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return nil, err
	}
	entry.StagingBuffer, err = NewGpuBuffer(context, instanceBytes,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		entry.Destroy(context)
		return nil, err
	}
	entry.IndirectionBuffer, err = NewGpuBuffer(context, uint64(initialInstanceCapacity)*4,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		entry.Destroy(context)
		return nil, err
	}
	entry.LightBuffer, err = NewGpuBuffer(context, uint64(initialLightCapacity)*uint64(unsafe.Sizeof(metadata.PackedLight{})),
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		entry.Destroy(context)
		return nil, err
	}

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &entry.UploadSemaphore); res != vk.Success {
		entry.Destroy(context)
		err := fmt.Errorf("failed to create upload semaphore: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}

	entry.UploadFence, err = NewFence(context, true)
	if err != nil {
		entry.Destroy(context)
		return nil, err
	}

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.TransferQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
	}
	if res := vk.CreateCommandPool(context.Device.LogicalDevice, &poolCreateInfo, context.Allocator, &entry.CommandPool); res != vk.Success {
		entry.Destroy(context)
		err := fmt.Errorf("failed to create upload command pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	cb, err := NewVulkanCommandBuffer(context, entry.CommandPool, true)
	if err != nil {
		entry.Destroy(context)
		return nil, err
	}
	entry.CommandBuffer = cb

	return entry, nil
}

// Current is the entry being written this frame.
func (ir *InstanceRing) Current() *InstanceRingEntry {
	return ir.Entries[ir.writeIndex]
}

// Previous is the entry written one upload cycle earlier; the render stage
// consumes this one.
func (ir *InstanceRing) Previous() *InstanceRingEntry {
	return ir.Entries[(ir.writeIndex+len(ir.Entries)-1)%len(ir.Entries)]
}

func (ir *InstanceRing) Advance() {
	ir.writeIndex = (ir.writeIndex + 1) % len(ir.Entries)
}

// Upload flattens the snapshot into the current ring entry: instances go
// staging -> device-local over the transfer queue signaling the entry's
// upload semaphore (no CPU wait), indirection and lights are written
// directly into host-visible memory. Returns the entry so the caller can
// advance the ring once recording has consumed the previous one.
func (ir *InstanceRing) Upload(context *VulkanContext, dd *metadata.DrawData) (*InstanceRingEntry, error) {
	entry := ir.Current()

	// The ring's N+1 sizing means this fence is signaled in steady state;
	// the wait only bites right after a burst of swapchain recreations.
	if !entry.UploadFence.Wait(context, NoTimeout) {
		return nil, fmt.Errorf("instance upload fence wait failed")
	}

	// An orphaned signal from a frame that never reached its graphics submit
	// has no wait to pair with. The fence wait above proved the transfer that
	// signaled it retired, so the semaphore can be replaced outright.
	if entry.SignalPending {
		if err := entry.recycleUploadSemaphore(context); err != nil {
			return nil, err
		}
	}

	ranges, flat, totalBytes := renderer.BuildDrawRanges(dd)
	entry.DrawRanges = ranges
	// HasDraws gates both the signal below and the stage's wait; the two
	// must agree or the wait would have no pending signal.
	entry.HasDraws = len(ranges) > 0 && totalBytes > 0

	if camera := dd.Camera; camera != nil {
		entry.ViewProjection = camera.ViewProjection()
		entry.CameraPosition = camera.Position
	} else {
		entry.ViewProjection = math.NewMat4Identity()
		entry.CameraPosition = math.Vec3{}
	}

	indirection := dd.BuildIndirection()
	if len(indirection) > 0 {
		required := uint64(len(indirection)) * 4
		grew, err := entry.IndirectionBuffer.EnsureCapacity(context, required)
		if err != nil {
			return nil, err
		}
		if grew {
			entry.Generation++
		}
		if err := entry.IndirectionBuffer.MapWrite(context, 0, required, unsafe.Pointer(&indirection[0])); err != nil {
			return nil, err
		}
	}

	lights := dd.PackedLights()
	entry.LightCount = uint32(len(lights))
	if len(lights) > 0 {
		required := uint64(len(lights)) * uint64(unsafe.Sizeof(metadata.PackedLight{}))
		grew, err := entry.LightBuffer.EnsureCapacity(context, required)
		if err != nil {
			return nil, err
		}
		if grew {
			entry.Generation++
		}
		if err := entry.LightBuffer.MapWrite(context, 0, required, unsafe.Pointer(&lights[0])); err != nil {
			return nil, err
		}
	}

	if !entry.HasDraws {
		return entry, nil
	}

	grewInstance, err := entry.InstanceBuffer.EnsureCapacity(context, totalBytes)
	if err != nil {
		return nil, err
	}
	grewStaging, err := entry.StagingBuffer.EnsureCapacity(context, totalBytes)
	if err != nil {
		return nil, err
	}
	if grewInstance || grewStaging {
		entry.Generation++
	}

	if err := entry.StagingBuffer.MapWrite(context, 0, totalBytes, unsafe.Pointer(&flat[0])); err != nil {
		return nil, err
	}

	if res := vk.ResetCommandPool(context.Device.LogicalDevice, entry.CommandPool, 0); res != vk.Success {
		err := fmt.Errorf("failed to reset upload command pool: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	entry.CommandBuffer.Reset()
	if err := entry.CommandBuffer.Begin(true, false, false); err != nil {
		return nil, err
	}
	copyRegion := vk.BufferCopy{Size: vk.DeviceSize(totalBytes)}
	vk.CmdCopyBuffer(entry.CommandBuffer.Handle, entry.StagingBuffer.Handle, entry.InstanceBuffer.Handle, 1, []vk.BufferCopy{copyRegion})
	if err := entry.CommandBuffer.End(); err != nil {
		return nil, err
	}

	if err := entry.UploadFence.Reset(context); err != nil {
		return nil, err
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{entry.CommandBuffer.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{entry.UploadSemaphore},
	}
	err = context.QueueLocks.SafeQueueCall(uint32(context.Device.TransferQueueIndex), func() error {
		if res := vk.QueueSubmit(context.Device.TransferQueue, 1, []vk.SubmitInfo{submitInfo}, entry.UploadFence.Handle); res != vk.Success {
			return fmt.Errorf("failed to submit instance upload: %s", VulkanResultString(res))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	entry.CommandBuffer.UpdateSubmitted()
	entry.SignalPending = true

	return entry, nil
}

// recycleUploadSemaphore replaces the upload semaphore with a fresh one.
// Only legal after the upload fence proved the pending signal retired.
func (e *InstanceRingEntry) recycleUploadSemaphore(context *VulkanContext) error {
	vk.DestroySemaphore(context.Device.LogicalDevice, e.UploadSemaphore, context.Allocator)
	e.UploadSemaphore = vk.NullSemaphore
	e.SignalPending = false

	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	if res := vk.CreateSemaphore(context.Device.LogicalDevice, &semaphoreCreateInfo, context.Allocator, &e.UploadSemaphore); res != vk.Success {
		err := fmt.Errorf("failed to recreate upload semaphore: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	return nil
}

func (ir *InstanceRing) Destroy(context *VulkanContext) {
	for i, entry := range ir.Entries {
		if entry != nil {
			entry.Destroy(context)
			ir.Entries[i] = nil
		}
	}
}

func (e *InstanceRingEntry) Destroy(context *VulkanContext) {
	if e.CommandBuffer != nil && e.CommandBuffer.Handle != nil {
		e.CommandBuffer.Free(context, e.CommandPool)
		e.CommandBuffer = nil
	}
	if e.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(context.Device.LogicalDevice, e.CommandPool, context.Allocator)
		e.CommandPool = vk.NullCommandPool
	}
	if e.UploadFence != nil {
		e.UploadFence.Destroy(context)
		e.UploadFence = nil
	}
	if e.UploadSemaphore != vk.NullSemaphore {
		vk.DestroySemaphore(context.Device.LogicalDevice, e.UploadSemaphore, context.Allocator)
		e.UploadSemaphore = vk.NullSemaphore
	}
	for _, b := range []*GpuBuffer{e.InstanceBuffer, e.StagingBuffer, e.IndirectionBuffer, e.LightBuffer} {
		if b != nil {
			b.Destroy(context)
		}
	}
	e.InstanceBuffer, e.StagingBuffer, e.IndirectionBuffer, e.LightBuffer = nil, nil, nil, nil
}
