package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/renderer"
)

// GpuBuffer owns a vk.Buffer and its backing memory. Capacity only ever
// grows; Resize allocates the larger buffer in a single step.
type GpuBuffer struct {
	Handle      vk.Buffer
	Memory      vk.DeviceMemory
	TotalSize   uint64
	Usage       vk.BufferUsageFlags
	MemoryFlags vk.MemoryPropertyFlags
	IsLocked    bool

	memoryIndex int32
}

func NewGpuBuffer(context *VulkanContext, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlags) (*GpuBuffer, error) {
	b := &GpuBuffer{
		TotalSize:   size,
		Usage:       usage,
		MemoryFlags: memoryFlags,
	}
	if err := b.allocate(context, size); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *GpuBuffer) allocate(context *VulkanContext, size uint64) error {
	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       b.Usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create buffer: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}

	var memReqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, handle, &memReqs)
	memReqs.Deref()

	memoryIndex := context.FindMemoryIndex(memReqs.MemoryTypeBits, uint32(b.MemoryFlags))
	if memoryIndex == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("no suitable memory type for buffer")
		core.LogError(err.Error())
		return err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("failed to allocate buffer memory: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}

	if res := vk.BindBufferMemory(context.Device.LogicalDevice, handle, memory, 0); res != vk.Success {
		vk.FreeMemory(context.Device.LogicalDevice, memory, context.Allocator)
		vk.DestroyBuffer(context.Device.LogicalDevice, handle, context.Allocator)
		err := fmt.Errorf("failed to bind buffer memory: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}

	b.Handle = handle
	b.Memory = memory
	b.TotalSize = size
	b.memoryIndex = memoryIndex
	return nil
}

// EnsureCapacity grows the buffer to hold at least required bytes. The new
// capacity follows the monotonic growth policy; existing contents are NOT
// preserved, callers re-upload after a grow. Returns true when the buffer
// was reallocated.
func (b *GpuBuffer) EnsureCapacity(context *VulkanContext, required uint64) (bool, error) {
	grown := renderer.GrowCapacity(b.TotalSize, required)
	if grown == b.TotalSize {
		return false, nil
	}
	b.Destroy(context)
	if err := b.allocate(context, grown); err != nil {
		return false, err
	}
	return true, nil
}

// MapWrite copies data into a host-visible buffer at the given offset. The
// buffer must have been created with HostVisible|HostCoherent flags.
func (b *GpuBuffer) MapWrite(context *VulkanContext, offset, size uint64, data unsafe.Pointer) error {
	var mapped unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), 0, &mapped); res != vk.Success {
		err := fmt.Errorf("failed to map buffer memory: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vk.Memcopy(mapped, unsafe.Slice((*byte)(data), size))
	vk.UnmapMemory(context.Device.LogicalDevice, b.Memory)
	return nil
}

// Upload stages data through a host-visible scratch buffer and copies it
// into this (device-local) buffer with a single-use command buffer. The
// call blocks until the transfer queue drains, so completion is observable
// to the caller.
func (b *GpuBuffer) Upload(context *VulkanContext, pool vk.CommandPool, queue vk.Queue, queueFamily uint32, offset, size uint64, data unsafe.Pointer) error {
	staging, err := NewGpuBuffer(context, size,
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return err
	}
	defer staging.Destroy(context)

	if err := staging.MapWrite(context, 0, size, data); err != nil {
		return err
	}

	cb, err := AllocateAndBeginSingleUse(context, pool)
	if err != nil {
		return err
	}

	copyRegion := vk.BufferCopy{
		SrcOffset: 0,
		DstOffset: vk.DeviceSize(offset),
		Size:      vk.DeviceSize(size),
	}
	vk.CmdCopyBuffer(cb.Handle, staging.Handle, b.Handle, 1, []vk.BufferCopy{copyRegion})

	return cb.EndSingleUse(context, pool, queue, queueFamily)
}

func (b *GpuBuffer) Destroy(context *VulkanContext) {
	if b.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, b.Memory, context.Allocator)
		b.Memory = vk.NullDeviceMemory
	}
	if b.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, b.Handle, context.Allocator)
		b.Handle = vk.NullBuffer
	}
	b.IsLocked = false
}
