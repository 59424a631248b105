package vulkan

import (
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/config"
	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
	"github.com/prismrender/prism/engine/platform"
	"github.com/prismrender/prism/engine/renderer"
	"github.com/prismrender/prism/engine/renderer/metadata"
)

// PackedMaterialSize is the byte stride of one material slot in the GPU
// material buffer.
var PackedMaterialSize = uint64(unsafe.Sizeof(metadata.PackedMaterial{}))

// MeshGpuData lives in Mesh.RendererData: one buffer holding the vertex
// region followed by the aligned index region.
type MeshGpuData struct {
	Buffer *GpuBuffer
}

// Renderer is the Vulkan implementation of the backend interface. All the
// CPU-side frame bookkeeping lives in the systems layer; this type owns the
// device, the frame ring, the instance upload ring and the deferred stage.
type Renderer struct {
	platform *platform.Platform
	cfg      *config.Config
	context  *VulkanContext
	debug    bool

	frameSlots []*FrameSlot
	frameIndex int

	ring           *InstanceRing
	stage          *DeferredStage
	materialBuffer *GpuBuffer
	shaderWatcher  *ShaderWatcher

	// Serializes synchronous mesh uploads from concurrent creators.
	meshMu sync.Mutex

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	// Swapchain generation the stage's framebuffers were last built for.
	stageSwapchainGeneration uint64
}

// stageOutOfDate reports whether the swapchain was rebuilt since the stage
// last built its framebuffers. Internal recreations (out-of-date or
// suboptimal at acquire/present) bump the generation without any resize
// event, so this is checked every frame.
func (vr *Renderer) stageOutOfDate() bool {
	return vr.context.Swapchain.Generation != vr.stageSwapchainGeneration
}

var _ renderer.Backend = (*Renderer)(nil)

func New(p *platform.Platform) *Renderer {
	return &Renderer{
		platform: p,
		context: &VulkanContext{
			QueueLocks: NewQueueLockPool(),
		},
	}
}

func (vr *Renderer) Initialize(cfg *config.Config) error {
	vr.cfg = cfg
	vr.debug = cfg.Debug

	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("%w: GetInstanceProcAddress is nil", core.ErrInitializationFailed)
		core.LogError(err.Error())
		return err
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vulkan loader: %s", err)
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}

	vr.context.FramebufferWidth = cfg.Width
	vr.context.FramebufferHeight = cfg.Height

	if err := vr.createInstance(cfg); err != nil {
		return err
	}

	if vr.debug {
		if err := vr.createDebugMessenger(); err != nil {
			return err
		}
	}

	core.LogDebug("creating vulkan surface")
	surface, err := vr.platform.CreateVulkanSurface(vr.context.Instance)
	if err != nil {
		return fmt.Errorf("%w: surface creation failed", core.ErrInitializationFailed)
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(vr.context, cfg.DeviceIndex); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, cfg.SwapBufferCount, cfg.VSync)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}
	vr.context.Swapchain = sc

	// Material slots are double buffered (current + previous), so the
	// table holds twice the configured material budget.
	vr.materialBuffer, err = NewGpuBuffer(vr.context,
		uint64(cfg.MaxMaterialCount)*2*PackedMaterialSize,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}

	vr.ring, err = NewInstanceRing(vr.context, cfg.SwapBufferCount)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}

	vr.stage = NewDeferredStage(vr.ring, vr.materialBuffer, cfg.ShadersPath, cfg.ClearColor)
	if err := vr.stage.Initialize(vr.context); err != nil {
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}
	vr.stageSwapchainGeneration = sc.Generation

	vr.frameSlots = make([]*FrameSlot, cfg.SwapBufferCount)
	for i := range vr.frameSlots {
		slot, err := NewFrameSlot(vr.context)
		if err != nil {
			return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
		}
		vr.frameSlots[i] = slot
	}

	// Live shader reload is best effort; a missing directory only disables
	// the watcher.
	if watcher, err := NewShaderWatcher(cfg.ShadersPath); err == nil {
		vr.shaderWatcher = watcher
	} else {
		core.LogWarn("shader watching disabled: %s", err)
	}

	core.LogInfo("vulkan renderer initialized")
	return nil
}

func (vr *Renderer) createInstance(cfg *config.Config) error {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 2, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(cfg.WindowTitle),
		PEngineName:        VulkanSafeString("Prism Engine"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		createInfo.Flags |= 1
	}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
		core.LogDebug("required instance extensions: %v", requiredExtensions)
	}
	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var layers []string
	if vr.debug {
		const validationLayer = "VK_LAYER_KHRONOS_validation"
		if instanceLayerAvailable(validationLayer) {
			layers = append(layers, validationLayer)
		} else {
			core.LogWarn("validation layer %s not available, continuing without it", validationLayer)
		}
	}
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(layers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		err := fmt.Errorf("%w: failed to create instance: %s", core.ErrInitializationFailed, VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		core.LogError(err.Error())
		return fmt.Errorf("%w: %s", core.ErrInitializationFailed, err)
	}
	core.LogInfo("vulkan instance created")
	return nil
}

func instanceLayerAvailable(name string) bool {
	var count uint32
	if res := vk.EnumerateInstanceLayerProperties(&count, nil); res != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if res := vk.EnumerateInstanceLayerProperties(&count, layers); res != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		end := FindFirstZeroInByteArray(layers[i].LayerName[:])
		if name == vk.ToString(layers[i].LayerName[:end+1]) {
			return true
		}
	}
	return false
}

func (vr *Renderer) createDebugMessenger() error {
	debugCreateInfo := vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
		PfnCallback: dbgCallbackFunc,
	}
	var dbg vk.DebugReportCallback
	if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
		err := fmt.Errorf("%w: failed to create debug callback: %s", core.ErrInitializationFailed, VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vr.context.debugMessenger = dbg
	core.LogDebug("vulkan debug messenger created")
	return nil
}

// DrawFrame runs the GPU half of the frame: upload the snapshot into the
// current instance ring entry, record the deferred stage against the entry
// written one cycle earlier, submit and present.
func (vr *Renderer) DrawFrame(dd *metadata.DrawData) error {
	device := vr.context.Device

	if vr.context.RecreatingSwapchain {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("%w: device wait idle failed: %s", core.ErrFrameSubmission, VulkanResultString(res))
		}
		core.LogDebug("swapchain still recreating, booting frame")
		return core.ErrSwapchainBooting
	}

	if vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("%w: device wait idle failed: %s", core.ErrFrameSubmission, VulkanResultString(res))
		}
		if !vr.recreateSwapchain() {
			return core.ErrSwapchainBooting
		}
		core.LogDebug("resized, booting frame")
		return core.ErrSwapchainBooting
	}

	if vr.shaderWatcher != nil && vr.shaderWatcher.ConsumeDirty() {
		core.LogInfo("reloading shader pipelines")
		vk.DeviceWaitIdle(device.LogicalDevice)
		if err := vr.stage.ReloadPipelines(vr.context); err != nil {
			core.LogError("shader reload failed, keeping previous pipelines: %s", err)
		}
	}

	slot := vr.frameSlots[vr.frameIndex]

	if !slot.InFlightFence.Wait(vr.context, NoTimeout) {
		return fmt.Errorf("%w: in-flight fence wait failure", core.ErrFrameSubmission)
	}

	imageIndex, ok, err := vr.context.Swapchain.AcquireNextImageIndex(vr.context, NoTimeout, slot.ImageAvailableSemaphore, vk.NullFence)
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}
	if !ok {
		// Nothing was uploaded or signaled yet; the frame just boots and the
		// rebuilt swapchain is picked up through its generation below.
		return core.ErrSwapchainBooting
	}
	vr.context.ImageIndex = imageIndex

	// Acquire or present may have rebuilt the swapchain internally without
	// any OS resize event. The stage's framebuffers reference the destroyed
	// image views until they are rebuilt for the new generation.
	if vr.stageOutOfDate() {
		if res := vk.DeviceWaitIdle(device.LogicalDevice); !VulkanResultIsSuccess(res) {
			return fmt.Errorf("%w: device wait idle failed: %s", core.ErrFrameSubmission, VulkanResultString(res))
		}
		if err := vr.stage.Resize(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight); err != nil {
			return fmt.Errorf("%w: deferred stage rebuild failed: %s", core.ErrFrameSubmission, err)
		}
		vr.stageSwapchainGeneration = vr.context.Swapchain.Generation
	}

	// Write the snapshot into the current ring entry only now that the frame
	// is certain to reach submission; an upload on a skipped frame would
	// strand a signal on the entry's binary semaphore. The stage below
	// consumes the previous entry, so nothing here races the GPU.
	if _, err := vr.ring.Upload(vr.context, dd); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	// The fence proved the GPU retired this slot's previous frame; its
	// snapshot can finally let go of the resources it pinned.
	slot.Snapshot = dd

	if err := slot.BeginRecording(vr.context); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	prevEntry := vr.ring.Previous()
	sync := &SubmitSync{}
	if err := vr.stage.RecordCommandBuffer(vr.context, slot.CommandBuffer, imageIndex, prevEntry, sync); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	if err := slot.CommandBuffer.End(); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	sync.AddWait(slot.ImageAvailableSemaphore, vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit))
	sync.AddSignal(slot.RenderCompleteSemaphore)
	if err := sync.Validate(); err != nil {
		// Contract violation by a render stage; not a driver failure.
		return err
	}

	if err := slot.InFlightFence.Reset(vr.context); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{slot.CommandBuffer.Handle},
		WaitSemaphoreCount:   uint32(len(sync.WaitSemaphores)),
		PWaitSemaphores:      sync.WaitSemaphores,
		PWaitDstStageMask:    sync.WaitStages,
		SignalSemaphoreCount: uint32(len(sync.SignalSemaphores)),
		PSignalSemaphores:    sync.SignalSemaphores,
	}

	err = vr.context.QueueLocks.SafeQueueCall(uint32(device.GraphicsQueueIndex), func() error {
		if res := vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, slot.InFlightFence.Handle); res != vk.Success {
			return fmt.Errorf("queue submit failed: %s", VulkanResultString(res))
		}
		return nil
	})
	if err != nil {
		core.LogError(err.Error())
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}
	slot.CommandBuffer.UpdateSubmitted()
	if prevEntry.HasDraws {
		// The submit above queued the wait that pairs with the entry's
		// upload signal; the semaphore may be signaled again.
		prevEntry.SignalPending = false
	}

	if _, err := vr.context.Swapchain.Present(vr.context, device.PresentQueue, slot.RenderCompleteSemaphore, imageIndex); err != nil {
		return fmt.Errorf("%w: %s", core.ErrFrameSubmission, err)
	}

	vr.ring.Advance()
	vr.frameIndex = (vr.frameIndex + 1) % len(vr.frameSlots)
	return nil
}

func (vr *Renderer) Resized(width, height uint32) error {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	core.LogInfo("renderer resized: w/h/gen %d/%d/%d", width, height, vr.context.FramebufferSizeGeneration)
	return nil
}

func (vr *Renderer) recreateSwapchain() bool {
	if vr.context.RecreatingSwapchain {
		core.LogDebug("recreateSwapchain called while already recreating, booting")
		return false
	}
	if vr.cachedFramebufferWidth == 0 || vr.cachedFramebufferHeight == 0 {
		core.LogDebug("recreateSwapchain called with a zero dimension, booting")
		return false
	}

	vr.context.RecreatingSwapchain = true
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	if err := vr.context.Swapchain.Recreate(vr.context, vr.cachedFramebufferWidth, vr.cachedFramebufferHeight); err != nil {
		vr.context.RecreatingSwapchain = false
		return false
	}

	vr.context.FramebufferWidth = vr.cachedFramebufferWidth
	vr.context.FramebufferHeight = vr.cachedFramebufferHeight
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration

	if err := vr.stage.Resize(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight); err != nil {
		core.LogError("deferred stage resize failed: %s", err)
		vr.context.RecreatingSwapchain = false
		return false
	}
	vr.stageSwapchainGeneration = vr.context.Swapchain.Generation

	vr.context.RecreatingSwapchain = false
	return true
}

// CreateMeshData uploads the mesh arrays into a single device-local buffer:
// vertices at offset zero, indices at the next aligned offset. The call is
// synchronous; when it returns the data is resident.
func (vr *Renderer) CreateMeshData(mesh *metadata.Mesh, vertices []math.Vertex, indices []uint32) error {
	if len(vertices) == 0 || len(indices) == 0 {
		return fmt.Errorf("%w: mesh must have vertices and indices", core.ErrResourceCreation)
	}

	vr.meshMu.Lock()
	defer vr.meshMu.Unlock()

	vertexSize := uint64(unsafe.Sizeof(math.Vertex{}))
	vertexBytes := uint64(len(vertices)) * vertexSize
	indexOffset := metadata.AlignIndexOffset(vertexBytes)
	indexBytes := uint64(len(indices)) * 4
	totalSize := indexOffset + indexBytes

	buffer, err := NewGpuBuffer(vr.context, totalSize,
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		return fmt.Errorf("%w: %s", core.ErrResourceCreation, err)
	}

	device := vr.context.Device
	if err := buffer.Upload(vr.context, device.TransferCommandPool, device.TransferQueue, uint32(device.TransferQueueIndex), 0, vertexBytes, unsafe.Pointer(&vertices[0])); err != nil {
		buffer.Destroy(vr.context)
		return fmt.Errorf("%w: %s", core.ErrResourceCreation, err)
	}
	if err := buffer.Upload(vr.context, device.TransferCommandPool, device.TransferQueue, uint32(device.TransferQueueIndex), indexOffset, indexBytes, unsafe.Pointer(&indices[0])); err != nil {
		buffer.Destroy(vr.context)
		return fmt.Errorf("%w: %s", core.ErrResourceCreation, err)
	}

	mesh.VertexCount = uint32(len(vertices))
	mesh.VertexElementSize = uint32(vertexSize)
	mesh.IndexCount = uint32(len(indices))
	mesh.IndexByteOffset = indexOffset
	mesh.TotalSize = totalSize
	mesh.RendererData = &MeshGpuData{Buffer: buffer}
	return nil
}

func (vr *Renderer) DestroyMeshData(mesh *metadata.Mesh) {
	if gpuData, ok := mesh.RendererData.(*MeshGpuData); ok && gpuData != nil {
		gpuData.Buffer.Destroy(vr.context)
	}
	mesh.RendererData = nil
}

// WriteMaterialSlots copies each packed material into its stable slot in
// the host-visible material table. Slot writes for materials still read by
// in-flight frames are safe because readers use the previous slot until the
// new one is flagged uploaded.
func (vr *Renderer) WriteMaterialSlots(writes []renderer.MaterialSlotWrite) error {
	for i := range writes {
		w := &writes[i]
		offset := uint64(w.GpuIndex) * PackedMaterialSize
		if offset+PackedMaterialSize > vr.materialBuffer.TotalSize {
			return fmt.Errorf("%w: material slot %d out of range", core.ErrResourceCreation, w.GpuIndex)
		}
		if err := vr.materialBuffer.MapWrite(vr.context, offset, PackedMaterialSize, unsafe.Pointer(&w.Data)); err != nil {
			return err
		}
	}
	return nil
}

func (vr *Renderer) WaitIdle() error {
	if res := vk.DeviceWaitIdle(vr.context.Device.LogicalDevice); !VulkanResultIsSuccess(res) {
		return fmt.Errorf("device wait idle failed: %s", VulkanResultString(res))
	}
	return nil
}

func (vr *Renderer) Shutdown() error {
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	if vr.shaderWatcher != nil {
		vr.shaderWatcher.Close()
		vr.shaderWatcher = nil
	}

	for _, slot := range vr.frameSlots {
		slot.Destroy(vr.context)
	}
	vr.frameSlots = nil

	if vr.stage != nil {
		vr.stage.CleanUp(vr.context)
		vr.stage = nil
	}
	if vr.ring != nil {
		vr.ring.Destroy(vr.context)
		vr.ring = nil
	}
	if vr.materialBuffer != nil {
		vr.materialBuffer.Destroy(vr.context)
		vr.materialBuffer = nil
	}

	if vr.context.Swapchain != nil {
		vr.context.Swapchain.Destroy(vr.context)
		vr.context.Swapchain = nil
	}

	core.LogDebug("destroying vulkan device")
	DeviceDestroy(vr.context)

	core.LogDebug("destroying vulkan surface")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.debug && vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
		vr.context.debugMessenger = vk.NullDebugReportCallback
	}

	core.LogDebug("destroying vulkan instance")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d: %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
