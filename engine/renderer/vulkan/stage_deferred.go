package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
	"github.com/prismrender/prism/engine/math"
)

// geometryPushConstants travels to the geometry subpass shaders: the camera
// matrix plus the draw call's window into the instance buffer.
type geometryPushConstants struct {
	ViewProjection math.Mat4
	FirstInstance  uint32
	InstanceCount  uint32
	Pad            [2]uint32
}

// lightingPushConstants feeds the fullscreen shading pass.
type lightingPushConstants struct {
	CameraPosition math.Vec3
	LightCount     uint32
}

// DeferredStage renders the whole snapshot in one render pass: subpass 0
// fills depth plus the four G-buffer attachments for every draw call,
// subpass 1 reads them back as input attachments and shades a single
// fullscreen triangle into the swapchain image.
type DeferredStage struct {
	shadersPath string
	clearColor  [4]float32

	Renderpass *VulkanRenderpass

	gbuffer [GBufferAttachmentCount]*VulkanImage
	depth   *VulkanImage

	framebuffers []*VulkanFramebuffer

	geometryLayout vk.DescriptorSetLayout
	lightingLayout vk.DescriptorSetLayout
	descriptorPool vk.DescriptorPool

	// One set pair per instance ring entry; rewritten when the entry's
	// buffer generation moves.
	geometrySets   []vk.DescriptorSet
	lightingSets   []vk.DescriptorSet
	setGenerations []uint64

	geometryPipeline *VulkanPipeline
	lightingPipeline *VulkanPipeline

	shaderStages []*VulkanShaderStage

	ring           *InstanceRing
	materialBuffer *GpuBuffer
}

func NewDeferredStage(ring *InstanceRing, materialBuffer *GpuBuffer, shadersPath string, clearColor [4]float32) *DeferredStage {
	return &DeferredStage{
		shadersPath:    shadersPath,
		clearColor:     clearColor,
		ring:           ring,
		materialBuffer: materialBuffer,
	}
}

func (ds *DeferredStage) Initialize(context *VulkanContext) error {
	rp, err := RenderpassCreate(context,
		0, 0, float32(context.FramebufferWidth), float32(context.FramebufferHeight),
		ds.clearColor[0], ds.clearColor[1], ds.clearColor[2], ds.clearColor[3],
		1.0, 0)
	if err != nil {
		return err
	}
	ds.Renderpass = rp

	if err := ds.createAttachments(context, context.FramebufferWidth, context.FramebufferHeight); err != nil {
		return err
	}
	if err := ds.createFramebuffers(context, context.FramebufferWidth, context.FramebufferHeight); err != nil {
		return err
	}
	if err := ds.createDescriptors(context); err != nil {
		return err
	}
	if err := ds.createPipelines(context); err != nil {
		return err
	}

	core.LogInfo("deferred render stage initialized")
	return nil
}

func (ds *DeferredStage) createAttachments(context *VulkanContext, width, height uint32) error {
	for i := 0; i < GBufferAttachmentCount; i++ {
		img, err := ImageCreate(context, vk.ImageType2d, width, height,
			GBufferFormat, vk.ImageTilingOptimal,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit|vk.ImageUsageInputAttachmentBit),
			vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
			true, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return err
		}
		ds.gbuffer[i] = img
	}

	depth, err := ImageCreate(context, vk.ImageType2d, width, height,
		context.Device.DepthFormat, vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return err
	}
	ds.depth = depth
	return nil
}

func (ds *DeferredStage) createFramebuffers(context *VulkanContext, width, height uint32) error {
	ds.framebuffers = make([]*VulkanFramebuffer, context.Swapchain.ImageCount)
	for i := 0; i < int(context.Swapchain.ImageCount); i++ {
		attachments := []vk.ImageView{
			context.Swapchain.Views[i],
			ds.depth.View,
			ds.gbuffer[0].View,
			ds.gbuffer[1].View,
			ds.gbuffer[2].View,
			ds.gbuffer[3].View,
		}
		fb, err := FramebufferCreate(context, ds.Renderpass, width, height, attachments)
		if err != nil {
			return err
		}
		ds.framebuffers[i] = fb
	}
	return nil
}

func (ds *DeferredStage) createDescriptors(context *VulkanContext) error {
	var err error

	ds.geometryLayout, err = DescriptorSetLayoutCreate(context, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)},
	})
	if err != nil {
		return err
	}

	lightingBindings := []vk.DescriptorSetLayoutBinding{}
	for i := 0; i < GBufferAttachmentCount; i++ {
		lightingBindings = append(lightingBindings, vk.DescriptorSetLayoutBinding{
			Binding:         uint32(i),
			DescriptorType:  vk.DescriptorTypeInputAttachment,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		})
	}
	lightingBindings = append(lightingBindings,
		vk.DescriptorSetLayoutBinding{Binding: GBufferAttachmentCount, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
		vk.DescriptorSetLayoutBinding{Binding: GBufferAttachmentCount + 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	)
	ds.lightingLayout, err = DescriptorSetLayoutCreate(context, lightingBindings)
	if err != nil {
		return err
	}

	entryCount := uint32(len(ds.ring.Entries))
	ds.descriptorPool, err = DescriptorPoolCreate(context, entryCount*2, []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: entryCount * 4},
		{Type: vk.DescriptorTypeInputAttachment, DescriptorCount: entryCount * GBufferAttachmentCount},
	})
	if err != nil {
		return err
	}

	ds.geometrySets = make([]vk.DescriptorSet, entryCount)
	ds.lightingSets = make([]vk.DescriptorSet, entryCount)
	ds.setGenerations = make([]uint64, entryCount)
	for i := range ds.ring.Entries {
		ds.geometrySets[i], err = DescriptorSetAllocate(context, ds.descriptorPool, ds.geometryLayout)
		if err != nil {
			return err
		}
		ds.lightingSets[i], err = DescriptorSetAllocate(context, ds.descriptorPool, ds.lightingLayout)
		if err != nil {
			return err
		}
		ds.writeEntryDescriptors(context, i)
	}
	return nil
}

// writeEntryDescriptors points entry i's set pair at the entry's current
// buffers and the shared G-buffer/material state.
func (ds *DeferredStage) writeEntryDescriptors(context *VulkanContext, i int) {
	entry := ds.ring.Entries[i]

	DescriptorWriteBuffer(context, ds.geometrySets[i], 0, vk.DescriptorTypeStorageBuffer, entry.InstanceBuffer.Handle, 0, entry.InstanceBuffer.TotalSize)
	DescriptorWriteBuffer(context, ds.geometrySets[i], 1, vk.DescriptorTypeStorageBuffer, entry.IndirectionBuffer.Handle, 0, entry.IndirectionBuffer.TotalSize)

	views := make([]vk.ImageView, GBufferAttachmentCount)
	for j := 0; j < GBufferAttachmentCount; j++ {
		views[j] = ds.gbuffer[j].View
	}
	DescriptorWriteInputAttachments(context, ds.lightingSets[i], 0, views)
	DescriptorWriteBuffer(context, ds.lightingSets[i], GBufferAttachmentCount, vk.DescriptorTypeStorageBuffer, ds.materialBuffer.Handle, 0, ds.materialBuffer.TotalSize)
	DescriptorWriteBuffer(context, ds.lightingSets[i], GBufferAttachmentCount+1, vk.DescriptorTypeStorageBuffer, entry.LightBuffer.Handle, 0, entry.LightBuffer.TotalSize)

	ds.setGenerations[i] = entry.Generation
}

func (ds *DeferredStage) createPipelines(context *VulkanContext) error {
	geometryVert, err := NewShaderModule(context, ds.shadersPath, "deferred_geometry", "vert", vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	geometryFrag, err := NewShaderModule(context, ds.shadersPath, "deferred_geometry", "frag", vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	lightingVert, err := NewShaderModule(context, ds.shadersPath, "deferred_lighting", "vert", vk.ShaderStageVertexBit)
	if err != nil {
		return err
	}
	lightingFrag, err := NewShaderModule(context, ds.shadersPath, "deferred_lighting", "frag", vk.ShaderStageFragmentBit)
	if err != nil {
		return err
	}
	ds.shaderStages = []*VulkanShaderStage{geometryVert, geometryFrag, lightingVert, lightingFrag}

	viewport := vk.Viewport{
		X: 0, Y: float32(context.FramebufferHeight),
		Width:  float32(context.FramebufferWidth),
		Height: -float32(context.FramebufferHeight),
		MinDepth: 0, MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{Width: context.FramebufferWidth, Height: context.FramebufferHeight},
	}

	vertexStride := uint32(unsafe.Sizeof(math.Vertex{}))
	attributes := []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 24},
		{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 36},
	}

	ds.geometryPipeline, err = NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           ds.Renderpass,
		Subpass:              0,
		Stride:               vertexStride,
		Attributes:           attributes,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{ds.geometryLayout},
		Stages: []vk.PipelineShaderStageCreateInfo{
			geometryVert.ShaderStageCreateInfo,
			geometryFrag.ShaderStageCreateInfo,
		},
		Viewport:             viewport,
		Scissor:              scissor,
		CullMode:             vk.CullModeBackBit,
		DepthTest:            true,
		DepthWrite:           true,
		ColorAttachmentCount: GBufferAttachmentCount,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Offset:     0,
			Size:       uint32(unsafe.Sizeof(geometryPushConstants{})),
		}},
	})
	if err != nil {
		return err
	}

	ds.lightingPipeline, err = NewGraphicsPipeline(context, &VulkanPipelineConfig{
		Renderpass:           ds.Renderpass,
		Subpass:              1,
		DescriptorSetLayouts: []vk.DescriptorSetLayout{ds.lightingLayout},
		Stages: []vk.PipelineShaderStageCreateInfo{
			lightingVert.ShaderStageCreateInfo,
			lightingFrag.ShaderStageCreateInfo,
		},
		Viewport:             viewport,
		Scissor:              scissor,
		CullMode:             vk.CullModeNone,
		ColorAttachmentCount: 1,
		PushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       uint32(unsafe.Sizeof(lightingPushConstants{})),
		}},
	})
	return err
}

// ReloadPipelines tears down and rebuilds both pipelines from the shader
// binaries currently on disk. The caller must guarantee the device is idle.
func (ds *DeferredStage) ReloadPipelines(context *VulkanContext) error {
	ds.destroyPipelines(context)
	return ds.createPipelines(context)
}

func (ds *DeferredStage) RecordCommandBuffer(context *VulkanContext, cb *VulkanCommandBuffer, imageIndex uint32, entry *InstanceRingEntry, sync *SubmitSync) error {
	entryIndex := -1
	for i, e := range ds.ring.Entries {
		if e == entry {
			entryIndex = i
			break
		}
	}
	if entryIndex == -1 {
		return fmt.Errorf("instance ring entry does not belong to this stage's ring")
	}

	// Buffers may have been reallocated by a capacity grow since the set
	// was last written.
	if ds.setGenerations[entryIndex] != entry.Generation {
		ds.writeEntryDescriptors(context, entryIndex)
	}

	// The vertex stage must not read instance data the transfer queue is
	// still writing.
	if entry.HasDraws {
		sync.AddWait(entry.UploadSemaphore, vk.PipelineStageFlags(vk.PipelineStageVertexShaderBit))
	}

	viewport := vk.Viewport{
		X: 0, Y: float32(context.FramebufferHeight),
		Width:  float32(context.FramebufferWidth),
		Height: -float32(context.FramebufferHeight),
		MinDepth: 0, MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Extent: vk.Extent2D{Width: context.FramebufferWidth, Height: context.FramebufferHeight},
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})

	ds.Renderpass.W = float32(context.FramebufferWidth)
	ds.Renderpass.H = float32(context.FramebufferHeight)
	ds.Renderpass.Begin(cb, ds.framebuffers[imageIndex].Handle)

	// Subpass 0: geometry.
	ds.geometryPipeline.Bind(cb, vk.PipelineBindPointGraphics)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, ds.geometryPipeline.PipelineLayout,
		0, 1, []vk.DescriptorSet{ds.geometrySets[entryIndex]}, 0, nil)

	for _, dr := range entry.DrawRanges {
		gpuData, ok := dr.Mesh.RendererData.(*MeshGpuData)
		if !ok || gpuData == nil {
			core.LogWarn("draw range references mesh %d without GPU data, skipping", dr.Mesh.Identifier.ID)
			continue
		}

		push := geometryPushConstants{
			ViewProjection: entry.ViewProjection,
			FirstInstance:  dr.FirstInstance,
			InstanceCount:  dr.InstanceCount,
		}
		vk.CmdPushConstants(cb.Handle, ds.geometryPipeline.PipelineLayout,
			vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0,
			uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))

		vk.CmdBindVertexBuffers(cb.Handle, 0, 1, []vk.Buffer{gpuData.Buffer.Handle}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(cb.Handle, gpuData.Buffer.Handle, vk.DeviceSize(dr.Mesh.IndexByteOffset), vk.IndexTypeUint32)
		vk.CmdDrawIndexed(cb.Handle, dr.Mesh.IndexCount, dr.InstanceCount, 0, 0, dr.FirstInstance)
	}

	// Subpass 1: lighting, one fullscreen triangle.
	ds.Renderpass.NextSubpass(cb)
	ds.lightingPipeline.Bind(cb, vk.PipelineBindPointGraphics)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointGraphics, ds.lightingPipeline.PipelineLayout,
		0, 1, []vk.DescriptorSet{ds.lightingSets[entryIndex]}, 0, nil)

	lightingPush := lightingPushConstants{
		CameraPosition: entry.CameraPosition,
		LightCount:     entry.LightCount,
	}
	vk.CmdPushConstants(cb.Handle, ds.lightingPipeline.PipelineLayout,
		vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 0,
		uint32(unsafe.Sizeof(lightingPush)), unsafe.Pointer(&lightingPush))
	vk.CmdDraw(cb.Handle, 3, 1, 0, 0)

	ds.Renderpass.End(cb)
	return nil
}

// Resize rebuilds the size-dependent attachments and framebuffers after a
// swapchain recreation. Pipelines survive; viewport and scissor are dynamic.
func (ds *DeferredStage) Resize(context *VulkanContext, width, height uint32) error {
	for _, fb := range ds.framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	ds.framebuffers = nil
	ds.destroyAttachments(context)

	if err := ds.createAttachments(context, width, height); err != nil {
		return err
	}
	if err := ds.createFramebuffers(context, width, height); err != nil {
		return err
	}

	// The G-buffer views changed; every lighting set must see the new ones.
	for i := range ds.ring.Entries {
		ds.writeEntryDescriptors(context, i)
	}
	return nil
}

func (ds *DeferredStage) destroyAttachments(context *VulkanContext) {
	for i, img := range ds.gbuffer {
		if img != nil {
			img.Destroy(context)
			ds.gbuffer[i] = nil
		}
	}
	if ds.depth != nil {
		ds.depth.Destroy(context)
		ds.depth = nil
	}
}

func (ds *DeferredStage) destroyPipelines(context *VulkanContext) {
	if ds.geometryPipeline != nil {
		ds.geometryPipeline.Destroy(context)
		ds.geometryPipeline = nil
	}
	if ds.lightingPipeline != nil {
		ds.lightingPipeline.Destroy(context)
		ds.lightingPipeline = nil
	}
	for _, stage := range ds.shaderStages {
		stage.Destroy(context)
	}
	ds.shaderStages = nil
}

func (ds *DeferredStage) CleanUp(context *VulkanContext) {
	ds.destroyPipelines(context)

	if ds.descriptorPool != vk.NullDescriptorPool {
		vk.DestroyDescriptorPool(context.Device.LogicalDevice, ds.descriptorPool, context.Allocator)
		ds.descriptorPool = vk.NullDescriptorPool
	}
	if ds.geometryLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, ds.geometryLayout, context.Allocator)
		ds.geometryLayout = vk.NullDescriptorSetLayout
	}
	if ds.lightingLayout != vk.NullDescriptorSetLayout {
		vk.DestroyDescriptorSetLayout(context.Device.LogicalDevice, ds.lightingLayout, context.Allocator)
		ds.lightingLayout = vk.NullDescriptorSetLayout
	}

	for _, fb := range ds.framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	ds.framebuffers = nil
	ds.destroyAttachments(context)

	if ds.Renderpass != nil {
		ds.Renderpass.Destroy(context)
		ds.Renderpass = nil
	}
}
