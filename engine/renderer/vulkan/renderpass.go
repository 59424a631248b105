package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
)

type VulkanRenderPassState int

const (
	READY VulkanRenderPassState = iota
	RECORDING
	IN_RENDER_PASS
	RECORDING_ENDED
	SUBMITTED
	NOT_ALLOCATED
)

// Attachment indices inside the deferred render pass. The geometry subpass
// writes depth plus the four G-buffer targets; the lighting subpass reads
// the G-buffer as input attachments and resolves into the swapchain image.
const (
	attachmentSwapchain = 0
	attachmentDepth     = 1
	attachmentGBuffer0  = 2
)

// GBufferFormat stores world position, normal, tangent and uv+material id
// in four float targets.
const GBufferFormat = vk.FormatR16g16b16a16Sfloat

type VulkanRenderpass struct {
	Handle     vk.RenderPass
	X, Y, W, H float32
	R, G, B, A float32
	Depth      float32
	Stencil    uint32
	State      VulkanRenderPassState
}

// RenderpassCreate builds the two-subpass deferred pass against the current
// swapchain format and depth format.
func RenderpassCreate(context *VulkanContext, x, y, w, h, r, g, b, a, depth float32, stencil uint32) (*VulkanRenderpass, error) {
	outRenderpass := &VulkanRenderpass{
		X: x, Y: y, W: w, H: h,
		R: r, G: g, B: b, A: a,
		Depth:   depth,
		Stencil: stencil,
		State:   NOT_ALLOCATED,
	}

	attachments := make([]vk.AttachmentDescription, 2+GBufferAttachmentCount)

	attachments[attachmentSwapchain] = vk.AttachmentDescription{
		Format:         context.Swapchain.ImageFormat.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	attachments[attachmentDepth] = vk.AttachmentDescription{
		Format:         context.Device.DepthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	for i := 0; i < GBufferAttachmentCount; i++ {
		attachments[attachmentGBuffer0+i] = vk.AttachmentDescription{
			Format:         GBufferFormat,
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOpClear,
			StoreOp:        vk.AttachmentStoreOpDontCare,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayoutUndefined,
			FinalLayout:    vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}

	// Subpass 0: geometry. Writes the G-buffer with depth testing.
	geometryColorRefs := make([]vk.AttachmentReference, GBufferAttachmentCount)
	for i := range geometryColorRefs {
		geometryColorRefs[i] = vk.AttachmentReference{
			Attachment: uint32(attachmentGBuffer0 + i),
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}
	}
	depthRef := vk.AttachmentReference{
		Attachment: attachmentDepth,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}
	geometrySubpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(geometryColorRefs)),
		PColorAttachments:       geometryColorRefs,
		PDepthStencilAttachment: &depthRef,
	}

	// Subpass 1: lighting. Reads the G-buffer as input attachments and
	// shades into the swapchain image with a fullscreen triangle.
	lightingInputRefs := make([]vk.AttachmentReference, GBufferAttachmentCount)
	for i := range lightingInputRefs {
		lightingInputRefs[i] = vk.AttachmentReference{
			Attachment: uint32(attachmentGBuffer0 + i),
			Layout:     vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}
	swapchainRef := []vk.AttachmentReference{{
		Attachment: attachmentSwapchain,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	lightingSubpass := vk.SubpassDescription{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments:    swapchainRef,
		InputAttachmentCount: uint32(len(lightingInputRefs)),
		PInputAttachments:    lightingInputRefs,
	}

	dependencies := []vk.SubpassDependency{
		{
			SrcSubpass:    vk.SubpassExternal,
			DstSubpass:    0,
			SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask: 0,
			DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
		},
		{
			// G-buffer writes must land before the lighting subpass reads them.
			SrcSubpass:      0,
			DstSubpass:      1,
			SrcStageMask:    vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
			SrcAccessMask:   vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
			DstStageMask:    vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit),
			DstAccessMask:   vk.AccessFlags(vk.AccessInputAttachmentReadBit),
			DependencyFlags: vk.DependencyFlags(vk.DependencyByRegionBit),
		},
	}

	renderpassCreateInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    2,
		PSubpasses:      []vk.SubpassDescription{geometrySubpass, lightingSubpass},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}

	var handle vk.RenderPass
	if res := vk.CreateRenderPass(context.Device.LogicalDevice, &renderpassCreateInfo, context.Allocator, &handle); res != vk.Success {
		err := fmt.Errorf("failed to create render pass: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return nil, err
	}
	outRenderpass.Handle = handle
	outRenderpass.State = READY
	return outRenderpass, nil
}

func (vr *VulkanRenderpass) Destroy(context *VulkanContext) {
	if vr.Handle != nil {
		vk.DestroyRenderPass(context.Device.LogicalDevice, vr.Handle, context.Allocator)
		vr.Handle = nil
	}
	vr.State = NOT_ALLOCATED
}

func (vr *VulkanRenderpass) Begin(commandBuffer *VulkanCommandBuffer, frameBuffer vk.Framebuffer) {
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  vr.Handle,
		Framebuffer: frameBuffer,
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: int32(vr.X), Y: int32(vr.Y)},
			Extent: vk.Extent2D{Width: uint32(vr.W), Height: uint32(vr.H)},
		},
	}

	clearValues := make([]vk.ClearValue, 2+GBufferAttachmentCount)
	clearValues[attachmentSwapchain].SetColor([]float32{vr.R, vr.G, vr.B, vr.A})
	clearValues[attachmentDepth].SetDepthStencil(vr.Depth, vr.Stencil)
	for i := 0; i < GBufferAttachmentCount; i++ {
		clearValues[attachmentGBuffer0+i].SetColor([]float32{0, 0, 0, 0})
	}

	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues

	vk.CmdBeginRenderPass(commandBuffer.Handle, &beginInfo, vk.SubpassContentsInline)
	commandBuffer.State = COMMAND_BUFFER_STATE_IN_RENDER_PASS
	vr.State = IN_RENDER_PASS
}

// NextSubpass advances from the geometry subpass to the lighting subpass.
func (vr *VulkanRenderpass) NextSubpass(commandBuffer *VulkanCommandBuffer) {
	vk.CmdNextSubpass(commandBuffer.Handle, vk.SubpassContentsInline)
}

func (vr *VulkanRenderpass) End(commandBuffer *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(commandBuffer.Handle)
	commandBuffer.State = COMMAND_BUFFER_STATE_RECORDING
	vr.State = READY
}
