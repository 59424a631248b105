package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/prismrender/prism/engine/core"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	// What the application asked for; actual ImageCount is clamped to the
	// surface capabilities.
	RequestedImageCount uint32
	VSync               bool

	// Incremented on every (re)creation. Consumers holding image views, such
	// as the render stage's framebuffers, compare it against the generation
	// they were built for.
	Generation uint64
}

func SwapchainCreate(context *VulkanContext, width, height, requestedImageCount uint32, vsync bool) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{
		RequestedImageCount: requestedImageCount,
		VSync:               vsync,
	}
	if err := swapchain.create(context, width, height); err != nil {
		return nil, err
	}
	return swapchain, nil
}

func (vs *VulkanSwapchain) Recreate(context *VulkanContext, width, height uint32) error {
	vs.destroy(context)
	return vs.create(context, width, height)
}

func (vs *VulkanSwapchain) Destroy(context *VulkanContext) {
	vs.destroy(context)
}

// AcquireNextImageIndex grabs the next presentable image. A false second
// return means the swapchain went stale and was recreated; the caller skips
// the frame.
func (vs *VulkanSwapchain) AcquireNextImageIndex(context *VulkanContext, timeoutNs uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, bool, error) {
	var imageIndex uint32
	result := vk.AcquireNextImage(context.Device.LogicalDevice, vs.Handle, timeoutNs, imageAvailableSemaphore, fence, &imageIndex)

	if result == vk.ErrorOutOfDate {
		// No image was acquired and imageAvailableSemaphore was not signaled;
		// it is safe to reuse next frame.
		if err := vs.Recreate(context, context.FramebufferWidth, context.FramebufferHeight); err != nil {
			return 0, false, err
		}
		return 0, false, nil
	}
	if result != vk.Success && result != vk.Suboptimal {
		err := fmt.Errorf("failed to acquire swapchain image: %s", VulkanResultString(result))
		core.LogError(err.Error())
		return 0, false, err
	}
	return imageIndex, true, nil
}

// Present hands the image back for presentation. A false return means the
// swapchain was recreated and the caller must rebuild size-dependent state.
func (vs *VulkanSwapchain) Present(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) (bool, error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	var result vk.Result
	err := context.QueueLocks.SafeQueueCall(uint32(context.Device.PresentQueueIndex), func() error {
		result = vk.QueuePresent(presentQueue, &presentInfo)
		return nil
	})
	if err != nil {
		return false, err
	}

	if result == vk.ErrorOutOfDate || result == vk.Suboptimal {
		if err := vs.Recreate(context, context.FramebufferWidth, context.FramebufferHeight); err != nil {
			return false, err
		}
		return false, nil
	}
	if result != vk.Success {
		err := fmt.Errorf("failed to present swapchain image: %s", VulkanResultString(result))
		core.LogError(err.Error())
		return false, err
	}
	return true, nil
}

func (vs *VulkanSwapchain) create(context *VulkanContext, width, height uint32) error {
	swapchainExtent := vk.Extent2D{Width: width, Height: height}

	// Refresh the cached surface support; capabilities change on resize.
	if err := DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport); err != nil {
		core.LogError(err.Error())
		return err
	}
	support := &context.Device.SwapchainSupport

	found := false
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		format.Deref()
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		vs.ImageFormat = support.Formats[0]
		vs.ImageFormat.Deref()
	}

	// VSync pins Fifo. Otherwise prefer Mailbox and fall back to Immediate,
	// then Fifo which is always available.
	presentMode := vk.PresentModeFifo
	if !vs.VSync {
		preferred := []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeImmediate}
	search:
		for _, want := range preferred {
			for i := 0; i < int(support.PresentModeCount); i++ {
				if support.PresentModes[i] == want {
					presentMode = want
					break search
				}
			}
		}
	}

	support.Capabilities.Deref()
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		swapchainExtent = support.Capabilities.CurrentExtent
	}
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	swapchainExtent.Width = MathClamp(swapchainExtent.Width, min.Width, max.Width)
	swapchainExtent.Height = MathClamp(swapchainExtent.Height, min.Height, max.Height)

	imageCount := vs.RequestedImageCount
	if imageCount < support.Capabilities.MinImageCount {
		imageCount = support.Capabilities.MinImageCount
	}
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      swapchainExtent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	swapchainCreateInfo.PreTransform = support.Capabilities.CurrentTransform
	swapchainCreateInfo.CompositeAlpha = vk.CompositeAlphaOpaqueBit
	swapchainCreateInfo.PresentMode = presentMode
	swapchainCreateInfo.Clipped = vk.True

	var swapchainHandle vk.Swapchain
	if res := vk.CreateSwapchain(context.Device.LogicalDevice, &swapchainCreateInfo, context.Allocator, &swapchainHandle); res != vk.Success {
		err := fmt.Errorf("failed to create swapchain: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vs.Handle = swapchainHandle

	vs.ImageCount = 0
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &vs.ImageCount, nil); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}
	vs.Images = make([]vk.Image, vs.ImageCount)
	vs.Views = make([]vk.ImageView, vs.ImageCount)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, vs.Handle, &vs.ImageCount, vs.Images); res != vk.Success {
		err := fmt.Errorf("failed to get swapchain images: %s", VulkanResultString(res))
		core.LogError(err.Error())
		return err
	}

	for i := 0; i < int(vs.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    vs.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   vs.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if res := vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &vs.Views[i]); res != vk.Success {
			err := fmt.Errorf("failed to create swapchain image view: %s", VulkanResultString(res))
			core.LogError(err.Error())
			return err
		}
	}

	context.FramebufferSizeLastGeneration = context.FramebufferSizeGeneration
	vs.Generation++

	core.LogInfo("swapchain created (%dx%d, %d images, gen %d)", swapchainExtent.Width, swapchainExtent.Height, vs.ImageCount, vs.Generation)
	return nil
}

func (vs *VulkanSwapchain) destroy(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)

	// Only destroy the views. The images belong to the swapchain and go
	// away with it.
	for i := 0; i < int(vs.ImageCount); i++ {
		vk.DestroyImageView(context.Device.LogicalDevice, vs.Views[i], context.Allocator)
	}
	vk.DestroySwapchain(context.Device.LogicalDevice, vs.Handle, context.Allocator)
	vs.Handle = vk.NullSwapchain
	vs.Images = nil
	vs.Views = nil
	vs.ImageCount = 0
}

func MathClamp(value, min, max uint32) uint32 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
