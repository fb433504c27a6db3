package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type VulkanSwapchain struct {
	Handle      vk.Swapchain
	ImageFormat vk.SurfaceFormat
	Extent      vk.Extent2D
	// Handles of the presentable images; they die with the swapchain.
	Images []frames.Image
}

func (d *Device) SurfaceSupport() (frames.SurfaceSupport, error) {
	info, err := DeviceQuerySwapchainSupport(d.context.Device.PhysicalDevice, d.context.Surface)
	if err != nil {
		return frames.SurfaceSupport{}, err
	}
	caps := info.Capabilities
	support := frames.SurfaceSupport{
		Capabilities: frames.SurfaceCapabilities{
			MinImageCount:  caps.MinImageCount,
			MaxImageCount:  caps.MaxImageCount,
			CurrentExtent:  fromVkExtent(caps.CurrentExtent),
			MinImageExtent: fromVkExtent(caps.MinImageExtent),
			MaxImageExtent: fromVkExtent(caps.MaxImageExtent),
		},
	}
	for _, sf := range info.Formats {
		format, ok := fromVkFormat(sf.Format)
		if !ok {
			continue
		}
		colorSpace, ok := fromVkColorSpace(sf.ColorSpace)
		if !ok {
			continue
		}
		support.Formats = append(support.Formats, frames.SurfaceFormat{Format: format, ColorSpace: colorSpace})
	}
	for _, pm := range info.PresentModes {
		if mode, ok := fromVkPresentMode(pm); ok {
			support.PresentModes = append(support.PresentModes, mode)
		}
	}
	return support, nil
}

func (d *Device) CreateSwapchain(cfg frames.SwapchainConfig) (frames.Swapchain, []frames.Image, error) {
	device := d.context.Device
	info, err := DeviceQuerySwapchainSupport(device.PhysicalDevice, d.context.Surface)
	if err != nil {
		return frames.NullSwapchain, nil, err
	}

	swapchain := &VulkanSwapchain{
		ImageFormat: vk.SurfaceFormat{
			Format:     toVkFormat(cfg.Format.Format),
			ColorSpace: toVkColorSpace(cfg.Format.ColorSpace),
		},
		Extent: toVkExtent(cfg.Extent),
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          d.context.Surface,
		MinImageCount:    cfg.ImageCount,
		ImageFormat:      swapchain.ImageFormat.Format,
		ImageColorSpace:  swapchain.ImageFormat.ColorSpace,
		ImageExtent:      swapchain.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     info.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      toVkPresentMode(cfg.PresentMode),
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}
	if device.GraphicsQueueIndex != device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{device.GraphicsQueueIndex, device.PresentQueueIndex}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	if err := d.locks.SafeCall(SwapchainManagement, func() error {
		return resultError("vkCreateSwapchainKHR", vk.CreateSwapchain(device.LogicalDevice, &swapchainCreateInfo, d.context.Allocator, &swapchain.Handle))
	}); err != nil {
		return frames.NullSwapchain, nil, err
	}

	var imageCount uint32
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &imageCount, nil)); err != nil {
		vk.DestroySwapchain(device.LogicalDevice, swapchain.Handle, d.context.Allocator)
		return frames.NullSwapchain, nil, err
	}
	images := make([]vk.Image, imageCount)
	if err := resultError("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(device.LogicalDevice, swapchain.Handle, &imageCount, images)); err != nil {
		vk.DestroySwapchain(device.LogicalDevice, swapchain.Handle, d.context.Allocator)
		return frames.NullSwapchain, nil, err
	}
	for _, image := range images {
		swapchain.Images = append(swapchain.Images, frames.Image(d.images.add(image)))
	}

	core.LogInfo("Swapchain created successfully: %s, %d images, %s.", cfg.Extent, imageCount, cfg.PresentMode)
	return frames.Swapchain(d.swapchains.add(swapchain)), swapchain.Images, nil
}

// DestroySwapchain only destroys the swapchain. Its images are owned by the
// presentation engine; their handles are dropped here.
func (d *Device) DestroySwapchain(sc frames.Swapchain) {
	swapchain, ok := d.swapchains.take(uint64(sc))
	if !ok {
		core.LogWarn("destroy of unknown swapchain %d", sc)
		return
	}
	for _, image := range swapchain.Images {
		d.images.take(uint64(image))
	}
	_ = d.locks.SafeCall(SwapchainManagement, func() error {
		vk.DestroySwapchain(d.logical(), swapchain.Handle, d.context.Allocator)
		return nil
	})
}

func (d *Device) CreateImageView(image frames.Image, format frames.Format) (frames.ImageView, error) {
	vkImage, err := d.images.get(uint64(image))
	if err != nil {
		return frames.NullImageView, fmt.Errorf("image view: %w", err)
	}
	view, err := createImageView(d.context, vkImage, toVkFormat(format), vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return frames.NullImageView, err
	}
	return frames.ImageView(d.views.add(view)), nil
}

func (d *Device) DestroyImageView(view frames.ImageView) {
	if v, ok := d.views.take(uint64(view)); ok {
		vk.DestroyImageView(d.logical(), v, d.context.Allocator)
	}
}

func createImageView(context *VulkanContext, image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := resultError("vkCreateImageView", vk.CreateImageView(context.Device.LogicalDevice, &viewInfo, context.Allocator, &view)); err != nil {
		return nil, err
	}
	return view, nil
}
