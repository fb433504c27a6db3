package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type VulkanImage struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
}

// ImageCreate creates a 2D image, backs it with memory matching
// memoryFlags and, when aspect is non-zero, a view over it.
func ImageCreate(context *VulkanContext, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, memoryFlags vk.MemoryPropertyFlags, aspect vk.ImageAspectFlags) (*VulkanImage, error) {
	image := &VulkanImage{Width: width, Height: height}
	device := context.Device.LogicalDevice

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := resultError("vkCreateImage", vk.CreateImage(device, &imageCreateInfo, context.Allocator, &image.Handle)); err != nil {
		return nil, err
	}

	var memoryRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, image.Handle, &memoryRequirements)
	memoryRequirements.Deref()

	memoryType, ok := context.FindMemoryIndex(memoryRequirements.MemoryTypeBits, uint32(memoryFlags))
	if !ok {
		image.ImageDestroy(context)
		err := fmt.Errorf("required memory type not found, image not valid")
		core.LogError(err.Error())
		return nil, err
	}
	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memoryRequirements.Size,
		MemoryTypeIndex: memoryType,
	}
	if err := resultError("vkAllocateMemory", vk.AllocateMemory(device, &allocateInfo, context.Allocator, &image.Memory)); err != nil {
		image.ImageDestroy(context)
		return nil, err
	}
	if err := resultError("vkBindImageMemory", vk.BindImageMemory(device, image.Handle, image.Memory, 0)); err != nil {
		image.ImageDestroy(context)
		return nil, err
	}

	if aspect != 0 {
		view, err := createImageView(context, image.Handle, format, aspect)
		if err != nil {
			image.ImageDestroy(context)
			return nil, err
		}
		image.View = view
	}
	return image, nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) {
	device := context.Device.LogicalDevice
	if vi.View != nil {
		vk.DestroyImageView(device, vi.View, context.Allocator)
		vi.View = nil
	}
	if vi.Memory != nil {
		vk.FreeMemory(device, vi.Memory, context.Allocator)
		vi.Memory = nil
	}
	if vi.Handle != nil {
		vk.DestroyImage(device, vi.Handle, context.Allocator)
		vi.Handle = nil
	}
}

func (d *Device) CreateDepthBuffer(extent frames.Extent2D) (frames.DepthBuffer, error) {
	depth, err := ImageCreate(
		d.context,
		extent.Width,
		extent.Height,
		d.context.Device.DepthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	)
	if err != nil {
		return frames.NullDepthBuffer, err
	}
	return frames.DepthBuffer(d.depthBuffers.add(depth)), nil
}

func (d *Device) DestroyDepthBuffer(depth frames.DepthBuffer) {
	if image, ok := d.depthBuffers.take(uint64(depth)); ok {
		image.ImageDestroy(d.context)
	}
}
