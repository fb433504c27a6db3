package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type VulkanFramebuffer struct {
	Handle      vk.Framebuffer
	Attachments []vk.ImageView
	Renderpass  *VulkanRenderpass
}

func FramebufferCreate(context *VulkanContext, renderpass *VulkanRenderpass, width, height uint32, attachments []vk.ImageView) (*VulkanFramebuffer, error) {
	outFramebuffer := &VulkanFramebuffer{
		Attachments: append([]vk.ImageView(nil), attachments...),
		Renderpass:  renderpass,
	}

	framebufferCreateInfo := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      renderpass.Handle,
		AttachmentCount: uint32(len(outFramebuffer.Attachments)),
		PAttachments:    outFramebuffer.Attachments,
		Width:           width,
		Height:          height,
		Layers:          1,
	}
	if err := resultError("vkCreateFramebuffer", vk.CreateFramebuffer(context.Device.LogicalDevice, &framebufferCreateInfo, context.Allocator, &outFramebuffer.Handle)); err != nil {
		return nil, err
	}
	return outFramebuffer, nil
}

func (vfb *VulkanFramebuffer) Destroy(context *VulkanContext) {
	if vfb.Handle != nil {
		vk.DestroyFramebuffer(context.Device.LogicalDevice, vfb.Handle, context.Allocator)
		vfb.Handle = nil
	}
	vfb.Attachments = nil
	vfb.Renderpass = nil
}

func (d *Device) CreateFramebuffer(cfg frames.FramebufferConfig) (frames.Framebuffer, error) {
	rp, err := d.renderPasses.get(uint64(cfg.RenderPass))
	if err != nil {
		return frames.NullFramebuffer, fmt.Errorf("framebuffer render pass: %w", err)
	}
	view, err := d.views.get(uint64(cfg.View))
	if err != nil {
		return frames.NullFramebuffer, fmt.Errorf("framebuffer view: %w", err)
	}
	depth, err := d.depthBuffers.get(uint64(cfg.Depth))
	if err != nil {
		return frames.NullFramebuffer, fmt.Errorf("framebuffer depth: %w", err)
	}
	fb, err := FramebufferCreate(d.context, rp, cfg.Extent.Width, cfg.Extent.Height, []vk.ImageView{view, depth.View})
	if err != nil {
		return frames.NullFramebuffer, err
	}
	return frames.Framebuffer(d.framebuffers.add(fb)), nil
}

func (d *Device) DestroyFramebuffer(framebuffer frames.Framebuffer) {
	if fb, ok := d.framebuffers.take(uint64(framebuffer)); ok {
		fb.Destroy(d.context)
	}
}
