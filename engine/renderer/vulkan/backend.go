// Package vulkan implements frames.GraphicsDevice on top of goki/vulkan.
//
// The frames package only sees opaque uint64 handles; every native object
// lives in a per-kind handle table owned by Device.
package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

var _ frames.GraphicsDevice = (*Device)(nil)

// WindowSurface is what the backend needs from the platform layer.
type WindowSurface interface {
	GetInstanceProcAddress() unsafe.Pointer
	GetRequiredExtensionNames() []string
	// CreateWindowSurface returns a VkSurfaceKHR for the window as a raw pointer.
	CreateWindowSurface(instance interface{}) (uintptr, error)
}

type Options struct {
	AppName    string
	Validation bool
}

type Device struct {
	context *VulkanContext
	locks   *VulkanLockPool

	fences         *handleTable[*VulkanFence]
	semaphores     *handleTable[vk.Semaphore]
	swapchains     *handleTable[*VulkanSwapchain]
	images         *handleTable[vk.Image]
	views          *handleTable[vk.ImageView]
	depthBuffers   *handleTable[*VulkanImage]
	renderPasses   *handleTable[*VulkanRenderpass]
	pipelines      *handleTable[*VulkanPipeline]
	framebuffers   *handleTable[*VulkanFramebuffer]
	commandBuffers *handleTable[*VulkanCommandBuffer]
}

// New loads the Vulkan loader through the window system, then creates the
// instance, the window surface and the logical device.
func New(window WindowSurface, opts Options) (*Device, error) {
	procAddr := window.GetInstanceProcAddress()
	if procAddr == nil {
		err := fmt.Errorf("GetInstanceProcAddress is nil")
		core.LogError(err.Error())
		return nil, err
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		core.LogError("failed to initialize vk: %s", err)
		return nil, err
	}

	context, err := NewContext(InstanceConfig{
		AppName:    opts.AppName,
		Extensions: window.GetRequiredExtensionNames(),
		Validation: opts.Validation,
	})
	if err != nil {
		return nil, err
	}

	core.LogDebug("Creating Vulkan surface...")
	surface, err := window.CreateWindowSurface(context.Instance)
	if err != nil {
		core.LogError("Vulkan surface creation failed: %s", err)
		context.Destroy()
		return nil, err
	}
	context.Surface = vk.SurfaceFromPointer(surface)

	if err := DeviceCreate(context); err != nil {
		context.Destroy()
		return nil, err
	}

	locks := NewVulkanLockPool()
	locks.SetQueueFamily(context.Device.GraphicsQueueIndex)
	locks.SetQueueFamily(context.Device.PresentQueueIndex)

	core.LogInfo("Vulkan device initialized successfully on %s.", context.Device.Name)
	return &Device{
		context:        context,
		locks:          locks,
		fences:         newHandleTable[*VulkanFence](),
		semaphores:     newHandleTable[vk.Semaphore](),
		swapchains:     newHandleTable[*VulkanSwapchain](),
		images:         newHandleTable[vk.Image](),
		views:          newHandleTable[vk.ImageView](),
		depthBuffers:   newHandleTable[*VulkanImage](),
		renderPasses:   newHandleTable[*VulkanRenderpass](),
		pipelines:      newHandleTable[*VulkanPipeline](),
		framebuffers:   newHandleTable[*VulkanFramebuffer](),
		commandBuffers: newHandleTable[*VulkanCommandBuffer](),
	}, nil
}

func (d *Device) logical() vk.Device {
	return d.context.Device.LogicalDevice
}

// Destroy releases the device, surface and instance. Objects still alive in
// the handle tables are reported as leaks and left to the driver.
func (d *Device) Destroy() {
	live := map[string]int{
		"fences":          d.fences.len(),
		"semaphores":      d.semaphores.len(),
		"swapchains":      d.swapchains.len(),
		"image_views":     d.views.len(),
		"depth_buffers":   d.depthBuffers.len(),
		"render_passes":   d.renderPasses.len(),
		"pipelines":       d.pipelines.len(),
		"framebuffers":    d.framebuffers.len(),
		"command_buffers": d.commandBuffers.len(),
	}
	for kind, n := range live {
		if n > 0 {
			core.LogWarn("%d %s still alive at device destroy", n, kind)
		}
	}
	d.context.Destroy()
}
