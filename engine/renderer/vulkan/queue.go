package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

func (d *Device) AcquireNextImage(sc frames.Swapchain, timeout uint64, semaphore frames.Semaphore) (uint32, frames.SurfaceStatus, error) {
	swapchain, err := d.swapchains.get(uint64(sc))
	if err != nil {
		return 0, frames.SurfaceOptimal, fmt.Errorf("acquire: %w", err)
	}
	s, err := d.semaphores.get(uint64(semaphore))
	if err != nil {
		return 0, frames.SurfaceOptimal, fmt.Errorf("acquire: %w", err)
	}
	var imageIndex uint32
	result := vk.AcquireNextImage(d.logical(), swapchain.Handle, timeout, s, vk.NullFence, &imageIndex)
	status, err := surfaceStatus("vkAcquireNextImageKHR", result)
	return imageIndex, status, err
}

func (d *Device) QueueSubmit(info frames.SubmitInfo, fence frames.Fence) error {
	waits, err := d.semaphoreList(info.WaitSemaphores)
	if err != nil {
		return err
	}
	signals, err := d.semaphoreList(info.SignalSemaphores)
	if err != nil {
		return err
	}
	buffers := make([]*VulkanCommandBuffer, len(info.CommandBuffers))
	handles := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, h := range info.CommandBuffers {
		cb, err := d.commandBuffer(h)
		if err != nil {
			return err
		}
		buffers[i], handles[i] = cb, cb.Handle
	}
	vf, err := d.fence(fence)
	if err != nil {
		return err
	}
	vkFence := vk.NullFence
	if vf != nil {
		vkFence = vf.Handle
	}

	// Each wait holds back colour attachment output until its semaphore signals.
	stages := make([]vk.PipelineStageFlags, len(waits))
	for i := range stages {
		stages[i] = vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(waits)),
		PWaitSemaphores:      waits,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(handles)),
		PCommandBuffers:      handles,
		SignalSemaphoreCount: uint32(len(signals)),
		PSignalSemaphores:    signals,
	}

	device := d.context.Device
	if err := d.locks.SafeQueueCall(device.GraphicsQueueIndex, func() error {
		return resultError("vkQueueSubmit", vk.QueueSubmit(device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, vkFence))
	}); err != nil {
		return err
	}
	for _, cb := range buffers {
		cb.UpdateSubmitted()
	}
	if vf != nil {
		vf.IsSignaled = false
	}
	return nil
}

func (d *Device) QueuePresent(info frames.PresentInfo) (frames.SurfaceStatus, error) {
	swapchain, err := d.swapchains.get(uint64(info.Swapchain))
	if err != nil {
		return frames.SurfaceOptimal, fmt.Errorf("present: %w", err)
	}
	waits, err := d.semaphoreList(info.WaitSemaphores)
	if err != nil {
		return frames.SurfaceOptimal, err
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{swapchain.Handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}

	device := d.context.Device
	var result vk.Result
	_ = d.locks.SafeQueueCall(device.PresentQueueIndex, func() error {
		result = vk.QueuePresent(device.PresentQueue, &presentInfo)
		return nil
	})
	return surfaceStatus("vkQueuePresentKHR", result)
}

func (d *Device) WaitIdle() error {
	return resultError("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.logical()))
}
