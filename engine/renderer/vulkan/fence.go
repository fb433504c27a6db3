package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type VulkanFence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(context *VulkanContext, createSignaled bool) (*VulkanFence, error) {
	fence := &VulkanFence{IsSignaled: createSignaled}

	fenceCreateInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if createSignaled {
		fenceCreateInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	if err := resultError("vkCreateFence", vk.CreateFence(context.Device.LogicalDevice, &fenceCreateInfo, context.Allocator, &fence.Handle)); err != nil {
		return nil, err
	}
	return fence, nil
}

func (vf *VulkanFence) FenceDestroy(context *VulkanContext) {
	if vf.Handle != nil {
		vk.DestroyFence(context.Device.LogicalDevice, vf.Handle, context.Allocator)
		vf.Handle = nil
	}
	vf.IsSignaled = false
}

// FenceWait returns at once for a fence already seen signaled.
func (vf *VulkanFence) FenceWait(context *VulkanContext, timeoutNs uint64) error {
	if vf.IsSignaled {
		return nil
	}
	result := vk.WaitForFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle}, vk.True, timeoutNs)
	if result == vk.Success {
		vf.IsSignaled = true
		return nil
	}
	return resultError("vkWaitForFences", result)
}

func (vf *VulkanFence) FenceReset(context *VulkanContext) error {
	if err := resultError("vkResetFences", vk.ResetFences(context.Device.LogicalDevice, 1, []vk.Fence{vf.Handle})); err != nil {
		return err
	}
	vf.IsSignaled = false
	return nil
}

func (d *Device) CreateFence(signaled bool) (frames.Fence, error) {
	fence, err := NewFence(d.context, signaled)
	if err != nil {
		return frames.NullFence, err
	}
	return frames.Fence(d.fences.add(fence)), nil
}

func (d *Device) DestroyFence(fence frames.Fence) {
	if vf, ok := d.fences.take(uint64(fence)); ok {
		_ = d.locks.SafeCall(SynchronizationManagement, func() error {
			vf.FenceDestroy(d.context)
			return nil
		})
	}
}

func (d *Device) WaitForFence(fence frames.Fence, timeout uint64) error {
	vf, err := d.fences.get(uint64(fence))
	if err != nil {
		return err
	}
	return vf.FenceWait(d.context, timeout)
}

func (d *Device) ResetFence(fence frames.Fence) error {
	vf, err := d.fences.get(uint64(fence))
	if err != nil {
		return err
	}
	return d.locks.SafeCall(SynchronizationManagement, func() error {
		return vf.FenceReset(d.context)
	})
}

func (d *Device) CreateSemaphore() (frames.Semaphore, error) {
	semaphoreCreateInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := resultError("vkCreateSemaphore", vk.CreateSemaphore(d.logical(), &semaphoreCreateInfo, d.context.Allocator, &semaphore)); err != nil {
		return frames.NullSemaphore, err
	}
	return frames.Semaphore(d.semaphores.add(semaphore)), nil
}

func (d *Device) DestroySemaphore(semaphore frames.Semaphore) {
	if s, ok := d.semaphores.take(uint64(semaphore)); ok {
		vk.DestroySemaphore(d.logical(), s, d.context.Allocator)
	}
}

func (d *Device) semaphoreList(handles []frames.Semaphore) ([]vk.Semaphore, error) {
	out := make([]vk.Semaphore, len(handles))
	for i, h := range handles {
		s, err := d.semaphores.get(uint64(h))
		if err != nil {
			return nil, fmt.Errorf("semaphore: %w", err)
		}
		out[i] = s
	}
	return out, nil
}

// fence resolves a possibly null fence handle.
func (d *Device) fence(h frames.Fence) (*VulkanFence, error) {
	if h == frames.NullFence {
		return nil, nil
	}
	vf, err := d.fences.get(uint64(h))
	if err != nil {
		core.LogError("unknown fence %d", h)
		return nil, err
	}
	return vf, nil
}
