package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type VulkanCommandBufferState int

const (
	COMMAND_BUFFER_STATE_READY VulkanCommandBufferState = iota
	COMMAND_BUFFER_STATE_RECORDING
	COMMAND_BUFFER_STATE_IN_RENDER_PASS
	COMMAND_BUFFER_STATE_RECORDING_ENDED
	COMMAND_BUFFER_STATE_SUBMITTED
	COMMAND_BUFFER_STATE_NOT_ALLOCATED
)

type VulkanCommandBuffer struct {
	Handle vk.CommandBuffer
	State  VulkanCommandBufferState
}

func AllocateCommandBuffers(context *VulkanContext, pool vk.CommandPool, count int) ([]*VulkanCommandBuffer, error) {
	allocateInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: uint32(count),
		Level:              vk.CommandBufferLevelPrimary,
	}
	handles := make([]vk.CommandBuffer, count)
	if err := resultError("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(context.Device.LogicalDevice, &allocateInfo, handles)); err != nil {
		return nil, err
	}
	out := make([]*VulkanCommandBuffer, count)
	for i, h := range handles {
		out[i] = &VulkanCommandBuffer{Handle: h, State: COMMAND_BUFFER_STATE_READY}
	}
	return out, nil
}

func (v *VulkanCommandBuffer) Free(context *VulkanContext, pool vk.CommandPool) {
	vk.FreeCommandBuffers(context.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{v.Handle})
	v.Handle = nil
	v.State = COMMAND_BUFFER_STATE_NOT_ALLOCATED
}

// Begin implicitly resets the buffer; the pool is created resettable.
func (v *VulkanCommandBuffer) Begin(isSingleUse, isRenderpassContinue, isSimultaneousUse bool) error {
	beginInfo := &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if isSingleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if isRenderpassContinue {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageRenderPassContinueBit)
	}
	if isSimultaneousUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if err := resultError("vkBeginCommandBuffer", vk.BeginCommandBuffer(v.Handle, beginInfo)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING
	return nil
}

func (v *VulkanCommandBuffer) End() error {
	if err := resultError("vkEndCommandBuffer", vk.EndCommandBuffer(v.Handle)); err != nil {
		return err
	}
	v.State = COMMAND_BUFFER_STATE_RECORDING_ENDED
	return nil
}

func (v *VulkanCommandBuffer) UpdateSubmitted() {
	v.State = COMMAND_BUFFER_STATE_SUBMITTED
}

func (d *Device) AllocateCommandBuffers(count int) ([]frames.CommandBuffer, error) {
	var buffers []*VulkanCommandBuffer
	err := d.locks.SafeCall(CommandBufferManagement, func() error {
		var err error
		buffers, err = AllocateCommandBuffers(d.context, d.context.Device.GraphicsCommandPool, count)
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]frames.CommandBuffer, len(buffers))
	for i, cb := range buffers {
		out[i] = frames.CommandBuffer(d.commandBuffers.add(cb))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []frames.CommandBuffer) {
	_ = d.locks.SafeCall(CommandBufferManagement, func() error {
		for _, h := range buffers {
			if cb, ok := d.commandBuffers.take(uint64(h)); ok {
				cb.Free(d.context, d.context.Device.GraphicsCommandPool)
			}
		}
		return nil
	})
}

func (d *Device) commandBuffer(h frames.CommandBuffer) (*VulkanCommandBuffer, error) {
	cb, err := d.commandBuffers.get(uint64(h))
	if err != nil {
		return nil, fmt.Errorf("command buffer: %w", err)
	}
	return cb, nil
}

func (d *Device) BeginCommandBuffer(h frames.CommandBuffer) error {
	cb, err := d.commandBuffer(h)
	if err != nil {
		return err
	}
	return cb.Begin(false, false, false)
}

func (d *Device) EndCommandBuffer(h frames.CommandBuffer) error {
	cb, err := d.commandBuffer(h)
	if err != nil {
		return err
	}
	if cb.State == COMMAND_BUFFER_STATE_IN_RENDER_PASS {
		return fmt.Errorf("command buffer %d ended inside a render pass", h)
	}
	return cb.End()
}

// Cmd* calls log and drop the command on a bad handle.

func (d *Device) CmdBeginRenderPass(h frames.CommandBuffer, begin frames.RenderPassBegin) {
	cb, err := d.commandBuffer(h)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	rp, err := d.renderPasses.get(uint64(begin.RenderPass))
	if err != nil {
		core.LogError("begin render pass: %s", err)
		return
	}
	fb, err := d.framebuffers.get(uint64(begin.Framebuffer))
	if err != nil {
		core.LogError("begin render pass: %s", err)
		return
	}
	rp.RenderpassBegin(cb, fb.Handle, begin)
}

func (d *Device) CmdBindPipeline(h frames.CommandBuffer, pipeline frames.Pipeline) {
	cb, err := d.commandBuffer(h)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	p, err := d.pipelines.get(uint64(pipeline))
	if err != nil {
		core.LogError("bind pipeline: %s", err)
		return
	}
	p.Bind(cb, vk.PipelineBindPointGraphics)
}

func (d *Device) CmdDraw(h frames.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	cb, err := d.commandBuffer(h)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	vk.CmdDraw(cb.Handle, vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Device) CmdEndRenderPass(h frames.CommandBuffer) {
	cb, err := d.commandBuffer(h)
	if err != nil {
		core.LogError(err.Error())
		return
	}
	d.renderPassEnd(cb)
}

func (d *Device) renderPassEnd(cb *VulkanCommandBuffer) {
	vk.CmdEndRenderPass(cb.Handle)
	cb.State = COMMAND_BUFFER_STATE_RECORDING
}
