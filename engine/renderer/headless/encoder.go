package headless

import (
	"fmt"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

type commandBufferState struct {
	recording bool
	recorded  bool
	inPass    bool
	commands  []string
}

func (c *commandBufferState) executable() bool {
	return c.recorded && !c.recording
}

// recording returns the state of a command buffer that is between Begin and
// End, or records a violation.
func (d *Device) recording(cb frames.CommandBuffer, cmd string) *commandBufferState {
	cs, ok := d.commands[cb]
	if !ok {
		d.violate(fmt.Errorf("%w: %s on command buffer %d", core.ErrInvalidHandle, cmd, cb))
		return nil
	}
	if !cs.recording {
		d.violate(fmt.Errorf("%s on command buffer %d outside of recording", cmd, cb))
		return nil
	}
	return cs
}

func (d *Device) BeginCommandBuffer(cb frames.CommandBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("%w: begin command buffer %d", core.ErrInvalidHandle, cb)
	}
	if d.inFlight(cb) {
		return fmt.Errorf("command buffer %d re-recorded while still executing", cb)
	}
	cs.recording = true
	cs.recorded = false
	cs.commands = cs.commands[:0]
	return nil
}

func (d *Device) CmdBeginRenderPass(cb frames.CommandBuffer, begin frames.RenderPassBegin) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs := d.recording(cb, CmdBeginRenderPass)
	if cs == nil {
		return
	}
	if _, ok := d.buffers[begin.Framebuffer]; !ok {
		d.violate(fmt.Errorf("%w: render pass begun on framebuffer %d", core.ErrInvalidHandle, begin.Framebuffer))
	}
	cs.inPass = true
	cs.commands = append(cs.commands, CmdBeginRenderPass)
}

func (d *Device) CmdBindPipeline(cb frames.CommandBuffer, pipeline frames.Pipeline) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs := d.recording(cb, CmdBindPipeline)
	if cs == nil {
		return
	}
	if _, ok := d.pipelines[pipeline]; !ok {
		d.violate(fmt.Errorf("%w: bind pipeline %d", core.ErrInvalidHandle, pipeline))
	}
	cs.commands = append(cs.commands, CmdBindPipeline)
}

func (d *Device) CmdDraw(cb frames.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs := d.recording(cb, CmdDraw)
	if cs == nil {
		return
	}
	if !cs.inPass {
		d.violate(fmt.Errorf("draw outside of a render pass on command buffer %d", cb))
	}
	cs.commands = append(cs.commands, fmt.Sprintf("%s(%d,%d,%d,%d)", CmdDraw, vertexCount, instanceCount, firstVertex, firstInstance))
}

func (d *Device) CmdEndRenderPass(cb frames.CommandBuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs := d.recording(cb, CmdEndRenderPass)
	if cs == nil {
		return
	}
	cs.inPass = false
	cs.commands = append(cs.commands, CmdEndRenderPass)
}

func (d *Device) EndCommandBuffer(cb frames.CommandBuffer) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	cs, ok := d.commands[cb]
	if !ok {
		return fmt.Errorf("%w: end command buffer %d", core.ErrInvalidHandle, cb)
	}
	if !cs.recording {
		return fmt.Errorf("command buffer %d ended without begin", cb)
	}
	if cs.inPass {
		return fmt.Errorf("command buffer %d ended inside a render pass", cb)
	}
	cs.recording = false
	cs.recorded = true
	return nil
}
