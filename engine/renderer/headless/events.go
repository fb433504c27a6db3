package headless

import (
	"slices"

	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

const (
	OpCreateFence           = "create_fence"
	OpDestroyFence          = "destroy_fence"
	OpWaitFence             = "wait_fence"
	OpResetFence            = "reset_fence"
	OpSignalFence           = "signal_fence"
	OpCreateSemaphore       = "create_semaphore"
	OpDestroySemaphore      = "destroy_semaphore"
	OpSurfaceSupport        = "surface_support"
	OpCreateSwapchain       = "create_swapchain"
	OpDestroySwapchain      = "destroy_swapchain"
	OpCreateImageView       = "create_image_view"
	OpDestroyImageView      = "destroy_image_view"
	OpCreateDepthBuffer     = "create_depth_buffer"
	OpDestroyDepthBuffer    = "destroy_depth_buffer"
	OpCreateRenderPass      = "create_render_pass"
	OpDestroyRenderPass     = "destroy_render_pass"
	OpCreatePipeline        = "create_pipeline"
	OpDestroyPipeline       = "destroy_pipeline"
	OpCreateFramebuffer     = "create_framebuffer"
	OpDestroyFramebuffer    = "destroy_framebuffer"
	OpAllocateCommandBuffer = "allocate_command_buffer"
	OpFreeCommandBuffer     = "free_command_buffer"
	OpAcquire               = "acquire"
	OpSubmit                = "submit"
	OpPresent               = "present"
	OpWaitIdle              = "wait_idle"
	OpDestroyDevice         = "destroy_device"
)

const (
	CmdBeginRenderPass = "begin_render_pass"
	CmdBindPipeline    = "bind_pipeline"
	CmdDraw            = "draw"
	CmdEndRenderPass   = "end_render_pass"
)

// Event is one recorded device call. Handle is the object the call was about,
// zero for device-wide calls.
type Event struct {
	Op     string
	Handle uint64
}

func (d *Device) Events() []Event {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return slices.Clone(d.events)
}

// ClearEvents drops the recorded history, typically after setup.
func (d *Device) ClearEvents() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.events = d.events[:0]
}

func (d *Device) Count(op string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	n := 0
	for _, e := range d.events {
		if e.Op == op {
			n++
		}
	}
	return n
}

// Violations lists every broken usage rule the device noticed without being
// able to return an error for it.
func (d *Device) Violations() []error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return slices.Clone(d.violations)
}

func (d *Device) Submissions() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.submissions
}

func (d *Device) Presents() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.presents
}

// InFlight is the number of submissions whose fence has not signaled yet.
func (d *Device) InFlight() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.timeline.Len()
}

func (d *Device) MaxInFlight() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.maxInFlight
}

func (d *Device) live() int {
	return len(d.fences) + len(d.semaphores) + len(d.swapchains) + len(d.views) + len(d.depths) +
		len(d.passes) + len(d.pipelines) + len(d.buffers) + len(d.commands)
}

// Live counts objects created and not yet destroyed.
func (d *Device) Live() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.live()
}

func (d *Device) Destroyed() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.destroyed
}

// Commands returns what was last recorded into cb.
func (d *Device) Commands(cb frames.CommandBuffer) []string {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if cs, ok := d.commands[cb]; ok {
		return slices.Clone(cs.commands)
	}
	return nil
}

// SetSurfaceExtent simulates the window changing size. The current swapchain
// reports out of date from then on.
func (d *Device) SetSurfaceExtent(extent frames.Extent2D) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.surface = extent
	d.follow = false
}

// SetImageCount pins the image count the surface reports from now on. The
// current swapchain keeps its images until it is rebuilt.
func (d *Device) SetImageCount(count uint32) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.opts.MinImageCount = count
	d.opts.MaxImageCount = count
}

// FailNextAcquire makes the next acquires report the given statuses in order.
func (d *Device) FailNextAcquire(statuses ...frames.SurfaceStatus) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.acquireFaults = append(d.acquireFaults, statuses...)
}

// FailNextPresent makes the next presents report the given statuses in order.
func (d *Device) FailNextPresent(statuses ...frames.SurfaceStatus) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.presentFaults = append(d.presentFaults, statuses...)
}

// Stall stops the simulated queue: pending fences never signal and waits on
// them fail with core.ErrFenceTimeout.
func (d *Device) Stall(stalled bool) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stalled = stalled
}
