// Package headless implements frames.GraphicsDevice without a GPU.
//
// Submitted work is kept on a simulated queue timeline and completes lazily:
// waiting on a fence retires every submission up to and including the one
// that signals it, and WaitIdle retires everything. The device checks the
// sync contract as it goes (fences reset before reuse, semaphores signaled
// before they are waited on, no use of destroyed handles) and records every
// call so tests can assert on ordering.
package headless

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/anima-frames/engine/containers"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

var _ frames.GraphicsDevice = (*Device)(nil)

type Options struct {
	// Surface size. A zero value lets the swapchain pick its own extent.
	Extent        frames.Extent2D
	MinImageCount uint32
	MaxImageCount uint32
	Formats       []frames.SurfaceFormat
	PresentModes  []frames.PresentMode
	// Submissions the simulated queue holds before it is forced to retire
	// the oldest one.
	QueueDepth int
}

func DefaultOptions() Options {
	return Options{
		Extent:        frames.Extent2D{Width: 1280, Height: 720},
		MinImageCount: 2,
		MaxImageCount: 8,
		Formats: []frames.SurfaceFormat{
			{Format: frames.FormatB8G8R8A8Unorm, ColorSpace: frames.ColorSpaceSRGBNonlinear},
			{Format: frames.FormatB8G8R8A8SRGB, ColorSpace: frames.ColorSpaceSRGBNonlinear},
		},
		PresentModes: []frames.PresentMode{frames.PresentModeFIFO, frames.PresentModeMailbox, frames.PresentModeImmediate},
		QueueDepth:   16,
	}
}

type fenceState struct {
	signaled bool
	pending  bool
	// signals since the last reset; more than one is a contract violation.
	signals int
}

type submission struct {
	id      uint64
	fence   frames.Fence
	buffers []frames.CommandBuffer
}

type Device struct {
	mutex sync.Mutex

	opts      Options
	surface   frames.Extent2D
	follow    bool
	next      uint64
	destroyed bool

	fences     map[frames.Fence]*fenceState
	semaphores map[frames.Semaphore]bool
	swapchains map[frames.Swapchain]*swapchainState
	images     map[frames.Image]frames.Swapchain
	views      map[frames.ImageView]frames.Image
	depths     map[frames.DepthBuffer]frames.Extent2D
	passes     map[frames.RenderPass]frames.Format
	pipelines  map[frames.Pipeline]frames.RenderPass
	buffers    map[frames.Framebuffer]frames.FramebufferConfig
	commands   map[frames.CommandBuffer]*commandBufferState

	timeline    *containers.RingQueue[submission]
	submissions uint64
	presents    uint64
	maxInFlight int

	acquireFaults []frames.SurfaceStatus
	presentFaults []frames.SurfaceStatus
	stalled       bool

	events     []Event
	violations []error
}

func New(opts Options) *Device {
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 16
	}
	d := &Device{
		opts:       opts,
		surface:    opts.Extent,
		follow:     opts.Extent == (frames.Extent2D{}),
		fences:     make(map[frames.Fence]*fenceState),
		semaphores: make(map[frames.Semaphore]bool),
		swapchains: make(map[frames.Swapchain]*swapchainState),
		images:     make(map[frames.Image]frames.Swapchain),
		views:      make(map[frames.ImageView]frames.Image),
		depths:     make(map[frames.DepthBuffer]frames.Extent2D),
		passes:     make(map[frames.RenderPass]frames.Format),
		pipelines:  make(map[frames.Pipeline]frames.RenderPass),
		buffers:    make(map[frames.Framebuffer]frames.FramebufferConfig),
		commands:   make(map[frames.CommandBuffer]*commandBufferState),
		timeline:   containers.NewRingQueue[submission](opts.QueueDepth),
	}
	core.LogDebug("headless device created with surface %s", d.surface)
	return d
}

func (d *Device) handle() uint64 {
	d.next++
	return d.next
}

func (d *Device) record(op string, handle uint64) {
	d.events = append(d.events, Event{Op: op, Handle: handle})
}

func (d *Device) violate(err error) {
	core.LogError(err.Error())
	d.violations = append(d.violations, err)
}

func (d *Device) CreateFence(signaled bool) (frames.Fence, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	f := frames.Fence(d.handle())
	d.fences[f] = &fenceState{signaled: signaled}
	d.record(OpCreateFence, uint64(f))
	return f, nil
}

func (d *Device) DestroyFence(fence frames.Fence) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.fences[fence]
	if !ok {
		d.violate(fmt.Errorf("%w: destroy fence %d", core.ErrInvalidHandle, fence))
		return
	}
	if st.pending {
		d.violate(fmt.Errorf("fence %d destroyed while its submission is pending", fence))
	}
	delete(d.fences, fence)
	d.record(OpDestroyFence, uint64(fence))
}

func (d *Device) WaitForFence(fence frames.Fence, timeout uint64) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.fences[fence]
	if !ok {
		return fmt.Errorf("%w: wait on fence %d", core.ErrInvalidHandle, fence)
	}
	d.record(OpWaitFence, uint64(fence))
	if st.signaled {
		return nil
	}
	// An unsubmitted fence would block forever on real hardware; report it
	// instead of hanging the caller.
	if !st.pending || d.stalled {
		return fmt.Errorf("%w: fence %d after %dns", core.ErrFenceTimeout, fence, timeout)
	}
	d.retireUntil(fence)
	return nil
}

func (d *Device) ResetFence(fence frames.Fence) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.fences[fence]
	if !ok {
		return fmt.Errorf("%w: reset fence %d", core.ErrInvalidHandle, fence)
	}
	if st.pending {
		return fmt.Errorf("fence %d reset while its submission is pending", fence)
	}
	st.signaled = false
	st.signals = 0
	d.record(OpResetFence, uint64(fence))
	return nil
}

func (d *Device) CreateSemaphore() (frames.Semaphore, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	s := frames.Semaphore(d.handle())
	d.semaphores[s] = false
	d.record(OpCreateSemaphore, uint64(s))
	return s, nil
}

func (d *Device) DestroySemaphore(semaphore frames.Semaphore) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.semaphores[semaphore]; !ok {
		d.violate(fmt.Errorf("%w: destroy semaphore %d", core.ErrInvalidHandle, semaphore))
		return
	}
	delete(d.semaphores, semaphore)
	d.record(OpDestroySemaphore, uint64(semaphore))
}

// signal marks a semaphore as having a pending signal.
func (d *Device) signal(s frames.Semaphore) error {
	signaled, ok := d.semaphores[s]
	if !ok {
		return fmt.Errorf("%w: semaphore %d", core.ErrInvalidHandle, s)
	}
	if signaled {
		return fmt.Errorf("%w: semaphore %d", core.ErrSemaphoreBusy, s)
	}
	d.semaphores[s] = true
	return nil
}

// consume waits on a semaphore, which unsignals it.
func (d *Device) consume(s frames.Semaphore) error {
	signaled, ok := d.semaphores[s]
	if !ok {
		return fmt.Errorf("%w: semaphore %d", core.ErrInvalidHandle, s)
	}
	if !signaled {
		return fmt.Errorf("%w: semaphore %d", core.ErrSemaphoreNotSignaled, s)
	}
	d.semaphores[s] = false
	return nil
}

func (d *Device) QueueSubmit(info frames.SubmitInfo, fence frames.Fence) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	var st *fenceState
	if fence != frames.NullFence {
		var ok bool
		if st, ok = d.fences[fence]; !ok {
			return fmt.Errorf("%w: submit fence %d", core.ErrInvalidHandle, fence)
		}
		if st.signaled || st.pending {
			return fmt.Errorf("%w: fence %d", core.ErrFenceNotReset, fence)
		}
	}
	for _, cb := range info.CommandBuffers {
		cs, ok := d.commands[cb]
		if !ok {
			return fmt.Errorf("%w: submit command buffer %d", core.ErrInvalidHandle, cb)
		}
		if !cs.executable() {
			return fmt.Errorf("command buffer %d submitted before recording finished", cb)
		}
	}
	for _, s := range info.WaitSemaphores {
		if err := d.consume(s); err != nil {
			return err
		}
	}
	for _, s := range info.SignalSemaphores {
		if err := d.signal(s); err != nil {
			return err
		}
	}

	if d.timeline.IsFull() {
		d.retireOldest()
	}
	d.submissions++
	_ = d.timeline.Enqueue(submission{id: d.submissions, fence: fence, buffers: info.CommandBuffers})
	if st != nil {
		st.pending = true
	}
	if n := d.timeline.Len(); n > d.maxInFlight {
		d.maxInFlight = n
	}
	d.record(OpSubmit, uint64(fence))
	return nil
}

func (d *Device) retireOldest() {
	sub, err := d.timeline.Dequeue()
	if err != nil {
		return
	}
	if st, ok := d.fences[sub.fence]; ok {
		st.pending = false
		st.signaled = true
		st.signals++
		if st.signals > 1 {
			d.violate(fmt.Errorf("fence %d signaled twice without a reset", sub.fence))
		}
		d.record(OpSignalFence, uint64(sub.fence))
	}
}

func (d *Device) retireUntil(fence frames.Fence) {
	for !d.timeline.IsEmpty() {
		sub, _ := d.timeline.Peek()
		d.retireOldest()
		if sub.fence == fence {
			return
		}
	}
}

func (d *Device) WaitIdle() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record(OpWaitIdle, 0)
	if d.stalled && !d.timeline.IsEmpty() {
		return fmt.Errorf("%w: device idle wait", core.ErrFenceTimeout)
	}
	for !d.timeline.IsEmpty() {
		d.retireOldest()
	}
	return nil
}

func (d *Device) Destroy() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if d.destroyed {
		d.violate(fmt.Errorf("device destroyed twice"))
		return
	}
	if n := d.live(); n > 0 {
		d.violate(fmt.Errorf("device destroyed with %d live objects", n))
	}
	d.destroyed = true
	d.record(OpDestroyDevice, 0)
	core.LogDebug("headless device destroyed after %d submissions", d.submissions)
}
