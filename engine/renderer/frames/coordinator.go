package frames

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/core"
)

type Options struct {
	FramesInFlight uint8
	// Initial surface size in pixels; NotifyResize replaces it.
	Extent         Extent2D
	SurfaceFormat  SurfaceFormat
	PresentMode    PresentMode
	VertexShader   []byte
	FragmentShader []byte
	// Recorder defaults to a ClearRecorder drawing one triangle.
	Recorder   CommandRecorder
	ClearColor [4]float32
	// Zero waits forever. A bounded wait that expires is fatal.
	FenceTimeout time.Duration
}

// Coordinator drives the per-frame wait, acquire, submit, present protocol
// and rebuilds the swapchain resources when the surface changes. DrawFrame,
// Shutdown and the introspection methods belong to one goroutine;
// NotifyResize and SetPresentMode may be called from any goroutine.
type Coordinator struct {
	device       GraphicsDevice
	opts         Options
	recorder     CommandRecorder
	fenceTimeout uint64

	registry  *SyncRegistry
	resources *ResourceSet
	metrics   *core.FrameMetrics

	slot        FrameSlot
	state       State
	frameNumber uint64
	rebuilds    uint64

	mutex       sync.Mutex
	pending     bool
	extent      Extent2D
	presentMode PresentMode
}

// Initialize builds the first resource set and the sync registry. A surface
// with zero area is not an error: the coordinator starts suspended.
func Initialize(device GraphicsDevice, opts Options) (*Coordinator, error) {
	if opts.FramesInFlight == 0 {
		return nil, fmt.Errorf("frames in flight must be at least 1")
	}
	c := &Coordinator{
		device:       device,
		opts:         opts,
		recorder:     opts.Recorder,
		fenceTimeout: math.MaxUint64,
		metrics:      core.NewFrameMetrics(),
		extent:       opts.Extent,
		presentMode:  opts.PresentMode,
	}
	if c.recorder == nil {
		c.recorder = ClearRecorder{ClearColor: opts.ClearColor, ClearDepth: 1.0, VertexCount: 3}
	}
	if opts.FenceTimeout > 0 {
		c.fenceTimeout = uint64(opts.FenceTimeout.Nanoseconds())
	}

	set, err := BuildResourceSet(device, c.request())
	switch {
	case errors.Is(err, core.ErrSurfaceZeroArea):
		core.LogInfo("surface has zero area at startup, starting suspended")
		c.pending = true
	case err != nil:
		return nil, err
	}

	imageCount := 0
	if set != nil {
		imageCount = set.ImageCount()
	}
	c.registry, err = NewSyncRegistry(device, opts.FramesInFlight, imageCount)
	if err != nil {
		if set != nil {
			set.teardown(device)
		}
		return nil, err
	}

	if set != nil {
		if err := c.recorder.Record(device, set); err != nil {
			err = fmt.Errorf("failed to record command buffers: %w", err)
			core.LogError(err.Error())
			set.teardown(device)
			c.registry.Destroy()
			return nil, err
		}
		c.resources = set
		c.state = StateIdle
	} else {
		c.state = StateSuspended
	}

	core.LogInfo("frame coordinator initialized with %d frames in flight", opts.FramesInFlight)
	return c, nil
}

func (c *Coordinator) request() SwapchainRequest {
	return SwapchainRequest{
		Format:         c.opts.SurfaceFormat,
		PresentMode:    c.presentMode,
		Extent:         c.extent,
		VertexShader:   c.opts.VertexShader,
		FragmentShader: c.opts.FragmentShader,
	}
}

// NotifyResize schedules a rebuild for the next DrawFrame. It never touches
// the device.
func (c *Coordinator) NotifyResize(width, height uint32) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.extent = Extent2D{Width: width, Height: height}
	c.pending = true
}

// SetPresentMode changes the preferred present mode and schedules a rebuild.
func (c *Coordinator) SetPresentMode(mode PresentMode) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if mode == c.presentMode {
		return
	}
	c.presentMode = mode
	c.pending = true
}

// takePending consumes the pending flag and snapshots the request it applies to.
func (c *Coordinator) takePending() (bool, SwapchainRequest) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	pending := c.pending
	c.pending = false
	return pending, c.request()
}

func (c *Coordinator) suspend() {
	c.mutex.Lock()
	c.pending = true
	c.mutex.Unlock()
	if c.state != StateSuspended {
		core.LogInfo("surface has zero area, suspending frames")
	}
	c.state = StateSuspended
	c.metrics.CountSuspended()
}

// rebuild replaces the resource set. It reports false when the surface has
// zero area and the coordinator suspended instead.
func (c *Coordinator) rebuild(req SwapchainRequest) (bool, error) {
	if req.Extent.IsZeroArea() {
		c.suspend()
		return false, nil
	}
	c.state = StateRebuilding

	set, released, err := rebuildResourceSet(c.device, c.resources, req)
	if released {
		c.resources = nil
	}
	if errors.Is(err, core.ErrSurfaceZeroArea) {
		c.registry.resetImages(0)
		c.suspend()
		return false, nil
	}
	if err != nil {
		if released {
			c.registry.resetImages(0)
		}
		return false, fmt.Errorf("failed to rebuild swapchain resources: %w", err)
	}

	// The device is idle here, so no image fence can still be pending.
	c.registry.resetImages(set.ImageCount())
	if err := c.recorder.Record(c.device, set); err != nil {
		set.teardown(c.device)
		c.registry.resetImages(0)
		err = fmt.Errorf("failed to record command buffers: %w", err)
		core.LogError(err.Error())
		return false, err
	}
	c.resources = set
	c.rebuilds++
	c.metrics.CountRebuild()
	c.state = StateIdle
	return true, nil
}

func (c *Coordinator) waitFence(fence Fence) error {
	if err := c.device.WaitForFence(fence, c.fenceTimeout); err != nil {
		err = fmt.Errorf("failed to wait for fence in state %s: %w", c.state, err)
		core.LogError(err.Error())
		return err
	}
	return nil
}

// DrawFrame runs one iteration of the frame protocol. Out-of-date and
// suboptimal surfaces and zero-area windows are handled here and never
// returned; any error that is returned is fatal.
func (c *Coordinator) DrawFrame() error {
	if c.state == StateShutDown {
		return core.ErrCoordinatorShutDown
	}

	pending, req := c.takePending()
	if pending || c.resources == nil {
		ok, err := c.rebuild(req)
		if err != nil || !ok {
			return err
		}
	}

	slot := c.slot
	inFlight := c.registry.Fence(FenceCommandBufferExec(slot))
	imageAvailable := c.registry.Semaphore(SemaphoreImageAvailable(slot))
	renderFinished := c.registry.Semaphore(SemaphoreRenderFinished(slot))

	c.state = StateWaitingOnSlotFence
	if err := c.waitFence(inFlight); err != nil {
		return err
	}

	c.state = StateAcquiring
	index, status, err := c.device.AcquireNextImage(c.resources.Swapchain, c.fenceTimeout, imageAvailable)
	if err != nil {
		err = fmt.Errorf("failed to acquire swapchain image: %w", err)
		core.LogError(err.Error())
		return err
	}
	// Nothing was acquired, so nothing is submitted and the slot is retried.
	if status == SurfaceOutOfDate {
		c.metrics.CountOutOfDate()
		c.state = StateInvalidated
		core.LogDebug("swapchain out of date on acquire, rebuilding")
		_, err := c.rebuild(c.currentRequest())
		return err
	}
	invalid := status == SurfaceSuboptimal
	if invalid {
		c.metrics.CountSuboptimal()
	}

	c.state = StateWaitingOnImageFence
	imageFence := FenceImageAvailable(index)
	if previous := c.registry.Fence(imageFence); previous != NullFence {
		if err := c.waitFence(previous); err != nil {
			return err
		}
	}
	c.registry.Rebind(imageFence, inFlight)

	c.state = StateSubmitting
	if err := c.device.ResetFence(inFlight); err != nil {
		err = fmt.Errorf("failed to reset fence: %w", err)
		core.LogError(err.Error())
		return err
	}
	err = c.device.QueueSubmit(SubmitInfo{
		WaitSemaphores:   []Semaphore{imageAvailable},
		CommandBuffers:   []CommandBuffer{c.resources.CommandBuffers[index]},
		SignalSemaphores: []Semaphore{renderFinished},
	}, inFlight)
	if err != nil {
		err = fmt.Errorf("failed to submit command buffer %d: %w", index, err)
		core.LogError(err.Error())
		return err
	}
	c.metrics.CountSubmission()

	c.state = StatePresenting
	status, err = c.device.QueuePresent(PresentInfo{
		WaitSemaphores: []Semaphore{renderFinished},
		Swapchain:      c.resources.Swapchain,
		ImageIndex:     index,
	})
	if err != nil {
		err = fmt.Errorf("failed to present image %d: %w", index, err)
		core.LogError(err.Error())
		return err
	}
	c.metrics.CountPresent()
	switch status {
	case SurfaceSuboptimal:
		c.metrics.CountSuboptimal()
		invalid = true
	case SurfaceOutOfDate:
		c.metrics.CountOutOfDate()
		invalid = true
	}

	c.slot = (slot + 1) % FrameSlot(c.opts.FramesInFlight)
	c.frameNumber++
	c.state = StateIdle

	if invalid {
		c.state = StateInvalidated
		core.LogDebug("swapchain reported %s on present, rebuilding", status)
		if _, err := c.rebuild(c.currentRequest()); err != nil {
			return err
		}
	}
	return nil
}

// currentRequest is the request for a rebuild the surface itself asked for.
// It also clears any pending resize, which the rebuild satisfies.
func (c *Coordinator) currentRequest() SwapchainRequest {
	_, req := c.takePending()
	return req
}

// Shutdown waits for the device to go idle, then releases the resource set,
// the sync objects and finally the device.
func (c *Coordinator) Shutdown() error {
	if c.state == StateShutDown {
		return core.ErrCoordinatorShutDown
	}
	err := c.device.WaitIdle()
	if err != nil {
		err = fmt.Errorf("failed to wait for device idle on shutdown: %w", err)
		core.LogError(err.Error())
	}
	if c.resources != nil {
		c.resources.teardown(c.device)
		c.resources = nil
	}
	c.registry.Destroy()
	c.device.Destroy()
	c.state = StateShutDown
	core.LogInfo("frame coordinator shut down after %d frames", c.frameNumber)
	return err
}

func (c *Coordinator) Slot() FrameSlot { return c.slot }

func (c *Coordinator) State() State { return c.state }

// Rebuilds counts completed resource set rebuilds, not counting the first build.
func (c *Coordinator) Rebuilds() uint64 { return c.rebuilds }

// FrameNumber counts presented frames.
func (c *Coordinator) FrameNumber() uint64 { return c.frameNumber }

// ResourceSet is nil while suspended. Handles taken from it are invalid after
// the next rebuild.
func (c *Coordinator) ResourceSet() *ResourceSet { return c.resources }

func (c *Coordinator) Registry() *SyncRegistry { return c.registry }

func (c *Coordinator) Metrics() *core.FrameMetrics { return c.metrics }

func (c *Coordinator) FramesInFlight() uint8 { return c.opts.FramesInFlight }
