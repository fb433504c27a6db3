package headless

import (
	"fmt"
	"slices"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

const maxSurfaceSize uint32 = 16384

type swapchainState struct {
	images []frames.Image
	extent frames.Extent2D
	config frames.SwapchainConfig
	next   uint32
}

func (d *Device) follows() bool {
	return d.follow
}

func (d *Device) SurfaceSupport() (frames.SurfaceSupport, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	current := d.surface
	if d.follows() {
		current = frames.Extent2D{Width: frames.UndefinedExtentSize, Height: frames.UndefinedExtentSize}
	}
	d.record(OpSurfaceSupport, 0)
	return frames.SurfaceSupport{
		Capabilities: frames.SurfaceCapabilities{
			MinImageCount:  d.opts.MinImageCount,
			MaxImageCount:  d.opts.MaxImageCount,
			CurrentExtent:  current,
			MinImageExtent: frames.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: frames.Extent2D{Width: maxSurfaceSize, Height: maxSurfaceSize},
		},
		Formats:      slices.Clone(d.opts.Formats),
		PresentModes: slices.Clone(d.opts.PresentModes),
	}, nil
}

func (d *Device) CreateSwapchain(cfg frames.SwapchainConfig) (frames.Swapchain, []frames.Image, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if cfg.Extent.IsZeroArea() || cfg.ImageCount == 0 {
		return frames.NullSwapchain, nil, fmt.Errorf("invalid swapchain config: %d images of %s", cfg.ImageCount, cfg.Extent)
	}
	if !slices.Contains(d.opts.Formats, cfg.Format) {
		return frames.NullSwapchain, nil, fmt.Errorf("surface format %s is not supported", cfg.Format.Format)
	}
	sc := frames.Swapchain(d.handle())
	st := &swapchainState{extent: cfg.Extent, config: cfg}
	for i := uint32(0); i < cfg.ImageCount; i++ {
		img := frames.Image(d.handle())
		d.images[img] = sc
		st.images = append(st.images, img)
	}
	d.swapchains[sc] = st
	d.record(OpCreateSwapchain, uint64(sc))
	return sc, slices.Clone(st.images), nil
}

func (d *Device) DestroySwapchain(swapchain frames.Swapchain) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.swapchains[swapchain]
	if !ok {
		d.violate(fmt.Errorf("%w: destroy swapchain %d", core.ErrInvalidHandle, swapchain))
		return
	}
	for view, img := range d.views {
		if slices.Contains(st.images, img) {
			d.violate(fmt.Errorf("swapchain %d destroyed while image view %d is alive", swapchain, view))
		}
	}
	for _, img := range st.images {
		delete(d.images, img)
	}
	delete(d.swapchains, swapchain)
	d.record(OpDestroySwapchain, uint64(swapchain))
}

func (d *Device) CreateImageView(image frames.Image, format frames.Format) (frames.ImageView, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.images[image]; !ok {
		return frames.NullImageView, fmt.Errorf("%w: image %d", core.ErrInvalidHandle, image)
	}
	v := frames.ImageView(d.handle())
	d.views[v] = image
	d.record(OpCreateImageView, uint64(v))
	return v, nil
}

func (d *Device) DestroyImageView(view frames.ImageView) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.views[view]; !ok {
		d.violate(fmt.Errorf("%w: destroy image view %d", core.ErrInvalidHandle, view))
		return
	}
	for fb, cfg := range d.buffers {
		if cfg.View == view {
			d.violate(fmt.Errorf("image view %d destroyed while framebuffer %d is alive", view, fb))
		}
	}
	delete(d.views, view)
	d.record(OpDestroyImageView, uint64(view))
}

func (d *Device) CreateDepthBuffer(extent frames.Extent2D) (frames.DepthBuffer, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if extent.IsZeroArea() {
		return frames.NullDepthBuffer, fmt.Errorf("depth buffer of %s", extent)
	}
	db := frames.DepthBuffer(d.handle())
	d.depths[db] = extent
	d.record(OpCreateDepthBuffer, uint64(db))
	return db, nil
}

func (d *Device) DestroyDepthBuffer(depth frames.DepthBuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.depths[depth]; !ok {
		d.violate(fmt.Errorf("%w: destroy depth buffer %d", core.ErrInvalidHandle, depth))
		return
	}
	for fb, cfg := range d.buffers {
		if cfg.Depth == depth {
			d.violate(fmt.Errorf("depth buffer %d destroyed while framebuffer %d is alive", depth, fb))
		}
	}
	delete(d.depths, depth)
	d.record(OpDestroyDepthBuffer, uint64(depth))
}

func (d *Device) CreateRenderPass(color frames.Format) (frames.RenderPass, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	rp := frames.RenderPass(d.handle())
	d.passes[rp] = color
	d.record(OpCreateRenderPass, uint64(rp))
	return rp, nil
}

func (d *Device) DestroyRenderPass(pass frames.RenderPass) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.passes[pass]; !ok {
		d.violate(fmt.Errorf("%w: destroy render pass %d", core.ErrInvalidHandle, pass))
		return
	}
	for p, rp := range d.pipelines {
		if rp == pass {
			d.violate(fmt.Errorf("render pass %d destroyed while pipeline %d is alive", pass, p))
		}
	}
	for fb, cfg := range d.buffers {
		if cfg.RenderPass == pass {
			d.violate(fmt.Errorf("render pass %d destroyed while framebuffer %d is alive", pass, fb))
		}
	}
	delete(d.passes, pass)
	d.record(OpDestroyRenderPass, uint64(pass))
}

func (d *Device) CreatePipeline(cfg frames.PipelineConfig) (frames.Pipeline, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.passes[cfg.RenderPass]; !ok {
		return frames.NullPipeline, fmt.Errorf("%w: render pass %d", core.ErrInvalidHandle, cfg.RenderPass)
	}
	if len(cfg.VertexShader) == 0 || len(cfg.FragmentShader) == 0 {
		return frames.NullPipeline, fmt.Errorf("pipeline needs both a vertex and a fragment shader")
	}
	p := frames.Pipeline(d.handle())
	d.pipelines[p] = cfg.RenderPass
	d.record(OpCreatePipeline, uint64(p))
	return p, nil
}

func (d *Device) DestroyPipeline(pipeline frames.Pipeline) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.pipelines[pipeline]; !ok {
		d.violate(fmt.Errorf("%w: destroy pipeline %d", core.ErrInvalidHandle, pipeline))
		return
	}
	delete(d.pipelines, pipeline)
	d.record(OpDestroyPipeline, uint64(pipeline))
}

func (d *Device) CreateFramebuffer(cfg frames.FramebufferConfig) (frames.Framebuffer, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.passes[cfg.RenderPass]; !ok {
		return frames.NullFramebuffer, fmt.Errorf("%w: render pass %d", core.ErrInvalidHandle, cfg.RenderPass)
	}
	if _, ok := d.views[cfg.View]; !ok {
		return frames.NullFramebuffer, fmt.Errorf("%w: image view %d", core.ErrInvalidHandle, cfg.View)
	}
	if _, ok := d.depths[cfg.Depth]; !ok {
		return frames.NullFramebuffer, fmt.Errorf("%w: depth buffer %d", core.ErrInvalidHandle, cfg.Depth)
	}
	fb := frames.Framebuffer(d.handle())
	d.buffers[fb] = cfg
	d.record(OpCreateFramebuffer, uint64(fb))
	return fb, nil
}

func (d *Device) DestroyFramebuffer(framebuffer frames.Framebuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	if _, ok := d.buffers[framebuffer]; !ok {
		d.violate(fmt.Errorf("%w: destroy framebuffer %d", core.ErrInvalidHandle, framebuffer))
		return
	}
	delete(d.buffers, framebuffer)
	d.record(OpDestroyFramebuffer, uint64(framebuffer))
}

func (d *Device) AllocateCommandBuffers(count int) ([]frames.CommandBuffer, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	out := make([]frames.CommandBuffer, count)
	for i := range out {
		cb := frames.CommandBuffer(d.handle())
		d.commands[cb] = &commandBufferState{}
		out[i] = cb
		d.record(OpAllocateCommandBuffer, uint64(cb))
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []frames.CommandBuffer) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, cb := range buffers {
		if _, ok := d.commands[cb]; !ok {
			d.violate(fmt.Errorf("%w: free command buffer %d", core.ErrInvalidHandle, cb))
			continue
		}
		if d.inFlight(cb) {
			d.violate(fmt.Errorf("command buffer %d freed while still executing", cb))
		}
		delete(d.commands, cb)
		d.record(OpFreeCommandBuffer, uint64(cb))
	}
}

func (d *Device) inFlight(cb frames.CommandBuffer) bool {
	found := false
	d.timeline.Each(func(s submission) {
		if slices.Contains(s.buffers, cb) {
			found = true
		}
	})
	return found
}

func (d *Device) outOfDate(st *swapchainState) bool {
	return !d.follows() && st.extent != d.surface
}

func (d *Device) AcquireNextImage(swapchain frames.Swapchain, timeout uint64, semaphore frames.Semaphore) (uint32, frames.SurfaceStatus, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.swapchains[swapchain]
	if !ok {
		return 0, frames.SurfaceOutOfDate, fmt.Errorf("%w: acquire on swapchain %d", core.ErrInvalidHandle, swapchain)
	}
	d.record(OpAcquire, uint64(swapchain))

	status := frames.SurfaceOptimal
	if len(d.acquireFaults) > 0 {
		status, d.acquireFaults = d.acquireFaults[0], d.acquireFaults[1:]
	} else if d.outOfDate(st) {
		status = frames.SurfaceOutOfDate
	}
	if status == frames.SurfaceOutOfDate {
		return 0, status, nil
	}

	if err := d.signal(semaphore); err != nil {
		return 0, status, err
	}
	index := st.next
	st.next = (st.next + 1) % uint32(len(st.images))
	return index, status, nil
}

func (d *Device) QueuePresent(info frames.PresentInfo) (frames.SurfaceStatus, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	st, ok := d.swapchains[info.Swapchain]
	if !ok {
		return frames.SurfaceOutOfDate, fmt.Errorf("%w: present on swapchain %d", core.ErrInvalidHandle, info.Swapchain)
	}
	if int(info.ImageIndex) >= len(st.images) {
		return frames.SurfaceOutOfDate, fmt.Errorf("%w: image index %d of %d", core.ErrInvalidHandle, info.ImageIndex, len(st.images))
	}
	for _, s := range info.WaitSemaphores {
		if err := d.consume(s); err != nil {
			return frames.SurfaceOutOfDate, err
		}
	}
	d.presents++
	d.record(OpPresent, uint64(info.Swapchain))

	status := frames.SurfaceOptimal
	if len(d.presentFaults) > 0 {
		status, d.presentFaults = d.presentFaults[0], d.presentFaults[1:]
	} else if d.outOfDate(st) {
		status = frames.SurfaceOutOfDate
	}
	return status, nil
}
