package frames

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spaghettifunk/anima-frames/engine/core"
)

// SwapchainRequest is what the caller wants; BuildResourceSet settles for
// what the surface supports.
type SwapchainRequest struct {
	Format         SurfaceFormat
	PresentMode    PresentMode
	Extent         Extent2D
	VertexShader   []byte
	FragmentShader []byte
}

// ResourceSet is the swapchain and everything built against its images. It
// is never patched: a resize destroys it and builds a new one.
type ResourceSet struct {
	ID          uuid.UUID
	Swapchain   Swapchain
	Format      SurfaceFormat
	PresentMode PresentMode
	Extent      Extent2D

	Images         []Image
	Views          []ImageView
	Framebuffers   []Framebuffer
	CommandBuffers []CommandBuffer

	Depth      DepthBuffer
	RenderPass RenderPass
	// NullPipeline when no shaders were supplied.
	Pipeline Pipeline
}

type teardownStep struct {
	name string
	run  func(device SwapchainDevice, set *ResourceSet)
}

// teardownOrder releases consumers before the objects they were built from.
var teardownOrder = []teardownStep{
	{"framebuffers", func(d SwapchainDevice, s *ResourceSet) {
		for _, fb := range s.Framebuffers {
			d.DestroyFramebuffer(fb)
		}
		s.Framebuffers = nil
	}},
	{"command buffers", func(d SwapchainDevice, s *ResourceSet) {
		if len(s.CommandBuffers) > 0 {
			d.FreeCommandBuffers(s.CommandBuffers)
		}
		s.CommandBuffers = nil
	}},
	{"pipeline", func(d SwapchainDevice, s *ResourceSet) {
		if s.Pipeline != NullPipeline {
			d.DestroyPipeline(s.Pipeline)
		}
		s.Pipeline = NullPipeline
	}},
	{"render pass", func(d SwapchainDevice, s *ResourceSet) {
		if s.RenderPass != NullRenderPass {
			d.DestroyRenderPass(s.RenderPass)
		}
		s.RenderPass = NullRenderPass
	}},
	{"depth buffer", func(d SwapchainDevice, s *ResourceSet) {
		if s.Depth != NullDepthBuffer {
			d.DestroyDepthBuffer(s.Depth)
		}
		s.Depth = NullDepthBuffer
	}},
	{"image views", func(d SwapchainDevice, s *ResourceSet) {
		for _, v := range s.Views {
			d.DestroyImageView(v)
		}
		s.Views = nil
	}},
	{"swapchain", func(d SwapchainDevice, s *ResourceSet) {
		if s.Swapchain != NullSwapchain {
			d.DestroySwapchain(s.Swapchain)
		}
		s.Swapchain = NullSwapchain
		// Presentable images die with the swapchain.
		s.Images = nil
	}},
}

// TeardownOrder lists the teardown steps by name.
func TeardownOrder() []string {
	names := make([]string, len(teardownOrder))
	for i, step := range teardownOrder {
		names[i] = step.name
	}
	return names
}

// BuildResourceSet creates a complete resource set or nothing: on failure
// whatever was already created is released before returning. A zero-area
// surface yields core.ErrSurfaceZeroArea without touching the swapchain.
func BuildResourceSet(device GraphicsDevice, req SwapchainRequest) (*ResourceSet, error) {
	if req.Extent.IsZeroArea() {
		return nil, core.ErrSurfaceZeroArea
	}

	support, err := device.SurfaceSupport()
	if err != nil {
		err = fmt.Errorf("failed to query surface support: %w", err)
		core.LogError(err.Error())
		return nil, err
	}
	if len(support.Formats) == 0 {
		core.LogError(core.ErrNoSurfaceFormats.Error())
		return nil, core.ErrNoSurfaceFormats
	}

	extent := ChooseExtent(support.Capabilities, req.Extent)
	if extent.IsZeroArea() {
		core.LogDebug("surface reports %s, deferring swapchain creation", extent)
		return nil, core.ErrSurfaceZeroArea
	}

	set := &ResourceSet{
		ID:          uuid.New(),
		Format:      ChooseSurfaceFormat(support.Formats, req.Format),
		PresentMode: ChoosePresentMode(support.PresentModes, req.PresentMode),
		Extent:      extent,
	}
	if err := set.create(device, ChooseImageCount(support.Capabilities), req); err != nil {
		set.teardown(device)
		core.LogError(err.Error())
		return nil, err
	}
	set.Validate()

	core.LogInfo("resource set %s built: %d images %s %s %s", set.ID, len(set.Images), set.Extent, set.Format.Format, set.PresentMode)
	return set, nil
}

func (s *ResourceSet) create(device GraphicsDevice, imageCount uint32, req SwapchainRequest) error {
	var err error
	s.Swapchain, s.Images, err = device.CreateSwapchain(SwapchainConfig{
		Format:      s.Format,
		PresentMode: s.PresentMode,
		Extent:      s.Extent,
		ImageCount:  imageCount,
	})
	if err != nil {
		return fmt.Errorf("failed to create swapchain: %w", err)
	}

	s.Views = make([]ImageView, 0, len(s.Images))
	for i, img := range s.Images {
		view, err := device.CreateImageView(img, s.Format.Format)
		if err != nil {
			return fmt.Errorf("failed to create image view %d: %w", i, err)
		}
		s.Views = append(s.Views, view)
	}

	if s.Depth, err = device.CreateDepthBuffer(s.Extent); err != nil {
		return fmt.Errorf("failed to create depth buffer: %w", err)
	}
	if s.RenderPass, err = device.CreateRenderPass(s.Format.Format); err != nil {
		return fmt.Errorf("failed to create render pass: %w", err)
	}
	if len(req.VertexShader) > 0 && len(req.FragmentShader) > 0 {
		s.Pipeline, err = device.CreatePipeline(PipelineConfig{
			RenderPass:     s.RenderPass,
			Extent:         s.Extent,
			VertexShader:   req.VertexShader,
			FragmentShader: req.FragmentShader,
		})
		if err != nil {
			return fmt.Errorf("failed to create pipeline: %w", err)
		}
	}

	s.Framebuffers = make([]Framebuffer, 0, len(s.Views))
	for i, view := range s.Views {
		fb, err := device.CreateFramebuffer(FramebufferConfig{
			RenderPass: s.RenderPass,
			View:       view,
			Depth:      s.Depth,
			Extent:     s.Extent,
		})
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}
		s.Framebuffers = append(s.Framebuffers, fb)
	}

	if s.CommandBuffers, err = device.AllocateCommandBuffers(len(s.Images)); err != nil {
		return fmt.Errorf("failed to allocate command buffers: %w", err)
	}
	return nil
}

func (s *ResourceSet) ImageCount() int {
	return len(s.Images)
}

// Validate panics when the per-image lists disagree in length.
func (s *ResourceSet) Validate() {
	n := len(s.Images)
	if len(s.Views) != n || len(s.Framebuffers) != n || len(s.CommandBuffers) != n {
		panic(fmt.Errorf("%w: images=%d views=%d framebuffers=%d command buffers=%d",
			core.ErrResourceSetMismatch, n, len(s.Views), len(s.Framebuffers), len(s.CommandBuffers)))
	}
}

func (s *ResourceSet) teardown(device SwapchainDevice) {
	for _, step := range teardownOrder {
		step.run(device, s)
	}
}

// Destroy waits for the device to go idle, then releases the set in
// teardown order.
func (s *ResourceSet) Destroy(device GraphicsDevice) error {
	if err := device.WaitIdle(); err != nil {
		err = fmt.Errorf("failed to wait for device idle: %w", err)
		core.LogError(err.Error())
		return err
	}
	s.teardown(device)
	return nil
}

// RebuildResourceSet destroys old (if any) and builds its replacement inside
// one idle-waited section. Once the device is idle old is released, even when
// the build fails. If the idle wait itself fails old is left untouched and
// still belongs to the caller.
func RebuildResourceSet(device GraphicsDevice, old *ResourceSet, req SwapchainRequest) (*ResourceSet, error) {
	set, _, err := rebuildResourceSet(device, old, req)
	return set, err
}

// rebuildResourceSet also reports whether old was released.
func rebuildResourceSet(device GraphicsDevice, old *ResourceSet, req SwapchainRequest) (*ResourceSet, bool, error) {
	if err := device.WaitIdle(); err != nil {
		err = fmt.Errorf("failed to wait for device idle: %w", err)
		core.LogError(err.Error())
		return nil, false, err
	}
	if old != nil {
		core.LogDebug("destroying resource set %s", old.ID)
		old.teardown(device)
	}
	set, err := BuildResourceSet(device, req)
	return set, true, err
}
