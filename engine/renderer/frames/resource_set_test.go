package frames_test

import (
	"errors"
	"slices"
	"testing"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
	"github.com/spaghettifunk/anima-frames/engine/renderer/headless"
)

var destroyOps = []string{
	headless.OpWaitIdle,
	headless.OpDestroyFramebuffer,
	headless.OpFreeCommandBuffer,
	headless.OpDestroyPipeline,
	headless.OpDestroyRenderPass,
	headless.OpDestroyDepthBuffer,
	headless.OpDestroyImageView,
	headless.OpDestroySwapchain,
}

func triangleRequest() frames.SwapchainRequest {
	return frames.SwapchainRequest{
		Extent:         frames.Extent2D{Width: 1280, Height: 720},
		PresentMode:    frames.PresentModeMailbox,
		VertexShader:   []byte{0x03, 0x02, 0x23, 0x07},
		FragmentShader: []byte{0x03, 0x02, 0x23, 0x07},
	}
}

func TestBuildResourceSet_ListsMatchImageCount(t *testing.T) {
	dev := newDevice(t)
	set, err := frames.BuildResourceSet(dev, triangleRequest())
	if err != nil {
		t.Fatalf("BuildResourceSet: %v", err)
	}
	n := set.ImageCount()
	if n != 3 {
		t.Fatalf("image count = %d, want 3", n)
	}
	if len(set.Views) != n || len(set.Framebuffers) != n || len(set.CommandBuffers) != n {
		t.Fatalf("list lengths differ: %d views, %d framebuffers, %d command buffers",
			len(set.Views), len(set.Framebuffers), len(set.CommandBuffers))
	}
	if set.Pipeline == frames.NullPipeline || set.Depth == frames.NullDepthBuffer || set.RenderPass == frames.NullRenderPass {
		t.Fatalf("pipeline, depth buffer or render pass missing: %+v", set)
	}
	if set.Format.Format != frames.FormatB8G8R8A8SRGB {
		t.Errorf("format = %s, want b8g8r8a8_srgb", set.Format.Format)
	}
	if set.PresentMode != frames.PresentModeMailbox {
		t.Errorf("present mode = %s, want mailbox", set.PresentMode)
	}
}

func TestBuildResourceSet_WithoutShadersHasNoPipeline(t *testing.T) {
	dev := newDevice(t)
	req := triangleRequest()
	req.VertexShader, req.FragmentShader = nil, nil
	set, err := frames.BuildResourceSet(dev, req)
	if err != nil {
		t.Fatalf("BuildResourceSet: %v", err)
	}
	if set.Pipeline != frames.NullPipeline {
		t.Fatalf("pipeline created without shaders")
	}
	if got := dev.Count(headless.OpCreatePipeline); got != 0 {
		t.Fatalf("create_pipeline called %d times", got)
	}
}

func TestResourceSet_DestroyFollowsTeardownOrder(t *testing.T) {
	dev := newDevice(t)
	set, err := frames.BuildResourceSet(dev, triangleRequest())
	if err != nil {
		t.Fatalf("BuildResourceSet: %v", err)
	}
	dev.ClearEvents()
	if err := set.Destroy(dev); err != nil {
		t.Fatalf("Destroy: %v", err)
	}

	if got := ops(dev.Events(), destroyOps...); !slices.Equal(got, destroyOps) {
		t.Fatalf("teardown = %v\nwant      %v", got, destroyOps)
	}
	if n := dev.Live(); n != 0 {
		t.Errorf("live objects after Destroy = %d", n)
	}
	assertNoViolations(t, dev)
}

func TestTeardownOrder(t *testing.T) {
	want := []string{"framebuffers", "command buffers", "pipeline", "render pass", "depth buffer", "image views", "swapchain"}
	if got := frames.TeardownOrder(); !slices.Equal(got, want) {
		t.Fatalf("TeardownOrder = %v, want %v", got, want)
	}
}

type failingDevice struct {
	*headless.Device
	failFramebufferAt int
	framebuffers      int
}

func (d *failingDevice) CreateFramebuffer(cfg frames.FramebufferConfig) (frames.Framebuffer, error) {
	d.framebuffers++
	if d.framebuffers == d.failFramebufferAt {
		return frames.NullFramebuffer, errors.New("out of device memory")
	}
	return d.Device.CreateFramebuffer(cfg)
}

func TestBuildResourceSet_PartialFailureReleasesEverything(t *testing.T) {
	dev := &failingDevice{Device: newDevice(t), failFramebufferAt: 2}
	set, err := frames.BuildResourceSet(dev, triangleRequest())
	if err == nil {
		t.Fatalf("BuildResourceSet succeeded, want error")
	}
	if set != nil {
		t.Fatalf("got a resource set from a failed build")
	}
	if n := dev.Live(); n != 0 {
		t.Errorf("live objects after failed build = %d", n)
	}
	assertNoViolations(t, dev.Device)
}

func TestBuildResourceSet_ZeroArea(t *testing.T) {
	t.Run("requested", func(t *testing.T) {
		dev := newDevice(t)
		req := triangleRequest()
		req.Extent = frames.Extent2D{Width: 0, Height: 720}
		if _, err := frames.BuildResourceSet(dev, req); !errors.Is(err, core.ErrSurfaceZeroArea) {
			t.Fatalf("err = %v, want ErrSurfaceZeroArea", err)
		}
		if got := dev.Count(headless.OpSurfaceSupport); got != 0 {
			t.Fatalf("surface queried %d times for a zero-area request", got)
		}
	})
	t.Run("reported_by_surface", func(t *testing.T) {
		dev := newDevice(t)
		dev.SetSurfaceExtent(frames.Extent2D{})
		if _, err := frames.BuildResourceSet(dev, triangleRequest()); !errors.Is(err, core.ErrSurfaceZeroArea) {
			t.Fatalf("err = %v, want ErrSurfaceZeroArea", err)
		}
		if got := dev.Count(headless.OpCreateSwapchain); got != 0 {
			t.Fatalf("swapchain created %d times for a minimized surface", got)
		}
	})
}

func TestBuildResourceSet_NoSurfaceFormats(t *testing.T) {
	opts := headless.DefaultOptions()
	opts.Formats = nil
	if _, err := frames.BuildResourceSet(headless.New(opts), triangleRequest()); !errors.Is(err, core.ErrNoSurfaceFormats) {
		t.Fatalf("err = %v, want ErrNoSurfaceFormats", err)
	}
}

func TestResourceSet_ValidatePanicsOnMismatch(t *testing.T) {
	set := &frames.ResourceSet{
		Images:         make([]frames.Image, 3),
		Views:          make([]frames.ImageView, 3),
		Framebuffers:   make([]frames.Framebuffer, 2),
		CommandBuffers: make([]frames.CommandBuffer, 3),
	}
	expectPanic(t, core.ErrResourceSetMismatch, set.Validate)
}

func TestRebuildResourceSet_ReplacesWholeSet(t *testing.T) {
	dev := newDevice(t)
	old, err := frames.BuildResourceSet(dev, triangleRequest())
	if err != nil {
		t.Fatalf("BuildResourceSet: %v", err)
	}
	oldID := old.ID
	oldBuffers := slices.Clone(old.CommandBuffers)

	dev.SetSurfaceExtent(frames.Extent2D{Width: 640, Height: 480})
	set, err := frames.RebuildResourceSet(dev, old, triangleRequest())
	if err != nil {
		t.Fatalf("RebuildResourceSet: %v", err)
	}
	if set.ID == oldID {
		t.Fatalf("rebuilt set kept identity %s", oldID)
	}
	if set.Extent != (frames.Extent2D{Width: 640, Height: 480}) {
		t.Fatalf("extent = %s, want 640x480", set.Extent)
	}
	for _, cb := range set.CommandBuffers {
		if slices.Contains(oldBuffers, cb) {
			t.Fatalf("command buffer %d survived the rebuild", cb)
		}
	}
	set.Validate()
	events := dev.Events()
	if idle, create := indexOf(events, headless.OpWaitIdle, 0), indexOf(events, headless.OpCreateSwapchain, 1); idle < 0 || idle > create {
		t.Fatalf("rebuild did not wait for idle before building (idle=%d, create=%d)", idle, create)
	}
	assertNoViolations(t, dev)
}
