package frames_test

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
	"github.com/spaghettifunk/anima-frames/engine/renderer/headless"
)

func TestCoordinator_SlotSequenceAndFenceResets(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	if n := c.ResourceSet().ImageCount(); n != 3 {
		t.Fatalf("image count = %d, want 3", n)
	}
	dev.ClearEvents()

	var slots []frames.FrameSlot
	for i := 0; i < 5; i++ {
		slots = append(slots, c.Slot())
		if err := c.DrawFrame(); err != nil {
			t.Fatalf("DrawFrame %d: %v", i, err)
		}
	}
	if want := []frames.FrameSlot{0, 1, 0, 1, 0}; !slices.Equal(slots, want) {
		t.Fatalf("slots = %v, want %v", slots, want)
	}
	if got := dev.Submissions(); got != 5 {
		t.Fatalf("submissions = %d, want 5", got)
	}

	// Every submit of a fence directly follows its reset, and every signal
	// directly follows a submit.
	last := make(map[uint64]string)
	for i, e := range dev.Events() {
		switch e.Op {
		case headless.OpSubmit:
			if last[e.Handle] != headless.OpResetFence {
				t.Fatalf("event %d: fence %d submitted after %q, want reset_fence", i, e.Handle, last[e.Handle])
			}
		case headless.OpSignalFence:
			if last[e.Handle] != headless.OpSubmit {
				t.Fatalf("event %d: fence %d signaled after %q, want submit", i, e.Handle, last[e.Handle])
			}
		case headless.OpResetFence:
		default:
			continue
		}
		last[e.Handle] = e.Op
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_BackpressureBound(t *testing.T) {
	tests := []struct {
		name           string
		framesInFlight uint8
		minImages      uint32
	}{
		{"one_frame_three_images", 1, 2},
		{"two_frames_three_images", 2, 2},
		{"two_frames_five_images", 2, 4},
		{"three_frames_three_images", 3, 2},
		{"three_frames_two_images", 3, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := headless.DefaultOptions()
			opts.MinImageCount = tc.minImages
			dev := headless.New(opts)
			c, err := frames.Initialize(dev, defaultOptions(tc.framesInFlight))
			if err != nil {
				t.Fatalf("Initialize: %v", err)
			}
			for i := 0; i < 25; i++ {
				if err := c.DrawFrame(); err != nil {
					t.Fatalf("DrawFrame %d: %v", i, err)
				}
				if n := dev.InFlight(); n > int(tc.framesInFlight) {
					t.Fatalf("frame %d: %d submissions in flight, bound is %d", i, n, tc.framesInFlight)
				}
			}
			if peak := dev.MaxInFlight(); peak > int(tc.framesInFlight) {
				t.Fatalf("max in flight = %d, bound is %d", peak, tc.framesInFlight)
			}
			assertNoViolations(t, dev)
		})
	}
}

func TestCoordinator_ImageOwnershipExclusive(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	r := c.Registry()
	for i := 0; i < 12; i++ {
		slot := c.Slot()
		if err := c.DrawFrame(); err != nil {
			t.Fatalf("DrawFrame %d: %v", i, err)
		}
		// The headless swapchain hands out images round-robin.
		image := uint32(i % c.ResourceSet().ImageCount())
		if owner, ok := r.Owner(image); !ok || owner != slot {
			t.Fatalf("frame %d: image %d owned by %d (%v), want slot %d", i, image, owner, ok, slot)
		}
		for img := 0; img < r.ImageCount(); img++ {
			f := r.Fence(frames.FenceImageAvailable(uint32(img)))
			holders := 0
			for s := frames.FrameSlot(0); s < frames.FrameSlot(r.FramesInFlight()); s++ {
				if r.Fence(frames.FenceCommandBufferExec(s)) == f {
					holders++
				}
			}
			if holders > 1 {
				t.Fatalf("image %d held by %d slots", img, holders)
			}
		}
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_SlotCycling(t *testing.T) {
	for n := uint8(1); n <= 4; n++ {
		c, _ := newCoordinator(t, n)
		start := c.Slot()
		drawFrames(t, c, int(n))
		if c.Slot() != start {
			t.Errorf("framesInFlight=%d: slot = %d after %d frames, want %d", n, c.Slot(), n, start)
		}
	}
}

func TestCoordinator_OutOfDateOnAcquire(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 2)
	before := c.ResourceSet()
	beforeID := before.ID
	oldBuffers := slices.Clone(before.CommandBuffers)
	slot := c.Slot()
	dev.ClearEvents()

	dev.FailNextAcquire(frames.SurfaceOutOfDate)
	if err := c.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame: %v", err)
	}
	if c.Rebuilds() != 1 {
		t.Fatalf("rebuilds = %d, want 1", c.Rebuilds())
	}
	if c.ResourceSet().ID == beforeID {
		t.Fatalf("resource set identity unchanged after rebuild")
	}
	if got := dev.Count(headless.OpSubmit); got != 0 {
		t.Fatalf("%d submissions in the invalidated iteration", got)
	}
	if c.Slot() != slot {
		t.Fatalf("slot advanced to %d without a submission", c.Slot())
	}
	if c.State() != frames.StateIdle {
		t.Fatalf("state = %s, want Idle", c.State())
	}

	// The next call retries with the same slot and then advances.
	drawFrames(t, c, 1)
	if c.Slot() == slot {
		t.Fatalf("slot did not advance after the retried frame")
	}
	if got := dev.Submissions(); got != 3 {
		t.Fatalf("submissions = %d, want 3", got)
	}
	for _, cb := range c.ResourceSet().CommandBuffers {
		if slices.Contains(oldBuffers, cb) {
			t.Fatalf("pre-rebuild command buffer %d still referenced", cb)
		}
	}
	for _, cb := range oldBuffers {
		if dev.Commands(cb) != nil {
			t.Fatalf("pre-rebuild command buffer %d was never freed", cb)
		}
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_SuboptimalIsSoft(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*headless.Device)
	}{
		{"acquire_suboptimal", func(d *headless.Device) { d.FailNextAcquire(frames.SurfaceSuboptimal) }},
		{"present_suboptimal", func(d *headless.Device) { d.FailNextPresent(frames.SurfaceSuboptimal) }},
		{"present_out_of_date", func(d *headless.Device) { d.FailNextPresent(frames.SurfaceOutOfDate) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, dev := newCoordinator(t, 2)
			tc.inject(dev)
			if err := c.DrawFrame(); err != nil {
				t.Fatalf("DrawFrame: %v", err)
			}
			if dev.Submissions() != 1 || dev.Presents() != 1 {
				t.Fatalf("submissions=%d presents=%d, want the frame displayed", dev.Submissions(), dev.Presents())
			}
			if c.Rebuilds() != 1 {
				t.Fatalf("rebuilds = %d, want 1", c.Rebuilds())
			}
			if c.Slot() != 1 {
				t.Fatalf("slot = %d, want 1", c.Slot())
			}
			drawFrames(t, c, 3)
			assertNoViolations(t, dev)
		})
	}
}

func TestCoordinator_ZeroAreaSuspension(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 3)
	dev.ClearEvents()

	dev.SetSurfaceExtent(frames.Extent2D{})
	c.NotifyResize(0, 0)
	for i := 0; i < 3; i++ {
		if err := c.DrawFrame(); err != nil {
			t.Fatalf("DrawFrame while minimized: %v", err)
		}
		if c.State() != frames.StateSuspended {
			t.Fatalf("state = %s, want Suspended", c.State())
		}
	}
	if events := dev.Events(); len(events) != 0 {
		t.Fatalf("device touched while suspended: %v", events)
	}
	if c.Rebuilds() != 0 {
		t.Fatalf("rebuilds = %d while suspended", c.Rebuilds())
	}

	dev.SetSurfaceExtent(frames.Extent2D{Width: 800, Height: 600})
	c.NotifyResize(800, 600)
	if err := c.DrawFrame(); err != nil {
		t.Fatalf("DrawFrame after restore: %v", err)
	}
	if c.Rebuilds() != 1 {
		t.Fatalf("rebuilds = %d, want 1", c.Rebuilds())
	}
	if got := c.ResourceSet().Extent; got != (frames.Extent2D{Width: 800, Height: 600}) {
		t.Fatalf("extent = %s, want 800x600", got)
	}
	if c.State() != frames.StateIdle {
		t.Fatalf("state = %s, want Idle", c.State())
	}
	if got := dev.Count(headless.OpSubmit); got != 1 {
		t.Fatalf("submissions after restore = %d, want 1", got)
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_SurfaceMinimizedWithoutNotify(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 2)

	dev.SetSurfaceExtent(frames.Extent2D{})
	drawFrames(t, c, 2)
	if c.State() != frames.StateSuspended || c.ResourceSet() != nil {
		t.Fatalf("state = %s with resource set %v, want Suspended and none", c.State(), c.ResourceSet())
	}
	if c.Registry().ImageCount() != 0 {
		t.Fatalf("registry still tracks %d images", c.Registry().ImageCount())
	}

	dev.SetSurfaceExtent(frames.Extent2D{Width: 640, Height: 480})
	drawFrames(t, c, 2)
	if c.State() != frames.StateIdle {
		t.Fatalf("state = %s, want Idle", c.State())
	}
	if got := c.ResourceSet().Extent; got != (frames.Extent2D{Width: 640, Height: 480}) {
		t.Fatalf("extent = %s, want 640x480", got)
	}
	if c.Registry().ImageCount() != c.ResourceSet().ImageCount() {
		t.Fatalf("registry images = %d, resource set images = %d", c.Registry().ImageCount(), c.ResourceSet().ImageCount())
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_StartsSuspendedOnZeroArea(t *testing.T) {
	opts := headless.DefaultOptions()
	opts.Extent = frames.Extent2D{}
	dev := headless.New(opts)
	o := defaultOptions(2)
	o.Extent = frames.Extent2D{}
	c, err := frames.Initialize(dev, o)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if c.State() != frames.StateSuspended {
		t.Fatalf("state = %s, want Suspended", c.State())
	}
	drawFrames(t, c, 1)
	if dev.Submissions() != 0 {
		t.Fatalf("submitted while suspended")
	}

	c.NotifyResize(1024, 768)
	drawFrames(t, c, 1)
	if got := c.ResourceSet().Extent; got != (frames.Extent2D{Width: 1024, Height: 768}) {
		t.Fatalf("extent = %s, want 1024x768", got)
	}
	if dev.Submissions() != 1 {
		t.Fatalf("submissions = %d, want 1", dev.Submissions())
	}
}

func TestCoordinator_ResizeRebuildsOnNextFrame(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 1)

	dev.SetSurfaceExtent(frames.Extent2D{Width: 1920, Height: 1080})
	c.NotifyResize(1920, 1080)
	if c.Rebuilds() != 0 {
		t.Fatalf("NotifyResize rebuilt synchronously")
	}
	drawFrames(t, c, 1)
	if c.Rebuilds() != 1 {
		t.Fatalf("rebuilds = %d, want 1", c.Rebuilds())
	}
	if got := c.ResourceSet().Extent; got != (frames.Extent2D{Width: 1920, Height: 1080}) {
		t.Fatalf("extent = %s, want 1920x1080", got)
	}
	// The frame after the rebuild was still drawn.
	if dev.Submissions() != 2 {
		t.Fatalf("submissions = %d, want 2", dev.Submissions())
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_SetPresentMode(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	if c.ResourceSet().PresentMode != frames.PresentModeMailbox {
		t.Fatalf("present mode = %s, want mailbox", c.ResourceSet().PresentMode)
	}
	c.SetPresentMode(frames.PresentModeMailbox)
	drawFrames(t, c, 1)
	if c.Rebuilds() != 0 {
		t.Fatalf("unchanged present mode triggered a rebuild")
	}

	c.SetPresentMode(frames.PresentModeImmediate)
	drawFrames(t, c, 1)
	if c.Rebuilds() != 1 || c.ResourceSet().PresentMode != frames.PresentModeImmediate {
		t.Fatalf("rebuilds = %d, present mode = %s", c.Rebuilds(), c.ResourceSet().PresentMode)
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_FenceTimeoutIsFatal(t *testing.T) {
	dev := newDevice(t)
	opts := defaultOptions(2)
	opts.FenceTimeout = 10 * time.Millisecond
	c, err := frames.Initialize(dev, opts)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	drawFrames(t, c, 2)

	dev.Stall(true)
	err = c.DrawFrame()
	if !errors.Is(err, core.ErrFenceTimeout) {
		t.Fatalf("DrawFrame = %v, want ErrFenceTimeout", err)
	}
	if c.State() != frames.StateWaitingOnSlotFence {
		t.Fatalf("state = %s, want WaitingOnSlotFence", c.State())
	}
}

func TestCoordinator_ShutdownOrder(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 4)
	dev.ClearEvents()

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	events := dev.Events()
	if events[0].Op != headless.OpWaitIdle {
		t.Fatalf("first shutdown call = %s, want wait_idle", events[0].Op)
	}
	if last := events[len(events)-1].Op; last != headless.OpDestroyDevice {
		t.Fatalf("last shutdown call = %s, want destroy_device", last)
	}
	swapchain := indexOf(events, headless.OpDestroySwapchain, 0)
	semaphore := indexOf(events, headless.OpDestroySemaphore, 0)
	fence := indexOf(events, headless.OpDestroyFence, 0)
	if swapchain < 0 || semaphore < swapchain || fence < swapchain {
		t.Fatalf("sync objects destroyed before the resource set: swapchain=%d semaphore=%d fence=%d", swapchain, semaphore, fence)
	}
	if n := dev.Live(); n != 0 {
		t.Fatalf("live objects after shutdown = %d", n)
	}
	assertNoViolations(t, dev)

	if c.State() != frames.StateShutDown {
		t.Fatalf("state = %s, want ShutDown", c.State())
	}
	if err := c.DrawFrame(); !errors.Is(err, core.ErrCoordinatorShutDown) {
		t.Fatalf("DrawFrame after shutdown = %v", err)
	}
	if err := c.Shutdown(); !errors.Is(err, core.ErrCoordinatorShutDown) {
		t.Fatalf("second Shutdown = %v", err)
	}
}

func TestCoordinator_RecordsTriangleWithShaders(t *testing.T) {
	dev := newDevice(t)
	opts := defaultOptions(2)
	opts.VertexShader = []byte{1, 2, 3, 4}
	opts.FragmentShader = []byte{1, 2, 3, 4}
	c, err := frames.Initialize(dev, opts)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	want := []string{headless.CmdBeginRenderPass, headless.CmdBindPipeline, "draw(3,1,0,0)", headless.CmdEndRenderPass}
	for _, cb := range c.ResourceSet().CommandBuffers {
		if got := dev.Commands(cb); !slices.Equal(got, want) {
			t.Fatalf("command buffer %d = %v, want %v", cb, got, want)
		}
	}
	drawFrames(t, c, 3)
	assertNoViolations(t, dev)
}

func TestCoordinator_MetricsCountEvents(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 2)
	dev.FailNextPresent(frames.SurfaceSuboptimal)
	drawFrames(t, c, 1)
	dev.FailNextAcquire(frames.SurfaceOutOfDate)
	drawFrames(t, c, 1)

	m := c.Metrics().Snapshot()
	if m.Submissions != 3 || m.Presents != 3 {
		t.Errorf("submissions=%d presents=%d, want 3 and 3", m.Submissions, m.Presents)
	}
	if m.Rebuilds != 2 || m.Suboptimal != 1 || m.OutOfDate != 1 {
		t.Errorf("rebuilds=%d suboptimal=%d out of date=%d, want 2, 1, 1", m.Rebuilds, m.Suboptimal, m.OutOfDate)
	}
	if c.FrameNumber() != 3 {
		t.Errorf("frame number = %d, want 3", c.FrameNumber())
	}
}

func TestInitialize_RejectsZeroFramesInFlight(t *testing.T) {
	if _, err := frames.Initialize(newDevice(t), defaultOptions(0)); err == nil {
		t.Fatalf("expected an error for zero frames in flight")
	}
}

func TestCoordinator_FailedIdleWaitKeepsResourceSet(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	drawFrames(t, c, 2)
	before := c.ResourceSet()

	dev.Stall(true)
	c.NotifyResize(800, 600)
	if err := c.DrawFrame(); !errors.Is(err, core.ErrFenceTimeout) {
		t.Fatalf("DrawFrame = %v, want ErrFenceTimeout", err)
	}
	if c.ResourceSet() != before {
		t.Fatalf("resource set dropped by a rebuild that never reached idle")
	}

	dev.Stall(false)
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := dev.Live(); n != 0 {
		t.Fatalf("live objects after shutdown = %d", n)
	}
	assertNoViolations(t, dev)
}

func TestCoordinator_RebuildChangesImageCount(t *testing.T) {
	c, dev := newCoordinator(t, 2)
	if n := c.ResourceSet().ImageCount(); n != 3 {
		t.Fatalf("image count = %d, want 3", n)
	}
	drawFrames(t, c, 4)

	for _, want := range []int{5, 2} {
		previous := c.Registry().ImageCount()
		dev.SetImageCount(uint32(want))
		// Out of date on acquire rebuilds without submitting, so no image
		// fence can be bound afterwards.
		dev.FailNextAcquire(frames.SurfaceOutOfDate)
		if err := c.DrawFrame(); err != nil {
			t.Fatalf("DrawFrame: %v", err)
		}

		set := c.ResourceSet()
		if set.ImageCount() != want {
			t.Fatalf("image count = %d, want %d", set.ImageCount(), want)
		}
		if got := c.Registry().ImageCount(); got != want {
			t.Fatalf("registry image count = %d, resource set has %d", got, want)
		}
		set.Validate()
		for i := 0; i < want; i++ {
			if f := c.Registry().Fence(frames.FenceImageAvailable(uint32(i))); f != frames.NullFence {
				t.Fatalf("image %d fence = %d after rebuild, want absent", i, f)
			}
		}
		if previous > want {
			expectPanic(t, core.ErrUnknownSyncUsage, func() {
				c.Registry().Fence(frames.FenceImageAvailable(uint32(want)))
			})
		}

		drawFrames(t, c, 2*want)
		assertNoViolations(t, dev)
	}

	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := dev.Live(); n != 0 {
		t.Fatalf("live objects after shutdown = %d", n)
	}
}

func TestCoordinator_FailedRecordingClearsImageFences(t *testing.T) {
	dev := newDevice(t)
	opts := defaultOptions(2)
	fail := false
	opts.Recorder = frames.RecorderFunc(func(enc frames.CommandEncoder, set *frames.ResourceSet) error {
		if fail {
			return errors.New("recording failed")
		}
		return frames.ClearRecorder{ClearDepth: 1}.Record(enc, set)
	})
	c, err := frames.Initialize(dev, opts)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	drawFrames(t, c, 2)

	fail = true
	c.NotifyResize(800, 600)
	if err := c.DrawFrame(); err == nil {
		t.Fatalf("DrawFrame succeeded with a failing recorder")
	}
	if c.ResourceSet() != nil {
		t.Fatalf("torn down resource set still referenced")
	}
	if n := c.Registry().ImageCount(); n != 0 {
		t.Fatalf("registry image count = %d with no resource set", n)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if n := dev.Live(); n != 0 {
		t.Fatalf("live objects after shutdown = %d", n)
	}
}
