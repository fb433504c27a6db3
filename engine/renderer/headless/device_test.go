package headless

import (
	"errors"
	"io"
	"math"
	"os"
	"testing"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

func TestMain(m *testing.M) {
	core.SetLogOutput(io.Discard)
	os.Exit(m.Run())
}

func newTestSwapchain(t *testing.T, d *Device) (frames.Swapchain, []frames.Image) {
	t.Helper()
	sc, images, err := d.CreateSwapchain(frames.SwapchainConfig{
		Format:     d.opts.Formats[0],
		Extent:     d.surface,
		ImageCount: 3,
	})
	if err != nil {
		t.Fatalf("CreateSwapchain: %v", err)
	}
	return sc, images
}

func recordedBuffer(t *testing.T, d *Device) frames.CommandBuffer {
	t.Helper()
	cbs, err := d.AllocateCommandBuffers(1)
	if err != nil {
		t.Fatalf("AllocateCommandBuffers: %v", err)
	}
	if err := d.BeginCommandBuffer(cbs[0]); err != nil {
		t.Fatalf("BeginCommandBuffer: %v", err)
	}
	if err := d.EndCommandBuffer(cbs[0]); err != nil {
		t.Fatalf("EndCommandBuffer: %v", err)
	}
	return cbs[0]
}

func TestDevice_FencesRetireLazily(t *testing.T) {
	d := New(DefaultOptions())
	cb := recordedBuffer(t, d)
	a, _ := d.CreateFence(false)
	b, _ := d.CreateFence(false)

	if err := d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, a); err != nil {
		t.Fatalf("submit a: %v", err)
	}
	if err := d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, b); err != nil {
		t.Fatalf("submit b: %v", err)
	}
	if d.InFlight() != 2 {
		t.Fatalf("in flight = %d, want 2", d.InFlight())
	}

	// Queue order: waiting on b completes a as well.
	if err := d.WaitForFence(b, math.MaxUint64); err != nil {
		t.Fatalf("wait b: %v", err)
	}
	if d.InFlight() != 0 {
		t.Fatalf("in flight = %d, want 0", d.InFlight())
	}
	if !d.fences[a].signaled {
		t.Fatalf("fence a not signaled after a later fence completed")
	}
}

func TestDevice_SubmitContract(t *testing.T) {
	tests := []struct {
		name string
		run  func(d *Device, cb frames.CommandBuffer) error
		want error
	}{
		{"signaled_fence", func(d *Device, cb frames.CommandBuffer) error {
			f, _ := d.CreateFence(true)
			return d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, f)
		}, core.ErrFenceNotReset},
		{"fence_already_pending", func(d *Device, cb frames.CommandBuffer) error {
			f, _ := d.CreateFence(false)
			if err := d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, f); err != nil {
				return err
			}
			return d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, f)
		}, core.ErrFenceNotReset},
		{"unsignaled_wait_semaphore", func(d *Device, cb frames.CommandBuffer) error {
			s, _ := d.CreateSemaphore()
			return d.QueueSubmit(frames.SubmitInfo{WaitSemaphores: []frames.Semaphore{s}, CommandBuffers: []frames.CommandBuffer{cb}}, frames.NullFence)
		}, core.ErrSemaphoreNotSignaled},
		{"freed_command_buffer", func(d *Device, cb frames.CommandBuffer) error {
			d.FreeCommandBuffers([]frames.CommandBuffer{cb})
			return d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, frames.NullFence)
		}, core.ErrInvalidHandle},
		{"wait_on_unsubmitted_fence", func(d *Device, cb frames.CommandBuffer) error {
			f, _ := d.CreateFence(false)
			return d.WaitForFence(f, math.MaxUint64)
		}, core.ErrFenceTimeout},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := New(DefaultOptions())
			if err := tc.run(d, recordedBuffer(t, d)); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestDevice_AcquireSignalsOnce(t *testing.T) {
	d := New(DefaultOptions())
	sc, _ := newTestSwapchain(t, d)
	s, _ := d.CreateSemaphore()

	index, status, err := d.AcquireNextImage(sc, math.MaxUint64, s)
	if err != nil || status != frames.SurfaceOptimal || index != 0 {
		t.Fatalf("acquire = %d, %s, %v", index, status, err)
	}
	if _, _, err := d.AcquireNextImage(sc, math.MaxUint64, s); !errors.Is(err, core.ErrSemaphoreBusy) {
		t.Fatalf("second acquire on a signaled semaphore = %v, want ErrSemaphoreBusy", err)
	}
}

func TestDevice_ResizedSurfaceIsOutOfDate(t *testing.T) {
	d := New(DefaultOptions())
	sc, _ := newTestSwapchain(t, d)
	s, _ := d.CreateSemaphore()

	d.SetSurfaceExtent(frames.Extent2D{Width: 100, Height: 100})
	_, status, err := d.AcquireNextImage(sc, math.MaxUint64, s)
	if err != nil || status != frames.SurfaceOutOfDate {
		t.Fatalf("acquire = %s, %v, want out of date", status, err)
	}
	if d.semaphores[s] {
		t.Fatalf("semaphore signaled by a failed acquire")
	}
}

func TestDevice_FaultInjectionIsOrdered(t *testing.T) {
	d := New(DefaultOptions())
	sc, _ := newTestSwapchain(t, d)
	d.FailNextAcquire(frames.SurfaceSuboptimal, frames.SurfaceOutOfDate)

	want := []frames.SurfaceStatus{frames.SurfaceSuboptimal, frames.SurfaceOutOfDate, frames.SurfaceOptimal}
	for i, w := range want {
		s, _ := d.CreateSemaphore()
		if _, got, err := d.AcquireNextImage(sc, math.MaxUint64, s); err != nil || got != w {
			t.Fatalf("acquire %d = %s, %v, want %s", i, got, err, w)
		}
	}
}

func TestDevice_DestroyOrderViolations(t *testing.T) {
	d := New(DefaultOptions())
	sc, images := newTestSwapchain(t, d)
	view, err := d.CreateImageView(images[0], frames.FormatB8G8R8A8SRGB)
	if err != nil {
		t.Fatalf("CreateImageView: %v", err)
	}

	d.DestroySwapchain(sc)
	if len(d.Violations()) != 1 {
		t.Fatalf("violations = %v, want one for the live image view", d.Violations())
	}
	d.DestroyImageView(view)
	d.DestroyImageView(view)
	if len(d.Violations()) != 2 || !errors.Is(d.Violations()[1], core.ErrInvalidHandle) {
		t.Fatalf("violations = %v, want a double destroy", d.Violations())
	}
}

func TestDevice_DestroyReportsLeaks(t *testing.T) {
	d := New(DefaultOptions())
	if _, err := d.CreateFence(true); err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	d.Destroy()
	if !d.Destroyed() || len(d.Violations()) != 1 {
		t.Fatalf("destroyed=%v violations=%v, want one leak", d.Destroyed(), d.Violations())
	}
}

func TestDevice_StallTimesOut(t *testing.T) {
	d := New(DefaultOptions())
	cb := recordedBuffer(t, d)
	f, _ := d.CreateFence(false)
	if err := d.QueueSubmit(frames.SubmitInfo{CommandBuffers: []frames.CommandBuffer{cb}}, f); err != nil {
		t.Fatalf("submit: %v", err)
	}
	d.Stall(true)
	if err := d.WaitForFence(f, 1000); !errors.Is(err, core.ErrFenceTimeout) {
		t.Fatalf("wait = %v, want ErrFenceTimeout", err)
	}
	if err := d.WaitIdle(); !errors.Is(err, core.ErrFenceTimeout) {
		t.Fatalf("wait idle = %v, want ErrFenceTimeout", err)
	}
	d.Stall(false)
	if err := d.WaitIdle(); err != nil {
		t.Fatalf("wait idle = %v", err)
	}
}
