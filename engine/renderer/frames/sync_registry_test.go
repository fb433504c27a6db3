package frames_test

import (
	"math"
	"testing"

	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
	"github.com/spaghettifunk/anima-frames/engine/renderer/headless"
)

func TestSyncRegistry_CreatesEveryEntry(t *testing.T) {
	dev := newDevice(t)
	r, err := frames.NewSyncRegistry(dev, 2, 3)
	if err != nil {
		t.Fatalf("NewSyncRegistry: %v", err)
	}

	if got := dev.Count(headless.OpCreateSemaphore); got != 4 {
		t.Errorf("semaphores created = %d, want 4", got)
	}
	if got := dev.Count(headless.OpCreateFence); got != 2 {
		t.Errorf("fences created = %d, want 2", got)
	}

	seen := make(map[frames.Semaphore]bool)
	for slot := frames.FrameSlot(0); slot < 2; slot++ {
		for _, usage := range []frames.SyncUsage{frames.SemaphoreImageAvailable(slot), frames.SemaphoreRenderFinished(slot)} {
			s := r.Semaphore(usage)
			if s == frames.NullSemaphore {
				t.Fatalf("%s is null", usage)
			}
			if seen[s] {
				t.Fatalf("%s shares a semaphore with another usage", usage)
			}
			seen[s] = true
		}
		if r.Fence(frames.FenceCommandBufferExec(slot)) == frames.NullFence {
			t.Fatalf("slot %d fence is null", slot)
		}
	}
	for image := uint32(0); image < 3; image++ {
		if f := r.Fence(frames.FenceImageAvailable(image)); f != frames.NullFence {
			t.Errorf("image %d fence = %d, want absent", image, f)
		}
	}
	if r.ImageCount() != 3 || r.FramesInFlight() != 2 {
		t.Errorf("registry sizes = %d frames, %d images", r.FramesInFlight(), r.ImageCount())
	}
}

func TestSyncRegistry_SlotFencesStartSignaled(t *testing.T) {
	dev := newDevice(t)
	r, err := frames.NewSyncRegistry(dev, 3, 0)
	if err != nil {
		t.Fatalf("NewSyncRegistry: %v", err)
	}
	for slot := frames.FrameSlot(0); slot < 3; slot++ {
		if err := dev.WaitForFence(r.Fence(frames.FenceCommandBufferExec(slot)), math.MaxUint64); err != nil {
			t.Errorf("first wait on slot %d: %v", slot, err)
		}
	}
}

func TestSyncRegistry_UnknownUsagePanics(t *testing.T) {
	dev := newDevice(t)
	r, err := frames.NewSyncRegistry(dev, 2, 3)
	if err != nil {
		t.Fatalf("NewSyncRegistry: %v", err)
	}

	tests := []struct {
		name string
		fn   func()
	}{
		{"slot_out_of_range", func() { r.Fence(frames.FenceCommandBufferExec(2)) }},
		{"image_out_of_range", func() { r.Fence(frames.FenceImageAvailable(3)) }},
		{"semaphore_out_of_range", func() { r.Semaphore(frames.SemaphoreRenderFinished(7)) }},
		{"fence_usage_as_semaphore", func() { r.Semaphore(frames.FenceCommandBufferExec(0)) }},
		{"semaphore_usage_as_fence", func() { r.Fence(frames.SemaphoreImageAvailable(0)) }},
		{"rebind_slot_fence", func() { r.Rebind(frames.FenceCommandBufferExec(0), frames.NullFence) }},
		{"rebind_unknown_image", func() { r.Rebind(frames.FenceImageAvailable(9), frames.NullFence) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			expectPanic(t, core.ErrUnknownSyncUsage, tc.fn)
		})
	}
}

func TestSyncRegistry_RebindTransfersOwnership(t *testing.T) {
	dev := newDevice(t)
	r, err := frames.NewSyncRegistry(dev, 2, 3)
	if err != nil {
		t.Fatalf("NewSyncRegistry: %v", err)
	}
	if _, ok := r.Owner(1); ok {
		t.Fatalf("image 1 owned before any frame")
	}

	r.Rebind(frames.FenceImageAvailable(1), r.Fence(frames.FenceCommandBufferExec(0)))
	if slot, ok := r.Owner(1); !ok || slot != 0 {
		t.Fatalf("Owner(1) = %d, %v, want 0, true", slot, ok)
	}

	r.Rebind(frames.FenceImageAvailable(1), r.Fence(frames.FenceCommandBufferExec(1)))
	if slot, ok := r.Owner(1); !ok || slot != 1 {
		t.Fatalf("Owner(1) = %d, %v, want 1, true", slot, ok)
	}
	// Slot fences are untouched by a rebind.
	if r.Fence(frames.FenceCommandBufferExec(0)) == r.Fence(frames.FenceCommandBufferExec(1)) {
		t.Fatalf("slot fences aliased after rebind")
	}
}

func TestSyncRegistry_DestroyReleasesEverything(t *testing.T) {
	dev := newDevice(t)
	r, err := frames.NewSyncRegistry(dev, 3, 4)
	if err != nil {
		t.Fatalf("NewSyncRegistry: %v", err)
	}
	r.Rebind(frames.FenceImageAvailable(2), r.Fence(frames.FenceCommandBufferExec(1)))
	r.Destroy()

	if n := dev.Live(); n != 0 {
		t.Errorf("live objects after Destroy = %d", n)
	}
	if got := dev.Count(headless.OpDestroyFence); got != 3 {
		t.Errorf("fences destroyed = %d, want 3", got)
	}
	assertNoViolations(t, dev)
}

func TestSyncRegistry_RejectsZeroFrames(t *testing.T) {
	if _, err := frames.NewSyncRegistry(newDevice(t), 0, 3); err == nil {
		t.Fatalf("expected an error for zero frames in flight")
	}
}
