package frames

import (
	"fmt"

	"github.com/spaghettifunk/anima-frames/engine/core"
)

// SyncRegistry owns every fence and semaphore of the frame pipeline and
// indexes them by SyncUsage.
//
// Slot fences and per-image fences share one backing slice: the first
// framesInFlight entries are the slot fences, created signaled so the first
// wait on each slot returns at once. The remaining entries are per-image
// "last used by" fences. They start as NullFence, meaning no frame has
// touched the image yet, and only ever hold a copy of a slot fence.
type SyncRegistry struct {
	device         SyncDevice
	framesInFlight uint8
	imageCount     int

	semaphores []Semaphore
	fences     []Fence
	index      map[SyncUsage]int
}

func NewSyncRegistry(device SyncDevice, framesInFlight uint8, imageCount int) (*SyncRegistry, error) {
	if framesInFlight == 0 {
		return nil, fmt.Errorf("frames in flight must be at least 1")
	}
	r := &SyncRegistry{
		device:         device,
		framesInFlight: framesInFlight,
		semaphores:     make([]Semaphore, 0, 2*int(framesInFlight)),
		fences:         make([]Fence, 0, int(framesInFlight)+imageCount),
		index:          make(map[SyncUsage]int),
	}

	for _, kind := range []UsageKind{UsageSemaphoreImageAvailable, UsageSemaphoreRenderFinished} {
		for slot := FrameSlot(0); slot < FrameSlot(framesInFlight); slot++ {
			s, err := device.CreateSemaphore()
			if err != nil {
				r.Destroy()
				err = fmt.Errorf("failed to create semaphore %s: %w", SyncUsage{kind, uint32(slot)}, err)
				core.LogError(err.Error())
				return nil, err
			}
			r.index[SyncUsage{kind, uint32(slot)}] = len(r.semaphores)
			r.semaphores = append(r.semaphores, s)
		}
	}

	for slot := FrameSlot(0); slot < FrameSlot(framesInFlight); slot++ {
		f, err := device.CreateFence(true)
		if err != nil {
			r.Destroy()
			err = fmt.Errorf("failed to create fence %s: %w", FenceCommandBufferExec(slot), err)
			core.LogError(err.Error())
			return nil, err
		}
		r.index[FenceCommandBufferExec(slot)] = len(r.fences)
		r.fences = append(r.fences, f)
	}

	r.resetImages(imageCount)
	return r, nil
}

func (r *SyncRegistry) FramesInFlight() uint8 {
	return r.framesInFlight
}

func (r *SyncRegistry) ImageCount() int {
	return r.imageCount
}

func (r *SyncRegistry) lookup(usage SyncUsage, fence bool) int {
	i, ok := r.index[usage]
	if !ok || usage.Kind.IsFence() != fence {
		panic(fmt.Errorf("%w: %s", core.ErrUnknownSyncUsage, usage))
	}
	return i
}

// Semaphore panics if usage was never registered or names a fence.
func (r *SyncRegistry) Semaphore(usage SyncUsage) Semaphore {
	return r.semaphores[r.lookup(usage, false)]
}

// Fence panics if usage was never registered or names a semaphore. A
// FenceImageAvailable usage returns NullFence while the image is unowned.
func (r *SyncRegistry) Fence(usage SyncUsage) Fence {
	return r.fences[r.lookup(usage, true)]
}

// Rebind records that fence now guards the image named by usage. Only
// FenceImageAvailable usages can be rebound.
func (r *SyncRegistry) Rebind(usage SyncUsage, fence Fence) {
	if usage.Kind != UsageFenceImageAvailable {
		panic(fmt.Errorf("%w: %s cannot be rebound", core.ErrUnknownSyncUsage, usage))
	}
	r.fences[r.lookup(usage, true)] = fence
}

// Owner reports which slot last submitted work against image.
func (r *SyncRegistry) Owner(image uint32) (FrameSlot, bool) {
	f := r.Fence(FenceImageAvailable(image))
	if f == NullFence {
		return 0, false
	}
	for slot := 0; slot < int(r.framesInFlight); slot++ {
		if r.fences[slot] == f {
			return FrameSlot(slot), true
		}
	}
	return 0, false
}

// resetImages drops every image fence and resizes the image namespace. Only
// valid while the device is idle, i.e. inside a rebuild.
func (r *SyncRegistry) resetImages(count int) {
	for i := 0; i < r.imageCount; i++ {
		delete(r.index, FenceImageAvailable(uint32(i)))
	}
	r.fences = r.fences[:len(r.fences)-r.imageCount]
	for i := 0; i < count; i++ {
		r.index[FenceImageAvailable(uint32(i))] = len(r.fences)
		r.fences = append(r.fences, NullFence)
	}
	r.imageCount = count
}

// Destroy releases the semaphores and slot fences. Image entries alias slot
// fences and are not destroyed separately.
func (r *SyncRegistry) Destroy() {
	for _, s := range r.semaphores {
		r.device.DestroySemaphore(s)
	}
	slotFences := len(r.fences) - r.imageCount
	for _, f := range r.fences[:slotFences] {
		r.device.DestroyFence(f)
	}
	r.semaphores = nil
	r.fences = nil
	r.imageCount = 0
	r.index = make(map[SyncUsage]int)
}
