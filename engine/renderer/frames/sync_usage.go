package frames

import "fmt"

type UsageKind uint8

const (
	UsageSemaphoreImageAvailable UsageKind = iota
	UsageSemaphoreRenderFinished
	UsageFenceCommandBufferExec
	UsageFenceImageAvailable
)

func (k UsageKind) IsFence() bool {
	return k == UsageFenceCommandBufferExec || k == UsageFenceImageAvailable
}

func (k UsageKind) String() string {
	switch k {
	case UsageSemaphoreImageAvailable:
		return "semaphore.ImageAvailable"
	case UsageSemaphoreRenderFinished:
		return "semaphore.RenderFinished"
	case UsageFenceCommandBufferExec:
		return "fence.CommandBufferExec"
	case UsageFenceImageAvailable:
		return "fence.ImageAvailable"
	}
	return fmt.Sprintf("usage(%d)", uint8(k))
}

// SyncUsage names the role a sync object plays. Index is a frame slot for
// every kind except UsageFenceImageAvailable, where it is a swapchain image
// index.
type SyncUsage struct {
	Kind  UsageKind
	Index uint32
}

func (u SyncUsage) String() string {
	return fmt.Sprintf("%s(%d)", u.Kind, u.Index)
}

func SemaphoreImageAvailable(slot FrameSlot) SyncUsage {
	return SyncUsage{Kind: UsageSemaphoreImageAvailable, Index: uint32(slot)}
}

func SemaphoreRenderFinished(slot FrameSlot) SyncUsage {
	return SyncUsage{Kind: UsageSemaphoreRenderFinished, Index: uint32(slot)}
}

func FenceCommandBufferExec(slot FrameSlot) SyncUsage {
	return SyncUsage{Kind: UsageFenceCommandBufferExec, Index: uint32(slot)}
}

func FenceImageAvailable(image uint32) SyncUsage {
	return SyncUsage{Kind: UsageFenceImageAvailable, Index: image}
}
