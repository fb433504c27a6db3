package frames

import (
	"fmt"
	"strings"
)

// FrameSlot identifies one of the framesInFlight sets of per-frame sync
// objects. It is always in [0, framesInFlight).
type FrameSlot uint32

// Opaque device handles. The zero value of each is the null handle; backends
// map them onto their native objects.
type (
	Fence         uint64
	Semaphore     uint64
	Swapchain     uint64
	Image         uint64
	ImageView     uint64
	Framebuffer   uint64
	CommandBuffer uint64
	RenderPass    uint64
	Pipeline      uint64
	DepthBuffer   uint64
)

const (
	NullFence         Fence         = 0
	NullSemaphore     Semaphore     = 0
	NullSwapchain     Swapchain     = 0
	NullImage         Image         = 0
	NullImageView     ImageView     = 0
	NullFramebuffer   Framebuffer   = 0
	NullCommandBuffer CommandBuffer = 0
	NullRenderPass    RenderPass    = 0
	NullPipeline      Pipeline      = 0
	NullDepthBuffer   DepthBuffer   = 0
)

type Extent2D struct {
	Width  uint32
	Height uint32
}

func (e Extent2D) IsZeroArea() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// UndefinedExtentSize in SurfaceCapabilities.CurrentExtent means the surface
// size is decided by the swapchain.
const UndefinedExtentSize uint32 = 0xFFFFFFFF

type Format uint32

const (
	FormatUndefined Format = iota
	FormatB8G8R8A8Unorm
	FormatB8G8R8A8SRGB
	FormatR8G8B8A8Unorm
	FormatR8G8B8A8SRGB
	FormatA2B10G10R10Unorm
	FormatR16G16B16A16Sfloat
)

var formatNames = map[Format]string{
	FormatUndefined:          "undefined",
	FormatB8G8R8A8Unorm:      "b8g8r8a8_unorm",
	FormatB8G8R8A8SRGB:       "b8g8r8a8_srgb",
	FormatR8G8B8A8Unorm:      "r8g8b8a8_unorm",
	FormatR8G8B8A8SRGB:       "r8g8b8a8_srgb",
	FormatA2B10G10R10Unorm:   "a2b10g10r10_unorm",
	FormatR16G16B16A16Sfloat: "r16g16b16a16_sfloat",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("format(%d)", uint32(f))
}

// ParseFormat accepts the names printed by Format.String. An empty string is
// FormatUndefined, meaning no preference.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return FormatUndefined, nil
	}
	for f, n := range formatNames {
		if n == name {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown surface format %q", name)
}

type ColorSpace uint32

const (
	ColorSpaceSRGBNonlinear ColorSpace = iota
	ColorSpaceExtendedSRGBLinear
	ColorSpaceHDR10
)

type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

type PresentMode uint32

const (
	// PresentModeAny expresses no preference.
	PresentModeAny PresentMode = iota
	PresentModeImmediate
	PresentModeMailbox
	PresentModeFIFO
	PresentModeFIFORelaxed
)

var presentModeNames = map[PresentMode]string{
	PresentModeAny:         "",
	PresentModeImmediate:   "immediate",
	PresentModeMailbox:     "mailbox",
	PresentModeFIFO:        "fifo",
	PresentModeFIFORelaxed: "fifo_relaxed",
}

func (m PresentMode) String() string {
	if m == PresentModeAny {
		return "any"
	}
	if name, ok := presentModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("present_mode(%d)", uint32(m))
}

func ParsePresentMode(name string) (PresentMode, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range presentModeNames {
		if n == name {
			return m, nil
		}
	}
	return PresentModeAny, fmt.Errorf("unknown present mode %q", name)
}

type SurfaceCapabilities struct {
	MinImageCount uint32
	// Zero means no upper bound.
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

type SurfaceSupport struct {
	Capabilities SurfaceCapabilities
	Formats      []SurfaceFormat
	PresentModes []PresentMode
}

// SurfaceStatus is what acquire and present report about the swapchain.
// Suboptimal and OutOfDate are transient signals, not errors.
type SurfaceStatus uint8

const (
	SurfaceOptimal SurfaceStatus = iota
	SurfaceSuboptimal
	SurfaceOutOfDate
)

func (s SurfaceStatus) String() string {
	switch s {
	case SurfaceOptimal:
		return "optimal"
	case SurfaceSuboptimal:
		return "suboptimal"
	case SurfaceOutOfDate:
		return "out of date"
	}
	return fmt.Sprintf("surface_status(%d)", uint8(s))
}
