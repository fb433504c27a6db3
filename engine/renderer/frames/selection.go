package frames

import (
	"slices"

	"github.com/spaghettifunk/anima-frames/engine/math"
)

// preferredFormats are tried, in order, after the caller's own choice.
var preferredFormats = []SurfaceFormat{
	{Format: FormatB8G8R8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
	{Format: FormatR8G8B8A8SRGB, ColorSpace: ColorSpaceSRGBNonlinear},
}

// ChooseSurfaceFormat picks desired when supported, then an 8-bit sRGB
// non-linear format, then whatever the surface lists first. available must
// not be empty.
func ChooseSurfaceFormat(available []SurfaceFormat, desired SurfaceFormat) SurfaceFormat {
	// A single undefined entry means the surface has no preferred format.
	if len(available) == 1 && available[0].Format == FormatUndefined {
		if desired.Format != FormatUndefined {
			return desired
		}
		return preferredFormats[0]
	}
	if desired.Format != FormatUndefined && slices.Contains(available, desired) {
		return desired
	}
	for _, want := range preferredFormats {
		if slices.Contains(available, want) {
			return want
		}
	}
	return available[0]
}

// ChoosePresentMode picks desired when supported, then mailbox, then FIFO,
// which every surface has to support.
func ChoosePresentMode(available []PresentMode, desired PresentMode) PresentMode {
	if desired != PresentModeAny && slices.Contains(available, desired) {
		return desired
	}
	if slices.Contains(available, PresentModeMailbox) {
		return PresentModeMailbox
	}
	return PresentModeFIFO
}

// ChooseExtent uses the surface's current extent unless the surface lets the
// swapchain decide, in which case requested is clamped to the allowed range.
func ChooseExtent(caps SurfaceCapabilities, requested Extent2D) Extent2D {
	if caps.CurrentExtent.Width != UndefinedExtentSize {
		return caps.CurrentExtent
	}
	return Extent2D{
		Width:  math.Clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: math.Clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChooseImageCount asks for one image more than the minimum so acquire does
// not stall on the driver. A MaxImageCount of zero means unbounded.
func ChooseImageCount(caps SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}
