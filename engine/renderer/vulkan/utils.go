package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
	"github.com/spaghettifunk/anima-frames/engine/core"
	"github.com/spaghettifunk/anima-frames/engine/renderer/frames"
)

var resultNames = map[vk.Result]string{
	vk.Success:                   "VK_SUCCESS",
	vk.NotReady:                  "VK_NOT_READY",
	vk.Timeout:                   "VK_TIMEOUT",
	vk.EventSet:                  "VK_EVENT_SET",
	vk.EventReset:                "VK_EVENT_RESET",
	vk.Incomplete:                "VK_INCOMPLETE",
	vk.Suboptimal:                "VK_SUBOPTIMAL_KHR",
	vk.ErrorOutOfHostMemory:      "VK_ERROR_OUT_OF_HOST_MEMORY",
	vk.ErrorOutOfDeviceMemory:    "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	vk.ErrorInitializationFailed: "VK_ERROR_INITIALIZATION_FAILED",
	vk.ErrorDeviceLost:           "VK_ERROR_DEVICE_LOST",
	vk.ErrorMemoryMapFailed:      "VK_ERROR_MEMORY_MAP_FAILED",
	vk.ErrorLayerNotPresent:      "VK_ERROR_LAYER_NOT_PRESENT",
	vk.ErrorExtensionNotPresent:  "VK_ERROR_EXTENSION_NOT_PRESENT",
	vk.ErrorFeatureNotPresent:    "VK_ERROR_FEATURE_NOT_PRESENT",
	vk.ErrorIncompatibleDriver:   "VK_ERROR_INCOMPATIBLE_DRIVER",
	vk.ErrorTooManyObjects:       "VK_ERROR_TOO_MANY_OBJECTS",
	vk.ErrorFormatNotSupported:   "VK_ERROR_FORMAT_NOT_SUPPORTED",
	vk.ErrorFragmentedPool:       "VK_ERROR_FRAGMENTED_POOL",
	vk.ErrorSurfaceLost:          "VK_ERROR_SURFACE_LOST_KHR",
	vk.ErrorNativeWindowInUse:    "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	vk.ErrorOutOfDate:            "VK_ERROR_OUT_OF_DATE_KHR",
	vk.ErrorIncompatibleDisplay:  "VK_ERROR_INCOMPATIBLE_DISPLAY_KHR",
	vk.ErrorOutOfPoolMemory:      "VK_ERROR_OUT_OF_POOL_MEMORY",
	vk.ErrorUnknown:              "VK_ERROR_UNKNOWN",
}

func VulkanResultString(result vk.Result) string {
	if name, ok := resultNames[result]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", int32(result))
}

// resultError turns a non-success result into an error, logging it. Device
// loss and timeouts wrap the matching core sentinels.
func resultError(op string, result vk.Result) error {
	var err error
	switch result {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		err = fmt.Errorf("%s: %w", op, core.ErrDeviceLost)
	case vk.Timeout, vk.NotReady:
		err = fmt.Errorf("%s: %w", op, core.ErrFenceTimeout)
	default:
		err = fmt.Errorf("%s failed with %s", op, VulkanResultString(result))
	}
	core.LogError(err.Error())
	return err
}

// surfaceStatus maps the results acquire and present may legally return.
// Anything else is an error.
func surfaceStatus(op string, result vk.Result) (frames.SurfaceStatus, error) {
	switch result {
	case vk.Success:
		return frames.SurfaceOptimal, nil
	case vk.Suboptimal:
		return frames.SurfaceSuboptimal, nil
	case vk.ErrorOutOfDate:
		return frames.SurfaceOutOfDate, nil
	}
	return frames.SurfaceOptimal, resultError(op, result)
}

var formats = map[frames.Format]vk.Format{
	frames.FormatUndefined:          vk.FormatUndefined,
	frames.FormatB8G8R8A8Unorm:      vk.FormatB8g8r8a8Unorm,
	frames.FormatB8G8R8A8SRGB:       vk.FormatB8g8r8a8Srgb,
	frames.FormatR8G8B8A8Unorm:      vk.FormatR8g8b8a8Unorm,
	frames.FormatR8G8B8A8SRGB:       vk.FormatR8g8b8a8Srgb,
	frames.FormatA2B10G10R10Unorm:   vk.FormatA2b10g10r10UnormPack32,
	frames.FormatR16G16B16A16Sfloat: vk.FormatR16g16b16a16Sfloat,
}

var colorSpaces = map[frames.ColorSpace]vk.ColorSpace{
	frames.ColorSpaceSRGBNonlinear:      vk.ColorSpaceSrgbNonlinear,
	frames.ColorSpaceExtendedSRGBLinear: vk.ColorSpaceExtendedSrgbLinear,
	frames.ColorSpaceHDR10:              vk.ColorSpaceHdr10St2084,
}

var presentModes = map[frames.PresentMode]vk.PresentMode{
	frames.PresentModeImmediate:   vk.PresentModeImmediate,
	frames.PresentModeMailbox:     vk.PresentModeMailbox,
	frames.PresentModeFIFO:        vk.PresentModeFifo,
	frames.PresentModeFIFORelaxed: vk.PresentModeFifoRelaxed,
}

func toVkFormat(f frames.Format) vk.Format {
	if v, ok := formats[f]; ok {
		return v
	}
	return vk.FormatUndefined
}

// fromVkFormat reports false for formats the frames package has no name for.
func fromVkFormat(v vk.Format) (frames.Format, bool) {
	for f, vf := range formats {
		if vf == v {
			return f, true
		}
	}
	return frames.FormatUndefined, false
}

func toVkColorSpace(c frames.ColorSpace) vk.ColorSpace {
	if v, ok := colorSpaces[c]; ok {
		return v
	}
	return vk.ColorSpaceSrgbNonlinear
}

func fromVkColorSpace(v vk.ColorSpace) (frames.ColorSpace, bool) {
	for c, vc := range colorSpaces {
		if vc == v {
			return c, true
		}
	}
	return frames.ColorSpaceSRGBNonlinear, false
}

// toVkPresentMode falls back to FIFO, the one mode every surface supports.
func toVkPresentMode(m frames.PresentMode) vk.PresentMode {
	if v, ok := presentModes[m]; ok {
		return v
	}
	return vk.PresentModeFifo
}

func fromVkPresentMode(v vk.PresentMode) (frames.PresentMode, bool) {
	for m, vm := range presentModes {
		if vm == v {
			return m, true
		}
	}
	return frames.PresentModeAny, false
}

func toVkExtent(e frames.Extent2D) vk.Extent2D {
	return vk.Extent2D{Width: e.Width, Height: e.Height}
}

func fromVkExtent(e vk.Extent2D) frames.Extent2D {
	e.Deref()
	return frames.Extent2D{Width: e.Width, Height: e.Height}
}

var end = "\x00"
var endChar byte = '\x00'

func VulkanSafeString(s string) string {
	if len(s) == 0 {
		return end
	}
	if s[len(s)-1] != endChar {
		return s + end
	}
	return s
}

func VulkanSafeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = VulkanSafeString(list[i])
	}
	return out
}
