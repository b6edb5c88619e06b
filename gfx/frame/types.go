// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import "fmt"

// Opaque device handles. The zero value is the null handle.
type (
	Queue         uintptr
	Fence         uintptr
	Semaphore     uintptr
	CommandBuffer uintptr
	Swapchain     uintptr
	Image         uintptr
	ImageView     uintptr
	Memory        uintptr
	RenderPass    uintptr
	Framebuffer   uintptr
)

// Format is a pixel format. Values match the Vulkan enumeration.
type Format uint32

// Formats the frame core negotiates with.
const (
	FormatUndefined       Format = 0
	FormatR8G8B8A8Unorm   Format = 37
	FormatB8G8R8A8Unorm   Format = 44
	FormatB8G8R8A8Srgb    Format = 50
	FormatD16Unorm        Format = 124
	FormatD32Sfloat       Format = 126
	FormatD16UnormS8Uint  Format = 128
	FormatD24UnormS8Uint  Format = 129
	FormatD32SfloatS8Uint Format = 130
)

var formatNames = map[Format]string{
	FormatUndefined:       "UNDEFINED",
	FormatR8G8B8A8Unorm:   "R8G8B8A8_UNORM",
	FormatB8G8R8A8Unorm:   "B8G8R8A8_UNORM",
	FormatB8G8R8A8Srgb:    "B8G8R8A8_SRGB",
	FormatD16Unorm:        "D16_UNORM",
	FormatD32Sfloat:       "D32_SFLOAT",
	FormatD16UnormS8Uint:  "D16_UNORM_S8_UINT",
	FormatD24UnormS8Uint:  "D24_UNORM_S8_UINT",
	FormatD32SfloatS8Uint: "D32_SFLOAT_S8_UINT",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return fmt.Sprintf("Format(%d)", uint32(f))
}

// HasStencil reports whether a depth format carries a stencil component.
func (f Format) HasStencil() bool {
	switch f {
	case FormatD16UnormS8Uint, FormatD24UnormS8Uint, FormatD32SfloatS8Uint:
		return true
	}
	return false
}

// ColorSpace is a presentation color space. Values match the Vulkan enumeration.
type ColorSpace uint32

// ColorSpaceSrgbNonlinear is the only color space every surface must support.
const ColorSpaceSrgbNonlinear ColorSpace = 0

// PresentMode is a swapchain presentation mode. Values match the Vulkan enumeration.
type PresentMode uint32

// Presentation modes.
const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

func (m PresentMode) String() string {
	switch m {
	case PresentModeImmediate:
		return "IMMEDIATE"
	case PresentModeMailbox:
		return "MAILBOX"
	case PresentModeFifo:
		return "FIFO"
	case PresentModeFifoRelaxed:
		return "FIFO_RELAXED"
	}
	return fmt.Sprintf("PresentMode(%d)", uint32(m))
}

// SurfaceFormat pairs a pixel format with its color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// Extent2D is a size in pixels.
type Extent2D struct {
	Width, Height uint32
}

// Zero reports whether either dimension is zero.
func (e Extent2D) Zero() bool {
	return e.Width == 0 || e.Height == 0
}

func (e Extent2D) String() string {
	return fmt.Sprintf("%dx%d", e.Width, e.Height)
}

// UndefinedExtent marks a surface whose size is decided by the swapchain.
const UndefinedExtent = ^uint32(0)

// SurfaceCapabilities is the subset of surface capabilities
// the frame core negotiates against.
type SurfaceCapabilities struct {
	MinImageCount  uint32
	MaxImageCount  uint32
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
}

// SwapchainCreateInfo describes a presentable image chain.
type SwapchainCreateInfo struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   PresentMode
}

// PresentableImage is a swapchain image and the view into it.
type PresentableImage struct {
	Image Image
	View  ImageView
}

// DepthStencil is a depth-stencil image together with its memory and view.
type DepthStencil struct {
	Image  Image
	View   ImageView
	Memory Memory
	Format Format
}
