// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package vkr implements the vulkan backend of the frame lifecycle.
package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/koruframe/gfx/frame"
)

// Extension names the backend looks for.
const (
	SurfaceExtensionName     = "VK_KHR_surface"
	SwapchainExtensionName   = "VK_KHR_swapchain"
	DebugReportExtensionName = "VK_EXT_debug_report"
	ValidationLayerName      = "VK_LAYER_LUNARG_standard_validation"
)

var (
	// ErrNoGraphicsQueue is returned when no queue family can both
	// draw and present.
	ErrNoGraphicsQueue = errors.New("no graphics and present capable queue family")

	// ErrSeparatePresentQueue is returned when graphics and present
	// are only offered by different queue families.
	ErrSeparatePresentQueue = errors.New("graphics and present queues in separate families are not supported")

	// ErrNoPhysicalDevice is returned when the instance reports no GPU.
	ErrNoPhysicalDevice = errors.New("no physical device available")
)

// IsConfigurationFatal extends frame.IsConfigurationFatal with the
// device selection failures of this package.
func IsConfigurationFatal(err error) bool {
	return frame.IsConfigurationFatal(err) ||
		errors.Is(err, ErrNoGraphicsQueue) ||
		errors.Is(err, ErrSeparatePresentQueue) ||
		errors.Is(err, ErrNoPhysicalDevice)
}

// vkError wraps a failing vulkan result in the vk.Op(): err form.
func vkError(op string, result vk.Result) error {
	if err := vk.Error(result); err != nil {
		return errors.Wrapf(err, "vk.%s()", op)
	}
	return nil
}

// presentationError maps the results of acquire and present. Suboptimal
// chains keep working, so it counts as success.
func presentationError(op string, result vk.Result) error {
	switch result {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.ErrorOutOfDate:
		return frame.ErrSurfaceOutOfDate
	case vk.Timeout, vk.NotReady:
		return frame.ErrTimeout
	}
	return vkError(op, result)
}

/* Handle conversion */

func vkQueue(h frame.Queue) vk.Queue { return vk.Queue(unsafe.Pointer(uintptr(h))) }
func queueHandle(q vk.Queue) frame.Queue { return frame.Queue(uintptr(unsafe.Pointer(q))) }

func vkFence(h frame.Fence) vk.Fence { return vk.Fence(unsafe.Pointer(uintptr(h))) }
func fenceHandle(f vk.Fence) frame.Fence { return frame.Fence(uintptr(unsafe.Pointer(f))) }

func vkSemaphore(h frame.Semaphore) vk.Semaphore {
	return vk.Semaphore(unsafe.Pointer(uintptr(h)))
}
func semaphoreHandle(s vk.Semaphore) frame.Semaphore {
	return frame.Semaphore(uintptr(unsafe.Pointer(s)))
}

func vkCommandBuffer(h frame.CommandBuffer) vk.CommandBuffer {
	return vk.CommandBuffer(unsafe.Pointer(uintptr(h)))
}
func commandBufferHandle(c vk.CommandBuffer) frame.CommandBuffer {
	return frame.CommandBuffer(uintptr(unsafe.Pointer(c)))
}

func vkSwapchain(h frame.Swapchain) vk.Swapchain {
	return vk.Swapchain(unsafe.Pointer(uintptr(h)))
}
func swapchainHandle(s vk.Swapchain) frame.Swapchain {
	return frame.Swapchain(uintptr(unsafe.Pointer(s)))
}

func vkImage(h frame.Image) vk.Image { return vk.Image(unsafe.Pointer(uintptr(h))) }
func imageHandle(i vk.Image) frame.Image { return frame.Image(uintptr(unsafe.Pointer(i))) }

func vkImageView(h frame.ImageView) vk.ImageView {
	return vk.ImageView(unsafe.Pointer(uintptr(h)))
}
func imageViewHandle(v vk.ImageView) frame.ImageView {
	return frame.ImageView(uintptr(unsafe.Pointer(v)))
}

func vkMemory(h frame.Memory) vk.DeviceMemory {
	return vk.DeviceMemory(unsafe.Pointer(uintptr(h)))
}
func memoryHandle(m vk.DeviceMemory) frame.Memory {
	return frame.Memory(uintptr(unsafe.Pointer(m)))
}

func vkRenderPass(h frame.RenderPass) vk.RenderPass {
	return vk.RenderPass(unsafe.Pointer(uintptr(h)))
}
func renderPassHandle(r vk.RenderPass) frame.RenderPass {
	return frame.RenderPass(uintptr(unsafe.Pointer(r)))
}

func vkFramebuffer(h frame.Framebuffer) vk.Framebuffer {
	return vk.Framebuffer(unsafe.Pointer(uintptr(h)))
}
func framebufferHandle(f vk.Framebuffer) frame.Framebuffer {
	return frame.Framebuffer(uintptr(unsafe.Pointer(f)))
}

/* Strings */

func safeString(s string) string {
	if len(s) == 0 {
		return "\x00"
	}
	if s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	result := make([]string, len(list))
	for i, s := range list {
		result[i] = safeString(s)
	}
	return result
}
