// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

// Swapchain entry point names.
const (
	ProcGetSurfaceSupport      = "vkGetPhysicalDeviceSurfaceSupportKHR"
	ProcGetSurfaceCapabilities = "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"
	ProcGetSurfaceFormats      = "vkGetPhysicalDeviceSurfaceFormatsKHR"
	ProcGetSurfacePresentModes = "vkGetPhysicalDeviceSurfacePresentModesKHR"
	ProcCreateSwapchain        = "vkCreateSwapchainKHR"
	ProcDestroySwapchain       = "vkDestroySwapchainKHR"
	ProcGetSwapchainImages     = "vkGetSwapchainImagesKHR"
	ProcAcquireNextImage       = "vkAcquireNextImageKHR"
	ProcQueuePresent           = "vkQueuePresentKHR"
)

// Resolved entry point signatures. The surface and physical
// device are bound by the resolver.
type (
	GetSurfaceSupportFunc      func(queueFamily uint32) (bool, error)
	GetSurfaceCapabilitiesFunc func() (SurfaceCapabilities, error)
	GetSurfaceFormatsFunc      func() ([]SurfaceFormat, error)
	GetSurfacePresentModesFunc func() ([]PresentMode, error)
	CreateSwapchainFunc        func(info SwapchainCreateInfo, old Swapchain) (Swapchain, error)
	DestroySwapchainFunc       func(swapchain Swapchain)
	GetSwapchainImagesFunc     func(swapchain Swapchain) ([]Image, error)
	AcquireNextImageFunc       func(swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, error)
	QueuePresentFunc           func(queue Queue, swapchain Swapchain, index uint32, wait Semaphore) error
)

// ProcResolver looks up an entry point by name. It returns nil
// when the entry point is not available.
type ProcResolver interface {
	Resolve(name string) interface{}
}

// SwapchainProcs is the table of swapchain entry points,
// resolved and validated once by ConnectSwapchain.
type SwapchainProcs struct {
	GetSurfaceSupport      GetSurfaceSupportFunc
	GetSurfaceCapabilities GetSurfaceCapabilitiesFunc
	GetSurfaceFormats      GetSurfaceFormatsFunc
	GetSurfacePresentModes GetSurfacePresentModesFunc
	CreateSwapchain        CreateSwapchainFunc
	DestroySwapchain       DestroySwapchainFunc
	GetSwapchainImages     GetSwapchainImagesFunc
	AcquireNextImage       AcquireNextImageFunc
	QueuePresent           QueuePresentFunc
}

// ConnectSwapchain resolves every swapchain entry point through r.
// All missing entries are reported together in a MissingEntryPointError.
func ConnectSwapchain(r ProcResolver) (*SwapchainProcs, error) {
	p := &SwapchainProcs{}
	table := []struct {
		name string
		bind func(v interface{}) bool
	}{
		{ProcGetSurfaceSupport, func(v interface{}) bool {
			f, ok := v.(GetSurfaceSupportFunc)
			p.GetSurfaceSupport = f
			return ok && f != nil
		}},
		{ProcGetSurfaceCapabilities, func(v interface{}) bool {
			f, ok := v.(GetSurfaceCapabilitiesFunc)
			p.GetSurfaceCapabilities = f
			return ok && f != nil
		}},
		{ProcGetSurfaceFormats, func(v interface{}) bool {
			f, ok := v.(GetSurfaceFormatsFunc)
			p.GetSurfaceFormats = f
			return ok && f != nil
		}},
		{ProcGetSurfacePresentModes, func(v interface{}) bool {
			f, ok := v.(GetSurfacePresentModesFunc)
			p.GetSurfacePresentModes = f
			return ok && f != nil
		}},
		{ProcCreateSwapchain, func(v interface{}) bool {
			f, ok := v.(CreateSwapchainFunc)
			p.CreateSwapchain = f
			return ok && f != nil
		}},
		{ProcDestroySwapchain, func(v interface{}) bool {
			f, ok := v.(DestroySwapchainFunc)
			p.DestroySwapchain = f
			return ok && f != nil
		}},
		{ProcGetSwapchainImages, func(v interface{}) bool {
			f, ok := v.(GetSwapchainImagesFunc)
			p.GetSwapchainImages = f
			return ok && f != nil
		}},
		{ProcAcquireNextImage, func(v interface{}) bool {
			f, ok := v.(AcquireNextImageFunc)
			p.AcquireNextImage = f
			return ok && f != nil
		}},
		{ProcQueuePresent, func(v interface{}) bool {
			f, ok := v.(QueuePresentFunc)
			p.QueuePresent = f
			return ok && f != nil
		}},
	}

	var missing []string
	for _, entry := range table {
		if !entry.bind(r.Resolve(entry.name)) {
			missing = append(missing, entry.name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingEntryPointError{Names: missing}
	}
	return p, nil
}
