// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"

	"github.com/devblok/koruframe/gfx/frame"
)

// Resolve implements frame.ProcResolver. Surface queries need
// VK_KHR_surface on the instance, the rest VK_KHR_swapchain on the
// device; an entry whose extension is not enabled resolves to nil.
func (d *Device) Resolve(name string) interface{} {
	surface := d.instance.HasExtension(SurfaceExtensionName) && d.instance.Surface() != vk.NullSurface
	swapchain := surface && d.extensions[SwapchainExtensionName]

	switch name {
	case frame.ProcGetSurfaceSupport:
		if surface {
			return frame.GetSurfaceSupportFunc(d.surfaceSupport)
		}
	case frame.ProcGetSurfaceCapabilities:
		if surface {
			return frame.GetSurfaceCapabilitiesFunc(d.surfaceCapabilities)
		}
	case frame.ProcGetSurfaceFormats:
		if surface {
			return frame.GetSurfaceFormatsFunc(d.surfaceFormats)
		}
	case frame.ProcGetSurfacePresentModes:
		if surface {
			return frame.GetSurfacePresentModesFunc(d.presentModes)
		}
	case frame.ProcCreateSwapchain:
		if swapchain {
			return frame.CreateSwapchainFunc(d.createSwapchain)
		}
	case frame.ProcDestroySwapchain:
		if swapchain {
			return frame.DestroySwapchainFunc(d.destroySwapchain)
		}
	case frame.ProcGetSwapchainImages:
		if swapchain {
			return frame.GetSwapchainImagesFunc(d.swapchainImages)
		}
	case frame.ProcAcquireNextImage:
		if swapchain {
			return frame.AcquireNextImageFunc(d.acquireNextImage)
		}
	case frame.ProcQueuePresent:
		if swapchain {
			return frame.QueuePresentFunc(d.queuePresent)
		}
	}
	return nil
}

func (d *Device) surfaceSupport(family uint32) (bool, error) {
	var supported vk.Bool32
	if err := vkError("GetPhysicalDeviceSurfaceSupport", vk.GetPhysicalDeviceSurfaceSupport(d.physical, family, d.instance.Surface(), &supported)); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (d *Device) nativeCapabilities() (vk.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := vkError("GetPhysicalDeviceSurfaceCapabilities", vk.GetPhysicalDeviceSurfaceCapabilities(d.physical, d.instance.Surface(), &caps)); err != nil {
		return caps, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return caps, nil
}

func (d *Device) surfaceCapabilities() (frame.SurfaceCapabilities, error) {
	caps, err := d.nativeCapabilities()
	if err != nil {
		return frame.SurfaceCapabilities{}, err
	}
	return convertCapabilities(caps), nil
}

func convertCapabilities(caps vk.SurfaceCapabilities) frame.SurfaceCapabilities {
	return frame.SurfaceCapabilities{
		MinImageCount:  caps.MinImageCount,
		MaxImageCount:  caps.MaxImageCount,
		CurrentExtent:  frame.Extent2D{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height},
		MinImageExtent: frame.Extent2D{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height},
		MaxImageExtent: frame.Extent2D{Width: caps.MaxImageExtent.Width, Height: caps.MaxImageExtent.Height},
	}
}

func (d *Device) surfaceFormats() ([]frame.SurfaceFormat, error) {
	var count uint32
	if err := vkError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.instance.Surface(), &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := vkError("GetPhysicalDeviceSurfaceFormats", vk.GetPhysicalDeviceSurfaceFormats(d.physical, d.instance.Surface(), &count, formats)); err != nil {
		return nil, err
	}
	result := make([]frame.SurfaceFormat, 0, count)
	for _, f := range formats[:count] {
		f.Deref()
		result = append(result, frame.SurfaceFormat{
			Format:     frame.Format(f.Format),
			ColorSpace: frame.ColorSpace(f.ColorSpace),
		})
	}
	return result, nil
}

func (d *Device) presentModes() ([]frame.PresentMode, error) {
	var count uint32
	if err := vkError("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.instance.Surface(), &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := vkError("GetPhysicalDeviceSurfacePresentModes", vk.GetPhysicalDeviceSurfacePresentModes(d.physical, d.instance.Surface(), &count, modes)); err != nil {
		return nil, err
	}
	result := make([]frame.PresentMode, 0, count)
	for _, m := range modes[:count] {
		result = append(result, frame.PresentMode(m))
	}
	return result, nil
}

// compositeAlphaPreference is tried in order against the surface.
var compositeAlphaPreference = []vk.CompositeAlphaFlagBits{
	vk.CompositeAlphaOpaqueBit,
	vk.CompositeAlphaPreMultipliedBit,
	vk.CompositeAlphaPostMultipliedBit,
	vk.CompositeAlphaInheritBit,
}

func chooseCompositeAlpha(supported vk.CompositeAlphaFlags) vk.CompositeAlphaFlagBits {
	for _, bit := range compositeAlphaPreference {
		if supported&vk.CompositeAlphaFlags(bit) != 0 {
			return bit
		}
	}
	return vk.CompositeAlphaOpaqueBit
}

func choosePreTransform(caps vk.SurfaceCapabilities) vk.SurfaceTransformFlagBits {
	if caps.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		return vk.SurfaceTransformIdentityBit
	}
	return caps.CurrentTransform
}

// chooseImageUsage always renders to the images and also allows
// transfers when the surface permits them.
func chooseImageUsage(supported vk.ImageUsageFlags) vk.ImageUsageFlags {
	usage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	for _, bit := range []vk.ImageUsageFlagBits{vk.ImageUsageTransferSrcBit, vk.ImageUsageTransferDstBit} {
		if supported&vk.ImageUsageFlags(bit) != 0 {
			usage |= vk.ImageUsageFlags(bit)
		}
	}
	return usage
}

func (d *Device) createSwapchain(info frame.SwapchainCreateInfo, old frame.Swapchain) (frame.Swapchain, error) {
	caps, err := d.nativeCapabilities()
	if err != nil {
		return 0, err
	}

	scci := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.instance.Surface(),
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format.Format),
		ImageColorSpace: vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageUsage:       chooseImageUsage(caps.SupportedUsageFlags),
		PreTransform:     choosePreTransform(caps),
		CompositeAlpha:   chooseCompositeAlpha(caps.SupportedCompositeAlpha),
		PresentMode:      vk.PresentMode(info.PresentMode),
		Clipped:          vk.True,
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     vkSwapchain(old),
	}

	var swapchain vk.Swapchain
	if err := presentationError("CreateSwapchain", vk.CreateSwapchain(d.device, &scci, nil, &swapchain)); err != nil {
		return 0, err
	}
	return swapchainHandle(swapchain), nil
}

func (d *Device) destroySwapchain(swapchain frame.Swapchain) {
	vk.DestroySwapchain(d.device, vkSwapchain(swapchain), nil)
}

func (d *Device) swapchainImages(swapchain frame.Swapchain) ([]frame.Image, error) {
	var count uint32
	if err := vkError("GetSwapchainImages", vk.GetSwapchainImages(d.device, vkSwapchain(swapchain), &count, nil)); err != nil {
		return nil, err
	}
	images := make([]vk.Image, count)
	if err := vkError("GetSwapchainImages", vk.GetSwapchainImages(d.device, vkSwapchain(swapchain), &count, images)); err != nil {
		return nil, err
	}
	result := make([]frame.Image, 0, count)
	for _, image := range images[:count] {
		result = append(result, imageHandle(image))
	}
	return result, nil
}

func (d *Device) acquireNextImage(swapchain frame.Swapchain, timeout uint64, signal frame.Semaphore) (uint32, error) {
	var index uint32
	result := vk.AcquireNextImage(d.device, vkSwapchain(swapchain), uint(timeout), vkSemaphore(signal), vkFence(0), &index)
	return index, presentationError("AcquireNextImage", result)
}

func (d *Device) queuePresent(queue frame.Queue, swapchain frame.Swapchain, index uint32, wait frame.Semaphore) error {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vkSemaphore(wait)},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vkSwapchain(swapchain)},
		PImageIndices:      []uint32{index},
	}
	return presentationError("QueuePresent", vk.QueuePresent(vkQueue(queue), &presentInfo))
}
