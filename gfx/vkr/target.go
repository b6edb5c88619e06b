// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"

	"github.com/devblok/koruframe/gfx/frame"
)

// CreateImageView implements frame.Device for presentable color images.
func (d *Device) CreateImageView(image frame.Image, format frame.Format) (frame.ImageView, error) {
	view, err := d.createView(vkImage(image), vk.Format(format), vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return 0, err
	}
	return imageViewHandle(view), nil
}

func (d *Device) createView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	ivci := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}
	var view vk.ImageView
	if err := vkError("CreateImageView", vk.CreateImageView(d.device, &ivci, nil, &view)); err != nil {
		return nil, err
	}
	return view, nil
}

// DestroyImageView implements frame.Device.
func (d *Device) DestroyImageView(view frame.ImageView) {
	vk.DestroyImageView(d.device, vkImageView(view), nil)
}

// SupportsDepthAttachment implements frame.Device.
func (d *Device) SupportsDepthAttachment(format frame.Format) bool {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(d.physical, vk.Format(format), &props)
	props.Deref()
	return props.OptimalTilingFeatures&vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit) != 0
}

func depthAspect(format frame.Format) vk.ImageAspectFlags {
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if format.HasStencil() {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

// CreateDepthStencil implements frame.Device. The image lives in device
// local memory and has its own view. On failure everything created so
// far is destroyed and a zero DepthStencil is returned.
func (d *Device) CreateDepthStencil(extent frame.Extent2D, format frame.Format) (ds frame.DepthStencil, err error) {
	ici := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    vk.Format(format),
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}

	var image vk.Image
	if err := vkError("CreateImage", vk.CreateImage(d.device, &ici, nil, &image)); err != nil {
		return ds, err
	}
	ds.Image = imageHandle(image)
	ds.Format = format
	defer func() {
		if err != nil {
			d.DestroyDepthStencil(ds)
			ds = frame.DepthStencil{}
		}
	}()

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &req)
	req.Deref()

	memory, err := d.allocator.Malloc(req, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return ds, errors.WithMessage(err, "depth stencil")
	}
	ds.Memory = memoryHandle(memory.Get())

	if err := vkError("BindImageMemory", vk.BindImageMemory(d.device, image, memory.Get(), 0)); err != nil {
		return ds, err
	}

	view, err := d.createView(image, vk.Format(format), depthAspect(format))
	if err != nil {
		return ds, err
	}
	ds.View = imageViewHandle(view)
	return ds, nil
}

// DestroyDepthStencil implements frame.Device. Zero members are skipped.
func (d *Device) DestroyDepthStencil(ds frame.DepthStencil) {
	if ds.View != 0 {
		vk.DestroyImageView(d.device, vkImageView(ds.View), nil)
	}
	if ds.Image != 0 {
		vk.DestroyImage(d.device, vkImage(ds.Image), nil)
	}
	if ds.Memory != 0 {
		vk.FreeMemory(d.device, vkMemory(ds.Memory), nil)
	}
}

func convertAttachment(a frame.AttachmentDescription) vk.AttachmentDescription {
	return vk.AttachmentDescription{
		Format:         vk.Format(a.Format),
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
		StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
		StencilLoadOp:  vk.AttachmentLoadOp(a.StencilLoadOp),
		StencilStoreOp: vk.AttachmentStoreOp(a.StencilStoreOp),
		InitialLayout:  vk.ImageLayout(a.InitialLayout),
		FinalLayout:    vk.ImageLayout(a.FinalLayout),
	}
}

func convertDependency(dep frame.SubpassDependency) vk.SubpassDependency {
	var flags vk.DependencyFlags
	if dep.ByRegion {
		flags = vk.DependencyFlags(vk.DependencyByRegionBit)
	}
	return vk.SubpassDependency{
		SrcSubpass:      dep.SrcSubpass,
		DstSubpass:      dep.DstSubpass,
		SrcStageMask:    vk.PipelineStageFlags(dep.SrcStage),
		DstStageMask:    vk.PipelineStageFlags(dep.DstStage),
		SrcAccessMask:   vk.AccessFlags(dep.SrcAccess),
		DstAccessMask:   vk.AccessFlags(dep.DstAccess),
		DependencyFlags: flags,
	}
}

// renderPassInfo lays out a single graphics subpass writing color
// attachment 0 and depth attachment 1.
func renderPassInfo(desc frame.RenderPassDescription) vk.RenderPassCreateInfo {
	attachments := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		attachments[i] = convertAttachment(a)
	}
	dependencies := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, dep := range desc.Dependencies {
		dependencies[i] = convertDependency(dep)
	}

	subpasses := []vk.SubpassDescription{{
		PipelineBindPoint:    vk.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vk.AttachmentReference{{
			Attachment: 0,
			Layout:     vk.ImageLayoutColorAttachmentOptimal,
		}},
		PDepthStencilAttachment: &vk.AttachmentReference{
			Attachment: 1,
			Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}}

	return vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
}

// CreateRenderPass implements frame.Device.
func (d *Device) CreateRenderPass(desc frame.RenderPassDescription) (frame.RenderPass, error) {
	rpci := renderPassInfo(desc)
	var renderPass vk.RenderPass
	if err := vkError("CreateRenderPass", vk.CreateRenderPass(d.device, &rpci, nil, &renderPass)); err != nil {
		return 0, err
	}
	return renderPassHandle(renderPass), nil
}

// DestroyRenderPass implements frame.Device.
func (d *Device) DestroyRenderPass(renderPass frame.RenderPass) {
	vk.DestroyRenderPass(d.device, vkRenderPass(renderPass), nil)
}

// CreateFramebuffer implements frame.Device.
func (d *Device) CreateFramebuffer(renderPass frame.RenderPass, views []frame.ImageView, extent frame.Extent2D) (frame.Framebuffer, error) {
	attachments := make([]vk.ImageView, len(views))
	for i, v := range views {
		attachments[i] = vkImageView(v)
	}
	fci := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      vkRenderPass(renderPass),
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		Width:           extent.Width,
		Height:          extent.Height,
		Layers:          1,
	}
	var framebuffer vk.Framebuffer
	if err := vkError("CreateFramebuffer", vk.CreateFramebuffer(d.device, &fci, nil, &framebuffer)); err != nil {
		return 0, err
	}
	return framebufferHandle(framebuffer), nil
}

// DestroyFramebuffer implements frame.Device.
func (d *Device) DestroyFramebuffer(framebuffer frame.Framebuffer) {
	vk.DestroyFramebuffer(d.device, vkFramebuffer(framebuffer), nil)
}
