// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DepthFormatPolicy is a depth format preference order.
type DepthFormatPolicy []Format

// DefaultDepthFormats prefers precision, then stencil.
var DefaultDepthFormats = DepthFormatPolicy{
	FormatD32SfloatS8Uint,
	FormatD32Sfloat,
	FormatD24UnormS8Uint,
	FormatD16UnormS8Uint,
	FormatD16Unorm,
}

// Select returns the first format device can use as a depth attachment.
func (p DepthFormatPolicy) Select(device Device) (Format, error) {
	for _, f := range p {
		if device.SupportsDepthAttachment(f) {
			return f, nil
		}
	}
	return FormatUndefined, ErrNoSupportedDepthFormat
}

// TargetDescription describes the images render targets are built for.
type TargetDescription struct {
	ColorFormat Format
	Extent      Extent2D
}

// NewTargets creates an empty render target set.
func NewTargets(ctx *DeviceContext) *Targets {
	return &Targets{ctx: ctx}
}

// Targets owns the render pass, the framebuffers and the shared
// depth buffer. Image views are borrowed from the Surface.
type Targets struct {
	ctx *DeviceContext

	renderPass   RenderPass
	description  RenderPassDescription
	depth        DepthStencil
	framebuffers []Framebuffer
	extent       Extent2D
	built        bool
}

// Build creates one framebuffer per image sharing a single depth
// buffer. Targets must be torn down before being built again.
func (t *Targets) Build(desc TargetDescription, images []PresentableImage, policy DepthFormatPolicy) (err error) {
	if t.built {
		return errors.New("frame: render targets already built")
	}
	if len(images) == 0 {
		return errors.New("frame: no images to build render targets for")
	}

	device := t.ctx.Device
	depthFormat, err := policy.Select(device)
	if err != nil {
		return err
	}

	description := NewRenderPassDescription(desc.ColorFormat, depthFormat)
	if t.renderPass == 0 || description != t.description {
		if t.renderPass != 0 {
			t.ctx.logger().Warn("render pass description changed, recreating")
			device.DestroyRenderPass(t.renderPass)
			t.renderPass = 0
		}
		renderPass, err := device.CreateRenderPass(description)
		if err != nil {
			return driverFailure("vkCreateRenderPass", err)
		}
		t.renderPass = renderPass
		t.description = description
	}

	t.built = true
	defer func() {
		if err != nil {
			t.Teardown()
		}
	}()

	depth, err := device.CreateDepthStencil(desc.Extent, depthFormat)
	if err != nil {
		return driverFailure("vkCreateImage", err)
	}
	depth.Format = depthFormat
	t.depth = depth

	t.framebuffers = make([]Framebuffer, 0, len(images))
	for _, image := range images {
		framebuffer, err := device.CreateFramebuffer(t.renderPass, []ImageView{image.View, t.depth.View}, desc.Extent)
		if err != nil {
			return driverFailure("vkCreateFramebuffer", err)
		}
		t.framebuffers = append(t.framebuffers, framebuffer)
	}
	t.extent = desc.Extent

	t.ctx.logger().WithFields(logrus.Fields{
		"depthFormat":  depthFormat,
		"framebuffers": len(t.framebuffers),
		"extent":       desc.Extent,
	}).Debug("render targets built")
	return nil
}

// Teardown releases the framebuffers and the depth buffer.
// The render pass is kept.
func (t *Targets) Teardown() {
	device := t.ctx.Device
	for _, framebuffer := range t.framebuffers {
		device.DestroyFramebuffer(framebuffer)
	}
	t.framebuffers = nil
	if t.depth.Image != 0 || t.depth.View != 0 || t.depth.Memory != 0 {
		device.DestroyDepthStencil(t.depth)
	}
	t.depth = DepthStencil{}
	t.extent = Extent2D{}
	t.built = false
}

// Release implements interface
func (t *Targets) Release() {
	t.Teardown()
	if t.renderPass != 0 {
		t.ctx.Device.DestroyRenderPass(t.renderPass)
		t.renderPass = 0
	}
}

// Framebuffer returns the framebuffer for image index.
func (t *Targets) Framebuffer(index int) (Framebuffer, error) {
	if index < 0 || index >= len(t.framebuffers) {
		return 0, errors.Errorf("frame: framebuffer %d out of range of %d", index, len(t.framebuffers))
	}
	return t.framebuffers[index], nil
}

// Framebuffers returns a copy of the framebuffers.
func (t *Targets) Framebuffers() []Framebuffer {
	framebuffers := make([]Framebuffer, len(t.framebuffers))
	copy(framebuffers, t.framebuffers)
	return framebuffers
}

// Len returns the number of framebuffers.
func (t *Targets) Len() int {
	return len(t.framebuffers)
}

// Extent returns the size the targets were built for.
func (t *Targets) Extent() Extent2D {
	return t.extent
}

// RenderPass returns the render pass every framebuffer is compatible with.
func (t *Targets) RenderPass() RenderPass {
	return t.renderPass
}

// Description returns the render pass description.
func (t *Targets) Description() RenderPassDescription {
	return t.description
}

// DepthFormat returns the format of the shared depth buffer.
func (t *Targets) DepthFormat() Format {
	return t.depth.Format
}
