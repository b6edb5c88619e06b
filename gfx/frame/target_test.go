// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame_test

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/pkg/errors"

	"github.com/devblok/koruframe/gfx/frame"
)

func configuredImages(c *qt.C, f *fixture) (*frame.Surface, []frame.PresentableImage) {
	surface, err := frame.NewSurface(f.connect(), frame.SurfaceConfiguration{})
	c.Assert(err, qt.IsNil)
	images, err := surface.Configure(800, 600, true)
	c.Assert(err, qt.IsNil)
	return surface, images
}

func TestDepthFormatPreference(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	f.device.depthSupport = map[frame.Format]bool{
		frame.FormatD24UnormS8Uint: true,
		frame.FormatD16Unorm:       true,
	}
	format, err := frame.DefaultDepthFormats.Select(f.device)
	c.Assert(err, qt.IsNil)
	c.Assert(format, qt.Equals, frame.FormatD24UnormS8Uint)
}

func TestDepthFormatLeastPreferred(t *testing.T) {
	c := qt.New(t)
	f := newFixture()

	f.device.depthSupport = map[frame.Format]bool{frame.FormatD16Unorm: true}
	format, err := frame.DefaultDepthFormats.Select(f.device)
	c.Assert(err, qt.IsNil)
	c.Assert(format, qt.Equals, frame.FormatD16Unorm)
	c.Assert(format.HasStencil(), qt.IsFalse)
}

func TestDepthFormatNone(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	f.device.depthSupport = nil
	surface, images := configuredImages(c, f)

	targets := frame.NewTargets(f.ctx)
	err := targets.Build(frame.TargetDescription{
		ColorFormat: surface.Format().Format,
		Extent:      surface.Extent(),
	}, images, frame.DefaultDepthFormats)
	c.Assert(err, qt.ErrorIs, frame.ErrNoSupportedDepthFormat)
	c.Assert(frame.IsConfigurationFatal(err), qt.IsTrue)
	c.Assert(f.device.renderPasses, qt.HasLen, 0)
}

func TestTargetsBuild(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	surface, images := configuredImages(c, f)

	targets := frame.NewTargets(f.ctx)
	desc := frame.TargetDescription{ColorFormat: surface.Format().Format, Extent: surface.Extent()}
	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.IsNil)

	c.Assert(targets.Len(), qt.Equals, len(images))
	c.Assert(targets.DepthFormat(), qt.Equals, frame.FormatD32SfloatS8Uint)
	c.Assert(f.device.depths, qt.HasLen, 1)
	for _, fb := range targets.Framebuffers() {
		c.Assert(f.device.framebuffers[fb], qt.Equals, surface.Extent())
	}

	rp := f.device.renderPasses[targets.RenderPass()]
	c.Assert(rp.Attachments.Color().Format, qt.Equals, frame.FormatB8G8R8A8Unorm)
	c.Assert(rp.Attachments.Color().FinalLayout, qt.Equals, frame.ImageLayoutPresentSrc)
	c.Assert(rp.Attachments.Depth().Format, qt.Equals, frame.FormatD32SfloatS8Uint)
	c.Assert(rp.Dependencies.Entry().SrcSubpass, qt.Equals, frame.SubpassExternal)
	c.Assert(rp.Dependencies.Exit().DstSubpass, qt.Equals, frame.SubpassExternal)

	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.ErrorMatches, "frame: render targets already built")
}

func TestTargetsRebuild(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	surface, images := configuredImages(c, f)

	targets := frame.NewTargets(f.ctx)
	desc := frame.TargetDescription{ColorFormat: surface.Format().Format, Extent: surface.Extent()}
	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.IsNil)
	count, extent, renderPass := targets.Len(), targets.Extent(), targets.RenderPass()

	targets.Teardown()
	c.Assert(targets.Len(), qt.Equals, 0)
	c.Assert(f.device.framebuffers, qt.HasLen, 0)
	c.Assert(f.device.depths, qt.HasLen, 0)

	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.IsNil)
	c.Assert(targets.Len(), qt.Equals, count)
	c.Assert(targets.Extent(), qt.Equals, extent)
	c.Assert(targets.RenderPass(), qt.Equals, renderPass)
	c.Assert(f.device.renderPasses, qt.HasLen, 1)

	targets.Release()
	c.Assert(f.device.renderPasses, qt.HasLen, 0)
	c.Assert(f.device.framebuffers, qt.HasLen, 0)
}

func TestTargetsImageCountChange(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	surface, images := configuredImages(c, f)

	targets := frame.NewTargets(f.ctx)
	desc := frame.TargetDescription{ColorFormat: surface.Format().Format, Extent: surface.Extent()}
	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.IsNil)
	renderPass := targets.RenderPass()
	targets.Teardown()

	c.Assert(targets.Build(desc, images[:2], frame.DefaultDepthFormats), qt.IsNil)
	c.Assert(targets.Len(), qt.Equals, 2)
	c.Assert(targets.RenderPass(), qt.Equals, renderPass)
}

func TestTargetsColorFormatChange(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	_, images := configuredImages(c, f)

	targets := frame.NewTargets(f.ctx)
	extent := frame.Extent2D{Width: 800, Height: 600}
	c.Assert(targets.Build(frame.TargetDescription{ColorFormat: frame.FormatB8G8R8A8Unorm, Extent: extent}, images, frame.DefaultDepthFormats), qt.IsNil)
	first := targets.RenderPass()
	targets.Teardown()

	c.Assert(targets.Build(frame.TargetDescription{ColorFormat: frame.FormatR8G8B8A8Unorm, Extent: extent}, images, frame.DefaultDepthFormats), qt.IsNil)
	c.Assert(targets.RenderPass(), qt.Not(qt.Equals), first)
	c.Assert(f.device.renderPasses, qt.HasLen, 1)
}

func TestTargetsDepthFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	surface, images := configuredImages(c, f)
	desc := frame.TargetDescription{ColorFormat: surface.Format().Format, Extent: surface.Extent()}

	// The backend cleans up after itself, so whatever it hands back
	// with the error must not be destroyed again.
	f.device.failDepth = errors.New("out of device memory")
	targets := frame.NewTargets(f.ctx)
	err := targets.Build(desc, images, frame.DefaultDepthFormats)
	c.Assert(err, qt.ErrorMatches, "vkCreateImage: out of device memory")
	c.Assert(f.device.doubleFreed, qt.HasLen, 0)
	c.Assert(f.device.depths, qt.HasLen, 0)
	c.Assert(f.device.framebuffers, qt.HasLen, 0)
	c.Assert(targets.Len(), qt.Equals, 0)

	f.device.failDepth = nil
	c.Assert(targets.Build(desc, images, frame.DefaultDepthFormats), qt.IsNil)
	c.Assert(targets.Len(), qt.Equals, len(images))

	targets.Release()
	c.Assert(f.device.doubleFreed, qt.HasLen, 0)
}

func TestTargetsFramebufferFailure(t *testing.T) {
	c := qt.New(t)
	f := newFixture()
	surface, images := configuredImages(c, f)
	c.Assert(images, qt.HasLen, 3)

	f.device.failFramebuffers = 2
	targets := frame.NewTargets(f.ctx)
	err := targets.Build(frame.TargetDescription{ColorFormat: surface.Format().Format, Extent: surface.Extent()}, images, frame.DefaultDepthFormats)
	c.Assert(err, qt.ErrorMatches, "vkCreateFramebuffer: out of device memory")

	c.Assert(f.device.framebuffers, qt.HasLen, 0)
	c.Assert(f.device.depths, qt.HasLen, 0)
	c.Assert(f.device.doubleFreed, qt.HasLen, 0)
	c.Assert(targets.Len(), qt.Equals, 0)

	// The render pass survives a failed build until release.
	c.Assert(f.device.renderPasses, qt.HasLen, 1)
	targets.Release()
	c.Assert(f.device.renderPasses, qt.HasLen, 0)
	c.Assert(f.device.doubleFreed, qt.HasLen, 0)
}
