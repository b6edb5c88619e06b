// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SurfaceConfiguration is used to configure the presentation surface.
type SurfaceConfiguration struct {
	// DesiredImageCount is the requested swapchain length.
	// Zero requests one more than the device minimum.
	DesiredImageCount uint32
}

// NewSurface creates a presentation surface for ctx. The queue
// family of ctx must be able to present to the surface.
func NewSurface(ctx *DeviceContext, cfg SurfaceConfiguration) (*Surface, error) {
	if ctx.Procs == nil {
		return nil, errors.New("frame: device context has no swapchain entry points")
	}

	supported, err := ctx.Procs.GetSurfaceSupport(ctx.QueueFamily)
	if err != nil {
		return nil, driverFailure(ProcGetSurfaceSupport, err)
	}
	if !supported {
		return nil, &UnsupportedSurfaceError{
			Reason: fmt.Sprintf("queue family %d can not present", ctx.QueueFamily),
		}
	}

	return &Surface{
		ctx:          ctx,
		desiredCount: cfg.DesiredImageCount,
		log:          ctx.logger(),
	}, nil
}

// Surface owns the swapchain and its presentable images.
type Surface struct {
	ctx          *DeviceContext
	desiredCount uint32
	log          logrus.FieldLogger

	swapchain   Swapchain
	images      []PresentableImage
	format      SurfaceFormat
	extent      Extent2D
	presentMode PresentMode
}

// Configure (re)creates the presentable image chain. The previous
// chain, if any, is retired. Callers must make sure the device
// no longer uses the previous images.
func (s *Surface) Configure(width, height uint32, vsync bool) ([]PresentableImage, error) {
	procs := s.ctx.Procs

	caps, err := procs.GetSurfaceCapabilities()
	if err != nil {
		return nil, driverFailure(ProcGetSurfaceCapabilities, err)
	}

	formats, err := procs.GetSurfaceFormats()
	if err != nil {
		return nil, driverFailure(ProcGetSurfaceFormats, err)
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}

	modes, err := procs.GetSurfacePresentModes()
	if err != nil {
		return nil, driverFailure(ProcGetSurfacePresentModes, err)
	}
	if len(modes) == 0 {
		return nil, &UnsupportedSurfaceError{Reason: "no present modes reported"}
	}

	extent := ChooseExtent(caps, width, height)
	if extent.Zero() {
		return nil, errors.WithMessage(ErrSurfaceOutOfDate, "surface has zero extent")
	}

	info := SwapchainCreateInfo{
		MinImageCount: ChooseImageCount(caps, s.desiredCount),
		Format:        format,
		Extent:        extent,
		PresentMode:   ChoosePresentMode(modes, vsync),
	}

	old := s.swapchain
	swapchain, err := procs.CreateSwapchain(info, old)
	if err != nil {
		if errors.Is(err, ErrSurfaceOutOfDate) {
			return nil, err
		}
		return nil, driverFailure(ProcCreateSwapchain, err)
	}

	s.destroyViews()
	if old != 0 {
		procs.DestroySwapchain(old)
	}
	s.swapchain = swapchain

	images, err := procs.GetSwapchainImages(swapchain)
	if err != nil {
		return nil, driverFailure(ProcGetSwapchainImages, err)
	}

	presentable := make([]PresentableImage, 0, len(images))
	for _, image := range images {
		view, err := s.ctx.Device.CreateImageView(image, format.Format)
		if err != nil {
			s.images = presentable
			s.destroyViews()
			return nil, driverFailure("vkCreateImageView", err)
		}
		presentable = append(presentable, PresentableImage{Image: image, View: view})
	}

	s.images = presentable
	s.format = format
	s.extent = extent
	s.presentMode = info.PresentMode

	s.log.WithFields(logrus.Fields{
		"format":      format.Format,
		"colorSpace":  format.ColorSpace,
		"extent":      extent,
		"images":      len(presentable),
		"presentMode": info.PresentMode,
	}).Info("surface configured")

	return s.Images(), nil
}

// AcquireNext waits for the next presentable image. signal is signaled
// once the image may be written to. A non-positive timeout waits
// indefinitely.
func (s *Surface) AcquireNext(timeout time.Duration, signal Semaphore) (uint32, error) {
	if s.swapchain == 0 {
		return 0, errors.WithMessage(ErrSurfaceOutOfDate, "surface is not configured")
	}

	index, err := s.ctx.Procs.AcquireNextImage(s.swapchain, timeoutNanos(int64(timeout)), signal)
	switch {
	case err == nil:
	case errors.Is(err, ErrSurfaceOutOfDate), errors.Is(err, ErrTimeout):
		return 0, err
	default:
		return 0, driverFailure(ProcAcquireNextImage, err)
	}

	if int(index) >= len(s.images) {
		return 0, driverFailure(ProcAcquireNextImage,
			errors.Errorf("image index %d out of range of %d images", index, len(s.images)))
	}
	return index, nil
}

// Present queues image index for display once wait is signaled.
func (s *Surface) Present(index uint32, wait Semaphore) error {
	err := s.ctx.Procs.QueuePresent(s.ctx.Queue, s.swapchain, index, wait)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSurfaceOutOfDate):
		return err
	default:
		return driverFailure(ProcQueuePresent, err)
	}
}

// Format returns the negotiated surface format.
func (s *Surface) Format() SurfaceFormat {
	return s.format
}

// Extent returns the size of the presentable images.
func (s *Surface) Extent() Extent2D {
	return s.extent
}

// ImageCount returns the number of presentable images.
func (s *Surface) ImageCount() int {
	return len(s.images)
}

// Images returns a copy of the presentable images.
func (s *Surface) Images() []PresentableImage {
	images := make([]PresentableImage, len(s.images))
	copy(images, s.images)
	return images
}

// PresentMode returns the negotiated presentation mode.
func (s *Surface) PresentMode() PresentMode {
	return s.presentMode
}

// Swapchain returns the current swapchain handle.
func (s *Surface) Swapchain() Swapchain {
	return s.swapchain
}

// Release implements interface
func (s *Surface) Release() {
	s.destroyViews()
	if s.swapchain != 0 {
		s.ctx.Procs.DestroySwapchain(s.swapchain)
		s.swapchain = 0
	}
}

func (s *Surface) destroyViews() {
	for _, image := range s.images {
		s.ctx.Device.DestroyImageView(image.View)
	}
	s.images = nil
}

/* Negotiation policies */

// ChooseSurfaceFormat picks B8G8R8A8_UNORM when offered, and the first
// reported format otherwise. A single UNDEFINED entry means the surface
// has no preference.
func ChooseSurfaceFormat(formats []SurfaceFormat) (SurfaceFormat, error) {
	if len(formats) == 0 {
		return SurfaceFormat{}, &UnsupportedSurfaceError{Reason: "no surface formats reported"}
	}
	if len(formats) == 1 && formats[0].Format == FormatUndefined {
		return SurfaceFormat{Format: FormatB8G8R8A8Unorm, ColorSpace: formats[0].ColorSpace}, nil
	}
	for _, f := range formats {
		if f.Format == FormatB8G8R8A8Unorm {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChooseImageCount returns max(min, desired) clamped to the maximum
// when the surface has one.
func ChooseImageCount(caps SurfaceCapabilities, desired uint32) uint32 {
	if desired == 0 {
		desired = caps.MinImageCount + 1
	}
	count := desired
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// ChooseExtent follows the surface size, or the requested size clamped
// to the supported range when the surface leaves it to the swapchain.
func ChooseExtent(caps SurfaceCapabilities, width, height uint32) Extent2D {
	if caps.CurrentExtent.Width != UndefinedExtent {
		return caps.CurrentExtent
	}
	return Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// ChoosePresentMode returns FIFO for vsync. Without vsync, IMMEDIATE
// is used when available.
func ChoosePresentMode(modes []PresentMode, vsync bool) PresentMode {
	if !vsync {
		for _, m := range modes {
			if m == PresentModeImmediate {
				return m
			}
		}
	}
	return PresentModeFifo
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}
