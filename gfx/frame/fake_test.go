// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame_test

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/koruframe/gfx/frame"
)

// fakeDevice completes GPU work the moment it is submitted and
// records every call in order.
type fakeDevice struct {
	next  uintptr
	calls []string

	fences       map[frame.Fence]bool // signaled
	semaphores   map[frame.Semaphore]bool
	buffers      map[frame.CommandBuffer]bool
	views        map[frame.ImageView]bool
	framebuffers map[frame.Framebuffer]frame.Extent2D
	renderPasses map[frame.RenderPass]frame.RenderPassDescription
	depths       map[frame.Image]frame.DepthStencil

	depthSupport map[frame.Format]bool
	submits      []submission
	waited       []frame.Fence

	failSubmit    error
	failFences    int // fail the n-th fence creation, 1 based
	createdFences int

	failViews           int // fail the n-th image view creation, 1 based
	createdViews        int
	failFramebuffers    int // fail the n-th framebuffer creation, 1 based
	createdFramebuffers int

	// failDepth fails depth stencil creation. The handles it returns
	// were never live, so destroying them counts as a double free.
	failDepth error

	// doubleFreed lists destroy calls on handles that are not live.
	doubleFreed []string
}

type submission struct {
	commands     frame.CommandBuffer
	wait, signal frame.Semaphore
	fence        frame.Fence
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		fences:       make(map[frame.Fence]bool),
		semaphores:   make(map[frame.Semaphore]bool),
		buffers:      make(map[frame.CommandBuffer]bool),
		views:        make(map[frame.ImageView]bool),
		framebuffers: make(map[frame.Framebuffer]frame.Extent2D),
		renderPasses: make(map[frame.RenderPass]frame.RenderPassDescription),
		depths:       make(map[frame.Image]frame.DepthStencil),
		depthSupport: map[frame.Format]bool{
			frame.FormatD32SfloatS8Uint: true,
			frame.FormatD16Unorm:        true,
		},
	}
}

func (d *fakeDevice) handle() uintptr {
	d.next++
	return d.next
}

func (d *fakeDevice) record(format string, args ...interface{}) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

func (d *fakeDevice) CreateFence(signaled bool) (frame.Fence, error) {
	d.createdFences++
	if d.failFences == d.createdFences {
		return 0, errors.New("out of device memory")
	}
	f := frame.Fence(d.handle())
	d.fences[f] = signaled
	d.record("CreateFence")
	return f, nil
}

func (d *fakeDevice) WaitForFence(f frame.Fence, timeout uint64) error {
	signaled, ok := d.fences[f]
	if !ok {
		return errors.Errorf("unknown fence %d", f)
	}
	d.waited = append(d.waited, f)
	if !signaled {
		return frame.ErrTimeout
	}
	return nil
}

func (d *fakeDevice) ResetFence(f frame.Fence) error {
	if _, ok := d.fences[f]; !ok {
		return errors.Errorf("unknown fence %d", f)
	}
	d.fences[f] = false
	return nil
}

func (d *fakeDevice) DestroyFence(f frame.Fence) {
	delete(d.fences, f)
	d.record("DestroyFence")
}

func (d *fakeDevice) CreateSemaphore() (frame.Semaphore, error) {
	s := frame.Semaphore(d.handle())
	d.semaphores[s] = true
	d.record("CreateSemaphore")
	return s, nil
}

func (d *fakeDevice) DestroySemaphore(s frame.Semaphore) {
	delete(d.semaphores, s)
	d.record("DestroySemaphore")
}

func (d *fakeDevice) AllocateCommandBuffers(count int) ([]frame.CommandBuffer, error) {
	buffers := make([]frame.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = frame.CommandBuffer(d.handle())
		d.buffers[buffers[i]] = true
	}
	d.record("AllocateCommandBuffers")
	return buffers, nil
}

func (d *fakeDevice) FreeCommandBuffers(buffers []frame.CommandBuffer) {
	for _, b := range buffers {
		delete(d.buffers, b)
	}
	d.record("FreeCommandBuffers")
}

func (d *fakeDevice) Submit(queue frame.Queue, commands frame.CommandBuffer, wait, signal frame.Semaphore, fence frame.Fence) error {
	if d.failSubmit != nil {
		return d.failSubmit
	}
	if d.fences[fence] {
		return errors.New("fence submitted while signaled")
	}
	d.submits = append(d.submits, submission{commands: commands, wait: wait, signal: signal, fence: fence})
	d.fences[fence] = true
	d.record("Submit")
	return nil
}

func (d *fakeDevice) WaitIdle() error {
	d.record("WaitIdle")
	return nil
}

func (d *fakeDevice) CreateImageView(image frame.Image, format frame.Format) (frame.ImageView, error) {
	d.createdViews++
	if d.failViews == d.createdViews {
		return 0, errors.New("out of host memory")
	}
	v := frame.ImageView(d.handle())
	d.views[v] = true
	return v, nil
}

func (d *fakeDevice) DestroyImageView(view frame.ImageView) {
	if !d.views[view] {
		d.doubleFreed = append(d.doubleFreed, fmt.Sprintf("image view %d", view))
	}
	delete(d.views, view)
}

func (d *fakeDevice) SupportsDepthAttachment(format frame.Format) bool {
	return d.depthSupport[format]
}

func (d *fakeDevice) CreateDepthStencil(extent frame.Extent2D, format frame.Format) (frame.DepthStencil, error) {
	ds := frame.DepthStencil{
		Image:  frame.Image(d.handle()),
		View:   frame.ImageView(d.handle()),
		Memory: frame.Memory(d.handle()),
		Format: format,
	}
	if d.failDepth != nil {
		return ds, d.failDepth
	}
	d.depths[ds.Image] = ds
	return ds, nil
}

func (d *fakeDevice) DestroyDepthStencil(ds frame.DepthStencil) {
	if _, ok := d.depths[ds.Image]; !ok {
		d.doubleFreed = append(d.doubleFreed, fmt.Sprintf("depth stencil %d", ds.Image))
	}
	delete(d.depths, ds.Image)
}

func (d *fakeDevice) CreateRenderPass(desc frame.RenderPassDescription) (frame.RenderPass, error) {
	rp := frame.RenderPass(d.handle())
	d.renderPasses[rp] = desc
	d.record("CreateRenderPass")
	return rp, nil
}

func (d *fakeDevice) DestroyRenderPass(rp frame.RenderPass) {
	delete(d.renderPasses, rp)
	d.record("DestroyRenderPass")
}

func (d *fakeDevice) CreateFramebuffer(rp frame.RenderPass, attachments []frame.ImageView, extent frame.Extent2D) (frame.Framebuffer, error) {
	if _, ok := d.renderPasses[rp]; !ok {
		return 0, errors.Errorf("unknown render pass %d", rp)
	}
	if len(attachments) != 2 {
		return 0, errors.Errorf("expected 2 attachments, got %d", len(attachments))
	}
	d.createdFramebuffers++
	if d.failFramebuffers == d.createdFramebuffers {
		return 0, errors.New("out of device memory")
	}
	fb := frame.Framebuffer(d.handle())
	d.framebuffers[fb] = extent
	return fb, nil
}

func (d *fakeDevice) DestroyFramebuffer(fb frame.Framebuffer) {
	if _, ok := d.framebuffers[fb]; !ok {
		d.doubleFreed = append(d.doubleFreed, fmt.Sprintf("framebuffer %d", fb))
	}
	delete(d.framebuffers, fb)
}

// fakeSwapchain implements the swapchain entry points over a fake device.
type fakeSwapchain struct {
	device *fakeDevice

	presentSupport bool
	caps           frame.SurfaceCapabilities
	formats        []frame.SurfaceFormat
	modes          []frame.PresentMode

	created   []frame.SwapchainCreateInfo
	destroyed []frame.Swapchain
	current   frame.Swapchain
	images    map[frame.Swapchain][]frame.Image

	acquires  int
	acquired  []uint32
	presented []uint32
	next      uint32

	// Hooks returning a non nil error fail the call.
	acquireErr func(call int) error
	presentErr func(call int) error
}

func newFakeSwapchain(device *fakeDevice) *fakeSwapchain {
	return &fakeSwapchain{
		device:         device,
		presentSupport: true,
		caps: frame.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  frame.Extent2D{Width: 800, Height: 600},
			MinImageExtent: frame.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: frame.Extent2D{Width: 4096, Height: 4096},
		},
		formats: []frame.SurfaceFormat{
			{Format: frame.FormatB8G8R8A8Srgb, ColorSpace: frame.ColorSpaceSrgbNonlinear},
			{Format: frame.FormatB8G8R8A8Unorm, ColorSpace: frame.ColorSpaceSrgbNonlinear},
		},
		modes:  []frame.PresentMode{frame.PresentModeFifo, frame.PresentModeMailbox},
		images: make(map[frame.Swapchain][]frame.Image),
	}
}

func (s *fakeSwapchain) Resolve(name string) interface{} {
	switch name {
	case frame.ProcGetSurfaceSupport:
		return frame.GetSurfaceSupportFunc(func(uint32) (bool, error) {
			return s.presentSupport, nil
		})
	case frame.ProcGetSurfaceCapabilities:
		return frame.GetSurfaceCapabilitiesFunc(func() (frame.SurfaceCapabilities, error) {
			return s.caps, nil
		})
	case frame.ProcGetSurfaceFormats:
		return frame.GetSurfaceFormatsFunc(func() ([]frame.SurfaceFormat, error) {
			return s.formats, nil
		})
	case frame.ProcGetSurfacePresentModes:
		return frame.GetSurfacePresentModesFunc(func() ([]frame.PresentMode, error) {
			return s.modes, nil
		})
	case frame.ProcCreateSwapchain:
		return frame.CreateSwapchainFunc(s.create)
	case frame.ProcDestroySwapchain:
		return frame.DestroySwapchainFunc(func(sc frame.Swapchain) {
			s.destroyed = append(s.destroyed, sc)
			delete(s.images, sc)
		})
	case frame.ProcGetSwapchainImages:
		return frame.GetSwapchainImagesFunc(func(sc frame.Swapchain) ([]frame.Image, error) {
			images, ok := s.images[sc]
			if !ok {
				return nil, errors.Errorf("unknown swapchain %d", sc)
			}
			return images, nil
		})
	case frame.ProcAcquireNextImage:
		return frame.AcquireNextImageFunc(s.acquire)
	case frame.ProcQueuePresent:
		return frame.QueuePresentFunc(s.present)
	}
	return nil
}

func (s *fakeSwapchain) create(info frame.SwapchainCreateInfo, old frame.Swapchain) (frame.Swapchain, error) {
	if old != s.current {
		return 0, errors.Errorf("old swapchain %d is not current %d", old, s.current)
	}
	sc := frame.Swapchain(s.device.handle())
	images := make([]frame.Image, info.MinImageCount)
	for i := range images {
		images[i] = frame.Image(s.device.handle())
	}
	s.images[sc] = images
	s.created = append(s.created, info)
	s.current = sc
	s.next = 0
	return sc, nil
}

func (s *fakeSwapchain) acquire(sc frame.Swapchain, timeout uint64, signal frame.Semaphore) (uint32, error) {
	call := s.acquires
	s.acquires++
	if s.acquireErr != nil {
		if err := s.acquireErr(call); err != nil {
			return 0, err
		}
	}
	images := s.images[sc]
	index := s.next % uint32(len(images))
	s.next++
	s.acquired = append(s.acquired, index)
	return index, nil
}

func (s *fakeSwapchain) present(queue frame.Queue, sc frame.Swapchain, index uint32, wait frame.Semaphore) error {
	call := len(s.presented)
	s.presented = append(s.presented, index)
	if s.presentErr != nil {
		return s.presentErr(call)
	}
	return nil
}

type fixture struct {
	ctx       *frame.DeviceContext
	device    *fakeDevice
	swapchain *fakeSwapchain
	hook      *test.Hook
}

func newFixture() *fixture {
	device := newFakeDevice()
	swapchain := newFakeSwapchain(device)
	logger, hook := test.NewNullLogger()
	return &fixture{
		ctx: &frame.DeviceContext{
			Device:      device,
			Queue:       frame.Queue(device.handle()),
			QueueFamily: 0,
			Log:         logger,
		},
		device:    device,
		swapchain: swapchain,
		hook:      hook,
	}
}

// connect resolves the swapchain entry points. Tweaks to the fake
// swapchain can be made before or after.
func (f *fixture) connect() *frame.DeviceContext {
	procs, err := frame.ConnectSwapchain(f.swapchain)
	if err != nil {
		panic(err)
	}
	f.ctx.Procs = procs
	return f.ctx
}

// indexOf returns the position of the first call named name at or after from.
func indexOf(calls []string, name string, from int) int {
	for i := from; i < len(calls); i++ {
		if calls[i] == name {
			return i
		}
	}
	return -1
}
