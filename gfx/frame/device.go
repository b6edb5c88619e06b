// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"github.com/sirupsen/logrus"
)

// Device is the logical device surface the frame core drives.
// Implementations own the command pool and memory type lookup.
type Device interface {
	CreateFence(signaled bool) (Fence, error)
	// WaitForFence blocks until the fence is signaled. timeout is in
	// nanoseconds; ErrTimeout is returned when it expires.
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error
	DestroyFence(fence Fence)

	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)

	// Submit enqueues commands on queue, waiting on wait at the color
	// attachment output stage and signaling signal and fence.
	Submit(queue Queue, commands CommandBuffer, wait, signal Semaphore, fence Fence) error
	WaitIdle() error

	CreateImageView(image Image, format Format) (ImageView, error)
	DestroyImageView(view ImageView)

	// SupportsDepthAttachment reports whether format can back a
	// depth-stencil attachment with optimal tiling.
	SupportsDepthAttachment(format Format) bool
	CreateDepthStencil(extent Extent2D, format Format) (DepthStencil, error)
	DestroyDepthStencil(depth DepthStencil)

	CreateRenderPass(desc RenderPassDescription) (RenderPass, error)
	DestroyRenderPass(renderPass RenderPass)
	CreateFramebuffer(renderPass RenderPass, attachments []ImageView, extent Extent2D) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)
}

// DeviceContext is handed to every frame component
// in place of global device state.
type DeviceContext struct {
	Device      Device
	Procs       *SwapchainProcs
	Queue       Queue
	QueueFamily uint32
	Log         logrus.FieldLogger
}

func (c *DeviceContext) logger() logrus.FieldLogger {
	if c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

/* Owned synchronization primitives */

type ownedFence struct {
	device Device
	handle Fence
}

func newOwnedFence(device Device, signaled bool) (*ownedFence, error) {
	fence, err := device.CreateFence(signaled)
	if err != nil {
		return nil, driverFailure("vkCreateFence", err)
	}
	return &ownedFence{device: device, handle: fence}, nil
}

// Release implements interface
func (f *ownedFence) Release() {
	if f == nil || f.handle == 0 {
		return
	}
	f.device.DestroyFence(f.handle)
	f.handle = 0
}

type ownedSemaphore struct {
	device Device
	handle Semaphore
}

func newOwnedSemaphore(device Device) (*ownedSemaphore, error) {
	semaphore, err := device.CreateSemaphore()
	if err != nil {
		return nil, driverFailure("vkCreateSemaphore", err)
	}
	return &ownedSemaphore{device: device, handle: semaphore}, nil
}

// Release implements interface
func (s *ownedSemaphore) Release() {
	if s == nil || s.handle == 0 {
		return
	}
	s.device.DestroySemaphore(s.handle)
	s.handle = 0
}

// timeoutNanos converts a wait bound to the device representation,
// where zero or negative means no bound.
func timeoutNanos(d int64) uint64 {
	if d <= 0 {
		return ^uint64(0)
	}
	return uint64(d)
}
