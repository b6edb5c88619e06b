// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package frame

import (
	"time"

	"github.com/pkg/errors"
)

// FrameSlot is the command buffer and completion fence
// used for one presentable image.
type FrameSlot struct {
	Commands CommandBuffer
	fence    *ownedFence
}

// Fence returns the completion fence of the slot.
func (s *FrameSlot) Fence() Fence {
	return s.fence.handle
}

// SemaphorePair orders acquire, rendering and presentation on the GPU.
type SemaphorePair struct {
	ImageAcquired  Semaphore
	RenderComplete Semaphore
}

// NewPool creates an empty frame resource pool. A non-positive
// fenceTimeout waits on fences indefinitely.
func NewPool(ctx *DeviceContext, fenceTimeout time.Duration) *Pool {
	return &Pool{
		ctx:          ctx,
		fenceTimeout: timeoutNanos(int64(fenceTimeout)),
	}
}

// Pool owns one FrameSlot per presentable image and
// the semaphore pair shared by all frames.
type Pool struct {
	ctx          *DeviceContext
	fenceTimeout uint64

	commands       []CommandBuffer
	slots          []FrameSlot
	imageAcquired  *ownedSemaphore
	renderComplete *ownedSemaphore
}

// Initialize allocates imageCount slots with signaled fences and the
// semaphore pair. Previously held resources are released first, so
// the device must be idle.
func (p *Pool) Initialize(imageCount int) (err error) {
	if imageCount <= 0 {
		return errors.Errorf("frame: invalid image count %d", imageCount)
	}
	p.Release()
	defer func() {
		if err != nil {
			p.Release()
		}
	}()

	device := p.ctx.Device
	commands, err := device.AllocateCommandBuffers(imageCount)
	if err != nil {
		return driverFailure("vkAllocateCommandBuffers", err)
	}
	if len(commands) != imageCount {
		device.FreeCommandBuffers(commands)
		return driverFailure("vkAllocateCommandBuffers",
			errors.Errorf("allocated %d command buffers, wanted %d", len(commands), imageCount))
	}
	p.commands = commands

	p.slots = make([]FrameSlot, 0, imageCount)
	for _, cmd := range commands {
		fence, err := newOwnedFence(device, true)
		if err != nil {
			return err
		}
		p.slots = append(p.slots, FrameSlot{Commands: cmd, fence: fence})
	}

	if p.imageAcquired, err = newOwnedSemaphore(device); err != nil {
		return err
	}
	if p.renderComplete, err = newOwnedSemaphore(device); err != nil {
		return err
	}

	p.ctx.logger().WithField("slots", imageCount).Debug("frame pool initialized")
	return nil
}

// WaitAndReset blocks until the last submission of slot index has
// completed and resets its fence for the next submission.
func (p *Pool) WaitAndReset(index int) error {
	slot, err := p.Slot(index)
	if err != nil {
		return err
	}
	if err := p.ctx.Device.WaitForFence(slot.Fence(), p.fenceTimeout); err != nil {
		return driverFailure("vkWaitForFences", err)
	}
	if err := p.ctx.Device.ResetFence(slot.Fence()); err != nil {
		return driverFailure("vkResetFences", err)
	}
	return nil
}

// Submit enqueues commands for slot index. The slot fence is signaled
// when the GPU is done with them.
func (p *Pool) Submit(index int, commands CommandBuffer, wait, signal Semaphore, queue Queue) error {
	slot, err := p.Slot(index)
	if err != nil {
		return err
	}
	if err := p.ctx.Device.Submit(queue, commands, wait, signal, slot.Fence()); err != nil {
		return driverFailure("vkQueueSubmit", err)
	}
	return nil
}

// Semaphores returns the shared semaphore pair.
func (p *Pool) Semaphores() SemaphorePair {
	var pair SemaphorePair
	if p.imageAcquired != nil {
		pair.ImageAcquired = p.imageAcquired.handle
	}
	if p.renderComplete != nil {
		pair.RenderComplete = p.renderComplete.handle
	}
	return pair
}

// Slot returns the slot for image index.
func (p *Pool) Slot(index int) (*FrameSlot, error) {
	if index < 0 || index >= len(p.slots) {
		return nil, errors.Errorf("frame: slot %d out of range of %d", index, len(p.slots))
	}
	return &p.slots[index], nil
}

// Len returns the number of slots.
func (p *Pool) Len() int {
	return len(p.slots)
}

// Release implements interface
func (p *Pool) Release() {
	for i := range p.slots {
		p.slots[i].fence.Release()
	}
	p.slots = nil
	if len(p.commands) > 0 {
		p.ctx.Device.FreeCommandBuffers(p.commands)
		p.commands = nil
	}
	p.imageAcquired.Release()
	p.renderComplete.Release()
	p.imageAcquired, p.renderComplete = nil, nil
}
