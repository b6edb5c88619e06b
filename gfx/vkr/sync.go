// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"

	"github.com/devblok/koruframe/gfx/frame"
)

// CreateFence implements frame.Device.
func (d *Device) CreateFence(signaled bool) (frame.Fence, error) {
	fci := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fci.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := vkError("CreateFence", vk.CreateFence(d.device, &fci, nil, &fence)); err != nil {
		return 0, err
	}
	return fenceHandle(fence), nil
}

// WaitForFence implements frame.Device.
func (d *Device) WaitForFence(fence frame.Fence, timeout uint64) error {
	result := vk.WaitForFences(d.device, 1, []vk.Fence{vkFence(fence)}, vk.True, uint(timeout))
	if result == vk.Timeout {
		return frame.ErrTimeout
	}
	return vkError("WaitForFences", result)
}

// ResetFence implements frame.Device.
func (d *Device) ResetFence(fence frame.Fence) error {
	return vkError("ResetFences", vk.ResetFences(d.device, 1, []vk.Fence{vkFence(fence)}))
}

// DestroyFence implements frame.Device.
func (d *Device) DestroyFence(fence frame.Fence) {
	vk.DestroyFence(d.device, vkFence(fence), nil)
}

// CreateSemaphore implements frame.Device.
func (d *Device) CreateSemaphore() (frame.Semaphore, error) {
	sci := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := vkError("CreateSemaphore", vk.CreateSemaphore(d.device, &sci, nil, &semaphore)); err != nil {
		return 0, err
	}
	return semaphoreHandle(semaphore), nil
}

// DestroySemaphore implements frame.Device.
func (d *Device) DestroySemaphore(semaphore frame.Semaphore) {
	vk.DestroySemaphore(d.device, vkSemaphore(semaphore), nil)
}

// AllocateCommandBuffers implements frame.Device. The buffers are primary
// and individually resettable.
func (d *Device) AllocateCommandBuffers(count int) ([]frame.CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := vkError("AllocateCommandBuffers", vk.AllocateCommandBuffers(d.device, &cbai, buffers)); err != nil {
		return nil, err
	}
	handles := make([]frame.CommandBuffer, count)
	for i, b := range buffers {
		handles[i] = commandBufferHandle(b)
	}
	return handles, nil
}

// FreeCommandBuffers implements frame.Device.
func (d *Device) FreeCommandBuffers(buffers []frame.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	native := make([]vk.CommandBuffer, len(buffers))
	for i, b := range buffers {
		native[i] = vkCommandBuffer(b)
	}
	vk.FreeCommandBuffers(d.device, d.commandPool, uint32(len(native)), native)
}

// Submit implements frame.Device.
func (d *Device) Submit(queue frame.Queue, commands frame.CommandBuffer, wait, signal frame.Semaphore, fence frame.Fence) error {
	submitInfo := []vk.SubmitInfo{{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{vkSemaphore(wait)},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{vkCommandBuffer(commands)},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{vkSemaphore(signal)},
	}}
	return vkError("QueueSubmit", vk.QueueSubmit(vkQueue(queue), 1, submitInfo, vkFence(fence)))
}

// WaitIdle implements frame.Device.
func (d *Device) WaitIdle() error {
	return vkError("DeviceWaitIdle", vk.DeviceWaitIdle(d.device))
}
