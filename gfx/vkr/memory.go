// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// ErrNoMemoryType is returned when no heap satisfies an allocation.
var ErrNoMemoryType = errors.New("suitable memory type not found")

// Memory is a device memory allocation bound to one resource.
type Memory struct {
	size   vk.DeviceSize
	device vk.Device
	memory vk.DeviceMemory
}

// Size returns the length of the allocation.
func (m *Memory) Size() vk.DeviceSize {
	return m.size
}

// Get returns the vulkan memory handle.
func (m *Memory) Get() vk.DeviceMemory {
	return m.memory
}

// Release frees the allocation. It may be called more than once.
func (m *Memory) Release() {
	if m.memory == nil {
		return
	}
	vk.FreeMemory(m.device, m.memory, nil)
	m.memory = nil
}

// NewMemoryAllocator reads the memory properties of the physical device
// and allocates from the logical one.
func NewMemoryAllocator(device vk.Device, phyDevice vk.PhysicalDevice) *MemoryAllocator {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(phyDevice, &memProperties)
	memProperties.Deref()

	types := make([]vk.MemoryPropertyFlags, memProperties.MemoryTypeCount)
	for idx := range types {
		memProperties.MemoryTypes[idx].Deref()
		types[idx] = memProperties.MemoryTypes[idx].PropertyFlags
	}

	return &MemoryAllocator{
		device:    device,
		typeFlags: types,
	}
}

// MemoryAllocator hands out device memory for images and buffers.
type MemoryAllocator struct {
	device    vk.Device
	typeFlags []vk.MemoryPropertyFlags
}

// Malloc allocates memory satisfying req with the given properties.
func (ma *MemoryAllocator) Malloc(req vk.MemoryRequirements, prop vk.MemoryPropertyFlagBits) (Memory, error) {
	memTypeIdx, err := findMemoryType(ma.typeFlags, req.MemoryTypeBits, vk.MemoryPropertyFlags(prop))
	if err != nil {
		return Memory{}, err
	}

	mai := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memTypeIdx,
	}

	var memory vk.DeviceMemory
	if err := vkError("AllocateMemory", vk.AllocateMemory(ma.device, &mai, nil, &memory)); err != nil {
		return Memory{}, err
	}

	return Memory{
		size:   req.Size,
		device: ma.device,
		memory: memory,
	}, nil
}

// findMemoryType returns the first memory type allowed by filter that
// carries every bit of prop.
func findMemoryType(types []vk.MemoryPropertyFlags, filter uint32, prop vk.MemoryPropertyFlags) (uint32, error) {
	for idx := range types {
		if filter&(1<<uint(idx)) != 0 && types[idx]&prop == prop {
			return uint32(idx), nil
		}
	}
	return 0, ErrNoMemoryType
}
