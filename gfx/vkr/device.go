// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/devblok/koruframe/gfx/frame"
)

// DeviceConfiguration selects the GPU and extra device extensions.
type DeviceConfiguration struct {
	DeviceIndex int
	Extensions  []string
}

// Device is the logical device with its single graphics and present
// queue. It implements frame.Device and frame.ProcResolver.
type Device struct {
	instance    *Instance
	physical    vk.PhysicalDevice
	device      vk.Device
	queue       vk.Queue
	queueFamily uint32
	commandPool vk.CommandPool
	allocator   *MemoryAllocator
	extensions  map[string]bool
	log         logrus.FieldLogger
}

// queueFamily is what device selection needs to know of a family.
type queueFamily struct {
	graphics bool
	present  bool
}

// selectQueueFamily picks the first family offering both graphics and
// present.
func selectQueueFamily(families []queueFamily) (uint32, error) {
	var graphicsFound, presentFound bool
	for i, f := range families {
		if f.graphics && f.present {
			return uint32(i), nil
		}
		graphicsFound = graphicsFound || f.graphics
		presentFound = presentFound || f.present
	}
	if graphicsFound && presentFound {
		return 0, ErrSeparatePresentQueue
	}
	return 0, ErrNoGraphicsQueue
}

// NewDevice creates the logical device on the configured GPU of instance.
// The instance surface must already be set.
func NewDevice(instance *Instance, cfg DeviceConfiguration, log logrus.FieldLogger) (*Device, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	gpus := instance.AvailableDevices()
	if cfg.DeviceIndex < 0 || cfg.DeviceIndex >= len(gpus) {
		return nil, errors.Wrapf(ErrNoPhysicalDevice, "device index %d of %d", cfg.DeviceIndex, len(gpus))
	}
	gpu := gpus[cfg.DeviceIndex]

	var familyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
	properties := make([]vk.QueueFamilyProperties, familyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, properties)

	families := make([]queueFamily, familyCount)
	for i := range properties {
		properties[i].Deref()
		families[i].graphics = properties[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0
		if instance.Surface() != vk.NullSurface {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), instance.Surface(), &supported)
			families[i].present = supported.B()
		}
	}
	familyIndex, err := selectQueueFamily(families)
	if err != nil {
		return nil, err
	}

	available, err := deviceExtensions(gpu)
	if err != nil {
		return nil, err
	}
	enabled := make(map[string]bool)
	var extensions []string
	for _, name := range append([]string{SwapchainExtensionName}, cfg.Extensions...) {
		if !available[name] {
			log.WithField("extension", name).Warn("device extension not available")
			continue
		}
		if !enabled[name] {
			enabled[name] = true
			extensions = append(extensions, name)
		}
	}

	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: familyIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}

	var device vk.Device
	if err := vkError("CreateDevice", vk.CreateDevice(gpu, &dci, nil, &device)); err != nil {
		return nil, err
	}

	var queue vk.Queue
	vk.GetDeviceQueue(device, familyIndex, 0, &queue)

	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: familyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	var commandPool vk.CommandPool
	if err := vkError("CreateCommandPool", vk.CreateCommandPool(device, &cpci, nil, &commandPool)); err != nil {
		vk.DestroyDevice(device, nil)
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"queue_family": familyIndex,
		"extensions":   extensions,
	}).Debug("logical device created")

	return &Device{
		instance:    instance,
		physical:    gpu,
		device:      device,
		queue:       queue,
		queueFamily: familyIndex,
		commandPool: commandPool,
		allocator:   NewMemoryAllocator(device, gpu),
		extensions:  enabled,
		log:         log,
	}, nil
}

func deviceExtensions(gpu vk.PhysicalDevice) (map[string]bool, error) {
	var count uint32
	if err := vkError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)); err != nil {
		return nil, err
	}
	properties := make([]vk.ExtensionProperties, count)
	if err := vkError("EnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(gpu, "", &count, properties)); err != nil {
		return nil, err
	}
	available := make(map[string]bool, count)
	for _, p := range properties {
		p.Deref()
		available[vk.ToString(p.ExtensionName[:])] = true
	}
	return available, nil
}

// Context connects the swapchain entry points and describes the device
// to the frame core.
func (d *Device) Context() (*frame.DeviceContext, error) {
	procs, err := frame.ConnectSwapchain(d)
	if err != nil {
		return nil, err
	}
	return &frame.DeviceContext{
		Device:      d,
		Procs:       procs,
		Queue:       queueHandle(d.queue),
		QueueFamily: d.queueFamily,
		Log:         d.log,
	}, nil
}

// Handle returns the logical device.
func (d *Device) Handle() vk.Device {
	return d.device
}

// Physical returns the GPU the device was created on.
func (d *Device) Physical() vk.PhysicalDevice {
	return d.physical
}

// Allocator returns the device memory allocator.
func (d *Device) Allocator() *MemoryAllocator {
	return d.allocator
}

// Destroy releases the command pool and the logical device. Everything
// created from the device must be released first.
func (d *Device) Destroy() {
	if d.device == nil {
		return
	}
	vk.DestroyCommandPool(d.device, d.commandPool, nil)
	vk.DestroyDevice(d.device, nil)
	d.device = nil
}
