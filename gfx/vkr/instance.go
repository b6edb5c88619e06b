// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package vkr

import (
	"unsafe"

	vk "github.com/devblok/vulkan"
	"github.com/pkg/errors"
)

// DefaultApplicationInfo describes the application to the driver.
var DefaultApplicationInfo = &vk.ApplicationInfo{
	SType:              vk.StructureTypeApplicationInfo,
	ApiVersion:         vk.MakeVersion(1, 0, 0),
	ApplicationVersion: vk.MakeVersion(1, 0, 0),
	PApplicationName:   safeString("Koru3D"),
	PEngineName:        safeString("Koru3D"),
}

// InstanceConfiguration selects the instance extensions and layers.
type InstanceConfiguration struct {
	DebugMode  bool
	Extensions []string
	Layers     []string
}

// PhysicalDeviceInfo describes a GPU available to the instance.
type PhysicalDeviceInfo struct {
	ID            int
	VendorID      int
	DriverVersion int
	Name          string
	Invalid       bool
	Extensions    []string
	Layers        []string
	Memory        uint64
}

// NewInstance creates a vulkan instance. procAddr is the
// vkGetInstanceProcAddr of the windowing layer; when nil the default
// loader is used.
func NewInstance(appInfo *vk.ApplicationInfo, procAddr unsafe.Pointer, cfg InstanceConfiguration) (*Instance, error) {
	if cfg.DebugMode {
		cfg.Layers = append(cfg.Layers, ValidationLayerName)
		cfg.Extensions = append(cfg.Extensions, DebugReportExtensionName)
	}

	if procAddr == nil {
		if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
			return nil, errors.Wrap(err, "vk.SetDefaultGetInstanceProcAddr()")
		}
	} else {
		vk.SetGetInstanceProcAddr(procAddr)
	}

	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vk.Init()")
	}

	instanceInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
		EnabledLayerCount:       uint32(len(cfg.Layers)),
		PpEnabledLayerNames:     safeStrings(cfg.Layers),
	}

	var instance vk.Instance
	if err := vkError("CreateInstance", vk.CreateInstance(&instanceInfo, nil, &instance)); err != nil {
		return nil, err
	}
	vk.InitInstance(instance)

	physicalDevices, err := enumerateDevices(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	return &Instance{
		configuration:    cfg,
		instance:         instance,
		availableDevices: physicalDevices,
	}, nil
}

// Instance owns the vulkan instance and the presentation surface.
type Instance struct {
	configuration InstanceConfiguration

	availableDevices []vk.PhysicalDevice
	surface          vk.Surface
	instance         vk.Instance
}

func enumerateDevices(instance vk.Instance) ([]vk.PhysicalDevice, error) {
	var deviceCount uint32
	if err := vkError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &deviceCount, nil)); err != nil {
		return nil, err
	}
	availableDevices := make([]vk.PhysicalDevice, deviceCount)
	if err := vkError("EnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(instance, &deviceCount, availableDevices)); err != nil {
		return nil, err
	}
	return availableDevices, nil
}

// PhysicalDevicesInfo reports the name, memory, extensions and layers
// of every available GPU.
func (i *Instance) PhysicalDevicesInfo() []PhysicalDeviceInfo {
	pdi := make([]PhysicalDeviceInfo, len(i.availableDevices))
	for n, gpu := range i.availableDevices {
		var numExtensions uint32
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(gpu, "", &numExtensions, nil)); err != nil {
			pdi[n].Invalid = true
		}
		extensions := make([]vk.ExtensionProperties, numExtensions)
		if err := vk.Error(vk.EnumerateDeviceExtensionProperties(gpu, "", &numExtensions, extensions)); err != nil {
			pdi[n].Invalid = true
		}
		for _, ext := range extensions {
			ext.Deref()
			pdi[n].Extensions = append(pdi[n].Extensions, vk.ToString(ext.ExtensionName[:]))
		}

		var numLayers uint32
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(gpu, &numLayers, nil)); err != nil {
			pdi[n].Invalid = true
		}
		layers := make([]vk.LayerProperties, numLayers)
		if err := vk.Error(vk.EnumerateDeviceLayerProperties(gpu, &numLayers, layers)); err != nil {
			pdi[n].Invalid = true
		}
		for _, layer := range layers {
			layer.Deref()
			pdi[n].Layers = append(pdi[n].Layers, vk.ToString(layer.LayerName[:]))
		}

		var memoryProperties vk.PhysicalDeviceMemoryProperties
		vk.GetPhysicalDeviceMemoryProperties(gpu, &memoryProperties)
		memoryProperties.Deref()
		for h := uint32(0); h < memoryProperties.MemoryHeapCount; h++ {
			memoryProperties.MemoryHeaps[h].Deref()
			pdi[n].Memory += uint64(memoryProperties.MemoryHeaps[h].Size)
		}

		var properties vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &properties)
		properties.Deref()
		pdi[n].ID = int(properties.DeviceID)
		pdi[n].VendorID = int(properties.VendorID)
		pdi[n].Name = vk.ToString(properties.DeviceName[:])
		pdi[n].DriverVersion = int(properties.DriverVersion)
	}
	return pdi
}

// SetSurface takes ownership of a surface created by the window layer.
func (i *Instance) SetSurface(pSurface unsafe.Pointer) {
	i.surface = vk.SurfaceFromPointer(uintptr(pSurface))
}

// Surface returns the presentation surface, or a null surface.
func (i *Instance) Surface() vk.Surface {
	if i.surface == nil {
		return vk.NullSurface
	}
	return i.surface
}

// Handle returns the vk.Instance, typed for windowing libraries that
// accept any instance value.
func (i *Instance) Handle() interface{} {
	return i.instance
}

// Extensions lists the enabled instance extensions.
func (i *Instance) Extensions() []string {
	return i.configuration.Extensions
}

// HasExtension reports whether name was enabled on the instance.
func (i *Instance) HasExtension(name string) bool {
	for _, ext := range i.configuration.Extensions {
		if ext == name || ext == safeString(name) {
			return true
		}
	}
	return false
}

// AvailableDevices lists the enumerated GPUs.
func (i *Instance) AvailableDevices() []vk.PhysicalDevice {
	return i.availableDevices
}

// Destroy releases the surface and the instance.
func (i *Instance) Destroy() {
	if i.surface != nil {
		vk.DestroySurface(i.instance, i.surface, nil)
		i.surface = nil
	}
	i.availableDevices = nil
	vk.DestroyInstance(i.instance, nil)
}
