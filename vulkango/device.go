// device.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type Device struct {
	handle C.VkDevice
}

type Queue struct {
	handle C.VkQueue
}

type QueueFlags uint32

const (
	QUEUE_GRAPHICS_BIT QueueFlags = C.VK_QUEUE_GRAPHICS_BIT
	QUEUE_COMPUTE_BIT  QueueFlags = C.VK_QUEUE_COMPUTE_BIT
	QUEUE_TRANSFER_BIT QueueFlags = C.VK_QUEUE_TRANSFER_BIT
)

type QueueFamilyProperties struct {
	QueueFlags QueueFlags
	QueueCount uint32
}

type PhysicalDeviceType int32

const (
	PHYSICAL_DEVICE_TYPE_OTHER          PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_OTHER
	PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_INTEGRATED_GPU
	PHYSICAL_DEVICE_TYPE_DISCRETE_GPU   PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU
	PHYSICAL_DEVICE_TYPE_VIRTUAL_GPU    PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_VIRTUAL_GPU
	PHYSICAL_DEVICE_TYPE_CPU            PhysicalDeviceType = C.VK_PHYSICAL_DEVICE_TYPE_CPU
)

// PhysicalDeviceLimits carries the subset of VkPhysicalDeviceLimits the renderer reads.
type PhysicalDeviceLimits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxUniformBufferRange           uint32
	MaxBoundDescriptorSets          uint32
	MaxPushConstantsSize            uint32
	MaxSamplerAnisotropy            float32
}

type PhysicalDeviceProperties struct {
	ApiVersion    uint32
	DriverVersion uint32
	DeviceType    PhysicalDeviceType
	DeviceName    string
	Limits        PhysicalDeviceLimits
}

type PhysicalDeviceFeatures struct {
	SamplerAnisotropy bool
	FillModeNonSolid  bool
}

type PhysicalDeviceVulkan13Features struct {
	DynamicRendering bool
	Synchronization2 bool
}

type DeviceQueueCreateInfo struct {
	QueueFamilyIndex uint32
	QueuePriorities  []float32
}

type DeviceCreateInfo struct {
	QueueCreateInfos      []DeviceQueueCreateInfo
	EnabledLayerNames     []string
	EnabledExtensionNames []string
	EnabledFeatures       *PhysicalDeviceFeatures
	Vulkan13Features      *PhysicalDeviceVulkan13Features
}

func (physicalDevice PhysicalDevice) GetProperties() PhysicalDeviceProperties {
	var props C.VkPhysicalDeviceProperties
	C.vkGetPhysicalDeviceProperties(physicalDevice.handle, &props)

	return PhysicalDeviceProperties{
		ApiVersion:    uint32(props.apiVersion),
		DriverVersion: uint32(props.driverVersion),
		DeviceType:    PhysicalDeviceType(props.deviceType),
		DeviceName:    C.GoString(&props.deviceName[0]),
		Limits: PhysicalDeviceLimits{
			MinUniformBufferOffsetAlignment: uint64(props.limits.minUniformBufferOffsetAlignment),
			MaxUniformBufferRange:           uint32(props.limits.maxUniformBufferRange),
			MaxBoundDescriptorSets:          uint32(props.limits.maxBoundDescriptorSets),
			MaxPushConstantsSize:            uint32(props.limits.maxPushConstantsSize),
			MaxSamplerAnisotropy:            float32(props.limits.maxSamplerAnisotropy),
		},
	}
}

func (physicalDevice PhysicalDevice) GetQueueFamilyProperties() []QueueFamilyProperties {
	var count C.uint32_t
	C.vkGetPhysicalDeviceQueueFamilyProperties(physicalDevice.handle, &count, nil)

	if count == 0 {
		return nil
	}

	props := make([]C.VkQueueFamilyProperties, count)
	C.vkGetPhysicalDeviceQueueFamilyProperties(physicalDevice.handle, &count, &props[0])

	families := make([]QueueFamilyProperties, count)
	for i := range families {
		families[i] = QueueFamilyProperties{
			QueueFlags: QueueFlags(props[i].queueFlags),
			QueueCount: uint32(props[i].queueCount),
		}
	}

	return families
}

func (physicalDevice PhysicalDevice) GetFeatures() PhysicalDeviceFeatures {
	var features C.VkPhysicalDeviceFeatures
	C.vkGetPhysicalDeviceFeatures(physicalDevice.handle, &features)

	return PhysicalDeviceFeatures{
		SamplerAnisotropy: features.samplerAnisotropy == C.VK_TRUE,
		FillModeNonSolid:  features.fillModeNonSolid == C.VK_TRUE,
	}
}

func (physicalDevice PhysicalDevice) GetFormatProperties(format Format) FormatProperties {
	var props C.VkFormatProperties
	C.vkGetPhysicalDeviceFormatProperties(physicalDevice.handle, C.VkFormat(format), &props)

	return FormatProperties{
		LinearTilingFeatures:  FormatFeatureFlags(props.linearTilingFeatures),
		OptimalTilingFeatures: FormatFeatureFlags(props.optimalTilingFeatures),
		BufferFeatures:        FormatFeatureFlags(props.bufferFeatures),
	}
}

func (physicalDevice PhysicalDevice) GetSurfaceSupportKHR(queueFamilyIndex uint32, surface SurfaceKHR) (bool, error) {
	var supported C.VkBool32
	result := C.vkGetPhysicalDeviceSurfaceSupportKHR(
		physicalDevice.handle,
		C.uint32_t(queueFamilyIndex),
		surface.handle,
		&supported,
	)

	if result != C.VK_SUCCESS {
		return false, Result(result)
	}

	return supported == C.VK_TRUE, nil
}

type deviceCreateData struct {
	cInfo            *C.VkDeviceCreateInfo
	queueCreateInfos []C.VkDeviceQueueCreateInfo
	queuePriorities  [][]C.float
	layers           []*C.char
	extensions       []*C.char
	features         *C.VkPhysicalDeviceFeatures
	features13       *C.VkPhysicalDeviceVulkan13Features
}

func (info *DeviceCreateInfo) vulkanize() *deviceCreateData {
	data := &deviceCreateData{}

	data.cInfo = (*C.VkDeviceCreateInfo)(C.calloc(1, C.sizeof_VkDeviceCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO

	if len(info.QueueCreateInfos) > 0 {
		data.queueCreateInfos = make([]C.VkDeviceQueueCreateInfo, len(info.QueueCreateInfos))
		data.queuePriorities = make([][]C.float, len(info.QueueCreateInfos))

		for i, queueInfo := range info.QueueCreateInfos {
			data.queuePriorities[i] = make([]C.float, len(queueInfo.QueuePriorities))
			for j, priority := range queueInfo.QueuePriorities {
				data.queuePriorities[i][j] = C.float(priority)
			}

			q := &data.queueCreateInfos[i]
			q.sType = C.VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO
			q.queueFamilyIndex = C.uint32_t(queueInfo.QueueFamilyIndex)
			q.queueCount = C.uint32_t(len(queueInfo.QueuePriorities))
			if len(data.queuePriorities[i]) > 0 {
				q.pQueuePriorities = &data.queuePriorities[i][0]
			}
		}

		data.cInfo.queueCreateInfoCount = C.uint32_t(len(data.queueCreateInfos))
		data.cInfo.pQueueCreateInfos = &data.queueCreateInfos[0]
	}

	if n := len(info.EnabledLayerNames); n > 0 {
		data.layers = cStringArray(info.EnabledLayerNames)
		data.cInfo.enabledLayerCount = C.uint32_t(n)
		data.cInfo.ppEnabledLayerNames = &data.layers[0]
	}

	if n := len(info.EnabledExtensionNames); n > 0 {
		data.extensions = cStringArray(info.EnabledExtensionNames)
		data.cInfo.enabledExtensionCount = C.uint32_t(n)
		data.cInfo.ppEnabledExtensionNames = &data.extensions[0]
	}

	if f := info.Vulkan13Features; f != nil {
		data.features13 = (*C.VkPhysicalDeviceVulkan13Features)(C.calloc(1, C.sizeof_VkPhysicalDeviceVulkan13Features))
		data.features13.sType = C.VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_VULKAN_1_3_FEATURES
		data.features13.dynamicRendering = boolToVk(f.DynamicRendering)
		data.features13.synchronization2 = boolToVk(f.Synchronization2)
		data.cInfo.pNext = unsafe.Pointer(data.features13)
	}

	if f := info.EnabledFeatures; f != nil {
		data.features = (*C.VkPhysicalDeviceFeatures)(C.calloc(1, C.sizeof_VkPhysicalDeviceFeatures))
		data.features.samplerAnisotropy = boolToVk(f.SamplerAnisotropy)
		data.features.fillModeNonSolid = boolToVk(f.FillModeNonSolid)
		data.cInfo.pEnabledFeatures = data.features
	}

	return data
}

func (data *deviceCreateData) free() {
	freeCStringArray(data.layers)
	freeCStringArray(data.extensions)

	if data.features != nil {
		C.free(unsafe.Pointer(data.features))
	}
	if data.features13 != nil {
		C.free(unsafe.Pointer(data.features13))
	}
	C.free(unsafe.Pointer(data.cInfo))
}

func (physicalDevice PhysicalDevice) CreateDevice(createInfo *DeviceCreateInfo) (Device, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var device C.VkDevice
	result := C.vkCreateDevice(physicalDevice.handle, data.cInfo, nil, &device)

	if result != C.VK_SUCCESS {
		return Device{}, Result(result)
	}

	return Device{handle: device}, nil
}

func (device Device) Destroy() {
	C.vkDestroyDevice(device.handle, nil)
}

func (device Device) WaitIdle() error {
	result := C.vkDeviceWaitIdle(device.handle)
	if result != C.VK_SUCCESS {
		return Result(result)
	}
	return nil
}

func (device Device) GetQueue(queueFamilyIndex, queueIndex uint32) Queue {
	var queue C.VkQueue
	C.vkGetDeviceQueue(device.handle, C.uint32_t(queueFamilyIndex), C.uint32_t(queueIndex), &queue)
	return Queue{handle: queue}
}
