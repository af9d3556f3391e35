// instance.go
package vulkango

// #cgo windows LDFLAGS: -LC:/VulkanSDK/1.4.328.1/Lib -lvulkan-1
// #cgo windows CFLAGS: -IC:/VulkanSDK/1.4.328.1/Include
// #cgo linux LDFLAGS: -lvulkan
// #cgo darwin LDFLAGS: -lvulkan
// #include <vulkan/vulkan.h>
// #include <stdlib.h>
import "C"
import "unsafe"

type Instance struct {
	handle C.VkInstance
}

type PhysicalDevice struct {
	handle C.VkPhysicalDevice
}

type ApplicationInfo struct {
	ApplicationName    string
	ApplicationVersion uint32
	EngineName         string
	EngineVersion      uint32
	ApiVersion         uint32
}

type InstanceCreateInfo struct {
	ApplicationInfo       *ApplicationInfo
	EnabledLayerNames     []string
	EnabledExtensionNames []string
}

func MakeApiVersion(variant, major, minor, patch uint32) uint32 {
	return variant<<29 | major<<22 | minor<<12 | patch
}

func ApiVersionMajor(version uint32) uint32 { return (version >> 22) & 0x7F }
func ApiVersionMinor(version uint32) uint32 { return (version >> 12) & 0x3FF }
func ApiVersionPatch(version uint32) uint32 { return version & 0xFFF }

var (
	ApiVersion_1_3 = MakeApiVersion(0, 1, 3, 0)
	ApiVersion_1_4 = MakeApiVersion(0, 1, 4, 0)
)

func EnumerateInstanceVersion() (uint32, error) {
	var version C.uint32_t
	result := C.vkEnumerateInstanceVersion(&version)

	if result != C.VK_SUCCESS {
		return 0, Result(result)
	}

	return uint32(version), nil
}

type instanceCreateData struct {
	cInfo      *C.VkInstanceCreateInfo
	appInfo    *C.VkApplicationInfo
	strings    []*C.char
	layers     []*C.char
	extensions []*C.char
}

func (info *InstanceCreateInfo) vulkanize() *instanceCreateData {
	data := &instanceCreateData{}

	data.cInfo = (*C.VkInstanceCreateInfo)(C.calloc(1, C.sizeof_VkInstanceCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO

	if app := info.ApplicationInfo; app != nil {
		data.appInfo = (*C.VkApplicationInfo)(C.calloc(1, C.sizeof_VkApplicationInfo))
		data.appInfo.sType = C.VK_STRUCTURE_TYPE_APPLICATION_INFO
		if app.ApplicationName != "" {
			name := C.CString(app.ApplicationName)
			data.strings = append(data.strings, name)
			data.appInfo.pApplicationName = name
		}
		if app.EngineName != "" {
			name := C.CString(app.EngineName)
			data.strings = append(data.strings, name)
			data.appInfo.pEngineName = name
		}
		data.appInfo.applicationVersion = C.uint32_t(app.ApplicationVersion)
		data.appInfo.engineVersion = C.uint32_t(app.EngineVersion)
		data.appInfo.apiVersion = C.uint32_t(app.ApiVersion)
		data.cInfo.pApplicationInfo = data.appInfo
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

	return data
}

func (data *instanceCreateData) free() {
	for _, s := range data.strings {
		C.free(unsafe.Pointer(s))
	}
	freeCStringArray(data.layers)
	freeCStringArray(data.extensions)
	if data.appInfo != nil {
		C.free(unsafe.Pointer(data.appInfo))
	}
	C.free(unsafe.Pointer(data.cInfo))
}

func cStringArray(names []string) []*C.char {
	arr := make([]*C.char, len(names))
	for i, name := range names {
		arr[i] = C.CString(name)
	}
	return arr
}

func freeCStringArray(arr []*C.char) {
	for _, s := range arr {
		C.free(unsafe.Pointer(s))
	}
}

func CreateInstance(createInfo *InstanceCreateInfo) (Instance, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var instance C.VkInstance
	result := C.vkCreateInstance(data.cInfo, nil, &instance)

	if result != C.VK_SUCCESS {
		return Instance{}, Result(result)
	}

	return Instance{handle: instance}, nil
}

func (instance Instance) Destroy() {
	C.vkDestroyInstance(instance.handle, nil)
}

// Handle exposes the raw VkInstance for window libraries that create surfaces.
func (instance Instance) Handle() unsafe.Pointer {
	return unsafe.Pointer(instance.handle)
}

func (instance Instance) EnumeratePhysicalDevices() ([]PhysicalDevice, error) {
	var count C.uint32_t
	result := C.vkEnumeratePhysicalDevices(instance.handle, &count, nil)
	if result != C.VK_SUCCESS {
		return nil, Result(result)
	}
	if count == 0 {
		return nil, nil
	}

	handles := make([]C.VkPhysicalDevice, count)
	result = C.vkEnumeratePhysicalDevices(instance.handle, &count, &handles[0])
	if result != C.VK_SUCCESS && result != C.VK_INCOMPLETE {
		return nil, Result(result)
	}

	devices := make([]PhysicalDevice, count)
	for i := range devices {
		devices[i] = PhysicalDevice{handle: handles[i]}
	}
	return devices, nil
}

func (instance Instance) DestroySurfaceKHR(surface SurfaceKHR) {
	C.vkDestroySurfaceKHR(instance.handle, surface.handle, nil)
}
