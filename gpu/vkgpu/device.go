// Package vkgpu implements gpu.Device on the vulkango binding.
package vkgpu

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unsafe"

	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

type InstanceOptions struct {
	AppName string
	// Extensions are the instance extensions the window system needs.
	Extensions []string
	Validation bool
}

// Instance wraps the Vulkan instance. It outlives every Device opened on it.
type Instance struct {
	handle vk.Instance
}

func NewInstance(opts InstanceOptions) (*Instance, error) {
	version, err := vk.EnumerateInstanceVersion()
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: enumerate instance version")
	}
	if version < vk.ApiVersion_1_3 {
		return nil, errors.Errorf("vkgpu: Vulkan %d.%d found, 1.3 required",
			vk.ApiVersionMajor(version), vk.ApiVersionMinor(version))
	}

	info := &vk.InstanceCreateInfo{
		ApplicationInfo: &vk.ApplicationInfo{
			ApplicationName:    opts.AppName,
			ApplicationVersion: vk.MakeApiVersion(0, 1, 0, 0),
			EngineName:         "trianglego",
			EngineVersion:      vk.MakeApiVersion(0, 1, 0, 0),
			ApiVersion:         vk.ApiVersion_1_3,
		},
		EnabledExtensionNames: opts.Extensions,
	}
	if opts.Validation {
		info.EnabledLayerNames = []string{validationLayer}
	}

	handle, err := vk.CreateInstance(info)
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create instance")
	}
	return &Instance{handle: handle}, nil
}

// Handle is the raw VkInstance, for creating a window surface.
func (i *Instance) Handle() unsafe.Pointer { return i.handle.Handle() }

func (i *Instance) Destroy() { i.handle.Destroy() }

type DeviceOptions struct {
	// PresentMode is "fifo", "mailbox" or "immediate"; unsupported modes fall back to FIFO.
	PresentMode  string
	Validation   bool
	// DrawableSize reports the window's size in pixels. It is consulted only
	// when the surface leaves the extent to the swapchain.
	DrawableSize func() gpu.Extent
	Logger       *slog.Logger
}

// Device is a logical device with one graphics+present queue, a resettable
// command pool and the surface it presents to.
type Device struct {
	instance *Instance
	surface  vk.SurfaceKHR
	physical vk.PhysicalDevice
	handle   vk.Device
	queue    vk.Queue
	family   uint32
	pool     vk.CommandPool

	props       vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures
	colorFormat vk.Format
	depthFormat vk.Format
	presentMode vk.PresentModeKHR

	drawableSize func() gpu.Extent
	logger       *slog.Logger
}

var _ gpu.Device = (*Device)(nil)

// Open picks a physical device that can render and present to surface and
// creates the logical device on it. The device takes ownership of surface.
func Open(instance *Instance, surfaceHandle unsafe.Pointer, opts DeviceOptions) (*Device, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	d := &Device{
		instance:     instance,
		surface:      vk.NewSurfaceKHR(surfaceHandle),
		drawableSize: opts.DrawableSize,
		logger:       logger,
	}

	if err := d.pickPhysicalDevice(); err != nil {
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, err
	}

	support, err := d.physical.QuerySwapchainSupport(d.surface)
	if err != nil {
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, errors.Wrap(err, "vkgpu: query swapchain support")
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, errors.New("vkgpu: surface offers no formats or present modes")
	}
	d.colorFormat = vk.ChooseSurfaceFormat(support.Formats).Format
	d.presentMode = vk.ChoosePresentMode(support.PresentModes, parsePresentMode(opts.PresentMode))

	depth, ok := vk.FindDepthFormat(d.physical)
	if !ok {
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, errors.New("vkgpu: no depth attachment format")
	}
	d.depthFormat = depth

	d.features = d.physical.GetFeatures()
	info := &vk.DeviceCreateInfo{
		QueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			QueueFamilyIndex: d.family,
			QueuePriorities:  []float32{1.0},
		}},
		EnabledExtensionNames: []string{"VK_KHR_swapchain"},
		EnabledFeatures: &vk.PhysicalDeviceFeatures{
			SamplerAnisotropy: d.features.SamplerAnisotropy,
			FillModeNonSolid:  d.features.FillModeNonSolid,
		},
		Vulkan13Features: &vk.PhysicalDeviceVulkan13Features{
			DynamicRendering: true,
		},
	}
	if opts.Validation {
		info.EnabledLayerNames = []string{validationLayer}
	}

	d.handle, err = d.physical.CreateDevice(info)
	if err != nil {
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, errors.Wrap(err, "vkgpu: create device")
	}
	d.queue = d.handle.GetQueue(d.family, 0)

	d.pool, err = d.handle.CreateCommandPool(&vk.CommandPoolCreateInfo{
		Flags:            vk.COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT,
		QueueFamilyIndex: d.family,
	})
	if err != nil {
		d.handle.Destroy()
		instance.handle.DestroySurfaceKHR(d.surface)
		return nil, errors.Wrap(err, "vkgpu: create command pool")
	}

	d.logger.Info("device opened",
		"name", d.props.DeviceName,
		"api", formatVersion(d.props.ApiVersion),
		"queue_family", d.family,
		"present_mode", d.presentMode.String(),
		"min_ubo_alignment", d.props.Limits.MinUniformBufferOffsetAlignment,
	)
	return d, nil
}

// pickPhysicalDevice prefers a discrete GPU with a queue family that does
// both graphics and present.
func (d *Device) pickPhysicalDevice() error {
	devices, err := d.instance.handle.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "vkgpu: enumerate physical devices")
	}

	best := -1
	for i, pd := range devices {
		props := pd.GetProperties()
		if props.ApiVersion < vk.ApiVersion_1_3 {
			d.logger.Debug("skipping device without Vulkan 1.3", "name", props.DeviceName)
			continue
		}
		family, ok := graphicsPresentFamily(pd, d.surface)
		if !ok {
			continue
		}
		if best >= 0 && props.DeviceType != vk.PHYSICAL_DEVICE_TYPE_DISCRETE_GPU {
			continue
		}
		best = i
		d.physical = pd
		d.props = props
		d.family = family
		if props.DeviceType == vk.PHYSICAL_DEVICE_TYPE_DISCRETE_GPU {
			break
		}
	}
	if best < 0 {
		return errors.Errorf("vkgpu: none of %d physical devices can render and present", len(devices))
	}
	return nil
}

func graphicsPresentFamily(pd vk.PhysicalDevice, surface vk.SurfaceKHR) (uint32, bool) {
	for i, family := range pd.GetQueueFamilyProperties() {
		if family.QueueFlags&vk.QUEUE_GRAPHICS_BIT == 0 {
			continue
		}
		supported, err := pd.GetSurfaceSupportKHR(uint32(i), surface)
		if err == nil && supported {
			return uint32(i), true
		}
	}
	return 0, false
}

func parsePresentMode(s string) vk.PresentModeKHR {
	switch strings.ToLower(s) {
	case "mailbox":
		return vk.PRESENT_MODE_MAILBOX_KHR
	case "immediate":
		return vk.PRESENT_MODE_IMMEDIATE_KHR
	default:
		return vk.PRESENT_MODE_FIFO_KHR
	}
}

func formatVersion(v uint32) string {
	return fmt.Sprintf("%d.%d.%d", vk.ApiVersionMajor(v), vk.ApiVersionMinor(v), vk.ApiVersionPatch(v))
}

func (d *Device) Limits() gpu.Limits {
	return gpu.Limits{
		MinUniformBufferOffsetAlignment: d.props.Limits.MinUniformBufferOffsetAlignment,
		MaxUniformBufferRange:           d.props.Limits.MaxUniformBufferRange,
	}
}

func (d *Device) WaitIdle() error {
	if err := d.handle.WaitIdle(); err != nil {
		return errors.Wrap(err, "vkgpu: device wait idle")
	}
	return nil
}

// Destroy releases the command pool, the device and the surface. Every
// object created from the device must already be destroyed.
func (d *Device) Destroy() {
	d.handle.DestroyCommandPool(d.pool)
	d.handle.Destroy()
	d.instance.handle.DestroySurfaceKHR(d.surface)
}

func nanos(timeout time.Duration) uint64 {
	if timeout < 0 {
		return 0
	}
	return uint64(timeout.Nanoseconds())
}
