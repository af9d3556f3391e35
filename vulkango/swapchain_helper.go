// swapchain_helper.go
package vulkango

import "errors"

type SwapchainSupportDetails struct {
	Capabilities SurfaceCapabilitiesKHR
	Formats      []SurfaceFormatKHR
	PresentModes []PresentModeKHR
}

func (device PhysicalDevice) QuerySwapchainSupport(surface SurfaceKHR) (SwapchainSupportDetails, error) {
	var details SwapchainSupportDetails
	var err error

	details.Capabilities, err = device.GetSurfaceCapabilitiesKHR(surface)
	if err != nil {
		return details, err
	}

	details.Formats, err = device.GetSurfaceFormatsKHR(surface)
	if err != nil {
		return details, err
	}

	details.PresentModes, err = device.GetSurfacePresentModesKHR(surface)
	if err != nil {
		return details, err
	}

	return details, nil
}

func ChooseSurfaceFormat(availableFormats []SurfaceFormatKHR) SurfaceFormatKHR {
	for _, format := range availableFormats {
		if format.Format == FORMAT_B8G8R8A8_SRGB &&
			format.ColorSpace == COLOR_SPACE_SRGB_NONLINEAR_KHR {
			return format
		}
	}

	return availableFormats[0]
}

// ChoosePresentMode returns preferred when the surface supports it and FIFO
// otherwise. FIFO is the only mode every implementation must expose.
func ChoosePresentMode(availableModes []PresentModeKHR, preferred PresentModeKHR) PresentModeKHR {
	for _, mode := range availableModes {
		if mode == preferred {
			return mode
		}
	}

	return PRESENT_MODE_FIFO_KHR
}

func ChooseSwapExtent(capabilities SurfaceCapabilitiesKHR, windowWidth, windowHeight uint32) Extent2D {
	// 0xFFFFFFFF means the surface lets the swapchain pick its size.
	if capabilities.CurrentExtent.Width != 0xFFFFFFFF {
		return capabilities.CurrentExtent
	}

	return Extent2D{
		Width:  clampUint32(windowWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clampUint32(windowHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ChooseImageCount(capabilities SurfaceCapabilitiesKHR) uint32 {
	imageCount := capabilities.MinImageCount + 1

	// MaxImageCount of 0 means no upper bound.
	if capabilities.MaxImageCount > 0 && imageCount > capabilities.MaxImageCount {
		imageCount = capabilities.MaxImageCount
	}

	return imageCount
}

type SwapchainOptions struct {
	WindowWidth  uint32
	WindowHeight uint32
	PresentMode  PresentModeKHR
	OldSwapchain SwapchainKHR
}

type SwapchainResult struct {
	Swapchain   SwapchainKHR
	Format      Format
	Extent      Extent2D
	PresentMode PresentModeKHR
}

// CreateSwapchain picks format, present mode, extent and image count from
// what the surface supports and creates the swapchain. OldSwapchain, when
// set, is handed to the driver for resource reuse; the caller still destroys it.
func CreateSwapchain(
	device Device,
	physicalDevice PhysicalDevice,
	surface SurfaceKHR,
	opts SwapchainOptions,
) (SwapchainResult, error) {
	support, err := physicalDevice.QuerySwapchainSupport(surface)
	if err != nil {
		return SwapchainResult{}, err
	}

	if len(support.Formats) == 0 {
		return SwapchainResult{}, errors.New("vulkango: no surface formats available")
	}

	if len(support.PresentModes) == 0 {
		return SwapchainResult{}, errors.New("vulkango: no present modes available")
	}

	surfaceFormat := ChooseSurfaceFormat(support.Formats)
	presentMode := ChoosePresentMode(support.PresentModes, opts.PresentMode)
	extent := ChooseSwapExtent(support.Capabilities, opts.WindowWidth, opts.WindowHeight)

	swapchain, err := device.CreateSwapchainKHR(&SwapchainCreateInfoKHR{
		Surface:          surface,
		MinImageCount:    ChooseImageCount(support.Capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       IMAGE_USAGE_COLOR_ATTACHMENT_BIT,
		ImageSharingMode: SHARING_MODE_EXCLUSIVE,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   COMPOSITE_ALPHA_OPAQUE_BIT_KHR,
		PresentMode:      presentMode,
		Clipped:          true,
		OldSwapchain:     opts.OldSwapchain,
	})
	if err != nil {
		return SwapchainResult{}, err
	}

	return SwapchainResult{
		Swapchain:   swapchain,
		Format:      surfaceFormat.Format,
		Extent:      extent,
		PresentMode: presentMode,
	}, nil
}

func CreateSwapchainImageViews(device Device, images []Image, format Format) ([]ImageView, error) {
	imageViews := make([]ImageView, 0, len(images))

	for _, image := range images {
		view, err := device.CreateImageView2D(image, format, IMAGE_ASPECT_COLOR_BIT)
		if err != nil {
			for _, created := range imageViews {
				device.DestroyImageView(created)
			}
			return nil, err
		}

		imageViews = append(imageViews, view)
	}

	return imageViews, nil
}

// FindDepthFormat returns the first candidate usable as an optimal-tiling depth attachment.
func FindDepthFormat(physicalDevice PhysicalDevice, candidates ...Format) (Format, bool) {
	if len(candidates) == 0 {
		candidates = []Format{FORMAT_D32_SFLOAT, FORMAT_D32_SFLOAT_S8_UINT, FORMAT_D24_UNORM_S8_UINT}
	}

	for _, format := range candidates {
		props := physicalDevice.GetFormatProperties(format)
		if props.OptimalTilingFeatures&FORMAT_FEATURE_DEPTH_STENCIL_ATTACHMENT_BIT != 0 {
			return format, true
		}
	}

	return FORMAT_UNDEFINED, false
}
