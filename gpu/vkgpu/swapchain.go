package vkgpu

import (
	"time"

	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

// undefinedExtent is the surface's way of saying the swapchain picks its own size.
const undefinedExtent = 0xFFFFFFFF

type swapchain struct {
	device *Device
	handle vk.SwapchainKHR
	images []vk.Image
	views  []vk.ImageView
	extent gpu.Extent
}

func (s *swapchain) Extent() gpu.Extent { return s.extent }

func (s *swapchain) ImageCount() int { return len(s.images) }

func (s *swapchain) Destroy() {
	for _, view := range s.views {
		s.device.handle.DestroyImageView(view)
	}
	s.device.handle.DestroySwapchainKHR(s.handle)
}

func (d *Device) SurfaceExtent() (gpu.Extent, error) {
	caps, err := d.physical.GetSurfaceCapabilitiesKHR(d.surface)
	if err != nil {
		return gpu.Extent{}, errors.Wrap(err, "vkgpu: surface capabilities")
	}
	if caps.CurrentExtent.Width != undefinedExtent {
		return gpu.Extent{Width: caps.CurrentExtent.Width, Height: caps.CurrentExtent.Height}, nil
	}
	if d.drawableSize == nil {
		return gpu.Extent{Width: caps.MinImageExtent.Width, Height: caps.MinImageExtent.Height}, nil
	}
	return d.drawableSize(), nil
}

func (d *Device) CreateSwapchain(old gpu.Swapchain) (gpu.Swapchain, error) {
	extent, err := d.SurfaceExtent()
	if err != nil {
		return nil, err
	}
	if extent.Degenerate() {
		return nil, errors.Errorf("vkgpu: cannot create swapchain for %dx%d surface", extent.Width, extent.Height)
	}

	opts := vk.SwapchainOptions{
		WindowWidth:  extent.Width,
		WindowHeight: extent.Height,
		PresentMode:  d.presentMode,
	}
	if old != nil {
		opts.OldSwapchain = old.(*swapchain).handle
	}

	result, err := vk.CreateSwapchain(d.handle, d.physical, d.surface, opts)
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create swapchain")
	}
	if result.Format != d.colorFormat {
		d.handle.DestroySwapchainKHR(result.Swapchain)
		return nil, errors.Errorf("vkgpu: surface format changed from %d to %d", d.colorFormat, result.Format)
	}

	images, err := d.handle.GetSwapchainImagesKHR(result.Swapchain)
	if err != nil {
		d.handle.DestroySwapchainKHR(result.Swapchain)
		return nil, errors.Wrap(err, "vkgpu: swapchain images")
	}
	views, err := vk.CreateSwapchainImageViews(d.handle, images, result.Format)
	if err != nil {
		d.handle.DestroySwapchainKHR(result.Swapchain)
		return nil, errors.Wrap(err, "vkgpu: swapchain image views")
	}

	d.logger.Debug("swapchain created",
		"width", result.Extent.Width,
		"height", result.Extent.Height,
		"images", len(images),
		"present_mode", result.PresentMode.String(),
	)
	return &swapchain{
		device: d,
		handle: result.Swapchain,
		images: images,
		views:  views,
		extent: gpu.Extent{Width: result.Extent.Width, Height: result.Extent.Height},
	}, nil
}

type depthTarget struct {
	device *Device
	image  vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	format vk.Format
	extent gpu.Extent
}

func (t *depthTarget) Extent() gpu.Extent { return t.extent }

func (t *depthTarget) Destroy() {
	t.device.handle.DestroyImageView(t.view)
	t.device.handle.DestroyImage(t.image)
	t.device.handle.FreeMemory(t.memory)
}

func (t *depthTarget) aspect() vk.ImageAspectFlags {
	if t.format.HasStencil() {
		return vk.IMAGE_ASPECT_DEPTH_BIT | vk.IMAGE_ASPECT_STENCIL_BIT
	}
	return vk.IMAGE_ASPECT_DEPTH_BIT
}

func (d *Device) CreateDepthTarget(extent gpu.Extent) (gpu.RenderTarget, error) {
	image, memory, err := d.handle.CreateImageWithMemory(
		extent.Width, extent.Height,
		d.depthFormat,
		vk.IMAGE_TILING_OPTIMAL,
		vk.IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT,
		vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT,
		d.physical,
	)
	if err != nil {
		return nil, wrapMemory(err, "vkgpu: create %dx%d depth image", extent.Width, extent.Height)
	}

	t := &depthTarget{device: d, image: image, memory: memory, format: d.depthFormat, extent: extent}
	t.view, err = d.handle.CreateImageView2D(image, d.depthFormat, vk.IMAGE_ASPECT_DEPTH_BIT)
	if err != nil {
		d.handle.DestroyImage(image)
		d.handle.FreeMemory(memory)
		return nil, errors.Wrap(err, "vkgpu: depth image view")
	}
	return t, nil
}

func status(result vk.Result) gpu.Status {
	if result == vk.SUBOPTIMAL {
		return gpu.StatusSuboptimal
	}
	return gpu.StatusSuccess
}

func (d *Device) AcquireNextImage(sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	index, result, err := d.handle.AcquireNextImageKHR(
		sc.(*swapchain).handle,
		nanos(timeout),
		signal.(*semaphore).handle,
		vk.Fence{},
	)
	switch {
	case err == nil:
		return index, status(result), nil
	case result == vk.OUT_OF_DATE:
		return 0, gpu.StatusOutOfDate, nil
	case result == vk.TIMEOUT || result == vk.NOT_READY:
		return 0, gpu.StatusSuccess, gpu.ErrTimeout
	default:
		return 0, gpu.StatusSuccess, errors.Wrap(err, "vkgpu: acquire next image")
	}
}

func (d *Device) Submit(info gpu.SubmitInfo, f gpu.Fence) error {
	cmds := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		cmds[i] = cb.(*commandBuffer).handle
	}

	submit := vk.SubmitInfo{CommandBuffers: cmds}
	if info.Wait != nil {
		submit.WaitSemaphores = []vk.Semaphore{info.Wait.(*semaphore).handle}
		submit.WaitDstStageMask = []vk.PipelineStageFlags{vk.PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT}
	}
	if info.Signal != nil {
		submit.SignalSemaphores = []vk.Semaphore{info.Signal.(*semaphore).handle}
	}

	var handle vk.Fence
	if f != nil {
		handle = f.(*fence).handle
	}
	if err := d.queue.Submit([]vk.SubmitInfo{submit}, handle); err != nil {
		return errors.Wrap(err, "vkgpu: queue submit")
	}
	return nil
}

func (d *Device) Present(sc gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) (gpu.Status, error) {
	info := &vk.PresentInfoKHR{
		Swapchains:   []vk.SwapchainKHR{sc.(*swapchain).handle},
		ImageIndices: []uint32{imageIndex},
	}
	if wait != nil {
		info.WaitSemaphores = []vk.Semaphore{wait.(*semaphore).handle}
	}

	result, err := d.queue.PresentKHR(info)
	switch {
	case err == nil:
		return status(result), nil
	case result == vk.OUT_OF_DATE:
		return gpu.StatusOutOfDate, nil
	default:
		return gpu.StatusSuccess, errors.Wrap(err, "vkgpu: present")
	}
}
