package vkgpu

import (
	"time"

	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

const uploadTimeout = 5 * time.Second

type texture struct {
	device  *Device
	image   vk.Image
	memory  vk.DeviceMemory
	view    vk.ImageView
	sampler vk.Sampler
	extent  gpu.Extent
}

func (t *texture) Extent() gpu.Extent { return t.extent }

func (t *texture) Destroy() {
	t.device.handle.DestroySampler(t.sampler)
	t.device.handle.DestroyImageView(t.view)
	t.device.handle.DestroyImage(t.image)
	t.device.handle.FreeMemory(t.memory)
}

// CreateTexture uploads tightly packed RGBA8 pixels through a staging buffer
// into a device-local sRGB image and pairs it with a repeating linear sampler.
func (d *Device) CreateTexture(width, height uint32, rgba []byte) (gpu.TextureBinding, error) {
	size := uint64(width) * uint64(height) * 4
	if width == 0 || height == 0 || uint64(len(rgba)) != size {
		return nil, errors.Errorf("vkgpu: texture %dx%d needs %d bytes, got %d", width, height, size, len(rgba))
	}

	staging, stagingMemory, err := d.handle.CreateBufferWithMemory(
		size,
		vk.BUFFER_USAGE_TRANSFER_SRC_BIT,
		vk.MEMORY_PROPERTY_HOST_VISIBLE_BIT|vk.MEMORY_PROPERTY_HOST_COHERENT_BIT,
		d.physical,
	)
	if err != nil {
		return nil, wrapMemory(err, "vkgpu: texture staging buffer")
	}
	defer func() {
		d.handle.DestroyBuffer(staging)
		d.handle.FreeMemory(stagingMemory)
	}()
	if err := d.handle.WriteMemory(stagingMemory, 0, rgba); err != nil {
		return nil, errors.Wrap(err, "vkgpu: write texture staging buffer")
	}

	t := &texture{device: d, extent: gpu.Extent{Width: width, Height: height}}
	t.image, t.memory, err = d.handle.CreateImageWithMemory(
		width, height,
		vk.FORMAT_R8G8B8A8_SRGB,
		vk.IMAGE_TILING_OPTIMAL,
		vk.IMAGE_USAGE_TRANSFER_DST_BIT|vk.IMAGE_USAGE_SAMPLED_BIT,
		vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT,
		d.physical,
	)
	if err != nil {
		return nil, wrapMemory(err, "vkgpu: texture image")
	}

	if err := d.copyToImage(staging, t.image, width, height); err != nil {
		d.handle.DestroyImage(t.image)
		d.handle.FreeMemory(t.memory)
		return nil, err
	}

	t.view, err = d.handle.CreateImageView2D(t.image, vk.FORMAT_R8G8B8A8_SRGB, vk.IMAGE_ASPECT_COLOR_BIT)
	if err != nil {
		d.handle.DestroyImage(t.image)
		d.handle.FreeMemory(t.memory)
		return nil, errors.Wrap(err, "vkgpu: texture image view")
	}

	samplerInfo := &vk.SamplerCreateInfo{
		MagFilter:     vk.FILTER_LINEAR,
		MinFilter:     vk.FILTER_LINEAR,
		MipmapMode:    vk.SAMPLER_MIPMAP_MODE_LINEAR,
		AddressModeU:  vk.SAMPLER_ADDRESS_MODE_REPEAT,
		AddressModeV:  vk.SAMPLER_ADDRESS_MODE_REPEAT,
		AddressModeW:  vk.SAMPLER_ADDRESS_MODE_REPEAT,
		MaxAnisotropy: 1,
		BorderColor:   vk.BORDER_COLOR_INT_OPAQUE_BLACK,
	}
	if d.features.SamplerAnisotropy {
		samplerInfo.AnisotropyEnable = true
		samplerInfo.MaxAnisotropy = d.props.Limits.MaxSamplerAnisotropy
	}
	t.sampler, err = d.handle.CreateSampler(samplerInfo)
	if err != nil {
		d.handle.DestroyImageView(t.view)
		d.handle.DestroyImage(t.image)
		d.handle.FreeMemory(t.memory)
		return nil, errors.Wrap(err, "vkgpu: texture sampler")
	}

	d.logger.Debug("texture uploaded", "width", width, "height", height)
	return t, nil
}

// copyToImage records and submits a one-shot copy from staging into image,
// leaving the image in the shader read-only layout.
func (d *Device) copyToImage(staging vk.Buffer, image vk.Image, width, height uint32) error {
	cmds, err := d.handle.AllocateCommandBuffers(&vk.CommandBufferAllocateInfo{
		CommandPool:        d.pool,
		Level:              vk.COMMAND_BUFFER_LEVEL_PRIMARY,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "vkgpu: allocate upload command buffer")
	}
	defer d.handle.FreeCommandBuffers(d.pool, cmds)
	cmd := cmds[0]

	if err := cmd.Begin(&vk.CommandBufferBeginInfo{Flags: vk.COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT}); err != nil {
		return errors.Wrap(err, "vkgpu: begin upload")
	}

	cmd.PipelineBarrier(
		vk.PIPELINE_STAGE_TOP_OF_PIPE_BIT,
		vk.PIPELINE_STAGE_TRANSFER_BIT,
		0,
		[]vk.ImageMemoryBarrier{{
			SrcAccessMask:       vk.ACCESS_NONE,
			DstAccessMask:       vk.ACCESS_TRANSFER_WRITE_BIT,
			OldLayout:           vk.IMAGE_LAYOUT_UNDEFINED,
			NewLayout:           vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL,
			SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			Image:               image,
			SubresourceRange:    colorRange(),
		}},
	)

	cmd.CopyBufferToImage(staging, image, vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL, []vk.BufferImageCopy{{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.IMAGE_ASPECT_COLOR_BIT,
			LayerCount: 1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}})

	cmd.PipelineBarrier(
		vk.PIPELINE_STAGE_TRANSFER_BIT,
		vk.PIPELINE_STAGE_FRAGMENT_SHADER_BIT,
		0,
		[]vk.ImageMemoryBarrier{{
			SrcAccessMask:       vk.ACCESS_TRANSFER_WRITE_BIT,
			DstAccessMask:       vk.ACCESS_SHADER_READ_BIT,
			OldLayout:           vk.IMAGE_LAYOUT_TRANSFER_DST_OPTIMAL,
			NewLayout:           vk.IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL,
			SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			Image:               image,
			SubresourceRange:    colorRange(),
		}},
	)

	if err := cmd.End(); err != nil {
		return errors.Wrap(err, "vkgpu: end upload")
	}

	done, err := d.handle.CreateFence(&vk.FenceCreateInfo{})
	if err != nil {
		return errors.Wrap(err, "vkgpu: create upload fence")
	}
	defer d.handle.DestroyFence(done)

	if err := d.queue.Submit([]vk.SubmitInfo{{CommandBuffers: cmds}}, done); err != nil {
		return errors.Wrap(err, "vkgpu: submit upload")
	}
	if err := d.handle.WaitForFences([]vk.Fence{done}, true, nanos(uploadTimeout)); err != nil {
		return errors.Wrap(err, "vkgpu: wait for upload")
	}
	return nil
}
