package vkgpu

import (
	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

type commandBuffer struct {
	device *Device
	handle vk.CommandBuffer
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	handles, err := d.handle.AllocateCommandBuffers(&vk.CommandBufferAllocateInfo{
		CommandPool:        d.pool,
		Level:              vk.COMMAND_BUFFER_LEVEL_PRIMARY,
		CommandBufferCount: uint32(count),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "vkgpu: allocate %d command buffers", count)
	}
	buffers := make([]gpu.CommandBuffer, len(handles))
	for i, h := range handles {
		buffers[i] = &commandBuffer{device: d, handle: h}
	}
	return buffers, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	handles := make([]vk.CommandBuffer, len(buffers))
	for i, b := range buffers {
		handles[i] = b.(*commandBuffer).handle
	}
	d.handle.FreeCommandBuffers(d.pool, handles)
}

func (c *commandBuffer) Reset() error {
	if err := c.handle.Reset(0); err != nil {
		return errors.Wrap(err, "vkgpu: reset command buffer")
	}
	return nil
}

func (c *commandBuffer) Begin() error {
	err := c.handle.Begin(&vk.CommandBufferBeginInfo{Flags: vk.COMMAND_BUFFER_USAGE_ONE_TIME_SUBMIT_BIT})
	if err != nil {
		return errors.Wrap(err, "vkgpu: begin command buffer")
	}
	return nil
}

func (c *commandBuffer) End() error {
	if err := c.handle.End(); err != nil {
		return errors.Wrap(err, "vkgpu: end command buffer")
	}
	return nil
}

func colorRange() vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask: vk.IMAGE_ASPECT_COLOR_BIT,
		LevelCount: 1,
		LayerCount: 1,
	}
}

// BeginRendering transitions the attachments and starts a dynamic rendering
// pass. A cleared pass discards the previous image contents; a LoadColor
// pass expects the image to still be in the color attachment layout.
func (c *commandBuffer) BeginRendering(info gpu.RenderingInfo) {
	sc := info.Swapchain.(*swapchain)
	image := sc.images[info.ImageIndex]

	color := vk.RenderingAttachmentInfo{
		ImageView:   sc.views[info.ImageIndex],
		ImageLayout: vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL,
		LoadOp:      vk.ATTACHMENT_LOAD_OP_CLEAR,
		StoreOp:     vk.ATTACHMENT_STORE_OP_STORE,
		ClearValue: vk.ClearValue{
			Color: vk.ClearColorValue{Float32: info.ClearColor},
		},
	}

	colorBarrier := vk.ImageMemoryBarrier{
		SrcAccessMask:       vk.ACCESS_NONE,
		DstAccessMask:       vk.ACCESS_COLOR_ATTACHMENT_WRITE_BIT,
		OldLayout:           vk.IMAGE_LAYOUT_UNDEFINED,
		NewLayout:           vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL,
		SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
		DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
		Image:               image,
		SubresourceRange:    colorRange(),
	}
	if info.LoadColor {
		color.LoadOp = vk.ATTACHMENT_LOAD_OP_LOAD
		colorBarrier.SrcAccessMask = vk.ACCESS_COLOR_ATTACHMENT_WRITE_BIT
		colorBarrier.DstAccessMask = vk.ACCESS_COLOR_ATTACHMENT_READ_BIT | vk.ACCESS_COLOR_ATTACHMENT_WRITE_BIT
		colorBarrier.OldLayout = vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	}
	c.handle.PipelineBarrier(
		vk.PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT,
		vk.PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT,
		0,
		[]vk.ImageMemoryBarrier{colorBarrier},
	)

	rendering := &vk.RenderingInfo{
		RenderArea: vk.Rect2D{
			Extent: vk.Extent2D{Width: sc.extent.Width, Height: sc.extent.Height},
		},
		LayerCount:       1,
		ColorAttachments: []vk.RenderingAttachmentInfo{color},
	}

	if info.Depth != nil {
		depth := info.Depth.(*depthTarget)
		layout := vk.IMAGE_LAYOUT_DEPTH_ATTACHMENT_OPTIMAL
		if depth.format.HasStencil() {
			layout = vk.IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
		}

		depthBarrier := vk.ImageMemoryBarrier{
			SrcAccessMask:       vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT,
			DstAccessMask:       vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_READ_BIT | vk.ACCESS_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT,
			OldLayout:           vk.IMAGE_LAYOUT_UNDEFINED,
			NewLayout:           layout,
			SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			Image:               depth.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: depth.aspect(),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		loadOp := vk.ATTACHMENT_LOAD_OP_CLEAR
		if info.LoadColor {
			depthBarrier.OldLayout = layout
			loadOp = vk.ATTACHMENT_LOAD_OP_LOAD
		}
		c.handle.PipelineBarrier(
			vk.PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT|vk.PIPELINE_STAGE_LATE_FRAGMENT_TESTS_BIT,
			vk.PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT|vk.PIPELINE_STAGE_LATE_FRAGMENT_TESTS_BIT,
			0,
			[]vk.ImageMemoryBarrier{depthBarrier},
		)

		rendering.DepthAttachment = &vk.RenderingAttachmentInfo{
			ImageView:   depth.view,
			ImageLayout: layout,
			LoadOp:      loadOp,
			StoreOp:     vk.ATTACHMENT_STORE_OP_STORE,
			ClearValue: vk.ClearValue{
				DepthStencil: vk.ClearDepthStencilValue{Depth: info.ClearDepth},
			},
		}
	}

	c.handle.BeginRendering(rendering)
}

func (c *commandBuffer) EndRendering() { c.handle.EndRendering() }

func (c *commandBuffer) TransitionToPresent(sc gpu.Swapchain, imageIndex uint32) {
	c.handle.PipelineBarrier(
		vk.PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT,
		vk.PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT,
		0,
		[]vk.ImageMemoryBarrier{{
			SrcAccessMask:       vk.ACCESS_COLOR_ATTACHMENT_WRITE_BIT,
			DstAccessMask:       vk.ACCESS_NONE,
			OldLayout:           vk.IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL,
			NewLayout:           vk.IMAGE_LAYOUT_PRESENT_SRC_KHR,
			SrcQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			DstQueueFamilyIndex: vk.QUEUE_FAMILY_IGNORED,
			Image:               sc.(*swapchain).images[imageIndex],
			SubresourceRange:    colorRange(),
		}},
	)
}

func (c *commandBuffer) SetViewport(extent gpu.Extent) {
	c.handle.SetViewport(0, []vk.Viewport{{
		Width:    float32(extent.Width),
		Height:   float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}})
}

func (c *commandBuffer) SetScissor(extent gpu.Extent) {
	c.handle.SetScissor(0, []vk.Rect2D{{
		Extent: vk.Extent2D{Width: extent.Width, Height: extent.Height},
	}})
}

func (c *commandBuffer) BindPipeline(p gpu.Pipeline) {
	c.handle.BindPipeline(vk.PIPELINE_BIND_POINT_GRAPHICS, p.(*pipeline).handle)
}

func (c *commandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet, dynamicOffsets []uint32) {
	c.handle.BindDescriptorSets(
		vk.PIPELINE_BIND_POINT_GRAPHICS,
		layout.(*pipelineLayout).handle,
		0,
		[]vk.DescriptorSet{set.(*descriptorSet).handle},
		dynamicOffsets,
	)
}

func (c *commandBuffer) BindVertexBuffer(b gpu.Buffer, offset uint64) {
	c.handle.BindVertexBuffers(0, []vk.Buffer{b.(*buffer).handle}, []uint64{offset})
}

func (c *commandBuffer) BindIndexBuffer(b gpu.Buffer, offset uint64, indexType gpu.IndexType) {
	t := vk.INDEX_TYPE_UINT16
	if indexType == gpu.IndexUint32 {
		t = vk.INDEX_TYPE_UINT32
	}
	c.handle.BindIndexBuffer(b.(*buffer).handle, offset, t)
}

func (c *commandBuffer) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) {
	c.handle.DrawIndexed(indexCount, 1, firstIndex, vertexOffset, 0)
}
