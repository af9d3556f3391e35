package vkgpu

import (
	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

type pipeline struct {
	device *Device
	handle vk.Pipeline
	layout gpu.PipelineLayout
}

func (p *pipeline) Layout() gpu.PipelineLayout { return p.layout }

func (p *pipeline) Destroy() { p.device.handle.DestroyPipeline(p.handle) }

func attributeFormat(components int) (vk.Format, error) {
	switch components {
	case 2:
		return vk.FORMAT_R32G32_SFLOAT, nil
	case 3:
		return vk.FORMAT_R32G32B32_SFLOAT, nil
	case 4:
		return vk.FORMAT_R32G32B32A32_SFLOAT, nil
	default:
		return 0, errors.Errorf("vkgpu: unsupported vertex attribute width %d", components)
	}
}

// CreatePipeline builds a graphics pipeline for dynamic rendering into the
// surface color format and the device depth format. Viewport and scissor
// are dynamic.
func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Polygon == gpu.PolygonLine && !d.features.FillModeNonSolid {
		return nil, errors.Errorf("vkgpu: pipeline %q: line polygon mode not supported", desc.Name)
	}

	attrs := make([]vk.VertexInputAttributeDescription, len(desc.Attributes))
	for i, a := range desc.Attributes {
		format, err := attributeFormat(a.Components)
		if err != nil {
			return nil, errors.Wrapf(err, "vkgpu: pipeline %q", desc.Name)
		}
		attrs[i] = vk.VertexInputAttributeDescription{
			Location: a.Location,
			Binding:  0,
			Format:   format,
			Offset:   a.Offset,
		}
	}

	vert, err := d.handle.CreateShaderModule(&vk.ShaderModuleCreateInfo{Code: desc.VertexSPIRV})
	if err != nil {
		return nil, errors.Wrapf(err, "vkgpu: pipeline %q: vertex shader module", desc.Name)
	}
	defer d.handle.DestroyShaderModule(vert)

	frag, err := d.handle.CreateShaderModule(&vk.ShaderModuleCreateInfo{Code: desc.FragmentSPIRV})
	if err != nil {
		return nil, errors.Wrapf(err, "vkgpu: pipeline %q: fragment shader module", desc.Name)
	}
	defer d.handle.DestroyShaderModule(frag)

	polygon := vk.POLYGON_MODE_FILL
	if desc.Polygon == gpu.PolygonLine {
		polygon = vk.POLYGON_MODE_LINE
	}
	frontFace := vk.FRONT_FACE_CLOCKWISE
	if desc.CounterClockwise {
		frontFace = vk.FRONT_FACE_COUNTER_CLOCKWISE
	}

	rendering := &vk.PipelineRenderingCreateInfo{
		ColorAttachmentFormats: []vk.Format{d.colorFormat},
	}
	var depthStencil *vk.PipelineDepthStencilStateCreateInfo
	if desc.DepthTest {
		rendering.DepthAttachmentFormat = d.depthFormat
		if d.depthFormat.HasStencil() {
			rendering.StencilAttachmentFormat = d.depthFormat
		}
		depthStencil = &vk.PipelineDepthStencilStateCreateInfo{
			DepthTestEnable:  true,
			DepthWriteEnable: true,
			DepthCompareOp:   vk.COMPARE_OP_LESS,
		}
	}

	handle, err := d.handle.CreateGraphicsPipeline(&vk.GraphicsPipelineCreateInfo{
		Stages: []vk.PipelineShaderStageCreateInfo{
			{Stage: vk.SHADER_STAGE_VERTEX_BIT, Module: vert, Name: "main"},
			{Stage: vk.SHADER_STAGE_FRAGMENT_BIT, Module: frag, Name: "main"},
		},
		VertexInputState: &vk.PipelineVertexInputStateCreateInfo{
			VertexBindingDescriptions: []vk.VertexInputBindingDescription{{
				Binding:   0,
				Stride:    desc.VertexStride,
				InputRate: vk.VERTEX_INPUT_RATE_VERTEX,
			}},
			VertexAttributeDescriptions: attrs,
		},
		InputAssemblyState: &vk.PipelineInputAssemblyStateCreateInfo{
			Topology: vk.PRIMITIVE_TOPOLOGY_TRIANGLE_LIST,
		},
		ViewportState: &vk.PipelineViewportStateCreateInfo{},
		RasterizationState: &vk.PipelineRasterizationStateCreateInfo{
			PolygonMode: polygon,
			CullMode:    vk.CULL_MODE_NONE,
			FrontFace:   frontFace,
			LineWidth:   1.0,
		},
		MultisampleState: &vk.PipelineMultisampleStateCreateInfo{
			RasterizationSamples: vk.SAMPLE_COUNT_1_BIT,
		},
		DepthStencilState: depthStencil,
		ColorBlendState: &vk.PipelineColorBlendStateCreateInfo{
			Attachments: []vk.PipelineColorBlendAttachmentState{{
				BlendEnable:    false,
				ColorWriteMask: vk.COLOR_COMPONENT_ALL,
			}},
		},
		DynamicState: &vk.PipelineDynamicStateCreateInfo{
			DynamicStates: []vk.DynamicState{vk.DYNAMIC_STATE_VIEWPORT, vk.DYNAMIC_STATE_SCISSOR},
		},
		Layout:        desc.Layout.(*pipelineLayout).handle,
		RenderingInfo: rendering,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "vkgpu: create pipeline %q", desc.Name)
	}

	d.logger.Debug("pipeline created", "name", desc.Name, "wireframe", desc.Polygon == gpu.PolygonLine)
	return &pipeline{device: d, handle: handle, layout: desc.Layout}, nil
}
