// pipeline.go
package vulkango

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
*/
import "C"
import "unsafe"

type Pipeline struct {
	handle C.VkPipeline
}

type PipelineLayout struct {
	handle C.VkPipelineLayout
}

type PushConstantRange struct {
	StageFlags ShaderStageFlags
	Offset     uint32
	Size       uint32
}

type PipelineLayoutCreateInfo struct {
	SetLayouts         []DescriptorSetLayout
	PushConstantRanges []PushConstantRange
}

type PrimitiveTopology int32

const (
	PRIMITIVE_TOPOLOGY_POINT_LIST    PrimitiveTopology = C.VK_PRIMITIVE_TOPOLOGY_POINT_LIST
	PRIMITIVE_TOPOLOGY_LINE_LIST     PrimitiveTopology = C.VK_PRIMITIVE_TOPOLOGY_LINE_LIST
	PRIMITIVE_TOPOLOGY_TRIANGLE_LIST PrimitiveTopology = C.VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST
)

type PolygonMode int32

const (
	POLYGON_MODE_FILL  PolygonMode = C.VK_POLYGON_MODE_FILL
	POLYGON_MODE_LINE  PolygonMode = C.VK_POLYGON_MODE_LINE
	POLYGON_MODE_POINT PolygonMode = C.VK_POLYGON_MODE_POINT
)

type CullModeFlags uint32

const (
	CULL_MODE_NONE  CullModeFlags = C.VK_CULL_MODE_NONE
	CULL_MODE_FRONT CullModeFlags = C.VK_CULL_MODE_FRONT_BIT
	CULL_MODE_BACK  CullModeFlags = C.VK_CULL_MODE_BACK_BIT
)

type FrontFace int32

const (
	FRONT_FACE_COUNTER_CLOCKWISE FrontFace = C.VK_FRONT_FACE_COUNTER_CLOCKWISE
	FRONT_FACE_CLOCKWISE         FrontFace = C.VK_FRONT_FACE_CLOCKWISE
)

type ColorComponentFlags uint32

const (
	COLOR_COMPONENT_R_BIT ColorComponentFlags = C.VK_COLOR_COMPONENT_R_BIT
	COLOR_COMPONENT_G_BIT ColorComponentFlags = C.VK_COLOR_COMPONENT_G_BIT
	COLOR_COMPONENT_B_BIT ColorComponentFlags = C.VK_COLOR_COMPONENT_B_BIT
	COLOR_COMPONENT_A_BIT ColorComponentFlags = C.VK_COLOR_COMPONENT_A_BIT
	COLOR_COMPONENT_ALL                       = COLOR_COMPONENT_R_BIT | COLOR_COMPONENT_G_BIT | COLOR_COMPONENT_B_BIT | COLOR_COMPONENT_A_BIT
)

type DynamicState int32

const (
	DYNAMIC_STATE_VIEWPORT DynamicState = C.VK_DYNAMIC_STATE_VIEWPORT
	DYNAMIC_STATE_SCISSOR  DynamicState = C.VK_DYNAMIC_STATE_SCISSOR
)

type VertexInputRate int32

const (
	VERTEX_INPUT_RATE_VERTEX   VertexInputRate = C.VK_VERTEX_INPUT_RATE_VERTEX
	VERTEX_INPUT_RATE_INSTANCE VertexInputRate = C.VK_VERTEX_INPUT_RATE_INSTANCE
)

type PipelineShaderStageCreateInfo struct {
	Stage  ShaderStageFlags
	Module ShaderModule
	Name   string
}

type VertexInputBindingDescription struct {
	Binding   uint32
	Stride    uint32
	InputRate VertexInputRate
}

type VertexInputAttributeDescription struct {
	Location uint32
	Binding  uint32
	Format   Format
	Offset   uint32
}

type PipelineVertexInputStateCreateInfo struct {
	VertexBindingDescriptions   []VertexInputBindingDescription
	VertexAttributeDescriptions []VertexInputAttributeDescription
}

type PipelineInputAssemblyStateCreateInfo struct {
	Topology               PrimitiveTopology
	PrimitiveRestartEnable bool
}

type PipelineViewportStateCreateInfo struct {
	Viewports []Viewport
	Scissors  []Rect2D
}

type PipelineRasterizationStateCreateInfo struct {
	PolygonMode PolygonMode
	CullMode    CullModeFlags
	FrontFace   FrontFace
	LineWidth   float32
}

type PipelineMultisampleStateCreateInfo struct {
	RasterizationSamples SampleCountFlags
}

type PipelineDepthStencilStateCreateInfo struct {
	DepthTestEnable  bool
	DepthWriteEnable bool
	DepthCompareOp   CompareOp
}

type PipelineColorBlendAttachmentState struct {
	BlendEnable    bool
	ColorWriteMask ColorComponentFlags
}

type PipelineColorBlendStateCreateInfo struct {
	Attachments []PipelineColorBlendAttachmentState
}

type PipelineDynamicStateCreateInfo struct {
	DynamicStates []DynamicState
}

// PipelineRenderingCreateInfo describes the attachment formats of a pipeline used with dynamic rendering.
type PipelineRenderingCreateInfo struct {
	ColorAttachmentFormats  []Format
	DepthAttachmentFormat   Format
	StencilAttachmentFormat Format
}

type GraphicsPipelineCreateInfo struct {
	Stages             []PipelineShaderStageCreateInfo
	VertexInputState   *PipelineVertexInputStateCreateInfo
	InputAssemblyState *PipelineInputAssemblyStateCreateInfo
	ViewportState      *PipelineViewportStateCreateInfo
	RasterizationState *PipelineRasterizationStateCreateInfo
	MultisampleState   *PipelineMultisampleStateCreateInfo
	DepthStencilState  *PipelineDepthStencilStateCreateInfo
	ColorBlendState    *PipelineColorBlendStateCreateInfo
	DynamicState       *PipelineDynamicStateCreateInfo
	Layout             PipelineLayout
	RenderingInfo      *PipelineRenderingCreateInfo
}

func (device Device) CreatePipelineLayout(createInfo *PipelineLayoutCreateInfo) (PipelineLayout, error) {
	cInfo := (*C.VkPipelineLayoutCreateInfo)(C.calloc(1, C.sizeof_VkPipelineLayoutCreateInfo))
	defer C.free(unsafe.Pointer(cInfo))

	cInfo.sType = C.VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO

	if n := len(createInfo.SetLayouts); n > 0 {
		layouts := make([]C.VkDescriptorSetLayout, n)
		for i, layout := range createInfo.SetLayouts {
			layouts[i] = layout.handle
		}
		cInfo.setLayoutCount = C.uint32_t(n)
		cInfo.pSetLayouts = &layouts[0]
	}

	if n := len(createInfo.PushConstantRanges); n > 0 {
		ranges := make([]C.VkPushConstantRange, n)
		for i, r := range createInfo.PushConstantRanges {
			ranges[i].stageFlags = C.VkShaderStageFlags(r.StageFlags)
			ranges[i].offset = C.uint32_t(r.Offset)
			ranges[i].size = C.uint32_t(r.Size)
		}
		cInfo.pushConstantRangeCount = C.uint32_t(n)
		cInfo.pPushConstantRanges = &ranges[0]
	}

	var layout C.VkPipelineLayout
	result := C.vkCreatePipelineLayout(device.handle, cInfo, nil, &layout)

	if result != C.VK_SUCCESS {
		return PipelineLayout{}, Result(result)
	}

	return PipelineLayout{handle: layout}, nil
}

func (device Device) DestroyPipelineLayout(layout PipelineLayout) {
	C.vkDestroyPipelineLayout(device.handle, layout.handle, nil)
}

func (device Device) DestroyPipeline(pipeline Pipeline) {
	C.vkDestroyPipeline(device.handle, pipeline.handle, nil)
}

type graphicsPipelineData struct {
	cInfo                 *C.VkGraphicsPipelineCreateInfo
	shaderStages          []C.VkPipelineShaderStageCreateInfo
	shaderEntryNames      []*C.char
	vertexInputState      *C.VkPipelineVertexInputStateCreateInfo
	vertexBindings        []C.VkVertexInputBindingDescription
	vertexAttributes      []C.VkVertexInputAttributeDescription
	inputAssemblyState    *C.VkPipelineInputAssemblyStateCreateInfo
	viewportState         *C.VkPipelineViewportStateCreateInfo
	viewports             []C.VkViewport
	scissors              []C.VkRect2D
	rasterizationState    *C.VkPipelineRasterizationStateCreateInfo
	multisampleState      *C.VkPipelineMultisampleStateCreateInfo
	depthStencilState     *C.VkPipelineDepthStencilStateCreateInfo
	colorBlendState       *C.VkPipelineColorBlendStateCreateInfo
	colorBlendAttachments []C.VkPipelineColorBlendAttachmentState
	dynamicState          *C.VkPipelineDynamicStateCreateInfo
	dynamicStates         []C.VkDynamicState
	renderingInfo         *C.VkPipelineRenderingCreateInfo
	colorFormats          []C.VkFormat
}

func (info *GraphicsPipelineCreateInfo) vulkanize() *graphicsPipelineData {
	data := &graphicsPipelineData{}

	data.cInfo = (*C.VkGraphicsPipelineCreateInfo)(C.calloc(1, C.sizeof_VkGraphicsPipelineCreateInfo))
	data.cInfo.sType = C.VK_STRUCTURE_TYPE_GRAPHICS_PIPELINE_CREATE_INFO

	if len(info.Stages) > 0 {
		data.shaderStages = make([]C.VkPipelineShaderStageCreateInfo, len(info.Stages))
		data.shaderEntryNames = make([]*C.char, len(info.Stages))

		for i, stage := range info.Stages {
			data.shaderEntryNames[i] = C.CString(stage.Name)
			data.shaderStages[i].sType = C.VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO
			data.shaderStages[i].stage = C.VkShaderStageFlagBits(stage.Stage)
			data.shaderStages[i].module = stage.Module.handle
			data.shaderStages[i].pName = data.shaderEntryNames[i]
		}

		data.cInfo.stageCount = C.uint32_t(len(data.shaderStages))
		data.cInfo.pStages = &data.shaderStages[0]
	}

	if vi := info.VertexInputState; vi != nil {
		data.vertexInputState = (*C.VkPipelineVertexInputStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineVertexInputStateCreateInfo))
		data.vertexInputState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_VERTEX_INPUT_STATE_CREATE_INFO

		if n := len(vi.VertexBindingDescriptions); n > 0 {
			data.vertexBindings = make([]C.VkVertexInputBindingDescription, n)
			for i, b := range vi.VertexBindingDescriptions {
				data.vertexBindings[i].binding = C.uint32_t(b.Binding)
				data.vertexBindings[i].stride = C.uint32_t(b.Stride)
				data.vertexBindings[i].inputRate = C.VkVertexInputRate(b.InputRate)
			}
			data.vertexInputState.vertexBindingDescriptionCount = C.uint32_t(n)
			data.vertexInputState.pVertexBindingDescriptions = &data.vertexBindings[0]
		}

		if n := len(vi.VertexAttributeDescriptions); n > 0 {
			data.vertexAttributes = make([]C.VkVertexInputAttributeDescription, n)
			for i, a := range vi.VertexAttributeDescriptions {
				data.vertexAttributes[i].location = C.uint32_t(a.Location)
				data.vertexAttributes[i].binding = C.uint32_t(a.Binding)
				data.vertexAttributes[i].format = C.VkFormat(a.Format)
				data.vertexAttributes[i].offset = C.uint32_t(a.Offset)
			}
			data.vertexInputState.vertexAttributeDescriptionCount = C.uint32_t(n)
			data.vertexInputState.pVertexAttributeDescriptions = &data.vertexAttributes[0]
		}

		data.cInfo.pVertexInputState = data.vertexInputState
	}

	if ia := info.InputAssemblyState; ia != nil {
		data.inputAssemblyState = (*C.VkPipelineInputAssemblyStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineInputAssemblyStateCreateInfo))
		data.inputAssemblyState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_INPUT_ASSEMBLY_STATE_CREATE_INFO
		data.inputAssemblyState.topology = C.VkPrimitiveTopology(ia.Topology)
		data.inputAssemblyState.primitiveRestartEnable = boolToVk(ia.PrimitiveRestartEnable)
		data.cInfo.pInputAssemblyState = data.inputAssemblyState
	}

	if vs := info.ViewportState; vs != nil {
		data.viewportState = (*C.VkPipelineViewportStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineViewportStateCreateInfo))
		data.viewportState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_VIEWPORT_STATE_CREATE_INFO

		// Counts stay at 1 with nil arrays when viewport and scissor are dynamic.
		data.viewportState.viewportCount = 1
		data.viewportState.scissorCount = 1

		if len(vs.Viewports) > 0 {
			data.viewports = make([]C.VkViewport, len(vs.Viewports))
			for i, vp := range vs.Viewports {
				data.viewports[i] = C.VkViewport{
					x:        C.float(vp.X),
					y:        C.float(vp.Y),
					width:    C.float(vp.Width),
					height:   C.float(vp.Height),
					minDepth: C.float(vp.MinDepth),
					maxDepth: C.float(vp.MaxDepth),
				}
			}
			data.viewportState.viewportCount = C.uint32_t(len(data.viewports))
			data.viewportState.pViewports = &data.viewports[0]
		}

		if len(vs.Scissors) > 0 {
			data.scissors = make([]C.VkRect2D, len(vs.Scissors))
			for i, sc := range vs.Scissors {
				data.scissors[i].offset.x = C.int32_t(sc.Offset.X)
				data.scissors[i].offset.y = C.int32_t(sc.Offset.Y)
				data.scissors[i].extent.width = C.uint32_t(sc.Extent.Width)
				data.scissors[i].extent.height = C.uint32_t(sc.Extent.Height)
			}
			data.viewportState.scissorCount = C.uint32_t(len(data.scissors))
			data.viewportState.pScissors = &data.scissors[0]
		}

		data.cInfo.pViewportState = data.viewportState
	}

	if rs := info.RasterizationState; rs != nil {
		data.rasterizationState = (*C.VkPipelineRasterizationStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineRasterizationStateCreateInfo))
		data.rasterizationState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_RASTERIZATION_STATE_CREATE_INFO
		data.rasterizationState.polygonMode = C.VkPolygonMode(rs.PolygonMode)
		data.rasterizationState.cullMode = C.VkCullModeFlags(rs.CullMode)
		data.rasterizationState.frontFace = C.VkFrontFace(rs.FrontFace)
		data.rasterizationState.lineWidth = C.float(rs.LineWidth)
		data.cInfo.pRasterizationState = data.rasterizationState
	}

	if ms := info.MultisampleState; ms != nil {
		data.multisampleState = (*C.VkPipelineMultisampleStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineMultisampleStateCreateInfo))
		data.multisampleState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_MULTISAMPLE_STATE_CREATE_INFO
		data.multisampleState.rasterizationSamples = C.VkSampleCountFlagBits(ms.RasterizationSamples)
		data.cInfo.pMultisampleState = data.multisampleState
	}

	if ds := info.DepthStencilState; ds != nil {
		data.depthStencilState = (*C.VkPipelineDepthStencilStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineDepthStencilStateCreateInfo))
		data.depthStencilState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_DEPTH_STENCIL_STATE_CREATE_INFO
		data.depthStencilState.depthTestEnable = boolToVk(ds.DepthTestEnable)
		data.depthStencilState.depthWriteEnable = boolToVk(ds.DepthWriteEnable)
		data.depthStencilState.depthCompareOp = C.VkCompareOp(ds.DepthCompareOp)
		data.depthStencilState.maxDepthBounds = 1.0
		data.cInfo.pDepthStencilState = data.depthStencilState
	}

	if cb := info.ColorBlendState; cb != nil {
		data.colorBlendState = (*C.VkPipelineColorBlendStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineColorBlendStateCreateInfo))
		data.colorBlendState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_COLOR_BLEND_STATE_CREATE_INFO
		data.colorBlendState.logicOp = C.VK_LOGIC_OP_COPY

		if len(cb.Attachments) > 0 {
			data.colorBlendAttachments = make([]C.VkPipelineColorBlendAttachmentState, len(cb.Attachments))
			for i, att := range cb.Attachments {
				data.colorBlendAttachments[i].blendEnable = boolToVk(att.BlendEnable)
				data.colorBlendAttachments[i].srcColorBlendFactor = C.VK_BLEND_FACTOR_SRC_ALPHA
				data.colorBlendAttachments[i].dstColorBlendFactor = C.VK_BLEND_FACTOR_ONE_MINUS_SRC_ALPHA
				data.colorBlendAttachments[i].colorBlendOp = C.VK_BLEND_OP_ADD
				data.colorBlendAttachments[i].srcAlphaBlendFactor = C.VK_BLEND_FACTOR_ONE
				data.colorBlendAttachments[i].dstAlphaBlendFactor = C.VK_BLEND_FACTOR_ZERO
				data.colorBlendAttachments[i].alphaBlendOp = C.VK_BLEND_OP_ADD
				data.colorBlendAttachments[i].colorWriteMask = C.VkColorComponentFlags(att.ColorWriteMask)
			}
			data.colorBlendState.attachmentCount = C.uint32_t(len(data.colorBlendAttachments))
			data.colorBlendState.pAttachments = &data.colorBlendAttachments[0]
		}

		data.cInfo.pColorBlendState = data.colorBlendState
	}

	if dyn := info.DynamicState; dyn != nil && len(dyn.DynamicStates) > 0 {
		data.dynamicState = (*C.VkPipelineDynamicStateCreateInfo)(C.calloc(1, C.sizeof_VkPipelineDynamicStateCreateInfo))
		data.dynamicState.sType = C.VK_STRUCTURE_TYPE_PIPELINE_DYNAMIC_STATE_CREATE_INFO

		data.dynamicStates = make([]C.VkDynamicState, len(dyn.DynamicStates))
		for i, state := range dyn.DynamicStates {
			data.dynamicStates[i] = C.VkDynamicState(state)
		}
		data.dynamicState.dynamicStateCount = C.uint32_t(len(data.dynamicStates))
		data.dynamicState.pDynamicStates = &data.dynamicStates[0]
		data.cInfo.pDynamicState = data.dynamicState
	}

	if ri := info.RenderingInfo; ri != nil {
		data.renderingInfo = (*C.VkPipelineRenderingCreateInfo)(C.calloc(1, C.sizeof_VkPipelineRenderingCreateInfo))
		data.renderingInfo.sType = C.VK_STRUCTURE_TYPE_PIPELINE_RENDERING_CREATE_INFO

		if len(ri.ColorAttachmentFormats) > 0 {
			data.colorFormats = make([]C.VkFormat, len(ri.ColorAttachmentFormats))
			for i, format := range ri.ColorAttachmentFormats {
				data.colorFormats[i] = C.VkFormat(format)
			}
			data.renderingInfo.colorAttachmentCount = C.uint32_t(len(data.colorFormats))
			data.renderingInfo.pColorAttachmentFormats = &data.colorFormats[0]
		}

		data.renderingInfo.depthAttachmentFormat = C.VkFormat(ri.DepthAttachmentFormat)
		data.renderingInfo.stencilAttachmentFormat = C.VkFormat(ri.StencilAttachmentFormat)

		// Dynamic rendering: renderPass stays NULL and this struct carries the formats.
		data.cInfo.pNext = unsafe.Pointer(data.renderingInfo)
	}

	data.cInfo.layout = info.Layout.handle
	data.cInfo.basePipelineIndex = -1

	return data
}

func (data *graphicsPipelineData) free() {
	for _, name := range data.shaderEntryNames {
		C.free(unsafe.Pointer(name))
	}

	for _, p := range []unsafe.Pointer{
		unsafe.Pointer(data.vertexInputState),
		unsafe.Pointer(data.inputAssemblyState),
		unsafe.Pointer(data.viewportState),
		unsafe.Pointer(data.rasterizationState),
		unsafe.Pointer(data.multisampleState),
		unsafe.Pointer(data.depthStencilState),
		unsafe.Pointer(data.colorBlendState),
		unsafe.Pointer(data.dynamicState),
		unsafe.Pointer(data.renderingInfo),
		unsafe.Pointer(data.cInfo),
	} {
		if p != nil {
			C.free(p)
		}
	}
}

func (device Device) CreateGraphicsPipeline(createInfo *GraphicsPipelineCreateInfo) (Pipeline, error) {
	data := createInfo.vulkanize()
	defer data.free()

	var pipeline C.VkPipeline
	result := C.vkCreateGraphicsPipelines(device.handle, nil, 1, data.cInfo, nil, &pipeline)

	if result != C.VK_SUCCESS {
		return Pipeline{}, Result(result)
	}

	return Pipeline{handle: pipeline}, nil
}
