// Package gpu is the device abstraction the renderer core is written against.
// gpu/vkgpu implements it on the vulkango binding and gpu/gputest implements
// it headlessly for tests.
package gpu

import (
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNoSuitableMemoryType is returned when no memory type satisfies a
	// buffer's requirements together with the requested property flags.
	ErrNoSuitableMemoryType = errors.New("gpu: no suitable memory type")

	// ErrTimeout is returned by WaitForFence when the fence did not signal in time.
	ErrTimeout = errors.New("gpu: timed out waiting for fence")
)

// Extent is a width/height pair in pixels.
type Extent struct {
	Width  uint32
	Height uint32
}

// Degenerate reports whether either dimension is zero, as for a minimized window.
func (e Extent) Degenerate() bool {
	return e.Width == 0 || e.Height == 0
}

// Aspect returns width/height, or 1 for a degenerate extent.
func (e Extent) Aspect() float32 {
	if e.Degenerate() {
		return 1
	}
	return float32(e.Width) / float32(e.Height)
}

type Limits struct {
	MinUniformBufferOffsetAlignment uint64
	MaxUniformBufferRange           uint32
}

// Status is the non-fatal outcome of acquire and present.
type Status int

const (
	StatusSuccess Status = iota
	StatusSuboptimal
	StatusOutOfDate
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out_of_date"
	default:
		return "unknown"
	}
}

type BufferUsage uint32

const (
	BufferUsageUniform BufferUsage = 1 << iota
	BufferUsageVertex
	BufferUsageIndex
	BufferUsageTransferSrc
	BufferUsageTransferDst
)

type MemoryProperty uint32

const (
	MemoryDeviceLocal MemoryProperty = 1 << iota
	MemoryHostVisible
	MemoryHostCoherent
)

type DescriptorType int

const (
	DescriptorUniformBufferDynamic DescriptorType = iota
	DescriptorCombinedImageSampler
)

type ShaderStage uint32

const (
	StageVertex ShaderStage = 1 << iota
	StageFragment
)

type IndexType int

const (
	IndexUint16 IndexType = iota
	IndexUint32
)

type PolygonMode int

const (
	PolygonFill PolygonMode = iota
	PolygonLine
)

type Buffer interface {
	// Size is the usable size in bytes the buffer was created with.
	Size() uint64
	// Write maps [offset, offset+len(data)), copies data and unmaps.
	Write(offset uint64, data []byte) error
	Destroy()
}

type Fence interface {
	Destroy()
}

type Semaphore interface {
	Destroy()
}

type DescriptorSetLayout interface {
	Destroy()
}

type DescriptorPool interface {
	Destroy()
}

// DescriptorSet is an opaque handle owned by its pool.
type DescriptorSet interface{}

type PipelineLayout interface {
	Destroy()
}

type Pipeline interface {
	Layout() PipelineLayout
	Destroy()
}

// Swapchain owns the presentable images. Image indices returned by
// AcquireNextImage are in [0, ImageCount()).
type Swapchain interface {
	Extent() Extent
	ImageCount() int
	Destroy()
}

// RenderTarget is the depth attachment rendered alongside the swapchain image.
type RenderTarget interface {
	Extent() Extent
	Destroy()
}

// TextureBinding is a sampled image bound as a combined image sampler.
type TextureBinding interface {
	Extent() Extent
	Destroy()
}

type DescriptorBinding struct {
	Binding uint32
	Type    DescriptorType
	Stages  ShaderStage
}

type DescriptorPoolSize struct {
	Type  DescriptorType
	Count uint32
}

// DescriptorWrite points one binding of a set at a buffer range or a texture.
type DescriptorWrite struct {
	Binding uint32
	Type    DescriptorType
	Buffer  Buffer
	Offset  uint64
	Range   uint64
	Texture TextureBinding
}

// VertexAttribute describes one float vector attribute of the single vertex binding.
type VertexAttribute struct {
	Location   uint32
	Components int
	Offset     uint32
}

type PipelineDesc struct {
	Name             string
	VertexSPIRV      []byte
	FragmentSPIRV    []byte
	Layout           PipelineLayout
	VertexStride     uint32
	Attributes       []VertexAttribute
	Polygon          PolygonMode
	DepthTest        bool
	CounterClockwise bool
}

// RenderingInfo describes one dynamic rendering pass on a swapchain image.
// LoadColor keeps the existing color contents instead of clearing them.
// Depth may be nil for passes that do not test depth.
type RenderingInfo struct {
	Swapchain  Swapchain
	ImageIndex uint32
	Depth      RenderTarget
	ClearColor [4]float32
	ClearDepth float32
	LoadColor  bool
}

type CommandBuffer interface {
	Reset() error
	Begin() error
	End() error

	BeginRendering(info RenderingInfo)
	EndRendering()
	// TransitionToPresent moves the swapchain image into the present layout.
	TransitionToPresent(swapchain Swapchain, imageIndex uint32)

	SetViewport(extent Extent)
	SetScissor(extent Extent)

	BindPipeline(pipeline Pipeline)
	BindDescriptorSet(layout PipelineLayout, set DescriptorSet, dynamicOffsets []uint32)
	BindVertexBuffer(buffer Buffer, offset uint64)
	BindIndexBuffer(buffer Buffer, offset uint64, indexType IndexType)
	DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32)
}

// SubmitInfo waits on Wait at the color attachment output stage and signals
// Signal once every command buffer completed.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           Semaphore
	Signal         Semaphore
}

type Device interface {
	Limits() Limits

	CreateBuffer(size uint64, usage BufferUsage, props MemoryProperty) (Buffer, error)
	CreateTexture(width, height uint32, rgba []byte) (TextureBinding, error)

	CreateFence(signaled bool) (Fence, error)
	CreateSemaphore() (Semaphore, error)
	// WaitForFence returns ErrTimeout when the fence is still unsignalled after timeout.
	WaitForFence(fence Fence, timeout time.Duration) error
	ResetFence(fence Fence) error

	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	CreateDescriptorPool(maxSets uint32, sizes []DescriptorPoolSize) (DescriptorPool, error)
	AllocateDescriptorSet(pool DescriptorPool, layout DescriptorSetLayout) (DescriptorSet, error)
	UpdateDescriptorSet(set DescriptorSet, writes []DescriptorWrite)

	CreatePipelineLayout(setLayouts []DescriptorSetLayout) (PipelineLayout, error)
	CreatePipeline(desc PipelineDesc) (Pipeline, error)

	// SurfaceExtent is the current extent of the presentation surface.
	SurfaceExtent() (Extent, error)
	// CreateSwapchain builds a swapchain for the current surface extent. old
	// may be nil; when set it is handed to the driver and the caller still
	// destroys it.
	CreateSwapchain(old Swapchain) (Swapchain, error)
	CreateDepthTarget(extent Extent) (RenderTarget, error)

	// AcquireNextImage reports out-of-date and suboptimal swapchains through
	// Status with a nil error.
	AcquireNextImage(swapchain Swapchain, timeout time.Duration, signal Semaphore) (uint32, Status, error)
	Submit(info SubmitInfo, fence Fence) error
	// Present follows the AcquireNextImage convention.
	Present(swapchain Swapchain, imageIndex uint32, wait Semaphore) (Status, error)

	WaitIdle() error
}
