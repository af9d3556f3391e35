// Package gputest is a headless gpu.Device. It keeps buffers in byte slices,
// records every command, models fences as pending until waited on, and lets
// tests script acquire/present results and surface extents.
package gputest

import (
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

// Op names a recorded command.
type Op string

const (
	OpBeginRendering      Op = "begin_rendering"
	OpEndRendering        Op = "end_rendering"
	OpTransitionToPresent Op = "transition_to_present"
	OpSetViewport         Op = "set_viewport"
	OpSetScissor          Op = "set_scissor"
	OpBindPipeline        Op = "bind_pipeline"
	OpBindDescriptorSet   Op = "bind_descriptor_set"
	OpBindVertexBuffer    Op = "bind_vertex_buffer"
	OpBindIndexBuffer     Op = "bind_index_buffer"
	OpDrawIndexed         Op = "draw_indexed"
)

// Command is one recorded call. Only the fields relevant to Op are set.
type Command struct {
	Op             Op
	Rendering      gpu.RenderingInfo
	Extent         gpu.Extent
	Pipeline       gpu.Pipeline
	Layout         gpu.PipelineLayout
	Set            gpu.DescriptorSet
	DynamicOffsets []uint32
	Buffer         gpu.Buffer
	Offset         uint64
	IndexType      gpu.IndexType
	IndexCount     uint32
	FirstIndex     uint32
	VertexOffset   int32
	ImageIndex     uint32
}

type Buffer struct {
	ID        int
	Usage     gpu.BufferUsage
	Props     gpu.MemoryProperty
	Data      []byte
	Writes    int
	Destroyed bool
}

func (b *Buffer) Size() uint64 { return uint64(len(b.Data)) }

func (b *Buffer) Write(offset uint64, data []byte) error {
	if b.Destroyed {
		return errors.Errorf("gputest: write to destroyed buffer %d", b.ID)
	}
	end := offset + uint64(len(data))
	if end > uint64(len(b.Data)) {
		return errors.Errorf("gputest: write [%d,%d) outside buffer %d of %d bytes", offset, end, b.ID, len(b.Data))
	}
	copy(b.Data[offset:end], data)
	b.Writes++
	return nil
}

func (b *Buffer) Destroy() { b.Destroyed = true }

type fenceState int

const (
	fenceSignaled fenceState = iota
	fenceUnsignaled
	fencePending
)

type Fence struct {
	ID        int
	state     fenceState
	Destroyed bool
}

// Signaled reports whether the fence is in the signalled state.
func (f *Fence) Signaled() bool { return f.state == fenceSignaled }

// Pending reports whether submitted work still guards the fence.
func (f *Fence) Pending() bool { return f.state == fencePending }

func (f *Fence) Destroy() { f.Destroyed = true }

type Semaphore struct {
	ID        int
	Destroyed bool
}

func (s *Semaphore) Destroy() { s.Destroyed = true }

type CommandBuffer struct {
	ID        int
	Commands  []Command
	Recording bool
	Ended     bool
	Resets    int
	Freed     bool
}

func (c *CommandBuffer) Reset() error {
	if c.Freed {
		return errors.Errorf("gputest: reset of freed command buffer %d", c.ID)
	}
	c.Commands = nil
	c.Recording = false
	c.Ended = false
	c.Resets++
	return nil
}

func (c *CommandBuffer) Begin() error {
	if c.Recording {
		return errors.Errorf("gputest: command buffer %d already recording", c.ID)
	}
	c.Commands = nil
	c.Recording = true
	c.Ended = false
	return nil
}

func (c *CommandBuffer) End() error {
	if !c.Recording {
		return errors.Errorf("gputest: end of command buffer %d that is not recording", c.ID)
	}
	c.Recording = false
	c.Ended = true
	return nil
}

func (c *CommandBuffer) record(cmd Command) {
	c.Commands = append(c.Commands, cmd)
}

func (c *CommandBuffer) BeginRendering(info gpu.RenderingInfo) {
	c.record(Command{Op: OpBeginRendering, Rendering: info, ImageIndex: info.ImageIndex})
}

func (c *CommandBuffer) EndRendering() { c.record(Command{Op: OpEndRendering}) }

func (c *CommandBuffer) TransitionToPresent(_ gpu.Swapchain, imageIndex uint32) {
	c.record(Command{Op: OpTransitionToPresent, ImageIndex: imageIndex})
}

func (c *CommandBuffer) SetViewport(extent gpu.Extent) {
	c.record(Command{Op: OpSetViewport, Extent: extent})
}

func (c *CommandBuffer) SetScissor(extent gpu.Extent) {
	c.record(Command{Op: OpSetScissor, Extent: extent})
}

func (c *CommandBuffer) BindPipeline(p gpu.Pipeline) {
	c.record(Command{Op: OpBindPipeline, Pipeline: p})
}

func (c *CommandBuffer) BindDescriptorSet(layout gpu.PipelineLayout, set gpu.DescriptorSet, dynamicOffsets []uint32) {
	offsets := append([]uint32(nil), dynamicOffsets...)
	c.record(Command{Op: OpBindDescriptorSet, Layout: layout, Set: set, DynamicOffsets: offsets})
}

func (c *CommandBuffer) BindVertexBuffer(buffer gpu.Buffer, offset uint64) {
	c.record(Command{Op: OpBindVertexBuffer, Buffer: buffer, Offset: offset})
}

func (c *CommandBuffer) BindIndexBuffer(buffer gpu.Buffer, offset uint64, indexType gpu.IndexType) {
	c.record(Command{Op: OpBindIndexBuffer, Buffer: buffer, Offset: offset, IndexType: indexType})
}

func (c *CommandBuffer) DrawIndexed(indexCount, firstIndex uint32, vertexOffset int32) {
	c.record(Command{Op: OpDrawIndexed, IndexCount: indexCount, FirstIndex: firstIndex, VertexOffset: vertexOffset})
}

// Filter returns the recorded commands with the given op, in order.
func (c *CommandBuffer) Filter(op Op) []Command {
	var out []Command
	for _, cmd := range c.Commands {
		if cmd.Op == op {
			out = append(out, cmd)
		}
	}
	return out
}

type DescriptorSetLayout struct {
	Bindings  []gpu.DescriptorBinding
	Destroyed bool
}

func (l *DescriptorSetLayout) Destroy() { l.Destroyed = true }

type DescriptorPool struct {
	MaxSets   uint32
	Sizes     []gpu.DescriptorPoolSize
	Allocated uint32
	Destroyed bool
}

func (p *DescriptorPool) Destroy() { p.Destroyed = true }

type DescriptorSet struct {
	ID     int
	Layout *DescriptorSetLayout
	Writes map[uint32]gpu.DescriptorWrite
}

type PipelineLayout struct {
	SetLayouts []gpu.DescriptorSetLayout
	Destroyed  bool
}

func (l *PipelineLayout) Destroy() { l.Destroyed = true }

type Pipeline struct {
	ID        int
	Desc      gpu.PipelineDesc
	Destroyed bool
}

func (p *Pipeline) Layout() gpu.PipelineLayout { return p.Desc.Layout }
func (p *Pipeline) Destroy()                   { p.Destroyed = true }

type Swapchain struct {
	ID        int
	extent    gpu.Extent
	images    int
	Old       *Swapchain
	Destroyed bool
}

func (s *Swapchain) Extent() gpu.Extent { return s.extent }
func (s *Swapchain) ImageCount() int    { return s.images }
func (s *Swapchain) Destroy()           { s.Destroyed = true }

type DepthTarget struct {
	extent    gpu.Extent
	Destroyed bool
}

func (d *DepthTarget) Extent() gpu.Extent { return d.extent }
func (d *DepthTarget) Destroy()           { d.Destroyed = true }

type Texture struct {
	extent    gpu.Extent
	Pixels    []byte
	Destroyed bool
}

func (t *Texture) Extent() gpu.Extent { return t.extent }
func (t *Texture) Destroy()           { t.Destroyed = true }

// PresentResult scripts one Present call.
type PresentResult struct {
	Status gpu.Status
	Err    error
}

// Submission records one Submit call.
type Submission struct {
	CommandBuffers []*CommandBuffer
	Wait           *Semaphore
	Signal         *Semaphore
	Fence          *Fence
}

// Device implements gpu.Device without a GPU. It is not safe for concurrent use.
type Device struct {
	limits gpu.Limits

	// NoHostVisibleMemory makes every host-visible allocation fail with
	// gpu.ErrNoSuitableMemoryType.
	NoHostVisibleMemory bool
	// HangFences makes every wait on a pending fence time out.
	HangFences bool
	// NoLinePolygons makes line-mode pipelines fail, as on devices without
	// fillModeNonSolid.
	NoLinePolygons bool
	// ImageCount is the number of images of new swapchains.
	ImageCount int

	// Scripts are consumed front to back; once empty the defaults apply.
	AcquireScript []gpu.Status
	PresentScript []PresentResult
	ExtentScript  []gpu.Extent
	extent        gpu.Extent

	Buffers        []*Buffer
	Fences         []*Fence
	Semaphores     []*Semaphore
	CommandBuffers []*CommandBuffer
	Swapchains     []*Swapchain
	DepthTargets   []*DepthTarget
	Pipelines      []*Pipeline
	Sets           []*DescriptorSet

	Submissions []Submission
	Presents    []uint32
	Acquires    int
	IdleWaits   int
	FenceWaits  int

	// MaxUnsignaled is the highest number of live fences observed unsignalled
	// at once, sampled after every reset and submit.
	MaxUnsignaled int

	nextImage uint32
	nextID    int
}

var _ gpu.Device = (*Device)(nil)

// New returns a device with the given surface extent, a 256-byte uniform
// offset alignment and three-image swapchains.
func New(extent gpu.Extent) *Device {
	return &Device{
		limits: gpu.Limits{
			MinUniformBufferOffsetAlignment: 256,
			MaxUniformBufferRange:           65536,
		},
		ImageCount: 3,
		extent:     extent,
	}
}

func (d *Device) id() int {
	d.nextID++
	return d.nextID
}

// SetLimits replaces the reported device limits.
func (d *Device) SetLimits(l gpu.Limits) { d.limits = l }

// SetExtent changes the surface extent reported once ExtentScript is drained.
func (d *Device) SetExtent(e gpu.Extent) { d.extent = e }

func (d *Device) Limits() gpu.Limits { return d.limits }

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, props gpu.MemoryProperty) (gpu.Buffer, error) {
	if d.NoHostVisibleMemory && props&gpu.MemoryHostVisible != 0 {
		return nil, gpu.ErrNoSuitableMemoryType
	}
	if size == 0 {
		return nil, errors.New("gputest: zero-sized buffer")
	}
	b := &Buffer{ID: d.id(), Usage: usage, Props: props, Data: make([]byte, size)}
	d.Buffers = append(d.Buffers, b)
	return b, nil
}

func (d *Device) CreateTexture(width, height uint32, rgba []byte) (gpu.TextureBinding, error) {
	if uint64(len(rgba)) != uint64(width)*uint64(height)*4 {
		return nil, errors.Errorf("gputest: texture %dx%d needs %d bytes, got %d", width, height, width*height*4, len(rgba))
	}
	return &Texture{extent: gpu.Extent{Width: width, Height: height}, Pixels: append([]byte(nil), rgba...)}, nil
}

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	f := &Fence{ID: d.id(), state: fenceUnsignaled}
	if signaled {
		f.state = fenceSignaled
	}
	d.Fences = append(d.Fences, f)
	return f, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	s := &Semaphore{ID: d.id()}
	d.Semaphores = append(d.Semaphores, s)
	return s, nil
}

// WaitForFence completes the fence's pending work, as if the GPU finished it.
func (d *Device) WaitForFence(fence gpu.Fence, timeout time.Duration) error {
	f := fence.(*Fence)
	d.FenceWaits++
	switch f.state {
	case fenceSignaled:
		return nil
	case fencePending:
		if d.HangFences {
			return gpu.ErrTimeout
		}
		f.state = fenceSignaled
		return nil
	default:
		// Nothing will ever signal a reset fence that was not submitted.
		return gpu.ErrTimeout
	}
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	f := fence.(*Fence)
	if f.state == fencePending {
		return errors.Errorf("gputest: reset of fence %d while its work is in flight", f.ID)
	}
	f.state = fenceUnsignaled
	d.sampleFences()
	return nil
}

func (d *Device) sampleFences() {
	n := 0
	for _, f := range d.Fences {
		if !f.Destroyed && f.state != fenceSignaled {
			n++
		}
	}
	if n > d.MaxUnsignaled {
		d.MaxUnsignaled = n
	}
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		c := &CommandBuffer{ID: d.id()}
		d.CommandBuffers = append(d.CommandBuffers, c)
		out[i] = c
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	for _, b := range buffers {
		b.(*CommandBuffer).Freed = true
	}
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	return &DescriptorSetLayout{Bindings: append([]gpu.DescriptorBinding(nil), bindings...)}, nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	return &DescriptorPool{MaxSets: maxSets, Sizes: append([]gpu.DescriptorPoolSize(nil), sizes...)}, nil
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	p := pool.(*DescriptorPool)
	if p.Allocated >= p.MaxSets {
		return nil, errors.New("gputest: descriptor pool exhausted")
	}
	p.Allocated++
	s := &DescriptorSet{ID: d.id(), Layout: layout.(*DescriptorSetLayout), Writes: make(map[uint32]gpu.DescriptorWrite)}
	d.Sets = append(d.Sets, s)
	return s, nil
}

func (d *Device) UpdateDescriptorSet(set gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	s := set.(*DescriptorSet)
	for _, w := range writes {
		s.Writes[w.Binding] = w
	}
}

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	return &PipelineLayout{SetLayouts: append([]gpu.DescriptorSetLayout(nil), setLayouts...)}, nil
}

func (d *Device) CreatePipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if desc.Layout == nil {
		return nil, errors.Errorf("gputest: pipeline %q has no layout", desc.Name)
	}
	if desc.Polygon == gpu.PolygonLine && d.NoLinePolygons {
		return nil, errors.Errorf("gputest: pipeline %q: line polygon mode not supported", desc.Name)
	}
	p := &Pipeline{ID: d.id(), Desc: desc}
	d.Pipelines = append(d.Pipelines, p)
	return p, nil
}

func (d *Device) SurfaceExtent() (gpu.Extent, error) {
	if len(d.ExtentScript) > 0 {
		e := d.ExtentScript[0]
		d.ExtentScript = d.ExtentScript[1:]
		return e, nil
	}
	return d.extent, nil
}

func (d *Device) CreateSwapchain(old gpu.Swapchain) (gpu.Swapchain, error) {
	extent, err := d.SurfaceExtent()
	if err != nil {
		return nil, err
	}
	if extent.Degenerate() {
		return nil, errors.Errorf("gputest: swapchain with degenerate extent %dx%d", extent.Width, extent.Height)
	}
	s := &Swapchain{ID: d.id(), extent: extent, images: d.ImageCount}
	if old != nil {
		s.Old = old.(*Swapchain)
	}
	d.Swapchains = append(d.Swapchains, s)
	d.nextImage = 0
	return s, nil
}

func (d *Device) CreateDepthTarget(extent gpu.Extent) (gpu.RenderTarget, error) {
	t := &DepthTarget{extent: extent}
	d.DepthTargets = append(d.DepthTargets, t)
	return t, nil
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, gpu.Status, error) {
	sc := swapchain.(*Swapchain)
	if sc.Destroyed {
		return 0, gpu.StatusSuccess, errors.Errorf("gputest: acquire on destroyed swapchain %d", sc.ID)
	}
	if signal == nil {
		return 0, gpu.StatusSuccess, errors.New("gputest: acquire without a semaphore")
	}
	d.Acquires++

	status := gpu.StatusSuccess
	if len(d.AcquireScript) > 0 {
		status = d.AcquireScript[0]
		d.AcquireScript = d.AcquireScript[1:]
	}
	if status == gpu.StatusOutOfDate {
		return 0, status, nil
	}

	idx := d.nextImage % uint32(sc.images)
	d.nextImage++
	return idx, status, nil
}

func (d *Device) Submit(info gpu.SubmitInfo, fence gpu.Fence) error {
	sub := Submission{}
	for _, c := range info.CommandBuffers {
		cb := c.(*CommandBuffer)
		if !cb.Ended {
			return errors.Errorf("gputest: submit of command buffer %d that was not ended", cb.ID)
		}
		sub.CommandBuffers = append(sub.CommandBuffers, cb)
	}
	if info.Wait != nil {
		sub.Wait = info.Wait.(*Semaphore)
	}
	if info.Signal != nil {
		sub.Signal = info.Signal.(*Semaphore)
	}
	if fence != nil {
		f := fence.(*Fence)
		if f.state != fenceUnsignaled {
			return errors.Errorf("gputest: submit with fence %d that was not reset", f.ID)
		}
		f.state = fencePending
		sub.Fence = f
	}
	d.Submissions = append(d.Submissions, sub)
	d.sampleFences()
	return nil
}

func (d *Device) Present(swapchain gpu.Swapchain, imageIndex uint32, wait gpu.Semaphore) (gpu.Status, error) {
	sc := swapchain.(*Swapchain)
	if int(imageIndex) >= sc.images {
		return gpu.StatusSuccess, errors.Errorf("gputest: present of image %d out of %d", imageIndex, sc.images)
	}
	d.Presents = append(d.Presents, imageIndex)

	if len(d.PresentScript) > 0 {
		r := d.PresentScript[0]
		d.PresentScript = d.PresentScript[1:]
		return r.Status, r.Err
	}
	return gpu.StatusSuccess, nil
}

// WaitIdle completes all pending work.
func (d *Device) WaitIdle() error {
	d.IdleWaits++
	for _, f := range d.Fences {
		if f.state == fencePending {
			f.state = fenceSignaled
		}
	}
	return nil
}

// LastSwapchain returns the most recently created swapchain.
func (d *Device) LastSwapchain() *Swapchain {
	if len(d.Swapchains) == 0 {
		return nil
	}
	return d.Swapchains[len(d.Swapchains)-1]
}

// LiveFences counts fences that were not destroyed.
func (d *Device) LiveFences() int {
	n := 0
	for _, f := range d.Fences {
		if !f.Destroyed {
			n++
		}
	}
	return n
}

func (s Submission) String() string {
	ids := make([]int, len(s.CommandBuffers))
	for i, c := range s.CommandBuffers {
		ids[i] = c.ID
	}
	return fmt.Sprintf("submit%v", ids)
}
