// Package uniform allocates the per-frame dynamic uniform buffers that hold
// one MVP block per drawn entity.
package uniform

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

// ComputeStride rounds structSize up to the next multiple of alignment.
// An alignment of 0 means no constraint.
func ComputeStride(structSize, alignment uint64) uint64 {
	if alignment == 0 {
		return structSize
	}
	return (structSize + alignment - 1) / alignment * alignment
}

// Allocator owns one uniform buffer per frame in flight. Slot i of every
// buffer starts at i*Stride() and holds one MVP.
type Allocator struct {
	dev         gpu.Device
	stride      uint64
	entityCount int
	buffers     []gpu.Buffer
}

// New allocates frameCount host-visible, coherent buffers of
// stride*entityCount bytes each. With no entities every buffer still gets one
// stride so descriptor writes have something valid to point at.
func New(dev gpu.Device, frameCount, entityCount int) (*Allocator, error) {
	if frameCount <= 0 {
		return nil, errors.Errorf("uniform: frame count must be positive, got %d", frameCount)
	}
	if entityCount < 0 {
		return nil, errors.Errorf("uniform: negative entity count %d", entityCount)
	}

	a := &Allocator{
		dev:         dev,
		stride:      ComputeStride(ecs.MVPSize, dev.Limits().MinUniformBufferOffsetAlignment),
		entityCount: entityCount,
	}

	size := a.stride * uint64(max(entityCount, 1))
	for i := 0; i < frameCount; i++ {
		buf, err := dev.CreateBuffer(size, gpu.BufferUsageUniform, gpu.MemoryHostVisible|gpu.MemoryHostCoherent)
		if err != nil {
			a.Destroy()
			return nil, errors.Wrapf(err, "uniform: create buffer for frame %d", i)
		}
		a.buffers = append(a.buffers, buf)
	}

	return a, nil
}

// WriteSlot copies mvp into slot ordinal of frame's buffer.
// Out-of-range frames or ordinals are programming errors and panic.
func (a *Allocator) WriteSlot(frame, ordinal int, mvp *ecs.MVP) error {
	if frame < 0 || frame >= len(a.buffers) {
		panic(fmt.Sprintf("uniform: frame %d out of range [0,%d)", frame, len(a.buffers)))
	}
	if ordinal < 0 || ordinal >= a.entityCount {
		panic(fmt.Sprintf("uniform: ordinal %d out of range [0,%d)", ordinal, a.entityCount))
	}

	if err := a.buffers[frame].Write(uint64(ordinal)*a.stride, mvp.Bytes()); err != nil {
		return errors.Wrapf(err, "uniform: write slot %d of frame %d", ordinal, frame)
	}
	return nil
}

// Offset is the byte offset of slot ordinal, as passed as a dynamic offset.
func (a *Allocator) Offset(ordinal int) uint32 {
	return uint32(uint64(ordinal) * a.stride)
}

func (a *Allocator) Stride() uint64 { return a.stride }

// Size is stride*entityCount, the addressable size of each buffer.
func (a *Allocator) Size() uint64 { return a.stride * uint64(a.entityCount) }

func (a *Allocator) EntityCount() int { return a.entityCount }

func (a *Allocator) FrameCount() int { return len(a.buffers) }

func (a *Allocator) Buffer(frame int) gpu.Buffer { return a.buffers[frame] }

// Buffers returns the per-frame buffers in frame order.
func (a *Allocator) Buffers() []gpu.Buffer {
	out := make([]gpu.Buffer, len(a.buffers))
	copy(out, a.buffers)
	return out
}

func (a *Allocator) Destroy() {
	for _, b := range a.buffers {
		b.Destroy()
	}
	a.buffers = nil
}
