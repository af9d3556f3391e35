// Package descriptor builds the single set layout shared by every entity and
// one descriptor set per frame in flight.
package descriptor

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

const (
	UniformBinding = 0
	TextureBinding = 1
)

// Binder owns the layout, the pool and the per-frame sets. Set f points at
// buffer f through a dynamic uniform descriptor whose range is one slot.
type Binder struct {
	dev        gpu.Device
	layout     gpu.DescriptorSetLayout
	pool       gpu.DescriptorPool
	sets       []gpu.DescriptorSet
	slotSize   uint64
	bufferSize uint64
}

// Build creates the layout (binding 0 dynamic uniform for the vertex stage,
// binding 1 combined image sampler for the fragment stage when texture is
// non-nil), a pool for frameCount sets and the sets themselves.
func Build(dev gpu.Device, frameCount int, buffers []gpu.Buffer, slotSize uint64, texture gpu.TextureBinding) (*Binder, error) {
	if frameCount <= 0 {
		return nil, errors.Errorf("descriptor: frame count must be positive, got %d", frameCount)
	}
	if len(buffers) != frameCount {
		return nil, errors.Errorf("descriptor: %d buffers for %d frames", len(buffers), frameCount)
	}

	b := &Binder{dev: dev, slotSize: slotSize, bufferSize: buffers[0].Size()}
	for _, buf := range buffers[1:] {
		b.bufferSize = min(b.bufferSize, buf.Size())
	}
	if slotSize > b.bufferSize {
		return nil, errors.Errorf("descriptor: slot of %d bytes does not fit a %d byte buffer", slotSize, b.bufferSize)
	}

	bindings := []gpu.DescriptorBinding{
		{Binding: UniformBinding, Type: gpu.DescriptorUniformBufferDynamic, Stages: gpu.StageVertex},
	}
	sizes := []gpu.DescriptorPoolSize{
		{Type: gpu.DescriptorUniformBufferDynamic, Count: uint32(frameCount)},
	}
	if texture != nil {
		bindings = append(bindings, gpu.DescriptorBinding{Binding: TextureBinding, Type: gpu.DescriptorCombinedImageSampler, Stages: gpu.StageFragment})
		sizes = append(sizes, gpu.DescriptorPoolSize{Type: gpu.DescriptorCombinedImageSampler, Count: uint32(frameCount)})
	}

	var err error
	b.layout, err = dev.CreateDescriptorSetLayout(bindings)
	if err != nil {
		return nil, errors.Wrap(err, "descriptor: create set layout")
	}

	b.pool, err = dev.CreateDescriptorPool(uint32(frameCount), sizes)
	if err != nil {
		b.Destroy()
		return nil, errors.Wrap(err, "descriptor: create pool")
	}

	for i := 0; i < frameCount; i++ {
		set, err := dev.AllocateDescriptorSet(b.pool, b.layout)
		if err != nil {
			b.Destroy()
			return nil, errors.Wrapf(err, "descriptor: allocate set %d", i)
		}

		writes := []gpu.DescriptorWrite{{
			Binding: UniformBinding,
			Type:    gpu.DescriptorUniformBufferDynamic,
			Buffer:  buffers[i],
			Offset:  0,
			Range:   slotSize,
		}}
		if texture != nil {
			writes = append(writes, gpu.DescriptorWrite{
				Binding: TextureBinding,
				Type:    gpu.DescriptorCombinedImageSampler,
				Texture: texture,
			})
		}
		dev.UpdateDescriptorSet(set, writes)

		b.sets = append(b.sets, set)
	}

	return b, nil
}

func (b *Binder) Set(frame int) gpu.DescriptorSet { return b.sets[frame] }

func (b *Binder) Layout() gpu.DescriptorSetLayout { return b.layout }

func (b *Binder) SlotSize() uint64 { return b.slotSize }

// DynamicOffset returns ordinal*stride. An offset whose slot would run past
// the end of the buffer is a programming error and panics.
func (b *Binder) DynamicOffset(ordinal int, stride uint64) uint32 {
	if ordinal < 0 {
		panic(fmt.Sprintf("descriptor: negative ordinal %d", ordinal))
	}
	offset := uint64(ordinal) * stride
	if offset+b.slotSize > b.bufferSize {
		panic(fmt.Sprintf("descriptor: dynamic offset %d + %d exceeds buffer of %d bytes", offset, b.slotSize, b.bufferSize))
	}
	return uint32(offset)
}

// Destroy releases the pool, which frees the sets, and the layout.
func (b *Binder) Destroy() {
	if b.pool != nil {
		b.pool.Destroy()
		b.pool = nil
	}
	if b.layout != nil {
		b.layout.Destroy()
		b.layout = nil
	}
	b.sets = nil
}
