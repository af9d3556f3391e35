package vkgpu

import (
	"time"

	"github.com/pkg/errors"

	vk "github.com/NOT-REAL-GAMES/trianglego/vulkango"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

type buffer struct {
	device *Device
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
}

func (b *buffer) Size() uint64 { return b.size }

func (b *buffer) Write(offset uint64, data []byte) error {
	if offset+uint64(len(data)) > b.size {
		return errors.Errorf("vkgpu: write of %d bytes at %d overflows %d-byte buffer", len(data), offset, b.size)
	}
	if err := b.device.handle.WriteMemory(b.memory, offset, data); err != nil {
		return errors.Wrap(err, "vkgpu: write buffer")
	}
	return nil
}

func (b *buffer) Destroy() {
	b.device.handle.DestroyBuffer(b.handle)
	b.device.handle.FreeMemory(b.memory)
}

func (d *Device) CreateBuffer(size uint64, usage gpu.BufferUsage, props gpu.MemoryProperty) (gpu.Buffer, error) {
	handle, memory, err := d.handle.CreateBufferWithMemory(size, bufferUsage(usage), memoryProperties(props), d.physical)
	if err != nil {
		return nil, wrapMemory(err, "vkgpu: create %d-byte buffer", size)
	}
	return &buffer{device: d, handle: handle, memory: memory, size: size}, nil
}

func wrapMemory(err error, format string, args ...interface{}) error {
	if errors.Is(err, vk.ErrNoSuitableMemoryType) {
		err = gpu.ErrNoSuitableMemoryType
	}
	return errors.Wrapf(err, format, args...)
}

func bufferUsage(u gpu.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if u&gpu.BufferUsageUniform != 0 {
		flags |= vk.BUFFER_USAGE_UNIFORM_BUFFER_BIT
	}
	if u&gpu.BufferUsageVertex != 0 {
		flags |= vk.BUFFER_USAGE_VERTEX_BUFFER_BIT
	}
	if u&gpu.BufferUsageIndex != 0 {
		flags |= vk.BUFFER_USAGE_INDEX_BUFFER_BIT
	}
	if u&gpu.BufferUsageTransferSrc != 0 {
		flags |= vk.BUFFER_USAGE_TRANSFER_SRC_BIT
	}
	if u&gpu.BufferUsageTransferDst != 0 {
		flags |= vk.BUFFER_USAGE_TRANSFER_DST_BIT
	}
	return flags
}

func memoryProperties(p gpu.MemoryProperty) vk.MemoryPropertyFlags {
	var flags vk.MemoryPropertyFlags
	if p&gpu.MemoryDeviceLocal != 0 {
		flags |= vk.MEMORY_PROPERTY_DEVICE_LOCAL_BIT
	}
	if p&gpu.MemoryHostVisible != 0 {
		flags |= vk.MEMORY_PROPERTY_HOST_VISIBLE_BIT
	}
	if p&gpu.MemoryHostCoherent != 0 {
		flags |= vk.MEMORY_PROPERTY_HOST_COHERENT_BIT
	}
	return flags
}

type fence struct {
	device *Device
	handle vk.Fence
}

func (f *fence) Destroy() { f.device.handle.DestroyFence(f.handle) }

type semaphore struct {
	device *Device
	handle vk.Semaphore
}

func (s *semaphore) Destroy() { s.device.handle.DestroySemaphore(s.handle) }

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := &vk.FenceCreateInfo{}
	if signaled {
		info.Flags = vk.FENCE_CREATE_SIGNALED_BIT
	}
	handle, err := d.handle.CreateFence(info)
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create fence")
	}
	return &fence{device: d, handle: handle}, nil
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	handle, err := d.handle.CreateSemaphore(&vk.SemaphoreCreateInfo{})
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create semaphore")
	}
	return &semaphore{device: d, handle: handle}, nil
}

func (d *Device) WaitForFence(f gpu.Fence, timeout time.Duration) error {
	err := d.handle.WaitForFences([]vk.Fence{f.(*fence).handle}, true, nanos(timeout))
	if err == vk.TIMEOUT {
		return gpu.ErrTimeout
	}
	if err != nil {
		return errors.Wrap(err, "vkgpu: wait for fence")
	}
	return nil
}

func (d *Device) ResetFence(f gpu.Fence) error {
	if err := d.handle.ResetFences([]vk.Fence{f.(*fence).handle}); err != nil {
		return errors.Wrap(err, "vkgpu: reset fence")
	}
	return nil
}

type descriptorSetLayout struct {
	device *Device
	handle vk.DescriptorSetLayout
}

func (l *descriptorSetLayout) Destroy() { l.device.handle.DestroyDescriptorSetLayout(l.handle) }

type descriptorPool struct {
	device *Device
	handle vk.DescriptorPool
}

func (p *descriptorPool) Destroy() { p.device.handle.DestroyDescriptorPool(p.handle) }

type descriptorSet struct {
	handle vk.DescriptorSet
}

func descriptorType(t gpu.DescriptorType) vk.DescriptorType {
	if t == gpu.DescriptorCombinedImageSampler {
		return vk.DESCRIPTOR_TYPE_COMBINED_IMAGE_SAMPLER
	}
	return vk.DESCRIPTOR_TYPE_UNIFORM_BUFFER_DYNAMIC
}

func shaderStages(s gpu.ShaderStage) vk.ShaderStageFlags {
	var flags vk.ShaderStageFlags
	if s&gpu.StageVertex != 0 {
		flags |= vk.SHADER_STAGE_VERTEX_BIT
	}
	if s&gpu.StageFragment != 0 {
		flags |= vk.SHADER_STAGE_FRAGMENT_BIT
	}
	return flags
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Type),
			DescriptorCount: 1,
			StageFlags:      shaderStages(b.Stages),
		}
	}
	handle, err := d.handle.CreateDescriptorSetLayout(&vk.DescriptorSetLayoutCreateInfo{Bindings: vkBindings})
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create descriptor set layout")
	}
	return &descriptorSetLayout{device: d, handle: handle}, nil
}

func (d *Device) CreateDescriptorPool(maxSets uint32, sizes []gpu.DescriptorPoolSize) (gpu.DescriptorPool, error) {
	vkSizes := make([]vk.DescriptorPoolSize, len(sizes))
	for i, s := range sizes {
		vkSizes[i] = vk.DescriptorPoolSize{Type: descriptorType(s.Type), DescriptorCount: s.Count}
	}
	handle, err := d.handle.CreateDescriptorPool(&vk.DescriptorPoolCreateInfo{
		MaxSets:   maxSets,
		PoolSizes: vkSizes,
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create descriptor pool")
	}
	return &descriptorPool{device: d, handle: handle}, nil
}

func (d *Device) AllocateDescriptorSet(pool gpu.DescriptorPool, layout gpu.DescriptorSetLayout) (gpu.DescriptorSet, error) {
	sets, err := d.handle.AllocateDescriptorSets(&vk.DescriptorSetAllocateInfo{
		DescriptorPool: pool.(*descriptorPool).handle,
		SetLayouts:     []vk.DescriptorSetLayout{layout.(*descriptorSetLayout).handle},
	})
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: allocate descriptor set")
	}
	return &descriptorSet{handle: sets[0]}, nil
}

func (d *Device) UpdateDescriptorSet(set gpu.DescriptorSet, writes []gpu.DescriptorWrite) {
	dst := set.(*descriptorSet).handle
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			DstSet:         dst,
			DstBinding:     w.Binding,
			DescriptorType: descriptorType(w.Type),
		}
		switch w.Type {
		case gpu.DescriptorCombinedImageSampler:
			tex := w.Texture.(*texture)
			write.ImageInfo = []vk.DescriptorImageInfo{{
				Sampler:     tex.sampler,
				ImageView:   tex.view,
				ImageLayout: vk.IMAGE_LAYOUT_SHADER_READ_ONLY_OPTIMAL,
			}}
		default:
			write.BufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: w.Buffer.(*buffer).handle,
				Offset: w.Offset,
				Range:  w.Range,
			}}
		}
		vkWrites = append(vkWrites, write)
	}
	d.handle.UpdateDescriptorSets(vkWrites)
}

type pipelineLayout struct {
	device *Device
	handle vk.PipelineLayout
}

func (l *pipelineLayout) Destroy() { l.device.handle.DestroyPipelineLayout(l.handle) }

func (d *Device) CreatePipelineLayout(setLayouts []gpu.DescriptorSetLayout) (gpu.PipelineLayout, error) {
	vkLayouts := make([]vk.DescriptorSetLayout, len(setLayouts))
	for i, l := range setLayouts {
		vkLayouts[i] = l.(*descriptorSetLayout).handle
	}
	handle, err := d.handle.CreatePipelineLayout(&vk.PipelineLayoutCreateInfo{SetLayouts: vkLayouts})
	if err != nil {
		return nil, errors.Wrap(err, "vkgpu: create pipeline layout")
	}
	return &pipelineLayout{device: d, handle: handle}, nil
}
