package descriptor

import (
	"testing"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
	"github.com/NOT-REAL-GAMES/trianglego/uniform"
)

func setup(t *testing.T, entities int, texture bool) (*gputest.Device, *uniform.Allocator, *Binder) {
	t.Helper()
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	alloc, err := uniform.New(dev, 2, entities)
	if err != nil {
		t.Fatalf("uniform.New: %v", err)
	}

	var tex gpu.TextureBinding
	if texture {
		tex, err = dev.CreateTexture(1, 1, []byte{255, 255, 255, 255})
		if err != nil {
			t.Fatalf("CreateTexture: %v", err)
		}
	}

	b, err := Build(dev, 2, alloc.Buffers(), ecs.MVPSize, tex)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return dev, alloc, b
}

func TestBuildWritesOneSetPerFrame(t *testing.T) {
	dev, alloc, b := setup(t, 2, false)

	if len(dev.Sets) != 2 {
		t.Fatalf("expected 2 sets, got %d", len(dev.Sets))
	}
	for i, set := range dev.Sets {
		if b.Set(i) != gpu.DescriptorSet(set) {
			t.Fatalf("Set(%d) is not the allocated set", i)
		}
		w, ok := set.Writes[UniformBinding]
		if !ok {
			t.Fatalf("set %d has no uniform write", i)
		}
		if w.Type != gpu.DescriptorUniformBufferDynamic {
			t.Fatalf("set %d binding 0 type = %v", i, w.Type)
		}
		if w.Buffer != alloc.Buffer(i) {
			t.Fatalf("set %d does not point at frame %d's buffer", i, i)
		}
		if w.Range != ecs.MVPSize {
			t.Fatalf("set %d range = %d, want %d", i, w.Range, ecs.MVPSize)
		}
		if _, ok := set.Writes[TextureBinding]; ok {
			t.Fatalf("set %d has a texture write without a texture", i)
		}
	}

	layout := b.Layout().(*gputest.DescriptorSetLayout)
	if len(layout.Bindings) != 1 || layout.Bindings[0].Stages != gpu.StageVertex {
		t.Fatalf("unexpected layout bindings %+v", layout.Bindings)
	}
}

func TestBuildWithTexture(t *testing.T) {
	dev, _, b := setup(t, 1, true)

	layout := b.Layout().(*gputest.DescriptorSetLayout)
	if len(layout.Bindings) != 2 {
		t.Fatalf("expected 2 bindings, got %d", len(layout.Bindings))
	}
	sampler := layout.Bindings[1]
	if sampler.Binding != TextureBinding || sampler.Type != gpu.DescriptorCombinedImageSampler || sampler.Stages != gpu.StageFragment {
		t.Fatalf("unexpected sampler binding %+v", sampler)
	}

	first := dev.Sets[0].Writes[TextureBinding].Texture
	for i, set := range dev.Sets {
		w, ok := set.Writes[TextureBinding]
		if !ok {
			t.Fatalf("set %d has no texture write", i)
		}
		if w.Texture != first {
			t.Fatalf("sets must share the texture")
		}
	}
}

func TestBuildRejectsMismatchedBuffers(t *testing.T) {
	dev := gputest.New(gpu.Extent{Width: 1, Height: 1})
	alloc, err := uniform.New(dev, 3, 1)
	if err != nil {
		t.Fatalf("uniform.New: %v", err)
	}
	if _, err := Build(dev, 2, alloc.Buffers(), ecs.MVPSize, nil); err == nil {
		t.Fatalf("expected error for 3 buffers and 2 frames")
	}
}

func TestDynamicOffset(t *testing.T) {
	_, alloc, b := setup(t, 3, false)
	stride := alloc.Stride()

	for ordinal := 0; ordinal < 3; ordinal++ {
		got := b.DynamicOffset(ordinal, stride)
		if got != uint32(uint64(ordinal)*stride) {
			t.Fatalf("DynamicOffset(%d) = %d", ordinal, got)
		}
		if got != alloc.Offset(ordinal) {
			t.Fatalf("binder and allocator disagree on ordinal %d", ordinal)
		}
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for an offset past the buffer")
		}
	}()
	b.DynamicOffset(3, stride)
}

func TestDestroy(t *testing.T) {
	_, _, b := setup(t, 1, false)
	layout := b.Layout().(*gputest.DescriptorSetLayout)
	b.Destroy()
	if !layout.Destroyed {
		t.Fatalf("layout not destroyed")
	}
	b.Destroy()
}
