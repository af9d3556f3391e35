package uniform

import (
	"bytes"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/NOT-REAL-GAMES/trianglego/ecs"
	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
)

func TestComputeStride(t *testing.T) {
	tests := []struct {
		size, align, want uint64
	}{
		{192, 256, 256},
		{192, 64, 192},
		{192, 0, 192},
		{192, 1, 192},
		{192, 128, 256},
		{256, 256, 256},
		{257, 256, 512},
		{0, 256, 0},
	}

	for _, tt := range tests {
		got := ComputeStride(tt.size, tt.align)
		if got != tt.want {
			t.Fatalf("ComputeStride(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
		if tt.align > 0 && got%tt.align != 0 {
			t.Fatalf("ComputeStride(%d, %d) = %d is not aligned", tt.size, tt.align, got)
		}
		if got < tt.size {
			t.Fatalf("ComputeStride(%d, %d) = %d is smaller than the struct", tt.size, tt.align, got)
		}
	}
}

func newDevice(align uint64) *gputest.Device {
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	dev.SetLimits(gpu.Limits{MinUniformBufferOffsetAlignment: align, MaxUniformBufferRange: 65536})
	return dev
}

func TestNewAllocatesOneBufferPerFrame(t *testing.T) {
	dev := newDevice(256)
	a, err := New(dev, 2, 3)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if a.Stride() != 256 {
		t.Fatalf("Stride = %d, want 256", a.Stride())
	}
	if a.Size() != 768 {
		t.Fatalf("Size = %d, want 768", a.Size())
	}
	if len(dev.Buffers) != 2 {
		t.Fatalf("expected 2 buffers, got %d", len(dev.Buffers))
	}
	for i, b := range dev.Buffers {
		if b.Size() != 768 {
			t.Fatalf("buffer %d size = %d", i, b.Size())
		}
		if b.Usage != gpu.BufferUsageUniform {
			t.Fatalf("buffer %d usage = %v", i, b.Usage)
		}
		if b.Props != gpu.MemoryHostVisible|gpu.MemoryHostCoherent {
			t.Fatalf("buffer %d props = %v", i, b.Props)
		}
	}
	if a.Offset(2) != 512 {
		t.Fatalf("Offset(2) = %d", a.Offset(2))
	}
}

func TestNewWithNoEntities(t *testing.T) {
	dev := newDevice(64)
	a, err := New(dev, 2, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Size() != 0 {
		t.Fatalf("Size = %d, want 0", a.Size())
	}
	for _, b := range a.Buffers() {
		if b.Size() != a.Stride() {
			t.Fatalf("placeholder buffer size = %d, want one stride (%d)", b.Size(), a.Stride())
		}
	}
}

func TestNewWithoutHostVisibleMemory(t *testing.T) {
	dev := newDevice(256)
	dev.NoHostVisibleMemory = true
	_, err := New(dev, 2, 2)
	if !errors.Is(err, gpu.ErrNoSuitableMemoryType) {
		t.Fatalf("New = %v, want ErrNoSuitableMemoryType", err)
	}
}

func TestWriteSlotTouchesOnlyItsSlot(t *testing.T) {
	dev := newDevice(256)
	a, err := New(dev, 2, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mvp := ecs.MVP{
		Model: mgl32.Translate3D(2, 2, 2),
		View:  mgl32.Ident4(),
		Proj:  mgl32.Ident4(),
	}
	if err := a.WriteSlot(1, 1, &mvp); err != nil {
		t.Fatalf("WriteSlot: %v", err)
	}

	frame1 := dev.Buffers[1].Data
	if !bytes.Equal(frame1[256:256+192], mvp.Bytes()) {
		t.Fatalf("slot 1 of frame 1 does not hold the MVP")
	}
	if !bytes.Equal(frame1[:256], make([]byte, 256)) {
		t.Fatalf("slot 0 of frame 1 was modified")
	}
	if !bytes.Equal(dev.Buffers[0].Data, make([]byte, 512)) {
		t.Fatalf("frame 0 buffer was modified")
	}
}

func TestWriteSlotPanicsOutOfRange(t *testing.T) {
	dev := newDevice(256)
	a, err := New(dev, 2, 2)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	tests := []struct {
		name           string
		frame, ordinal int
	}{
		{"ordinal_equals_count", 0, 2},
		{"negative_ordinal", 0, -1},
		{"frame_out_of_range", 2, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Fatalf("expected panic")
				}
			}()
			_ = a.WriteSlot(tt.frame, tt.ordinal, &ecs.MVP{})
		})
	}
}

func TestDestroyReleasesBuffers(t *testing.T) {
	dev := newDevice(256)
	a, err := New(dev, 3, 1)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a.Destroy()
	for i, b := range dev.Buffers {
		if !b.Destroyed {
			t.Fatalf("buffer %d not destroyed", i)
		}
	}
}
