package frame

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newScheduler(t *testing.T) (*gputest.Device, *Scheduler) {
	t.Helper()
	dev := gputest.New(gpu.Extent{Width: 800, Height: 600})
	s, err := New(dev, Options{
		FramesInFlight: 2,
		FenceTimeout:   10 * time.Millisecond,
		PollInterval:   time.Millisecond,
		ClearColor:     [4]float32{0, 0, 0, 1},
		Logger:         quietLogger(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return dev, s
}

type closeAfter struct {
	frames int
	calls  int
}

func (w *closeAfter) ShouldClose() bool {
	w.calls++
	return w.calls > w.frames
}

func TestNewBuildsPerSlotObjects(t *testing.T) {
	dev, s := newScheduler(t)

	if len(dev.Swapchains) != 1 || len(dev.DepthTargets) != 1 {
		t.Fatalf("expected one swapchain and one depth target, got %d and %d", len(dev.Swapchains), len(dev.DepthTargets))
	}
	if got := len(dev.CommandBuffers); got != 4 {
		t.Fatalf("expected 4 command buffers (main + overlay per slot), got %d", got)
	}
	if got := len(dev.Semaphores); got != 4 {
		t.Fatalf("expected 4 semaphores, got %d", got)
	}
	if got := len(dev.Fences); got != 2 {
		t.Fatalf("expected 2 fences, got %d", got)
	}
	for i, f := range dev.Fences {
		if !f.Signaled() {
			t.Fatalf("fence %d should start signalled", i)
		}
	}
	if s.Extent() != (gpu.Extent{Width: 800, Height: 600}) {
		t.Fatalf("Extent = %+v", s.Extent())
	}
}

func TestRunFrameCyclesSlots(t *testing.T) {
	dev, s := newScheduler(t)
	ctx := context.Background()

	var slots []int
	rec := RecorderFunc(func(fc Context) error {
		slots = append(slots, fc.Slot)
		if fc.Extent != s.Extent() {
			t.Fatalf("recorder got extent %+v", fc.Extent)
		}
		return nil
	})

	for i := 0; i < 3; i++ {
		if err := s.RunFrame(ctx, rec); err != nil {
			t.Fatalf("RunFrame %d: %v", i, err)
		}
	}

	want := []int{0, 1, 0}
	for i := range want {
		if slots[i] != want[i] {
			t.Fatalf("slot sequence %v, want %v", slots, want)
		}
	}
	if s.Slot() != 1 {
		t.Fatalf("Slot after 3 frames = %d, want 1", s.Slot())
	}
	if len(dev.Submissions) != 3 || len(dev.Presents) != 3 {
		t.Fatalf("expected 3 submissions and presents, got %d and %d", len(dev.Submissions), len(dev.Presents))
	}
	if dev.MaxUnsignaled > 2 {
		t.Fatalf("more than N fences unsignalled at once: %d", dev.MaxUnsignaled)
	}
	for i, sub := range dev.Submissions {
		if sub.Wait == nil || sub.Signal == nil || sub.Fence == nil {
			t.Fatalf("submission %d missing sync objects: %+v", i, sub)
		}
		if len(sub.CommandBuffers) != 1 {
			t.Fatalf("submission %d has %d command buffers", i, len(sub.CommandBuffers))
		}
	}
	if dev.Submissions[0].Fence == dev.Submissions[1].Fence {
		t.Fatalf("consecutive frames must use different fences")
	}
	if dev.Submissions[0].Fence != dev.Submissions[2].Fence {
		t.Fatalf("frame 2 must reuse slot 0's fence")
	}
	if s.Frames() != 3 {
		t.Fatalf("Frames = %d", s.Frames())
	}
}

func TestMainPassClearsColorAndDepth(t *testing.T) {
	dev, s := newScheduler(t)
	s.SetClearColor([4]float32{0.1, 0.2, 0.3, 1})

	if err := s.RunFrame(context.Background(), nil); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	cmd := dev.Submissions[0].CommandBuffers[0]
	begins := cmd.Filter(gputest.OpBeginRendering)
	if len(begins) != 1 {
		t.Fatalf("expected one pass, got %d", len(begins))
	}
	info := begins[0].Rendering
	if info.LoadColor {
		t.Fatalf("main pass must clear color")
	}
	if info.Depth == nil || info.ClearDepth != 1.0 {
		t.Fatalf("main pass must clear a depth target to 1, got %+v", info)
	}
	if info.ClearColor != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Fatalf("clear color = %v", info.ClearColor)
	}
	if len(cmd.Filter(gputest.OpTransitionToPresent)) != 1 {
		t.Fatalf("main buffer must transition the image for present")
	}
}

func TestRecordingStateErrors(t *testing.T) {
	_, s := newScheduler(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"end_recording_idle", s.EndRecording},
		{"begin_pass_idle", func() error { return s.BeginRenderPass(0) }},
		{"end_pass_idle", s.EndRenderPass},
		{"submit_idle", s.Submit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrRecordingState) {
				t.Fatalf("got %v, want ErrRecordingState", err)
			}
		})
	}

	if err := s.BeginRecording(); err != nil {
		t.Fatalf("BeginRecording: %v", err)
	}
	if err := s.BeginRecording(); !errors.Is(err, ErrRecordingState) {
		t.Fatalf("double BeginRecording = %v", err)
	}
	if err := s.BeginRenderPass(0); err != nil {
		t.Fatalf("BeginRenderPass: %v", err)
	}
	if err := s.EndRecording(); !errors.Is(err, ErrRecordingState) {
		t.Fatalf("EndRecording inside a pass = %v", err)
	}
	if err := s.Submit(); !errors.Is(err, ErrRecordingState) {
		t.Fatalf("Submit inside a pass = %v", err)
	}
}

func TestAcquireTimesOut(t *testing.T) {
	dev, s := newScheduler(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := s.RunFrame(ctx, nil); err != nil {
			t.Fatalf("RunFrame %d: %v", i, err)
		}
	}

	dev.HangFences = true
	_, _, err := s.Acquire(ctx)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Acquire on a hung fence = %v, want ErrTimeout", err)
	}
}

func TestOutOfDateAcquireRecreatesWithoutDrawing(t *testing.T) {
	dev, s := newScheduler(t)
	oldSwapchain := dev.LastSwapchain()
	oldFences := append([]*gputest.Fence(nil), dev.Fences...)

	dev.AcquireScript = []gpu.Status{gpu.StatusOutOfDate}
	dev.SetExtent(gpu.Extent{Width: 1024, Height: 768})

	drew := false
	err := s.RunFrame(context.Background(), RecorderFunc(func(Context) error {
		drew = true
		return nil
	}))
	if err != nil {
		t.Fatalf("RunFrame: %v", err)
	}

	if drew || len(dev.Submissions) != 0 || len(dev.Presents) != 0 {
		t.Fatalf("out-of-date frame must not draw, submit or present")
	}
	if s.Recreations() != 1 {
		t.Fatalf("Recreations = %d", s.Recreations())
	}
	if !oldSwapchain.Destroyed {
		t.Fatalf("old swapchain not destroyed")
	}
	if dev.LastSwapchain().Old != oldSwapchain {
		t.Fatalf("new swapchain was not created from the old one")
	}
	if s.Extent() != (gpu.Extent{Width: 1024, Height: 768}) {
		t.Fatalf("Extent after recreate = %+v", s.Extent())
	}
	for i, f := range oldFences {
		if !f.Destroyed {
			t.Fatalf("old fence %d survived recreation", i)
		}
	}
	if dev.LiveFences() != 2 {
		t.Fatalf("expected 2 live fences after recreate, got %d", dev.LiveFences())
	}
	if dev.IdleWaits == 0 {
		t.Fatalf("recreate must wait for device idle")
	}

	// The next frame draws normally.
	if err := s.RunFrame(context.Background(), nil); err != nil {
		t.Fatalf("RunFrame after recreate: %v", err)
	}
	if len(dev.Presents) != 1 {
		t.Fatalf("expected a present after recreate")
	}
}

func TestSuboptimalPresentRecreatesNextFrame(t *testing.T) {
	dev, s := newScheduler(t)
	ctx := context.Background()

	dev.PresentScript = []gputest.PresentResult{{Status: gpu.StatusSuboptimal}}
	if err := s.RunFrame(ctx, nil); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if !s.Stale() {
		t.Fatalf("suboptimal present must mark the swapchain stale")
	}
	if len(dev.Swapchains) != 1 {
		t.Fatalf("recreation should wait for the next frame")
	}

	if err := s.RunFrame(ctx, nil); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if len(dev.Swapchains) != 2 || s.Stale() {
		t.Fatalf("expected recreation at the start of the next frame")
	}
	if len(dev.Presents) != 2 {
		t.Fatalf("both frames should present, got %d", len(dev.Presents))
	}
}

func TestPresentFailureIsFatal(t *testing.T) {
	dev, s := newScheduler(t)
	dev.PresentScript = []gputest.PresentResult{{Err: errors.New("device lost")}}

	err := s.RunFrame(context.Background(), nil)
	if !errors.Is(err, ErrPresentFailed) {
		t.Fatalf("RunFrame = %v, want ErrPresentFailed", err)
	}
}

func TestRecreatePollsDegenerateExtent(t *testing.T) {
	dev, s := newScheduler(t)
	dev.ExtentScript = []gpu.Extent{{}, {Width: 640, Height: 0}}
	dev.SetExtent(gpu.Extent{Width: 320, Height: 200})

	if err := s.Recreate(context.Background()); err != nil {
		t.Fatalf("Recreate: %v", err)
	}
	if len(dev.ExtentScript) != 0 {
		t.Fatalf("degenerate extents were not all polled")
	}
	if s.Extent() != (gpu.Extent{Width: 320, Height: 200}) {
		t.Fatalf("Extent = %+v", s.Extent())
	}
}

func TestRecreateHonorsCancellation(t *testing.T) {
	dev, s := newScheduler(t)
	dev.SetExtent(gpu.Extent{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Recreate(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Recreate = %v, want context.Canceled", err)
	}
	if len(dev.Swapchains) != 1 {
		t.Fatalf("no swapchain should be built while minimized")
	}
}

type overlayRecorder struct {
	calls int
}

func (o *overlayRecorder) RecordOverlay(cmd gpu.CommandBuffer, extent gpu.Extent) error {
	o.calls++
	return nil
}

func TestOverlayPassLoadsAndSubmitsTogether(t *testing.T) {
	dev, s := newScheduler(t)
	ov := &overlayRecorder{}
	s.SetOverlay(ov)

	if err := s.RunFrame(context.Background(), nil); err != nil {
		t.Fatalf("RunFrame: %v", err)
	}
	if ov.calls != 1 {
		t.Fatalf("overlay recorded %d times", ov.calls)
	}

	sub := dev.Submissions[0]
	if len(sub.CommandBuffers) != 2 {
		t.Fatalf("expected main and overlay buffers in one submit, got %d", len(sub.CommandBuffers))
	}
	main, overlay := sub.CommandBuffers[0], sub.CommandBuffers[1]
	if len(main.Filter(gputest.OpTransitionToPresent)) != 0 {
		t.Fatalf("main buffer must leave the image attachable for the overlay")
	}
	begins := overlay.Filter(gputest.OpBeginRendering)
	if len(begins) != 1 || !begins[0].Rendering.LoadColor {
		t.Fatalf("overlay pass must load the color attachment")
	}
	if len(overlay.Filter(gputest.OpTransitionToPresent)) != 1 {
		t.Fatalf("overlay buffer must transition the image for present")
	}
}

func TestRecorderErrorLeavesSlotUsable(t *testing.T) {
	dev, s := newScheduler(t)
	boom := errors.New("boom")

	err := s.RunFrame(context.Background(), RecorderFunc(func(Context) error { return boom }))
	if !errors.Is(err, boom) {
		t.Fatalf("RunFrame = %v, want the recorder error", err)
	}
	if len(dev.Submissions) != 0 {
		t.Fatalf("failed frame must not submit")
	}
	if !dev.Fences[0].Signaled() {
		t.Fatalf("slot fence must stay signalled when nothing was submitted")
	}

	if err := s.RunFrame(context.Background(), nil); err != nil {
		t.Fatalf("RunFrame after failure: %v", err)
	}
}

func TestRunStopsWhenWindowCloses(t *testing.T) {
	dev, s := newScheduler(t)
	win := &closeAfter{frames: 3}

	if err := s.Run(context.Background(), win, nil); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(dev.Presents) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(dev.Presents))
	}
	if dev.IdleWaits == 0 {
		t.Fatalf("Run must wait for idle before returning")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	_, s := newScheduler(t)
	ctx, cancel := context.WithCancel(context.Background())

	frames := 0
	err := s.Run(ctx, nil, RecorderFunc(func(Context) error {
		frames++
		if frames == 5 {
			cancel()
		}
		return nil
	}))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if frames != 5 {
		t.Fatalf("expected 5 frames before cancel, got %d", frames)
	}
}
