// Package frame drives the swapchain: it bounds GPU work with one fence per
// frame in flight, records each frame between acquire and present, and
// rebuilds the swapchain and all synchronization when the surface changes.
package frame

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

var (
	// ErrTimeout means the slot's fence did not signal within Options.FenceTimeout.
	ErrTimeout = errors.New("frame: timed out waiting for in-flight fence")
	// ErrPresentFailed is a present failure other than a stale swapchain. It is fatal.
	ErrPresentFailed = errors.New("frame: present failed")
	// ErrRecordingState is returned when recording calls arrive out of order.
	ErrRecordingState = errors.New("frame: command buffer in wrong recording state")
	// ErrWindowClosed is returned by Recreate when the window closes while the
	// surface is still degenerate.
	ErrWindowClosed = errors.New("frame: window closed")
)

const (
	DefaultFramesInFlight = 2
	DefaultFenceTimeout   = 2 * time.Second
	DefaultPollInterval   = 50 * time.Millisecond
)

// Window is the part of the window the loop needs. ShouldClose is expected
// to pump pending window events.
type Window interface {
	ShouldClose() bool
}

// Context is handed to a Recorder for one frame.
type Context struct {
	Slot       int
	ImageIndex uint32
	Cmd        gpu.CommandBuffer
	Extent     gpu.Extent
}

// Recorder records the draws of one frame inside the main render pass.
type Recorder interface {
	Record(fc Context) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(fc Context) error

func (f RecorderFunc) Record(fc Context) error { return f(fc) }

// Overlay records into a second pass that loads the main pass's color output.
type Overlay interface {
	RecordOverlay(cmd gpu.CommandBuffer, extent gpu.Extent) error
}

type Options struct {
	FramesInFlight int
	FenceTimeout   time.Duration
	// PollInterval is how often Recreate re-reads a degenerate surface extent.
	PollInterval time.Duration
	ClearColor   [4]float32
	Logger       *slog.Logger
}

type recordState int

const (
	stateIdle recordState = iota
	stateRecording
	stateInPass
	stateRecorded
)

// slot is everything owned by one frame in flight.
type slot struct {
	cmd            gpu.CommandBuffer
	overlayCmd     gpu.CommandBuffer
	imageAvailable gpu.Semaphore
	renderFinished gpu.Semaphore
	inFlight       gpu.Fence
}

type Scheduler struct {
	dev    gpu.Device
	opts   Options
	logger *slog.Logger

	swapchain gpu.Swapchain
	depth     gpu.RenderTarget
	extent    gpu.Extent

	slots   []slot
	current int

	state           recordState
	imageIndex      uint32
	overlay         Overlay
	overlayRecorded bool

	// stale is set when acquire or present reported a swapchain that no
	// longer matches the surface.
	stale bool

	win Window

	frames      uint64
	recreations int
}

// New creates the swapchain, the depth target and the per-slot objects.
func New(dev gpu.Device, opts Options) (*Scheduler, error) {
	if opts.FramesInFlight <= 0 {
		opts.FramesInFlight = DefaultFramesInFlight
	}
	if opts.FenceTimeout <= 0 {
		opts.FenceTimeout = DefaultFenceTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{dev: dev, opts: opts, logger: logger}

	if err := s.buildSwapchain(); err != nil {
		return nil, err
	}
	if err := s.buildSlots(); err != nil {
		s.Destroy()
		return nil, err
	}

	s.logger.Info("swapchain created",
		"width", s.extent.Width,
		"height", s.extent.Height,
		"images", s.swapchain.ImageCount(),
		"frames_in_flight", opts.FramesInFlight,
	)
	return s, nil
}

func (s *Scheduler) buildSwapchain() error {
	old := s.swapchain
	sc, err := s.dev.CreateSwapchain(old)
	if err != nil {
		return errors.Wrap(err, "frame: create swapchain")
	}
	if old != nil {
		old.Destroy()
	}
	s.swapchain = sc
	s.extent = sc.Extent()

	if s.depth != nil {
		s.depth.Destroy()
		s.depth = nil
	}
	s.depth, err = s.dev.CreateDepthTarget(s.extent)
	if err != nil {
		return errors.Wrap(err, "frame: create depth target")
	}
	return nil
}

func (s *Scheduler) buildSlots() error {
	n := s.opts.FramesInFlight
	cmds, err := s.dev.AllocateCommandBuffers(2 * n)
	if err != nil {
		return errors.Wrap(err, "frame: allocate command buffers")
	}

	s.slots = make([]slot, n)
	for i := range s.slots {
		sl := &s.slots[i]
		sl.cmd = cmds[2*i]
		sl.overlayCmd = cmds[2*i+1]

		if sl.imageAvailable, err = s.dev.CreateSemaphore(); err != nil {
			return errors.Wrapf(err, "frame: create image-available semaphore %d", i)
		}
		if sl.renderFinished, err = s.dev.CreateSemaphore(); err != nil {
			return errors.Wrapf(err, "frame: create render-finished semaphore %d", i)
		}
		// Signalled so the first wait on each slot returns immediately.
		if sl.inFlight, err = s.dev.CreateFence(true); err != nil {
			return errors.Wrapf(err, "frame: create in-flight fence %d", i)
		}
	}
	return nil
}

func (s *Scheduler) destroySlots() {
	var cmds []gpu.CommandBuffer
	for _, sl := range s.slots {
		if sl.cmd != nil {
			cmds = append(cmds, sl.cmd, sl.overlayCmd)
		}
		if sl.imageAvailable != nil {
			sl.imageAvailable.Destroy()
		}
		if sl.renderFinished != nil {
			sl.renderFinished.Destroy()
		}
		if sl.inFlight != nil {
			sl.inFlight.Destroy()
		}
	}
	if len(cmds) > 0 {
		s.dev.FreeCommandBuffers(cmds)
	}
	s.slots = nil
}

// SetOverlay registers the overlay recorded after the main pass. nil removes it.
func (s *Scheduler) SetOverlay(o Overlay) { s.overlay = o }

// SetClearColor changes the clear color from the next frame on.
func (s *Scheduler) SetClearColor(c [4]float32) { s.opts.ClearColor = c }

func (s *Scheduler) Slot() int                { return s.current }
func (s *Scheduler) FramesInFlight() int      { return s.opts.FramesInFlight }
func (s *Scheduler) Extent() gpu.Extent       { return s.extent }
func (s *Scheduler) Swapchain() gpu.Swapchain { return s.swapchain }

// CommandBuffer is the current slot's main command buffer.
func (s *Scheduler) CommandBuffer() gpu.CommandBuffer { return s.slots[s.current].cmd }

// Frames is the number of frames presented so far.
func (s *Scheduler) Frames() uint64 { return s.frames }

// Recreations counts completed swapchain rebuilds.
func (s *Scheduler) Recreations() int { return s.recreations }

// Stale reports whether the swapchain needs to be recreated.
func (s *Scheduler) Stale() bool { return s.stale }

// Acquire waits for the current slot's fence, then acquires the next
// swapchain image signalled on the slot's image-available semaphore. The fence
// is not reset here so an out-of-date acquire leaves it signalled.
func (s *Scheduler) Acquire(ctx context.Context) (uint32, gpu.Status, error) {
	if err := ctx.Err(); err != nil {
		return 0, gpu.StatusSuccess, err
	}
	sl := &s.slots[s.current]

	if err := s.dev.WaitForFence(sl.inFlight, s.opts.FenceTimeout); err != nil {
		if errors.Is(err, gpu.ErrTimeout) {
			return 0, gpu.StatusSuccess, errors.Wrapf(ErrTimeout, "slot %d after %s", s.current, s.opts.FenceTimeout)
		}
		return 0, gpu.StatusSuccess, errors.Wrapf(err, "frame: wait for fence of slot %d", s.current)
	}

	idx, status, err := s.dev.AcquireNextImage(s.swapchain, s.opts.FenceTimeout, sl.imageAvailable)
	if err != nil {
		return 0, status, errors.Wrap(err, "frame: acquire next image")
	}

	switch status {
	case gpu.StatusOutOfDate:
		s.stale = true
	case gpu.StatusSuboptimal:
		s.stale = true
		s.logger.Warn("suboptimal swapchain on acquire", "slot", s.current)
	}

	s.imageIndex = idx
	return idx, status, nil
}

// BeginRecording resets and begins the current slot's command buffer.
func (s *Scheduler) BeginRecording() error {
	if s.state != stateIdle {
		return errors.Wrap(ErrRecordingState, "begin recording")
	}
	cmd := s.slots[s.current].cmd
	if err := cmd.Reset(); err != nil {
		return errors.Wrap(err, "frame: reset command buffer")
	}
	if err := cmd.Begin(); err != nil {
		return errors.Wrap(err, "frame: begin command buffer")
	}
	s.state = stateRecording
	s.overlayRecorded = false
	return nil
}

// BeginRenderPass starts dynamic rendering on the acquired image with the
// depth target, clearing color to the configured value and depth to 1.
func (s *Scheduler) BeginRenderPass(imageIndex uint32) error {
	if s.state != stateRecording {
		return errors.Wrap(ErrRecordingState, "begin render pass")
	}
	cmd := s.slots[s.current].cmd
	cmd.BeginRendering(gpu.RenderingInfo{
		Swapchain:  s.swapchain,
		ImageIndex: imageIndex,
		Depth:      s.depth,
		ClearColor: s.opts.ClearColor,
		ClearDepth: 1.0,
	})
	cmd.SetViewport(s.extent)
	cmd.SetScissor(s.extent)

	s.imageIndex = imageIndex
	s.state = stateInPass
	return nil
}

// EndRenderPass ends the main pass and, when an overlay is registered,
// records the overlay pass on the slot's second command buffer. The image is
// transitioned for presentation at the end of whichever pass comes last.
func (s *Scheduler) EndRenderPass() error {
	if s.state != stateInPass {
		return errors.Wrap(ErrRecordingState, "end render pass")
	}
	sl := &s.slots[s.current]
	sl.cmd.EndRendering()
	s.state = stateRecording

	if s.overlay == nil {
		sl.cmd.TransitionToPresent(s.swapchain, s.imageIndex)
		return nil
	}

	oc := sl.overlayCmd
	if err := oc.Reset(); err != nil {
		return errors.Wrap(err, "frame: reset overlay command buffer")
	}
	if err := oc.Begin(); err != nil {
		return errors.Wrap(err, "frame: begin overlay command buffer")
	}
	oc.BeginRendering(gpu.RenderingInfo{
		Swapchain:  s.swapchain,
		ImageIndex: s.imageIndex,
		LoadColor:  true,
	})
	oc.SetViewport(s.extent)
	oc.SetScissor(s.extent)
	if err := s.overlay.RecordOverlay(oc, s.extent); err != nil {
		return errors.Wrap(err, "frame: record overlay")
	}
	oc.EndRendering()
	oc.TransitionToPresent(s.swapchain, s.imageIndex)
	if err := oc.End(); err != nil {
		return errors.Wrap(err, "frame: end overlay command buffer")
	}
	s.overlayRecorded = true
	return nil
}

func (s *Scheduler) EndRecording() error {
	if s.state != stateRecording {
		return errors.Wrap(ErrRecordingState, "end recording")
	}
	if err := s.slots[s.current].cmd.End(); err != nil {
		return errors.Wrap(err, "frame: end command buffer")
	}
	s.state = stateRecorded
	return nil
}

// Submit resets the slot fence and submits the recorded buffers, waiting on
// image-available at color output and signalling render-finished and the fence.
func (s *Scheduler) Submit() error {
	if s.state != stateRecorded {
		return errors.Wrap(ErrRecordingState, "submit")
	}
	sl := &s.slots[s.current]

	cmds := []gpu.CommandBuffer{sl.cmd}
	if s.overlayRecorded {
		cmds = append(cmds, sl.overlayCmd)
	}

	// Reset only now: every earlier exit leaves the fence signalled for the next wait.
	if err := s.dev.ResetFence(sl.inFlight); err != nil {
		return errors.Wrapf(err, "frame: reset fence of slot %d", s.current)
	}
	err := s.dev.Submit(gpu.SubmitInfo{
		CommandBuffers: cmds,
		Wait:           sl.imageAvailable,
		Signal:         sl.renderFinished,
	}, sl.inFlight)
	if err != nil {
		return errors.Wrapf(err, "frame: submit slot %d", s.current)
	}

	s.state = stateIdle
	return nil
}

// Present queues imageIndex for presentation after render-finished.
func (s *Scheduler) Present(imageIndex uint32) (gpu.Status, error) {
	sl := &s.slots[s.current]
	status, err := s.dev.Present(s.swapchain, imageIndex, sl.renderFinished)
	if err != nil {
		return status, errors.Wrapf(ErrPresentFailed, "image %d: %v", imageIndex, err)
	}

	switch status {
	case gpu.StatusSuboptimal, gpu.StatusOutOfDate:
		s.stale = true
		s.logger.Warn("swapchain stale after present", "status", status.String(), "slot", s.current)
	}
	s.frames++
	return status, nil
}

// Advance moves to the next frame-in-flight slot.
func (s *Scheduler) Advance() {
	s.current = (s.current + 1) % len(s.slots)
}

// Recreate waits until the surface has a usable extent, idles the device and
// rebuilds the swapchain, the depth target and every slot's command buffers
// and synchronization objects. Uniform buffers and descriptor sets are
// untouched.
func (s *Scheduler) Recreate(ctx context.Context) error {
	for {
		extent, err := s.dev.SurfaceExtent()
		if err != nil {
			return errors.Wrap(err, "frame: read surface extent")
		}
		if !extent.Degenerate() {
			break
		}
		if s.win != nil && s.win.ShouldClose() {
			return ErrWindowClosed
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.PollInterval):
		}
	}

	if err := s.dev.WaitIdle(); err != nil {
		return errors.Wrap(err, "frame: wait idle before recreate")
	}

	s.destroySlots()
	if err := s.buildSwapchain(); err != nil {
		return err
	}
	if err := s.buildSlots(); err != nil {
		return err
	}

	s.state = stateIdle
	s.overlayRecorded = false
	s.stale = false
	s.recreations++

	s.logger.Info("swapchain recreated",
		"width", s.extent.Width,
		"height", s.extent.Height,
		"images", s.swapchain.ImageCount(),
	)
	return nil
}

// RunFrame runs one iteration of the loop. An out-of-date acquire recreates
// the swapchain and returns without drawing.
func (s *Scheduler) RunFrame(ctx context.Context, rec Recorder) error {
	if s.stale {
		if err := s.Recreate(ctx); err != nil {
			return err
		}
	}

	imageIndex, status, err := s.Acquire(ctx)
	if err != nil {
		return err
	}
	if status == gpu.StatusOutOfDate {
		return s.Recreate(ctx)
	}

	if err := s.BeginRecording(); err != nil {
		return err
	}
	if err := s.BeginRenderPass(imageIndex); err != nil {
		return err
	}
	if rec != nil {
		err := rec.Record(Context{
			Slot:       s.current,
			ImageIndex: imageIndex,
			Cmd:        s.slots[s.current].cmd,
			Extent:     s.extent,
		})
		if err != nil {
			s.abandonRecording()
			return errors.Wrap(err, "frame: record")
		}
	}
	if err := s.EndRenderPass(); err != nil {
		s.abandonRecording()
		return err
	}
	if err := s.EndRecording(); err != nil {
		return err
	}
	if err := s.Submit(); err != nil {
		return err
	}
	if _, err := s.Present(imageIndex); err != nil {
		return err
	}

	s.Advance()
	return nil
}

// abandonRecording drops a half-recorded frame so the next BeginRecording
// starts clean. The fence was not reset, so the slot stays usable.
func (s *Scheduler) abandonRecording() {
	_ = s.slots[s.current].cmd.Reset()
	s.state = stateIdle
}

// Run loops RunFrame until the window closes or ctx is done, then waits for
// the device to go idle.
func (s *Scheduler) Run(ctx context.Context, win Window, rec Recorder) error {
	s.win = win
	defer func() { s.win = nil }()

	var loopErr error
	for win == nil || !win.ShouldClose() {
		if ctx.Err() != nil {
			break
		}
		if err := s.RunFrame(ctx, rec); err != nil {
			if errors.Is(err, ErrWindowClosed) || ctx.Err() != nil {
				break
			}
			loopErr = err
			break
		}
	}

	if err := s.dev.WaitIdle(); err != nil && loopErr == nil {
		loopErr = errors.Wrap(err, "frame: wait idle on exit")
	}
	return loopErr
}

// Destroy releases the slots, depth target and swapchain. The caller must
// have waited for the device to go idle.
func (s *Scheduler) Destroy() {
	s.destroySlots()
	if s.depth != nil {
		s.depth.Destroy()
		s.depth = nil
	}
	if s.swapchain != nil {
		s.swapchain.Destroy()
		s.swapchain = nil
	}
}
