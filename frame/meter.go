package frame

import (
	"time"

	"github.com/loov/hrtime"
)

// DefaultMeterWindow is how often a Meter reports.
const DefaultMeterWindow = 5 * time.Second

// Meter measures frame deltas on the high resolution clock and averages the
// frame rate over fixed windows.
type Meter struct {
	now    func() time.Duration
	window time.Duration

	started  bool
	last     time.Duration
	winStart time.Duration
	frames   int
}

func NewMeter(window time.Duration) *Meter {
	return newMeter(window, hrtime.Now)
}

func newMeter(window time.Duration, now func() time.Duration) *Meter {
	if window <= 0 {
		window = DefaultMeterWindow
	}
	return &Meter{now: now, window: window}
}

// Tick records one frame and returns the time since the previous Tick. When
// a window has elapsed, report is true and fps is its average rate.
func (m *Meter) Tick() (dt time.Duration, fps float64, report bool) {
	t := m.now()
	if !m.started {
		m.started = true
		m.last, m.winStart = t, t
		return 0, 0, false
	}

	dt = t - m.last
	m.last = t
	m.frames++

	elapsed := t - m.winStart
	if elapsed < m.window {
		return dt, 0, false
	}
	fps = float64(m.frames) / elapsed.Seconds()
	m.frames = 0
	m.winStart = t
	return dt, fps, true
}
