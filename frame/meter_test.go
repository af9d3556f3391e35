package frame

import (
	"testing"
	"time"
)

func TestMeterReportsPerWindow(t *testing.T) {
	var clock time.Duration
	m := newMeter(time.Second, func() time.Duration { return clock })

	if dt, _, report := m.Tick(); dt != 0 || report {
		t.Fatalf("first tick = %v, %v", dt, report)
	}

	reports := 0
	for i := 0; i < 120; i++ {
		clock += 10 * time.Millisecond
		dt, fps, report := m.Tick()
		if dt != 10*time.Millisecond {
			t.Fatalf("tick %d: dt = %v", i, dt)
		}
		if report {
			reports++
			if fps < 99.9 || fps > 100.1 {
				t.Fatalf("fps = %v, want 100", fps)
			}
		}
	}
	if reports != 1 {
		t.Fatalf("reports = %d, want 1", reports)
	}
}

func TestMeterDefaultWindow(t *testing.T) {
	m := NewMeter(0)
	if m.window != DefaultMeterWindow {
		t.Fatalf("window = %v", m.window)
	}
	m.Tick()
	if dt, _, _ := m.Tick(); dt < 0 {
		t.Fatalf("negative delta %v", dt)
	}
}
