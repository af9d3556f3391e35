package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Window.Width != 1920 || cfg.Window.Height != 1200 {
		t.Fatalf("window = %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if cfg.Renderer.FramesInFlight != 2 || cfg.Renderer.PresentMode != "fifo" {
		t.Fatalf("renderer defaults %+v", cfg.Renderer)
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
window:
  title: demo
renderer:
  frames_in_flight: 3
  fence_timeout: 500ms
  clear_color: [0.1, 0.2, 0.3, 1]
  wireframe: true
log_level: debug
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if cfg.Window.Title != "demo" || cfg.Window.Width != 1920 {
		t.Fatalf("window = %+v", cfg.Window)
	}
	r := cfg.Renderer
	if r.FramesInFlight != 3 || r.FenceTimeout != 500*time.Millisecond {
		t.Fatalf("renderer = %+v", r)
	}
	if r.ClearColor != [4]float32{0.1, 0.2, 0.3, 1} {
		t.Fatalf("clear color = %v", r.ClearColor)
	}
	if r.FovY != 45 || r.Near != 0.1 || r.Far != 20 {
		t.Fatalf("projection defaults lost: %+v", r)
	}

	live := cfg.Live()
	if !live.Wireframe || live.LogLevel != slog.LevelDebug || live.FovY != 45 {
		t.Fatalf("live = %+v", live)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"zero_width", "window: {width: 0}"},
		{"frames_in_flight", "renderer: {frames_in_flight: 0}"},
		{"too_many_frames", "renderer: {frames_in_flight: 9}"},
		{"fence_timeout", "renderer: {fence_timeout: 0s}"},
		{"fov", "renderer: {fov_y: 180}"},
		{"near", "renderer: {near: 0}"},
		{"far_before_near", "renderer: {near: 5, far: 1}"},
		{"present_mode", "renderer: {present_mode: vsync}"},
		{"log_level", "log_level: loud"},
		{"clear_color_length", "renderer: {clear_color: [1, 2]}"},
		{"not_yaml", "window: ["},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.yaml)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triangle.yaml")
	if err := os.WriteFile(path, []byte("scene: scenes/demo.yaml\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Scene != "scenes/demo.yaml" {
		t.Fatalf("scene = %q", cfg.Scene)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for a missing file")
	}
}
