package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcherDeliversChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "triangle.yaml")
	writeFile(t, path, "renderer: {wireframe: false}\n")

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	writeFile(t, filepath.Join(dir, "other.yaml"), "x: 1\n")
	writeFile(t, path, "renderer: {wireframe: true}\n")

	select {
	case cfg := <-w.Changes:
		if !cfg.Renderer.Wireframe {
			t.Fatalf("change not applied: %+v", cfg.Renderer)
		}
	case err := <-w.Errors:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("no change delivered")
	}

	writeFile(t, path, "renderer: {frames_in_flight: 0}\n")
	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-w.Errors:
			if err == nil {
				t.Fatalf("nil error delivered")
			}
			return
		case cfg := <-w.Changes:
			// A late event from the previous write may still re-deliver it.
			if cfg.Renderer.FramesInFlight == 0 {
				t.Fatalf("invalid config delivered: %+v", cfg)
			}
		case <-deadline:
			t.Fatalf("no error delivered")
		}
	}
}

func TestWatcherCloseClosesChannels(t *testing.T) {
	path := filepath.Join(t.TempDir(), "triangle.yaml")
	writeFile(t, path, "log_level: info\n")

	w, err := Watch(path)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if _, ok := <-w.Changes; ok {
		t.Fatalf("Changes still open")
	}
	if _, ok := <-w.Errors; ok {
		t.Fatalf("Errors still open")
	}
}

func TestWatchMissingDirectory(t *testing.T) {
	if _, err := Watch(filepath.Join(t.TempDir(), "nope", "triangle.yaml")); err == nil {
		t.Fatalf("expected error")
	}
}
