package texture

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
	"github.com/NOT-REAL-GAMES/trianglego/gpu/gputest"
)

func TestCheckerboard(t *testing.T) {
	img := Checkerboard(16, 4)
	if img.Bounds().Dx() != 16 || img.Bounds().Dy() != 16 {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if len(img.Pix) != 16*16*4 {
		t.Fatalf("pix = %d bytes", len(img.Pix))
	}
	if img.RGBAAt(0, 0) == img.RGBAAt(4, 0) {
		t.Fatalf("neighbouring cells share a color")
	}
	if img.RGBAAt(0, 0) != img.RGBAAt(4, 4) {
		t.Fatalf("diagonal cells differ")
	}
}

func TestLoadTextureConvertsToRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.SetNRGBA(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, src); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	img, format, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if format != "png" {
		t.Fatalf("format = %q", format)
	}
	if len(img.Pix) != 3*2*4 || img.Stride != 12 {
		t.Fatalf("pix = %d bytes, stride %d", len(img.Pix), img.Stride)
	}
	if got := img.RGBAAt(2, 1); got != (color.RGBA{R: 10, G: 20, B: 30, A: 255}) {
		t.Fatalf("pixel = %v", got)
	}
}

func TestLoadTextureErrors(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := Load(filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("expected error for a missing file")
	}

	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := Load(garbage); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestToRGBAKeepsPackedImages(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	if toRGBA(img) != img {
		t.Fatalf("packed RGBA was copied")
	}
	sub := image.NewRGBA(image.Rect(0, 0, 4, 4)).SubImage(image.Rect(1, 1, 3, 3))
	out := toRGBA(sub)
	if out.Rect.Min != (image.Point{}) || out.Stride != 8 {
		t.Fatalf("sub-image not repacked: rect %v stride %d", out.Rect, out.Stride)
	}
}

func TestOpenFallsBackToCheckerboard(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name string
		path string
	}{
		{"empty", ""},
		{"missing", filepath.Join(t.TempDir(), "missing.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.New(gpu.Extent{Width: 8, Height: 8})
			tex, err := Open(dev, tt.path, logger)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got := tex.(*gputest.Texture)
			if got.Extent() != (gpu.Extent{Width: CheckerSize, Height: CheckerSize}) {
				t.Fatalf("extent = %+v", got.Extent())
			}
			if len(got.Pixels) != CheckerSize*CheckerSize*4 {
				t.Fatalf("pixels = %d bytes", len(got.Pixels))
			}
		})
	}
}

func TestOpenUploadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tex.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 5, 7))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	f.Close()

	dev := gputest.New(gpu.Extent{Width: 8, Height: 8})
	tex, err := Open(dev, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if tex.Extent() != (gpu.Extent{Width: 5, Height: 7}) {
		t.Fatalf("extent = %+v", tex.Extent())
	}
}
