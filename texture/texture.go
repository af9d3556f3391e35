// Package texture decodes image files into the packed RGBA layout uploaded
// to the GPU.
package texture

import (
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/NOT-REAL-GAMES/trianglego/gpu"
)

const (
	CheckerSize  = 256
	CheckerCells = 8
)

// Load decodes a PNG, JPEG, BMP or WebP file into tightly packed RGBA.
func Load(path string) (*image.RGBA, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", errors.Wrapf(err, "texture: open %s", path)
	}
	defer f.Close()

	src, format, err := image.Decode(f)
	if err != nil {
		return nil, "", errors.Wrapf(err, "texture: decode %s", path)
	}
	return toRGBA(src), format, nil
}

func toRGBA(src image.Image) *image.RGBA {
	if rgba, ok := src.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// Checkerboard is the texture used when none is configured or it fails to load.
func Checkerboard(size, cells int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 230, G: 230, B: 230, A: 255}
	dark := color.RGBA{R: 90, G: 90, B: 90, A: 255}
	cell := size / cells
	if cell == 0 {
		cell = 1
	}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			c := dark
			if (x/cell+y/cell)%2 == 0 {
				c = light
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// Upload copies img to the device as a sampled texture.
func Upload(dev gpu.Device, img *image.RGBA) (gpu.TextureBinding, error) {
	img = toRGBA(img)
	b := img.Bounds()
	tex, err := dev.CreateTexture(uint32(b.Dx()), uint32(b.Dy()), img.Pix)
	if err != nil {
		return nil, errors.Wrap(err, "texture: upload")
	}
	return tex, nil
}

// Open loads and uploads path, falling back to the checkerboard when path is
// empty or cannot be decoded. Only upload failures are returned.
func Open(dev gpu.Device, path string, logger *slog.Logger) (gpu.TextureBinding, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var img *image.RGBA
	if path != "" {
		loaded, format, err := Load(path)
		if err != nil {
			logger.Warn("texture not loaded, using checkerboard", "path", path, "err", err)
		} else {
			logger.Info("texture loaded", "path", path, "format", format,
				"width", loaded.Rect.Dx(), "height", loaded.Rect.Dy())
			img = loaded
		}
	}
	if img == nil {
		img = Checkerboard(CheckerSize, CheckerCells)
	}
	return Upload(dev, img)
}
