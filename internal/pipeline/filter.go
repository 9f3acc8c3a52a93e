package pipeline

import (
	"image"
	"math"

	"github.com/dunamismax/pixeledit/internal/domain"
	"golang.org/x/image/draw"
)

// Luma weights (ITU-R BT.601).
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// ApplyFilters returns a new raster with brightness, contrast, saturation
// and the preset colour operation applied in that order. Channel values
// are clamped to [0,255] after every stage; alpha is copied unchanged.
// Colour math runs on non-premultiplied values.
func ApplyFilters(src image.Image, f domain.Filters) *image.NRGBA {
	out := toNRGBA(src)
	if f.IsIdentity() {
		return out
	}

	brightness := float64(f.Brightness) / 100
	contrast := float64(f.Contrast) / 100
	saturation := float64(f.Saturation) / 100
	op := f.Filter.Op()

	b := out.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := out.Pix[(y-b.Min.Y)*out.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+3 : x*4+3]
			r, g, bl := filterPixel(float64(px[0]), float64(px[1]), float64(px[2]), brightness, contrast, saturation, op)
			px[0], px[1], px[2] = r, g, bl
		}
	}
	return out
}

func filterPixel(r, g, b, brightness, contrast, saturation float64, op domain.ColorOp) (uint8, uint8, uint8) {
	if brightness != 1 {
		r = clampChannel(r * brightness)
		g = clampChannel(g * brightness)
		b = clampChannel(b * brightness)
	}

	if contrast != 1 {
		r = clampChannel((r-128)*contrast + 128)
		g = clampChannel((g-128)*contrast + 128)
		b = clampChannel((b-128)*contrast + 128)
	}

	if saturation != 1 {
		gray := lumaR*r + lumaG*g + lumaB*b
		r = clampChannel(gray + (r-gray)*saturation)
		g = clampChannel(gray + (g-gray)*saturation)
		b = clampChannel(gray + (b-gray)*saturation)
	}

	switch op {
	case domain.ColorOpGrayscale:
		gray := clampChannel(lumaR*r + lumaG*g + lumaB*b)
		r, g, b = gray, gray, gray
	case domain.ColorOpSepia:
		r, g, b = clampChannel(0.393*r+0.769*g+0.189*b),
			clampChannel(0.349*r+0.686*g+0.168*b),
			clampChannel(0.272*r+0.534*g+0.131*b)
	}

	return toUint8(r), toUint8(g), toUint8(b)
}

func clampChannel(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

func toUint8(v float64) uint8 {
	return uint8(math.Round(clampChannel(v)))
}

// toNRGBA copies src into a fresh non-premultiplied raster anchored at
// the origin.
func toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if n, ok := src.(*image.NRGBA); ok {
		for y := 0; y < b.Dy(); y++ {
			srcRow := n.Pix[(y+b.Min.Y-n.Rect.Min.Y)*n.Stride+(b.Min.X-n.Rect.Min.X)*4:]
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+b.Dx()*4], srcRow[:b.Dx()*4])
		}
		return dst
	}
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
