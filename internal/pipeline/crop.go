package pipeline

import (
	"image"

	"github.com/dunamismax/pixeledit/internal/domain"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Crop renders src rotated by rotation degrees and flipped per flip into a
// canvas sized to the rotated bounding box, then extracts area from it.
// A nil area selects the whole bounding box. The area is clamped to the
// bounding box first.
func Crop(src image.Image, area *domain.Rect, rotation float64, flip domain.Flip) (*image.RGBA, error) {
	if src == nil || src.Bounds().Empty() {
		return nil, &RasterError{Op: "crop", Err: ErrEmptySource}
	}

	canvas := renderRotated(src, rotation, flip)
	bw, bh := canvas.Bounds().Dx(), canvas.Bounds().Dy()

	region := domain.Rect{Width: bw, Height: bh}
	if area != nil {
		region = area.ClampTo(bw, bh)
	}
	if region.Empty() {
		return nil, &RasterError{Op: "crop", Err: ErrEmptyCropArea}
	}

	if region.X == 0 && region.Y == 0 && region.Width == bw && region.Height == bh {
		return canvas, nil
	}

	dst := image.NewRGBA(image.Rect(0, 0, region.Width, region.Height))
	draw.Draw(dst, dst.Bounds(), canvas, image.Pt(region.X, region.Y), draw.Src)
	return dst, nil
}

func renderRotated(src image.Image, rotation float64, flip domain.Flip) *image.RGBA {
	sb := src.Bounds()
	w, h := sb.Dx(), sb.Dy()
	bw, bh := domain.RotatedSize(w, h, rotation)
	dst := image.NewRGBA(image.Rect(0, 0, bw, bh))

	turns, quarter := domain.QuarterTurns(rotation)
	if quarter && turns == 0 && !flip.Horizontal && !flip.Vertical {
		draw.Draw(dst, dst.Bounds(), src, sb.Min, draw.Src)
		return dst
	}

	var interp draw.Interpolator = draw.BiLinear
	if quarter {
		interp = draw.NearestNeighbor
	}
	interp.Transform(dst, sourceToCanvas(sb, bw, bh, rotation, flip), src, sb, draw.Src, nil)
	return dst
}

// sourceToCanvas maps source pixel space into the canvas: move the source
// centre to the origin, flip, rotate, then move to the canvas centre.
func sourceToCanvas(sb image.Rectangle, bw, bh int, rotation float64, flip domain.Flip) f64.Aff3 {
	sin, cos := domain.SinCos(rotation)

	sx, sy := 1.0, 1.0
	if flip.Horizontal {
		sx = -1
	}
	if flip.Vertical {
		sy = -1
	}

	a, b := cos*sx, -sin*sy
	c, d := sin*sx, cos*sy

	csx := float64(sb.Min.X) + float64(sb.Dx())/2
	csy := float64(sb.Min.Y) + float64(sb.Dy())/2
	cdx := float64(bw) / 2
	cdy := float64(bh) / 2

	return f64.Aff3{
		a, b, cdx - a*csx - b*csy,
		c, d, cdy - c*csx - d*csy,
	}
}
