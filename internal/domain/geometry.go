package domain

import "math"

// NormalizeDegrees maps any angle into [0, 360).
func NormalizeDegrees(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	n := math.Mod(deg, 360)
	if n < 0 {
		n += 360
	}
	if n == 360 {
		n = 0
	}
	return n
}

// QuarterTurns returns the number of 90° steps when deg is an exact
// multiple of 90.
func QuarterTurns(deg float64) (int, bool) {
	n := NormalizeDegrees(deg)
	if math.Mod(n, 90) != 0 {
		return 0, false
	}
	return int(n / 90), true
}

// SinCos returns sin and cos of deg, exact for quarter turns.
func SinCos(deg float64) (sin, cos float64) {
	if turns, ok := QuarterTurns(deg); ok {
		switch turns {
		case 0:
			return 0, 1
		case 1:
			return 1, 0
		case 2:
			return 0, -1
		default:
			return -1, 0
		}
	}
	return math.Sincos(NormalizeDegrees(deg) * math.Pi / 180)
}

// RotatedSize is the bounding box of a w x h image rotated by deg.
func RotatedSize(w, h int, deg float64) (int, int) {
	if turns, ok := QuarterTurns(deg); ok {
		if turns%2 == 1 {
			return h, w
		}
		return w, h
	}
	sin, cos := SinCos(deg)
	fw, fh := float64(w), float64(h)
	bw := math.Abs(fw*cos) + math.Abs(fh*sin)
	bh := math.Abs(fw*sin) + math.Abs(fh*cos)
	return int(math.Round(bw)), int(math.Round(bh))
}

// ComputeCroppedArea derives the absolute crop rectangle from the pan
// offset, zoom and aspect ratio against the rotated bounding box of a
// sourceWidth x sourceHeight image. It is the measurement the crop widget
// reports back to the editor.
func ComputeCroppedArea(sourceWidth, sourceHeight int, s TransformState) Rect {
	bw, bh := RotatedSize(sourceWidth, sourceHeight, s.RotationDegrees)
	if bw <= 0 || bh <= 0 {
		return Rect{}
	}

	baseW, baseH := float64(bw), float64(bh)
	if !s.AspectRatio.IsFree() {
		aspect := float64(s.AspectRatio)
		if baseW/baseH > aspect {
			baseW = baseH * aspect
		} else {
			baseH = baseW / aspect
		}
	}

	zoom := clampFloat(s.Zoom, MinZoom, MaxZoom, MinZoom)
	cw := baseW / zoom
	ch := baseH / zoom

	panX := (float64(bw) - cw) / 2
	panY := (float64(bh) - ch) / 2
	cx := float64(bw)/2 + clampFloat(s.Crop.X, -1, 1, 0)*panX
	cy := float64(bh)/2 + clampFloat(s.Crop.Y, -1, 1, 0)*panY

	area := Rect{
		X:      int(math.Round(cx - cw/2)),
		Y:      int(math.Round(cy - ch/2)),
		Width:  max(1, int(math.Round(cw))),
		Height: max(1, int(math.Round(ch))),
	}
	return area.ClampTo(bw, bh)
}
