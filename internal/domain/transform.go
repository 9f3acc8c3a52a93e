package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	MinZoom = 1.0
	MaxZoom = 3.0

	MinLevel     = 0
	MaxLevel     = 200
	NeutralLevel = 100
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// ClampTo returns r intersected with a w x h area anchored at the origin.
func (r Rect) ClampTo(w, h int) Rect {
	x0 := clampInt(r.X, 0, w)
	y0 := clampInt(r.Y, 0, h)
	x1 := clampInt(r.X+r.Width, 0, w)
	y1 := clampInt(r.Y+r.Height, 0, h)
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

type Flip struct {
	Horizontal bool `json:"horizontal"`
	Vertical   bool `json:"vertical"`
}

// AspectRatio constrains the crop rectangle. Zero means free.
type AspectRatio float64

const AspectFree AspectRatio = 0

func (a AspectRatio) IsFree() bool {
	return a <= 0 || math.IsNaN(float64(a)) || math.IsInf(float64(a), 0)
}

func (a AspectRatio) MarshalJSON() ([]byte, error) {
	if a.IsFree() {
		return []byte(`"free"`), nil
	}
	return []byte(strconv.FormatFloat(float64(a), 'f', -1, 64)), nil
}

func (a *AspectRatio) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*a = AspectFree
	case float64:
		*a = AspectRatio(v)
	case string:
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" || v == "free" {
			*a = AspectFree
			return nil
		}
		parsed, err := parseRatio(v)
		if err != nil {
			return err
		}
		*a = AspectRatio(parsed)
	default:
		return fmt.Errorf("aspect ratio must be a number or \"free\"")
	}
	return nil
}

// parseRatio accepts "1.5" and "16:9" forms.
func parseRatio(v string) (float64, error) {
	if w, h, ok := strings.Cut(v, ":"); ok {
		wf, err := strconv.ParseFloat(strings.TrimSpace(w), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid aspect ratio %q", v)
		}
		hf, err := strconv.ParseFloat(strings.TrimSpace(h), 64)
		if err != nil || hf == 0 {
			return 0, fmt.Errorf("invalid aspect ratio %q", v)
		}
		return wf / hf, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid aspect ratio %q", v)
	}
	return f, nil
}

// TransformState is one snapshot of every in-progress edit parameter.
type TransformState struct {
	Crop              Point        `json:"crop"`
	Zoom              float64      `json:"zoom"`
	RotationDegrees   float64      `json:"rotation"`
	Flip              Flip         `json:"flip"`
	Brightness        int          `json:"brightness"`
	Contrast          int          `json:"contrast"`
	Saturation        int          `json:"saturation"`
	AspectRatio       AspectRatio  `json:"aspect_ratio"`
	FilterPreset      FilterPreset `json:"filter"`
	CroppedAreaPixels *Rect        `json:"cropped_area_pixels"`
}

func NeutralState() TransformState {
	return TransformState{
		Zoom:         MinZoom,
		Brightness:   NeutralLevel,
		Contrast:     NeutralLevel,
		Saturation:   NeutralLevel,
		AspectRatio:  AspectFree,
		FilterPreset: PresetNone,
	}
}

// Clamp pulls every field back into its documented range. Out-of-range
// input is never rejected.
func (s TransformState) Clamp() TransformState {
	s.Crop.X = clampFloat(s.Crop.X, -1, 1, 0)
	s.Crop.Y = clampFloat(s.Crop.Y, -1, 1, 0)
	s.Zoom = clampFloat(s.Zoom, MinZoom, MaxZoom, MinZoom)
	if math.IsNaN(s.RotationDegrees) || math.IsInf(s.RotationDegrees, 0) {
		s.RotationDegrees = 0
	}
	s.Brightness = clampInt(s.Brightness, MinLevel, MaxLevel)
	s.Contrast = clampInt(s.Contrast, MinLevel, MaxLevel)
	s.Saturation = clampInt(s.Saturation, MinLevel, MaxLevel)
	if s.AspectRatio.IsFree() {
		s.AspectRatio = AspectFree
	}
	if !s.FilterPreset.Valid() {
		s.FilterPreset = PresetNone
	}
	if s.CroppedAreaPixels != nil {
		area := *s.CroppedAreaPixels
		if area.X < 0 {
			area.Width += area.X
			area.X = 0
		}
		if area.Y < 0 {
			area.Height += area.Y
			area.Y = 0
		}
		area.Width = max(area.Width, 0)
		area.Height = max(area.Height, 0)
		s.CroppedAreaPixels = &area
	}
	return s
}

// ClampCropArea bounds CroppedAreaPixels to the source rotated by the
// state's rotation.
func (s TransformState) ClampCropArea(sourceWidth, sourceHeight int) TransformState {
	if s.CroppedAreaPixels == nil || sourceWidth <= 0 || sourceHeight <= 0 {
		return s
	}
	bw, bh := RotatedSize(sourceWidth, sourceHeight, s.RotationDegrees)
	area := s.CroppedAreaPixels.ClampTo(bw, bh)
	s.CroppedAreaPixels = &area
	return s
}

// Equal compares two snapshots field by field, including the crop area.
func (s TransformState) Equal(o TransformState) bool {
	a, b := s, o
	a.CroppedAreaPixels, b.CroppedAreaPixels = nil, nil
	if a != b {
		return false
	}
	switch {
	case s.CroppedAreaPixels == nil && o.CroppedAreaPixels == nil:
		return true
	case s.CroppedAreaPixels == nil || o.CroppedAreaPixels == nil:
		return false
	default:
		return *s.CroppedAreaPixels == *o.CroppedAreaPixels
	}
}

// Clone copies the state so the crop area pointer is not shared.
func (s TransformState) Clone() TransformState {
	if s.CroppedAreaPixels != nil {
		area := *s.CroppedAreaPixels
		s.CroppedAreaPixels = &area
	}
	return s
}

// NormalizedRotation maps the accumulated rotation into [0, 360).
func (s TransformState) NormalizedRotation() float64 {
	return NormalizeDegrees(s.RotationDegrees)
}

func (s TransformState) Filters() Filters {
	return Filters{
		Brightness: s.Brightness,
		Contrast:   s.Contrast,
		Saturation: s.Saturation,
		Filter:     s.FilterPreset,
	}
}

// IsNeutralColor reports whether the filter stage would leave pixels unchanged.
func (s TransformState) IsNeutralColor() bool {
	return s.Filters().IsIdentity()
}

// TransformPatch carries a partial change. Nil fields are left alone.
type TransformPatch struct {
	Crop              *Point        `json:"crop,omitempty"`
	Zoom              *float64      `json:"zoom,omitempty"`
	RotationDegrees   *float64      `json:"rotation,omitempty"`
	RotateBy          *float64      `json:"rotate_by,omitempty"`
	Flip              *Flip         `json:"flip,omitempty"`
	Brightness        *int          `json:"brightness,omitempty"`
	Contrast          *int          `json:"contrast,omitempty"`
	Saturation        *int          `json:"saturation,omitempty"`
	AspectRatio       *AspectRatio  `json:"aspect_ratio,omitempty"`
	FilterPreset      *FilterPreset `json:"filter,omitempty"`
	CroppedAreaPixels *Rect         `json:"cropped_area_pixels,omitempty"`
}

func (p TransformPatch) IsEmpty() bool {
	return p == TransformPatch{}
}

// Apply merges the patch into s and clamps the result. Selecting a preset
// copies its recipe levels unless the same patch sets them explicitly.
func (p TransformPatch) Apply(s TransformState) TransformState {
	s = s.Clone()
	if p.Crop != nil {
		s.Crop = *p.Crop
	}
	if p.Zoom != nil {
		s.Zoom = *p.Zoom
	}
	if p.RotationDegrees != nil {
		s.RotationDegrees = *p.RotationDegrees
	}
	if p.RotateBy != nil {
		s.RotationDegrees += *p.RotateBy
	}
	if p.Flip != nil {
		s.Flip = *p.Flip
	}
	if p.FilterPreset != nil {
		s.FilterPreset = *p.FilterPreset
		recipe := p.FilterPreset.Recipe()
		s.Brightness = recipe.Brightness
		s.Contrast = recipe.Contrast
		s.Saturation = recipe.Saturation
	}
	if p.Brightness != nil {
		s.Brightness = *p.Brightness
	}
	if p.Contrast != nil {
		s.Contrast = *p.Contrast
	}
	if p.Saturation != nil {
		s.Saturation = *p.Saturation
	}
	if p.AspectRatio != nil {
		s.AspectRatio = *p.AspectRatio
	}
	if p.CroppedAreaPixels != nil {
		area := *p.CroppedAreaPixels
		s.CroppedAreaPixels = &area
	}
	return s.Clamp()
}

// TouchesGeometry reports whether the patch changes anything the crop
// rectangle is derived from.
func (p TransformPatch) TouchesGeometry() bool {
	return p.Crop != nil || p.Zoom != nil || p.RotationDegrees != nil || p.RotateBy != nil || p.AspectRatio != nil
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
