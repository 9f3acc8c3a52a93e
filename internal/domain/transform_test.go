package domain

import (
	"encoding/json"
	"math"
	"testing"
)

func TestTransformPatchApplyClampsRanges(t *testing.T) {
	zoom := 7.5
	brightness := 250
	contrast := -20
	saturation := 201
	crop := Point{X: 3, Y: -4}

	got := TransformPatch{
		Zoom:       &zoom,
		Brightness: &brightness,
		Contrast:   &contrast,
		Saturation: &saturation,
		Crop:       &crop,
	}.Apply(NeutralState())

	if got.Zoom != MaxZoom {
		t.Fatalf("expected zoom clamped to %v, got %v", MaxZoom, got.Zoom)
	}
	if got.Brightness != MaxLevel || got.Contrast != MinLevel || got.Saturation != MaxLevel {
		t.Fatalf("expected levels clamped, got b=%d c=%d s=%d", got.Brightness, got.Contrast, got.Saturation)
	}
	if got.Crop.X != 1 || got.Crop.Y != -1 {
		t.Fatalf("expected crop clamped to unit range, got %+v", got.Crop)
	}
}

func TestTransformPatchPresetCopiesRecipe(t *testing.T) {
	vintage := PresetVintage
	got := TransformPatch{FilterPreset: &vintage}.Apply(NeutralState())
	if got.Brightness != 110 || got.Contrast != 90 || got.Saturation != 80 {
		t.Fatalf("expected vintage recipe levels, got b=%d c=%d s=%d", got.Brightness, got.Contrast, got.Saturation)
	}

	brightness := 150
	got = TransformPatch{FilterPreset: &vintage, Brightness: &brightness}.Apply(NeutralState())
	if got.Brightness != 150 {
		t.Fatalf("expected explicit brightness to win over recipe, got %d", got.Brightness)
	}
}

func TestTransformPatchRotateByAccumulates(t *testing.T) {
	step := 90.0
	state := NeutralState()
	for i := 0; i < 5; i++ {
		state = TransformPatch{RotateBy: &step}.Apply(state)
	}
	if state.RotationDegrees != 450 {
		t.Fatalf("expected accumulated rotation 450, got %v", state.RotationDegrees)
	}
	if state.NormalizedRotation() != 90 {
		t.Fatalf("expected normalized rotation 90, got %v", state.NormalizedRotation())
	}
}

func TestTransformPatchDoesNotAliasCropArea(t *testing.T) {
	area := Rect{X: 1, Y: 2, Width: 3, Height: 4}
	state := TransformPatch{CroppedAreaPixels: &area}.Apply(NeutralState())
	area.Width = 99
	if state.CroppedAreaPixels.Width != 3 {
		t.Fatalf("expected state to own its crop area, got width %d", state.CroppedAreaPixels.Width)
	}

	clone := state.Clone()
	clone.CroppedAreaPixels.Height = 42
	if state.CroppedAreaPixels.Height != 4 {
		t.Fatal("expected Clone to copy the crop area")
	}
}

func TestClampCropAreaUsesRotatedBounds(t *testing.T) {
	state := NeutralState()
	state.RotationDegrees = 90
	state.CroppedAreaPixels = &Rect{X: 50, Y: 150, Width: 100, Height: 100}

	got := state.ClampCropArea(200, 100)
	want := Rect{X: 50, Y: 150, Width: 50, Height: 50}
	if *got.CroppedAreaPixels != want {
		t.Fatalf("expected %+v, got %+v", want, *got.CroppedAreaPixels)
	}
}

func TestStateEqual(t *testing.T) {
	a := NeutralState()
	b := NeutralState()
	if !a.Equal(b) {
		t.Fatal("expected neutral states to be equal")
	}
	a.CroppedAreaPixels = &Rect{Width: 1, Height: 1}
	if a.Equal(b) {
		t.Fatal("expected crop area to break equality")
	}
	b.CroppedAreaPixels = &Rect{Width: 1, Height: 1}
	if !a.Equal(b) {
		t.Fatal("expected equal crop areas behind different pointers to compare equal")
	}
}

func TestAspectRatioJSON(t *testing.T) {
	var payload struct {
		Aspect AspectRatio `json:"aspect"`
	}

	cases := map[string]AspectRatio{
		`{"aspect":"free"}`: AspectFree,
		`{"aspect":1.5}`:    1.5,
		`{"aspect":"16:9"}`: AspectRatio(16.0 / 9.0),
	}
	for raw, want := range cases {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if math.Abs(float64(payload.Aspect-want)) > 1e-9 {
			t.Fatalf("%s: expected %v, got %v", raw, want, payload.Aspect)
		}
	}

	out, err := json.Marshal(AspectFree)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != `"free"` {
		t.Fatalf("expected \"free\", got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"aspect":"wide"}`), &payload); err == nil {
		t.Fatal("expected error for unparseable aspect ratio")
	}
}

func TestRotatedSize(t *testing.T) {
	cases := []struct {
		deg          float64
		wantW, wantH int
	}{
		{0, 200, 100},
		{90, 100, 200},
		{180, 200, 100},
		{-90, 100, 200},
		{450, 100, 200},
		{45, 212, 212},
	}
	for _, tc := range cases {
		w, h := RotatedSize(200, 100, tc.deg)
		if w != tc.wantW || h != tc.wantH {
			t.Fatalf("deg=%v: expected %dx%d, got %dx%d", tc.deg, tc.wantW, tc.wantH, w, h)
		}
	}
}

func TestComputeCroppedArea(t *testing.T) {
	state := NeutralState()
	got := ComputeCroppedArea(400, 200, state)
	if got != (Rect{X: 0, Y: 0, Width: 400, Height: 200}) {
		t.Fatalf("expected full bounds at zoom 1, got %+v", got)
	}

	state.Zoom = 2
	got = ComputeCroppedArea(400, 200, state)
	if got != (Rect{X: 100, Y: 50, Width: 200, Height: 100}) {
		t.Fatalf("expected centred half-size area, got %+v", got)
	}

	state.Crop = Point{X: 1, Y: -1}
	got = ComputeCroppedArea(400, 200, state)
	if got != (Rect{X: 200, Y: 0, Width: 200, Height: 100}) {
		t.Fatalf("expected area panned to top-right, got %+v", got)
	}

	state = NeutralState()
	state.AspectRatio = 1
	got = ComputeCroppedArea(400, 200, state)
	if got != (Rect{X: 100, Y: 0, Width: 200, Height: 200}) {
		t.Fatalf("expected square area, got %+v", got)
	}
}

func TestOpenSessionRequestValidate(t *testing.T) {
	valid := OpenSessionRequest{Media: MediaReference{ID: "m1", URL: "/uploads/a.jpg"}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got error: %v", err)
	}

	if err := (OpenSessionRequest{}).Validate(); err == nil {
		t.Fatal("expected validation error for empty media")
	}

	halfSized := OpenSessionRequest{Media: MediaReference{URL: "/x.png"}, SourceWidth: 10}
	if err := halfSized.Validate(); err == nil {
		t.Fatal("expected validation error for partial source dimensions")
	}
}
