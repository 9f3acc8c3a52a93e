package pipeline

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
)

func TestApplyFiltersNeutralIsIdentity(t *testing.T) {
	src := randomNRGBA(rand.New(rand.NewSource(7)), 31, 17)

	out := ApplyFilters(src, domain.NeutralFilters())
	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("byte %d: expected %d, got %d", i, src.Pix[i], out.Pix[i])
		}
	}
	if &out.Pix[0] == &src.Pix[0] {
		t.Fatal("expected a new raster, not the source buffer")
	}
}

func TestFilterPixelNeutralLevelsWithoutFastPath(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 2000; i++ {
		r, g, b := uint8(rng.Intn(256)), uint8(rng.Intn(256)), uint8(rng.Intn(256))
		gr, gg, gb := filterPixel(float64(r), float64(g), float64(b), 1, 1, 1, domain.ColorOpNone)
		if gr != r || gg != g || gb != b {
			t.Fatalf("(%d,%d,%d) changed to (%d,%d,%d)", r, g, b, gr, gg, gb)
		}
	}
}

func TestApplyFiltersStaysInRangeAndKeepsAlpha(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	src := randomNRGBA(rng, 16, 16)

	for i := 0; i < 200; i++ {
		f := domain.Filters{
			Brightness: rng.Intn(201),
			Contrast:   rng.Intn(201),
			Saturation: rng.Intn(201),
			Filter:     domain.Presets()[rng.Intn(len(domain.Presets()))],
		}
		out := ApplyFilters(src, f)
		for p := 3; p < len(out.Pix); p += 4 {
			if out.Pix[p] != src.Pix[p] {
				t.Fatalf("filters %+v changed alpha at %d", f, p)
			}
		}
	}

	// Extreme inputs must clamp rather than wrap.
	r, g, b := filterPixel(250, 250, 250, 2, 2, 2, domain.ColorOpSepia)
	if r != 255 || g != 255 || b != 239 {
		t.Fatalf("expected clamped sepia white (255,255,239), got (%d,%d,%d)", r, g, b)
	}
	r, g, b = filterPixel(5, 5, 5, 0, 2, 2, domain.ColorOpNone)
	if r != 0 || g != 0 || b != 0 {
		t.Fatalf("expected black, got (%d,%d,%d)", r, g, b)
	}
}

func TestApplyFiltersStageFormulas(t *testing.T) {
	cases := []struct {
		name    string
		in      color.NRGBA
		filters domain.Filters
		want    color.NRGBA
	}{
		{
			name:    "brightness",
			in:      color.NRGBA{R: 100, G: 50, B: 200, A: 255},
			filters: domain.Filters{Brightness: 150, Contrast: 100, Saturation: 100, Filter: domain.PresetNone},
			want:    color.NRGBA{R: 150, G: 75, B: 255, A: 255},
		},
		{
			name:    "contrast",
			in:      color.NRGBA{R: 100, G: 128, B: 200, A: 255},
			filters: domain.Filters{Brightness: 100, Contrast: 200, Saturation: 100, Filter: domain.PresetNone},
			want:    color.NRGBA{R: 72, G: 128, B: 255, A: 255},
		},
		{
			name:    "zero saturation",
			in:      color.NRGBA{R: 200, G: 100, B: 50, A: 255},
			filters: domain.Filters{Brightness: 100, Contrast: 100, Saturation: 0, Filter: domain.PresetNone},
			want:    color.NRGBA{R: 124, G: 124, B: 124, A: 255},
		},
		{
			name:    "grayscale",
			in:      color.NRGBA{R: 200, G: 100, B: 50, A: 80},
			filters: domain.Filters{Brightness: 100, Contrast: 100, Saturation: 100, Filter: domain.PresetGrayscale},
			want:    color.NRGBA{R: 124, G: 124, B: 124, A: 80},
		},
		{
			name:    "sepia",
			in:      color.NRGBA{R: 100, G: 100, B: 100, A: 255},
			filters: domain.Filters{Brightness: 100, Contrast: 100, Saturation: 100, Filter: domain.PresetSepia},
			want:    color.NRGBA{R: 135, G: 120, B: 94, A: 255},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := image.NewNRGBA(image.Rect(0, 0, 1, 1))
			src.SetNRGBA(0, 0, tc.in)
			got := ApplyFilters(src, tc.filters).NRGBAAt(0, 0)
			if got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestApplyFiltersAcceptsPremultipliedInput(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2, 1))
	src.SetRGBA(0, 0, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	src.SetRGBA(1, 0, color.RGBA{A: 0})

	out := ApplyFilters(src, domain.Filters{Brightness: 200, Contrast: 100, Saturation: 100, Filter: domain.PresetNone})
	if got := out.NRGBAAt(0, 0); got != (color.NRGBA{R: 20, G: 40, B: 60, A: 255}) {
		t.Fatalf("unexpected pixel %v", got)
	}
	if got := out.NRGBAAt(1, 0); got.A != 0 {
		t.Fatalf("expected transparent pixel to stay transparent, got %v", got)
	}
}

func randomNRGBA(rng *rand.Rand, w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	return img
}
