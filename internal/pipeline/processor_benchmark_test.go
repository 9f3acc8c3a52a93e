package pipeline

import (
	"context"
	"testing"

	"github.com/dunamismax/pixeledit/internal/domain"
)

func BenchmarkProcessorCropRotate(b *testing.B) {
	processor := NewProcessor(staticFetcher{data: buildTestPNG(b, 1920, 1080)}, NewEncoder())

	state := domain.NeutralState()
	state.RotationDegrees = 90
	state.CroppedAreaPixels = &domain.Rect{X: 100, Y: 200, Width: 800, Height: 1200}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := processor.Process(context.Background(), Request{Source: "bench.png", State: state, Format: "jpeg", Quality: 82}); err != nil {
			b.Fatalf("process: %v", err)
		}
	}
}

func BenchmarkApplyFiltersVintage(b *testing.B) {
	src := gradientRGBA(1920, 1080)
	filters := domain.Filters{Brightness: 110, Contrast: 90, Saturation: 80, Filter: domain.PresetVintage}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = ApplyFilters(src, filters)
	}
}

func BenchmarkCropFreeRotation(b *testing.B) {
	src := gradientRGBA(1920, 1080)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Crop(src, nil, 17, domain.Flip{Horizontal: true}); err != nil {
			b.Fatalf("crop: %v", err)
		}
	}
}

type staticFetcher struct {
	data []byte
}

func (f staticFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	return f.data, nil
}
