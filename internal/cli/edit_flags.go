package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dunamismax/pixeledit/internal/domain"
	"github.com/spf13/cobra"
)

// editFlags holds the transform flags shared by apply and submit.
type editFlags struct {
	rotate     float64
	flipH      bool
	flipV      bool
	crop       string
	brightness int
	contrast   int
	saturation int
	preset     string
	format     string
	quality    int
}

func (f *editFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Float64Var(&f.rotate, "rotate", 0, "rotation in degrees, clockwise")
	flags.BoolVar(&f.flipH, "flip-h", false, "mirror horizontally")
	flags.BoolVar(&f.flipV, "flip-v", false, "mirror vertically")
	flags.StringVar(&f.crop, "crop", "", "crop rectangle in the rotated image as x,y,width,height")
	flags.IntVar(&f.brightness, "brightness", domain.NeutralLevel, "brightness percent (0-200)")
	flags.IntVar(&f.contrast, "contrast", domain.NeutralLevel, "contrast percent (0-200)")
	flags.IntVar(&f.saturation, "saturation", domain.NeutralLevel, "saturation percent (0-200)")
	flags.StringVar(&f.preset, "preset", "", "filter preset: "+presetList())
	flags.StringVar(&f.format, "format", "", "output format: png, jpeg or webp (default: source format)")
	flags.IntVar(&f.quality, "quality", 90, "jpeg/webp quality (1-100)")
}

// state builds the transform from the flags. Levels override the preset
// recipe only when set explicitly.
func (f *editFlags) state(cmd *cobra.Command) (domain.TransformState, error) {
	flags := cmd.Flags()
	patch := domain.TransformPatch{
		RotationDegrees: &f.rotate,
		Flip:            &domain.Flip{Horizontal: f.flipH, Vertical: f.flipV},
	}

	if f.preset != "" {
		preset, err := domain.ParsePreset(f.preset)
		if err != nil {
			return domain.TransformState{}, err
		}
		patch.FilterPreset = &preset
	}
	if flags.Changed("brightness") {
		patch.Brightness = &f.brightness
	}
	if flags.Changed("contrast") {
		patch.Contrast = &f.contrast
	}
	if flags.Changed("saturation") {
		patch.Saturation = &f.saturation
	}
	if f.crop != "" {
		area, err := parseRect(f.crop)
		if err != nil {
			return domain.TransformState{}, err
		}
		patch.CroppedAreaPixels = &area
	}

	return patch.Apply(domain.NeutralState()), nil
}

func parseRect(raw string) (domain.Rect, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return domain.Rect{}, fmt.Errorf("crop must be x,y,width,height: %q", raw)
	}
	values := make([]int, 4)
	for i, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return domain.Rect{}, fmt.Errorf("crop must be x,y,width,height: %q", raw)
		}
		values[i] = v
	}
	if values[2] <= 0 || values[3] <= 0 {
		return domain.Rect{}, fmt.Errorf("crop width and height must be positive: %q", raw)
	}
	return domain.Rect{X: values[0], Y: values[1], Width: values[2], Height: values[3]}, nil
}

func presetList() string {
	names := make([]string, 0, len(domain.Presets()))
	for _, p := range domain.Presets() {
		names = append(names, string(p))
	}
	return strings.Join(names, ", ")
}
