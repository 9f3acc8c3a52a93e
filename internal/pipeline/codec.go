package pipeline

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// Encoder turns a raster into file bytes.
type Encoder interface {
	Encode(img image.Image, format string, quality int) ([]byte, error)
	Supports(format string) bool
}

// Decode reads any registered format (gif, jpeg, png, webp). When
// maxPixels is positive, the header is checked against it before any
// pixels are allocated.
func Decode(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &RasterError{Op: "decode", Err: ErrEmptySource}
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", &RasterError{Op: "decode", Err: err}
		}
		if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
			return nil, "", &RasterError{Op: "decode", Err: ErrSourceTooLarge}
		}
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &RasterError{Op: "decode", Err: err}
	}
	return img, format, nil
}

func normalizeOutputFormat(format string) string {
	switch format {
	case "jpg":
		return "jpeg"
	case "jpeg", "png", "webp":
		return format
	default:
		return "png"
	}
}

// outputFormat picks the requested format, or the source format when none
// is requested, downgrading to png when the encoder cannot write it.
func outputFormat(requested, source string, enc Encoder) string {
	format := normalizeOutputFormat(strings.ToLower(strings.TrimSpace(requested)))
	if strings.TrimSpace(requested) == "" {
		format = normalizeOutputFormat(strings.ToLower(source))
	}
	if !enc.Supports(format) {
		return "png"
	}
	return format
}

func ContentTypeForFormat(format string) string {
	switch normalizeOutputFormat(strings.ToLower(strings.TrimSpace(format))) {
	case "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

func ExtensionForFormat(format string) string {
	switch normalizeOutputFormat(strings.ToLower(strings.TrimSpace(format))) {
	case "jpeg":
		return "jpg"
	default:
		return normalizeOutputFormat(strings.ToLower(strings.TrimSpace(format)))
	}
}
