package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
)

type stdlibEncoder struct{}

func (stdlibEncoder) Supports(format string) bool {
	return format == "jpeg" || format == "png"
}

func (stdlibEncoder) Encode(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if quality <= 0 || quality > 100 {
			quality = 90
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, &RasterError{Op: "encode", Err: fmt.Errorf("encode jpeg: %w", err)}
		}
	case "png":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, &RasterError{Op: "encode", Err: fmt.Errorf("encode png: %w", err)}
		}
	case "webp":
		return nil, &RasterError{Op: "encode", Err: errors.New("webp export requires govips build tag")}
	default:
		return nil, &RasterError{Op: "encode", Err: fmt.Errorf("unsupported output format: %s", format)}
	}

	return buf.Bytes(), nil
}
