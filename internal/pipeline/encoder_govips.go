//go:build govips && cgo

package pipeline

import (
	"fmt"
	"image"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsEncoder struct{}

func (govipsEncoder) Supports(format string) bool {
	switch format {
	case "jpeg", "png", "webp":
		return true
	default:
		return false
	}
}

func (govipsEncoder) Encode(img image.Image, format string, quality int) ([]byte, error) {
	raw, err := stdlibEncoder{}.Encode(img, "png", 0)
	if err != nil {
		return nil, err
	}

	ref, err := vips.NewImageFromBuffer(raw)
	if err != nil {
		return nil, &RasterError{Op: "encode", Err: fmt.Errorf("load raster into vips: %w", err)}
	}
	defer ref.Close()

	data, err := exportGovipsImage(ref, format, quality)
	if err != nil {
		return nil, &RasterError{Op: "encode", Err: err}
	}
	return data, nil
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case "png":
		params := vips.NewPngExportParams()
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case "webp":
		params := vips.NewWebpExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
