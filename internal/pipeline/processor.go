package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dunamismax/pixeledit/internal/domain"
)

// DefaultMaxPixels bounds decoded sources (about 50 megapixels).
const DefaultMaxPixels = 50_000_000

type Request struct {
	Source  string
	State   domain.TransformState
	Format  string
	Quality int
}

type Result struct {
	Data         []byte
	Format       string
	ContentType  string
	Width        int
	Height       int
	SourceBytes  int
	SourceWidth  int
	SourceHeight int
}

type Fetcher interface {
	Fetch(ctx context.Context, source string) ([]byte, error)
}

// Processor runs the local edit pipeline: fetch, decode, crop, filter,
// encode.
type Processor struct {
	fetcher   Fetcher
	encoder   Encoder
	maxPixels int
}

func NewProcessor(fetcher Fetcher, encoder Encoder) *Processor {
	if encoder == nil {
		encoder = NewEncoder()
	}
	return &Processor{
		fetcher:   fetcher,
		encoder:   encoder,
		maxPixels: DefaultMaxPixels,
	}
}

// NewLocalProcessor reads sources from the local filesystem under root.
func NewLocalProcessor(root string) *Processor {
	return NewProcessor(LocalFileFetcher{Root: root}, NewEncoder())
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p.fetcher == nil {
		return Result{}, errors.New("fetcher is required")
	}
	if strings.TrimSpace(req.Source) == "" {
		return Result{}, errors.New("source is required")
	}

	sourceBytes, err := p.fetcher.Fetch(ctx, req.Source)
	if err != nil {
		var securityErr *SecurityError
		if errors.As(err, &securityErr) {
			return Result{}, err
		}
		return Result{}, &RasterError{Op: "fetch", Err: err}
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	src, srcFormat, err := Decode(sourceBytes, p.maxPixels)
	if err != nil {
		return Result{}, err
	}
	sb := src.Bounds()

	out, err := Render(src, req.State)
	if err != nil {
		return Result{}, err
	}

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	format := outputFormat(req.Format, srcFormat, p.encoder)
	data, err := p.encoder.Encode(out, format, req.Quality)
	if err != nil {
		return Result{}, err
	}

	bounds := out.Bounds()
	return Result{
		Data:         data,
		Format:       format,
		ContentType:  ContentTypeForFormat(format),
		Width:        bounds.Dx(),
		Height:       bounds.Dy(),
		SourceBytes:  len(sourceBytes),
		SourceWidth:  sb.Dx(),
		SourceHeight: sb.Dy(),
	}, nil
}

// Render crops first and filters the cropped raster, since the filters
// are defined on the cropped output.
func Render(src image.Image, state domain.TransformState) (*image.NRGBA, error) {
	cropped, err := Crop(src, state.CroppedAreaPixels, state.RotationDegrees, state.Flip)
	if err != nil {
		return nil, err
	}
	return ApplyFilters(cropped, state.Filters()), nil
}

// LocalFileFetcher reads sources from disk. Relative URLs are resolved
// under Root and may not escape it.
type LocalFileFetcher struct {
	Root string
}

func (f LocalFileFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	fullPath, err := f.resolve(source)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("read input file %s: %w", fullPath, err)
	}
	return data, nil
}

func (f LocalFileFetcher) resolve(source string) (string, error) {
	source = strings.TrimSpace(source)
	if u, err := url.Parse(source); err == nil && u.Scheme == "file" {
		source = u.Path
	}

	if strings.TrimSpace(f.Root) == "" {
		return filepath.Clean(source), nil
	}

	cleaned := path.Clean("/" + strings.ReplaceAll(source, "\\", "/"))
	return filepath.Join(f.Root, filepath.FromSlash(cleaned)), nil
}

// DataURLFetcher decodes inline base64 data: URLs.
type DataURLFetcher struct{}

func (DataURLFetcher) Fetch(_ context.Context, source string) ([]byte, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(source), "data:")
	if !ok {
		return nil, fmt.Errorf("not a data url")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("malformed data url")
	}
	if !strings.HasSuffix(strings.ToLower(meta), ";base64") {
		decoded, err := url.PathUnescape(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data url: %w", err)
		}
		return []byte(decoded), nil
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("decode data url: %w", err)
	}
	return data, nil
}

// SourceFetcher routes a source URL to the fetcher that can serve it.
// Relative paths prefer object storage, then the local media root, then
// HTTP against the application origin.
type SourceFetcher struct {
	Objects Fetcher
	Files   Fetcher
	HTTP    Fetcher
}

func (f SourceFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	source = strings.TrimSpace(source)
	if strings.HasPrefix(strings.ToLower(source), "data:") {
		return DataURLFetcher{}.Fetch(ctx, source)
	}

	u, err := url.Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}

	if u.Scheme == "" && u.Host == "" {
		switch {
		case f.Objects != nil:
			return f.Objects.Fetch(ctx, source)
		case f.Files != nil:
			return f.Files.Fetch(ctx, source)
		}
	}
	if u.Scheme == "file" && f.Files != nil {
		return f.Files.Fetch(ctx, source)
	}
	if f.HTTP == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", source)
	}
	return f.HTTP.Fetch(ctx, source)
}
