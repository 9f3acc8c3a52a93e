package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

type objectReader interface {
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

// ObjectStoreFetcher serves relative media paths such as /uploads/a.jpg
// from the bucket, keyed by the path without its leading slash. StripPrefix
// removes a public URL prefix (for example "/media") before the lookup.
type ObjectStoreFetcher struct {
	Storage     objectReader
	StripPrefix string
}

func (f ObjectStoreFetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if f.Storage == nil {
		return nil, errors.New("storage client is required")
	}

	key, err := f.objectKey(source)
	if err != nil {
		return nil, err
	}
	return f.Storage.ReadObject(ctx, key)
}

func (f ObjectStoreFetcher) objectKey(source string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(source))
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	if u.Scheme != "" || u.Host != "" {
		return "", fmt.Errorf("object store serves relative paths only: %s", source)
	}

	cleaned := path.Clean("/" + u.Path)
	prefix := strings.TrimSpace(f.StripPrefix)
	if prefix != "" {
		prefix = path.Clean("/" + prefix)
		cleaned = strings.TrimPrefix(cleaned, prefix)
	}

	key := strings.TrimPrefix(cleaned, "/")
	if key == "" || key == "." {
		return "", fmt.Errorf("empty object key for %s", source)
	}
	return key, nil
}
