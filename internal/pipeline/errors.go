package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrEmptySource    = errors.New("source image is empty")
	ErrEmptyCropArea  = errors.New("crop area is empty after clamping")
	ErrSourceTooLarge = errors.New("source image exceeds size limit")
)

// RasterError reports a local failure to decode, transform or encode a
// raster. Callers fall back to sending raw parameters.
type RasterError struct {
	Op  string
	Err error
}

func (e *RasterError) Error() string {
	return fmt.Sprintf("raster %s: %v", e.Op, e.Err)
}

func (e *RasterError) Unwrap() error {
	return e.Err
}

// SecurityError reports a source whose pixels may not be read locally,
// such as a foreign origin or a redirect that leaves the application
// origin.
type SecurityError struct {
	Source string
	Reason string
}

func (e *SecurityError) Error() string {
	return fmt.Sprintf("pixel access refused for %s: %s", e.Source, e.Reason)
}

// IsRecoverable reports whether err is a local processing failure that
// should degrade to a metadata-only edit.
func IsRecoverable(err error) bool {
	var rasterErr *RasterError
	var securityErr *SecurityError
	return errors.As(err, &rasterErr) || errors.As(err, &securityErr)
}
