package submit

import (
	"errors"
	"fmt"
)

var ErrMissingMediaID = errors.New("media has no identifier")

// SubmissionError is the only user-visible save failure. Message is safe
// to display; StatusCode is the backend status when one was received.
type SubmissionError struct {
	Message    string
	StatusCode int
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (status=%d): %v", e.Message, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}
