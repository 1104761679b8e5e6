package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals arguments a computation cannot accept.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupportedMediaType signals an upload that is neither JPEG nor PNG.
	ErrUnsupportedMediaType = errors.New("invalid image type, please submit a .jpeg or .png image")
	// ErrInvalidImage signals image bytes that cannot be decoded.
	ErrInvalidImage = errors.New("image could not be decoded")
	// ErrLabelMismatch signals a label list that does not fit the model output.
	ErrLabelMismatch = errors.New("label count does not match model output")
	// ErrInference signals a classifier failure.
	ErrInference = errors.New("inference failed")
	// ErrRateLimited signals a rate limit hit.
	ErrRateLimited = errors.New("rate limited")
)

// LabelMismatchError wraps ErrLabelMismatch with both sizes.
type LabelMismatchError struct {
	Labels  int
	Classes int
}

func (e *LabelMismatchError) Error() string {
	return fmt.Sprintf("%s: %d labels, %d model classes", ErrLabelMismatch.Error(), e.Labels, e.Classes)
}

func (e *LabelMismatchError) Unwrap() error { return ErrLabelMismatch }

// NewLabelMismatch creates a label mismatch error.
func NewLabelMismatch(labels, classes int) error {
	return &LabelMismatchError{Labels: labels, Classes: classes}
}
