package mushi

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/mushi/internal/domain"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrUnsupportedMediaType = domain.ErrUnsupportedMediaType
	ErrInvalidImage         = domain.ErrInvalidImage
	ErrInference            = domain.ErrInference
	ErrRateLimited          = domain.ErrRateLimited
	ErrInvalidInput         = domain.ErrInvalidInput
)

// ErrUnauthorized is returned when the server rejects the API key.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mushi: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the server error code to a sentinel.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "invalid_image_type":
		return ErrUnsupportedMediaType
	case "invalid_image":
		return ErrInvalidImage
	case "inference_failed":
		return ErrInference
	case "rate_limited":
		return ErrRateLimited
	case "unauthorized":
		return ErrUnauthorized
	case "bad_request", "upload_too_large":
		return ErrInvalidInput
	}
	return nil
}
