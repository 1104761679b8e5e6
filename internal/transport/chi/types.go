package chi

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/mushi/internal/domain/prediction"
)

// ErrorCode is a machine-readable error identifier.
type ErrorCode string

// Error codes returned in ErrorResponse.Code.
const (
	ErrorCodeBadRequest       ErrorCode = "bad_request"
	ErrorCodeInvalidImageType ErrorCode = "invalid_image_type"
	ErrorCodeInvalidImage     ErrorCode = "invalid_image"
	ErrorCodeUploadTooLarge   ErrorCode = "upload_too_large"
	ErrorCodeUnauthorized     ErrorCode = "unauthorized"
	ErrorCodeRateLimited      ErrorCode = "rate_limited"
	ErrorCodeInferenceFailed  ErrorCode = "inference_failed"
	ErrorCodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// IndexResponse is the body of GET /.
type IndexResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// PredictionResponse serialises a ranking as a JSON object keyed by label,
// emitting keys in ranking order.
type PredictionResponse []prediction.Prediction

// MarshalJSON implements json.Marshaler.
func (r PredictionResponse) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(p.Label())
		if err != nil {
			return nil, fmt.Errorf("encode label: %w", err)
		}
		val, err := json.Marshal(p.Confidence())
		if err != nil {
			return nil, fmt.Errorf("encode confidence for %s: %w", p.Label(), err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
