package evaluate

import (
	"context"

	predictuc "github.com/kailas-cloud/mushi/internal/usecase/predict"
)

// Predictor classifies an image file.
type Predictor interface {
	PredictFile(ctx context.Context, path string, k int) (predictuc.Result, error)
}
