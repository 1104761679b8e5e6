package predict

import (
	"context"

	"github.com/kailas-cloud/mushi/internal/repository/journal"
)

// Preprocessor converts encoded image bytes into a model input tensor.
type Preprocessor interface {
	Preprocess(data []byte) ([]float32, error)
}

// Classifier maps a tensor to one raw score per class.
type Classifier interface {
	Predict(ctx context.Context, tensor []float32) ([]float32, error)
	NumClasses() int
}

// ScoreCache stores raw scores by image digest.
type ScoreCache interface {
	Get(key string) ([]float32, bool)
	Add(key string, scores []float32)
}

// Journal records served predictions.
type Journal interface {
	Record(ctx context.Context, e journal.Entry) error
}
