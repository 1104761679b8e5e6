// Package onnx runs the exported mushroom classifier with ONNX Runtime.
package onnx

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/domain"
)

// Config locates the model and the runtime.
type Config struct {
	ModelPath      string
	Metadata       Metadata
	RuntimeLibrary string // empty uses the onnxruntime_go default lookup
	Logger         *zap.Logger
}

// Classifier is a loaded ONNX session with bound input and output tensors.
// Bound tensors are shared, so Predict calls are serialised.
type Classifier struct {
	mu       sync.Mutex
	session  *ort.AdvancedSession
	input    *ort.Tensor[float32]
	output   *ort.Tensor[float32]
	metadata Metadata
	logger   *zap.Logger
}

// NewClassifier initialises the runtime and loads the model.
func NewClassifier(cfg Config) (*Classifier, error) {
	if err := cfg.Metadata.Validate(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if cfg.RuntimeLibrary != "" {
		ort.SetSharedLibraryPath(cfg.RuntimeLibrary)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.Metadata.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(cfg.Metadata.OutputShape...))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.Metadata.InputName}, []string{cfg.Metadata.OutputName},
		[]ort.ArbitraryTensor{input}, []ort.ArbitraryTensor{output},
		nil)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Classifier{
		session:  session,
		input:    input,
		output:   output,
		metadata: cfg.Metadata,
		logger:   logger,
	}, nil
}

// NumClasses returns the length of the score vector.
func (c *Classifier) NumClasses() int { return c.metadata.NumClasses() }

// Metadata returns the tensor description the classifier was built with.
func (c *Classifier) Metadata() Metadata { return c.metadata }

// Predict runs the model on one preprocessed image and returns raw scores.
func (c *Classifier) Predict(ctx context.Context, tensor []float32) ([]float32, error) {
	if int64(len(tensor)) != c.metadata.InputElements() {
		return nil, fmt.Errorf("%w: expected %d input values, got %d",
			domain.ErrInvalidInput, c.metadata.InputElements(), len(tensor))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return nil, fmt.Errorf("%w: onnx session closed", domain.ErrInference)
	}

	copy(c.input.GetData(), tensor)
	if err := c.session.Run(); err != nil {
		c.logger.Error("ONNX session run failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}

	out := c.output.GetData()
	scores := make([]float32, len(out))
	copy(scores, out)
	return scores, nil
}

// HealthCheck reports whether the session is still usable.
func (c *Classifier) HealthCheck(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return fmt.Errorf("onnx session closed")
	}
	return nil
}

// Close releases the session, tensors and the runtime environment.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.input != nil {
		_ = c.input.Destroy()
		c.input = nil
	}
	if c.output != nil {
		_ = c.output.Destroy()
		c.output = nil
	}
	if c.session != nil {
		_ = c.session.Destroy()
		c.session = nil
	}
	_ = ort.DestroyEnvironment()
}
