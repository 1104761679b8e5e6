// Package bootstrap assembles the classifier pipeline from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/config"
	"github.com/kailas-cloud/mushi/internal/domain/labels"
	"github.com/kailas-cloud/mushi/internal/imaging"
	"github.com/kailas-cloud/mushi/internal/repository/artifact"
	"github.com/kailas-cloud/mushi/internal/transport/onnx"
	predictuc "github.com/kailas-cloud/mushi/internal/usecase/predict"
)

// Model is a loaded classifier and the prediction service built on it.
type Model struct {
	Classifier *onnx.Classifier
	Predict    *predictuc.Service
}

// Close releases the inference session.
func (m *Model) Close() {
	if m.Classifier != nil {
		m.Classifier.Close()
	}
}

// LoadModel resolves artifacts (downloading them when object storage is configured),
// loads labels and metadata, opens the ONNX session and builds the prediction service.
// A label count that does not match the model output is a fatal configuration error.
func LoadModel(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Model, error) {
	modelCfg, err := ResolveArtifacts(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	l, err := labels.LoadFile(modelCfg.LabelsPath)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}

	meta, err := onnx.LoadMetadata(modelCfg.MetadataPath)
	if err != nil {
		return nil, fmt.Errorf("load metadata: %w", err)
	}

	pre, err := imaging.New(meta.ImageSize, imaging.Layout(meta.Layout), imaging.Scale(meta.Scale))
	if err != nil {
		return nil, fmt.Errorf("create preprocessor: %w", err)
	}

	if int64(pre.TensorLen()) != meta.InputElements() {
		return nil, fmt.Errorf("preprocessor yields %d values, model input %v holds %d",
			pre.TensorLen(), meta.InputShape, meta.InputElements())
	}

	clf, err := onnx.NewClassifier(onnx.Config{
		ModelPath:      modelCfg.Path,
		Metadata:       meta,
		RuntimeLibrary: modelCfg.RuntimeLibrary,
		Logger:         logger,
	})
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	svc, err := predictuc.New(pre, clf, l, logger)
	if err != nil {
		clf.Close()
		return nil, err
	}

	logger.Info("Model loaded",
		zap.String("model", modelCfg.Path),
		zap.Int("classes", l.Len()),
		zap.Int("image_size", pre.Size()),
		zap.Int64s("input_shape", clf.Metadata().InputShape),
		zap.String("layout", meta.Layout),
	)

	return &Model{Classifier: clf, Predict: svc}, nil
}

// ResolveArtifacts returns cfg.Model with paths pointing at local files.
// Without object storage the configured paths are used as-is.
func ResolveArtifacts(ctx context.Context, cfg config.Config, logger *zap.Logger) (config.ModelConfig, error) {
	modelCfg := cfg.Model
	if !cfg.Artifacts.Enabled() {
		return modelCfg, nil
	}

	fetcher, err := artifact.New(artifact.Config{
		Endpoint:  cfg.Artifacts.Endpoint,
		Bucket:    cfg.Artifacts.Bucket,
		Prefix:    cfg.Artifacts.Prefix,
		AccessKey: cfg.Artifacts.AccessKey,
		SecretKey: cfg.Artifacts.SecretKey,
		Secure:    cfg.Artifacts.Secure,
		CacheDir:  cfg.Artifacts.CacheDir,
	}, logger)
	if err != nil {
		return config.ModelConfig{}, err
	}

	local, err := fetcher.FetchAll(ctx,
		filepath.Base(modelCfg.Path),
		filepath.Base(modelCfg.LabelsPath),
		filepath.Base(modelCfg.MetadataPath),
	)
	if err != nil {
		return config.ModelConfig{}, fmt.Errorf("fetch artifacts: %w", err)
	}
	modelCfg.Path, modelCfg.LabelsPath, modelCfg.MetadataPath = local[0], local[1], local[2]
	return modelCfg, nil
}
