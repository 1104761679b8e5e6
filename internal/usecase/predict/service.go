package predict

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mushi/internal/domain"
	"github.com/kailas-cloud/mushi/internal/domain/labels"
	"github.com/kailas-cloud/mushi/internal/domain/prediction"
	"github.com/kailas-cloud/mushi/internal/metrics"
	"github.com/kailas-cloud/mushi/internal/repository/journal"
	"github.com/kailas-cloud/mushi/internal/repository/scorecache"
)

// Result is the outcome of one prediction.
type Result struct {
	Ranking     []prediction.Prediction
	ImageSHA256 string
	Cached      bool
}

// Service runs Preprocessor -> Classifier -> Rank over uploaded images.
// All collaborators are read-only after construction; Predict is safe for concurrent use.
type Service struct {
	pre     Preprocessor
	clf     Classifier
	labels  labels.List
	cache   ScoreCache
	journal Journal
	logger  *zap.Logger
}

// New creates a prediction service.
// It fails with ErrLabelMismatch when the label list does not fit the classifier output.
func New(pre Preprocessor, clf Classifier, l labels.List, logger *zap.Logger) (*Service, error) {
	if l.Len() != clf.NumClasses() {
		return nil, domain.NewLabelMismatch(l.Len(), clf.NumClasses())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{pre: pre, clf: clf, labels: l, logger: logger}, nil
}

// WithCache enables score caching by image digest.
func (s *Service) WithCache(c ScoreCache) *Service {
	s.cache = c
	return s
}

// WithJournal enables recording of every served prediction.
func (s *Service) WithJournal(j Journal) *Service {
	s.journal = j
	return s
}

// Labels returns the label list the service ranks against.
func (s *Service) Labels() labels.List { return s.labels }

// Predict classifies one encoded image and returns its k most confident classes.
func (s *Service) Predict(ctx context.Context, image []byte, k int) (Result, error) {
	if k < 1 {
		return Result{}, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}

	key := scorecache.Key(image)
	scores, cached := s.cachedScores(key)

	if !cached {
		var err error
		scores, err = s.classify(ctx, image)
		if err != nil {
			metrics.InferenceRequestsTotal.WithLabelValues("error").Inc()
			return Result{}, err
		}
		metrics.InferenceRequestsTotal.WithLabelValues("ok").Inc()
		if s.cache != nil {
			s.cache.Add(key, scores)
		}
	}

	start := time.Now()
	ranking, err := prediction.Rank(prediction.Float64s(scores), s.labels.Names(), k)
	metrics.InferenceDuration.WithLabelValues("rank").Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{}, fmt.Errorf("rank: %w", err)
	}

	if top, ok := prediction.Top(ranking); ok {
		metrics.TopConfidence.Observe(top.Confidence())
	}

	s.record(ctx, key, k, ranking)

	return Result{Ranking: ranking, ImageSHA256: key, Cached: cached}, nil
}

// PredictFile reads an image from disk and predicts it.
func (s *Service) PredictFile(ctx context.Context, path string, k int) (Result, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Result{}, fmt.Errorf("read image %s: %w", path, err)
	}
	res, err := s.Predict(ctx, data, k)
	if err != nil {
		return Result{}, fmt.Errorf("predict %s: %w", path, err)
	}
	return res, nil
}

func (s *Service) cachedScores(key string) ([]float32, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *Service) classify(ctx context.Context, image []byte) ([]float32, error) {
	start := time.Now()
	tensor, err := s.pre.Preprocess(image)
	metrics.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}

	start = time.Now()
	scores, err := s.clf.Predict(ctx, tensor)
	metrics.InferenceDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	s.logger.Debug("Classifier output",
		zap.Int("classes", len(scores)),
		zap.Duration("duration", time.Since(start)),
	)
	return scores, nil
}

// record writes to the journal. Journal failures never fail the request.
func (s *Service) record(ctx context.Context, key string, k int, ranking []prediction.Prediction) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(ctx, journal.Entry{
		CreatedAt:   time.Now(),
		ImageSHA256: key,
		K:           k,
		Ranking:     ranking,
	})
	if err != nil {
		metrics.JournalErrorsTotal.Inc()
		s.logger.Warn("Failed to journal prediction", zap.String("image_sha256", key), zap.Error(err))
	}
}
