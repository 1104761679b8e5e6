package evaluate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/mushi/internal/dataset"
	"github.com/kailas-cloud/mushi/internal/domain"
	"github.com/kailas-cloud/mushi/internal/domain/evaluation"
	"github.com/kailas-cloud/mushi/internal/domain/labels"
)

const defaultWorkers = 4

// Report is the outcome of an evaluation run.
type Report struct {
	Matrix       *evaluation.ConfusionMatrix
	Classes      []evaluation.ClassMetrics
	Accuracy     float64
	TopK         int
	TopKAccuracy float64
	Evaluated    int
	Unreadable   []string // images that failed to decode, sorted
}

// Service scores the classifier against a labelled image set.
type Service struct {
	predictor Predictor
	labels    labels.List
	workers   int
	logger    *zap.Logger
}

// New creates an evaluation service.
func New(p Predictor, l labels.List, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{predictor: p, labels: l, workers: defaultWorkers, logger: logger}
}

// WithWorkers sets how many images are classified in parallel.
func (s *Service) WithWorkers(n int) *Service {
	if n > 0 {
		s.workers = n
	}
	return s
}

type outcome struct {
	trueIdx int
	label   string
	ranked  []string
}

// Evaluate classifies every image and accumulates the confusion matrix and top-k accuracy.
// Undecodable images are reported and skipped; any other failure aborts the run.
func (s *Service) Evaluate(ctx context.Context, images []dataset.LabeledImage, k int) (Report, error) {
	if k < 1 {
		return Report{}, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	for _, img := range images {
		if s.labels.Index(img.Label) < 0 {
			return Report{}, fmt.Errorf("%w: unknown label %q for %s", domain.ErrInvalidInput, img.Label, img.Path)
		}
	}

	var (
		mu         sync.Mutex
		outcomes   = make([]outcome, 0, len(images))
		unreadable []string
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, img := range images {
		g.Go(func() error {
			res, err := s.predictor.PredictFile(gctx, img.Path, k)
			if errors.Is(err, domain.ErrInvalidImage) {
				s.logger.Warn("Skipping unreadable image", zap.String("path", img.Path), zap.Error(err))
				mu.Lock()
				unreadable = append(unreadable, img.Path)
				mu.Unlock()
				return nil
			}
			if err != nil {
				return err
			}

			ranked := make([]string, len(res.Ranking))
			for i, p := range res.Ranking {
				ranked[i] = p.Label()
			}

			mu.Lock()
			outcomes = append(outcomes, outcome{trueIdx: s.labels.Index(img.Label), label: img.Label, ranked: ranked})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	matrix := evaluation.NewConfusionMatrix(s.labels.Len())
	topK := &evaluation.TopKCounter{K: k}
	for _, o := range outcomes {
		if len(o.ranked) == 0 {
			return Report{}, fmt.Errorf("empty ranking for label %s", o.label)
		}
		if err := matrix.Add(o.trueIdx, s.labels.Index(o.ranked[0])); err != nil {
			return Report{}, err
		}
		topK.Add(o.label, o.ranked)
	}

	classes, err := matrix.Report(s.labels.Names())
	if err != nil {
		return Report{}, err
	}
	sort.Strings(unreadable)

	return Report{
		Matrix:       matrix,
		Classes:      classes,
		Accuracy:     matrix.Accuracy(),
		TopK:         k,
		TopKAccuracy: topK.Accuracy(),
		Evaluated:    len(outcomes),
		Unreadable:   unreadable,
	}, nil
}
