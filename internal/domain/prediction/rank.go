package prediction

import (
	"fmt"
	"math"
	"sort"

	"github.com/kailas-cloud/mushi/internal/domain"
)

// Softmax converts raw scores into confidences that sum to 1.
// The maximum score is subtracted before exponentiating so large logits do not overflow.
func Softmax(scores []float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, fmt.Errorf("%w: empty score vector", domain.ErrInvalidInput)
	}

	maxScore := math.Inf(-1)
	for i, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, fmt.Errorf("%w: score %d is not finite", domain.ErrInvalidInput, i)
		}
		if s > maxScore {
			maxScore = s
		}
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(s - maxScore)
		sum += out[i]
	}
	// sum >= 1: the max element contributes exp(0)
	for i := range out {
		out[i] /= sum
	}
	return out, nil
}

// Rank normalizes scores with Softmax and returns the k most confident classes.
// Ties keep the lower index first. k larger than the number of classes is truncated.
func Rank(scores []float64, labels []string, k int) ([]Prediction, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	if len(scores) != len(labels) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", domain.ErrInvalidInput, len(scores), len(labels))
	}

	confidences, err := Softmax(scores)
	if err != nil {
		return nil, err
	}

	order := make([]int, len(confidences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return confidences[order[a]] > confidences[order[b]]
	})

	if k > len(order) {
		k = len(order)
	}

	ranking := make([]Prediction, k)
	for i, idx := range order[:k] {
		ranking[i] = New(labels[idx], confidences[idx])
	}
	return ranking, nil
}

// Float64s widens a float32 score vector as produced by the classifier runtime.
func Float64s(scores []float32) []float64 {
	out := make([]float64, len(scores))
	for i, s := range scores {
		out[i] = float64(s)
	}
	return out
}
