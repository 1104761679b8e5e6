// Package evaluation scores classifier output against known labels.
package evaluation

import (
	"fmt"
)

// ConfusionMatrix counts predictions per (true, predicted) class pair.
// Rows are true classes, columns predicted classes.
type ConfusionMatrix struct {
	counts [][]int
}

// NewConfusionMatrix creates an empty n×n matrix.
func NewConfusionMatrix(n int) *ConfusionMatrix {
	counts := make([][]int, n)
	for i := range counts {
		counts[i] = make([]int, n)
	}
	return &ConfusionMatrix{counts: counts}
}

// Add records one sample.
func (m *ConfusionMatrix) Add(trueClass, predicted int) error {
	n := len(m.counts)
	if trueClass < 0 || trueClass >= n || predicted < 0 || predicted >= n {
		return fmt.Errorf("class out of range: true=%d predicted=%d classes=%d", trueClass, predicted, n)
	}
	m.counts[trueClass][predicted]++
	return nil
}

// Size returns the number of classes.
func (m *ConfusionMatrix) Size() int { return len(m.counts) }

// At returns the count of samples of class trueClass predicted as predicted.
func (m *ConfusionMatrix) At(trueClass, predicted int) int { return m.counts[trueClass][predicted] }

// Total returns the number of recorded samples.
func (m *ConfusionMatrix) Total() int {
	var t int
	for _, row := range m.counts {
		for _, c := range row {
			t += c
		}
	}
	return t
}

// Normalized divides every row by its sum, so unbalanced classes compare.
// Empty rows stay zero.
func (m *ConfusionMatrix) Normalized() [][]float64 {
	out := make([][]float64, len(m.counts))
	for i, row := range m.counts {
		out[i] = make([]float64, len(row))
		var sum int
		for _, c := range row {
			sum += c
		}
		if sum == 0 {
			continue
		}
		for j, c := range row {
			out[i][j] = float64(c) / float64(sum)
		}
	}
	return out
}

// Accuracy returns the share of samples on the diagonal.
func (m *ConfusionMatrix) Accuracy() float64 {
	total := m.Total()
	if total == 0 {
		return 0
	}
	var hit int
	for i := range m.counts {
		hit += m.counts[i][i]
	}
	return float64(hit) / float64(total)
}

// ClassMetrics holds the per-class scores of a classification report.
type ClassMetrics struct {
	Label     string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report computes precision, recall and F1 per class. Zero divisions yield 0.
func (m *ConfusionMatrix) Report(labels []string) ([]ClassMetrics, error) {
	n := len(m.counts)
	if len(labels) != n {
		return nil, fmt.Errorf("%d labels for %d classes", len(labels), n)
	}

	out := make([]ClassMetrics, n)
	for c := 0; c < n; c++ {
		tp := m.counts[c][c]
		var support, predicted int
		for j := 0; j < n; j++ {
			support += m.counts[c][j]
			predicted += m.counts[j][c]
		}

		precision := ratio(tp, predicted)
		recall := ratio(tp, support)
		var f1 float64
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		out[c] = ClassMetrics{
			Label:     labels[c],
			Precision: precision,
			Recall:    recall,
			F1:        f1,
			Support:   support,
		}
	}
	return out, nil
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

// TopKCounter tracks how often the true class is among the k best predictions.
type TopKCounter struct {
	K     int
	hits  int
	total int
}

// Add records whether trueLabel appears in ranked (already sorted, best first).
func (c *TopKCounter) Add(trueLabel string, ranked []string) {
	c.total++
	for i, l := range ranked {
		if i >= c.K {
			break
		}
		if l == trueLabel {
			c.hits++
			return
		}
	}
}

// Accuracy returns hits over samples.
func (c *TopKCounter) Accuracy() float64 { return ratio(c.hits, c.total) }

// Total returns the number of samples seen.
func (c *TopKCounter) Total() int { return c.total }
