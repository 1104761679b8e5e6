package prediction

// Prediction is a single ranked class.
type Prediction struct {
	label      string
	confidence float64
}

// New creates a prediction.
func New(label string, confidence float64) Prediction {
	return Prediction{label: label, confidence: confidence}
}

// Label returns the human-readable class name.
func (p Prediction) Label() string { return p.label }

// Confidence returns the softmax probability of the class.
func (p Prediction) Confidence() float64 { return p.confidence }

// Top returns the first prediction of a ranking.
// ok is false for an empty ranking.
func Top(ranking []Prediction) (Prediction, bool) {
	if len(ranking) == 0 {
		return Prediction{}, false
	}
	return ranking[0], true
}
