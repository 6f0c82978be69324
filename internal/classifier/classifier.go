// Package classifier defines the sequence-model boundary: a Classifier maps
// one full window to a probability distribution over a fixed label set.
package classifier

import (
	"context"
	"errors"
	"sort"

	"github.com/ayusman/signbridge/internal/window"
)

// ErrEmptyDistribution is returned when a classifier yields no labels.
var ErrEmptyDistribution = errors.New("empty distribution")

// Classifier maps a window of N feature vectors to label probabilities.
// Implementations must not retain or mutate the window.
type Classifier interface {
	Predict(ctx context.Context, w window.Window) (Distribution, error)
}

// Func adapts a plain function to the Classifier interface.
type Func func(ctx context.Context, w window.Window) (Distribution, error)

// Predict calls f.
func (f Func) Predict(ctx context.Context, w window.Window) (Distribution, error) {
	return f(ctx, w)
}

// Distribution maps each label to its probability. Probabilities are used as
// given; no renormalization is performed.
type Distribution map[string]float64

// Record is the arg-max of one distribution.
type Record struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Top returns the most probable label. Equal probabilities resolve to the
// lexicographically smallest label so the result never depends on map order.
func (d Distribution) Top() (Record, error) {
	if len(d) == 0 {
		return Record{}, ErrEmptyDistribution
	}

	var best Record
	first := true
	for label, p := range d {
		if first || p > best.Confidence || (p == best.Confidence && label < best.Label) {
			best = Record{Label: label, Confidence: p}
			first = false
		}
	}
	return best, nil
}

// Labels returns the labels of d in sorted order.
func (d Distribution) Labels() []string {
	labels := make([]string, 0, len(d))
	for label := range d {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// FromScores pairs labels with scores by index. Extra scores are rejected so
// a label file that does not match the model output is caught at the first window.
func FromScores(labels []string, scores []float32) (Distribution, error) {
	if len(labels) != len(scores) {
		return nil, &LabelCountError{Labels: len(labels), Outputs: len(scores)}
	}
	d := make(Distribution, len(labels))
	for i, label := range labels {
		d[label] = float64(scores[i])
	}
	return d, nil
}
