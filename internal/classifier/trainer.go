package classifier

import (
	"encoding/json"
	"fmt"

	"github.com/ayusman/signbridge/internal/feature"
)

// Sequence is one recorded window of feature vectors.
type Sequence struct {
	Label  string           `json:"label"`
	Frames []feature.Vector `json:"frames"`
}

// Trainer averages recorded sequences into label templates.
type Trainer struct {
	frames int
	dim    int
}

// NewTrainer creates a Trainer for sequences of frames x dim.
func NewTrainer(frames, dim int) *Trainer {
	return &Trainer{frames: frames, dim: dim}
}

// Train parses the recorded sequences and averages every frame that contains
// a hand into a single centroid.
func (t *Trainer) Train(label string, samples []json.RawMessage) (*Template, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("no samples provided")
	}

	sum := make([]float64, t.dim)
	present := 0

	for i, raw := range samples {
		var seq Sequence
		if err := json.Unmarshal(raw, &seq); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if seq.Label != "" && seq.Label != label {
			return nil, fmt.Errorf("sample %d is labelled %q, expected %q", i, seq.Label, label)
		}
		if len(seq.Frames) != t.frames {
			return nil, fmt.Errorf("sample %d: %w", i, &feature.ShapeError{Kind: "window", Got: len(seq.Frames), Want: t.frames})
		}

		for _, v := range seq.Frames {
			if len(v) != t.dim {
				return nil, fmt.Errorf("sample %d: %w", i, &feature.ShapeError{Kind: "vector", Got: len(v), Want: t.dim})
			}
			if v.IsAbsent() {
				continue
			}
			present++
			for j, x := range v {
				sum[j] += float64(x)
			}
		}
	}

	if present == 0 {
		return nil, fmt.Errorf("samples for %q contain no detected hand", label)
	}

	centroid := make(feature.Vector, t.dim)
	n := float64(present)
	for j := range sum {
		centroid[j] = float32(sum[j] / n)
	}

	return &Template{Label: label, Centroid: centroid}, nil
}
