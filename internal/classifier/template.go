package classifier

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/ayusman/signbridge/internal/feature"
	"github.com/ayusman/signbridge/internal/window"
)

// Template is the centroid feature vector recorded for one label.
type Template struct {
	Label    string
	Centroid feature.Vector
}

// TemplateClassifier scores a window against per-label centroids. It is the
// trainable fallback used when no sequence model is configured.
type TemplateClassifier struct {
	frames    int
	dim       int
	mu        sync.RWMutex
	templates []*Template
}

// NewTemplateClassifier creates a classifier for windows of frames x dim.
func NewTemplateClassifier(frames, dim int) *TemplateClassifier {
	return &TemplateClassifier{
		frames:    frames,
		dim:       dim,
		templates: make([]*Template, 0),
	}
}

// AddTemplate registers t, replacing any template with the same label.
func (c *TemplateClassifier) AddTemplate(t *Template) error {
	if t == nil {
		return nil
	}
	if len(t.Centroid) != c.dim {
		return &feature.ShapeError{Kind: "template", Got: len(t.Centroid), Want: c.dim}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for i, existing := range c.templates {
		if existing.Label == t.Label {
			c.templates[i] = t
			return nil
		}
	}
	c.templates = append(c.templates, t)
	return nil
}

// RemoveTemplate removes a template by its label.
func (c *TemplateClassifier) RemoveTemplate(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, t := range c.templates {
		if t.Label == label {
			c.templates = append(c.templates[:i], c.templates[i+1:]...)
			return
		}
	}
}

// Labels returns the registered labels in insertion order.
func (c *TemplateClassifier) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	labels := make([]string, len(c.templates))
	for i, t := range c.templates {
		labels[i] = t.Label
	}
	return labels
}

// Predict averages the frames where a hand was present, scores each template
// as 1/(1+distance), and normalizes the scores to sum to 1. A window with no
// hand at all yields a uniform distribution.
func (c *TemplateClassifier) Predict(ctx context.Context, w window.Window) (Distribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := w.CheckShape(c.frames, c.dim); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.templates) == 0 {
		return nil, fmt.Errorf("template classifier: %w", ErrEmptyDistribution)
	}

	mean, present := meanPresent(w, c.dim)
	dist := make(Distribution, len(c.templates))

	if present == 0 {
		uniform := 1.0 / float64(len(c.templates))
		for _, t := range c.templates {
			dist[t.Label] = uniform
		}
		return dist, nil
	}

	var total float64
	for _, t := range c.templates {
		score := 1.0 / (1.0 + euclideanDistance(mean, t.Centroid))
		dist[t.Label] = score
		total += score
	}
	for label, score := range dist {
		dist[label] = score / total
	}

	return dist, nil
}

// meanPresent averages the non-absent vectors of w.
func meanPresent(w window.Window, dim int) (feature.Vector, int) {
	sum := make([]float64, dim)
	present := 0
	for _, v := range w {
		if v.IsAbsent() {
			continue
		}
		present++
		for i, x := range v {
			sum[i] += float64(x)
		}
	}

	mean := make(feature.Vector, dim)
	if present == 0 {
		return mean, 0
	}
	for i := range sum {
		mean[i] = float32(sum[i] / float64(present))
	}
	return mean, present
}

// euclideanDistance calculates the distance between two equal-length vectors.
func euclideanDistance(a, b feature.Vector) float64 {
	var total float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		total += d * d
	}
	return math.Sqrt(total)
}
